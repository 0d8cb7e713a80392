package image

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
)

const DefaultThreshold = 30

// PixelDiff compares two same-sized images by luma and marks every pixel whose
// absolute intensity difference exceeds the threshold.
type PixelDiff struct {
	threshold uint8
}

func NewPixelDiff(threshold uint8) *PixelDiff {
	return &PixelDiff{
		threshold,
	}
}

func (p *PixelDiff) Calculate(baseline image.Image, target image.Image) (*DiffResult, error) {
	baselineDimensions := DimensionsOf(baseline)
	targetDimensions := DimensionsOf(target)
	if baselineDimensions != targetDimensions {
		return nil, &InvalidImageError{Reason: fmt.Sprintf("dimension mismatch: baseline %dx%d, test %dx%d",
			baselineDimensions.Width(), baselineDimensions.Height(), targetDimensions.Width(), targetDimensions.Height())}
	}

	width := baselineDimensions.Width()
	height := baselineDimensions.Height()

	baselineGray := Grayscale(baseline)
	targetGray := Grayscale(target)
	mask := NewDiffMask(width, height)

	var diffPixelCount int64
	forEachRowBand(height, func(startY int, endY int) {
		var localCount int64

		for y := startY; y < endY; y++ {
			rowStart := y * width
			for x := 0; x < width; x++ {
				i := rowStart + x
				b := baselineGray.Pix[i]
				t := targetGray.Pix[i]

				d := b - t
				if t > b {
					d = t - b
				}
				if d > p.threshold {
					mask.cells[i] = true
					localCount++
				}
			}
		}

		atomic.AddInt64(&diffPixelCount, localCount)
	})
	mask.count = int(diffPixelCount)

	return &DiffResult{
		Mask: mask,
	}, nil
}

// Grayscale reduces img to a zero-origin luma grid of the same size.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	switch src := img.(type) {
	case *image.Gray:
		forEachRowBand(height, func(startY int, endY int) {
			for y := startY; y < endY; y++ {
				srcStart := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], src.Pix[srcStart:srcStart+width])
			}
		})
	case *image.RGBA:
		forEachRowBand(height, func(startY int, endY int) {
			for y := startY; y < endY; y++ {
				srcStart := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				dstStart := y * gray.Stride
				for x := 0; x < width; x++ {
					offset := srcStart + x*4
					gray.Pix[dstStart+x] = luma(src.Pix[offset], src.Pix[offset+1], src.Pix[offset+2])
				}
			}
		})
	case *image.NRGBA:
		forEachRowBand(height, func(startY int, endY int) {
			for y := startY; y < endY; y++ {
				srcStart := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				dstStart := y * gray.Stride
				for x := 0; x < width; x++ {
					offset := srcStart + x*4
					a := src.Pix[offset+3]
					gray.Pix[dstStart+x] = luma(
						premultiply(src.Pix[offset], a),
						premultiply(src.Pix[offset+1], a),
						premultiply(src.Pix[offset+2], a),
					)
				}
			}
		})
	case *image.YCbCr:
		forEachRowBand(height, func(startY int, endY int) {
			for y := startY; y < endY; y++ {
				dstStart := y * gray.Stride
				for x := 0; x < width; x++ {
					yOffset := src.YOffset(bounds.Min.X+x, bounds.Min.Y+y)
					cOffset := src.COffset(bounds.Min.X+x, bounds.Min.Y+y)
					r, g, b, _ := ycbcrToRGBA(src.Y[yOffset], src.Cb[cOffset], src.Cr[cOffset])
					gray.Pix[dstStart+x] = luma(r, g, b)
				}
			}
		})
	default:
		forEachRowBand(height, func(startY int, endY int) {
			for y := startY; y < endY; y++ {
				dstStart := y * gray.Stride
				for x := 0; x < width; x++ {
					r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
					gray.Pix[dstStart+x] = luma(uint8(r>>8), uint8(g>>8), uint8(b>>8))
				}
			}
		})
	}

	return gray
}

// luma applies the ITU-R BT.601 weights (0.299, 0.587, 0.114) in 16.16 fixed
// point. The weights sum to 65536 so white stays 255.
func luma(r uint8, g uint8, b uint8) uint8 {
	return uint8((19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16)
}

// premultiply matches color.NRGBA.RGBA() so that the NRGBA fast path and the
// generic path agree on translucent pixels.
func premultiply(c uint8, a uint8) uint8 {
	c16 := uint32(c) * 0x101
	a16 := uint32(a) * 0x101
	return uint8(c16 * a16 / 0xffff >> 8)
}

func ycbcrToRGBA(y uint8, cb uint8, cr uint8) (uint8, uint8, uint8, uint8) {
	// ITU-R BT.601 full range (JFIF), 16.16 fixed point.
	// https://www.w3.org/Graphics/JPEG/jfif3.pdf
	const (
		// 1.402 * 65536
		crToR = 91881
		// 0.344136 * 65536
		cbToG = 22554
		// 0.714136 * 65536
		crToG = 46802
		// 1.772 * 65536
		cbToB = 116130
	)

	yy := int32(y) * 0x10101
	cb1 := int32(cb) - 128
	cr1 := int32(cr) - 128

	r := (yy + crToR*cr1) >> 16
	g := (yy - cbToG*cb1 - crToG*cr1) >> 16
	b := (yy + cbToB*cb1) >> 16

	return clampUint8(r), clampUint8(g), clampUint8(b), 255
}

func clampUint8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// forEachRowBand splits [0, height) into contiguous bands and runs fn on each
// band in its own goroutine. Bands never overlap, so fn may write rows of a
// shared output without locking.
func forEachRowBand(height int, fn func(startY int, endY int)) {
	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		return
	}

	rowsPerWorker := height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = height
		}

		go func(startY int, endY int) {
			defer wg.Done()
			fn(startY, endY)
		}(startY, endY)
	}

	wg.Wait()
}
