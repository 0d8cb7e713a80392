package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func createGrayImage(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestPixelDiff_Calculate(t *testing.T) {
	pd := NewPixelDiff(DefaultThreshold)

	t.Run("NoDifference", func(t *testing.T) {
		img1 := createTestImage(100, 100, color.White)
		img2 := createTestImage(100, 100, color.White)

		result, err := pd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Mask.Count() != 0 {
			t.Errorf("Expected no differing pixels, got %d", result.Mask.Count())
		}
	})

	t.Run("CompleteDifference", func(t *testing.T) {
		img1 := createTestImage(100, 100, color.White)
		img2 := createTestImage(100, 100, color.Black)

		result, err := pd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Mask.Count() != 100*100 {
			t.Errorf("Expected 10000 differing pixels, got %d", result.Mask.Count())
		}
		if !result.Mask.At(50, 50) {
			t.Error("Expected (50, 50) to be marked")
		}
	})

	t.Run("PartialDifference", func(t *testing.T) {
		img1 := createTestImage(100, 100, color.White)
		img2 := createTestImage(100, 100, color.White)

		for y := 0; y < 50; y++ {
			for x := 0; x < 100; x++ {
				img2.Set(x, y, color.Black)
			}
		}

		result, err := pd.Calculate(img1, img2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Mask.Count() != 5000 {
			t.Errorf("Expected 5000 differing pixels, got %d", result.Mask.Count())
		}
		if !result.Mask.At(0, 0) || result.Mask.At(0, 50) {
			t.Errorf("Expected only the top half to differ")
		}
	})

	t.Run("ThresholdIsExclusive", func(t *testing.T) {
		baseline := createGrayImage(10, 10, 100)

		atThreshold, err := pd.Calculate(baseline, createGrayImage(10, 10, 130))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if atThreshold.Mask.Count() != 0 {
			t.Errorf("Expected a difference equal to the threshold to be ignored, got %d pixels", atThreshold.Mask.Count())
		}

		aboveThreshold, err := pd.Calculate(baseline, createGrayImage(10, 10, 131))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if aboveThreshold.Mask.Count() != 100 {
			t.Errorf("Expected all 100 pixels to differ, got %d", aboveThreshold.Mask.Count())
		}
	})

	t.Run("ZeroThreshold", func(t *testing.T) {
		result, err := NewPixelDiff(0).Calculate(createGrayImage(4, 4, 100), createGrayImage(4, 4, 101))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Mask.Count() != 16 {
			t.Errorf("Expected 16 differing pixels, got %d", result.Mask.Count())
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := pd.Calculate(createTestImage(10, 10, color.White), createTestImage(10, 11, color.White))

		var invalid *InvalidImageError
		if !errors.As(err, &invalid) {
			t.Errorf("Expected InvalidImageError, got %v", err)
		}
	})

	t.Run("MaskMatchesDimensions", func(t *testing.T) {
		result, err := pd.Calculate(createTestImage(7, 3, color.White), createTestImage(7, 3, color.Black))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Mask.Width != 7 || result.Mask.Height != 3 {
			t.Errorf("Expected 7x3 mask, got %dx%d", result.Mask.Width, result.Mask.Height)
		}
	})
}

func TestGrayscale(t *testing.T) {
	// luma(10, 200, 30) = (19595*10 + 38470*200 + 7471*30 + 32768) >> 16
	const want = 124
	c := color.RGBA{R: 10, G: 200, B: 30, A: 255}

	tests := []struct {
		name string
		in   image.Image
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			createTestImage(3, 2, c),
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			func() image.Image {
				img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
				draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
				return img
			}(),
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			func() image.Image {
				img := image.NewPaletted(image.Rect(0, 0, 3, 2), color.Palette{c})
				return img
			}(),
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			createGrayImage(3, 2, want),
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			func() image.Image {
				img := image.NewYCbCr(image.Rect(0, 0, 3, 2), image.YCbCrSubsampleRatio420)
				for i := range img.Y {
					img.Y[i] = want
				}
				for i := range img.Cb {
					img.Cb[i] = 128
					img.Cr[i] = 128
				}
				return img
			}(),
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			func() image.Image {
				img := createTestImage(10, 10, color.Black)
				draw.Draw(img, image.Rect(5, 5, 8, 7), &image.Uniform{C: c}, image.Point{}, draw.Src)
				return img.SubImage(image.Rect(5, 5, 8, 7))
			}(),
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := Grayscale(in)
			if diff := cmp.Diff(image.Rect(0, 0, 3, 2), got.Bounds()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]uint8{want, want, want, want, want, want}, got.Pix); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestLuma(t *testing.T) {
	if got := luma(255, 255, 255); got != 255 {
		t.Errorf("Expected white to map to 255, got %d", got)
	}
	if got := luma(0, 0, 0); got != 0 {
		t.Errorf("Expected black to map to 0, got %d", got)
	}
	if got := luma(255, 0, 0); got != 76 {
		t.Errorf("Expected pure red to map to 76, got %d", got)
	}
}

func BenchmarkPixelDiff_Calculate_Small(b *testing.B) {
	pd := NewPixelDiff(DefaultThreshold)
	img1 := createTestImage(1920, 1080, color.White)
	img2 := createTestImage(1920, 1080, color.White)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pd.Calculate(img1, img2)
	}
}

func BenchmarkPixelDiff_Calculate_Large(b *testing.B) {
	pd := NewPixelDiff(DefaultThreshold)
	img1 := createTestImage(3840, 2160, color.White)
	img2 := createTestImage(3840, 2160, color.White)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pd.Calculate(img1, img2)
	}
}
