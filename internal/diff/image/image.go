package image

import (
	"image"
)

// Dimensions is a width/height pair. It encodes as [width,height].
type Dimensions [2]int

func DimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{b.Dx(), b.Dy()}
}

func (d Dimensions) Width() int {
	return d[0]
}

func (d Dimensions) Height() int {
	return d[1]
}

func (d Dimensions) Area() int {
	return d[0] * d[1]
}

// Region is the bounding box of one connected cluster of differing pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Region) Contains(x int, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// DiffMask marks the pixels whose intensity difference exceeds the threshold.
type DiffMask struct {
	Width  int
	Height int
	cells  []bool
	count  int
}

func NewDiffMask(width int, height int) *DiffMask {
	return &DiffMask{
		Width:  width,
		Height: height,
		cells:  make([]bool, width*height),
	}
}

func (m *DiffMask) At(x int, y int) bool {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return false
	}
	return m.cells[y*m.Width+x]
}

// Set is only meant for building masks by hand; the difference engine fills
// cells directly.
func (m *DiffMask) Set(x int, y int, v bool) {
	i := y*m.Width + x
	if m.cells[i] == v {
		return
	}
	m.cells[i] = v
	if v {
		m.count++
	} else {
		m.count--
	}
}

func (m *DiffMask) Count() int {
	return m.count
}

// DiffResult is the output of the difference engine.
type DiffResult struct {
	Mask *DiffMask
}

// Differ marks the differing pixels of two images of equal size.
type Differ interface {
	Calculate(baseline image.Image, target image.Image) (*DiffResult, error)
}

// ComparisonResult is the record handed back for one comparison. It is not
// modified after Compare returns it.
type ComparisonResult struct {
	MatchPercentage     float64    `json:"match_percentage"`
	DiffPercentage      float64    `json:"diff_percentage"`
	DiffPixelCount      int        `json:"diff_pixel_count"`
	DiffImagePath       string     `json:"diff_image_path"`
	DiffRegions         []Region   `json:"diff_regions"`
	BaselineDimensions  Dimensions `json:"baseline_dimensions"`
	TestDimensions      Dimensions `json:"test_dimensions"`
	ComparisonTimestamp string     `json:"comparison_timestamp"`
}
