package image

import (
	"fmt"
)

type Metrics struct {
	DiffPixelCount  int
	TotalPixels     int
	DiffPercentage  float64
	MatchPercentage float64
}

func CalculateMetrics(mask *DiffMask) (Metrics, error) {
	totalPixels := mask.Width * mask.Height
	if totalPixels <= 0 {
		return Metrics{}, &InvalidImageError{Reason: fmt.Sprintf("comparison grid has zero area (%dx%d)", mask.Width, mask.Height)}
	}

	diffPixelCount := mask.Count()
	diffPercentage := float64(diffPixelCount) / float64(totalPixels) * 100

	return Metrics{
		DiffPixelCount:  diffPixelCount,
		TotalPixels:     totalPixels,
		DiffPercentage:  diffPercentage,
		MatchPercentage: 100 - diffPercentage,
	}, nil
}
