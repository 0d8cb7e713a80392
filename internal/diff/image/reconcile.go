package image

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Reconciliation holds a baseline/test pair on a common grid along with the
// dimensions the two images had before any resampling.
type Reconciliation struct {
	Baseline           image.Image
	Target             image.Image
	BaselineDimensions Dimensions
	TargetDimensions   Dimensions
	Resampled          bool
}

// Reconcile brings target onto baseline's grid. The baseline size is
// authoritative: when the sizes differ only the target is resampled.
func Reconcile(baseline image.Image, target image.Image) (*Reconciliation, error) {
	baselineDimensions := DimensionsOf(baseline)
	targetDimensions := DimensionsOf(target)

	if baselineDimensions.Area() == 0 {
		return nil, &InvalidImageError{Reason: fmt.Sprintf("baseline has zero area (%dx%d)", baselineDimensions.Width(), baselineDimensions.Height())}
	}
	if targetDimensions.Area() == 0 {
		return nil, &InvalidImageError{Reason: fmt.Sprintf("test image has zero area (%dx%d)", targetDimensions.Width(), targetDimensions.Height())}
	}

	r := &Reconciliation{
		Baseline:           baseline,
		Target:             target,
		BaselineDimensions: baselineDimensions,
		TargetDimensions:   targetDimensions,
	}

	if baselineDimensions == targetDimensions {
		return r, nil
	}

	resampled := image.NewRGBA(image.Rect(0, 0, baselineDimensions.Width(), baselineDimensions.Height()))
	xdraw.BiLinear.Scale(resampled, resampled.Bounds(), target, target.Bounds(), xdraw.Src, nil)

	if DimensionsOf(resampled) != baselineDimensions {
		return nil, &InvalidImageError{Reason: fmt.Sprintf("resampled test image is %dx%d, want %dx%d",
			resampled.Bounds().Dx(), resampled.Bounds().Dy(), baselineDimensions.Width(), baselineDimensions.Height())}
	}

	r.Target = resampled
	r.Resampled = true
	return r, nil
}
