package image

import (
	"fmt"
)

// DecodeError reports a path that does not resolve to a decodable raster image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %s: %s", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// InvalidImageError reports an image that decoded but cannot be compared.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	return "invalid image: " + e.Reason
}

// RenderError reports a diff artifact that could not be produced. Compare
// returns it together with an otherwise complete result.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render diff image: %s", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
