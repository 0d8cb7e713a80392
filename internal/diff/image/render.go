package image

import (
	"image"
	"image/color"
	"image/draw"
)

const DefaultStrokeWidth = 2

var DefaultOutlineColor = color.RGBA{R: 255, A: 255}

// OutlineRenderer draws a frame around every region on a copy of the baseline.
type OutlineRenderer struct {
	color       color.Color
	strokeWidth int
}

func NewOutlineRenderer(c color.Color, strokeWidth int) *OutlineRenderer {
	return &OutlineRenderer{
		color:       c,
		strokeWidth: strokeWidth,
	}
}

// Render returns a zero-origin copy of baseline with each region framed. The
// frame sits outside the region's box so the differing pixels stay visible;
// parts falling off the image are clipped.
func (o *OutlineRenderer) Render(baseline image.Image, regions []Region) *image.RGBA {
	bounds := baseline.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), baseline, bounds.Min, draw.Src)

	canvas := result.Bounds()
	stroke := &image.Uniform{C: o.color}

	for _, region := range regions {
		for thickness := 1; thickness <= o.strokeWidth; thickness++ {
			outer := image.Rect(
				region.X-thickness,
				region.Y-thickness,
				region.X+region.Width+thickness,
				region.Y+region.Height+thickness,
			)

			edges := []image.Rectangle{
				image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+1),
				image.Rect(outer.Min.X, outer.Max.Y-1, outer.Max.X, outer.Max.Y),
				image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+1, outer.Max.Y),
				image.Rect(outer.Max.X-1, outer.Min.Y, outer.Max.X, outer.Max.Y),
			}
			for _, edge := range edges {
				edge = edge.Intersect(canvas)
				if edge.Empty() {
					continue
				}
				draw.Draw(result, edge, stroke, image.Point{}, draw.Src)
			}
		}
	}

	return result
}
