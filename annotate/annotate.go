// Package annotate renders recognized regions back onto the source image as
// rectangle outlines, for visual inspection of the grouping output.
package annotate

import (
	"image"
	"image/color"

	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/layout"
)

// DefaultColor is the box outline color.
var DefaultColor = color.RGBA{R: 200, G: 0, B: 100, A: 255}

// DefaultThickness is the box outline width in pixels.
const DefaultThickness = 2

// Options control box rendering.
type Options struct {
	// Color overrides DefaultColor when non-nil.
	Color color.Color
	// Thickness overrides DefaultThickness when > 0.
	Thickness int
}

// DrawBoxes returns a copy of img with an outline drawn around every region.
// The input image is never modified.
func DrawBoxes(img image.Image, regions []layout.Region, opts Options) *image.RGBA {
	col := opts.Color
	if col == nil {
		col = DefaultColor
	}
	thickness := opts.Thickness
	if thickness <= 0 {
		thickness = DefaultThickness
	}

	dst := imaging.Clone(img)
	for _, r := range regions {
		if r.Bounds.IsEmpty() {
			continue
		}
		drawOutline(dst, r.Bounds.Rect(), col, thickness)
	}
	return dst
}

// drawOutline strokes rect with the given thickness, growing inward so thin
// regions near the image edge stay visible.
func drawOutline(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		inner := rect.Inset(t)
		if inner.Empty() {
			break
		}
		for x := inner.Min.X; x < inner.Max.X; x++ {
			dst.Set(x, inner.Min.Y, col)
			dst.Set(x, inner.Max.Y-1, col)
		}
		for y := inner.Min.Y; y < inner.Max.Y; y++ {
			dst.Set(inner.Min.X, y, col)
			dst.Set(inner.Max.X-1, y, col)
		}
	}
}
