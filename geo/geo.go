package geo

import (
	"image"
	"math"
)

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// MaxX returns the right edge of the region.
func (r Region) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge of the region.
func (r Region) MaxY() float64 { return r.Y + r.Height }

// Area returns the region's area, or 0 for empty regions.
func (r Region) Area() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether the point (x, y) lies inside the region. Points on
// the edges are considered inside.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X && x <= r.MaxX() && y >= r.Y && y <= r.MaxY()
}

// Union returns the smallest region covering both r and o. Unioning with an
// empty region returns the other operand unchanged.
func (r Region) Union(o Region) Region {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.MaxX(), o.MaxX())
	maxY := math.Max(r.MaxY(), o.MaxY())
	return Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Intersect returns the overlapping area of r and o, or the zero Region when
// they do not overlap.
func (r Region) Intersect(o Region) Region {
	minX := math.Max(r.X, o.X)
	minY := math.Max(r.Y, o.Y)
	maxX := math.Min(r.MaxX(), o.MaxX())
	maxY := math.Min(r.MaxY(), o.MaxY())
	if maxX <= minX || maxY <= minY {
		return Region{}
	}
	return Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Intersects reports whether r and o overlap with positive area.
func (r Region) Intersects(o Region) bool { return !r.Intersect(o).IsEmpty() }

// IoU returns the intersection-over-union ratio of r and o in [0, 1].
func (r Region) IoU(o Region) float64 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	return inter / (r.Area() + o.Area() - inter)
}

// GapX returns the horizontal distance between the closest vertical edges of r
// and o, or 0 when their horizontal extents overlap.
func (r Region) GapX(o Region) float64 {
	if o.X > r.MaxX() {
		return o.X - r.MaxX()
	}
	if r.X > o.MaxX() {
		return r.X - o.MaxX()
	}
	return 0
}

// GapY returns the vertical distance between the closest horizontal edges of r
// and o, or 0 when their vertical extents overlap.
func (r Region) GapY(o Region) float64 {
	if o.Y > r.MaxY() {
		return o.Y - r.MaxY()
	}
	if r.Y > o.MaxY() {
		return r.Y - o.MaxY()
	}
	return 0
}

// Expand grows the region by d on every side. Negative d shrinks it; the
// result collapses to a zero-size region at the center when over-shrunk.
func (r Region) Expand(d float64) Region {
	out := Region{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
	if out.Width < 0 {
		out.X = r.X + r.Width/2
		out.Width = 0
	}
	if out.Height < 0 {
		out.Y = r.Y + r.Height/2
		out.Height = 0
	}
	return out
}

// Scale multiplies the region's coordinates and dimensions by f.
func (r Region) Scale(f float64) Region {
	return Region{X: r.X * f, Y: r.Y * f, Width: r.Width * f, Height: r.Height * f}
}

// Rect converts the region to an image.Rectangle, rounding half away from zero.
func (r Region) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.MaxX())),
		int(math.Round(r.MaxY())),
	)
}

// FromRect converts an image.Rectangle to a Region.
func FromRect(rect image.Rectangle) Region {
	return Region{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}
