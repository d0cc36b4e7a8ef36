package vision

import (
	"fmt"
	"image"
)

// Region is a rectangle in screen coordinates. A zero-area region is valid
// and matches nothing. Negative W or H in a literal count as zero; NewRegion
// normalizes them.
type Region struct {
	X, Y int
	W, H int
}

// NewRegion returns a region with negative dimensions clamped to zero.
func NewRegion(x, y, w, h int) Region {
	return Region{X: x, Y: y, W: max(w, 0), H: max(h, 0)}
}

// FromCorners builds the region spanned by two opposite corners in any order.
func FromCorners(x1, y1, x2, y2 int) Region {
	return NewRegion(min(x1, x2), min(y1, y2), abs(x2-x1), abs(y2-y1))
}

// RegionFromRect converts an image.Rectangle (canonicalised first).
func RegionFromRect(r image.Rectangle) Region {
	r = r.Canon()
	return NewRegion(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+max(r.W, 0), r.Y+max(r.H, 0))
}

func (r Region) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Region) Area() int { return max(r.W, 0) * max(r.H, 0) }

// Center returns the midpoint, rounded toward the origin.
func (r Region) Center() image.Point {
	return image.Pt(r.X+r.W/2, r.Y+r.H/2)
}

// Contains reports whether the point lies inside r (right/bottom edges excluded).
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// ContainsRegion reports whether o lies entirely inside r.
func (r Region) ContainsRegion(o Region) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.W <= r.X+r.W && o.Y+o.H <= r.Y+r.H
}

func (r Region) Intersects(o Region) bool {
	_, ok := r.Intersection(o)
	return ok
}

// Intersection returns the overlapping area; ok is false when it is empty.
func (r Region) Intersection(o Region) (Region, bool) {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+max(r.W, 0), o.X+max(o.W, 0))
	y2 := min(r.Y+max(r.H, 0), o.Y+max(o.H, 0))
	if x1 >= x2 || y1 >= y2 {
		return Region{}, false
	}
	return Region{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}, true
}

// Overlap is the intersection-over-union of r and o in [0,1]. Disjoint or
// degenerate regions yield 0.
func (r Region) Overlap(o Region) float64 {
	in, ok := r.Intersection(o)
	if !ok {
		return 0
	}
	inter := float64(in.Area())
	union := float64(r.Area()) + float64(o.Area()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Offset moves the region by (dx, dy).
func (r Region) Offset(dx, dy int) Region {
	r.X += dx
	r.Y += dy
	return r
}

// Expand grows the region by amount on every side. Negative amounts shrink
// it; dimensions stop at zero.
func (r Region) Expand(amount int) Region {
	return NewRegion(r.X-amount, r.Y-amount, r.W+2*amount, r.H+2*amount)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
