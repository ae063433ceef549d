package arena

import "math"

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
// World Y grows downward.
type Rect struct {
	X, Y, W, H float64
}

// Right returns the rectangle's right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the rectangle's bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Overlaps reports whether two rectangles share interior area.
// Touching edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Shape is the collision outline of an agent.
type Shape interface {
	Overlaps(r Rect) bool
	Bounds() Rect
}

// Box is a bounding-box collision shape.
type Box struct {
	Rect
}

// Bounds returns the box itself.
func (b Box) Bounds() Rect { return b.Rect }

// Ellipse is an axis-aligned ellipse inscribed in a sprite box.
type Ellipse struct {
	CX, CY float64 // Center
	RX, RY float64 // Radii
}

// EllipseInBox returns the ellipse inscribed in r.
func EllipseInBox(r Rect) Ellipse {
	return Ellipse{
		CX: r.X + r.W/2,
		CY: r.Y + r.H/2,
		RX: r.W / 2,
		RY: r.H / 2,
	}
}

// Bounds returns the ellipse's bounding box.
func (e Ellipse) Bounds() Rect {
	return Rect{X: e.CX - e.RX, Y: e.CY - e.RY, W: 2 * e.RX, H: 2 * e.RY}
}

// Overlaps tests the ellipse against a rectangle exactly.
// Scaling both axes by the radii turns the ellipse into a unit circle and
// keeps the rectangle axis-aligned, so the nearest-point test applies.
func (e Ellipse) Overlaps(r Rect) bool {
	if e.RX <= 0 || e.RY <= 0 {
		return false
	}
	minX := (r.X - e.CX) / e.RX
	maxX := (r.Right() - e.CX) / e.RX
	minY := (r.Y - e.CY) / e.RY
	maxY := (r.Bottom() - e.CY) / e.RY

	nx := clamp(0, minX, maxX)
	ny := clamp(0, minY, maxY)
	return nx*nx+ny*ny < 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
