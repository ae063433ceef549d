package arena

// Obstacle is a pipe pair: a top rectangle hanging from above and a bottom
// rectangle rising from below, separated by a gap.
type Obstacle struct {
	X         float64 // Left edge
	GapCenter float64
	GapHalf   float64
	Width     float64
	Length    float64 // Height of each rectangle
	Passed    bool
}

// Advance scrolls the obstacle left by dx.
func (o *Obstacle) Advance(dx float64) {
	o.X -= dx
}

// GapTop is the bottom edge of the top rectangle.
func (o *Obstacle) GapTop() float64 { return o.GapCenter - o.GapHalf }

// GapBottom is the top edge of the bottom rectangle.
func (o *Obstacle) GapBottom() float64 { return o.GapCenter + o.GapHalf }

// RightEdge returns the obstacle's right edge.
func (o *Obstacle) RightEdge() float64 { return o.X + o.Width }

// TopRect returns the upper barrier.
func (o *Obstacle) TopRect() Rect {
	return Rect{X: o.X, Y: o.GapTop() - o.Length, W: o.Width, H: o.Length}
}

// BottomRect returns the lower barrier.
func (o *Obstacle) BottomRect() Rect {
	return Rect{X: o.X, Y: o.GapBottom(), W: o.Width, H: o.Length}
}

// CollidesWith reports whether the shape overlaps either barrier.
func (o *Obstacle) CollidesWith(s Shape) bool {
	b := s.Bounds()
	// Cheap reject before the exact test
	if b.Right() <= o.X || b.X >= o.RightEdge() {
		return false
	}
	return s.Overlaps(o.TopRect()) || s.Overlaps(o.BottomRect())
}
