package arena

import (
	"github.com/pthm-cable/flappy/components"
	"github.com/pthm-cable/flappy/config"
)

// Body holds the physical constants shared by every agent.
type Body struct {
	StartX, StartY   float64
	Gravity          float64
	JumpVelocity     float64
	TerminalVelocity float64 // 0 = unclamped
	Width, Height    float64
	Elliptical       bool
}

// NewBody builds agent physics from config.
func NewBody(cfg *config.Config) Body {
	return Body{
		StartX:           cfg.Agent.StartX,
		StartY:           cfg.Agent.StartY,
		Gravity:          cfg.Agent.Gravity,
		JumpVelocity:     cfg.Agent.JumpVelocity,
		TerminalVelocity: cfg.Agent.TerminalVelocity,
		Width:            cfg.Agent.Width,
		Height:           cfg.Agent.Height,
		Elliptical:       cfg.Agent.Shape == "ellipse",
	}
}

// Advance applies one tick of gravity then moves the agent by its new velocity.
func (b Body) Advance(pos *components.Position, vel *components.Velocity) {
	vel.Y += b.Gravity
	if b.TerminalVelocity > 0 && vel.Y > b.TerminalVelocity {
		vel.Y = b.TerminalVelocity
	}
	pos.Y += vel.Y
}

// Jump replaces the velocity with the jump velocity. It does not add an impulse.
func (b Body) Jump(vel *components.Velocity) {
	vel.Y = b.JumpVelocity
}

// OutOfBounds reports whether the sprite touches the floor or has left the top of the world.
func (b Body) OutOfBounds(pos components.Position, floorY float64) bool {
	return pos.Y+b.Height >= floorY || pos.Y < 0
}

// Box returns the agent's sprite box.
func (b Body) Box(pos components.Position) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: b.Width, H: b.Height}
}

// Shape returns the collision outline for an agent at pos.
func (b Body) Shape(pos components.Position) Shape {
	box := b.Box(pos)
	if b.Elliptical {
		return EllipseInBox(box)
	}
	return Box{Rect: box}
}
