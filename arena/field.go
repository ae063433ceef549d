package arena

import (
	"math/rand"

	"github.com/pthm-cable/flappy/config"
)

// FieldParams holds obstacle geometry and spawn placement.
type FieldParams struct {
	Velocity     float64
	Width        float64
	Length       float64
	GapHalf      float64
	GapCenterMin float64
	GapCenterMax float64
	InitialX     float64
	SpawnSpacing float64
}

// NewFieldParams builds field parameters from config.
func NewFieldParams(cfg *config.Config) FieldParams {
	return FieldParams{
		Velocity:     cfg.Obstacle.Velocity,
		Width:        cfg.Obstacle.Width,
		Length:       cfg.Obstacle.Length,
		GapHalf:      cfg.Derived.GapHalf,
		GapCenterMin: cfg.Obstacle.GapCenterMin,
		GapCenterMax: cfg.Obstacle.GapCenterMax,
		InitialX:     cfg.Obstacle.InitialX,
		SpawnSpacing: cfg.Obstacle.SpawnSpacing,
	}
}

// ObstacleField is the ordered obstacle sequence. Obstacles spawn at the
// right and all move at the same velocity, so slice order is left-to-right.
type ObstacleField struct {
	params    FieldParams
	rng       *rand.Rand
	obstacles []*Obstacle
}

// NewObstacleField creates a field holding a single obstacle at the initial offset.
func NewObstacleField(params FieldParams, rng *rand.Rand) *ObstacleField {
	f := &ObstacleField{
		params:    params,
		rng:       rng,
		obstacles: make([]*Obstacle, 0, 4),
	}
	f.spawnAt(params.InitialX)
	return f
}

// Len returns the number of obstacles.
func (f *ObstacleField) Len() int { return len(f.obstacles) }

// At returns the i-th obstacle from the left.
func (f *ObstacleField) At(i int) *Obstacle { return f.obstacles[i] }

// Obstacles returns the live sequence. Callers must not modify it.
func (f *ObstacleField) Obstacles() []*Obstacle { return f.obstacles }

// Tick flags obstacles whose right edge has left the world, then advances
// every obstacle. The flags use positions from before the move.
func (f *ObstacleField) Tick() []*Obstacle {
	var removals []*Obstacle
	for _, o := range f.obstacles {
		if o.RightEdge() < 0 {
			removals = append(removals, o)
		}
		o.Advance(f.params.Velocity)
	}
	return removals
}

// MaybeSpawn appends one obstacle when triggered. Callers invoke it once per
// pass event; the obstacle's Passed flag flips only once, which keeps spawns
// one per event regardless of how many agents cleared it.
func (f *ObstacleField) MaybeSpawn(triggered bool) *Obstacle {
	if !triggered {
		return nil
	}
	if len(f.obstacles) == 0 {
		return f.spawnAt(f.params.InitialX)
	}
	rightmost := f.obstacles[len(f.obstacles)-1]
	return f.spawnAt(rightmost.X + f.params.SpawnSpacing)
}

// Remove deletes the given obstacles, preserving order.
func (f *ObstacleField) Remove(removals []*Obstacle) {
	if len(removals) == 0 {
		return
	}
	drop := make(map[*Obstacle]bool, len(removals))
	for _, o := range removals {
		drop[o] = true
	}
	kept := f.obstacles[:0]
	for _, o := range f.obstacles {
		if !drop[o] {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(f.obstacles); i++ {
		f.obstacles[i] = nil
	}
	f.obstacles = kept
}

func (f *ObstacleField) spawnAt(x float64) *Obstacle {
	p := f.params
	center := p.GapCenterMin
	if p.GapCenterMax > p.GapCenterMin {
		center += f.rng.Float64() * (p.GapCenterMax - p.GapCenterMin)
	}
	o := &Obstacle{
		X:         x,
		GapCenter: center,
		GapHalf:   p.GapHalf,
		Width:     p.Width,
		Length:    p.Length,
	}
	f.obstacles = append(f.obstacles, o)
	return o
}
