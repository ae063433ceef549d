package game

import (
	"github.com/pthm-cable/flappy/arena"
)

// Breakdown splits an agent's fitness by cause.
type Breakdown struct {
	Survival  float64 `json:"survival"`
	Milestone float64 `json:"milestone"`
	Collision float64 `json:"collision"`
	Boundary  float64 `json:"boundary"`
}

// Total sums all components.
func (b Breakdown) Total() float64 {
	return b.Survival + b.Milestone + b.Collision + b.Boundary
}

// Accumulator holds the running fitness of every agent in a generation.
// Agents keep their value after death; only terminal penalties arrive then.
type Accumulator struct {
	totals    map[string]float64
	breakdown map[string]*Breakdown
}

// NewAccumulator zeroes a fitness entry for each id.
func NewAccumulator(ids []string) *Accumulator {
	acc := &Accumulator{
		totals:    make(map[string]float64, len(ids)),
		breakdown: make(map[string]*Breakdown, len(ids)),
	}
	for _, id := range ids {
		acc.totals[id] = 0
		acc.breakdown[id] = &Breakdown{}
	}
	return acc
}

// Credit implements arena.FitnessLedger.
func (acc *Accumulator) Credit(id string, delta float64, reason arena.Reason) {
	acc.totals[id] += delta
	b, ok := acc.breakdown[id]
	if !ok {
		b = &Breakdown{}
		acc.breakdown[id] = b
	}
	switch reason {
	case arena.CreditSurvival:
		b.Survival += delta
	case arena.CreditMilestone:
		b.Milestone += delta
	case arena.CreditCollision:
		b.Collision += delta
	case arena.CreditBoundary:
		b.Boundary += delta
	}
}

// Fitness returns a copy of the current totals.
func (acc *Accumulator) Fitness() map[string]float64 {
	out := make(map[string]float64, len(acc.totals))
	for id, v := range acc.totals {
		out[id] = v
	}
	return out
}

// Breakdowns returns a copy of the per-cause split.
func (acc *Accumulator) Breakdowns() map[string]Breakdown {
	out := make(map[string]Breakdown, len(acc.breakdown))
	for id, b := range acc.breakdown {
		out[id] = *b
	}
	return out
}
