// Package game runs generations of the flappy arena: it owns the population,
// paces ticks, polls controls and fans reports out to observers.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/telemetry"
)

var (
	// ErrMissingDecisionFunction means an agent id has no usable decision
	// function. The generation does not start.
	ErrMissingDecisionFunction = errors.New("missing decision function")

	// ErrAborted means the generation was abandoned and no fitness is reported.
	ErrAborted = errors.New("generation aborted")

	// ErrQuit and ErrRestart say which signal aborted the generation.
	ErrQuit    = fmt.Errorf("%w: quit", ErrAborted)
	ErrRestart = fmt.Errorf("%w: restart", ErrAborted)
)

// Result is the outcome of one finished generation.
type Result struct {
	Generation int
	Fitness    map[string]float64
	Breakdown  map[string]Breakdown
	Score      int
	Ticks      int
	MaxAge     int
	Faults     int
	Outcome    arena.Outcome
	Elapsed    time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the tick pacing. Defaults to unpaced.
func WithClock(c Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithControls sets the input source. Defaults to NoControls.
func WithControls(c Controls) Option {
	return func(d *Driver) { d.controls = c }
}

// WithObserver adds a report observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

// WithPerf times each tick phase into p.
func WithPerf(p *telemetry.PerfCollector) Option {
	return func(d *Driver) { d.perf = p }
}

// Driver runs generations one after another. It is not safe for concurrent use.
type Driver struct {
	settings  arena.Settings
	rng       *rand.Rand
	clock     Clock
	controls  Controls
	observers []Observer
	perf      *telemetry.PerfCollector

	generation int
	last       arena.Report
}

// NewDriver creates a driver. rng seeds every obstacle field it builds.
func NewDriver(settings arena.Settings, rng *rand.Rand, opts ...Option) *Driver {
	d := &Driver{
		settings: settings,
		rng:      rng,
		clock:    Unpaced{},
		controls: NoControls{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Generation returns the number of generations started so far.
func (d *Driver) Generation() int { return d.generation }

// LastReport returns the most recent tick report.
func (d *Driver) LastReport() arena.Report { return d.last }

// AddObserver registers another report observer.
func (d *Driver) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// Notify sends r to every observer.
func (d *Driver) Notify(r arena.Report) {
	d.last = r
	for _, o := range d.observers {
		o.Observe(r)
	}
}

// RunGeneration simulates one generation with one agent per entry in
// decisions and returns every agent's final fitness, including agents that
// died along the way. Agents enter the arena in sorted id order.
//
// A nil decision function fails with ErrMissingDecisionFunction before
// anything starts. Cancelling ctx or a quit/restart signal abandons the
// generation with an error wrapping ErrAborted.
func (d *Driver) RunGeneration(ctx context.Context, decisions map[string]arena.DecisionFunction) (Result, error) {
	ids := make([]string, 0, len(decisions))
	for id, fn := range decisions {
		if fn == nil {
			return Result{}, fmt.Errorf("agent %q: %w", id, ErrMissingDecisionFunction)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	d.generation++
	gen := d.generation

	entrants := make([]arena.Entrant, len(ids))
	for i, id := range ids {
		entrants[i] = arena.Entrant{ID: id, Decide: decisions[id]}
	}

	acc := NewAccumulator(ids)
	a, err := arena.New(d.settings, gen, entrants, acc, d.rng)
	if err != nil {
		return Result{}, fmt.Errorf("generation %d: %w", gen, err)
	}

	start := time.Now()
	r := a.Report()
	d.Notify(r)
	for !r.Terminal {
		d.perf.StartTick()
		d.perf.StartPhase(telemetry.PhasePacing)
		if err := d.clock.Wait(ctx); err != nil {
			a.Abort()
			d.Notify(a.Report())
			return Result{Generation: gen, Outcome: arena.Aborted}, fmt.Errorf("generation %d: %w: %w", gen, ErrAborted, err)
		}

		d.perf.StartPhase(telemetry.PhaseInput)
		sig := d.controls.Poll()
		if sig.Quit || sig.Restart {
			a.Abort()
			d.Notify(a.Report())
			abort := ErrRestart
			if sig.Quit {
				abort = ErrQuit
			}
			slog.Info("generation abandoned", "generation", gen, "tick", a.Tick(), "reason", abort)
			return Result{Generation: gen, Outcome: arena.Aborted}, fmt.Errorf("generation %d: %w", gen, abort)
		}

		d.perf.StartPhase(telemetry.PhaseStep)
		r = a.Step()
		d.perf.StartPhase(telemetry.PhaseObservers)
		d.Notify(r)
		d.perf.EndTick()
	}

	return Result{
		Generation: gen,
		Fitness:    acc.Fitness(),
		Breakdown:  acc.Breakdowns(),
		Score:      r.Score,
		Ticks:      r.Tick,
		MaxAge:     r.MaxAge,
		Faults:     r.Faults,
		Outcome:    r.Outcome,
		Elapsed:    time.Since(start),
	}, nil
}
