package game

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pthm-cable/flappy/arena"
)

// PlaySession evaluates a single decision function, one run at a time.
// A finished run waits for a restart (new run) or quit instead of ending.
type PlaySession struct {
	driver   *Driver
	clock    Clock
	controls Controls
	id       string
	decide   arena.DecisionFunction
}

// NewPlaySession creates a single-agent session. The clock and controls
// must be the ones the driver was built with so pacing and input stay
// consistent between running and waiting.
func NewPlaySession(driver *Driver, clock Clock, controls Controls, id string, decide arena.DecisionFunction) *PlaySession {
	return &PlaySession{
		driver:   driver,
		clock:    clock,
		controls: controls,
		id:       id,
		decide:   decide,
	}
}

// Run plays until quit or cancellation and returns every run that finished.
// Runs abandoned by a restart are not included.
func (p *PlaySession) Run(ctx context.Context) ([]Result, error) {
	var results []Result
	decisions := map[string]arena.DecisionFunction{p.id: p.decide}

	for {
		res, err := p.driver.RunGeneration(ctx, decisions)
		switch {
		case errors.Is(err, ErrRestart):
			continue
		case errors.Is(err, ErrAborted):
			return results, nil
		case err != nil:
			return results, err
		}

		results = append(results, res)
		slog.Info("run finished",
			"run", res.Generation,
			"score", res.Score,
			"ticks", res.Ticks,
			"fitness", res.Fitness[p.id],
			"outcome", res.Outcome,
		)

		restart, err := p.awaitRestart(ctx)
		if err != nil || !restart {
			return results, nil
		}
	}
}

// awaitRestart keeps reporting the final frame until restart or quit.
func (p *PlaySession) awaitRestart(ctx context.Context) (bool, error) {
	final := p.driver.LastReport()
	for {
		if err := p.clock.Wait(ctx); err != nil {
			return false, err
		}
		sig := p.controls.Poll()
		if sig.Quit {
			return false, nil
		}
		if sig.Restart {
			return true, nil
		}
		p.driver.Notify(final)
	}
}
