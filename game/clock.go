package game

import (
	"context"
	"time"
)

// Clock paces the tick loop. The simulation is step based, so a clock only
// decides how fast ticks happen in wall time, never how far they advance.
type Clock interface {
	Wait(ctx context.Context) error
	Stop()
}

// NewClock returns a ticker clock at rate ticks per second, or an unpaced
// clock when rate is zero or negative.
func NewClock(rate int) Clock {
	if rate <= 0 {
		return Unpaced{}
	}
	return &TickerClock{ticker: time.NewTicker(time.Second / time.Duration(rate))}
}

// TickerClock waits on a time.Ticker.
type TickerClock struct {
	ticker *time.Ticker
}

// Wait blocks until the next tick or until ctx is done.
func (c *TickerClock) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (c *TickerClock) Stop() { c.ticker.Stop() }

// Unpaced runs ticks back to back. Graphical runs use it as well, since the
// window's target FPS already paces frames.
type Unpaced struct{}

// Wait only reports cancellation.
func (Unpaced) Wait(ctx context.Context) error { return ctx.Err() }

// Stop is a no-op.
func (Unpaced) Stop() {}
