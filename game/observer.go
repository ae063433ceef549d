package game

import "github.com/pthm-cable/flappy/arena"

// Observer receives every tick report.
type Observer interface {
	Observe(r arena.Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r arena.Report)

// Observe calls f.
func (f ObserverFunc) Observe(r arena.Report) { f(r) }
