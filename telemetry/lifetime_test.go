package telemetry

import (
	"testing"

	"github.com/pthm-cable/flappy/arena"
)

func TestLifetimeTrackerSummary(t *testing.T) {
	lt := NewLifetimeTracker()

	lt.Observe(arena.Report{Generation: 1, Tick: 0})
	lt.Observe(arena.Report{Generation: 1, Tick: 10, Deaths: []arena.Death{
		{ID: "a", Age: 10, Cause: arena.CreditCollision},
		{ID: "b", Age: 10, Cause: arena.CreditBoundary},
	}})
	lt.Observe(arena.Report{Generation: 1, Tick: 30, Deaths: []arena.Death{
		{ID: "c", Age: 30, Score: 2, Cause: arena.CreditCollision},
	}})

	s := lt.Summary()
	if s.Deaths != 3 || s.Collisions != 2 || s.Boundaries != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.MaxLifespan != 30 {
		t.Errorf("expected max lifespan 30, got %d", s.MaxLifespan)
	}
	if want := 50.0 / 3; s.MeanLifespan != want {
		t.Errorf("expected mean lifespan %v, got %v", want, s.MeanLifespan)
	}
	if d := lt.Get("c"); d == nil || d.Score != 2 {
		t.Errorf("expected death record for c, got %+v", d)
	}
}

func TestLifetimeTrackerIgnoresRepeatedFrames(t *testing.T) {
	lt := NewLifetimeTracker()
	final := arena.Report{Generation: 1, Tick: 5, Deaths: []arena.Death{{ID: "a", Age: 5}}}

	for i := 0; i < 4; i++ {
		lt.Observe(final)
	}
	if n := lt.Summary().Deaths; n != 1 {
		t.Errorf("a re-sent frame must be counted once, got %d deaths", n)
	}
}

func TestLifetimeTrackerResetsPerGeneration(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Observe(arena.Report{Generation: 1, Tick: 5, Deaths: []arena.Death{{ID: "a", Age: 5}}})
	lt.Observe(arena.Report{Generation: 2, Tick: 0})

	if s := lt.Summary(); s.Deaths != 0 {
		t.Errorf("expected a clean slate for generation 2, got %+v", s)
	}
}
