package telemetry

import "github.com/pthm-cable/flappy/arena"

// LifetimeStats records how one agent's run ended.
type LifetimeStats struct {
	AgentID    string
	Generation int
	Ticks      int // Ticks survived
	Score      int // Score when the agent died
	Cause      arena.Reason
	DeathY     float64
}

// LifetimeSummary aggregates the deaths of one generation.
type LifetimeSummary struct {
	Deaths       int
	Collisions   int
	Boundaries   int
	MeanLifespan float64
	MaxLifespan  int
}

// LifetimeTracker collects agent deaths from tick reports. It starts over
// whenever the generation changes.
type LifetimeTracker struct {
	generation int
	lastTick   int
	deaths     []LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{}
}

// Observe records the deaths in r. Repeated reports of a tick already seen
// are ignored.
func (lt *LifetimeTracker) Observe(r arena.Report) {
	if r.Generation != lt.generation {
		lt.generation = r.Generation
		lt.lastTick = -1
		lt.deaths = lt.deaths[:0]
	}
	if r.Tick <= lt.lastTick {
		return
	}
	lt.lastTick = r.Tick

	for _, d := range r.Deaths {
		lt.deaths = append(lt.deaths, LifetimeStats{
			AgentID:    d.ID,
			Generation: r.Generation,
			Ticks:      d.Age,
			Score:      d.Score,
			Cause:      d.Cause,
			DeathY:     d.Y,
		})
	}
}

// Get returns the recorded death of an agent, or nil.
func (lt *LifetimeTracker) Get(agentID string) *LifetimeStats {
	for i := range lt.deaths {
		if lt.deaths[i].AgentID == agentID {
			return &lt.deaths[i]
		}
	}
	return nil
}

// Summary aggregates the current generation's deaths.
func (lt *LifetimeTracker) Summary() LifetimeSummary {
	var s LifetimeSummary
	total := 0
	for _, d := range lt.deaths {
		s.Deaths++
		switch d.Cause {
		case arena.CreditCollision:
			s.Collisions++
		case arena.CreditBoundary:
			s.Boundaries++
		}
		total += d.Ticks
		s.MaxLifespan = max(s.MaxLifespan, d.Ticks)
	}
	if s.Deaths > 0 {
		s.MeanLifespan = float64(total) / float64(s.Deaths)
	}
	return s
}
