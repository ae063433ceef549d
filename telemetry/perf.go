package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one stage of a driver tick. Phases run in declaration order.
type Phase uint8

const (
	PhasePacing    Phase = iota // Waiting on the clock
	PhaseInput                  // Polling controls
	PhaseStep                   // Arena step: physics, decisions, collisions
	PhaseObservers              // Report fan-out, including drawing

	NumPhases = int(PhaseObservers) + 1
)

var phaseNames = [NumPhases]string{"pacing", "input", "step", "observers"}

func (p Phase) String() string {
	if int(p) < NumPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// Phases returns every tick phase in execution order.
func Phases() []Phase {
	return []Phase{PhasePacing, PhaseInput, PhaseStep, PhaseObservers}
}

type tickSample struct {
	total  time.Duration
	phases [NumPhases]time.Duration
}

// PerfCollector times driver ticks phase by phase over a rolling window of
// the most recent ticks. A nil collector ignores every call.
type PerfCollector struct {
	now func() time.Time

	window []tickSample
	next   int
	count  int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool

	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector keeps the last window ticks; values below 1 mean 60.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		now:    time.Now,
		window: make([]tickSample, window),
	}
}

// StartTick begins a tick.
func (p *PerfCollector) StartTick() {
	if p == nil {
		return
	}
	p.tickStart = p.now()
	p.cur = tickSample{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and opens ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	if p == nil || int(ph) >= NumPhases {
		return
	}
	now := p.now()
	p.closePhase(now)
	p.phase = ph
	p.phaseStart = now
	p.inPhase = true
}

// EndTick closes the running phase and stores the tick in the window.
func (p *PerfCollector) EndTick() {
	if p == nil {
		return
	}
	now := p.now()
	p.closePhase(now)
	p.cur.total = now.Sub(p.tickStart)

	p.window[p.next] = p.cur
	p.next = (p.next + 1) % len(p.window)
	p.count = min(p.count+1, len(p.window))
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
		p.inPhase = false
	}
}

// RecordFrame marks a drawn frame; the gap to the previous one gives FPS.
func (p *PerfCollector) RecordFrame() {
	if p == nil {
		return
	}
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// SampleCount returns the number of ticks in the window.
func (p *PerfCollector) SampleCount() int {
	if p == nil {
		return 0
	}
	return p.count
}

// PerfStats summarizes the window.
type PerfStats struct {
	Ticks          int
	AvgTick        time.Duration
	MinTick        time.Duration
	MaxTick        time.Duration
	TicksPerSecond float64

	PhaseAvg [NumPhases]time.Duration
	PhasePct [NumPhases]float64 // Share of the average tick, 0-100

	Frame time.Duration // Last gap between drawn frames
	FPS   float64
}

// Stats aggregates the window. Phase shares are relative to the average
// tick, so time outside any phase leaves them summing below 100.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil {
		return PerfStats{}
	}

	s := PerfStats{Ticks: p.count, Frame: p.frame}
	if p.frame > 0 {
		s.FPS = float64(time.Second) / float64(p.frame)
	}
	if p.count == 0 {
		return s
	}

	var total time.Duration
	var phaseTotal [NumPhases]time.Duration
	for i, tick := range p.window[:p.count] {
		total += tick.total
		if i == 0 || tick.total < s.MinTick {
			s.MinTick = tick.total
		}
		s.MaxTick = max(s.MaxTick, tick.total)
		for ph, d := range tick.phases {
			phaseTotal[ph] += d
		}
	}

	n := time.Duration(p.count)
	s.AvgTick = total / n
	for ph := range phaseTotal {
		s.PhaseAvg[ph] = phaseTotal[ph] / n
		if s.AvgTick > 0 {
			s.PhasePct[ph] = 100 * float64(s.PhaseAvg[ph]) / float64(s.AvgTick)
		}
	}
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}
	return s
}

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	attrs := []any{
		"ticks", s.Ticks,
		"avg_tick_us", s.AvgTick.Microseconds(),
		"max_tick_us", s.MaxTick.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, ph := range Phases() {
		attrs = append(attrs, ph.String()+"_pct", float64(int(s.PhasePct[ph]*10))/10)
	}
	slog.Info("perf", attrs...)
}

// PerfRow is one perf.csv record.
type PerfRow struct {
	Generation   int     `csv:"generation"`
	Ticks        int     `csv:"ticks"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	FPS          float64 `csv:"fps"`
	PacingPct    float64 `csv:"pacing_pct"`
	InputPct     float64 `csv:"input_pct"`
	StepPct      float64 `csv:"step_pct"`
	ObserversPct float64 `csv:"observers_pct"`
}

// Row flattens the stats for perf.csv.
func (s PerfStats) Row(generation int) PerfRow {
	return PerfRow{
		Generation:   generation,
		Ticks:        s.Ticks,
		AvgTickUS:    s.AvgTick.Microseconds(),
		MinTickUS:    s.MinTick.Microseconds(),
		MaxTickUS:    s.MaxTick.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		FPS:          s.FPS,
		PacingPct:    s.PhasePct[PhasePacing],
		InputPct:     s.PhasePct[PhaseInput],
		StepPct:      s.PhasePct[PhaseStep],
		ObserversPct: s.PhasePct[PhaseObservers],
	}
}
