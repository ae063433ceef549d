package arena

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/flappy/components"
	"github.com/pthm-cable/flappy/config"
)

// ledger records every credit for inspection.
type ledger struct {
	totals  map[string]float64
	credits []credit
}

type credit struct {
	id     string
	delta  float64
	reason Reason
}

func newLedger() *ledger {
	return &ledger{totals: make(map[string]float64)}
}

func (l *ledger) Credit(id string, delta float64, reason Reason) {
	l.totals[id] += delta
	l.credits = append(l.credits, credit{id: id, delta: delta, reason: reason})
}

func (l *ledger) byReason(reason Reason) []credit {
	var out []credit
	for _, c := range l.credits {
		if c.reason == reason {
			out = append(out, c)
		}
	}
	return out
}

func testSettings(t *testing.T) Settings {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	return NewSettings(cfg)
}

// hover returns settings where agents do not fall and every obstacle's gap
// is centered on the start height, so agents live until something moves them.
func hover(t *testing.T) Settings {
	s := testSettings(t)
	s.Body.Gravity = 0
	center := s.Body.StartY + s.Body.Height/2
	s.Field.GapCenterMin = center
	s.Field.GapCenterMax = center
	return s
}

func constant(v float64) DecisionFunction {
	return DecisionFunc(func([]float64) ([]float64, error) {
		return []float64{v}, nil
	})
}

func mustArena(t *testing.T, s Settings, l FitnessLedger, entrants ...Entrant) *Arena {
	t.Helper()
	a, err := New(s, 1, entrants, l, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRejectsNilDecision(t *testing.T) {
	_, err := New(testSettings(t), 1, []Entrant{{ID: "a", Decide: nil}}, newLedger(), rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrNilDecision) {
		t.Fatalf("expected ErrNilDecision, got %v", err)
	}
}

func TestEmptyPopulationIsTerminal(t *testing.T) {
	a := mustArena(t, testSettings(t), newLedger())
	r := a.Step()
	if !r.Terminal || r.Outcome != Extinct {
		t.Errorf("expected extinct terminal report, got terminal=%v outcome=%v", r.Terminal, r.Outcome)
	}
	if r.Tick != 0 {
		t.Errorf("finished arena should not tick, got tick %d", r.Tick)
	}
}

func TestFreeFallDiesOnFloor(t *testing.T) {
	// From y=300 with g=1 and no jumps, y after n ticks is 300 + n(n+1)/2.
	// The 24-unit sprite reaches the floor at 600 when n(n+1)/2 >= 276, so n=23.
	s := testSettings(t)
	l := newLedger()
	a := mustArena(t, s, l, Entrant{ID: "solo", Decide: constant(0)})

	var r Report
	for i := 0; i < 100 && !r.Terminal; i++ {
		r = a.Step()
	}

	if r.Tick != 23 {
		t.Errorf("expected death on tick 23, got %d", r.Tick)
	}
	if r.Outcome != Extinct {
		t.Errorf("expected extinct, got %v", r.Outcome)
	}
	if len(r.Deaths) != 1 || r.Deaths[0].Cause != CreditBoundary {
		t.Fatalf("expected one boundary death, got %+v", r.Deaths)
	}
	if r.Deaths[0].Y != 576 {
		t.Errorf("expected death height 576, got %v", r.Deaths[0].Y)
	}

	penalties := l.byReason(CreditBoundary)
	if len(penalties) != 1 || penalties[0].delta != -2 {
		t.Errorf("expected one -2 boundary penalty, got %+v", penalties)
	}
	if got := len(l.byReason(CreditSurvival)); got != 23 {
		t.Errorf("expected 23 survival credits, got %d", got)
	}
}

func TestFreeFallDiesAfterLastDecision(t *testing.T) {
	s := testSettings(t)
	calls := 0
	counting := DecisionFunc(func([]float64) ([]float64, error) {
		calls++
		return []float64{0}, nil
	})
	a := mustArena(t, s, newLedger(), Entrant{ID: "solo", Decide: counting})
	for i := 0; i < 100; i++ {
		if a.Step().Terminal {
			break
		}
	}
	// Decisions run before the collision pass, so the dying tick still decides.
	if calls != 23 {
		t.Errorf("expected 23 decisions, got %d", calls)
	}
	for i := 0; i < 3; i++ {
		a.Step()
	}
	if calls != 23 {
		t.Errorf("dead agents must not be dispatched, got %d calls", calls)
	}
}

func TestJumpResetsVelocity(t *testing.T) {
	s := testSettings(t)
	l := newLedger()
	a := mustArena(t, s, l, Entrant{ID: "hopper", Decide: constant(1)})

	r := a.Step()
	if r.Agents[0].VY != s.Body.JumpVelocity {
		t.Errorf("expected velocity %v after jump, got %v", s.Body.JumpVelocity, r.Agents[0].VY)
	}
	// Advance uses the jump velocity plus gravity, then the jump resets it again.
	r = a.Step()
	if r.Agents[0].VY != s.Body.JumpVelocity {
		t.Errorf("expected velocity %v after second jump, got %v", s.Body.JumpVelocity, r.Agents[0].VY)
	}
	if want := s.Body.StartY + s.Body.Gravity + (s.Body.JumpVelocity + s.Body.Gravity); r.Agents[0].Y != want {
		t.Errorf("expected y %v, got %v", want, r.Agents[0].Y)
	}
}

func TestJumpThresholdIsStrict(t *testing.T) {
	s := testSettings(t)
	a := mustArena(t, s, newLedger(), Entrant{ID: "edge", Decide: constant(0.5)})
	r := a.Step()
	if r.Agents[0].Jumped {
		t.Error("output equal to the threshold must not jump")
	}
	if r.Agents[0].VY != s.Body.Gravity {
		t.Errorf("expected free-fall velocity %v, got %v", s.Body.Gravity, r.Agents[0].VY)
	}
}

func TestMalformedOutputIsNoJump(t *testing.T) {
	tests := []struct {
		name string
		fn   DecisionFunction
	}{
		{"empty", DecisionFunc(func([]float64) ([]float64, error) { return nil, nil })},
		{"too long", DecisionFunc(func([]float64) ([]float64, error) { return []float64{1, 1}, nil })},
		{"nan", constant(math.NaN())},
		{"inf", constant(math.Inf(1))},
		{"error", DecisionFunc(func([]float64) ([]float64, error) { return nil, errors.New("boom") })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			a := mustArena(t, s, newLedger(), Entrant{ID: "x", Decide: tt.fn})
			r := a.Step()
			if r.Faults != 1 {
				t.Errorf("expected 1 fault, got %d", r.Faults)
			}
			if r.Agents[0].VY != s.Body.Gravity {
				t.Errorf("expected no jump (vy=%v), got vy=%v", s.Body.Gravity, r.Agents[0].VY)
			}
			if r.Terminal {
				t.Error("a malformed output must not end the generation")
			}
		})
	}
}

func TestObservationUsesReferenceObstacle(t *testing.T) {
	s := testSettings(t)
	var seen []float64
	rec := DecisionFunc(func(obs []float64) ([]float64, error) {
		seen = append(seen[:0], obs...)
		return []float64{0}, nil
	})
	a := mustArena(t, s, newLedger(), Entrant{ID: "r", Decide: rec})
	o := a.Field().At(0)

	a.Step()
	y := s.Body.StartY + s.Body.Gravity
	want := []float64{y, math.Abs(y - o.GapTop()), math.Abs(y - o.GapBottom())}
	if len(seen) != ObservationSize {
		t.Fatalf("expected %d observations, got %d", ObservationSize, len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("obs[%d]: expected %v, got %v", i, want[i], seen[i])
		}
	}
}

func TestReferenceObstacleIsSharedAcrossPopulation(t *testing.T) {
	s := hover(t)
	obs := map[string][][]float64{}
	recorder := func(id string) DecisionFunction {
		return DecisionFunc(func(o []float64) ([]float64, error) {
			obs[id] = append(obs[id], append([]float64(nil), o...))
			return []float64{0}, nil
		})
	}
	a := mustArena(t, s, newLedger(),
		Entrant{ID: "lead", Decide: recorder("lead")},
		Entrant{ID: "trail", Decide: recorder("trail")},
	)

	// Put the trailing agent well behind the lead.
	pos, _, _ := a.birds.Get(a.slots[1].entity)
	pos.X = 60

	for a.Field().Len() < 2 {
		if a.Step().Terminal {
			t.Fatal("population died before the first pass")
		}
	}
	// Give the second obstacle a distinguishable gap that still contains the agents.
	second := a.Field().At(1)
	second.GapCenter -= 50

	switched := 0
	for i := 0; i < 200 && switched == 0; i++ {
		a.Step()
		if a.RefIndex() == 1 {
			switched = a.Tick()
		}
	}
	if switched == 0 {
		t.Fatal("reference index never switched to 1")
	}

	y := s.Body.StartY
	want := []float64{y, math.Abs(y - second.GapTop()), math.Abs(y - second.GapBottom())}
	for _, id := range []string{"lead", "trail"} {
		got := obs[id][switched-1]
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s obs[%d] on switch tick: expected %v, got %v", id, i, want[i], got[i])
			}
		}
		prev := obs[id][switched-2]
		if prev[1] == got[1] {
			t.Errorf("%s: observation did not change on the switch tick", id)
		}
	}
	t.Logf("reference switched on tick %d", switched)
}

func TestPassIncrementsScoreOnceAndRewardsAlive(t *testing.T) {
	s := hover(t)
	l := newLedger()
	a := mustArena(t, s, l,
		Entrant{ID: "a", Decide: constant(0)},
		Entrant{ID: "b", Decide: constant(0)},
	)

	var r Report
	for r.Score == 0 {
		r = a.Step()
		if r.Terminal {
			t.Fatal("terminated before scoring")
		}
	}
	if r.Score != 1 {
		t.Fatalf("expected score 1 after first pass, got %d", r.Score)
	}
	milestones := l.byReason(CreditMilestone)
	if len(milestones) != 2 {
		t.Fatalf("expected a milestone credit per alive agent, got %d", len(milestones))
	}
	for _, m := range milestones {
		if m.delta != 5 {
			t.Errorf("expected milestone 5, got %v", m.delta)
		}
	}
	if a.Field().Len() != 2 {
		t.Errorf("expected exactly one spawn, field has %d obstacles", a.Field().Len())
	}
	if !a.Field().At(0).Passed {
		t.Error("first obstacle should be marked passed")
	}

	// Passing flags never flip back and score never double counts.
	for i := 0; i < 5; i++ {
		r = a.Step()
	}
	if r.Score != 1 {
		t.Errorf("score should stay at 1 until the next obstacle, got %d", r.Score)
	}
}

func TestSpawnAfterPassLandsAtFixedX(t *testing.T) {
	a := mustArena(t, hover(t), newLedger(), Entrant{ID: "a", Decide: constant(0)})

	for a.Score() == 0 {
		if a.Step().Terminal {
			t.Fatal("terminated before scoring")
		}
	}
	// The passed obstacle was at 145 before this tick's move.
	if got := a.Field().At(0).X; got != 140 {
		t.Errorf("expected the passed obstacle at 140, got %v", got)
	}
	if got := a.Field().At(1).X; got != 450 {
		t.Errorf("expected the new obstacle at 450, got %v", got)
	}
}

func TestSimultaneousPassesCountAsOneEvent(t *testing.T) {
	s := hover(t)
	l := newLedger()
	a := mustArena(t, s, l, Entrant{ID: "a", Decide: constant(0)})

	// Two unpassed obstacles already behind the agent.
	a.Field().MaybeSpawn(true)
	a.Field().At(0).X = 100
	a.Field().At(1).X = 120

	r := a.Step()
	if r.Terminal {
		t.Fatalf("agent should survive, outcome %v", r.Outcome)
	}
	if !a.Field().At(0).Passed || !a.Field().At(1).Passed {
		t.Error("both obstacles should be marked passed")
	}
	if r.Score != 1 {
		t.Errorf("expected one point for the tick, got %d", r.Score)
	}
	if got := len(l.byReason(CreditMilestone)); got != 1 {
		t.Errorf("expected one milestone credit, got %d", got)
	}
	if a.Field().Len() != 3 {
		t.Fatalf("expected exactly one spawn, field has %d obstacles", a.Field().Len())
	}
	if got := a.Field().At(2).X; got != 115+s.Field.SpawnSpacing {
		t.Errorf("expected spawn at %v, got %v", 115+s.Field.SpawnSpacing, got)
	}
}

func TestDeathPenaltyDependsOnScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  float64
	}{
		{"below five", 4, -2},
		{"at five", 5, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger()
			a := mustArena(t, hover(t), l, Entrant{ID: "a", Decide: constant(0)})
			a.score = tt.score

			pos, _, _ := a.birds.Get(a.slots[0].entity)
			pos.Y = 650

			r := a.Step()
			if r.Alive != 0 || len(r.Deaths) != 1 || r.Deaths[0].Score != tt.score {
				t.Fatalf("expected one death at score %d, got %+v", tt.score, r.Deaths)
			}
			penalties := l.byReason(CreditBoundary)
			if len(penalties) != 1 || penalties[0].delta != tt.want {
				t.Errorf("expected a single penalty of %v, got %+v", tt.want, penalties)
			}
		})
	}
}

func TestScoreCapTerminates(t *testing.T) {
	s := hover(t)
	s.ScoreCap = 1
	a := mustArena(t, s, newLedger(), Entrant{ID: "a", Decide: constant(0)})

	var r Report
	for i := 0; i < 1000 && !r.Terminal; i++ {
		r = a.Step()
		if !r.Terminal && r.Score > s.ScoreCap {
			t.Fatalf("score %d exceeded cap without terminating", r.Score)
		}
	}
	if r.Outcome != ScoreCap {
		t.Fatalf("expected score cap outcome, got %v", r.Outcome)
	}
	if r.Score != 2 {
		t.Errorf("expected to stop when score exceeds 1, got %d", r.Score)
	}
	if r.Alive != 1 {
		t.Errorf("agent should still be alive, got %d", r.Alive)
	}
}

func TestCollisionAndBoundaryPenaltiesStack(t *testing.T) {
	s := hover(t)
	l := newLedger()
	a := mustArena(t, s, l, Entrant{ID: "a", Decide: constant(0)})

	// Above the ceiling and inside the top barrier's columns.
	pos, _, _ := a.birds.Get(a.slots[0].entity)
	pos.Y = -5
	a.Field().At(0).X = pos.X - 10

	r := a.Step()
	if !r.Terminal || r.Alive != 0 {
		t.Fatalf("expected the agent to die, alive=%d", r.Alive)
	}
	if got := len(l.byReason(CreditCollision)); got != 1 {
		t.Errorf("expected one collision penalty, got %d", got)
	}
	if got := len(l.byReason(CreditBoundary)); got != 1 {
		t.Errorf("expected one boundary penalty, got %d", got)
	}
	if r.Deaths[0].Cause != CreditCollision {
		t.Errorf("collision should be reported as the cause, got %v", r.Deaths[0].Cause)
	}
	// Shaping goes negative above the ceiling, then -2 -2.
	survival := s.Rewards.Survival(0, -5)
	if want := survival - 4; math.Abs(l.totals["a"]-want) > 1e-9 {
		t.Errorf("expected fitness %v, got %v", want, l.totals["a"])
	}
}

func TestDeadAgentsAreRemovedAfterPass(t *testing.T) {
	s := hover(t)
	l := newLedger()
	a := mustArena(t, s, l,
		Entrant{ID: "a", Decide: constant(0)},
		Entrant{ID: "b", Decide: constant(0)},
		Entrant{ID: "c", Decide: constant(0)},
	)
	// Kill the first and last agents, keep the middle one.
	for _, i := range []int{0, 2} {
		pos, _, _ := a.birds.Get(a.slots[i].entity)
		pos.Y = 650
	}

	r := a.Step()
	if r.Alive != 1 || r.Agents[0].ID != "b" {
		t.Fatalf("expected only b alive, got %+v", r.Agents)
	}
	if len(r.Deaths) != 2 || r.Deaths[0].ID != "a" || r.Deaths[1].ID != "c" {
		t.Errorf("expected deaths a then c, got %+v", r.Deaths)
	}
	if l.totals["a"] >= l.totals["b"] {
		t.Error("dead agents should keep their penalized fitness")
	}
	if !a.world.Alive(a.slots[0].entity) {
		t.Error("surviving entity must remain in the world")
	}
}

func TestAbort(t *testing.T) {
	a := mustArena(t, hover(t), newLedger(), Entrant{ID: "a", Decide: constant(0)})
	a.Step()
	a.Abort()
	r := a.Step()
	if r.Outcome != Aborted || r.Tick != 1 {
		t.Errorf("expected aborted after 1 tick, got %v at tick %d", r.Outcome, r.Tick)
	}
}

func TestTickLimit(t *testing.T) {
	s := hover(t)
	s.MaxTicks = 10
	a := mustArena(t, s, newLedger(), Entrant{ID: "a", Decide: constant(0)})
	var r Report
	for !r.Terminal {
		r = a.Step()
	}
	if r.Outcome != TickLimit || r.Tick != 10 {
		t.Errorf("expected tick limit at 10, got %v at %d", r.Outcome, r.Tick)
	}
}

func TestParallelDecisionsMatchSequential(t *testing.T) {
	run := func(parallel bool) []AgentView {
		s := testSettings(t)
		s.Parallel = parallel
		entrants := make([]Entrant, 64)
		for i := range entrants {
			threshold := 250 + float64(i)
			entrants[i] = Entrant{
				ID: string(rune('A' + i)),
				Decide: DecisionFunc(func(obs []float64) ([]float64, error) {
					if obs[0] > threshold {
						return []float64{1}, nil
					}
					return []float64{0}, nil
				}),
			}
		}
		a := mustArena(t, s, newLedger(), entrants...)
		var r Report
		for i := 0; i < 40; i++ {
			r = a.Step()
		}
		return r.Agents
	}

	seq := run(false)
	par := run(true)
	if len(seq) != len(par) {
		t.Fatalf("alive counts differ: %d vs %d", len(seq), len(par))
	}
	for i := range seq {
		if seq[i] != par[i] {
			t.Errorf("agent %d differs: %+v vs %+v", i, seq[i], par[i])
		}
	}
}

func TestBodyAdvance(t *testing.T) {
	body := Body{Gravity: 1}
	pos := components.Position{Y: 10}
	vel := components.Velocity{Y: -3}
	body.Advance(&pos, &vel)
	if vel.Y != -2 || pos.Y != 8 {
		t.Errorf("expected vy=-2 y=8, got vy=%v y=%v", vel.Y, pos.Y)
	}
}
