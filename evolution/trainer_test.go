package evolution

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/config"
	"github.com/pthm-cable/flappy/game"
	"github.com/pthm-cable/flappy/storage"
	"github.com/pthm-cable/flappy/telemetry"
)

// fakeBridge hands out agents that never jump and remembers what it was told.
type fakeBridge struct {
	agents   int
	reported []int
	fitness  []map[string]float64
	best     Winner
	hasBest  bool
}

func (b *fakeBridge) DecisionFunctions(_ context.Context, gen int) (map[string]arena.DecisionFunction, error) {
	if gen != len(b.reported)+1 {
		return nil, fmt.Errorf("generation %d: %w", gen, ErrGenerationMismatch)
	}
	out := make(map[string]arena.DecisionFunction, b.agents)
	for i := 0; i < b.agents; i++ {
		out[fmt.Sprintf("a%d", i)] = arena.DecisionFunc(func([]float64) ([]float64, error) {
			return []float64{0}, nil
		})
	}
	return out, nil
}

func (b *fakeBridge) ReportFitness(_ context.Context, gen int, fitness map[string]float64) error {
	b.reported = append(b.reported, gen)
	b.fitness = append(b.fitness, fitness)
	for id, f := range fitness {
		if !b.hasBest || f > b.best.Fitness {
			b.best = Winner{Generation: gen, AgentID: id, Fitness: f, Nodes: 5, Links: 4, Genome: []byte(`{"version":1}`)}
			b.hasBest = true
		}
	}
	return nil
}

func (b *fakeBridge) Champion() (Winner, bool)       { return b.best, b.hasBest }
func (b *fakeBridge) GenerationBest() (Winner, bool) { return b.best, b.hasBest }
func (b *fakeBridge) SpeciesSummary() SpeciesSummary {
	return SpeciesSummary{Count: 2, Largest: 3, Smallest: 1, AverageStaleness: 0.5}
}

type statsRecorder []telemetry.GenerationStats

func (r *statsRecorder) ObserveGeneration(s telemetry.GenerationStats) { *r = append(*r, s) }

func testDriver(t *testing.T) (*config.Config, *game.Driver) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	return cfg, game.NewDriver(arena.NewSettings(cfg), rand.New(rand.NewSource(1)))
}

func TestTrainerRunsEveryGeneration(t *testing.T) {
	cfg, driver := testDriver(t)
	cfg.Training.Generations = 3

	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	hall := telemetry.NewHallOfFame(2, rand.New(rand.NewSource(1)))
	var seen statsRecorder

	bridge := &fakeBridge{agents: 4}
	trainer := NewTrainer(bridge, driver, NewSettings(cfg, "run-x"),
		WithStore(store),
		WithHallOfFame(hall),
		WithGenerationObserver(&seen),
	)

	sum, err := trainer.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Generations != 3 || sum.Stopped != StopCompleted {
		t.Errorf("expected 3 completed generations, got %d (%s)", sum.Generations, sum.Stopped)
	}
	if len(bridge.reported) != 3 || bridge.reported[2] != 3 {
		t.Errorf("unexpected report order %v", bridge.reported)
	}
	for i, f := range bridge.fitness {
		if len(f) != 4 {
			t.Errorf("generation %d: expected 4 fitness values, got %d", i+1, len(f))
		}
	}

	if len(seen) != 3 {
		t.Fatalf("expected 3 observed generations, got %d", len(seen))
	}
	s := seen[0]
	if s.Population != 4 || s.Species != 2 || s.Outcome != "extinct" || s.Ticks != 23 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.LargestSpecies != 3 || s.SpeciesStaleness != 0.5 {
		t.Errorf("species columns not filled: %+v", s)
	}
	if s.Boundaries != 4 || s.MaxAge != 23 {
		t.Errorf("expected 4 boundary deaths at age 23, got %+v", s)
	}
	if want := 23.0 / 120; s.TimeAliveSec != want {
		t.Errorf("expected %v seconds alive, got %v", want, s.TimeAliveSec)
	}

	rows, err := store.GetGenerations(ctx, "run-x")
	if err != nil || len(rows) != 3 {
		t.Fatalf("expected 3 stored generations, got %d (%v)", len(rows), err)
	}
	w, err := storage.LoadWinner(ctx, store, cfg.Training.WinnerName)
	if err != nil {
		t.Fatalf("winner not saved: %v", err)
	}
	if w.RunID != "run-x" || string(w.Genome) != `{"version":1}` {
		t.Errorf("unexpected winner %+v", w)
	}
	if hall.Size() == 0 {
		t.Error("hall of fame should hold the generation champions")
	}
}

func TestTrainerStopsAtFitnessGoal(t *testing.T) {
	cfg, driver := testDriver(t)
	cfg.Training.Generations = 10
	cfg.Training.FitnessGoal = -1e9

	bridge := &fakeBridge{agents: 2}
	sum, err := NewTrainer(bridge, driver, NewSettings(cfg, "goal")).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Stopped != StopFitnessGoal || sum.Generations != 1 {
		t.Errorf("expected a stop after generation 1, got %d (%s)", sum.Generations, sum.Stopped)
	}
}

func TestTrainerAbort(t *testing.T) {
	cfg, driver := testDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := storage.NewMemoryStore()
	bridge := &fakeBridge{agents: 2}
	sum, err := NewTrainer(bridge, driver, NewSettings(cfg, "abort"), WithStore(store)).Run(ctx)
	if !errors.Is(err, game.ErrAborted) {
		t.Fatalf("expected an aborted run, got %v", err)
	}
	if sum.Stopped != StopAborted || sum.Generations != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(bridge.reported) != 0 {
		t.Error("an aborted generation must not report fitness")
	}
	if _, ok, _ := store.GetWinner(context.Background(), cfg.Training.WinnerName); ok {
		t.Error("nothing should be saved without a champion")
	}
}

func TestTrainerSurfacesBridgeErrors(t *testing.T) {
	cfg, driver := testDriver(t)
	bridge := &fakeBridge{agents: 1, reported: []int{1, 2}}
	_, err := NewTrainer(bridge, driver, NewSettings(cfg, "bad")).Run(context.Background())
	if !errors.Is(err, ErrGenerationMismatch) {
		t.Fatalf("expected ErrGenerationMismatch, got %v", err)
	}
}
