package neural

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/pthm-cable/flappy/evolution"
)

func testBridge(t *testing.T, size int) *Bridge {
	t.Helper()
	cfg := testNeuralConfig(t)
	cfg.PopulationSize = size
	return NewBridge(NewPopulation(cfg, rand.New(rand.NewSource(1))))
}

func TestAgentIDRoundTrip(t *testing.T) {
	id, err := GenomeID(AgentID(42))
	if err != nil || id != 42 {
		t.Errorf("expected 42, got %d (%v)", id, err)
	}
	for _, bad := range []string{"42", "gx", "", "h1"} {
		if _, err := GenomeID(bad); err == nil {
			t.Errorf("GenomeID(%q) should fail", bad)
		}
	}
}

func TestBridgeGenerationCycle(t *testing.T) {
	ctx := context.Background()
	b := testBridge(t, 12)

	decisions, err := b.DecisionFunctions(ctx, 1)
	if err != nil {
		t.Fatalf("DecisionFunctions: %v", err)
	}
	if len(decisions) != 12 {
		t.Fatalf("expected 12 decision functions, got %d", len(decisions))
	}

	fitness := make(map[string]float64)
	i := 0.0
	var bestID string
	for id, fn := range decisions {
		if _, err := fn.Decide([]float64{300, 10, 190}); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		fitness[id] = i
		bestID = id
		i++
	}

	if err := b.ReportFitness(ctx, 1, fitness); err != nil {
		t.Fatalf("ReportFitness: %v", err)
	}

	champ, ok := b.Champion()
	if !ok || champ.AgentID != bestID || champ.Fitness != 11 {
		t.Errorf("expected champion %s with 11, got %+v", bestID, champ)
	}
	if champ.Nodes == 0 || len(champ.Genome) == 0 {
		t.Error("champion should carry its encoded genome and size")
	}
	if _, err := DecodeGenome(champ.Genome); err != nil {
		t.Errorf("champion genome does not decode: %v", err)
	}

	if b.Population().Generation() != 1 || b.Population().Size() != 12 {
		t.Errorf("expected one epoch with 12 genomes, got gen %d size %d", b.Population().Generation(), b.Population().Size())
	}
	sp := b.SpeciesSummary()
	if sp.Count == 0 || sp.Largest < sp.Smallest || sp.Largest > 12 {
		t.Errorf("unexpected species summary %+v", sp)
	}

	if _, err := b.DecisionFunctions(ctx, 2); err != nil {
		t.Fatalf("generation 2: %v", err)
	}
}

func TestBridgeRejectsOutOfOrderGenerations(t *testing.T) {
	ctx := context.Background()
	b := testBridge(t, 4)

	if _, err := b.DecisionFunctions(ctx, 2); !errors.Is(err, evolution.ErrGenerationMismatch) {
		t.Errorf("expected mismatch for generation 2, got %v", err)
	}
	if err := b.ReportFitness(ctx, 1, nil); !errors.Is(err, evolution.ErrGenerationMismatch) {
		t.Errorf("reporting before handing out should fail, got %v", err)
	}
}

func TestBridgeMissingAgentsScoreLowest(t *testing.T) {
	ctx := context.Background()
	b := testBridge(t, 3)

	decisions, err := b.DecisionFunctions(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	fitness := make(map[string]float64)
	for id := range decisions {
		fitness[id] = -3
		break
	}
	if err := b.ReportFitness(ctx, 1, fitness); err != nil {
		t.Fatalf("partial report should succeed: %v", err)
	}
	best, ok := b.GenerationBest()
	if !ok || best.Fitness != -3 {
		t.Errorf("every genome should score -3, got %+v", best)
	}
}

func TestBridgeColors(t *testing.T) {
	b := testBridge(t, 3)
	decisions, err := b.DecisionFunctions(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	for id := range decisions {
		if _, ok := b.Color(id); !ok {
			t.Errorf("no color for %s", id)
		}
	}
	if _, ok := b.Color("nobody"); ok {
		t.Error("unknown agent should have no color")
	}
}
