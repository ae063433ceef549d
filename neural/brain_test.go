package neural

import (
	"math"
	"math/rand"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
)

// fixedGenome builds a fully connected genome with the given sensor and
// bias weights.
func fixedGenome(id int, weights [BrainInputs]float64) *genetics.Genome {
	nodes := brainNodes()
	genes := make([]*genetics.Gene, 0, BrainInputs)
	for i, w := range weights {
		genes = append(genes, genetics.NewGeneWithTrait(nil, w, nodes[i], nodes[BrainInputs], false, int64(i+1), 0))
	}
	return genetics.NewGenome(id, nil, nodes, genes)
}

func TestCreateBrainGenome(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	genome := CreateBrainGenome(1, 1.0, rng)

	if genome.Id != 1 {
		t.Errorf("expected genome ID 1, got %d", genome.Id)
	}

	expectedNodes := BrainInputs + BrainOutputs
	if len(genome.Nodes) != expectedNodes {
		t.Errorf("expected %d nodes, got %d", expectedNodes, len(genome.Nodes))
	}

	if len(genome.Genes) != BrainInputs*BrainOutputs {
		t.Errorf("fully connected genome should have %d genes, got %d", BrainInputs*BrainOutputs, len(genome.Genes))
	}

	out := genome.Nodes[len(genome.Nodes)-1]
	if out.ActivationType != neatmath.TanhActivation {
		t.Errorf("expected tanh output activation, got %v", out.ActivationType)
	}
}

func TestCreateBrainGenomeAlwaysConnected(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		genome := CreateBrainGenome(i+1, 0, rng)
		if len(genome.Genes) != 1 {
			t.Fatalf("expected exactly one fallback gene, got %d", len(genome.Genes))
		}
		g := genome.Genes[0]
		// The fallback keeps the positional innovation number of its link
		want := int64(g.Link.InNode.Id-1)*BrainOutputs + 1
		if g.InnovationNum != want {
			t.Errorf("expected innovation %d, got %d", want, g.InnovationNum)
		}
	}
}

func TestBrainControllerDecide(t *testing.T) {
	controller, err := NewBrainController(CreateBrainGenome(1, 1.0, rand.New(rand.NewSource(3))))
	if err != nil {
		t.Fatalf("NewBrainController failed: %v", err)
	}

	obs := []float64{300, 40, 160}
	first, err := controller.Decide(obs)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if len(first) != BrainOutputs {
		t.Fatalf("expected %d outputs, got %d", BrainOutputs, len(first))
	}
	if math.IsNaN(first[0]) || first[0] < -1 || first[0] > 1 {
		t.Errorf("tanh output out of range: %v", first[0])
	}

	// Flushed between calls: the same observation gives the same answer
	second, err := controller.Decide(obs)
	if err != nil {
		t.Fatalf("second Decide failed: %v", err)
	}
	if first[0] != second[0] {
		t.Errorf("expected repeatable output, got %v then %v", first[0], second[0])
	}

	t.Logf("controller with %d nodes and %d links -> %v", controller.NodeCount(), controller.LinkCount(), first)
}

func TestBrainControllerRejectsWrongInputSize(t *testing.T) {
	controller, err := NewBrainController(CreateBrainGenome(1, 1.0, rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := controller.Decide([]float64{1, 2}); err == nil {
		t.Error("expected an error for a short observation")
	}
}

func TestBrainControllerUsesBias(t *testing.T) {
	tests := []struct {
		name string
		bias float64
		jump bool
	}{
		{"positive bias jumps", 8, true},
		{"negative bias never jumps", -8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller, err := NewBrainController(fixedGenome(1, [BrainInputs]float64{0, 0, 0, tt.bias}))
			if err != nil {
				t.Fatal(err)
			}
			out, err := controller.Decide([]float64{0, 0, 0})
			if err != nil {
				t.Fatal(err)
			}
			if got := out[0] > 0.5; got != tt.jump {
				t.Errorf("output %v: jump=%v, want %v", out[0], got, tt.jump)
			}
		})
	}
}
