package neural

import (
	"errors"
	"math/rand"
	"testing"
)

func TestGenomeCodecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	genome := CreateBrainGenome(7, 1.0, rng)
	idGen := NewGenomeIDGenerator()
	addNode(genome, idGen, rng)
	addLink(genome, idGen, rng)

	data, err := EncodeGenome(genome)
	if err != nil {
		t.Fatalf("EncodeGenome: %v", err)
	}
	decoded, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("DecodeGenome: %v", err)
	}

	if decoded.Id != 7 || len(decoded.Nodes) != len(genome.Nodes) || len(decoded.Genes) != len(genome.Genes) {
		t.Fatalf("structure changed: %d nodes %d genes, want %d and %d",
			len(decoded.Nodes), len(decoded.Genes), len(genome.Nodes), len(genome.Genes))
	}
	for i, g := range genome.Genes {
		d := decoded.Genes[i]
		if d.InnovationNum != g.InnovationNum || d.IsEnabled != g.IsEnabled ||
			d.Link.ConnectionWeight != g.Link.ConnectionWeight ||
			d.Link.InNode.Id != g.Link.InNode.Id || d.Link.OutNode.Id != g.Link.OutNode.Id {
			t.Errorf("gene %d differs after round trip", i)
		}
	}

	// The decoded genome plays identically
	a, err := NewBrainController(genome)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBrainController(decoded)
	if err != nil {
		t.Fatal(err)
	}
	obs := []float64{250, 30, 170}
	outA, _ := a.Decide(obs)
	outB, _ := b.Decide(obs)
	if outA[0] != outB[0] {
		t.Errorf("decoded genome decides %v, original %v", outB[0], outA[0])
	}
}

func TestDecodeGenomeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		version bool
	}{
		{"not json", `{`, false},
		{"future version", `{"version": 2, "id": 1}`, true},
		{"unknown neuron", `{"version": 1, "id": 1, "nodes": [{"id": 1, "type": "glial", "activation": "linear"}]}`, false},
		{"dangling gene", `{"version": 1, "id": 1, "nodes": [{"id": 1, "type": "input", "activation": "linear"}], "genes": [{"in": 1, "out": 9}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGenome([]byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrVersionMismatch); got != tt.version {
				t.Errorf("errors.Is(ErrVersionMismatch) = %v, want %v (%v)", got, tt.version, err)
			}
		})
	}
}
