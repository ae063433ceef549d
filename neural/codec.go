package neural

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// GenomeFormatVersion is the version written by EncodeGenome.
const GenomeFormatVersion = 1

// ErrVersionMismatch is returned when decoding a genome written in an
// unsupported format version.
var ErrVersionMismatch = errors.New("genome format version mismatch")

type genomeDoc struct {
	Version int       `json:"version"`
	ID      int       `json:"id"`
	Nodes   []nodeDoc `json:"nodes"`
	Genes   []geneDoc `json:"genes"`
}

type nodeDoc struct {
	ID         int    `json:"id"`
	Type       string `json:"type"`
	Activation string `json:"activation"`
}

type geneDoc struct {
	In         int     `json:"in"`
	Out        int     `json:"out"`
	Weight     float64 `json:"weight"`
	Innovation int64   `json:"innovation"`
	Mutation   float64 `json:"mutation"`
	Enabled    bool    `json:"enabled"`
	Recurrent  bool    `json:"recurrent,omitempty"`
}

var neuronNames = map[network.NodeNeuronType]string{
	network.InputNeuron:  "input",
	network.BiasNeuron:   "bias",
	network.HiddenNeuron: "hidden",
	network.OutputNeuron: "output",
}

var activationNames = map[neatmath.NodeActivationType]string{
	neatmath.LinearActivation:           "linear",
	neatmath.TanhActivation:             "tanh",
	neatmath.SigmoidSteepenedActivation: "sigmoid_steepened",
}

func lookupName[K comparable](names map[K]string, name string) (K, bool) {
	for k, v := range names {
		if v == name {
			return k, true
		}
	}
	var zero K
	return zero, false
}

// EncodeGenome serializes a genome to versioned JSON.
func EncodeGenome(genome *genetics.Genome) ([]byte, error) {
	if genome == nil {
		return nil, fmt.Errorf("cannot encode nil genome")
	}

	doc := genomeDoc{
		Version: GenomeFormatVersion,
		ID:      genome.Id,
		Nodes:   make([]nodeDoc, 0, len(genome.Nodes)),
		Genes:   make([]geneDoc, 0, len(genome.Genes)),
	}
	for _, n := range genome.Nodes {
		typ, ok := neuronNames[n.NeuronType]
		if !ok {
			return nil, fmt.Errorf("node %d: unknown neuron type %v", n.Id, n.NeuronType)
		}
		act, ok := activationNames[n.ActivationType]
		if !ok {
			return nil, fmt.Errorf("node %d: unsupported activation %v", n.Id, n.ActivationType)
		}
		doc.Nodes = append(doc.Nodes, nodeDoc{ID: n.Id, Type: typ, Activation: act})
	}
	for _, g := range genome.Genes {
		doc.Genes = append(doc.Genes, geneDoc{
			In:         g.Link.InNode.Id,
			Out:        g.Link.OutNode.Id,
			Weight:     g.Link.ConnectionWeight,
			Innovation: g.InnovationNum,
			Mutation:   g.MutationNum,
			Enabled:    g.IsEnabled,
			Recurrent:  g.Link.IsRecurrent,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DecodeGenome rebuilds a genome written by EncodeGenome.
func DecodeGenome(data []byte) (*genetics.Genome, error) {
	var doc genomeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing genome: %w", err)
	}
	if doc.Version != GenomeFormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, doc.Version, GenomeFormatVersion)
	}

	nodes := make([]*network.NNode, 0, len(doc.Nodes))
	byID := make(map[int]*network.NNode, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		typ, ok := lookupName(neuronNames, nd.Type)
		if !ok {
			return nil, fmt.Errorf("node %d: unknown neuron type %q", nd.ID, nd.Type)
		}
		act, ok := lookupName(activationNames, nd.Activation)
		if !ok {
			return nil, fmt.Errorf("node %d: unknown activation %q", nd.ID, nd.Activation)
		}
		if _, dup := byID[nd.ID]; dup {
			return nil, fmt.Errorf("duplicate node %d", nd.ID)
		}
		node := network.NewNNode(nd.ID, typ)
		node.ActivationType = act
		nodes = append(nodes, node)
		byID[nd.ID] = node
	}

	genes := make([]*genetics.Gene, 0, len(doc.Genes))
	for _, gd := range doc.Genes {
		in, out := byID[gd.In], byID[gd.Out]
		if in == nil || out == nil {
			return nil, fmt.Errorf("gene %d references missing node", gd.Innovation)
		}
		gene := genetics.NewGeneWithTrait(nil, gd.Weight, in, out, gd.Recurrent, gd.Innovation, gd.Mutation)
		gene.IsEnabled = gd.Enabled
		genes = append(genes, gene)
	}

	return genetics.NewGenome(doc.ID, nil, nodes, genes), nil
}
