package neural

import (
	"fmt"
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// BrainController wraps a goNEAT network for runtime evaluation.
// It satisfies the arena's decision function contract.
type BrainController struct {
	Genome  *genetics.Genome
	network *network.Network
	sensors []float64
}

// NewBrainController creates a controller from a genome.
func NewBrainController(genome *genetics.Genome) (*BrainController, error) {
	phenotype, err := genome.Genesis(genome.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to build network from genome: %w", err)
	}

	return &BrainController{
		Genome:  genome,
		network: phenotype,
		sensors: make([]float64, BrainInputs),
	}, nil
}

// Decide feeds one observation through the network and returns its outputs.
// The observation must hold SensorInputs values; the bias is appended here.
func (b *BrainController) Decide(observation []float64) ([]float64, error) {
	if len(observation) != SensorInputs {
		return nil, fmt.Errorf("expected %d inputs, got %d", SensorInputs, len(observation))
	}
	copy(b.sensors, observation)
	b.sensors[SensorInputs] = biasValue

	if err := b.network.LoadSensors(b.sensors); err != nil {
		return nil, fmt.Errorf("failed to load sensors: %w", err)
	}

	// Activate with depth-based steps so the signal reaches the output
	depth, err := b.network.MaxActivationDepth()
	if err != nil || depth < 1 {
		depth = 5
	}

	for i := 0; i < depth; i++ {
		if _, err := b.network.Activate(); err != nil {
			return nil, fmt.Errorf("activation failed: %w", err)
		}
	}

	outputs := b.network.ReadOutputs()

	// Feed-forward: no state carries over to the next tick
	if _, err := b.network.Flush(); err != nil {
		return nil, fmt.Errorf("flush failed: %w", err)
	}

	return outputs, nil
}

// NodeCount returns the number of nodes in the network.
func (b *BrainController) NodeCount() int {
	return b.network.NodeCount()
}

// LinkCount returns the number of links (connections) in the network.
func (b *BrainController) LinkCount() int {
	return b.network.LinkCount()
}

// brainNodes builds the fixed sensor, bias and output nodes shared by every
// initial genome. Node IDs: sensors 1..3, bias 4, output 5.
func brainNodes() []*network.NNode {
	nodes := make([]*network.NNode, 0, BrainInputs+BrainOutputs)

	for i := 1; i <= SensorInputs; i++ {
		node := network.NewNNode(i, network.InputNeuron)
		node.ActivationType = neatmath.LinearActivation
		nodes = append(nodes, node)
	}

	bias := network.NewNNode(BrainInputs, network.BiasNeuron)
	bias.ActivationType = neatmath.LinearActivation
	nodes = append(nodes, bias)

	for i := 1; i <= BrainOutputs; i++ {
		node := network.NewNNode(BrainInputs+i, network.OutputNeuron)
		node.ActivationType = neatmath.TanhActivation
		nodes = append(nodes, node)
	}
	return nodes
}

// CreateBrainGenome creates a new brain genome with the specified ID.
// Each sensor-to-output link exists with probability connectionProb.
// Innovation numbers are positional so every initial genome aligns.
func CreateBrainGenome(id int, connectionProb float64, rng *rand.Rand) *genetics.Genome {
	nodes := brainNodes()

	genes := make([]*genetics.Gene, 0, BrainInputs*BrainOutputs)
	innovNum := int64(1)

	for i := 0; i < BrainInputs; i++ {
		for j := 0; j < BrainOutputs; j++ {
			// Always increment innovation for consistent tracking
			currentInnov := innovNum
			innovNum++

			if rng.Float64() < connectionProb {
				weight := rng.Float64()*4 - 2 // [-2, 2]
				gene := genetics.NewGeneWithTrait(
					nil,
					weight,
					nodes[i],
					nodes[BrainInputs+j],
					false,
					currentInnov,
					0,
				)
				genes = append(genes, gene)
			}
		}
	}

	// A genome needs at least one path to the output
	if len(genes) == 0 {
		i := rng.Intn(BrainInputs)
		gene := genetics.NewGeneWithTrait(
			nil,
			rng.Float64()*2-1,
			nodes[i],
			nodes[BrainInputs],
			false,
			int64(i*BrainOutputs+1),
			0,
		)
		genes = append(genes, gene)
	}

	return genetics.NewGenome(id, nil, nodes, genes)
}
