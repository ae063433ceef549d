package neural

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Mutation constants
const (
	perturbProb         = 0.9  // Probability of perturbing vs replacing weights
	maxConnectionWeight = 8.0  // Maximum absolute connection weight
	maxLinkAttempts     = 20   // Maximum attempts to find a new connection
	initialInnovNum     = 1000 // Starting innovation number to avoid conflicts
	initialNodeID       = 100  // Hidden node IDs start here
	disableInheritProb  = 0.75 // Chance a gene disabled in either parent stays disabled
)

// GenomeIDGenerator generates unique genome IDs, innovation numbers and
// hidden node IDs.
type GenomeIDGenerator struct {
	nextID       int
	nextInnovNum int64
	nextNodeID   int
}

// NewGenomeIDGenerator creates a new ID generator.
func NewGenomeIDGenerator() *GenomeIDGenerator {
	return &GenomeIDGenerator{
		nextID:       1,
		nextInnovNum: initialInnovNum,
		nextNodeID:   initialNodeID,
	}
}

// NextID returns the next unique genome ID.
func (g *GenomeIDGenerator) NextID() int {
	id := g.nextID
	g.nextID++
	return id
}

// NextInnovation returns the next innovation number.
func (g *GenomeIDGenerator) NextInnovation() int64 {
	num := g.nextInnovNum
	g.nextInnovNum++
	return num
}

// NextNodeID returns the next hidden node ID.
func (g *GenomeIDGenerator) NextNodeID() int {
	id := g.nextNodeID
	g.nextNodeID++
	return id
}

// Observe advances the generator past the IDs used by genome so that a
// loaded genome never collides with freshly generated ones.
func (g *GenomeIDGenerator) Observe(genome *genetics.Genome) {
	if genome.Id >= g.nextID {
		g.nextID = genome.Id + 1
	}
	for _, node := range genome.Nodes {
		if node.Id >= g.nextNodeID {
			g.nextNodeID = node.Id + 1
		}
	}
	for _, gene := range genome.Genes {
		if gene.InnovationNum >= g.nextInnovNum {
			g.nextInnovNum = gene.InnovationNum + 1
		}
	}
}

// CrossoverGenomes performs NEAT-style crossover between two parent genomes.
// Genes are aligned by innovation number.
// The more fit parent contributes disjoint/excess genes.
func CrossoverGenomes(parent1, parent2 *genetics.Genome, fitness1, fitness2 float64, childID int, rng *rand.Rand) (*genetics.Genome, error) {
	if parent1 == nil || parent2 == nil {
		return nil, fmt.Errorf("cannot crossover nil genomes")
	}

	var primary, secondary *genetics.Genome
	if fitness1 >= fitness2 {
		primary, secondary = parent1, parent2
	} else {
		primary, secondary = parent2, parent1
	}

	primaryGenes := make(map[int64]*genetics.Gene)
	for _, gene := range primary.Genes {
		primaryGenes[gene.InnovationNum] = gene
	}

	secondaryGenes := make(map[int64]*genetics.Gene)
	for _, gene := range secondary.Genes {
		secondaryGenes[gene.InnovationNum] = gene
	}

	innovSet := make(map[int64]bool)
	for innov := range primaryGenes {
		innovSet[innov] = true
	}
	for innov := range secondaryGenes {
		innovSet[innov] = true
	}

	// Sort innovations for deterministic ordering
	innovations := make([]int64, 0, len(innovSet))
	for innov := range innovSet {
		innovations = append(innovations, innov)
	}
	sort.Slice(innovations, func(i, j int) bool { return innovations[i] < innovations[j] })

	childNodeMap := make(map[int]*network.NNode)
	for _, node := range primary.Nodes {
		childNode := copyNode(node)
		childNodeMap[childNode.Id] = childNode
	}
	for _, node := range secondary.Nodes {
		if _, exists := childNodeMap[node.Id]; !exists {
			childNode := copyNode(node)
			childNodeMap[childNode.Id] = childNode
		}
	}

	childGenes := make([]*genetics.Gene, 0, len(innovations))

	for _, innov := range innovations {
		pGene := primaryGenes[innov]
		sGene := secondaryGenes[innov]

		var selectedGene *genetics.Gene
		enabled := true

		if pGene != nil && sGene != nil {
			// Matching gene: either parent
			if rng.Float32() < 0.5 {
				selectedGene = pGene
			} else {
				selectedGene = sGene
			}
			if (!pGene.IsEnabled || !sGene.IsEnabled) && rng.Float32() < disableInheritProb {
				enabled = false
			}
		} else if pGene != nil {
			// Disjoint/excess from the fitter parent
			selectedGene = pGene
			enabled = pGene.IsEnabled
		} else if fitness1 == fitness2 && sGene != nil && rng.Float32() < 0.5 {
			selectedGene = sGene
			enabled = sGene.IsEnabled
		}

		if selectedGene == nil {
			continue
		}

		inNode := childNodeMap[selectedGene.Link.InNode.Id]
		outNode := childNodeMap[selectedGene.Link.OutNode.Id]
		if inNode == nil || outNode == nil {
			continue
		}

		childGene := genetics.NewGeneWithTrait(
			nil,
			selectedGene.Link.ConnectionWeight,
			inNode,
			outNode,
			selectedGene.Link.IsRecurrent,
			selectedGene.InnovationNum,
			selectedGene.MutationNum,
		)
		childGene.IsEnabled = enabled
		childGenes = append(childGenes, childGene)
	}

	childNodes := make([]*network.NNode, 0, len(childNodeMap))
	for _, node := range childNodeMap {
		childNodes = append(childNodes, node)
	}
	sort.Slice(childNodes, func(i, j int) bool { return childNodes[i].Id < childNodes[j].Id })

	child := genetics.NewGenome(childID, nil, childNodes, childGenes)
	ensureOutputConnected(child)
	return child, nil
}

func copyNode(node *network.NNode) *network.NNode {
	newNode := network.NewNNode(node.Id, node.NeuronType)
	newNode.ActivationType = node.ActivationType
	return newNode
}

func mutateWeights(genome *genetics.Genome, power float64, rng *rand.Rand) {
	for _, gene := range genome.Genes {
		if rng.Float64() < perturbProb {
			gene.Link.ConnectionWeight += (rng.Float64()*2 - 1) * power
		} else {
			gene.Link.ConnectionWeight = rng.Float64()*4 - 2
		}
		gene.Link.ConnectionWeight = clampWeight(gene.Link.ConnectionWeight)
	}
}

// clampWeight clamps a connection weight to the valid range.
func clampWeight(w float64) float64 {
	if w > maxConnectionWeight {
		return maxConnectionWeight
	}
	if w < -maxConnectionWeight {
		return -maxConnectionWeight
	}
	return w
}

func addNode(genome *genetics.Genome, idGen *GenomeIDGenerator, rng *rand.Rand) bool {
	enabledGenes := make([]*genetics.Gene, 0, len(genome.Genes))
	for _, gene := range genome.Genes {
		if gene.IsEnabled {
			enabledGenes = append(enabledGenes, gene)
		}
	}
	if len(enabledGenes) == 0 {
		return false
	}

	geneToSplit := enabledGenes[rng.Intn(len(enabledGenes))]
	geneToSplit.IsEnabled = false

	activators := hiddenActivators()
	newNode := network.NewNNode(idGen.NextNodeID(), network.HiddenNeuron)
	newNode.ActivationType = activators[rng.Intn(len(activators))]

	// in -> new (weight 1.0), new -> out (old weight)
	gene1 := genetics.NewGeneWithTrait(
		nil,
		1.0,
		geneToSplit.Link.InNode,
		newNode,
		false,
		idGen.NextInnovation(),
		0,
	)
	gene2 := genetics.NewGeneWithTrait(
		nil,
		geneToSplit.Link.ConnectionWeight,
		newNode,
		geneToSplit.Link.OutNode,
		false,
		idGen.NextInnovation(),
		0,
	)

	genome.Nodes = append(genome.Nodes, newNode)
	genome.Genes = append(genome.Genes, gene1, gene2)
	return true
}

func addLink(genome *genetics.Genome, idGen *GenomeIDGenerator, rng *rand.Rand) bool {
	var inputs, outputs, hidden []*network.NNode
	for _, node := range genome.Nodes {
		switch node.NeuronType {
		case network.InputNeuron, network.BiasNeuron:
			inputs = append(inputs, node)
		case network.OutputNeuron:
			outputs = append(outputs, node)
		case network.HiddenNeuron:
			hidden = append(hidden, node)
		}
	}

	sources := append(inputs, hidden...)
	targets := append(append([]*network.NNode{}, hidden...), outputs...)
	if len(sources) == 0 || len(targets) == 0 {
		return false
	}

	existing := make(map[int64]bool, len(genome.Genes))
	for _, gene := range genome.Genes {
		existing[connectionKey(gene.Link.InNode.Id, gene.Link.OutNode.Id)] = true
	}

	for attempt := 0; attempt < maxLinkAttempts; attempt++ {
		source := sources[rng.Intn(len(sources))]
		target := targets[rng.Intn(len(targets))]

		if source.Id == target.Id {
			continue
		}
		if existing[connectionKey(source.Id, target.Id)] {
			continue
		}
		// New hidden-to-hidden links only run forward in creation order
		if source.NeuronType == network.HiddenNeuron && target.NeuronType == network.HiddenNeuron && source.Id > target.Id {
			continue
		}

		newGene := genetics.NewGeneWithTrait(
			nil,
			rng.Float64()*4-2,
			source,
			target,
			false,
			idGen.NextInnovation(),
			0,
		)
		genome.Genes = append(genome.Genes, newGene)
		return true
	}

	return false
}

// connectionKey creates a unique key for a connection between two nodes.
func connectionKey(inID, outID int) int64 {
	return int64(inID)<<32 | int64(outID)
}

func toggleEnable(genome *genetics.Genome, rng *rand.Rand) {
	if len(genome.Genes) == 0 {
		return
	}

	gene := genome.Genes[rng.Intn(len(genome.Genes))]
	gene.IsEnabled = !gene.IsEnabled

	// Disabling must not cut the output off
	if !gene.IsEnabled {
		outNode := gene.Link.OutNode
		for _, g := range genome.Genes {
			if g.Link.OutNode.Id == outNode.Id && g.IsEnabled {
				return
			}
		}
		gene.IsEnabled = true
	}
}

// ensureOutputConnected re-enables one link into any output left without
// an enabled incoming link.
func ensureOutputConnected(genome *genetics.Genome) {
	for _, node := range genome.Nodes {
		if node.NeuronType != network.OutputNeuron {
			continue
		}
		var candidate *genetics.Gene
		connected := false
		for _, g := range genome.Genes {
			if g.Link.OutNode.Id != node.Id {
				continue
			}
			if g.IsEnabled {
				connected = true
				break
			}
			if candidate == nil {
				candidate = g
			}
		}
		if !connected && candidate != nil {
			candidate.IsEnabled = true
		}
	}
}

// MutateBrainGenome applies weight and structural mutations in place.
func MutateBrainGenome(genome *genetics.Genome, opts *neat.Options, idGen *GenomeIDGenerator, rng *rand.Rand) (bool, error) {
	if genome == nil {
		return false, fmt.Errorf("cannot mutate nil genome")
	}

	mutated := false

	if rng.Float64() < opts.MutateLinkWeightsProb {
		mutateWeights(genome, opts.WeightMutPower, rng)
		mutated = true
	}

	if rng.Float64() < opts.MutateAddNodeProb {
		if addNode(genome, idGen, rng) {
			mutated = true
		}
	}

	if rng.Float64() < opts.MutateAddLinkProb {
		if addLink(genome, idGen, rng) {
			mutated = true
		}
	}

	if rng.Float64() < opts.MutateToggleEnableProb {
		toggleEnable(genome, rng)
		mutated = true
	}

	return mutated, nil
}

func hiddenActivators() []neatmath.NodeActivationType {
	return []neatmath.NodeActivationType{
		neatmath.TanhActivation,
		neatmath.SigmoidSteepenedActivation,
		neatmath.LinearActivation,
	}
}

// CloneGenome creates a deep copy of a genome with a new ID.
func CloneGenome(genome *genetics.Genome, newID int) (*genetics.Genome, error) {
	if genome == nil {
		return nil, fmt.Errorf("cannot clone nil genome")
	}

	nodeMap := make(map[int]*network.NNode, len(genome.Nodes))
	newNodes := make([]*network.NNode, 0, len(genome.Nodes))
	for _, node := range genome.Nodes {
		newNode := copyNode(node)
		nodeMap[node.Id] = newNode
		newNodes = append(newNodes, newNode)
	}

	newGenes := make([]*genetics.Gene, 0, len(genome.Genes))
	for _, gene := range genome.Genes {
		inNode := nodeMap[gene.Link.InNode.Id]
		outNode := nodeMap[gene.Link.OutNode.Id]
		if inNode == nil || outNode == nil {
			continue
		}
		newGene := genetics.NewGeneWithTrait(
			nil,
			gene.Link.ConnectionWeight,
			inNode,
			outNode,
			gene.Link.IsRecurrent,
			gene.InnovationNum,
			gene.MutationNum,
		)
		newGene.IsEnabled = gene.IsEnabled
		newGenes = append(newGenes, newGene)
	}

	return genetics.NewGenome(newID, nil, newNodes, newGenes), nil
}

// CreateOffspring breeds a child from two parents: crossover, then mutation.
// With parent2 nil the child is a mutated clone of parent1.
func CreateOffspring(
	parent1, parent2 *genetics.Genome,
	fitness1, fitness2 float64,
	idGen *GenomeIDGenerator,
	opts *neat.Options,
	rng *rand.Rand,
) (*genetics.Genome, error) {
	var (
		child *genetics.Genome
		err   error
	)
	if parent2 == nil {
		child, err = CloneGenome(parent1, idGen.NextID())
	} else {
		child, err = CrossoverGenomes(parent1, parent2, fitness1, fitness2, idGen.NextID(), rng)
	}
	if err != nil {
		return nil, fmt.Errorf("offspring: %w", err)
	}

	// Crossover alone is enough some of the time
	if parent2 != nil && rng.Float64() < opts.MateOnlyProb {
		return child, nil
	}
	if _, err := MutateBrainGenome(child, opts, idGen, rng); err != nil {
		return nil, fmt.Errorf("offspring mutation failed: %w", err)
	}
	return child, nil
}

// GenomeCompatibility calculates the compatibility distance between two genomes.
func GenomeCompatibility(g1, g2 *genetics.Genome, opts *neat.Options) float64 {
	if g1 == nil || g2 == nil {
		return math.MaxFloat64
	}

	genes1 := make(map[int64]*genetics.Gene, len(g1.Genes))
	maxInnov1 := int64(0)
	for _, gene := range g1.Genes {
		genes1[gene.InnovationNum] = gene
		maxInnov1 = max(maxInnov1, gene.InnovationNum)
	}

	genes2 := make(map[int64]*genetics.Gene, len(g2.Genes))
	maxInnov2 := int64(0)
	for _, gene := range g2.Genes {
		genes2[gene.InnovationNum] = gene
		maxInnov2 = max(maxInnov2, gene.InnovationNum)
	}

	matching := 0
	disjoint := 0
	excess := 0
	weightDiff := 0.0

	for innov, gene1 := range genes1 {
		if gene2, exists := genes2[innov]; exists {
			matching++
			weightDiff += math.Abs(gene1.Link.ConnectionWeight - gene2.Link.ConnectionWeight)
		} else if innov > maxInnov2 {
			excess++
		} else {
			disjoint++
		}
	}

	for innov := range genes2 {
		if _, exists := genes1[innov]; !exists {
			if innov > maxInnov1 {
				excess++
			} else {
				disjoint++
			}
		}
	}

	// Small genomes are not normalized
	n := float64(max(len(g1.Genes), len(g2.Genes)))
	if n < 20 {
		n = 1
	}

	avgWeightDiff := 0.0
	if matching > 0 {
		avgWeightDiff = weightDiff / float64(matching)
	}

	return (opts.ExcessCoeff*float64(excess)+opts.DisjointCoeff*float64(disjoint))/n +
		opts.MutdiffCoeff*avgWeightDiff
}
