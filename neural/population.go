package neural

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/flappy/config"
)

// shareFloor keeps every species' share of the next generation positive.
const shareFloor = 1e-6

// Population is a generational NEAT population of brain genomes.
type Population struct {
	opts     *neat.Options
	elitism  int
	connProb float64
	rng      *rand.Rand
	idGen    *GenomeIDGenerator
	species  *SpeciesManager

	genomes    []*genetics.Genome
	speciesOf  map[int]int // genome ID -> species ID
	generation int
}

// NewPopulation seeds cfg.PopulationSize random minimal genomes.
func NewPopulation(cfg config.NeuralConfig, rng *rand.Rand) *Population {
	opts := NEATOptions(cfg)
	p := &Population{
		opts:      opts,
		elitism:   cfg.Elitism,
		connProb:  cfg.InitialConnectionProb,
		rng:       rng,
		idGen:     NewGenomeIDGenerator(),
		species:   NewSpeciesManager(opts),
		speciesOf: make(map[int]int),
	}

	p.genomes = make([]*genetics.Genome, cfg.PopulationSize)
	for i := range p.genomes {
		p.genomes[i] = CreateBrainGenome(p.idGen.NextID(), p.connProb, rng)
	}
	p.speciate()
	return p
}

// SeedFrom replaces the current generation with copies of genome: one
// unchanged clone, the rest mutated. It must be called before the first
// epoch. Species are rebuilt from scratch.
func (p *Population) SeedFrom(genome *genetics.Genome) error {
	if p.generation > 0 {
		return fmt.Errorf("seed: population already evolved %d generations", p.generation)
	}
	if _, err := NewBrainController(genome); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	p.idGen.Observe(genome)

	next := make([]*genetics.Genome, len(p.genomes))
	for i := range next {
		child, err := CloneGenome(genome, p.idGen.NextID())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if i > 0 {
			if _, err := MutateBrainGenome(child, p.opts, p.idGen, p.rng); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
		}
		next[i] = child
	}

	p.genomes = next
	p.species = NewSpeciesManager(p.opts)
	p.speciate()
	return nil
}

// Genomes returns the genomes of the current generation.
func (p *Population) Genomes() []*genetics.Genome { return p.genomes }

// Size returns the number of genomes per generation.
func (p *Population) Size() int { return len(p.genomes) }

// Generation returns the number of completed epochs.
func (p *Population) Generation() int { return p.generation }

// Species returns the species manager.
func (p *Population) Species() *SpeciesManager { return p.species }

// SpeciesOf returns the species ID of a current genome.
func (p *Population) SpeciesOf(genomeID int) (int, bool) {
	sid, ok := p.speciesOf[genomeID]
	return sid, ok
}

// speciate assigns every current genome to a species.
func (p *Population) speciate() {
	p.species.ResetMembers()
	clear(p.speciesOf)
	for _, g := range p.genomes {
		sid := p.species.AssignSpecies(g)
		p.species.AddMember(sid, g.Id)
		p.speciesOf[g.Id] = sid
	}
}

// Epoch replaces the current generation with its offspring. fitness must
// hold a value for every current genome ID.
func (p *Population) Epoch(fitness map[int]float64) error {
	byID := make(map[int]*genetics.Genome, len(p.genomes))
	champion := -1
	for _, g := range p.genomes {
		f, ok := fitness[g.Id]
		if !ok {
			return fmt.Errorf("epoch: no fitness for genome %d", g.Id)
		}
		byID[g.Id] = g
		p.species.AccumulateFitness(p.speciesOf[g.Id], f)
		if champion < 0 || f > fitness[champion] {
			champion = g.Id
		}
	}
	if champion < 0 {
		return fmt.Errorf("epoch: empty population")
	}

	p.species.EndGeneration(p.speciesOf[champion])
	species := p.species.Species

	// Shift fitness so the weakest genome sits at zero
	lowest := math.Inf(1)
	for _, f := range fitness {
		lowest = min(lowest, f)
	}

	shares := make([]float64, len(species))
	totalShare := 0.0
	for i, sp := range species {
		sum := 0.0
		for _, id := range sp.Members {
			sum += fitness[id] - lowest
		}
		shares[i] = sum/float64(len(sp.Members)) + shareFloor
		totalShare += shares[i]
	}

	quota := allocate(shares, totalShare, len(p.genomes))

	next := make([]*genetics.Genome, 0, len(p.genomes))
	for i, sp := range species {
		if quota[i] == 0 {
			continue
		}

		members := append([]int(nil), sp.Members...)
		sort.SliceStable(members, func(a, b int) bool {
			return fitness[members[a]] > fitness[members[b]]
		})

		// The best member represents the species from now on
		sp.Representative = byID[members[0]]

		children, err := p.breed(members, byID, fitness, quota[i])
		if err != nil {
			return fmt.Errorf("epoch: species %d: %w", sp.ID, err)
		}
		p.species.RecordOffspring(sp.ID, len(children))
		next = append(next, children...)
	}

	p.genomes = next
	p.generation++
	p.speciate()
	return nil
}

// breed produces n children from members sorted best first.
func (p *Population) breed(members []int, byID map[int]*genetics.Genome, fitness map[int]float64, n int) ([]*genetics.Genome, error) {
	children := make([]*genetics.Genome, 0, n)

	elites := min(p.elitism, n, len(members))
	for _, id := range members[:elites] {
		child, err := CloneGenome(byID[id], p.idGen.NextID())
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	pool := int(math.Ceil(p.opts.SurvivalThresh * float64(len(members))))
	pool = max(1, min(pool, len(members)))

	for len(children) < n {
		mom := members[p.rng.Intn(pool)]
		var (
			child *genetics.Genome
			err   error
		)
		if pool == 1 || p.rng.Float64() < p.opts.MutateOnlyProb {
			child, err = CreateOffspring(byID[mom], nil, fitness[mom], 0, p.idGen, p.opts, p.rng)
		} else {
			dad := members[p.rng.Intn(pool)]
			child, err = CreateOffspring(byID[mom], byID[dad], fitness[mom], fitness[dad], p.idGen, p.opts, p.rng)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// allocate splits total offspring between species proportionally to
// shares, handing leftovers to the largest remainders.
func allocate(shares []float64, totalShare float64, total int) []int {
	quota := make([]int, len(shares))
	if len(shares) == 0 {
		return quota
	}

	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, len(shares))
	given := 0
	for i, s := range shares {
		exact := s / totalShare * float64(total)
		quota[i] = int(exact)
		given += quota[i]
		rems[i] = remainder{index: i, frac: exact - float64(quota[i])}
	}

	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; given < total; i = (i + 1) % len(rems) {
		quota[rems[i].index]++
		given++
	}
	return quota
}
