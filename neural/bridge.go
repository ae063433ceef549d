package neural

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/evolution"
)

// AgentID names the agent that plays a genome.
func AgentID(genomeID int) string {
	return "g" + strconv.Itoa(genomeID)
}

// GenomeID parses an agent ID produced by AgentID.
func GenomeID(agentID string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(agentID, "g"))
	if err != nil || !strings.HasPrefix(agentID, "g") {
		return 0, fmt.Errorf("invalid agent id %q", agentID)
	}
	return id, nil
}

// Bridge exposes a Population to the training loop. Each generation is
// handed out once and must be reported before the next one is requested.
type Bridge struct {
	pop *Population

	pending     int // generation handed out, 0 when none
	controllers map[string]*BrainController

	champion    evolution.Winner
	hasChampion bool
	genBest     evolution.Winner
	hasGenBest  bool
}

// NewBridge creates a bridge over pop.
func NewBridge(pop *Population) *Bridge {
	return &Bridge{pop: pop}
}

// Population returns the underlying population.
func (b *Bridge) Population() *Population { return b.pop }

// DecisionFunctions builds one network per genome of the current
// population. Genomes whose network cannot be built are left out and
// score the lowest reported fitness.
func (b *Bridge) DecisionFunctions(ctx context.Context, generation int) (map[string]arena.DecisionFunction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if want := b.pop.Generation() + 1; generation != want {
		return nil, fmt.Errorf("%w: asked for %d, population is at %d", evolution.ErrGenerationMismatch, generation, want)
	}

	b.controllers = make(map[string]*BrainController, b.pop.Size())
	decisions := make(map[string]arena.DecisionFunction, b.pop.Size())
	for _, g := range b.pop.Genomes() {
		ctrl, err := NewBrainController(g)
		if err != nil {
			slog.Warn("genome left out", "genome", g.Id, "err", err)
			continue
		}
		id := AgentID(g.Id)
		b.controllers[id] = ctrl
		decisions[id] = ctrl
	}
	b.pending = generation
	return decisions, nil
}

// ReportFitness records the generation's results and evolves the next one.
func (b *Bridge) ReportFitness(ctx context.Context, generation int, fitness map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.pending == 0 || generation != b.pending {
		return fmt.Errorf("%w: reported %d, pending %d", evolution.ErrGenerationMismatch, generation, b.pending)
	}

	byGenome := make(map[int]float64, len(fitness))
	lowest := math.Inf(1)
	for agentID, f := range fitness {
		id, err := GenomeID(agentID)
		if err != nil {
			return err
		}
		byGenome[id] = f
		lowest = min(lowest, f)
	}
	if math.IsInf(lowest, 1) {
		lowest = 0
	}

	var best *genetics.Genome
	bestFitness := math.Inf(-1)
	for _, g := range b.pop.Genomes() {
		f, ok := byGenome[g.Id]
		if !ok {
			f = lowest
			byGenome[g.Id] = f
		}
		if f > bestFitness {
			best, bestFitness = g, f
		}
	}

	if best != nil {
		w, err := b.winner(generation, best, bestFitness)
		if err != nil {
			return err
		}
		b.genBest, b.hasGenBest = w, true
		if !b.hasChampion || bestFitness > b.champion.Fitness {
			b.champion, b.hasChampion = w, true
		}
	}

	if err := b.pop.Epoch(byGenome); err != nil {
		return fmt.Errorf("generation %d: %w", generation, err)
	}
	b.pending = 0
	b.controllers = nil
	return nil
}

// winner snapshots a genome. It is encoded immediately because the epoch
// may reuse the genome's nodes.
func (b *Bridge) winner(generation int, g *genetics.Genome, fitness float64) (evolution.Winner, error) {
	data, err := EncodeGenome(g)
	if err != nil {
		return evolution.Winner{}, fmt.Errorf("encoding champion: %w", err)
	}
	w := evolution.Winner{
		Generation: generation,
		AgentID:    AgentID(g.Id),
		Fitness:    fitness,
		Genome:     data,
	}
	if ctrl, ok := b.controllers[w.AgentID]; ok {
		w.Nodes = ctrl.NodeCount()
		w.Links = ctrl.LinkCount()
	}
	return w, nil
}

// Champion returns the best genome across all reported generations.
func (b *Bridge) Champion() (evolution.Winner, bool) {
	return b.champion, b.hasChampion
}

// GenerationBest returns the best genome of the last reported generation.
func (b *Bridge) GenerationBest() (evolution.Winner, bool) {
	return b.genBest, b.hasGenBest
}

// SpeciesSummary describes the species of the pending generation.
func (b *Bridge) SpeciesSummary() evolution.SpeciesSummary {
	s := b.pop.Species().GetStats()
	return evolution.SpeciesSummary{
		Count:            s.Count,
		Largest:          s.LargestSize,
		Smallest:         s.SmallestSize,
		AverageStaleness: s.AverageStaleness,
	}
}

// Color returns the species color of an agent in the pending generation.
func (b *Bridge) Color(agentID string) (SpeciesColor, bool) {
	id, err := GenomeID(agentID)
	if err != nil {
		return SpeciesColor{}, false
	}
	sid, ok := b.pop.SpeciesOf(id)
	if !ok {
		return SpeciesColor{}, false
	}
	return b.pop.Species().GetSpeciesColor(sid), true
}
