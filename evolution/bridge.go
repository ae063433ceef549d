// Package evolution connects the generation driver to a population
// optimizer and runs the training loop.
package evolution

import (
	"context"
	"errors"

	"github.com/pthm-cable/flappy/arena"
)

// ErrGenerationMismatch is returned by a Bridge asked about a generation it
// did not hand out.
var ErrGenerationMismatch = errors.New("generation mismatch")

// Bridge is the boundary to the population optimizer. For every
// generation the trainer pulls one decision function per agent, runs them,
// then pushes back one fitness value per agent. The optimizer produces the
// next population from the fitness it was given.
type Bridge interface {
	DecisionFunctions(ctx context.Context, generation int) (map[string]arena.DecisionFunction, error)
	ReportFitness(ctx context.Context, generation int, fitness map[string]float64) error
}

// Winner is an encoded genome with the fitness that earned it.
type Winner struct {
	Generation int     `json:"generation"`
	AgentID    string  `json:"agent_id"`
	Fitness    float64 `json:"fitness"`
	Nodes      int     `json:"nodes"`
	Links      int     `json:"links"`
	Genome     []byte  `json:"-"`
}

// Champion is implemented by bridges that track their best genomes.
type Champion interface {
	// Champion returns the best genome seen across all generations.
	Champion() (Winner, bool)
	// GenerationBest returns the best genome of the last reported generation.
	GenerationBest() (Winner, bool)
}

// SpeciesSummary describes the species of the pending generation.
type SpeciesSummary struct {
	Count            int
	Largest          int
	Smallest         int
	AverageStaleness float64
}

// SpeciesReporter is implemented by speciating optimizers.
type SpeciesReporter interface {
	SpeciesSummary() SpeciesSummary
}
