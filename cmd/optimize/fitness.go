package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/config"
	"github.com/pthm-cable/flappy/evolution"
	"github.com/pthm-cable/flappy/game"
	"github.com/pthm-cable/flappy/neural"
	"github.com/pthm-cable/flappy/telemetry"
)

// FitnessEvaluator runs short headless training runs and scores a
// parameter vector by the best fitness they reach.
type FitnessEvaluator struct {
	params      *ParamVector
	generations int
	seeds       []int64
	baseConfig  *config.Config

	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	lastMeanScore  float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, generations int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		generations: generations,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// LastMeanScore returns the mean best score of the most recent evaluation.
func (fe *FitnessEvaluator) LastMeanScore() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMeanScore
}

type seedResult struct {
	bestFitness float64
	bestScore   int
	hallOfFame  *telemetry.HallOfFame
	err         error
}

// Evaluate computes fitness for a parameter vector (lower = better):
// the negated mean, over seeds, of the best generation fitness reached.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runTraining(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var total, totalScore float64
	bestSeed := math.Inf(1)
	var bestHall *telemetry.HallOfFame
	for _, r := range results {
		if r.err != nil {
			slog.Warn("training run failed", "error", r.err)
			return math.Inf(1)
		}
		f := -r.bestFitness
		total += f
		totalScore += float64(r.bestScore)
		if f < bestSeed {
			bestSeed = f
			bestHall = r.hallOfFame
		}
	}

	n := float64(len(fe.seeds))
	avg := total / n

	fe.mu.Lock()
	if avg < fe.bestFitness {
		fe.bestFitness = avg
		fe.bestHallOfFame = bestHall
	}
	fe.lastMeanScore = totalScore / n
	fe.mu.Unlock()

	return avg
}

// runTraining trains one population for the configured generations.
func (fe *FitnessEvaluator) runTraining(cfg *config.Config, seed int64) seedResult {
	pop := neural.NewPopulation(cfg.Neural, rand.New(rand.NewSource(seed)))
	bridge := neural.NewBridge(pop)
	driver := game.NewDriver(arena.NewSettings(cfg), rand.New(rand.NewSource(seed+1)))
	hall := telemetry.NewHallOfFame(cfg.Telemetry.HallOfFameSize, rand.New(rand.NewSource(seed+2)))

	settings := evolution.NewSettings(cfg, fmt.Sprintf("optimize-%d", seed))
	settings.Generations = fe.generations
	settings.FitnessGoal = 0

	trainer := evolution.NewTrainer(bridge, driver, settings, evolution.WithHallOfFame(hall))
	sum, err := trainer.Run(context.Background())
	if err != nil {
		return seedResult{err: err}
	}

	res := seedResult{bestFitness: math.Inf(-1), hallOfFame: hall}
	for _, s := range sum.History {
		res.bestFitness = max(res.bestFitness, s.BestFitness)
		res.bestScore = max(res.bestScore, s.Score)
	}
	if len(sum.History) == 0 {
		res.bestFitness = 0
	}
	return res
}

// copyConfig returns a copy of the base config. Config sections are plain
// values, so a struct copy is deep enough.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}
