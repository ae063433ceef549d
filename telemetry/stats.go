// Package telemetry provides generation statistics, CSV output, the hall of
// fame and performance tracking for training runs.
package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one finished generation.
type GenerationStats struct {
	RunID      string `csv:"run_id"`
	Generation int    `csv:"generation"`
	Population int    `csv:"population"`

	// Fitness distribution
	BestFitness  float64 `csv:"best_fitness"`
	MeanFitness  float64 `csv:"mean_fitness"`
	StdFitness   float64 `csv:"std_fitness"`
	WorstFitness float64 `csv:"worst_fitness"`
	FitnessP10   float64 `csv:"fitness_p10"`
	FitnessP50   float64 `csv:"fitness_p50"`
	FitnessP90   float64 `csv:"fitness_p90"`

	// Run outcome
	Score        int     `csv:"score"`
	Ticks        int     `csv:"ticks"`
	MaxAge       int     `csv:"max_age"`
	TimeAliveSec float64 `csv:"time_alive_sec"` // MaxAge converted with the tick rate
	Outcome      string  `csv:"outcome"`
	Faults       int     `csv:"faults"`

	// Deaths
	Collisions   int     `csv:"collisions"`
	Boundaries   int     `csv:"boundaries"`
	MeanLifespan float64 `csv:"mean_lifespan"`

	// Optimizer
	Species          int     `csv:"species"`
	LargestSpecies   int     `csv:"largest_species"`
	SpeciesStaleness float64 `csv:"species_staleness"`

	ElapsedMS int64 `csv:"elapsed_ms"`
}

// FitnessSummary describes a fitness distribution.
type FitnessSummary struct {
	Best, Worst   float64
	Mean, Std     float64
	P10, P50, P90 float64
}

// SummarizeFitness computes the distribution of values. Std is the sample
// standard deviation and is 0 for fewer than two values.
func SummarizeFitness(values []float64) FitnessSummary {
	n := len(values)
	if n == 0 {
		return FitnessSummary{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	s := FitnessSummary{
		Worst: sorted[0],
		Best:  sorted[n-1],
		Mean:  stat.Mean(sorted, nil),
		P10:   stat.Quantile(0.10, stat.Empirical, sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, sorted, nil),
	}
	if n > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(s.Std) {
		s.Std = 0
	}
	return s
}

// SetFitness fills the fitness columns from values.
func (s *GenerationStats) SetFitness(values []float64) {
	f := SummarizeFitness(values)
	s.Population = len(values)
	s.BestFitness = f.Best
	s.MeanFitness = f.Mean
	s.StdFitness = f.Std
	s.WorstFitness = f.Worst
	s.FitnessP10 = f.P10
	s.FitnessP50 = f.P50
	s.FitnessP90 = f.P90
}

// SetDeaths fills the death columns from a lifetime summary.
func (s *GenerationStats) SetDeaths(l LifetimeSummary) {
	s.Collisions = l.Collisions
	s.Boundaries = l.Boundaries
	s.MeanLifespan = l.MeanLifespan
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("population", s.Population),
		slog.Float64("best", s.BestFitness),
		slog.Float64("mean", s.MeanFitness),
		slog.Float64("std", s.StdFitness),
		slog.Float64("p50", s.FitnessP50),
		slog.Int("score", s.Score),
		slog.Int("ticks", s.Ticks),
		slog.Float64("time_alive_sec", s.TimeAliveSec),
		slog.String("outcome", s.Outcome),
		slog.Int("species", s.Species),
		slog.Int("largest_species", s.LargestSpecies),
		slog.Int("collisions", s.Collisions),
		slog.Int("boundaries", s.Boundaries),
		slog.Int("faults", s.Faults),
		slog.Int64("elapsed_ms", s.ElapsedMS),
	)
}

// LogStats logs the status line for the generation.
func (s GenerationStats) LogStats() {
	slog.Info("generation",
		"generation", s.Generation,
		"score", s.Score,
		"alive_max_sec", s.TimeAliveSec,
		"best", s.BestFitness,
		"mean", s.MeanFitness,
		"std", s.StdFitness,
		"species", s.Species,
		"outcome", s.Outcome,
	)
}
