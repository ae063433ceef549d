package evolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/flappy/config"
	"github.com/pthm-cable/flappy/game"
	"github.com/pthm-cable/flappy/storage"
	"github.com/pthm-cable/flappy/telemetry"
)

// Reasons a training run ends.
const (
	StopCompleted   = "completed"
	StopFitnessGoal = "fitness_goal"
	StopAborted     = "aborted"
)

// Settings control the training loop.
type Settings struct {
	RunID       string
	Generations int
	FitnessGoal float64 // 0 disables the early stop
	WinnerName  string
	TickRate    int // Converts ticks alive to seconds; 0 falls back to 120
}

// NewSettings reads the training section of cfg.
func NewSettings(cfg *config.Config, runID string) Settings {
	return Settings{
		RunID:       runID,
		Generations: cfg.Training.Generations,
		FitnessGoal: cfg.Training.FitnessGoal,
		WinnerName:  cfg.Training.WinnerName,
		TickRate:    cfg.Training.TickRate,
	}
}

// GenerationObserver receives the statistics of every finished generation.
type GenerationObserver interface {
	ObserveGeneration(stats telemetry.GenerationStats)
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithStore persists generation statistics and the final champion.
func WithStore(s storage.Store) TrainerOption {
	return func(t *Trainer) { t.store = s }
}

// WithOutput writes CSV rows and the hall of fame to an output directory.
func WithOutput(om *telemetry.OutputManager) TrainerOption {
	return func(t *Trainer) { t.output = om }
}

// WithHallOfFame keeps the best generation champions.
func WithHallOfFame(h *telemetry.HallOfFame) TrainerOption {
	return func(t *Trainer) { t.hall = h }
}

// WithPerfStats logs and writes the collector's window after each generation.
// The same collector should be handed to the driver with game.WithPerf.
func WithPerfStats(p *telemetry.PerfCollector) TrainerOption {
	return func(t *Trainer) { t.perf = p }
}

// WithGenerationObserver adds a listener for generation statistics.
func WithGenerationObserver(o GenerationObserver) TrainerOption {
	return func(t *Trainer) { t.listeners = append(t.listeners, o) }
}

// Summary describes a finished training run.
type Summary struct {
	RunID       string
	Generations int
	Stopped     string
	Champion    Winner
	HasChampion bool
	History     []telemetry.GenerationStats
}

// Trainer pulls decision functions from a Bridge, runs them through the
// driver and reports the fitness back, one generation at a time.
type Trainer struct {
	bridge    Bridge
	driver    *game.Driver
	settings  Settings
	lifetimes *telemetry.LifetimeTracker

	store     storage.Store
	output    *telemetry.OutputManager
	hall      *telemetry.HallOfFame
	perf      *telemetry.PerfCollector
	listeners []GenerationObserver
}

// NewTrainer wires a bridge to a driver. The trainer registers its own
// lifetime tracker as a driver observer.
func NewTrainer(bridge Bridge, driver *game.Driver, settings Settings, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		bridge:    bridge,
		driver:    driver,
		settings:  settings,
		lifetimes: telemetry.NewLifetimeTracker(),
	}
	for _, opt := range opts {
		opt(t)
	}
	driver.AddObserver(t.lifetimes)
	return t
}

// Run trains until the configured number of generations, the fitness goal
// or an abort. The champion is persisted in every case, including aborts,
// as long as at least one generation finished. An aborted run returns the
// summary together with an error wrapping game.ErrAborted.
func (t *Trainer) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: t.settings.RunID, Stopped: StopCompleted}

	slog.Info("training started",
		"run_id", t.settings.RunID,
		"generations", t.settings.Generations,
		"fitness_goal", t.settings.FitnessGoal,
	)

	var runErr error
	for gen := 1; t.settings.Generations <= 0 || gen <= t.settings.Generations; gen++ {
		stats, err := t.runGeneration(ctx, gen)
		if err != nil {
			if errors.Is(err, game.ErrAborted) {
				sum.Stopped = StopAborted
			}
			runErr = err
			break
		}
		sum.Generations = gen
		sum.History = append(sum.History, stats)

		if t.settings.FitnessGoal != 0 && stats.BestFitness >= t.settings.FitnessGoal {
			sum.Stopped = StopFitnessGoal
			slog.Info("fitness goal reached", "generation", gen, "best_fitness", stats.BestFitness)
			break
		}
	}

	if c, ok := t.bridge.(Champion); ok {
		sum.Champion, sum.HasChampion = c.Champion()
	}

	// Persist even when ctx was cancelled to stop the run.
	saveCtx := context.WithoutCancel(ctx)
	if err := t.persistChampion(saveCtx, sum); err != nil {
		return sum, errors.Join(runErr, err)
	}
	if err := t.output.WriteHallOfFame(t.hall); err != nil {
		return sum, errors.Join(runErr, err)
	}

	slog.Info("training finished",
		"run_id", t.settings.RunID,
		"generations", sum.Generations,
		"stopped", sum.Stopped,
		"champion_fitness", sum.Champion.Fitness,
	)
	return sum, runErr
}

func (t *Trainer) runGeneration(ctx context.Context, gen int) (telemetry.GenerationStats, error) {
	decisions, err := t.bridge.DecisionFunctions(ctx, gen)
	if err != nil {
		return telemetry.GenerationStats{}, fmt.Errorf("decision functions for generation %d: %w", gen, err)
	}

	var species SpeciesSummary
	if sr, ok := t.bridge.(SpeciesReporter); ok {
		species = sr.SpeciesSummary()
	}

	res, err := t.driver.RunGeneration(ctx, decisions)
	if err != nil {
		return telemetry.GenerationStats{}, err
	}

	if err := t.bridge.ReportFitness(ctx, gen, res.Fitness); err != nil {
		return telemetry.GenerationStats{}, fmt.Errorf("report fitness for generation %d: %w", gen, err)
	}

	stats := t.buildStats(gen, res, species)
	stats.LogStats()

	t.recordHallOfFame(res)

	if err := t.output.WriteGeneration(stats); err != nil {
		slog.Warn("writing generation row", "generation", gen, "error", err)
	}
	if t.perf != nil && t.perf.SampleCount() > 0 {
		perf := t.perf.Stats()
		perf.LogStats()
		if err := t.output.WritePerf(perf, gen); err != nil {
			slog.Warn("writing perf row", "generation", gen, "error", err)
		}
	}
	if t.store != nil {
		if err := t.store.SaveGeneration(ctx, stats); err != nil {
			return stats, fmt.Errorf("saving generation %d: %w", gen, err)
		}
	}
	for _, l := range t.listeners {
		l.ObserveGeneration(stats)
	}
	return stats, nil
}

func (t *Trainer) buildStats(gen int, res game.Result, species SpeciesSummary) telemetry.GenerationStats {
	rate := t.settings.TickRate
	if rate <= 0 {
		rate = 120
	}

	stats := telemetry.GenerationStats{
		RunID:            t.settings.RunID,
		Generation:       gen,
		Score:            res.Score,
		Ticks:            res.Ticks,
		MaxAge:           res.MaxAge,
		TimeAliveSec:     float64(res.MaxAge) / float64(rate),
		Outcome:          res.Outcome.String(),
		Faults:           res.Faults,
		Species:          species.Count,
		LargestSpecies:   species.Largest,
		SpeciesStaleness: species.AverageStaleness,
		ElapsedMS:        res.Elapsed.Milliseconds(),
	}

	values := make([]float64, 0, len(res.Fitness))
	for _, f := range res.Fitness {
		values = append(values, f)
	}
	stats.SetFitness(values)
	stats.SetDeaths(t.lifetimes.Summary())
	return stats
}

func (t *Trainer) recordHallOfFame(res game.Result) {
	if t.hall == nil {
		return
	}
	c, ok := t.bridge.(Champion)
	if !ok {
		return
	}
	best, ok := c.GenerationBest()
	if !ok {
		return
	}
	// Agents still alive at the end share the generation's score.
	score := res.Score
	if d := t.lifetimes.Get(best.AgentID); d != nil {
		score = d.Score
	}
	t.hall.Consider(telemetry.HallEntry{
		Generation: best.Generation,
		AgentID:    best.AgentID,
		Fitness:    best.Fitness,
		Score:      score,
		Nodes:      best.Nodes,
		Links:      best.Links,
		Genome:     json.RawMessage(best.Genome),
	})
}

func (t *Trainer) persistChampion(ctx context.Context, sum Summary) error {
	if t.store == nil || !sum.HasChampion {
		return nil
	}
	name := t.settings.WinnerName
	if name == "" {
		name = "winner"
	}
	w := sum.Champion
	err := t.store.SaveWinner(ctx, storage.WinnerRecord{
		Name:       name,
		RunID:      t.settings.RunID,
		Generation: w.Generation,
		AgentID:    w.AgentID,
		Fitness:    w.Fitness,
		Nodes:      w.Nodes,
		Links:      w.Links,
		SavedAt:    time.Now(),
		Genome:     w.Genome,
	})
	if err != nil {
		return fmt.Errorf("saving champion: %w", err)
	}
	slog.Info("champion saved", "name", name, "generation", w.Generation, "fitness", w.Fitness)
	return nil
}
