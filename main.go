package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/google/uuid"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/config"
	"github.com/pthm-cable/flappy/evolution"
	"github.com/pthm-cable/flappy/game"
	"github.com/pthm-cable/flappy/neural"
	"github.com/pthm-cable/flappy/spectate"
	"github.com/pthm-cable/flappy/storage"
	"github.com/pthm-cable/flappy/telemetry"
	"github.com/pthm-cable/flappy/ui"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	paced := flag.Bool("paced", false, "Pace headless ticks at training.tick_rate")
	generations := flag.Int("generations", 0, "Generations to train (0 = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config, then time-based)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	storeKind := flag.String("store", "", "Winner store: memory, file or sqlite (empty = use config)")
	storePath := flag.String("db-path", "", "Store directory or database file (empty = use config)")
	spectateAddr := flag.String("spectate", "", "Serve the websocket spectator on this address")
	resume := flag.String("resume", "", "Seed the population from this stored winner")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *generations > 0 {
		cfg.Training.Generations = *generations
	}
	if *outputDir != "" {
		cfg.Telemetry.OutputDir = *outputDir
	}
	if *storeKind != "" {
		cfg.Storage.Kind = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if *spectateAddr != "" {
		cfg.Spectate.Enabled = true
		cfg.Spectate.Addr = *spectateAddr
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Training.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	if err := run(cfg, rngSeed, *headless, *paced, *resume); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, seed int64, headless, paced bool, resume string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()

	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.Path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer storage.CloseIfSupported(store)

	om, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}
	if dir := om.Dir(); dir != "" {
		slog.Info("writing telemetry", "dir", dir)
	}

	rng := rand.New(rand.NewSource(seed))
	pop := neural.NewPopulation(cfg.Neural, rng)
	if resume != "" {
		if err := seedPopulation(ctx, store, resume, pop); err != nil {
			return err
		}
	}
	bridge := neural.NewBridge(pop)

	hall := telemetry.NewHallOfFame(cfg.Telemetry.HallOfFameSize, rand.New(rand.NewSource(seed+2)))
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)

	driverOpts := []game.Option{game.WithPerf(perf)}
	trainerOpts := []evolution.TrainerOption{
		evolution.WithStore(store),
		evolution.WithOutput(om),
		evolution.WithHallOfFame(hall),
		evolution.WithPerfStats(perf),
	}
	var controls game.MultiControls

	if cfg.Spectate.Enabled {
		hub := spectate.NewHub()
		go func() {
			if err := spectate.Serve(ctx, cfg.Spectate.Addr, hub); err != nil {
				slog.Error("spectator server stopped", "error", err)
			}
		}()
		obs := spectate.NewObserver(hub, cfg.Spectate.EveryTicks)
		driverOpts = append(driverOpts, game.WithObserver(obs))
		trainerOpts = append(trainerOpts, evolution.WithGenerationObserver(obs))
		controls = append(controls, hub)
	}

	if headless {
		if paced {
			clock := game.NewClock(cfg.Training.TickRate)
			defer clock.Stop()
			driverOpts = append(driverOpts, game.WithClock(clock))
		}
	} else {
		rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
		defer rl.CloseWindow()
		rl.SetTargetFPS(int32(cfg.Training.TickRate))

		renderer := game.NewRenderer(cfg, false,
			game.WithColors(func(id string) rl.Color {
				c, ok := bridge.Color(id)
				if !ok {
					return rl.Yellow
				}
				return rl.Color{R: c.R, G: c.G, B: c.B, A: 255}
			}),
			game.WithRenderPerf(perf),
		)
		driverOpts = append(driverOpts, game.WithObserver(renderer))
		trainerOpts = append(trainerOpts, evolution.WithGenerationObserver(&panelFeed{renderer: renderer, bridge: bridge, hall: hall}))
		controls = append(controls, renderer)
		slog.Info("window opened", "renderer", renderer.String())
	}

	if len(controls) > 0 {
		driverOpts = append(driverOpts, game.WithControls(controls))
	}

	driver := game.NewDriver(arena.NewSettings(cfg), rand.New(rand.NewSource(seed+1)), driverOpts...)
	trainer := evolution.NewTrainer(bridge, driver, evolution.NewSettings(cfg, runID), trainerOpts...)

	slog.Info("starting training",
		"run_id", runID,
		"seed", seed,
		"population", cfg.Neural.PopulationSize,
		"store", cfg.Storage.Kind,
		"headless", headless,
	)

	sum, err := trainer.Run(ctx)
	if err != nil && !errors.Is(err, game.ErrAborted) {
		return err
	}
	if err != nil {
		slog.Info("training stopped early", "reason", err)
	}

	if sum.HasChampion {
		slog.Info("champion",
			"generation", sum.Champion.Generation,
			"agent", sum.Champion.AgentID,
			"fitness", sum.Champion.Fitness,
			"nodes", sum.Champion.Nodes,
			"links", sum.Champion.Links,
		)
	}
	return nil
}

// seedPopulation replaces the random first generation with variants of a
// stored winner.
func seedPopulation(ctx context.Context, store storage.Store, name string, pop *neural.Population) error {
	w, err := storage.LoadWinner(ctx, store, name)
	if err != nil {
		return err
	}
	genome, err := neural.DecodeGenome(w.Genome)
	if err != nil {
		return fmt.Errorf("decoding winner %s: %w", name, err)
	}
	if err := pop.SeedFrom(genome); err != nil {
		return err
	}
	slog.Info("population seeded", "winner", name, "run_id", w.RunID, "fitness", w.Fitness)
	return nil
}

// panelFeed keeps the renderer's evolution panel current.
type panelFeed struct {
	renderer *game.Renderer
	bridge   *neural.Bridge
	hall     *telemetry.HallOfFame
}

func (p *panelFeed) ObserveGeneration(s telemetry.GenerationStats) {
	p.renderer.ObserveGeneration(s)
	p.renderer.SetChampionFitness(p.hall.TopFitness())

	top := p.bridge.Population().Species().GetTopSpecies(5)
	species := make([]ui.SpeciesInfo, len(top))
	for i, sp := range top {
		species[i] = ui.SpeciesInfo{
			ID:      sp.ID,
			Size:    sp.Size,
			Age:     sp.Age,
			BestFit: sp.BestFit,
			Color:   rl.Color{R: sp.Color.R, G: sp.Color.G, B: sp.Color.B, A: 255},
		}
	}
	p.renderer.SetTopSpecies(species)
}
