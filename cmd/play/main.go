// Command play loads a saved winner, or a champion from a hall of fame file,
// and lets it fly, one run at a time.
// R restarts a run, TAB toggles the overlay, closing the window quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/config"
	"github.com/pthm-cable/flappy/game"
	"github.com/pthm-cable/flappy/neural"
	"github.com/pthm-cable/flappy/storage"
	"github.com/pthm-cable/flappy/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	name := flag.String("name", "", "Winner name (empty = training.winner_name)")
	storeKind := flag.String("store", "", "Winner store: memory, file or sqlite (empty = use config)")
	storePath := flag.String("db-path", "", "Store directory or database file (empty = use config)")
	hallPath := flag.String("hall", "", "Play a champion from this hall_of_fame.json instead of the store")
	sample := flag.Bool("sample", false, "With -hall, pick a champion by tournament instead of the best")
	headless := flag.Bool("headless", false, "Play a single unpaced run without graphics")
	seed := flag.Int64("seed", 0, "Obstacle RNG seed (0 = time-based)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *name != "" {
		cfg.Training.WinnerName = *name
	}
	if *storeKind != "" {
		cfg.Storage.Kind = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	cfg.Generation.ScoreCap = cfg.Play.ScoreCap

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	if err := run(cfg, *seed, *headless, *hallPath, *sample); err != nil {
		slog.Error("play failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, seed int64, headless bool, hallPath string, sample bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(seed))

	var (
		payload []byte
		err     error
	)
	if hallPath != "" {
		payload, err = loadFromHall(hallPath, sample, rand.New(rand.NewSource(seed+1)))
	} else {
		payload, err = loadFromStore(ctx, cfg)
	}
	if err != nil {
		return err
	}

	genome, err := neural.DecodeGenome(payload)
	if err != nil {
		return err
	}
	brain, err := neural.NewBrainController(genome)
	if err != nil {
		return err
	}
	id := neural.AgentID(genome.Id)
	slog.Info("brain ready", "agent", id, "nodes", brain.NodeCount(), "links", brain.LinkCount())

	settings := arena.NewSettings(cfg)

	if headless {
		driver := game.NewDriver(settings, rng)
		res, err := driver.RunGeneration(ctx, map[string]arena.DecisionFunction{id: brain})
		if err != nil {
			return err
		}
		slog.Info("run finished",
			"score", res.Score,
			"ticks", res.Ticks,
			"seconds", float64(res.Ticks)/float64(max(cfg.Play.TickRate, 1)),
			"fitness", res.Fitness[id],
			"outcome", res.Outcome,
		)
		return nil
	}

	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Play.TickRate))

	renderer := game.NewRenderer(cfg, true)
	clock := game.Unpaced{}
	driver := game.NewDriver(settings, rng,
		game.WithClock(clock),
		game.WithControls(renderer),
		game.WithObserver(renderer),
	)

	results, err := game.NewPlaySession(driver, clock, renderer, id, brain).Run(ctx)
	if err != nil {
		return err
	}

	best := 0
	for _, r := range results {
		best = max(best, r.Score)
	}
	slog.Info("session finished", "runs", len(results), "best_score", best)
	return nil
}

func loadFromStore(ctx context.Context, cfg *config.Config) ([]byte, error) {
	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	defer storage.CloseIfSupported(store)

	w, err := storage.LoadWinner(ctx, store, cfg.Training.WinnerName)
	if err != nil {
		return nil, err
	}
	slog.Info("winner loaded",
		"name", w.Name,
		"run_id", w.RunID,
		"generation", w.Generation,
		"fitness", w.Fitness,
	)
	return w.Genome, nil
}

func loadFromHall(path string, sample bool, rng *rand.Rand) ([]byte, error) {
	hof, err := telemetry.LoadHallOfFameFromFile(path, rng)
	if err != nil {
		return nil, err
	}

	var (
		entry telemetry.HallEntry
		ok    bool
	)
	if sample {
		entry, ok = hof.Sample()
	} else {
		entry, ok = hof.Best()
	}
	if !ok {
		return nil, fmt.Errorf("hall of fame %s is empty", path)
	}
	if len(entry.Genome) == 0 {
		return nil, fmt.Errorf("hall of fame entry %s has no genome", entry.AgentID)
	}
	slog.Info("champion loaded",
		"hall", path,
		"agent", entry.AgentID,
		"generation", entry.Generation,
		"fitness", entry.Fitness,
		"score", entry.Score,
		"top_fitness", hof.TopFitness(),
	)
	return entry.Genome, nil
}
