// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	World      WorldConfig      `yaml:"world"`
	Agent      AgentConfig      `yaml:"agent"`
	Obstacle   ObstacleConfig   `yaml:"obstacle"`
	Fitness    FitnessConfig    `yaml:"fitness"`
	Generation GenerationConfig `yaml:"generation"`
	Arena      ArenaConfig      `yaml:"arena"`
	Training   TrainingConfig   `yaml:"training"`
	Play       PlayConfig       `yaml:"play"`
	Neural     NeuralConfig     `yaml:"neural"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    StorageConfig    `yaml:"storage"`
	Spectate   SpectateConfig   `yaml:"spectate"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// WorldConfig holds simulation world dimensions in world units.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	FloorY float64 `yaml:"floor_y"` // Top of the ground strip; agents at or below it are out of bounds
}

// AgentConfig holds bird physics and geometry.
// All rates are per tick.
type AgentConfig struct {
	StartX           float64 `yaml:"start_x"`
	StartY           float64 `yaml:"start_y"`
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	Gravity          float64 `yaml:"gravity"`
	JumpVelocity     float64 `yaml:"jump_velocity"`
	TerminalVelocity float64 `yaml:"terminal_velocity"` // 0 = unclamped
	Shape            string  `yaml:"shape"`             // "ellipse" or "box"
}

// ObstacleConfig holds pipe geometry and spawn parameters.
type ObstacleConfig struct {
	Velocity     float64 `yaml:"velocity"`
	Width        float64 `yaml:"width"`
	Length       float64 `yaml:"length"` // Height of each rectangle
	Gap          float64 `yaml:"gap"`
	GapCenterMin float64 `yaml:"gap_center_min"`
	GapCenterMax float64 `yaml:"gap_center_max"`
	InitialX     float64 `yaml:"initial_x"`
	SpawnSpacing float64 `yaml:"spawn_spacing"` // Offset from the rightmost obstacle for new spawns
}

// FitnessConfig holds the reward and penalty schedule.
type FitnessConfig struct {
	SurvivalReward   float64 `yaml:"survival_reward"`
	EarlyBonus       float64 `yaml:"early_bonus"`       // Vanishes linearly as score approaches EarlyBonusUntil
	EarlyBonusUntil  int     `yaml:"early_bonus_until"`
	HeightReward     float64 `yaml:"height_reward"`
	MilestoneBase    float64 `yaml:"milestone_base"`
	MilestoneStep    int     `yaml:"milestone_step"` // Milestone reward grows by 1 every this many points
	PenaltyEarly     float64 `yaml:"penalty_early"`
	PenaltyLate      float64 `yaml:"penalty_late"`
	PenaltyThreshold int     `yaml:"penalty_threshold"` // Score at which the late penalty applies
}

// GenerationConfig holds generation termination settings.
type GenerationConfig struct {
	ScoreCap int `yaml:"score_cap"` // Generation ends once score exceeds this; 0 = no cap
	MaxTicks int `yaml:"max_ticks"` // Safety valve; 0 = unlimited
}

// ArenaConfig holds per-tick dispatch settings.
type ArenaConfig struct {
	JumpThreshold     float64 `yaml:"jump_threshold"`
	ParallelDecisions bool    `yaml:"parallel_decisions"`
}

// TrainingConfig holds the training loop settings.
type TrainingConfig struct {
	Generations int     `yaml:"generations"`
	TickRate    int     `yaml:"tick_rate"`    // Ticks per second when paced; 0 = unpaced
	FitnessGoal float64 `yaml:"fitness_goal"` // Stop early when best fitness reaches this; 0 = disabled
	WinnerName  string  `yaml:"winner_name"`
	Seed        int64   `yaml:"seed"` // 0 = time-based
}

// PlayConfig holds single-agent runner settings.
type PlayConfig struct {
	TickRate int `yaml:"tick_rate"`
	ScoreCap int `yaml:"score_cap"`
}

// NeuralConfig holds NEAT parameters.
type NeuralConfig struct {
	PopulationSize        int     `yaml:"population_size"`
	InitialConnectionProb float64 `yaml:"initial_connection_prob"`
	WeightMutPower        float64 `yaml:"weight_mut_power"`
	MutateAddNodeProb     float64 `yaml:"mutate_add_node_prob"`
	MutateAddLinkProb     float64 `yaml:"mutate_add_link_prob"`
	MutateToggleProb      float64 `yaml:"mutate_toggle_enable_prob"`
	MutateLinkWeightsProb float64 `yaml:"mutate_link_weights_prob"`
	MutateOnlyProb        float64 `yaml:"mutate_only_prob"`
	MateOnlyProb          float64 `yaml:"mate_only_prob"`
	CompatThreshold       float64 `yaml:"compat_threshold"`
	DisjointCoeff         float64 `yaml:"disjoint_coeff"`
	ExcessCoeff           float64 `yaml:"excess_coeff"`
	MutdiffCoeff          float64 `yaml:"mutdiff_coeff"`
	DropOffAge            int     `yaml:"drop_off_age"`
	SurvivalThresh        float64 `yaml:"survival_thresh"`
	Elitism               int     `yaml:"elitism"` // Champions copied unchanged per species
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	OutputDir      string `yaml:"output_dir"` // Empty disables CSV output
	HallOfFameSize int    `yaml:"hall_of_fame_size"`
	PerfWindow     int    `yaml:"perf_window"` // Ticks per performance sample window
}

// StorageConfig selects the winner/statistics store.
type StorageConfig struct {
	Kind string `yaml:"kind"` // memory, file or sqlite
	Path string `yaml:"path"`
}

// SpectateConfig holds the websocket spectator settings.
type SpectateConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	EveryTicks int    `yaml:"every_ticks"` // Broadcast one frame every N ticks
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	GapHalf     float64 // Obstacle.Gap / 2
	HalfHeight  float64 // World.Height / 2, the height-centering optimum
	ScreenW32   float32
	ScreenH32   float32
	ScaleX      float32 // Screen pixels per world unit
	ScaleY      float32
	TickSeconds float64 // Seconds per training tick, 0 when unpaced
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("world dimensions must be positive, got %vx%v", c.World.Width, c.World.Height)
	case c.Agent.Width <= 0 || c.Agent.Height <= 0:
		return fmt.Errorf("agent size must be positive, got %vx%v", c.Agent.Width, c.Agent.Height)
	case c.Obstacle.Width <= 0 || c.Obstacle.Gap <= 0:
		return fmt.Errorf("obstacle width and gap must be positive")
	case c.Obstacle.GapCenterMax < c.Obstacle.GapCenterMin:
		return fmt.Errorf("obstacle gap range is inverted: [%v, %v]", c.Obstacle.GapCenterMin, c.Obstacle.GapCenterMax)
	case c.Agent.Shape != "ellipse" && c.Agent.Shape != "box":
		return fmt.Errorf("unknown agent shape %q", c.Agent.Shape)
	case c.Neural.PopulationSize < 1:
		return fmt.Errorf("population size must be at least 1, got %d", c.Neural.PopulationSize)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.GapHalf = c.Obstacle.Gap / 2
	c.Derived.HalfHeight = c.World.Height / 2

	if c.Screen.Width == 0 {
		c.Screen.Width = int(c.World.Width)
	}
	if c.Screen.Height == 0 {
		c.Screen.Height = int(c.World.Height)
	}
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
	c.Derived.ScaleX = c.Derived.ScreenW32 / float32(c.World.Width)
	c.Derived.ScaleY = c.Derived.ScreenH32 / float32(c.World.Height)

	c.Derived.TickSeconds = 0
	if c.Training.TickRate > 0 {
		c.Derived.TickSeconds = 1.0 / float64(c.Training.TickRate)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
