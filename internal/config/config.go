package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cwbudde/lahc"
	"gopkg.in/yaml.v3"
)

// RunConfig describes a single optimization run. It can be loaded from a
// YAML file and is the common source for the CLI and the job server.
type RunConfig struct {
	// Problem is the registered problem name (see internal/problem).
	Problem string `json:"problem" yaml:"problem"`

	// Optimizer selects the engine: "lahc" runs the registered problem,
	// "mayfly" runs the continuous objective of the same name as a baseline.
	Optimizer string `json:"optimizer" yaml:"optimizer"`

	Seed int64 `json:"seed" yaml:"seed"`

	Search SearchConfig `json:"search" yaml:"search"`

	Mayfly MayflyConfig `json:"mayfly" yaml:"mayfly"`

	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
}

// SearchConfig mirrors lahc.Config with YAML-friendly names.
type SearchConfig struct {
	HistoryLength     int     `json:"historyLength" yaml:"history_length"`
	StepsMinimum      int     `json:"stepsMinimum" yaml:"steps_minimum"`
	StepsIdleFraction float64 `json:"stepsIdleFraction" yaml:"steps_idle_fraction"`
	CopyStrategy      string  `json:"copyStrategy,omitempty" yaml:"copy_strategy"`
	Comparison        string  `json:"comparison,omitempty" yaml:"comparison"`
	ProgressEvery     int     `json:"progressEvery" yaml:"progress_every"`

	Convergence ConvergenceConfig `json:"convergence" yaml:"convergence"`
}

// ConvergenceConfig adds an early stop on stalled progress to the idle rule.
// Patience zero disables it; Every zero samples at every progress report.
type ConvergenceConfig struct {
	Every     int     `json:"every,omitempty" yaml:"every"`
	Patience  int     `json:"patience,omitempty" yaml:"patience"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold"`
}

// MayflyConfig configures the population baseline.
type MayflyConfig struct {
	MaxIters int `json:"maxIters" yaml:"max_iters"`
	PopSize  int `json:"popSize" yaml:"pop_size"`
}

// CheckpointConfig controls periodic persistence of the best state.
type CheckpointConfig struct {
	DataDir string `json:"dataDir" yaml:"data_dir"`
	// Interval between checkpoints; zero disables checkpointing.
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Default returns the configuration used when no file is given.
func Default() RunConfig {
	return RunConfig{
		Problem:   "quadratic",
		Optimizer: "lahc",
		Seed:      42,
		Search: SearchConfig{
			HistoryLength:     lahc.DefaultHistoryLength,
			StepsMinimum:      lahc.DefaultStepsMinimum,
			StepsIdleFraction: lahc.DefaultStepsIdleFraction,
			ProgressEvery:     lahc.DefaultProgressEvery,
		},
		Mayfly: MayflyConfig{
			MaxIters: 500,
			PopSize:  30,
		},
		Checkpoint: CheckpointConfig{
			DataDir: "./data",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (RunConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c RunConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LAHC converts the search section into an engine configuration.
func (c RunConfig) LAHC() lahc.Config {
	return lahc.Config{
		HistoryLength:     c.Search.HistoryLength,
		StepsMinimum:      c.Search.StepsMinimum,
		StepsIdleFraction: c.Search.StepsIdleFraction,
		CopyStrategy:      lahc.CopyStrategy(c.Search.CopyStrategy),
		Comparison:        lahc.Comparison(c.Search.Comparison),
		ProgressEvery:     c.Search.ProgressEvery,
	}
}

// Policy returns the termination policy of the run, or nil for the engine
// default.
func (c RunConfig) Policy() lahc.Policy {
	conv, ok := c.convergence()
	if !ok {
		return nil
	}
	return lahc.Any(
		lahc.DefaultPolicy(c.Search.StepsMinimum, c.Search.StepsIdleFraction),
		lahc.Converged(conv),
	)
}

func (c RunConfig) convergence() (lahc.ConvergenceConfig, bool) {
	conv := c.Search.Convergence
	if conv.Patience == 0 {
		return lahc.ConvergenceConfig{}, false
	}
	every := conv.Every
	if every == 0 {
		every = c.Search.ProgressEvery
	}
	if every == 0 {
		every = lahc.DefaultProgressEvery
	}
	return lahc.ConvergenceConfig{Every: every, Patience: conv.Patience, Threshold: conv.Threshold}, true
}

// Validate checks the application-level fields and delegates the search
// section to lahc.Config.Validate.
func (c RunConfig) Validate() error {
	if c.Problem == "" {
		return fmt.Errorf("problem is required")
	}
	switch c.Optimizer {
	case "", "lahc":
	case "mayfly":
		if c.Mayfly.MaxIters <= 0 {
			return fmt.Errorf("mayfly.max_iters must be positive")
		}
	default:
		return fmt.Errorf("unknown optimizer: %s", c.Optimizer)
	}
	if c.Checkpoint.Interval < 0 {
		return fmt.Errorf("checkpoint.interval cannot be negative")
	}
	if conv := c.Search.Convergence; conv.Patience < 0 || conv.Every < 0 {
		return fmt.Errorf("search.convergence: patience and every cannot be negative")
	}
	if conv, ok := c.convergence(); ok {
		if err := conv.Validate(); err != nil {
			return err
		}
	}
	return c.LAHC().Validate()
}
