package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/lahc/internal/config"
	"github.com/cwbudde/lahc/internal/problem"
	"github.com/cwbudde/lahc/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	runConfigPath string
	runOutPath    string
	runPersist    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single search",
	Long: `Runs a late acceptance search on a built-in problem and prints the best
state found. Settings come from an optional YAML file (--config); flags that
are set explicitly override the file. Ctrl-C stops the search at the next
step boundary and still reports the best state.

With --optimizer mayfly the continuous objective of the same name is solved
with the Mayfly population optimizer instead.`,
	RunE: runSearch,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "YAML run configuration")
	runCmd.Flags().StringVar(&runOutPath, "out", "", "Write the best state as JSON to this file")
	runCmd.Flags().String("data-dir", "", "Checkpoint directory (overrides the config file)")
	runCmd.Flags().BoolVar(&runPersist, "checkpoint", false, "Persist trace and checkpoints under --data-dir")
	addSearchFlags(runCmd.Flags())
	runCmd.Flags().String("problem", "quadratic", "Problem: "+fmt.Sprint(problem.Names()))
	runCmd.Flags().String("optimizer", "lahc", "Optimizer: lahc or mayfly")
	runCmd.Flags().Int("iters", 500, "Mayfly iterations")
	runCmd.Flags().Int("pop", 30, "Mayfly population size")
	runCmd.Flags().Duration("checkpoint-interval", 0, "Minimum time between checkpoints (0 = only at the end)")

	rootCmd.AddCommand(runCmd)
}

// addSearchFlags registers the engine flags shared by run and resume.
func addSearchFlags(fs *pflag.FlagSet) {
	fs.Int("history", 0, "History length L (default from config)")
	fs.Int("steps-min", 0, "Minimum number of steps before idle termination")
	fs.Float64("idle-fraction", 0, "Stop once idle steps reach this fraction of all steps")
	fs.String("copy", "", "Copy strategy: deep, shallow, identity, method")
	fs.String("comparison", "", "History comparison: non-strict, strict-history")
	fs.Int("progress-every", 0, "Steps between progress reports")
	fs.Int64("seed", 0, "Random seed")
	fs.Int("patience", 0, "Stop after this many progress samples without improvement (0 = off)")
	fs.Float64("stall-threshold", 0, "Relative best energy improvement that resets --patience")
}

// applyFlags overrides cfg with every flag that was set explicitly.
func applyFlags(cfg *config.RunConfig, fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Lookup(name) != nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("problem", func() (e error) { cfg.Problem, e = fs.GetString("problem"); return })
	set("optimizer", func() (e error) { cfg.Optimizer, e = fs.GetString("optimizer"); return })
	set("seed", func() (e error) { cfg.Seed, e = fs.GetInt64("seed"); return })
	set("history", func() (e error) { cfg.Search.HistoryLength, e = fs.GetInt("history"); return })
	set("steps-min", func() (e error) { cfg.Search.StepsMinimum, e = fs.GetInt("steps-min"); return })
	set("idle-fraction", func() (e error) { cfg.Search.StepsIdleFraction, e = fs.GetFloat64("idle-fraction"); return })
	set("copy", func() (e error) { cfg.Search.CopyStrategy, e = fs.GetString("copy"); return })
	set("comparison", func() (e error) { cfg.Search.Comparison, e = fs.GetString("comparison"); return })
	set("progress-every", func() (e error) { cfg.Search.ProgressEvery, e = fs.GetInt("progress-every"); return })
	set("patience", func() (e error) { cfg.Search.Convergence.Patience, e = fs.GetInt("patience"); return })
	set("stall-threshold", func() (e error) { cfg.Search.Convergence.Threshold, e = fs.GetFloat64("stall-threshold"); return })
	set("iters", func() (e error) { cfg.Mayfly.MaxIters, e = fs.GetInt("iters"); return })
	set("pop", func() (e error) { cfg.Mayfly.PopSize, e = fs.GetInt("pop"); return })
	set("checkpoint-interval", func() (e error) { cfg.Checkpoint.Interval, e = fs.GetDuration("checkpoint-interval"); return })
	set("data-dir", func() (e error) { cfg.Checkpoint.DataDir, e = fs.GetString("data-dir"); return })
	if err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	return nil
}

// resolveRunConfig merges defaults, the optional YAML file and flags.
func resolveRunConfig(path string, fs *pflag.FlagSet) (config.RunConfig, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(runConfigPath, cmd.Flags())
	if err != nil {
		return err
	}

	if cfg.Optimizer == "mayfly" {
		return runVector(cmd, cfg)
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	s := &session{cfg: cfg}
	if runPersist {
		s.jobID = uuid.New().String()
		if s.store, err = store.NewFSStore(cfg.Checkpoint.DataDir); err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
	}

	slog.Info("Starting search",
		"problem", cfg.Problem,
		"history_length", cfg.Search.HistoryLength,
		"steps_minimum", cfg.Search.StepsMinimum,
		"seed", cfg.Seed,
	)

	out, err := s.run(ctx)
	if err != nil {
		return err
	}

	printOutcome(cmd.OutOrStdout(), s.jobID, out)
	return writeBest(runOutPath, out.BestState)
}

func writeBest(path string, best []byte) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, append(best, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write best state: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// runVector solves a continuous objective with a vector optimizer.
func runVector(cmd *cobra.Command, cfg config.RunConfig) error {
	obj, err := problem.LookupObjective(cfg.Problem)
	if err != nil {
		return fmt.Errorf("optimizer %s needs a continuous problem: %w", cfg.Optimizer, err)
	}

	best, cost, elapsed, err := solveObjective(cfg.Optimizer, cfg, obj)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Problem: %s (optimizer %s)\n", obj.Name, cfg.Optimizer)
	fmt.Fprintf(w, "Energy: %.6g -> %.6g\n", obj.Func(obj.Start), cost)
	fmt.Fprintf(w, "Best: %v (solution %v)\n", best, obj.Solution)
	fmt.Fprintf(w, "Elapsed: %s\n", elapsed.Round(time.Millisecond))
	return nil
}
