package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cwbudde/lahc"
	"github.com/cwbudde/lahc/internal/config"
	"github.com/cwbudde/lahc/internal/problem"
	"github.com/cwbudde/lahc/internal/store"
)

// session is one CLI search run, optionally persisted under a job ID.
type session struct {
	jobID string
	cfg   config.RunConfig

	// initial seeds the run; nil lets the problem pick its start.
	initial json.RawMessage

	// store enables traces and checkpoints when set.
	store *store.FSStore

	// prior is the checkpoint a resumed run continues from.
	prior *store.Checkpoint
}

// jobConfig is the persisted form of a run configuration.
func jobConfig(cfg config.RunConfig) store.JobConfig {
	return store.JobConfig{
		Problem:            cfg.Problem,
		HistoryLength:      cfg.Search.HistoryLength,
		StepsMinimum:       cfg.Search.StepsMinimum,
		StepsIdleFraction:  cfg.Search.StepsIdleFraction,
		CopyStrategy:       cfg.Search.CopyStrategy,
		Comparison:         cfg.Search.Comparison,
		Seed:               cfg.Seed,
		CheckpointInterval: int(cfg.Checkpoint.Interval / time.Second),
	}
}

// runConfigFromJob rebuilds a run configuration from a checkpoint.
func runConfigFromJob(jc store.JobConfig) config.RunConfig {
	cfg := config.Default()
	cfg.Problem = jc.Problem
	cfg.Seed = jc.Seed
	cfg.Search.HistoryLength = jc.HistoryLength
	cfg.Search.StepsMinimum = jc.StepsMinimum
	cfg.Search.StepsIdleFraction = jc.StepsIdleFraction
	cfg.Search.CopyStrategy = jc.CopyStrategy
	cfg.Search.Comparison = jc.Comparison
	cfg.Checkpoint.Interval = time.Duration(jc.CheckpointInterval) * time.Second
	return cfg
}

func (s *session) baseStep() int {
	if s.prior == nil {
		return 0
	}
	return s.prior.Step
}

func (s *session) checkpoint(best json.RawMessage, stats lahc.Stats) *store.Checkpoint {
	initial := stats.InitialEnergy
	if s.prior != nil && s.prior.InitialEnergy > initial {
		initial = s.prior.InitialEnergy
	}
	return store.NewCheckpoint(s.jobID, best, stats.BestEnergy, initial,
		s.baseStep()+stats.Step, stats.Idle, jobConfig(s.cfg))
}

// run executes the search. Traces and checkpoints are best effort: failures
// are logged and do not abort the run.
func (s *session) run(ctx context.Context) (*problem.Outcome, error) {
	runner, err := problem.Lookup(s.cfg.Problem)
	if err != nil {
		return nil, err
	}

	jobLog := slog.Default().With("job_id", s.jobID)

	var trace *store.TraceWriter
	if s.store != nil {
		trace, err = store.NewTraceWriter(s.store.BaseDir(), s.jobID, s.prior != nil)
		if err != nil {
			jobLog.Warn("Trace disabled", "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	lastSave := time.Now()
	spec := problem.RunSpec{
		Config:       s.cfg.LAHC(),
		Seed:         s.cfg.Seed,
		InitialState: s.initial,
		Terminate:    s.cfg.Policy(),
		Logger:       jobLog,
		Progress: func(stats lahc.Stats) {
			if trace == nil {
				return
			}
			entry := store.EntryFromStats(stats)
			entry.Step += s.baseStep()
			if err := trace.Write(entry); err != nil {
				jobLog.Warn("Failed to write trace entry", "error", err)
			}
		},
		OnBest: func(best json.RawMessage, stats lahc.Stats) {
			interval := s.cfg.Checkpoint.Interval
			if s.store == nil || interval <= 0 || time.Since(lastSave) < interval {
				return
			}
			lastSave = time.Now()
			if err := s.store.SaveCheckpoint(s.jobID, s.checkpoint(best, stats)); err != nil {
				jobLog.Error("Failed to save checkpoint", "error", err)
			}
		},
	}

	out, err := runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SaveCheckpoint(s.jobID, s.checkpoint(out.BestState, out.Stats)); err != nil {
			jobLog.Error("Failed to save final checkpoint", "error", err)
		}
	}
	return out, nil
}

// printOutcome writes a human readable summary of a run.
func printOutcome(w io.Writer, jobID string, out *problem.Outcome) {
	if jobID != "" {
		fmt.Fprintf(w, "Job: %s\n", jobID)
	}
	fmt.Fprintf(w, "Problem: %s\n", out.Problem)
	fmt.Fprintf(w, "Stopped: %s after %d steps (best at step %d, idle %d)\n",
		out.Reason, out.Stats.Step, out.Stats.BestStep, out.Stats.Idle)
	fmt.Fprintf(w, "Energy: %.6g -> %.6g\n", out.InitialEnergy, out.BestEnergy)
	fmt.Fprintf(w, "Acceptance: %.1f%%, improvement: %.1f%%\n",
		out.Stats.AcceptanceRate*100, out.Stats.ImprovementRate*100)
	fmt.Fprintf(w, "Elapsed: %s\n", out.Stats.Elapsed.Round(time.Millisecond))

	if out.Problem == "tsp" {
		var order []int
		if err := json.Unmarshal(out.BestState, &order); err == nil {
			fmt.Fprintf(w, "Route: %s\n", strings.Join(problem.CityNames(order), " -> "))
			return
		}
	}
	fmt.Fprintf(w, "Best: %s\n", out.BestState)
}
