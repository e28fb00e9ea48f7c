package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/lahc"
	"github.com/cwbudde/lahc/internal/problem"
	"github.com/cwbudde/lahc/internal/store"
)

// workerDeps groups what a job worker needs besides the job itself. Store,
// TraceDir and Metrics are optional.
type workerDeps struct {
	jobs     *JobManager
	store    store.Store
	traceDir string
	metrics  *Metrics

	progressInterval time.Duration
}

// engineConfig converts a persisted job configuration into an engine
// configuration. Search fields are resolved when the job is created, so only
// a zero history length still selects the default.
func engineConfig(cfg JobConfig) lahc.Config {
	out := lahc.DefaultConfig()
	out.CopyStrategy = lahc.CopyStrategy(cfg.CopyStrategy)
	out.Comparison = lahc.Comparison(cfg.Comparison)
	out.StepsMinimum = cfg.StepsMinimum
	out.StepsIdleFraction = cfg.StepsIdleFraction
	if cfg.HistoryLength != 0 {
		out.HistoryLength = cfg.HistoryLength
	}
	return out
}

// runJob executes a search job in the background. It returns once the
// solver has stopped for any reason and the job is in a terminal state.
func runJob(ctx context.Context, deps workerDeps, jobID string) error {
	jm := deps.jobs

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	runner, err := problem.Lookup(job.Config.Problem)
	if err != nil {
		markJobFailed(deps, job, err)
		return err
	}

	start := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.StartTime = start
	}); err != nil {
		return err
	}
	if deps.metrics != nil {
		deps.metrics.jobStarted()
	}

	logger := slog.Default().With("job_id", jobID, "problem", job.Config.Problem)
	logger.Info("Starting job", "history_length", job.Config.HistoryLength, "resumed_from", job.ResumedFrom)

	var trace *store.TraceWriter
	if deps.traceDir != "" {
		trace, err = store.NewTraceWriter(deps.traceDir, jobID, false)
		if err != nil {
			logger.Warn("Trace disabled", "error", err)
			trace = nil
		}
	}
	closeTrace := func() {
		if trace == nil {
			return
		}
		if err := trace.Close(); err != nil {
			logger.Warn("Failed to close trace", "error", err)
		}
		trace = nil
	}

	lastStep := 0
	spec := problem.RunSpec{
		Config:       engineConfig(job.Config),
		Seed:         job.Config.Seed,
		InitialState: job.InitialState,
		Logger:       logger,
		Progress: func(stats lahc.Stats) {
			jm.UpdateJob(jobID, func(j *Job) { j.applyStats(stats) })
			if trace != nil {
				if err := trace.Write(store.EntryFromStats(stats)); err != nil {
					logger.Warn("Failed to write trace entry", "error", err)
				}
			}
			if deps.metrics != nil {
				deps.metrics.progress(job.Config.Problem, stats.Step-lastStep, stats.BestEnergy)
			}
			lastStep = stats.Step
		},
		OnBest: func(best json.RawMessage, stats lahc.Stats) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.BestState = best
				j.BestEnergy = stats.BestEnergy
			})
		},
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, deps, jobID, start, progressDone)

	checkpointing := deps.store != nil && job.Config.CheckpointInterval > 0
	checkpointDone := make(chan struct{})
	if checkpointing {
		go monitorCheckpoints(ctx, deps, jobID, checkpointDone)
	}

	outcome, err := runner.Run(ctx, spec)

	close(progressDone)
	close(checkpointDone)
	closeTrace()

	if err != nil {
		markJobFailed(deps, job, err)
		return err
	}

	endTime := time.Now()
	state := StateCompleted
	if outcome.Reason == lahc.Interrupted {
		state = StateCancelled
	}
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.applyStats(outcome.Stats)
		j.BestState = outcome.BestState
		j.BestEnergy = outcome.BestEnergy
		j.InitialEnergy = outcome.InitialEnergy
		j.Reason = outcome.Reason
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	// The final state is always persisted so that cancelled runs can be
	// resumed.
	if checkpointing {
		if err := saveCheckpoint(deps, jobID); err != nil {
			logger.Error("Failed to save final checkpoint", "error", err)
		}
	}

	elapsed := endTime.Sub(start)
	if deps.metrics != nil {
		deps.metrics.jobFinished(job.Config.Problem, state, elapsed)
	}

	logger.Info("Job finished",
		"state", state,
		"elapsed", elapsed,
		"steps", outcome.Stats.Step,
		"initial_energy", outcome.InitialEnergy,
		"best_energy", outcome.BestEnergy,
		"steps_per_second", stepsPerSecond(outcome.Stats.Step, elapsed),
	)

	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(eventFromJob(final, stepsPerSecond(final.Step, elapsed)))
	return nil
}

func stepsPerSecond(steps int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(steps) / elapsed.Seconds()
}

// monitorProgress periodically broadcasts progress events during the search
func monitorProgress(ctx context.Context, deps workerDeps, jobID string, startTime time.Time, done chan struct{}) {
	interval := deps.progressInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := deps.jobs.GetJob(jobID)
			if !exists {
				return
			}
			deps.jobs.broadcaster.Broadcast(eventFromJob(job, stepsPerSecond(job.Step, time.Since(startTime))))
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(deps workerDeps, job *Job, err error) {
	endTime := time.Now()
	wasRunning := false
	deps.jobs.UpdateJob(job.ID, func(j *Job) {
		wasRunning = j.State == StateRunning
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	if deps.metrics != nil {
		if !wasRunning {
			deps.metrics.jobStarted()
		}
		deps.metrics.jobFinished(job.Config.Problem, StateFailed, endTime.Sub(job.StartTime))
	}
	slog.Error("Job failed", "job_id", job.ID, "error", err)

	if final, ok := deps.jobs.GetJob(job.ID); ok {
		deps.jobs.broadcaster.Broadcast(eventFromJob(final, 0))
	}
}

// monitorCheckpoints periodically saves checkpoints during the search
func monitorCheckpoints(ctx context.Context, deps workerDeps, jobID string, done chan struct{}) {
	job, exists := deps.jobs.GetJob(jobID)
	if !exists {
		return
	}

	ticker := time.NewTicker(time.Duration(job.Config.CheckpointInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(deps, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint persists the best state of a job
func saveCheckpoint(deps workerDeps, jobID string) error {
	job, exists := deps.jobs.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.BestState) == 0 {
		slog.Debug("Skipping checkpoint, no best state yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.BestState,
		job.BestEnergy,
		job.InitialEnergy,
		job.Step,
		job.Idle,
		job.Config,
	)

	err := deps.store.SaveCheckpoint(jobID, checkpoint)
	if deps.metrics != nil {
		deps.metrics.checkpoint(err)
	}
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"step", job.Step,
		"best_energy", job.BestEnergy,
	)
	return nil
}
