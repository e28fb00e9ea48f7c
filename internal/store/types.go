package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// JobConfig is the persisted copy of a job's run settings. It is kept
// separate from the server's job type to avoid an import cycle.
type JobConfig struct {
	Problem            string  `json:"problem"`
	HistoryLength      int     `json:"historyLength"`
	StepsMinimum       int     `json:"stepsMinimum"`
	StepsIdleFraction  float64 `json:"stepsIdleFraction"`
	CopyStrategy       string  `json:"copyStrategy,omitempty"`
	Comparison         string  `json:"comparison,omitempty"`
	Seed               int64   `json:"seed"`
	CheckpointInterval int     `json:"checkpointInterval,omitempty"` // seconds, 0 = disabled
}

// Checkpoint is a saved search state that can be resumed later.
//
// Only the best state is stored. The history buffer and the working state
// are not: a resumed run starts a fresh trajectory from BestState with a
// history filled with BestEnergy, so the best energy never gets worse but the
// run is not a bit-exact continuation.
type Checkpoint struct {
	JobID string `json:"jobId"`

	// BestState is the problem's JSON encoding of the best state found.
	BestState json.RawMessage `json:"bestState"`

	BestEnergy    float64 `json:"bestEnergy"`
	InitialEnergy float64 `json:"initialEnergy"`

	// Step and Idle are the solver counters at checkpoint time.
	Step int `json:"step"`
	Idle int `json:"idle"`

	Timestamp time.Time `json:"timestamp"`

	Config JobConfig `json:"config"`
}

// CheckpointInfo is the listing view of a checkpoint.
type CheckpointInfo struct {
	JobID         string    `json:"jobId"`
	Problem       string    `json:"problem"`
	BestEnergy    float64   `json:"bestEnergy"`
	Step          int       `json:"step"`
	HistoryLength int       `json:"historyLength"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewCheckpoint creates a checkpoint stamped with the current time.
func NewCheckpoint(jobID string, bestState json.RawMessage, bestEnergy, initialEnergy float64, step, idle int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:         jobID,
		BestState:     bestState,
		BestEnergy:    bestEnergy,
		InitialEnergy: initialEnergy,
		Step:          step,
		Idle:          idle,
		Timestamp:     time.Now(),
		Config:        config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:         c.JobID,
		Problem:       c.Config.Problem,
		BestEnergy:    c.BestEnergy,
		Step:          c.Step,
		HistoryLength: c.Config.HistoryLength,
		Timestamp:     c.Timestamp,
	}
}

// Validate checks that the checkpoint can be used to resume a run.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestState) == 0 {
		return &ValidationError{Field: "BestState", Reason: "cannot be empty"}
	}
	if !json.Valid(c.BestState) {
		return &ValidationError{Field: "BestState", Reason: "is not valid JSON"}
	}
	if math.IsNaN(c.BestEnergy) {
		return &ValidationError{Field: "BestEnergy", Reason: "cannot be NaN"}
	}
	if c.BestEnergy > c.InitialEnergy {
		return &ValidationError{Field: "BestEnergy", Reason: "cannot exceed InitialEnergy"}
	}
	if c.Step < 0 {
		return &ValidationError{Field: "Step", Reason: "cannot be negative"}
	}
	if c.Idle < 0 || c.Idle > c.Step {
		return &ValidationError{Field: "Idle", Reason: fmt.Sprintf("must be within [0, %d]", c.Step)}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if c.Config.HistoryLength < 1 {
		return &ValidationError{Field: "Config.HistoryLength", Reason: "must be positive"}
	}
	if c.Config.StepsMinimum < 0 {
		return &ValidationError{Field: "Config.StepsMinimum", Reason: "cannot be negative"}
	}
	if f := c.Config.StepsIdleFraction; math.IsNaN(f) || f < 0 || f > 1 {
		return &ValidationError{Field: "Config.StepsIdleFraction", Reason: "must be within [0, 1]"}
	}
	return nil
}

// ErrInvalid matches any *ValidationError via errors.Is.
var ErrInvalid = &ValidationError{}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// IsCompatible reports whether this checkpoint can seed a run with config.
// Only the problem has to match; search settings may change between runs.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Problem != config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: c.Config.Problem,
			Actual:   config.Problem,
		}
	}
	if config.HistoryLength < 1 {
		return &CompatibilityError{
			Field:    "HistoryLength",
			Expected: ">= 1",
			Actual:   strconv.Itoa(config.HistoryLength),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
