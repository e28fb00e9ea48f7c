package lahc

import "math"

// Defaults for Config.
const (
	DefaultHistoryLength     = 5000
	DefaultStepsMinimum      = 100000
	DefaultStepsIdleFraction = 0.02
	DefaultProgressEvery     = 100
)

// Config holds construction-time options of a Solver.
type Config struct {
	// HistoryLength is the lag L. Required, at least 1.
	HistoryLength int

	// StepsMinimum and StepsIdleFraction parameterise DefaultPolicy. They
	// are ignored when the Problem supplies its own Terminate.
	StepsMinimum      int
	StepsIdleFraction float64

	// CopyStrategy selects how best and isolated states are snapshotted.
	// Empty means CopyDeep. Problem.Copy takes precedence.
	CopyStrategy CopyStrategy

	// Comparison selects the tie-break against the history threshold.
	// Empty means CompareNonStrict.
	Comparison Comparison

	// MutatingMove makes the solver copy the current state before handing
	// it to Move, for moves that modify their input in place.
	MutatingMove bool

	// ProgressEvery is the number of steps between progress reports.
	// Zero disables reporting.
	ProgressEvery int
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLength:     DefaultHistoryLength,
		StepsMinimum:      DefaultStepsMinimum,
		StepsIdleFraction: DefaultStepsIdleFraction,
		CopyStrategy:      CopyDeep,
		Comparison:        CompareNonStrict,
		ProgressEvery:     DefaultProgressEvery,
	}
}

// Validate reports the first invalid option as a *ConfigError.
func (c Config) Validate() error {
	if c.HistoryLength < 1 {
		return &ConfigError{Field: "HistoryLength", Reason: "must be at least 1"}
	}
	if c.StepsMinimum < 0 {
		return &ConfigError{Field: "StepsMinimum", Reason: "cannot be negative"}
	}
	if math.IsNaN(c.StepsIdleFraction) || c.StepsIdleFraction < 0 || c.StepsIdleFraction > 1 {
		return &ConfigError{Field: "StepsIdleFraction", Reason: "must be in [0, 1]"}
	}
	if _, err := ParseCopyStrategy(string(c.CopyStrategy)); err != nil {
		return err
	}
	if _, err := ParseComparison(string(c.Comparison)); err != nil {
		return err
	}
	if c.ProgressEvery < 0 {
		return &ConfigError{Field: "ProgressEvery", Reason: "cannot be negative"}
	}
	return nil
}
