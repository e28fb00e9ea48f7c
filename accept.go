package lahc

import "fmt"

// Comparison selects the tie-break used against the history threshold.
type Comparison string

const (
	// CompareNonStrict accepts candidates equal to the threshold. This is the
	// published algorithm.
	CompareNonStrict Comparison = "non-strict"

	// CompareStrictHistory requires a strict improvement on the threshold
	// while keeping the non-strict test against the current energy.
	CompareStrictHistory Comparison = "strict-history"
)

// ParseComparison converts a configuration string into a Comparison. The
// empty string selects CompareNonStrict.
func ParseComparison(s string) (Comparison, error) {
	switch Comparison(s) {
	case "", CompareNonStrict:
		return CompareNonStrict, nil
	case CompareStrictHistory:
		return CompareStrictHistory, nil
	default:
		return "", &ConfigError{Field: "Comparison", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// Accept reports whether a candidate replaces the current solution. It holds
// no state; threshold is the history slot for the current step.
func Accept(current, candidate, threshold float64, mode Comparison) bool {
	if candidate <= current {
		return true
	}
	if mode == CompareStrictHistory {
		return candidate < threshold
	}
	return candidate <= threshold
}
