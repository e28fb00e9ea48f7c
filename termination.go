package lahc

import "math"

// View is the read-only face of a running solver handed to termination
// policies.
type View interface {
	// Step is the number of completed steps.
	Step() int
	// Idle is the number of steps since the best energy last improved.
	Idle() int
	CurrentEnergy() float64
	BestEnergy() float64
	// HistoryLength is the configured buffer length L.
	HistoryLength() int
	// AcceptanceRate is the fraction of completed steps whose candidate was
	// accepted.
	AcceptanceRate() float64
}

// Policy decides after each completed step whether the search stops.
type Policy func(View) (bool, error)

// DefaultPolicy stops once at least stepsMinimum steps have completed and the
// idle count has reached ceil(idleFraction * step).
func DefaultPolicy(stepsMinimum int, idleFraction float64) Policy {
	return func(v View) (bool, error) {
		step := v.Step()
		if step < stepsMinimum {
			return false, nil
		}
		return float64(v.Idle()) >= math.Ceil(idleFraction*float64(step)), nil
	}
}

// MaxSteps stops after n completed steps regardless of progress.
func MaxSteps(n int) Policy {
	return func(v View) (bool, error) {
		return v.Step() >= n, nil
	}
}

// Any stops as soon as one of the policies does. Policies are evaluated in
// order and the first error is returned.
func Any(policies ...Policy) Policy {
	return func(v View) (bool, error) {
		for _, p := range policies {
			stop, err := p(v)
			if err != nil {
				return false, err
			}
			if stop {
				return true, nil
			}
		}
		return false, nil
	}
}
