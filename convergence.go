package lahc

import "math"

// ConvergenceConfig parameterises Converged.
type ConvergenceConfig struct {
	// Every is the number of steps between samples of the best energy.
	Every int

	// Patience is the number of consecutive samples without significant
	// improvement after which the search stops.
	Patience int

	// Threshold is the minimum relative improvement that counts as progress,
	// measured against the last significant best energy.
	// Example: 0.001 = 0.1% improvement required.
	Threshold float64
}

// Validate reports an invalid field as a *ConfigError.
func (c ConvergenceConfig) Validate() error {
	if c.Every < 1 {
		return &ConfigError{Field: "Convergence.Every", Reason: "must be at least 1"}
	}
	if c.Patience < 1 {
		return &ConfigError{Field: "Convergence.Patience", Reason: "must be at least 1"}
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 {
		return &ConfigError{Field: "Convergence.Threshold", Reason: "cannot be negative"}
	}
	return nil
}

// convergenceTracker counts samples without significant improvement.
type convergenceTracker struct {
	cfg             ConvergenceConfig
	sampled         bool
	lastSignificant float64
	stale           int
}

// update records a best energy sample and reports whether patience ran out.
func (c *convergenceTracker) update(best float64) bool {
	if !c.sampled {
		c.sampled = true
		c.lastSignificant = best
		return false
	}

	improvement := c.lastSignificant - best
	if improvement > 0 && improvement >= c.cfg.Threshold*math.Abs(c.lastSignificant) {
		c.lastSignificant = best
		c.stale = 0
		return false
	}

	c.stale++
	return c.stale >= c.cfg.Patience
}

// Converged stops once the best energy has not improved by a relative
// Threshold for Patience consecutive samples taken every Every steps. The
// first sample, taken at step Every, only sets the baseline.
//
// The returned policy is stateful and must not be shared between solvers.
func Converged(cfg ConvergenceConfig) Policy {
	tracker := &convergenceTracker{cfg: cfg}
	return func(v View) (bool, error) {
		if err := cfg.Validate(); err != nil {
			return false, err
		}
		step := v.Step()
		if step == 0 || step%cfg.Every != 0 {
			return false, nil
		}
		return tracker.update(v.BestEnergy()), nil
	}
}
