package opt

// Optimizer defines an optimization algorithm over bounded real vectors
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// New returns the optimizer registered under name ("lahc" or "mayfly").
func New(name string, settings Settings) (Optimizer, error) {
	switch name {
	case "", "lahc":
		return NewLAHC(settings.LAHC, settings.Seed, settings.StepScale), nil
	case "mayfly":
		return NewMayfly(settings.MaxIters, settings.PopSize, settings.Seed), nil
	default:
		return nil, &UnknownOptimizerError{Name: name}
	}
}

// UnknownOptimizerError is returned by New for unsupported names.
type UnknownOptimizerError struct {
	Name string
}

func (e *UnknownOptimizerError) Error() string {
	return "unknown optimizer: " + e.Name
}
