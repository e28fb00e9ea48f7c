package opt

import (
	"context"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/lahc"
)

// LAHCAdapter runs a late acceptance trajectory over a bounded vector using
// Gaussian coordinate perturbations.
type LAHCAdapter struct {
	cfg   lahc.Config
	seed  int64
	scale float64
}

// NewLAHC creates a late acceptance optimizer. scale is the standard
// deviation of each step relative to the bound width; zero selects 1%.
func NewLAHC(cfg lahc.Config, seed int64, scale float64) Optimizer {
	if scale <= 0 {
		scale = 0.01
	}
	return &LAHCAdapter{cfg: cfg, seed: seed, scale: scale}
}

// Run starts from the centre of the box and returns the best point found.
func (l *LAHCAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(l.seed))

	start := make([]float64, dim)
	for i := range start {
		start[i] = (lower[i] + upper[i]) / 2
	}

	cfg := l.cfg
	cfg.CopyStrategy = lahc.CopyShallow
	problem := lahc.Problem[[]float64]{
		Move:   GaussianStep(rng, l.scale, lower, upper),
		Energy: func(x []float64) (float64, error) { return eval(x), nil },
	}

	solver, err := lahc.New(start, problem, cfg)
	if err != nil {
		// Fallback to the starting point if the configuration is unusable
		slog.Error("LAHC optimizer misconfigured", "error", err)
		return start, eval(start)
	}
	res, err := solver.Run(context.Background())
	if err != nil {
		slog.Error("LAHC optimizer failed", "error", err)
		return start, eval(start)
	}
	return res.Best, res.BestEnergy
}

// GaussianStep perturbs every coordinate by a normal deviate scaled to the
// bound width and clamps the result to the box. The input is not modified.
func GaussianStep(rng *rand.Rand, scale float64, lower, upper []float64) lahc.MoveFunc[[]float64] {
	return func(x []float64) ([]float64, error) {
		next := make([]float64, len(x))
		for i, v := range x {
			width := upper[i] - lower[i]
			next[i] = math.Max(lower[i], math.Min(upper[i], v+rng.NormFloat64()*scale*width))
		}
		return next, nil
	}
}
