package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// minMayflyPopulation is the smallest population the library accepts.
const minMayflyPopulation = 20

// MayflyAdapter wraps the external Mayfly library as a population-based
// baseline for the late acceptance optimizer.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a Mayfly optimizer. Small populations are raised to the
// library minimum.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  max(popSize, minMayflyPopulation),
		seed:     seed,
	}
}

// Run searches the unit cube and maps each position onto [lower, upper]
// per dimension, since the library only supports one scalar bound pair.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	scratch := make([]float64, dim)
	scale := func(unit []float64) []float64 {
		for i, u := range unit {
			scratch[i] = lower[i] + u*(upper[i]-lower[i])
		}
		return scratch
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(unit []float64) float64 { return eval(scale(unit)) }
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Error("Mayfly optimization failed", "error", err)
		centre := make([]float64, dim)
		for i := range centre {
			centre[i] = (lower[i] + upper[i]) / 2
		}
		return centre, eval(centre)
	}

	best := append([]float64(nil), scale(result.GlobalBest.Position)...)
	return best, result.GlobalBest.Cost
}
