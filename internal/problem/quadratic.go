package problem

import (
	"math/rand"

	"github.com/cwbudde/lahc"
)

// QuadraticStart is the starting point of the integer walk.
const QuadraticStart = 50

// newQuadratic minimises f(x) = x^2 over the integers with unit random steps.
func newQuadratic() Runner {
	return &definition[int]{
		name:        "quadratic",
		description: "Integer random walk minimising x^2 from x = 50",
		copy:        lahc.CopyIdentity,
		initial:     func(*rand.Rand) int { return QuadraticStart },
		collab:      QuadraticWalk,
	}
}

// QuadraticWalk returns the move/energy pair of the integer walk.
func QuadraticWalk(rng *rand.Rand) lahc.Problem[int] {
	return lahc.Problem[int]{
		Move: func(x int) (int, error) {
			if rng.Intn(2) == 0 {
				return x - 1, nil
			}
			return x + 1, nil
		},
		Energy: func(x int) (float64, error) {
			return float64(x) * float64(x), nil
		},
	}
}
