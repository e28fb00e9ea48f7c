package problem

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/lahc"
)

// Objective is a continuous test function, usable both by registered
// runners and by the vector optimizers in internal/opt.
type Objective struct {
	Name     string
	Dim      int
	Lower    float64
	Upper    float64
	Start    []float64
	Solution []float64
	Func     func([]float64) float64
}

// Paraboloid is (x-2)^2 + (y-5)^2 with its minimum at (2, 5).
func Paraboloid() Objective {
	return Objective{
		Name:     "paraboloid",
		Dim:      2,
		Lower:    -20,
		Upper:    20,
		Start:    []float64{11, 0.7},
		Solution: []float64{2, 5},
		Func: func(x []float64) float64 {
			return (x[0]-2)*(x[0]-2) + (x[1]-5)*(x[1]-5)
		},
	}
}

// Rosenbrock is (a-x)^2 + b(y-x^2)^2 with its minimum at (a, a^2).
func Rosenbrock(a, b float64) Objective {
	return Objective{
		Name:     "rosenbrock",
		Dim:      2,
		Lower:    -10,
		Upper:    10,
		Start:    []float64{-5, 5},
		Solution: []float64{a, a * a},
		Func: func(x []float64) float64 {
			return (a-x[0])*(a-x[0]) + b*(x[1]-x[0]*x[0])*(x[1]-x[0]*x[0])
		},
	}
}

// LookupObjective returns a continuous objective by name.
func LookupObjective(name string) (Objective, error) {
	switch name {
	case "paraboloid":
		return Paraboloid(), nil
	case "rosenbrock":
		return Rosenbrock(1, 100), nil
	default:
		return Objective{}, &UnknownProblemError{Name: name}
	}
}

// PolarMove displaces a 2-D point by a standard normal distance in a
// uniformly random direction. The input is not modified.
func PolarMove(rng *rand.Rand) lahc.MoveFunc[[]float64] {
	return func(x []float64) ([]float64, error) {
		if len(x) != 2 {
			return nil, fmt.Errorf("polar move needs 2 coordinates, got %d", len(x))
		}
		a := rng.NormFloat64()
		theta := rng.Float64() * 2 * math.Pi
		return []float64{x[0] + a*math.Cos(theta), x[1] + a*math.Sin(theta)}, nil
	}
}

func newContinuous(obj Objective, description string) Runner {
	return &definition[[]float64]{
		name:        obj.Name,
		description: description,
		copy:        lahc.CopyShallow,
		initial: func(*rand.Rand) []float64 {
			return append([]float64(nil), obj.Start...)
		},
		collab: func(rng *rand.Rand) lahc.Problem[[]float64] {
			return lahc.Problem[[]float64]{
				Move: PolarMove(rng),
				Energy: func(x []float64) (float64, error) {
					return obj.Func(x), nil
				},
			}
		},
		validate: func(x []float64) error {
			if len(x) != obj.Dim {
				return fmt.Errorf("expected %d coordinates, got %d", obj.Dim, len(x))
			}
			return nil
		},
	}
}

func newParaboloid() Runner {
	return newContinuous(Paraboloid(), "2-D paraboloid (x-2)^2 + (y-5)^2 from (11, 0.7)")
}

func newRosenbrock() Runner {
	return newContinuous(Rosenbrock(1, 100), "Rosenbrock function with a = 1, b = 100 from (-5, 5)")
}
