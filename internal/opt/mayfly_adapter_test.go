package opt

import (
	"math"
	"testing"
)

// sphere is f(x) = sum(x_i^2) with its minimum at the origin.
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	lower := []float64{-10, -10, -10}
	upper := []float64{10, 10, 10}

	best, cost := optimizer.Run(sphere, lower, upper, 3)

	if len(best) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyAdapterPerDimensionBounds(t *testing.T) {
	optimizer := NewMayfly(100, 20, 7)

	// The optimum (0, 50) is only reachable if the second bound pair is used.
	lower := []float64{-1, 40}
	upper := []float64{1, 60}
	shifted := func(x []float64) float64 {
		return x[0]*x[0] + (x[1]-50)*(x[1]-50)
	}

	best, cost := optimizer.Run(shifted, lower, upper, 2)

	for i := range best {
		if best[i] < lower[i] || best[i] > upper[i] {
			t.Errorf("Parameter %d = %f outside [%f, %f]", i, best[i], lower[i], upper[i])
		}
	}
	if cost > 0.5 {
		t.Errorf("Expected cost near 0, got %f at %v", cost, best)
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	_, cost1 := NewMayfly(50, 20, 123).Run(sphere, lower, upper, 2)
	_, cost2 := NewMayfly(50, 20, 123).Run(sphere, lower, upper, 2)

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}

func TestNewMayflyRaisesSmallPopulation(t *testing.T) {
	m := NewMayfly(10, 5, 1).(*MayflyAdapter)
	if m.popSize != minMayflyPopulation {
		t.Errorf("Expected population %d, got %d", minMayflyPopulation, m.popSize)
	}
}
