package lahc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bestView struct {
	fakeView
	best float64
}

func (v bestView) BestEnergy() float64 { return v.best }

func TestConverged(t *testing.T) {
	policy := Converged(ConvergenceConfig{Every: 10, Patience: 2, Threshold: 0.1})

	samples := []struct {
		step int
		best float64
		want bool
	}{
		{step: 5, best: 100, want: false},  // not a sample step
		{step: 10, best: 100, want: false}, // baseline
		{step: 20, best: 80, want: false},  // 20% improvement resets
		{step: 30, best: 75, want: false},  // 6.25%, stale 1
		{step: 35, best: 70, want: false},  // not a sample step
		{step: 40, best: 74, want: true},   // stale 2
	}

	for _, s := range samples {
		stop, err := policy(bestView{fakeView: fakeView{step: s.step}, best: s.best})
		require.NoError(t, err)
		assert.Equal(t, s.want, stop, "step=%d best=%g", s.step, s.best)
	}
}

func TestConverged_ZeroBaseline(t *testing.T) {
	policy := Converged(ConvergenceConfig{Every: 1, Patience: 1, Threshold: 0.5})

	stop, err := policy(bestView{fakeView: fakeView{step: 1}, best: 0})
	require.NoError(t, err)
	assert.False(t, stop)

	// Any strict decrease from zero is significant.
	stop, err = policy(bestView{fakeView: fakeView{step: 2}, best: -1})
	require.NoError(t, err)
	assert.False(t, stop)

	stop, err = policy(bestView{fakeView: fakeView{step: 3}, best: -1})
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestConverged_InvalidConfig(t *testing.T) {
	tests := []ConvergenceConfig{
		{Every: 0, Patience: 1},
		{Every: 1, Patience: 0},
		{Every: 1, Patience: 1, Threshold: -0.1},
	}
	for _, cfg := range tests {
		_, err := Converged(cfg)(fakeView{step: 1})
		assert.ErrorIs(t, err, ErrConfiguration, "%+v", cfg)
	}
}

func TestConverged_StopsSolver(t *testing.T) {
	// A move that never improves: the run must end on convergence long
	// before the idle rule would.
	p := Problem[int]{
		Move:   func(x int) (int, error) { return x + 1, nil },
		Energy: func(x int) (float64, error) { return float64(x), nil },
		Terminate: Any(
			DefaultPolicy(1_000_000, 0.5),
			Converged(ConvergenceConfig{Every: 10, Patience: 3, Threshold: 0}),
		),
	}
	cfg := DefaultConfig()
	cfg.HistoryLength = 1
	cfg.CopyStrategy = CopyIdentity

	s, err := New(0, p, cfg)
	require.NoError(t, err)
	res, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, PolicyTerminated, res.Reason)
	assert.Equal(t, 40, res.Stats.Step)
}
