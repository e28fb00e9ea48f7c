package problem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/lahc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietSpec(historyLength, stepsMinimum int, seed int64) RunSpec {
	cfg := lahc.DefaultConfig()
	cfg.HistoryLength = historyLength
	cfg.StepsMinimum = stepsMinimum
	cfg.CopyStrategy = ""
	return RunSpec{
		Config: cfg,
		Seed:   seed,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"paraboloid", "quadratic", "rosenbrock", "tsp"}, Names())
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("knapsack")
	var unknown *UnknownProblemError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "knapsack", unknown.Name)
}

func TestQuadratic(t *testing.T) {
	r, err := Lookup("quadratic")
	require.NoError(t, err)

	out, err := r.Run(context.Background(), quietSpec(10, 5000, 1))
	require.NoError(t, err)

	assert.Equal(t, "quadratic", out.Problem)
	assert.Equal(t, 2500.0, out.InitialEnergy)
	assert.Equal(t, 0.0, out.BestEnergy)
	assert.JSONEq(t, "0", string(out.BestState))
	assert.Equal(t, lahc.PolicyTerminated, out.Reason)
}

func TestParaboloid_GreedyClimb(t *testing.T) {
	r, err := Lookup("paraboloid")
	require.NoError(t, err)

	out, err := r.Run(context.Background(), quietSpec(1, 20000, 7))
	require.NoError(t, err)

	var best []float64
	require.NoError(t, json.Unmarshal(out.BestState, &best))
	require.Len(t, best, 2)
	assert.InDelta(t, 2.0, best[0], 0.1)
	assert.InDelta(t, 5.0, best[1], 0.1)
	assert.InDelta(t, 0.0, out.BestEnergy, 0.02)
}

func TestRosenbrock_Improves(t *testing.T) {
	r, err := Lookup("rosenbrock")
	require.NoError(t, err)

	out, err := r.Run(context.Background(), quietSpec(50, 10000, 3))
	require.NoError(t, err)
	assert.Less(t, out.BestEnergy, out.InitialEnergy)
}

func TestTSP(t *testing.T) {
	r, err := Lookup("tsp")
	require.NoError(t, err)
	assert.Equal(t, lahc.CopyShallow, r.DefaultCopy())

	out, err := r.Run(context.Background(), quietSpec(200, 20000, 11))
	require.NoError(t, err)

	var order []int
	require.NoError(t, json.Unmarshal(out.BestState, &order))
	require.NoError(t, validPermutation(len(USCities))(order))
	assert.Less(t, out.BestEnergy, out.InitialEnergy)
	assert.InDelta(t, TourLength(DistanceMatrix(USCities), order), out.BestEnergy, 1e-9)

	names := CityNames(order)
	assert.Len(t, names, len(USCities))
	assert.Equal(t, "New York City", names[0])
}

func TestRun_Deterministic(t *testing.T) {
	r, err := Lookup("tsp")
	require.NoError(t, err)

	a, err := r.Run(context.Background(), quietSpec(50, 2000, 99))
	require.NoError(t, err)
	b, err := r.Run(context.Background(), quietSpec(50, 2000, 99))
	require.NoError(t, err)

	assert.Equal(t, a.BestEnergy, b.BestEnergy)
	assert.Equal(t, string(a.BestState), string(b.BestState))
	assert.Equal(t, a.Stats.Step, b.Stats.Step)
}

func TestRun_InitialState(t *testing.T) {
	r, err := Lookup("quadratic")
	require.NoError(t, err)

	spec := quietSpec(5, 10, 1)
	spec.InitialState = json.RawMessage("3")
	out, err := r.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 9.0, out.InitialEnergy)
}

func TestRun_InvalidInitialState(t *testing.T) {
	r, err := Lookup("tsp")
	require.NoError(t, err)

	spec := quietSpec(5, 10, 1)
	spec.InitialState = json.RawMessage("[0, 0, 1]")
	_, err = r.Run(context.Background(), spec)
	assert.Error(t, err)

	spec.InitialState = json.RawMessage("{")
	_, err = r.Run(context.Background(), spec)
	assert.Error(t, err)
}

func TestRun_ConfigurationError(t *testing.T) {
	r, err := Lookup("quadratic")
	require.NoError(t, err)

	_, err = r.Run(context.Background(), quietSpec(0, 10, 1))
	assert.ErrorIs(t, err, lahc.ErrConfiguration)
}

func TestRun_Cancelled(t *testing.T) {
	r, err := Lookup("rosenbrock")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := r.Run(ctx, quietSpec(10, 100000, 1))
	require.NoError(t, err)
	assert.Equal(t, lahc.Interrupted, out.Reason)
	assert.Equal(t, 0, out.Stats.Step)
	assert.JSONEq(t, "[-5, 5]", string(out.BestState))
}

func TestRun_OnBest(t *testing.T) {
	r, err := Lookup("quadratic")
	require.NoError(t, err)

	spec := quietSpec(10, 2000, 5)
	spec.Config.ProgressEvery = 50
	var reports, bests int
	var last json.RawMessage
	spec.Progress = func(lahc.Stats) { reports++ }
	spec.OnBest = func(best json.RawMessage, stats lahc.Stats) {
		bests++
		last = best
		assert.Positive(t, stats.BestStep)
	}

	out, err := r.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Positive(t, bests)
	assert.LessOrEqual(t, bests, reports)
	assert.JSONEq(t, string(out.BestState), string(last))
}

func TestRun_OnBestEncodeFailureIsLogged(t *testing.T) {
	d := &definition[float64]{
		name:    "nan",
		copy:    lahc.CopyIdentity,
		initial: func(*rand.Rand) float64 { return math.NaN() },
		collab: func(*rand.Rand) lahc.Problem[float64] {
			return lahc.Problem[float64]{
				Move:   func(x float64) (float64, error) { return x, nil },
				Energy: func(float64) (float64, error) { return 1, nil },
			}
		},
	}

	var logs bytes.Buffer
	spec := quietSpec(5, 100, 1)
	spec.Config.ProgressEvery = 10
	spec.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	called := false
	spec.OnBest = func(json.RawMessage, lahc.Stats) { called = true }

	_, err := d.Run(context.Background(), spec)
	require.Error(t, err, "NaN cannot be encoded as the final best state either")

	assert.False(t, called)
	assert.Contains(t, logs.String(), "Failed to encode best state")
	assert.Contains(t, logs.String(), "problem=nan")
}

func TestDistance(t *testing.T) {
	nyc, la := USCities[0], USCities[1]
	assert.InDelta(t, 2450, Distance(nyc, la), 30)
	assert.InDelta(t, 0, Distance(nyc, nyc), 1e-6)
	assert.InDelta(t, Distance(nyc, la), Distance(la, nyc), 1e-9)
}

func TestPolarMove(t *testing.T) {
	_, err := PolarMove(nil)([]float64{1})
	assert.Error(t, err)
}

func TestLookupObjective(t *testing.T) {
	obj, err := LookupObjective("rosenbrock")
	require.NoError(t, err)
	assert.Equal(t, 0.0, obj.Func(obj.Solution))

	obj, err = LookupObjective("paraboloid")
	require.NoError(t, err)
	assert.Equal(t, 0.0, obj.Func(obj.Solution))

	_, err = LookupObjective("tsp")
	assert.Error(t, err)
}
