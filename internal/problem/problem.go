package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/cwbudde/lahc"
)

// RunSpec configures a single run of a registered problem.
type RunSpec struct {
	Config lahc.Config
	Seed   int64

	// InitialState, when set, replaces the problem's generated starting
	// point. It uses the same JSON encoding as Outcome.BestState.
	InitialState json.RawMessage

	// Terminate, when set, replaces the idle-based default policy. Policies
	// may be stateful, so a RunSpec with one is good for a single run.
	Terminate lahc.Policy

	Logger   *slog.Logger
	Progress func(lahc.Stats)

	// OnBest receives the encoded best state at the first progress boundary
	// and at every later one where the best state changed.
	OnBest func(best json.RawMessage, stats lahc.Stats)
}

// Outcome is the problem-independent result of a run.
type Outcome struct {
	Problem       string          `json:"problem"`
	BestState     json.RawMessage `json:"bestState"`
	BestEnergy    float64         `json:"bestEnergy"`
	InitialEnergy float64         `json:"initialEnergy"`
	Reason        lahc.StopReason `json:"reason"`
	Stats         lahc.Stats      `json:"stats"`
}

// Runner runs one kind of problem with JSON-encoded states.
type Runner interface {
	Name() string
	Description() string
	// DefaultCopy is the copy strategy used when RunSpec.Config leaves it empty.
	DefaultCopy() lahc.CopyStrategy
	Run(ctx context.Context, spec RunSpec) (*Outcome, error)
}

// UnknownProblemError is returned by Lookup for unregistered names.
type UnknownProblemError struct {
	Name string
}

func (e *UnknownProblemError) Error() string {
	return "unknown problem: " + e.Name
}

// definition adapts a typed problem to the Runner interface.
type definition[S any] struct {
	name        string
	description string
	copy        lahc.CopyStrategy
	initial     func(rng *rand.Rand) S
	collab      func(rng *rand.Rand) lahc.Problem[S]
	validate    func(S) error
}

func (d *definition[S]) Name() string                   { return d.name }
func (d *definition[S]) Description() string            { return d.description }
func (d *definition[S]) DefaultCopy() lahc.CopyStrategy { return d.copy }

func (d *definition[S]) Run(ctx context.Context, spec RunSpec) (*Outcome, error) {
	rng := rand.New(rand.NewSource(spec.Seed))

	var initial S
	if len(spec.InitialState) > 0 {
		if err := json.Unmarshal(spec.InitialState, &initial); err != nil {
			return nil, fmt.Errorf("failed to decode initial state for %s: %w", d.name, err)
		}
		if d.validate != nil {
			if err := d.validate(initial); err != nil {
				return nil, fmt.Errorf("invalid initial state for %s: %w", d.name, err)
			}
		}
	} else {
		initial = d.initial(rng)
	}

	cfg := spec.Config
	if cfg.CopyStrategy == "" {
		cfg.CopyStrategy = d.copy
	}

	var solver *lahc.Solver[S]
	opts := []lahc.Option[S]{}
	if spec.Logger != nil {
		opts = append(opts, lahc.WithLogger[S](spec.Logger.With("problem", d.name)))
	}
	if spec.Progress != nil || spec.OnBest != nil {
		logger := spec.Logger
		if logger == nil {
			logger = slog.Default()
		}
		lastBest := -1
		opts = append(opts, lahc.WithProgress[S](func(stats lahc.Stats) {
			if spec.Progress != nil {
				spec.Progress(stats)
			}
			if spec.OnBest == nil || stats.BestStep == lastBest {
				return
			}
			lastBest = stats.BestStep
			data, err := json.Marshal(solver.Best())
			if err != nil {
				logger.Warn("Failed to encode best state",
					"problem", d.name,
					"step", stats.Step,
					"error", err,
				)
				return
			}
			spec.OnBest(data, stats)
		}))
	}

	collab := d.collab(rng)
	if spec.Terminate != nil {
		collab.Terminate = spec.Terminate
	}

	solver, err := lahc.New(initial, collab, cfg, opts...)
	if err != nil {
		return nil, err
	}
	res, err := solver.Run(ctx)
	if err != nil {
		return nil, err
	}

	best, err := json.Marshal(res.Best)
	if err != nil {
		return nil, fmt.Errorf("failed to encode best state: %w", err)
	}

	return &Outcome{
		Problem:       d.name,
		BestState:     best,
		BestEnergy:    res.BestEnergy,
		InitialEnergy: res.InitialEnergy,
		Reason:        res.Reason,
		Stats:         res.Stats,
	}, nil
}

var registry = map[string]Runner{}

func register(r Runner) {
	registry[r.Name()] = r
}

func init() {
	register(newQuadratic())
	register(newParaboloid())
	register(newRosenbrock())
	register(newTSP())
}

// Lookup returns the runner registered under name.
func Lookup(name string) (Runner, error) {
	r, ok := registry[name]
	if !ok {
		return nil, &UnknownProblemError{Name: name}
	}
	return r, nil
}

// Names lists the registered problems in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
