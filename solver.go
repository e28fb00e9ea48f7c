package lahc

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MoveFunc proposes a neighbouring candidate of a state. It must not modify
// its input unless Config.MutatingMove is set.
type MoveFunc[S any] func(S) (S, error)

// EnergyFunc returns the objective value of a state. Lower is better.
type EnergyFunc[S any] func(S) (float64, error)

// Problem bundles the caller-supplied collaborators of a Solver. Move and
// Energy are required; a missing one is reported as an *UnimplementedError
// the first time it is needed.
type Problem[S any] struct {
	Move   MoveFunc[S]
	Energy EnergyFunc[S]

	// Terminate replaces DefaultPolicy when set.
	Terminate Policy

	// Copy replaces Config.CopyStrategy when set.
	Copy CopyFunc[S]
}

// StopReason tells why Run returned.
type StopReason string

const (
	PolicyTerminated StopReason = "policy"
	Interrupted      StopReason = "interrupted"
)

// Result is the outcome of a completed run.
type Result[S any] struct {
	Best          S
	BestEnergy    float64
	InitialEnergy float64
	Reason        StopReason
	Stats         Stats
}

// StepRecord describes one completed step. It is delivered to the hook
// installed with WithStepHook.
type StepRecord[S any] struct {
	// Step is the number of completed steps including this one.
	Step            int
	Current         S
	CurrentEnergy   float64
	CandidateEnergy float64
	Threshold       float64
	Accepted        bool
	// Improved is set when the best energy strictly decreased.
	Improved   bool
	BestEnergy float64
	Idle       int
	// History is a copy of the buffer after the step's write.
	History []float64
}

// Option customises a Solver.
type Option[S any] func(*Solver[S])

// WithLogger sets the logger used for start, stop and progress messages.
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(s *Solver[S]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStepHook installs a function called after every completed step, before
// the termination policy is consulted.
func WithStepHook[S any](hook func(StepRecord[S])) Option[S] {
	return func(s *Solver[S]) {
		s.onStep = hook
	}
}

// WithProgress installs a function called every Config.ProgressEvery steps
// and once when the run stops.
func WithProgress[S any](fn func(Stats)) Option[S] {
	return func(s *Solver[S]) {
		s.onProgress = fn
	}
}

// Solver runs a single late acceptance trajectory. It is not safe for
// concurrent use except for Interrupt and Stats.
type Solver[S any] struct {
	cfg     Config
	problem Problem[S]
	copy    CopyFunc[S]
	policy  Policy
	logger  *slog.Logger

	onStep     func(StepRecord[S])
	onProgress func(Stats)

	current       S
	currentEnergy float64
	best          S
	bestEnergy    float64
	initialEnergy float64
	history       *History

	step     int
	idle     int
	accepted int
	improved int
	bestStep int

	start       time.Time
	ran         bool
	interrupted atomic.Bool

	mu    sync.RWMutex
	stats Stats
}

// New validates cfg, copies the initial state, evaluates its energy and fills
// the history buffer with it. Configuration errors are reported before any
// collaborator is called.
func New[S any](initial S, p Problem[S], cfg Config, opts ...Option[S]) (*Solver[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	copyFn := p.Copy
	if copyFn == nil {
		var err error
		copyFn, err = CopierFor[S](cfg.CopyStrategy)
		if err != nil {
			return nil, err
		}
	}

	policy := p.Terminate
	if policy == nil {
		policy = DefaultPolicy(cfg.StepsMinimum, cfg.StepsIdleFraction)
	}

	s := &Solver[S]{
		cfg:     cfg,
		problem: p,
		copy:    copyFn,
		policy:  policy,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if p.Energy == nil {
		return nil, &UnimplementedError{Capability: "energy"}
	}

	current, err := s.copy(initial)
	if err != nil {
		return nil, err
	}
	energy, err := p.Energy(current)
	if err != nil {
		return nil, err
	}
	best, err := s.copy(current)
	if err != nil {
		return nil, err
	}
	history, err := NewHistory(cfg.HistoryLength, energy)
	if err != nil {
		return nil, err
	}

	s.current = current
	s.currentEnergy = energy
	s.best = best
	s.bestEnergy = energy
	s.initialEnergy = energy
	s.history = history
	s.publish()
	return s, nil
}

// Run executes the search until the termination policy stops it or an
// interrupt is observed at a step boundary. Collaborator errors are returned
// unmodified together with a zero Result. A nil ctx is treated as
// context.Background().
func (s *Solver[S]) Run(ctx context.Context) (Result[S], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.ran {
		return Result[S]{}, ErrAlreadyRun
	}
	s.ran = true
	s.start = time.Now()

	s.logger.Info("Starting late acceptance search",
		"history_length", s.cfg.HistoryLength,
		"steps_minimum", s.cfg.StepsMinimum,
		"idle_fraction", s.cfg.StepsIdleFraction,
		"initial_energy", s.initialEnergy,
	)

	var reason StopReason
	for {
		if s.interrupted.Load() || ctx.Err() != nil {
			reason = Interrupted
			break
		}

		rec, err := s.advance()
		if err != nil {
			return Result[S]{}, err
		}
		s.publish()

		if s.onStep != nil {
			s.onStep(rec)
		}
		if s.cfg.ProgressEvery > 0 && s.step%s.cfg.ProgressEvery == 0 {
			s.report()
		}

		stop, err := s.policy(s)
		if err != nil {
			return Result[S]{}, err
		}
		if stop {
			reason = PolicyTerminated
			break
		}
	}

	s.publish()
	stats := s.Stats()
	if s.onProgress != nil {
		s.onProgress(stats)
	}

	s.logger.Info("Late acceptance search stopped",
		"reason", reason,
		"steps", s.step,
		"idle", s.idle,
		"best_energy", s.bestEnergy,
		"best_step", s.bestStep,
		"acceptance_rate", stats.AcceptanceRate,
		"elapsed", stats.Elapsed,
	)

	return Result[S]{
		Best:          s.best,
		BestEnergy:    s.bestEnergy,
		InitialEnergy: s.initialEnergy,
		Reason:        reason,
		Stats:         stats,
	}, nil
}

// advance performs one complete step: move, energy, acceptance, best
// tracking, history write and counter update.
func (s *Solver[S]) advance() (StepRecord[S], error) {
	if s.problem.Move == nil {
		return StepRecord[S]{}, &UnimplementedError{Capability: "move"}
	}

	input := s.current
	if s.cfg.MutatingMove {
		var err error
		if input, err = s.copy(s.current); err != nil {
			return StepRecord[S]{}, err
		}
	}

	candidate, err := s.problem.Move(input)
	if err != nil {
		return StepRecord[S]{}, err
	}
	candidateEnergy, err := s.problem.Energy(candidate)
	if err != nil {
		return StepRecord[S]{}, err
	}

	threshold := s.history.Get(s.step)
	accepted := Accept(s.currentEnergy, candidateEnergy, threshold, s.cfg.Comparison)
	if accepted {
		if candidateEnergy < s.currentEnergy {
			s.improved++
		}
		s.current = candidate
		s.currentEnergy = candidateEnergy
		s.accepted++
	}

	improved := s.currentEnergy < s.bestEnergy
	if improved {
		best, err := s.copy(s.current)
		if err != nil {
			return StepRecord[S]{}, err
		}
		s.best = best
		s.bestEnergy = s.currentEnergy
		s.bestStep = s.step + 1
		s.idle = 0
	} else {
		s.idle++
	}

	s.history.Set(s.step, s.currentEnergy)
	s.step++

	rec := StepRecord[S]{
		Step:            s.step,
		CurrentEnergy:   s.currentEnergy,
		CandidateEnergy: candidateEnergy,
		Threshold:       threshold,
		Accepted:        accepted,
		Improved:        improved,
		BestEnergy:      s.bestEnergy,
		Idle:            s.idle,
	}
	if s.onStep != nil {
		rec.Current = s.current
		rec.History = s.history.Snapshot()
	}
	return rec, nil
}

func (s *Solver[S]) report() {
	stats := s.Stats()
	s.logger.Debug("Late acceptance progress",
		"step", stats.Step,
		"idle", stats.Idle,
		"energy", stats.CurrentEnergy,
		"best_energy", stats.BestEnergy,
		"accept", stats.AcceptanceRate,
		"improve", stats.ImprovementRate,
		"elapsed", stats.Elapsed,
		"remaining", stats.Remaining,
	)
	if s.onProgress != nil {
		s.onProgress(stats)
	}
}

func (s *Solver[S]) publish() {
	var elapsed time.Duration
	if !s.start.IsZero() {
		elapsed = time.Since(s.start)
	}
	stats := Stats{
		Step:            s.step,
		Idle:            s.idle,
		Accepted:        s.accepted,
		Improved:        s.improved,
		AcceptanceRate:  rate(s.accepted, s.step),
		ImprovementRate: rate(s.improved, s.step),
		InitialEnergy:   s.initialEnergy,
		CurrentEnergy:   s.currentEnergy,
		BestEnergy:      s.bestEnergy,
		BestStep:        s.bestStep,
		Elapsed:         elapsed,
		Remaining:       remaining(elapsed, s.step, s.cfg.StepsMinimum),
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// Interrupt asks a running search to stop at the next step boundary. It is
// safe to call from any goroutine, before or during Run.
func (s *Solver[S]) Interrupt() {
	s.interrupted.Store(true)
}

// Stats returns the statistics published after the last completed step. It
// is safe to call from any goroutine.
func (s *Solver[S]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Current returns the working state. It must not be modified.
func (s *Solver[S]) Current() S { return s.current }

// Best returns the best state found so far. It must not be modified.
func (s *Solver[S]) Best() S { return s.best }

// History returns a copy of the history buffer.
func (s *Solver[S]) History() []float64 { return s.history.Snapshot() }

func (s *Solver[S]) Step() int               { return s.step }
func (s *Solver[S]) Idle() int               { return s.idle }
func (s *Solver[S]) CurrentEnergy() float64  { return s.currentEnergy }
func (s *Solver[S]) BestEnergy() float64     { return s.bestEnergy }
func (s *Solver[S]) HistoryLength() int      { return s.history.Len() }
func (s *Solver[S]) AcceptanceRate() float64 { return rate(s.accepted, s.step) }
