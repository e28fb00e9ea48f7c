// Package lahc implements Late Acceptance Hill Climbing, a single-trajectory
// local search that accepts a candidate when it is no worse than the current
// solution or no worse than the solution held a fixed number of steps earlier.
//
// # Overview
//
// A [Solver] keeps a fixed-length circular [History] of realised energies.
// At step n the candidate is compared against the current energy and against
// the history slot n mod L:
//
//	accept := candidate <= current || candidate <= history[n%L]
//
// After the decision the same slot is overwritten with the current energy, so
// the buffer always records the trajectory, never a rejected candidate. With
// L = 1 the rule degenerates to a plain hill climb.
//
// # Collaborators
//
// The engine knows nothing about the problem. It is parameterised by function
// collaborators collected in a [Problem]:
//
//	solver, err := lahc.New(50, lahc.Problem[int]{
//	    Move:   func(x int) (int, error) { return x + rng.Intn(3) - 1, nil },
//	    Energy: func(x int) (float64, error) { return float64(x * x), nil },
//	}, cfg)
//	if err != nil {
//	    return err
//	}
//	res, err := solver.Run(ctx)
//
// Terminate overrides the default statistical stopping rule and Copy replaces
// the configured [CopyStrategy].
//
// # Interrupts
//
// Run polls its context and the flag set by [Solver.Interrupt] once per step
// boundary. An interrupt is not an error: Run returns the best state found so
// far with [Interrupted] as the stop reason. A collaborator that never returns
// blocks the loop; there is no preemption.
package lahc
