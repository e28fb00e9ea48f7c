package opt

import "github.com/cwbudde/lahc"

// Settings carries the union of all optimizer parameters; each optimizer
// reads the fields it understands.
type Settings struct {
	Seed int64

	// LAHC and StepScale configure the late acceptance optimizer.
	LAHC      lahc.Config
	StepScale float64

	// MaxIters and PopSize configure Mayfly.
	MaxIters int
	PopSize  int
}
