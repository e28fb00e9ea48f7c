package lahc

import "time"

// Stats is a point-in-time view of a run, for logging and diagnostics only.
type Stats struct {
	Step     int `json:"step"`
	Idle     int `json:"idle"`
	Accepted int `json:"accepted"`
	// Improved counts accepted candidates that strictly lowered the
	// current energy.
	Improved int `json:"improved"`

	AcceptanceRate  float64 `json:"acceptanceRate"`
	ImprovementRate float64 `json:"improvementRate"`

	InitialEnergy float64 `json:"initialEnergy"`
	CurrentEnergy float64 `json:"currentEnergy"`
	BestEnergy    float64 `json:"bestEnergy"`
	BestStep      int     `json:"bestStep"`

	Elapsed time.Duration `json:"elapsed"`
	// Remaining estimates the time left until StepsMinimum is reached. It is
	// zero once the minimum has been passed.
	Remaining time.Duration `json:"remaining"`
}

func rate(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of)
}

func remaining(elapsed time.Duration, step, stepsMinimum int) time.Duration {
	if step <= 0 || step >= stepsMinimum {
		return 0
	}
	perStep := float64(elapsed) / float64(step)
	return time.Duration(perStep * float64(stepsMinimum-step))
}
