package solver

import (
	"errors"
	"fmt"
)

// ErrSolverDivergence reports an invariant breach during stepping. Numerical
// invariant breaches are correctness failures, never transient conditions:
// nothing here retries, the run aborts.
var ErrSolverDivergence = errors.New("solver divergence")

// ErrConfiguration rejects unrecognized or contradictory run parameters at
// startup. Nothing is silently defaulted.
var ErrConfiguration = errors.New("configuration error")

// DivergenceReport carries enough context to reproduce and diagnose the
// breach: the substage that tripped, the offending metric and its threshold.
type DivergenceReport struct {
	Step      int
	Substage  int
	Metric    string
	Value     float64
	Threshold float64
}

func (e *DivergenceReport) Error() string {
	return fmt.Sprintf("%s: step %d substage %d: %s = %.6e exceeds %.6e",
		ErrSolverDivergence.Error(), e.Step, e.Substage, e.Metric, e.Value, e.Threshold)
}

func (e *DivergenceReport) Unwrap() error { return ErrSolverDivergence }

func configErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
