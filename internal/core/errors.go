package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Engine errors. ErrSmallNeighbourList is the only transient one: callers
// widen the candidate list and retry, it never reaches the reporter.
var (
	// ErrSmallNeighbourList signals that the h iteration needs a wider
	// candidate list than the neighbour search supplied.
	ErrSmallNeighbourList = errors.New("gandalf: neighbour list insufficient for h iteration")

	// ErrHIterationDiverged indicates the smoothing-length solve failed
	// after both fixed-point and bisection phases.
	ErrHIterationDiverged = errors.New("gandalf: h iteration did not converge")

	// ErrGhostOverflow indicates the preallocated ghost storage is full.
	ErrGhostOverflow = errors.New("gandalf: ghost particle storage exhausted")

	// ErrParticleOverflow indicates the preallocated particle storage
	// cannot hold migrated particles.
	ErrParticleOverflow = errors.New("gandalf: particle storage exhausted")

	// ErrConfig indicates an invalid or inconsistent configuration.
	ErrConfig = errors.New("gandalf: invalid configuration")

	// ErrCountMismatch indicates a collective saw inconsistent counts.
	ErrCountMismatch = errors.New("gandalf: collective count mismatch")
)

// StepError wraps an error with the step context it occurred in.
// Particle is the index of the offending particle, or -1.
type StepError struct {
	Step     int
	Time     float64
	Particle int
	Err      error
}

func (e *StepError) Error() string {
	if e.Particle >= 0 {
		return fmt.Sprintf("step %d (t=%.6g) particle %d: %v", e.Step, e.Time, e.Particle, e.Err)
	}
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Reporter is the single sink for fatal errors. In standalone mode it
// logs and terminates the process; embedded in a host program it hands
// the error back instead.
type Reporter struct {
	Embedded bool
	Log      *slog.Logger
}

// NewReporter returns a standalone reporter logging through l.
// A nil l uses the default logger.
func NewReporter(l *slog.Logger) *Reporter {
	if l == nil {
		l = slog.Default()
	}
	return &Reporter{Log: l}
}

// Fatal reports err. In standalone mode it does not return.
func (r *Reporter) Fatal(err error) error {
	if r.Log != nil {
		r.Log.Error("fatal", "err", err)
	}
	if !r.Embedded {
		os.Exit(1)
	}
	return err
}
