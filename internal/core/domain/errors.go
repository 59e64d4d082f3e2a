package domain

import (
	"errors"
	"fmt"
)

// StartupError is fatal to start(): a port conflict or a readiness probe
// that did not succeed within its timeout. The supervisor tears down any
// agent it already started before returning one.
type StartupError struct {
	Agent string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed for agent %s: %v", e.Agent, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// RunFatalError aborts the remaining questions of a run; partial results
// are flushed before it is surfaced.
type RunFatalError struct {
	Err error
}

func (e *RunFatalError) Error() string {
	return fmt.Sprintf("run aborted: %v", e.Err)
}

func (e *RunFatalError) Unwrap() error { return e.Err }

var (
	// ErrNotReady is returned by reset() when either agent is not ready.
	ErrNotReady = errors.New("agents not ready")

	// ErrRunInProgress is returned when a new run is requested while one
	// is still in flight.
	ErrRunInProgress = errors.New("evaluation run already in progress")

	// ErrExecutorBusy is returned by the executor when a question arrives
	// while another is still being evaluated.
	ErrExecutorBusy = errors.New("executor busy with another question")
)
