package supervisor

import (
	"time"

	"go.uber.org/multierr"
)

// Status is the terminal status of one subsystem.
type Status int

const (
	// StatusCompleted means Run returned nil before any shutdown was requested.
	StatusCompleted Status = iota
	// StatusFailed means Run returned an error, panicked, or outlived its grace period.
	StatusFailed
	// StatusCancelled means Run returned cleanly after shutdown was requested.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the single record kept for each registered subsystem.
type Outcome struct {
	Subsystem string
	Status    Status
	// Err is the failure cause; nil unless Status is StatusFailed.
	Err error
	// StopErr is the error returned by the subsystem's Stop, if any.
	StopErr error
	// At is when the supervisor observed the termination.
	At time.Time
	// Duration is how long the subsystem ran, as observed by the supervisor.
	Duration time.Duration
}

// Result is the aggregate verdict of one Run.
type Result struct {
	// Outcomes holds one entry per subsystem in observed termination order.
	Outcomes []Outcome
	// Cause is the first failure observed, nil when the run was clean.
	Cause error
	// CauseSubsystem names the subsystem that produced Cause.
	CauseSubsystem string
	// Reason is what triggered shutdown: a failure cause, ErrExternalCancellation,
	// a reason passed to ShutdownSignal.Trigger, or nil when every subsystem
	// completed on its own.
	Reason error
	// Duration is the wall time of Run.
	Duration time.Duration
}

// Faulted reports whether any subsystem failed.
func (r *Result) Faulted() bool {
	return r.Cause != nil
}

// Clean reports whether every subsystem completed or was cancelled.
func (r *Result) Clean() bool {
	return !r.Faulted()
}

// Err returns nil for a clean result and the first failure, attributed to
// its subsystem, otherwise.
func (r *Result) Err() error {
	if r.Cause == nil {
		return nil
	}
	return &SubsystemError{Subsystem: r.CauseSubsystem, Err: r.Cause}
}

// Failures combines the causes of every failed outcome in observed order.
func (r *Result) Failures() error {
	var errs error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			errs = multierr.Append(errs, &SubsystemError{Subsystem: o.Subsystem, Err: o.Err})
		}
	}
	return errs
}

// Outcome returns the outcome recorded for the named subsystem.
func (r *Result) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Subsystem == name {
			return o, true
		}
	}
	return Outcome{}, false
}
