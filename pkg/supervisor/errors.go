package supervisor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("supervisor configuration error")

	// ErrShutdownTimeout is matched by every ShutdownTimeoutError.
	ErrShutdownTimeout = errors.New("shutdown grace period exceeded")

	// ErrExternalCancellation is the shutdown reason used when the external
	// cancellation source passed to Run fires. It is a deliberate shutdown,
	// never a failure.
	ErrExternalCancellation = errors.New("external cancellation requested")

	// ErrStopped may be returned by a subsystem's Run after it was asked to
	// stop. It is classified as Cancelled, like context.Canceled.
	ErrStopped = errors.New("subsystem stopped")

	// errTerminated releases the run context once every outcome is recorded.
	errTerminated = errors.New("supervisor terminated")
)

// ConfigurationError reports misuse of the supervisor API: registering after
// Run, running twice, running with no subsystems, or an invalid Config.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ShutdownTimeoutError is recorded for a subsystem that did not terminate
// within its grace period after being asked to stop.
type ShutdownTimeoutError struct {
	Subsystem   string
	GracePeriod time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("subsystem %q did not stop within %s", e.Subsystem, e.GracePeriod)
}

// Is reports whether target is ErrShutdownTimeout.
func (e *ShutdownTimeoutError) Is(target error) bool {
	return target == ErrShutdownTimeout
}

// PanicError is the failure cause recorded when a subsystem's Run panics.
type PanicError struct {
	Subsystem string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("subsystem %q panicked: %v", e.Subsystem, e.Value)
}

// SubsystemError attributes a failure cause to the subsystem that produced it.
type SubsystemError struct {
	Subsystem string
	Err       error
}

func (e *SubsystemError) Error() string {
	return fmt.Sprintf("subsystem %q failed: %v", e.Subsystem, e.Err)
}

func (e *SubsystemError) Unwrap() error {
	return e.Err
}
