package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
)

// ShutdownSignal is a single-fire broadcast. Once triggered it stays
// triggered, and triggering again has no further effect.
//
// The signal owns the context handed to every subsystem's Run; triggering
// cancels that context with the trigger reason as its cause.
type ShutdownSignal struct {
	once   sync.Once
	done   chan struct{}
	fired  atomic.Bool
	reason atomic.Value // error

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewShutdownSignal creates an untriggered signal. The returned context
// keeps the values of parent but not its cancellation: only Trigger (or the
// owning supervisor terminating) ends it.
func NewShutdownSignal(parent context.Context) *ShutdownSignal {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	return &ShutdownSignal{
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Trigger fires the signal. It returns true only for the call that actually
// fired it; every later or concurrent call returns false.
func (s *ShutdownSignal) Trigger(reason error) bool {
	fired := false
	s.once.Do(func() {
		if reason == nil {
			reason = ErrStopped
		}
		s.reason.Store(reason)
		s.fired.Store(true)
		close(s.done)
		s.cancel(reason)
		fired = true
	})
	return fired
}

// Done is closed once the signal has been triggered.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.done
}

// Triggered reports whether the signal has fired.
func (s *ShutdownSignal) Triggered() bool {
	return s.fired.Load()
}

// Reason returns the reason passed to the first Trigger, or nil.
func (s *ShutdownSignal) Reason() error {
	if r, ok := s.reason.Load().(error); ok {
		return r
	}
	return nil
}

// Context returns the context subsystems run under.
func (s *ShutdownSignal) Context() context.Context {
	return s.ctx
}

// release cancels the run context without firing the signal.
func (s *ShutdownSignal) release() {
	s.cancel(errTerminated)
}
