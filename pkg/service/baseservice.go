package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rollkit/rollnode/pkg/log"
	"github.com/rollkit/rollnode/pkg/supervisor"
)

/*
type FooService struct {
	*BaseService
	// extra fields for FooService
}
func NewFooService(logger log.Logger) *FooService {
	fs := &FooService{}
	fs.BaseService = NewBaseService(logger, "foo", fs)
	return fs
}
func (fs *FooService) Run(ctx context.Context) error {
	// block until ctx is cancelled or Stop is called
}
func (fs *FooService) Stop(ctx context.Context) error {
	// ask Run to return, honour ctx
}
*/

// ErrUnexpectedExit is returned when a long-running service returns nil
// without having been cancelled or stopped.
var ErrUnexpectedExit = errors.New("service exited without being stopped")

// Service exposes a Run method that blocks until the service ends or the context is canceled.
type Service interface {
	// Run starts the service and blocks until it is shut down via context cancellation,
	// an error occurs, or all work is done.
	Run(ctx context.Context) error
}

// Stopper is implemented by services with a graceful stop.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Finite is implemented by services whose Run may legitimately return nil
// on its own, like a one-shot migration.
type Finite interface {
	Finite()
}

var (
	_ supervisor.Subsystem = (*BaseService)(nil)
	_ supervisor.Stopper   = (*BaseService)(nil)
)

// BaseService adapts a Service to the supervisor's Subsystem contract.
//
// Run never reports an abnormal exit as success: a panic becomes an error,
// and a nil return from a non-Finite service that was neither cancelled nor
// stopped becomes ErrUnexpectedExit. Stop is idempotent and is a no-op once
// Run has returned.
type BaseService struct {
	Logger log.Logger
	name   string
	impl   Service

	mu            sync.Mutex
	started       bool
	stopRequested bool
	done          chan struct{}
	stopDone      chan struct{}
	stopErr       error
}

// NewBaseService creates a new BaseService.
// The provided implementation (impl) should be the "subclass" that implements Run.
func NewBaseService(logger log.Logger, name string, impl Service) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		Logger: logger,
		name:   name,
		impl:   impl,
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger.
func (bs *BaseService) SetLogger(l log.Logger) {
	bs.Logger = l
}

// Name implements supervisor.Subsystem.
func (bs *BaseService) Name() string {
	return bs.name
}

// String returns the service name.
func (bs *BaseService) String() string {
	return bs.name
}

// Done is closed once Run has returned.
func (bs *BaseService) Done() <-chan struct{} {
	return bs.done
}

// Run implements supervisor.Subsystem.
func (bs *BaseService) Run(ctx context.Context) (err error) {
	bs.mu.Lock()
	if bs.started {
		bs.mu.Unlock()
		return fmt.Errorf("service %s: already started", bs.name)
	}
	bs.started = true
	bs.mu.Unlock()
	defer close(bs.done)

	bs.Logger.Info("service start", "msg", fmt.Sprintf("Starting %v service", bs.name), "impl", bs.name)
	defer func() {
		bs.Logger.Info("service stop", "msg", fmt.Sprintf("Stopping %v service", bs.name), "impl", bs.name, "error", err)
	}()

	// Without an implementation the service just waits for cancellation.
	if bs.impl == nil || bs.impl == Service(bs) {
		<-ctx.Done()
		return ctx.Err()
	}

	err = bs.runImpl(ctx)
	if err != nil {
		return err
	}

	bs.mu.Lock()
	stopped := bs.stopRequested
	bs.mu.Unlock()

	switch {
	case stopped:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}
	if _, ok := bs.impl.(Finite); ok {
		return nil
	}
	return fmt.Errorf("service %s: %w", bs.name, ErrUnexpectedExit)
}

func (bs *BaseService) runImpl(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("service %s panicked: %v", bs.name, p)
		}
	}()
	return bs.impl.Run(ctx)
}

// Stop implements supervisor.Stopper. It calls the implementation's Stop at
// most once; concurrent and repeated calls wait for that single call or for
// their own ctx, whichever comes first.
func (bs *BaseService) Stop(ctx context.Context) error {
	bs.mu.Lock()
	if !bs.started || bs.exited() {
		bs.mu.Unlock()
		return nil
	}
	if bs.stopDone == nil {
		bs.stopRequested = true
		bs.stopDone = make(chan struct{})
		stopper, ok := bs.impl.(Stopper)
		go func() {
			defer close(bs.stopDone)
			if ok {
				bs.stopErr = stopper.Stop(ctx)
			}
		}()
	}
	stopDone := bs.stopDone
	bs.mu.Unlock()

	select {
	case <-stopDone:
		return bs.stopErr
	case <-ctx.Done():
		return fmt.Errorf("stop %s: %w", bs.name, ctx.Err())
	}
}

func (bs *BaseService) exited() bool {
	select {
	case <-bs.done:
		return true
	default:
		return false
	}
}
