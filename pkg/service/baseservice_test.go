package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/rollnode/pkg/log"
)

// dummyService is a simple implementation of the Service interface for testing purposes.
type dummyService struct {
	*BaseService
	runError  error
	returnNil bool
	quit      chan struct{}
	stopCalls atomic.Int32
	stopHang  bool
}

func newDummyService(name string) *dummyService {
	d := &dummyService{quit: make(chan struct{})}
	d.BaseService = NewBaseService(log.NewNopLogger(), name, d)
	return d
}

func (d *dummyService) Run(ctx context.Context) error {
	if d.runError != nil {
		return d.runError
	}
	if d.returnNil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return nil
	}
}

func (d *dummyService) Stop(ctx context.Context) error {
	d.stopCalls.Add(1)
	if d.stopHang {
		<-ctx.Done()
		return ctx.Err()
	}
	close(d.quit)
	return nil
}

type finiteService struct{}

func (finiteService) Run(context.Context) error { return nil }
func (finiteService) Finite()                   {}

type panicService struct{}

func (panicService) Run(context.Context) error { panic("boom") }

func TestBaseService_RunContract(t *testing.T) {
	runErr := errors.New("run error")

	tests := []struct {
		name    string
		impl    func() Service
		cancel  bool
		wantErr error
		wantNil bool
	}{
		{
			name:    "no impl waits for cancellation",
			impl:    func() Service { return nil },
			cancel:  true,
			wantErr: context.Canceled,
		},
		{
			name:    "impl error passes through",
			impl:    func() Service { d := newDummyService("x"); d.runError = runErr; return d },
			wantErr: runErr,
		},
		{
			name:    "silent exit is not success",
			impl:    func() Service { d := newDummyService("x"); d.returnNil = true; return d },
			wantErr: ErrUnexpectedExit,
		},
		{
			name:    "finite service may complete",
			impl:    func() Service { return finiteService{} },
			wantNil: true,
		},
		{
			name:    "cancelled impl reports cancellation",
			impl:    func() Service { return newDummyService("x") },
			cancel:  true,
			wantErr: context.Canceled,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bs := NewBaseService(log.NewNopLogger(), "svc", tc.impl())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancel {
				time.AfterFunc(10*time.Millisecond, cancel)
			}

			err := bs.Run(ctx)
			if tc.wantNil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBaseService_PanicBecomesError(t *testing.T) {
	bs := NewBaseService(log.NewNopLogger(), "panicky", panicService{})
	err := bs.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestBaseService_StopEndsRunCleanly(t *testing.T) {
	d := newDummyService("stoppable")

	errCh := make(chan error, 1)
	go func() { errCh <- d.BaseService.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.started
	}, time.Second, time.Millisecond)

	require.NoError(t, d.BaseService.Stop(context.Background()))
	assert.NoError(t, <-errCh)
	assert.EqualValues(t, 1, d.stopCalls.Load())
}

func TestBaseService_StopIsIdempotent(t *testing.T) {
	d := newDummyService("idempotent")

	// before Run: no-op
	require.NoError(t, d.BaseService.Stop(context.Background()))
	assert.EqualValues(t, 0, d.stopCalls.Load())

	errCh := make(chan error, 1)
	go func() { errCh <- d.BaseService.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.started
	}, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.BaseService.Stop(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, <-errCh)
	assert.EqualValues(t, 1, d.stopCalls.Load())

	// after Run returned: still a no-op
	require.NoError(t, d.BaseService.Stop(context.Background()))
	assert.EqualValues(t, 1, d.stopCalls.Load())
}

func TestBaseService_StopHonoursDeadline(t *testing.T) {
	d := newDummyService("hang")
	d.stopHang = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.BaseService.Run(ctx) }()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.started
	}, time.Second, time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stopCancel()
	err := d.BaseService.Stop(stopCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBaseService_RunTwice(t *testing.T) {
	bs := NewBaseService(log.NewNopLogger(), "twice", finiteService{})
	require.NoError(t, bs.Run(context.Background()))
	assert.Error(t, bs.Run(context.Background()))
}

func TestBaseService_String(t *testing.T) {
	serviceName := "test-service"
	bs := NewBaseService(log.NewNopLogger(), serviceName, nil)

	assert.Equal(t, serviceName, bs.String())
	assert.Equal(t, serviceName, bs.Name())
}

func TestBaseService_SetLogger(t *testing.T) {
	bs := NewBaseService(log.NewNopLogger(), "test", nil)
	newLogger := log.NewNopLogger()

	bs.SetLogger(newLogger)
	assert.Equal(t, newLogger, bs.Logger)
}
