package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rollkit/rollnode/pkg/log"
)

// Subsystem is a named unit of work run by the Supervisor.
type Subsystem interface {
	// Name identifies the subsystem in outcomes, logs and metrics.
	Name() string
	// Run executes until the work is done, ctx is cancelled, or it fails.
	Run(ctx context.Context) error
}

// Stopper is implemented by subsystems that have a graceful stop operation.
// The supervisor calls Stop at most once, with a ctx that expires at the end
// of the subsystem's grace period. A Stop that has not returned by then fails
// the subsystem with a ShutdownTimeoutError, even if Run already returned.
type Stopper interface {
	Stop(ctx context.Context) error
}

// State is the lifecycle state of a Supervisor.
type State int32

const (
	// Idle accepts registrations.
	Idle State = iota
	// Running means subsystems are running and no shutdown was requested.
	Running
	// ShuttingDown means the shutdown signal fired and outcomes are being collected.
	ShuttingDown
	// Terminated means every subsystem has an outcome.
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config holds supervisor settings.
type Config struct {
	// GracePeriod bounds each subsystem's stop. It is required.
	GracePeriod time.Duration
}

// RegisterOption customizes a single registration.
type RegisterOption func(*member)

// WithGracePeriod overrides the supervisor grace period for one subsystem.
// Non-positive values are ignored.
func WithGracePeriod(d time.Duration) RegisterOption {
	return func(m *member) {
		if d > 0 {
			m.grace = d
		}
	}
}

type member struct {
	sub     Subsystem
	grace   time.Duration
	started time.Time
	// index into the outcome list, -1 until recorded
	outcome int
	timer   *time.Timer
	// a Stop call is in flight
	stopping bool
}

type termination struct {
	index int
	err   error
	at    time.Time
}

type stopResult struct {
	index int
	err   error
}

// Supervisor runs a fixed set of subsystems concurrently and shuts all of
// them down, each within its grace period, on the first failure or on
// external cancellation. A Supervisor runs once.
type Supervisor struct {
	cfg     Config
	logger  log.Logger
	metrics *Metrics

	mu      sync.Mutex
	members []*member
	names   map[string]struct{}

	state  atomic.Int32
	signal *ShutdownSignal
}

// New creates a Supervisor. A nil metrics argument disables metrics.
func New(cfg Config, logger log.Logger, metrics *Metrics) (*Supervisor, error) {
	if cfg.GracePeriod <= 0 {
		return nil, configErrorf("grace period must be positive, got %s", cfg.GracePeriod)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Supervisor{
		cfg:     cfg,
		logger:  logger.With("module", "supervisor"),
		metrics: metrics,
		names:   make(map[string]struct{}),
		signal:  NewShutdownSignal(context.Background()),
	}, nil
}

// Register adds a subsystem. It must be called before Run.
func (s *Supervisor) Register(sub Subsystem, opts ...RegisterOption) error {
	if sub == nil {
		return configErrorf("nil subsystem")
	}
	name := sub.Name()
	if name == "" {
		return configErrorf("subsystem name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != Idle {
		return configErrorf("cannot register %q while %s", name, st)
	}
	if _, dup := s.names[name]; dup {
		return configErrorf("subsystem %q already registered", name)
	}

	m := &member{sub: sub, grace: s.cfg.GracePeriod, outcome: -1}
	for _, opt := range opts {
		opt(m)
	}
	s.members = append(s.members, m)
	s.names[name] = struct{}{}
	return nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Signal returns the shutdown signal broadcast to every subsystem.
func (s *Supervisor) Signal() *ShutdownSignal {
	return s.signal
}

// Run starts every registered subsystem and blocks until each of them has an
// outcome. Cancelling ctx requests a deliberate shutdown. The returned error
// is non-nil only for API misuse; subsystem failures are reported through
// the Result.
func (s *Supervisor) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if len(s.members) == 0 {
		s.mu.Unlock()
		return nil, configErrorf("no subsystems registered")
	}
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		s.mu.Unlock()
		return nil, configErrorf("run called while %s", s.State())
	}
	members := s.members
	s.mu.Unlock()

	r := &run{
		s:           s,
		members:     members,
		events:      make(chan termination, len(members)),
		stops:       make(chan stopResult, len(members)),
		timeouts:    make(chan int, len(members)),
		stopBase:    context.WithoutCancel(ctx),
		pending:     len(members),
		startedAt:   time.Now(),
		outcomes:    make([]Outcome, 0, len(members)),
		stopReports: make(map[int]error),
	}
	return r.loop(ctx), nil
}

// run holds the state of one Run invocation. Only the loop goroutine
// touches it.
type run struct {
	s       *Supervisor
	members []*member

	events   chan termination
	stops    chan stopResult
	timeouts chan int
	stopBase context.Context

	pending        int
	stopsPending   int
	startedAt      time.Time
	shutdownAt     time.Time
	reason         error
	outcomes       []Outcome
	cause          error
	causeSubsystem string
	// stop errors that arrived before the subsystem's outcome
	stopReports map[int]error
}

func (r *run) loop(ctx context.Context) *Result {
	s := r.s
	runCtx := s.signal.Context()

	s.logger.Info("starting subsystems", "count", len(r.members))
	for i, m := range r.members {
		m.started = time.Now()
		s.metrics.Running.Add(1)
		s.logger.Debug("subsystem start", "subsystem", m.sub.Name())
		go r.runMember(runCtx, i, m.sub)
	}

	extDone := ctx.Done()
	sigDone := s.signal.Done()

	for r.pending > 0 || r.stopsPending > 0 {
		select {
		case ev := <-r.events:
			r.handleTermination(ev)
		case <-extDone:
			extDone = nil
			s.logger.Info("external cancellation received")
			r.beginShutdown(ErrExternalCancellation)
		case <-sigDone:
			sigDone = nil
			r.beginShutdown(s.signal.Reason())
		case res := <-r.stops:
			r.handleStopResult(res)
		case idx := <-r.timeouts:
			r.handleTimeout(idx)
		}
	}

	for _, m := range r.members {
		if m.timer != nil {
			m.timer.Stop()
		}
	}
	s.signal.release()
	s.state.Store(int32(Terminated))

	for _, o := range r.outcomes {
		s.metrics.Outcomes.With("subsystem", o.Subsystem, "status", o.Status.String()).Add(1)
	}
	if !r.shutdownAt.IsZero() {
		s.metrics.ShutdownSeconds.Observe(time.Since(r.shutdownAt).Seconds())
	}

	res := &Result{
		Outcomes:       r.outcomes,
		Cause:          r.cause,
		CauseSubsystem: r.causeSubsystem,
		Reason:         r.reason,
		Duration:       time.Since(r.startedAt),
	}
	if res.Faulted() {
		s.logger.Error("supervisor terminated with failure", "subsystem", res.CauseSubsystem, "error", res.Cause)
	} else {
		s.logger.Info("supervisor terminated cleanly", "duration", res.Duration)
	}
	return res
}

func (r *run) runMember(ctx context.Context, index int, sub Subsystem) {
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Subsystem: sub.Name(), Value: p, Stack: debug.Stack()}
		}
		r.events <- termination{index: index, err: err, at: time.Now()}
	}()
	err = sub.Run(ctx)
}

func (r *run) handleTermination(ev termination) {
	m := r.members[ev.index]
	if m.outcome >= 0 {
		// already recorded as timed out
		r.s.logger.Debug("late termination ignored", "subsystem", m.sub.Name(), "error", ev.err)
		return
	}

	status, cause := r.classify(ev.err)
	r.record(ev.index, status, cause, ev.at)

	if status == StatusFailed && r.s.State() == Running {
		r.beginShutdown(cause)
	}
}

func (r *run) classify(err error) (Status, error) {
	shutdown := r.s.signal.Triggered()
	switch {
	case err == nil && !shutdown:
		return StatusCompleted, nil
	case err == nil:
		return StatusCancelled, nil
	case shutdown && (errors.Is(err, context.Canceled) || errors.Is(err, ErrStopped)):
		return StatusCancelled, nil
	case shutdown && errors.Is(err, r.s.signal.Reason()):
		// context.Cause of the run context
		return StatusCancelled, nil
	default:
		return StatusFailed, err
	}
}

func (r *run) record(index int, status Status, cause error, at time.Time) {
	s := r.s
	m := r.members[index]
	if m.timer != nil && !m.stopping {
		m.timer.Stop()
	}

	o := Outcome{
		Subsystem: m.sub.Name(),
		Status:    status,
		Err:       cause,
		StopErr:   r.stopReports[index],
		At:        at,
		Duration:  at.Sub(m.started),
	}
	m.outcome = len(r.outcomes)
	r.outcomes = append(r.outcomes, o)
	r.pending--

	s.metrics.Running.Add(-1)

	if status == StatusFailed {
		if r.cause == nil {
			r.cause = cause
			r.causeSubsystem = o.Subsystem
		}
		s.logger.Error("subsystem failed", "subsystem", o.Subsystem, "error", cause, "ran", o.Duration)
		return
	}
	s.logger.Info("subsystem terminated", "subsystem", o.Subsystem, "status", status.String(), "ran", o.Duration)
}

func (r *run) beginShutdown(reason error) {
	s := r.s
	if !s.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) {
		return
	}
	r.shutdownAt = time.Now()
	r.reason = reason
	if !s.signal.Trigger(reason) {
		// fired earlier through Signal()
		r.reason = s.signal.Reason()
	}

	s.logger.Info("shutting down subsystems", "reason", r.reason, "pending", r.pending)

	for i, m := range r.members {
		if m.outcome >= 0 {
			continue
		}
		idx := i
		m.timer = time.AfterFunc(m.grace, func() { r.timeouts <- idx })
		if stopper, ok := m.sub.(Stopper); ok {
			m.stopping = true
			r.stopsPending++
			go r.stopMember(idx, stopper, m.grace)
		}
	}
}

func (r *run) stopMember(index int, stopper Stopper, grace time.Duration) {
	ctx, cancel := context.WithTimeout(r.stopBase, grace)
	defer cancel()

	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("stop panicked: %v", p)
			}
		}()
		err = stopper.Stop(ctx)
	}()
	r.stops <- stopResult{index: index, err: err}
}

func (r *run) handleStopResult(res stopResult) {
	m := r.members[res.index]
	if !m.stopping {
		// abandoned at its deadline
		return
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		// stop ctx expired
		r.handleTimeout(res.index)
		return
	}
	m.stopping = false
	r.stopsPending--
	if m.outcome >= 0 && m.timer != nil {
		m.timer.Stop()
	}
	if res.err == nil {
		return
	}
	r.s.logger.Warn("subsystem stop returned error", "subsystem", m.sub.Name(), "error", res.err)
	if m.outcome >= 0 {
		r.outcomes[m.outcome].StopErr = res.err
		return
	}
	r.stopReports[res.index] = res.err
}

func (r *run) handleTimeout(index int) {
	m := r.members[index]
	stopHung := m.stopping
	if m.stopping {
		m.stopping = false
		r.stopsPending--
	}
	if m.outcome >= 0 && !stopHung {
		return
	}

	s := r.s
	name := m.sub.Name()
	timeoutErr := &ShutdownTimeoutError{Subsystem: name, GracePeriod: m.grace}
	s.metrics.StopTimeouts.With("subsystem", name).Add(1)
	s.logger.Warn("subsystem did not stop within grace period", "subsystem", name, "grace_period", m.grace)

	if m.outcome < 0 {
		r.record(index, StatusFailed, timeoutErr, time.Now())
		return
	}

	// Run returned but Stop is still blocked: the single outcome becomes
	// the timeout.
	now := time.Now()
	o := &r.outcomes[m.outcome]
	o.Status = StatusFailed
	o.Err = timeoutErr
	o.At = now
	o.Duration = now.Sub(m.started)
	if r.cause == nil {
		r.cause = timeoutErr
		r.causeSubsystem = name
	}
	s.logger.Error("subsystem failed", "subsystem", name, "error", timeoutErr, "ran", o.Duration)
}
