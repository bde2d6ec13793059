package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
	"github.com/rollkit/rollnode/pkg/store"
)

// shutdownTimeout bounds the shutdown started by context cancellation.
const shutdownTimeout = 5 * time.Second

// Status is the body of the /status endpoint.
type Status struct {
	ChainID         string `json:"chain_id"`
	Height          uint64 `json:"height"`
	FinalizedHeight uint64 `json:"finalized_height"`
	State           string `json:"state"`
}

// Option configures a Server.
type Option func(*Server)

// WithStateFunc reports the node lifecycle state in /status.
func WithStateFunc(f func() string) Option {
	return func(s *Server) { s.state = f }
}

// WithGatherer sets the metrics source of /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// Server serves health, status, metrics and profiling endpoints.
type Server struct {
	address         string
	chainID         string
	instrumentation config.InstrumentationConfig

	store    store.Store
	state    func() string
	gatherer prometheus.Gatherer
	logger   log.Logger

	mu       sync.Mutex
	server   *http.Server
	addr     net.Addr
	quit     chan struct{}
	stopOnce sync.Once
}

// NewServer creates new instance of Server with given configuration.
func NewServer(cfg config.Config, st store.Store, logger log.Logger, opts ...Option) *Server {
	s := &Server{
		address:         cfg.RPC.Address,
		chainID:         cfg.ChainID,
		instrumentation: cfg.Instrumentation,
		store:           st,
		state:           func() string { return "unknown" },
		gatherer:        prometheus.DefaultGatherer,
		logger:          logger.With("module", "rpc"),
		quit:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	if s.instrumentation.IsPrometheusEnabled() {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.instrumentation.IsPprofEnabled() {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})
	return c.Handler(router)
}

// Addr returns the listen address once Run is serving, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens on the configured address and serves until ctx is cancelled,
// Stop is called, or serving fails.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	if limit := s.instrumentation.MaxOpenConnections; limit > 0 {
		s.logger.Debug("limiting number of connections", "limit", limit)
		listener = netutil.LimitListener(listener, limit)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second * 2,
	}
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	s.server = srv
	s.addr = listener.Addr()
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving HTTP", "listen address", listener.Addr())
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.quit:
			// Stop owns the shutdown
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error while shutting down RPC server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error while serving HTTP: %w", err)
	}
	return ctx.Err()
}

// Stop gracefully shuts the HTTP server down within ctx. Stop is idempotent.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		srv := s.server
		s.mu.Unlock()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	height, err := s.store.Height(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	finalized, err := s.store.FinalizedHeight(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Status{
		ChainID:         s.chainID,
		Height:          height,
		FinalizedHeight: finalized,
		State:           s.state(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
