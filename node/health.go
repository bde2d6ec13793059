package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rollkit/rollnode/pkg/log"
	"github.com/rollkit/rollnode/pkg/store"
)

// storeMonitor is the long-running task of the storage handle. It probes
// the store every interval and fails on the first unhealthy probe.
type storeMonitor struct {
	store    store.Store
	interval time.Duration
	logger   log.Logger

	quit     chan struct{}
	stopOnce sync.Once
}

func newStoreMonitor(st store.Store, interval time.Duration, logger log.Logger) *storeMonitor {
	return &storeMonitor{
		store:    st,
		interval: interval,
		logger:   logger.With("module", "store"),
		quit:     make(chan struct{}),
	}
}

func (m *storeMonitor) Run(ctx context.Context) error {
	if err := m.probe(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.quit:
			return nil
		case <-ticker.C:
			if err := m.probe(ctx); err != nil {
				return err
			}
		}
	}
}

func (m *storeMonitor) probe(ctx context.Context) error {
	if err := m.store.Health(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("storage health check failed: %w", err)
	}
	m.logger.Debug("storage healthy")
	return nil
}

func (m *storeMonitor) Stop(context.Context) error {
	m.stopOnce.Do(func() { close(m.quit) })
	return nil
}
