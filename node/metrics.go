package node

import (
	"github.com/rollkit/rollnode/block"
	"github.com/rollkit/rollnode/consensus"
	"github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/supervisor"
)

// MetricsProvider returns supervisor, block and consensus Metrics.
type MetricsProvider func(chainID string) (*supervisor.Metrics, *block.Metrics, *consensus.Metrics)

// DefaultMetricsProvider returns Metrics build using Prometheus client library
// if Prometheus is enabled. Otherwise, it returns no-op Metrics.
func DefaultMetricsProvider(config config.InstrumentationConfig) MetricsProvider {
	return func(chainID string) (*supervisor.Metrics, *block.Metrics, *consensus.Metrics) {
		if config.IsPrometheusEnabled() {
			return supervisor.PrometheusMetrics(config.Namespace, "chain_id", chainID),
				block.PrometheusMetrics(config.Namespace, "chain_id", chainID),
				consensus.PrometheusMetrics(config.Namespace, "chain_id", chainID)
		}
		return supervisor.NopMetrics(), block.NopMetrics(), consensus.NopMetrics()
	}
}
