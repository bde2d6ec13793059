package block

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "producer"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Height of the chain.
	Height metrics.Gauge
	// Number of transactions in the latest block.
	NumTxs metrics.Gauge
	// Total number of transactions.
	TotalTxs metrics.Counter
	// Size of the transactions in the latest block.
	BlockSizeBytes metrics.Gauge
	// Height forwarded to the executor as final.
	FinalizedHeight metrics.Gauge
	// State writes that created a key.
	InitialWrites metrics.Counter
	// State writes that overwrote an existing key.
	RepeatedWrites metrics.Counter
	// Bytes of state values written.
	UpdatedBytes metrics.Counter

	// Execution time
	ExecutionTime metrics.Histogram
	// Save time
	SaveTime metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Height: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "height",
			Help:      "Height of the chain.",
		}, labels).With(labelsAndValues...),
		NumTxs: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "num_txs",
			Help:      "Number of transactions in the latest block.",
		}, labels).With(labelsAndValues...),
		TotalTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "total_txs",
			Help:      "Total number of transactions.",
		}, labels).With(labelsAndValues...),
		BlockSizeBytes: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "block_size_bytes",
			Help:      "Size of the transactions in the latest block.",
		}, labels).With(labelsAndValues...),
		FinalizedHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "finalized_height",
			Help:      "Height forwarded to the executor as final.",
		}, labels).With(labelsAndValues...),
		InitialWrites: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "initial_writes_total",
			Help:      "State writes that created a key.",
		}, labels).With(labelsAndValues...),
		RepeatedWrites: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "repeated_writes_total",
			Help:      "State writes that overwrote an existing key.",
		}, labels).With(labelsAndValues...),
		UpdatedBytes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "updated_bytes_total",
			Help:      "Bytes of state values written.",
		}, labels).With(labelsAndValues...),
		ExecutionTime: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "execution_time_seconds",
			Help:      "Time spent executing the transactions of a block.",
			Buckets:   stdprometheus.DefBuckets,
		}, labels).With(labelsAndValues...),
		SaveTime: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "save_time_seconds",
			Help:      "Time spent saving a block.",
			Buckets:   stdprometheus.DefBuckets,
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Height:          discard.NewGauge(),
		NumTxs:          discard.NewGauge(),
		TotalTxs:        discard.NewCounter(),
		BlockSizeBytes:  discard.NewGauge(),
		FinalizedHeight: discard.NewGauge(),
		InitialWrites:   discard.NewCounter(),
		RepeatedWrites:  discard.NewCounter(),
		UpdatedBytes:    discard.NewCounter(),
		ExecutionTime:   discard.NewHistogram(),
		SaveTime:        discard.NewHistogram(),
	}
}
