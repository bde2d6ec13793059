package supervisor

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "supervisor"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of subsystems currently running.
	Running metrics.Gauge
	// Terminated subsystems, labelled by subsystem and status.
	Outcomes metrics.Counter
	// Subsystems that outlived their grace period.
	StopTimeouts metrics.Counter
	// Time from the shutdown trigger to the last recorded outcome.
	ShutdownSeconds metrics.Histogram
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
		Running: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "running_subsystems",
			Help:      "Number of subsystems currently running.",
		}, labels).With(labelsAndValues...),
		Outcomes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "outcomes_total",
			Help:      "Terminated subsystems by subsystem and status.",
		}, append(labels, "subsystem", "status")).With(labelsAndValues...),
		StopTimeouts: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "stop_timeouts_total",
			Help:      "Subsystems that did not stop within their grace period.",
		}, append(labels, "subsystem")).With(labelsAndValues...),
		ShutdownSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "shutdown_seconds",
			Help:      "Time from shutdown trigger to the last recorded outcome.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Running:         discard.NewGauge(),
		Outcomes:        discard.NewCounter(),
		StopTimeouts:    discard.NewCounter(),
		ShutdownSeconds: discard.NewHistogram(),
	}
}
