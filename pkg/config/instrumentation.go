package config

import "errors"

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on the RPC
	// server.
	Prometheus bool `mapstructure:"prometheus" yaml:"prometheus" comment:"Enable Prometheus metrics"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace" yaml:"namespace" comment:"Namespace for metrics"`

	// Maximum number of simultaneous connections.
	// If you want to accept a larger number than the default, make sure
	// you increase your OS limits.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections" yaml:"max_open_connections" comment:"Maximum number of simultaneous connections"`

	// When true, pprof endpoints are served under /debug/pprof/ on the RPC
	// server.
	Pprof bool `mapstructure:"pprof" yaml:"pprof" comment:"Enable pprof profiling endpoints"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() InstrumentationConfig {
	return InstrumentationConfig{
		Prometheus:         false,
		Namespace:          "rollnode",
		MaxOpenConnections: 3,
		Pprof:              false,
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	return nil
}

// IsPrometheusEnabled returns true if Prometheus metrics are enabled.
func (cfg InstrumentationConfig) IsPrometheusEnabled() bool {
	return cfg.Prometheus
}

// IsPprofEnabled returns true if pprof endpoints are enabled.
func (cfg InstrumentationConfig) IsPprofEnabled() bool {
	return cfg.Pprof
}
