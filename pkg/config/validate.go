package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidConfig is matched by every configuration resolution failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a configuration that could not be resolved or that
// failed validation. It is fatal: no subsystem is started.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidConfig) hold for every ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

var knownSubsystems = map[string]struct{}{
	SubsystemStore:     {},
	SubsystemExecution: {},
	SubsystemConsensus: {},
	SubsystemRPC:       {},
}

// Validate checks the configuration and returns a *ConfigError listing every
// problem found.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.ChainID == "" {
		errs = multierror.Append(errs, errors.New("chain_id is required"))
	}
	if c.Node.BlockTime.Duration <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("node.block_time must be positive, got %s", c.Node.BlockTime))
	}
	if c.Node.MemoryLimit < 0 {
		errs = multierror.Append(errs, fmt.Errorf("node.memory_limit can't be negative"))
	}
	if c.Store.HealthInterval.Duration <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("store.health_interval must be positive, got %s", c.Store.HealthInterval))
	}
	if c.Consensus.FinalityInterval.Duration <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("consensus.finality_interval must be positive, got %s", c.Consensus.FinalityInterval))
	}

	if len(c.Consensus.Roles) == 0 {
		errs = multierror.Append(errs, errors.New("consensus.roles needs at least one role"))
	}
	for _, role := range c.Consensus.Roles {
		if role != RoleAttester && role != RoleObserver {
			errs = multierror.Append(errs, fmt.Errorf("unknown consensus role %q", role))
		}
	}
	if c.Consensus.HasRole(RoleAttester) && c.Consensus.KeyPath == "" {
		errs = multierror.Append(errs, errors.New("consensus.key_path is required for the attester role"))
	}

	if c.Shutdown.GracePeriod.Duration <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("shutdown.grace_period must be positive, got %s", c.Shutdown.GracePeriod))
	}
	for name, d := range c.Shutdown.Overrides {
		if _, ok := knownSubsystems[name]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("shutdown.overrides: unknown subsystem %q", name))
		}
		if d.Duration <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("shutdown.overrides.%s must be positive, got %s", name, d))
		}
	}

	if c.RPC.Enable && c.RPC.Address == "" {
		errs = multierror.Append(errs, errors.New("rpc.address is required when the RPC server is enabled"))
	}
	if err := c.Instrumentation.ValidateBasic(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("instrumentation: %w", err))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}
