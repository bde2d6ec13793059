package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/multierr"

	"github.com/rollkit/rollnode/node"
	rollconf "github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
	rollos "github.com/rollkit/rollnode/pkg/os"
	"github.com/rollkit/rollnode/pkg/signer"
	"github.com/rollkit/rollnode/pkg/signer/file"
	"github.com/rollkit/rollnode/pkg/store"
	"github.com/rollkit/rollnode/pkg/supervisor"
)

// ErrFaulted is wrapped by the error StartNode returns when a subsystem failed.
var ErrFaulted = errors.New("node terminated with a subsystem failure")

// dbName is the badger directory name inside the database path.
const dbName = "rollnode"

// ParseConfig is an helpers that loads the node configuration and validates it.
// Every failure is a *rollconf.ConfigError.
func ParseConfig(cmd *cobra.Command) (rollconf.Config, error) {
	nodeConfig, err := rollconf.Load(cmd)
	if err != nil {
		return rollconf.Config{}, &rollconf.ConfigError{Err: fmt.Errorf("failed to load node config: %w", err)}
	}

	if err := nodeConfig.Validate(); err != nil {
		return rollconf.Config{}, fmt.Errorf("failed to validate node config: %w", err)
	}

	return nodeConfig, nil
}

// SetupLogger configures and returns a logger based on the provided configuration.
// It applies the following settings from the config:
//   - Log format (text or JSON)
//   - Log level (debug, info, warn, error)
//   - Stack traces for error logs
//
// The returned logger is the one of the "main" subsystem.
func SetupLogger(config rollconf.LogConfig) log.Logger {
	opts := []log.Option{
		log.ParseLevelOption(config.Level),
		log.TraceOption(config.Trace),
	}
	if config.Format == "json" {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.SetupLogging("main", opts...)
}

// TuneProcess sizes GOMAXPROCS to the container CPU quota and applies the
// configured soft memory limit and GC percentage. The returned function
// restores the previous settings.
func TuneProcess(config rollconf.NodeConfig, logger log.Logger) (func(), error) {
	undoProcs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		return func() {}, fmt.Errorf("failed to set GOMAXPROCS: %w", err)
	}

	restore := []func(){undoProcs}
	if config.MemoryLimit > 0 {
		prev := debug.SetMemoryLimit(config.MemoryLimit)
		restore = append(restore, func() { debug.SetMemoryLimit(prev) })
		logger.Info("soft memory limit set", "bytes", config.MemoryLimit)
	}
	if config.GCPercent != 0 {
		prev := debug.SetGCPercent(config.GCPercent)
		restore = append(restore, func() { debug.SetGCPercent(prev) })
		logger.Info("GC percent set", "percent", config.GCPercent)
	}

	return func() {
		for i := len(restore) - 1; i >= 0; i-- {
			restore[i]()
		}
	}, nil
}

// OpenStore opens the storage handle described by the configuration. Keys
// are namespaced by chain ID.
func OpenStore(nodeConfig rollconf.Config, logger log.Logger) (*store.DefaultStore, error) {
	if nodeConfig.Store.InMemory {
		logger.Info("WARNING: working in in-memory mode")
		kv, err := store.NewDefaultInMemoryKVStore()
		if err != nil {
			return nil, err
		}
		return store.New(store.NewPrefixKV(kv, nodeConfig.ChainID)), nil
	}

	if err := rollos.EnsureDir(nodeConfig.DBDir(), rollconf.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	kv, err := store.NewDefaultKVStore(nodeConfig.RootDir, nodeConfig.DBPath, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store.New(store.NewPrefixKV(kv, nodeConfig.ChainID)), nil
}

// LoadSigner loads the signing key of an attester. Nodes without the
// attester role run without a key.
func LoadSigner(nodeConfig rollconf.Config) (signer.Signer, error) {
	if !nodeConfig.Consensus.HasRole(rollconf.RoleAttester) {
		return nil, nil
	}
	keyFile := nodeConfig.KeyFile()
	if !rollos.FileExists(keyFile) {
		return nil, fmt.Errorf("signing key %s not found, run init first", keyFile)
	}
	s, err := file.LoadFileSystemSigner(keyFile)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// StartNode runs the node until SIGINT, SIGTERM, cancellation of ctx or the
// first subsystem failure, then closes it and logs every outcome. It returns
// an error wrapping ErrFaulted when a subsystem failed.
func StartNode(ctx context.Context, logger log.Logger, rollnode *node.Node) error {
	ctx, stop := rollos.SignalContext(ctx, logger)
	defer stop()

	res, err := rollnode.Run(ctx)
	closeErr := rollnode.Close()
	if err != nil {
		return multierr.Append(fmt.Errorf("failed to run node: %w", err), closeErr)
	}

	LogResult(logger, res)

	if res.Faulted() {
		if closeErr != nil {
			logger.Error("error while closing node", "error", closeErr)
		}
		return fmt.Errorf("%w: %w", ErrFaulted, res.Err())
	}
	return closeErr
}

// LogResult logs the verdict of a run. For a faulted run the first cause is
// logged before the individual outcomes.
func LogResult(logger log.Logger, res *supervisor.Result) {
	if res.Faulted() {
		logger.Error("node failed", "subsystem", res.CauseSubsystem, "error", res.Cause, "reason", res.Reason)
		for _, o := range res.Outcomes {
			logger.Info("subsystem outcome", "subsystem", o.Subsystem, "status", o.Status.String(),
				"error", o.Err, "stop_error", o.StopErr, "ran", o.Duration)
		}
		return
	}

	logger.Info("node stopped", "reason", res.Reason, "subsystems", len(res.Outcomes), "duration", res.Duration)
	for _, o := range res.Outcomes {
		logger.Debug("subsystem outcome", "subsystem", o.Subsystem, "status", o.Status.String(),
			"stop_error", o.StopErr, "ran", o.Duration)
	}
}

// ExitCode maps the error returned by a command to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
