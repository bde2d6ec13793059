package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagPrefix is the prefix of every rollnode specific flag.
const FlagPrefix = "rollnode."

const (
	// Base configuration flags

	// FlagRootDir is a flag for specifying the root directory
	FlagRootDir = "home"
	// FlagDBPath is a flag for specifying the database path
	FlagDBPath = FlagPrefix + "db_path"
	// FlagChainConfigDir is a flag for specifying the chain config directory
	FlagChainConfigDir = FlagPrefix + "config_dir"
	// FlagChainID is a flag for specifying the chain ID
	FlagChainID = FlagPrefix + "chain_id"

	// Node configuration flags

	// FlagBlockTime is a flag for specifying the block time
	FlagBlockTime = FlagPrefix + "node.block_time"
	// FlagMaxTxsBytes is a flag for limiting the size of the transactions included in one block
	FlagMaxTxsBytes = FlagPrefix + "node.max_txs_bytes"
	// FlagMemoryLimit is a flag for the soft memory limit of the process in bytes
	FlagMemoryLimit = FlagPrefix + "node.memory_limit"
	// FlagGCPercent is a flag for the garbage collection target percentage
	FlagGCPercent = FlagPrefix + "node.gc_percent"

	// Store configuration flags

	// FlagStoreInMemory is a flag for keeping all data in memory
	FlagStoreInMemory = FlagPrefix + "store.in_memory"
	// FlagStoreHealthInterval is a flag for specifying how often the store is probed
	FlagStoreHealthInterval = FlagPrefix + "store.health_interval"

	// Consensus configuration flags

	// FlagConsensusRoles is a flag for specifying the consensus roles of this node
	FlagConsensusRoles = FlagPrefix + "consensus.roles"
	// FlagConsensusKeyPath is a flag for specifying the signing key file
	FlagConsensusKeyPath = FlagPrefix + "consensus.key_path"
	// FlagConsensusFinalityInterval is a flag for specifying how often finality is attested
	FlagConsensusFinalityInterval = FlagPrefix + "consensus.finality_interval"

	// Shutdown configuration flags

	// FlagShutdownGracePeriod is a flag for specifying how long each subsystem has to stop
	FlagShutdownGracePeriod = FlagPrefix + "shutdown.grace_period"

	// RPC configuration flags

	// FlagRPCEnable is a flag for enabling the RPC server
	FlagRPCEnable = FlagPrefix + "rpc.enable"
	// FlagRPCAddress is a flag for specifying the RPC server address
	FlagRPCAddress = FlagPrefix + "rpc.address"

	// Instrumentation configuration flags

	// FlagPrometheus is a flag for enabling Prometheus metrics
	FlagPrometheus = FlagPrefix + "instrumentation.prometheus"
	// FlagNamespace is a flag for specifying the metrics namespace
	FlagNamespace = FlagPrefix + "instrumentation.namespace"
	// FlagMaxOpenConnections is a flag for specifying the maximum number of open connections
	FlagMaxOpenConnections = FlagPrefix + "instrumentation.max_open_connections"
	// FlagPprof is a flag for enabling pprof profiling endpoints for runtime debugging
	FlagPprof = FlagPrefix + "instrumentation.pprof"

	// Logging configuration flags

	// FlagLogLevel is a flag for specifying the log level
	FlagLogLevel = FlagPrefix + "log.level"
	// FlagLogFormat is a flag for specifying the log format
	FlagLogFormat = FlagPrefix + "log.format"
	// FlagLogTrace is a flag for enabling stack traces in error logs
	FlagLogTrace = FlagPrefix + "log.trace"
)

// Names of the subsystems a node registers with its supervisor.
const (
	SubsystemStore     = "store"
	SubsystemExecution = "execution"
	SubsystemConsensus = "consensus"
	SubsystemRPC       = "rpc"
)

// Consensus roles.
const (
	RoleAttester = "attester"
	RoleObserver = "observer"
)

// DurationWrapper is a wrapper for time.Duration that implements encoding.TextMarshaler and encoding.TextUnmarshaler
// needed for YAML marshalling/unmarshalling especially for time.Duration
type DurationWrapper struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler to format the duration as text
func (d DurationWrapper) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler to parse the duration from text
func (d *DurationWrapper) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config stores rollnode configuration.
type Config struct {
	// Base configuration
	RootDir   string `mapstructure:"-" yaml:"-" comment:"Root directory where rollnode files are located"`
	DBPath    string `mapstructure:"db_path" yaml:"db_path" comment:"Path inside the root directory where the database is located"`
	ConfigDir string `mapstructure:"config_dir" yaml:"config_dir" comment:"Directory containing the rollup chain configuration"`
	ChainID   string `mapstructure:"chain_id" yaml:"chain_id" comment:"Chain ID for the rollup"`

	// Node specific configuration
	Node NodeConfig `mapstructure:"node" yaml:"node"`

	// Storage configuration
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Consensus participant configuration
	Consensus ConsensusConfig `mapstructure:"consensus" yaml:"consensus"`

	// Shutdown configuration
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`

	// RPC configuration
	RPC RPCConfig `mapstructure:"rpc" yaml:"rpc"`

	// Instrumentation configuration
	Instrumentation InstrumentationConfig `mapstructure:"instrumentation" yaml:"instrumentation"`

	// Logging configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// NodeConfig contains block production and process tuning parameters.
type NodeConfig struct {
	BlockTime   DurationWrapper `mapstructure:"block_time" yaml:"block_time" comment:"Block time (duration). Examples: \"500ms\", \"1s\", \"5s\", \"1m\"."`
	MaxTxsBytes uint64          `mapstructure:"max_txs_bytes" yaml:"max_txs_bytes" comment:"Maximum total size of the transactions included in one block. Use 0 to let the executor decide."`
	MemoryLimit int64           `mapstructure:"memory_limit" yaml:"memory_limit" comment:"Soft memory limit of the process in bytes. Use 0 to keep the runtime default."`
	GCPercent   int             `mapstructure:"gc_percent" yaml:"gc_percent" comment:"Garbage collection target percentage. Use 0 to keep the runtime default."`
}

// StoreConfig contains storage parameters.
type StoreConfig struct {
	InMemory       bool            `mapstructure:"in_memory" yaml:"in_memory" comment:"Keep all data in memory. Nothing is persisted across restarts."`
	HealthInterval DurationWrapper `mapstructure:"health_interval" yaml:"health_interval" comment:"How often the storage handle is probed. A failed probe stops the node."`
}

// ConsensusConfig contains the consensus participant parameters.
type ConsensusConfig struct {
	Roles            []string        `mapstructure:"roles" yaml:"roles" comment:"Consensus roles of this node (attester, observer)"`
	KeyPath          string          `mapstructure:"key_path" yaml:"key_path" comment:"Path of the signing key file, relative to the root directory. Required for the attester role."`
	FinalityInterval DurationWrapper `mapstructure:"finality_interval" yaml:"finality_interval" comment:"How often produced blocks are checked for finality."`
}

// HasRole reports whether role is one of the configured roles.
func (c ConsensusConfig) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ShutdownConfig contains the graceful shutdown parameters.
type ShutdownConfig struct {
	GracePeriod DurationWrapper            `mapstructure:"grace_period" yaml:"grace_period" comment:"How long each subsystem is given to stop once shutdown starts. Must be positive."`
	Overrides   map[string]DurationWrapper `mapstructure:"overrides" yaml:"overrides" comment:"Per subsystem grace periods (store, execution, consensus, rpc)"`
}

// GracePeriodFor returns the grace period of the named subsystem.
func (c ShutdownConfig) GracePeriodFor(subsystem string) time.Duration {
	if d, ok := c.Overrides[subsystem]; ok && d.Duration > 0 {
		return d.Duration
	}
	return c.GracePeriod.Duration
}

// RPCConfig contains all RPC server configuration parameters
type RPCConfig struct {
	Enable  bool   `mapstructure:"enable" yaml:"enable" comment:"Serve health, status, metrics and profiling endpoints"`
	Address string `mapstructure:"address" yaml:"address" comment:"Address to bind the RPC server to (host:port)"`
}

// LogConfig contains all logging configuration parameters
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" comment:"Log level (debug, info, warn, error)"`
	Format string `mapstructure:"format" yaml:"format" comment:"Log format (text, json)"`
	Trace  bool   `mapstructure:"trace" yaml:"trace" comment:"Enable stack traces in error logs"`
}

// AddGlobalFlags registers the basic configuration flags that are common across applications
// This includes logging configuration and root directory settings
func AddGlobalFlags(cmd *cobra.Command, appName string) {
	cmd.PersistentFlags().String(FlagLogLevel, DefaultConfig.Log.Level, "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String(FlagLogFormat, DefaultConfig.Log.Format, "Set the log format (text, json)")
	cmd.PersistentFlags().Bool(FlagLogTrace, DefaultConfig.Log.Trace, "Enable stack traces in error logs")
	cmd.PersistentFlags().String(FlagRootDir, DefaultRootDirWithName(appName), "Root directory for application data")
}

// AddFlags adds rollnode specific configuration options to cobra Command.
func AddFlags(cmd *cobra.Command) {
	def := DefaultConfig

	// Base flags
	cmd.Flags().String(FlagDBPath, def.DBPath, "path for the node database")
	cmd.Flags().String(FlagChainConfigDir, def.ConfigDir, "directory containing chain configuration files")
	cmd.Flags().String(FlagChainID, def.ChainID, "chain ID")

	// Node configuration flags
	cmd.Flags().Duration(FlagBlockTime, def.Node.BlockTime.Duration, "block time")
	cmd.Flags().Uint64(FlagMaxTxsBytes, def.Node.MaxTxsBytes, "maximum size of the transactions in one block (0 for executor limit)")
	cmd.Flags().Int64(FlagMemoryLimit, def.Node.MemoryLimit, "soft memory limit in bytes (0 for runtime default)")
	cmd.Flags().Int(FlagGCPercent, def.Node.GCPercent, "garbage collection target percentage (0 for runtime default)")

	// Store configuration flags
	cmd.Flags().Bool(FlagStoreInMemory, def.Store.InMemory, "keep all data in memory")
	cmd.Flags().Duration(FlagStoreHealthInterval, def.Store.HealthInterval.Duration, "interval between storage health probes")

	// Consensus configuration flags
	cmd.Flags().StringSlice(FlagConsensusRoles, def.Consensus.Roles, "consensus roles (attester, observer)")
	cmd.Flags().String(FlagConsensusKeyPath, def.Consensus.KeyPath, "signing key file, relative to the root directory")
	cmd.Flags().Duration(FlagConsensusFinalityInterval, def.Consensus.FinalityInterval.Duration, "interval between finality rounds")

	// Shutdown configuration flags
	cmd.Flags().Duration(FlagShutdownGracePeriod, def.Shutdown.GracePeriod.Duration, "time each subsystem is given to stop")

	// RPC configuration flags
	cmd.Flags().Bool(FlagRPCEnable, def.RPC.Enable, "enable the RPC server")
	cmd.Flags().String(FlagRPCAddress, def.RPC.Address, "RPC server address (host:port)")

	// Instrumentation configuration flags
	instrDef := def.Instrumentation
	cmd.Flags().Bool(FlagPrometheus, instrDef.Prometheus, "enable Prometheus metrics")
	cmd.Flags().String(FlagNamespace, instrDef.Namespace, "Prometheus metrics namespace")
	cmd.Flags().Int(FlagMaxOpenConnections, instrDef.MaxOpenConnections, "maximum number of simultaneous RPC connections")
	cmd.Flags().Bool(FlagPprof, instrDef.Pprof, "enable pprof HTTP endpoint")
}

// Load loads the node configuration in the following order of precedence:
// 1. DefaultConfig (lowest priority)
// 2. YAML configuration file
// 3. Command line flags (highest priority)
func Load(cmd *cobra.Command) (Config, error) {
	home, _ := cmd.Flags().GetString(FlagRootDir)
	if home == "" {
		home = DefaultRootDir()
	}
	return LoadNodeConfig(cmd, home)
}

// LoadNodeConfig is Load with an explicit home directory.
func LoadNodeConfig(cmd *cobra.Command, home string) (Config, error) {
	// Create a new Viper instance to avoid conflicts with any global Viper
	v := viper.New()

	config := DefaultConfig
	config.RootDir = home

	v.SetConfigName(ConfigBaseName)
	v.SetConfigType(ConfigExtension)
	if home != "" {
		// Search directly in the root directory first, then in its config subdirectory
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, config.ConfigDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) {
			return config, fmt.Errorf("error reading YAML configuration: %w", err)
		}
	}

	var flagErrs error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Always trim the rollnode prefix if it exists
		flagName := strings.TrimPrefix(f.Name, FlagPrefix)
		if err := v.BindPFlag(flagName, f); err != nil {
			flagErrs = multierror.Append(flagErrs, err)
		}
	})
	if flagErrs != nil {
		return config, fmt.Errorf("unable to bind flags: %w", flagErrs)
	}

	// viper.Unmarshal respects the precedence: defaults < yaml < flags
	if err := v.Unmarshal(&config, decoderOptions); err != nil {
		return config, fmt.Errorf("unable to decode configuration: %w", err)
	}
	config.RootDir = home

	return config, nil
}

func decoderOptions(c *mapstructure.DecoderConfig) {
	c.TagName = "mapstructure"
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		durationWrapperHook,
	)
}

func durationWrapperHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != reflect.TypeOf(DurationWrapper{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		duration, err := time.ParseDuration(v)
		if err != nil {
			return nil, err
		}
		return DurationWrapper{Duration: duration}, nil
	case time.Duration:
		return DurationWrapper{Duration: v}, nil
	}
	return data, nil
}

// KeyFile returns the absolute path of the signing key file.
func (c Config) KeyFile() string {
	if filepath.IsAbs(c.Consensus.KeyPath) {
		return c.Consensus.KeyPath
	}
	return filepath.Join(c.RootDir, c.Consensus.KeyPath)
}

// DBDir returns the absolute path of the database directory.
func (c Config) DBDir() string {
	if filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(c.RootDir, c.DBPath)
}
