package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirPerm is the default permissions used when creating directories.
	DefaultDirPerm = 0750

	// DefaultConfigDir is the default directory for configuration files.
	DefaultConfigDir = "config"

	// DefaultDataDir is the default directory for data files (e.g. database).
	DefaultDataDir = "data"

	// DefaultKeyPath is the default signing key file, relative to the root directory.
	DefaultKeyPath = "config/signer.json"

	// DefaultLogLevel is the default log level for the application
	DefaultLogLevel = "info"

	// DefaultGracePeriod is the shutdown grace period written to new configuration files.
	DefaultGracePeriod = 10 * time.Second
)

// DefaultRootDir returns the default root directory for rollnode
func DefaultRootDir() string {
	return DefaultRootDirWithName("rollnode")
}

// DefaultRootDirWithName returns the default root directory for an application,
// based on the app name and the user's home directory
func DefaultRootDirWithName(appName string) string {
	if appName == "" {
		appName = "rollnode"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "."+appName)
}

// DefaultConfig keeps default values of Config
var DefaultConfig = Config{
	RootDir:   DefaultRootDir(),
	DBPath:    DefaultDataDir,
	ConfigDir: DefaultConfigDir,
	ChainID:   "rollnode-test",
	Node: NodeConfig{
		BlockTime: DurationWrapper{1 * time.Second},
	},
	Store: StoreConfig{
		InMemory:       false,
		HealthInterval: DurationWrapper{5 * time.Second},
	},
	Consensus: ConsensusConfig{
		Roles:            []string{RoleAttester},
		KeyPath:          DefaultKeyPath,
		FinalityInterval: DurationWrapper{2 * time.Second},
	},
	Shutdown: ShutdownConfig{
		GracePeriod: DurationWrapper{DefaultGracePeriod},
	},
	RPC: RPCConfig{
		Enable:  true,
		Address: "127.0.0.1:7331",
	},
	Instrumentation: DefaultInstrumentationConfig(),
	Log: LogConfig{
		Level:  DefaultLogLevel,
		Format: "text",
		Trace:  false,
	},
}
