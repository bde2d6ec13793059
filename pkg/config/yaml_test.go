package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYamlConfigOperations(t *testing.T) {
	testCases := []struct {
		name     string
		setup    func(t *testing.T, dir string) *Config
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "Write and read custom config values",
			setup: func(t *testing.T, dir string) *Config {
				cfg := DefaultConfig
				cfg.RootDir = dir
				cfg.ChainID = "custom-chain"
				cfg.Shutdown.GracePeriod = DurationWrapper{4 * time.Second}
				cfg.Shutdown.Overrides = map[string]DurationWrapper{SubsystemRPC: {time.Second}}
				cfg.Consensus.Roles = []string{RoleObserver}

				require.NoError(t, WriteYamlConfig(cfg))
				return &cfg
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "custom-chain", cfg.ChainID)
				assert.Equal(t, 4*time.Second, cfg.Shutdown.GracePeriod.Duration)
				assert.Equal(t, time.Second, cfg.Shutdown.GracePeriodFor(SubsystemRPC))
				assert.Equal(t, []string{RoleObserver}, cfg.Consensus.Roles)
			},
		},
		{
			name: "Initialize default config values",
			setup: func(t *testing.T, dir string) *Config {
				cfg := DefaultConfig
				cfg.RootDir = dir

				require.NoError(t, WriteYamlConfig(cfg))
				return &cfg
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig.ChainID, cfg.ChainID)
				assert.Equal(t, DefaultConfig.Node.BlockTime, cfg.Node.BlockTime)
				assert.Equal(t, DefaultConfig.Shutdown.GracePeriod, cfg.Shutdown.GracePeriod)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tempDir := t.TempDir()
			tc.setup(t, tempDir)

			cfg, err := ReadYaml(tempDir)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tempDir, cfg.RootDir)

			tc.validate(t, &cfg)
		})
	}
}

func TestWriteYamlConfig_Comments(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig
	cfg.RootDir = dir
	require.NoError(t, WriteYamlConfig(cfg))

	data, err := os.ReadFile(filepath.Join(dir, ConfigYaml))
	require.NoError(t, err)
	assert.Contains(t, string(data), "grace_period: 10s")
	assert.Contains(t, string(data), "Chain ID for the rollup")
}

func TestReadYaml_Missing(t *testing.T) {
	_, err := ReadYaml(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadYaml)
}

func TestEnsureRoot(t *testing.T) {
	require.Error(t, EnsureRoot(""))

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureRoot(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
