package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/rollnode/core/execution"
	"github.com/rollkit/rollnode/node"
	rollconf "github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
	"github.com/rollkit/rollnode/pkg/signer/file"
	"github.com/rollkit/rollnode/pkg/store"
)

var errRejected = errors.New("block rejected")

type rejectingExecutor struct {
	*execution.KVExecutor
}

func (rejectingExecutor) ExecuteTxs(context.Context, [][]byte, uint64, time.Time, []byte) ([]byte, uint64, error) {
	return nil, 0, errRejected
}

func newTestRunCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "start"}
	rollconf.AddGlobalFlags(cmd, "testapp")
	rollconf.AddFlags(cmd)
	return cmd
}

func getTestConfig(t *testing.T) rollconf.Config {
	cfg := rollconf.DefaultConfig
	cfg.RootDir = t.TempDir()
	cfg.ChainID = "cmd-test"
	cfg.Node.BlockTime = rollconf.DurationWrapper{Duration: 10 * time.Millisecond}
	cfg.Store.InMemory = true
	cfg.Store.HealthInterval = rollconf.DurationWrapper{Duration: 10 * time.Millisecond}
	cfg.Consensus.Roles = []string{rollconf.RoleObserver}
	cfg.Consensus.FinalityInterval = rollconf.DurationWrapper{Duration: 10 * time.Millisecond}
	cfg.Shutdown.GracePeriod = rollconf.DurationWrapper{Duration: time.Second}
	cfg.RPC.Enable = false
	return cfg
}

func newTestNode(t *testing.T, cfg rollconf.Config, exec execution.Executor) (*node.Node, *store.DefaultStore) {
	t.Helper()
	st, err := OpenStore(cfg, log.NewNopLogger())
	require.NoError(t, err)
	n, err := node.NewNode(cfg, exec, st, nil, log.NewNopLogger(), nil)
	require.NoError(t, err)
	return n, st
}

func TestParseFlags(t *testing.T) {
	home := t.TempDir()
	flags := []string{
		"--home", home,
		"--rollnode.db_path", "custom/db/path",
		"--rollnode.chain_id", "flag-chain",

		// Node flags
		"--rollnode.node.block_time", "2s",
		"--rollnode.node.max_txs_bytes", "4096",
		"--rollnode.node.memory_limit", "1073741824",
		"--rollnode.node.gc_percent", "150",

		// Store flags
		"--rollnode.store.in_memory",
		"--rollnode.store.health_interval", "3s",

		// Consensus flags
		"--rollnode.consensus.roles", "attester,observer",
		"--rollnode.consensus.key_path", "keys/signer.json",
		"--rollnode.consensus.finality_interval", "4s",

		// Shutdown and RPC flags
		"--rollnode.shutdown.grace_period", "7s",
		"--rollnode.rpc.enable=false",
		"--rollnode.rpc.address", "0.0.0.0:9000",

		// Instrumentation flags
		"--rollnode.instrumentation.prometheus",
		"--rollnode.instrumentation.namespace", "custom",
		"--rollnode.instrumentation.max_open_connections", "5",
		"--rollnode.instrumentation.pprof",
	}

	cmd := newTestRunCmd()
	require.NoError(t, cmd.ParseFlags(flags))

	nodeConfig, err := ParseConfig(cmd)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"RootDir", nodeConfig.RootDir, home},
		{"DBPath", nodeConfig.DBPath, "custom/db/path"},
		{"ChainID", nodeConfig.ChainID, "flag-chain"},

		{"BlockTime", nodeConfig.Node.BlockTime.Duration, 2 * time.Second},
		{"MaxTxsBytes", nodeConfig.Node.MaxTxsBytes, uint64(4096)},
		{"MemoryLimit", nodeConfig.Node.MemoryLimit, int64(1 << 30)},
		{"GCPercent", nodeConfig.Node.GCPercent, 150},

		{"InMemory", nodeConfig.Store.InMemory, true},
		{"HealthInterval", nodeConfig.Store.HealthInterval.Duration, 3 * time.Second},

		{"Roles", nodeConfig.Consensus.Roles, []string{"attester", "observer"}},
		{"KeyPath", nodeConfig.Consensus.KeyPath, "keys/signer.json"},
		{"FinalityInterval", nodeConfig.Consensus.FinalityInterval.Duration, 4 * time.Second},

		{"GracePeriod", nodeConfig.Shutdown.GracePeriod.Duration, 7 * time.Second},
		{"RPCEnable", nodeConfig.RPC.Enable, false},
		{"RPCAddress", nodeConfig.RPC.Address, "0.0.0.0:9000"},

		{"Prometheus", nodeConfig.Instrumentation.Prometheus, true},
		{"Namespace", nodeConfig.Instrumentation.Namespace, "custom"},
		{"MaxOpenConnections", nodeConfig.Instrumentation.MaxOpenConnections, 5},
		{"Pprof", nodeConfig.Instrumentation.Pprof, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.got)
		})
	}
}

func TestParseConfig_Errors(t *testing.T) {
	t.Run("invalid value", func(t *testing.T) {
		cmd := newTestRunCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--home", t.TempDir(), "--rollnode.node.block_time", "0s"}))
		_, err := ParseConfig(cmd)
		require.Error(t, err)
		assert.ErrorIs(t, err, rollconf.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "block_time")
	})

	t.Run("malformed file", func(t *testing.T) {
		home := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(home, rollconf.ConfigYaml), []byte("node: [unterminated"), 0o600))
		cmd := newTestRunCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--home", home}))
		_, err := ParseConfig(cmd)
		assert.ErrorIs(t, err, rollconf.ErrInvalidConfig)
	})
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		logger := SetupLogger(rollconf.LogConfig{Level: "debug", Format: format, Trace: true})
		require.NotNil(t, logger)
		logger.Debug("logger ready", "format", format)
	}
	assert.NotNil(t, SetupLogger(rollconf.LogConfig{Level: "not-a-level"}))
}

func TestTuneProcess(t *testing.T) {
	origGC := debug.SetGCPercent(100)
	debug.SetGCPercent(origGC)
	origLimit := debug.SetMemoryLimit(-1)

	restore, err := TuneProcess(rollconf.NodeConfig{MemoryLimit: 1 << 40, GCPercent: 50}, log.NewNopLogger())
	require.NoError(t, err)

	assert.EqualValues(t, 1<<40, debug.SetMemoryLimit(-1))
	assert.Equal(t, 50, debug.SetGCPercent(50))

	restore()
	assert.Equal(t, origLimit, debug.SetMemoryLimit(-1))
	assert.Equal(t, origGC, debug.SetGCPercent(origGC))
}

func TestTuneProcess_Defaults(t *testing.T) {
	origLimit := debug.SetMemoryLimit(-1)
	restore, err := TuneProcess(rollconf.NodeConfig{}, log.NewNopLogger())
	require.NoError(t, err)
	defer restore()
	assert.Equal(t, origLimit, debug.SetMemoryLimit(-1))
}

func TestOpenStore(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		cfg := getTestConfig(t)
		st, err := OpenStore(cfg, log.NewNopLogger())
		require.NoError(t, err)
		defer st.Close()
		assert.NoError(t, st.Health(context.Background()))
		assert.NoDirExists(t, cfg.DBDir())
	})

	t.Run("on disk", func(t *testing.T) {
		cfg := getTestConfig(t)
		cfg.Store.InMemory = false
		st, err := OpenStore(cfg, log.NewNopLogger())
		require.NoError(t, err)
		require.NoError(t, st.SaveBlock(context.Background(), 1, []byte("root"), 0))
		require.NoError(t, st.Close())
		assert.DirExists(t, filepath.Join(cfg.DBDir(), dbName))

		st, err = OpenStore(cfg, log.NewNopLogger())
		require.NoError(t, err)
		defer st.Close()
		height, err := st.Height(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 1, height)
	})
}

func TestLoadSigner(t *testing.T) {
	cfg := getTestConfig(t)

	s, err := LoadSigner(cfg)
	require.NoError(t, err)
	assert.Nil(t, s, "observers run without a key")

	cfg.Consensus.Roles = []string{rollconf.RoleAttester}
	_, err = LoadSigner(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run init first")

	created, err := file.LoadOrGenSigner(cfg.KeyFile())
	require.NoError(t, err)
	s, err = LoadSigner(cfg)
	require.NoError(t, err)
	require.NotNil(t, s)

	want, err := created.GetAddress()
	require.NoError(t, err)
	got, err := s.GetAddress()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStartNode_Cancelled(t *testing.T) {
	n, st := newTestNode(t, getTestConfig(t), execution.NewKVExecutor())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- StartNode(ctx, log.NewTestLogger(t), n) }()

	require.Eventually(t, func() bool {
		h, err := st.Height(context.Background())
		return err == nil && h >= 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	require.NoError(t, <-errCh)
	_, err := st.Height(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed, "store is closed after the run")
}

func TestStartNode_TerminationSignal(t *testing.T) {
	n, st := newTestNode(t, getTestConfig(t), execution.NewKVExecutor())

	errCh := make(chan error, 1)
	go func() { errCh <- StartNode(context.Background(), log.NewNopLogger(), n) }()

	require.Eventually(t, func() bool {
		h, err := st.Height(context.Background())
		return err == nil && h >= 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop on SIGTERM")
	}
}

func TestStartNode_Faulted(t *testing.T) {
	n, _ := newTestNode(t, getTestConfig(t), rejectingExecutor{execution.NewKVExecutor()})

	err := StartNode(context.Background(), log.NewNopLogger(), n)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFaulted)
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), rollconf.SubsystemExecution)
	assert.Equal(t, 1, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(&rollconf.ConfigError{Err: errors.New("bad")}))
}
