package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	rollconf "github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
)

func TestUnsafeCleanDataDir(t *testing.T) {
	tempDir := t.TempDir()

	// Create some test files and directories
	subDir := filepath.Join(tempDir, "subdir")
	require.NoError(t, os.Mkdir(subDir, 0755))
	testFile := filepath.Join(tempDir, "testfile.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0o600))

	// Ensure the files and directories exist
	require.DirExists(t, subDir)
	require.FileExists(t, testFile)

	// Call the function to clean the directory
	err := UnsafeCleanDataDir(tempDir)
	require.NoError(t, err)

	// Ensure the directory is empty
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, UnsafeCleanDataDir(filepath.Join(tempDir, "missing")))
}

func newStoreRoot() (*cobra.Command, *bytes.Buffer) {
	rootCmd := &cobra.Command{Use: "root", SilenceUsage: true}
	rollconf.AddGlobalFlags(rootCmd, "rollnode-test")
	rootCmd.AddCommand(StoreCmd())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	return rootCmd, buf
}

func TestStoreUnsafeCleanCmd(t *testing.T) {
	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, rollconf.DefaultDataDir)
	require.NoError(t, os.Mkdir(dataDir, 0755))

	// Create some test files and directories inside dataDir
	testFile := filepath.Join(dataDir, "testfile.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0o600))
	require.FileExists(t, testFile)

	rootCmd, buf := newStoreRoot()
	rootCmd.SetArgs([]string{"store", "unsafe-clean", "--home", tempDir})
	require.NoError(t, rootCmd.Execute())

	// Ensure the data directory is empty
	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	require.Empty(t, entries, "Data directory should be empty after clean")

	// Ensure the data directory itself still exists
	_, err = os.Stat(dataDir)
	require.NoError(t, err, "Data directory itself should still exist")

	require.Contains(t, buf.String(), fmt.Sprintf("All contents of the data directory at %s have been removed.", dataDir))
}

func TestStoreInfoCmd(t *testing.T) {
	tempDir := t.TempDir()

	cfg := rollconf.DefaultConfig
	cfg.RootDir = tempDir
	st, err := OpenStore(cfg, log.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()
	for h := uint64(1); h <= 3; h++ {
		require.NoError(t, st.SaveBlock(ctx, h, []byte{byte(h)}, 0))
	}
	require.NoError(t, st.SetFinalized(ctx, 2, []byte("sig")))
	require.NoError(t, st.Close())

	rootCmd, buf := newStoreRoot()
	rootCmd.SetArgs([]string{"store", "info", "--home", tempDir})
	require.NoError(t, rootCmd.Execute())

	require.Contains(t, buf.String(), "height:           3")
	require.Contains(t, buf.String(), "finalized height: 2")
}
