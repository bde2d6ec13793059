package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	rollconf "github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
)

// StoreCmd groups the commands operating on the node database.
func StoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and manage the node database",
	}
	cmd.AddCommand(StoreInfoCmd, StoreUnsafeCleanCmd)
	return cmd
}

// UnsafeCleanDataDir removes all contents of the specified data directory.
// It does not remove the data directory itself, only its contents.
func UnsafeCleanDataDir(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			// Data directory does not exist, nothing to clean.
			return nil
		}
		return fmt.Errorf("failed to read data directory: %w", err)
	}
	for _, entry := range entries {
		entryPath := filepath.Join(dataDir, entry.Name())
		err := os.RemoveAll(entryPath)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", entryPath, err)
		}
	}
	return nil
}

// StoreInfoCmd prints the produced and finalized heights kept in the database.
var StoreInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the produced and finalized heights",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeConfig, err := ParseConfig(cmd)
		if err != nil {
			return err
		}
		if nodeConfig.Store.InMemory {
			return fmt.Errorf("the store is configured in memory, nothing to inspect")
		}

		st, err := OpenStore(nodeConfig, log.NewNopLogger())
		if err != nil {
			return err
		}
		defer st.Close()

		height, err := st.Height(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read height: %w", err)
		}
		finalized, err := st.FinalizedHeight(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read finalized height: %w", err)
		}

		cmd.Printf("database:         %s\n", nodeConfig.DBDir())
		cmd.Printf("height:           %d\n", height)
		cmd.Printf("finalized height: %d\n", finalized)
		return nil
	},
}

// StoreUnsafeCleanCmd is a Cobra command that removes all contents of the data directory.
var StoreUnsafeCleanCmd = &cobra.Command{
	Use:   "unsafe-clean",
	Short: "Remove all contents of the data directory (DANGEROUS: cannot be undone)",
	Long: `Removes all files and subdirectories in the node's data directory.
This operation is unsafe and cannot be undone. Use with caution!`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeConfig, err := ParseConfig(cmd)
		if err != nil {
			return fmt.Errorf("error parsing config: %w", err)
		}
		dataDir := nodeConfig.DBDir()
		if dataDir == "" {
			return fmt.Errorf("data directory not found in node configuration")
		}

		if err := UnsafeCleanDataDir(dataDir); err != nil {
			return err
		}
		cmd.Printf("All contents of the data directory at %s have been removed.\n", dataDir)
		return nil
	},
}

func init() {
	rollconf.AddFlags(StoreInfoCmd)
	rollconf.AddFlags(StoreUnsafeCleanCmd)
}
