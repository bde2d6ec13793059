package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	rollconf "github.com/rollkit/rollnode/pkg/config"
	rollos "github.com/rollkit/rollnode/pkg/os"
	"github.com/rollkit/rollnode/pkg/signer"
	"github.com/rollkit/rollnode/pkg/signer/file"
)

// InitCmd initializes a new rollnode.yaml file and, for attesters, a signing key
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: fmt.Sprintf("Initialize a new %s file", rollconf.ConfigYaml),
	Long:  fmt.Sprintf("This command initializes a new %s file and the signing key in the home directory.", rollconf.ConfigYaml),
	RunE: func(cmd *cobra.Command, args []string) error {
		homePath, err := cmd.Flags().GetString(rollconf.FlagRootDir)
		if err != nil {
			return fmt.Errorf("error reading home flag: %w", err)
		}

		if homePath == "" {
			return fmt.Errorf("home path is required")
		}

		configFilePath := filepath.Join(homePath, rollconf.ConfigYaml)
		if rollos.FileExists(configFilePath) {
			return fmt.Errorf("%s file already exists in the specified directory", rollconf.ConfigYaml)
		}

		// defaults overridden by the flags given to init
		config, err := ParseConfig(cmd)
		if err != nil {
			return err
		}

		if err := rollconf.EnsureRoot(homePath); err != nil {
			return err
		}

		if err := rollconf.WriteYamlConfig(config); err != nil {
			return fmt.Errorf("error writing %s file: %w", rollconf.ConfigYaml, err)
		}

		if config.Consensus.HasRole(rollconf.RoleAttester) {
			s, err := file.LoadOrGenSigner(config.KeyFile())
			if err != nil {
				return fmt.Errorf("failed to initialize signer: %w", err)
			}
			cmd.Printf("Signing key %s stored in %s\n", signer.ID(s), s.KeyFile())
		}

		cmd.Printf("Initialized %s file in %s\n", rollconf.ConfigYaml, homePath)
		return nil
	},
}

func init() {
	rollconf.AddFlags(InitCmd)
}
