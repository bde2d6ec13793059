package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	rollconf "github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/signer"
	"github.com/rollkit/rollnode/pkg/signer/file"
)

// KeysCmd returns a command for managing keys.
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage signing keys",
	}

	cmd.AddCommand(showKeyCmd())

	return cmd
}

func showKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the identity of the signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeConfig, err := rollconf.Load(cmd)
			if err != nil {
				return fmt.Errorf("failed to load node config: %w", err)
			}

			s, err := file.LoadFileSystemSigner(nodeConfig.KeyFile())
			if err != nil {
				return fmt.Errorf("failed to load signing key: %w", err)
			}

			pub, err := s.GetPublic()
			if err != nil {
				return err
			}
			pubBytes, err := pub.Raw()
			if err != nil {
				return fmt.Errorf("failed to encode public key: %w", err)
			}
			addr, err := s.GetAddress()
			if err != nil {
				return err
			}

			cmd.Printf("id:      %s\n", signer.ID(s))
			cmd.Printf("address: %s\n", hex.EncodeToString(addr))
			cmd.Printf("pub_key: %s\n", hex.EncodeToString(pubBytes))
			cmd.Printf("file:    %s\n", s.KeyFile())
			return nil
		},
	}
	rollconf.AddFlags(cmd)
	return cmd
}
