package commands

import (
	"github.com/spf13/cobra"

	rollconf "github.com/rollkit/rollnode/pkg/config"
)

const (
	// AppName is the name of the application, the name of the command, and the name of the home directory.
	AppName = "rollnode"
)

const (
	flagTx = "tx"
)

func init() {
	rollconf.AddGlobalFlags(RootCmd, AppName)
}

// RootCmd is the root command for rollnode
var RootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "rollnode runs a rollup node: block production, finalization, storage and an RPC server under one supervisor.",
	SilenceUsage:  true,
	SilenceErrors: true,
}
