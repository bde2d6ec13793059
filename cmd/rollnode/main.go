package main

import (
	"fmt"
	"os"

	"github.com/rollkit/rollnode/cmd/rollnode/commands"
	rollcmd "github.com/rollkit/rollnode/pkg/cmd"
)

func main() {
	// Initiate the root command
	rootCmd := commands.RootCmd

	// Add subcommands to the root command
	rootCmd.AddCommand(
		commands.RunCmd,
		rollcmd.InitCmd,
		rollcmd.VersionCmd,
		rollcmd.KeysCmd(),
		rollcmd.StoreCmd(),
	)

	err := rootCmd.Execute()
	if err != nil {
		// Print to stderr and exit with error
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(rollcmd.ExitCode(err))
}
