package cmd

import (
	"errors"
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	// GitSHA is set at build time
	GitSHA string

	// Version is set at build time
	Version string
)

const flagShort = "short"

// VersionCmd prints the rollnode release, commit and toolchain.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		if GitSHA == "" {
			return errors.New("git SHA not set")
		}
		if Version == "" {
			return errors.New("version not set")
		}
		short, err := cmd.Flags().GetBool(flagShort)
		if err != nil {
			return err
		}
		if short {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 0, 2, ' ', 0)
		_, err1 := fmt.Fprintf(w, "\nrollnode version:\t%v\n", Version)
		_, err2 := fmt.Fprintf(w, "rollnode git sha:\t%v\n", GitSHA)
		_, err3 := fmt.Fprintf(w, "go version:\t%s %s/%s\n\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return errors.Join(err1, err2, err3, w.Flush())
	},
}

func init() {
	VersionCmd.Flags().Bool(flagShort, false, "print only the rollnode version")
}
