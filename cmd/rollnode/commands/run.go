package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollkit/rollnode/core/execution"
	"github.com/rollkit/rollnode/node"
	rollcmd "github.com/rollkit/rollnode/pkg/cmd"
	rollconf "github.com/rollkit/rollnode/pkg/config"
)

// RunCmd is the start command of the rollnode binary.
var RunCmd = NewRunCmd()

// NewRunCmd returns a command that resolves the configuration, opens the
// store and runs the node until a termination signal or the first subsystem
// failure.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the rollup node",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeConfig, err := rollcmd.ParseConfig(cmd)
			if err != nil {
				return err
			}

			logger := rollcmd.SetupLogger(nodeConfig.Log)

			restore, err := rollcmd.TuneProcess(nodeConfig.Node, logger)
			if err != nil {
				return err
			}
			defer restore()

			executor := execution.NewKVExecutor()
			txs, _ := cmd.Flags().GetStringArray(flagTx)
			for _, tx := range txs {
				if err := executor.InjectTx([]byte(tx)); err != nil {
					return fmt.Errorf("invalid --%s %q: %w", flagTx, tx, err)
				}
			}

			sgn, err := rollcmd.LoadSigner(nodeConfig)
			if err != nil {
				return err
			}

			st, err := rollcmd.OpenStore(nodeConfig, logger)
			if err != nil {
				return err
			}

			rollnode, err := node.NewNode(nodeConfig, executor, st, sgn, logger, node.DefaultMetricsProvider(nodeConfig.Instrumentation))
			if err != nil {
				_ = st.Close()
				return fmt.Errorf("failed to create node: %w", err)
			}

			return rollcmd.StartNode(cmd.Context(), logger, rollnode)
		},
	}

	rollconf.AddFlags(cmd)
	cmd.Flags().StringArray(flagTx, nil, "key=value transaction queued before the first block (repeatable)")
	return cmd
}
