// Package cli wires the pochamoe subcommands.
package cli

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pochamoe",
		Short:         "Beat Saber mod version compatibility service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "", "config yaml path (empty: defaults plus POCHAMOE_* env)")

	cmd.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newProbeCmd(opts),
		newConfigCmd(opts),
		newReloadCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}
