package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mercurialworld/pochamoe-api/internal/apiserver"
	"github.com/mercurialworld/pochamoe-api/internal/config"
	"github.com/mercurialworld/pochamoe-api/internal/tui"
)

func newProbeCmd(root *rootOptions) *cobra.Command {
	var modName, bsVersion string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Interactively try version queries against the configured rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			h, _, err := apiserver.NewVersionHandler(cfg, nil)
			if err != nil {
				return err
			}
			return tui.RunProbe(h, modName, bsVersion, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&modName, "mod", "", "initial mod_name")
	fs.StringVar(&bsVersion, "bs-version", "", "initial bs_version")
	return cmd
}
