package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mercurialworld/pochamoe-api/internal/apiserver"
	"github.com/mercurialworld/pochamoe-api/internal/config"
	"github.com/mercurialworld/pochamoe-api/internal/logx"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigTestCmd(root))
	return cmd
}

func newConfigTestCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Validate config, mods file and access log format, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			_, mods, err := apiserver.NewVersionHandler(cfg, nil)
			if err != nil {
				return err
			}
			format, err := logx.ResolveAccessLogFormat(cfg.Logging.AccessLogFormat, cfg.Logging.AccessLogFormatPreset)
			if err != nil {
				return err
			}
			if _, err := logx.CompileAccessLogFormat(format); err != nil {
				return fmt.Errorf("compile access_log_format: %w", err)
			}

			src := root.cfgPath
			if strings.TrimSpace(src) == "" {
				src = "<defaults>"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"configuration ok: config=%s listen=%s pattern=%s answer=%s mods=%s\n",
				src, cfg.Server.Listen, cfg.Versions.Pattern, cfg.Versions.Answer, strings.Join(mods.Names(), ","),
			)
			return err
		},
	}
}
