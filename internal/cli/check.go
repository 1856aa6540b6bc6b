package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mercurialworld/pochamoe-api/internal/apiserver"
	"github.com/mercurialworld/pochamoe-api/internal/config"
	"github.com/mercurialworld/pochamoe-api/internal/tui"
)

// ErrCheckRejected is returned by check when the query is not answered.
var ErrCheckRejected = errors.New("query rejected")

type checkOptions struct {
	plain bool
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <mod_name> <bs_version>",
		Short: "Evaluate one version query offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			h, _, err := apiserver.NewVersionHandler(cfg, nil)
			if err != nil {
				return err
			}
			res := h.Evaluate(cmd.Context(), gin.Params{
				{Key: "mod_name", Value: args[0]},
				{Key: "bs_version", Value: args[1]},
			})

			out := cmd.OutOrStdout()
			styled := out
			if opts.plain {
				styled = plainWriter{out}
			}
			if _, err := fmt.Fprintln(out, tui.RenderResult(lipgloss.NewRenderer(styled), res)); err != nil {
				return err
			}
			if res.Status >= 400 {
				return fmt.Errorf("%w: status %d", ErrCheckRejected, res.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "disable colors")
	return cmd
}

// plainWriter hides the file descriptor so the renderer never detects a
// terminal.
type plainWriter struct{ io.Writer }
