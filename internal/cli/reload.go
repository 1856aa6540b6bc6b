package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mercurialworld/pochamoe-api/internal/config"
)

func newReloadCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to re-read its mods file (SIGHUP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pid, err := readPID(cfg.Server.PidFile)
			if err != nil {
				return err
			}
			if err := sendReloadSignal(pid); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent SIGHUP to pid %d\n", pid)
			return err
		},
	}
}

func readPID(pidFile string) (int, error) {
	pidFile = strings.TrimSpace(pidFile)
	if pidFile == "" {
		return 0, errors.New("server.pid_file is not set")
	}
	// #nosec G304 -- pid file path comes from trusted config/env.
	b, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, fmt.Errorf("read pid file %q: %w", pidFile, err)
	}
	pidStr := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %q: %q", pidFile, pidStr)
	}
	return pid, nil
}

func sendReloadSignal(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process pid=%d: %w", pid, err)
	}
	if err := p.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("send SIGHUP pid=%d: %w", pid, err)
	}
	return nil
}
