package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/daemon"
	"github.com/berrythewa/ezpaste-daemon/internal/ipc"
	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
	"github.com/berrythewa/ezpaste-daemon/pkg/format"
)

// stopTimeout bounds how long stop waits for the daemon to exit.
const stopTimeout = 5 * time.Second

// newDaemonCmd creates the daemon command
func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the EzPaste daemon",
		Long: `Manage the EzPaste daemon process.

The daemon can be:
  • Started in the foreground or background
  • Stopped gracefully
  • Checked for status
  • Restarted if needed`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	cmd.AddCommand(newDaemonRestartCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var (
		background bool
		paused     bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the EzPaste daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return startBackground(paused)
			}
			logger.Info("Starting EzPaste daemon in foreground")
			return runDaemon(cmd.Context(), cfg, paused)
		},
	}

	cmd.Flags().BoolVarP(&background, "background", "b", false, "run in background")
	cmd.Flags().BoolVar(&paused, "paused", false, "start with monitoring paused")
	return cmd
}

func startBackground(paused bool) error {
	paths := cfg.SystemPaths
	if pid, err := daemon.RunningPID(paths.PIDFile); err == nil {
		return fmt.Errorf("ezpaste is already running (PID %d)", pid)
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	args := []string{"run", "--config", paths.ConfigFile}
	if paused {
		args = append(args, "--paused")
	}
	daemonizer := platform.NewDaemonizer(filepath.Join(paths.LogDir, "daemon.out"))
	pid, err := daemonizer.Daemonize(executable, args, workDir)
	if err != nil {
		return fmt.Errorf("failed to daemonize: %w", err)
	}

	logger.Info("Started EzPaste daemon in background", zap.Int("pid", pid))
	fmt.Printf("EzPaste started in background (PID: %d)\n", pid)
	return nil
}

func newDaemonStopCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the EzPaste daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stopDaemon(force); err != nil {
				return err
			}
			fmt.Println("Daemon stopped successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "kill the daemon if it does not exit in time")
	return cmd
}

func stopDaemon(force bool) error {
	pidFile := cfg.SystemPaths.PIDFile
	pid, err := daemon.RunningPID(pidFile)
	if errors.Is(err, daemon.ErrNotRunning) {
		return fmt.Errorf("ezpaste is not running")
	}
	if err != nil {
		return err
	}

	logger.Info("Stopping EzPaste daemon", zap.Int("pid", pid), zap.Bool("force", force))
	if err := daemon.TerminateProcess(pid); err != nil {
		return err
	}
	if waitExit(pidFile, stopTimeout) {
		return nil
	}
	if !force {
		return fmt.Errorf("daemon (PID %d) did not exit within %s; retry with --force", pid, stopTimeout)
	}

	logger.Warn("Daemon did not exit in time, killing it", zap.Int("pid", pid))
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	os.Remove(pidFile)
	return nil
}

// waitExit polls the PID file until the daemon is gone or timeout passes.
func waitExit(pidFile string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := daemon.RunningPID(pidFile); err != nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			pid, err := daemon.RunningPID(cfg.SystemPaths.PIDFile)
			if useJSON {
				running := err == nil
				fmt.Fprintf(out, `{"running":%t,"pid":%d}`+"\n", running, pid)
				return nil
			}
			if err != nil {
				fmt.Fprintln(out, "Status: stopped")
				return nil
			}
			fmt.Fprintln(out, "Status: running")
			fmt.Fprintf(out, "PID: %d\n", pid)

			resp, err := ipc.Send(cfg.SystemPaths.SocketFile, ipc.CmdStatus)
			if err != nil {
				logger.Debug("Daemon socket unreachable", zap.Error(err))
				return nil
			}
			var st types.EngineStatus
			if err := resp.Decode(&st); err != nil {
				return err
			}
			if !st.StartedAt.IsZero() {
				fmt.Fprintf(out, "Uptime: %s\n", time.Since(st.StartedAt).Round(time.Second))
			}
			return format.WriteStatus(out, st, format.DefaultOptions())
		},
	}
}

func newDaemonRestartCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the EzPaste daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("Restarting EzPaste daemon")
			if err := stopDaemon(force); err != nil {
				logger.Warn("Daemon was not stopped", zap.Error(err))
			}
			if err := startBackground(false); err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}
			fmt.Println("Daemon restarted successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "force restart if graceful shutdown fails")
	return cmd
}
