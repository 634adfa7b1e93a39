//go:build !windows

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// UnixDaemonizer starts the daemon in its own session with standard streams
// detached from the terminal.
type UnixDaemonizer struct {
	// LogFile receives the child's stdout and stderr. Empty means /dev/null.
	LogFile string
}

// NewDaemonizer returns the daemonizer for this platform.
func NewDaemonizer(logFile string) Daemonizer {
	return &UnixDaemonizer{LogFile: logFile}
}

func (d *UnixDaemonizer) Daemonize(executable string, args []string, workDir string) (int, error) {
	out, err := d.output()
	if err != nil {
		return 0, err
	}
	defer out.Close()

	cmd := exec.Command(executable, args...)
	cmd.Dir = workDir
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = append(os.Environ(), "EZPASTE_DAEMON=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}

func (d *UnixDaemonizer) output() (*os.File, error) {
	if d.LogFile == "" {
		return os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	f, err := os.OpenFile(d.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open daemon log: %w", err)
	}
	return f, nil
}
