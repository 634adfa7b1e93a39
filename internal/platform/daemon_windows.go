//go:build windows

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// WindowsDaemonizer starts the daemon detached from the console.
type WindowsDaemonizer struct {
	LogFile string
}

// NewDaemonizer returns the daemonizer for this platform.
func NewDaemonizer(logFile string) Daemonizer {
	return &WindowsDaemonizer{LogFile: logFile}
}

func (d *WindowsDaemonizer) Daemonize(executable string, args []string, workDir string) (int, error) {
	cmd := exec.Command(executable, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "EZPASTE_DAEMON=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}

	if d.LogFile != "" {
		f, err := os.OpenFile(d.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, fmt.Errorf("failed to open daemon log: %w", err)
		}
		defer f.Close()
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}
