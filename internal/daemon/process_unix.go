//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ToggleSignals are the signals that pause or resume a running daemon.
var ToggleSignals = []os.Signal{unix.SIGUSR1}

// processAlive reports whether pid exists. EPERM means it exists but
// belongs to someone else.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// TerminateProcess asks pid to shut down gracefully.
func TerminateProcess(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}
