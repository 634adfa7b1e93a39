package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WritePIDFile records the current process in path.
func WritePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// ReadPIDFile returns the PID stored in path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s: %q", path, data)
	}
	return pid, nil
}

// RunningPID returns the PID of a live daemon recorded in path. A stale
// file is removed.
func RunningPID(path string) (int, error) {
	pid, err := ReadPIDFile(path)
	if err != nil {
		return 0, err
	}
	if !processAlive(pid) {
		os.Remove(path)
		return 0, ErrNotRunning
	}
	return pid, nil
}

// RemovePIDFile deletes path if it still names the current process.
func RemovePIDFile(path string) {
	if pid, err := ReadPIDFile(path); err == nil && pid == os.Getpid() {
		os.Remove(path)
	}
}
