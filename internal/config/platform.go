// File: internal/config/platform.go

package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// screencaptureLocation asks macOS where screenshots are saved.
var screencaptureLocation = func() (string, error) {
	out, err := exec.Command("defaults", "read", "com.apple.screencapture", "location").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DefaultSaveDir is where converted clipboard screenshots are written.
func DefaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ClipboardScreenshots")
	}
	return filepath.Join(home, "Pictures", "ClipboardScreenshots")
}

// DefaultWatchDir returns the directory the platform's screenshot tool saves
// into.
func DefaultWatchDir() string {
	return watchDirFor(runtime.GOOS)
}

func watchDirFor(goos string) string {
	home, _ := os.UserHomeDir()

	switch goos {
	case "darwin":
		if loc, err := screencaptureLocation(); err == nil && loc != "" {
			return expandHome(loc)
		}
		return filepath.Join(home, "Desktop")
	case "windows":
		return filepath.Join(home, "Pictures", "Screenshots")
	default:
		pictures := os.Getenv("XDG_PICTURES_DIR")
		if pictures == "" {
			pictures = filepath.Join(home, "Pictures")
		}
		return filepath.Join(expandHome(pictures), "Screenshots")
	}
}
