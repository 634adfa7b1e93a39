// File: internal/config/config_desktop.go

package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultConfigPath returns the path to the config file on desktop platforms
func defaultConfigPath() (string, error) {
	if path := os.Getenv("EZPASTE_CONFIG"); path != "" {
		return path, nil
	}
	if dir := os.Getenv("EZPASTE_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(configDir, "EzPaste", "config.yaml"), nil
	case "darwin":
		return filepath.Join(configDir, "com.berrythewa.ezpaste", "config.yaml"), nil
	default:
		return filepath.Join(configDir, "ezpaste", "config.yaml"), nil
	}
}

// defaultDataDir returns the path to the data directory on desktop platforms
func defaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "windows":
		if appData, err := os.UserConfigDir(); err == nil {
			return filepath.Join(appData, "EzPaste", "Data"), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", "EzPaste"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "EzPaste"), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "ezpaste"), nil
		}
		return filepath.Join(homeDir, ".local", "share", "ezpaste"), nil
	}
}
