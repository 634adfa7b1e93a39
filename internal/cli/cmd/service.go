package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceLabel = "com.berrythewa.ezpaste"

// loginService describes how ezpaste is started at login on one platform.
type loginService struct {
	Path    string
	Content string
	Enable  [][]string
	Disable [][]string
	Status  []string
}

func newServiceCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "service [install|uninstall|status]",
		Short: "Start EzPaste automatically at login",
		Long: `Register EzPaste to start at login as a per-user service:
a launchd agent on macOS, a systemd user unit on Linux and a Startup
folder script on Windows.

Examples:
  # Start EzPaste at every login
  ezpaste service install

  # Check whether the service is installed and running
  ezpaste service status

  # Remove the login service
  ezpaste service uninstall`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"install", "uninstall", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := currentService()
			if err != nil {
				return fmt.Errorf("failed to prepare service file: %w", err)
			}
			switch args[0] {
			case "install":
				return installService(svc, force)
			case "uninstall":
				return uninstallService(svc)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), serviceStatus(svc))
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing service file")
	return cmd
}

func currentService() (loginService, error) {
	executable, err := os.Executable()
	if err != nil {
		return loginService{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return loginService{}, err
	}
	return serviceFor(runtime.GOOS, executable, cfg.SystemPaths.ConfigFile, home, cfg.SystemPaths.LogDir)
}

// serviceFor returns the login service definition for goos.
func serviceFor(goos, executable, configPath, home, logDir string) (loginService, error) {
	switch goos {
	case "darwin":
		path := filepath.Join(home, "Library", "LaunchAgents", serviceLabel+".plist")
		return loginService{
			Path: path,
			Content: fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
		<string>run</string>
		<string>--config</string>
		<string>%s</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`, serviceLabel, executable, configPath,
				filepath.Join(logDir, "daemon.out"), filepath.Join(logDir, "daemon.out")),
			Enable:  [][]string{{"launchctl", "load", "-w", path}},
			Disable: [][]string{{"launchctl", "unload", "-w", path}},
			Status:  []string{"launchctl", "list", serviceLabel},
		}, nil

	case "linux", "freebsd", "openbsd", "netbsd":
		return loginService{
			Path: filepath.Join(home, ".config", "systemd", "user", "ezpaste.service"),
			Content: fmt.Sprintf(`[Unit]
Description=EzPaste screenshot clipboard bridge
After=graphical-session.target
PartOf=graphical-session.target

[Service]
ExecStart="%s" run --config "%s"
Restart=on-failure
RestartSec=5

[Install]
WantedBy=graphical-session.target
`, executable, configPath),
			Enable: [][]string{
				{"systemctl", "--user", "daemon-reload"},
				{"systemctl", "--user", "enable", "--now", "ezpaste.service"},
			},
			Disable: [][]string{{"systemctl", "--user", "disable", "--now", "ezpaste.service"}},
			Status:  []string{"systemctl", "--user", "is-active", "ezpaste.service"},
		}, nil

	case "windows":
		startup := filepath.Join(home, "AppData", "Roaming", "Microsoft", "Windows", "Start Menu", "Programs", "Startup")
		return loginService{
			Path:    filepath.Join(startup, "ezpaste.cmd"),
			Content: fmt.Sprintf("@echo off\r\nstart \"\" /B \"%s\" run --config \"%s\"\r\n", executable, configPath),
		}, nil
	}
	return loginService{}, fmt.Errorf("login services are not supported on %s", goos)
}

func installService(svc loginService, force bool) error {
	logger.Info("Installing EzPaste login service", zap.String("path", svc.Path))

	if _, err := os.Stat(svc.Path); err == nil && !force {
		return fmt.Errorf("service already exists at %s; use --force to overwrite", svc.Path)
	}
	if err := os.MkdirAll(filepath.Dir(svc.Path), 0755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}

	// Atomic write: write to temp file, then move
	tmpFile := svc.Path + ".tmp"
	if err := os.WriteFile(tmpFile, []byte(svc.Content), 0644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	if err := os.Rename(tmpFile, svc.Path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to move service file into place: %w", err)
	}
	fmt.Printf("Service file created at %s\n", svc.Path)

	if err := runAll(svc.Enable); err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}
	logger.Info("EzPaste login service installed", zap.String("path", svc.Path))
	fmt.Println("EzPaste will start at login.")
	return nil
}

func uninstallService(svc loginService) error {
	if _, err := os.Stat(svc.Path); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Service does not exist at %s\n", svc.Path)
		return nil
	}
	if err := runAll(svc.Disable); err != nil {
		// The file is removed regardless.
		logger.Warn("Failed to disable service", zap.Error(err))
	}
	if err := os.Remove(svc.Path); err != nil {
		return fmt.Errorf("failed to remove service file: %w", err)
	}
	logger.Info("EzPaste login service removed", zap.String("path", svc.Path))
	fmt.Println("EzPaste login service has been uninstalled.")
	return nil
}

func serviceStatus(svc loginService) string {
	if _, err := os.Stat(svc.Path); err != nil {
		return "EzPaste login service is not installed."
	}
	if len(svc.Status) == 0 {
		return fmt.Sprintf("EzPaste login service is installed at %s.", svc.Path)
	}
	output, _ := exec.Command(svc.Status[0], svc.Status[1:]...).CombinedOutput()
	return parseServiceStatus(string(output), runtime.GOOS)
}

// parseServiceStatus turns launchctl or systemctl output into a summary.
func parseServiceStatus(output, goos string) string {
	output = strings.ToLower(strings.TrimSpace(output))
	switch goos {
	case "darwin":
		if strings.Contains(output, `"pid"`) {
			return "EzPaste service is running."
		}
		if strings.Contains(output, "could not find service") || output == "" {
			return "EzPaste service is installed but not loaded."
		}
		return "EzPaste service is loaded but not running."
	default:
		switch output {
		case "active":
			return "EzPaste service is running."
		case "inactive", "failed":
			return "EzPaste service is installed but " + output + "."
		}
		return "EzPaste service status unknown. Raw output:\n" + output
	}
}

func runAll(cmds [][]string) error {
	for _, c := range cmds {
		if output, err := exec.Command(c[0], c[1:]...).CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %w\n%s", strings.Join(c, " "), err, output)
		}
	}
	return nil
}
