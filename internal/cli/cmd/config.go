package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/ezpaste-daemon/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage EzPaste configuration",
		Long: `Manage EzPaste configuration:
  • Initialize configuration for first-time setup
  • Show current configuration
  • Print where configuration and data live
  • Edit configuration in your preferred editor
  • Validate configuration values`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigEditCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

// activeConfigPath returns the --config flag or the platform default.
func activeConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	paths, err := config.GetConfigPaths()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration for first-time setup",
		Long: `Write a configuration file with defaults for this platform: poll mode,
screenshots saved to ~/Pictures/ClipboardScreenshots and the system
screenshot folder as the watch directory.`,
		// Loading would already create the file.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return fmt.Errorf("failed to get active config path: %w", err)
			}
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("configuration already exists at %s\nUse --force to overwrite or 'ezpaste config show' to view current config", configPath)
			}

			c := config.DefaultConfig()
			if err := c.Save(configPath); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration initialized at: %s\n", configPath)
			fmt.Fprintf(out, "✓ Screenshots saved to: %s\n", c.Screenshots.SaveDir)
			fmt.Fprintf(out, "✓ Watch directory: %s\n", c.Screenshots.WatchDir)
			fmt.Fprintln(out, "\nTo start the daemon, run: ezpaste daemon start --background")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "force overwrite existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if useJSON {
				format = "json"
			}
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration and data locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cfg.SystemPaths
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:   %s\n", p.ConfigFile)
			fmt.Fprintf(out, "data:     %s\n", p.DataDir)
			fmt.Fprintf(out, "database: %s\n", p.DBFile)
			fmt.Fprintf(out, "logs:     %s\n", p.LogDir)
			fmt.Fprintf(out, "socket:   %s\n", p.SocketFile)
			fmt.Fprintf(out, "pid file: %s\n", p.PIDFile)
			fmt.Fprintf(out, "shots:    %s (%s mode)\n", cfg.ActiveDir(), cfg.Mode)
			return nil
		},
	}
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in your preferred editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfg.SystemPaths.ConfigFile

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			editorCmd := exec.Command(editor, configPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr
			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("failed to open editor: %w", err)
			}

			if _, err := config.Load(configPath); err != nil {
				logger.Warn("Edited configuration is invalid", zap.String("path", configPath), zap.Error(err))
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\nThe file has been saved, but the daemon will refuse to start with it.\n", err)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration updated and validated successfully")
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		// Validation reports load errors itself.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := activeConfigPath()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no configuration at %s", path)
			}
			if _, err := config.Load(path); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration at %s is valid\n", path)
			return nil
		},
	}
}
