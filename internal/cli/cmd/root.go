package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/ezpaste-daemon/internal/config"
)

// NewRootCmd builds the ezpaste command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ezpaste",
		Short: "Keep screenshots on the clipboard as pasteable files",
		Long: `EzPaste watches for new screenshots and puts a reference to the saved
PNG file on the clipboard, so a screenshot can be pasted wherever a file
is expected: chat apps, upload fields, terminals.

  • poll mode converts bitmaps pasted by the screenshot tool into PNG files
  • watch mode picks up screenshots saved to a directory
  • the clipboard is verified shortly after each publish and restored if
    another program overwrote it`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := setupLogger(loaded)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			SetConfig(loaded)
			SetZapLogger(log)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is the platform config directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&useJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newRunCmd(),
		newCtlCmd(),
		newDaemonCmd(),
		newLastCmd(),
		newOpenCmd(),
		newConfigCmd(),
		newServiceCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
