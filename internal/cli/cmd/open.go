package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/screenshot"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the screenshots folder",
		Long: `Open the folder screenshots are saved to (poll mode) or discovered in
(watch mode) in the platform file manager.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := screenshot.NewStore(cfg.ActiveDir(), logger).EnsureDir()
			if err != nil {
				return err
			}
			if err := platform.OpenFolder(dir); err != nil {
				return fmt.Errorf("failed to open %s: %w", dir, err)
			}
			return nil
		},
	}
}
