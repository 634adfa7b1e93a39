package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information - accessed via cli package
var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "none"
)

// SetVersionInfo allows setting version info from outside
func SetVersionInfo(v, bt, c string) {
	version = v
	buildTime = bt
	commit = c
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Printing the version must not need a readable config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "EzPaste\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Commit:     %s\n", commit)
		},
	}
}
