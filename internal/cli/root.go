// Package cli wires the ezpaste command tree.
package cli

import (
	"fmt"
	"os"

	cmdpkg "github.com/berrythewa/ezpaste-daemon/internal/cli/cmd"
)

// Version information, set by main.
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "none"
)

// SetVersionInfo sets the version information used by the version command
func SetVersionInfo(version, buildTime, commit string) {
	Version = version
	BuildTime = buildTime
	Commit = commit
	cmdpkg.SetVersionInfo(version, buildTime, commit)
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := cmdpkg.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
