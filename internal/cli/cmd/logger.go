package cmd

import (
	"github.com/berrythewa/ezpaste-daemon/internal/common"
	"github.com/berrythewa/ezpaste-daemon/internal/config"
	"go.uber.org/zap"
)

// setupLogger builds the command logger; --verbose and --quiet win over the
// configured level.
func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := common.LoggerOptions{}
	switch {
	case verbose:
		opts.Level = "debug"
		opts.Development = true
	case quiet:
		opts.Level = "warn"
	}
	return common.NewLogger(cfg, opts)
}
