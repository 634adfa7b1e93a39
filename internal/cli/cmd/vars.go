package cmd

import (
	"github.com/berrythewa/ezpaste-daemon/internal/config"
	"go.uber.org/zap"
)

// Shared across all commands; set by the root command's pre-run.
var (
	cfg    *config.Config
	logger *zap.Logger

	configFile string
	verbose    bool
	quiet      bool
	useJSON    bool
)

// SetConfig sets the configuration for commands
func SetConfig(config *config.Config) {
	cfg = config
}

// SetZapLogger sets the logger for commands
func SetZapLogger(log *zap.Logger) {
	logger = log
}
