package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/berrythewa/ezpaste-daemon/internal/config"
)

// LogFileName is the log file written under the log directory.
const LogFileName = "ezpaste.log"

// LoggerOptions adjusts NewLogger beyond what the config file says.
type LoggerOptions struct {
	// Level overrides cfg.Log.Level when non-empty.
	Level string
	// Development enables caller and stack annotations.
	Development bool
}

// NewLogger creates a new logger instance
func NewLogger(cfg *config.Config, opts LoggerOptions) (*zap.Logger, error) {
	levelText := cfg.Log.Level
	if opts.Level != "" {
		levelText = opts.Level
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := resolveEncoding(cfg.Log.Format, os.Stderr.Fd())
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputs := []string{"stderr"}
	if cfg.Log.EnableFileLogging && cfg.SystemPaths.LogDir != "" {
		if err := os.MkdirAll(cfg.SystemPaths.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		outputs = append(outputs, filepath.Join(cfg.SystemPaths.LogDir, LogFileName))
	}

	zcfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       opts.Development,
		DisableStacktrace: !opts.Development,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}
	return zcfg.Build()
}

// resolveEncoding maps the configured format to a zap encoding; "auto"
// picks console output when fd is a terminal.
func resolveEncoding(format string, fd uintptr) string {
	switch format {
	case "json":
		return "json"
	case "console", "text":
		return "console"
	}
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}
