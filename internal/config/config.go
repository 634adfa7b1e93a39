// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/berrythewa/ezpaste-daemon/pkg/utils"
)

// Source modes.
const (
	ModePoll  = "poll"
	ModeWatch = "watch"
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir    string // Directory holding the config file
	ConfigFile string // Path to the config file
	DataDir    string // Directory for application data
	DBFile     string // Path to database file
	LogDir     string // Directory for log files
	RunDir     string // Directory for the PID file and IPC socket
	PIDFile    string
	SocketFile string
}

// Config holds all application configuration
type Config struct {
	DeviceID   string `json:"device_id" yaml:"device_id"`
	DeviceName string `json:"device_name" yaml:"device_name"`

	// Mode selects how screenshots are detected: "poll" or "watch".
	Mode string `json:"mode" yaml:"mode"`

	// Timings in milliseconds.
	PollingInterval int64   `json:"polling_interval" yaml:"polling_interval"`
	SettleDelay     int64   `json:"settle_delay" yaml:"settle_delay"`
	VerifyDelays    []int64 `json:"verify_delays" yaml:"verify_delays"`

	Screenshots   ScreenshotConfig `json:"screenshots" yaml:"screenshots"`
	Notifications bool             `json:"notifications" yaml:"notifications"`
	Log           LogConfig        `json:"log" yaml:"log"`

	// SystemPaths is resolved at load time and never written to disk.
	SystemPaths ConfigPaths `json:"system_paths" yaml:"-"`
}

// ScreenshotConfig holds the screenshot directories.
type ScreenshotConfig struct {
	// SaveDir receives PNGs converted from pasted bitmaps.
	SaveDir string `json:"save_dir" yaml:"save_dir"`
	// WatchDir is watched for new files in watch mode.
	WatchDir string `json:"watch_dir" yaml:"watch_dir"`
	// NamePatterns are case-insensitive filename prefixes.
	NamePatterns []string `json:"name_patterns" yaml:"name_patterns"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level             string `json:"level" yaml:"level"`
	Format            string `json:"format" yaml:"format"` // "json", "console" or "auto"
	EnableFileLogging bool   `json:"enable_file_logging" yaml:"enable_file_logging"`
}

// Overridable for tests and per-platform init.
var (
	getConfigPath     = defaultConfigPath
	getDefaultDataDir = defaultDataDir
	generateDeviceID  = utils.GenerateUUID
)

// GetConfigPaths returns the platform-specific configuration paths. No
// directory is created; see EnsureDirs.
func GetConfigPaths() (*ConfigPaths, error) {
	configFile, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	return pathsFor(configFile, dataDir), nil
}

func resolveDataDir() (string, error) {
	if dir := os.Getenv("EZPASTE_DATA_DIR"); dir != "" {
		return dir, nil
	}
	dir, err := getDefaultDataDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return dir, nil
}

func pathsFor(configFile, dataDir string) *ConfigPaths {
	runDir := filepath.Join(dataDir, "run")
	return &ConfigPaths{
		BaseDir:    filepath.Dir(configFile),
		ConfigFile: configFile,
		DataDir:    dataDir,
		DBFile:     filepath.Join(dataDir, "ezpaste.db"),
		LogDir:     filepath.Join(dataDir, "logs"),
		RunDir:     runDir,
		PIDFile:    filepath.Join(runDir, "ezpaste.pid"),
		SocketFile: filepath.Join(runDir, "ezpaste.sock"),
	}
}

// EnsureDirs creates the data, log and run directories.
func (p ConfigPaths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.LogDir, p.RunDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		DeviceID:        generateDeviceID(),
		DeviceName:      hostname(),
		Mode:            ModePoll,
		PollingInterval: 300,
		SettleDelay:     300,
		VerifyDelays:    []int64{150, 500},
		Screenshots: ScreenshotConfig{
			SaveDir:      DefaultSaveDir(),
			WatchDir:     DefaultWatchDir(),
			NamePatterns: []string{"screenshot", "screen shot", "cleanshot"},
		},
		Notifications: true,
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the configuration from the specified file or creates default if not exists
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = getConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.SystemPaths = *pathsFor(configPath, dataDir)
	overrideFromEnv(cfg)
	cfg.Screenshots.SaveDir = expandHome(cfg.Screenshots.SaveDir)
	cfg.Screenshots.WatchDir = expandHome(cfg.Screenshots.WatchDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks values that would make the engine misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Mode != ModePoll && c.Mode != ModeWatch {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModePoll, ModeWatch, c.Mode))
	}
	if c.PollingInterval <= 0 {
		errs = append(errs, fmt.Errorf("polling_interval must be positive, got %d", c.PollingInterval))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle_delay must not be negative, got %d", c.SettleDelay))
	}
	if len(c.VerifyDelays) == 0 {
		errs = append(errs, errors.New("verify_delays must list at least one delay"))
	}
	for _, d := range c.VerifyDelays {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("verify_delays must be positive, got %d", d))
			break
		}
	}
	if c.Screenshots.SaveDir == "" {
		errs = append(errs, errors.New("screenshots.save_dir is required"))
	}
	if c.Mode == ModeWatch && c.Screenshots.WatchDir == "" {
		errs = append(errs, errors.New("screenshots.watch_dir is required in watch mode"))
	}
	return errors.Join(errs...)
}

// PollInterval returns the polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollingInterval) * time.Millisecond
}

// Settle returns the delay before a detected screenshot is read.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.SettleDelay) * time.Millisecond
}

// VerifyDurations returns the verification delays measured from a publish.
func (c *Config) VerifyDurations() []time.Duration {
	out := make([]time.Duration, 0, len(c.VerifyDelays))
	for _, ms := range c.VerifyDelays {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

// ActiveDir returns the directory of the configured mode.
func (c *Config) ActiveDir() string {
	if c.Mode == ModeWatch {
		return c.Screenshots.WatchDir
	}
	return c.Screenshots.SaveDir
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("EZPASTE_DEVICE_ID"); val != "" {
		config.DeviceID = val
	}
	if val := os.Getenv("EZPASTE_MODE"); val != "" {
		config.Mode = strings.ToLower(val)
	}
	if val := os.Getenv("EZPASTE_SAVE_DIR"); val != "" {
		config.Screenshots.SaveDir = val
	}
	if val := os.Getenv("EZPASTE_WATCH_DIR"); val != "" {
		config.Screenshots.WatchDir = val
	}
	if val := os.Getenv("EZPASTE_POLLING_INTERVAL"); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.PollingInterval = ms
		}
	}
	if val := os.Getenv("EZPASTE_SETTLE_DELAY"); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.SettleDelay = ms
		}
	}
	if val := os.Getenv("EZPASTE_VERIFY_DELAYS"); val != "" {
		if delays, err := parseDelays(val); err == nil {
			config.VerifyDelays = delays
		}
	}
	if val := os.Getenv("EZPASTE_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("EZPASTE_NOTIFICATIONS"); val != "" {
		config.Notifications = val == "true"
	}
}

// parseDelays parses a comma-separated list of milliseconds.
func parseDelays(s string) ([]int64, error) {
	var out []int64
	for _, f := range strings.Split(s, ",") {
		ms, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
