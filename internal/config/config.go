package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/assay-sheets/internal/logging"
	"github.com/a3tai/assay-sheets/internal/pdf"
	"github.com/a3tai/assay-sheets/internal/workspace"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. ASSAY_SHEETS_ROOT
	EnvPrefix = "ASSAY_SHEETS"

	// Default values
	DefaultLogLevel    = "info"
	DefaultLogFormat   = logging.FormatConsole
	DefaultMaxFileSize = pdf.DefaultMaxFileSize
)

// Configuration keys, also used as flag names
const (
	KeyConfig      = "config"
	KeyRoot        = "root"
	KeyRulesDir    = "rules-dir"
	KeyOutputDir   = "output-dir"
	KeyJobsDir     = "jobs-dir"
	KeyLocksDir    = "locks-dir"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
	KeyMaxFileSize = "max-file-size"
	KeyMetricsFile = "metrics-file"
)

// Config holds all configuration of the tool
type Config struct {
	// Project layout. Empty directories are derived from Root.
	Root      string
	RulesDir  string
	OutputDir string
	JobsDir   string
	LocksDir  string

	// Application configuration
	Version     string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum PDF file size in bytes
	MetricsFile string
	ConfigFile  string
}

// DefaultConfig returns a configuration rooted at the working directory
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Root:        currentDir,
		Version:     "1.0.0",
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// NewViper returns a viper instance reading ASSAY_SHEETS_* variables with
// the defaults of cfg
func NewViper(cfg *Config) *viper.Viper {
	v := viper.New()
	setupViperEnvironment(v, cfg)
	return v
}

// setupViperEnvironment configures environment lookup and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRoot, cfg.Root)
	v.SetDefault(KeyRulesDir, cfg.RulesDir)
	v.SetDefault(KeyOutputDir, cfg.OutputDir)
	v.SetDefault(KeyJobsDir, cfg.JobsDir)
	v.SetDefault(KeyLocksDir, cfg.LocksDir)
	v.SetDefault(KeyLogLevel, cfg.LogLevel)
	v.SetDefault(KeyLogFormat, cfg.LogFormat)
	v.SetDefault(KeyMaxFileSize, cfg.MaxFileSize)
	v.SetDefault(KeyMetricsFile, cfg.MetricsFile)
}

// DefineFlags registers the configuration flags on fs and binds them to v
func DefineFlags(fs *pflag.FlagSet, v *viper.Viper, cfg *Config) {
	fs.String(KeyConfig, "", "Config file (yaml, json or toml)")
	fs.String(KeyRoot, cfg.Root, "Project root containing rules/, jobs/, locks/ and output/final/")
	fs.String(KeyRulesDir, "", "Rules directory with index.json (default <root>/rules)")
	fs.String(KeyOutputDir, "", "Workbook output directory (default <root>/output/final)")
	fs.String(KeyJobsDir, "", "Job state and debug dump directory (default <root>/jobs)")
	fs.String(KeyLocksDir, "", "Job lock directory (default <root>/locks)")
	fs.String(KeyLogLevel, cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, cfg.LogFormat, "Log format (console, json)")
	fs.Int64(KeyMaxFileSize, cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.String(KeyMetricsFile, cfg.MetricsFile, "Write Prometheus metrics to this textfile after each run")

	bindFlagsToViper(fs, v)
}

// bindFlagsToViper binds every defined flag to the viper key of the same name
func bindFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	for _, key := range []string{
		KeyConfig, KeyRoot, KeyRulesDir, KeyOutputDir, KeyJobsDir, KeyLocksDir,
		KeyLogLevel, KeyLogFormat, KeyMaxFileSize, KeyMetricsFile,
	} {
		if f := fs.Lookup(key); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// Load resolves the configuration from defaults, an optional config file,
// the environment and flags, in increasing priority
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", file, err)
		}
		cfg.ConfigFile = file
	}

	populateConfigFromViper(v, cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Root = v.GetString(KeyRoot)
	cfg.RulesDir = v.GetString(KeyRulesDir)
	cfg.OutputDir = v.GetString(KeyOutputDir)
	cfg.JobsDir = v.GetString(KeyJobsDir)
	cfg.LocksDir = v.GetString(KeyLocksDir)
	cfg.LogLevel = v.GetString(KeyLogLevel)
	cfg.LogFormat = v.GetString(KeyLogFormat)
	cfg.MaxFileSize = v.GetInt64(KeyMaxFileSize)
	cfg.MetricsFile = v.GetString(KeyMetricsFile)
}

// resolvePaths makes the root absolute and derives unset directories
func (c *Config) resolvePaths() {
	if c.Root != "" {
		if abs, err := filepath.Abs(c.Root); err == nil {
			c.Root = abs
		}
	}
	def := workspace.New(c.Root)
	if c.RulesDir == "" {
		c.RulesDir = def.RulesDir
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.JobsDir == "" {
		c.JobsDir = def.JobsDir
	}
	if c.LocksDir == "" {
		c.LocksDir = def.LocksDir
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("project root cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != logging.FormatConsole && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.LogFormat)
	}

	return nil
}

// Layout returns the directory layout the pipeline runs against
func (c *Config) Layout() workspace.Layout {
	l := workspace.New(c.Root)
	if c.RulesDir != "" {
		l.RulesDir = c.RulesDir
	}
	if c.OutputDir != "" {
		l.OutputDir = c.OutputDir
	}
	if c.JobsDir != "" {
		l.JobsDir = c.JobsDir
	}
	if c.LocksDir != "" {
		l.LocksDir = c.LocksDir
	}
	return l
}

// LoggingOptions returns the logger settings. Logs always go to stderr.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat}
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Root: %s, RulesDir: %s, OutputDir: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Root, c.RulesDir, c.OutputDir, c.LogLevel, c.MaxFileSize)
}
