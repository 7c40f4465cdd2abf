package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/ringdown/algorithms/filters"
	"github.com/RyanBlaney/ringdown/algorithms/temporal"
	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/logging"
)

const (
	EnvPrefix     = "RINGDOWN"
	EnvConfigPath = "RINGDOWN_CONFIG"

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultCompression = "snappy"
)

// Export formats
const (
	ExportNone    = ""
	ExportJSON    = "json"
	ExportParquet = "parquet"
)

// Config is the command-line tool configuration.
type Config struct {
	Window       int     `mapstructure:"window"`
	Tolerance    float64 `mapstructure:"tolerance"`
	Invert       bool    `mapstructure:"invert"`
	LockMode     string  `mapstructure:"lock_mode"`
	VoltsPerUnit float64 `mapstructure:"volts_per_unit"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Cache   bool   `mapstructure:"cache"`
	CacheDB string `mapstructure:"cache_db"`

	Export            string `mapstructure:"export"`
	ExportDir         string `mapstructure:"export_dir"`
	ExportCompression string `mapstructure:"export_compression"`

	Workers int `mapstructure:"workers"`

	// Files are the positional arguments.
	Files []string `mapstructure:"-"`
}

// flag name -> viper key
var flagKeys = map[string]string{
	"window":         "window",
	"tolerance":      "tolerance",
	"invert":         "invert",
	"lock-mode":      "lock_mode",
	"volts-per-unit": "volts_per_unit",
	"log-level":      "log_level",
	"log-format":     "log_format",
	"cache":          "cache",
	"cache-db":       "cache_db",
	"export":         "export",
	"export-dir":     "export_dir",
	"compression":    "export_compression",
	"workers":        "workers",
}

// DefaultCacheDB returns the default result cache location.
func DefaultCacheDB() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return ".ringdown-cache.db"
	}
	return filepath.Join(dir, "ringdown", "results.db")
}

func setDefaults(v *viper.Viper) {
	def := analysis.DefaultConfig()
	v.SetDefault("window", def.SmoothingWindow)
	v.SetDefault("tolerance", def.TolerancePct)
	v.SetDefault("invert", def.Invert)
	v.SetDefault("lock_mode", string(def.LockMode))
	v.SetDefault("volts_per_unit", 1.0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("cache", false)
	v.SetDefault("cache_db", DefaultCacheDB())
	v.SetDefault("export", ExportNone)
	v.SetDefault("export_dir", ".")
	v.SetDefault("export_compression", DefaultCompression)
	v.SetDefault("workers", 0)
}

// NewFlagSet declares the command-line flags.
func NewFlagSet(name string) *pflag.FlagSet {
	def := analysis.DefaultConfig()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a TOML configuration file (env "+EnvConfigPath+")")
	fs.Int("window", def.SmoothingWindow, "Moving-average smoothing window (1-50 samples)")
	fs.Float64("tolerance", def.TolerancePct, "Period-locking tolerance in percent")
	fs.Bool("invert", def.Invert, "Invert probe polarity before analysis")
	fs.String("lock-mode", string(def.LockMode), "Period locking: strict or resync")
	fs.Float64("volts-per-unit", 1.0, "Scale applied to normalised WAV samples")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warn, error")
	fs.String("log-format", DefaultLogFormat, "Log format: console or json")
	fs.Bool("cache", false, "Cache results in a SQLite database")
	fs.String("cache-db", DefaultCacheDB(), "Path to the result cache database")
	fs.String("export", ExportNone, "Export chart data: json or parquet")
	fs.String("export-dir", ".", "Directory for exported datasets")
	fs.String("compression", DefaultCompression, "Parquet codec: snappy, zstd, gzip or none")
	fs.Int("workers", 0, "Concurrent analyses (0 = number of CPUs)")
	return fs
}

// Load resolves configuration from defaults, an optional TOML file,
// RINGDOWN_* environment variables and flags, in increasing priority.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := NewFlagSet("ringdown")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configPath, _ := fs.GetString("config")
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Files = fs.Args()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field's domain.
func (c *Config) Validate() error {
	var errs []error

	if err := c.AnalysisConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid_log_level: %w", err))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.LogFormat))
	}
	switch c.Export {
	case ExportNone, ExportJSON, ExportParquet:
	default:
		errs = append(errs, fmt.Errorf("invalid export format %q", c.Export))
	}
	switch c.ExportCompression {
	case "snappy", "zstd", "gzip", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid parquet compression %q", c.ExportCompression))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Cache && c.CacheDB == "" {
		errs = append(errs, errors.New("cache enabled without a cache database path"))
	}
	if c.VoltsPerUnit == 0 {
		errs = append(errs, errors.New("volts per unit must be non-zero"))
	}

	return errors.Join(errs...)
}

// AnalysisConfig converts the tool configuration into analysis parameters.
func (c *Config) AnalysisConfig() *analysis.Config {
	mode, err := temporal.ParseLockMode(c.LockMode)
	if err != nil {
		// keep the bad value so analysis.Config.Validate reports it
		mode = temporal.LockMode(c.LockMode)
	}
	return &analysis.Config{
		SmoothingWindow:      c.Window,
		TolerancePct:         c.Tolerance,
		Invert:               c.Invert,
		LockMode:             mode,
		BaselineTailFraction: filters.DefaultBaselineTailFraction,
		BaselineMinTail:      filters.DefaultBaselineMinTail,
	}
}

// WorkerCount resolves Workers, where 0 means one per CPU.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}
