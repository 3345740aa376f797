package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"srcreg/internal/paths"
)

// CurrentVersion is the config schema version written by `srcreg init`.
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. SRCREG_ENGINE_WORKERS.
const EnvPrefix = "SRCREG"

// Config represents the complete srcreg configuration
type Config struct {
	Version int `toml:"version" mapstructure:"version"`

	Engine  EngineConfig  `toml:"engine" mapstructure:"engine"`
	Output  OutputConfig  `toml:"output" mapstructure:"output"`
	Runs    RunsConfig    `toml:"runs" mapstructure:"runs"`
	Logging LoggingConfig `toml:"logging" mapstructure:"logging"`
}

// EngineConfig controls normalization parallelism and memoization
type EngineConfig struct {
	Workers   int `toml:"workers" mapstructure:"workers"`
	CacheSize int `toml:"cacheSize" mapstructure:"cacheSize"`
}

// OutputConfig controls the files written for each run
type OutputConfig struct {
	Dir                  string   `toml:"dir" mapstructure:"dir"`
	Formats              []string `toml:"formats" mapstructure:"formats"`
	PassthroughLowercase bool     `toml:"passthroughLowercase" mapstructure:"passthroughLowercase"`
}

// RunsConfig controls the run history database
type RunsConfig struct {
	Enabled       bool `toml:"enabled" mapstructure:"enabled"`
	RetentionDays int  `toml:"retentionDays" mapstructure:"retentionDays"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `toml:"format" mapstructure:"format"`
	Level  string `toml:"level" mapstructure:"level"`
	File   string `toml:"file" mapstructure:"file"`
}

// Output formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Engine: EngineConfig{
			Workers:   4,
			CacheSize: 1024,
		},
		Output: OutputConfig{
			Dir:                  "normalized-sources",
			Formats:              []string{FormatCSV},
			PassthroughLowercase: true,
		},
		Runs: RunsConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// setDefaults registers every key with viper so environment overrides apply even
// when no config file exists.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.cacheSize", d.Engine.CacheSize)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.formats", d.Output.Formats)
	v.SetDefault("output.passthroughLowercase", d.Output.PassthroughLowercase)
	v.SetDefault("runs.enabled", d.Runs.Enabled)
	v.SetDefault("runs.retentionDays", d.Runs.RetentionDays)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// LoadConfig loads configuration from <root>/.srcreg/config.toml, layered over the
// defaults and under SRCREG_* environment variables. A missing file is not an error.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName(strings.TrimSuffix(paths.ConfigFileName, filepath.Ext(paths.ConfigFileName)))
	v.SetConfigType("toml")
	v.AddConfigPath(paths.WorkspaceDir(root))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", paths.ConfigPath(root), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Output.Formats = NormalizeFormats(cfg.Output.Formats)

	return &cfg, nil
}

// Save writes the configuration to <root>/.srcreg/config.toml
func (c *Config) Save(root string) error {
	if _, err := paths.EnsureWorkspaceDir(root); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	configPath := paths.ConfigPath(root)
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Engine.Workers < 0 {
		return &ConfigError{Field: "engine.workers", Message: "must be >= 0"}
	}
	if c.Engine.CacheSize < 0 {
		return &ConfigError{Field: "engine.cacheSize", Message: "must be >= 0"}
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return &ConfigError{Field: "output.dir", Message: "must not be empty"}
	}
	if len(c.Output.Formats) == 0 {
		return &ConfigError{Field: "output.formats", Message: "at least one format is required"}
	}
	for _, f := range c.Output.Formats {
		if f != FormatCSV && f != FormatJSON {
			return &ConfigError{Field: "output.formats", Message: fmt.Sprintf("unknown format %q", f)}
		}
	}
	if c.Runs.RetentionDays < 0 {
		return &ConfigError{Field: "runs.retentionDays", Message: "must be >= 0"}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

// HasFormat reports whether f is among the configured output formats.
func (c *Config) HasFormat(f string) bool {
	for _, have := range c.Output.Formats {
		if have == f {
			return true
		}
	}
	return false
}

// NormalizeFormats lowercases, trims, splits comma lists and drops duplicates.
func NormalizeFormats(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range in {
		for _, f := range strings.Split(item, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
