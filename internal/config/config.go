package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LogFormat selects how the logger renders records.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config holds all configuration for the slicing engine.
type Config struct {
	// SpecDir is the directory of library spec JSON bundles consulted
	// by the symbol table when resolving a call's mutation/return-type
	// semantics. Empty means use only the embedded builtin bundle.
	SpecDir string `yaml:"spec_dir" env:"PYSLICE_SPEC_DIR"`

	// CachePath is where the disk-persisted def/use cache is loaded
	// from and saved to. Empty disables disk persistence; the engine
	// still caches in memory for the lifetime of one process.
	CachePath string `yaml:"cache_path" env:"PYSLICE_CACHE_PATH"`

	// RewriteMagics toggles neutralizing IPython-style %magic and
	// !shell lines before parsing. Disable only when source is known
	// to be plain Python.
	RewriteMagics bool `yaml:"rewrite_magics" env:"PYSLICE_REWRITE_MAGICS"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"PYSLICE_LOG_LEVEL"`

	// LogFormat is text or json.
	LogFormat LogFormat `yaml:"log_format" env:"PYSLICE_LOG_FORMAT"`

	// Verbose raises the effective log level to debug regardless of
	// LogLevel, matching the teacher's blanket verbose switch.
	Verbose bool `yaml:"verbose" env:"PYSLICE_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SpecDir:       "",
		CachePath:     defaultCachePath(),
		RewriteMagics: true,
		LogLevel:      "info",
		LogFormat:     LogFormatText,
		Verbose:       false,
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pyslice/defuse-cache.msgpack"
	}
	return filepath.Join(home, ".pyslice", "defuse-cache.msgpack")
}

// globalConfigFilePath returns the global config file path (~/.pyslice/config.yaml).
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pyslice/config.yaml"
	}
	return filepath.Join(home, ".pyslice", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.pyslice/config.yaml).
func projectConfigFilePath() string {
	return ".pyslice/config.yaml"
}

// GlobalConfigFilePath exposes globalConfigFilePath to callers (the init
// command) that need to report or write to it directly.
func GlobalConfigFilePath() string { return globalConfigFilePath() }

// ProjectConfigFilePath exposes projectConfigFilePath to callers (the init
// command) that need to report or write to it directly.
func ProjectConfigFilePath() string { return projectConfigFilePath() }

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.pyslice/config.yaml)
// 3. Global config (~/.pyslice/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	globalConfigPath := globalConfigFilePath()
	if data, err := os.ReadFile(globalConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", globalConfigPath, err)
		}
	}

	projectConfigPath := projectConfigFilePath()
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path,
// creating parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PYSLICE_SPEC_DIR"); v != "" {
		cfg.SpecDir = v
	}
	if v := os.Getenv("PYSLICE_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("PYSLICE_REWRITE_MAGICS"); v != "" {
		cfg.RewriteMagics = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("PYSLICE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PYSLICE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = LogFormat(v)
	}
	if v := os.Getenv("PYSLICE_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1" || v == "yes"
	}
}

// Validate checks that the configuration has valid required fields.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log_format: %s (must be 'text' or 'json')", c.LogFormat)
	}

	return nil
}

// EffectiveLogLevel returns "debug" when Verbose is set, otherwise
// LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Verbose {
		return "debug"
	}
	return c.LogLevel
}
