package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"SpecDir", cfg.SpecDir, ""},
		{"RewriteMagics", cfg.RewriteMagics, true},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, LogFormatText},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.CachePath == "" {
		t.Error("DefaultConfig().CachePath should not be empty")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *Config
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid config",
			cfg:     &Config{LogLevel: "info", LogFormat: LogFormatText},
			wantErr: false,
		},
		{
			name:    "valid json format",
			cfg:     &Config{LogLevel: "debug", LogFormat: LogFormatJSON},
			wantErr: false,
		},
		{
			name:        "invalid log level",
			cfg:         &Config{LogLevel: "trace", LogFormat: LogFormatText},
			wantErr:     true,
			errContains: "invalid log_level",
		},
		{
			name:        "invalid log format",
			cfg:         &Config{LogLevel: "info", LogFormat: "xml"},
			wantErr:     true,
			errContains: "invalid log_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error containing %q, got nil", tt.errContains)
				} else if !contains(err.Error(), tt.errContains) {
					t.Errorf("Error = %q, should contain %q", err.Error(), tt.errContains)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		envVars     map[string]string
		checkCfg    func(*testing.T, *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "load valid config from file",
			configYAML: `
spec_dir: /opt/pyslice/specs
cache_path: /tmp/pyslice-cache.msgpack
rewrite_magics: false
log_level: debug
log_format: json
verbose: true
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.SpecDir != "/opt/pyslice/specs" {
					t.Errorf("SpecDir = %v, want /opt/pyslice/specs", cfg.SpecDir)
				}
				if cfg.CachePath != "/tmp/pyslice-cache.msgpack" {
					t.Errorf("CachePath = %v, want /tmp/pyslice-cache.msgpack", cfg.CachePath)
				}
				if cfg.RewriteMagics {
					t.Error("RewriteMagics = true, want false")
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
				}
				if cfg.LogFormat != LogFormatJSON {
					t.Errorf("LogFormat = %v, want json", cfg.LogFormat)
				}
				if !cfg.Verbose {
					t.Error("Verbose = false, want true")
				}
			},
			wantErr: false,
		},
		{
			name: "env var overrides file values",
			configYAML: `
log_level: info
spec_dir: /from/file
`,
			envVars: map[string]string{
				"PYSLICE_LOG_LEVEL": "warn",
			},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "warn" {
					t.Errorf("LogLevel = %v, want warn (from env)", cfg.LogLevel)
				}
				if cfg.SpecDir != "/from/file" {
					t.Errorf("SpecDir = %v, want /from/file (from file)", cfg.SpecDir)
				}
			},
			wantErr: false,
		},
		{
			name: "invalid yaml",
			configYAML: `
log_level: info
  invalid: indent
`,
			wantErr:     true,
			errContains: "failed to parse",
		},
		{
			name: "invalid log level in file",
			configYAML: `
log_level: trace
`,
			wantErr:     true,
			errContains: "invalid log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			cfg, err := LoadFromFile(configPath)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error containing %q, got nil", tt.errContains)
				} else if !contains(err.Error(), tt.errContains) {
					t.Errorf("Error = %q, should contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.checkCfg != nil {
				tt.checkCfg(t, cfg)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	origEnv := os.Environ()
	defer func() {
		os.Unsetenv("PYSLICE_SPEC_DIR")
		os.Unsetenv("PYSLICE_CACHE_PATH")
		os.Unsetenv("PYSLICE_REWRITE_MAGICS")
		os.Unsetenv("PYSLICE_LOG_LEVEL")
		os.Unsetenv("PYSLICE_LOG_FORMAT")
		os.Unsetenv("PYSLICE_VERBOSE")
		for _, e := range origEnv {
			parts := splitEnv(e)
			if len(parts) == 2 {
				os.Setenv(parts[0], parts[1])
			}
		}
	}()

	tests := []struct {
		name    string
		envVars map[string]string
		check   func(*testing.T, *Config)
	}{
		{
			name:    "override spec dir",
			envVars: map[string]string{"PYSLICE_SPEC_DIR": "/custom/specs"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.SpecDir != "/custom/specs" {
					t.Errorf("SpecDir = %v, want /custom/specs", cfg.SpecDir)
				}
			},
		},
		{
			name:    "override cache path",
			envVars: map[string]string{"PYSLICE_CACHE_PATH": "/custom/cache.msgpack"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.CachePath != "/custom/cache.msgpack" {
					t.Errorf("CachePath = %v, want /custom/cache.msgpack", cfg.CachePath)
				}
			},
		},
		{
			name:    "override rewrite magics with false-like value",
			envVars: map[string]string{"PYSLICE_REWRITE_MAGICS": "0"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.RewriteMagics {
					t.Error("RewriteMagics = true, want false (from '0')")
				}
			},
		},
		{
			name:    "override log level",
			envVars: map[string]string{"PYSLICE_LOG_LEVEL": "error"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "error" {
					t.Errorf("LogLevel = %v, want error", cfg.LogLevel)
				}
			},
		},
		{
			name:    "override log format",
			envVars: map[string]string{"PYSLICE_LOG_FORMAT": "json"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogFormat != LogFormatJSON {
					t.Errorf("LogFormat = %v, want json", cfg.LogFormat)
				}
			},
		},
		{
			name:    "override verbose with yes",
			envVars: map[string]string{"PYSLICE_VERBOSE": "yes"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Verbose {
					t.Error("Verbose = false, want true (from 'yes')")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("PYSLICE_SPEC_DIR")
			os.Unsetenv("PYSLICE_CACHE_PATH")
			os.Unsetenv("PYSLICE_REWRITE_MAGICS")
			os.Unsetenv("PYSLICE_LOG_LEVEL")
			os.Unsetenv("PYSLICE_LOG_FORMAT")
			os.Unsetenv("PYSLICE_VERBOSE")

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg := DefaultConfig()
			applyEnvOverrides(cfg)

			tt.check(t, cfg)
		})
	}
}

func TestEffectiveLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "warn", Verbose: false}
	if cfg.EffectiveLogLevel() != "warn" {
		t.Errorf("EffectiveLogLevel() = %v, want warn", cfg.EffectiveLogLevel())
	}

	cfg.Verbose = true
	if cfg.EffectiveLogLevel() != "debug" {
		t.Errorf("EffectiveLogLevel() = %v, want debug when verbose", cfg.EffectiveLogLevel())
	}
}

func TestConfigSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := &Config{
		SpecDir:       "/opt/specs",
		CachePath:     "/tmp/cache.msgpack",
		RewriteMagics: true,
		LogLevel:      "info",
		LogFormat:     LogFormatText,
	}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file was not created at %s", configPath)
	}

	loadedCfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if loadedCfg.SpecDir != cfg.SpecDir {
		t.Errorf("SpecDir mismatch: got %s, want %s", loadedCfg.SpecDir, cfg.SpecDir)
	}
	if loadedCfg.CachePath != cfg.CachePath {
		t.Errorf("CachePath mismatch: got %s, want %s", loadedCfg.CachePath, cfg.CachePath)
	}
	if loadedCfg.LogLevel != cfg.LogLevel {
		t.Errorf("LogLevel mismatch: got %s, want %s", loadedCfg.LogLevel, cfg.LogLevel)
	}
}

func TestConfigSaveCreatesParentDirs(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "dirs", "config.yaml")

	cfg := &Config{LogLevel: "info", LogFormat: LogFormatText}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() failed to create parent dirs: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file was not created at %s", configPath)
	}
}

// Helper functions

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsAt(s, substr))
}

func containsAt(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func splitEnv(e string) []string {
	for i := 0; i < len(e); i++ {
		if e[i] == '=' {
			return []string{e[:i], e[i+1:]}
		}
	}
	return []string{e}
}
