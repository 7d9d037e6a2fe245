package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfig   = "VPCCTL_CONFIG"
	EnvState    = "VPCCTL_STATE"
	EnvBackend  = "VPCCTL_BACKEND"
	EnvLogLevel = "VPCCTL_LOG_LEVEL"
)

const (
	defaultLockTimeout    = 10
	defaultCommandTimeout = 30
)

// Config holds settings loaded from ~/.config/vpcctl/config.yaml.
type Config struct {
	StatePath             string `yaml:"state_path"`
	Backend               string `yaml:"backend"`
	DefaultInterface      string `yaml:"default_interface"`
	LockTimeoutSeconds    int    `yaml:"lock_timeout_seconds"`
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"`
	UseSudo               bool   `yaml:"use_sudo"`
	LogLevel              string `yaml:"log_level"`
	LogFile               string `yaml:"log_file"`
	WebRoot               string `yaml:"web_root"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		StatePath:             "/var/lib/vpcctl/state.json",
		Backend:               "json",
		DefaultInterface:      "eth0",
		LockTimeoutSeconds:    defaultLockTimeout,
		CommandTimeoutSeconds: defaultCommandTimeout,
		LogLevel:              "info",
		LogFile:               "/tmp/vpcctl.log",
		WebRoot:               "/tmp/vpcctl",
	}
}

// Path returns the config file location: $VPCCTL_CONFIG, else the user
// config directory.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vpcctl", "config.yaml")
}

// Load reads the config file and applies environment overrides. A missing
// file yields the defaults.
func Load() (*Config, error) {
	cfg, err := LoadFrom(Path())
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFrom reads the file at path over the defaults. Keys absent from the
// file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvState); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Merge applies CLI flag overrides. Flags take precedence over config and
// environment values.
func (c *Config) Merge(statePath, backend, logLevel string) {
	if statePath != "" {
		c.StatePath = statePath
	}
	if backend != "" {
		c.Backend = backend
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// LockTimeout returns how long to wait for the state lock.
func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSeconds <= 0 {
		return defaultLockTimeout * time.Second
	}
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// CommandTimeout bounds each external command. Non-positive values fall
// back to the default.
func (c *Config) CommandTimeout() time.Duration {
	if c.CommandTimeoutSeconds <= 0 {
		return defaultCommandTimeout * time.Second
	}
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}
