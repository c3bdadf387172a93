// Package config loads tln.yaml and environment overrides for the daemon and CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/modoterra/tln/pkg/secret"
)

// DefaultPath is where the daemon and CLI look for a config file.
const DefaultPath = "tln.yaml"

// Config represents a tln.yaml file.
type Config struct {
	Version        int           `yaml:"version"         json:"version"`
	Name           string        `yaml:"name"            json:"name"            env:"TLN_NAME"`
	Socket         string        `yaml:"socket"          json:"socket"          env:"TLN_SOCKET"`
	Capacity       int           `yaml:"capacity"        json:"capacity"        env:"TLN_CAPACITY"`
	QueueSize      int           `yaml:"queue_size"      json:"queue_size"`
	SendTimeout    time.Duration `yaml:"send_timeout"    json:"send_timeout"`
	ReportInterval time.Duration `yaml:"report_interval" json:"report_interval" env:"TLN_REPORT_INTERVAL"`
	Key            string        `yaml:"key,omitempty"      json:"-" env:"TLN_KEY"`
	KeyFile        string        `yaml:"key_file,omitempty" json:"key_file,omitempty" env:"TLN_KEY_FILE"`
	RelayPlugin    string        `yaml:"relay_plugin"    json:"relay_plugin"`
	Journal        bool          `yaml:"journal"         json:"journal"         env:"TLN_JOURNAL"`
	LogLevel       string        `yaml:"log_level"       json:"log_level"       env:"TLN_LOG_LEVEL"`
	Sources        []Source      `yaml:"sources,omitempty" json:"sources,omitempty"`

	FilePath string `yaml:"-" json:"-"`
}

// Source kinds.
const (
	SourceFile    = "file"
	SourceJournal = "journald"
)

// Source is a local log stream the daemon feeds into the logs plugin.
type Source struct {
	Kind      string `yaml:"kind"                 json:"kind"`
	Path      string `yaml:"path,omitempty"       json:"path,omitempty"`
	Unit      string `yaml:"unit,omitempty"       json:"unit,omitempty"`
	FromStart bool   `yaml:"from_start,omitempty" json:"from_start,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:     1,
		Name:        "${hostname}",
		Socket:      "/tmp/tln.sock",
		Capacity:    500,
		QueueSize:   64,
		SendTimeout: 100 * time.Millisecond,
		RelayPlugin: "mqtt",
		LogLevel:    "info",
	}
}

// Parse decodes YAML on top of the defaults and expands ${hostname} in name.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.interpolate()
	return c, nil
}

// Load reads path, then applies TLN_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.FilePath = path
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadOrDefault is Load, but a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	c, err := Load(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return c, err
	}
	c = Default()
	c.interpolate()
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from TLN_* variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.interpolate()
	return nil
}

// Save writes the config as YAML.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// CurrentName returns the instance name used in report topics.
func (c *Config) CurrentName() string { return c.Name }

// ResolveKey returns the decryption key from key or key_file.
func (c *Config) ResolveKey() (secret.Key, error) {
	raw := c.Key
	if raw == "" && c.KeyFile != "" {
		data, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		raw = string(data)
	}
	if raw == "" {
		return nil, errors.New("no key configured (set key, key_file or TLN_KEY)")
	}
	return secret.ParseKey(raw)
}

// Level maps log_level to a slog level; unknown values mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) interpolate() {
	if !strings.Contains(c.Name, "${hostname}") {
		return
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	c.Name = strings.ReplaceAll(c.Name, "${hostname}", host)
}
