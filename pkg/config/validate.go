package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if strings.ContainsAny(c.Name, "/+# ") {
		errs = append(errs, fmt.Errorf("name %q must not contain '/', '+', '#' or spaces", c.Name))
	}
	if c.Socket == "" {
		errs = append(errs, fmt.Errorf("socket is required"))
	}
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", c.Capacity))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.SendTimeout < 0 {
		errs = append(errs, fmt.Errorf("send_timeout must not be negative"))
	}
	if c.ReportInterval < 0 {
		errs = append(errs, fmt.Errorf("report_interval must not be negative"))
	}
	if c.RelayPlugin == "" {
		errs = append(errs, fmt.Errorf("relay_plugin is required"))
	}
	if c.RelayPlugin == "logs" {
		errs = append(errs, fmt.Errorf("relay_plugin must not be %q", c.RelayPlugin))
	}
	if c.Key != "" && c.KeyFile != "" {
		errs = append(errs, fmt.Errorf("key and key_file are mutually exclusive"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error; got %q", c.LogLevel))
	}

	for i, src := range c.Sources {
		switch src.Kind {
		case SourceFile:
			if src.Path == "" {
				errs = append(errs, fmt.Errorf("source %d (file): path is required", i))
			}
		case SourceJournal:
			if src.Unit == "" {
				errs = append(errs, fmt.Errorf("source %d (journald): unit is required", i))
			}
		case "":
			errs = append(errs, fmt.Errorf("source %d: kind is required", i))
		default:
			errs = append(errs, fmt.Errorf("source %d: unknown kind %q", i, src.Kind))
		}
	}

	return errs
}
