package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "HUBSIM_"

// LoadOptions represents options for loading configuration
type LoadOptions struct {
	Path string
}

// Load loads configuration from various sources
func Load(opts ...LoadOptions) (*Config, error) {
	cfg := Default()

	var options LoadOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.Path != "" {
		if err := loadFromFile(cfg, options.Path); err != nil {
			return nil, err
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a file
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if host := os.Getenv(EnvPrefix + "SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv(EnvPrefix + "SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return NewConfigError("server.port", "not an integer: "+port)
		}
		cfg.Server.Port = p
	}

	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv(EnvPrefix + "LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	durations := []struct {
		env   string
		field string
		dst   *time.Duration
	}{
		{"CONNECT_DELAY", "simulation.connect_delay", &cfg.Simulation.ConnectDelay},
		{"DISCONNECT_DELAY", "simulation.disconnect_delay", &cfg.Simulation.DisconnectDelay},
		{"ROUND_TRIP_DELAY", "simulation.round_trip_delay", &cfg.Simulation.RoundTripDelay},
		{"ANNOUNCEMENT_INTERVAL", "simulation.announcement_interval", &cfg.Simulation.AnnouncementInterval},
	}
	for _, d := range durations {
		raw := os.Getenv(EnvPrefix + d.env)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return NewConfigError(d.field, "not a duration: "+raw)
		}
		*d.dst = v
	}

	if responder := os.Getenv(EnvPrefix + "RESPONDER"); responder != "" {
		enabled, err := strconv.ParseBool(responder)
		if err != nil {
			return NewConfigError("simulation.responder.enabled", "not a boolean: "+responder)
		}
		cfg.Simulation.Responder.Enabled = enabled
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

// NewConfigError creates a new configuration error
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s': %s", e.Field, e.Message)
}
