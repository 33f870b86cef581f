package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is read when ISC_CONFIG is unset and the file exists.
const DefaultConfigFile = "config.yaml"

// Load merges LoadBaseline() + optional YAML file + ISC_* env overrides, then validates.
func Load() (*Config, error) {
	config := LoadBaseline()

	path := os.Getenv("ISC_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	if err := mergeFile(config, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadFromFile merges a YAML file over the baseline and validates the result.
func LoadFromFile(path string) (*Config, error) {
	config := LoadBaseline()
	if err := mergeFile(config, path); err != nil {
		return nil, err
	}
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// mergeFile overlays the fields present in the file. A catalog in the file
// replaces the default catalog entirely.
func mergeFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseYAML(config, data)
}

func parseYAML(config *Config, data []byte) error {
	catalog := config.Catalog
	config.Catalog = nil

	if err := yaml.UnmarshalStrict(data, config); err != nil {
		config.Catalog = catalog
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Catalog == nil {
		config.Catalog = catalog
	}
	return nil
}

// applyEnvOverrides applies ISC_* environment variables to the config.
func applyEnvOverrides(config *Config) error {
	if val := os.Getenv("ISC_ROBOT_HOST"); val != "" {
		config.Robot.Host = val
	}

	if val := os.Getenv("ISC_ROBOT_ADAPTER"); val != "" {
		config.Robot.Adapter = val
	}

	if val := os.Getenv("ISC_ROBOT_CONTROL_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ISC_ROBOT_CONTROL_PORT: %w", err)
		}
		config.Robot.ControlPort = port
	}

	if val := os.Getenv("ISC_ROBOT_PROGRAM_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ISC_ROBOT_PROGRAM_PORT: %w", err)
		}
		config.Robot.ProgramPort = port
	}

	if val := os.Getenv("ISC_ROBOT_SEND_TIMEOUT"); val != "" {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("ISC_ROBOT_SEND_TIMEOUT: %w", err)
		}
		config.Timing.SendTimeout = duration
	}

	if val := os.Getenv("ISC_PACING_INTERVAL"); val != "" {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("ISC_PACING_INTERVAL: %w", err)
		}
		config.Timing.PacingInterval = duration
	}

	if val := os.Getenv("ISC_HEARTBEAT_INTERVAL"); val != "" {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("ISC_HEARTBEAT_INTERVAL: %w", err)
		}
		config.Timing.HeartbeatInterval = duration
	}

	if val := os.Getenv("ISC_ADDR"); val != "" {
		config.Server.Addr = val
	}

	if val := os.Getenv("ISC_AUDIT_DIR"); val != "" {
		config.Audit.Dir = val
	}

	if val := os.Getenv("ISC_JWT_SECRET"); val != "" {
		config.Auth.JWTSecret = val
	}

	if val := os.Getenv("ISC_JWT_PUBLIC_KEY_FILE"); val != "" {
		config.Auth.PublicKeyFile = val
	}

	return nil
}
