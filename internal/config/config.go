package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string `toml:"server_port"`

	// Storage settings
	DBPath string `toml:"db_path"`

	// OpenTelemetry settings
	TelemetryEnabled bool   `toml:"telemetry_enabled"`
	OTLPEndpoint     string `toml:"otlp_endpoint"`
	ServiceName      string `toml:"service_name"`
	Environment      string `toml:"environment"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ServerPort:       "8080",
		DBPath:           "tasklist.db",
		TelemetryEnabled: false,
		OTLPEndpoint:     "localhost:4317",
		ServiceName:      "go-tasklist",
		Environment:      "development",
	}
}

// Load starts from the defaults, overlays the TOML file named by
// CONFIG_FILE if there is one, then overlays environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse TELEMETRY_ENABLED: %w", err)
		}
		cfg.TelemetryEnabled = enabled
	}

	return cfg, nil
}

// loadFile overlays the keys present in a TOML file. A missing file is not
// an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
