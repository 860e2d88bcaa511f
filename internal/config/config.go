/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	ScheduleFile  string // YAML weekly pattern, appointments and calendars
	JWTSigningKey string
	LogLevel      string
	LogFormat     string // console or json

	MetricsEnabled bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	// Slot query cache (Redis)
	CacheEnabled bool
	CacheTTL     time.Duration

	// Event fan-out; empty disables NATS
	NATSURL string

	// Calendar sources
	ICSTimeout time.Duration

	LegacyEnvWarnings []string
}

// Load reads environment variables (after merging a .env file when one is
// present), applies defaults, and validates the result.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnvAny([]string{"INKINTIME_ENV_FILE", "IIT_ENV_FILE"}, ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:   getEnvAny([]string{"INKINTIME_ENV", "IIT_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"INKINTIME_HTTP_BIND", "IIT_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"INKINTIME_HTTP_PORT", "IIT_HTTP_PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"INKINTIME_DB_BACKEND", "IIT_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:         getEnvAny([]string{"INKINTIME_DB_DSN", "IIT_DB_DSN"}, ""),
		ScheduleFile:  getEnvAny([]string{"INKINTIME_SCHEDULE_FILE", "IIT_SCHEDULE_FILE"}, "config/schedule.yml"),
		JWTSigningKey: getEnvAny([]string{"INKINTIME_JWT_SIGNING_KEY", "IIT_JWT_SIGNING_KEY"}, ""),
		LogLevel:      getEnvAny([]string{"INKINTIME_LOG_LEVEL", "IIT_LOG_LEVEL"}, ""),
		LogFormat:     getEnvAny([]string{"INKINTIME_LOG_FORMAT", "IIT_LOG_FORMAT"}, "console"),

		MetricsEnabled: getEnvBoolAny([]string{"INKINTIME_METRICS", "IIT_METRICS"}, true),

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"INKINTIME_TRACING_ENABLED", "IIT_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"INKINTIME_OTLP_ENDPOINT", "IIT_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"INKINTIME_TRACING_SAMPLE_RATE", "IIT_TRACING_SAMPLE_RATE"}, 1.0),

		// Multi-instance configuration
		LeaderElectionEnabled: getEnvBoolAny([]string{"INKINTIME_LEADER_ELECTION_ENABLED", "IIT_LEADER_ELECTION_ENABLED"}, false),
		RedisAddr:             getEnvAny([]string{"INKINTIME_REDIS_ADDR", "IIT_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"INKINTIME_REDIS_PASSWORD", "IIT_REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"INKINTIME_REDIS_DB", "IIT_REDIS_DB"}, 0),
		InstanceID:            getEnvAny([]string{"INKINTIME_INSTANCE_ID", "IIT_INSTANCE_ID"}, ""),

		CacheEnabled: getEnvBoolAny([]string{"INKINTIME_CACHE_ENABLED", "IIT_CACHE_ENABLED"}, false),
		CacheTTL:     time.Duration(getEnvIntAny([]string{"INKINTIME_CACHE_TTL_SECONDS", "IIT_CACHE_TTL_SECONDS"}, 300)) * time.Second,

		NATSURL: getEnvAny([]string{"INKINTIME_NATS_URL", "IIT_NATS_URL"}, ""),

		ICSTimeout: time.Duration(getEnvIntAny([]string{"INKINTIME_ICS_TIMEOUT_SECONDS", "IIT_ICS_TIMEOUT_SECONDS"}, 15)) * time.Second,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend != DatabaseSQLite {
			return nil, fmt.Errorf("INKINTIME_DB_DSN or IIT_DB_DSN must be provided for %s", cfg.DBBackend)
		}
		cfg.DBDSN = "inkintime.db"
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid http port %d", cfg.HTTPPort)
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("tracing sample rate must be between 0 and 1, got %v", cfg.TracingSampleRate)
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("INKINTIME_JWT_SIGNING_KEY or IIT_JWT_SIGNING_KEY must be provided in production")
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// IsProduction reports whether the process runs with production defaults.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Environment, "production")
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// loadDotEnv merges path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"IIT_CONFIG":      "use INKINTIME_SCHEDULE_FILE",
		"DATABASE_PATH":   "use INKINTIME_DB_DSN with INKINTIME_DB_BACKEND=sqlite",
		"GRACE_PERIOD":    "set grace_period_hours in the schedule file",
		"VIEW_DURATION":   "set view_window_days in the schedule file",
		"JWT_SIGNING_KEY": "use INKINTIME_JWT_SIGNING_KEY (or IIT_JWT_SIGNING_KEY)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
