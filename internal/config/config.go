// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load errors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage and export drivers.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	ExportXLSX  = "xlsx"
	ExportRedis = "redis"
	ExportNone  = "none"
)

// Config holds all runtime configuration for the aggregator service.
type Config struct {
	Port           string
	PipelineFile   string
	StorageDriver  string
	DatabaseURL    string
	SQLitePath     string
	ExportDriver   string
	ExportPath     string // workbook path, or Redis hash key for the redis driver
	RedisURL       string
	FetchPages     bool
	ThrottleDelay  time.Duration
	HTTPTimeout    time.Duration
	AdapterTimeout time.Duration
	MaxParallel    int
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          envOr("DISCOVERY_PORT", "8081"),
		PipelineFile:  envOr("PIPELINE_CONFIG", "config.yaml"),
		StorageDriver: strings.ToLower(envOr("STORAGE_DRIVER", StorageSQLite)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    envOr("SQLITE_PATH", "data/jobpipeline.db"),
		ExportDriver:  strings.ToLower(envOr("EXPORT_DRIVER", ExportXLSX)),
		RedisURL:      os.Getenv("REDIS_URL"),
	}

	switch cfg.StorageDriver {
	case StorageSQLite:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be sqlite or postgres, got %q", cfg.StorageDriver)
	}

	switch cfg.ExportDriver {
	case ExportXLSX:
		cfg.ExportPath = envOr("EXPORT_PATH", "data/jobs.xlsx")
	case ExportRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when EXPORT_DRIVER=redis")
		}
		cfg.ExportPath = envOr("EXPORT_PATH", "jobpipeline:jobs")
	case ExportNone:
	default:
		return nil, fmt.Errorf("EXPORT_DRIVER must be xlsx, redis or none, got %q", cfg.ExportDriver)
	}

	var err error
	if cfg.FetchPages, err = envBool("FETCH_PAGES", false); err != nil {
		return nil, err
	}
	if cfg.ThrottleDelay, err = envDuration("THROTTLE_DELAY", 500*time.Millisecond, true); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", 15*time.Second, false); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = envDuration("ADAPTER_TIMEOUT", 30*time.Second, false); err != nil {
		return nil, err
	}

	cfg.MaxParallel = 4
	if s := os.Getenv("MAX_PARALLEL"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("MAX_PARALLEL must be a positive integer, got %q", s)
		}
		cfg.MaxParallel = v
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return v, nil
}

func envDuration(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be a positive duration (e.g. 500ms, 15s), got %q", key, s)
	}
	return d, nil
}
