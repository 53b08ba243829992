package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"refreshd/internal/sqljob"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	PoolMinSize int
	PoolMaxSize int

	SQLJobsDir string

	RefreshInterval   time.Duration
	RetentionInterval time.Duration
	PartitionInterval time.Duration
	TickResolution    time.Duration

	// JobsEnabled narrows the recurring set; empty means every parsed
	// job. Jobs outside the set register disabled for the process
	// lifetime.
	JobsEnabled []string

	RetentionProcedure string
	PartitionProcedure string

	APIAuthSecret string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	LogLevel string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		SQLJobsDir:           getenv("SQL_JOBS_DIR", "sql/analytics"),
		RetentionProcedure:   getenv("RETENTION_PROCEDURE", ""),
		PartitionProcedure:   getenv("PARTITION_PROCEDURE", ""),
		APIAuthSecret:        getenv("API_AUTH_SECRET", ""),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		LogLevel:             getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.PoolMinSize, err = getint("DB_POOL_MIN_SIZE", 1); err != nil {
		return Config{}, err
	}
	if cfg.PoolMaxSize, err = getint("DB_POOL_MAX_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = getduration("REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RetentionInterval, err = getduration("RETENTION_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.PartitionInterval, err = getduration("PARTITION_INTERVAL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.TickResolution, err = getduration("TICK_RESOLUTION", time.Second); err != nil {
		return Config{}, err
	}

	cfg.JobsEnabled = getlist("JOBS_ENABLED")
	cfg.CORSAllowedOrigins = getlist("CORS_ALLOWED_ORIGINS")

	return cfg, nil
}

// IntervalFor maps a job kind to its scheduling tier.
func (c Config) IntervalFor(kind sqljob.Kind) time.Duration {
	switch kind {
	case sqljob.KindRetention:
		return c.RetentionInterval
	case sqljob.KindPartition:
		return c.PartitionInterval
	default:
		return c.RefreshInterval
	}
}

// JobEnabled reports whether a job name is in the active set.
func (c Config) JobEnabled(name string) bool {
	if len(c.JobsEnabled) == 0 {
		return true
	}
	for _, n := range c.JobsEnabled {
		if n == name {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getint(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	// Bare numbers are read as seconds for compatibility with older
	// deployments.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration: %w", key, err)
	}
	return d, nil
}

func getlist(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
