// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	GinMode    string
	FEOrigin   string
	StatsKey   string
	LogLevel   string
	JWTSecret  []byte
	SessionTTL time.Duration

	AnalyticsToken string
	CatalogPath    string
	CheckoutDelay  time.Duration
	FunnelIdleTTL  time.Duration
	SinkQueueSize  int

	DatabaseURL string
	ClickHouse  ClickHouseConfig
	NATS        NATSConfig
	JournalPath string
	Collector   CollectorConfig
	OTelEnabled bool
}

type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Enabled reports whether enough settings are present to dial ClickHouse.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.Database != ""
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type CollectorConfig struct {
	URL    string
	APIKey string
}

// Load reads envFiles (default .env) if present, then the environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		GinMode:        os.Getenv("GIN_MODE"),
		FEOrigin:       getenv("FE_ORIGIN", "http://localhost:3000"),
		StatsKey:       os.Getenv("AUTH_DEFAULT"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		JWTSecret:      []byte(os.Getenv("JWT_SECRET_KEY")),
		AnalyticsToken: os.Getenv("ANALYTICS_TOKEN"),
		CatalogPath:    os.Getenv("CATALOG_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JournalPath:    os.Getenv("JOURNAL_PATH"),
		ClickHouse: ClickHouseConfig{
			Host:     os.Getenv("CLICKHOUSE_HOST"),
			Database: os.Getenv("CLICKHOUSE_DB_NAME"),
			Username: os.Getenv("CLICKHOUSE_USERNAME"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getenv("NATS_SUBJECT_PREFIX", "funnel"),
		},
		Collector: CollectorConfig{
			URL:    os.Getenv("COLLECTOR_URL"),
			APIKey: os.Getenv("COLLECTOR_API_KEY"),
		},
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CheckoutDelay, err = durationEnv("CHECKOUT_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FunnelIdleTTL, err = durationEnv("FUNNEL_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SinkQueueSize, err = intEnv("SINK_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.ClickHouse.Port, err = intEnv("CLICKHOUSE_NATIVE_PORT", 0); err != nil {
		return nil, err
	}
	if cfg.OTelEnabled, err = boolEnv("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.SinkQueueSize <= 0 {
		return nil, fmt.Errorf("invalid SINK_QUEUE_SIZE: must be positive")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
