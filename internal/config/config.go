package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds process settings, populated from environment variables.
// Command-line flags override individual fields after Load.
type Config struct {
	LogLevel        string
	LogFormat       string
	MetricsAddr     string // empty disables the HTTP endpoints
	ShutdownTimeout time.Duration

	// BatchSize is the target number of grid cells per batch.
	BatchSize     int
	Workers       int
	GridCacheSize int
	Precompute    bool

	KafkaBrokers      []string
	KafkaSummaryTopic string // empty disables summary publishing
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositive("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		ShutdownTimeout:   shutdownTimeout,
		BatchSize:         batchSize,
		Workers:           workers,
		GridCacheSize:     parseGridCacheSize(),
		Precompute:        os.Getenv("GRID_PRECOMPUTE") == "true",
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSummaryTopic: os.Getenv("KAFKA_SUMMARY_TOPIC"),
	}

	if cfg.KafkaSummaryTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_SUMMARY_TOPIC is set but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

// PublishSummaries reports whether run summaries go to Kafka.
func (c *Config) PublishSummaries() bool { return c.KafkaSummaryTopic != "" }

func parsePositive(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseGridCacheSize() int {
	if s := os.Getenv("GRID_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
