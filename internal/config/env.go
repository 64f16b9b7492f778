package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "VINYLDEALS_"

// loadDotEnv reads .env if present. Variables already set in the process
// environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}
}

func (c *Config) applyEnv() error {
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("STORE_DSN", c.Store.DSN)
	c.Search.Source = getEnv("SEARCH_SOURCE", c.Search.Source)
	c.Search.Dir = getEnv("SEARCH_DIR", c.Search.Dir)
	c.Catalog.Dir = getEnv("CATALOG_DIR", c.Catalog.Dir)
	c.Recommend.BaseCurrency = getEnv("BASE_CURRENCY", c.Recommend.BaseCurrency)
	c.Worker.MetricsAddr = getEnv("METRICS_ADDR", c.Worker.MetricsAddr)
	c.Worker.PruneSchedule = getEnv("PRUNE_SCHEDULE", c.Worker.PruneSchedule)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)

	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	var err error
	if c.Catalog.Enabled, err = getEnvBool("CATALOG_ENABLED", c.Catalog.Enabled); err != nil {
		return err
	}
	if c.Analysis.Concurrency, err = getEnvInt("CONCURRENCY", c.Analysis.Concurrency); err != nil {
		return err
	}
	if c.Worker.Workers, err = getEnvInt("WORKERS", c.Worker.Workers); err != nil {
		return err
	}
	if c.Worker.RetentionDays, err = getEnvInt("RETENTION_DAYS", c.Worker.RetentionDays); err != nil {
		return err
	}
	if c.Worker.RunTimeoutSeconds, err = getEnvInt("RUN_TIMEOUT_SECONDS", c.Worker.RunTimeoutSeconds); err != nil {
		return err
	}
	if c.Matcher.Threshold, err = getEnvFloat("MATCH_THRESHOLD", c.Matcher.Threshold); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return b, nil
}
