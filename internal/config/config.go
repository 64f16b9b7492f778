package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/guarzo/vinyldeals/internal/analysis"
	"github.com/guarzo/vinyldeals/internal/matcher"
	"github.com/guarzo/vinyldeals/internal/recommend"
	"github.com/guarzo/vinyldeals/internal/seller"
	"github.com/guarzo/vinyldeals/internal/store"
)

//go:embed sample_config.toml
var sampleConfig string

// Search selects where search run contexts are read from.
type Search struct {
	Source string `toml:"source"` // "file" or "sql"
	Dir    string `toml:"dir"`
}

// Catalog enables cross-run canonical item ids.
type Catalog struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Analysis tunes the orchestrator.
type Analysis struct {
	Concurrency int `toml:"concurrency"`
}

// Worker contains background execution settings.
type Worker struct {
	Workers           int     `toml:"workers"`
	RunsPerSecond     float64 `toml:"runs_per_second"`
	RunTimeoutSeconds int     `toml:"run_timeout_seconds"`
	MetricsAddr       string  `toml:"metrics_addr"`
	RetentionDays     int     `toml:"retention_days"`
	PruneSchedule     string  `toml:"prune_schedule"`
}

// Kafka configures the search run job topic.
type Kafka struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values.
//
// Configuration sections by subsystem:
//   - Matcher: similarity weights and fuzzy threshold
//   - Seller: shipping tariffs and reputation tuning
//   - Recommend: deal weights, bundle saturation, currency rates
//   - Sanitize: listing price bounds
//   - Store, Search, Catalog: persistence and inputs
//   - Worker, Kafka: background execution
//   - Logging: log format and level
type Config struct {
	Matcher   matcher.Config          `toml:"matcher"`
	Seller    seller.Config           `toml:"seller"`
	Recommend recommend.Config        `toml:"recommend"`
	Sanitize  analysis.SanitizeConfig `toml:"sanitize"`
	Analysis  Analysis                `toml:"analysis"`
	Store     store.Config            `toml:"store"`
	Search    Search                  `toml:"search"`
	Catalog   Catalog                 `toml:"catalog"`
	Worker    Worker                  `toml:"worker"`
	Kafka     Kafka                   `toml:"kafka"`
	Logging   Logging                 `toml:"logging"`
}

// Default returns a config that works out of the box against a local sqlite
// database and a directory of run files.
func Default() Config {
	return Config{
		Matcher:   matcher.DefaultConfig(),
		Seller:    seller.DefaultConfig(),
		Recommend: recommend.DefaultConfig(),
		Sanitize:  analysis.DefaultSanitizeConfig(),
		Analysis:  Analysis{Concurrency: 4},
		Store:     store.Config{Driver: store.DriverSQLite, DSN: "vinyldeals.db"},
		Search:    Search{Source: "file", Dir: "runs"},
		Catalog:   Catalog{Enabled: false, Dir: "catalog"},
		Worker: Worker{
			Workers:           2,
			RunsPerSecond:     1,
			RunTimeoutSeconds: 120,
			MetricsAddr:       ":9090",
			RetentionDays:     30,
			PruneSchedule:     "@daily",
		},
		Kafka: Kafka{
			Topic:   "vinyldeals.search-runs",
			GroupID: "vinyldeals-analysis",
		},
		Logging: Logging{Format: "console", Level: "info"},
	}
}

// SampleConfig returns a commented config file with the default values.
func SampleConfig() string {
	return sampleConfig
}

// Load builds a config from defaults, the TOML file at path (if it exists),
// a .env file in the working directory, and VINYLDEALS_* environment
// variables, in that order of precedence.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	exists, err := decodeFile(path, &cfg)
	if err != nil {
		return nil, false, err
	}

	loadDotEnv()
	if err := cfg.applyEnv(); err != nil {
		return nil, false, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

func decodeFile(path string, cfg *Config) (bool, error) {
	if strings.TrimSpace(path) == "" {
		path = "vinyldeals.toml"
	}
	file, err := os.Open(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return false, fmt.Errorf("parse config: %w", err)
	}
	return true, nil
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Search.Source = strings.ToLower(strings.TrimSpace(c.Search.Source))
	c.Recommend.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.Recommend.BaseCurrency))
	c.Seller.Shipping.Currency = strings.ToUpper(strings.TrimSpace(c.Seller.Shipping.Currency))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	var brokers []string
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
}
