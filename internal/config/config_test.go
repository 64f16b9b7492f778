package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/guarzo/vinyldeals/internal/seller"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vinyldeals.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("Expected exists=false for a missing file")
	}
	if cfg.Store.Driver != "sqlite" || cfg.Matcher.Threshold != 0.85 {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	cfg, exists, err := Load(writeConfig(t, SampleConfig()))
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("Expected exists=true")
	}
	def := Default()
	def.normalize()
	if !reflect.DeepEqual(*cfg, def) {
		t.Errorf("Expected sample config to equal defaults\n got: %+v\nwant: %+v", *cfg, def)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
[matcher]
threshold = 0.9

[store]
driver = "Postgres"
dsn = "postgres://localhost/vinyl?sslmode=disable"

[search]
source = "sql"

[kafka]
brokers = ["localhost:9092", " "]
`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Matcher.Threshold != 0.9 {
		t.Errorf("Expected threshold 0.9, got %v", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.Weights.Title != 0.60 {
		t.Errorf("Expected untouched weights to keep defaults, got %v", cfg.Matcher.Weights.Title)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("Expected normalized driver, got %q", cfg.Store.Driver)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Expected blank brokers dropped, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadSellerAliases(t *testing.T) {
	path := writeConfig(t, `
[seller.aliases]
"EBAY:groovemerchant" = "DISCOGS:groovemerchant"
`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Seller.Aliases["EBAY:groovemerchant"]; got != "DISCOGS:groovemerchant" {
		t.Errorf("Expected alias to load, got %q", got)
	}
	if cfg.Seller.Shipping.Domestic.First != 5 {
		t.Errorf("Expected shipping defaults kept, got %v", cfg.Seller.Shipping.Domestic.First)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VINYLDEALS_STORE_DSN", "/tmp/override.db")
	t.Setenv("VINYLDEALS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("VINYLDEALS_WORKERS", "5")
	t.Setenv("VINYLDEALS_CATALOG_ENABLED", "true")
	t.Setenv("VINYLDEALS_LOG_LEVEL", "DEBUG")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DSN != "/tmp/override.db" {
		t.Errorf("Expected DSN override, got %q", cfg.Store.DSN)
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"a:9092", "b:9092"}) {
		t.Errorf("Expected broker override, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Worker.Workers != 5 || !cfg.Catalog.Enabled || cfg.Logging.Level != "debug" {
		t.Errorf("Unexpected overrides: %+v", cfg)
	}
}

func TestEnvOverrideRejectsBadNumber(t *testing.T) {
	t.Setenv("VINYLDEALS_WORKERS", "many")
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil || !strings.Contains(err.Error(), "VINYLDEALS_WORKERS") {
		t.Fatalf("Expected error naming the variable, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, _, err := Load(writeConfig(t, "[matcher]\nthreshhold = 0.9\n"))
	if err == nil {
		t.Fatal("Expected unknown key to be rejected")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"threshold_zero", func(c *Config) { c.Matcher.Threshold = 0 }, "matcher.threshold"},
		{"threshold_above_one", func(c *Config) { c.Matcher.Threshold = 1.5 }, "matcher.threshold"},
		{"negative_weight", func(c *Config) { c.Matcher.Weights.Title = -1 }, "matcher.weights"},
		{"shipping_additional_not_below_first", func(c *Config) { c.Seller.Shipping.Domestic.Additional = 5 }, "seller"},
		{"bad_driver", func(c *Config) { c.Store.Driver = "mysql" }, "store"},
		{"bad_source", func(c *Config) { c.Search.Source = "ftp" }, "search.source"},
		{"file_source_without_dir", func(c *Config) { c.Search.Dir = "" }, "search.dir"},
		{"catalog_without_dir", func(c *Config) { c.Catalog.Enabled = true; c.Catalog.Dir = "" }, "catalog.dir"},
		{"zero_workers", func(c *Config) { c.Worker.Workers = 0 }, "worker.workers"},
		{"bad_schedule", func(c *Config) { c.Worker.PruneSchedule = "whenever" }, "worker.prune_schedule"},
		{"max_below_min", func(c *Config) { c.Sanitize.MaxPrice = 0.1 }, "sanitize.max_price"},
		{"brokers_without_topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, "kafka.topic"},
		{"shipping_currency_without_rate", func(c *Config) { c.Seller.Shipping.Currency = "CHF" }, "seller.shipping.currency"},
		{"seller_alias_chain", func(c *Config) {
			c.Seller.Aliases = seller.Aliases{"EBAY:a": "DISCOGS:b", "DISCOGS:b": "EBAY:c"}
		}, "itself an alias"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}
