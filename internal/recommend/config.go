package recommend

import (
	"fmt"
	"strings"
)

// Weights blend the score terms. Single item deals ignore Bundle and
// renormalize the remaining three.
type Weights struct {
	Reputation float64 `toml:"reputation"`
	Wantlist   float64 `toml:"wantlist"`
	Price      float64 `toml:"price"`
	Bundle     float64 `toml:"bundle"`
}

// Config tunes the recommendation engine.
type Config struct {
	Weights Weights `toml:"weights"`
	// BundleSaturation is the item count at which the bundle bonus maxes out.
	BundleSaturation int    `toml:"bundle_saturation"`
	BaseCurrency     string `toml:"base_currency"`
	// Rates maps a currency code to its value in BaseCurrency.
	Rates map[string]float64 `toml:"rates"`
}

// DefaultConfig returns the default engine tuning.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Reputation: 0.35,
			Wantlist:   0.25,
			Price:      0.25,
			Bundle:     0.15,
		},
		BundleSaturation: 8,
		BaseCurrency:     "USD",
		Rates: map[string]float64{
			"EUR": 1.08,
			"GBP": 1.27,
			"CAD": 0.73,
			"JPY": 0.0067,
			"AUD": 0.66,
		},
	}
}

// Validate checks the engine tuning.
func (c Config) Validate() error {
	w := c.Weights
	if w.Reputation < 0 || w.Wantlist < 0 || w.Price < 0 || w.Bundle < 0 {
		return fmt.Errorf("recommend weights must be non-negative")
	}
	if w.Reputation+w.Wantlist+w.Price <= 0 {
		return fmt.Errorf("recommend weights for reputation, wantlist and price must not all be zero")
	}
	if c.BundleSaturation < 2 {
		return fmt.Errorf("bundle saturation must be >= 2, got %d", c.BundleSaturation)
	}
	if strings.TrimSpace(c.BaseCurrency) == "" {
		return fmt.Errorf("base currency is required")
	}
	for code, rate := range c.Rates {
		if rate <= 0 {
			return fmt.Errorf("rate for %s must be positive, got %f", code, rate)
		}
	}
	return nil
}
