package seller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guarzo/vinyldeals/internal/model"
)

// Config groups the analyzer's tunables.
type Config struct {
	Shipping   ShippingConfig   `toml:"shipping"`
	Reputation ReputationConfig `toml:"reputation"`
	Aliases    Aliases          `toml:"aliases,omitempty"`
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		Shipping:   DefaultShippingConfig(),
		Reputation: DefaultReputationConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	return errors.Join(c.Shipping.Validate(), c.Reputation.Validate(), c.Aliases.Validate())
}

// UnavailableError reports a seller whose payload cannot support an analysis.
type UnavailableError struct {
	SellerKey string
	Reason    string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("seller analysis unavailable for %q: %s", e.SellerKey, e.Reason)
}

// Analyzer builds per-seller profiles. It holds no per-run state and is safe
// for concurrent use.
type Analyzer struct {
	shipping   *ShippingTable
	reputation ReputationConfig
}

// NewAnalyzer validates cfg and returns an Analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Reputation.Validate(); err != nil {
		return nil, err
	}
	table, err := NewShippingTable(cfg.Shipping)
	if err != nil {
		return nil, err
	}
	return &Analyzer{shipping: table, reputation: cfg.Reputation}, nil
}

// Shipping exposes the tariff table used by the analyzer.
func (a *Analyzer) Shipping() *ShippingTable {
	return a.shipping
}

// Analyze scores one seller for the listings it contributed to a run.
func (a *Analyzer) Analyze(s model.Seller, listings []model.Listing, destination string) (model.SellerAnalysis, error) {
	if strings.TrimSpace(s.SellerID) == "" {
		return model.SellerAnalysis{}, &UnavailableError{SellerKey: s.Key(), Reason: "missing seller id"}
	}
	if !s.Platform.Valid() {
		return model.SellerAnalysis{}, &UnavailableError{SellerKey: s.Key(), Reason: "unknown platform"}
	}
	if s.CountryCode == "" {
		s.CountryCode = NormalizeCountryCode(s.Location)
	}

	result := model.SellerAnalysis{
		SellerKey:        s.Key(),
		Seller:           s,
		Reputation:       ScoreSellerReputation(s, a.reputation),
		PerItemShipping:  a.shipping.EstimateShippingCost(s, 1, destination),
		CombinedShipping: a.shipping.EstimateShippingCost(s, len(listings), destination),
		ListingCount:     len(listings),
	}
	for _, l := range listings {
		if l.InWantlist {
			result.WantlistCount++
		}
		if l.InCollection {
			result.CollectionCount++
		}
	}
	return result, nil
}
