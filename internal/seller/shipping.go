package seller

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

// Zone is a shipping tariff class between a seller and a destination.
type Zone string

const (
	ZoneDomestic      Zone = "domestic"
	ZoneRegional      Zone = "regional"
	ZoneInternational Zone = "international"
)

// Rate is the cost of the first item and of each additional item in one parcel.
type Rate struct {
	First      float64 `toml:"first"`
	Additional float64 `toml:"additional"`
}

// ShippingConfig holds the tariff table. Amounts are in Currency.
type ShippingConfig struct {
	Currency      string   `toml:"currency"`
	Domestic      Rate     `toml:"domestic"`
	Regional      Rate     `toml:"regional"`
	International Rate     `toml:"international"`
	RegionalZone  []string `toml:"regional_zone"`
}

// euZone is the default regional zone.
var euZone = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE", "IT", "LV", "LT",
	"LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
}

// DefaultShippingConfig returns USD media-mail style tariffs.
func DefaultShippingConfig() ShippingConfig {
	return ShippingConfig{
		Currency:      "USD",
		Domestic:      Rate{First: 5.00, Additional: 1.50},
		Regional:      Rate{First: 12.00, Additional: 3.00},
		International: Rate{First: 18.00, Additional: 4.00},
		RegionalZone:  append([]string(nil), euZone...),
	}
}

// Validate enforces 0 <= additional < first for every zone. That is what
// keeps the estimate non-decreasing in item count with each extra item
// costing less than the first.
func (c ShippingConfig) Validate() error {
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("shipping currency is required")
	}
	for _, z := range []struct {
		name string
		rate Rate
	}{
		{"domestic", c.Domestic},
		{"regional", c.Regional},
		{"international", c.International},
	} {
		if z.rate.Additional < 0 {
			return fmt.Errorf("%s additional rate must be >= 0, got %.2f", z.name, z.rate.Additional)
		}
		if z.rate.Additional >= z.rate.First {
			return fmt.Errorf("%s additional rate %.2f must be less than first item rate %.2f",
				z.name, z.rate.Additional, z.rate.First)
		}
	}
	return nil
}

type tariff struct {
	first      decimal.Decimal
	additional decimal.Decimal
}

// ShippingTable estimates combined shipping costs.
type ShippingTable struct {
	currency string
	rates    map[Zone]tariff
	regional map[string]bool
}

// NewShippingTable validates cfg and builds a table from it.
func NewShippingTable(cfg ShippingConfig) (*ShippingTable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &ShippingTable{
		currency: strings.ToUpper(cfg.Currency),
		rates: map[Zone]tariff{
			ZoneDomestic:      toTariff(cfg.Domestic),
			ZoneRegional:      toTariff(cfg.Regional),
			ZoneInternational: toTariff(cfg.International),
		},
		regional: make(map[string]bool, len(cfg.RegionalZone)),
	}
	for _, code := range cfg.RegionalZone {
		t.regional[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	return t, nil
}

func toTariff(r Rate) tariff {
	return tariff{
		first:      decimal.NewFromFloat(r.First).Round(2),
		additional: decimal.NewFromFloat(r.Additional).Round(2),
	}
}

// Currency is the currency every estimate is denominated in.
func (t *ShippingTable) Currency() string {
	return t.currency
}

// ZoneFor classifies a shipment. An unknown country on either side is
// international.
func (t *ShippingTable) ZoneFor(sellerCountry, destination string) Zone {
	from := strings.ToUpper(strings.TrimSpace(sellerCountry))
	to := strings.ToUpper(strings.TrimSpace(destination))
	switch {
	case from == "" || to == "":
		return ZoneInternational
	case from == to:
		return ZoneDomestic
	case t.regional[from] && t.regional[to]:
		return ZoneRegional
	default:
		return ZoneInternational
	}
}

// EstimateShippingCost returns first + (n-1)*additional for the zone between
// the seller and destination, or zero for n <= 0.
func (t *ShippingTable) EstimateShippingCost(s model.Seller, n int, destination string) model.Money {
	if n <= 0 {
		return model.Money{Amount: decimal.Zero, Currency: t.currency}
	}
	country := s.CountryCode
	if country == "" {
		country = NormalizeCountryCode(s.Location)
	}
	rate := t.rates[t.ZoneFor(country, destination)]
	cost := rate.first.Add(rate.additional.Mul(decimal.NewFromInt(int64(n - 1))))
	return model.Money{Amount: cost, Currency: t.currency}
}
