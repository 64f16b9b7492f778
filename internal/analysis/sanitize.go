package analysis

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/matcher"
	"github.com/guarzo/vinyldeals/internal/model"
)

// SanitizeConfig holds the listing validation thresholds. Prices are compared
// in the base currency.
type SanitizeConfig struct {
	MinPrice float64 `toml:"min_price"` // listings below are placeholders or typos
	MaxPrice float64 `toml:"max_price"` // listings above are outliers
}

// DefaultSanitizeConfig returns default validation thresholds.
func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{
		MinPrice: 0.50,
		MaxPrice: 25000.00,
	}
}

// placeholderPrices are joke or test values sellers use to park listings.
var placeholderPrices = []string{"69420", "12345.67", "99999.99", "11111.11", "88888.88"}

// CurrencyConverter converts a listing price to the base currency.
type CurrencyConverter interface {
	Convert(m model.Money) (model.Money, error)
}

// ValidateListing returns a *MalformedListingError when a listing cannot take
// part in the run.
func ValidateListing(l model.Listing, cfg SanitizeConfig, conv CurrencyConverter) error {
	key := l.Key()
	malformed := func(reason string, err error) error {
		return &MalformedListingError{ListingKey: key, Reason: reason, Err: err}
	}

	if !l.Platform.Valid() {
		return malformed("unknown platform "+string(l.Platform), nil)
	}
	if strings.TrimSpace(l.ListingID) == "" {
		return malformed("missing listing id", nil)
	}
	if _, err := matcher.ParseYear(l.RawYear); err != nil {
		return malformed("bad year", err)
	}

	if l.Price.Amount.IsNegative() {
		return malformed("negative price", nil)
	}
	if isPlaceholderPrice(l.Price.Amount) {
		return malformed("placeholder price "+l.Price.Amount.String(), nil)
	}
	base, err := conv.Convert(l.Price)
	if err != nil {
		return malformed("unsupported currency", err)
	}
	price := base.Amount.InexactFloat64()
	if math.IsNaN(price) || price < cfg.MinPrice {
		return malformed("price below minimum", nil)
	}
	if cfg.MaxPrice > 0 && price > cfg.MaxPrice {
		return malformed("price above maximum", nil)
	}
	return nil
}

func isPlaceholderPrice(amount decimal.Decimal) bool {
	s := amount.StringFixed(2)
	for _, p := range placeholderPrices {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
