package recommend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

// ErrUnknownCurrency is returned when no rate is configured for a currency.
var ErrUnknownCurrency = errors.New("unknown currency")

// Converter converts money into a single base currency at fixed rates.
type Converter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewConverter builds a Converter. The base currency always converts at 1.
func NewConverter(base string, rates map[string]float64) *Converter {
	c := &Converter{
		base:  strings.ToUpper(strings.TrimSpace(base)),
		rates: make(map[string]decimal.Decimal, len(rates)+1),
	}
	for code, rate := range rates {
		c.rates[strings.ToUpper(strings.TrimSpace(code))] = decimal.NewFromFloat(rate)
	}
	c.rates[c.base] = decimal.NewFromInt(1)
	return c
}

// Base returns the base currency code.
func (c *Converter) Base() string {
	return c.base
}

// Supports reports whether currency has a configured rate.
func (c *Converter) Supports(currency string) bool {
	_, ok := c.rates[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// Convert returns m in the base currency, rounded to cents.
func (c *Converter) Convert(m model.Money) (model.Money, error) {
	code := strings.ToUpper(strings.TrimSpace(m.Currency))
	rate, ok := c.rates[code]
	if !ok {
		return model.Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, m.Currency)
	}
	if code == c.base {
		return model.Money{Amount: m.Amount, Currency: c.base}, nil
	}
	return model.Money{Amount: m.Amount.Mul(rate).Round(2), Currency: c.base}, nil
}
