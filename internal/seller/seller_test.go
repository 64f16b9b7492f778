package seller

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

func TestNormalizeCountryCode(t *testing.T) {
	tests := []struct {
		location string
		expected string
	}{
		{"Los Angeles, CA", "US"},
		{"Toronto, Canada", "CA"},
		{"Toronto, ON", "CA"},
		{"Wilmington, DE", "US"},
		{"DE", "DE"},
		{"Berlin, Germany", "DE"},
		{"München, Deutschland", "DE"},
		{"Portland, OR", "US"},
		{"Atlanta, Georgia", "US"},
		{"Brooklyn NY 11201", "US"},
		{"Beverly Hills CA 90210-1234", "US"},
		{"London, Ontario", "CA"},
		{"Manchester", "GB"},
		{"U.S.A.", "US"},
		{"Sydney, NSW, Australia", "AU"},
		{"somewhere nice", ""},
		{"", ""},
		{" , , ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			result := NormalizeCountryCode(tt.location)
			if result != tt.expected {
				t.Errorf("NormalizeCountryCode(%q) = %q, expected %q", tt.location, result, tt.expected)
			}
		})
	}
}

func TestShippingConfigValidate(t *testing.T) {
	cfg := DefaultShippingConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := DefaultShippingConfig()
	bad.Domestic.Additional = bad.Domestic.First
	if err := bad.Validate(); err == nil {
		t.Error("Expected error when additional equals first")
	}

	bad = DefaultShippingConfig()
	bad.International.Additional = -1
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for negative additional rate")
	}
}

func TestEstimateShippingCost_Zones(t *testing.T) {
	table, err := NewShippingTable(DefaultShippingConfig())
	if err != nil {
		t.Fatalf("NewShippingTable: %v", err)
	}

	tests := []struct {
		name     string
		seller   model.Seller
		dest     string
		n        int
		expected string
	}{
		{"domestic single", model.Seller{CountryCode: "US"}, "US", 1, "5"},
		{"domestic three", model.Seller{CountryCode: "US"}, "US", 3, "8"},
		{"regional", model.Seller{CountryCode: "DE"}, "FR", 2, "15"},
		{"international", model.Seller{CountryCode: "DE"}, "US", 1, "18"},
		{"location fallback", model.Seller{Location: "Austin, TX"}, "US", 1, "5"},
		{"unknown seller country", model.Seller{}, "US", 1, "18"},
		{"unknown destination", model.Seller{CountryCode: "US"}, "", 1, "18"},
		{"zero items", model.Seller{CountryCode: "US"}, "US", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.EstimateShippingCost(tt.seller, tt.n, tt.dest)
			if !got.Amount.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Expected %s, got %s", tt.expected, got.Amount)
			}
			if got.Currency != "USD" {
				t.Errorf("Expected USD, got %s", got.Currency)
			}
		})
	}
}

func TestEstimateShippingCost_MonotonicAndMarginal(t *testing.T) {
	table, err := NewShippingTable(DefaultShippingConfig())
	if err != nil {
		t.Fatalf("NewShippingTable: %v", err)
	}

	sellers := []model.Seller{
		{CountryCode: "US"},
		{CountryCode: "DE"},
		{CountryCode: "JP"},
		{Location: "somewhere"},
	}
	dests := []string{"US", "DE", "FR", "GB", ""}

	for _, s := range sellers {
		for _, dest := range dests {
			single := table.EstimateShippingCost(s, 1, dest).Amount
			prev := table.EstimateShippingCost(s, 1, dest).Amount
			for n := 2; n <= 25; n++ {
				cur := table.EstimateShippingCost(s, n, dest).Amount
				if cur.LessThan(prev) {
					t.Errorf("seller %+v dest %q: cost(%d)=%s < cost(%d)=%s", s, dest, n, cur, n-1, prev)
				}
				if cur.Sub(prev).GreaterThan(single) {
					t.Errorf("seller %+v dest %q: marginal cost at %d exceeds single item cost", s, dest, n)
				}
				prev = cur
			}
		}
	}
}

func TestScoreSellerReputation(t *testing.T) {
	cfg := DefaultReputationConfig()

	tests := []struct {
		name   string
		seller model.Seller
		min    float64
		max    float64
	}{
		{"established seller", model.Seller{FeedbackScore: 98.5, FeedbackCount: 1500}, 90, 100},
		{"perfect seller", model.Seller{FeedbackScore: 100, PositivePct: 100, FeedbackCount: 10000}, 99.99, 100},
		{"new seller", model.Seller{}, 30, 40},
		{"few ratings", model.Seller{FeedbackScore: 100, PositivePct: 100, FeedbackCount: 3}, 35, 90},
		{"poor seller", model.Seller{FeedbackScore: 60, PositivePct: 60, FeedbackCount: 5000}, 55, 65},
		{"garbage input", model.Seller{FeedbackScore: math.NaN(), PositivePct: math.Inf(1), FeedbackCount: -4}, 0, 100},
		{"out of range", model.Seller{FeedbackScore: 250, PositivePct: -10, FeedbackCount: 2000}, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreSellerReputation(tt.seller, cfg)
			if math.IsNaN(got) || got < tt.min || got > tt.max {
				t.Errorf("Expected reputation in [%.2f, %.2f], got %.4f", tt.min, tt.max, got)
			}
		})
	}
}

func TestScoreSellerReputation_ZeroFeedbackIsNotZero(t *testing.T) {
	got := ScoreSellerReputation(model.Seller{FeedbackScore: 0, FeedbackCount: 0}, DefaultReputationConfig())
	if got <= 0 || got > 100 {
		t.Errorf("Expected a finite non-zero score, got %.4f", got)
	}
}

func TestScoreSellerReputation_DiminishingReturns(t *testing.T) {
	cfg := DefaultReputationConfig()
	s := model.Seller{FeedbackScore: 99, PositivePct: 99}

	score := func(count int) float64 {
		s.FeedbackCount = count
		return ScoreSellerReputation(s, cfg)
	}

	prevGain := math.Inf(1)
	for count := 0; count < 200; count++ {
		gain := score(count+1) - score(count)
		if gain < 0 {
			t.Fatalf("score decreased at count %d", count)
		}
		if gain > prevGain+1e-9 {
			t.Fatalf("marginal gain grew at count %d: %.6f > %.6f", count, gain, prevGain)
		}
		prevGain = gain
	}

	if a, b := score(1000), score(10000); math.Abs(a-b) > 1e-9 {
		t.Errorf("Expected saturation at 1000 ratings, got %.4f vs %.4f", a, b)
	}
}

func TestAnalyze(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	s := model.Seller{
		Platform:      model.PlatformDiscogs,
		SellerID:      "s1",
		DisplayName:   "Groove Merchant",
		Location:      "Los Angeles, CA",
		FeedbackScore: 98.5,
		FeedbackCount: 1500,
	}
	listings := []model.Listing{
		{ListingID: "a", InWantlist: true},
		{ListingID: "b", InWantlist: true},
		{ListingID: "c", InCollection: true},
	}

	got, err := a.Analyze(s, listings, "US")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.SellerKey != "DISCOGS:s1" {
		t.Errorf("Expected seller key DISCOGS:s1, got %s", got.SellerKey)
	}
	if got.Seller.CountryCode != "US" {
		t.Errorf("Expected country US, got %q", got.Seller.CountryCode)
	}
	if got.ListingCount != 3 || got.WantlistCount != 2 || got.CollectionCount != 1 {
		t.Errorf("Unexpected counts: %+v", got)
	}
	if got.Reputation < 90 {
		t.Errorf("Expected reputation >= 90, got %.2f", got.Reputation)
	}
	three := got.CombinedShipping.Amount
	if !three.LessThan(got.PerItemShipping.Amount.Mul(decimal.NewFromInt(3))) {
		t.Errorf("Expected combined shipping %s below 3x single %s", three, got.PerItemShipping.Amount)
	}
}

func TestAnalyze_Unavailable(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	for _, s := range []model.Seller{
		{Platform: model.PlatformEbay},
		{Platform: "AMAZON", SellerID: "x"},
	} {
		_, err := a.Analyze(s, nil, "US")
		var unavailable *UnavailableError
		if !errors.As(err, &unavailable) {
			t.Errorf("Expected UnavailableError for %+v, got %v", s, err)
		}
	}
}

func TestNewAnalyzer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reputation.NewSellerScore = 0
	if _, err := NewAnalyzer(cfg); err == nil {
		t.Error("Expected error for zero new seller score")
	}
}
