package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies the marketplace a listing was found on.
type Platform string

const (
	PlatformDiscogs Platform = "DISCOGS"
	PlatformEbay    Platform = "EBAY"
)

// Valid reports whether p is one of the supported marketplaces.
func (p Platform) Valid() bool {
	return p == PlatformDiscogs || p == PlatformEbay
}

// Money is an amount in a specific currency. Amounts are never float64.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money from a decimal string such as "45.00".
func NewMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: d, Currency: currency}, nil
}

// Listing is one marketplace offer, normalized at ingestion so the analysis
// pipeline never sees platform specific field names.
type Listing struct {
	Platform        Platform  `json:"platform"`
	ListingID       string    `json:"listing_id"`
	ReleaseID       string    `json:"release_id,omitempty"`
	RawTitle        string    `json:"raw_title"`
	RawArtist       string    `json:"raw_artist"`
	RawYear         string    `json:"raw_year,omitempty"`
	Price           Money     `json:"price"`
	MediaCondition  Condition `json:"media_condition"`
	SleeveCondition Condition `json:"sleeve_condition,omitempty"`
	Seller          Seller    `json:"seller"`
	InCollection    bool      `json:"in_collection"`
	InWantlist      bool      `json:"in_wantlist"`
}

// Key is unique across platforms.
func (l Listing) Key() string {
	return string(l.Platform) + ":" + l.ListingID
}

// Seller is a normalized seller identity keyed by platform and seller id.
type Seller struct {
	Platform      Platform `json:"platform"`
	SellerID      string   `json:"seller_id"`
	DisplayName   string   `json:"display_name"`
	Location      string   `json:"location,omitempty"`
	CountryCode   string   `json:"country_code,omitempty"`
	FeedbackScore float64  `json:"feedback_score"` // 0-100, platform normalized
	FeedbackCount int      `json:"feedback_count"`
	PositivePct   float64  `json:"positive_pct"`
}

// Key is unique across platforms.
func (s Seller) Key() string {
	return string(s.Platform) + ":" + s.SellerID
}

// CanonicalItem is the deduplicated identity of one release within a run.
type CanonicalItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Year         int    `json:"year,omitempty"` // 0 when unknown
	Signature    string `json:"signature"`
	FirstListing string `json:"first_listing"`
}

// MatchMethod records how a listing was resolved to its canonical item.
type MatchMethod string

const (
	MatchExact MatchMethod = "exact"
	MatchFuzzy MatchMethod = "fuzzy"
	MatchNew   MatchMethod = "new"
)

// ItemMatch links a listing to its canonical item.
type ItemMatch struct {
	ListingKey string      `json:"listing_key"`
	ItemID     string      `json:"item_id"`
	Confidence float64     `json:"confidence"` // 0-100
	Method     MatchMethod `json:"method"`
}

// SellerAnalysis is the scored per-seller profile for one search run.
type SellerAnalysis struct {
	SellerKey        string  `json:"seller_key"`
	Seller           Seller  `json:"seller"`
	Reputation       float64 `json:"reputation"`
	PerItemShipping  Money   `json:"per_item_shipping"`
	CombinedShipping Money   `json:"combined_shipping"`
	ListingCount     int     `json:"listing_count"`
	WantlistCount    int     `json:"wantlist_count"`
	CollectionCount  int     `json:"collection_count"`
}

// DealType distinguishes one-listing deals from bundles.
type DealType string

const (
	SingleItemDeal DealType = "SINGLE_ITEM_DEAL"
	MultiItemDeal  DealType = "MULTI_ITEM_DEAL"
)

// DealScore is the banded form of a numeric score value.
type DealScore string

const (
	DealExcellent DealScore = "EXCELLENT"
	DealVeryGood  DealScore = "VERY_GOOD"
	DealGood      DealScore = "GOOD"
	DealFair      DealScore = "FAIR"
	DealPoor      DealScore = "POOR"
)

// DealRecommendation is the terminal output: one per seller per run.
type DealRecommendation struct {
	ID                 string    `json:"id"`
	Type               DealType  `json:"type"`
	Score              DealScore `json:"score"`
	ScoreValue         float64   `json:"score_value"`
	SellerKey          string    `json:"seller_key"`
	SellerName         string    `json:"seller_name"`
	ListingIDs         []string  `json:"listing_ids"`
	TotalItems         int       `json:"total_items"`
	WantlistMatches    int       `json:"wantlist_matches"`
	ItemsCost          Money     `json:"items_cost"`
	ShippingCost       Money     `json:"shipping_cost"`
	EstimatedTotalCost Money     `json:"estimated_total_cost"`
	Breakdown          string    `json:"breakdown,omitempty"`
}

// WarningKind classifies recoverable problems recorded during a run.
type WarningKind string

const (
	WarnMalformedListing  WarningKind = "malformed_listing"
	WarnDuplicateListing  WarningKind = "duplicate_listing"
	WarnSellerUnavailable WarningKind = "seller_analysis_unavailable"
)

// Warning is a recovered per-listing or per-seller failure.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Ref     string      `json:"ref"`
	Message string      `json:"message"`
}

// RunStats summarizes a run for logs and listings.
type RunStats struct {
	ListingsReceived  int  `json:"listings_received"`
	ListingsAnalyzed  int  `json:"listings_analyzed"`
	ListingsMalformed int  `json:"listings_malformed"`
	SellersSkipped    int  `json:"sellers_skipped"`
	EmptyResultSet    bool `json:"empty_result_set"`
}

// AnalysisSnapshot is everything one analysis run produced. It is persisted
// as a unit keyed by search run id.
type AnalysisSnapshot struct {
	AnalysisID      string               `json:"analysis_id"`
	SearchRunID     string               `json:"search_run_id"`
	CreatedAt       time.Time            `json:"created_at"`
	Destination     string               `json:"destination"`
	Currency        string               `json:"currency"`
	Items           []CanonicalItem      `json:"items"`
	Matches         []ItemMatch          `json:"matches"`
	Sellers         []SellerAnalysis     `json:"sellers"`
	Recommendations []DealRecommendation `json:"recommendations"`
	Warnings        []Warning            `json:"warnings"`
	Stats           RunStats             `json:"stats"`
}

// NewSnapshot returns a snapshot with empty, non-nil collections.
func NewSnapshot(analysisID, searchRunID, destination, currency string, createdAt time.Time) *AnalysisSnapshot {
	return &AnalysisSnapshot{
		AnalysisID:      analysisID,
		SearchRunID:     searchRunID,
		CreatedAt:       createdAt,
		Destination:     destination,
		Currency:        currency,
		Items:           []CanonicalItem{},
		Matches:         []ItemMatch{},
		Sellers:         []SellerAnalysis{},
		Recommendations: []DealRecommendation{},
		Warnings:        []Warning{},
	}
}
