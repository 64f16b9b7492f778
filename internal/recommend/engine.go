package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

// ErrStageOrder is returned when a session step is called out of order.
var ErrStageOrder = errors.New("recommendation stage out of order")

// Stage is the position of a Session in COLLECTING -> SCORING -> RANKED.
type Stage int

const (
	StageCollecting Stage = iota
	StageScoring
	StageRanked
)

func (s Stage) String() string {
	switch s {
	case StageCollecting:
		return "COLLECTING"
	case StageScoring:
		return "SCORING"
	case StageRanked:
		return "RANKED"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ShippingEstimator prices a parcel of n items from a seller to a destination.
type ShippingEstimator interface {
	EstimateShippingCost(s model.Seller, n int, destination string) model.Money
}

// Input is one run's matched, validated listings and seller analyses.
type Input struct {
	RunID       string
	Destination string
	Listings    []model.Listing
	// ItemIDs maps a listing key to its canonical item id.
	ItemIDs map[string]string
	// Analyses maps a seller key to its analysis.
	Analyses map[string]model.SellerAnalysis
}

// Output is the ranked recommendation set plus recovered warnings.
type Output struct {
	Recommendations []model.DealRecommendation
	Warnings        []model.Warning
	SellersSkipped  int
}

// Engine turns matched listings and seller analyses into ranked deals.
type Engine struct {
	cfg       Config
	shipping  ShippingEstimator
	converter *Converter
	logger    *slog.Logger
}

// NewEngine validates cfg and returns an Engine. A nil logger uses
// slog.Default().
func NewEngine(cfg Config, shipping ShippingEstimator, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping estimator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		shipping:  shipping,
		converter: NewConverter(cfg.BaseCurrency, cfg.Rates),
		logger:    logger,
	}, nil
}

// Converter returns the engine's currency converter.
func (e *Engine) Converter() *Converter {
	return e.converter
}

// Recommend drives a fresh session through every stage.
func (e *Engine) Recommend(in Input) (*Output, error) {
	s := e.NewSession(in)
	if err := s.Collect(); err != nil {
		return nil, err
	}
	if err := s.Score(); err != nil {
		return nil, err
	}
	if err := s.Rank(); err != nil {
		return nil, err
	}
	return s.Output()
}

type pricedListing struct {
	listing model.Listing
	itemID  string
	price   decimal.Decimal
}

type group struct {
	sellerKey string
	listings  []pricedListing
}

// Session is one run's pass through the engine. It is not safe for
// concurrent use.
type Session struct {
	engine *Engine
	in     Input
	stage  Stage
	scored bool

	groups      []*group
	itemPrices  map[string][]decimal.Decimal
	itemMedians map[string]decimal.Decimal

	recs     []model.DealRecommendation
	warnings []model.Warning
	skipped  int
}

// NewSession starts a session in COLLECTING.
func (e *Engine) NewSession(in Input) *Session {
	return &Session{
		engine:      e,
		in:          in,
		stage:       StageCollecting,
		itemPrices:  make(map[string][]decimal.Decimal),
		itemMedians: make(map[string]decimal.Decimal),
	}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	return s.stage
}

func (s *Session) require(stage Stage, step string) error {
	if s.stage != stage {
		return fmt.Errorf("%w: %s requires %s, session is %s", ErrStageOrder, step, stage, s.stage)
	}
	return nil
}

// Collect groups listings by seller in first-seen order and gathers per item
// prices in the base currency.
func (s *Session) Collect() error {
	if err := s.require(StageCollecting, "collect"); err != nil {
		return err
	}

	bySeller := make(map[string]*group)
	for _, l := range s.in.Listings {
		price, err := s.engine.converter.Convert(l.Price)
		if err != nil {
			s.warnings = append(s.warnings, model.Warning{
				Kind:    model.WarnMalformedListing,
				Ref:     l.Key(),
				Message: err.Error(),
			})
			continue
		}

		itemID := s.in.ItemIDs[l.Key()]
		if itemID == "" {
			itemID = l.Key()
		}
		key := l.Seller.Key()
		g, ok := bySeller[key]
		if !ok {
			g = &group{sellerKey: key}
			bySeller[key] = g
			s.groups = append(s.groups, g)
		}
		g.listings = append(g.listings, pricedListing{listing: l, itemID: itemID, price: price.Amount})
		s.itemPrices[itemID] = append(s.itemPrices[itemID], price.Amount)
	}
	for itemID, prices := range s.itemPrices {
		s.itemMedians[itemID] = median(prices)
	}

	s.stage = StageScoring
	return nil
}

// Score produces exactly one recommendation per seller group that has an
// analysis. Groups without one are skipped with a warning.
func (s *Session) Score() error {
	if err := s.require(StageScoring, "score"); err != nil {
		return err
	}
	if s.scored {
		return fmt.Errorf("%w: score already ran", ErrStageOrder)
	}

	s.recs = make([]model.DealRecommendation, 0, len(s.groups))
	for _, g := range s.groups {
		analysis, ok := s.in.Analyses[g.sellerKey]
		if !ok {
			s.skipped++
			s.warnings = append(s.warnings, model.Warning{
				Kind:    model.WarnSellerUnavailable,
				Ref:     g.sellerKey,
				Message: fmt.Sprintf("no seller analysis; %d listing(s) not recommended", len(g.listings)),
			})
			s.engine.logger.Warn("skipping seller without analysis",
				slog.String("seller", g.sellerKey),
				slog.Int("listings", len(g.listings)))
			continue
		}

		var rec model.DealRecommendation
		if len(g.listings) == 1 {
			rec = s.createSingleItemRecommendation(analysis, g)
		} else {
			rec = s.createMultiItemRecommendation(analysis, g)
		}
		s.recs = append(s.recs, rec)
	}

	s.scored = true
	return nil
}

// Rank sorts by score value descending, then estimated total cost ascending,
// then seller key so equal deals order the same way every run.
func (s *Session) Rank() error {
	if err := s.require(StageScoring, "rank"); err != nil {
		return err
	}
	if !s.scored {
		return fmt.Errorf("%w: rank requires score to run first", ErrStageOrder)
	}

	sort.SliceStable(s.recs, func(i, j int) bool {
		a, b := s.recs[i], s.recs[j]
		if a.ScoreValue != b.ScoreValue {
			return a.ScoreValue > b.ScoreValue
		}
		if !a.EstimatedTotalCost.Amount.Equal(b.EstimatedTotalCost.Amount) {
			return a.EstimatedTotalCost.Amount.LessThan(b.EstimatedTotalCost.Amount)
		}
		return a.SellerKey < b.SellerKey
	})

	s.stage = StageRanked
	return nil
}

// Output returns the ranked result. It is only available once RANKED.
func (s *Session) Output() (*Output, error) {
	if err := s.require(StageRanked, "output"); err != nil {
		return nil, err
	}
	out := &Output{
		Recommendations: append([]model.DealRecommendation{}, s.recs...),
		Warnings:        append([]model.Warning{}, s.warnings...),
		SellersSkipped:  s.skipped,
	}
	return out, nil
}

type terms struct {
	reputation float64
	wantlist   float64
	price      float64
	bundle     float64
}

func (s *Session) groupTerms(analysis model.SellerAnalysis, g *group) terms {
	var wanted int
	var priceSum float64
	for _, pl := range g.listings {
		if pl.listing.InWantlist {
			wanted++
		}
		priceSum += priceCompetitiveness(pl.price, s.itemMedians[pl.itemID], len(s.itemPrices[pl.itemID]))
	}
	n := float64(len(g.listings))
	return terms{
		reputation: clamp100(analysis.Reputation),
		wantlist:   100 * float64(wanted) / n,
		price:      priceSum / n,
		bundle:     bundleBonus(len(g.listings), s.engine.cfg.BundleSaturation),
	}
}

func (s *Session) createSingleItemRecommendation(analysis model.SellerAnalysis, g *group) model.DealRecommendation {
	t := s.groupTerms(analysis, g)
	w := s.engine.cfg.Weights
	total := w.Reputation + w.Wantlist + w.Price
	value := clamp100((w.Reputation*t.reputation + w.Wantlist*t.wantlist + w.Price*t.price) / total)

	rec := s.newRecommendation(model.SingleItemDeal, value, analysis, g)
	rec.Breakdown = fmt.Sprintf("Rep:%.1f Want:%.1f Price:%.1f", t.reputation, t.wantlist, t.price)
	return rec
}

func (s *Session) createMultiItemRecommendation(analysis model.SellerAnalysis, g *group) model.DealRecommendation {
	t := s.groupTerms(analysis, g)
	w := s.engine.cfg.Weights
	total := w.Reputation + w.Wantlist + w.Price + w.Bundle
	value := clamp100((w.Reputation*t.reputation + w.Wantlist*t.wantlist + w.Price*t.price + w.Bundle*t.bundle) / total)

	rec := s.newRecommendation(model.MultiItemDeal, value, analysis, g)
	rec.Breakdown = fmt.Sprintf("Rep:%.1f Want:%.1f Price:%.1f Bundle:%.1f", t.reputation, t.wantlist, t.price, t.bundle)
	return rec
}

var recommendationNamespace = uuid.MustParse("b7e1c0a4-2f55-4d1b-9c8e-3a6f90d2e417")

func (s *Session) newRecommendation(kind model.DealType, value float64, analysis model.SellerAnalysis, g *group) model.DealRecommendation {
	base := s.engine.converter.Base()

	ids := make([]string, 0, len(g.listings))
	items := decimal.Zero
	wanted := 0
	for _, pl := range g.listings {
		ids = append(ids, pl.listing.ListingID)
		items = items.Add(pl.price)
		if pl.listing.InWantlist {
			wanted++
		}
	}

	shipping := s.engine.shipping.EstimateShippingCost(analysis.Seller, len(g.listings), s.in.Destination)
	if converted, err := s.engine.converter.Convert(shipping); err == nil {
		shipping = converted
	} else {
		s.engine.logger.Warn("shipping estimate in unconvertible currency",
			slog.String("seller", g.sellerKey),
			slog.String("currency", shipping.Currency))
	}

	name := analysis.Seller.DisplayName
	if name == "" {
		name = analysis.Seller.SellerID
	}

	return model.DealRecommendation{
		ID:                 uuid.NewSHA1(recommendationNamespace, []byte(s.in.RunID+"|"+g.sellerKey)).String(),
		Type:               kind,
		Score:              DetermineDealScore(value),
		ScoreValue:         value,
		SellerKey:          g.sellerKey,
		SellerName:         name,
		ListingIDs:         ids,
		TotalItems:         len(g.listings),
		WantlistMatches:    wanted,
		ItemsCost:          model.Money{Amount: items, Currency: base},
		ShippingCost:       model.Money{Amount: shipping.Amount, Currency: base},
		EstimatedTotalCost: model.Money{Amount: items.Add(shipping.Amount), Currency: base},
	}
}
