// Package analysis runs one search run's listings through matching, seller
// analysis and recommendation, and persists the result as a single snapshot.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/guarzo/vinyldeals/internal/ingest"
	"github.com/guarzo/vinyldeals/internal/matcher"
	"github.com/guarzo/vinyldeals/internal/model"
	"github.com/guarzo/vinyldeals/internal/recommend"
	"github.com/guarzo/vinyldeals/internal/searchctx"
)

// SnapshotSaver persists a snapshot atomically, replacing any earlier
// snapshot for the same search run.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap *model.AnalysisSnapshot) error
}

// SellerAnalyzer profiles one seller. It must be safe for concurrent use.
type SellerAnalyzer interface {
	Analyze(s model.Seller, listings []model.Listing, destination string) (model.SellerAnalysis, error)
}

// SellerResolver maps a seller account to the identity it is grouped under.
type SellerResolver interface {
	Resolve(s model.Seller) model.Seller
}

// Outcome labels how a run ended.
type Outcome string

const (
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeEmpty             Outcome = "empty"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeCanceled          Outcome = "canceled"
	OutcomePersistenceFailed Outcome = "persistence_failed"
	OutcomeFailed            Outcome = "failed"
)

// Recorder receives one call per finished run.
type Recorder interface {
	RunFinished(outcome Outcome, stats model.RunStats, recommendations int, elapsed time.Duration)
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Context   searchctx.Provider
	Snapshots SnapshotSaver
	Sellers   SellerAnalyzer
	Engine    *recommend.Engine
}

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	Matcher     matcher.Config
	Sanitize    SanitizeConfig
	Concurrency int              // parallel seller analyses per run
	IDs         matcher.IDSource // canonical item ids; nil derives them from signatures
	Identities  SellerResolver   // merges seller accounts across platforms; nil groups per platform
	Logger      *slog.Logger     // nil uses slog.Default()
	Metrics     Recorder         // nil records nothing
	Now         func() time.Time // clock for snapshot timestamps
}

// Service is the analysis orchestrator. It keeps no per-run state, so
// concurrent RunAnalysis calls never share a working set.
type Service struct {
	deps    Deps
	opts    Options
	workers int
	logger  *slog.Logger
}

// NewService checks deps and applies option defaults.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Context == nil || deps.Snapshots == nil || deps.Sellers == nil || deps.Engine == nil {
		return nil, fmt.Errorf("analysis service requires a context provider, snapshot store, seller analyzer and engine")
	}
	if opts.Matcher.Threshold <= 0 {
		opts.Matcher = matcher.DefaultConfig()
	}
	if opts.Sanitize == (SanitizeConfig{}) {
		opts.Sanitize = DefaultSanitizeConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > 10 {
			workers = 10
		}
	}

	return &Service{deps: deps, opts: opts, workers: workers, logger: logger}, nil
}

// RunAnalysis analyzes one search run and persists the snapshot. Per listing
// and per seller problems are recorded as warnings on the snapshot. Errors
// are returned only when the run cannot be loaded, is canceled, or cannot be
// persisted; in each case nothing from the run is stored.
func (s *Service) RunAnalysis(ctx context.Context, searchRunID string) (*model.AnalysisSnapshot, error) {
	start := time.Now()
	logger := s.logger.With(slog.String("search_run_id", searchRunID))

	snap, err := s.run(ctx, searchRunID, logger)
	outcome := classify(snap, err)
	elapsed := time.Since(start)

	if s.opts.Metrics != nil {
		var stats model.RunStats
		recs := 0
		if snap != nil {
			stats = snap.Stats
			recs = len(snap.Recommendations)
		}
		s.opts.Metrics.RunFinished(outcome, stats, recs, elapsed)
	}

	if err != nil {
		logger.Error("analysis failed",
			slog.String("outcome", string(outcome)),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err))
		return nil, err
	}

	logger.Info("analysis complete",
		slog.String("outcome", string(outcome)),
		slog.Int("received", snap.Stats.ListingsReceived),
		slog.Int("analyzed", snap.Stats.ListingsAnalyzed),
		slog.Int("malformed", snap.Stats.ListingsMalformed),
		slog.Int("items", len(snap.Items)),
		slog.Int("sellers", len(snap.Sellers)),
		slog.Int("sellers_skipped", snap.Stats.SellersSkipped),
		slog.Int("recommendations", len(snap.Recommendations)),
		slog.Duration("elapsed", elapsed))
	return snap, nil
}

func classify(snap *model.AnalysisSnapshot, err error) Outcome {
	var pf *PersistenceFailure
	switch {
	case err == nil && snap.Stats.EmptyResultSet:
		return OutcomeEmpty
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ErrSearchRunNotFound):
		return OutcomeNotFound
	case errors.As(err, &pf):
		return OutcomePersistenceFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}

func (s *Service) run(ctx context.Context, searchRunID string, logger *slog.Logger) (*model.AnalysisSnapshot, error) {
	sc, err := s.deps.Context.Load(ctx, searchRunID)
	if err != nil {
		if errors.Is(err, ErrSearchRunNotFound) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, canceled(searchRunID, ctx.Err())
		}
		return nil, fmt.Errorf("load search context for run %s: %w", searchRunID, err)
	}

	converter := s.deps.Engine.Converter()
	snap := model.NewSnapshot(uuid.NewString(), searchRunID, sc.Destination, converter.Base(), s.opts.Now().UTC())
	snap.Stats.ListingsReceived = sc.Received()

	for _, r := range sc.Rejected {
		s.malformed(snap, logger, fmt.Sprintf("%s#%d", r.Platform, r.Index), r.Err)
	}

	listings := s.prepare(sc, snap, converter, logger)
	if len(listings) == 0 {
		snap.Stats.EmptyResultSet = true
		logger.Info("no usable listings", slog.Any("reason", ErrEmptyResultSet))
		return s.persist(ctx, snap)
	}

	itemIDs, listings, err := s.match(listings, snap, logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(searchRunID, err)
	}
	snap.Stats.ListingsAnalyzed = len(listings)

	analyses, reasons, err := s.analyzeSellers(ctx, listings, sc.Destination, snap, logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(searchRunID, ctx.Err())
		}
		return nil, err
	}

	out, err := s.deps.Engine.Recommend(recommend.Input{
		RunID:       searchRunID,
		Destination: sc.Destination,
		Listings:    listings,
		ItemIDs:     itemIDs,
		Analyses:    analyses,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend for run %s: %w", searchRunID, err)
	}
	snap.Recommendations = append(snap.Recommendations, out.Recommendations...)
	snap.Stats.SellersSkipped = out.SellersSkipped
	for _, w := range out.Warnings {
		switch w.Kind {
		case model.WarnMalformedListing:
			snap.Stats.ListingsMalformed++
			snap.Stats.ListingsAnalyzed--
		case model.WarnSellerUnavailable:
			if reason := reasons[w.Ref]; reason != "" {
				w.Message = reason + "; " + w.Message
			}
		}
		snap.Warnings = append(snap.Warnings, w)
	}

	if err := ctx.Err(); err != nil {
		return nil, canceled(searchRunID, err)
	}
	return s.persist(ctx, snap)
}

// prepare flags release set membership, resolves seller identities, drops
// invalid listings and keeps the first of any listings sharing a platform
// listing id.
func (s *Service) prepare(sc *searchctx.Context, snap *model.AnalysisSnapshot, conv CurrencyConverter, logger *slog.Logger) []model.Listing {
	listings := make([]model.Listing, len(sc.Listings))
	copy(listings, sc.Listings)
	if s.opts.Identities != nil {
		for i := range listings {
			listings[i].Seller = s.opts.Identities.Resolve(listings[i].Seller)
		}
	}
	ingest.ApplyReleaseSets(listings, sc.Collection, sc.Wantlist)

	seen := make(map[string]bool, len(listings))
	valid := listings[:0]
	for _, l := range listings {
		if err := ValidateListing(l, s.opts.Sanitize, conv); err != nil {
			s.malformed(snap, logger, l.Key(), err)
			continue
		}
		if seen[l.Key()] {
			snap.Warnings = append(snap.Warnings, model.Warning{
				Kind:    model.WarnDuplicateListing,
				Ref:     l.Key(),
				Message: "duplicate listing id; first occurrence kept",
			})
			logger.Debug("dropping duplicate listing", slog.String("listing", l.Key()))
			continue
		}
		seen[l.Key()] = true
		valid = append(valid, l)
	}
	return valid
}

// match resolves listings sequentially so canonical item creation order, and
// therefore ids and tie breaks, follow listing order.
func (s *Service) match(listings []model.Listing, snap *model.AnalysisSnapshot, logger *slog.Logger) (map[string]string, []model.Listing, error) {
	registry := matcher.NewRegistry(s.opts.Matcher, s.opts.IDs)
	itemIDs := make(map[string]string, len(listings))
	matched := listings[:0]

	for _, l := range listings {
		item, m, err := registry.FindOrCreateItemMatch(l)
		if errors.Is(err, matcher.ErrUnparseableYear) {
			s.malformed(snap, logger, l.Key(), &MalformedListingError{ListingKey: l.Key(), Reason: "bad year", Err: err})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("match listing %s: %w", l.Key(), err)
		}
		itemIDs[l.Key()] = item.ID
		snap.Matches = append(snap.Matches, model.ItemMatch{
			ListingKey: l.Key(),
			ItemID:     item.ID,
			Confidence: m.Confidence,
			Method:     m.Method,
		})
		matched = append(matched, l)
	}

	snap.Items = append(snap.Items, registry.Items()...)
	return itemIDs, matched, nil
}

type sellerGroup struct {
	seller   model.Seller
	listings []model.Listing
}

type sellerResult struct {
	analysis    model.SellerAnalysis
	unavailable *SellerAnalysisUnavailable
}

// analyzeSellers profiles every seller in parallel. Results are collected by
// first-seen seller order so the snapshot does not depend on scheduling.
func (s *Service) analyzeSellers(ctx context.Context, listings []model.Listing, destination string, snap *model.AnalysisSnapshot, logger *slog.Logger) (map[string]model.SellerAnalysis, map[string]string, error) {
	var groups []*sellerGroup
	byKey := make(map[string]*sellerGroup)
	for _, l := range listings {
		key := l.Seller.Key()
		g, ok := byKey[key]
		if !ok {
			g = &sellerGroup{seller: l.Seller}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.listings = append(g.listings, l)
	}

	results := make([]sellerResult, len(groups))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, g := range groups {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			a, err := s.deps.Sellers.Analyze(g.seller, g.listings, destination)
			var unavailable *SellerAnalysisUnavailable
			if errors.As(err, &unavailable) {
				results[i].unavailable = unavailable
				return nil
			}
			if err != nil {
				return fmt.Errorf("analyze seller %s: %w", g.seller.Key(), err)
			}
			results[i].analysis = a
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	analyses := make(map[string]model.SellerAnalysis, len(groups))
	reasons := make(map[string]string)
	for i, g := range groups {
		if u := results[i].unavailable; u != nil {
			reasons[g.seller.Key()] = u.Reason
			logger.Warn("seller analysis unavailable",
				slog.String("seller", g.seller.Key()),
				slog.String("reason", u.Reason))
			continue
		}
		analyses[g.seller.Key()] = results[i].analysis
		snap.Sellers = append(snap.Sellers, results[i].analysis)
	}
	return analyses, reasons, nil
}

func (s *Service) persist(ctx context.Context, snap *model.AnalysisSnapshot) (*model.AnalysisSnapshot, error) {
	if err := s.deps.Snapshots.SaveSnapshot(ctx, snap); err != nil {
		return nil, &PersistenceFailure{SearchRunID: snap.SearchRunID, Err: err}
	}
	return snap, nil
}

func (s *Service) malformed(snap *model.AnalysisSnapshot, logger *slog.Logger, ref string, err error) {
	snap.Stats.ListingsMalformed++
	snap.Warnings = append(snap.Warnings, model.Warning{
		Kind:    model.WarnMalformedListing,
		Ref:     ref,
		Message: err.Error(),
	})
	logger.Debug("excluding malformed listing", slog.String("listing", ref), slog.Any("error", err))
}

func canceled(searchRunID string, err error) error {
	return fmt.Errorf("analysis of search run %s canceled: %w", searchRunID, err)
}
