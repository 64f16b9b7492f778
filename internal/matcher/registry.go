package matcher

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/guarzo/vinyldeals/internal/model"
)

// DefaultThreshold is the similarity a fuzzy match must exceed.
const DefaultThreshold = 0.85

// Config tunes the matcher.
type Config struct {
	Weights   Weights `toml:"weights"`
	Threshold float64 `toml:"threshold"`
}

// DefaultConfig returns the default matcher tuning.
func DefaultConfig() Config {
	return Config{
		Weights:   DefaultWeights(),
		Threshold: DefaultThreshold,
	}
}

// IDSource assigns canonical item ids from a signature.
type IDSource interface {
	ItemID(signature string) (string, error)
}

var itemNamespace = uuid.MustParse("5d2b3c1e-9f7a-4b8e-a1c3-6e0f2d4b7a90")

// SignatureIDs derives a stable UUIDv5 from the signature, so the same run
// matched twice assigns identical ids.
type SignatureIDs struct{}

func (SignatureIDs) ItemID(signature string) (string, error) {
	return uuid.NewSHA1(itemNamespace, []byte(signature)).String(), nil
}

// Signature is the exact-match key of a normalized title and artist.
func Signature(title, artist string) string {
	return title + "|" + artist
}

// Match describes how a listing resolved.
type Match struct {
	Confidence float64 // 0-100
	Method     model.MatchMethod
}

type entry struct {
	item   model.CanonicalItem
	fields Fields
}

// Registry is the working set of canonical items for a single analysis run.
// It is not safe for concurrent use; each run owns its own Registry. An item
// never changes after it is created: its year is the first listing's year,
// even when later listings of the same release carry one.
type Registry struct {
	cfg         Config
	ids         IDSource
	items       []*entry
	bySignature map[string]*entry
}

// NewRegistry creates an empty run-scoped registry. A nil ids uses
// SignatureIDs.
func NewRegistry(cfg Config, ids IDSource) *Registry {
	if ids == nil {
		ids = SignatureIDs{}
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Registry{
		cfg:         cfg,
		ids:         ids,
		bySignature: make(map[string]*entry),
	}
}

// FindOrCreateItemMatch resolves a listing to a canonical item: exact
// normalized signature first, then the best fuzzy match above the threshold
// (earliest item wins ties), otherwise a new item built from the listing.
func (r *Registry) FindOrCreateItemMatch(l model.Listing) (model.CanonicalItem, Match, error) {
	year, err := ParseYear(l.RawYear)
	if err != nil {
		return model.CanonicalItem{}, Match{}, err
	}
	fields := Fields{
		Title:  NormalizeText(l.RawTitle),
		Artist: NormalizeArtist(l.RawArtist),
		Year:   year,
	}
	sig := Signature(fields.Title, fields.Artist)

	if e, ok := r.bySignature[sig]; ok {
		return e.item, Match{Confidence: 100, Method: model.MatchExact}, nil
	}

	var best *entry
	bestScore := 0.0
	for _, e := range r.items {
		score := normalizedSimilarity(fields, e.fields, r.cfg.Weights)
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	if best != nil && bestScore > r.cfg.Threshold {
		return best.item, Match{Confidence: bestScore * 100, Method: model.MatchFuzzy}, nil
	}

	id, err := r.ids.ItemID(sig)
	if err != nil {
		return model.CanonicalItem{}, Match{}, fmt.Errorf("assign item id: %w", err)
	}
	e := &entry{
		item: model.CanonicalItem{
			ID:           id,
			Title:        fields.Title,
			Artist:       fields.Artist,
			Year:         year,
			Signature:    sig,
			FirstListing: l.Key(),
		},
		fields: fields,
	}
	r.items = append(r.items, e)
	r.bySignature[sig] = e

	return e.item, Match{Confidence: 100, Method: model.MatchNew}, nil
}

// Items returns the canonical items in creation order.
func (r *Registry) Items() []model.CanonicalItem {
	out := make([]model.CanonicalItem, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, e.item)
	}
	return out
}

// Len returns the number of canonical items created so far.
func (r *Registry) Len() int {
	return len(r.items)
}
