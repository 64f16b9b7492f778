package matcher

import (
	"errors"
	"math"
	"testing"

	"github.com/guarzo/vinyldeals/internal/model"
)

func listing(platform model.Platform, id, title, artist, year string) model.Listing {
	return model.Listing{
		Platform:  platform,
		ListingID: id,
		RawTitle:  title,
		RawArtist: artist,
		RawYear:   year,
	}
}

func TestFindOrCreateItemMatch_Scenario(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)

	a, ma, err := reg.FindOrCreateItemMatch(listing(model.PlatformDiscogs, "A", "Kind of Blue", "Miles Davis", "1959"))
	if err != nil {
		t.Fatalf("match A: %v", err)
	}
	if ma.Method != model.MatchNew || ma.Confidence != 100 {
		t.Errorf("Expected new match with confidence 100, got %s %.1f", ma.Method, ma.Confidence)
	}

	b, mb, err := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "B", "Kind Of Blue (Remastered)", "Miles Davis", "1959"))
	if err != nil {
		t.Fatalf("match B: %v", err)
	}
	if b.ID != a.ID {
		t.Errorf("Expected B to resolve to A's item %s, got %s", a.ID, b.ID)
	}
	if mb.Method != model.MatchExact || mb.Confidence != 100 {
		t.Errorf("Expected exact match with confidence 100, got %s %.1f", mb.Method, mb.Confidence)
	}

	c, _, err := reg.FindOrCreateItemMatch(listing(model.PlatformDiscogs, "C", "Abbey Road", "The Beatles", "1969"))
	if err != nil {
		t.Fatalf("match C: %v", err)
	}
	if c.ID == a.ID {
		t.Error("Expected Abbey Road to be a distinct item")
	}
	if reg.Len() != 2 {
		t.Errorf("Expected 2 canonical items, got %d", reg.Len())
	}
}

func TestFindOrCreateItemMatch_Fuzzy(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)
	first, _, _ := reg.FindOrCreateItemMatch(listing(model.PlatformDiscogs, "1", "Kind of Blue", "Miles Davis", "1959"))

	item, m, err := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "2", "Kind of Blu", "Miles Davis", "1959"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID != first.ID {
		t.Errorf("Expected fuzzy match to %s, got %s", first.ID, item.ID)
	}
	if m.Method != model.MatchFuzzy {
		t.Errorf("Expected fuzzy method, got %s", m.Method)
	}
	if math.Abs(m.Confidence-95) > 0.01 {
		t.Errorf("Expected confidence ~95, got %.2f", m.Confidence)
	}
}

func TestFindOrCreateItemMatch_TieKeepsEarliest(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)

	x, _, _ := reg.FindOrCreateItemMatch(listing(model.PlatformDiscogs, "x", "xyzdefghijklmnop", "artist", "1980"))
	y, my, _ := reg.FindOrCreateItemMatch(listing(model.PlatformDiscogs, "y", "abcdefghijklmxyz", "artist", "1980"))
	if my.Method != model.MatchNew || x.ID == y.ID {
		t.Fatalf("Expected x and y to be distinct items")
	}

	z, mz, _ := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "z", "abcdefghijklmnop", "artist", "1980"))
	if mz.Method != model.MatchFuzzy {
		t.Fatalf("Expected fuzzy match, got %s", mz.Method)
	}
	if z.ID != x.ID {
		t.Errorf("Expected tie to resolve to the earliest item %s, got %s", x.ID, z.ID)
	}
}

func TestFindOrCreateItemMatch_Deterministic(t *testing.T) {
	listings := []model.Listing{
		listing(model.PlatformDiscogs, "1", "Blue Train", "John Coltrane", "1957"),
		listing(model.PlatformEbay, "2", "Blue Train (Tone Poet)", "Coltrane, John", "2022"),
		listing(model.PlatformDiscogs, "3", "Giant Steps", "John Coltrane", "1960"),
		listing(model.PlatformEbay, "4", "Giant Step", "John Coltrane", ""),
		listing(model.PlatformDiscogs, "5", "A Love Supreme", "John Coltrane", "1965"),
	}

	assign := func() []string {
		reg := NewRegistry(DefaultConfig(), nil)
		ids := make([]string, 0, len(listings))
		for _, l := range listings {
			item, _, err := reg.FindOrCreateItemMatch(l)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ids = append(ids, item.ID)
		}
		return ids
	}

	first, second := assign(), assign()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("listing %d: assignment differs between runs (%s vs %s)", i, first[i], second[i])
		}
	}
}

func TestFindOrCreateItemMatch_MalformedInput(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)

	if _, m, err := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "1", "", "", "")); err != nil || m.Method != model.MatchNew {
		t.Errorf("Expected empty listing to create an item without error, got %v %s", err, m.Method)
	}

	_, _, err := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "2", "Title", "Artist", "someday"))
	if !errors.Is(err, ErrUnparseableYear) {
		t.Errorf("Expected ErrUnparseableYear, got %v", err)
	}
}

func TestFindOrCreateItemMatch_ItemsAreStable(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)
	first, _, err := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "1", "Horses", "Patti Smith", ""))
	if err != nil {
		t.Fatalf("match 1: %v", err)
	}
	second, m, err := reg.FindOrCreateItemMatch(listing(model.PlatformDiscogs, "2", "Horses", "Patti Smith", "1975"))
	if err != nil {
		t.Fatalf("match 2: %v", err)
	}

	if m.Method != model.MatchExact {
		t.Errorf("Expected exact match, got %s", m.Method)
	}
	if second != first {
		t.Errorf("Expected the same item for both listings, got %+v and %+v", first, second)
	}
	items := reg.Items()
	if len(items) != 1 || items[0] != first {
		t.Errorf("Expected Items to report %+v, got %+v", first, items)
	}
	if items[0].Year != 0 {
		t.Errorf("Expected year from the first listing (0), got %d", items[0].Year)
	}
}

type failingIDs struct{}

func (failingIDs) ItemID(string) (string, error) { return "", errors.New("catalog down") }

func TestFindOrCreateItemMatch_IDSourceError(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), failingIDs{})
	if _, _, err := reg.FindOrCreateItemMatch(listing(model.PlatformEbay, "1", "Horses", "Patti Smith", "1975")); err == nil {
		t.Error("Expected id source error to propagate")
	}
}
