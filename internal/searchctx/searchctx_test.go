package searchctx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/guarzo/vinyldeals/internal/ingest"
	"github.com/guarzo/vinyldeals/internal/model"
	"github.com/guarzo/vinyldeals/internal/store"
)

const discogsListing = `{"id": 101, "price": {"value": "25.00", "currency": "USD"},
	"seller": {"id": 7, "username": "crate", "location": "Portland, OR", "stats": {"rating": "99.1", "total": 420}},
	"release": {"id": 555, "title": "Blue Train", "artist": "John Coltrane", "year": 1957}}`

func testRun() *Run {
	return &Run{
		RunID:       "run-42",
		Destination: " us ",
		Collection:  []string{"111", " "},
		Wantlist:    []string{"555", "555"},
		Listings: []ingest.RawListing{
			{Platform: model.PlatformDiscogs, Payload: json.RawMessage(discogsListing)},
			{Platform: model.PlatformDiscogs, Payload: json.RawMessage(`{"id": `)},
			{Platform: "BANDCAMP", Payload: json.RawMessage(`{}`)},
		},
	}
}

func assertRunContext(t *testing.T, c *Context) {
	t.Helper()
	if c.RunID != "run-42" {
		t.Errorf("Expected run id run-42, got %q", c.RunID)
	}
	if c.Destination != "US" {
		t.Errorf("Expected destination US, got %q", c.Destination)
	}
	if len(c.Listings) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(c.Listings))
	}
	if c.Listings[0].Key() != "DISCOGS:101" {
		t.Errorf("Expected DISCOGS:101, got %s", c.Listings[0].Key())
	}
	if len(c.Rejected) != 2 {
		t.Fatalf("Expected 2 rejected listings, got %d", len(c.Rejected))
	}
	if c.Rejected[0].Index != 1 || c.Rejected[1].Index != 2 {
		t.Errorf("Expected rejected indexes 1 and 2, got %d and %d", c.Rejected[0].Index, c.Rejected[1].Index)
	}
	if !errors.Is(c.Rejected[1].Err, ingest.ErrUnsupportedPlatform) {
		t.Errorf("Expected ErrUnsupportedPlatform, got %v", c.Rejected[1].Err)
	}
	if c.Received() != 3 {
		t.Errorf("Expected 3 received, got %d", c.Received())
	}
	if !reflect.DeepEqual(c.Collection, map[string]bool{"111": true}) {
		t.Errorf("Expected collection {111}, got %v", c.Collection)
	}
	if !reflect.DeepEqual(c.Wantlist, map[string]bool{"555": true}) {
		t.Errorf("Expected wantlist {555}, got %v", c.Wantlist)
	}
}

func TestFileProvider_SaveAndLoad(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	if err := p.Save(testRun()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := p.Load(context.Background(), "run-42")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertRunContext(t, c)
}

func TestFileProvider_LoadsBrotliFile(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(testRun())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run-42.json.br"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := NewFileProvider(dir).Load(context.Background(), "run-42")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertRunContext(t, c)
}

func TestFileProvider_NotFound(t *testing.T) {
	_, err := NewFileProvider(t.TempDir()).Load(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestFileProvider_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewFileProvider(dir).Load(context.Background(), "bad")
	if err == nil {
		t.Fatal("Expected error for corrupt file")
	}
	if errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestFileProvider_RejectsInvalidRunIDs(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	for _, id := range []string{"", "  ", "../etc", `a\b`, "a/b"} {
		_, err := p.Load(context.Background(), id)
		if err == nil {
			t.Errorf("Expected error for run id %q", id)
			continue
		}
		if errors.Is(err, ErrRunNotFound) {
			t.Errorf("Expected run id %q to be rejected, got %v", id, err)
		}
	}
}

func TestFileProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileProvider(t.TempDir()).Load(ctx, "run-42")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSQLProvider_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "vinyldeals.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	p := NewSQLProvider(st)
	if err := p.Save(ctx, testRun()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Saving again replaces the previous rows.
	if err := p.Save(ctx, testRun()); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	c, err := p.Load(ctx, "run-42")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertRunContext(t, c)

	if _, err := p.Load(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}
