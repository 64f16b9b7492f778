// Package searchctx loads what a search execution produced for one run: the
// fetched listings, the user's release sets and the shipping destination.
package searchctx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guarzo/vinyldeals/internal/ingest"
	"github.com/guarzo/vinyldeals/internal/model"
)

// ErrRunNotFound is returned when a provider has no record of a run id.
var ErrRunNotFound = errors.New("search run not found")

// Provider loads the execution context of a search run.
type Provider interface {
	Load(ctx context.Context, runID string) (*Context, error)
}

// Rejected is a raw payload that could not be decoded into a listing.
type Rejected struct {
	Index    int
	Platform model.Platform
	Err      error
}

// Context is the read-only input to one analysis run.
type Context struct {
	RunID       string
	Destination string
	// Listings are in the order the search returned them.
	Listings   []model.Listing
	Rejected   []Rejected
	Collection map[string]bool
	Wantlist   map[string]bool
}

// Received counts every payload supplied, decoded or not.
func (c *Context) Received() int {
	return len(c.Listings) + len(c.Rejected)
}

// Run is the serialized form of a search run shared by the file and SQL
// providers.
type Run struct {
	RunID       string              `json:"run_id"`
	Destination string              `json:"destination"`
	Collection  []string            `json:"collection_release_ids"`
	Wantlist    []string            `json:"wantlist_release_ids"`
	Listings    []ingest.RawListing `json:"listings"`
}

// Context decodes the run's payloads. Payloads that fail to decode are
// reported in Rejected rather than failing the load.
func (r *Run) Context() *Context {
	listings, errs := ingest.DecodeAll(r.Listings)
	c := &Context{
		RunID:       r.RunID,
		Destination: strings.ToUpper(strings.TrimSpace(r.Destination)),
		Listings:    listings,
		Collection:  toSet(r.Collection),
		Wantlist:    toSet(r.Wantlist),
	}
	for i, raw := range r.Listings {
		if err, ok := errs[i]; ok {
			c.Rejected = append(c.Rejected, Rejected{Index: i, Platform: raw.Platform, Err: err})
		}
	}
	return c
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}

func validRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("search run id is required")
	}
	if strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return fmt.Errorf("invalid search run id %q", runID)
	}
	return nil
}
