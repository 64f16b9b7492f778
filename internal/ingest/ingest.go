// Package ingest turns platform specific listing payloads into model.Listing.
// Nothing downstream of this package sees Discogs or eBay field names.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guarzo/vinyldeals/internal/model"
)

// ErrUnsupportedPlatform is returned for payloads tagged with an unknown platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// RawListing is a platform tagged payload as fetched by the search collaborator.
type RawListing struct {
	Platform model.Platform  `json:"platform"`
	Payload  json.RawMessage `json:"payload"`
}

// Decode converts one raw payload into a normalized listing.
func Decode(raw RawListing) (model.Listing, error) {
	switch raw.Platform {
	case model.PlatformDiscogs:
		var p DiscogsListing
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return model.Listing{}, fmt.Errorf("decoding discogs listing: %w", err)
		}
		return p.Normalize(), nil
	case model.PlatformEbay:
		var p EbayItem
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return model.Listing{}, fmt.Errorf("decoding ebay item: %w", err)
		}
		return p.Normalize(), nil
	default:
		return model.Listing{}, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, raw.Platform)
	}
}

// DecodeAll converts raw payloads in order. Payloads that fail to decode are
// reported in errs by index and left out of the result.
func DecodeAll(raws []RawListing) (listings []model.Listing, errs map[int]error) {
	listings = make([]model.Listing, 0, len(raws))
	for i, raw := range raws {
		l, err := Decode(raw)
		if err != nil {
			if errs == nil {
				errs = make(map[int]error)
			}
			errs[i] = err
			continue
		}
		listings = append(listings, l)
	}
	return listings, errs
}

// ApplyReleaseSets flags listings whose release id is in the user's
// collection or want-list. Flags already set by the caller are kept.
func ApplyReleaseSets(listings []model.Listing, collection, wantlist map[string]bool) {
	for i := range listings {
		rid := listings[i].ReleaseID
		if rid == "" {
			continue
		}
		if collection[rid] {
			listings[i].InCollection = true
		}
		if wantlist[rid] {
			listings[i].InWantlist = true
		}
	}
}
