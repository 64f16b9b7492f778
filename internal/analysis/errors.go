package analysis

import (
	"errors"
	"fmt"

	"github.com/guarzo/vinyldeals/internal/searchctx"
	"github.com/guarzo/vinyldeals/internal/seller"
)

var (
	// ErrEmptyResultSet marks a run that had no usable listings. It is
	// recorded on the snapshot and logged, never returned.
	ErrEmptyResultSet = errors.New("empty result set")

	// ErrSearchRunNotFound is returned when the search context has no such run.
	ErrSearchRunNotFound = searchctx.ErrRunNotFound
)

// SellerAnalysisUnavailable is recovered per seller: the group is skipped
// and a warning recorded.
type SellerAnalysisUnavailable = seller.UnavailableError

// MalformedListingError excludes one listing from the run.
type MalformedListingError struct {
	ListingKey string
	Reason     string
	Err        error
}

func (e *MalformedListingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed listing %s: %s: %v", e.ListingKey, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed listing %s: %s", e.ListingKey, e.Reason)
}

func (e *MalformedListingError) Unwrap() error {
	return e.Err
}

// PersistenceFailure means the snapshot was not stored. Nothing from the run
// is visible and the run can be retried.
type PersistenceFailure struct {
	SearchRunID string
	Err         error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persist analysis for search run %s: %v", e.SearchRunID, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}
