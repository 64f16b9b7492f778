// Package catalog keeps canonical item ids stable across analysis runs. Ids
// are keyed by the matcher's normalized signature in a local pebble store.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

const keyPrefix = "item/"

// Entry is the stored record for one signature.
type Entry struct {
	ID        string    `json:"id"`
	Signature string    `json:"signature"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Seen      int64     `json:"seen"`
}

// Catalog assigns each signature an id the first time it is seen and returns
// the same id on every later run. It is safe for concurrent use.
type Catalog struct {
	db  *pebble.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens or creates a catalog in dir.
func Open(dir string) (*Catalog, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Catalog{db: db, now: time.Now}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func encodeEntry(e Entry) ([]byte, error) { return json.Marshal(e) }

func decodeEntry(val []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ItemID returns the catalog id for signature, assigning a new one on first
// sight.
func (c *Catalog) ItemID(signature string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	e, ok, err := c.get(signature)
	if err != nil {
		return "", err
	}
	if !ok {
		e = Entry{ID: uuid.NewString(), Signature: signature, FirstSeen: now}
	}
	e.LastSeen = now
	e.Seen++

	val, err := encodeEntry(e)
	if err != nil {
		return "", err
	}
	if err := c.db.Set([]byte(keyPrefix+signature), val, pebble.Sync); err != nil {
		return "", fmt.Errorf("store catalog entry: %w", err)
	}
	return e.ID, nil
}

// Lookup returns the entry for signature without recording a sighting.
func (c *Catalog) Lookup(signature string) (Entry, bool, error) {
	return c.get(signature)
}

func (c *Catalog) get(signature string) (Entry, bool, error) {
	v, closer, err := c.db.Get([]byte(keyPrefix + signature))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read catalog entry: %w", err)
	}
	defer closer.Close()
	e, err := decodeEntry(v)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode catalog entry %q: %w", signature, err)
	}
	return e, true, nil
}

// Range calls fn for every entry in signature order.
func (c *Catalog) Range(fn func(Entry) error) error {
	it, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("item0"), // '0' sorts right after '/'
	})
	if err != nil {
		return fmt.Errorf("catalog iterator: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		v := append([]byte(nil), it.Value()...)
		e, err := decodeEntry(v)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return it.Error()
}

// ForgetBefore deletes entries not seen since cutoff and returns how many
// were removed.
func (c *Catalog) ForgetBefore(cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale [][]byte
	err := c.Range(func(e Entry) error {
		if e.LastSeen.Before(cutoff) {
			stale = append(stale, []byte(keyPrefix+e.Signature))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := c.db.NewBatch()
	defer wb.Close()
	for _, k := range stale {
		if err := wb.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("commit catalog prune: %w", err)
	}
	return len(stale), nil
}
