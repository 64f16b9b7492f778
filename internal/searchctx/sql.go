package searchctx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guarzo/vinyldeals/internal/ingest"
	"github.com/guarzo/vinyldeals/internal/model"
)

// DB is the database a SQLProvider reads from. *store.Store satisfies it.
type DB interface {
	DB() *sql.DB
	Rebind(query string) string
}

// SQLProvider reads runs from the search_runs, search_listings and
// search_run_releases tables.
type SQLProvider struct {
	db DB
}

// NewSQLProvider returns a provider over db.
func NewSQLProvider(db DB) *SQLProvider {
	return &SQLProvider{db: db}
}

// Load reads one run and decodes its listings in stored order.
func (p *SQLProvider) Load(ctx context.Context, runID string) (*Context, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	db := p.db.DB()

	run := Run{RunID: runID}
	err := db.QueryRowContext(ctx, p.db.Rebind(`SELECT destination FROM search_runs WHERE id = ?`), runID).
		Scan(&run.Destination)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query search run: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		p.db.Rebind(`SELECT platform, payload FROM search_listings WHERE run_id = ? ORDER BY ordinal`), runID)
	if err != nil {
		return nil, fmt.Errorf("query search listings: %w", err)
	}
	for rows.Next() {
		var platform, payload string
		if err := rows.Scan(&platform, &payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan search listing: %w", err)
		}
		run.Listings = append(run.Listings, ingest.RawListing{
			Platform: model.Platform(platform),
			Payload:  json.RawMessage(payload),
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search listings: %w", err)
	}

	rows, err = db.QueryContext(ctx,
		p.db.Rebind(`SELECT release_id, kind FROM search_run_releases WHERE run_id = ? ORDER BY release_id`), runID)
	if err != nil {
		return nil, fmt.Errorf("query search releases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var releaseID, kind string
		if err := rows.Scan(&releaseID, &kind); err != nil {
			return nil, fmt.Errorf("scan search release: %w", err)
		}
		switch kind {
		case "collection":
			run.Collection = append(run.Collection, releaseID)
		case "wantlist":
			run.Wantlist = append(run.Wantlist, releaseID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search releases: %w", err)
	}

	return run.Context(), nil
}

// Save stores a run, replacing any previous rows for the same id. The search
// collaborator normally owns these tables; Save backs the import command.
func (p *SQLProvider) Save(ctx context.Context, run *Run) error {
	if err := validRunID(run.RunID); err != nil {
		return err
	}

	tx, err := p.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM search_run_releases WHERE run_id = ?`,
		`DELETE FROM search_listings WHERE run_id = ?`,
		`DELETE FROM search_runs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, p.db.Rebind(q), run.RunID); err != nil {
			return fmt.Errorf("clear search run: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		p.db.Rebind(`INSERT INTO search_runs (id, destination, created_at) VALUES (?, ?, ?)`),
		run.RunID, run.Destination, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert search run: %w", err)
	}

	for i, raw := range run.Listings {
		if _, err := tx.ExecContext(ctx,
			p.db.Rebind(`INSERT INTO search_listings (run_id, ordinal, platform, payload) VALUES (?, ?, ?, ?)`),
			run.RunID, i, string(raw.Platform), string(raw.Payload),
		); err != nil {
			return fmt.Errorf("insert search listing %d: %w", i, err)
		}
	}

	insertRelease := p.db.Rebind(`INSERT INTO search_run_releases (run_id, release_id, kind) VALUES (?, ?, ?)`)
	for kind, ids := range map[string][]string{"collection": run.Collection, "wantlist": run.Wantlist} {
		for id := range toSet(ids) {
			if _, err := tx.ExecContext(ctx, insertRelease, run.RunID, id, kind); err != nil {
				return fmt.Errorf("insert %s release %s: %w", kind, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit search run: %w", err)
	}
	return nil
}
