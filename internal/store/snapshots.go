package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

// SnapshotSummary is the indexed metadata of a stored snapshot.
type SnapshotSummary struct {
	SearchRunID         string
	AnalysisID          string
	CreatedAt           time.Time
	Destination         string
	Currency            string
	ListingsReceived    int
	RecommendationCount int
	WarningCount        int
}

// SaveSnapshot replaces everything stored for the snapshot's search run in a
// single transaction, so readers see either the old set or the new one.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.AnalysisSnapshot) error {
	if snap == nil || snap.SearchRunID == "" {
		return fmt.Errorf("snapshot requires a search run id")
	}
	payload, err := encodePayload(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.Rebind(`DELETE FROM deal_recommendations WHERE search_run_id = ?`), snap.SearchRunID); err != nil {
		return fmt.Errorf("delete recommendations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.Rebind(`DELETE FROM analysis_snapshots WHERE search_run_id = ?`), snap.SearchRunID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.Rebind(`INSERT INTO analysis_snapshots (
            search_run_id, analysis_id, created_at, destination, currency,
            listings_received, recommendation_count, warning_count, payload
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		snap.SearchRunID,
		snap.AnalysisID,
		formatTime(snap.CreatedAt),
		snap.Destination,
		snap.Currency,
		snap.Stats.ListingsReceived,
		len(snap.Recommendations),
		len(snap.Warnings),
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if len(snap.Recommendations) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.Rebind(`INSERT INTO deal_recommendations (
                id, search_run_id, ordinal, deal_type, deal_score, score_value, seller_key, seller_name,
                total_items, wantlist_matches, items_cost, shipping_cost, total_cost, currency, listing_ids, breakdown
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare recommendation insert: %w", err)
		}
		defer stmt.Close()

		for i, rec := range snap.Recommendations {
			ids, err := json.Marshal(rec.ListingIDs)
			if err != nil {
				return fmt.Errorf("marshal listing ids: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				rec.ID,
				snap.SearchRunID,
				i,
				string(rec.Type),
				string(rec.Score),
				rec.ScoreValue,
				rec.SellerKey,
				rec.SellerName,
				rec.TotalItems,
				rec.WantlistMatches,
				rec.ItemsCost.Amount.String(),
				rec.ShippingCost.Amount.String(),
				rec.EstimatedTotalCost.Amount.String(),
				rec.EstimatedTotalCost.Currency,
				string(ids),
				rec.Breakdown,
			); err != nil {
				return fmt.Errorf("insert recommendation %s: %w", rec.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the full stored snapshot for a search run.
func (s *Store) LoadSnapshot(ctx context.Context, searchRunID string) (*model.AnalysisSnapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		s.Rebind(`SELECT payload FROM analysis_snapshots WHERE search_run_id = ?`), searchRunID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for search run %s: %w", searchRunID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return decodePayload(payload)
}

// ListRecommendations returns a run's recommendations in ranked order from
// the indexed table, without decoding the snapshot payload.
func (s *Store) ListRecommendations(ctx context.Context, searchRunID string) ([]model.DealRecommendation, error) {
	rows, err := s.db.QueryContext(ctx, s.Rebind(`SELECT
            id, deal_type, deal_score, score_value, seller_key, seller_name, total_items, wantlist_matches,
            items_cost, shipping_cost, total_cost, currency, listing_ids, breakdown
        FROM deal_recommendations WHERE search_run_id = ? ORDER BY ordinal`), searchRunID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []model.DealRecommendation{}
	for rows.Next() {
		var (
			rec                    model.DealRecommendation
			dealType, dealScore    string
			items, shipping, total string
			currency, ids          string
		)
		if err := rows.Scan(
			&rec.ID, &dealType, &dealScore, &rec.ScoreValue, &rec.SellerKey, &rec.SellerName,
			&rec.TotalItems, &rec.WantlistMatches, &items, &shipping, &total, &currency, &ids, &rec.Breakdown,
		); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		rec.Type = model.DealType(dealType)
		rec.Score = model.DealScore(dealScore)
		if rec.ItemsCost, err = money(items, currency); err != nil {
			return nil, err
		}
		if rec.ShippingCost, err = money(shipping, currency); err != nil {
			return nil, err
		}
		if rec.EstimatedTotalCost, err = money(total, currency); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &rec.ListingIDs); err != nil {
			return nil, fmt.Errorf("parsing listing ids for %s: %w", rec.ID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return recs, nil
}

func money(amount, currency string) (model.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Money{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return model.Money{Amount: d, Currency: currency}, nil
}

// ListSnapshots returns the newest snapshots first. A limit <= 0 returns all.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]SnapshotSummary, error) {
	query := `SELECT search_run_id, analysis_id, created_at, destination, currency,
            listings_received, recommendation_count, warning_count
        FROM analysis_snapshots ORDER BY created_at DESC, search_run_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotSummary
	for rows.Next() {
		var sum SnapshotSummary
		var created string
		if err := rows.Scan(&sum.SearchRunID, &sum.AnalysisID, &created, &sum.Destination, &sum.Currency,
			&sum.ListingsReceived, &sum.RecommendationCount, &sum.WarningCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// PruneBefore deletes snapshots created before cutoff along with their
// recommendations and returns how many snapshots were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := formatTime(cutoff)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.Rebind(`DELETE FROM deal_recommendations WHERE search_run_id IN (
            SELECT search_run_id FROM analysis_snapshots WHERE created_at < ?)`), ts); err != nil {
		return 0, fmt.Errorf("prune recommendations: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.Rebind(`DELETE FROM analysis_snapshots WHERE created_at < ?`), ts)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}
