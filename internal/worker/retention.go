package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes snapshots created before a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Counter is the subset of a prometheus counter retention reports to.
type Counter interface {
	Add(float64)
}

// Retention removes old snapshots on a cron schedule.
type Retention struct {
	pruner    Pruner
	retention time.Duration
	logger    *slog.Logger
	pruned    Counter
	now       func() time.Time
}

// NewRetention keeps snapshots for days days. A nil counter is allowed.
func NewRetention(pruner Pruner, days int, pruned Counter, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		pruner:    pruner,
		retention: time.Duration(days) * 24 * time.Hour,
		logger:    logger,
		pruned:    pruned,
		now:       time.Now,
	}
}

// PruneOnce deletes snapshots older than the retention window.
func (r *Retention) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.retention)
	n, err := r.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if r.pruned != nil {
		r.pruned.Add(float64(n))
	}
	r.logger.Info("pruned snapshots", slog.Int64("removed", n), slog.Time("cutoff", cutoff))
	return n, nil
}

// Schedule registers the prune job on a new cron scheduler and starts it.
// Stop the returned scheduler to end the job.
func (r *Retention) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.PruneOnce(ctx); err != nil {
			r.logger.Error("scheduled prune failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule prune %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
