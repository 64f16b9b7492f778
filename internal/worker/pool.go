// Package worker executes analysis runs in the background: a rate limited
// pool fed from a job source, and a scheduled retention job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/guarzo/vinyldeals/internal/analysis"
	"github.com/guarzo/vinyldeals/internal/model"
)

// Runner analyzes one search run.
type Runner interface {
	RunAnalysis(ctx context.Context, searchRunID string) (*model.AnalysisSnapshot, error)
}

// Job is one search run to analyze. Ack, if set, is called once the job has
// finished, with the final error.
type Job struct {
	RunID string
	Ack   func(ctx context.Context, err error) error
}

// Result is the outcome of one job.
type Result struct {
	RunID    string
	Snapshot *model.AnalysisSnapshot
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// RetryPolicy decides whether a failed attempt should be retried.
type RetryPolicy func(err error, attempt int) bool

// RetryPersistence retries only persistence failures, which are safe to
// repeat because snapshot writes replace by search run id.
func RetryPersistence(err error, _ int) bool {
	var pf *analysis.PersistenceFailure
	return errors.As(err, &pf) && !errors.Is(err, context.Canceled)
}

// Config holds configuration for the pool.
type Config struct {
	Workers     int           // concurrent runs
	RateLimit   rate.Limit    // run starts per second
	Timeout     time.Duration // per attempt
	MaxAttempts int
	Backoff     time.Duration // doubled after each failed attempt
	Retry       RetryPolicy
}

// Stats tracks pool throughput.
type Stats struct {
	Started   int
	Succeeded int
	Failed    int
	Retries   int
	InFlight  int
}

// Gauge is the subset of a prometheus gauge the pool reports in-flight runs to.
type Gauge interface {
	Inc()
	Dec()
}

// Pool runs jobs on a fixed set of workers.
type Pool struct {
	runner  Runner
	workers int
	limiter *rate.Limiter
	cfg     Config
	logger  *slog.Logger

	inFlight Gauge
	mu       sync.Mutex
	stats    Stats
}

// NewPool creates a pool. Zero config values get defaults.
func NewPool(runner Runner, cfg Config, logger *slog.Logger) *Pool {
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
		if workers > 10 {
			workers = 10
		}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Limit(1)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = RetryPersistence
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		runner:  runner,
		workers: workers,
		limiter: rate.NewLimiter(cfg.RateLimit, workers),
		cfg:     cfg,
		logger:  logger,
	}
}

// SetInFlightGauge reports in-flight runs to g.
func (p *Pool) SetInFlightGauge(g Gauge) {
	p.inFlight = g
}

// Run consumes jobs until the channel closes or ctx is done. Each result is
// sent to results when it is non-nil.
func (p *Pool) Run(ctx context.Context, jobs <-chan Job, results chan<- Result) {
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}
	wg.Wait()
}

// RunAll analyzes every run id and returns results in input order.
func (p *Pool) RunAll(ctx context.Context, runIDs []string) []Result {
	if len(runIDs) == 0 {
		return nil
	}

	jobs := make(chan Job, len(runIDs))
	results := make(chan Result, len(runIDs))
	for _, id := range runIDs {
		jobs <- Job{RunID: id}
	}
	close(jobs)

	p.Run(ctx, jobs, results)
	close(results)

	byID := make(map[string][]Result, len(runIDs))
	for r := range results {
		byID[r.RunID] = append(byID[r.RunID], r)
	}
	out := make([]Result, 0, len(runIDs))
	for _, id := range runIDs {
		if rs := byID[id]; len(rs) > 0 {
			out = append(out, rs[0])
			byID[id] = rs[1:]
		} else {
			out = append(out, Result{RunID: id, Err: ctx.Err()})
		}
	}
	return out
}

func (p *Pool) worker(ctx context.Context, jobs <-chan Job, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}

			var result Result
			if err := p.limiter.Wait(ctx); err != nil {
				result = Result{RunID: job.RunID, Err: err}
			} else {
				result = p.process(ctx, job.RunID)
			}

			if job.Ack != nil {
				if err := job.Ack(ctx, result.Err); err != nil {
					p.logger.Warn("job ack failed", slog.String("search_run_id", job.RunID), slog.Any("error", err))
				}
			}
			if results != nil {
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// process runs one job with a per-attempt timeout and retry with exponential
// backoff.
func (p *Pool) process(ctx context.Context, runID string) Result {
	start := time.Now()
	p.track(func(s *Stats) { s.Started++; s.InFlight++ })
	if p.inFlight != nil {
		p.inFlight.Inc()
		defer p.inFlight.Dec()
	}

	var lastErr error
	attempts := 0
retry:
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		attempts++
		snap, err := p.attempt(ctx, runID)
		if err == nil {
			p.track(func(s *Stats) { s.Succeeded++; s.InFlight-- })
			return Result{RunID: runID, Snapshot: snap, Attempts: attempts, Elapsed: time.Since(start)}
		}
		lastErr = err

		if attempt == p.cfg.MaxAttempts-1 || !p.cfg.Retry(err, attempt) {
			break
		}
		backoff := p.cfg.Backoff * time.Duration(1<<uint(attempt))
		p.logger.Warn("retrying analysis",
			slog.String("search_run_id", runID),
			slog.Int("attempt", attempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))
		p.track(func(s *Stats) { s.Retries++ })
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		}
	}

	p.track(func(s *Stats) { s.Failed++; s.InFlight-- })
	return Result{
		RunID:    runID,
		Err:      fmt.Errorf("search run %s failed after %d attempt(s): %w", runID, attempts, lastErr),
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
}

func (p *Pool) attempt(ctx context.Context, runID string) (*model.AnalysisSnapshot, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.runner.RunAnalysis(attemptCtx, runID)
}

// Stats returns a copy of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pool) track(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
