package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guarzo/vinyldeals/internal/analysis"
	"github.com/guarzo/vinyldeals/internal/model"
)

type Registry struct {
	reg             *prometheus.Registry
	Runs            *prometheus.CounterVec
	Listings        *prometheus.CounterVec
	SellersSkipped  prometheus.Counter
	Recommendations prometheus.Counter
	RunDurationSec  prometheus.Histogram

	// worker
	JobsConsumed    prometheus.Counter
	JobsInFlight    prometheus.Gauge
	SnapshotsPruned prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vinyldeals_analysis_runs_total",
		Help: "Analysis runs by outcome.",
	}, []string{"outcome"})
	listings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vinyldeals_listings_total",
		Help: "Listings seen by analysis runs.",
	}, []string{"result"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "vinyldeals_sellers_skipped_total"})
	recs := prometheus.NewCounter(prometheus.CounterOpts{Name: "vinyldeals_recommendations_total"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vinyldeals_analysis_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "vinyldeals_worker_jobs_consumed_total"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{Name: "vinyldeals_worker_jobs_in_flight"})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{Name: "vinyldeals_snapshots_pruned_total"})

	r.MustRegister(runs, listings, skipped, recs, duration, consumed, inFlight, pruned)
	return &Registry{
		reg:             r,
		Runs:            runs,
		Listings:        listings,
		SellersSkipped:  skipped,
		Recommendations: recs,
		RunDurationSec:  duration,
		JobsConsumed:    consumed,
		JobsInFlight:    inFlight,
		SnapshotsPruned: pruned,
	}
}

// RunFinished records one analysis run.
func (r *Registry) RunFinished(outcome analysis.Outcome, stats model.RunStats, recommendations int, elapsed time.Duration) {
	r.Runs.WithLabelValues(string(outcome)).Inc()
	r.Listings.WithLabelValues("received").Add(float64(stats.ListingsReceived))
	r.Listings.WithLabelValues("analyzed").Add(float64(stats.ListingsAnalyzed))
	r.Listings.WithLabelValues("malformed").Add(float64(stats.ListingsMalformed))
	r.SellersSkipped.Add(float64(stats.SellersSkipped))
	r.Recommendations.Add(float64(recommendations))
	r.RunDurationSec.Observe(elapsed.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
