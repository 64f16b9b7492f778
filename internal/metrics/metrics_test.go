package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/guarzo/vinyldeals/internal/analysis"
	"github.com/guarzo/vinyldeals/internal/model"
)

var _ analysis.Recorder = (*Registry)(nil)

func TestRunFinished(t *testing.T) {
	r := NewRegistry()
	stats := model.RunStats{ListingsReceived: 10, ListingsAnalyzed: 8, ListingsMalformed: 2, SellersSkipped: 1}

	r.RunFinished(analysis.OutcomeSucceeded, stats, 4, 250*time.Millisecond)
	r.RunFinished(analysis.OutcomeNotFound, model.RunStats{}, 0, time.Millisecond)

	if got := testutil.ToFloat64(r.Runs.WithLabelValues("succeeded")); got != 1 {
		t.Errorf("Expected 1 succeeded run, got %v", got)
	}
	if got := testutil.ToFloat64(r.Runs.WithLabelValues("not_found")); got != 1 {
		t.Errorf("Expected 1 not_found run, got %v", got)
	}
	if got := testutil.ToFloat64(r.Listings.WithLabelValues("malformed")); got != 2 {
		t.Errorf("Expected 2 malformed listings, got %v", got)
	}
	if got := testutil.ToFloat64(r.Recommendations); got != 4 {
		t.Errorf("Expected 4 recommendations, got %v", got)
	}
	if got := testutil.ToFloat64(r.SellersSkipped); got != 1 {
		t.Errorf("Expected 1 skipped seller, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RunFinished(analysis.OutcomeEmpty, model.RunStats{EmptyResultSet: true}, 0, time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`vinyldeals_analysis_runs_total{outcome="empty"} 1`,
		"vinyldeals_analysis_duration_seconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}
