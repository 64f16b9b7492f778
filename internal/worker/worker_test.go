package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/guarzo/vinyldeals/internal/analysis"
	"github.com/guarzo/vinyldeals/internal/logging"
	"github.com/guarzo/vinyldeals/internal/model"
)

var quiet = logging.Discard()

type fakeRunner struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]error
}

func (r *fakeRunner) RunAnalysis(ctx context.Context, runID string) (*model.AnalysisSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[runID]++
	if errs := r.failures[runID]; len(errs) > 0 {
		r.failures[runID] = errs[1:]
		return nil, errs[0]
	}
	return model.NewSnapshot("a-"+runID, runID, "US", "USD", time.Now()), nil
}

func fastConfig() Config {
	return Config{Workers: 3, RateLimit: rate.Inf, Timeout: time.Second, MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestPool_RunAllPreservesOrder(t *testing.T) {
	runner := &fakeRunner{}
	pool := NewPool(runner, fastConfig(), quiet)

	ids := []string{"r1", "r2", "r3", "r4", "r5"}
	results := pool.RunAll(context.Background(), ids)

	if len(results) != len(ids) {
		t.Fatalf("Expected %d results, got %d", len(ids), len(results))
	}
	for i, r := range results {
		if r.RunID != ids[i] {
			t.Errorf("Expected result %d for %s, got %s", i, ids[i], r.RunID)
		}
		if r.Err != nil {
			t.Errorf("Expected no error for %s, got %v", r.RunID, r.Err)
		}
		if r.Snapshot == nil {
			t.Fatalf("Expected snapshot for %s", r.RunID)
		}
		if r.Snapshot.SearchRunID != ids[i] {
			t.Errorf("Expected snapshot for %s, got %s", ids[i], r.Snapshot.SearchRunID)
		}
	}
	stats := pool.Stats()
	if stats.Succeeded != 5 || stats.InFlight != 0 {
		t.Errorf("Expected 5 succeeded and none in flight, got %+v", stats)
	}
}

func TestPool_RetriesPersistenceFailures(t *testing.T) {
	runner := &fakeRunner{failures: map[string][]error{
		"flaky": {&analysis.PersistenceFailure{SearchRunID: "flaky", Err: errors.New("database is locked")}},
	}}
	pool := NewPool(runner, fastConfig(), quiet)

	results := pool.RunAll(context.Background(), []string{"flaky"})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("Expected retry to succeed, got %v", results[0].Err)
	}
	if results[0].Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", results[0].Attempts)
	}
	if got := pool.Stats().Retries; got != 1 {
		t.Errorf("Expected 1 retry, got %d", got)
	}
}

func TestPool_DoesNotRetryNotFound(t *testing.T) {
	runner := &fakeRunner{failures: map[string][]error{
		"gone": {fmt.Errorf("%w: gone", analysis.ErrSearchRunNotFound)},
	}}
	pool := NewPool(runner, fastConfig(), quiet)

	results := pool.RunAll(context.Background(), []string{"gone"})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if !errors.Is(results[0].Err, analysis.ErrSearchRunNotFound) {
		t.Errorf("Expected ErrSearchRunNotFound, got %v", results[0].Err)
	}
	if results[0].Attempts != 1 || runner.calls["gone"] != 1 {
		t.Errorf("Expected a single attempt, got %d attempts and %d calls", results[0].Attempts, runner.calls["gone"])
	}
	if got := pool.Stats().Failed; got != 1 {
		t.Errorf("Expected 1 failure, got %d", got)
	}
}

func TestPool_GivesUpAfterMaxAttempts(t *testing.T) {
	pf := &analysis.PersistenceFailure{SearchRunID: "down", Err: errors.New("connection refused")}
	runner := &fakeRunner{failures: map[string][]error{"down": {pf, pf, pf, pf}}}
	pool := NewPool(runner, fastConfig(), quiet)

	results := pool.RunAll(context.Background(), []string{"down"})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	var got *analysis.PersistenceFailure
	if !errors.As(results[0].Err, &got) {
		t.Errorf("Expected PersistenceFailure, got %v", results[0].Err)
	}
	if results[0].Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", results[0].Attempts)
	}
}

type countingGauge struct{ inc, dec atomic.Int32 }

func (g *countingGauge) Inc() { g.inc.Add(1) }
func (g *countingGauge) Dec() { g.dec.Add(1) }

func TestPool_RunAcksJobs(t *testing.T) {
	runner := &fakeRunner{}
	pool := NewPool(runner, fastConfig(), quiet)
	gauge := &countingGauge{}
	pool.SetInFlightGauge(gauge)

	var acked sync.Map
	jobs := make(chan Job, 2)
	for _, id := range []string{"a", "b"} {
		jobs <- Job{RunID: id, Ack: func(_ context.Context, err error) error {
			acked.Store(id, err)
			return nil
		}}
	}
	close(jobs)

	pool.Run(context.Background(), jobs, nil)

	for _, id := range []string{"a", "b"} {
		v, ok := acked.Load(id)
		if !ok {
			t.Errorf("Expected job %s to be acked", id)
			continue
		}
		if err, _ := v.(error); err != nil {
			t.Errorf("Expected job %s acked without error, got %v", id, err)
		}
	}
	if gauge.inc.Load() != 2 || gauge.dec.Load() != 2 {
		t.Errorf("Expected 2 inc and 2 dec, got %d and %d", gauge.inc.Load(), gauge.dec.Load())
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestKafkaSource_CommitsAfterProcessing(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"search_run_id":"run-1"}`)},
		{Offset: 2, Value: []byte(`not json {`)},
		{Offset: 3, Value: []byte("run-3")},
	}}
	src := NewKafkaSourceWith(reader, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs, errc := src.Jobs(ctx)

	first := <-jobs
	if first.RunID != "run-1" {
		t.Errorf("Expected run-1, got %q", first.RunID)
	}
	if c := reader.commits(); len(c) != 0 {
		t.Errorf("Expected nothing committed before the job finishes, got %v", c)
	}
	if err := first.Ack(ctx, nil); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	second := <-jobs
	if second.RunID != "not json {" {
		t.Errorf("Expected non-JSON value as a bare run id, got %q", second.RunID)
	}
	if err := second.Ack(ctx, errors.New("not found")); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	third := <-jobs
	if third.RunID != "run-3" {
		t.Errorf("Expected run-3, got %q", third.RunID)
	}
	if err := third.Ack(ctx, nil); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	if c := reader.commits(); !reflect.DeepEqual(c, []int64{1, 2, 3}) {
		t.Errorf("Expected commits [1 2 3], got %v", c)
	}

	cancel()
	if _, open := <-jobs; open {
		t.Error("Expected jobs channel closed after cancel")
	}
	if err := <-errc; err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !reader.closed {
		t.Error("Expected reader closed")
	}
}

func TestKafkaSource_SkipsUnreadableMessages(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 7, Value: []byte(`{"other":"field"}`)},
		{Offset: 8, Value: []byte("run-8")},
	}}
	src := NewKafkaSourceWith(reader, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs, _ := src.Jobs(ctx)

	job := <-jobs
	if job.RunID != "run-8" {
		t.Errorf("Expected run-8, got %q", job.RunID)
	}
	if c := reader.commits(); !reflect.DeepEqual(c, []int64{7}) {
		t.Errorf("Expected unreadable message committed, got %v", c)
	}
}

func TestParseJobMessage(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{`{"search_run_id": "abc"}`, "abc", false},
		{"  abc \n", "abc", false},
		{"", "", true},
		{`{"search_run_id": ""}`, "", true},
		{`{"search_run_id": `, "", true},
	}
	for _, tt := range tests {
		got, err := ParseJobMessage([]byte(tt.value))
		if tt.wantErr {
			if err == nil {
				t.Errorf("Expected error for %q", tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("Expected no error for %q, got %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (p *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.n, p.err
}

type sumCounter struct{ total float64 }

func (c *sumCounter) Add(v float64) { c.total += v }

func TestRetention_PruneOnce(t *testing.T) {
	pruner := &fakePruner{n: 4}
	counter := &sumCounter{}
	r := NewRetention(pruner, 30, counter, quiet)
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	n, err := r.PruneOnce(context.Background())
	if err != nil {
		t.Fatalf("PruneOnce: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 4 pruned, got %d", n)
	}
	if want := now.Add(-30 * 24 * time.Hour); !pruner.cutoff.Equal(want) {
		t.Errorf("Expected cutoff %v, got %v", want, pruner.cutoff)
	}
	if counter.total != 4 {
		t.Errorf("Expected counter 4, got %v", counter.total)
	}
}

func TestRetention_PruneError(t *testing.T) {
	r := NewRetention(&fakePruner{err: errors.New("locked")}, 1, nil, quiet)
	_, err := r.PruneOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Errorf("Expected error containing locked, got %v", err)
	}
}

func TestRetention_ScheduleRejectsBadSpec(t *testing.T) {
	r := NewRetention(&fakePruner{}, 1, nil, quiet)
	if _, err := r.Schedule(context.Background(), "every so often"); err == nil {
		t.Error("Expected error for bad schedule")
	}

	c, err := r.Schedule(context.Background(), "@daily")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	c.Stop()
}
