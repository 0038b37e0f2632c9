package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/instalens/instalens/internal/models"
	"github.com/instalens/instalens/internal/scraper"
)

func testOptions() *Options {
	return &Options{
		Interval:    5 * time.Millisecond,
		MaxFailures: 3,
		Enabled:     true,
	}
}

func drain(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var got []Update
	timeout := time.After(2 * time.Second)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return got
			}
			got = append(got, update)
		case <-timeout:
			t.Fatal("timed out waiting for watch to finish")
		}
	}
}

func terminalRun(id string) *models.ScrapeRun {
	return &models.ScrapeRun{ID: id, Status: models.RunStatusCompleted}
}

func TestStartNoOpWithoutRunID(t *testing.T) {
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		t.Error("querier must not be called without a run id")
		return nil, nil
	}), nil, DefaultOptions())

	if ch := p.Start(context.Background(), "", testOptions()); ch != nil {
		t.Error("empty runID should be a no-op")
	}

	disabled := testOptions()
	disabled.Enabled = false
	if ch := p.Start(context.Background(), "run-1", disabled); ch != nil {
		t.Error("disabled watch should be a no-op")
	}
}

func TestTerminalRunStopsAfterOneQuery(t *testing.T) {
	var queries int64
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		atomic.AddInt64(&queries, 1)
		return terminalRun(runID), nil
	}), nil, DefaultOptions())

	updates := p.Start(context.Background(), "run-1", testOptions())
	got := drain(t, updates)

	if n := atomic.LoadInt64(&queries); n != 1 {
		t.Errorf("queries = %d, want exactly 1 for an already-terminal run", n)
	}
	if len(got) != 1 || got[0].Run == nil || got[0].Run.Status != models.RunStatusCompleted {
		t.Errorf("expected single terminal update, got %+v", got)
	}
}

func TestWatchUntilCompleted(t *testing.T) {
	var queries int64
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		n := atomic.AddInt64(&queries, 1)
		if n < 3 {
			return &models.ScrapeRun{ID: runID, Status: models.RunStatusRunning, PostsScraped: n * 10}, nil
		}
		return terminalRun(runID), nil
	}), nil, DefaultOptions())

	got := drain(t, p.Start(context.Background(), "run-1", testOptions()))

	last := got[len(got)-1]
	if last.Run == nil || last.Run.Status != models.RunStatusCompleted {
		t.Errorf("final update should be terminal, got %+v", last)
	}
	if atomic.LoadInt64(&queries) != 3 {
		t.Errorf("queries = %d, want 3", queries)
	}
}

func TestTerminalHookOncePerWatch(t *testing.T) {
	var signals int64
	hook := func(run *models.ScrapeRun) { atomic.AddInt64(&signals, 1) }

	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		return terminalRun(runID), nil
	}), hook, DefaultOptions())

	drain(t, p.Start(context.Background(), "run-1", testOptions()))
	if n := atomic.LoadInt64(&signals); n != 1 {
		t.Errorf("terminal hook fired %d times, want 1", n)
	}

	// Watching the run again, as a manual refresh would, signals again;
	// downstream invalidation is idempotent
	drain(t, p.Start(context.Background(), "run-1", testOptions()))
	if n := atomic.LoadInt64(&signals); n != 2 {
		t.Errorf("terminal hook fired %d times after refresh, want 2", n)
	}
}

func TestDedupeSetPrunedAfterWatch(t *testing.T) {
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		return terminalRun(runID), nil
	}), func(run *models.ScrapeRun) {}, DefaultOptions())

	drain(t, p.Start(context.Background(), "run-1", testOptions()))
	drain(t, p.Start(context.Background(), "run-2", testOptions()))

	p.mu.Lock()
	remaining := len(p.signaled)
	p.mu.Unlock()
	if remaining != 0 {
		t.Errorf("dedupe set holds %d entries after watches finished, want 0", remaining)
	}
}

func TestTransientFailuresKeepSchedule(t *testing.T) {
	var queries int64
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		n := atomic.AddInt64(&queries, 1)
		if n <= 2 {
			return nil, &scraper.TransientError{Op: "status", Err: errors.New("connection refused")}
		}
		return terminalRun(runID), nil
	}), nil, DefaultOptions())

	got := drain(t, p.Start(context.Background(), "run-1", testOptions()))

	sawTransient := false
	for _, update := range got {
		if update.Transient {
			sawTransient = true
			if update.Err == nil {
				t.Error("transient update should carry the error")
			}
		}
	}
	if !sawTransient {
		t.Error("expected at least one transient update")
	}

	last := got[len(got)-1]
	if last.Run == nil || !last.Run.IsTerminal() {
		t.Errorf("watch should recover and finish, got %+v", last)
	}
}

func TestConsecutiveFailuresEscalate(t *testing.T) {
	var queries int64
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		atomic.AddInt64(&queries, 1)
		return nil, &scraper.TransientError{Op: "status", Err: errors.New("connection refused")}
	}), nil, DefaultOptions())

	got := drain(t, p.Start(context.Background(), "run-1", testOptions()))

	if n := atomic.LoadInt64(&queries); n != 3 {
		t.Errorf("queries = %d, want MaxFailures (3) before abandoning", n)
	}
	last := got[len(got)-1]
	if last.Err == nil || last.Transient {
		t.Errorf("final update should be a hard error, got %+v", last)
	}
}

func TestPermanentQueryErrorStopsImmediately(t *testing.T) {
	var queries int64
	p := New(QuerierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		atomic.AddInt64(&queries, 1)
		return nil, errors.New("run not found")
	}), nil, DefaultOptions())

	got := drain(t, p.Start(context.Background(), "run-1", testOptions()))

	if n := atomic.LoadInt64(&queries); n != 1 {
		t.Errorf("queries = %d, want 1 for a permanent error", n)
	}
	if len(got) != 1 || got[0].Err == nil || got[0].Transient {
		t.Errorf("expected single hard error update, got %+v", got)
	}
}

func TestCancellationStopsWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once bool
	p := New(QuerierFunc(func(qctx context.Context, runID string) (*models.ScrapeRun, error) {
		if !once {
			once = true
			close(started)
		}
		return &models.ScrapeRun{ID: runID, Status: models.RunStatusRunning}, nil
	}), nil, DefaultOptions())

	updates := p.Start(ctx, "run-1", testOptions())
	<-started
	cancel()

	// Channel must close without a terminal update
	for update := range updates {
		if update.Run != nil && update.Run.IsTerminal() {
			t.Error("cancelled watch must not produce a terminal update")
		}
	}
}
