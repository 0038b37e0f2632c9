package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/instalens/instalens/internal/models"
	"github.com/instalens/instalens/internal/scraper"
	"github.com/instalens/instalens/internal/store"
)

type applierFunc func(ctx context.Context, runID string) (*models.ScrapeRun, error)

func (f applierFunc) ScrapeStatus(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	return f(ctx, runID)
}

func seedRun(t *testing.T, st *store.MemoryStore) *models.ScrapeRun {
	t.Helper()
	ctx := context.Background()

	workspace := &models.Workspace{Name: "acme"}
	if err := st.CreateWorkspace(ctx, workspace); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	profile := &models.Profile{
		WorkspaceID: workspace.ID,
		InstagramID: "ig-1",
		Username:    "acme_official",
		IsActive:    true,
	}
	if err := st.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	run, err := st.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return run
}

func TestSweepSettlesOrphanedRun(t *testing.T) {
	st := store.NewMemoryStore()
	run := seedRun(t, st)
	ctx := context.Background()

	applied := 0
	applier := applierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		applied++
		if _, err := st.TransitionRun(ctx, runID, models.RunStatusRunning, store.RunUpdate{}); err != nil {
			return nil, err
		}
		return st.TransitionRun(ctx, runID, models.RunStatusCompleted, store.RunUpdate{})
	})

	r := New(st, applier, time.Minute)
	if err := r.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if applied != 1 {
		t.Errorf("applier called %d times, want 1", applied)
	}

	settled, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if settled.Status != models.RunStatusCompleted {
		t.Errorf("run status = %q, want completed", settled.Status)
	}

	// A second sweep finds nothing to do
	if err := r.Sweep(ctx); err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if applied != 1 {
		t.Errorf("terminal run swept again, applier called %d times", applied)
	}
}

func TestSweepSkipsUnavailableRunner(t *testing.T) {
	st := store.NewMemoryStore()
	run := seedRun(t, st)
	ctx := context.Background()

	applier := applierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		return nil, &scraper.TransientError{Op: "status", Err: errors.New("connection refused")}
	})

	r := New(st, applier, time.Minute)
	if err := r.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// The run is untouched and picked up by the next sweep
	untouched, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if untouched.Status != models.RunStatusPending {
		t.Errorf("run status = %q, want pending", untouched.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := store.NewMemoryStore()
	seedRun(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan struct{})
	var once bool
	applier := applierFunc(func(ctx context.Context, runID string) (*models.ScrapeRun, error) {
		if !once {
			once = true
			close(swept)
		}
		return nil, &scraper.TransientError{Op: "status", Err: errors.New("connection refused")}
	})

	r := New(st, applier, time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	<-swept
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
