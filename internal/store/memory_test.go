package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/instalens/instalens/internal/models"
)

func newStoreWithProfile(t *testing.T) (*MemoryStore, *models.Profile) {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()

	workspace := &models.Workspace{Name: "brand team"}
	if err := s.CreateWorkspace(ctx, workspace); err != nil {
		t.Fatalf("CreateWorkspace() error: %v", err)
	}

	profile := &models.Profile{
		WorkspaceID:    workspace.ID,
		InstagramID:    "17841400000000001",
		Username:       "acme",
		FollowersCount: 1000,
		IsActive:       true,
	}
	if err := s.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("CreateProfile() error: %v", err)
	}
	return s, profile
}

func TestCreateRunLifecycle(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}
	if run.Status != models.RunStatusPending {
		t.Errorf("new run status = %q, want pending", run.Status)
	}
	if run.StartedAt.Valid || run.CompletedAt.Valid {
		t.Error("new run should have null timestamps")
	}

	run, err = s.TransitionRun(ctx, run.ID, models.RunStatusRunning, RunUpdate{})
	if err != nil {
		t.Fatalf("transition to running error: %v", err)
	}
	if !run.StartedAt.Valid {
		t.Error("running run should have started_at set")
	}
	if run.CompletedAt.Valid {
		t.Error("running run should not have completed_at set")
	}

	run, err = s.TransitionRun(ctx, run.ID, models.RunStatusCompleted, RunUpdate{})
	if err != nil {
		t.Fatalf("transition to completed error: %v", err)
	}
	if !run.CompletedAt.Valid {
		t.Error("completed run must have completed_at set")
	}
	if run.ErrorMessage.Valid {
		t.Error("completed run must not carry an error message")
	}
}

func TestTransitionRejectsIllegalSequences(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	tests := []struct {
		name string
		path []string
		bad  string
	}{
		{name: "pending to completed", path: nil, bad: models.RunStatusCompleted},
		{name: "running to pending", path: []string{models.RunStatusRunning}, bad: models.RunStatusPending},
		{name: "completed is frozen", path: []string{models.RunStatusRunning, models.RunStatusCompleted}, bad: models.RunStatusRunning},
		{name: "failed is frozen", path: []string{models.RunStatusRunning, models.RunStatusFailed}, bad: models.RunStatusRunning},
		{name: "unknown status", path: nil, bad: "paused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
			if err != nil {
				t.Fatalf("CreateRun() error: %v", err)
			}
			for _, status := range tt.path {
				if _, err := s.TransitionRun(ctx, run.ID, status, RunUpdate{}); err != nil {
					t.Fatalf("transition to %s error: %v", status, err)
				}
			}
			_, err = s.TransitionRun(ctx, run.ID, tt.bad, RunUpdate{})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got: %v", err)
			}

			// Clean up for the next case: drive the run terminal if it is not
			current, _ := s.GetRun(ctx, run.ID)
			if !current.IsTerminal() {
				if current.Status == models.RunStatusPending {
					s.TransitionRun(ctx, run.ID, models.RunStatusFailed, RunUpdate{ErrorMessage: "test cleanup"})
				} else {
					s.TransitionRun(ctx, run.ID, models.RunStatusCompleted, RunUpdate{})
				}
			}
		})
	}
}

func TestPendingToFailedAllowed(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	run, err = s.TransitionRun(ctx, run.ID, models.RunStatusFailed, RunUpdate{ErrorMessage: "runner rejected job"})
	if err != nil {
		t.Fatalf("pending to failed error: %v", err)
	}
	if !run.ErrorMessage.Valid || run.ErrorMessage.String != "runner rejected job" {
		t.Errorf("failed run should carry error message, got: %+v", run.ErrorMessage)
	}
	if !run.CompletedAt.Valid {
		t.Error("failed run must have completed_at set")
	}
}

func TestSingleInFlightRunPerProfile(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
	if err != nil {
		t.Fatalf("first CreateRun() error: %v", err)
	}

	// Second run conflicts while the first is pending
	if _, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict while pending, got: %v", err)
	}

	// Still conflicts while running
	if _, err := s.TransitionRun(ctx, first.ID, models.RunStatusRunning, RunUpdate{}); err != nil {
		t.Fatalf("transition error: %v", err)
	}
	if _, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict while running, got: %v", err)
	}

	// A terminal run frees the profile
	if _, err := s.TransitionRun(ctx, first.ID, models.RunStatusCompleted, RunUpdate{}); err != nil {
		t.Fatalf("transition error: %v", err)
	}
	if _, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull); err != nil {
		t.Errorf("expected new run after terminal state, got: %v", err)
	}
}

func TestCreateRunUnknownProfile(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.CreateRun(context.Background(), 99, models.ScrapeTypeFull); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestRunCountersMonotone(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	run, _ := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
	if _, err := s.UpdateRunProgress(ctx, run.ID, 10, 2); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("progress on pending run should be rejected, got: %v", err)
	}

	s.TransitionRun(ctx, run.ID, models.RunStatusRunning, RunUpdate{})

	run, err := s.UpdateRunProgress(ctx, run.ID, 10, 2)
	if err != nil {
		t.Fatalf("UpdateRunProgress() error: %v", err)
	}
	if run.PostsScraped != 10 || run.ReelsScraped != 2 {
		t.Errorf("counters = %d/%d, want 10/2", run.PostsScraped, run.ReelsScraped)
	}

	// A stale status response must not roll counters backwards
	run, err = s.UpdateRunProgress(ctx, run.ID, 4, 1)
	if err != nil {
		t.Fatalf("UpdateRunProgress() error: %v", err)
	}
	if run.PostsScraped != 10 || run.ReelsScraped != 2 {
		t.Errorf("counters regressed to %d/%d", run.PostsScraped, run.ReelsScraped)
	}
}

func TestListRunsByProfileNewestFirst(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
		if err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
		ids = append(ids, run.ID)
		if _, err := s.TransitionRun(ctx, run.ID, models.RunStatusFailed, RunUpdate{ErrorMessage: "x"}); err != nil {
			t.Fatalf("transition error: %v", err)
		}
	}

	runs, err := s.ListRunsByProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ListRunsByProfile() error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if runs[i].ID != want {
			t.Errorf("runs[%d].ID = %s, want %s (newest first)", i, runs[i].ID, want)
		}
	}
}

func TestWorkspaceDeleteCascades(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	run, _ := s.CreateRun(ctx, profile.ID, models.ScrapeTypeFull)
	if err := s.UpsertPosts(ctx, []*models.Post{{
		ProfileID:   profile.ID,
		InstagramID: "post-1",
		ScrapedAt:   time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("UpsertPosts() error: %v", err)
	}

	if err := s.DeleteWorkspace(ctx, profile.WorkspaceID); err != nil {
		t.Fatalf("DeleteWorkspace() error: %v", err)
	}

	if _, err := s.GetProfile(ctx, profile.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("profile should be deleted, got: %v", err)
	}
	if _, err := s.GetRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("run should be deleted, got: %v", err)
	}
	posts, _ := s.PostsByProfile(ctx, profile.ID)
	if len(posts) != 0 {
		t.Errorf("posts should be deleted, got %d", len(posts))
	}
}

func TestUpsertPostsDeduplicates(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	scraped := time.Now().UTC()
	if err := s.UpsertPosts(ctx, []*models.Post{{
		ProfileID:   profile.ID,
		InstagramID: "post-1",
		LikesCount:  10,
		ScrapedAt:   scraped,
	}}); err != nil {
		t.Fatalf("UpsertPosts() error: %v", err)
	}

	// Re-scrape refreshes counts instead of duplicating
	if err := s.UpsertPosts(ctx, []*models.Post{{
		ProfileID:   profile.ID,
		InstagramID: "post-1",
		LikesCount:  25,
		ScrapedAt:   scraped.Add(time.Hour),
	}}); err != nil {
		t.Fatalf("second UpsertPosts() error: %v", err)
	}

	posts, err := s.PostsByProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("PostsByProfile() error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(posts))
	}
	if posts[0].LikesCount != 25 {
		t.Errorf("likes = %d, want refreshed 25", posts[0].LikesCount)
	}
}

func TestRefreshProfileCounts(t *testing.T) {
	s, profile := newStoreWithProfile(t)
	ctx := context.Background()

	scraped := time.Now().UTC()
	err := s.RefreshProfileCounts(ctx, profile.ID, ProfileCounts{
		FollowersCount: 5000,
		FollowingCount: 12,
		PostsCount:     300,
		ScrapedAt:      scraped,
	})
	if err != nil {
		t.Fatalf("RefreshProfileCounts() error: %v", err)
	}

	updated, err := s.GetProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetProfile() error: %v", err)
	}
	if updated.FollowersCount != 5000 {
		t.Errorf("followers = %d, want 5000", updated.FollowersCount)
	}
	if !updated.LastScrapedAt.Valid {
		t.Error("last_scraped_at should be set after refresh")
	}
}
