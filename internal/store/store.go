// Package store is the single source of truth for job and content
// state. ScrapeRun records move through a fixed state machine and every
// mutation goes through the store; no component touches records
// directly.
package store

import (
	"context"
	"time"

	"github.com/instalens/instalens/internal/models"
)

// RunUpdate carries the optional fields of a run transition
type RunUpdate struct {
	PostsScraped *int64
	ReelsScraped *int64
	ErrorMessage string
}

// ProfileCounts carries the audience stats a completed scrape refreshes
type ProfileCounts struct {
	FollowersCount int64
	FollowingCount int64
	PostsCount     int64
	ScrapedAt      time.Time
}

// Store holds ScrapeRun records and the workspace/profile/post entities
// they refer to
type Store interface {
	// Scrape runs
	CreateRun(ctx context.Context, profileID int64, scrapeType string) (*models.ScrapeRun, error)
	BindRunExternalID(ctx context.Context, runID, externalID string) error
	TransitionRun(ctx context.Context, runID, newStatus string, update RunUpdate) (*models.ScrapeRun, error)
	UpdateRunProgress(ctx context.Context, runID string, postsScraped, reelsScraped int64) (*models.ScrapeRun, error)
	GetRun(ctx context.Context, runID string) (*models.ScrapeRun, error)
	ListRunsByProfile(ctx context.Context, profileID int64) ([]*models.ScrapeRun, error)
	ListActiveRuns(ctx context.Context) ([]*models.ScrapeRun, error)

	// Workspaces
	CreateWorkspace(ctx context.Context, workspace *models.Workspace) error
	GetWorkspace(ctx context.Context, id int64) (*models.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*models.Workspace, error)
	DeleteWorkspace(ctx context.Context, id int64) error

	// Profiles
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
	ListProfilesByWorkspace(ctx context.Context, workspaceID int64) ([]*models.Profile, error)
	SetProfileActive(ctx context.Context, id int64, active bool) (*models.Profile, error)
	RefreshProfileCounts(ctx context.Context, id int64, counts ProfileCounts) error
	MarkProfileScraped(ctx context.Context, id int64, scrapedAt time.Time) error
	DeleteProfile(ctx context.Context, id int64) error

	// Posts
	UpsertPosts(ctx context.Context, posts []*models.Post) error
	PostsByProfile(ctx context.Context, profileID int64) ([]*models.Post, error)
}

// applyTransition validates and applies a status change to a run in
// place. Shared by the store implementations so the state machine has
// one definition.
func applyTransition(run *models.ScrapeRun, newStatus string, update RunUpdate, now time.Time) error {
	if !models.ValidStatus(newStatus) {
		return ErrInvalidTransition
	}
	if !models.CanTransition(run.Status, newStatus) {
		return ErrInvalidTransition
	}

	run.Status = newStatus
	switch newStatus {
	case models.RunStatusRunning:
		run.StartedAt.Time = now
		run.StartedAt.Valid = true
	case models.RunStatusCompleted:
		run.CompletedAt.Time = now
		run.CompletedAt.Valid = true
		run.ErrorMessage.String = ""
		run.ErrorMessage.Valid = false
	case models.RunStatusFailed:
		run.CompletedAt.Time = now
		run.CompletedAt.Valid = true
		msg := update.ErrorMessage
		if msg == "" {
			msg = "scrape failed"
		}
		run.ErrorMessage.String = msg
		run.ErrorMessage.Valid = true
	}

	applyCounters(run, update.PostsScraped, update.ReelsScraped)
	return nil
}

// applyCounters refreshes run counters, keeping them monotone
func applyCounters(run *models.ScrapeRun, posts, reels *int64) {
	if posts != nil && *posts > run.PostsScraped {
		run.PostsScraped = *posts
	}
	if reels != nil && *reels > run.ReelsScraped {
		run.ReelsScraped = *reels
	}
}
