package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/instalens/instalens/internal/db"
	"github.com/instalens/instalens/internal/models"
)

// GormStore is the database-backed Store
type GormStore struct {
	repo *db.Repository
}

// NewGormStore creates a store over the given repository
func NewGormStore(repo *db.Repository) *GormStore {
	return &GormStore{repo: repo}
}

// CreateRun creates a pending run inside a transaction so the
// single-in-flight-run check and the insert are one step
func (s *GormStore) CreateRun(ctx context.Context, profileID int64, scrapeType string) (*models.ScrapeRun, error) {
	if scrapeType == "" {
		scrapeType = models.ScrapeTypeFull
	}

	var created *models.ScrapeRun
	err := s.repo.Transaction(ctx, func(tx *db.Repository) error {
		profiles := db.NewProfileRepository(tx)
		profile, err := profiles.GetByID(ctx, profileID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrNotFound
		}

		runs := db.NewScrapeRunRepository(tx)
		active, err := runs.GetActiveByProfile(ctx, profileID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrConflict
		}

		run := &models.ScrapeRun{
			ID:         uuid.NewString(),
			ProfileID:  profileID,
			ScrapeType: scrapeType,
			Status:     models.RunStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		if err := runs.Create(ctx, run); err != nil {
			return err
		}
		created = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// BindRunExternalID records the runner's job identifier on a run
func (s *GormStore) BindRunExternalID(ctx context.Context, runID, externalID string) error {
	return s.repo.Transaction(ctx, func(tx *db.Repository) error {
		runs := db.NewScrapeRunRepository(tx)
		run, err := runs.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return ErrNotFound
		}
		run.ExternalID.String = externalID
		run.ExternalID.Valid = externalID != ""
		return runs.Update(ctx, run)
	})
}

// TransitionRun applies a state change, enforcing the state machine
func (s *GormStore) TransitionRun(ctx context.Context, runID, newStatus string, update RunUpdate) (*models.ScrapeRun, error) {
	var updated *models.ScrapeRun
	err := s.repo.Transaction(ctx, func(tx *db.Repository) error {
		runs := db.NewScrapeRunRepository(tx)
		run, err := runs.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return ErrNotFound
		}
		if err := applyTransition(run, newStatus, update, time.Now().UTC()); err != nil {
			return err
		}
		if err := runs.Update(ctx, run); err != nil {
			return err
		}
		updated = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateRunProgress refreshes counters for a running job
func (s *GormStore) UpdateRunProgress(ctx context.Context, runID string, postsScraped, reelsScraped int64) (*models.ScrapeRun, error) {
	var updated *models.ScrapeRun
	err := s.repo.Transaction(ctx, func(tx *db.Repository) error {
		runs := db.NewScrapeRunRepository(tx)
		run, err := runs.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return ErrNotFound
		}
		if run.Status != models.RunStatusRunning {
			return ErrInvalidTransition
		}
		applyCounters(run, &postsScraped, &reelsScraped)
		if err := runs.Update(ctx, run); err != nil {
			return err
		}
		updated = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetRun retrieves a run by ID
func (s *GormStore) GetRun(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	run, err := db.NewScrapeRunRepository(s.repo).GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// ListRunsByProfile retrieves a profile's runs, newest first
func (s *GormStore) ListRunsByProfile(ctx context.Context, profileID int64) ([]*models.ScrapeRun, error) {
	return db.NewScrapeRunRepository(s.repo).ListByProfile(ctx, profileID)
}

// ListActiveRuns retrieves every non-terminal run, oldest first
func (s *GormStore) ListActiveRuns(ctx context.Context) ([]*models.ScrapeRun, error) {
	return db.NewScrapeRunRepository(s.repo).ListActive(ctx)
}

// CreateWorkspace creates a new workspace
func (s *GormStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	now := time.Now().UTC()
	workspace.CreatedAt = now
	workspace.UpdatedAt = now
	return db.NewWorkspaceRepository(s.repo).Create(ctx, workspace)
}

// GetWorkspace retrieves a workspace by ID
func (s *GormStore) GetWorkspace(ctx context.Context, id int64) (*models.Workspace, error) {
	workspace, err := db.NewWorkspaceRepository(s.repo).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, ErrNotFound
	}
	return workspace, nil
}

// ListWorkspaces retrieves all workspaces, newest first
func (s *GormStore) ListWorkspaces(ctx context.Context) ([]*models.Workspace, error) {
	return db.NewWorkspaceRepository(s.repo).List(ctx)
}

// DeleteWorkspace removes a workspace and its profiles, posts and runs
func (s *GormStore) DeleteWorkspace(ctx context.Context, id int64) error {
	workspaces := db.NewWorkspaceRepository(s.repo)
	workspace, err := workspaces.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if workspace == nil {
		return ErrNotFound
	}
	return workspaces.Delete(ctx, id)
}

// CreateProfile creates a new profile; the workspace must exist
func (s *GormStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	workspace, err := db.NewWorkspaceRepository(s.repo).GetByID(ctx, profile.WorkspaceID)
	if err != nil {
		return err
	}
	if workspace == nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return db.NewProfileRepository(s.repo).Create(ctx, profile)
}

// GetProfile retrieves a profile by ID
func (s *GormStore) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	profile, err := db.NewProfileRepository(s.repo).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	return profile, nil
}

// ListProfiles retrieves all profiles, newest first
func (s *GormStore) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	return db.NewProfileRepository(s.repo).List(ctx)
}

// ListProfilesByWorkspace retrieves a workspace's profiles, newest first
func (s *GormStore) ListProfilesByWorkspace(ctx context.Context, workspaceID int64) ([]*models.Profile, error) {
	return db.NewProfileRepository(s.repo).ListByWorkspace(ctx, workspaceID)
}

// SetProfileActive toggles a profile's scraping eligibility
func (s *GormStore) SetProfileActive(ctx context.Context, id int64, active bool) (*models.Profile, error) {
	profiles := db.NewProfileRepository(s.repo)
	profile, err := profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	profile.IsActive = active
	profile.UpdatedAt = time.Now().UTC()
	if err := profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// RefreshProfileCounts applies the audience stats from a completed run
func (s *GormStore) RefreshProfileCounts(ctx context.Context, id int64, counts ProfileCounts) error {
	profiles := db.NewProfileRepository(s.repo)
	profile, err := profiles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrNotFound
	}
	profile.FollowersCount = counts.FollowersCount
	profile.FollowingCount = counts.FollowingCount
	profile.PostsCount = counts.PostsCount
	profile.LastScrapedAt.Time = counts.ScrapedAt
	profile.LastScrapedAt.Valid = true
	profile.UpdatedAt = time.Now().UTC()
	return profiles.Update(ctx, profile)
}

// MarkProfileScraped records when a completed run last refreshed the
// profile
func (s *GormStore) MarkProfileScraped(ctx context.Context, id int64, scrapedAt time.Time) error {
	profiles := db.NewProfileRepository(s.repo)
	profile, err := profiles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrNotFound
	}
	profile.LastScrapedAt.Time = scrapedAt
	profile.LastScrapedAt.Valid = true
	profile.UpdatedAt = time.Now().UTC()
	return profiles.Update(ctx, profile)
}

// DeleteProfile removes a profile and its posts and runs
func (s *GormStore) DeleteProfile(ctx context.Context, id int64) error {
	profiles := db.NewProfileRepository(s.repo)
	profile, err := profiles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrNotFound
	}
	return profiles.Delete(ctx, id)
}

// UpsertPosts inserts posts, refreshing counters for re-scraped ones
func (s *GormStore) UpsertPosts(ctx context.Context, posts []*models.Post) error {
	return db.NewPostRepository(s.repo).Upsert(ctx, posts)
}

// PostsByProfile retrieves all posts for a profile
func (s *GormStore) PostsByProfile(ctx context.Context, profileID int64) ([]*models.Post, error) {
	return db.NewPostRepository(s.repo).ListByProfile(ctx, profileID)
}
