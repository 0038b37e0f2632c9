package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/instalens/instalens/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn inside a database transaction, exposing a
// transaction-scoped repository
func (r *Repository) Transaction(ctx context.Context, fn func(*Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// WorkspaceRepository provides workspace-related database operations
type WorkspaceRepository struct {
	*Repository
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(repo *Repository) *WorkspaceRepository {
	return &WorkspaceRepository{Repository: repo}
}

// GetByID retrieves a workspace by ID
func (r *WorkspaceRepository) GetByID(ctx context.Context, id int64) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.WithContext(ctx).First(&workspace, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workspace, nil
}

// List retrieves all workspaces, newest first
func (r *WorkspaceRepository) List(ctx context.Context) ([]*models.Workspace, error) {
	var workspaces []*models.Workspace
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Create creates a new workspace
func (r *WorkspaceRepository) Create(ctx context.Context, workspace *models.Workspace) error {
	return r.db.WithContext(ctx).Create(workspace).Error
}

// Update updates a workspace
func (r *WorkspaceRepository) Update(ctx context.Context, workspace *models.Workspace) error {
	return r.db.WithContext(ctx).Save(workspace).Error
}

// Delete removes a workspace and cascades to its profiles, posts and runs
func (r *WorkspaceRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profileIDs []int64
		if err := tx.Model(&models.Profile{}).
			Where("workspace_id = ?", id).
			Pluck("id", &profileIDs).Error; err != nil {
			return err
		}
		if len(profileIDs) > 0 {
			if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.Post{}).Error; err != nil {
				return err
			}
			if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.ScrapeRun{}).Error; err != nil {
				return err
			}
			if err := tx.Where("workspace_id = ?", id).Delete(&models.Profile{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Workspace{}, id).Error
	})
}

// ProfileRepository provides profile-related database operations
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(repo *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: repo}
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByUsername retrieves a profile by username
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ListByWorkspace retrieves all profiles in a workspace, newest first
func (r *ProfileRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]*models.Profile, error) {
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// List retrieves all profiles, newest first
func (r *ProfileRepository) List(ctx context.Context) ([]*models.Profile, error) {
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// Update updates a profile
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// Delete removes a profile and cascades to its posts and runs
func (r *ProfileRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", id).Delete(&models.ScrapeRun{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Profile{}, id).Error
	})
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// ListByProfile retrieves all posts for a profile
func (r *PostRepository) ListByProfile(ctx context.Context, profileID int64) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("id ASC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Upsert inserts posts, refreshing counters for already scraped ones.
// De-duplication key is (profile_id, instagram_id).
func (r *PostRepository) Upsert(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "profile_id"}, {Name: "instagram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"likes_count", "comments_count", "video_view_count",
			"video_play_count", "scraped_at",
		}),
	}).Create(posts).Error
}

// ScrapeRunRepository provides scrape-run-related database operations
type ScrapeRunRepository struct {
	*Repository
}

// NewScrapeRunRepository creates a new scrape run repository
func NewScrapeRunRepository(repo *Repository) *ScrapeRunRepository {
	return &ScrapeRunRepository{Repository: repo}
}

// GetByID retrieves a run by ID
func (r *ScrapeRunRepository) GetByID(ctx context.Context, id string) (*models.ScrapeRun, error) {
	var run models.ScrapeRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListByProfile retrieves all runs for a profile, newest first
func (r *ScrapeRunRepository) ListByProfile(ctx context.Context, profileID int64) ([]*models.ScrapeRun, error) {
	var runs []*models.ScrapeRun
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetActiveByProfile retrieves the profile's non-terminal run, if any
func (r *ScrapeRunRepository) GetActiveByProfile(ctx context.Context, profileID int64) (*models.ScrapeRun, error) {
	var run models.ScrapeRun
	if err := r.db.WithContext(ctx).
		Where("profile_id = ? AND status IN ?", profileID,
			[]string{models.RunStatusPending, models.RunStatusRunning}).
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListActive retrieves every non-terminal run, oldest first
func (r *ScrapeRunRepository) ListActive(ctx context.Context) ([]*models.ScrapeRun, error) {
	var runs []*models.ScrapeRun
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.RunStatusPending, models.RunStatusRunning}).
		Order("created_at ASC").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Create creates a new run
func (r *ScrapeRunRepository) Create(ctx context.Context, run *models.ScrapeRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update updates a run
func (r *ScrapeRunRepository) Update(ctx context.Context, run *models.ScrapeRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}
