package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/instalens/instalens/internal/models"
)

// MemoryStore is an in-memory Store. It backs unit tests and small
// single-process deployments.
type MemoryStore struct {
	mu         sync.Mutex
	workspaces map[int64]*models.Workspace
	profiles   map[int64]*models.Profile
	posts      map[int64]*models.Post
	runs       map[string]*models.ScrapeRun

	nextWorkspaceID int64
	nextProfileID   int64
	nextPostID      int64

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: make(map[int64]*models.Workspace),
		profiles:   make(map[int64]*models.Profile),
		posts:      make(map[int64]*models.Post),
		runs:       make(map[string]*models.ScrapeRun),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock, for tests
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreateRun creates a pending run, enforcing at most one non-terminal
// run per profile
func (s *MemoryStore) CreateRun(ctx context.Context, profileID int64, scrapeType string) (*models.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profileID]; !ok {
		return nil, ErrNotFound
	}
	for _, run := range s.runs {
		if run.ProfileID == profileID && !run.IsTerminal() {
			return nil, ErrConflict
		}
	}
	if scrapeType == "" {
		scrapeType = models.ScrapeTypeFull
	}

	run := &models.ScrapeRun{
		ID:         uuid.NewString(),
		ProfileID:  profileID,
		ScrapeType: scrapeType,
		Status:     models.RunStatusPending,
		CreatedAt:  s.now(),
	}
	s.runs[run.ID] = run
	return copyRun(run), nil
}

// BindRunExternalID records the runner's job identifier on a run
func (s *MemoryStore) BindRunExternalID(ctx context.Context, runID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	run.ExternalID.String = externalID
	run.ExternalID.Valid = externalID != ""
	return nil
}

// TransitionRun applies a state change, enforcing the state machine
func (s *MemoryStore) TransitionRun(ctx context.Context, runID, newStatus string, update RunUpdate) (*models.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyTransition(run, newStatus, update, s.now()); err != nil {
		return nil, err
	}
	return copyRun(run), nil
}

// UpdateRunProgress refreshes counters for a running job without a
// state change
func (s *MemoryStore) UpdateRunProgress(ctx context.Context, runID string, postsScraped, reelsScraped int64) (*models.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	if run.Status != models.RunStatusRunning {
		return nil, ErrInvalidTransition
	}
	applyCounters(run, &postsScraped, &reelsScraped)
	return copyRun(run), nil
}

// GetRun retrieves a run by ID
func (s *MemoryStore) GetRun(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRun(run), nil
}

// ListRunsByProfile retrieves a profile's runs, newest first
func (s *MemoryStore) ListRunsByProfile(ctx context.Context, profileID int64) ([]*models.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []*models.ScrapeRun
	for _, run := range s.runs {
		if run.ProfileID == profileID {
			runs = append(runs, copyRun(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// ListActiveRuns retrieves every non-terminal run, oldest first
func (s *MemoryStore) ListActiveRuns(ctx context.Context) ([]*models.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []*models.ScrapeRun
	for _, run := range s.runs {
		if !run.IsTerminal() {
			runs = append(runs, copyRun(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// CreateWorkspace creates a new workspace
func (s *MemoryStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWorkspaceID++
	workspace.ID = s.nextWorkspaceID
	workspace.CreatedAt = s.now()
	workspace.UpdatedAt = workspace.CreatedAt
	stored := *workspace
	s.workspaces[workspace.ID] = &stored
	return nil
}

// GetWorkspace retrieves a workspace by ID
func (s *MemoryStore) GetWorkspace(ctx context.Context, id int64) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workspace, ok := s.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *workspace
	return &copied, nil
}

// ListWorkspaces retrieves all workspaces, newest first
func (s *MemoryStore) ListWorkspaces(ctx context.Context) ([]*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var workspaces []*models.Workspace
	for _, workspace := range s.workspaces {
		copied := *workspace
		workspaces = append(workspaces, &copied)
	}
	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].ID > workspaces[j].ID
	})
	return workspaces, nil
}

// DeleteWorkspace removes a workspace and cascades to its profiles,
// posts and runs
func (s *MemoryStore) DeleteWorkspace(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[id]; !ok {
		return ErrNotFound
	}
	for profileID, profile := range s.profiles {
		if profile.WorkspaceID == id {
			s.deleteProfileLocked(profileID)
		}
	}
	delete(s.workspaces, id)
	return nil
}

// CreateProfile creates a new profile; the workspace must exist
func (s *MemoryStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[profile.WorkspaceID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.profiles {
		if existing.InstagramID == profile.InstagramID || existing.Username == profile.Username {
			return ErrDuplicate
		}
	}

	s.nextProfileID++
	profile.ID = s.nextProfileID
	profile.CreatedAt = s.now()
	profile.UpdatedAt = profile.CreatedAt
	stored := *profile
	s.profiles[profile.ID] = &stored
	return nil
}

// GetProfile retrieves a profile by ID
func (s *MemoryStore) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

// ListProfiles retrieves all profiles, newest first
func (s *MemoryStore) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var profiles []*models.Profile
	for _, profile := range s.profiles {
		copied := *profile
		profiles = append(profiles, &copied)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID > profiles[j].ID
	})
	return profiles, nil
}

// ListProfilesByWorkspace retrieves a workspace's profiles, newest first
func (s *MemoryStore) ListProfilesByWorkspace(ctx context.Context, workspaceID int64) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var profiles []*models.Profile
	for _, profile := range s.profiles {
		if profile.WorkspaceID == workspaceID {
			copied := *profile
			profiles = append(profiles, &copied)
		}
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID > profiles[j].ID
	})
	return profiles, nil
}

// SetProfileActive toggles a profile's scraping eligibility
func (s *MemoryStore) SetProfileActive(ctx context.Context, id int64, active bool) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	profile.IsActive = active
	profile.UpdatedAt = s.now()
	copied := *profile
	return &copied, nil
}

// RefreshProfileCounts applies the audience stats from a completed run
func (s *MemoryStore) RefreshProfileCounts(ctx context.Context, id int64, counts ProfileCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[id]
	if !ok {
		return ErrNotFound
	}
	profile.FollowersCount = counts.FollowersCount
	profile.FollowingCount = counts.FollowingCount
	profile.PostsCount = counts.PostsCount
	profile.LastScrapedAt.Time = counts.ScrapedAt
	profile.LastScrapedAt.Valid = true
	profile.UpdatedAt = s.now()
	return nil
}

// MarkProfileScraped records when a completed run last refreshed the
// profile
func (s *MemoryStore) MarkProfileScraped(ctx context.Context, id int64, scrapedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[id]
	if !ok {
		return ErrNotFound
	}
	profile.LastScrapedAt.Time = scrapedAt
	profile.LastScrapedAt.Valid = true
	profile.UpdatedAt = s.now()
	return nil
}

// DeleteProfile removes a profile and cascades to its posts and runs
func (s *MemoryStore) DeleteProfile(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrNotFound
	}
	s.deleteProfileLocked(id)
	return nil
}

func (s *MemoryStore) deleteProfileLocked(id int64) {
	for postID, post := range s.posts {
		if post.ProfileID == id {
			delete(s.posts, postID)
		}
	}
	for runID, run := range s.runs {
		if run.ProfileID == id {
			delete(s.runs, runID)
		}
	}
	delete(s.profiles, id)
}

// UpsertPosts inserts posts, refreshing counters for already scraped
// ones. De-duplication key is (profile_id, instagram_id).
func (s *MemoryStore) UpsertPosts(ctx context.Context, posts []*models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, post := range posts {
		if _, ok := s.profiles[post.ProfileID]; !ok {
			return ErrNotFound
		}
		existing := s.findPostLocked(post.ProfileID, post.InstagramID)
		if existing != nil {
			existing.LikesCount = post.LikesCount
			existing.CommentsCount = post.CommentsCount
			existing.VideoViewCount = post.VideoViewCount
			existing.VideoPlayCount = post.VideoPlayCount
			existing.ScrapedAt = post.ScrapedAt
			continue
		}
		s.nextPostID++
		post.ID = s.nextPostID
		stored := *post
		s.posts[post.ID] = &stored
	}
	return nil
}

// PostsByProfile retrieves all posts for a profile, by id ascending
func (s *MemoryStore) PostsByProfile(ctx context.Context, profileID int64) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []*models.Post
	for _, post := range s.posts {
		if post.ProfileID == profileID {
			copied := *post
			posts = append(posts, &copied)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ID < posts[j].ID
	})
	return posts, nil
}

func (s *MemoryStore) findPostLocked(profileID int64, instagramID string) *models.Post {
	for _, post := range s.posts {
		if post.ProfileID == profileID && post.InstagramID == instagramID {
			return post
		}
	}
	return nil
}

func copyRun(run *models.ScrapeRun) *models.ScrapeRun {
	copied := *run
	return &copied
}
