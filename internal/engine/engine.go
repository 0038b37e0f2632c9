// Package engine is the orchestration façade the HTTP layer talks to.
// It owns the flow trigger -> poll -> terminal transition -> cache
// invalidation and serves analytics reads through the cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/analytics"
	"github.com/instalens/instalens/internal/cache"
	"github.com/instalens/instalens/internal/models"
	"github.com/instalens/instalens/internal/poller"
	"github.com/instalens/instalens/internal/scraper"
	"github.com/instalens/instalens/internal/store"
	"github.com/instalens/instalens/pkg/logging"
	"github.com/instalens/instalens/pkg/telemetry"
)

// Options configure the engine
type Options struct {
	Poll     poller.Options
	CacheTTL time.Duration
	TopTags  int
}

// DefaultOptions returns the standard engine settings
func DefaultOptions() Options {
	return Options{
		Poll:     poller.DefaultOptions(),
		CacheTTL: 5 * time.Minute,
		TopTags:  10,
	}
}

// Engine coordinates the job store, the scrape runner, the status
// poller and the read caches
type Engine struct {
	store       store.Store
	runner      scraper.Runner
	cache       *cache.Cache
	invalidator *cache.Invalidator
	aggregator  *analytics.Aggregator
	poller      *poller.Poller
	opts        Options
	logger      *zap.Logger

	// watchCtx outlives individual requests so watches keep running
	// after the triggering request returns
	watchCtx context.Context
	cancel   context.CancelFunc
}

// New creates an engine. The cache may be nil when Redis is disabled.
func New(st store.Store, runner scraper.Runner, c *cache.Cache, opts Options) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:       st,
		runner:      runner,
		cache:       c,
		invalidator: cache.NewInvalidator(c),
		aggregator:  analytics.NewAggregator(opts.TopTags),
		opts:        opts,
		logger:      logging.GetLogger().With(zap.String("component", "engine")),
		watchCtx:    watchCtx,
		cancel:      cancel,
	}
	e.poller = poller.New(poller.QuerierFunc(e.queryStatus), e.onTerminal, opts.Poll)
	return e
}

// Close stops all active watches
func (e *Engine) Close() {
	e.cancel()
}

// TriggerScrape creates a pending run for an active profile and asks
// the runner to start the job. A rejected trigger fails the run
// immediately so the profile's in-flight slot is released. The returned
// channel carries status updates until the run terminates; it is nil
// when polling is disabled.
func (e *Engine) TriggerScrape(ctx context.Context, profileID int64, scrapeType string) (*models.ScrapeRun, <-chan poller.Update, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.trigger_scrape")
	defer span.End()

	profile, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}
	if !profile.IsActive {
		return nil, nil, ErrProfileInactive
	}

	run, err := e.store.CreateRun(ctx, profileID, scrapeType)
	if err != nil {
		return nil, nil, err
	}

	result, err := e.runner.Trigger(ctx, profileID, run.ScrapeType)
	if err != nil {
		if _, ferr := e.store.TransitionRun(ctx, run.ID, models.RunStatusFailed,
			store.RunUpdate{ErrorMessage: err.Error()}); ferr != nil {
			e.logger.Error("Failed to record trigger rejection",
				zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, nil, fmt.Errorf("failed to trigger scrape: %w", err)
	}

	if result.RunID != "" && result.RunID != run.ID {
		if err := e.store.BindRunExternalID(ctx, run.ID, result.RunID); err != nil {
			e.logger.Error("Failed to bind runner job id",
				zap.String("run_id", run.ID),
				zap.String("external_id", result.RunID),
				zap.Error(err))
		}
	}

	e.logger.Info("Scrape run created",
		zap.String("run_id", run.ID),
		zap.Int64("profile_id", profileID),
		zap.String("scrape_type", run.ScrapeType))

	updates := e.poller.Start(e.watchCtx, run.ID, nil)
	return run, updates, nil
}

// ScrapeStatus performs a fresh status query for a run, applying any
// observed transition to the job store before returning
func (e *Engine) ScrapeStatus(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.scrape_status")
	defer span.End()

	return e.queryStatus(ctx, runID)
}

// ListRuns returns a profile's run history, newest first
func (e *Engine) ListRuns(ctx context.Context, profileID int64) ([]*models.ScrapeRun, error) {
	if _, err := e.store.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}
	return e.store.ListRunsByProfile(ctx, profileID)
}

// queryStatus resolves a run's current state. Terminal runs are served
// from the store without hitting the runner; otherwise the runner is
// queried and the observed transition is applied before the result is
// visible to any caller.
func (e *Engine) queryStatus(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.IsTerminal() {
		return run, nil
	}

	external := run.ID
	if run.ExternalID.Valid {
		external = run.ExternalID.String
	}

	status, err := e.runner.Status(ctx, external)
	if err != nil {
		return nil, err
	}

	return e.applyStatus(ctx, run, status)
}

// applyStatus maps the runner's view onto the store's state machine
func (e *Engine) applyStatus(ctx context.Context, run *models.ScrapeRun, status *scraper.RunStatus) (*models.ScrapeRun, error) {
	update := store.RunUpdate{
		PostsScraped: &status.PostsScraped,
		ReelsScraped: &status.ReelsScraped,
		ErrorMessage: status.ErrorMessage,
	}

	switch status.Status {
	case models.RunStatusPending:
		return run, nil

	case models.RunStatusRunning:
		if run.Status == models.RunStatusPending {
			return e.store.TransitionRun(ctx, run.ID, models.RunStatusRunning, update)
		}
		return e.store.UpdateRunProgress(ctx, run.ID, status.PostsScraped, status.ReelsScraped)

	case models.RunStatusCompleted, models.RunStatusFailed:
		if run.Status == models.RunStatusPending && status.Status == models.RunStatusCompleted {
			// The runner can finish between polls; bridge through running
			if _, err := e.store.TransitionRun(ctx, run.ID, models.RunStatusRunning, store.RunUpdate{}); err != nil {
				return nil, err
			}
		}
		updated, err := e.store.TransitionRun(ctx, run.ID, status.Status, update)
		if err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				// Another observer applied the terminal transition first
				return e.store.GetRun(ctx, run.ID)
			}
			return nil, err
		}
		e.onTerminal(updated)
		return updated, nil

	default:
		return nil, fmt.Errorf("runner reported unknown status %q for run %s", status.Status, run.ID)
	}
}

// onTerminal marks every read scope a finished run affects stale. It
// runs where the terminal transition is applied, so no reader observes
// the terminal state against a stale cache. The state machine admits
// the terminal transition once, and invalidation itself is idempotent.
func (e *Engine) onTerminal(run *models.ScrapeRun) {
	e.invalidate(
		cache.AllProfiles(),
		cache.ProfileScope(run.ProfileID),
		cache.ProfileAnalytics(run.ProfileID),
	)

	if run.Status == models.RunStatusCompleted {
		scrapedAt := time.Now().UTC()
		if run.CompletedAt.Valid {
			scrapedAt = run.CompletedAt.Time
		}
		if err := e.store.MarkProfileScraped(context.Background(), run.ProfileID, scrapedAt); err != nil {
			e.logger.Error("Failed to mark profile scraped",
				zap.Int64("profile_id", run.ProfileID), zap.Error(err))
		}
	}
}

// Analytics serves an analytics query, preferring the cached response
// when the profile's analytics scope is fresh. Filters are validated
// before any lookup so a malformed query fails the same way whether or
// not the profile exists.
func (e *Engine) Analytics(ctx context.Context, profileID int64, filters analytics.PostFilters) (*analytics.AnalyticsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.analytics")
	defer span.End()

	if err := filters.Validate(); err != nil {
		return nil, err
	}

	profile, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	scope := cache.ProfileAnalytics(profileID)
	key := analyticsKey(scope, filters)

	if !e.invalidator.Stale(scope) {
		var cached analytics.AnalyticsResponse
		if err := e.cache.GetJSON(key, &cached); err == nil {
			return &cached, nil
		}
	}

	posts, err := e.store.PostsByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	response, err := e.aggregator.Aggregate(profile, posts, filters, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetJSON(key, response, e.opts.CacheTTL); err != nil && err != cache.ErrCacheDisabled {
		e.logger.Warn("Failed to cache analytics response",
			zap.Int64("profile_id", profileID), zap.Error(err))
	}
	e.invalidator.MarkFresh(scope)

	return response, nil
}

// analyticsKey fingerprints a filter specification under the scope's
// key prefix, so invalidating the scope drops every combination
func analyticsKey(scope cache.Scope, filters analytics.PostFilters) string {
	parts := []string{
		filters.OrderBy,
		filters.SortDirection,
		filters.Type,
		filters.DatePreset,
		strconv.Itoa(filters.Limit),
	}
	if filters.DateFrom != nil {
		parts = append(parts, filters.DateFrom.UTC().Format(time.RFC3339))
	}
	if filters.DateTo != nil {
		parts = append(parts, filters.DateTo.UTC().Format(time.RFC3339))
	}
	return scope.Key() + ":" + cache.HashKey(parts...)
}

// CreateWorkspace creates a workspace
func (e *Engine) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	return e.store.CreateWorkspace(ctx, workspace)
}

// GetWorkspace retrieves a workspace
func (e *Engine) GetWorkspace(ctx context.Context, id int64) (*models.Workspace, error) {
	return e.store.GetWorkspace(ctx, id)
}

// ListWorkspaces retrieves all workspaces
func (e *Engine) ListWorkspaces(ctx context.Context) ([]*models.Workspace, error) {
	return e.store.ListWorkspaces(ctx)
}

// DeleteWorkspace removes a workspace with its profiles, posts and
// runs, invalidating every read scope the cascade touches
func (e *Engine) DeleteWorkspace(ctx context.Context, id int64) error {
	profiles, err := e.store.ListProfilesByWorkspace(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteWorkspace(ctx, id); err != nil {
		return err
	}

	scopes := []cache.Scope{cache.AllProfiles()}
	for _, profile := range profiles {
		scopes = append(scopes,
			cache.ProfileScope(profile.ID),
			cache.ProfileAnalytics(profile.ID))
	}
	e.invalidate(scopes...)
	return nil
}

// CreateProfile creates a profile under an existing workspace
func (e *Engine) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if err := e.store.CreateProfile(ctx, profile); err != nil {
		return err
	}
	e.invalidate(cache.AllProfiles())
	return nil
}

// GetProfile retrieves a profile, serving the cached copy while its
// scope is fresh
func (e *Engine) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	scope := cache.ProfileScope(id)

	if !e.invalidator.Stale(scope) {
		var cached models.Profile
		if err := e.cache.GetJSON(scope.Key(), &cached); err == nil {
			return &cached, nil
		}
	}

	profile, err := e.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetJSON(scope.Key(), profile, e.opts.CacheTTL); err != nil && err != cache.ErrCacheDisabled {
		e.logger.Warn("Failed to cache profile", zap.Int64("profile_id", id), zap.Error(err))
	}
	e.invalidator.MarkFresh(scope)

	return profile, nil
}

// ListProfiles retrieves all profiles, serving the cached list while
// the profiles scope is fresh
func (e *Engine) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	scope := cache.AllProfiles()

	if !e.invalidator.Stale(scope) {
		var cached []*models.Profile
		if err := e.cache.GetJSON(scope.Key(), &cached); err == nil {
			return cached, nil
		}
	}

	profiles, err := e.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetJSON(scope.Key(), profiles, e.opts.CacheTTL); err != nil && err != cache.ErrCacheDisabled {
		e.logger.Warn("Failed to cache profile list", zap.Error(err))
	}
	e.invalidator.MarkFresh(scope)

	return profiles, nil
}

// ListProfilesByWorkspace retrieves a workspace's profiles
func (e *Engine) ListProfilesByWorkspace(ctx context.Context, workspaceID int64) ([]*models.Profile, error) {
	if _, err := e.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	return e.store.ListProfilesByWorkspace(ctx, workspaceID)
}

// SetProfileActive toggles a profile's scraping eligibility
func (e *Engine) SetProfileActive(ctx context.Context, id int64, active bool) (*models.Profile, error) {
	profile, err := e.store.SetProfileActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	e.invalidate(cache.AllProfiles(), cache.ProfileScope(id))
	return profile, nil
}

// DeleteProfile removes a profile with its posts and runs
func (e *Engine) DeleteProfile(ctx context.Context, id int64) error {
	if err := e.store.DeleteProfile(ctx, id); err != nil {
		return err
	}
	e.invalidate(
		cache.AllProfiles(),
		cache.ProfileScope(id),
		cache.ProfileAnalytics(id),
	)
	return nil
}

// invalidate marks scopes stale, logging rather than failing the
// mutation that triggered it
func (e *Engine) invalidate(scopes ...cache.Scope) {
	for _, scope := range scopes {
		if err := e.invalidator.Invalidate(scope); err != nil {
			e.logger.Error("Cache invalidation failed",
				zap.Stringer("scope", scope), zap.Error(err))
		}
	}
}
