package cache

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/instalens/instalens/pkg/logging"
)

// Scope names a cache partition that can be marked stale independently
type Scope struct {
	kind      string
	profileID int64
}

// AllProfiles scopes the cached profile list
func AllProfiles() Scope {
	return Scope{kind: "profiles"}
}

// ProfileScope scopes one profile's cached read
func ProfileScope(profileID int64) Scope {
	return Scope{kind: "profile", profileID: profileID}
}

// ProfileAnalytics scopes one profile's cached analytics responses
func ProfileAnalytics(profileID int64) Scope {
	return Scope{kind: "analytics", profileID: profileID}
}

// Key returns the cache key prefix the scope covers
func (s Scope) Key() string {
	if s.kind == "profiles" {
		return "profiles:all"
	}
	return fmt.Sprintf("%s:%d", s.kind, s.profileID)
}

// String implements fmt.Stringer for logging
func (s Scope) String() string {
	return s.Key()
}

// Invalidator marks scoped read caches stale. Invalidation never
// refetches eagerly; the next read through the scope re-fetches.
type Invalidator struct {
	cache  *Cache
	logger *zap.Logger

	mu    sync.Mutex
	stale map[string]bool
}

// NewInvalidator creates an invalidator over the given cache. A nil
// cache is valid: stale tracking still works in-process.
func NewInvalidator(c *Cache) *Invalidator {
	return &Invalidator{
		cache:  c,
		logger: logging.GetLogger().With(zap.String("component", "invalidator")),
		stale:  make(map[string]bool),
	}
}

// Invalidate marks a scope stale and drops its cached keys. Idempotent:
// invalidating an already-stale scope is a no-op.
func (i *Invalidator) Invalidate(scope Scope) error {
	i.mu.Lock()
	already := i.stale[scope.Key()]
	i.stale[scope.Key()] = true
	i.mu.Unlock()

	if already {
		return nil
	}

	i.logger.Debug("Invalidating cache scope", zap.String("scope", scope.Key()))

	if i.cache != nil {
		if err := i.cache.DeleteByPrefix(scope.Key()); err != nil && err != ErrCacheDisabled {
			return fmt.Errorf("failed to invalidate scope %s: %w", scope.Key(), err)
		}
	}
	return nil
}

// Stale reports whether a scope is marked stale
func (i *Invalidator) Stale(scope Scope) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stale[scope.Key()]
}

// MarkFresh clears the stale mark after a scope has been re-read
func (i *Invalidator) MarkFresh(scope Scope) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.stale, scope.Key())
}
