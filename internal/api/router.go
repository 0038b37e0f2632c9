package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/cache"
	"github.com/instalens/instalens/internal/engine"
	"github.com/instalens/instalens/pkg/logging"
)

// Router sets up API routes
type Router struct {
	engine *engine.Engine
	cache  *cache.Cache
	logger *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(eng *engine.Engine, redisCache *cache.Cache) *Router {
	return &Router{
		engine: eng,
		cache:  redisCache,
		logger: logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(g *gin.Engine) {
	// Health check endpoints
	g.GET("/health", r.healthHandler)
	g.GET("/.well-known/healthcheck.json", r.healthHandler)

	v1 := g.Group("/api/v1")

	// Workspaces
	v1.POST("/workspaces", r.createWorkspace)
	v1.GET("/workspaces", r.listWorkspaces)
	v1.GET("/workspaces/:id", r.getWorkspace)
	v1.DELETE("/workspaces/:id", r.deleteWorkspace)
	v1.POST("/workspaces/:id/profiles", r.createProfile)
	v1.GET("/workspaces/:id/profiles", r.listWorkspaceProfiles)

	// Profiles
	v1.GET("/profiles", r.listProfiles)
	v1.GET("/profiles/:id", r.getProfile)
	v1.DELETE("/profiles/:id", r.deleteProfile)
	v1.PATCH("/profiles/:id/active", r.setProfileActive)

	// Scrape orchestration
	v1.POST("/profiles/:id/trigger-scrape", r.triggerScrape)
	v1.GET("/profiles/:id/runs", r.listRuns)
	v1.GET("/scrape-status/:run_id", r.scrapeStatus)

	// Analytics
	v1.GET("/profiles/:id/analytics", r.profileAnalytics)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "instalens-api",
	})
}

// pathID parses a numeric path parameter, rejecting the request with a
// 400 when it is malformed. The boolean reports whether parsing
// succeeded.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
