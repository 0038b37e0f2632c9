package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/instalens/instalens/internal/analytics"
	"github.com/instalens/instalens/internal/engine"
	"github.com/instalens/instalens/internal/scraper"
	"github.com/instalens/instalens/internal/store"
)

// respondError maps domain errors onto HTTP statuses. Unrecognized
// errors are a 500 with a generic body so internals never leak.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "a scrape is already in flight for this profile"})
	case errors.Is(err, engine.ErrProfileInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "profile is not active for scraping"})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, analytics.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case scraper.IsTransient(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "scrape runner unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// badRequest rejects a malformed request before it reaches the engine
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
