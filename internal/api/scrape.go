package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/models"
)

// triggerScrapeRequest is the optional body of a trigger request
type triggerScrapeRequest struct {
	ScrapeType string `json:"scrape_type"`
}

// triggerScrape handles POST /api/v1/profiles/:id/trigger-scrape
func (r *Router) triggerScrape(c *gin.Context) {
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req triggerScrapeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	switch req.ScrapeType {
	case "", models.ScrapeTypeFull, models.ScrapeTypeReels:
	default:
		badRequest(c, "unknown scrape_type")
		return
	}

	run, _, err := r.engine.TriggerScrape(c.Request.Context(), profileID, req.ScrapeType)
	if err != nil {
		r.logger.Warn("Trigger scrape rejected",
			zap.Int64("profile_id", profileID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, run)
}

// scrapeStatus handles GET /api/v1/scrape-status/:run_id. Each request
// performs a fresh status query, so a manual refresh observes the same
// state the background watch would.
func (r *Router) scrapeStatus(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		badRequest(c, "invalid run_id")
		return
	}

	run, err := r.engine.ScrapeStatus(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// listRuns handles GET /api/v1/profiles/:id/runs
func (r *Router) listRuns(c *gin.Context) {
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	runs, err := r.engine.ListRuns(c.Request.Context(), profileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
