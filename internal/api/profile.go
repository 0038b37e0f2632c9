package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listProfiles handles GET /api/v1/profiles
func (r *Router) listProfiles(c *gin.Context) {
	profiles, err := r.engine.ListProfiles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// getProfile handles GET /api/v1/profiles/:id
func (r *Router) getProfile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := r.engine.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// deleteProfile handles DELETE /api/v1/profiles/:id
func (r *Router) deleteProfile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := r.engine.DeleteProfile(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type setActiveRequest struct {
	// A pointer so an explicit false binds
	Active *bool `json:"active" binding:"required"`
}

// setProfileActive handles PATCH /api/v1/profiles/:id/active
func (r *Router) setProfileActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "active is required")
		return
	}

	profile, err := r.engine.SetProfileActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
