package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/instalens/instalens/internal/models"
)

type createWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// createWorkspace handles POST /api/v1/workspaces
func (r *Router) createWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	workspace := &models.Workspace{
		Name:  req.Name,
		Color: req.Color,
	}
	if workspace.Color == "" {
		workspace.Color = "#6366f1"
	}
	if req.Description != "" {
		workspace.Description = sql.NullString{String: req.Description, Valid: true}
	}

	if err := r.engine.CreateWorkspace(c.Request.Context(), workspace); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, workspace)
}

// listWorkspaces handles GET /api/v1/workspaces
func (r *Router) listWorkspaces(c *gin.Context) {
	workspaces, err := r.engine.ListWorkspaces(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

// getWorkspace handles GET /api/v1/workspaces/:id
func (r *Router) getWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	workspace, err := r.engine.GetWorkspace(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, workspace)
}

// deleteWorkspace handles DELETE /api/v1/workspaces/:id. The delete
// cascades to the workspace's profiles, posts and runs.
func (r *Router) deleteWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := r.engine.DeleteWorkspace(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type createProfileRequest struct {
	InstagramID string `json:"instagram_id" binding:"required"`
	Username    string `json:"username" binding:"required"`
	FullName    string `json:"full_name"`
}

// createProfile handles POST /api/v1/workspaces/:id/profiles
func (r *Router) createProfile(c *gin.Context) {
	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "instagram_id and username are required")
		return
	}

	profile := &models.Profile{
		WorkspaceID: workspaceID,
		InstagramID: req.InstagramID,
		Username:    req.Username,
		FullName:    req.FullName,
		IsActive:    true,
	}

	if err := r.engine.CreateProfile(c.Request.Context(), profile); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// listWorkspaceProfiles handles GET /api/v1/workspaces/:id/profiles
func (r *Router) listWorkspaceProfiles(c *gin.Context) {
	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	profiles, err := r.engine.ListProfilesByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
