package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AppStore defines the interface for hosted application persistence.
type AppStore interface {
	CreateHostedApp(ctx context.Context, app *models.HostedApp) error
	GetHostedApp(ctx context.Context, appType models.AppType, slug string) (*models.HostedApp, error)
	GetHostedAppByID(ctx context.Context, id int64) (*models.HostedApp, error)
	ListHostedApps(ctx context.Context) ([]*models.HostedApp, error)
	UpdateHostedApp(ctx context.Context, app *models.HostedApp) error
	DeleteHostedApp(ctx context.Context, id int64) error
}

// AppsHandler handles operator hosted-application management endpoints.
type AppsHandler struct {
	store  AppStore
	logger zerolog.Logger
}

// NewAppsHandler creates a new AppsHandler.
func NewAppsHandler(store AppStore, logger zerolog.Logger) *AppsHandler {
	return &AppsHandler{
		store:  store,
		logger: logger.With().Str("component", "apps_handler").Logger(),
	}
}

// RegisterRoutes registers hosted application routes on the given router group.
func (h *AppsHandler) RegisterRoutes(r *gin.RouterGroup) {
	apps := r.Group("/apps")
	{
		apps.GET("", h.List)
		apps.POST("", h.Create)
		apps.GET("/:id", h.Get)
		apps.PUT("/:id", h.Update)
		apps.DELETE("/:id", h.Delete)
	}
}

type appRequest struct {
	Type    string `json:"type" binding:"required"`
	Slug    string `json:"slug" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Version string `json:"version"`
}

// Create registers a new hosted application.
// POST /admin/apps
func (h *AppsHandler) Create(c *gin.Context) {
	var req appRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	appType, err := models.ParseAppType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown app type"})
		return
	}

	existing, err := h.store.GetHostedApp(c.Request.Context(), appType, req.Slug)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to check hosted app")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create app"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "app already exists"})
		return
	}

	app := &models.HostedApp{
		Type:    appType,
		Slug:    req.Slug,
		Name:    req.Name,
		Version: req.Version,
	}
	if err := h.store.CreateHostedApp(c.Request.Context(), app); err != nil {
		h.logger.Error().Err(err).Str("app", app.Binding()).Msg("failed to create hosted app")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create app"})
		return
	}

	c.JSON(http.StatusCreated, app)
}

// List returns all hosted applications.
// GET /admin/apps
func (h *AppsHandler) List(c *gin.Context) {
	apps, err := h.store.ListHostedApps(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list hosted apps")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list apps"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"apps": apps})
}

// Get returns a hosted application by id.
// GET /admin/apps/:id
func (h *AppsHandler) Get(c *gin.Context) {
	id, ok := h.appID(c)
	if !ok {
		return
	}

	app, err := h.store.GetHostedAppByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("app_id", id).Msg("failed to get hosted app")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get app"})
		return
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		return
	}

	c.JSON(http.StatusOK, app)
}

type updateAppRequest struct {
	Name    string `json:"name" binding:"required"`
	Version string `json:"version"`
}

// Update writes a hosted application's name and version.
// PUT /admin/apps/:id
func (h *AppsHandler) Update(c *gin.Context) {
	id, ok := h.appID(c)
	if !ok {
		return
	}

	var req updateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	app, err := h.store.GetHostedAppByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("app_id", id).Msg("failed to get hosted app")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update app"})
		return
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		return
	}

	app.Name = req.Name
	app.Version = req.Version
	if err := h.store.UpdateHostedApp(c.Request.Context(), app); err != nil {
		h.logger.Error().Err(err).Int64("app_id", id).Msg("failed to update hosted app")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update app"})
		return
	}

	c.JSON(http.StatusOK, app)
}

// Delete removes a hosted application.
// DELETE /admin/apps/:id
func (h *AppsHandler) Delete(c *gin.Context) {
	id, ok := h.appID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteHostedApp(c.Request.Context(), id); err != nil {
		h.logger.Error().Err(err).Int64("app_id", id).Msg("failed to delete hosted app")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete app"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *AppsHandler) appID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app ID"})
		return 0, false
	}
	return id, true
}
