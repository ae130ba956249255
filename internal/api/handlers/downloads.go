package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/metrics"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DownloadService verifies download tokens against a hosted application.
type DownloadService interface {
	VerifyDownload(ctx context.Context, appType models.AppType, slug, clientToken string) (*models.DownloadToken, *models.HostedApp, error)
}

// DownloadsHandler serves authenticated application downloads.
type DownloadsHandler struct {
	service DownloadService
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewDownloadsHandler creates a new DownloadsHandler. metrics may be nil.
func NewDownloadsHandler(service DownloadService, m *metrics.Metrics, logger zerolog.Logger) *DownloadsHandler {
	return &DownloadsHandler{
		service: service,
		metrics: m,
		logger:  logger.With().Str("component", "downloads_handler").Logger(),
	}
}

// RegisterRoutes registers download routes on the given router group.
func (h *DownloadsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/downloads/:app_type/:app_slug", h.Download)
}

type downloadResponse struct {
	App       downloadApp `json:"app"`
	ExpiresAt string      `json:"expires_at"`
}

type downloadApp struct {
	Type    string `json:"type"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Download verifies the presented token and serves the application artifact
// metadata.
// GET /api/v1/downloads/:app_type/:app_slug?token=...
func (h *DownloadsHandler) Download(c *gin.Context) {
	appType, err := models.ParseAppType(c.Param("app_type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown app type"})
		return
	}
	slug := c.Param("app_slug")

	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = after
		}
	}
	if token == "" {
		h.countVerification("auth_failure")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "download token required"})
		return
	}

	record, app, err := h.service.VerifyDownload(c.Request.Context(), appType, slug, token)
	if err != nil {
		h.countVerification(writeServiceError(c, h.logger, err))
		return
	}
	h.countVerification("success")

	h.logger.Info().
		Str("app", app.Binding()).
		Int64("token_id", record.ID).
		Msg("download authorized")

	c.JSON(http.StatusOK, downloadResponse{
		App: downloadApp{
			Type:    string(app.Type),
			Slug:    app.Slug,
			Name:    app.Name,
			Version: app.Version,
		},
		ExpiresAt: record.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *DownloadsHandler) countVerification(result string) {
	if h.metrics != nil {
		h.metrics.TokenVerifications.WithLabelValues(result).Inc()
	}
}
