package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/metrics"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ActivationService defines the license operations the activation endpoints need.
type ActivationService interface {
	Activate(ctx context.Context, p license.ActivateParams) (*license.ActivationResult, error)
	Deactivate(ctx context.Context, serviceID, licenseKey, domain, authHeader string) (bool, error)
	Uninstall(ctx context.Context, serviceID, licenseKey, domain, authHeader string) error
	Reauthenticate(ctx context.Context, serviceID, licenseKey, domain, authHeader, clientToken string) (string, error)
}

// ActivationHandler handles the site-facing license protocol endpoints.
type ActivationHandler struct {
	service ActivationService
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewActivationHandler creates a new ActivationHandler. metrics may be nil.
func NewActivationHandler(service ActivationService, m *metrics.Metrics, logger zerolog.Logger) *ActivationHandler {
	return &ActivationHandler{
		service: service,
		metrics: m,
		logger:  logger.With().Str("component", "activation_handler").Logger(),
	}
}

// RegisterRoutes registers the activation protocol routes on the given router group.
func (h *ActivationHandler) RegisterRoutes(r *gin.RouterGroup) {
	licenses := r.Group("/licenses")
	{
		licenses.POST("/activate", h.Activate)
		licenses.POST("/deactivate", h.Deactivate)
		licenses.POST("/uninstall", h.Uninstall)
		licenses.POST("/reauth", h.Reauthenticate)
	}
}

type activateRequest struct {
	ServiceID  string `json:"service_id" binding:"required"`
	LicenseKey string `json:"license_key" binding:"required"`
	Domain     string `json:"domain" binding:"required"`
	AppType    string `json:"app_type" binding:"required"`
	AppSlug    string `json:"app_slug" binding:"required"`
}

type activateResponse struct {
	DownloadToken string `json:"download_token"`
	// SiteSecret is present only on first activation of the domain and is
	// never returned again.
	SiteSecret string     `json:"site_secret,omitempty"`
	Host       string     `json:"host"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Activate activates a license for a domain and issues a download token.
// POST /api/v1/licenses/activate
func (h *ActivationHandler) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	appType, err := models.ParseAppType(req.AppType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown app type"})
		return
	}

	result, err := h.service.Activate(c.Request.Context(), license.ActivateParams{
		ServiceID:  req.ServiceID,
		LicenseKey: req.LicenseKey,
		Domain:     req.Domain,
		AppType:    appType,
		AppSlug:    req.AppSlug,
		AuthHeader: c.GetHeader("Authorization"),
	})
	if err != nil {
		h.countActivation(writeServiceError(c, h.logger, err))
		return
	}
	h.countActivation("success")

	c.JSON(http.StatusOK, activateResponse{
		DownloadToken: result.DownloadToken,
		SiteSecret:    result.SiteSecret,
		Host:          result.Host,
		ExpiresAt:     result.ExpiresAt,
	})
}

type licenseActionRequest struct {
	ServiceID  string `json:"service_id" binding:"required"`
	LicenseKey string `json:"license_key" binding:"required"`
	Domain     string `json:"domain" binding:"required"`
}

// Deactivate marks a license deactivated after authenticating the calling site.
// POST /api/v1/licenses/deactivate
func (h *ActivationHandler) Deactivate(c *gin.Context) {
	var req licenseActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	changed, err := h.service.Deactivate(c.Request.Context(), req.ServiceID, req.LicenseKey, req.Domain, c.GetHeader("Authorization"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": true, "changed": changed})
}

// Uninstall removes the calling site from the license's activation map.
// POST /api/v1/licenses/uninstall
func (h *ActivationHandler) Uninstall(c *gin.Context) {
	var req licenseActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.service.Uninstall(c.Request.Context(), req.ServiceID, req.LicenseKey, req.Domain, c.GetHeader("Authorization"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"uninstalled": true})
}

type reauthRequest struct {
	ServiceID     string `json:"service_id" binding:"required"`
	LicenseKey    string `json:"license_key" binding:"required"`
	Domain        string `json:"domain" binding:"required"`
	DownloadToken string `json:"download_token" binding:"required"`
}

// Reauthenticate rotates a site's download token.
// POST /api/v1/licenses/reauth
func (h *ActivationHandler) Reauthenticate(c *gin.Context) {
	var req reauthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.service.Reauthenticate(c.Request.Context(), req.ServiceID, req.LicenseKey, req.Domain, c.GetHeader("Authorization"), req.DownloadToken)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"download_token": token})
}

func (h *ActivationHandler) countActivation(result string) {
	if h.metrics != nil {
		h.metrics.Activations.WithLabelValues(result).Inc()
	}
}
