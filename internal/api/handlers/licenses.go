package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/metrics"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LicenseAdminService defines the operator-facing license operations.
type LicenseAdminService interface {
	CreateLicense(ctx context.Context, p license.CreateLicenseParams) (*models.License, error)
	GetLicenseByID(ctx context.Context, id int64) (*models.License, error)
	ListLicenses(ctx context.Context, limit, offset int) ([]*models.License, error)
	RegenerateKey(ctx context.Context, licenseID int64, persist bool, tries int) (string, error)
	UpdateStatus(ctx context.Context, licenseID int64, status models.LicenseStatus) error
	DeleteLicense(ctx context.Context, licenseID int64) error
	IssueToken(ctx context.Context, licenseID int64, ttl time.Duration) (string, error)
}

// LicensesHandler handles operator license management endpoints.
type LicensesHandler struct {
	service LicenseAdminService
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewLicensesHandler creates a new LicensesHandler. metrics may be nil.
func NewLicensesHandler(service LicenseAdminService, m *metrics.Metrics, logger zerolog.Logger) *LicensesHandler {
	return &LicensesHandler{
		service: service,
		metrics: m,
		logger:  logger.With().Str("component", "licenses_handler").Logger(),
	}
}

// RegisterRoutes registers license management routes on the given router group.
func (h *LicensesHandler) RegisterRoutes(r *gin.RouterGroup) {
	licenses := r.Group("/licenses")
	{
		licenses.GET("", h.List)
		licenses.POST("", h.Create)
		licenses.GET("/:id", h.Get)
		licenses.DELETE("/:id", h.Delete)
		licenses.POST("/:id/regenerate-key", h.RegenerateKey)
		licenses.PATCH("/:id/status", h.UpdateStatus)
		licenses.POST("/:id/tokens", h.IssueToken)
	}
}

// licenseResponse is the operator-facing serialization of a license.
// Activated hosts are listed without their secret hashes.
type licenseResponse struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	LicenseKey        string     `json:"license_key"`
	ServiceID         string     `json:"service_id"`
	AppType           string     `json:"app_type,omitempty"`
	AppSlug           string     `json:"app_slug,omitempty"`
	Status            string     `json:"status"`
	StoredStatus      string     `json:"stored_status,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	MaxAllowedDomains int        `json:"max_allowed_domains"`
	ActiveDomains     []string   `json:"active_domains"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toLicenseResponse(lic *models.License) licenseResponse {
	hosts := make([]string, 0, len(lic.ActivationMap))
	for host := range lic.ActivationMap {
		hosts = append(hosts, host)
	}

	return licenseResponse{
		ID:                lic.ID,
		UserID:            lic.UserID,
		LicenseKey:        lic.LicenseKey,
		ServiceID:         lic.ServiceID,
		AppType:           string(lic.AppType),
		AppSlug:           lic.AppSlug,
		Status:            string(lic.StatusAt(time.Now())),
		StoredStatus:      string(lic.Status),
		StartDate:         lic.StartDate,
		EndDate:           lic.EndDate,
		MaxAllowedDomains: lic.MaxAllowedDomains,
		ActiveDomains:     hosts,
		CreatedAt:         lic.CreatedAt,
		UpdatedAt:         lic.UpdatedAt,
	}
}

type createLicenseRequest struct {
	UserID            int64      `json:"user_id"`
	ServiceID         string     `json:"service_id" binding:"required"`
	AppType           string     `json:"app_type"`
	AppSlug           string     `json:"app_slug"`
	Status            string     `json:"status"`
	StartDate         *time.Time `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
	MaxAllowedDomains int        `json:"max_allowed_domains"`
}

// Create creates a new license with a freshly generated key.
// POST /admin/licenses
func (h *LicensesHandler) Create(c *gin.Context) {
	var req createLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var appType models.AppType
	if req.AppType != "" {
		parsed, err := models.ParseAppType(req.AppType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown app type"})
			return
		}
		appType = parsed
	}

	lic, err := h.service.CreateLicense(c.Request.Context(), license.CreateLicenseParams{
		UserID:            req.UserID,
		ServiceID:         req.ServiceID,
		AppType:           appType,
		AppSlug:           req.AppSlug,
		Status:            models.LicenseStatus(req.Status),
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		MaxAllowedDomains: req.MaxAllowedDomains,
	})
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toLicenseResponse(lic))
}

// List returns a page of licenses.
// GET /admin/licenses
func (h *LicensesHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	licenses, err := h.service.ListLicenses(c.Request.Context(), limit, offset)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	out := make([]licenseResponse, 0, len(licenses))
	for _, lic := range licenses {
		out = append(out, toLicenseResponse(lic))
	}
	c.JSON(http.StatusOK, gin.H{"licenses": out})
}

// Get returns a license by id.
// GET /admin/licenses/:id
func (h *LicensesHandler) Get(c *gin.Context) {
	id, ok := h.licenseID(c)
	if !ok {
		return
	}

	lic, err := h.service.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toLicenseResponse(lic))
}

// Delete removes a license and its download tokens.
// DELETE /admin/licenses/:id
func (h *LicensesHandler) Delete(c *gin.Context) {
	id, ok := h.licenseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteLicense(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type regenerateKeyRequest struct {
	Persist bool `json:"persist"`
	Tries   int  `json:"tries"`
}

// RegenerateKey replaces the license key with a fresh unique one.
// POST /admin/licenses/:id/regenerate-key
func (h *LicensesHandler) RegenerateKey(c *gin.Context) {
	id, ok := h.licenseID(c)
	if !ok {
		return
	}

	req := regenerateKeyRequest{Persist: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	key, err := h.service.RegenerateKey(c.Request.Context(), id, req.Persist, req.Tries)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"license_key": key, "persisted": req.Persist})
}

type updateStatusRequest struct {
	// Status empty reverts the license to date-derived status.
	Status string `json:"status"`
}

// UpdateStatus sets or clears the operator status override.
// PATCH /admin/licenses/:id/status
func (h *LicensesHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.licenseID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.UpdateStatus(c.Request.Context(), id, models.LicenseStatus(req.Status)); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}

type issueTokenRequest struct {
	TTLSeconds int `json:"ttl_seconds"`
}

// IssueToken issues a download token for the license without a site handshake.
// POST /admin/licenses/:id/tokens
func (h *LicensesHandler) IssueToken(c *gin.Context) {
	id, ok := h.licenseID(c)
	if !ok {
		return
	}

	var req issueTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	token, err := h.service.IssueToken(c.Request.Context(), id, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssued.Inc()
	}
	c.JSON(http.StatusCreated, gin.H{"download_token": token})
}

func (h *LicensesHandler) licenseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license ID"})
		return 0, false
	}
	return id, true
}
