package handlers

import (
	"errors"
	"net/http"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// writeServiceError maps a license service error to its HTTP response and
// returns a short result label for metrics.
func writeServiceError(c *gin.Context, logger zerolog.Logger, err error) string {
	var authErr *license.AuthError
	var forbErr *license.ForbiddenError

	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization failure", "code": string(authErr.Code)})
		return "auth_failure"
	case errors.Is(err, license.ErrAuthFailure):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization failure"})
		return "auth_failure"
	case errors.As(err, &forbErr):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "reason": string(forbErr.Reason)})
		return "forbidden"
	case errors.Is(err, license.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return "forbidden"
	case errors.Is(err, license.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return "not_found"
	case errors.Is(err, license.ErrLimitExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "maximum allowed domains reached"})
		return "limit_exceeded"
	case errors.Is(err, license.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "operation not valid for the license's current state"})
		return "invalid_state"
	case errors.Is(err, license.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update, retry the request"})
		return "conflict"
	default:
		logger.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return "error"
	}
}
