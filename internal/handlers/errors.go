package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobsync/internal/auth"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

// statusFor maps a service error onto its HTTP status.
func statusFor(err error) int {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidMerge), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCodeTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, log *logger.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), log).WithError(err).Error(msg)
		c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
}

// session returns the request's session or answers 401.
func session(c *gin.Context) (*auth.Session, bool) {
	s, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	return s, true
}
