package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobsync/internal/dtos"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

type InboundHandler struct {
	EmailService *services.EmailService
	Secret       string
	Log          *logger.Logger
}

func NewInboundHandler(e *services.EmailService, secret string, log *logger.Logger) *InboundHandler {
	return &InboundHandler{EmailService: e, Secret: secret, Log: log}
}

// Receive is POST /inbound, called by the mail relay for every message.
// Anything but a rate limit is acknowledged with 200 so the relay does not
// retry.
func (h *InboundHandler) Receive(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.Log)

	if h.Secret != "" {
		given := c.GetHeader("X-Inbound-Secret")
		if given == "" {
			given = c.Query("secret")
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.Secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	var req dtos.InboundEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	email, err := h.EmailService.Receive(c.Request.Context(), &req)
	switch {
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "Rate limit exceeded",
			"message": "You have reached the daily limit of forwarded emails. Please try again tomorrow.",
		})
	case err != nil:
		log.WithError(err).Error("inbound email failed")
		c.String(http.StatusOK, "Error logged")
	case email == nil:
		c.String(http.StatusOK, "OK")
	default:
		c.String(http.StatusOK, "Email received and queued for processing")
	}
}
