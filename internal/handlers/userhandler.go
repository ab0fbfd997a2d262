package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobsync/internal/dtos"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

type UserHandler struct {
	UserService *services.UserService
	Log         *logger.Logger
}

func NewUserHandler(u *services.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{UserService: u, Log: log}
}

// Me is GET /me
func (h *UserHandler) Me(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.User)
}

// UpdateProfile is PATCH /me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.UserService.UpdateDisplayName(c.Request.Context(), sess.User.ID, req.DisplayName); err != nil {
		respondError(c, h.Log, "Failed to update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateEmailCode is PUT /me/email-code
func (h *UserHandler) UpdateEmailCode(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dtos.UpdateEmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.UserService.UpdateEmailCode(c.Request.Context(), sess.User, req.EmailCode)
	if err != nil {
		respondError(c, h.Log, "Failed to update email code", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"emailCode":       user.EmailCode,
		"forwardingEmail": user.ForwardingEmail,
	})
}
