package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"

	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
	"github.com/justsurfingit/jobsync/internal/services"
)

const sessionKey = "session"

var ErrMissingToken = errors.New("missing bearer token")

// Session is the signed-in user of one request.
type Session struct {
	User *models.User
}

// TrackingCode is the key every job of the session's user is filed under.
func (s *Session) TrackingCode() string {
	return s.User.EmailCode
}

// TokenVerifier checks a bearer token and says who it belongs to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (services.Identity, error)
}

// UserResolver maps a verified identity to its account.
type UserResolver interface {
	EnsureUser(ctx context.Context, id services.Identity) (*models.User, error)
}

// GoogleVerifier validates Google-issued ID tokens for one client id.
type GoogleVerifier struct {
	Audience string
}

func (v GoogleVerifier) Verify(ctx context.Context, token string) (services.Identity, error) {
	if token == "" {
		return services.Identity{}, ErrMissingToken
	}
	payload, err := idtoken.Validate(ctx, token, v.Audience)
	if err != nil {
		return services.Identity{}, fmt.Errorf("validate id token: %w", err)
	}
	id := services.Identity{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}

// DevVerifier signs every request in as one fixed subject.
type DevVerifier struct {
	Subject string
}

func (v DevVerifier) Verify(_ context.Context, _ string) (services.Identity, error) {
	return services.Identity{Subject: v.Subject, Email: v.Subject + "@localhost", Name: v.Subject}, nil
}

var (
	_ TokenVerifier = GoogleVerifier{}
	_ TokenVerifier = DevVerifier{}
)

// Middleware verifies the bearer token, loads the user and puts the session
// on the request. Requests without a valid session stop with 401.
func Middleware(verifier TokenVerifier, users UserResolver, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		reqLog := logger.FromContext(ctx, log)

		id, err := verifier.Verify(ctx, bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			reqLog.WithError(err).Debug("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		user, err := users.EnsureUser(ctx, id)
		if err != nil {
			reqLog.WithError(err).Error("could not load user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user: " + err.Error()})
			return
		}

		c.Set(sessionKey, &Session{User: user})
		c.Next()
	}
}

// FromContext returns the session Middleware attached to the request.
func FromContext(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
