package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/models"
	"github.com/justsurfingit/jobsync/internal/services"
)

type tokenTable map[string]services.Identity

func (t tokenTable) Verify(_ context.Context, token string) (services.Identity, error) {
	id, ok := t[token]
	if !ok {
		return services.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

type stubUsers struct {
	err error
}

func (s stubUsers) EnsureUser(_ context.Context, id services.Identity) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: "u-" + id.Subject, UID: id.Subject, EmailCode: "ABC123"}, nil
}

func newTestRouter(users UserResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	verifier := tokenTable{"good": {Subject: "s1", Email: "a@b.c"}}
	r.GET("/private", Middleware(verifier, users, logger.Discard()), func(c *gin.Context) {
		sess, ok := FromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, sess.TrackingCode())
	})
	return r
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		users      UserResolver
		wantStatus int
		wantBody   string
	}{
		{name: "no header", wantStatus: http.StatusUnauthorized, users: stubUsers{}},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized, users: stubUsers{}},
		{name: "unknown token", header: "Bearer nope", wantStatus: http.StatusUnauthorized, users: stubUsers{}},
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "ABC123", users: stubUsers{}},
		{name: "scheme is case-insensitive", header: "bearer good", wantStatus: http.StatusOK, wantBody: "ABC123", users: stubUsers{}},
		{name: "user lookup fails", header: "Bearer good", wantStatus: http.StatusInternalServerError, users: stubUsers{err: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.users)
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("BEARER   abc "))
	assert.Empty(t, bearerToken("Bearer"))
	assert.Empty(t, bearerToken("Token abc"))
	assert.Empty(t, bearerToken(""))
}

func TestGoogleVerifier_EmptyToken(t *testing.T) {
	_, err := GoogleVerifier{Audience: "client"}.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestDevVerifier(t *testing.T) {
	id, err := DevVerifier{Subject: "dev"}.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "dev", id.Subject)
	assert.Equal(t, "dev@localhost", id.Email)
}
