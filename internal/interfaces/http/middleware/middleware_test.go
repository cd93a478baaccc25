package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackgrid/rackgrid/internal/infrastructure/auth"
	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthEngine(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	jwtSvc := auth.NewJWTService("test-secret", time.Hour)
	m := NewAuthMiddleware(jwtSvc, logger.NewNop())

	r := gin.New()
	r.GET("/member", m.RequireAuth(), m.RequireFacility(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(constants.ContextKeyFacilityID))
	})
	r.GET("/admin", m.RequireAuth(), m.RequireSuperAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(constants.ContextKeyUserID))
	})
	return r, jwtSvc
}

func serve(r http.Handler, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set(constants.HeaderAuthorization, authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r, jwtSvc := newAuthEngine(t)

	member, err := jwtSvc.Generate("facility-1", "user-1", false)
	require.NoError(t, err)

	w := serve(r, "/member", "Bearer "+member)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "facility-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/member", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/member", "Token "+member).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/member", "Bearer nope").Code)
}

func TestRequireFacility(t *testing.T) {
	r, jwtSvc := newAuthEngine(t)

	adminOnly, err := jwtSvc.Generate("", "admin-1", true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, serve(r, "/member", "Bearer "+adminOnly).Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	r, jwtSvc := newAuthEngine(t)

	member, err := jwtSvc.Generate("facility-1", "user-1", false)
	require.NoError(t, err)
	admin, err := jwtSvc.Generate("", "admin-1", true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, serve(r, "/admin", "Bearer "+member).Code)

	w := serve(r, "/admin", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(constants.ContextKeyRequestID))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderXRequestID, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(constants.HeaderXRequestID))

	w = serve(r, "/", "")
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(constants.HeaderXRequestID))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), CustomLogger(logger.NewNop()), Recovery(logger.NewNop()))
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := serve(r, "/panic", "Bearer secret")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error occurred")
}

func TestCustomLoggerSkipPaths(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithSlog(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	r := gin.New()
	r.Use(RequestID(), CustomLogger(log, "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/plans", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "/health", "")
	assert.Empty(t, buf.String())

	serve(r, "/plans", "")
	assert.Contains(t, buf.String(), `"path":"/plans"`)
	assert.Contains(t, buf.String(), `"request_id"`)

	buf.Reset()
	r2 := gin.New()
	r2.Use(CustomLogger(log, "/health"))
	r2.GET("/health", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	serve(r2, "/health", "")
	assert.Contains(t, buf.String(), "server error")
}
