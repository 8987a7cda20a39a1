package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, role models.UserRole, status models.UserStatus) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, "8f9c2d3e-0000-4000-8000-000000000001", role, status, time.Hour)
	require.NoError(t, err)
	return tok
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, actor.ID)
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret))

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer not-a-jwt").Code)

	w := do(r, "Bearer "+token(t, models.UserRoleCitizen, models.UserStatusActive))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8f9c2d3e-0000-4000-8000-000000000001", w.Body.String())
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	path := "/?token=" + token(t, models.UserRoleNGO, models.UserStatusActive)

	tests := []struct {
		name string
		mw   gin.HandlerFunc
		want int
	}{
		{"api routes ignore query token", AuthMiddleware(testSecret), http.StatusUnauthorized},
		{"optional auth ignores query token", OptionalAuthMiddleware(testSecret), http.StatusOK},
		{"ws route accepts query token", WSAuthMiddleware(testSecret), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.mw).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	newRouter(OptionalAuthMiddleware(testSecret)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := newRouter(OptionalAuthMiddleware(testSecret))

	w := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer broken").Code)
}

func TestRequireCapability(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret), RequireCapability(auth.CapReportAssign))

	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+token(t, models.UserRoleCitizen, models.UserStatusActive)).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+token(t, models.UserRoleAuthority, models.UserStatusSuspended)).Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+token(t, models.UserRoleAuthority, models.UserStatusActive)).Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newRouter(RequestIDMiddleware())

	w := do(r, "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://ops.example.org"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ops.example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://ops.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowAllWithoutCredentials(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}} {
		r := gin.New()
		r.Use(CORSMiddleware(origins))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anywhere.example.net")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := newRouter(rl.Middleware())

	assert.Equal(t, http.StatusOK, do(r, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "").Code)
}
