package middleware

import (
	"langtest_backend/internal/config"
	"langtest_backend/internal/model"
	"langtest_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-with-enough-length-123456"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: secret}}

	r := gin.New()
	authed := r.Group("/", AuthMiddleware(cfg))
	authed.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, "%d", util.GetUserFromContext(c).UserID)
	})
	authed.GET("/admin", RoleMiddleware(model.Teacher), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func request(t *testing.T, r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, role model.UserRole, key string, ttl time.Duration) string {
	t.Helper()
	tok, err := util.GenerateJWT(12, role, "u@example.com", key, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	w := request(t, r, "/me", token(t, model.Student, secret, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, request(t, r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "/me", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "/me", token(t, model.Student, "another-secret", time.Hour)).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "/me", token(t, model.Student, secret, -time.Minute)).Code)
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusForbidden, request(t, r, "/admin", token(t, model.Student, secret, time.Hour)).Code)
	assert.Equal(t, http.StatusOK, request(t, r, "/admin", token(t, model.Teacher, secret, time.Hour)).Code)
	assert.Equal(t, http.StatusOK, request(t, r, "/admin", token(t, model.Admin, secret, time.Hour)).Code)
}
