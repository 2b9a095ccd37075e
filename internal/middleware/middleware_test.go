// SPDX-License-Identifier: AGPL-3.0-only
package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.Use(session.Middleware(session.NewStore(testSecret, false), logging.Discard()))
	r.Use(ErrorMiddleware(logging.Discard()))
	r.Use(SessionGuard())

	r.GET("/auth/test-login", func(c *gin.Context) {
		session.FromContext(c).SetToken("tok")
		c.Status(http.StatusNoContent)
	})
	r.GET("/main", func(c *gin.Context) {
		c.String(http.StatusOK, "token=%s", session.FromContext(c).Token())
	})
	r.GET("/main/expired", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("get groups: %w", vkapi.ErrUnauthorized))
	})
	r.GET("/api/users", func(c *gin.Context) {
		_ = c.Error(vkapi.ErrUnauthorized)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func login(t *testing.T, r *gin.Engine) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/test-login", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func do(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionGuard_RedirectsWithoutToken(t *testing.T) {
	r := newRouter()

	w := do(r, "/main", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth", w.Header().Get("Location"))

	w = do(r, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestSessionGuard_AllowsWithToken(t *testing.T) {
	r := newRouter()
	cookies := login(t, r)

	w := do(r, "/main", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token=tok", w.Body.String())
}

func TestErrorMiddleware_UnauthorizedClearsToken(t *testing.T) {
	r := newRouter()
	cookies := login(t, r)

	w := do(r, "/main/expired", cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth", w.Header().Get("Location"))

	after := w.Result().Cookies()
	require.NotEmpty(t, after)

	w = do(r, "/main", after)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestErrorMiddleware_APIGetsJSON(t *testing.T) {
	r := newRouter()
	cookies := login(t, r)

	w := do(r, "/api/users", cookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"not authenticated"}`, w.Body.String())
}

func TestIsPublicRoute(t *testing.T) {
	assert.True(t, isPublicRoute("/"))
	assert.True(t, isPublicRoute("/redirect"))
	assert.True(t, isPublicRoute("/auth/widget"))
	assert.False(t, isPublicRoute("/main"))
	assert.False(t, isPublicRoute("/posts"))
}
