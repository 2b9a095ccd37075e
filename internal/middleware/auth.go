// SPDX-License-Identifier: AGPL-3.0-only
package middleware

import (
	"net/http"
	"strings"

	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/gin-gonic/gin"
)

// SessionGuard sends visitors without a backend token to the sign-in page.
// API routes get a 401 instead of a redirect.
func SessionGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicRoute(c.Request.URL.Path) {
			c.Next()
			return
		}

		if session.FromContext(c).Token() == "" {
			denyAccess(c)
			return
		}

		c.Next()
	}
}

func denyAccess(c *gin.Context) {
	if isAPIRoute(c.Request.URL.Path) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.Redirect(http.StatusFound, "/auth")
	c.Abort()
}

func isPublicRoute(path string) bool {
	if path == "/" {
		return true
	}

	publicPrefixes := []string{
		"/auth",
		"/redirect",
		"/static",
		"/health",
	}

	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
