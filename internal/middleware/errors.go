// SPDX-License-Identifier: AGPL-3.0-only
package middleware

import (
	"net/http"

	"github.com/fluffyriot/vkresender/internal/config"
	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gin-gonic/gin"
)

// ErrorMiddleware applies one policy to errors handlers record with c.Error:
// an authentication failure drops the token and restarts sign-in, anything
// else that left the response unwritten gets an error page.
func ErrorMiddleware(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		err := last.Err

		if vkapi.IsAuthError(err) {
			session.FromContext(c).ClearToken()
			log.Warn(c.Request.Context(), "session token rejected", "path", c.Request.URL.Path, "error", err)
			if c.Writer.Written() {
				return
			}
			denyAccess(c)
			return
		}

		log.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
		if c.Writer.Written() {
			return
		}

		if isAPIRoute(c.Request.URL.Path) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.HTML(http.StatusBadGateway, "error.html", gin.H{
			"error":       err.Error(),
			"app_version": config.AppVersion,
		})
	}
}
