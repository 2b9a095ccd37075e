// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/stats"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gin-gonic/gin"
)

// UsersHandler lists the linked VK accounts with their post counts.
func (h *Handler) UsersHandler(c *gin.Context) {
	st := session.FromContext(c)

	statsData, err := stats.GetStats(c.Request.Context(), h.API, st)
	if err != nil {
		if vkapi.IsAuthError(err) {
			_ = c.Error(err)
			return
		}
		h.Log.Warn(c.Request.Context(), "error getting users", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": detail(err)})
		return
	}

	c.JSON(http.StatusOK, statsData)
}
