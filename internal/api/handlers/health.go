// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	if h.DBConn == nil {
		body := gin.H{"status": "ok", "storage": "memory"}
		if h.Config.DBInitErr != nil {
			body["status"] = "degraded"
			body["details"] = h.Config.DBInitErr.Error()
		}
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.DBConn.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "failure", "details": "database ping failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": "postgres"})
}
