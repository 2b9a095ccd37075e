// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"github.com/fluffyriot/vkresender/internal/middleware"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes installs the middleware chain and every dashboard route.
func (h *Handler) RegisterRoutes(r *gin.Engine, store sessions.Store) {
	r.MaxMultipartMemory = maxPostForm

	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(session.Middleware(store, h.Log))
	r.Use(middleware.ErrorMiddleware(h.Log))
	r.Use(middleware.SessionGuard())

	r.GET("/health", h.HealthCheckHandler)

	r.GET("/", h.AuthPageHandler)
	r.GET("/auth", h.AuthPageHandler)
	r.POST("/auth/widget", h.WidgetCallbackHandler)
	r.GET("/redirect", h.RedirectHandler)
	r.POST("/logout", h.LogoutHandler)

	r.GET("/main", h.MainHandler)

	walls := r.Group("/walls")
	{
		walls.POST("/toggle", h.ToggleWallHandler)
		walls.POST("/select-all", h.SelectAllHandler)
		walls.POST("/clear-all", h.ClearAllHandler)
		walls.POST("/import", h.ImportWallsHandler)
	}

	r.POST("/collections", h.CreateCollectionHandler)
	col := r.Group("/collections/:id")
	{
		col.POST("/delete", h.DeleteCollectionHandler)
		col.POST("/open", h.OpenCollectionHandler)
		col.POST("/groups", h.AddCollectionGroupsHandler)
		col.POST("/use", h.UseCollectionHandler)
	}

	r.POST("/posts", h.SendPostHandler)
	r.GET("/reports/:id", h.DownloadReportHandler)

	r.GET("/api/users", h.UsersHandler)
}
