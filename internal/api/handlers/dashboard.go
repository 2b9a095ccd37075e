// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/fluffyriot/vkresender/internal/collections"
	"github.com/fluffyriot/vkresender/internal/reports"
	"github.com/fluffyriot/vkresender/internal/selection"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/stats"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gin-gonic/gin"
)

func (h *Handler) MainHandler(c *gin.Context) {
	if h.Config.ConfigErr != nil {
		h.renderError(c, http.StatusInternalServerError, h.Config.ConfigErr)
		return
	}

	st := session.FromContext(c)
	ctx := c.Request.Context()

	walls, err := h.API.GetGroups(ctx, st)
	if err != nil {
		if vkapi.IsAuthError(err) {
			_ = c.Error(err)
			return
		}
		h.renderError(c, http.StatusBadGateway, err)
		return
	}

	list, err := h.Collections.List(ctx, st)
	if err != nil {
		if vkapi.IsAuthError(err) {
			_ = c.Error(err)
			return
		}
		h.renderError(c, http.StatusBadGateway, err)
		return
	}

	sel := selection.Load(st, walls)
	sel.Save(st)

	query := c.Query("q")
	active := h.Collections.Active(st, list)

	teamStats, err := stats.GetStats(ctx, h.API, st)
	if err != nil {
		h.Log.Warn(ctx, "could not load accounts", "error", err)
	}

	recent, err := h.Reports.Recent(ctx, reports.RecentLimit)
	if err != nil {
		h.Log.Warn(ctx, "could not load reports", "error", err)
	}

	c.HTML(http.StatusOK, "main.html", h.CommonData(c, gin.H{
		"title":            "Отправка",
		"query":            query,
		"walls":            sel.Views(selection.Filter(walls, query)),
		"total_walls":      len(walls),
		"selected_count":   sel.Len(),
		"collections":      list,
		"active":           active,
		"collection_query": c.Query("cq"),
		"available":        collections.Available(walls, active, c.Query("cq")),
		"stats":            teamStats,
		"reports":          recent,
		"last_report":      st.LastReport(),
	}))
}
