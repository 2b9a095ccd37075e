// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"database/sql"
	"net/http"
	"net/url"

	"github.com/fluffyriot/vkresender/internal/authflow"
	"github.com/fluffyriot/vkresender/internal/collections"
	"github.com/fluffyriot/vkresender/internal/config"
	"github.com/fluffyriot/vkresender/internal/dispatch"
	"github.com/fluffyriot/vkresender/internal/importer"
	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/reports"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/fluffyriot/vkresender/internal/worker"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	DBConn      *sql.DB
	API         *vkapi.Client
	Config      *config.AppConfig
	Worker      *worker.Worker
	Reports     reports.Store
	Auth        *authflow.Handshake
	Importer    *importer.Importer
	Collections *collections.Manager
	Dispatcher  *dispatch.Dispatcher
	Log         logging.Logger
}

func NewHandler(db *sql.DB, api *vkapi.Client, store reports.Store, cfg *config.AppConfig, w *worker.Worker, log logging.Logger) *Handler {
	provider := authflow.NewProvider(cfg.VKAppID, cfg.VKRedirectURL, cfg.VKScope)

	return &Handler{
		DBConn:      db,
		API:         api,
		Config:      cfg,
		Worker:      w,
		Reports:     store,
		Auth:        authflow.New(api, provider, log),
		Importer:    importer.New(api, log),
		Collections: collections.New(api, log),
		Dispatcher:  dispatch.New(api, store, log),
		Log:         log,
	}
}

// CommonData adds what every page template needs.
func (h *Handler) CommonData(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["app_version"] = config.AppVersion
	if _, ok := data["notices"]; !ok {
		data["notices"] = session.FromContext(c).Notices()
	}
	return data
}

func (h *Handler) renderError(c *gin.Context, status int, err error) {
	c.HTML(status, "error.html", h.CommonData(c, gin.H{
		"error": err.Error(),
		"title": "Ошибка",
	}))
}

// fail ends a form action. Authentication errors go to the error middleware,
// everything else becomes a notice on the dashboard.
func (h *Handler) fail(c *gin.Context, st session.State, err error) {
	if vkapi.IsAuthError(err) {
		_ = c.Error(err)
		return
	}
	h.Log.Warn(c.Request.Context(), "action failed", "path", c.Request.URL.Path, "error", err)
	st.AddNotice(userMessage(err))
	backToMain(c)
}

// backToMain redirects to the dashboard, keeping the wall filter.
func backToMain(c *gin.Context) {
	target := "/main"
	if q := c.PostForm("q"); q != "" {
		target += "?q=" + url.QueryEscape(q)
	}
	c.Redirect(http.StatusFound, target)
}
