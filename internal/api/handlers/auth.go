// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"
	"strings"

	"github.com/fluffyriot/vkresender/internal/authflow"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/gin-gonic/gin"
)

// AuthPageHandler starts a new sign-in attempt and renders the VK ID widget.
// Operators with a working token go straight to the dashboard.
func (h *Handler) AuthPageHandler(c *gin.Context) {
	if h.Config.ConfigErr != nil {
		h.renderError(c, http.StatusInternalServerError, h.Config.ConfigErr)
		return
	}

	st := session.FromContext(c)
	ctx := c.Request.Context()

	if st.Token() != "" && h.API.IsAuthenticated(ctx, st) {
		c.Redirect(http.StatusFound, "/main")
		return
	}

	start := h.Auth.Begin(ctx, st)

	c.HTML(http.StatusOK, "auth.html", h.CommonData(c, gin.H{
		"title":          "Авторизация",
		"auth_url":       start.URL,
		"app_id":         start.AppID,
		"redirect_url":   start.Redirect,
		"state":          start.State,
		"code_challenge": start.Challenge,
		"scope":          strings.Join(h.Config.VKScope, " "),
	}))
}

// RedirectHandler receives the code on the VK ID redirect route.
func (h *Handler) RedirectHandler(c *gin.Context) {
	var cb authflow.Callback
	_ = c.ShouldBindQuery(&cb)
	if desc := c.Query("error_description"); cb.Error != "" && desc != "" {
		cb.Error += ": " + desc
	}

	st := session.FromContext(c)
	res := h.Auth.Complete(c.Request.Context(), st, cb)
	h.noteResult(st, res)

	c.Redirect(http.StatusFound, res.Next())
}

// WidgetCallbackHandler receives the payload of the widget's success or
// error event. The page navigates to "next" itself.
func (h *Handler) WidgetCallbackHandler(c *gin.Context) {
	var cb authflow.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		cb = authflow.Callback{Error: "invalid widget payload"}
	}

	st := session.FromContext(c)
	res := h.Auth.Complete(c.Request.Context(), st, cb)
	h.noteResult(st, res)

	body := gin.H{"next": res.Next(), "phase": res.Phase.String()}
	if res.Err != nil {
		body["error"] = userMessage(res.Err)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) noteResult(st session.State, res authflow.Result) {
	switch res.Phase {
	case authflow.Linked:
		st.AddNotice(msgAccountLinked)
	case authflow.Failed:
		st.AddNotice(userMessage(res.Err))
	}
}

func (h *Handler) LogoutHandler(c *gin.Context) {
	session.FromContext(c).Clear()
	c.Redirect(http.StatusFound, "/auth")
}
