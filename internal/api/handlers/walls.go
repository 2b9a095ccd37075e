// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fluffyriot/vkresender/internal/importer"
	"github.com/fluffyriot/vkresender/internal/selection"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ToggleWallHandler(c *gin.Context) {
	st := session.FromContext(c)

	id, err := strconv.ParseInt(c.PostForm("id"), 10, 64)
	if err != nil {
		h.fail(c, st, selection.ErrUnknownWall)
		return
	}

	walls, err := h.API.GetGroups(c.Request.Context(), st)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	sel := selection.Load(st, walls)
	if _, err := sel.Toggle(walls, id); err != nil {
		sel.Save(st)
		h.fail(c, st, err)
		return
	}
	sel.Save(st)

	backToMain(c)
}

func (h *Handler) SelectAllHandler(c *gin.Context) {
	h.bulkSelect(c, (*selection.Selection).SelectAll)
}

func (h *Handler) ClearAllHandler(c *gin.Context) {
	h.bulkSelect(c, (*selection.Selection).ClearAll)
}

func (h *Handler) bulkSelect(c *gin.Context, apply func(*selection.Selection, []vkapi.Wall)) {
	st := session.FromContext(c)

	walls, err := h.API.GetGroups(c.Request.Context(), st)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	sel := selection.Load(st, walls)
	apply(sel, selection.Filter(walls, c.PostForm("q")))
	sel.Save(st)

	backToMain(c)
}

func (h *Handler) ImportWallsHandler(c *gin.Context) {
	st := session.FromContext(c)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		h.fail(c, st, importer.ErrEmpty)
		return
	}
	defer file.Close()

	handles, err := importer.Read(file)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	res, err := h.Importer.Import(c.Request.Context(), st, handles)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	preview := importer.NewPreview(res.Submitted)
	msg := fmt.Sprintf("Импортировано групп: %d (%s", len(res.Submitted), strings.Join(preview.Shown, ", "))
	if preview.Remaining > 0 {
		msg += fmt.Sprintf(" и ещё %d", preview.Remaining)
	}
	st.AddNotice(msg + ")")

	backToMain(c)
}
