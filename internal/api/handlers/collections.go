// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"fmt"
	"strconv"

	"github.com/fluffyriot/vkresender/internal/collections"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/gin-gonic/gin"
)

func collectionID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, collections.ErrNotFound
	}
	return id, nil
}

func (h *Handler) CreateCollectionHandler(c *gin.Context) {
	st := session.FromContext(c)

	if err := h.Collections.Create(c.Request.Context(), st, c.PostForm("name")); err != nil {
		h.fail(c, st, err)
		return
	}
	backToMain(c)
}

func (h *Handler) DeleteCollectionHandler(c *gin.Context) {
	st := session.FromContext(c)

	id, err := collectionID(c)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	if err := h.Collections.Delete(c.Request.Context(), st, id); err != nil {
		h.fail(c, st, err)
		return
	}
	backToMain(c)
}

// OpenCollectionHandler opens a collection for editing, or closes it.
func (h *Handler) OpenCollectionHandler(c *gin.Context) {
	st := session.FromContext(c)

	id, err := collectionID(c)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	h.Collections.Open(st, id)
	backToMain(c)
}

func (h *Handler) AddCollectionGroupsHandler(c *gin.Context) {
	st := session.FromContext(c)
	ctx := c.Request.Context()

	id, err := collectionID(c)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	list, err := h.Collections.List(ctx, st)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	active := h.Collections.Active(st, list)
	if active != nil && active.ID != id {
		active = nil
	}

	var wallIDs []int64
	for _, raw := range c.PostFormArray("group_ids") {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			wallIDs = append(wallIDs, v)
		}
	}

	n, err := h.Collections.AddMembers(ctx, st, active, wallIDs)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	st.AddNotice(fmt.Sprintf("Добавлено групп в коллекцию «%s»: %d", active.Name, n))
	backToMain(c)
}

// UseCollectionHandler replaces the broadcast selection with the collection.
func (h *Handler) UseCollectionHandler(c *gin.Context) {
	st := session.FromContext(c)
	ctx := c.Request.Context()

	id, err := collectionID(c)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	list, err := h.Collections.List(ctx, st)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	col, ok := collections.Find(list, id)
	if !ok {
		h.fail(c, st, collections.ErrNotFound)
		return
	}

	walls, err := h.API.GetGroups(ctx, st)
	if err != nil {
		h.fail(c, st, err)
		return
	}

	n := h.Collections.Use(st, col, walls)
	st.AddNotice(fmt.Sprintf("Выбрано %d групп из коллекции «%s»", n, col.Name))
	backToMain(c)
}
