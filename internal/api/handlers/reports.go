// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fluffyriot/vkresender/internal/reports"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DownloadReportHandler serves a stored dispatch report as result.txt.
func (h *Handler) DownloadReportHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.renderError(c, http.StatusBadRequest, reports.ErrNotFound)
		return
	}

	rec, err := h.Reports.Get(c.Request.Context(), id)
	if errors.Is(err, reports.ErrNotFound) {
		h.renderError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rec.FileName()))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(rec.Body))
}
