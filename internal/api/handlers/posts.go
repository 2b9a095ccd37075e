// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/fluffyriot/vkresender/internal/dispatch"
	"github.com/fluffyriot/vkresender/internal/images"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gin-gonic/gin"
)

// maxPostForm bounds the multipart form kept in memory; larger parts spill
// to temporary files.
const maxPostForm = 32 << 20

// SendPostHandler broadcasts the composed text and images to the selected
// walls and keeps the report for download.
func (h *Handler) SendPostHandler(c *gin.Context) {
	st := session.FromContext(c)

	text := c.PostForm("text")
	wallIDs := st.Selected()

	if err := dispatch.Validate(text, wallIDs); err != nil {
		h.fail(c, st, err)
		return
	}

	var attachments []vkapi.Image
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["images"] {
			img, err := readImage(fh)
			if err != nil {
				h.fail(c, st, err)
				return
			}
			attachments = append(attachments, img)
		}
	}

	report, err := h.Dispatcher.Send(c.Request.Context(), st, dispatch.Request{
		Text:    text,
		WallIDs: wallIDs,
		Images:  attachments,
	})
	if err != nil {
		h.fail(c, st, err)
		return
	}

	st.SetLastReport(report.ID)
	msg := msgPostsSent
	if n := report.Failures(); n > 0 {
		msg += fmt.Sprintf(" Ошибок: %d.", n)
	}
	st.AddNotice(msg)

	backToMain(c)
}

func readImage(fh *multipart.FileHeader) (vkapi.Image, error) {
	if err := images.Check(fh.Filename, fh.Size); err != nil {
		return vkapi.Image{}, err
	}

	f, err := fh.Open()
	if err != nil {
		return vkapi.Image{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, images.MaxFileSize+1))
	if err != nil {
		return vkapi.Image{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return vkapi.Image{Name: fh.Filename, Data: data}, nil
}
