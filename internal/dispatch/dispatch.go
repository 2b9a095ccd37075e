// SPDX-License-Identifier: AGPL-3.0-only

// Package dispatch sends one composed post to many walls and turns the
// backend answer into a downloadable report.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fluffyriot/vkresender/internal/images"
	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/reports"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/google/uuid"
)

// Delimiter separates independent posts inside one composed text.
const Delimiter = "\n\n\n\n"

var (
	ErrValidation     = errors.New("invalid post")
	ErrEmptyMessage   = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrNoDestinations = fmt.Errorf("%w: no walls selected", ErrValidation)
)

// Validate runs before any backend call.
func Validate(text string, wallIDs []int64) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if len(wallIDs) == 0 {
		return ErrNoDestinations
	}
	return nil
}

// SplitMessages cuts text into post bodies at every Delimiter. Form posts
// arrive with CRLF line endings, so those are normalised first.
func SplitMessages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, Delimiter)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

type Poster interface {
	WallPost(ctx context.Context, store vkapi.TokenStore, messages []string, wallIDs []int64, images []vkapi.Image) (*vkapi.WallPostResult, error)
}

type Request struct {
	Text    string
	WallIDs []int64
	Images  []vkapi.Image
}

type Dispatcher struct {
	poster  Poster
	reports reports.Store
	log     logging.Logger
	now     func() time.Time
}

// New builds a Dispatcher. reports may be nil, in which case results are not
// kept.
func New(poster Poster, store reports.Store, log logging.Logger) *Dispatcher {
	return &Dispatcher{
		poster:  poster,
		reports: store,
		log:     log.With("component", "dispatch"),
		now:     time.Now,
	}
}

// Send validates req, posts it in a single backend call and returns the
// report. A failed call returns no report.
func (d *Dispatcher) Send(ctx context.Context, store vkapi.TokenStore, req Request) (*Report, error) {
	if err := Validate(req.Text, req.WallIDs); err != nil {
		return nil, err
	}

	attachments := make([]vkapi.Image, 0, len(req.Images))
	for _, img := range req.Images {
		n, err := images.Normalize(img)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		attachments = append(attachments, n)
	}

	messages := SplitMessages(req.Text)

	res, err := d.poster.WallPost(ctx, store, messages, req.WallIDs, attachments)
	if err != nil {
		d.log.Warn(ctx, "wall post failed", "walls", len(req.WallIDs), "error", err)
		return nil, fmt.Errorf("wall post: %w", err)
	}

	id := uuid.New()
	report := BuildReport(res, len(messages))
	report.ID = id.String()

	d.log.Info(ctx, "broadcast finished",
		"report", report.ID,
		"walls", len(req.WallIDs),
		"messages", len(messages),
		"images", len(attachments),
		"failures", report.Failures(),
	)

	if d.reports != nil {
		err := d.reports.Save(ctx, reports.Record{
			ID:           id,
			CreatedAt:    d.now(),
			Destinations: report.Destinations,
			Messages:     report.Messages,
			Failures:     report.Failures(),
			Body:         report.Text(),
		})
		if err != nil {
			d.log.Error(ctx, "failed to store report", "report", report.ID, "error", err)
		}
	}

	return report, nil
}
