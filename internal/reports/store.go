// SPDX-License-Identifier: AGPL-3.0-only

// Package reports keeps the history of dispatch reports so a result file can
// be downloaded again after the page that produced it is gone.
package reports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const RecentLimit = 20

var ErrNotFound = errors.New("report not found")

type Record struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Destinations int
	Messages     int
	Failures     int
	Body         string
}

type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FileName is the download name of a report.
func (r Record) FileName() string {
	return "result.txt"
}
