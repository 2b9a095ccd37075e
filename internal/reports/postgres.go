// SPDX-License-Identifier: AGPL-3.0-only
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Postgres stores reports in the dispatch_reports table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Save(ctx context.Context, r Record) error {
	query := `
		INSERT INTO dispatch_reports (id, created_at, destinations, messages, failures, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := p.db.ExecContext(ctx, query, r.ID, r.CreatedAt, r.Destinations, r.Messages, r.Failures, r.Body)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	query := `SELECT id, created_at, destinations, messages, failures, body FROM dispatch_reports WHERE id = $1`

	var r Record
	err := p.db.QueryRowContext(ctx, query, id).
		Scan(&r.ID, &r.CreatedAt, &r.Destinations, &r.Messages, &r.Failures, &r.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select report: %w", err)
	}
	return r, nil
}

// Recent lists the newest reports without their bodies.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, created_at, destinations, messages, failures
		FROM dispatch_reports
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Destinations, &r.Messages, &r.Failures); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM dispatch_reports WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete reports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
