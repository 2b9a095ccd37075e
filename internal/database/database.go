// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Open connects to PostgreSQL and applies pending migrations.
func Open(url string) (*sql.DB, int64, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to the DB: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to reach the DB: %w", err)
	}

	goose.SetBaseFS(schemaFS)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, 0, err
	}

	if err := goose.Up(db, "schema"); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to get DB version: %w", err)
	}

	return db, version, nil
}
