/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"locketprint/internal/domain"
	applog "locketprint/internal/log"
	"locketprint/internal/version"
)

// sqliteSchemaVersion tracks the local history schema.
// Bump this when you perform breaking schema changes and add migrations.
const sqliteSchemaVersion = 2

// language=SQL
// dialect=SQLite
const createJobsSQL = `CREATE TABLE IF NOT EXISTS print_jobs (
	id           TEXT    PRIMARY KEY,
	position     INTEGER NOT NULL,
	ts           INTEGER NOT NULL,
	images_count INTEGER NOT NULL,
	state_json   TEXT    NOT NULL
)`

// language=SQL
// dialect=SQLite
const selectJobsSQL = `SELECT id, ts, images_count, state_json FROM print_jobs ORDER BY position`

// language=SQL
// dialect=SQLite
const insertJobSQL = `INSERT INTO print_jobs(id, position, ts, images_count, state_json) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const deleteJobsSQL = `DELETE FROM print_jobs`

// SQLiteMedium keeps the log in an embedded SQLite database. With a positive
// quota the database is capped through max_page_count and writes beyond it
// fail with ErrQuotaExceeded.
type SQLiteMedium struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path, enables WAL mode and
// brings the schema up to date.
func OpenSQLite(ctx context.Context, path string, quotaBytes int) (*SQLiteMedium, error) {
	l := applog.WithOperation(applog.WithComponent("history"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, step := range []func(context.Context, *sql.DB) error{ensureMetaAndVersion, ensureJobsSchema, runMigrations} {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			l.Error("prepare history schema failed", slog.Any("err", err))
			return nil, err
		}
	}
	if quotaBytes > 0 {
		if err := capPages(ctx, db, quotaBytes); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	l.Debug("history database ready")
	return &SQLiteMedium{db: db}, nil
}

func (m *SQLiteMedium) Close() error { return m.db.Close() }

func (m *SQLiteMedium) ReadAll(ctx context.Context) ([]domain.PrintJob, error) {
	rows, err := m.db.QueryContext(ctx, selectJobsSQL)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	jobs := []domain.PrintJob{}
	for rows.Next() {
		var (
			j     domain.PrintJob
			state string
		)
		if err := rows.Scan(&j.ID, &j.Timestamp, &j.ImagesCount, &state); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if err := json.Unmarshal([]byte(state), &j.ProjectState); err != nil {
			return nil, fmt.Errorf("%w: job %s: %v", ErrCorrupt, j.ID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// WriteAll replaces all rows in one transaction.
func (m *SQLiteMedium) WriteAll(ctx context.Context, jobs []domain.PrintJob) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", mapSQLiteErr(err))
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, deleteJobsSQL); err != nil {
		return fmt.Errorf("delete jobs: %w", mapSQLiteErr(err))
	}
	for i, j := range jobs {
		state, err := json.Marshal(j.ProjectState)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", j.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insertJobSQL, j.ID, i, j.Timestamp, j.ImagesCount, string(state)); err != nil {
			return fmt.Errorf("insert job %s: %w", j.ID, mapSQLiteErr(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit jobs: %w", mapSQLiteErr(err))
	}
	return nil
}

func (m *SQLiteMedium) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, deleteJobsSQL); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}

// mapSQLiteErr turns a full database into ErrQuotaExceeded.
func mapSQLiteErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func capPages(ctx context.Context, db *sql.DB, quotaBytes int) error {
	var pageSize int
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return fmt.Errorf("read page size: %w", err)
	}
	pages := max(1, quotaBytes/max(1, pageSize))
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA max_page_count=%d", pages)); err != nil {
		return fmt.Errorf("set max_page_count: %w", err)
	}
	return nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh databases start at schema 1 and migrate forward.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureJobsSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createJobsSQL); err != nil {
		return fmt.Errorf("create print_jobs: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations up to sqliteSchemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < sqliteSchemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_print_jobs_position ON print_jobs(position);`,
				`INSERT OR REPLACE INTO meta(key, value) VALUES('created_by', 'locketprint');`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reports the schema recorded in the database.
func (m *SQLiteMedium) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := m.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
