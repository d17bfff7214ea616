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
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"locketprint/internal/domain"
	applog "locketprint/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pgQuotaCodes are SQLSTATEs that mean the server is out of room.
var pgQuotaCodes = map[string]bool{
	"53100": true, // disk_full
	"53200": true, // out_of_memory
	"54000": true, // program_limit_exceeded
}

// PostgresMedium keeps the log in a shared PostgreSQL database.
type PostgresMedium struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and applies the embedded migrations. A non
// empty password overrides the one in dsn; it comes from the OS keychain.
func OpenPostgres(ctx context.Context, dsn, password string) (*PostgresMedium, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if password != "" {
		cfg.Password = password
	}
	db := stdlib.OpenDB(*cfg)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresMedium{db: db}, nil
}

func (m *PostgresMedium) Close() error { return m.db.Close() }

func (m *PostgresMedium) ReadAll(ctx context.Context) ([]domain.PrintJob, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, ts, images_count, project_state FROM print_jobs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	jobs := []domain.PrintJob{}
	for rows.Next() {
		var (
			j     domain.PrintJob
			state []byte
		)
		if err := rows.Scan(&j.ID, &j.Timestamp, &j.ImagesCount, &state); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if err := json.Unmarshal(state, &j.ProjectState); err != nil {
			return nil, fmt.Errorf("%w: job %s: %v", ErrCorrupt, j.ID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (m *PostgresMedium) WriteAll(ctx context.Context, jobs []domain.PrintJob) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", mapPgErr(err))
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM print_jobs`); err != nil {
		return fmt.Errorf("delete jobs: %w", mapPgErr(err))
	}
	for i, j := range jobs {
		state, err := json.Marshal(j.ProjectState)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", j.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO print_jobs (id, position, ts, images_count, project_state) VALUES ($1, $2, $3, $4, $5)`,
			j.ID, i, j.Timestamp, j.ImagesCount, state); err != nil {
			return fmt.Errorf("insert job %s: %w", j.ID, mapPgErr(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit jobs: %w", mapPgErr(err))
	}
	return nil
}

func (m *PostgresMedium) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM print_jobs`); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgQuotaCodes[pgErr.Code] {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each one in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("history"), "pg_migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		v, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, v, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
