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
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// openPGForTest connects to LKP_TEST_PG_DSN and skips when no server is reachable.
func openPGForTest(t *testing.T) *PostgresMedium {
	t.Helper()
	dsn := os.Getenv("LKP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LKP_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := OpenPostgres(ctx, dsn, "")
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	return m
}

func TestPostgresMedium(t *testing.T) {
	m := openPGForTest(t)
	defer func() { _ = m.Close() }()
	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	exerciseMedium(t, m)
}

func TestPostgresMigrationsIdempotent(t *testing.T) {
	m := openPGForTest(t)
	defer func() { _ = m.Close() }()
	if err := applyMigrations(context.Background(), m.db); err != nil {
		t.Fatalf("second applyMigrations error: %v", err)
	}
}

func TestMapPgErr(t *testing.T) {
	tests := []struct {
		code  string
		quota bool
	}{
		{"53100", true},
		{"53200", true},
		{"54000", true},
		{"23505", false},
		{"57014", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapPgErr(fmt.Errorf("insert job j0: %w", &pgconn.PgError{Code: tt.code}))
			if got := errors.Is(err, ErrQuotaExceeded); got != tt.quota {
				t.Fatalf("quota = %v, want %v (err %v)", got, tt.quota, err)
			}
		})
	}
	if err := mapPgErr(errors.New("connection reset")); errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("plain error mapped to quota: %v", err)
	}
}
