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
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"locketprint/internal/config"
	"locketprint/internal/domain"
)

func sampleJobs() []domain.PrintJob {
	return []domain.PrintJob{
		{ID: "b", Timestamp: 2000, ImagesCount: 2, ProjectState: testState(2)},
		{ID: "a", Timestamp: 1000, ImagesCount: 1, ProjectState: testState(1)},
	}
}

func exerciseMedium(t *testing.T, m Medium) {
	t.Helper()
	ctx := context.Background()
	jobs, err := m.ReadAll(ctx)
	if err != nil || len(jobs) != 0 {
		t.Fatalf("ReadAll on empty medium = %d, %v", len(jobs), err)
	}
	want := sampleJobs()
	if err := m.WriteAll(ctx, want); err != nil {
		t.Fatalf("WriteAll error: %v", err)
	}
	got, err := m.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	// a shorter write replaces the whole list
	if err := m.WriteAll(ctx, want[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ReadAll(ctx)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("after rewrite = %+v", got)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	got, err = m.ReadAll(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("after clear = %d, %v", len(got), err)
	}
}

func TestMemoryMedium(t *testing.T) { exerciseMedium(t, &MemoryMedium{}) }

func TestFileMedium(t *testing.T) {
	exerciseMedium(t, &FileMedium{Path: filepath.Join(t.TempDir(), "h", "history.json")})
}

func TestFileMediumQuota(t *testing.T) {
	m := &FileMedium{Path: filepath.Join(t.TempDir(), "history.json"), QuotaBytes: 64}
	err := m.WriteAll(context.Background(), sampleJobs())
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("WriteAll error = %v, want ErrQuotaExceeded", err)
	}
	if _, statErr := os.Stat(m.Path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("rejected write must not create the file")
	}
}

func TestSQLiteMedium(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.sqlite")
	m, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer func() { _ = m.Close() }()
	exerciseMedium(t, m)

	v, err := m.SchemaVersion(ctx)
	if err != nil || v != sqliteSchemaVersion {
		t.Fatalf("SchemaVersion = %d, %v; want %d", v, err, sqliteSchemaVersion)
	}
}

// bulkyState holds one photo whose name pushes each stored job past a
// database page, so a handful of jobs is enough to fill a small quota.
func bulkyState() domain.ProjectState {
	st := domain.EmptyState()
	st.Items = append(st.Items, domain.NewPhotoItem("p0", strings.Repeat("n", 6000), "assets/x.jpg", 640, 480))
	st.SelectedIndex = 0
	return st
}

// openQuotaSQLite opens a database that has room for extraPages pages on top
// of its empty schema.
func openQuotaSQLite(t *testing.T, extraPages int) *SQLiteMedium {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.sqlite")
	m, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	var pageSize, pageCount int
	if err := m.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		t.Fatal(err)
	}
	if err := m.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		t.Fatal(err)
	}
	_ = m.Close()
	m, err = OpenSQLite(ctx, path, (pageCount+extraPages)*pageSize)
	if err != nil {
		t.Fatalf("reopen with quota: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSQLiteMediumQuota(t *testing.T) {
	ctx := context.Background()
	m := openQuotaSQLite(t, 11)

	jobs := make([]domain.PrintJob, 10)
	for i := range jobs {
		jobs[i] = domain.PrintJob{ID: fmt.Sprintf("j%d", i), Timestamp: int64(i), ImagesCount: 1, ProjectState: bulkyState()}
	}
	if err := m.WriteAll(ctx, jobs); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("WriteAll of a full log = %v, want ErrQuotaExceeded", err)
	}
	if err := m.WriteAll(ctx, jobs[:5]); err != nil {
		t.Fatalf("WriteAll of half the log: %v", err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	var reported []error
	log := New(m, WithIDs(seqIDs()), WithClock(fixedClock()),
		WithReporter(func(_ context.Context, err error) { reported = append(reported, err) }))
	var last domain.PrintJob
	for i := 0; i < 10; i++ {
		job, err := log.Save(ctx, bulkyState())
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		last = job
	}
	if len(reported) != 0 {
		t.Fatalf("retry with half the log should fit, reported %v", reported)
	}
	got, err := log.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) < (DefaultCapacity+1)/2 || len(got) >= DefaultCapacity {
		t.Fatalf("kept %d jobs, want between %d and %d", len(got), (DefaultCapacity+1)/2, DefaultCapacity-1)
	}
	if got[0].ID != last.ID {
		t.Fatalf("newest job = %s, want %s", got[0].ID, last.ID)
	}
}

func TestSQLiteMediumReopenKeepsJobs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.sqlite")
	m, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.WriteAll(ctx, sampleJobs()); err != nil {
		t.Fatal(err)
	}
	_ = m.Close()

	m, err = OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer func() { _ = m.Close() }()
	got, err := m.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sampleJobs(), got); diff != "" {
		t.Fatalf("reopened mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	gen := config.GeneralConfig{Workspace: t.TempDir()}
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			l, err := Open(ctx, gen, config.HistoryConfig{Backend: backend, Capacity: 3}, "")
			if err != nil {
				t.Fatalf("Open error: %v", err)
			}
			defer func() { _ = l.Close() }()
			if l.Capacity() != 3 {
				t.Fatalf("Capacity = %d, want 3", l.Capacity())
			}
			if _, err := l.Save(ctx, testState(1)); err != nil {
				t.Fatalf("Save error: %v", err)
			}
			if err := l.Clear(ctx); err != nil {
				t.Fatalf("Clear error: %v", err)
			}
		})
	}
	if _, err := Open(ctx, gen, config.HistoryConfig{Backend: "floppy"}, ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/0002_print_jobs_position.sql")
	if err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error for unnumbered file")
	}
}
