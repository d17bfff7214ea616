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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"locketprint/internal/domain"
)

func testState(n int) domain.ProjectState {
	st := domain.EmptyState()
	for i := 0; i < n; i++ {
		it := domain.NewPhotoItem(fmt.Sprintf("p%d", i), fmt.Sprintf("p%d.jpg", i), "assets/x.jpg", 640, 480)
		st.Items = append(st.Items, it.SetShape(domain.ShapeOval).ZoomBy(0.3).RotateBy(90))
	}
	st.SelectedIndex = n - 1
	return st
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job-%02d", n)
	}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

// scripted fails the writes listed in fail and records every write.
type scripted struct {
	MemoryMedium
	fail   map[int]error
	writes [][]domain.PrintJob
}

func (s *scripted) WriteAll(ctx context.Context, jobs []domain.PrintJob) error {
	s.writes = append(s.writes, append([]domain.PrintJob(nil), jobs...))
	if err, ok := s.fail[len(s.writes)]; ok {
		return err
	}
	return s.MemoryMedium.WriteAll(ctx, jobs)
}

func TestSaveKeepsNewestWithinCapacity(t *testing.T) {
	ctx := context.Background()
	l := New(&MemoryMedium{}, WithIDs(seqIDs()), WithClock(fixedClock()))
	for i := 0; i < 11; i++ {
		if _, err := l.Save(ctx, testState(1)); err != nil {
			t.Fatalf("Save #%d error: %v", i, err)
		}
	}
	jobs, err := l.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(jobs) != 10 {
		t.Fatalf("len(jobs) = %d, want 10", len(jobs))
	}
	if jobs[0].ID != "job-11" || jobs[9].ID != "job-02" {
		t.Fatalf("order = %s..%s, want job-11..job-02", jobs[0].ID, jobs[9].ID)
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i-1].Timestamp <= jobs[i].Timestamp {
			t.Fatalf("jobs not newest first at %d", i)
		}
	}
}

func TestSaveRecordsSnapshot(t *testing.T) {
	ctx := context.Background()
	l := New(&MemoryMedium{}, WithClock(fixedClock()))
	st := testState(3)
	job, err := l.Save(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if job.ID == "" || job.ImagesCount != 3 {
		t.Fatalf("job = %+v", job)
	}
	if job.Timestamp != time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC).UnixMilli() {
		t.Fatalf("Timestamp = %d", job.Timestamp)
	}
	// later edits to the caller's state must not leak into the snapshot
	st.Items[0] = st.Items[0].SetZoom(7)
	got, found, err := l.Restore(ctx, job.ID)
	if err != nil || !found {
		t.Fatalf("Restore = %v, %v", found, err)
	}
	if diff := cmp.Diff(testState(3), got); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestRestoreUnknownID(t *testing.T) {
	l := New(&MemoryMedium{})
	st, found, err := l.Restore(context.Background(), "nope")
	if err != nil || found {
		t.Fatalf("Restore = %+v, %v, %v; want not found", st, found, err)
	}
}

func TestSaveRetriesWithHalfOnQuota(t *testing.T) {
	ctx := context.Background()
	m := &scripted{}
	l := New(m, WithIDs(seqIDs()))
	for i := 0; i < 10; i++ {
		if _, err := l.Save(ctx, testState(1)); err != nil {
			t.Fatal(err)
		}
	}
	m.fail = map[int]error{len(m.writes) + 1: fmt.Errorf("write: %w", ErrQuotaExceeded)}
	job, err := l.Save(ctx, testState(2))
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if job.ID != "job-11" {
		t.Fatalf("job.ID = %q", job.ID)
	}
	last := m.writes[len(m.writes)-1]
	if len(last) != 5 || last[0].ID != "job-11" {
		t.Fatalf("retry wrote %d entries starting %q, want 5 starting job-11", len(last), last[0].ID)
	}
	jobs, _ := l.LoadAll(ctx)
	if len(jobs) != 5 {
		t.Fatalf("len(jobs) = %d, want 5", len(jobs))
	}
}

func TestSaveSwallowsSecondQuotaFailure(t *testing.T) {
	ctx := context.Background()
	quota := fmt.Errorf("write: %w", ErrQuotaExceeded)
	m := &scripted{fail: map[int]error{1: quota, 2: quota}}
	var reported []error
	l := New(m, WithReporter(func(_ context.Context, err error) { reported = append(reported, err) }))
	job, err := l.Save(ctx, testState(1))
	if err != nil {
		t.Fatalf("Save error = %v, want nil", err)
	}
	if job.ID == "" {
		t.Fatalf("expected job to be returned")
	}
	if len(reported) != 1 || !errors.Is(reported[0], ErrQuotaExceeded) {
		t.Fatalf("reported = %v", reported)
	}
	if len(m.writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(m.writes))
	}
}

func TestSaveSurfacesOtherErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	m := &scripted{fail: map[int]error{1: boom}}
	l := New(m)
	if _, err := l.Save(context.Background(), testState(1)); !errors.Is(err, boom) {
		t.Fatalf("Save error = %v, want %v", err, boom)
	}
	if len(m.writes) != 1 {
		t.Fatalf("writes = %d, want no retry", len(m.writes))
	}
}

func TestMemoryQuotaEvictsOnRealSize(t *testing.T) {
	ctx := context.Background()
	probe := &MemoryMedium{}
	l := New(probe, WithCapacity(4), WithIDs(seqIDs()), WithClock(fixedClock()))
	for i := 0; i < 4; i++ {
		if _, err := l.Save(ctx, testState(2)); err != nil {
			t.Fatal(err)
		}
	}
	full := len(probe.data)

	m := &MemoryMedium{QuotaBytes: full - 1}
	l = New(m, WithCapacity(4), WithIDs(seqIDs()), WithClock(fixedClock()))
	for i := 0; i < 4; i++ {
		if _, err := l.Save(ctx, testState(2)); err != nil {
			t.Fatal(err)
		}
	}
	jobs, err := l.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-04" {
		t.Fatalf("jobs = %d starting %q, want 2 starting job-04", len(jobs), jobs[0].ID)
	}
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	l := New(&MemoryMedium{}, WithIDs(seqIDs()))
	for i := 0; i < 3; i++ {
		if _, err := l.Save(ctx, testState(1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Delete(ctx, "job-02"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := l.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete unknown error: %v", err)
	}
	jobs, _ := l.LoadAll(ctx)
	if len(jobs) != 2 || jobs[0].ID != "job-03" || jobs[1].ID != "job-01" {
		t.Fatalf("after delete = %+v", jobs)
	}
	if err := l.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	jobs, err := l.LoadAll(ctx)
	if err != nil || len(jobs) != 0 {
		t.Fatalf("after clear = %d, %v", len(jobs), err)
	}
}

func TestCorruptFileIsReplacedOnSave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("[{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(&FileMedium{Path: path})
	if _, err := l.LoadAll(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("LoadAll error = %v, want ErrCorrupt", err)
	}
	if _, err := l.Save(ctx, testState(1)); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	jobs, err := l.LoadAll(ctx)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("LoadAll = %d, %v", len(jobs), err)
	}
}
