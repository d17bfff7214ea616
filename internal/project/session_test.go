/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"locketprint/internal/domain"
	"locketprint/internal/history"
	"locketprint/internal/layout"
	"locketprint/internal/storage"
)

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *storage.Workspace) {
	t.Helper()
	ws, err := storage.OpenWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithAssets(ws.Assets), WithIDs(seqIDs())}, opts...)
	s, err := NewSession(domain.EmptyState(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s, ws
}

type recordingPrinter struct {
	pages []layout.Page
	err   error
}

func (p *recordingPrinter) Print(_ context.Context, page layout.Page) (string, error) {
	p.pages = append(p.pages, page)
	return "out.pdf", p.err
}

func TestImportAppliesDefaultsAndSelects(t *testing.T) {
	s, _ := newTestSession(t)
	src := writePNG(t, t.TempDir(), "a.png", 30, 20)
	res := <-s.Import(context.Background(), src)
	if res.Err != nil {
		t.Fatalf("Import error: %v", res.Err)
	}
	st := s.State()
	if st.SelectedIndex != 0 || len(st.Items) != 1 {
		t.Fatalf("state = %+v", st)
	}
	it := st.Items[0]
	if it.Shape != domain.ShapeCircle || it.WidthCm != 2.5 || it.HeightCm != 2.5 || it.Zoom != 1.2 ||
		it.Rotation != 0 || it.OffsetX != 50 || it.OffsetY != 50 || it.LockAspectRatio {
		t.Fatalf("imported item = %+v", it)
	}
	if it.NaturalWidth != 30 || it.NaturalHeight != 20 || it.Name != "a.png" || it.ID != "id-1" {
		t.Fatalf("imported header data = %+v", it)
	}
}

func TestImportRejectsBeyondCapacity(t *testing.T) {
	s, _ := newTestSession(t)
	dir := t.TempDir()
	var paths []string
	for i := 0; i < domain.MaxItems; i++ {
		paths = append(paths, writePNG(t, dir, fmt.Sprintf("p%02d.png", i), i+1, 5))
	}
	items, err := s.ImportAll(context.Background(), paths)
	if err != nil || len(items) != domain.MaxItems {
		t.Fatalf("ImportAll = %d, %v", len(items), err)
	}
	for i, it := range items {
		if it.NaturalWidth != i+1 {
			t.Fatalf("items out of argument order at %d: %+v", i, it)
		}
	}
	res := <-s.Import(context.Background(), paths[0])
	if !errors.Is(res.Err, ErrProjectFull) {
		t.Fatalf("Import error = %v, want ErrProjectFull", res.Err)
	}
}

func TestImportAllIsAllOrNothing(t *testing.T) {
	s, _ := newTestSession(t)
	dir := t.TempDir()
	good := writePNG(t, dir, "ok.png", 4, 4)
	bad := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ImportAll(context.Background(), []string{good, bad}); !errors.Is(err, storage.ErrUnsupportedImage) {
		t.Fatalf("ImportAll error = %v, want ErrUnsupportedImage", err)
	}
	if n := len(s.State().Items); n != 0 {
		t.Fatalf("items = %d, want 0", n)
	}
}

// hookedAssets runs before once, on the first Register call.
type hookedAssets struct {
	Registrar
	once   sync.Once
	before func()
}

func (h *hookedAssets) Register(src string) (storage.Asset, error) {
	h.once.Do(h.before)
	return h.Registrar.Register(src)
}

func TestImportAllRechecksCapacityWhenAppending(t *testing.T) {
	ws, err := storage.OpenWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hook := &hookedAssets{Registrar: ws.Assets}
	s, err := NewSession(domain.EmptyState(), WithAssets(hook), WithIDs(seqIDs()))
	if err != nil {
		t.Fatal(err)
	}
	fill := func(n int) domain.ProjectState {
		st := domain.EmptyState()
		for i := 0; i < n; i++ {
			st.Items = append(st.Items, domain.NewPhotoItem(fmt.Sprintf("x%d", i), "x.png", "assets/x.png", 4, 4))
		}
		return st
	}
	if err := s.Replace(fill(domain.MaxItems - 2)); err != nil {
		t.Fatal(err)
	}
	// another import lands while the batch is still reading headers
	hook.before = func() {
		if err := s.Replace(fill(domain.MaxItems - 1)); err != nil {
			t.Error(err)
		}
	}
	dir := t.TempDir()
	paths := []string{writePNG(t, dir, "a.png", 2, 2), writePNG(t, dir, "b.png", 2, 2)}
	items, err := s.ImportAll(context.Background(), paths)
	if !errors.Is(err, ErrProjectFull) || len(items) != 0 {
		t.Fatalf("ImportAll = %d items, %v; want ErrProjectFull and none", len(items), err)
	}
	if n := len(s.State().Items); n != domain.MaxItems-1 {
		t.Fatalf("items = %d, want %d (batch must not be half applied)", n, domain.MaxItems-1)
	}
}

func TestRemoveLastSelected(t *testing.T) {
	s, _ := newTestSession(t)
	if res := <-s.Import(context.Background(), writePNG(t, t.TempDir(), "a.png", 2, 2)); res.Err != nil {
		t.Fatal(res.Err)
	}
	st := s.Remove(0)
	if st.SelectedIndex != -1 || len(st.Items) != 0 {
		t.Fatalf("after remove = %+v", st)
	}
}

func TestStateIsCopyOnWrite(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.ImportAll(context.Background(), []string{writePNG(t, t.TempDir(), "a.png", 2, 2)}); err != nil {
		t.Fatal(err)
	}
	before := s.State()
	before.Items[0].Zoom = 9
	if s.State().Items[0].Zoom != 1.2 {
		t.Fatalf("mutating a returned state leaked into the session")
	}
	var seen []domain.ProjectState
	s.Watch(func(st domain.ProjectState) { seen = append(seen, st) })
	if err := s.UpdateSelected(func(p domain.PhotoItem) domain.PhotoItem { return p.SetZoom(2) }); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0].Items[0].Zoom != 2 {
		t.Fatalf("watchers saw %+v", seen)
	}
}

func TestWatchersNeverEndOnStaleState(t *testing.T) {
	s, ws := newTestSession(t)
	s.workspace = ws
	if _, err := s.ImportAll(context.Background(), []string{writePNG(t, t.TempDir(), "a.png", 2, 2)}); err != nil {
		t.Fatal(err)
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	var seen []float64
	first := true
	s.Watch(func(st domain.ProjectState) {
		seen = append(seen, st.Items[0].Zoom)
		if first {
			first = false
			close(entered)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.UpdateSelected(func(p domain.PhotoItem) domain.PhotoItem { return p.SetZoom(2) }); err != nil {
			t.Error(err)
		}
	}()
	<-entered
	// the first watcher call is still running while a newer change lands
	if err := s.UpdateSelected(func(p domain.PhotoItem) domain.PhotoItem { return p.SetZoom(3) }); err != nil {
		t.Fatal(err)
	}
	close(release)
	wg.Wait()

	if got := s.State().Items[0].Zoom; got != 3 {
		t.Fatalf("session zoom = %v, want 3", got)
	}
	if diff := cmp.Diff([]float64{2, 3}, seen); diff != "" {
		t.Fatalf("watched zooms (-want +got):\n%s", diff)
	}
	draft, err := ws.LoadDraft()
	if err != nil {
		t.Fatal(err)
	}
	if got := draft.Items[0].Zoom; got != 3 {
		t.Fatalf("autosaved zoom = %v, want 3", got)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Update("ghost", func(p domain.PhotoItem) domain.PhotoItem { return p })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateSelected(func(p domain.PhotoItem) domain.PhotoItem { return p }); !errors.Is(err, domain.ErrNoSelection) {
		t.Fatalf("UpdateSelected error = %v, want ErrNoSelection", err)
	}
}

func TestPrintSavesPrintsAndCloses(t *testing.T) {
	h := history.New(&history.MemoryMedium{})
	pr := &recordingPrinter{}
	s, _ := newTestSession(t, WithHistory(h), WithPrinter(pr))
	ctx := context.Background()
	if _, err := s.ImportAll(ctx, []string{writePNG(t, t.TempDir(), "a.png", 2, 2)}); err != nil {
		t.Fatal(err)
	}
	closed := false
	job, out, err := s.Print(ctx, func() { closed = true })
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}
	if out != "out.pdf" || !closed || len(pr.pages) != 1 || len(pr.pages[0].Placements) != 1 {
		t.Fatalf("Print out=%q closed=%v pages=%d", out, closed, len(pr.pages))
	}
	jobs, _ := h.LoadAll(ctx)
	if len(jobs) != 1 || jobs[0].ID != job.ID || jobs[0].ImagesCount != 1 {
		t.Fatalf("history = %+v", jobs)
	}
}

type brokenStore struct{ history.Store }

func (brokenStore) Save(context.Context, domain.ProjectState) (domain.PrintJob, error) {
	return domain.PrintJob{}, errors.New("medium gone")
}

func TestPrintStopsOnHistoryFailure(t *testing.T) {
	pr := &recordingPrinter{}
	s, _ := newTestSession(t, WithHistory(brokenStore{}), WithPrinter(pr))
	if _, _, err := s.Print(context.Background(), nil); err == nil {
		t.Fatalf("expected history failure to surface")
	}
	if len(pr.pages) != 0 {
		t.Fatalf("printer called after history failure")
	}
}

func TestRestore(t *testing.T) {
	h := history.New(&history.MemoryMedium{})
	s, _ := newTestSession(t, WithHistory(h))
	ctx := context.Background()
	if _, err := s.ImportAll(ctx, []string{writePNG(t, t.TempDir(), "a.png", 2, 2)}); err != nil {
		t.Fatal(err)
	}
	_ = s.UpdateSelected(func(p domain.PhotoItem) domain.PhotoItem {
		return p.SetShape(domain.ShapeHeart).SetDimension(domain.AxisWidth, 3)
	})
	want := s.State()
	job, _, err := s.Print(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Remove(0)

	found, err := s.Restore(ctx, "missing")
	if err != nil || found {
		t.Fatalf("Restore(missing) = %v, %v", found, err)
	}
	if len(s.State().Items) != 0 {
		t.Fatalf("state changed by failed restore")
	}
	found, err = s.Restore(ctx, job.ID)
	if err != nil || !found {
		t.Fatalf("Restore = %v, %v", found, err)
	}
	if diff := cmp.Diff(want, s.State()); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestAutosaveWritesDraft(t *testing.T) {
	ws, err := storage.OpenWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(domain.EmptyState(), WithAssets(ws.Assets), WithAutosave(ws))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ImportAll(context.Background(), []string{writePNG(t, t.TempDir(), "a.png", 2, 2)}); err != nil {
		t.Fatal(err)
	}
	st, err := ws.LoadDraft()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s.State(), st); diff != "" {
		t.Fatalf("draft mismatch (-session +draft):\n%s", diff)
	}
}

func TestNewSessionRejectsInvalidState(t *testing.T) {
	bad := domain.ProjectState{Items: []domain.PhotoItem{{ID: "x", Shape: domain.ShapeOval}}, SelectedIndex: 0}
	if _, err := NewSession(bad); err == nil {
		t.Fatalf("expected validation error")
	}
}
