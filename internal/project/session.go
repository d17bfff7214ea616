/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package project owns the live ProjectState. Every change builds a new state
// value and swaps it in, so readers never observe a half-applied edit.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"locketprint/internal/domain"
	"locketprint/internal/history"
	"locketprint/internal/layout"
	applog "locketprint/internal/log"
	"locketprint/internal/storage"
)

// ErrProjectFull is returned when an import would exceed domain.MaxItems photos.
var ErrProjectFull = domain.ErrProjectFull

// Registrar stores an imported file and reports its header data.
type Registrar interface {
	Register(src string) (storage.Asset, error)
}

// Printer hands a laid out sheet to the host. It returns a description of
// where the output went, typically a file path.
type Printer interface {
	Print(ctx context.Context, page layout.Page) (string, error)
}

// Session is the single owner of the current ProjectState.
type Session struct {
	mu    sync.Mutex
	state domain.ProjectState

	assets    Registrar
	history   history.Store
	printer   Printer
	sheet     layout.Sheet
	workspace *storage.Workspace
	newID     func() string
	watchers  []func(domain.ProjectState)
	log       *slog.Logger

	// pending is the newest state not yet autosaved and announced.
	// publishing is set while one goroutine drains it.
	pending    *domain.ProjectState
	publishing bool
}

type Option func(*Session)

func WithAssets(r Registrar) Option { return func(s *Session) { s.assets = r } }

func WithHistory(h history.Store) Option { return func(s *Session) { s.history = h } }

func WithPrinter(p Printer) Option { return func(s *Session) { s.printer = p } }

func WithSheet(sh layout.Sheet) Option { return func(s *Session) { s.sheet = sh } }

func WithIDs(gen func() string) Option { return func(s *Session) { s.newID = gen } }

// WithAutosave writes the draft to ws after every change.
func WithAutosave(ws *storage.Workspace) Option { return func(s *Session) { s.workspace = ws } }

// NewSession starts from initial, which is validated first.
func NewSession(initial domain.ProjectState, opts ...Option) (*Session, error) {
	if initial.Items == nil {
		initial = domain.EmptyState()
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	s := &Session{
		state: initial.Clone(),
		sheet: layout.A4(),
		newID: uuid.NewString,
		log:   applog.WithComponent("project"),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// State returns a copy of the current state.
func (s *Session) State() domain.ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Watch registers fn to receive new states in the order they were swapped in.
// When changes arrive faster than watchers return, intermediate states are
// skipped and only the newest is delivered.
func (s *Session) Watch(fn func(domain.ProjectState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// apply runs fn against the current state and swaps in its result. If
// another goroutine is already publishing, the new state is handed to it and
// apply returns without waiting for autosave and watchers.
func (s *Session) apply(op string, fn func(domain.ProjectState) (domain.ProjectState, error)) (domain.ProjectState, error) {
	s.mu.Lock()
	next, err := fn(s.state)
	if err != nil {
		s.mu.Unlock()
		return domain.ProjectState{}, err
	}
	s.state = next
	snap := next.Clone()
	s.pending = &snap
	if s.publishing {
		s.mu.Unlock()
		return next.Clone(), nil
	}
	s.publishing = true
	s.mu.Unlock()

	s.publish(op)
	return next.Clone(), nil
}

// publish autosaves and announces pending states until none is left. Only
// one goroutine publishes at a time, so a state is never announced after a
// newer one.
func (s *Session) publish(op string) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.publishing = false
			s.mu.Unlock()
			panic(r)
		}
	}()
	for {
		s.mu.Lock()
		if s.pending == nil {
			s.publishing = false
			s.mu.Unlock()
			return
		}
		st := *s.pending
		s.pending = nil
		watchers := append([]func(domain.ProjectState){}, s.watchers...)
		ws := s.workspace
		s.mu.Unlock()

		if ws != nil {
			if err := ws.SaveDraft(st); err != nil {
				applog.WithOperation(s.log, op).Warn("autosave failed", slog.Any("err", err))
			}
		}
		for _, w := range watchers {
			w(st.Clone())
		}
	}
}

// Item returns the item with id.
func (s *Session) Item(id string) (domain.PhotoItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.state.IndexOf(id)
	if i < 0 {
		return domain.PhotoItem{}, false
	}
	return s.state.Items[i], true
}

// Update replaces the item with id by fn's result.
func (s *Session) Update(id string, fn func(domain.PhotoItem) domain.PhotoItem) error {
	_, err := s.apply("update", func(st domain.ProjectState) (domain.ProjectState, error) {
		i := st.IndexOf(id)
		if i < 0 {
			return st, fmt.Errorf("update %q: %w", id, domain.ErrNotFound)
		}
		return st.Replace(fn(st.Items[i]))
	})
	return err
}

// UpdateAt is Update addressed by position.
func (s *Session) UpdateAt(index int, fn func(domain.PhotoItem) domain.PhotoItem) error {
	_, err := s.apply("update", func(st domain.ProjectState) (domain.ProjectState, error) {
		if index < 0 || index >= len(st.Items) {
			return st, fmt.Errorf("update #%d: %w", index, domain.ErrNotFound)
		}
		return st.Replace(fn(st.Items[index]))
	})
	return err
}

// UpdateSelected applies fn to the selected item.
func (s *Session) UpdateSelected(fn func(domain.PhotoItem) domain.PhotoItem) error {
	_, err := s.apply("update_selected", func(st domain.ProjectState) (domain.ProjectState, error) {
		return st.UpdateSelected(fn)
	})
	return err
}

func (s *Session) Select(index int) domain.ProjectState {
	st, _ := s.apply("select", func(st domain.ProjectState) (domain.ProjectState, error) {
		return st.Select(index), nil
	})
	return st
}

func (s *Session) Remove(index int) domain.ProjectState {
	st, _ := s.apply("remove", func(st domain.ProjectState) (domain.ProjectState, error) {
		return st.Remove(index), nil
	})
	return st
}

// InheritFromFirst copies the first photo's settings onto the selected one.
func (s *Session) InheritFromFirst() domain.ProjectState {
	st, _ := s.apply("inherit", func(st domain.ProjectState) (domain.ProjectState, error) {
		return st.InheritFromFirst(), nil
	})
	return st
}

// Replace swaps in a whole new state, as after a restore.
func (s *Session) Replace(next domain.ProjectState) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	_, err := s.apply("replace", func(domain.ProjectState) (domain.ProjectState, error) {
		return next.Clone(), nil
	})
	return err
}

// Layout lays out the current photos on the session's sheet.
func (s *Session) Layout() layout.Page {
	return s.sheet.Layout(s.State().Items)
}

// ImportResult is delivered once per Import.
type ImportResult struct {
	Item domain.PhotoItem
	Err  error
}

// Import registers the file at path in the background and appends the new
// photo, selected, once its header has been read.
func (s *Session) Import(ctx context.Context, path string) <-chan ImportResult {
	out := make(chan ImportResult, 1)
	go func() {
		defer close(out)
		item, err := s.importOne(ctx, path)
		out <- ImportResult{Item: item, Err: err}
	}()
	return out
}

func (s *Session) importOne(ctx context.Context, path string) (domain.PhotoItem, error) {
	if err := s.ensureRoom(1); err != nil {
		return domain.PhotoItem{}, err
	}
	a, err := s.register(ctx, path)
	if err != nil {
		return domain.PhotoItem{}, err
	}
	return s.appendAsset(a)
}

func (s *Session) ensureRoom(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Items)+n > domain.MaxItems {
		return ErrProjectFull
	}
	return nil
}

func (s *Session) register(ctx context.Context, path string) (storage.Asset, error) {
	if s.assets == nil {
		return storage.Asset{}, errors.New("import: no asset store configured")
	}
	if err := ctx.Err(); err != nil {
		return storage.Asset{}, err
	}
	a, err := s.assets.Register(path)
	if err != nil {
		return storage.Asset{}, fmt.Errorf("import %s: %w", path, err)
	}
	return a, nil
}

func (s *Session) appendAsset(a storage.Asset) (domain.PhotoItem, error) {
	item := domain.NewPhotoItem(s.newID(), a.Name, a.Ref, a.Width, a.Height)
	if _, err := s.apply("import", func(st domain.ProjectState) (domain.ProjectState, error) {
		return st.Add(item)
	}); err != nil {
		return domain.PhotoItem{}, err
	}
	s.log.Info("photo imported", slog.String("id", item.ID), slog.String("ref", item.ImageRef),
		slog.Int("w", a.Width), slog.Int("h", a.Height))
	return item, nil
}

// Print snapshots the project into history, hands the sheet to the printer
// and finally calls closePreview. A history failure stops the print; a nil
// Printer only records the job.
func (s *Session) Print(ctx context.Context, closePreview func()) (domain.PrintJob, string, error) {
	l := applog.WithOperation(s.log, "print")
	st := s.State()
	var job domain.PrintJob
	if s.history != nil {
		var err error
		job, err = s.history.Save(ctx, st)
		if err != nil {
			return domain.PrintJob{}, "", fmt.Errorf("print: %w", err)
		}
	}
	var out string
	if s.printer != nil {
		page := s.sheet.Layout(st.Items)
		if over := page.Overflowing(); len(over) > 0 {
			l.Warn("photos do not fit on the sheet", slog.Int("count", len(over)))
		}
		var err error
		out, err = s.printer.Print(ctx, page)
		if err != nil {
			return job, "", fmt.Errorf("print: %w", err)
		}
	}
	if closePreview != nil {
		closePreview()
	}
	l.Info("printed", slog.String("job", job.ID), slog.Int("photos", len(st.Items)), slog.String("output", out))
	return job, out, nil
}

// Restore replaces the state with the snapshot of job id. found is false and
// the state is untouched when the job does not exist.
func (s *Session) Restore(ctx context.Context, id string) (bool, error) {
	if s.history == nil {
		return false, errors.New("restore: no history configured")
	}
	st, found, err := s.history.Restore(ctx, id)
	if err != nil || !found {
		return false, err
	}
	if err := s.Replace(st); err != nil {
		return false, fmt.Errorf("restore %s: %w", id, err)
	}
	return true, nil
}
