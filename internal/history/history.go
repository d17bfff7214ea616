/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps the capped log of print jobs. Each job snapshots the
// project at print time so it can be restored later. The log itself is
// storage agnostic; a Medium persists the whole ordered list.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"locketprint/internal/domain"
	applog "locketprint/internal/log"
)

// DefaultCapacity is the number of jobs kept when no capacity is configured.
const DefaultCapacity = 10

var (
	// ErrQuotaExceeded is returned by a Medium that rejects a write for lack of space.
	ErrQuotaExceeded = errors.New("history medium full")
	// ErrCorrupt is returned by a Medium whose stored data cannot be decoded.
	ErrCorrupt = errors.New("history data corrupt")
)

// Store is the history collaborator used by the print flow and the UI.
type Store interface {
	Save(ctx context.Context, state domain.ProjectState) (domain.PrintJob, error)
	// LoadAll returns the jobs most recent first.
	LoadAll(ctx context.Context) ([]domain.PrintJob, error)
	// Restore returns the snapshot of job id. found is false for unknown ids.
	Restore(ctx context.Context, id string) (state domain.ProjectState, found bool, err error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Medium persists the complete, ordered job list.
type Medium interface {
	ReadAll(ctx context.Context) ([]domain.PrintJob, error)
	// WriteAll replaces the stored list. It returns an error wrapping
	// ErrQuotaExceeded when the medium is out of space.
	WriteAll(ctx context.Context, jobs []domain.PrintJob) error
	Clear(ctx context.Context) error
}

// Reporter receives failures that the log swallows.
type Reporter func(ctx context.Context, err error)

// Log implements Store on top of a Medium.
type Log struct {
	mu       sync.Mutex
	medium   Medium
	capacity int
	report   Reporter
	now      func() time.Time
	newID    func() string
	log      *slog.Logger
}

type Option func(*Log)

func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.capacity = n
		}
	}
}

func WithReporter(r Reporter) Option {
	return func(l *Log) {
		if r != nil {
			l.report = r
		}
	}
}

func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

func WithIDs(gen func() string) Option { return func(l *Log) { l.newID = gen } }

// New returns a log persisting to m.
func New(m Medium, opts ...Option) *Log {
	l := &Log{
		medium:   m,
		capacity: DefaultCapacity,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      applog.WithComponent("history"),
	}
	l.report = func(_ context.Context, err error) {
		l.log.Error("history write dropped", slog.Any("err", err))
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Log) Capacity() int { return l.capacity }

// Save snapshots state into a new job at the head of the log, evicting the
// oldest entries beyond capacity. When the medium is full the write is
// retried once with the log cut to half its capacity; if that fails as well
// the failure goes to the reporter and the job is still returned.
func (l *Log) Save(ctx context.Context, state domain.ProjectState) (domain.PrintJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lg := applog.WithOperation(l.log, "save")

	job := domain.PrintJob{
		ID:           l.newID(),
		Timestamp:    l.now().UnixMilli(),
		ImagesCount:  len(state.Items),
		ProjectState: state.Clone(),
	}
	prev, err := l.medium.ReadAll(ctx)
	switch {
	case errors.Is(err, ErrCorrupt):
		lg.Warn("discarding unreadable history", slog.Any("err", err))
		prev = nil
	case err != nil:
		return domain.PrintJob{}, fmt.Errorf("save history: %w", err)
	}

	jobs := make([]domain.PrintJob, 0, len(prev)+1)
	jobs = append(jobs, job)
	jobs = append(jobs, prev...)
	if len(jobs) > l.capacity {
		jobs = jobs[:l.capacity]
	}

	err = l.medium.WriteAll(ctx, jobs)
	if err == nil {
		lg.Debug("job saved", slog.String("id", job.ID), slog.Int("entries", len(jobs)))
		return job, nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return domain.PrintJob{}, fmt.Errorf("save history: %w", err)
	}

	keep := min((l.capacity+1)/2, len(jobs))
	lg.Warn("history medium full, evicting", slog.Int("keep", keep))
	if rerr := l.medium.WriteAll(ctx, jobs[:keep]); rerr != nil {
		l.report(ctx, fmt.Errorf("save history with %d entries: %w", keep, rerr))
	}
	return job, nil
}

func (l *Log) LoadAll(ctx context.Context) ([]domain.PrintJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jobs, err := l.medium.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return jobs, nil
}

func (l *Log) Restore(ctx context.Context, id string) (domain.ProjectState, bool, error) {
	jobs, err := l.LoadAll(ctx)
	if err != nil {
		return domain.ProjectState{}, false, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j.ProjectState.Clone(), true, nil
		}
	}
	return domain.ProjectState{}, false, nil
}

// Delete removes job id. Unknown ids are ignored.
func (l *Log) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	jobs, err := l.medium.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	kept := jobs[:0:0]
	for _, j := range jobs {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	if len(kept) == len(jobs) {
		return nil
	}
	if err := l.medium.WriteAll(ctx, kept); err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.medium.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close releases the medium if it holds resources.
func (l *Log) Close() error {
	if c, ok := l.medium.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
