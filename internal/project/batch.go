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
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"locketprint/internal/domain"
	"locketprint/internal/storage"
)

// importWorkers bounds concurrent header reads during ImportAll.
const importWorkers = 4

// ImportAll registers all paths concurrently and appends the photos in
// argument order. Nothing is appended when any file fails to register or the
// batch would exceed the project capacity.
func (s *Session) ImportAll(ctx context.Context, paths []string) ([]domain.PhotoItem, error) {
	if err := s.ensureRoom(len(paths)); err != nil {
		return nil, err
	}
	assets := make([]storage.Asset, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importWorkers)
	for i, p := range paths {
		g.Go(func() error {
			a, err := s.register(gctx, p)
			if err != nil {
				return err
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.appendAssets(assets)
}

// appendAssets adds one photo per asset in a single state change, so a
// concurrent import can not leave the batch half applied.
func (s *Session) appendAssets(assets []storage.Asset) ([]domain.PhotoItem, error) {
	items := make([]domain.PhotoItem, len(assets))
	for i, a := range assets {
		items[i] = domain.NewPhotoItem(s.newID(), a.Name, a.Ref, a.Width, a.Height)
	}
	_, err := s.apply("import", func(st domain.ProjectState) (domain.ProjectState, error) {
		if len(st.Items)+len(items) > domain.MaxItems {
			return st, ErrProjectFull
		}
		for _, it := range items {
			var err error
			if st, err = st.Add(it); err != nil {
				return st, err
			}
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("photos imported", slog.Int("count", len(items)))
	return items, nil
}
