/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
)

// MaxItems is the number of photos a project can hold.
const MaxItems = 12

var (
	ErrProjectFull = fmt.Errorf("project holds at most %d photos", MaxItems)
	ErrNoSelection = errors.New("no photo selected")
	ErrNotFound    = errors.New("photo not found")
)

// EmptyState returns a project with no items and no selection.
func EmptyState() ProjectState { return ProjectState{Items: []PhotoItem{}, SelectedIndex: -1} }

// Clone returns a copy that shares no backing array with s.
func (s ProjectState) Clone() ProjectState {
	items := make([]PhotoItem, len(s.Items))
	copy(items, s.Items)
	return ProjectState{Items: items, SelectedIndex: s.SelectedIndex}
}

// Selected returns the selected item, if any.
func (s ProjectState) Selected() (PhotoItem, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Items) {
		return PhotoItem{}, false
	}
	return s.Items[s.SelectedIndex], true
}

// IndexOf returns the position of the item with id, or -1.
func (s ProjectState) IndexOf(id string) int {
	for i, it := range s.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Add appends item and selects it.
func (s ProjectState) Add(item PhotoItem) (ProjectState, error) {
	if len(s.Items) >= MaxItems {
		return s, ErrProjectFull
	}
	if s.IndexOf(item.ID) >= 0 {
		return s, fmt.Errorf("add photo: duplicate id %q", item.ID)
	}
	n := s.Clone()
	n.Items = append(n.Items, item)
	n.SelectedIndex = len(n.Items) - 1
	return n, nil
}

// Remove drops the item at index. A selection at or after index moves back
// by one, so removing the first selected item leaves nothing selected.
func (s ProjectState) Remove(index int) ProjectState {
	if index < 0 || index >= len(s.Items) {
		return s
	}
	n := ProjectState{Items: make([]PhotoItem, 0, len(s.Items)-1), SelectedIndex: s.SelectedIndex}
	n.Items = append(n.Items, s.Items[:index]...)
	n.Items = append(n.Items, s.Items[index+1:]...)
	if n.SelectedIndex >= index {
		n.SelectedIndex = max(-1, n.SelectedIndex-1)
	}
	n.SelectedIndex = min(n.SelectedIndex, len(n.Items)-1)
	return n
}

// Select sets the selection; out of range indices clear it.
func (s ProjectState) Select(index int) ProjectState {
	n := s.Clone()
	if index < 0 || index >= len(n.Items) {
		index = -1
	}
	n.SelectedIndex = index
	return n
}

// Replace swaps in item for the entry with the same id.
func (s ProjectState) Replace(item PhotoItem) (ProjectState, error) {
	i := s.IndexOf(item.ID)
	if i < 0 {
		return s, fmt.Errorf("replace %q: %w", item.ID, ErrNotFound)
	}
	n := s.Clone()
	n.Items[i] = item
	return n, nil
}

// UpdateSelected applies fn to the selected item.
func (s ProjectState) UpdateSelected(fn func(PhotoItem) PhotoItem) (ProjectState, error) {
	cur, ok := s.Selected()
	if !ok {
		return s, ErrNoSelection
	}
	n := s.Clone()
	n.Items[n.SelectedIndex] = fn(cur)
	return n, nil
}

// InheritFromFirst copies the first item's settings onto the selected one.
// It is a no-op with fewer than two items or no selection.
func (s ProjectState) InheritFromFirst() ProjectState {
	if len(s.Items) < 2 {
		return s
	}
	n, err := s.UpdateSelected(func(p PhotoItem) PhotoItem { return p.InheritFrom(s.Items[0]) })
	if err != nil {
		return s
	}
	return n
}

// Validate checks every item and the selection bounds.
func (s ProjectState) Validate() error {
	if len(s.Items) > MaxItems {
		return ErrProjectFull
	}
	if s.SelectedIndex < -1 || s.SelectedIndex >= len(s.Items) {
		return fmt.Errorf("selected index %d out of range for %d photos", s.SelectedIndex, len(s.Items))
	}
	seen := make(map[string]struct{}, len(s.Items))
	for _, it := range s.Items {
		if err := it.Validate(); err != nil {
			return err
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate photo id %q", it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}
