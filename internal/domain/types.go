/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the persisted data model. Field names serialize in
// camelCase so saved projects and history logs stay readable.

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape is the clip outline of a printed frame.
type Shape string

const (
	ShapeCircle    Shape = "CIRCLE"
	ShapeOval      Shape = "OVAL"
	ShapeHeart     Shape = "HEART"
	ShapeRectangle Shape = "RECTANGLE"
)

// Shapes lists every shape in menu order.
func Shapes() []Shape { return []Shape{ShapeCircle, ShapeOval, ShapeHeart, ShapeRectangle} }

// ParseShape accepts a shape name in any case.
func ParseShape(s string) (Shape, error) {
	v := Shape(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown shape %q", s)
	}
	return v, nil
}

func (s Shape) Valid() bool {
	switch s {
	case ShapeCircle, ShapeOval, ShapeHeart, ShapeRectangle:
		return true
	}
	return false
}

func (s Shape) String() string { return string(s) }

func (s *Shape) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode shape: %w", err)
	}
	v := Shape(raw)
	if !v.Valid() {
		return fmt.Errorf("unknown shape %q", raw)
	}
	*s = v
	return nil
}

// PhotoItem is one imported photo plus the transform that places it in its frame.
// Values are immutable by convention: every edit returns a new PhotoItem.
type PhotoItem struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	ImageRef string `json:"imageRef"`
	// Natural pixel size from the image header; 0 when unknown.
	NaturalWidth  int `json:"naturalWidth,omitempty"`
	NaturalHeight int `json:"naturalHeight,omitempty"`

	Shape           Shape   `json:"shape"`
	WidthCm         float64 `json:"widthCm"`
	HeightCm        float64 `json:"heightCm"`
	LockAspectRatio bool    `json:"lockAspectRatio"`

	Zoom     float64 `json:"zoom"`
	Rotation float64 `json:"rotation"` // degrees, unbounded
	OffsetX  float64 `json:"offsetX"`  // percent of frame width, 50 = centered
	OffsetY  float64 `json:"offsetY"`  // percent of frame height
}

// ProjectState is the ordered set of items plus the selection. SelectedIndex is -1 when nothing is selected.
type ProjectState struct {
	Items         []PhotoItem `json:"images"`
	SelectedIndex int         `json:"selectedIndex"`
}

// PrintJob is one history entry: a snapshot of the project at print time.
type PrintJob struct {
	ID           string       `json:"id"`
	Timestamp    int64        `json:"timestamp"` // unix milliseconds
	ImagesCount  int          `json:"imagesCount"`
	ProjectState ProjectState `json:"projectState"`
}
