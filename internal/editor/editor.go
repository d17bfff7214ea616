/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor turns pointer, wheel and button input into transform edits
// of one photo. It renders at display scale through the same placement math
// the print layout uses.
package editor

import (
	"fmt"

	"locketprint/internal/config"
	"locketprint/internal/domain"
	"locketprint/internal/layout"
	"locketprint/internal/vector"
)

// Target is the state owner the editor reads from and writes to.
type Target interface {
	Item(id string) (domain.PhotoItem, bool)
	Update(id string, fn func(domain.PhotoItem) domain.PhotoItem) error
}

// Editor edits the photo with a fixed id. Drag state lives here; the photo
// itself always lives in the Target.
type Editor struct {
	target Target
	id     string
	cfg    config.EditorConfig

	dragging bool
	last     vector.Pt
}

// New returns an editor for photo id. Zero config fields take the defaults.
func New(t Target, id string, cfg config.EditorConfig) *Editor {
	def := config.Defaults().Editor
	if cfg.DisplayMax <= 0 {
		cfg.DisplayMax = def.DisplayMax
	}
	if cfg.WheelStep <= 0 {
		cfg.WheelStep = def.WheelStep
	}
	if cfg.RotateStep == 0 {
		cfg.RotateStep = def.RotateStep
	}
	if cfg.SliderZoomMax <= domain.MinZoom {
		cfg.SliderZoomMax = def.SliderZoomMax
	}
	return &Editor{target: t, id: id, cfg: cfg}
}

func (e *Editor) ID() string { return e.id }

func (e *Editor) item() (domain.PhotoItem, error) {
	it, ok := e.target.Item(e.id)
	if !ok {
		return domain.PhotoItem{}, fmt.Errorf("editor %q: %w", e.id, domain.ErrNotFound)
	}
	return it, nil
}

func (e *Editor) update(fn func(domain.PhotoItem) domain.PhotoItem) error {
	return e.target.Update(e.id, fn)
}

// Box returns the display box size for the current photo.
func (e *Editor) Box() (w, h float64, err error) {
	it, err := e.item()
	if err != nil {
		return 0, 0, err
	}
	w, h = layout.DisplayBox(it.WidthCm, it.HeightCm, e.cfg.DisplayMax)
	return w, h, nil
}

// Press starts a drag at (x, y) in display units.
func (e *Editor) Press(x, y float64) {
	e.dragging = true
	e.last = vector.Pt{X: x, Y: y}
}

// Move pans by the pointer delta as a percentage of the display box while a
// drag is active. It reports whether the photo changed.
func (e *Editor) Move(x, y float64) (bool, error) {
	if !e.dragging {
		return false, nil
	}
	w, h, err := e.Box()
	if err != nil {
		return false, err
	}
	p := vector.Pt{X: x, Y: y}
	d := p.Sub(e.last)
	e.last = p
	if d.X == 0 && d.Y == 0 {
		return false, nil
	}
	return true, e.update(func(it domain.PhotoItem) domain.PhotoItem {
		return it.Pan(d.X/w*100, d.Y/h*100)
	})
}

// Release ends the drag.
func (e *Editor) Release() { e.dragging = false }

// Leave ends the drag when the pointer exits the surface.
func (e *Editor) Leave() { e.dragging = false }

func (e *Editor) Dragging() bool { return e.dragging }

// Wheel zooms out one step for deltaY > 0 and in otherwise. The event is
// always consumed so the surrounding view does not scroll.
func (e *Editor) Wheel(deltaY float64) (consumed bool, err error) {
	step := e.cfg.WheelStep
	if deltaY > 0 {
		step = -step
	}
	return true, e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.ZoomBy(step) })
}

// Rotate turns the photo by one rotate step.
func (e *Editor) Rotate() error {
	return e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.RotateBy(e.cfg.RotateStep) })
}

// SetRotation applies the rotation slider value in degrees.
func (e *Editor) SetRotation(deg float64) error {
	return e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.SetRotation(deg) })
}

func (e *Editor) Reset() error {
	return e.update(domain.PhotoItem.Reset)
}

// SetZoom applies a slider value. The model clamps to [domain.MinZoom, domain.MaxZoom].
func (e *Editor) SetZoom(z float64) error {
	return e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.SetZoom(z) })
}

// SliderRange is the span of the zoom slider track.
func (e *Editor) SliderRange() (lo, hi float64) { return domain.MinZoom, e.cfg.SliderZoomMax }

// SliderValue is the current zoom pinned into the slider track.
func (e *Editor) SliderValue() (float64, error) {
	it, err := e.item()
	if err != nil {
		return 0, err
	}
	return min(max(it.Zoom, domain.MinZoom), e.cfg.SliderZoomMax), nil
}

func (e *Editor) SetShape(s domain.Shape) error {
	return e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.SetShape(s) })
}

// SetDimensionText applies raw text from the width or height field.
func (e *Editor) SetDimensionText(axis domain.Axis, text string) error {
	return e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.SetDimensionText(axis, text) })
}

func (e *Editor) ToggleAspectLock() error {
	return e.update(domain.PhotoItem.ToggleAspectLock)
}

// SetOffset applies the horizontal and vertical position fields.
func (e *Editor) SetOffset(xPct, yPct float64) error {
	return e.update(func(it domain.PhotoItem) domain.PhotoItem { return it.SetOffset(xPct, yPct) })
}

// Preview renders the bleed and masked layers at display scale.
func (e *Editor) Preview() (layout.Preview, error) {
	it, err := e.item()
	if err != nil {
		return layout.Preview{}, err
	}
	return layout.NewPreview(it, e.cfg.DisplayMax), nil
}

// Layers returns the bleed and masked layers of the preview.
func (e *Editor) Layers() (bleed, masked layout.Layer, err error) {
	p, err := e.Preview()
	if err != nil {
		return layout.Layer{}, layout.Layer{}, err
	}
	return p.Bleed, p.Masked, nil
}

func (e *Editor) HUD() (layout.HUD, error) {
	it, err := e.item()
	if err != nil {
		return layout.HUD{}, err
	}
	return layout.NewHUD(it), nil
}
