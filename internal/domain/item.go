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
	"math"
	"regexp"
	"strconv"
)

const (
	MinDimensionCm = 0.1
	MinZoom        = 0.1
	MaxZoom        = 10.0
	WheelZoomStep  = 0.02
	RotateStep     = 90.0
	CenterOffset   = 50.0

	DefaultSizeCm     = 2.5
	DefaultImportZoom = 1.2
	DefaultShape      = ShapeCircle
)

// Axis selects the dimension edited by SetDimension.
type Axis int

const (
	AxisWidth Axis = iota
	AxisHeight
)

// NewPhotoItem returns an item with the import defaults.
func NewPhotoItem(id, name, imageRef string, naturalW, naturalH int) PhotoItem {
	return PhotoItem{
		ID:            id,
		Name:          name,
		ImageRef:      imageRef,
		NaturalWidth:  naturalW,
		NaturalHeight: naturalH,
		Shape:         DefaultShape,
		WidthCm:       DefaultSizeCm,
		HeightCm:      DefaultSizeCm,
		Zoom:          DefaultImportZoom,
		OffsetX:       CenterOffset,
		OffsetY:       CenterOffset,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampZoom(z float64) float64 {
	return math.Min(MaxZoom, math.Max(MinZoom, finite(z)))
}

// SetDimension sets one axis in centimeters. Values below 0.1 (and NaN) are
// raised to 0.1. With the aspect lock on, the other axis follows the ratio
// the item had before this edit.
func (p PhotoItem) SetDimension(axis Axis, cm float64) PhotoItem {
	v := math.Max(MinDimensionCm, finite(cm))
	ratio := p.WidthCm / p.HeightCm
	switch axis {
	case AxisWidth:
		p.WidthCm = v
		if p.LockAspectRatio {
			p.HeightCm = v / ratio
		}
	case AxisHeight:
		p.HeightCm = v
		if p.LockAspectRatio {
			p.WidthCm = v * ratio
		}
	}
	return p
}

var leadingFloat = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseDimension reads the leading number of user text. Text with no leading
// number yields 0.
func ParseDimension(text string) float64 {
	m := leadingFloat.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return finite(v)
}

// SetDimensionText is SetDimension for raw input field text.
func (p PhotoItem) SetDimensionText(axis Axis, text string) PhotoItem {
	return p.SetDimension(axis, ParseDimension(text))
}

// ZoomBy adds delta to the zoom and clamps to [MinZoom, MaxZoom].
func (p PhotoItem) ZoomBy(delta float64) PhotoItem {
	p.Zoom = clampZoom(p.Zoom + finite(delta))
	return p
}

// SetZoom sets an absolute zoom, clamped to [MinZoom, MaxZoom].
func (p PhotoItem) SetZoom(z float64) PhotoItem {
	p.Zoom = clampZoom(z)
	return p
}

// RotateBy adds delta degrees without wrapping.
func (p PhotoItem) RotateBy(delta float64) PhotoItem {
	p.Rotation += finite(delta)
	return p
}

func (p PhotoItem) SetRotation(deg float64) PhotoItem {
	p.Rotation = finite(deg)
	return p
}

// Pan moves the image center by percent of the frame. Offsets are unbounded.
func (p PhotoItem) Pan(dxPct, dyPct float64) PhotoItem {
	p.OffsetX += finite(dxPct)
	p.OffsetY += finite(dyPct)
	return p
}

func (p PhotoItem) SetOffset(xPct, yPct float64) PhotoItem {
	p.OffsetX = finite(xPct)
	p.OffsetY = finite(yPct)
	return p
}

// Reset restores zoom 1, centered offsets and no rotation. Shape and size are kept.
func (p PhotoItem) Reset() PhotoItem {
	p.Zoom = 1
	p.OffsetX = CenterOffset
	p.OffsetY = CenterOffset
	p.Rotation = 0
	return p
}

func (p PhotoItem) SetShape(s Shape) PhotoItem {
	if s.Valid() {
		p.Shape = s
	}
	return p
}

func (p PhotoItem) ToggleAspectLock() PhotoItem {
	p.LockAspectRatio = !p.LockAspectRatio
	return p
}

// InheritFrom copies every transform and size setting of src while keeping
// this item's identity and image.
func (p PhotoItem) InheritFrom(src PhotoItem) PhotoItem {
	p.Shape = src.Shape
	p.WidthCm = src.WidthCm
	p.HeightCm = src.HeightCm
	p.LockAspectRatio = src.LockAspectRatio
	p.Zoom = src.Zoom
	p.Rotation = src.Rotation
	p.OffsetX = src.OffsetX
	p.OffsetY = src.OffsetY
	return p
}

// ImageAspect returns natural height over width, or 1 when the size is unknown.
func (p PhotoItem) ImageAspect() float64 {
	if p.NaturalWidth <= 0 || p.NaturalHeight <= 0 {
		return 1
	}
	return float64(p.NaturalHeight) / float64(p.NaturalWidth)
}

// Validate reports every broken invariant of the item.
func (p PhotoItem) Validate() error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("empty id"))
	}
	if !p.Shape.Valid() {
		errs = append(errs, fmt.Errorf("unknown shape %q", p.Shape))
	}
	if !(p.WidthCm > 0) || !(p.HeightCm > 0) {
		errs = append(errs, fmt.Errorf("size %vx%v cm must be positive", p.WidthCm, p.HeightCm))
	}
	if !(p.Zoom > 0) {
		errs = append(errs, fmt.Errorf("zoom %v must be positive", p.Zoom))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("item %q: %w", p.ID, err)
	}
	return nil
}
