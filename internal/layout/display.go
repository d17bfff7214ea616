/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"fmt"
	"math"

	"locketprint/internal/domain"
	"locketprint/internal/vector"
)

// DefaultDisplayMax bounds the editor box on its longer side, in display units.
const DefaultDisplayMax = 450.0

// DisplayBox fits the widthCm:heightCm ratio inside a limit×limit square.
func DisplayBox(widthCm, heightCm, limit float64) (w, h float64) {
	if limit <= 0 {
		limit = DefaultDisplayMax
	}
	if !(widthCm > 0) || !(heightCm > 0) {
		return limit, limit
	}
	ratio := widthCm / heightCm
	w, h = limit, limit/ratio
	if h > limit {
		h = limit
		w = h * ratio
	}
	return w, h
}

// Preview is the editor rendering of one item at display scale.
type Preview struct {
	Box    vector.Rect
	Bleed  Layer
	Masked Layer
	// Crosshair holds the horizontal then the vertical center guide.
	Crosshair [2][2]vector.Pt
	Outline   []vector.Pt // clip outline for the frame ring
}

// NewPreview lays item out in a display box bounded by limit.
func NewPreview(item domain.PhotoItem, limit float64) Preview {
	w, h := DisplayBox(item.WidthCm, item.HeightCm, limit)
	box := vector.R(0, 0, w, h)
	p := Preview{
		Box:    box,
		Bleed:  Place(item, box, false),
		Masked: Place(item, box, true),
		Crosshair: [2][2]vector.Pt{
			{{X: 0, Y: h / 2}, {X: w, Y: h / 2}},
			{{X: w / 2, Y: 0}, {X: w / 2, Y: h}},
		},
	}
	p.Outline = p.Masked.Clip.Polygon(0)
	return p
}

// HUD holds the read-outs shown above the editor.
type HUD struct {
	Size  string // e.g. "2.5cm × 2.5cm"
	Scale string // e.g. "120%"
}

func NewHUD(item domain.PhotoItem) HUD {
	return HUD{
		Size:  fmt.Sprintf("%scm × %scm", FormatCm(item.WidthCm), FormatCm(item.HeightCm)),
		Scale: fmt.Sprintf("%d%%", int(math.Round(item.Zoom*100))),
	}
}

// FormatCm prints a centimeter value with at most two decimals and no trailing zeros.
func FormatCm(v float64) string {
	return fmt.Sprint(vector.Round(v, 2))
}
