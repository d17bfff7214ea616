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

	"locketprint/internal/config"
	"locketprint/internal/domain"
	"locketprint/internal/vector"
)

// Caption block under each frame, in millimetres.
const (
	CaptionGapMm    = 2.0
	CaptionSizeMm   = 2.5 // "W×H CM" line
	CaptionShapeMm  = 1.8 // shape line
	CaptionHeightMm = CaptionGapMm + CaptionSizeMm + CaptionShapeMm
	CutGuideMm      = 0.1
)

// Sheet describes the physical page. All values are millimetres.
type Sheet struct {
	WidthMm, HeightMm float64
	MarginMm, GapMm   float64
	CalibrationMm     float64
	ShowCalibration   bool
	Captions          bool
}

// A4 returns the default sheet: 210×297 mm, 15 mm margin and gap, 50 mm calibration guide.
func A4() Sheet {
	return Sheet{WidthMm: 210, HeightMm: 297, MarginMm: 15, GapMm: 15, CalibrationMm: 50, ShowCalibration: true, Captions: true}
}

// FromConfig builds a sheet from the user configuration.
func FromConfig(c config.SheetConfig) Sheet {
	return Sheet{
		WidthMm:         c.WidthMm,
		HeightMm:        c.HeightMm,
		MarginMm:        c.MarginMm,
		GapMm:           c.GapMm,
		CalibrationMm:   c.CalibrationMm,
		ShowCalibration: c.ShowCalibration,
		Captions:        c.Captions,
	}
}

// Content is the printable area inside the margins.
func (s Sheet) Content() vector.Rect {
	return vector.R(s.MarginMm, s.MarginMm, s.WidthMm-2*s.MarginMm, s.HeightMm-2*s.MarginMm)
}

// Caption is the text printed under a frame.
type Caption struct {
	Size   string // "3×2 CM"
	Shape  string // "HEART"
	Anchor vector.Pt
}

// Placement is one item on the sheet.
type Placement struct {
	Index   int
	Item    domain.PhotoItem
	Frame   vector.Rect // exactly widthCm×10 by heightCm×10 mm
	Layer   Layer       // masked layer inside Frame
	Caption *Caption
	// Overflow marks an item whose frame leaves the paper. A caption running
	// into the margin does not count.
	Overflow bool
}

// Calibration is the non-printing scale reference in the bottom-right corner.
type Calibration struct {
	From, To    vector.Pt
	LengthMm    float64
	StartLabel  string
	EndLabel    string
	Opacity     float64
	NonPrinting bool
}

// Page is a fully laid out sheet.
type Page struct {
	Sheet       Sheet
	Placements  []Placement
	Calibration *Calibration
}

// Overflowing returns the items that did not fit.
func (p Page) Overflowing() []Placement {
	var out []Placement
	for _, pl := range p.Placements {
		if pl.Overflow {
			out = append(out, pl)
		}
	}
	return out
}

// Layout places items left to right, wrapping to a new row when the next
// frame would cross the right margin. Items are never scaled or moved to
// another sheet; those whose frame crosses the paper edge are flagged as
// overflowing.
func (s Sheet) Layout(items []domain.PhotoItem) Page {
	page := Page{Sheet: s, Placements: make([]Placement, 0, len(items))}
	content := s.Content()
	right := content.X + content.W

	x, y, rowH := content.X, content.Y, 0.0
	for i, it := range items {
		w, h := it.WidthCm*10, it.HeightCm*10
		boxH := h
		if s.Captions {
			boxH += CaptionHeightMm
		}
		if x > content.X && x+w > right+1e-9 {
			x = content.X
			y += rowH + s.GapMm
			rowH = 0
		}
		frame := vector.R(x, y, w, h)
		pl := Placement{
			Index:    i,
			Item:     it,
			Frame:    frame,
			Layer:    Place(it, frame, true),
			Overflow: y+h > s.HeightMm+1e-9 || x+w > s.WidthMm+1e-9,
		}
		if s.Captions {
			pl.Caption = &Caption{
				Size:   fmt.Sprintf("%s×%s CM", FormatCm(it.WidthCm), FormatCm(it.HeightCm)),
				Shape:  it.Shape.String(),
				Anchor: vector.Pt{X: x + w/2, Y: y + h + CaptionGapMm},
			}
		}
		page.Placements = append(page.Placements, pl)
		x += w + s.GapMm
		rowH = math.Max(rowH, boxH)
	}

	if s.ShowCalibration && s.CalibrationMm > 0 {
		end := vector.Pt{X: s.WidthMm - s.MarginMm, Y: s.HeightMm - s.MarginMm}
		page.Calibration = &Calibration{
			From:        vector.Pt{X: end.X - s.CalibrationMm, Y: end.Y},
			To:          end,
			LengthMm:    s.CalibrationMm,
			StartLabel:  "0mm",
			EndLabel:    fmt.Sprintf("%smm (%scm) Calibrator", FormatCm(s.CalibrationMm), FormatCm(s.CalibrationMm/10)),
			Opacity:     0.2,
			NonPrinting: true,
		}
	}
	return page
}
