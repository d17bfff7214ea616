/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout turns photo items into positioned layers: the bounded
// editor preview and the true-scale print sheet. Both go through Place, so
// the preview and the printout use the same arithmetic.
package layout

import (
	"locketprint/internal/domain"
	"locketprint/internal/mask"
	"locketprint/internal/vector"
)

// BleedOpacity is the alpha of the unclipped layer shown behind the crop.
const BleedOpacity = 0.3

// Layer is one placed rendering of an item's image.
type Layer struct {
	Frame vector.Rect
	// Center of the image in frame units; rotation is about this point.
	Center vector.Pt
	// ImageW and ImageH are the drawn image size before rotation.
	ImageW, ImageH float64
	Rotation       float64 // degrees, clockwise on a y-down surface
	// Matrix maps the unit square of the image onto the frame's coordinate space.
	Matrix vector.Affine2D

	Masked    bool
	Clip      mask.Clip // meaningful only when Masked
	Opacity   float64
	Grayscale bool
}

// Place applies item's zoom, offsets and rotation inside frame. The masked
// layer is clipped to the item's shape at full opacity; the unmasked one is
// the dimmed grayscale bleed layer.
func Place(item domain.PhotoItem, frame vector.Rect, masked bool) Layer {
	imgW := item.Zoom * frame.W
	imgH := imgW * item.ImageAspect()
	center := vector.Pt{
		X: frame.X + item.OffsetX/100*frame.W,
		Y: frame.Y + item.OffsetY/100*frame.H,
	}
	l := Layer{
		Frame:    frame,
		Center:   center,
		ImageW:   imgW,
		ImageH:   imgH,
		Rotation: item.Rotation,
		Matrix: vector.Chain(
			vector.Translate(center.X, center.Y),
			vector.RotateDeg(item.Rotation),
			vector.Translate(-imgW/2, -imgH/2),
			vector.Scale(imgW, imgH),
		),
		Masked:  masked,
		Opacity: 1,
	}
	if masked {
		l.Clip = mask.Resolve(item.Shape).In(frame)
	} else {
		l.Opacity = BleedOpacity
		l.Grayscale = true
	}
	return l
}

// ImageCorners returns the rotated image quad in frame units, clockwise from top-left.
func (l Layer) ImageCorners() [4]vector.Pt {
	return [4]vector.Pt{
		l.Matrix.Apply(vector.Pt{X: 0, Y: 0}),
		l.Matrix.Apply(vector.Pt{X: 1, Y: 0}),
		l.Matrix.Apply(vector.Pt{X: 1, Y: 1}),
		l.Matrix.Apply(vector.Pt{X: 0, Y: 1}),
	}
}

// ToImage maps a point in frame units to normalized image coordinates (0..1 inside the image).
func (l Layer) ToImage(p vector.Pt) (vector.Pt, bool) {
	inv, ok := l.Matrix.Invert()
	if !ok {
		return vector.Pt{}, false
	}
	return inv.Apply(p), true
}

// Visible reports whether p in frame units shows image pixels in this layer.
func (l Layer) Visible(p vector.Pt) bool {
	if l.Masked && !l.Clip.Contains(p) {
		return false
	}
	q, ok := l.ToImage(p)
	return ok && q.X >= 0 && q.X <= 1 && q.Y >= 0 && q.Y <= 1
}
