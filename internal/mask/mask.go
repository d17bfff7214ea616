/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mask maps a frame shape to its clip geometry. Geometry is described
// in frame-relative percent (0..100 on both axes) and only becomes concrete
// when placed into a frame rectangle, so the editor preview and the printed
// sheet share a single definition whatever their units.
package mask

import (
	"math"

	"locketprint/internal/domain"
	"locketprint/internal/vector"
)

// Kind is the geometric family of a clip.
type Kind int

const (
	None Kind = iota // no clip, full frame with square corners
	Ellipse
	Path
)

func (k Kind) String() string {
	switch k {
	case Ellipse:
		return "ellipse"
	case Path:
		return "path"
	default:
		return "none"
	}
}

// Mask is the resolution independent description of a shape clip.
type Mask struct {
	Shape domain.Shape
	Kind  Kind
	// EqualRadii makes an ellipse a circle inscribed in the frame.
	EqualRadii bool
	// Outline is the clip path in the 0..100 frame box (Kind == Path only).
	Outline vector.Path
}

var heart = heartOutline()

// heartOutline is a symmetric heart touching all four edges of the 0..100 box.
func heartOutline() vector.Path {
	var p vector.Path
	p.MoveTo(50, 20)
	p.CubicTo(50, 8, 40, 0, 25, 0)
	p.CubicTo(10, 0, 0, 12, 0, 28)
	p.CubicTo(0, 55, 30, 75, 50, 100)
	p.CubicTo(70, 75, 100, 55, 100, 28)
	p.CubicTo(100, 12, 90, 0, 75, 0)
	p.CubicTo(60, 0, 50, 8, 50, 20)
	p.Close()
	return p
}

// Resolve returns the mask for shape. Unknown shapes resolve to no clip.
func Resolve(shape domain.Shape) Mask {
	switch shape {
	case domain.ShapeCircle:
		return Mask{Shape: shape, Kind: Ellipse, EqualRadii: true}
	case domain.ShapeOval:
		return Mask{Shape: shape, Kind: Ellipse}
	case domain.ShapeHeart:
		return Mask{Shape: shape, Kind: Path, Outline: heart}
	default:
		return Mask{Shape: shape, Kind: None}
	}
}

// In places the mask into frame. The frame may use any unit.
func (m Mask) In(frame vector.Rect) Clip {
	c := Clip{Kind: m.Kind, Frame: frame, Center: frame.Center()}
	switch m.Kind {
	case Ellipse:
		c.Rx, c.Ry = frame.W/2, frame.H/2
		if m.EqualRadii {
			r := math.Min(c.Rx, c.Ry)
			c.Rx, c.Ry = r, r
		}
	case Path:
		c.Outline = m.Outline.Transform(vector.Chain(
			vector.Translate(frame.X, frame.Y),
			vector.Scale(frame.W/100, frame.H/100),
		))
	}
	return c
}

// Clip is a mask placed into a concrete frame.
type Clip struct {
	Kind   Kind
	Frame  vector.Rect
	Center vector.Pt
	Rx, Ry float64
	// Outline is set for Kind == Path, in frame units.
	Outline vector.Path
}

// Contains reports whether pt is inside the visible area of the clip.
func (c Clip) Contains(pt vector.Pt) bool {
	switch c.Kind {
	case Ellipse:
		if c.Rx <= 0 || c.Ry <= 0 {
			return false
		}
		dx, dy := (pt.X-c.Center.X)/c.Rx, (pt.Y-c.Center.Y)/c.Ry
		return dx*dx+dy*dy <= 1
	case Path:
		for _, poly := range c.Outline.Flatten(flattenTol(c.Frame)) {
			if vector.PolygonContains(poly, pt) {
				return true
			}
		}
		return false
	default:
		return c.Frame.Contains(pt)
	}
}

// AsPath returns the clip outline as a path in frame units. Ellipses use the
// usual four-arc cubic approximation.
func (c Clip) AsPath() vector.Path {
	switch c.Kind {
	case Ellipse:
		return ellipsePath(c.Center, c.Rx, c.Ry)
	case Path:
		return c.Outline
	default:
		var p vector.Path
		f := c.Frame
		p.MoveTo(f.X, f.Y)
		p.LineTo(f.X+f.W, f.Y)
		p.LineTo(f.X+f.W, f.Y+f.H)
		p.LineTo(f.X, f.Y+f.H)
		p.Close()
		return p
	}
}

// Polygon flattens the outline for back-ends that only clip with polygons.
// tol is in frame units; zero picks a tolerance relative to the frame size.
func (c Clip) Polygon(tol float64) []vector.Pt {
	if tol <= 0 {
		tol = flattenTol(c.Frame)
	}
	polys := c.AsPath().Flatten(tol)
	if len(polys) == 0 {
		return nil
	}
	return polys[0]
}

func flattenTol(f vector.Rect) float64 {
	return math.Max(math.Min(f.W, f.H)/500, 1e-6)
}

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498307936

func ellipsePath(c vector.Pt, rx, ry float64) vector.Path {
	ox, oy := rx*kappa, ry*kappa
	var p vector.Path
	p.MoveTo(c.X+rx, c.Y)
	p.CubicTo(c.X+rx, c.Y+oy, c.X+ox, c.Y+ry, c.X, c.Y+ry)
	p.CubicTo(c.X-ox, c.Y+ry, c.X-rx, c.Y+oy, c.X-rx, c.Y)
	p.CubicTo(c.X-rx, c.Y-oy, c.X-ox, c.Y-ry, c.X, c.Y-ry)
	p.CubicTo(c.X+ox, c.Y-ry, c.X+rx, c.Y-oy, c.X+rx, c.Y)
	p.Close()
	return p
}
