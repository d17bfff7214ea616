/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Transform returns a copy of the path with every point mapped through m.
func (p Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		n := PathCmd{Op: c.Op}
		pts := 0
		switch c.Op {
		case MoveTo, LineTo:
			pts = 1
		case CubicTo:
			pts = 3
		}
		for k := 0; k < pts; k++ {
			q := m.Apply(Pt{c.Data[2*k], c.Data[2*k+1]})
			n.Data[2*k], n.Data[2*k+1] = q.X, q.Y
		}
		out.Cmds[i] = n
	}
	return out
}

// Bounds returns the bounding box of all on-curve and control points. For
// cubic segments this may be looser than the curve itself.
func (p Path) Bounds() Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			grow(c.Data[0], c.Data[1])
		case CubicTo:
			grow(c.Data[0], c.Data[1])
			grow(c.Data[2], c.Data[3])
			grow(c.Data[4], c.Data[5])
		}
	}
	if minX > maxX || minY > maxY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Flatten converts the path into closed polygons, approximating cubic
// segments with line pieces no further than tol from the curve.
func (p Path) Flatten(tol float64) [][]Pt {
	if tol <= 0 {
		tol = 0.1
	}
	var polys [][]Pt
	var cur []Pt
	var start, last Pt
	flush := func() {
		if len(cur) > 2 {
			polys = append(polys, cur)
		}
		cur = nil
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			flush()
			start = Pt{c.Data[0], c.Data[1]}
			last = start
			cur = []Pt{start}
		case LineTo:
			last = Pt{c.Data[0], c.Data[1]}
			cur = append(cur, last)
		case CubicTo:
			p1, p2, p3 := Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]}
			n := cubicSteps(last, p1, p2, p3, tol)
			for i := 1; i <= n; i++ {
				cur = append(cur, cubicAt(last, p1, p2, p3, float64(i)/float64(n)))
			}
			last = p3
		case Close:
			flush()
			last = start
		}
	}
	flush()
	return polys
}

func cubicAt(p0, p1, p2, p3 Pt, t float64) Pt {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return Pt{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// cubicSteps picks a segment count from the control polygon deviation.
func cubicSteps(p0, p1, p2, p3 Pt, tol float64) int {
	dd := math.Max(
		math.Hypot(p0.X-2*p1.X+p2.X, p0.Y-2*p1.Y+p2.Y),
		math.Hypot(p1.X-2*p2.X+p3.X, p1.Y-2*p2.Y+p3.Y),
	)
	n := int(math.Ceil(math.Sqrt(0.75 * dd / tol)))
	return min(max(n, 1), 256)
}

// PolygonContains tests pt against a polygon with the even-odd rule.
func PolygonContains(poly []Pt, pt Pt) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < x {
				in = !in
			}
		}
	}
	return in
}
