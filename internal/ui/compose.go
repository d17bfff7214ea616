/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	xvector "golang.org/x/image/vector"

	"locketprint/internal/layout"
	"locketprint/internal/vector"
)

// Editor surface colors.
var (
	surfaceColor  = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	outlineColor  = color.NRGBA{R: 0, G: 120, B: 255, A: 220}
	crosshairInk  = color.NRGBA{R: 0, G: 120, B: 255, A: 90}
	missingSource = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
)

// Compose renders the editor preview at display scale: the dimmed grayscale
// bleed layer, the masked photo on top, the frame outline and the center
// crosshair. A nil src paints the image area flat grey.
func Compose(src image.Image, p layout.Preview) *image.NRGBA {
	w := max(1, int(math.Ceil(p.Box.W)))
	h := max(1, int(math.Ceil(p.Box.H)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(surfaceColor), image.Point{}, xdraw.Src)

	var gray image.Image
	if src != nil {
		gray = imaging.Grayscale(src)
	}
	drawLayer(dst, gray, p.Bleed, nil)
	drawLayer(dst, src, p.Masked, clipMask(p.Masked, w, h))

	z := xvector.NewRasterizer(w, h)
	strokeInto(dst, z, p.Outline, 2, outlineColor)
	for _, seg := range p.Crosshair {
		strokeInto(dst, z, seg[:], 1, crosshairInk)
	}
	return dst
}

// drawLayer maps src through l.Matrix. mask, when set, limits the written
// pixels; l.Opacity scales the result.
func drawLayer(dst *image.NRGBA, src image.Image, l layout.Layer, mask *image.Alpha) {
	var dm image.Image
	switch {
	case mask != nil && l.Opacity < 1:
		dm = scaleAlpha(mask, l.Opacity)
	case mask != nil:
		dm = mask
	case l.Opacity < 1:
		dm = image.NewUniform(color.Alpha{A: uint8(math.Round(l.Opacity * 255))})
	}
	if src == nil {
		b := image.Rect(0, 0, 1, 1)
		xdraw.NearestNeighbor.Transform(dst, srcToDst(l.Matrix, b), image.NewUniform(missingSource), b, xdraw.Over, &xdraw.Options{DstMask: dm})
		return
	}
	b := src.Bounds()
	xdraw.ApproxBiLinear.Transform(dst, srcToDst(l.Matrix, b), src, b, xdraw.Over, &xdraw.Options{DstMask: dm})
}

// srcToDst composes the layer matrix, which maps the unit square, with the
// normalization of source pixel coordinates in b.
func srcToDst(m vector.Affine2D, b image.Rectangle) f64.Aff3 {
	sx, sy := 1/float64(b.Dx()), 1/float64(b.Dy())
	ox, oy := -float64(b.Min.X)*sx, -float64(b.Min.Y)*sy
	return f64.Aff3{
		m.A * sx, m.C * sy, m.A*ox + m.C*oy + m.E,
		m.B * sx, m.D * sy, m.B*ox + m.D*oy + m.F,
	}
}

// clipMask rasterizes the layer's clip into a w×h coverage image.
func clipMask(l layout.Layer, w, h int) *image.Alpha {
	a := image.NewAlpha(image.Rect(0, 0, w, h))
	if !l.Masked {
		xdraw.Draw(a, a.Bounds(), image.Opaque, image.Point{}, xdraw.Src)
		return a
	}
	z := xvector.NewRasterizer(w, h)
	for _, cmd := range l.Clip.AsPath().Cmds {
		d := cmd.Data
		switch cmd.Op {
		case vector.MoveTo:
			z.MoveTo(float32(d[0]), float32(d[1]))
		case vector.LineTo:
			z.LineTo(float32(d[0]), float32(d[1]))
		case vector.CubicTo:
			z.CubeTo(float32(d[0]), float32(d[1]), float32(d[2]), float32(d[3]), float32(d[4]), float32(d[5]))
		case vector.Close:
			z.ClosePath()
		}
	}
	z.DrawOp = xdraw.Src
	z.Draw(a, a.Bounds(), image.Opaque, image.Point{})
	return a
}

func scaleAlpha(m *image.Alpha, f float64) *image.Alpha {
	out := image.NewAlpha(m.Bounds())
	for i, v := range m.Pix {
		out.Pix[i] = uint8(math.Round(float64(v) * f))
	}
	return out
}

// strokeInto draws pts as a closed ring, or one segment for two points.
func strokeInto(dst *image.NRGBA, z *xvector.Rasterizer, pts []vector.Pt, width float64, c color.Color) {
	n := len(pts)
	if n < 2 {
		return
	}
	edges := n
	if n == 2 {
		edges = 1
	}
	half := width / 2
	for i := 0; i < edges; i++ {
		a, b := pts[i], pts[(i+1)%n]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
		z.LineTo(float32(b.X+nx), float32(b.Y+ny))
		z.LineTo(float32(b.X-nx), float32(b.Y-ny))
		z.LineTo(float32(a.X-nx), float32(a.Y-ny))
		z.ClosePath()
	}
	z.DrawOp = xdraw.Over
	z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
	b := dst.Bounds()
	z.Reset(b.Dx(), b.Dy())
}
