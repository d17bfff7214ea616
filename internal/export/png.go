/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"locketprint/internal/layout"
	"locketprint/internal/storage"
	"locketprint/internal/vector"
)

// DefaultProofDPI is used when PNGOptions.DPI is zero.
const DefaultProofDPI = 150

// PNGOptions controls the PNG proof. The proof shows frames, masks and
// captions at true proportions; photos are not drawn.
type PNGOptions struct {
	DPI int
	// CutGuides adds the frame rectangle around each mask.
	CutGuides bool
}

// ExportPNG renders the proof and writes it to outPath.
func ExportPNG(page layout.Page, outPath string, opt PNGOptions) error {
	img := RenderProof(page, opt)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := storage.WriteFileAtomic(outPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// RenderProof rasterizes page. One pixel covers 25.4/DPI millimetres.
func RenderProof(page layout.Page, opt PNGOptions) *image.RGBA {
	dpi := opt.DPI
	if dpi <= 0 {
		dpi = DefaultProofDPI
	}
	sh := page.Sheet
	scale := float64(dpi) / 25.4
	w := int(math.Ceil(sh.WidthMm*scale - 1e-6))
	h := int(math.Ceil(sh.HeightMm*scale - 1e-6))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	p := &proof{dst: img, z: xvector.NewRasterizer(w, h), scale: scale}

	for _, pl := range printable(page) {
		c := pl.Layer.Clip
		p.fill(c.AsPath(), color.RGBA{R: placeholderGrey, G: placeholderGrey, B: placeholderGrey, A: 255})
		p.stroke(c.Polygon(0), 1, color.RGBA{R: captionLight, G: captionLight, B: captionLight, A: 255})
		if opt.CutGuides {
			f := pl.Frame
			p.stroke([]vector.Pt{f.Min(), {X: f.X + f.W, Y: f.Y}, f.Max(), {X: f.X, Y: f.Y + f.H}}, 1,
				color.RGBA{R: guideGrey, G: guideGrey, B: guideGrey, A: 255})
		}
		if cp := pl.Caption; cp != nil {
			p.text(cp.Size, cp.Anchor.X, cp.Anchor.Y+layout.CaptionSizeMm*0.8, layout.CaptionSizeMm, boldFont, color.Gray{Y: captionDark})
			p.text(cp.Shape, cp.Anchor.X, cp.Anchor.Y+layout.CaptionSizeMm+layout.CaptionShapeMm*0.8, layout.CaptionShapeMm, regularFont, color.Gray{Y: captionLight})
		}
	}

	if c := page.Calibration; c != nil {
		a := uint8(math.Round(c.Opacity * 255))
		ink := color.NRGBA{A: a}
		width := math.Max(1, 0.3*scale)
		p.stroke([]vector.Pt{c.From, c.To}, width, ink)
		p.stroke([]vector.Pt{{X: c.From.X, Y: c.From.Y - 1.5}, {X: c.From.X, Y: c.From.Y + 1.5}}, width, ink)
		p.stroke([]vector.Pt{{X: c.To.X, Y: c.To.Y - 1.5}, {X: c.To.X, Y: c.To.Y + 1.5}}, width, ink)
	}
	return img
}

type proof struct {
	dst   *image.RGBA
	z     *xvector.Rasterizer
	scale float64 // pixels per millimetre
}

func (p *proof) px(v float64) float32 { return float32(v * p.scale) }

func (p *proof) paint(c color.Color) {
	p.z.DrawOp = draw.Over
	p.z.Draw(p.dst, p.dst.Bounds(), image.NewUniform(c), image.Point{})
	b := p.dst.Bounds()
	p.z.Reset(b.Dx(), b.Dy())
}

// fill paints the interior of path, given in millimetres.
func (p *proof) fill(path vector.Path, c color.Color) {
	for _, cmd := range path.Cmds {
		d := cmd.Data
		switch cmd.Op {
		case vector.MoveTo:
			p.z.MoveTo(p.px(d[0]), p.px(d[1]))
		case vector.LineTo:
			p.z.LineTo(p.px(d[0]), p.px(d[1]))
		case vector.CubicTo:
			p.z.CubeTo(p.px(d[0]), p.px(d[1]), p.px(d[2]), p.px(d[3]), p.px(d[4]), p.px(d[5]))
		case vector.Close:
			p.z.ClosePath()
		}
	}
	p.paint(c)
}

// stroke draws pts as a closed outline (or a single segment for two points)
// widthPx pixels wide. Each edge becomes a quad; overlaps clamp to full coverage.
func (p *proof) stroke(pts []vector.Pt, widthPx float64, c color.Color) {
	n := len(pts)
	if n < 2 {
		return
	}
	edges := n
	if n == 2 {
		edges = 1
	}
	half := widthPx / 2
	for i := 0; i < edges; i++ {
		a, b := pts[i], pts[(i+1)%n]
		ax, ay := a.X*p.scale, a.Y*p.scale
		bx, by := b.X*p.scale, b.Y*p.scale
		dx, dy := bx-ax, by-ay
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		p.z.MoveTo(float32(ax+nx), float32(ay+ny))
		p.z.LineTo(float32(bx+nx), float32(by+ny))
		p.z.LineTo(float32(bx-nx), float32(by-ny))
		p.z.LineTo(float32(ax-nx), float32(ay-ny))
		p.z.ClosePath()
	}
	p.paint(c)
}

// Caption typefaces, parsed once.
var (
	regularFont = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(goregular.TTF) })
	boldFont    = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(gobold.TTF) })
)

// face returns f at an em height of mm millimetres. basicfont stands in when
// the font cannot be instantiated; it is ASCII only.
func (p *proof) face(f func() (*opentype.Font, error), mm float64) (font.Face, bool) {
	ft, err := f()
	if err == nil {
		var fc font.Face
		fc, err = opentype.NewFace(ft, &opentype.FaceOptions{Size: mm * p.scale, DPI: 72, Hinting: font.HintingFull})
		if err == nil {
			return fc, true
		}
	}
	return basicfont.Face7x13, false
}

// text draws s centered on x with its baseline at y, both in millimetres.
func (p *proof) text(s string, x, y, sizeMm float64, f func() (*opentype.Font, error), c color.Color) {
	face, owned := p.face(f, sizeMm)
	if owned {
		defer func() { _ = face.Close() }()
	} else {
		s = strings.ReplaceAll(s, "×", "x")
	}
	d := &font.Drawer{Dst: p.dst, Src: image.NewUniform(c), Face: face}
	adv := d.MeasureString(s)
	d.Dot = fixed.Point26_6{
		X: fixed.I(int(math.Round(x*p.scale))) - adv/2,
		Y: fixed.I(int(math.Round(y * p.scale))),
	}
	d.DrawString(s)
}
