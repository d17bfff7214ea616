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
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"locketprint/internal/layout"
	"locketprint/internal/mask"
	"locketprint/internal/storage"
	"locketprint/internal/vector"
)

// SVGOptions controls SVG export. User units are millimetres.
type SVGOptions struct {
	CutGuides bool
	// Embed inlines photos as data URIs; otherwise images link to the asset files.
	Embed bool
}

var svgMime = map[string]string{"jpeg": "image/jpeg", "png": "image/png", "gif": "image/gif"}

// ExportSVG writes page to outPath.
func ExportSVG(page layout.Page, src ImageSource, outPath string, opt SVGOptions) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, page, src, opt); err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(outPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// WriteSVG renders page as a standalone SVG document sized in millimetres.
func WriteSVG(w io.Writer, page layout.Page, src ImageSource, opt SVGOptions) error {
	sh := page.Sheet
	var buf bytes.Buffer
	wf := func(format string, args ...any) {
		_, _ = fmt.Fprintf(&buf, format, args...)
	}
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%gmm\" height=\"%gmm\" viewBox=\"0 0 %g %g\">\n",
		sh.WidthMm, sh.HeightMm, sh.WidthMm, sh.HeightMm)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", sh.WidthMm, sh.HeightMm)

	hrefs := map[string]string{}
	for _, pl := range printable(page) {
		l := pl.Layer
		id := fmt.Sprintf("clip-%d", pl.Index+1)
		wf("  <defs><clipPath id=\"%s\">%s</clipPath></defs>\n", id, svgShape(l.Clip, ""))
		wf("  <g clip-path=\"url(#%s)\">\n", id)
		if src == nil || pl.Item.ImageRef == "" {
			f := pl.Frame
			wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", f.X, f.Y, f.W, f.H, grey(placeholderGrey))
		} else {
			href, ok := hrefs[pl.Item.ImageRef]
			if !ok {
				var err error
				if href, err = svgHref(src, pl.Item.ImageRef, opt.Embed); err != nil {
					return fmt.Errorf("item %d: %w", pl.Index+1, err)
				}
				hrefs[pl.Item.ImageRef] = href
			}
			m := l.Matrix
			wf("    <image x=\"0\" y=\"0\" width=\"1\" height=\"1\" preserveAspectRatio=\"none\" transform=\"matrix(%g %g %g %g %g %g)\" xlink:href=\"%s\"/>\n",
				m.A, m.B, m.C, m.D, m.E, m.F, escAttr(href))
		}
		wf("  </g>\n")
		if opt.CutGuides {
			wf("  %s\n", svgShape(l.Clip, fmt.Sprintf(" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"", grey(guideGrey), layout.CutGuideMm)))
		}
		if c := pl.Caption; c != nil {
			wf("  <text x=\"%g\" y=\"%g\" text-anchor=\"middle\" font-family=\"Helvetica, Arial, sans-serif\" font-weight=\"bold\" font-size=\"%g\" fill=\"%s\">%s</text>\n",
				c.Anchor.X, c.Anchor.Y+layout.CaptionSizeMm*0.8, layout.CaptionSizeMm, grey(captionDark), escText(c.Size))
			wf("  <text x=\"%g\" y=\"%g\" text-anchor=\"middle\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"%g\" fill=\"%s\">%s</text>\n",
				c.Anchor.X, c.Anchor.Y+layout.CaptionSizeMm+layout.CaptionShapeMm*0.8, layout.CaptionShapeMm, grey(captionLight), escText(c.Shape))
		}
	}

	if c := page.Calibration; c != nil {
		wf("  <g class=\"calibration\" opacity=\"%g\" stroke=\"#000\" stroke-width=\"0.3\">\n", c.Opacity)
		wf("    <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\"/>\n", c.From.X, c.From.Y, c.To.X, c.To.Y)
		wf("    <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\"/>\n", c.From.X, c.From.Y-1.5, c.From.X, c.From.Y+1.5)
		wf("    <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\"/>\n", c.To.X, c.To.Y-1.5, c.To.X, c.To.Y+1.5)
		wf("    <text x=\"%g\" y=\"%g\" stroke=\"none\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"2.1\">%s</text>\n", c.From.X, c.From.Y-2, escText(c.StartLabel))
		wf("    <text x=\"%g\" y=\"%g\" stroke=\"none\" text-anchor=\"end\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"2.1\">%s</text>\n", c.To.X, c.To.Y-2, escText(c.EndLabel))
		wf("  </g>\n")
	}
	wf("</svg>\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// svgShape returns the clip outline as a single SVG element with extra attributes appended.
func svgShape(c mask.Clip, attrs string) string {
	switch c.Kind {
	case mask.Ellipse:
		return fmt.Sprintf("<ellipse cx=\"%g\" cy=\"%g\" rx=\"%g\" ry=\"%g\"%s/>", c.Center.X, c.Center.Y, c.Rx, c.Ry, attrs)
	case mask.Path:
		return fmt.Sprintf("<path d=\"%s\"%s/>", svgPathData(c.Outline), attrs)
	default:
		f := c.Frame
		return fmt.Sprintf("<rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\"%s/>", f.X, f.Y, f.W, f.H, attrs)
	}
}

func svgPathData(p vector.Path) string {
	var b bytes.Buffer
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			fmt.Fprintf(&b, "M%g %g ", d[0], d[1])
		case vector.LineTo:
			fmt.Fprintf(&b, "L%g %g ", d[0], d[1])
		case vector.CubicTo:
			fmt.Fprintf(&b, "C%g %g %g %g %g %g ", d[0], d[1], d[2], d[3], d[4], d[5])
		case vector.Close:
			b.WriteString("Z")
		}
	}
	return string(bytes.TrimSpace(b.Bytes()))
}

// svgHref links to the asset file, or inlines it. Inlined formats browsers
// do not display (bmp, tiff, webp) are re-encoded as PNG.
func svgHref(src ImageSource, ref string, embed bool) (string, error) {
	p, err := src.Path(ref)
	if err != nil {
		return "", err
	}
	if !embed {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", ref, err)
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}
	format, err := src.Format(ref)
	if err != nil {
		return "", err
	}
	var data []byte
	mime, ok := svgMime[format]
	if ok {
		if data, err = os.ReadFile(p); err != nil {
			return "", fmt.Errorf("read %s: %w", ref, err)
		}
	} else {
		img, err := src.Decode(ref)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("transcode %s: %w", ref, err)
		}
		data, mime = buf.Bytes(), "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func grey(v uint8) string { return fmt.Sprintf("#%02x%02x%02x", v, v, v) }

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
