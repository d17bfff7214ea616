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
	"context"
	"fmt"
	"image/png"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"locketprint/internal/layout"
	applog "locketprint/internal/log"
	"locketprint/internal/mask"
	"locketprint/internal/storage"
	"locketprint/internal/vector"
	"locketprint/internal/version"
)

// ptPerMm converts caption heights to font sizes.
const ptPerMm = 72 / 25.4

// PDFOptions controls PDF export behavior.
// The page uses millimetres with the origin at the top-left, matching layout.Page.
type PDFOptions struct {
	// CutGuides draws a 0.1 mm hairline along every clip outline.
	CutGuides bool
	Title     string
	Author    string
}

// ExportPDF writes page to outPath as a single true-scale page.
func ExportPDF(page layout.Page, src ImageSource, outPath string, opt PDFOptions) error {
	var buf bytes.Buffer
	if err := WritePDF(&buf, page, src, opt); err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(outPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WritePDF renders page to w. Overflowing placements are left out; src may be
// nil, in which case frames are filled with a neutral placeholder.
func WritePDF(w io.Writer, page layout.Page, src ImageSource, opt PDFOptions) error {
	sh := page.Sheet
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: sh.WidthMm, Ht: sh.HeightMm},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	title := opt.Title
	if title == "" {
		title = "Locket sheet"
	}
	pdf.SetTitle(title, true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetCreator("LocketPrint "+version.Version, true)

	calLayer := -1
	if page.Calibration != nil {
		calLayer = pdf.AddLayer("Calibration guide", true)
	}
	pdf.AddPage()

	r := &pdfRenderer{
		pdf:   pdf,
		src:   src,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		names: map[string]pdfImage{},
		opt:   opt,
	}
	for _, pl := range printable(page) {
		if err := r.placement(pl); err != nil {
			return err
		}
	}
	if page.Calibration != nil {
		r.calibration(*page.Calibration, calLayer)
	}
	if n := len(page.Overflowing()); n > 0 {
		applog.WithComponent("export").Warn("items do not fit on the sheet", "format", "pdf", "count", n)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

type pdfRenderer struct {
	pdf   *gofpdf.Fpdf
	src   ImageSource
	tr    func(string) string
	names map[string]pdfImage // by image ref
	opt   PDFOptions
}

type pdfImage struct {
	name string
	opts gofpdf.ImageOptions
}

var pdfImageTypes = map[string]string{"jpeg": "JPG", "png": "PNG", "gif": "GIF"}

// image registers ref once and returns its gofpdf name. Formats gofpdf cannot
// read are decoded and embedded as lossless PNG at their native pixel size.
func (r *pdfRenderer) image(ref string) (string, gofpdf.ImageOptions, error) {
	if im, ok := r.names[ref]; ok {
		return im.name, im.opts, nil
	}
	format, err := r.src.Format(ref)
	if err != nil {
		return "", gofpdf.ImageOptions{}, err
	}
	var name string
	opts := gofpdf.ImageOptions{ImageType: pdfImageTypes[format]}
	if opts.ImageType != "" {
		if name, err = r.src.Path(ref); err != nil {
			return "", opts, err
		}
		r.pdf.RegisterImageOptions(name, opts)
	} else {
		img, err := r.src.Decode(ref)
		if err != nil {
			return "", opts, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", opts, fmt.Errorf("transcode %s: %w", ref, err)
		}
		name, opts.ImageType = ref, "PNG"
		r.pdf.RegisterImageOptionsReader(name, opts, &buf)
	}
	if err := r.pdf.Error(); err != nil {
		return "", opts, fmt.Errorf("embed %s: %w", ref, err)
	}
	r.names[ref] = pdfImage{name: name, opts: opts}
	return name, opts, nil
}

func (r *pdfRenderer) placement(pl layout.Placement) error {
	pdf := r.pdf
	l := pl.Layer
	r.clip(l.Clip)
	if r.src == nil || pl.Item.ImageRef == "" {
		pdf.SetFillColor(placeholderGrey, placeholderGrey, placeholderGrey)
		pdf.Rect(pl.Frame.X, pl.Frame.Y, pl.Frame.W, pl.Frame.H, "F")
	} else {
		name, opts, err := r.image(pl.Item.ImageRef)
		if err != nil {
			pdf.ClipEnd()
			return fmt.Errorf("item %d: %w", pl.Index+1, err)
		}
		// gofpdf rotates counter-clockwise; layer rotation is clockwise on screen.
		pdf.TransformBegin()
		pdf.TransformRotate(-l.Rotation, l.Center.X, l.Center.Y)
		pdf.ImageOptions(name, l.Center.X-l.ImageW/2, l.Center.Y-l.ImageH/2, l.ImageW, l.ImageH, false, opts, 0, "")
		pdf.TransformEnd()
	}
	pdf.ClipEnd()

	if r.opt.CutGuides {
		pdf.SetDrawColor(guideGrey, guideGrey, guideGrey)
		pdf.SetLineWidth(layout.CutGuideMm)
		r.outline(l.Clip)
	}
	if pl.Caption != nil {
		r.caption(*pl.Caption)
	}
	return pdf.Error()
}

func (r *pdfRenderer) clip(c mask.Clip) {
	switch c.Kind {
	case mask.Ellipse:
		r.pdf.ClipEllipse(c.Center.X, c.Center.Y, c.Rx, c.Ry, false)
	case mask.Path:
		r.pdf.ClipPolygon(pdfPoints(c.Polygon(0)), false)
	default:
		r.pdf.ClipRect(c.Frame.X, c.Frame.Y, c.Frame.W, c.Frame.H, false)
	}
}

func (r *pdfRenderer) outline(c mask.Clip) {
	switch c.Kind {
	case mask.Ellipse:
		r.pdf.Ellipse(c.Center.X, c.Center.Y, c.Rx, c.Ry, 0, "D")
	case mask.Path:
		pdfPath(r.pdf, c.Outline)
		r.pdf.DrawPath("D")
	default:
		r.pdf.Rect(c.Frame.X, c.Frame.Y, c.Frame.W, c.Frame.H, "D")
	}
}

func (r *pdfRenderer) caption(c layout.Caption) {
	pdf := r.pdf
	y := c.Anchor.Y + layout.CaptionSizeMm*0.8
	pdf.SetFont("Helvetica", "B", layout.CaptionSizeMm*ptPerMm)
	pdf.SetTextColor(captionDark, captionDark, captionDark)
	r.centered(c.Size, c.Anchor.X, y)

	y = c.Anchor.Y + layout.CaptionSizeMm + layout.CaptionShapeMm*0.8
	pdf.SetFont("Helvetica", "", layout.CaptionShapeMm*ptPerMm)
	pdf.SetTextColor(captionLight, captionLight, captionLight)
	r.centered(c.Shape, c.Anchor.X, y)
}

func (r *pdfRenderer) centered(s string, x, baseline float64) {
	t := r.tr(s)
	r.pdf.Text(x-r.pdf.GetStringWidth(t)/2, baseline, t)
}

// calibration draws the scale line on its own optional-content layer at low opacity.
func (r *pdfRenderer) calibration(c layout.Calibration, layer int) {
	pdf := r.pdf
	if layer >= 0 {
		pdf.BeginLayer(layer)
		defer pdf.EndLayer()
	}
	pdf.SetAlpha(c.Opacity, "Normal")
	defer pdf.SetAlpha(1, "Normal")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Line(c.From.X, c.From.Y, c.To.X, c.To.Y)
	pdf.Line(c.From.X, c.From.Y-1.5, c.From.X, c.From.Y+1.5)
	pdf.Line(c.To.X, c.To.Y-1.5, c.To.X, c.To.Y+1.5)

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(c.From.X, c.From.Y-2, r.tr(c.StartLabel))
	end := r.tr(c.EndLabel)
	pdf.Text(c.To.X-pdf.GetStringWidth(end), c.To.Y-2, end)
}

func pdfPoints(pts []vector.Pt) []gofpdf.PointType {
	out := make([]gofpdf.PointType, len(pts))
	for i, p := range pts {
		out[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	return out
}

func pdfPath(pdf *gofpdf.Fpdf, p vector.Path) {
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			pdf.MoveTo(d[0], d[1])
		case vector.LineTo:
			pdf.LineTo(d[0], d[1])
		case vector.CubicTo:
			pdf.CurveBezierCubicTo(d[0], d[1], d[2], d[3], d[4], d[5])
		case vector.Close:
			pdf.ClosePath()
		}
	}
}

// PDFPrinter implements project.Printer: it writes the sheet into OutDir and
// optionally starts OpenCommand with the file path so the host can print it.
type PDFPrinter struct {
	Source      ImageSource
	OutDir      string
	OpenCommand string
	Options     PDFOptions

	now   func() time.Time
	start func(*exec.Cmd) error
}

// NewPDFPrinter returns a printer with cut guides enabled.
func NewPDFPrinter(src ImageSource, outDir, openCommand, author string) *PDFPrinter {
	return &PDFPrinter{
		Source:      src,
		OutDir:      outDir,
		OpenCommand: openCommand,
		Options:     PDFOptions{CutGuides: true, Author: author},
	}
}

// Print writes locket-sheet-<timestamp>.pdf and returns its path.
func (p *PDFPrinter) Print(ctx context.Context, page layout.Page) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l := applog.WithOperation(applog.WithComponent("export"), "print")
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	out := filepath.Join(p.OutDir, "locket-sheet-"+now().Format("20060102-150405")+".pdf")
	if err := ExportPDF(page, p.Source, out, p.Options); err != nil {
		return "", err
	}
	l.Info("sheet written", "path", out, "items", len(page.Placements))

	fields := strings.Fields(p.OpenCommand)
	if len(fields) == 0 {
		return out, nil
	}
	cmd := exec.Command(fields[0], append(fields[1:], out)...)
	start := p.start
	if start == nil {
		start = func(c *exec.Cmd) error {
			if err := c.Start(); err != nil {
				return err
			}
			go func() { _ = c.Wait() }()
			return nil
		}
	}
	if err := start(cmd); err != nil {
		return out, fmt.Errorf("open %s: %w", out, err)
	}
	l.Debug("handed to opener", "cmd", fields[0])
	return out, nil
}
