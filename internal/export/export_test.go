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
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/bmp"
	"locketprint/internal/domain"
	"locketprint/internal/layout"
	"locketprint/internal/storage"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 0x80, A: 0xff})
		}
	}
	return img
}

// newAssets stores one PNG and one BMP photo and returns their refs.
func newAssets(t *testing.T) (*storage.Assets, string, string) {
	t.Helper()
	a := &storage.Assets{Dir: t.TempDir()}
	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, testImage(40, 30)); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, testImage(20, 20)); err != nil {
		t.Fatal(err)
	}
	p, err := a.RegisterReader("a.png", &pngBuf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := a.RegisterReader("b.bmp", &bmpBuf)
	if err != nil {
		t.Fatal(err)
	}
	return a, p.Ref, b.Ref
}

func heartItem(ref string) domain.PhotoItem {
	return domain.NewPhotoItem("h", "heart", ref, 40, 30).
		SetShape(domain.ShapeHeart).
		SetDimension(domain.AxisWidth, 3).
		SetDimension(domain.AxisHeight, 2)
}

func samplePage(refs ...string) layout.Page {
	ref := func(i int) string {
		if i < len(refs) {
			return refs[i]
		}
		return ""
	}
	items := []domain.PhotoItem{
		heartItem(ref(0)),
		domain.NewPhotoItem("c", "circle", ref(1), 20, 20).RotateBy(90),
		domain.NewPhotoItem("o", "oval", ref(0), 40, 30).SetShape(domain.ShapeOval),
		domain.NewPhotoItem("r", "rect", ref(1), 20, 20).SetShape(domain.ShapeRectangle),
	}
	return layout.A4().Layout(items)
}

func TestWritePDFWithoutImages(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, samplePage(), nil, PDFOptions{CutGuides: true}); err != nil {
		t.Fatalf("WritePDF error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestExportPDFEmbedsAndTranscodes(t *testing.T) {
	assets, pngRef, bmpRef := newAssets(t)
	out := filepath.Join(t.TempDir(), "pdf", "sheet.pdf")
	if err := ExportPDF(samplePage(pngRef, bmpRef), assets, out, PDFOptions{CutGuides: true, Author: "Tester"}); err != nil {
		t.Fatalf("ExportPDF error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if n := bytes.Count(data, []byte("/Subtype /Image")); n != 2 {
		t.Fatalf("embedded images = %d, want 2 (each ref once)", n)
	}
}

func TestWritePDFMissingAsset(t *testing.T) {
	assets := &storage.Assets{Dir: t.TempDir()}
	page := layout.A4().Layout([]domain.PhotoItem{heartItem("assets/missing.png")})
	var buf bytes.Buffer
	if err := WritePDF(&buf, page, assets, PDFOptions{}); err == nil {
		t.Fatalf("expected error for missing asset")
	}
}

func TestPDFPrinterWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	p := NewPDFPrinter(nil, dir, "", "")
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	got, err := p.Print(context.Background(), samplePage())
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}
	want := filepath.Join(dir, "locket-sheet-20260102-030405.pdf")
	if got != want {
		t.Fatalf("Print = %q, want %q", got, want)
	}
	if st, err := os.Stat(got); err != nil || st.Size() == 0 {
		t.Fatalf("printed file missing or empty: %v", err)
	}
}

func TestPDFPrinterStartsOpener(t *testing.T) {
	dir := t.TempDir()
	p := NewPDFPrinter(nil, dir, "lp -o fit-to-page=false", "")
	var args []string
	p.start = func(c *exec.Cmd) error {
		args = c.Args
		return nil
	}
	out, err := p.Print(context.Background(), samplePage())
	if err != nil {
		t.Fatalf("Print error: %v", err)
	}
	if diff := cmp.Diff([]string{"lp", "-o", "fit-to-page=false", out}, args); diff != "" {
		t.Fatalf("opener args mismatch (-want +got):\n%s", diff)
	}
}

func TestPDFPrinterHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPDFPrinter(nil, t.TempDir(), "", "").Print(ctx, samplePage()); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestWriteSVGClipsAndPlaces(t *testing.T) {
	assets, pngRef, bmpRef := newAssets(t)
	page := samplePage(pngRef, bmpRef)

	var buf bytes.Buffer
	if err := WriteSVG(&buf, page, assets, SVGOptions{CutGuides: true}); err != nil {
		t.Fatalf("WriteSVG error: %v", err)
	}
	s := buf.String()
	for _, want := range []string{
		`width="210mm" height="297mm" viewBox="0 0 210 297"`,
		`<clipPath id="clip-1"><path d="M`,
		`<clipPath id="clip-2"><ellipse`,
		`<clipPath id="clip-4"><rect`,
		`transform="matrix(`,
		`xlink:href="file://`,
		`3×2 CM`,
		`>HEART<`,
		`Calibrator`,
		`stroke-width="0.1"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("svg missing %q", want)
		}
	}

	buf.Reset()
	if err := WriteSVG(&buf, page, assets, SVGOptions{Embed: true}); err != nil {
		t.Fatalf("WriteSVG embed error: %v", err)
	}
	s = buf.String()
	if strings.Contains(s, "file://") || strings.Count(s, "data:image/png;base64,") != 4 {
		t.Fatalf("embedded svg should inline every photo as PNG")
	}
	if strings.Contains(s, `stroke-width="0.1"`) {
		t.Fatalf("cut guides drawn although disabled")
	}
}

func TestSVGImageUsesLayerMatrix(t *testing.T) {
	assets, pngRef, _ := newAssets(t)
	page := layout.A4().Layout([]domain.PhotoItem{heartItem(pngRef).RotateBy(90)})
	var buf bytes.Buffer
	if err := WriteSVG(&buf, page, assets, SVGOptions{}); err != nil {
		t.Fatalf("WriteSVG error: %v", err)
	}
	m := page.Placements[0].Layer.Matrix
	want := fmt.Sprintf(`transform="matrix(%g %g %g %g %g %g)"`, m.A, m.B, m.C, m.D, m.E, m.F)
	if !strings.Contains(buf.String(), want) {
		t.Fatalf("svg missing %s", want)
	}
}

func TestEscaping(t *testing.T) {
	if got := escText(`<a & b>`); got != "&lt;a &amp; b&gt;" {
		t.Fatalf("escText = %q", got)
	}
	if got := escAttr(`say "hi" & go`); got != "say &quot;hi&quot; &amp; go" {
		t.Fatalf("escAttr = %q", got)
	}
}

// proofDPI gives 10 pixels per millimetre.
const proofDPI = 254

func greyAt(img *image.RGBA, xMm, yMm float64) uint8 {
	return img.RGBAAt(int(xMm*10), int(yMm*10)).R
}

func TestRenderProofMasksHeartIndependentOfDisplay(t *testing.T) {
	img := RenderProof(samplePage(), PNGOptions{DPI: proofDPI})
	if b := img.Bounds(); b.Dx() != 2100 || b.Dy() != 2970 {
		t.Fatalf("proof size = %v, want 2100x2970", b)
	}
	// heart frame is 30x20 mm at (15,15)
	if got := greyAt(img, 30, 25); got != placeholderGrey {
		t.Fatalf("heart center = %d, want %d", got, placeholderGrey)
	}
	if got := greyAt(img, 16.5, 33.5); got != 255 {
		t.Fatalf("heart bottom-left corner = %d, want white", got)
	}
	// circle frame is 25x25 mm at (60,15)
	if got := greyAt(img, 72.5, 27.5); got != placeholderGrey {
		t.Fatalf("circle center = %d, want %d", got, placeholderGrey)
	}
	if got := greyAt(img, 61, 16); got != 255 {
		t.Fatalf("circle frame corner = %d, want white", got)
	}
	// rectangle fills its whole frame at (140,15)
	if got := greyAt(img, 141, 16); got != placeholderGrey {
		t.Fatalf("rectangle corner = %d, want %d", got, placeholderGrey)
	}
}

func TestRenderProofDrawsCaptions(t *testing.T) {
	img := RenderProof(samplePage(), PNGOptions{DPI: proofDPI})
	// caption block starts 2 mm under the heart frame (bottom at 35 mm)
	dark := false
	for y := 360; y < 420 && !dark; y++ {
		for x := 200; x < 400; x++ {
			if img.RGBAAt(x, y).R <= captionDark {
				dark = true
				break
			}
		}
	}
	if !dark {
		t.Fatalf("no caption ink under the heart frame")
	}
}

func TestRenderProofSkipsOverflow(t *testing.T) {
	big := func(id string) domain.PhotoItem {
		return domain.NewPhotoItem(id, id, "", 10, 10).
			SetDimension(domain.AxisWidth, 9).
			SetDimension(domain.AxisHeight, 9)
	}
	page := layout.A4().Layout([]domain.PhotoItem{big("a"), big("b"), big("c")})
	over := page.Overflowing()
	if len(over) != 1 || over[0].Item.ID != "c" {
		t.Fatalf("overflowing = %+v, want item c", over)
	}
	img := RenderProof(page, PNGOptions{DPI: proofDPI})
	c := over[0].Frame.Center()
	if got := greyAt(img, c.X, c.Y); got != 255 {
		t.Fatalf("overflowing item drawn: %d", got)
	}
}

func TestRenderProofKeepsFrameWhoseCaptionReachesMargin(t *testing.T) {
	tall := domain.NewPhotoItem("tall", "tall", "", 10, 10).
		SetDimension(domain.AxisWidth, 18).
		SetDimension(domain.AxisHeight, 26.5)
	page := layout.A4().Layout([]domain.PhotoItem{tall})
	if n := len(printable(page)); n != 1 {
		t.Fatalf("printable placements = %d, want 1", n)
	}
	img := RenderProof(page, PNGOptions{DPI: proofDPI})
	if got := greyAt(img, 105, 147.5); got != placeholderGrey {
		t.Fatalf("circle center = %d, want %d", got, placeholderGrey)
	}
}

func TestExportPNGWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "proof.png")
	if err := ExportPNG(samplePage(), out, PNGOptions{DPI: 72, CutGuides: true}); err != nil {
		t.Fatalf("ExportPNG error: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 596 || cfg.Height != 842 {
		t.Fatalf("size = %dx%d, want 596x842", cfg.Width, cfg.Height)
	}
}

func TestBatchExportPresets(t *testing.T) {
	assets, pngRef, _ := newAssets(t)
	page := samplePage(pngRef)
	exports := t.TempDir()

	files, err := BatchExport(page, assets, BatchOptions{Preset: PresetPrint, ExportsDir: exports})
	if err != nil {
		t.Fatalf("BatchExport print error: %v", err)
	}
	want := []string{
		filepath.Join(exports, "print", "pdf", "sheet.pdf"),
		filepath.Join(exports, "print", "png", "sheet.png"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("print files mismatch (-want +got):\n%s", diff)
	}

	files, err = BatchExport(page, assets, BatchOptions{Preset: PresetWeb, ExportsDir: exports, Name: "locket"})
	if err != nil {
		t.Fatalf("BatchExport web error: %v", err)
	}
	for _, f := range files {
		if st, err := os.Stat(f); err != nil || st.Size() == 0 {
			t.Fatalf("missing output %s: %v", f, err)
		}
	}
	if len(files) != 2 || filepath.Base(files[1]) != "locket.svg" {
		t.Fatalf("web files = %v", files)
	}

	if _, err := BatchExport(page, assets, BatchOptions{Formats: []string{"cbz"}, ExportsDir: exports}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
