//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"locketprint/internal/domain"
	"locketprint/internal/editor"
	"locketprint/internal/export"
	"locketprint/internal/layout"
	applog "locketprint/internal/log"
	"locketprint/internal/version"
)

const (
	prefWindowW    = "window.width"
	prefWindowH    = "window.height"
	prefImportDir  = "import.lastDir"
	previewDPI     = 72
	offsetSliderLo = -50.0
	offsetSliderHi = 150.0
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Run opens the editor window and blocks until it is closed.
func Run(ctx context.Context, deps Deps) error {
	if deps.Session == nil || deps.Workspace == nil {
		return errors.New("ui: session and workspace are required")
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	fyneApp := app.NewWithID("app.locketprint")
	w := fyneApp.NewWindow("LocketPrint")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback(prefWindowW, 1100), 800)
	winH := max(prefs.IntWithFallback(prefWindowH, 720), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	ew := newEditorWindow(ctx, deps, w, prefs)
	w.SetContent(ew.content())
	w.SetMainMenu(ew.menu())
	deps.Session.Watch(func(st domain.ProjectState) {
		fyne.Do(func() { ew.refresh(st) })
	})
	ew.refresh(deps.Session.State())

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt(prefWindowW, int(sz.Width))
		prefs.SetInt(prefWindowH, int(sz.Height))
		w.Close()
	})
	w.ShowAndRun()
	return nil
}

// editorWindow holds the widgets of the main window. The session owns the
// state; refresh mirrors it into the widgets.
type editorWindow struct {
	ctx   context.Context
	deps  Deps
	w     fyne.Window
	prefs fyne.Preferences
	l     *slog.Logger

	photos  *widget.List
	crop    *CropCanvas
	shape   *widget.Select
	width   *widget.Entry
	height  *widget.Entry
	lock    *widget.Check
	zoom    *widget.Slider
	rotate  *widget.Slider
	offsetX *widget.Slider
	offsetY *widget.Slider
	status  *widget.Label
	actions []fyne.Disableable

	state   domain.ProjectState
	images  map[string]image.Image
	syncing bool
}

func newEditorWindow(ctx context.Context, deps Deps, w fyne.Window, prefs fyne.Preferences) *editorWindow {
	ew := &editorWindow{
		ctx:    ctx,
		deps:   deps,
		w:      w,
		prefs:  prefs,
		l:      applog.WithComponent("ui"),
		state:  domain.EmptyState(),
		images: map[string]image.Image{},
		status: widget.NewLabel("Ready"),
	}

	ew.photos = widget.NewList(
		func() int { return len(ew.state.Items) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < 0 || i >= len(ew.state.Items) {
				return
			}
			it := ew.state.Items[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%d. %s  %s×%s cm %s", i+1, it.Name,
				layout.FormatCm(it.WidthCm), layout.FormatCm(it.HeightCm), strings.ToLower(string(it.Shape))))
		},
	)
	ew.photos.OnSelected = func(i widget.ListItemID) {
		if !ew.syncing {
			ew.deps.Session.Select(i)
		}
	}

	ew.crop = NewCropCanvas()
	ew.crop.OnError = ew.fail

	shapes := make([]string, 0, len(domain.Shapes()))
	for _, s := range domain.Shapes() {
		shapes = append(shapes, string(s))
	}
	ew.shape = widget.NewSelect(shapes, func(v string) {
		ew.edit(func(ed *editor.Editor) error {
			s, err := domain.ParseShape(v)
			if err != nil {
				return err
			}
			return ed.SetShape(s)
		})
	})
	ew.width = ew.dimensionEntry(domain.AxisWidth)
	ew.height = ew.dimensionEntry(domain.AxisHeight)
	ew.lock = widget.NewCheck("Lock aspect ratio", func(on bool) {
		ew.edit(func(ed *editor.Editor) error {
			it, ok := ew.deps.Session.Item(ed.ID())
			if !ok || it.LockAspectRatio == on {
				return nil
			}
			return ed.ToggleAspectLock()
		})
	})

	lo, hi := domain.MinZoom, deps.Editor.SliderZoomMax
	if hi <= lo {
		hi = 5
	}
	ew.zoom = widget.NewSlider(lo, hi)
	ew.zoom.Step = 0.01
	ew.zoom.OnChanged = func(v float64) { ew.edit(func(ed *editor.Editor) error { return ed.SetZoom(v) }) }

	ew.rotate = widget.NewSlider(-180, 180)
	ew.rotate.OnChanged = func(v float64) { ew.edit(func(ed *editor.Editor) error { return ed.SetRotation(v) }) }

	ew.offsetX = widget.NewSlider(offsetSliderLo, offsetSliderHi)
	ew.offsetY = widget.NewSlider(offsetSliderLo, offsetSliderHi)
	setOffset := func(float64) {
		ew.edit(func(ed *editor.Editor) error { return ed.SetOffset(ew.offsetX.Value, ew.offsetY.Value) })
	}
	ew.offsetX.OnChanged = setOffset
	ew.offsetY.OnChanged = setOffset
	return ew
}

func (ew *editorWindow) dimensionEntry(axis domain.Axis) *widget.Entry {
	e := widget.NewEntry()
	e.SetPlaceHolder("cm")
	e.OnChanged = func(text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		ew.edit(func(ed *editor.Editor) error { return ed.SetDimensionText(axis, text) })
	}
	return e
}

// edit runs fn against the current editor unless refresh is writing the widgets.
func (ew *editorWindow) edit(fn func(*editor.Editor) error) {
	if ew.syncing {
		return
	}
	ed := ew.crop.Editor()
	if ed == nil {
		return
	}
	if err := fn(ed); err != nil {
		ew.fail(err)
	}
}

func (ew *editorWindow) fail(err error) {
	ew.l.Warn("ui action failed", slog.Any("err", err))
	ew.status.SetText("Error: " + err.Error())
}

func (ew *editorWindow) content() fyne.CanvasObject {
	importBtn := widget.NewButton("Import photos…", ew.importPhotos)
	removeBtn := widget.NewButton("Remove", ew.removeSelected)
	inheritBtn := widget.NewButton("Copy from first", func() {
		ew.deps.Session.InheritFromFirst()
	})
	rotateBtn := widget.NewButton("Rotate 90°", func() { ew.edit((*editor.Editor).Rotate) })
	resetBtn := widget.NewButton("Reset crop", func() { ew.edit((*editor.Editor).Reset) })
	subjectBtn := widget.NewButton("Center on subject", ew.centerOnSubject)
	printBtn := widget.NewButton("Print…", ew.showPrintPreview)
	printBtn.Importance = widget.HighImportance
	historyBtn := widget.NewButton("History…", ew.showHistory)

	ew.actions = []fyne.Disableable{removeBtn, inheritBtn, rotateBtn, resetBtn, subjectBtn,
		ew.shape, ew.width, ew.height, ew.lock}

	left := container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Photos", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), importBtn),
		container.NewVBox(removeBtn, inheritBtn),
		nil, nil, ew.photos)

	form := widget.NewForm(
		widget.NewFormItem("Shape", ew.shape),
		widget.NewFormItem("Width (cm)", ew.width),
		widget.NewFormItem("Height (cm)", ew.height),
		widget.NewFormItem("", ew.lock),
		widget.NewFormItem("Zoom", ew.zoom),
		widget.NewFormItem("Rotation", ew.rotate),
		widget.NewFormItem("Horizontal", ew.offsetX),
		widget.NewFormItem("Vertical", ew.offsetY),
	)
	right := container.NewVBox(form, container.NewGridWithColumns(2, rotateBtn, resetBtn), subjectBtn,
		widget.NewSeparator(), printBtn, historyBtn)

	center := container.NewHSplit(ew.crop, container.NewPadded(right))
	center.Offset = 0.65
	body := container.NewHSplit(left, center)
	body.Offset = 0.22
	return container.NewBorder(nil, ew.status, nil, nil, body)
}

func (ew *editorWindow) menu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Import Photos…", ew.importPhotos),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Print…", ew.showPrintPreview),
		fyne.NewMenuItem("Print History…", ew.showHistory),
	)
	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("Export Sheet as PDF…", func() { ew.exportSheet(export.FormatPDF) }),
		fyne.NewMenuItem("Export Sheet as SVG…", func() { ew.exportSheet(export.FormatSVG) }),
		fyne.NewMenuItem("Export Proof as PNG…", func() { ew.exportSheet(export.FormatPNG) }),
	)
	aboutItem := fyne.NewMenuItem("About LocketPrint", func() {
		info := fmt.Sprintf("LocketPrint\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nWorkspace: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), ew.deps.Workspace.Root)
		dialog.ShowInformation("About", info, ew.w)
	})
	return fyne.NewMainMenu(fileMenu, exportMenu, fyne.NewMenu("About", aboutItem))
}

// refresh mirrors st into the widgets and points the crop canvas at the
// selected photo.
func (ew *editorWindow) refresh(st domain.ProjectState) {
	ew.syncing = true
	defer func() { ew.syncing = false }()

	ew.state = st
	ew.photos.Refresh()
	if st.SelectedIndex >= 0 {
		ew.photos.Select(st.SelectedIndex)
	} else {
		ew.photos.UnselectAll()
	}

	it, ok := st.Selected()
	for _, d := range ew.actions {
		if ok {
			d.Enable()
		} else {
			d.Disable()
		}
	}
	if !ok {
		ew.crop.SetEditor(nil, nil)
		return
	}
	if ed := ew.crop.Editor(); ed == nil || ed.ID() != it.ID {
		ew.crop.SetEditor(editor.New(ew.deps.Session, it.ID, ew.deps.Editor), ew.image(it.ImageRef))
	} else {
		ew.crop.Refresh()
	}

	ew.shape.SetSelected(string(it.Shape))
	focused := ew.w.Canvas().Focused()
	if focused != ew.width {
		ew.width.SetText(layout.FormatCm(it.WidthCm))
	}
	if focused != ew.height {
		ew.height.SetText(layout.FormatCm(it.HeightCm))
	}
	ew.lock.SetChecked(it.LockAspectRatio)
	if v, err := ew.crop.Editor().SliderValue(); err == nil {
		ew.zoom.SetValue(v)
	}
	ew.rotate.SetValue(min(max(it.Rotation, -180), 180))
	ew.offsetX.SetValue(min(max(it.OffsetX, offsetSliderLo), offsetSliderHi))
	ew.offsetY.SetValue(min(max(it.OffsetY, offsetSliderLo), offsetSliderHi))
}

// image returns the decoded photo for ref. A photo that cannot be decoded
// is shown as a grey placeholder.
func (ew *editorWindow) image(ref string) image.Image {
	if img, ok := ew.images[ref]; ok {
		return img
	}
	img, err := ew.deps.Workspace.Assets.Decode(ref)
	if err != nil {
		ew.l.Warn("decode photo failed", slog.String("ref", ref), slog.Any("err", err))
		img = nil
	} else {
		img = PreviewSource(img)
	}
	ew.images[ref] = img
	return img
}

// centerOnSubject pans the selected photo so its most salient region sits in
// the middle of the frame. The analysis runs off the UI goroutine.
func (ew *editorWindow) centerOnSubject() {
	ed := ew.crop.Editor()
	it, ok := ew.state.Selected()
	if ed == nil || !ok {
		return
	}
	src := ew.image(it.ImageRef)
	if src == nil {
		ew.fail(fmt.Errorf("center on subject: photo %s could not be decoded", it.Name))
		return
	}
	ew.status.SetText("Looking for the subject…")
	go func() {
		ctx, cancel := context.WithTimeout(ew.ctx, 10*time.Second)
		defer cancel()
		x, y, err := SubjectOffset(ctx, src, it)
		fyne.Do(func() {
			if err != nil {
				ew.fail(err)
				return
			}
			if err := ed.SetOffset(x, y); err != nil {
				ew.fail(err)
				return
			}
			ew.status.SetText("Centered on subject")
		})
	}()
}

func (ew *editorWindow) importPhotos() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, ew.w)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		ew.prefs.SetString(prefImportDir, filepath.Dir(path))
		ew.status.SetText("Importing " + filepath.Base(path) + "…")
		go func() {
			res := <-ew.deps.Session.Import(ew.ctx, path)
			fyne.Do(func() {
				if res.Err != nil {
					ew.fail(res.Err)
					dialog.ShowError(res.Err, ew.w)
					return
				}
				ew.status.SetText(fmt.Sprintf("Imported %s (%d×%d px)", res.Item.Name, res.Item.NaturalWidth, res.Item.NaturalHeight))
			})
		}()
	}, ew.w)
	fd.SetFilter(fstorage.NewExtensionFileFilter(imageExtensions))
	if dir := ew.prefs.String(prefImportDir); dir != "" {
		if lister, err := fstorage.ListerForURI(fstorage.NewFileURI(dir)); err == nil {
			fd.SetLocation(lister)
		}
	}
	fd.Show()
}

func (ew *editorWindow) removeSelected() {
	st := ew.deps.Session.State()
	it, ok := st.Selected()
	if !ok {
		return
	}
	dialog.ShowConfirm("Remove photo", fmt.Sprintf("Remove %s from the sheet?", it.Name), func(yes bool) {
		if yes {
			ew.deps.Session.Remove(st.SelectedIndex)
			ew.status.SetText("Removed " + it.Name)
		}
	}, ew.w)
}

// showPrintPreview shows the sheet proof. Print records the job, hands the
// PDF to the host and closes the preview.
func (ew *editorWindow) showPrintPreview() {
	page := ew.deps.Session.Layout()
	proof := canvas.NewImageFromImage(export.RenderProof(page, export.PNGOptions{DPI: previewDPI, CutGuides: true}))
	proof.FillMode = canvas.ImageFillContain
	proof.SetMinSize(fyne.NewSize(420, 594))

	info := widget.NewLabel(fmt.Sprintf("%d photos on an A4 sheet at 100%% scale. Print without scaling.", len(page.Placements)))
	if over := page.Overflowing(); len(over) > 0 {
		info.SetText(fmt.Sprintf("%d of %d photos do not fit on the sheet and will be left out.", len(over), len(page.Placements)))
	}

	var d dialog.Dialog
	printBtn := widget.NewButton("Print", nil)
	printBtn.Importance = widget.HighImportance
	printBtn.OnTapped = func() {
		printBtn.Disable()
		ew.status.SetText("Printing…")
		go func() {
			job, out, err := ew.deps.Session.Print(ew.ctx, func() { fyne.Do(d.Hide) })
			fyne.Do(func() {
				printBtn.Enable()
				if err != nil {
					ew.fail(err)
					dialog.ShowError(err, ew.w)
					return
				}
				msg := "Sheet sent to the printer"
				if out != "" {
					msg = "Sheet written to " + out
				}
				if job.ID != "" {
					msg += fmt.Sprintf(" (job %s)", job.ID[:min(8, len(job.ID))])
				}
				ew.status.SetText(msg)
			})
		}()
	}
	cancel := widget.NewButton("Cancel", func() { d.Hide() })
	content := container.NewBorder(nil, container.NewVBox(info, container.NewHBox(cancel, printBtn)), nil, nil, proof)
	d = dialog.NewCustomWithoutButtons("Print preview", content, ew.w)
	d.Show()
}

func (ew *editorWindow) showHistory() {
	h := ew.deps.History
	if h == nil {
		dialog.ShowInformation("Print history", "No history is configured.", ew.w)
		return
	}
	go func() {
		jobs, err := h.LoadAll(ew.ctx)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, ew.w)
				return
			}
			ew.historyDialog(jobs)
		})
	}()
}

func (ew *editorWindow) historyDialog(jobs []domain.PrintJob) {
	if len(jobs) == 0 {
		dialog.ShowInformation("Print history", "Nothing printed yet.", ew.w)
		return
	}
	selected := -1
	list := widget.NewList(
		func() int { return len(jobs) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			j := jobs[i]
			at := time.UnixMilli(j.Timestamp).Local().Format("2006-01-02 15:04")
			o.(*widget.Label).SetText(fmt.Sprintf("%s  %d photos", at, j.ImagesCount))
		},
	)
	list.OnSelected = func(i widget.ListItemID) { selected = i }

	var d dialog.Dialog
	restore := widget.NewButton("Restore", func() {
		if selected < 0 {
			return
		}
		id := jobs[selected].ID
		go func() {
			found, err := ew.deps.Session.Restore(ew.ctx, id)
			fyne.Do(func() {
				switch {
				case err != nil:
					dialog.ShowError(err, ew.w)
				case !found:
					ew.status.SetText("That print is no longer in the history")
				default:
					d.Hide()
					ew.status.SetText("Restored print from history")
				}
			})
		}()
	})
	del := widget.NewButton("Delete", func() {
		if selected < 0 {
			return
		}
		if err := ew.deps.History.Delete(ew.ctx, jobs[selected].ID); err != nil {
			dialog.ShowError(err, ew.w)
			return
		}
		jobs = append(jobs[:selected:selected], jobs[selected+1:]...)
		selected = -1
		list.UnselectAll()
		list.Refresh()
	})
	clearBtn := widget.NewButton("Clear all", func() {
		dialog.ShowConfirm("Clear history", "Forget all recorded prints?", func(yes bool) {
			if !yes {
				return
			}
			if err := ew.deps.History.Clear(ew.ctx); err != nil {
				dialog.ShowError(err, ew.w)
				return
			}
			d.Hide()
		}, ew.w)
	})
	content := container.NewBorder(nil, container.NewHBox(restore, del, clearBtn), nil, nil, list)
	d = dialog.NewCustom("Print history", "Close", content, ew.w)
	d.Resize(fyne.NewSize(420, 360))
	d.Show()
}

// exportSheet writes the current sheet in format to a file picked by the user.
func (ew *editorWindow) exportSheet(format string) {
	save := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, ew.w)
			return
		}
		if wc == nil {
			return
		}
		path := wc.URI().Path()
		_ = wc.Close()
		page := ew.deps.Session.Layout()
		src := ew.deps.Workspace.Assets
		switch format {
		case export.FormatPDF:
			err = export.ExportPDF(page, src, path, export.PDFOptions{CutGuides: true, Title: "Locket sheet"})
		case export.FormatSVG:
			err = export.ExportSVG(page, src, path, export.SVGOptions{CutGuides: true, Embed: true})
		default:
			err = export.ExportPNG(page, path, export.PNGOptions{CutGuides: true})
		}
		if err != nil {
			ew.fail(err)
			dialog.ShowError(err, ew.w)
			return
		}
		ew.status.SetText("Exported " + path)
	}, ew.w)
	save.SetFileName("locket-sheet." + format)
	save.SetFilter(fstorage.NewExtensionFileFilter([]string{"." + format}))
	save.Show()
}
