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
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"locketprint/internal/editor"
)

// hudHeight is the strip above the preview that holds the size and zoom read-outs.
const hudHeight = 28

// CropCanvas shows the selected photo inside its frame and turns pointer
// input into editor operations: drag pans, the wheel zooms.
type CropCanvas struct {
	widget.BaseWidget

	ed  *editor.Editor
	src image.Image

	// OnError receives failures from the editor, e.g. a photo removed mid-drag.
	OnError func(error)
}

var (
	_ fyne.Draggable    = (*CropCanvas)(nil)
	_ fyne.Scrollable   = (*CropCanvas)(nil)
	_ desktop.Hoverable = (*CropCanvas)(nil)
)

func NewCropCanvas() *CropCanvas {
	c := &CropCanvas{}
	c.ExtendBaseWidget(c)
	return c
}

// SetEditor switches to another photo. ed may be nil to show the empty state.
func (c *CropCanvas) SetEditor(ed *editor.Editor, src image.Image) {
	if c.ed != nil {
		c.ed.Release()
	}
	c.ed, c.src = ed, src
	c.Refresh()
}

func (c *CropCanvas) Editor() *editor.Editor { return c.ed }

func (c *CropCanvas) report(err error) {
	if err != nil && c.OnError != nil {
		c.OnError(err)
	}
}

// boxOrigin is the top-left of the display box inside the widget.
func (c *CropCanvas) boxOrigin(box fyne.Size) fyne.Position {
	sz := c.Size()
	return fyne.NewPos((sz.Width-box.Width)/2, hudHeight+(sz.Height-hudHeight-box.Height)/2)
}

func (c *CropCanvas) Dragged(e *fyne.DragEvent) {
	if c.ed == nil {
		return
	}
	if !c.ed.Dragging() {
		start := e.Position.Subtract(e.Dragged)
		c.ed.Press(float64(start.X), float64(start.Y))
	}
	_, err := c.ed.Move(float64(e.Position.X), float64(e.Position.Y))
	c.report(err)
}

func (c *CropCanvas) DragEnd() {
	if c.ed != nil {
		c.ed.Release()
	}
}

// Scrolled zooms one wheel step. Fyne reports wheel-up as positive DY.
func (c *CropCanvas) Scrolled(e *fyne.ScrollEvent) {
	if c.ed == nil {
		return
	}
	_, err := c.ed.Wheel(float64(-e.Scrolled.DY))
	c.report(err)
}

func (c *CropCanvas) MouseIn(*desktop.MouseEvent)    {}
func (c *CropCanvas) MouseMoved(*desktop.MouseEvent) {}

// MouseOut ends a drag that leaves the widget.
func (c *CropCanvas) MouseOut() {
	if c.ed != nil {
		c.ed.Leave()
	}
}

func (c *CropCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	size := canvas.NewText("", color.White)
	size.TextStyle = fyne.TextStyle{Bold: true}
	scale := canvas.NewText("", color.RGBA{R: 0, G: 170, B: 255, A: 255})
	scale.Alignment = fyne.TextAlignTrailing
	empty := canvas.NewText("Import a photo to start cropping", color.Gray{Y: 160})
	empty.Alignment = fyne.TextAlignCenter
	return &cropCanvasRenderer{
		c: c, bg: bg, img: img, size: size, scale: scale, empty: empty,
		objects: []fyne.CanvasObject{bg, img, size, scale, empty},
	}
}

type cropCanvasRenderer struct {
	c           *CropCanvas
	objects     []fyne.CanvasObject
	bg          *canvas.Rectangle
	img         *canvas.Image
	size, scale *canvas.Text
	empty       *canvas.Text
	box         fyne.Size
}

func (r *cropCanvasRenderer) Destroy()                     {}
func (r *cropCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *cropCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(480, 480+hudHeight) }

func (r *cropCanvasRenderer) Refresh() {
	r.update()
	r.Layout(r.c.Size())
	canvas.Refresh(r.c)
}

// update recomposes the preview from the editor's current photo.
func (r *cropCanvasRenderer) update() {
	ed := r.c.ed
	if ed == nil {
		r.showEmpty()
		return
	}
	p, err := ed.Preview()
	if err != nil {
		r.c.report(err)
		r.showEmpty()
		return
	}
	hud, _ := ed.HUD()
	r.img.Image = Compose(r.c.src, p)
	r.img.Refresh()
	r.box = fyne.NewSize(float32(p.Box.W), float32(p.Box.H))
	r.size.Text, r.scale.Text = hud.Size, hud.Scale
	r.img.Show()
	r.size.Show()
	r.scale.Show()
	r.empty.Hide()
}

func (r *cropCanvasRenderer) showEmpty() {
	r.img.Hide()
	r.size.Hide()
	r.scale.Hide()
	r.empty.Show()
	r.box = fyne.Size{}
}

func (r *cropCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	r.empty.Resize(fyne.NewSize(size.Width, hudHeight))
	r.empty.Move(fyne.NewPos(0, (size.Height-hudHeight)/2))

	origin := r.c.boxOrigin(r.box)
	r.img.Resize(r.box)
	r.img.Move(origin)
	r.size.Move(fyne.NewPos(origin.X, origin.Y-hudHeight+4))
	r.scale.Resize(fyne.NewSize(r.box.Width, hudHeight-8))
	r.scale.Move(fyne.NewPos(origin.X, origin.Y-hudHeight+4))
}
