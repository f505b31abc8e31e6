//go:build fyne

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

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"nexusmap/internal/drawing"
	"nexusmap/internal/editor"
	"nexusmap/internal/render"
	"nexusmap/internal/vector"
)

// MapCanvas draws the editor scene and feeds it pointer, wheel and key
// input. Positions are passed in canvas units, which the editor treats as
// screen px.
type MapCanvas struct {
	widget.BaseWidget
	ed *editor.Editor

	// OnChange runs after any input that may have changed editor state.
	OnChange func()
}

var (
	_ desktop.Mouseable   = (*MapCanvas)(nil)
	_ desktop.Hoverable   = (*MapCanvas)(nil)
	_ fyne.Draggable      = (*MapCanvas)(nil)
	_ fyne.Scrollable     = (*MapCanvas)(nil)
	_ fyne.DoubleTappable = (*MapCanvas)(nil)
	_ fyne.Focusable      = (*MapCanvas)(nil)
)

func NewMapCanvas(ed *editor.Editor) *MapCanvas {
	m := &MapCanvas{ed: ed}
	m.ExtendBaseWidget(m)
	return m
}

func (m *MapCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(canvas.NewRaster(m.draw))
}

func (m *MapCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

// draw renders at canvas-unit size; the raster scales it to device pixels.
func (m *MapCanvas) draw(_, _ int) image.Image {
	size := m.Size()
	if size.Width < 1 || size.Height < 1 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	m.ed.SetViewportSize(float64(size.Width), float64(size.Height))
	return render.Rasterize(m.ed.Scene(), render.RasterOptions{})
}

func pt(p fyne.Position) vector.Pt { return vector.Pt{X: float64(p.X), Y: float64(p.Y)} }

func (m *MapCanvas) changed() {
	m.Refresh()
	if m.OnChange != nil {
		m.OnChange()
	}
}

func (m *MapCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	m.requestFocus()
	m.ed.PointerDown(pt(e.Position))
	m.changed()
}

func (m *MapCanvas) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	m.ed.PointerUp(pt(e.Position))
	m.changed()
}

func (m *MapCanvas) MouseIn(*desktop.MouseEvent) {}
func (m *MapCanvas) MouseOut()                   {}

// MouseMoved drives the rubber band and the pen preview edge.
func (m *MapCanvas) MouseMoved(e *desktop.MouseEvent) {
	if m.ed.Tool() == drawing.ToolSelect {
		return
	}
	m.ed.PointerMove(pt(e.Position))
	m.Refresh()
}

func (m *MapCanvas) Dragged(e *fyne.DragEvent) {
	m.ed.PointerMove(pt(e.Position))
	m.Refresh()
}

func (m *MapCanvas) DragEnd() {}

func (m *MapCanvas) DoubleTapped(e *fyne.PointEvent) {
	m.ed.DoubleClick(pt(e.Position))
	m.changed()
}

func (m *MapCanvas) Scrolled(e *fyne.ScrollEvent) {
	m.ed.Wheel(wheelStep(e.Scrolled.DY))
	m.Refresh()
}

func (m *MapCanvas) FocusGained()   {}
func (m *MapCanvas) FocusLost()     {}
func (m *MapCanvas) TypedRune(rune) {}
func (m *MapCanvas) TypedKey(e *fyne.KeyEvent) {
	var k drawing.Key
	switch e.Name {
	case fyne.KeyEscape:
		k = drawing.KeyEscape
	case fyne.KeyReturn, fyne.KeyEnter:
		k = drawing.KeyEnter
	case fyne.KeyBackspace:
		k = drawing.KeyBackspace
	default:
		return
	}
	if m.ed.Key(k) {
		m.changed()
	}
}

func (m *MapCanvas) requestFocus() {
	app := fyne.CurrentApp()
	if app == nil {
		return
	}
	if c := app.Driver().CanvasForObject(m); c != nil {
		c.Focus(m)
	}
}
