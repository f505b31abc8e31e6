//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests are gated behind the "fyne" build tag so headless CI does not
// need Fyne or a display. To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	"nexusmap/internal/editor"
	"nexusmap/internal/store"
	"nexusmap/internal/viewport"
)

func newCanvas(t *testing.T) (*MapCanvas, *editor.Editor) {
	t.Helper()
	test.NewTempApp(t)
	ed := editor.New(store.NewDemo(), editor.Options{})
	if err := ed.Open(context.Background(), domain.DemoLayoutID); err != nil {
		t.Fatalf("open: %v", err)
	}
	ed.Viewport().Set(viewport.Home)
	m := NewMapCanvas(ed)
	m.Resize(fyne.NewSize(1200, 800))
	return m, ed
}

func click(m *MapCanvas, x, y float32) {
	ev := &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: desktop.MouseButtonPrimary}
	m.MouseDown(ev)
	m.MouseUp(ev)
}

func TestMapCanvasClickSelects(t *testing.T) {
	m, ed := newCanvas(t)
	changes := 0
	m.OnChange = func() { changes++ }
	click(m, 200, 200)
	if ed.SelectedID() != "A-1" {
		t.Fatalf("selected = %q", ed.SelectedID())
	}
	click(m, 1150, 750)
	if ed.SelectedID() != "" || changes != 4 {
		t.Fatalf("selected = %q changes = %d", ed.SelectedID(), changes)
	}
}

func TestMapCanvasDrawSize(t *testing.T) {
	m, _ := newCanvas(t)
	img := m.draw(2400, 1600)
	if b := img.Bounds(); b.Dx() != 1200 || b.Dy() != 800 {
		t.Fatalf("bounds = %v", b)
	}
}

func TestMapCanvasKeys(t *testing.T) {
	m, ed := newCanvas(t)
	if err := ed.SetMode(editor.ModeEdit); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetTool(drawing.ToolPolygon); err != nil {
		t.Fatal(err)
	}
	m.TypedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	if ed.Tool() != drawing.ToolSelect || ed.State() != editor.Viewing {
		t.Fatalf("escape left tool %v state %v", ed.Tool(), ed.State())
	}
}
