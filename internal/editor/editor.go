/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor binds the map canvas to a layout: it routes pointer input
// to the viewport or the drawing machine, keeps the selection and the
// inspector in sync, and resolves committed shapes into inventory through
// the reconciler. The editor holds only the last store snapshot and
// re-reads it after every write.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nexusmap/internal/config"
	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	"nexusmap/internal/history"
	applog "nexusmap/internal/log"
	"nexusmap/internal/reconcile"
	"nexusmap/internal/render"
	"nexusmap/internal/store"
	"nexusmap/internal/vector"
	"nexusmap/internal/viewport"
)

var (
	ErrNotConfirmed  = errors.New("delete requires confirmation")
	ErrReadOnly      = errors.New("session is read-only")
	ErrNoLayout      = errors.New("no layout open")
	ErrNoSelection   = errors.New("nothing selected")
	ErrNoPending     = errors.New("no shape waiting to be saved")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Mode is view or edit.
type Mode int

const (
	ModeView Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "view"
}

// State is the editor's interaction state.
type State int

const (
	Viewing State = iota
	EditingField
	Drawing
	Committing
)

func (s State) String() string {
	return [...]string{"viewing", "editing-field", "drawing", "committing"}[s]
}

// SessionConfig is fixed for the lifetime of an editor.
type SessionConfig struct {
	DataMode string // "live" or "demo"
	ReadOnly bool
}

// Events receives usage events; telemetry.Client implements it.
type Events interface {
	Event(name string, props map[string]any)
}

// Options configure New. Zero values fall back to defaults.
type Options struct {
	Session  SessionConfig
	Editor   config.EditorConfig
	Retries  int
	History  *history.Manager
	Viewport *viewport.Controller // shared with sibling views when set
	Events   Events
}

// Pending is a committed shape waiting for the user to decide what it is.
type Pending struct {
	Shape      drawing.Shape
	Candidates []domain.Element // unassigned plots at commit time
}

// Editor is not safe for concurrent use; drive it from one event loop.
type Editor struct {
	store   store.DocumentStore
	rec     *reconcile.Reconciler
	hist    *history.Manager
	view    *viewport.Controller
	machine *drawing.Machine
	events  Events
	session SessionConfig
	cfg     config.EditorConfig
	log     *slog.Logger

	layout   domain.Layout
	open     bool
	mode     Mode
	state    State
	selected string
	field    string
	pending  *Pending
	lastErr  error

	showPrice bool
	size      vector.Size

	dragging bool
	dragLast vector.Pt
}

// New returns an editor in view mode with no layout open.
func New(s store.DocumentStore, opts Options) *Editor {
	cfg := opts.Editor
	def := config.Defaults().Editor
	if cfg.MinScale <= 0 || cfg.MaxScale < cfg.MinScale {
		cfg.MinScale, cfg.MaxScale = def.MinScale, def.MaxScale
	}
	if cfg.WheelFactor <= 0 {
		cfg.WheelFactor = def.WheelFactor
	}
	if cfg.MinBoxPx <= 0 {
		cfg.MinBoxPx = def.MinBoxPx
	}
	if cfg.LabelScale <= 0 {
		cfg.LabelScale = def.LabelScale
	}
	if cfg.UnitsPerFoot <= 0 {
		cfg.UnitsPerFoot = def.UnitsPerFoot
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}
	if cfg.FocusScale <= 0 {
		cfg.FocusScale = def.FocusScale
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = reconcile.DefaultRetries
	}
	hist := opts.History
	if hist == nil {
		hist = history.NewManager(history.Config{})
	}
	view := opts.Viewport
	if view == nil {
		view = viewport.New(viewport.Limits{MinScale: cfg.MinScale, MaxScale: cfg.MaxScale, WheelFactor: cfg.WheelFactor})
	}
	e := &Editor{
		store:   s,
		rec:     reconcile.New(s, reconcile.WithRetries(retries)),
		hist:    hist,
		view:    view,
		machine: drawing.New(drawing.Options{MinBoxPx: cfg.MinBoxPx}),
		events:  opts.Events,
		session: opts.Session,
		cfg:     cfg,
		log:     applog.WithComponent("editor"),
		size:    vector.Size{W: float64(cfg.ViewportWidth), H: float64(cfg.ViewportHeight)},
	}
	e.machine.OnCommit = e.onCommit
	e.machine.SetMinBox(cfg.MinBoxPx / e.view.Scale())
	e.view.Subscribe(func(s viewport.State) {
		e.machine.SetMinBox(e.cfg.MinBoxPx / s.Scale)
		e.updateSnap()
	})
	return e
}

func (e *Editor) Session() SessionConfig            { return e.session }
func (e *Editor) Mode() Mode                        { return e.mode }
func (e *Editor) State() State                      { return e.state }
func (e *Editor) Tool() drawing.Tool                { return e.machine.Tool() }
func (e *Editor) Viewport() *viewport.Controller    { return e.view }
func (e *Editor) Reconciler() *reconcile.Reconciler { return e.rec }

// LastError is the most recent failure, shown to the user until cleared.
func (e *Editor) LastError() error { return e.lastErr }
func (e *Editor) ClearError()      { e.lastErr = nil }

// Layout returns a copy of the current snapshot.
func (e *Editor) Layout() (domain.Layout, bool) {
	if !e.open {
		return domain.Layout{}, false
	}
	return e.layout.Clone(), true
}

// Open loads a layout, clears selection and any drawing, and frames the
// blueprint in the viewport.
func (e *Editor) Open(ctx context.Context, layoutID string) error {
	l, err := e.store.ReadLayout(ctx, layoutID)
	if err != nil {
		return e.fail("open", err)
	}
	e.layout, e.open = l, true
	e.selected, e.field, e.pending = "", "", nil
	e.machine.Cancel()
	e.state = Viewing
	sz := l.ImageSize()
	e.view.Fit(vector.R(0, 0, sz.W, sz.H), e.size.W, e.size.H, 20)
	e.updateSnap()
	e.log.Debug("layout opened", slog.String("layout", l.ID), slog.Int64("version", l.Version))
	return nil
}

// Refresh re-reads the snapshot. A selection that no longer exists is dropped.
func (e *Editor) Refresh(ctx context.Context) error {
	if !e.open {
		return ErrNoLayout
	}
	l, err := e.store.ReadLayout(ctx, e.layout.ID)
	if err != nil {
		return e.fail("refresh", err)
	}
	e.layout = l
	if e.selected != "" && l.Index(e.selected) < 0 {
		e.selected, e.field = "", ""
		if e.state == EditingField {
			e.state = Viewing
		}
	}
	e.updateSnap()
	return nil
}

// fail records err as LastError, logs it and returns to viewing.
func (e *Editor) fail(op string, err error) error {
	e.lastErr = err
	e.state = Viewing
	e.field = ""
	e.log.Error("operation failed", slog.String("op", op), slog.String("layout", e.layout.ID), slog.Any("err", err))
	return err
}

// SetMode switches between view and edit. Edit is refused for read-only
// sessions. Leaving edit mode cancels drawing and field editing.
func (e *Editor) SetMode(m Mode) error {
	if m == ModeEdit && e.session.ReadOnly {
		e.lastErr = ErrReadOnly
		return ErrReadOnly
	}
	e.mode = m
	e.machine.SetEditable(m == ModeEdit)
	if m == ModeView {
		e.field = ""
		e.state = Viewing
	}
	return nil
}

// SetTool changes the drawing tool. Drawing tools need edit mode. Starting
// a new drawing drops any unresolved shape.
func (e *Editor) SetTool(t drawing.Tool) error {
	if t != drawing.ToolSelect && e.mode != ModeEdit {
		return ErrReadOnly
	}
	if !e.machine.SetTool(t) {
		return ErrReadOnly
	}
	e.field = ""
	if t == drawing.ToolSelect {
		if e.state == Drawing {
			e.state = Viewing
		}
		return nil
	}
	e.pending = nil
	e.selected = ""
	e.state = Drawing
	return nil
}

// SetViewportSize records the canvas size in screen px.
func (e *Editor) SetViewportSize(w, h float64) {
	if w > 0 && h > 0 {
		e.size = vector.Size{W: w, H: h}
	}
}

// SetShowPrice toggles price labels.
func (e *Editor) SetShowPrice(on bool) { e.showPrice = on }

// Select sets the selection. It only applies with the select tool; "" clears.
// Unknown ids are ignored.
func (e *Editor) Select(id string) bool {
	if e.machine.Tool() != drawing.ToolSelect {
		return false
	}
	if id != "" && e.layout.Index(id) < 0 {
		return false
	}
	if id != e.selected {
		e.field = ""
		if e.state == EditingField {
			e.state = Viewing
		}
	}
	e.selected = id
	return true
}

// SelectedID returns the selected element id or "".
func (e *Editor) SelectedID() string { return e.selected }

// Selected returns a copy of the selected element.
func (e *Editor) Selected() (domain.Element, bool) {
	if e.selected == "" {
		return domain.Element{}, false
	}
	return e.layout.Element(e.selected)
}

// FocusSelected centers the selected element at the configured focus scale.
func (e *Editor) FocusSelected() bool {
	el, ok := e.Selected()
	if !ok {
		return false
	}
	poly, ok := el.Points.Polygon()
	if !ok {
		return false
	}
	e.view.FocusOnPolygon(poly, e.cfg.FocusScale, e.size.W, e.size.H)
	return true
}

// Scene renders the current frame.
func (e *Editor) Scene() render.Scene {
	opts := render.DefaultOptions()
	opts.LabelScale = e.cfg.LabelScale
	opts.UnitsPerFoot = e.cfg.UnitsPerFoot
	return render.Render(render.Input{
		Layout:     e.layout,
		View:       e.view.State(),
		Size:       e.size,
		SelectedID: e.selected,
		Preview:    e.machine.Preview(),
		ShowPrice:  e.showPrice,
		Options:    opts,
	})
}

// PointerDown takes a screen position. With the select tool a press on an
// element selects it and a press on empty canvas clears the selection and
// starts a pan.
func (e *Editor) PointerDown(p vector.Pt) {
	if e.machine.Tool() == drawing.ToolSelect {
		if id, ok := render.HitTest(e.Scene(), p); ok {
			e.Select(id)
			return
		}
		e.Select("")
		e.dragging, e.dragLast = true, p
		return
	}
	e.machine.PointerDown(e.view.ScreenToModel(p))
}

func (e *Editor) PointerMove(p vector.Pt) {
	if e.dragging {
		e.view.OnPointerDragDelta(p.X-e.dragLast.X, p.Y-e.dragLast.Y)
		e.dragLast = p
		return
	}
	e.machine.PointerMove(e.view.ScreenToModel(p))
}

func (e *Editor) PointerUp(p vector.Pt) {
	if e.dragging {
		e.dragging = false
		return
	}
	e.machine.PointerUp(e.view.ScreenToModel(p))
	e.syncDrawing()
}

func (e *Editor) DoubleClick(p vector.Pt) {
	e.machine.DoubleClick(e.view.ScreenToModel(p))
	e.syncDrawing()
}

// syncDrawing leaves the drawing state once the machine dropped back to
// the select tool without a commit.
func (e *Editor) syncDrawing() {
	if e.state == Drawing && e.machine.Tool() == drawing.ToolSelect {
		e.state = Viewing
	}
}

// Wheel zooms the viewport.
func (e *Editor) Wheel(deltaY float64) { e.view.OnWheel(deltaY) }

// Key forwards a shortcut to the drawing machine. Escape with nothing to
// cancel clears the selection.
func (e *Editor) Key(k drawing.Key) bool {
	if e.machine.Key(k) {
		e.syncDrawing()
		return true
	}
	if k == drawing.KeyEscape && e.selected != "" {
		e.Select("")
		return true
	}
	return false
}

// CancelDrawing discards the in-progress shape.
func (e *Editor) CancelDrawing() {
	e.machine.Cancel()
	e.syncDrawing()
}

func (e *Editor) onCommit(s drawing.Shape) {
	e.pending = &Pending{Shape: s, Candidates: e.layout.UnassignedPlots()}
	e.state = Committing
	e.log.Debug("shape committed", slog.String("tool", s.Tool.String()), slog.Float64("area", s.Area))
}

// updateSnap rebuilds the vertex index; the threshold is a fixed number of
// screen px, so it shrinks in model space as the user zooms in.
func (e *Editor) updateSnap() {
	if e.cfg.SnapPx <= 0 || !e.open {
		e.machine.SetSnap(nil, vector.SnapOptions{})
		return
	}
	var polys []vector.Polygon
	for _, el := range e.layout.Elements {
		if p, ok := el.Points.Polygon(); ok {
			polys = append(polys, p)
		}
	}
	e.machine.SetSnap(vector.NewVertexIndex(polys...), vector.SnapOptions{
		Threshold: e.cfg.SnapPx / e.view.Scale(),
		Enabled:   true,
	})
}

// Stats summarises the open layout.
func (e *Editor) Stats() domain.Stats { return e.layout.ComputeStats() }

func (e *Editor) emit(name string, props map[string]any) {
	if e.events != nil {
		e.events.Event(name, props)
	}
}

func (e *Editor) requireEdit() error {
	if !e.open {
		return ErrNoLayout
	}
	if e.session.ReadOnly || e.mode != ModeEdit {
		return ErrReadOnly
	}
	return nil
}

// record pushes a committed mutation onto the undo stack and re-reads the
// snapshot.
func (e *Editor) record(ctx context.Context, op string, res reconcile.Result) {
	e.hist.Push(history.Entry{LayoutID: res.LayoutID, ElementID: res.ID, Op: op, Before: res.Before, After: res.After})
	e.lastErr = nil
	if err := e.Refresh(ctx); err != nil {
		e.log.Warn("refresh after write failed", slog.Any("err", err))
	}
}

// Undo reverts the newest committed mutation of the open layout.
func (e *Editor) Undo(ctx context.Context) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	entry, ok := e.hist.Undo(e.layout.ID)
	if !ok {
		return ErrNothingToUndo
	}
	if _, err := e.rec.Restore(ctx, entry.LayoutID, entry.Before, entry.ElementID); err != nil {
		e.hist.Requeue(entry)
		return e.fail("undo", fmt.Errorf("undo %s %s: %w", entry.Op, entry.ElementID, err))
	}
	e.emit("undo", map[string]any{"op": entry.Op})
	e.lastErr = nil
	return e.Refresh(ctx)
}

// Redo re-applies the newest undone mutation.
func (e *Editor) Redo(ctx context.Context) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	entry, ok := e.hist.Redo(e.layout.ID)
	if !ok {
		return ErrNothingToRedo
	}
	if _, err := e.rec.Restore(ctx, entry.LayoutID, entry.After, entry.ElementID); err != nil {
		// back onto the redo stack
		e.hist.Undo(e.layout.ID)
		return e.fail("redo", fmt.Errorf("redo %s %s: %w", entry.Op, entry.ElementID, err))
	}
	e.lastErr = nil
	return e.Refresh(ctx)
}

// CanUndo reports whether Undo has anything to revert.
func (e *Editor) CanUndo() bool { return e.open && e.hist.CanUndo(e.layout.ID) }
