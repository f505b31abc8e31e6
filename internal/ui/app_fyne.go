//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/shopspring/decimal"

	"nexusmap/internal/crash"
	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	"nexusmap/internal/editor"
	applog "nexusmap/internal/log"
	"nexusmap/internal/reconcile"
	"nexusmap/internal/version"
)

// Run opens the layout in a desktop window and blocks until it is closed.
func Run(opts Options) error {
	if opts.Store == nil {
		return errors.New("ui: no store")
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("layout", opts.LayoutID))

	ed := editor.New(opts.Store, opts.Editor)
	defer crash.Recover(&crash.Session{Dir: opts.CrashDir, Snapshot: ed.Layout})

	ctx := context.Background()
	if err := ed.Open(ctx, opts.LayoutID); err != nil {
		return fmt.Errorf("open layout %s: %w", opts.LayoutID, err)
	}
	lay, _ := ed.Layout()

	fyneApp := app.NewWithID("io.nexusmap.editor")
	w := fyneApp.NewWindow(fmt.Sprintf("NexusMap %s - %s", version.String(), lay.Name))
	w.Resize(fyne.NewSize(1280, 800))

	h := &host{opts: opts, ed: ed, w: w, log: l, ctx: ctx}
	h.build()
	w.ShowAndRun()
	return nil
}

// host owns the widgets around the map canvas.
type host struct {
	opts Options
	ed   *editor.Editor
	w    fyne.Window
	log  *slog.Logger
	ctx  context.Context

	canvas    *MapCanvas
	inspector *fyne.Container
	status    *widget.Label
	stats     *widget.Label
	editCheck *widget.Check
	resolving bool
}

func (h *host) build() {
	h.canvas = NewMapCanvas(h.ed)
	h.canvas.OnChange = h.sync
	h.inspector = container.NewVBox()
	h.status = widget.NewLabel("")
	h.stats = widget.NewLabel("")

	tool := func(t drawing.Tool) func() {
		return func() {
			if err := h.ed.SetTool(t); err != nil {
				dialog.ShowError(err, h.w)
			}
			h.sync()
		}
	}
	h.editCheck = widget.NewCheck("Edit", func(on bool) {
		mode := editor.ModeView
		if on {
			mode = editor.ModeEdit
		}
		if err := h.ed.SetMode(mode); err != nil {
			dialog.ShowError(err, h.w)
			h.editCheck.SetChecked(false)
		}
		h.sync()
	})
	if h.opts.Editor.Session.ReadOnly {
		h.editCheck.Disable()
	}
	price := widget.NewCheck("Prices", func(on bool) {
		h.ed.SetShowPrice(on)
		h.canvas.Refresh()
	})
	toolbar := container.NewHBox(
		h.editCheck,
		widget.NewButton("Select", tool(drawing.ToolSelect)),
		widget.NewButton("Box", tool(drawing.ToolBox)),
		widget.NewButton("Pen", tool(drawing.ToolPolygon)),
		widget.NewSeparator(),
		widget.NewButton("Undo", h.undo),
		widget.NewButton("Redo", func() { h.report(h.ed.Redo(h.ctx)) }),
		widget.NewSeparator(),
		price,
		widget.NewButton("Focus", func() {
			h.ed.FocusSelected()
			h.canvas.Refresh()
		}),
		widget.NewButton("Share", h.share),
	)

	side := container.NewBorder(widget.NewLabelWithStyle("Inspector", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		h.stats, nil, nil, container.NewVScroll(h.inspector))
	split := container.NewHSplit(h.canvas, side)
	split.SetOffset(0.75)
	h.w.SetContent(container.NewBorder(toolbar, h.status, nil, nil, split))

	h.w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		if h.ed.Key(drawing.KeyUndo) {
			h.sync()
			return
		}
		h.undo()
	})
	h.sync()
}

func (h *host) undo() { h.report(h.ed.Undo(h.ctx)) }

// report shows err, if any, and refreshes everything.
func (h *host) report(err error) {
	if err != nil && !errors.Is(err, editor.ErrNothingToUndo) && !errors.Is(err, editor.ErrNothingToRedo) {
		dialog.ShowError(err, h.w)
	}
	h.sync()
}

// sync mirrors editor state into the side panel and status bar.
func (h *host) sync() {
	h.canvas.Refresh()
	h.rebuildInspector()
	st := h.ed.Stats()
	h.stats.SetText(fmt.Sprintf("%d plots: %d open, %d booked, %d sold, %d unassigned", st.Plots, st.Open, st.Booked, st.Sold, st.Unassigned))
	if err := h.ed.LastError(); err != nil {
		h.status.SetText("Error: " + err.Error())
	} else {
		h.status.SetText(fmt.Sprintf("%s mode, %s tool, %.0f%%", h.ed.Mode(), h.ed.Tool(), h.ed.Viewport().Scale()*100))
	}
	if h.ed.State() == editor.Committing && !h.resolving {
		h.showResolve()
	}
}

func (h *host) rebuildInspector() {
	h.inspector.RemoveAll()
	fields := h.ed.Fields()
	if len(fields) == 0 {
		h.inspector.Add(widget.NewLabel("Click an element to inspect it."))
		h.inspector.Refresh()
		return
	}
	editable := h.ed.Mode() == editor.ModeEdit
	form := widget.NewForm()
	for _, f := range fields {
		form.Append(f.Label, h.fieldWidget(f, editable))
	}
	h.inspector.Add(form)
	if editable {
		id := h.ed.SelectedID()
		h.inspector.Add(widget.NewButton("Delete "+id, func() {
			dialog.ShowConfirm("Delete", "Delete "+id+"?", func(ok bool) {
				h.report(h.ed.Delete(h.ctx, id, ok))
			}, h.w)
		}))
		if el, ok := h.ed.Selected(); ok && el.IsPlot() {
			h.inspector.Add(widget.NewButton("Add installment", h.addInstallment))
		}
	}
	h.inspector.Refresh()
}

func (h *host) fieldWidget(f editor.Field, editable bool) fyne.CanvasObject {
	if !editable || !f.Editable() {
		return widget.NewLabel(f.Value)
	}
	commit := func(v string) {
		if v == f.Value {
			return
		}
		h.report(h.ed.CommitField(h.ctx, f.Name, v))
	}
	if f.Kind == editor.KindEnum {
		sel := widget.NewSelect(f.Options, nil)
		sel.SetSelected(f.Value)
		sel.OnChanged = commit
		return sel
	}
	e := widget.NewEntry()
	e.SetText(f.Value)
	e.OnSubmitted = commit
	return e
}

func (h *host) addInstallment() {
	amount := widget.NewEntry()
	date := widget.NewEntry()
	date.SetPlaceHolder("2006-01-02")
	ref := widget.NewEntry()
	items := []*widget.FormItem{
		widget.NewFormItem("Amount", amount),
		widget.NewFormItem("Date", date),
		widget.NewFormItem("Reference", ref),
	}
	dialog.ShowForm("Add installment", "Add", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(amount.Text), ",", ""))
		if err != nil {
			dialog.ShowError(fmt.Errorf("amount: %w", err), h.w)
			return
		}
		h.report(h.ed.AddInstallment(h.ctx, domain.Installment{Amount: d, Date: strings.TrimSpace(date.Text), Reference: ref.Text}))
	}, h.w)
}

// showResolve asks what the committed shape is.
func (h *host) showResolve() {
	p, ok := h.ed.PendingShape()
	if !ok {
		return
	}
	h.resolving = true

	const (
		optNew    = "New plot"
		optAttach = "Existing plot"
		optInfra  = "Road / park / amenity"
	)
	var candidates []string
	for _, c := range p.Candidates {
		candidates = append(candidates, c.ID)
	}
	plotID := widget.NewEntry()
	size := widget.NewEntry()
	facing := widget.NewSelect([]string{"N", "S", "E", "W", "NE", "NW", "SE", "SW"}, nil)
	attach := widget.NewSelect(candidates, nil)
	name := widget.NewEntry()
	category := widget.NewSelect([]string{string(domain.CategoryRoad), string(domain.CategoryPark), string(domain.CategoryAmenity)}, nil)
	category.SetSelected(string(domain.CategoryRoad))

	kind := widget.NewRadioGroup([]string{optNew, optAttach, optInfra}, nil)
	kind.SetSelected(optNew)
	if len(candidates) == 0 {
		attach.Disable()
	}
	content := container.NewVBox(
		widget.NewLabel(fmt.Sprintf("Area: %.0f", p.Shape.Area)),
		kind,
		widget.NewForm(
			widget.NewFormItem("Plot ID", plotID),
			widget.NewFormItem("Size", size),
			widget.NewFormItem("Facing", facing),
			widget.NewFormItem("Attach to", attach),
			widget.NewFormItem("Name", name),
			widget.NewFormItem("Category", category),
		),
	)
	dialog.ShowCustomConfirm("Save shape", "Save", "Discard", content, func(save bool) {
		h.resolving = false
		if !save {
			h.ed.DiscardPending()
			h.sync()
			return
		}
		var err error
		switch kind.Selected {
		case optAttach:
			err = h.ed.ResolveAttach(h.ctx, attach.Selected)
		case optInfra:
			err = h.ed.ResolveCreateInfra(h.ctx, reconcile.InfraInput{Name: name.Text, Category: domain.Category(category.Selected)})
		default:
			err = h.ed.ResolveCreatePlot(h.ctx, reconcile.PlotInput{ID: plotID.Text, Size: size.Text, Facing: domain.Facing(facing.Selected)})
		}
		if err != nil {
			// the shape is still pending; ask again once the error is read
			d := dialog.NewError(err, h.w)
			d.SetOnClosed(func() {
				h.ed.ClearError()
				h.showResolve()
			})
			d.Show()
			return
		}
		h.sync()
	}, h.w)
}

func (h *host) share() {
	link, ok := h.ed.ShareLink(true)
	if !ok {
		return
	}
	if h.opts.ShareKey != "" {
		link = link.Sign(h.opts.ShareKey)
	}
	s := link.URL(h.opts.ShareBaseURL)
	h.w.Clipboard().SetContent(s)
	dialog.ShowInformation("Share link copied", s, h.w)
}
