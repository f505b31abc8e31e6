/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"nexusmap/internal/config"
	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	"nexusmap/internal/editor"
	"nexusmap/internal/reconcile"
	"nexusmap/internal/render"
	"nexusmap/internal/server"
	"nexusmap/internal/store"
	"nexusmap/internal/telemetry"
	"nexusmap/internal/ui"
	"nexusmap/internal/vector"
	"nexusmap/internal/viewport"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"init":       cmdInit,
	"list":       cmdList,
	"open":       cmdOpen,
	"elements":   cmdElements,
	"unassigned": cmdUnassigned,
	"pregen":     cmdPregen,
	"draw-box":   cmdDrawBox,
	"draw-poly":  cmdDrawPoly,
	"attach":     cmdAttach,
	"infra":      cmdInfra,
	"set":        cmdSet,
	"delete":     cmdDelete,
	"render":     cmdRender,
	"share":      cmdShare,
	"serve":      cmdServe,
	"remote":     cmdRemote,
	"ui":         cmdUI,
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, want int, what string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError(fmt.Sprintf("%s: %v", fs.Name(), err))
	}
	if fs.NArg() < want {
		return nil, usageError(fmt.Sprintf("%s requires %s", fs.Name(), what))
	}
	return fs.Args(), nil
}

func (a *app) reconciler() *reconcile.Reconciler {
	return reconcile.New(a.store, reconcile.WithRetries(a.cfg.Store.MaxRetries))
}

// editorFor opens layoutID in an editor whose screen space equals model
// space, so command-line coordinates can be fed in as pointer positions.
func (a *app) editorFor(ctx context.Context, layoutID string) (*editor.Editor, error) {
	ed := editor.New(a.store, a.editorOptions())
	a.ed = ed
	if err := ed.Open(ctx, layoutID); err != nil {
		return nil, err
	}
	ed.Viewport().Set(viewport.Home)
	return ed, nil
}

func (a *app) editorOptions() editor.Options {
	return editor.Options{
		Session: editor.SessionConfig{DataMode: a.cfg.General.DataMode, ReadOnly: a.cfg.General.ReadOnly},
		Editor:  a.cfg.Editor,
		Retries: a.cfg.Store.MaxRetries,
		Events:  telemetry.Default(),
	}
}

func cmdInit(ctx context.Context, a *app, args []string) error {
	fs := newFlags("init")
	image := fs.String("image", "", "blueprint size as WxH")
	from := fs.String("from", "", "import a layout JSON document, e.g. a crash autosave")
	rest, err := parse(fs, args, 0, "<id>")
	if err != nil {
		return err
	}
	var l domain.Layout
	if *from != "" {
		data, err := os.ReadFile(*from)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("parse %s: %w", *from, err)
		}
	} else if len(rest) == 0 {
		return usageError("init requires <id>")
	}
	if len(rest) > 0 {
		l.ID = rest[0]
	}
	if len(rest) > 1 {
		l.Name = strings.Join(rest[1:], " ")
	}
	if l.Name == "" {
		l.Name = l.ID
	}
	if *image != "" {
		ws, hs, ok := strings.Cut(strings.ToLower(*image), "x")
		w, werr := strconv.Atoi(ws)
		h, herr := strconv.Atoi(hs)
		if !ok || werr != nil || herr != nil || w <= 0 || h <= 0 {
			return usageError(fmt.Sprintf("init: bad --image %q, want WxH", *image))
		}
		l.ImageWidth, l.ImageHeight = w, h
	}
	created, err := a.store.CreateLayout(ctx, l)
	if err != nil {
		return err
	}
	a.log.Info("layout created", slog.String("layout", created.ID), slog.Int("elements", len(created.Elements)))
	fmt.Fprintf(a.out, "Created layout %s (%d elements, version %d)\n", created.ID, len(created.Elements), created.Version)
	return nil
}

func cmdList(ctx context.Context, a *app, _ []string) error {
	list, err := a.store.ListLayouts(ctx)
	if err != nil {
		return err
	}
	printSummaries(a.out, list)
	return nil
}

func printSummaries(out io.Writer, list []domain.Summary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tELEMENTS\tVERSION\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.ID, s.Name, s.Elements, s.Version, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func cmdOpen(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return usageError("open requires <id>")
	}
	l, err := a.store.ReadLayout(ctx, args[0])
	if err != nil {
		return err
	}
	st := l.ComputeStats()
	sz := l.ImageSize()
	fmt.Fprintf(a.out, "Opened layout: %s (%s)\n", l.Name, l.ID)
	if l.Address != "" {
		fmt.Fprintf(a.out, "Address: %s\n", l.Address)
	}
	fmt.Fprintf(a.out, "Blueprint: %.0fx%.0f\n", sz.W, sz.H)
	fmt.Fprintf(a.out, "Plots: %d (open %d, booked %d, sold %d, unassigned %d)\n", st.Plots, st.Open, st.Booked, st.Sold, st.Unassigned)
	fmt.Fprintf(a.out, "Infrastructure: %d\n", st.Infra)
	if st.Malformed > 0 {
		fmt.Fprintf(a.out, "Malformed geometry: %d\n", st.Malformed)
	}
	fmt.Fprintf(a.out, "Open inventory value: %s\n", render.GroupThousands(st.ListValue.StringFixed(0)))
	fmt.Fprintf(a.out, "Collected: %s\n", render.GroupThousands(st.Collected.StringFixed(0)))
	fmt.Fprintf(a.out, "Version: %d\n", l.Version)
	return nil
}

func cmdElements(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return usageError("elements requires <id>")
	}
	l, err := a.store.ReadLayout(ctx, args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATE\tAREA\tPOINTS")
	for _, e := range l.Elements {
		state := ""
		switch {
		case e.IsPlot():
			state = string(e.Plot.Status)
		case e.IsInfra():
			state = string(e.Infra.Category)
		}
		area := "-"
		if ar := e.Points.Area(); ar > 0 {
			area = render.FormatArea(ar, a.cfg.Editor.UnitsPerFoot)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Type, state, area, e.Points.String())
	}
	return tw.Flush()
}

func cmdUnassigned(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return usageError("unassigned requires <id>")
	}
	plots, err := a.reconciler().UnassignedPlots(ctx, args[0])
	if err != nil {
		return err
	}
	for _, p := range plots {
		fmt.Fprintln(a.out, p.ID)
	}
	return nil
}

func cmdPregen(ctx context.Context, a *app, args []string) error {
	fs := newFlags("pregen")
	prefix := fs.String("prefix", "", "id prefix, e.g. A-")
	rest, err := parse(fs, args, 2, "<id> <n>")
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(rest[1])
	if err != nil {
		return usageError(fmt.Sprintf("pregen: bad count %q", rest[1]))
	}
	ids, v, err := a.reconciler().Pregenerate(ctx, rest[0], n, *prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %d plots (%s .. %s), version %d\n", len(ids), ids[0], ids[len(ids)-1], v)
	return nil
}

// target says what a drawn shape becomes.
type target struct {
	plot, size, facing, price string
	attach                    string
	infra, category           string
}

func (t *target) register(fs *flag.FlagSet) {
	fs.StringVar(&t.plot, "plot", "", "create a new plot with this id")
	fs.StringVar(&t.size, "size", "", "plot size label, e.g. 30x40")
	fs.StringVar(&t.facing, "facing", "", "plot facing (N, S, E, W, NE, NW, SE, SW)")
	fs.StringVar(&t.price, "price", "", "plot price")
	fs.StringVar(&t.attach, "attach", "", "attach the shape to this unassigned plot")
	fs.StringVar(&t.infra, "infra", "", "create road, park or amenity with this name")
	fs.StringVar(&t.category, "category", "", "infrastructure category (Road, Park, Amenity)")
}

func (t *target) check(cmd string) error {
	n := 0
	for _, v := range []string{t.plot, t.attach, t.infra} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return usageError(cmd + " needs exactly one of --plot, --attach, --infra")
	}
	return nil
}

func (t *target) resolve(ctx context.Context, ed *editor.Editor) error {
	switch {
	case t.attach != "":
		return ed.ResolveAttach(ctx, t.attach)
	case t.infra != "":
		return ed.ResolveCreateInfra(ctx, reconcile.InfraInput{Name: t.infra, Category: domain.Category(t.category)})
	}
	in := reconcile.PlotInput{ID: t.plot, Size: t.size, Facing: domain.Facing(strings.ToUpper(t.facing))}
	if t.price != "" {
		p, err := decimal.NewFromString(strings.ReplaceAll(t.price, ",", ""))
		if err != nil {
			return usageError(fmt.Sprintf("bad --price %q", t.price))
		}
		in.Price = &p
	}
	return ed.ResolveCreatePlot(ctx, in)
}

// draw feeds pts through the drawing machine with tool and saves the result.
func (a *app) draw(ctx context.Context, layoutID string, tool drawing.Tool, pts vector.Polygon, t *target) error {
	ed, err := a.editorFor(ctx, layoutID)
	if err != nil {
		return err
	}
	if err := ed.SetMode(editor.ModeEdit); err != nil {
		return err
	}
	if err := ed.SetTool(tool); err != nil {
		return err
	}
	switch tool {
	case drawing.ToolBox:
		ed.PointerDown(pts[0])
		ed.PointerMove(pts[1])
		ed.PointerUp(pts[1])
	default:
		for _, p := range pts {
			ed.PointerDown(p)
			ed.PointerUp(p)
		}
		ed.Key(drawing.KeyEnter)
	}
	p, ok := ed.PendingShape()
	if !ok {
		return errors.New("shape is too small or degenerate, nothing saved")
	}
	if err := t.resolve(ctx, ed); err != nil {
		return err
	}
	el, _ := ed.Selected()
	fmt.Fprintf(a.out, "Saved %s (%s)\n", el.ID, render.FormatArea(p.Shape.Area, a.cfg.Editor.UnitsPerFoot))
	return nil
}

func parsePoints(s string, min int) (vector.Polygon, error) {
	pts, err := vector.ParsePoints(s)
	if err != nil {
		return nil, usageError(fmt.Sprintf("bad points: %v", err))
	}
	if len(pts) < min {
		return nil, usageError(fmt.Sprintf("need at least %d points, got %d", min, len(pts)))
	}
	return pts, nil
}

func cmdDrawBox(ctx context.Context, a *app, args []string) error {
	fs := newFlags("draw-box")
	var t target
	t.register(fs)
	rest, err := parse(fs, args, 3, "<id> <x,y> <x,y>")
	if err != nil {
		return err
	}
	if err := t.check("draw-box"); err != nil {
		return err
	}
	pts, err := parsePoints(rest[1]+" "+rest[2], 2)
	if err != nil {
		return err
	}
	return a.draw(ctx, rest[0], drawing.ToolBox, pts, &t)
}

func cmdDrawPoly(ctx context.Context, a *app, args []string) error {
	fs := newFlags("draw-poly")
	var t target
	t.register(fs)
	rest, err := parse(fs, args, 2, "<id> \"x,y x,y x,y ...\"")
	if err != nil {
		return err
	}
	if err := t.check("draw-poly"); err != nil {
		return err
	}
	pts, err := parsePoints(strings.Join(rest[1:], " "), vector.MinPolygonPoints)
	if err != nil {
		return err
	}
	return a.draw(ctx, rest[0], drawing.ToolPolygon, pts, &t)
}

func cmdAttach(ctx context.Context, a *app, args []string) error {
	if len(args) < 3 {
		return usageError("attach requires <id> <plot> \"x,y x,y x,y ...\"")
	}
	pts, err := parsePoints(strings.Join(args[2:], " "), vector.MinPolygonPoints)
	if err != nil {
		return err
	}
	return a.draw(ctx, args[0], drawing.ToolPolygon, pts, &target{attach: args[1]})
}

func cmdInfra(ctx context.Context, a *app, args []string) error {
	fs := newFlags("infra")
	category := fs.String("category", "", "Road, Park or Amenity")
	rest, err := parse(fs, args, 3, "<id> <name> \"x,y x,y x,y ...\"")
	if err != nil {
		return err
	}
	pts, err := parsePoints(strings.Join(rest[2:], " "), vector.MinPolygonPoints)
	if err != nil {
		return err
	}
	return a.draw(ctx, rest[0], drawing.ToolPolygon, pts, &target{infra: rest[1], category: *category})
}

func cmdSet(ctx context.Context, a *app, args []string) error {
	if len(args) < 4 {
		return usageError("set requires <id> <element|-> <field> <value>")
	}
	ed, err := a.editorFor(ctx, args[0])
	if err != nil {
		return err
	}
	if err := ed.SetMode(editor.ModeEdit); err != nil {
		return err
	}
	elementID, field, value := args[1], args[2], strings.Join(args[3:], " ")
	if elementID == "-" {
		if err := ed.CommitLayoutField(ctx, field, value); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Updated layout %s: %s\n", args[0], field)
		return nil
	}
	if !ed.Select(elementID) {
		return fmt.Errorf("%w: %s", reconcile.ErrNotFound, elementID)
	}
	if err := ed.CommitField(ctx, field, value); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s: %s\n", elementID, field)
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("delete")
	yes := fs.Bool("yes", false, "confirm the deletion")
	rest, err := parse(fs, args, 2, "<id> <element>")
	if err != nil {
		return err
	}
	ed, err := a.editorFor(ctx, rest[0])
	if err != nil {
		return err
	}
	if err := ed.SetMode(editor.ModeEdit); err != nil {
		return err
	}
	if err := ed.Delete(ctx, rest[1], *yes); err != nil {
		if errors.Is(err, editor.ErrNotConfirmed) {
			return fmt.Errorf("%w: pass --yes to delete %s", err, rest[1])
		}
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", rest[1])
	return nil
}

func cmdRender(ctx context.Context, a *app, args []string) error {
	fs := newFlags("render")
	focus := fs.String("plot", "", "focus and highlight this element")
	price := fs.Bool("price", false, "show plot prices")
	w := fs.Int("w", 0, "image width")
	h := fs.Int("h", 0, "image height")
	rest, err := parse(fs, args, 3, "<id> svg|png|pdf <out>")
	if err != nil {
		return err
	}
	l, err := a.store.ReadLayout(ctx, rest[0])
	if err != nil {
		return err
	}
	opts := render.DefaultOptions()
	opts.LabelScale = a.cfg.Editor.LabelScale
	opts.UnitsPerFoot = a.cfg.Editor.UnitsPerFoot
	scene := render.Frame(l, render.FrameOptions{
		Width: float64(*w), Height: float64(*h),
		FocusID: *focus, FocusScale: a.cfg.Editor.FocusScale,
		ShowPrice: *price, Options: opts,
	})
	for _, id := range scene.Skipped {
		a.log.Debug("element not drawn", slog.String("element", id))
	}

	f, err := os.Create(rest[2])
	if err != nil {
		return err
	}
	switch rest[1] {
	case "svg":
		err = render.WriteSVG(f, scene)
	case "png":
		err = render.WritePNG(f, scene, render.RasterOptions{})
	case "pdf":
		st := l.ComputeStats()
		err = render.WritePDF(f, scene, render.PDFOptions{
			Title:   l.Name,
			Caption: fmt.Sprintf("%d plots: %d open, %d booked, %d sold", st.Plots, st.Open, st.Booked, st.Sold),
		})
	default:
		err = usageError(fmt.Sprintf("render: unknown format %q", rest[1]))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(rest[2])
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s\n", rest[2])
	return nil
}

func cmdShare(ctx context.Context, a *app, args []string) error {
	fs := newFlags("share")
	focus := fs.String("plot", "", "element to focus")
	public := fs.Bool("public", false, "public link")
	price := fs.Bool("price", false, "show prices")
	base := fs.String("base", "", "public base URL of the viewer")
	rest, err := parse(fs, args, 1, "<id>")
	if err != nil {
		return err
	}
	l, err := a.store.ReadLayout(ctx, rest[0])
	if err != nil {
		return err
	}
	if *focus != "" && l.Index(*focus) < 0 {
		return fmt.Errorf("%w: %s", reconcile.ErrNotFound, *focus)
	}
	link := editor.ShareLink{LayoutID: l.ID, FocusID: *focus, Public: *public, ShowPrice: *price}
	if a.sec.ShareKey != "" {
		link = link.Sign(a.sec.ShareKey)
	}
	b := *base
	if b == "" {
		b = a.cfg.Server.PublicBaseURL
	}
	fmt.Fprintln(a.out, link.URL(b))
	return nil
}

func cmdServe(ctx context.Context, a *app, args []string) error {
	addr := a.cfg.Server.Addr
	if len(args) > 0 {
		addr = args[0]
	}
	if a.sec.ShareKey == "" {
		a.log.Warn("no share key configured; /view accepts unsigned links")
	}
	srv := server.New(a.store, server.Config{
		Addr:       addr,
		ShareKey:   a.sec.ShareKey,
		FocusScale: a.cfg.Editor.FocusScale,
		Timeout:    a.cfg.Store.Timeout(),
	})
	return srv.ListenAndServe(ctx)
}

// cmdRemote lists the layouts of a running viewer.
func cmdRemote(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return usageError("remote requires <url>")
	}
	list, err := server.NewClient(args[0]).ListLayouts(ctx)
	if err != nil {
		return err
	}
	printSummaries(a.out, list)
	return nil
}

func cmdUI(_ context.Context, a *app, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	} else if a.cfg.General.Demo() {
		id = domain.DemoLayoutID
	}
	if id == "" {
		return usageError("ui requires <id>")
	}
	if err := store.CheckID(id); err != nil {
		return err
	}
	crashDir, _ := config.DataDir()
	return ui.Run(ui.Options{
		Store:        a.store,
		LayoutID:     id,
		Editor:       a.editorOptions(),
		ShareBaseURL: a.cfg.Server.PublicBaseURL,
		ShareKey:     a.sec.ShareKey,
		CrashDir:     crashDir,
	})
}
