/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a layout, a viewport and the live drawing session into
// a screen-space scene graph, and writes scenes as SVG, PNG or PDF.
// Rendering never mutates its input and never fails on bad elements: they are
// skipped and reported in Scene.Skipped.
package render

import (
	"strconv"
	"strings"

	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	"nexusmap/internal/vector"
	"nexusmap/internal/viewport"
)

// Group names inside Scene.Root, bottom to top.
const (
	GroupBackground = "background"
	GroupElements   = "elements"
	GroupLabels     = "labels"
	GroupPreview    = "preview"
)

// Options tune the visual output.
type Options struct {
	// Labels are drawn only when the viewport scale is above LabelScale.
	LabelScale float64
	// LabelOffset is added (screen px) to the first polygon point.
	LabelOffset vector.Pt
	FontSize    float64
	// UnitsPerFoot converts model px to feet for the live area readout.
	UnitsPerFoot float64
	Palette      *Palette
}

func DefaultOptions() Options {
	p := DefaultPalette()
	return Options{LabelScale: 0.5, LabelOffset: vector.Pt{X: 6, Y: 14}, FontSize: 12, UnitsPerFoot: 1, Palette: &p}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LabelScale == 0 {
		o.LabelScale = d.LabelScale
	}
	if o.LabelOffset == (vector.Pt{}) {
		o.LabelOffset = d.LabelOffset
	}
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	if o.UnitsPerFoot <= 0 {
		o.UnitsPerFoot = d.UnitsPerFoot
	}
	if o.Palette == nil {
		o.Palette = d.Palette
	}
	return o
}

// Input is everything a frame depends on.
type Input struct {
	Layout     domain.Layout
	View       viewport.State
	Size       vector.Size // screen size of the viewport
	SelectedID string
	Preview    drawing.Preview
	ShowPrice  bool
	Options    Options
}

// Scene is a rendered frame in screen space.
type Scene struct {
	Size    vector.Size
	Root    *vector.Group
	Skipped []string // ids of elements without drawable geometry
}

// Group returns the named top-level group.
func (s Scene) Group(name string) *vector.Group {
	if s.Root == nil {
		return nil
	}
	for _, c := range s.Root.Children {
		if g, ok := c.(*vector.Group); ok && g.Name == name {
			return g
		}
	}
	return nil
}

// Render builds the scene.
func Render(in Input) Scene {
	opts := in.Options.withDefaults()
	pal := opts.Palette
	xf := in.View.Transform()
	scale := in.View.Scale

	bg := vector.NewGroup(GroupBackground)
	els := vector.NewGroup(GroupElements)
	labels := vector.NewGroup(GroupLabels)
	pre := vector.NewGroup(GroupPreview)
	scene := Scene{Size: in.Size, Root: vector.NewGroup("map", bg, els, labels, pre)}

	img := in.Layout.ImageSize()
	a := xf.Apply(vector.Pt{})
	b := xf.Apply(vector.Pt{X: img.W, Y: img.H})
	imgRect := vector.R(a.X, a.Y, b.X-a.X, b.Y-a.Y)
	if strings.TrimSpace(in.Layout.BackgroundImage) != "" {
		bg.Add(&vector.ImageNode{Href: in.Layout.BackgroundImage, Rect: imgRect})
	} else {
		bg.Add(vector.NewRect(imgRect, pal.Placeholder.Fill, pal.Placeholder.Stroke))
	}

	showLabels := scale > opts.LabelScale
	for _, e := range in.Layout.Elements {
		poly, ok := e.Points.Polygon()
		if !ok || !e.Known() {
			// plots without geometry yet are expected; anything else is worth reporting
			if e.Points.Malformed() || !e.Known() || e.IsInfra() {
				scene.Skipped = append(scene.Skipped, e.ID)
			}
			continue
		}
		p := pal.For(e, e.ID == in.SelectedID && in.SelectedID != "")
		screen := poly.Transform(xf)
		els.Add(vector.NewPolygon(e.ID, screen, p.Fill, p.Stroke))
		if showLabels {
			at := vector.Pt{X: screen[0].X + opts.LabelOffset.X, Y: screen[0].Y + opts.LabelOffset.Y}
			labels.Add(&vector.TextNode{At: at, Text: e.Label(), Size: opts.FontSize, Color: pal.Label, Bold: true})
			if in.ShowPrice && e.IsPlot() && e.Plot.Price != nil {
				at.Y += opts.FontSize * 1.2
				labels.Add(&vector.TextNode{At: at, Text: GroupThousands(e.Plot.Price.StringFixed(0)), Size: opts.FontSize * 0.9, Color: pal.Label})
			}
		}
	}

	addPreview(pre, in.Preview, xf, opts)
	return scene
}

func addPreview(g *vector.Group, pv drawing.Preview, xf vector.Affine2D, opts Options) {
	if !pv.Active() {
		return
	}
	pal := opts.Palette
	screen := pv.Points.Transform(xf)
	solid := pal.Preview.Stroke
	solid.Dash = nil
	if pv.Closed() {
		g.Add(vector.NewPolygon("", screen, pal.Preview.Fill, pal.Preview.Stroke))
	} else {
		if len(screen) >= 3 {
			g.Add(vector.NewPolygon("", screen, pal.Preview.Fill, vector.Stroke{}))
		}
		g.Add(&vector.PolylineNode{Pts: screen, Stroke: solid})
		for _, e := range pv.Edges() {
			g.Add(&vector.PolylineNode{Pts: []vector.Pt{xf.Apply(e[0]), xf.Apply(e[1])}, Stroke: pal.Preview.Stroke})
		}
	}
	at := xf.Apply(pv.LabelAt())
	g.Add(&vector.TextNode{
		At:    vector.Pt{X: at.X + 12, Y: at.Y - 8},
		Text:  FormatArea(pv.Area, opts.UnitsPerFoot),
		Size:  opts.FontSize,
		Color: pal.Preview.Stroke.Color,
		Bold:  true,
	})
}

// HitTest resolves a screen point to the top-most element polygon.
func HitTest(s Scene, p vector.Pt) (string, bool) {
	g := s.Group(GroupElements)
	if g == nil {
		return "", false
	}
	n, ok := vector.HitPolygon(g, p)
	if !ok {
		return "", false
	}
	return n.ID, true
}

// FormatArea renders a model-space area as square feet, e.g. "40,000 sq.ft".
func FormatArea(area, unitsPerFoot float64) string {
	if unitsPerFoot <= 0 {
		unitsPerFoot = 1
	}
	ft := area / (unitsPerFoot * unitsPerFoot)
	return GroupThousands(strconv.FormatFloat(vector.FloatRound(ft, 0), 'f', 0, 64)) + " sq.ft"
}

// GroupThousands inserts commas into the integer part of a decimal string.
func GroupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
