/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport owns the pan/zoom state that maps blueprint model space to
// screen space. Zoom is anchored at the viewport origin, not at the cursor.
package viewport

import (
	"math"

	"nexusmap/internal/vector"
)

// State is the pan offset (screen px) and zoom factor.
type State struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Scale   float64 `json:"scale"`
}

// Home is the reset state.
var Home = State{Scale: 1}

// Limits bound the zoom factor and set the wheel sensitivity.
type Limits struct {
	MinScale    float64
	MaxScale    float64
	WheelFactor float64 // scale change per wheel delta unit
}

func DefaultLimits() Limits { return Limits{MinScale: 0.1, MaxScale: 10, WheelFactor: 0.001} }

func (l Limits) clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(l.MinScale, math.Min(l.MaxScale, s))
}

// Controller is not safe for concurrent use; it is driven from a single
// event loop. Sibling views that pan and zoom together share one Controller
// and observe it via Subscribe.
type Controller struct {
	state     State
	limits    Limits
	listeners []func(State)
}

// New returns a controller at Home. Zero limits fall back to defaults.
func New(l Limits) *Controller {
	d := DefaultLimits()
	if l.MinScale <= 0 {
		l.MinScale = d.MinScale
	}
	if l.MaxScale < l.MinScale {
		l.MaxScale = math.Max(d.MaxScale, l.MinScale)
	}
	if l.WheelFactor <= 0 {
		l.WheelFactor = d.WheelFactor
	}
	return &Controller{state: Home, limits: l}
}

func (c *Controller) State() State   { return c.state }
func (c *Controller) Scale() float64 { return c.state.Scale }
func (c *Controller) Limits() Limits { return c.limits }

// Set replaces the state, clamping the scale.
func (c *Controller) Set(s State) {
	s.Scale = c.limits.clamp(s.Scale)
	c.state = s
	c.notify()
}

// Subscribe registers fn to be called after every state change.
func (c *Controller) Subscribe(fn func(State)) {
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) notify() {
	for _, fn := range c.listeners {
		fn(c.state)
	}
}

// OnWheel zooms by -deltaY * WheelFactor; positive deltaY zooms out.
func (c *Controller) OnWheel(deltaY float64) {
	next := c.limits.clamp(c.state.Scale - deltaY*c.limits.WheelFactor)
	if next == c.state.Scale {
		return
	}
	c.state.Scale = next
	c.notify()
}

// OnPointerDragDelta pans 1:1 in screen pixels, independent of scale.
// Callers route drags here only while the select tool is active and the
// press did not land on an element.
func (c *Controller) OnPointerDragDelta(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	c.state.OffsetX += dx
	c.state.OffsetY += dy
	c.notify()
}

// Reset returns to {0, 0, 1}.
func (c *Controller) Reset() { c.Set(Home) }

// FocusOn centers model point p in a viewport of w x h screen px at targetScale.
func (c *Controller) FocusOn(p vector.Pt, targetScale, w, h float64) {
	s := c.limits.clamp(targetScale)
	c.state = State{OffsetX: w/2 - p.X*s, OffsetY: h/2 - p.Y*s, Scale: s}
	c.notify()
}

// FocusOnPolygon centers the bounding box of poly.
func (c *Controller) FocusOnPolygon(poly vector.Polygon, targetScale, w, h float64) {
	if len(poly) == 0 {
		return
	}
	c.FocusOn(poly.Bounds().Center(), targetScale, w, h)
}

// Fit frames r inside a w x h viewport leaving margin screen px on each side.
func (c *Controller) Fit(r vector.Rect, w, h, margin float64) {
	if r.Empty() || w <= 2*margin || h <= 2*margin {
		c.Reset()
		return
	}
	s := math.Min((w-2*margin)/r.W, (h-2*margin)/r.H)
	c.FocusOn(r.Center(), s, w, h)
}

// Transform maps model space to screen space: Translate(offset) * Scale(scale).
func (c *Controller) Transform() vector.Affine2D { return c.state.Transform() }

func (s State) Transform() vector.Affine2D {
	return vector.Translate(s.OffsetX, s.OffsetY).Mul(vector.Scale(s.Scale, s.Scale))
}

// ScreenToModel converts a pointer position to model space.
func (c *Controller) ScreenToModel(p vector.Pt) vector.Pt {
	return vector.ScreenToModel(p, c.Transform())
}

// ModelToScreen converts a model point to screen space.
func (c *Controller) ModelToScreen(p vector.Pt) vector.Pt {
	return vector.ModelToScreen(p, c.Transform())
}

// VisibleModelRect is the model-space area covered by a w x h viewport.
func (c *Controller) VisibleModelRect(w, h float64) vector.Rect {
	a := c.ScreenToModel(vector.Pt{})
	b := c.ScreenToModel(vector.Pt{X: w, Y: h})
	return vector.R(a.X, a.Y, b.X-a.X, b.Y-a.Y)
}
