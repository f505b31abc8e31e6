/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package drawing implements the box and pen tools: the in-progress shape,
// its live preview, and cancel/undo/commit. It produces shapes; deciding what
// kind of element a shape becomes is the caller's job.
package drawing

import (
	"nexusmap/internal/vector"
)

type Tool int

const (
	ToolSelect Tool = iota
	ToolBox
	ToolPolygon
)

func (t Tool) String() string {
	switch t {
	case ToolBox:
		return "box"
	case ToolPolygon:
		return "polygon"
	default:
		return "select"
	}
}

// ParseTool accepts "select", "box" and "polygon" (or "pen").
func ParseTool(s string) (Tool, bool) {
	switch s {
	case "select", "":
		return ToolSelect, true
	case "box", "rect":
		return ToolBox, true
	case "polygon", "pen":
		return ToolPolygon, true
	}
	return ToolSelect, false
}

// Phase is the state of the machine; it follows the active tool.
type Phase int

const (
	Idle Phase = iota
	DrawingBox
	DrawingPolygon
)

func (p Phase) String() string {
	return [...]string{"idle", "drawing-box", "drawing-polygon"}[p]
}

type Key int

const (
	KeyEnter Key = iota
	KeyEscape
	KeyBackspace
	KeyUndo
)

// Shape is a committed drawing in model space.
type Shape struct {
	Points vector.Polygon
	Area   float64
	Tool   Tool
}

// Options configure the machine.
type Options struct {
	MinBoxPx float64 // box width and height must both exceed this (model px); see SetMinBox
}

func DefaultOptions() Options { return Options{MinBoxPx: 5} }

// Machine is not safe for concurrent use.
type Machine struct {
	opts     Options
	tool     Tool
	editable bool

	// box session
	pressed bool
	anchor  vector.Pt

	// pen session
	pts vector.Polygon

	cursor    vector.Pt
	hasCursor bool

	snap     *vector.VertexIndex
	snapOpts vector.SnapOptions

	// OnCommit receives every non-degenerate shape.
	OnCommit func(Shape)
}

// New returns a machine in the idle phase with editing disabled.
func New(opts Options) *Machine {
	if opts.MinBoxPx < 0 {
		opts.MinBoxPx = 0
	}
	return &Machine{opts: opts}
}

func (m *Machine) Tool() Tool     { return m.tool }
func (m *Machine) Editable() bool { return m.editable }

func (m *Machine) Phase() Phase {
	switch m.tool {
	case ToolBox:
		return DrawingBox
	case ToolPolygon:
		return DrawingPolygon
	default:
		return Idle
	}
}

// SetEditable switches between edit and view mode. Leaving edit mode cancels
// any session and returns to the select tool.
func (m *Machine) SetEditable(on bool) {
	m.editable = on
	if !on {
		m.SetTool(ToolSelect)
	}
}

// SetTool switches tools, discarding any in-progress shape. Drawing tools are
// refused in view mode.
func (m *Machine) SetTool(t Tool) bool {
	if t != ToolSelect && !m.editable {
		return false
	}
	m.reset()
	m.tool = t
	return true
}

// SetMinBox sets the box threshold in model px. Hosts keep it at a fixed
// screen size by passing px / scale after every zoom.
func (m *Machine) SetMinBox(v float64) {
	if v < 0 {
		v = 0
	}
	m.opts.MinBoxPx = v
}

// SetSnap installs the vertex index new points snap to.
func (m *Machine) SetSnap(vi *vector.VertexIndex, opts vector.SnapOptions) {
	m.snap, m.snapOpts = vi, opts
}

func (m *Machine) reset() {
	m.pressed = false
	m.pts = nil
	m.hasCursor = false
}

func (m *Machine) snapped(p vector.Pt) vector.Pt {
	q, _ := m.snap.Snap(p, m.snapOpts)
	return q
}

// Cancel discards the session and returns to idle.
func (m *Machine) Cancel() {
	m.reset()
	m.tool = ToolSelect
}

// PointerDown takes a model-space point.
func (m *Machine) PointerDown(p vector.Pt) {
	p = m.snapped(p)
	m.cursor, m.hasCursor = p, true
	switch m.tool {
	case ToolBox:
		m.pressed = true
		m.anchor = p
	case ToolPolygon:
		// the two presses of a double click land on the same point
		if n := len(m.pts); n > 0 && m.pts[n-1] == p {
			return
		}
		m.pts = append(m.pts, p)
	}
}

func (m *Machine) PointerMove(p vector.Pt) {
	if m.tool == ToolSelect {
		return
	}
	m.cursor, m.hasCursor = m.snapped(p), true
}

func (m *Machine) PointerUp(p vector.Pt) {
	if m.tool != ToolBox || !m.pressed {
		return
	}
	m.cursor = m.snapped(p)
	rect := vector.AxisRect(m.anchor, m.cursor)
	b := rect.Bounds()
	m.pressed = false
	if b.W > m.opts.MinBoxPx && b.H > m.opts.MinBoxPx {
		m.commit(rect, ToolBox)
		return
	}
	// an accidental click: stay in the box tool with nothing drawn
	m.hasCursor = false
}

// DoubleClick finishes a pen shape.
func (m *Machine) DoubleClick(vector.Pt) {
	if m.tool == ToolPolygon {
		m.finishPolygon()
	}
}

// Key handles a keyboard shortcut and reports whether it was consumed.
// No keys are bound in view mode.
func (m *Machine) Key(k Key) bool {
	if !m.editable {
		return false
	}
	switch k {
	case KeyEscape:
		if m.tool == ToolSelect {
			return false
		}
		m.Cancel()
		return true
	case KeyEnter:
		if m.tool != ToolPolygon {
			return false
		}
		m.finishPolygon()
		return true
	case KeyBackspace, KeyUndo:
		return m.Undo()
	}
	return false
}

// Undo removes the last pen point without ending the session.
func (m *Machine) Undo() bool {
	if m.tool != ToolPolygon || len(m.pts) == 0 {
		return false
	}
	m.pts = m.pts[:len(m.pts)-1]
	return true
}

// Points returns a copy of the accumulated pen points.
func (m *Machine) Points() vector.Polygon { return m.pts.Clone() }

func (m *Machine) finishPolygon() {
	pts := m.pts
	if !pts.Valid() || pts.Area() == 0 {
		m.Cancel()
		return
	}
	m.commit(pts.Clone(), ToolPolygon)
}

func (m *Machine) commit(pts vector.Polygon, tool Tool) {
	shape := Shape{Points: pts, Area: pts.Area(), Tool: tool}
	m.Cancel()
	if m.OnCommit != nil {
		m.OnCommit(shape)
	}
}
