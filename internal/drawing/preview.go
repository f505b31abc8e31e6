/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package drawing

import "nexusmap/internal/vector"

// Preview is the transient in-progress shape in model space.
type Preview struct {
	Tool Tool
	// Points is the committed pen chain, or the live rectangle for the box tool.
	Points    vector.Polygon
	Cursor    vector.Pt
	HasCursor bool
	// Area is the live area including the cursor for the pen tool.
	Area float64
}

// Active reports whether there is anything to draw.
func (p Preview) Active() bool { return len(p.Points) > 0 }

// Closed reports whether the preview should be drawn as a closed ring.
func (p Preview) Closed() bool { return p.Tool == ToolBox }

// Edges returns the dashed transient edges of a pen preview: the edge to the
// cursor and the closing edge back to the first point.
func (p Preview) Edges() [][2]vector.Pt {
	if p.Tool != ToolPolygon || len(p.Points) == 0 || !p.HasCursor {
		return nil
	}
	last := p.Points[len(p.Points)-1]
	out := [][2]vector.Pt{{last, p.Cursor}}
	if len(p.Points) >= 2 {
		out = append(out, [2]vector.Pt{p.Cursor, p.Points[0]})
	}
	return out
}

// LabelAt is where the area readout is drawn; it follows the cursor.
func (p Preview) LabelAt() vector.Pt {
	if p.HasCursor {
		return p.Cursor
	}
	if len(p.Points) > 0 {
		return p.Points[len(p.Points)-1]
	}
	return vector.Pt{}
}

// Preview snapshots the live shape.
func (m *Machine) Preview() Preview {
	pv := Preview{Tool: m.tool, Cursor: m.cursor, HasCursor: m.hasCursor}
	switch m.tool {
	case ToolBox:
		if m.pressed && m.hasCursor {
			pv.Points = vector.AxisRect(m.anchor, m.cursor)
			pv.Area = pv.Points.Area()
		}
	case ToolPolygon:
		pv.Points = m.pts.Clone()
		ring := pv.Points
		if m.hasCursor && len(ring) > 0 {
			ring = append(ring.Clone(), m.cursor)
		}
		pv.Area = vector.PolygonArea(ring)
	}
	return pv
}
