/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Node is a scene-graph item that can be rendered by different backends.
// All node geometry is in screen space; the renderer applies the viewport
// transform once when it builds the scene.
type Node interface {
	Bounds() Rect
	Hit(p Pt) bool
}

// PolygonNode is a filled/stroked closed ring, optionally tied to an element id.
type PolygonNode struct {
	ID     string
	Poly   Polygon
	Fill   Fill
	Stroke Stroke
}

func NewPolygon(id string, poly Polygon, f Fill, s Stroke) *PolygonNode {
	return &PolygonNode{ID: id, Poly: poly, Fill: f, Stroke: s}
}

func (n *PolygonNode) Bounds() Rect  { return n.Poly.Bounds() }
func (n *PolygonNode) Hit(p Pt) bool { return n.Poly.Contains(p) }

// PolylineNode is an open chain of segments, used for live drawing edges.
type PolylineNode struct {
	Pts    []Pt
	Stroke Stroke
}

func (n *PolylineNode) Bounds() Rect { return BoundingBox(n.Pts) }
func (n *PolylineNode) Hit(Pt) bool  { return false }

// RectNode draws an axis-aligned rectangle.
type RectNode struct {
	Rect   Rect
	Fill   Fill
	Stroke Stroke
}

func NewRect(r Rect, f Fill, s Stroke) *RectNode { return &RectNode{Rect: r, Fill: f, Stroke: s} }

func (n *RectNode) Bounds() Rect  { return n.Rect }
func (n *RectNode) Hit(p Pt) bool { return n.Rect.Contains(p) }

// ImageNode references an opaque image resource (URL or data URI) drawn into Rect.
type ImageNode struct {
	Href string
	Rect Rect
}

func (n *ImageNode) Bounds() Rect { return n.Rect }
func (n *ImageNode) Hit(Pt) bool  { return false }

// TextNode is a single-line label anchored at its baseline start.
type TextNode struct {
	At    Pt
	Text  string
	Size  float64
	Color Color
	Bold  bool
}

func (n *TextNode) Bounds() Rect {
	// rough estimate; labels never take part in hit testing
	w := float64(len(n.Text)) * n.Size * 0.6
	return Rect{X: n.At.X, Y: n.At.Y - n.Size, W: w, H: n.Size}
}
func (n *TextNode) Hit(Pt) bool { return false }

// Group is an ordered container; later children draw on top.
type Group struct {
	Name     string
	Children []Node
}

func NewGroup(name string, children ...Node) *Group {
	g := &Group{Name: name}
	g.Children = append(g.Children, children...)
	return g
}

func (g *Group) Add(n ...Node) { g.Children = append(g.Children, n...) }

func (g *Group) Bounds() Rect {
	var b Rect
	first := true
	for _, c := range g.Children {
		cb := c.Bounds()
		if first {
			b = cb
			first = false
		} else {
			b = b.Union(cb)
		}
	}
	return b
}

func (g *Group) Hit(p Pt) bool {
	for i := len(g.Children) - 1; i >= 0; i-- { // top-most first
		if g.Children[i].Hit(p) {
			return true
		}
	}
	return false
}

// HitPolygon returns the top-most PolygonNode with a non-empty id containing p.
func HitPolygon(n Node, p Pt) (*PolygonNode, bool) {
	switch v := n.(type) {
	case *PolygonNode:
		if v.ID != "" && v.Hit(p) {
			return v, true
		}
	case *Group:
		for i := len(v.Children) - 1; i >= 0; i-- {
			if hit, ok := HitPolygon(v.Children[i], p); ok {
				return hit, true
			}
		}
	}
	return nil, false
}

// Walk visits n and its descendants in draw order.
func Walk(n Node, fn func(Node)) {
	fn(n)
	if g, ok := n.(*Group); ok {
		for _, c := range g.Children {
			Walk(c, fn)
		}
	}
}
