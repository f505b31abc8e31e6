/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// Polygon is an ordered, implicitly closed ring of points in model space.
type Polygon []Pt

// MinPolygonPoints is the smallest ring that can be drawn or stored.
const MinPolygonPoints = 3

// Valid reports whether the ring has enough points to render.
func (p Polygon) Valid() bool { return len(p) >= MinPolygonPoints }

// Clone returns an independent copy.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	return append(Polygon(nil), p...)
}

// Area is the unsigned shoelace area, 0 for fewer than 3 points.
func (p Polygon) Area() float64 { return PolygonArea(p) }

// PolygonArea computes 0.5 * |sum(x_i*y_{i+1} - x_{i+1}*y_i)| over the cyclic sequence.
func PolygonArea(pts []Pt) float64 {
	n := len(pts)
	if n < MinPolygonPoints {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// BoundingBox returns the axis-aligned bounds; the zero Rect for no points.
func BoundingBox(pts []Pt) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, q := range pts[1:] {
		minX = math.Min(minX, q.X)
		minY = math.Min(minY, q.Y)
		maxX = math.Max(maxX, q.X)
		maxY = math.Max(maxY, q.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func (p Polygon) Bounds() Rect { return BoundingBox(p) }

// Centroid returns the area centroid, or the bounding box center when the
// ring is degenerate.
func Centroid(pts []Pt) Pt {
	n := len(pts)
	if n == 0 {
		return Pt{}
	}
	var a, cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
		a += cross
		cx += (pts[i].X + pts[j].X) * cross
		cy += (pts[i].Y + pts[j].Y) * cross
	}
	if n < MinPolygonPoints || a == 0 {
		return BoundingBox(pts).Center()
	}
	a /= 2
	return Pt{X: cx / (6 * a), Y: cy / (6 * a)}
}

// Contains tests q against the ring using even-odd ray casting.
func (p Polygon) Contains(q Pt) bool {
	if !p.Valid() {
		return false
	}
	in := false
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		a, b := p[i], p[j]
		if (a.Y > q.Y) != (b.Y > q.Y) {
			x := (b.X-a.X)*(q.Y-a.Y)/(b.Y-a.Y) + a.X
			if q.X < x {
				in = !in
			}
		}
	}
	return in
}

// Rotate returns the ring starting at index k; the shape is unchanged.
func (p Polygon) Rotate(k int) Polygon {
	if len(p) == 0 {
		return nil
	}
	k = ((k % len(p)) + len(p)) % len(p)
	out := make(Polygon, 0, len(p))
	out = append(out, p[k:]...)
	return append(out, p[:k]...)
}

// Transform applies m to every point.
func (p Polygon) Transform(m Affine2D) Polygon {
	out := make(Polygon, len(p))
	for i, q := range p {
		out[i] = m.Apply(q)
	}
	return out
}

// AxisRect returns the four corners spanned by a and b, ordered
// (minX,minY) (maxX,minY) (maxX,maxY) (minX,maxY).
func AxisRect(a, b Pt) Polygon {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Polygon{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}
