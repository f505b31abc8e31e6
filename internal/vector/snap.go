/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Vertex snapping for the drawing tools. Neighbouring plots usually share
// boundary corners, so a new point close to an existing vertex lands exactly
// on it. UI-agnostic and deterministic to keep it unit-testable.

import "math"

// SnapOptions controls vertex snapping.
type SnapOptions struct {
	// Threshold is the maximum model-space distance at which snapping occurs.
	Threshold float64
	Enabled   bool
}

// VertexIndex holds candidate vertices collected from existing geometry.
type VertexIndex struct {
	pts []Pt
}

// NewVertexIndex collects every vertex of the given polygons.
func NewVertexIndex(polys ...Polygon) *VertexIndex {
	vi := &VertexIndex{}
	for _, p := range polys {
		vi.pts = append(vi.pts, p...)
	}
	return vi
}

func (vi *VertexIndex) Len() int {
	if vi == nil {
		return 0
	}
	return len(vi.pts)
}

// Snap returns the nearest candidate within the threshold, or p unchanged.
// Ties resolve to the earliest collected vertex.
func (vi *VertexIndex) Snap(p Pt, opts SnapOptions) (Pt, bool) {
	if vi == nil || !opts.Enabled || opts.Threshold <= 0 {
		return p, false
	}
	best, bestD := p, math.Inf(1)
	for _, c := range vi.pts {
		d := math.Hypot(c.X-p.X, c.Y-p.Y)
		if d <= opts.Threshold && d < bestD {
			best, bestD = c, d
		}
	}
	return best, !math.IsInf(bestD, 1)
}
