/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"

	"nexusmap/internal/vector"
)

// Geometry is the stored "points" field of an element. Parsed text is kept
// and written back with whitespace normalized only, so "80.0" stays "80.0".
// Text that does not parse is kept verbatim; such geometry is never rendered
// and never hit-tested.
type Geometry struct {
	poly vector.Polygon
	raw  string
	err  error
}

// GeometryOf wraps an in-memory polygon.
func GeometryOf(p vector.Polygon) Geometry { return Geometry{poly: p.Clone()} }

// ParseGeometry decodes a points string. It never fails; see Err.
func ParseGeometry(s string) Geometry {
	p, err := vector.ParsePoints(s)
	if err != nil {
		return Geometry{raw: s, err: err}
	}
	return Geometry{poly: p, raw: strings.Join(strings.Fields(s), " ")}
}

// Polygon returns the ring when it parsed and has at least three points.
func (g Geometry) Polygon() (vector.Polygon, bool) {
	if g.err != nil || !g.poly.Valid() {
		return nil, false
	}
	return g.poly.Clone(), true
}

// Empty reports absent or blank geometry.
func (g Geometry) Empty() bool {
	return g.err == nil && len(g.poly) == 0
}

// Malformed reports stored text that could not be parsed.
func (g Geometry) Malformed() bool { return g.err != nil }

// Err is the parse error of malformed geometry.
func (g Geometry) Err() error { return g.err }

// String renders the stored points string. Polygons built in memory are
// encoded with shortest float formatting.
func (g Geometry) String() string {
	if g.err != nil || g.raw != "" {
		return g.raw
	}
	return g.poly.String()
}

// Area is the shoelace area of a valid ring, else 0.
func (g Geometry) Area() float64 {
	p, ok := g.Polygon()
	if !ok {
		return 0
	}
	return p.Area()
}

func (g Geometry) Clone() Geometry {
	g.poly = g.poly.Clone()
	return g
}
