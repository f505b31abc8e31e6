/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Points string codec. Stored geometry is a single string of space-separated
// "x,y" pairs, e.g. "120.5,80 340.2,80 340.2,260.5".

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePoints decodes a points string. Blank input yields a nil polygon.
func ParsePoints(s string) (Polygon, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make(Polygon, 0, len(fields))
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %d %q: missing comma", i, f)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("point %d %q: x: %w", i, f, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("point %d %q: y: %w", i, f, err)
		}
		if !finite(x) || !finite(y) {
			return nil, fmt.Errorf("point %d %q: coordinate is not finite", i, f)
		}
		out = append(out, Pt{X: x, Y: y})
	}
	return out, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// String encodes the polygon with shortest round-trip float formatting.
func (p Polygon) String() string {
	var b strings.Builder
	b.Grow(len(p) * 12)
	for i, q := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(FormatPoint(q))
	}
	return b.String()
}

// FormatPoint renders one "x,y" pair.
func FormatPoint(p Pt) string {
	return formatCoord(p.X) + "," + formatCoord(p.Y)
}

func formatCoord(v float64) string {
	if v == 0 {
		// avoid "-0"
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
