/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"nexusmap/internal/domain"
	"nexusmap/internal/vector"
)

// Palette maps element kind and state to paint.
type Palette struct {
	PlotOpen, PlotBooked, PlotSold Paint
	Road, Park, Amenity            Paint
	Unknown                        Paint
	Selected                       vector.Stroke
	Preview                        Paint
	Label                          vector.Color
	Placeholder                    Paint
}

// Paint is a fill and stroke pair.
type Paint struct {
	Fill   vector.Fill
	Stroke vector.Stroke
}

func hex(r, g, b, a uint8) vector.Color { return vector.Color{R: r, G: g, B: b, A: a} }

func paint(fill, stroke vector.Color) Paint {
	return Paint{
		Fill:   vector.Fill{Color: fill, Enabled: true},
		Stroke: vector.Stroke{Color: stroke, Width: 1.5, Enabled: true},
	}
}

// DefaultPalette: open neutral, booked amber, sold green; roads gray,
// parks green, amenities purple.
func DefaultPalette() Palette {
	return Palette{
		PlotOpen:   paint(hex(0xf5, 0xf5, 0xf4, 0xb3), hex(0x78, 0x71, 0x6c, 0xff)),
		PlotBooked: paint(hex(0xfb, 0xbf, 0x24, 0x8c), hex(0xb4, 0x53, 0x09, 0xff)),
		PlotSold:   paint(hex(0x22, 0xc5, 0x5e, 0x8c), hex(0x15, 0x80, 0x3d, 0xff)),
		Road:       paint(hex(0x9c, 0xa3, 0xaf, 0xa6), hex(0x4b, 0x55, 0x63, 0xff)),
		Park:       paint(hex(0x86, 0xef, 0xac, 0xa6), hex(0x16, 0xa3, 0x4a, 0xff)),
		Amenity:    paint(hex(0xc0, 0x84, 0xfc, 0xa6), hex(0x7e, 0x22, 0xce, 0xff)),
		Unknown:    paint(hex(0xe5, 0xe7, 0xeb, 0x80), hex(0x6b, 0x72, 0x80, 0xff)),
		Selected:   vector.Stroke{Color: hex(0x25, 0x63, 0xeb, 0xff), Width: 3, Enabled: true},
		Preview: Paint{
			Fill:   vector.Fill{Color: hex(0xef, 0x44, 0x44, 0x26), Enabled: true},
			Stroke: vector.Stroke{Color: hex(0xef, 0x44, 0x44, 0xff), Width: 1.5, Dash: []float64{6, 4}, Enabled: true},
		},
		Label:       hex(0x11, 0x18, 0x27, 0xff),
		Placeholder: paint(hex(0xf3, 0xf4, 0xf6, 0xff), hex(0xd1, 0xd5, 0xdb, 0xff)),
	}
}

// For returns the paint of e; the selection highlight replaces the stroke.
func (p Palette) For(e domain.Element, selected bool) Paint {
	var out Paint
	switch {
	case e.IsPlot():
		switch e.Plot.Status {
		case domain.StatusBooked:
			out = p.PlotBooked
		case domain.StatusSold:
			out = p.PlotSold
		default:
			out = p.PlotOpen
		}
	case e.IsInfra():
		switch e.Infra.Category {
		case domain.CategoryPark:
			out = p.Park
		case domain.CategoryAmenity:
			out = p.Amenity
		default:
			out = p.Road
		}
	default:
		out = p.Unknown
	}
	if selected {
		out.Stroke = p.Selected
	}
	return out
}
