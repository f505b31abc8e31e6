/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"time"

	"nexusmap/internal/vector"

	"github.com/shopspring/decimal"
)

// DemoLayoutID is the id of the seeded layout used in demo data mode.
const DemoLayoutID = "demo"

// DemoLayout returns a small seeded layout: a row of drawn plots along a road,
// a park, and two plots registered in inventory but not drawn yet.
func DemoLayout() Layout {
	l := Layout{
		ID:          DemoLayoutID,
		Name:        "Green Meadows Phase 1",
		Address:     "Survey No. 41, Outer Ring Road",
		ImageWidth:  1200,
		ImageHeight: 800,
		Milestones:  []Milestone{{Title: "Layout approval", Date: "2025-01-15", Done: true}, {Title: "Road laying"}},
		Version:     1,
		UpdatedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	statuses := []Status{StatusSold, StatusBooked, StatusOpen, StatusOpen}
	for i, st := range statuses {
		x := 100 + float64(i)*220
		p := NewPlot(fmt.Sprintf("A-%d", i+1), GeometryOf(vector.AxisRect(vector.Pt{X: x, Y: 100}, vector.Pt{X: x + 200, Y: 300})))
		p.Plot.Status = st
		p.Plot.Size = "30x40"
		p.Plot.Facing = "N"
		price := decimal.NewFromInt(1500000 + int64(i)*50000)
		p.Plot.Price = &price
		if st != StatusOpen {
			p.Plot.CustomerName = fmt.Sprintf("Customer %d", i+1)
			p.Plot.BookingAmount = decimal.NewFromInt(100000)
		}
		l.Elements = append(l.Elements, p)
	}
	l.Elements = append(l.Elements,
		NewInfra("road-1", "Main Road", CategoryRoad, GeometryOf(vector.AxisRect(vector.Pt{X: 100, Y: 320}, vector.Pt{X: 960, Y: 380}))),
		NewInfra("park-1", "Central Park", CategoryPark, GeometryOf(vector.Polygon{{X: 100, Y: 400}, {X: 500, Y: 400}, {X: 560, Y: 600}, {X: 100, Y: 620}})),
		NewPlot("B-1", Geometry{}),
		NewPlot("B-2", Geometry{}),
	)
	return l
}
