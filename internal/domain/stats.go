/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "github.com/shopspring/decimal"

// Stats are the computed figures shown next to a layout.
type Stats struct {
	Plots      int             `json:"plots"`
	Open       int             `json:"open"`
	Booked     int             `json:"booked"`
	Sold       int             `json:"sold"`
	Infra      int             `json:"infra"`
	Unassigned int             `json:"unassigned"`
	Malformed  int             `json:"malformed"`
	PlotArea   float64         `json:"plotArea"` // model units squared
	InfraArea  float64         `json:"infraArea"`
	ListValue  decimal.Decimal `json:"listValue"` // sum of prices of open plots
	SoldValue  decimal.Decimal `json:"soldValue"`
	Collected  decimal.Decimal `json:"collected"`
}

// ComputeStats walks the element collection once.
func (l Layout) ComputeStats() Stats {
	var s Stats
	for _, e := range l.Elements {
		if e.Points.Malformed() {
			s.Malformed++
		}
		switch {
		case e.IsPlot():
			s.Plots++
			if e.Unassigned() {
				s.Unassigned++
			}
			s.PlotArea += e.Points.Area()
			p := e.Plot
			switch p.Status {
			case StatusOpen:
				s.Open++
				if p.Price != nil {
					s.ListValue = s.ListValue.Add(*p.Price)
				}
			case StatusBooked:
				s.Booked++
			case StatusSold:
				s.Sold++
				if p.Price != nil {
					s.SoldValue = s.SoldValue.Add(*p.Price)
				}
			}
			s.Collected = s.Collected.Add(p.Paid())
		case e.IsInfra():
			s.Infra++
			s.InfraArea += e.Points.Area()
		}
	}
	return s
}
