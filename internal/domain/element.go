/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ElementType is the explicit tag of an element. It is always checked first;
// the kind of an element is never inferred from which fields are present.
type ElementType string

const (
	TypePlot  ElementType = "plot"
	TypeInfra ElementType = "infra"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusBooked Status = "booked"
	StatusSold   Status = "sold"
)

func (s Status) Valid() bool { return s == StatusOpen || s == StatusBooked || s == StatusSold }

type Facing string

var Facings = []Facing{"N", "S", "E", "W", "NE", "NW", "SE", "SW"}

func (f Facing) Valid() bool {
	if f == "" {
		return true
	}
	for _, v := range Facings {
		if v == f {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryRoad    Category = "Road"
	CategoryPark    Category = "Park"
	CategoryAmenity Category = "Amenity"
)

func (c Category) Valid() bool {
	return c == CategoryRoad || c == CategoryPark || c == CategoryAmenity
}

// Installment is one payment received against a plot.
type Installment struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Reference string          `json:"reference,omitempty"`
}

// PlotData holds the sellable inventory fields of a plot.
type PlotData struct {
	Status          Status           `json:"status" validate:"required,oneof=open booked sold"`
	Size            string           `json:"size,omitempty"`
	Facing          Facing           `json:"facing,omitempty" validate:"omitempty,oneof=N S E W NE NW SE SW"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	BookingAmount   decimal.Decimal  `json:"bookingAmount"`
	CustomerName    string           `json:"customerName,omitempty"`
	CustomerPhone   string           `json:"customerPhone,omitempty" validate:"omitempty,max=32"`
	CustomerEmail   string           `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CustomerAddress string           `json:"customerAddress,omitempty"`
	Documents       []Document       `json:"documents,omitempty" validate:"dive"`
	Installments    []Installment    `json:"installments,omitempty" validate:"dive"`
}

// Paid sums booking amount and installments.
func (p PlotData) Paid() decimal.Decimal {
	sum := p.BookingAmount
	for _, in := range p.Installments {
		sum = sum.Add(in.Amount)
	}
	return sum
}

func (p PlotData) clone() PlotData {
	c := p
	if p.Price != nil {
		v := *p.Price
		c.Price = &v
	}
	c.Documents = append([]Document(nil), p.Documents...)
	c.Installments = append([]Installment(nil), p.Installments...)
	return c
}

// InfraData holds the fields of a non-sellable mapped feature.
type InfraData struct {
	Name     string   `json:"name" validate:"required"`
	Category Category `json:"category" validate:"required,oneof=Road Park Amenity"`
}

// Element is a tagged union: exactly one of Plot or Infra is set, matching
// Type. Elements of a type this build does not know keep their raw document
// so a write-back does not lose them.
type Element struct {
	ID     string
	Type   ElementType
	Points Geometry
	Plot   *PlotData
	Infra  *InfraData

	raw json.RawMessage
}

// NewPlot returns an open plot.
func NewPlot(id string, g Geometry) Element {
	return Element{ID: id, Type: TypePlot, Points: g, Plot: &PlotData{Status: StatusOpen}}
}

// NewInfra returns an infrastructure element; an empty category becomes Road.
func NewInfra(id, name string, cat Category, g Geometry) Element {
	if cat == "" {
		cat = CategoryRoad
	}
	return Element{ID: id, Type: TypeInfra, Points: g, Infra: &InfraData{Name: name, Category: cat}}
}

func (e Element) IsPlot() bool  { return e.Type == TypePlot && e.Plot != nil }
func (e Element) IsInfra() bool { return e.Type == TypeInfra && e.Infra != nil }

// Known reports whether the element has a recognised tag and matching payload.
func (e Element) Known() bool { return e.IsPlot() || e.IsInfra() }

// Unassigned reports a plot registered in inventory but not drawn yet.
func (e Element) Unassigned() bool {
	if !e.IsPlot() {
		return false
	}
	_, ok := e.Points.Polygon()
	return !ok
}

// Label is the text drawn on the map: the plot number or the infra name.
func (e Element) Label() string {
	if e.IsInfra() && e.Infra.Name != "" {
		return e.Infra.Name
	}
	return e.ID
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	c := e
	c.Points = e.Points.Clone()
	if e.Plot != nil {
		p := e.Plot.clone()
		c.Plot = &p
	}
	if e.Infra != nil {
		in := *e.Infra
		c.Infra = &in
	}
	if e.raw != nil {
		c.raw = append(json.RawMessage(nil), e.raw...)
	}
	return c
}

type elementHead struct {
	ID     string      `json:"id"`
	Type   ElementType `json:"type"`
	Points *string     `json:"points,omitempty"`
}

type plotDoc struct {
	ID     string      `json:"id"`
	Type   ElementType `json:"type"`
	Points string      `json:"points,omitempty"`
	PlotData
}

type infraDoc struct {
	ID     string      `json:"id"`
	Type   ElementType `json:"type"`
	Points string      `json:"points,omitempty"`
	InfraData
}

func (e Element) MarshalJSON() ([]byte, error) {
	switch {
	case e.IsPlot():
		return json.Marshal(plotDoc{ID: e.ID, Type: TypePlot, Points: e.Points.String(), PlotData: *e.Plot})
	case e.IsInfra():
		return json.Marshal(infraDoc{ID: e.ID, Type: TypeInfra, Points: e.Points.String(), InfraData: *e.Infra})
	case e.raw != nil:
		return e.raw, nil
	default:
		return json.Marshal(elementHead{ID: e.ID, Type: e.Type})
	}
}

func (e *Element) UnmarshalJSON(b []byte) error {
	var head elementHead
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	*e = Element{ID: head.ID, Type: head.Type}
	if head.Points != nil {
		e.Points = ParseGeometry(*head.Points)
	}
	switch head.Type {
	case TypePlot:
		var d plotDoc
		if err := json.Unmarshal(b, &d); err != nil {
			return fmt.Errorf("plot %q: %w", head.ID, err)
		}
		e.Plot = &d.PlotData
	case TypeInfra:
		var d infraDoc
		if err := json.Unmarshal(b, &d); err != nil {
			return fmt.Errorf("infra %q: %w", head.ID, err)
		}
		e.Infra = &d.InfraData
	default:
		e.raw = append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	}
	return nil
}
