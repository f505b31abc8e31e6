/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the layout document: a blueprint image plus the
// collection of mapped and unmapped inventory elements drawn over it.
// Layouts serialize to a single human-readable JSON document.

import (
	"time"

	"nexusmap/internal/vector"

	"github.com/shopspring/decimal"
)

func init() {
	// money values are stored as plain JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// Layout is a real-estate project: a blueprint image and its elements.
type Layout struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Address         string      `json:"address,omitempty"`
	MapLink         string      `json:"mapLink,omitempty"`
	BackgroundImage string      `json:"backgroundImage,omitempty"` // URL or data URI, opaque
	ImageWidth      int         `json:"imageWidth,omitempty"`
	ImageHeight     int         `json:"imageHeight,omitempty"`
	Documents       []Document  `json:"documents,omitempty"`
	Milestones      []Milestone `json:"milestones,omitempty"`
	Elements        []Element   `json:"elements"`
	Version         int64       `json:"version"`
	UpdatedAt       time.Time   `json:"updatedAt,omitempty"`
}

// Document is an attached file reference (sale deed, approval, brochure).
type Document struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// Milestone tracks a project phase such as approvals or road laying.
type Milestone struct {
	Title string `json:"title"`
	Date  string `json:"date,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

// Summary is a short listing row.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Elements  int       `json:"elements"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l Layout) Summary() Summary {
	return Summary{ID: l.ID, Name: l.Name, Elements: len(l.Elements), Version: l.Version, UpdatedAt: l.UpdatedAt}
}

// ImageSize returns the model-space extent. Without a known image size the
// bounds of all drawn geometry are used, padded by a small margin.
func (l Layout) ImageSize() vector.Size {
	if l.ImageWidth > 0 && l.ImageHeight > 0 {
		return vector.Size{W: float64(l.ImageWidth), H: float64(l.ImageHeight)}
	}
	var pts []vector.Pt
	for _, e := range l.Elements {
		if poly, ok := e.Points.Polygon(); ok {
			pts = append(pts, poly...)
		}
	}
	if len(pts) == 0 {
		return vector.Size{W: 1000, H: 1000}
	}
	b := vector.BoundingBox(pts)
	return vector.Size{W: b.MaxX() + 50, H: b.MaxY() + 50}
}

// Index returns the position of the element with id, or -1.
// Ids are compared case-sensitively.
func (l Layout) Index(id string) int {
	for i := range l.Elements {
		if l.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Element returns a copy of the element with id.
func (l Layout) Element(id string) (Element, bool) {
	if i := l.Index(id); i >= 0 {
		return l.Elements[i].Clone(), true
	}
	return Element{}, false
}

// UnassignedPlots returns the plots that have no usable geometry yet, in
// collection order.
func (l Layout) UnassignedPlots() []Element {
	var out []Element
	for _, e := range l.Elements {
		if e.Unassigned() {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Clone returns a deep copy.
func (l Layout) Clone() Layout {
	c := l
	c.Documents = append([]Document(nil), l.Documents...)
	c.Milestones = append([]Milestone(nil), l.Milestones...)
	c.Elements = CloneElements(l.Elements)
	return c
}

// CloneElements deep-copies an element collection.
func CloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
