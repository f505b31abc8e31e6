/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"nexusmap/internal/vector"

	"github.com/shopspring/decimal"
)

func TestElementJSONIsFlatAndTagged(t *testing.T) {
	price := decimal.NewFromInt(1500000)
	e := NewPlot("A-12", GeometryOf(vector.AxisRect(vector.Pt{X: 100, Y: 100}, vector.Pt{X: 300, Y: 300})))
	e.Plot.Price = &price
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"id":"A-12"`, `"type":"plot"`, `"status":"open"`, `"points":"100,100 300,100 300,300 100,300"`, `"price":1500000`} {
		if !strings.Contains(s, want) {
			t.Fatalf("%s missing %s", s, want)
		}
	}
	var back Element
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.IsPlot() || back.Plot.Price == nil || !back.Plot.Price.Equal(price) || back.Points.String() != e.Points.String() {
		t.Fatalf("decoded mismatch: %+v", back)
	}
}

func TestUnknownTypeIsPreservedVerbatim(t *testing.T) {
	in := `{"id":"x1","type":"tree","points":"1,1 2,2 3,1","height":4}`
	var e Element
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Known() {
		t.Fatalf("tree must not be treated as a known element")
	}
	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("raw element changed: %s", out)
	}
	if err := ValidateElement(e); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestNoStructuralFallback(t *testing.T) {
	// has plot-looking fields but no tag
	var e Element
	if err := json.Unmarshal([]byte(`{"id":"7","price":10,"facing":"N"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.IsPlot() || e.IsInfra() {
		t.Fatalf("untagged element inferred as %q", e.Type)
	}
}

func TestMalformedPointsRoundTrip(t *testing.T) {
	var e Element
	if err := json.Unmarshal([]byte(`{"id":"A-3","type":"plot","status":"open","points":"12,x 4"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !e.Points.Malformed() {
		t.Fatalf("expected malformed geometry")
	}
	if _, ok := e.Points.Polygon(); ok {
		t.Fatalf("malformed geometry must not yield a polygon")
	}
	if e.Points.String() != "12,x 4" {
		t.Fatalf("raw text lost: %q", e.Points.String())
	}
	if !e.Unassigned() {
		t.Fatalf("plot without usable geometry is unassigned")
	}
}

func TestPointsKeepSourceFormatting(t *testing.T) {
	const pts = "120.5,80.0 340.2,80.0 340.2,260.5 120.5,260.5"
	var e Element
	if err := json.Unmarshal([]byte(`{"id":"A-4","type":"plot","status":"open","points":"`+pts+`"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := e.Points.String(); got != pts {
		t.Fatalf("points = %q, want %q", got, pts)
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"points":"`+pts+`"`) {
		t.Fatalf("points rewritten on write: %s", b)
	}
	if got := ParseGeometry("  1.0,2\t3,4.50\n 5,6 ").String(); got != "1.0,2 3,4.50 5,6" {
		t.Fatalf("whitespace only should be normalized, got %q", got)
	}
	if got := GeometryOf(vector.Polygon{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}).String(); got != "1,2 3,4 5,6" {
		t.Fatalf("in-memory polygon = %q", got)
	}
}

func TestNonFinitePointsAreMalformed(t *testing.T) {
	for _, s := range []string{"NaN,NaN 100,0 100,100", "0,0 Inf,0 100,100"} {
		g := ParseGeometry(s)
		if !g.Malformed() || g.String() != s || g.Area() != 0 {
			t.Fatalf("%q: malformed=%v area=%v text=%q", s, g.Malformed(), g.Area(), g.String())
		}
	}
}

func TestUnassignedPlots(t *testing.T) {
	l := Layout{Elements: []Element{
		NewPlot("1", Geometry{}),
		NewPlot("2", GeometryOf(vector.AxisRect(vector.Pt{}, vector.Pt{X: 10, Y: 10}))),
		NewPlot("3", ParseGeometry("")),
		NewInfra("r", "Road", "", Geometry{}),
	}}
	got := l.UnassignedPlots()
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("unassigned = %+v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	l := DemoLayout()
	c := l.Clone()
	c.Elements[0].Plot.CustomerName = "changed"
	*c.Elements[0].Plot.Price = decimal.NewFromInt(1)
	if l.Elements[0].Plot.CustomerName == "changed" || l.Elements[0].Plot.Price.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("clone shares plot data with original")
	}
}

func TestValidateElement(t *testing.T) {
	e := NewPlot("A-1", Geometry{})
	e.Plot.CustomerEmail = "not-an-email"
	err := ValidateElement(e)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields["customerEmail"] != "email" {
		t.Fatalf("expected customerEmail error, got %v", err)
	}
	e.Plot.CustomerEmail = "asha@example.com"
	e.Plot.Facing = "UP"
	if err := ValidateElement(e); err == nil || !strings.Contains(err.Error(), "facing") {
		t.Fatalf("expected facing error, got %v", err)
	}
	in := NewInfra("r1", "", CategoryPark, Geometry{})
	if err := ValidateElement(in); err == nil || !strings.Contains(err.Error(), "name") {
		t.Fatalf("expected name error, got %v", err)
	}
	if err := ValidateElement(NewPlot("", Geometry{})); err == nil {
		t.Fatalf("empty id must fail")
	}
}

func TestValidateLayoutRejectsDuplicates(t *testing.T) {
	l := Layout{Elements: []Element{NewPlot("A-1", Geometry{}), NewPlot("A-1", Geometry{})}}
	if err := ValidateLayout(l); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected duplicate id failure, got %v", err)
	}
	// case-sensitive
	l.Elements[1].ID = "a-1"
	if err := ValidateLayout(l); err != nil {
		t.Fatalf("ids differing in case are distinct: %v", err)
	}
}

func TestComputeStatsOnDemo(t *testing.T) {
	s := DemoLayout().ComputeStats()
	if s.Plots != 6 || s.Sold != 1 || s.Booked != 1 || s.Open != 4 || s.Infra != 2 || s.Unassigned != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.PlotArea != 4*200*200 {
		t.Fatalf("plot area = %v", s.PlotArea)
	}
	if !s.Collected.Equal(decimal.NewFromInt(200000)) {
		t.Fatalf("collected = %s", s.Collected)
	}
}
