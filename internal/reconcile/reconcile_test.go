/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	"nexusmap/internal/store"
	"nexusmap/internal/vector"

	"github.com/shopspring/decimal"
)

func box(x0, y0, x1, y1 float64) drawing.Shape {
	p := vector.AxisRect(vector.Pt{X: x0, Y: y0}, vector.Pt{X: x1, Y: y1})
	return drawing.Shape{Points: p, Area: p.Area(), Tool: drawing.ToolBox}
}

func demo(t *testing.T) (*Reconciler, *store.Memory) {
	t.Helper()
	s := store.NewDemo()
	return New(s), s
}

func read(t *testing.T, s store.DocumentStore) domain.Layout {
	t.Helper()
	l, err := s.ReadLayout(context.Background(), domain.DemoLayoutID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return l
}

func TestDrawAndLabelNewPlot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(domain.Layout{ID: "empty", Name: "Empty"})
	r := New(s)

	var got drawing.Shape
	m := drawing.New(drawing.DefaultOptions())
	m.OnCommit = func(sh drawing.Shape) { got = sh }
	m.SetEditable(true)
	m.SetTool(drawing.ToolBox)
	m.PointerDown(vector.Pt{X: 100, Y: 100})
	m.PointerMove(vector.Pt{X: 300, Y: 300})
	m.PointerUp(vector.Pt{X: 300, Y: 300})
	if got.Area != 40000 {
		t.Fatalf("area: got %v want 40000", got.Area)
	}

	res, err := r.CreatePlot(ctx, "empty", got, PlotInput{ID: "A-12"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.Created() || res.Version != 2 {
		t.Fatalf("result: %+v", res)
	}
	l, _ := s.ReadLayout(ctx, "empty")
	if len(l.Elements) != 1 {
		t.Fatalf("elements: got %d", len(l.Elements))
	}
	e := l.Elements[0]
	if e.ID != "A-12" || e.Type != domain.TypePlot || e.Plot.Status != domain.StatusOpen {
		t.Fatalf("element: %+v", e)
	}
	if e.Points.String() != "100,100 300,100 300,300 100,300" {
		t.Fatalf("points: got %q", e.Points.String())
	}
}

func TestCreatePlotValidation(t *testing.T) {
	r, s := demo(t)
	ctx := context.Background()
	before := read(t, s)
	if _, err := r.CreatePlot(ctx, domain.DemoLayoutID, box(0, 0, 10, 10), PlotInput{ID: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank id: got %v", err)
	}
	if _, err := r.CreatePlot(ctx, domain.DemoLayoutID, box(0, 0, 10, 10), PlotInput{ID: "A-1"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate: got %v", err)
	}
	neg := decimal.NewFromInt(-5)
	if _, err := r.CreatePlot(ctx, domain.DemoLayoutID, box(0, 0, 10, 10), PlotInput{ID: "Z-1", Price: &neg}); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative price: got %v", err)
	}
	if _, err := r.CreatePlot(ctx, domain.DemoLayoutID, box(0, 0, 10, 10), PlotInput{ID: "Z-1", Facing: "UP"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("facing: got %v", err)
	}
	flat := drawing.Shape{Points: vector.Polygon{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}}}
	if _, err := r.CreatePlot(ctx, domain.DemoLayoutID, flat, PlotInput{ID: "Z-1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero area: got %v", err)
	}
	if after := read(t, s); after.Version != before.Version {
		t.Fatalf("failed creates wrote: version %d -> %d", before.Version, after.Version)
	}
}

func TestCreatePlotCaseSensitiveIDs(t *testing.T) {
	r, _ := demo(t)
	if _, err := r.CreatePlot(context.Background(), domain.DemoLayoutID, box(0, 0, 10, 10), PlotInput{ID: "a-1"}); err != nil {
		t.Fatalf("a-1 differs from A-1: %v", err)
	}
}

func TestAttachPreservesFields(t *testing.T) {
	ctx := context.Background()
	r, s := demo(t)
	// B-1 was booked by phone before it was drawn
	if _, err := r.UpdateElement(ctx, domain.DemoLayoutID, "B-1", func(e *domain.Element) error {
		e.Plot.Status = domain.StatusBooked
		e.Plot.CustomerName = "Asha"
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := read(t, s)

	res, err := r.AttachToPlot(ctx, domain.DemoLayoutID, box(100, 650, 300, 780), "B-1")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if res.Before == nil || !res.Before.Unassigned() {
		t.Fatalf("before-image should be unassigned: %+v", res.Before)
	}
	after := read(t, s)
	b1, _ := after.Element("B-1")
	if b1.Plot.CustomerName != "Asha" || b1.Plot.Status != domain.StatusBooked {
		t.Fatalf("fields lost: %+v", b1.Plot)
	}
	if b1.Points.String() != "100,650 300,650 300,780 100,780" {
		t.Fatalf("points: %q", b1.Points.String())
	}
	// siblings and order untouched
	if len(after.Elements) != len(before.Elements) {
		t.Fatalf("element count changed")
	}
	for i := range before.Elements {
		if after.Elements[i].ID != before.Elements[i].ID {
			t.Fatalf("order changed at %d", i)
		}
		if after.Elements[i].ID != "B-1" && after.Elements[i].Points.String() != before.Elements[i].Points.String() {
			t.Fatalf("sibling %s changed", after.Elements[i].ID)
		}
	}
	if got := after.UnassignedPlots(); len(got) != 1 || got[0].ID != "B-2" {
		t.Fatalf("unassigned after attach: %+v", got)
	}
}

func TestAttachErrors(t *testing.T) {
	ctx := context.Background()
	r, _ := demo(t)
	sh := box(0, 0, 20, 20)
	if _, err := r.AttachToPlot(ctx, domain.DemoLayoutID, sh, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("no selection: got %v", err)
	}
	if _, err := r.AttachToPlot(ctx, domain.DemoLayoutID, sh, "A-1"); !errors.Is(err, ErrNotUnassigned) {
		t.Fatalf("drawn plot: got %v", err)
	}
	if _, err := r.AttachToPlot(ctx, domain.DemoLayoutID, sh, "Q-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing plot: got %v", err)
	}
	_, _ = r.AttachToPlot(ctx, domain.DemoLayoutID, sh, "B-1")
	_, _ = r.AttachToPlot(ctx, domain.DemoLayoutID, box(30, 30, 60, 60), "B-2")
	if _, err := r.AttachToPlot(ctx, domain.DemoLayoutID, sh, "B-1"); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("no candidates: got %v", err)
	}
}

func TestUnassignedPlots(t *testing.T) {
	r, _ := demo(t)
	got, err := r.UnassignedPlots(context.Background(), domain.DemoLayoutID)
	if err != nil {
		t.Fatalf("unassigned: %v", err)
	}
	if len(got) != 2 || got[0].ID != "B-1" || got[1].ID != "B-2" {
		t.Fatalf("got %+v", got)
	}
}

func TestCreateInfra(t *testing.T) {
	ctx := context.Background()
	r, s := demo(t)
	if _, err := r.CreateInfra(ctx, domain.DemoLayoutID, box(0, 0, 50, 50), InfraInput{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing name: got %v", err)
	}
	res, err := r.CreateInfra(ctx, domain.DemoLayoutID, box(0, 0, 50, 50), InfraInput{Name: "Water Tank"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.ID) != 36 || res.ID[14] != '7' {
		t.Fatalf("expected a UUIDv7 id, got %q", res.ID)
	}
	e, ok := read(t, s).Element(res.ID)
	if !ok || e.Infra.Category != domain.CategoryRoad || e.Infra.Name != "Water Tank" {
		t.Fatalf("infra: %+v", e.Infra)
	}
}

func TestInfraIDsAreOrdered(t *testing.T) {
	ctx := context.Background()
	r, _ := demo(t)
	a, _ := r.CreateInfra(ctx, domain.DemoLayoutID, box(0, 0, 50, 50), InfraInput{Name: "Gate", Category: domain.CategoryAmenity})
	b, _ := r.CreateInfra(ctx, domain.DemoLayoutID, box(0, 0, 50, 50), InfraInput{Name: "Gate 2", Category: domain.CategoryAmenity})
	if !(a.ID < b.ID) {
		t.Fatalf("ids not time-ordered: %s >= %s", a.ID, b.ID)
	}
}

func TestUpdateElement(t *testing.T) {
	ctx := context.Background()
	r, s := demo(t)
	_, err := r.UpdateElement(ctx, domain.DemoLayoutID, "A-3", func(e *domain.Element) error {
		e.Plot.CustomerEmail = "not-an-email"
		return nil
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: got %v", err)
	}
	if _, err := r.UpdateElement(ctx, domain.DemoLayoutID, "A-3", func(e *domain.Element) error {
		e.ID = "A-33"
		return nil
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("id change: got %v", err)
	}
	if _, err := r.UpdateElement(ctx, domain.DemoLayoutID, "nope", func(*domain.Element) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}
	boom := errors.New("boom")
	if _, err := r.UpdateElement(ctx, domain.DemoLayoutID, "A-3", func(*domain.Element) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("mutate error: got %v", err)
	}
	res, err := r.UpdateElement(ctx, domain.DemoLayoutID, "A-3", func(e *domain.Element) error {
		e.Plot.Size = "40x60"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Before.Plot.Size != "30x40" || res.After.Plot.Size != "40x60" {
		t.Fatalf("images: before %q after %q", res.Before.Plot.Size, res.After.Plot.Size)
	}
	e, _ := read(t, s).Element("A-3")
	if e.Plot.Size != "40x60" {
		t.Fatalf("stored size: %q", e.Plot.Size)
	}
}

func TestUpdateKeepsMalformedGeometry(t *testing.T) {
	ctx := context.Background()
	var l domain.Layout
	doc := `{"id":"site","name":"Site","elements":[
		{"id":"A-1","type":"plot","status":"booked","customerName":"Asha","points":"1,2 oops"},
		{"id":"A-2","type":"plot","status":"open","points":"0,0 10,0 10,10"}]}`
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	s := store.NewMemory(l)
	r := New(s)

	res, err := r.UpdateElement(ctx, "site", "A-1", func(e *domain.Element) error {
		e.Plot.Status = domain.StatusSold
		return nil
	})
	if err != nil {
		t.Fatalf("status edit on malformed plot: %v", err)
	}
	if res.After.Plot.Status != domain.StatusSold || res.After.Points.String() != "1,2 oops" {
		t.Fatalf("after = %+v points %q", res.After.Plot, res.After.Points.String())
	}
	got, err := s.ReadLayout(ctx, "site")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if el, _ := got.Element("A-1"); el.Plot.CustomerName != "Asha" || el.Points.String() != "1,2 oops" {
		t.Fatalf("stored A-1 = %+v points %q", el.Plot, el.Points.String())
	}

	_, err = r.UpdateElement(ctx, "site", "A-2", func(e *domain.Element) error {
		e.Points = domain.ParseGeometry("5,5 nope")
		return nil
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("writing new malformed geometry: err = %v", err)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	r, s := demo(t)
	res, err := r.DeleteElement(ctx, domain.DemoLayoutID, "A-2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := read(t, s).Element("A-2"); ok {
		t.Fatalf("A-2 still present")
	}
	if _, err := r.DeleteElement(ctx, domain.DemoLayoutID, "A-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
	if _, err := r.Restore(ctx, domain.DemoLayoutID, res.Before, "A-2"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	e, ok := read(t, s).Element("A-2")
	if !ok || e.Plot.CustomerName != "Customer 2" {
		t.Fatalf("restored: %+v", e)
	}

	created, _ := r.CreatePlot(ctx, domain.DemoLayoutID, box(0, 0, 10, 10), PlotInput{ID: "N-1"})
	if _, err := r.Restore(ctx, domain.DemoLayoutID, created.Before, "N-1"); err != nil {
		t.Fatalf("undo create: %v", err)
	}
	if _, ok := read(t, s).Element("N-1"); ok {
		t.Fatalf("N-1 should be gone")
	}
}

func TestPregenerate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(domain.Layout{ID: "p", Name: "P"})
	r := New(s)
	ids, v, err := r.Pregenerate(ctx, "p", 3, "C-")
	if err != nil {
		t.Fatalf("pregen: %v", err)
	}
	if strings.Join(ids, ",") != "C-1,C-2,C-3" || v != 2 {
		t.Fatalf("ids %v version %d", ids, v)
	}
	l, _ := s.ReadLayout(ctx, "p")
	if len(l.UnassignedPlots()) != 3 {
		t.Fatalf("unassigned: %d", len(l.UnassignedPlots()))
	}
	if _, _, err := r.Pregenerate(ctx, "p", 5, "C-"); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("overlap: got %v", err)
	}
	if _, _, err := r.Pregenerate(ctx, "p", 0, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero: got %v", err)
	}
	ids, _, _ = r.Pregenerate(ctx, "p", 2, "")
	if strings.Join(ids, ",") != "1,2" {
		t.Fatalf("no prefix: %v", ids)
	}
}

func TestMissingLayout(t *testing.T) {
	r, _ := demo(t)
	if _, err := r.CreatePlot(context.Background(), "nope", box(0, 0, 10, 10), PlotInput{ID: "X"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

// racingStore lets another client write between our read and our write.
type racingStore struct {
	store.DocumentStore
	once  sync.Once
	other func()
}

func (s *racingStore) WriteLayoutElements(ctx context.Context, id string, els []domain.Element, v int64) (int64, error) {
	s.once.Do(s.other)
	return s.DocumentStore.WriteLayoutElements(ctx, id, els, v)
}

func TestConflictReMergesConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewDemo()
	other := New(mem)
	rs := &racingStore{DocumentStore: mem}
	rs.other = func() {
		if _, err := other.UpdateElement(ctx, domain.DemoLayoutID, "A-4", func(e *domain.Element) error {
			e.Plot.CustomerName = "Ravi"
			return nil
		}); err != nil {
			t.Errorf("other client: %v", err)
		}
	}
	r := New(rs)
	if _, err := r.AttachToPlot(ctx, domain.DemoLayoutID, box(0, 650, 90, 790), "B-2"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	l := read(t, mem)
	a4, _ := l.Element("A-4")
	b2, _ := l.Element("B-2")
	if a4.Plot.CustomerName != "Ravi" {
		t.Fatalf("concurrent edit lost")
	}
	if b2.Unassigned() {
		t.Fatalf("attach lost")
	}
}

// conflictStore always reports a conflict.
type conflictStore struct {
	store.DocumentStore
	writes int
}

func (s *conflictStore) WriteLayoutElements(context.Context, string, []domain.Element, int64) (int64, error) {
	s.writes++
	return 0, store.ErrConflict
}

func TestConflictRetriesAreBounded(t *testing.T) {
	cs := &conflictStore{DocumentStore: store.NewDemo()}
	r := New(cs, WithRetries(2))
	_, err := r.DeleteElement(context.Background(), domain.DemoLayoutID, "A-1")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("got %v", err)
	}
	if cs.writes != 3 {
		t.Fatalf("writes: got %d want 3", cs.writes)
	}
	l := read(t, cs.DocumentStore)
	if _, ok := l.Element("A-1"); !ok {
		t.Fatalf("failed delete changed the store")
	}
}
