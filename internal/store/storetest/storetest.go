/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storetest holds the behaviour every DocumentStore must show.
// Backend tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"nexusmap/internal/domain"
	"nexusmap/internal/store"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.DocumentStore

func Run(t *testing.T, open Factory) {
	t.Run("CreateRead", func(t *testing.T) { testCreateRead(t, open(t)) })
	t.Run("Missing", func(t *testing.T) { testMissing(t, open(t)) })
	t.Run("CreateTwice", func(t *testing.T) { testCreateTwice(t, open(t)) })
	t.Run("WriteElements", func(t *testing.T) { testWriteElements(t, open(t)) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, open(t)) })
	t.Run("Fields", func(t *testing.T) { testFields(t, open(t)) })
	t.Run("ListDelete", func(t *testing.T) { testListDelete(t, open(t)) })
	t.Run("RawElements", func(t *testing.T) { testRawElements(t, open(t)) })
	t.Run("ConcurrentWriters", func(t *testing.T) { testConcurrentWriters(t, open(t)) })
}

func seed(t *testing.T, s store.DocumentStore) domain.Layout {
	t.Helper()
	l, err := s.CreateLayout(context.Background(), domain.DemoLayout())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return l
}

func testCreateRead(t *testing.T, s store.DocumentStore) {
	created := seed(t, s)
	if created.Version != 1 {
		t.Fatalf("created version: got %d want 1", created.Version)
	}
	got, err := s.ReadLayout(context.Background(), domain.DemoLayoutID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := domain.DemoLayout()
	if got.Name != want.Name || len(got.Elements) != len(want.Elements) {
		t.Fatalf("read back: got %q with %d elements", got.Name, len(got.Elements))
	}
	for i := range want.Elements {
		if got.Elements[i].ID != want.Elements[i].ID {
			t.Fatalf("element %d: got %q want %q", i, got.Elements[i].ID, want.Elements[i].ID)
		}
		if got.Elements[i].Points.String() != want.Elements[i].Points.String() {
			t.Fatalf("element %d points: got %q", i, got.Elements[i].Points.String())
		}
	}
	a1, _ := got.Element("A-1")
	if a1.Plot == nil || a1.Plot.CustomerName != want.Elements[0].Plot.CustomerName {
		t.Fatalf("plot payload lost: %+v", a1.Plot)
	}
	// reads are snapshots
	got.Elements[0].ID = "mutated"
	again, _ := s.ReadLayout(context.Background(), domain.DemoLayoutID)
	if again.Elements[0].ID == "mutated" {
		t.Fatalf("read returned shared state")
	}
}

func testMissing(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	if _, err := s.ReadLayout(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("read missing: got %v", err)
	}
	if _, err := s.WriteLayoutElements(ctx, "nope", nil, store.AnyVersion); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("write missing: got %v", err)
	}
	if err := s.WriteLayoutField(ctx, "nope", store.FieldName, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("field missing: got %v", err)
	}
	if err := s.DeleteLayout(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete missing: got %v", err)
	}
}

func testCreateTwice(t *testing.T, s store.DocumentStore) {
	seed(t, s)
	if _, err := s.CreateLayout(context.Background(), domain.DemoLayout()); !errors.Is(err, store.ErrExists) {
		t.Fatalf("second create: got %v", err)
	}
	if _, err := s.CreateLayout(context.Background(), domain.Layout{ID: "../etc"}); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("bad id: got %v", err)
	}
}

func testWriteElements(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	l := seed(t, s)
	els := append(l.Elements, domain.NewPlot("C-1", domain.ParseGeometry("0,0 10,0 10,10")))
	v, err := s.WriteLayoutElements(ctx, l.ID, els, l.Version)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if v != l.Version+1 {
		t.Fatalf("version: got %d want %d", v, l.Version+1)
	}
	got, _ := s.ReadLayout(ctx, l.ID)
	if got.Version != v || got.Index("C-1") != len(els)-1 {
		t.Fatalf("read after write: version %d index %d", got.Version, got.Index("C-1"))
	}
	if got.Name != l.Name {
		t.Fatalf("name changed by element write: %q", got.Name)
	}
}

func testCompareAndSwap(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	l := seed(t, s)
	if _, err := s.WriteLayoutElements(ctx, l.ID, l.Elements, l.Version); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := s.WriteLayoutElements(ctx, l.ID, nil, l.Version); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("stale write: got %v", err)
	}
	got, _ := s.ReadLayout(ctx, l.ID)
	if len(got.Elements) != len(l.Elements) {
		t.Fatalf("stale write changed data: %d elements", len(got.Elements))
	}
	if _, err := s.WriteLayoutElements(ctx, l.ID, got.Elements[:1], store.AnyVersion); err != nil {
		t.Fatalf("unconditional write: %v", err)
	}
}

func testFields(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	l := seed(t, s)
	if err := s.WriteLayoutField(ctx, l.ID, store.FieldAddress, "Survey 42, Hosur Road"); err != nil {
		t.Fatalf("write address: %v", err)
	}
	if err := s.WriteLayoutField(ctx, l.ID, store.FieldImageWidth, "2400"); err != nil {
		t.Fatalf("write width: %v", err)
	}
	got, err := s.ReadLayoutField(ctx, l.ID, store.FieldAddress)
	if err != nil || got != "Survey 42, Hosur Road" {
		t.Fatalf("address: got %q, %v", got, err)
	}
	if w, _ := s.ReadLayoutField(ctx, l.ID, store.FieldImageWidth); w != "2400" {
		t.Fatalf("width: got %q", w)
	}
	if err := s.WriteLayoutField(ctx, l.ID, store.FieldImageHeight, "tall"); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("bad height: got %v", err)
	}
	if _, err := s.ReadLayoutField(ctx, l.ID, "owner"); !errors.Is(err, store.ErrUnknownField) {
		t.Fatalf("unknown field: got %v", err)
	}
	after, _ := s.ReadLayout(ctx, l.ID)
	if after.Version != l.Version+2 {
		t.Fatalf("field writes should bump version: got %d", after.Version)
	}
	if len(after.Elements) != len(l.Elements) {
		t.Fatalf("field write touched elements")
	}
}

func testListDelete(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	seed(t, s)
	if _, err := s.CreateLayout(ctx, domain.Layout{ID: "alpha", Name: "Alpha Enclave"}); err != nil {
		t.Fatalf("create alpha: %v", err)
	}
	list, err := s.ListLayouts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "alpha" || list[1].ID != domain.DemoLayoutID {
		t.Fatalf("list order: %+v", list)
	}
	if list[1].Elements != len(domain.DemoLayout().Elements) {
		t.Fatalf("summary elements: got %d", list[1].Elements)
	}
	if err := s.DeleteLayout(ctx, "alpha"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = s.ListLayouts(ctx)
	if len(list) != 1 {
		t.Fatalf("after delete: %+v", list)
	}
}

func testRawElements(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	var l domain.Layout
	doc := `{"id":"legacy","name":"Legacy","elements":[
		{"id":"X-1","type":"plot","status":"open","points":"1,2 oops"},
		{"id":"K-1","type":"kiosk","points":"0,0 5,0 5,5","color":"red"}]}`
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := s.CreateLayout(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.ReadLayout(ctx, "legacy")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Elements[0].Points.String() != "1,2 oops" || !got.Elements[0].Points.Malformed() {
		t.Fatalf("malformed points not kept: %q", got.Elements[0].Points.String())
	}
	b, _ := json.Marshal(got.Elements[1])
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["color"] != "red" || m["type"] != "kiosk" {
		t.Fatalf("unknown element not preserved: %s", b)
	}
}

func testConcurrentWriters(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	l := seed(t, s)
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("W-%d", i)
			for attempt := 0; attempt < 100; attempt++ {
				cur, err := s.ReadLayout(ctx, l.ID)
				if err != nil {
					errs <- err
					return
				}
				els := append(cur.Elements, domain.NewPlot(id, domain.Geometry{}))
				if _, err := s.WriteLayoutElements(ctx, l.ID, els, cur.Version); err == nil {
					return
				} else if !errors.Is(err, store.ErrConflict) {
					errs <- err
					return
				}
			}
			errs <- fmt.Errorf("writer %d gave up", i)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("writer: %v", err)
	}
	got, _ := s.ReadLayout(ctx, l.ID)
	if len(got.Elements) != len(l.Elements)+writers {
		t.Fatalf("lost updates: got %d elements want %d", len(got.Elements), len(l.Elements)+writers)
	}
}
