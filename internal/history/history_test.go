/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"testing"
	"time"

	"nexusmap/internal/domain"
)

func plot(id, size string) *domain.Element {
	e := domain.NewPlot(id, domain.Geometry{})
	e.Plot.Size = size
	return &e
}

func TestUndoRedoPerLayout(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Unix(1000, 0)
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "update", Before: plot("A-1", "1"), After: plot("A-1", "2"), TS: t0})
	m.Push(Entry{LayoutID: "b", ElementID: "B-1", Op: "create", After: plot("B-1", ""), TS: t0.Add(time.Second)})

	e, ok := m.Undo("a")
	if !ok || e.ElementID != "A-1" || e.Before.Plot.Size != "1" {
		t.Fatalf("undo a: %+v %v", e, ok)
	}
	if _, ok := m.Undo("a"); ok {
		t.Fatalf("layout a should be empty")
	}
	if !m.CanUndo("b") || !m.CanRedo("a") {
		t.Fatalf("stacks mixed between layouts")
	}
	r, ok := m.Redo("a")
	if !ok || r.After.Plot.Size != "2" {
		t.Fatalf("redo: %+v", r)
	}
	b, _ := m.Undo("b")
	if b.Before != nil {
		t.Fatalf("create entry has before-image")
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "delete", Before: plot("A-1", "")})
	m.Undo("a")
	m.Push(Entry{LayoutID: "a", ElementID: "A-2", Op: "delete", Before: plot("A-2", "")})
	if m.CanRedo("a") {
		t.Fatalf("redo survived a new push")
	}
}

func TestCoalesceKeepsOldestBefore(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Second})
	t0 := time.Unix(1000, 0)
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "update", Before: plot("A-1", "3"), After: plot("A-1", "30"), TS: t0})
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "update", Before: plot("A-1", "30"), After: plot("A-1", "30x"), TS: t0.Add(200 * time.Millisecond)})
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "update", Before: plot("A-1", "30x"), After: plot("A-1", "30x40"), TS: t0.Add(400 * time.Millisecond)})
	_, _, n := m.Stats()
	if n != 1 {
		t.Fatalf("entries: got %d want 1", n)
	}
	e, _ := m.Undo("a")
	if e.Before.Plot.Size != "3" || e.After.Plot.Size != "30x40" {
		t.Fatalf("coalesced images: %q -> %q", e.Before.Plot.Size, e.After.Plot.Size)
	}
	// a different element is never folded in
	m.Push(Entry{LayoutID: "a", ElementID: "A-2", Op: "update", Before: plot("A-2", ""), After: plot("A-2", "x"), TS: t0.Add(500 * time.Millisecond)})
	m.Push(Entry{LayoutID: "a", ElementID: "A-3", Op: "update", Before: plot("A-3", ""), After: plot("A-3", "x"), TS: t0.Add(600 * time.Millisecond)})
	if _, _, n := m.Stats(); n != 2 {
		t.Fatalf("entries: got %d want 2", n)
	}
}

func TestDepthCap(t *testing.T) {
	m := NewManager(Config{MaxPerLayout: 2})
	for _, id := range []string{"1", "2", "3"} {
		m.Push(Entry{LayoutID: "a", ElementID: id, Op: "delete", Before: plot(id, "")})
	}
	e1, _ := m.Undo("a")
	e2, _ := m.Undo("a")
	if e1.ElementID != "3" || e2.ElementID != "2" {
		t.Fatalf("kept %s, %s", e1.ElementID, e2.ElementID)
	}
	if m.CanUndo("a") {
		t.Fatalf("oldest entry should be pruned")
	}
}

func TestMemoryCapPrunesOldestAcrossLayouts(t *testing.T) {
	one := imageSize(plot("X", ""))
	m := NewManager(Config{MaxBytes: 2 * one})
	t0 := time.Unix(1000, 0)
	m.Push(Entry{LayoutID: "a", ElementID: "X", Op: "delete", Before: plot("X", ""), TS: t0})
	m.Push(Entry{LayoutID: "b", ElementID: "X", Op: "delete", Before: plot("X", ""), TS: t0.Add(time.Second)})
	m.Push(Entry{LayoutID: "b", ElementID: "X", Op: "delete", Before: plot("X", ""), TS: t0.Add(2 * time.Second)})
	if m.CanUndo("a") {
		t.Fatalf("oldest layout entry should be pruned")
	}
	total, layouts, entries := m.Stats()
	if total != 2*one || layouts != 1 || entries != 2 {
		t.Fatalf("stats: %d bytes %d layouts %d entries", total, layouts, entries)
	}
}

func TestRequeueAndClear(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "delete", Before: plot("A-1", "")})
	e, _ := m.Undo("a")
	m.Requeue(e)
	if !m.CanUndo("a") || m.CanRedo("a") {
		t.Fatalf("requeue did not restore the undo entry")
	}
	m.Clear("a")
	if total, _, _ := m.Stats(); total != 0 || m.CanUndo("a") {
		t.Fatalf("clear left %d bytes", total)
	}
}

func TestImagesAreCopied(t *testing.T) {
	m := NewManager(Config{})
	b := plot("A-1", "before")
	m.Push(Entry{LayoutID: "a", ElementID: "A-1", Op: "update", Before: b, After: plot("A-1", "after")})
	b.Plot.Size = "mutated"
	e, _ := m.Undo("a")
	if e.Before.Plot.Size != "before" {
		t.Fatalf("entry shares caller state")
	}
	if inv := e.Inverse(); inv.Before.Plot.Size != "after" {
		t.Fatalf("inverse: %q", inv.Before.Plot.Size)
	}
}
