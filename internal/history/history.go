/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps per-layout undo and redo stacks of committed element
// mutations. Each entry holds the element's before- and after-image so a
// step can be reverted through a merge-by-id write without touching
// unrelated elements.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"nexusmap/internal/domain"
)

// Entry is one committed mutation of a single element. Before is nil for a
// create, After is nil for a delete.
type Entry struct {
	LayoutID  string
	ElementID string
	Op        string
	Before    *domain.Element
	After     *domain.Element
	TS        time.Time

	size int
}

// Inverse returns the entry that undoes e.
func (e Entry) Inverse() Entry {
	e.Before, e.After = e.After, e.Before
	return e
}

// Config caps memory and depth.
type Config struct {
	// MaxBytes is a soft cap on the encoded size of all images kept.
	MaxBytes int
	// MaxPerLayout limits the undo depth per layout (0 means unlimited).
	MaxPerLayout int
	// MinInterval coalesces successive edits of the same element, such as
	// typing into one inspector field.
	MinInterval time.Duration
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	undo map[string][]Entry
	redo map[string][]Entry

	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 * 1024 * 1024
	}
	if cfg.MaxPerLayout <= 0 {
		cfg.MaxPerLayout = 100
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Entry), redo: make(map[string][]Entry)}
}

func imageSize(e *domain.Element) int {
	if e == nil {
		return 0
	}
	b, err := json.Marshal(e)
	if err != nil {
		return 0
	}
	return len(b)
}

func cloneImage(e *domain.Element) *domain.Element {
	if e == nil {
		return nil
	}
	c := e.Clone()
	return &c
}

// Push records a committed mutation and clears the layout's redo stack. An
// update of the same element within MinInterval of the previous entry is
// folded into it, keeping the older before-image.
func (m *Manager) Push(e Entry) {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	e.Before, e.After = cloneImage(e.Before), cloneImage(e.After)
	e.size = imageSize(e.Before) + imageSize(e.After)

	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[e.LayoutID]
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if m.cfg.MinInterval > 0 && last.ElementID == e.ElementID && last.Op == e.Op &&
			last.Before != nil && e.Before != nil && e.After != nil &&
			e.TS.Sub(last.TS) < m.cfg.MinInterval {
			merged := e
			merged.Before = last.Before
			merged.size = imageSize(merged.Before) + imageSize(merged.After)
			m.totalBytes += merged.size - last.size
			stack[n-1] = merged
			m.clearRedoLocked(e.LayoutID)
			m.enforceCapsLocked(e.LayoutID)
			return
		}
	}
	m.undo[e.LayoutID] = append(stack, e)
	m.totalBytes += e.size
	m.clearRedoLocked(e.LayoutID)
	m.enforceCapsLocked(e.LayoutID)
}

// Undo pops the newest entry of a layout and moves it to the redo stack.
func (m *Manager) Undo(layoutID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[layoutID]
	if len(stack) == 0 {
		return Entry{}, false
	}
	e := stack[len(stack)-1]
	m.undo[layoutID] = stack[:len(stack)-1]
	m.redo[layoutID] = append(m.redo[layoutID], e)
	return e, true
}

// Redo pops the newest undone entry and moves it back to the undo stack.
func (m *Manager) Redo(layoutID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[layoutID]
	if len(r) == 0 {
		return Entry{}, false
	}
	e := r[len(r)-1]
	m.redo[layoutID] = r[:len(r)-1]
	m.undo[layoutID] = append(m.undo[layoutID], e)
	m.enforceCapsLocked(layoutID)
	return e, true
}

// Requeue puts an entry back after a failed undo so it can be retried.
func (m *Manager) Requeue(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[e.LayoutID]
	if n := len(r); n > 0 && r[n-1].TS.Equal(e.TS) && r[n-1].ElementID == e.ElementID {
		m.redo[e.LayoutID] = r[:n-1]
	}
	m.undo[e.LayoutID] = append(m.undo[e.LayoutID], e)
}

// CanUndo reports whether the layout has entries to undo.
func (m *Manager) CanUndo(layoutID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[layoutID]) > 0
}

// CanRedo reports whether the layout has undone entries.
func (m *Manager) CanRedo(layoutID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[layoutID]) > 0
}

// Clear drops both stacks of a layout.
func (m *Manager) Clear(layoutID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.undo[layoutID] {
		m.totalBytes -= e.size
	}
	for _, e := range m.redo[layoutID] {
		m.totalBytes -= e.size
	}
	delete(m.undo, layoutID)
	delete(m.redo, layoutID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, layouts int, entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	layouts = len(m.undo)
	for _, v := range m.undo {
		entries += len(v)
	}
	return m.totalBytes, layouts, entries
}

func (m *Manager) clearRedoLocked(layoutID string) {
	for _, e := range m.redo[layoutID] {
		m.totalBytes -= e.size
	}
	delete(m.redo, layoutID)
}

func (m *Manager) enforceCapsLocked(layoutID string) {
	if stack := m.undo[layoutID]; len(stack) > m.cfg.MaxPerLayout {
		drop := len(stack) - m.cfg.MaxPerLayout
		for i := 0; i < drop; i++ {
			m.totalBytes -= stack[i].size
		}
		m.undo[layoutID] = append([]Entry(nil), stack[drop:]...)
	}
	// global cap: prune the oldest entry across all layouts
	for m.totalBytes > m.cfg.MaxBytes {
		oldest := ""
		var oldestTS time.Time
		for id, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldest == "" || stack[0].TS.Before(oldestTS) {
				oldest, oldestTS = id, stack[0].TS
			}
		}
		if oldest == "" {
			break
		}
		stack := m.undo[oldest]
		m.totalBytes -= stack[0].size
		m.undo[oldest] = stack[1:]
		if len(m.undo[oldest]) == 0 {
			delete(m.undo, oldest)
		}
	}
}
