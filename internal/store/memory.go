/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nexusmap/internal/domain"
)

// Memory keeps layouts in process memory. It backs tests and the demo data
// mode; nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	layouts map[string]domain.Layout
	now     func() time.Time
}

// NewMemory returns a store pre-populated with seed layouts.
func NewMemory(seed ...domain.Layout) *Memory {
	m := &Memory{layouts: make(map[string]domain.Layout), now: time.Now}
	for _, l := range seed {
		if _, err := m.CreateLayout(context.Background(), l); err != nil {
			panic(fmt.Sprintf("seed layout %q: %v", l.ID, err))
		}
	}
	return m
}

// NewDemo returns a memory store holding the demo layout.
func NewDemo() *Memory { return NewMemory(domain.DemoLayout()) }

func (m *Memory) ReadLayout(ctx context.Context, id string) (domain.Layout, error) {
	if err := ctx.Err(); err != nil {
		return domain.Layout{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layouts[id]
	if !ok {
		return domain.Layout{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.Clone(), nil
}

func (m *Memory) WriteLayoutElements(ctx context.Context, id string, elements []domain.Element, expectVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layouts[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := CheckVersion(id, l.Version, expectVersion); err != nil {
		return 0, err
	}
	l.Elements = domain.CloneElements(elements)
	if l.Elements == nil {
		l.Elements = []domain.Element{}
	}
	l.Version++
	l.UpdatedAt = m.now().UTC()
	m.layouts[id] = l
	return l.Version, nil
}

func (m *Memory) ReadLayoutField(ctx context.Context, id, field string) (string, error) {
	l, err := m.ReadLayout(ctx, id)
	if err != nil {
		return "", err
	}
	return GetField(l, field)
}

func (m *Memory) WriteLayoutField(ctx context.Context, id, field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layouts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := SetField(&l, field, value); err != nil {
		return err
	}
	l.Version++
	l.UpdatedAt = m.now().UTC()
	m.layouts[id] = l
	return nil
}

func (m *Memory) CreateLayout(ctx context.Context, l domain.Layout) (domain.Layout, error) {
	if err := ctx.Err(); err != nil {
		return domain.Layout{}, err
	}
	l, err := PrepareNew(l)
	if err != nil {
		return domain.Layout{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.layouts[l.ID]; exists {
		return domain.Layout{}, fmt.Errorf("%w: %s", ErrExists, l.ID)
	}
	l.Version = 1
	l.UpdatedAt = m.now().UTC()
	m.layouts[l.ID] = l
	return l.Clone(), nil
}

func (m *Memory) DeleteLayout(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layouts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.layouts, id)
	return nil
}

func (m *Memory) ListLayouts(ctx context.Context) ([]domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]domain.Summary, 0, len(m.layouts))
	for _, l := range m.layouts {
		out = append(out, l.Summary())
	}
	m.mu.RUnlock()
	SortSummaries(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// SortSummaries orders a listing by name, then id.
func SortSummaries(s []domain.Summary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID < s[j].ID
	})
}
