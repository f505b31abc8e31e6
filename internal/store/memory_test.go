/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store_test

import (
	"context"
	"testing"

	"nexusmap/internal/domain"
	"nexusmap/internal/store"
	"nexusmap/internal/store/storetest"
)

func TestMemoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore { return store.NewMemory() })
}

func TestDemoSeed(t *testing.T) {
	s := store.NewDemo()
	l, err := s.ReadLayout(context.Background(), domain.DemoLayoutID)
	if err != nil {
		t.Fatalf("read demo: %v", err)
	}
	if len(l.UnassignedPlots()) != 2 {
		t.Fatalf("demo unassigned: got %d", len(l.UnassignedPlots()))
	}
}

func TestCancelledContext(t *testing.T) {
	s := store.NewDemo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadLayout(ctx, domain.DemoLayoutID); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestCheckID(t *testing.T) {
	for _, id := range []string{"demo", "Phase-2_b", "v1.2"} {
		if err := store.CheckID(id); err != nil {
			t.Fatalf("%q: %v", id, err)
		}
	}
	for _, id := range []string{"", "a/b", "..", "sp ace"} {
		if err := store.CheckID(id); err == nil {
			t.Fatalf("%q accepted", id)
		}
	}
}
