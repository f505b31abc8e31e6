/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"testing"

	"nexusmap/internal/domain"
	"nexusmap/internal/vector"
)

func TestFrameWholeBlueprint(t *testing.T) {
	s := Frame(domain.DemoLayout(), FrameOptions{})
	if s.Size != (vector.Size{W: 1200, H: 800}) {
		t.Fatalf("size = %+v", s.Size)
	}
	if id, ok := HitTest(s, vector.Pt{X: 200, Y: 200}); !ok || id != "A-1" {
		t.Fatalf("hit = %q %v", id, ok)
	}
}

func TestFrameFocus(t *testing.T) {
	s := Frame(domain.DemoLayout(), FrameOptions{Width: 800, Height: 600, FocusID: "A-1", FocusScale: 2})
	// A-1 center (200,200) lands at the image center
	if id, ok := HitTest(s, vector.Pt{X: 400, Y: 300}); !ok || id != "A-1" {
		t.Fatalf("hit at center = %q %v", id, ok)
	}
	if id, ok := HitTest(s, vector.Pt{X: 5, Y: 5}); ok {
		t.Fatalf("corner hit %q, A-1 spans (200,100)-(600,500) on screen", id)
	}
}

func TestFrameCapsSize(t *testing.T) {
	s := Frame(domain.DemoLayout(), FrameOptions{Width: 20000, Height: 100})
	if s.Size.W != MaxFrameSide || s.Size.H != 100 {
		t.Fatalf("size = %+v", s.Size)
	}
}
