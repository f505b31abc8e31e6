/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"math"
	"testing"

	"nexusmap/internal/domain"
	"nexusmap/internal/store"
	"nexusmap/internal/telemetry"
	"nexusmap/internal/vector"
)

func TestShareLinkPath(t *testing.T) {
	l := ShareLink{LayoutID: "demo", FocusID: "A-12", Public: true, ShowPrice: true}
	if got, want := l.Path(), "/view/demo?plot=A-12&public=1&price=1"; got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
	if got := (ShareLink{LayoutID: "demo"}).Path(); got != "/view/demo" {
		t.Fatalf("bare Path = %q", got)
	}
	if got := (ShareLink{LayoutID: "demo", ShowPrice: true}).URL("https://maps.example.com/"); got != "https://maps.example.com/view/demo?price=1" {
		t.Fatalf("URL = %q", got)
	}
}

func TestShareLinkRoundTrip(t *testing.T) {
	in := ShareLink{LayoutID: "green-meadows", FocusID: "B 7/1", Public: true}.Sign("s3cret")
	out, err := ParseShareLink("https://maps.example.com" + in.Path())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
	if err := out.Verify("s3cret"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestShareLinkTamper(t *testing.T) {
	signed := ShareLink{LayoutID: "demo", FocusID: "A-1"}.Sign("s3cret")
	tampered := signed
	tampered.ShowPrice = true
	if err := tampered.Verify("s3cret"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered verify err = %v", err)
	}
	if err := signed.Verify("other"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret err = %v", err)
	}
	unsigned := ShareLink{LayoutID: "demo"}
	if err := unsigned.Verify("s3cret"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("unsigned verify err = %v", err)
	}
	if err := unsigned.Verify(""); err != nil {
		t.Fatalf("no secret should accept: %v", err)
	}
}

func TestParseShareLinkRejects(t *testing.T) {
	for _, raw := range []string{"", "/view/", "/edit/demo", "/view/a/b", "%zz"} {
		if _, err := ParseShareLink(raw); !errors.Is(err, ErrBadShareLink) {
			t.Fatalf("%q: err = %v, want ErrBadShareLink", raw, err)
		}
	}
}

func TestOpenSharedFocusesElement(t *testing.T) {
	rec := &recorder{}
	ed := New(store.NewDemo(), Options{Events: rec})
	ed.SetViewportSize(800, 600)
	link, err := ParseShareLink("/view/demo?plot=A-1&price=1")
	if err != nil {
		t.Fatal(err)
	}
	if err := ed.OpenShared(context.Background(), link); err != nil {
		t.Fatalf("open shared: %v", err)
	}
	if ed.SelectedID() != "A-1" || ed.Mode() != ModeView {
		t.Fatalf("selected %q mode %v", ed.SelectedID(), ed.Mode())
	}
	st := ed.Viewport().State()
	// A-1 spans (100,100)-(300,300); its center lands mid-viewport at 2.5x
	if st.Scale != 2.5 || math.Abs(st.OffsetX-(400-500)) > 1e-9 || math.Abs(st.OffsetY-(300-500)) > 1e-9 {
		t.Fatalf("viewport = %+v", st)
	}
	center := ed.Viewport().ModelToScreen(vector.Pt{X: 200, Y: 200})
	if center != (vector.Pt{X: 400, Y: 300}) {
		t.Fatalf("center on screen = %+v", center)
	}
	if len(rec.names) != 1 || rec.names[0] != telemetry.EventShareOpened {
		t.Fatalf("events = %v", rec.names)
	}
	back, _ := ed.ShareLink(false)
	if back.Path() != "/view/demo?plot=A-1&price=1" {
		t.Fatalf("share link = %q", back.Path())
	}
}

func TestOpenSharedUnknownFocusFramesLayout(t *testing.T) {
	ed := New(store.NewDemo(), Options{})
	if err := ed.OpenShared(context.Background(), ShareLink{LayoutID: domain.DemoLayoutID, FocusID: "B-1"}); err != nil {
		t.Fatal(err)
	}
	// B-1 is known but undrawn: selected, viewport left framing the layout
	if ed.SelectedID() != "B-1" || ed.Viewport().Scale() == 2.5 {
		t.Fatalf("selected %q scale %v", ed.SelectedID(), ed.Viewport().Scale())
	}
	err := ed.OpenShared(context.Background(), ShareLink{LayoutID: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing layout err = %v", err)
	}
}
