/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"nexusmap/internal/vector"
	"nexusmap/internal/viewport"
)

func TestWriteSVG(t *testing.T) {
	l := testLayout(t)
	l.BackgroundImage = "https://example.test/plan.png?a=1&b=2"
	s := Render(Input{Layout: l, View: viewport.Home, Size: vector.Size{W: 800, H: 600}, SelectedID: "A-1"})
	var buf bytes.Buffer
	if err := WriteSVG(&buf, s); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`<svg xmlns="http://www.w3.org/2000/svg"`,
		`width="800" height="600"`,
		`<polygon data-id="A-1" points="100,100 300,100 300,300 100,300"`,
		`stroke="#2563eb" stroke-width="3"`,
		`href="https://example.test/plan.png?a=1&amp;b=2"`,
		`<g id="elements">`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, `data-id="A-3"`) {
		t.Fatalf("malformed element rendered")
	}
}

func TestStrokeSegmentsDash(t *testing.T) {
	segs := strokeSegments([]vector.Pt{{X: 0, Y: 0}, {X: 20, Y: 0}}, false, []float64{6, 4})
	// on 0-6, off 6-10, on 10-16, off 16-20
	if len(segs) != 2 || segs[0][1].X != 6 || segs[1][0].X != 10 || segs[1][1].X != 16 {
		t.Fatalf("dash segments = %v", segs)
	}
	if solid := strokeSegments([]vector.Pt{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, true, nil); len(solid) != 3 {
		t.Fatalf("closed solid segments = %d", len(solid))
	}
}

func TestRasterizeFillsPolygons(t *testing.T) {
	s := Render(Input{Layout: testLayout(t), View: viewport.Home, Size: vector.Size{W: 800, H: 600}})
	img := Rasterize(s, RasterOptions{})
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("size = %v", img.Bounds())
	}
	// inside the sold plot: green dominates
	c := img.RGBAAt(200, 200)
	if !(c.G > c.R && c.G > c.B) {
		t.Fatalf("sold plot pixel = %+v", c)
	}
	// outside every element, over the placeholder background
	bg := img.RGBAAt(700, 550)
	if bg.R < 0xe0 || bg.G < 0xe0 || bg.B < 0xe0 {
		t.Fatalf("background pixel = %+v", bg)
	}
}

func TestWritePNGWithInlineBackground(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 0, G: 0, B: 255, A: 255})
		}
	}
	var enc bytes.Buffer
	if err := png.Encode(&enc, src); err != nil {
		t.Fatal(err)
	}
	l := testLayout(t)
	l.Elements = nil
	l.BackgroundImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(enc.Bytes())
	s := Render(Input{Layout: l, View: viewport.Home, Size: vector.Size{W: 100, H: 100}})
	var out bytes.Buffer
	if err := WritePNG(&out, s, RasterOptions{}); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	dec, err := png.Decode(&out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := dec.At(50, 50).RGBA()
	if b>>8 < 0xf0 || r>>8 > 0x10 || g>>8 > 0x10 {
		t.Fatalf("background not drawn: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestDecodeDataURI(t *testing.T) {
	mime, data, err := DecodeDataURI("data:text/plain,hello%20map")
	if err != nil || mime != "text/plain" || string(data) != "hello map" {
		t.Fatalf("plain data uri: %q %q %v", mime, data, err)
	}
	if _, _, err := DecodeDataURI("https://example.test/a.png"); err != ErrNotInline {
		t.Fatalf("expected ErrNotInline, got %v", err)
	}
}

func TestWritePDF(t *testing.T) {
	s := Render(Input{Layout: testLayout(t), View: viewport.Home, Size: vector.Size{W: 800, H: 600}})
	var buf bytes.Buffer
	if err := WritePDF(&buf, s, PDFOptions{Title: "Test", Caption: "6 elements"}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:16])
	}
}
