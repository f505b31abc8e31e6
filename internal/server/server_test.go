/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nexusmap/internal/domain"
	"nexusmap/internal/editor"
	"nexusmap/internal/store"
	"nexusmap/internal/version"
)

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(store.NewDemo(), cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, Config{})
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready", "/version": version.String()} {
		resp, body := get(t, ts.URL+path)
		if resp.StatusCode != http.StatusOK || string(body) != want {
			t.Fatalf("%s = %d %q, want %q", path, resp.StatusCode, body, want)
		}
	}
}

type downStore struct{ *store.Memory }

func (downStore) Ping(context.Context) error { return io.ErrUnexpectedEOF }

func TestReadyzReportsStoreDown(t *testing.T) {
	ts := httptest.NewServer(New(downStore{store.NewDemo()}, Config{}).Handler())
	defer ts.Close()
	resp, _ := get(t, ts.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestListLayouts(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, body := get(t, ts.URL+"/layouts")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var list []domain.Summary
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != domain.DemoLayoutID || list[0].Elements != 8 {
		t.Fatalf("list = %+v", list)
	}
}

func TestMapSVG(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, body := get(t, ts.URL+"/layouts/demo/map.svg?price=1")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("status = %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	s := string(body)
	if !strings.HasPrefix(strings.TrimSpace(s), "<") || !strings.Contains(s, "<svg") || !strings.Contains(s, "1,500,000") {
		t.Fatalf("svg missing price label: %.200s", s)
	}
}

func TestMapPNGSize(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, body := get(t, ts.URL+"/layouts/demo/map.png?w=320&h=200")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 200 {
		t.Fatalf("png bounds = %v", b)
	}
}

func TestMapErrors(t *testing.T) {
	ts := newTestServer(t, Config{})
	if resp, _ := get(t, ts.URL+"/layouts/nope/map.svg"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing layout status = %d", resp.StatusCode)
	}
	if resp, _ := get(t, ts.URL+"/layouts/demo/map.png?w=abc&h=10"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad width status = %d", resp.StatusCode)
	}
}

func TestViewShareLink(t *testing.T) {
	ts := newTestServer(t, Config{ShareKey: "k"})
	link := editor.ShareLink{LayoutID: "demo", FocusID: "A-2", Public: true}
	if resp, _ := get(t, ts.URL+link.Path()); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unsigned link status = %d", resp.StatusCode)
	}
	resp, body := get(t, ts.URL+link.Sign("k").Path())
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "A-2") {
		t.Fatalf("signed link = %d %.200s", resp.StatusCode, body)
	}
}

func TestClient(t *testing.T) {
	ts := newTestServer(t, Config{})
	c := NewClient(ts.URL + "/")
	ctx := context.Background()
	list, err := c.ListLayouts(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	b, err := c.Map(ctx, "demo", MapQuery{Format: "png", Width: 64, Height: 48})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(b)); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := c.Map(ctx, "nope", MapQuery{}); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("missing map err = %v", err)
	}
}
