/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	data := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NXM_STORE_DRIVER", "file")
	t.Setenv("NXM_STORE_PATH", data)
	t.Setenv("NXM_STORE_PASSWORD", "x")
	t.Setenv("NXM_SHARE_KEY", "k")
	t.Setenv("NXM_DATA_MODE", "live")
	t.Setenv("NXM_READ_ONLY", "")
	t.Setenv("NXM_LOG_LEVEL", "error")
	return data
}

func runCmd(t *testing.T, want int, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if code := run(context.Background(), args, &out); code != want {
		t.Fatalf("%v: exit %d, want %d\n%s", args, code, want, out.String())
	}
	return out.String()
}

func TestVersionAndUsage(t *testing.T) {
	setupEnv(t)
	if out := runCmd(t, 0, "version"); !strings.Contains(out, "NexusMap") {
		t.Fatalf("version output: %q", out)
	}
	if out := runCmd(t, 2, "bogus"); !strings.Contains(out, "unknown command") {
		t.Fatalf("unknown command output: %q", out)
	}
	runCmd(t, 2)
}

func TestEditingWorkflow(t *testing.T) {
	setupEnv(t)
	if out := runCmd(t, 0, "init", "--image", "800x600", "site", "Green", "Acres"); !strings.Contains(out, "Created layout site") {
		t.Fatalf("init: %q", out)
	}
	runCmd(t, 1, "init", "site")

	if out := runCmd(t, 0, "pregen", "--prefix", "P-", "site", "3"); !strings.Contains(out, "Registered 3 plots (P-1 .. P-3)") {
		t.Fatalf("pregen: %q", out)
	}
	if out := runCmd(t, 0, "unassigned", "site"); strings.TrimSpace(out) != "P-1\nP-2\nP-3" {
		t.Fatalf("unassigned: %q", out)
	}

	if out := runCmd(t, 0, "draw-box", "--plot", "A-9", "--facing", "n", "--price", "1,200,000", "site", "10,10", "110,60"); !strings.Contains(out, "Saved A-9 (5,000 sq.ft)") {
		t.Fatalf("draw-box: %q", out)
	}
	if out := runCmd(t, 0, "attach", "site", "P-1", "200,200 300,200 300,300"); !strings.Contains(out, "Saved P-1") {
		t.Fatalf("attach: %q", out)
	}
	runCmd(t, 1, "draw-box", "--plot", "A-10", "site", "10,10", "12,12")
	runCmd(t, 2, "draw-box", "--plot", "A-10", "--infra", "Road", "site", "10,10", "50,50")

	runCmd(t, 0, "set", "site", "A-9", "customerName", "Jane", "Doe")
	runCmd(t, 0, "set", "site", "-", "address", "Plot Road 1")
	runCmd(t, 1, "set", "site", "A-9", "price", "-5")

	out := runCmd(t, 0, "open", "site")
	for _, want := range []string{"Green Acres (site)", "Address: Plot Road 1", "Blueprint: 800x600", "unassigned 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("open output missing %q:\n%s", want, out)
		}
	}
	if out := runCmd(t, 0, "elements", "site"); !strings.Contains(out, "A-9") || !strings.Contains(out, "5,000 sq.ft") {
		t.Fatalf("elements: %q", out)
	}

	runCmd(t, 1, "delete", "site", "P-3")
	runCmd(t, 0, "delete", "--yes", "site", "P-3")
	if out := runCmd(t, 0, "unassigned", "site"); strings.TrimSpace(out) != "P-2" {
		t.Fatalf("unassigned after delete: %q", out)
	}
}

func TestRenderAndShare(t *testing.T) {
	setupEnv(t)
	runCmd(t, 0, "init", "--image", "400x300", "site")
	runCmd(t, 0, "draw-box", "--plot", "A-1", "--price", "900000", "site", "20,20", "120,120")

	dir := t.TempDir()
	svg := filepath.Join(dir, "map.svg")
	runCmd(t, 0, "render", "--price", "site", "svg", svg)
	data, err := os.ReadFile(svg)
	if err != nil {
		t.Fatalf("read svg: %v", err)
	}
	if !strings.Contains(string(data), "<svg") || !strings.Contains(string(data), "A-1") {
		t.Fatalf("svg content: %s", data)
	}

	png := filepath.Join(dir, "map.png")
	runCmd(t, 0, "render", "--w", "200", "--h", "150", "site", "png", png)
	if st, err := os.Stat(png); err != nil || st.Size() == 0 {
		t.Fatalf("png not written: %v", err)
	}

	bad := filepath.Join(dir, "map.gif")
	runCmd(t, 2, "render", "site", "gif", bad)
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatalf("failed render left %s behind", bad)
	}

	out := runCmd(t, 0, "share", "--plot", "A-1", "--base", "https://maps.example.com", "site")
	if !strings.HasPrefix(out, "https://maps.example.com/view/site?") || !strings.Contains(out, "sig=") {
		t.Fatalf("share: %q", out)
	}
	runCmd(t, 1, "share", "--plot", "missing", "site")
}

func TestImportAutosave(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	doc := filepath.Join(dir, "site.crash-20250101-120000.json")
	body := `{"id":"site","name":"Recovered","imageWidth":640,"imageHeight":480,
  "elements":[{"id":"A-1","type":"plot","points":"0,0 10,0 10,10","status":"open"}]}`
	if err := os.WriteFile(doc, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out := runCmd(t, 0, "init", "--from", doc, "copy"); !strings.Contains(out, "Created layout copy (1 elements") {
		t.Fatalf("import: %q", out)
	}
	if out := runCmd(t, 0, "list"); !strings.Contains(out, "copy") || !strings.Contains(out, "Recovered") {
		t.Fatalf("list: %q", out)
	}
}

func TestDemoModeIsReadOnlyCopy(t *testing.T) {
	setupEnv(t)
	t.Setenv("NXM_DATA_MODE", "demo")
	if out := runCmd(t, 0, "elements", "demo"); !strings.Contains(out, "road-1") {
		t.Fatalf("demo elements: %q", out)
	}
}
