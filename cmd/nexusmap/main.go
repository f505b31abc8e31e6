/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nexusmap/internal/config"
	"nexusmap/internal/crash"
	"nexusmap/internal/domain"
	"nexusmap/internal/editor"
	applog "nexusmap/internal/log"
	"nexusmap/internal/store"
	"nexusmap/internal/store/backends"
	"nexusmap/internal/telemetry"
	"nexusmap/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "NexusMap - layout blueprint editor and plot inventory")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  nexusmap version|-v|--version                          Show version")
	fmt.Fprintln(w, "  nexusmap init [--image WxH] [--from file] <id> [name]  Create a layout (or re-import an autosave)")
	fmt.Fprintln(w, "  nexusmap list                                          List layouts")
	fmt.Fprintln(w, "  nexusmap open <id>                                     Print layout summary and stats")
	fmt.Fprintln(w, "  nexusmap elements <id>                                 List elements")
	fmt.Fprintln(w, "  nexusmap unassigned <id>                               List plots without geometry")
	fmt.Fprintln(w, "  nexusmap pregen [--prefix P] <id> <n>                  Register n blank plots")
	fmt.Fprintln(w, "  nexusmap draw-box <target> <id> <x,y> <x,y>            Draw a box and save it")
	fmt.Fprintln(w, "  nexusmap draw-poly <target> <id> \"x,y x,y x,y ...\"     Draw a polygon and save it")
	fmt.Fprintln(w, "      target: --plot ID [--size S --facing F --price P] | --attach ID | --infra NAME [--category C]")
	fmt.Fprintln(w, "  nexusmap attach <id> <plot> \"x,y x,y ...\"               Give an unassigned plot its geometry")
	fmt.Fprintln(w, "  nexusmap infra [--category C] <id> <name> \"x,y ...\"     Add a road, park or amenity")
	fmt.Fprintln(w, "  nexusmap set <id> <element|-> <field> <value>          Edit an element field (- edits the layout)")
	fmt.Fprintln(w, "  nexusmap delete --yes <id> <element>                   Delete an element")
	fmt.Fprintln(w, "  nexusmap render [--plot ID --price --w N --h N] <id> svg|png|pdf <out>")
	fmt.Fprintln(w, "  nexusmap share [--plot ID --public --price] <id>       Print a (signed) share link")
	fmt.Fprintln(w, "  nexusmap serve [addr]                                  Run the read-only HTTP viewer")
	fmt.Fprintln(w, "  nexusmap ui <id>                                       Launch desktop UI (build with -tags fyne)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	out   io.Writer
	cfg   config.AppConfig
	sec   config.Secrets
	store store.DocumentStore
	log   *slog.Logger
	// ed is the editor of the running command, snapshotted on a crash.
	ed *editor.Editor
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, out io.Writer) (code int) {
	cfg, sec, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}

	tc := telemetry.FromEnv()
	tc.OptIn = tc.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tc)
	defer telemetry.Default().Close()

	a := &app{out: out, cfg: cfg, sec: sec, log: l}
	crashDir, _ := config.DataDir()
	defer crash.Recover(&crash.Session{Dir: crashDir, Snapshot: a.snapshot})

	if len(args) == 0 {
		usage(out)
		return 2
	}
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(out, "NexusMap")
		fmt.Fprintln(out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(out)
		return 0
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(out, "unknown command %q\n\n", cmd)
		usage(out)
		return 2
	}

	s, err := backends.Open(ctx, cfg, sec)
	if err != nil {
		l.Error("open store failed", slog.Any("err", err))
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	defer func() {
		if err := s.Close(); err != nil {
			l.Warn("store close", slog.Any("err", err))
		}
	}()
	a.store = s

	if err := fn(ctx, a, rest); err != nil {
		if ue, ok := err.(usageError); ok {
			fmt.Fprintln(out, string(ue))
			usage(out)
			return 2
		}
		l.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) snapshot() (domain.Layout, bool) {
	if a.ed == nil {
		return domain.Layout{}, false
	}
	return a.ed.Layout()
}

// usageError is printed followed by the usage text, exit code 2.
type usageError string

func (e usageError) Error() string { return string(e) }
