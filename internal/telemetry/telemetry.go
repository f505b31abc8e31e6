/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous usage events such as "a plot
// was created" or "a shape was attached". Events carry counts and tool
// names only, never layout contents or customer data. Sending is
// asynchronous and drops events rather than blocking the editor.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "nexusmap/internal/log"
	"nexusmap/internal/version"
)

// Event names emitted by the editor.
const (
	EventPlotCreated   = "plot_created"
	EventPlotAttached  = "plot_attached"
	EventInfraCreated  = "infra_created"
	EventElementEdited = "element_edited"
	EventElementDelete = "element_deleted"
	EventUndo          = "undo"
	EventShareOpened   = "share_opened"
)

// Config holds runtime configuration. Telemetry is disabled unless OptIn is
// set and an events URL is configured.
//
// Environment variables (read by FromEnv):
//   - NXM_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable
//   - NXM_TELEMETRY_URL: endpoint that receives JSON events
//   - NXM_CRASH_UPLOAD_URL: endpoint that receives crash reports
//   - NXM_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - NXM_TELEMETRY_DEBUG: log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("NXM_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("NXM_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("NXM_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("NXM_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("NXM_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client queues events for a background sender and keeps local counters.
// A nil *Client is valid and does nothing.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan map[string]any
	once   sync.Once
	closed chan struct{}

	mu     sync.Mutex
	counts map[string]int64
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault installs a default client from the environment on first use.
func InitDefault() {
	defaultOnce.Do(func() {
		if defaultClient == nil {
			defaultClient = New(FromEnv())
		}
	})
}

// NewDefault replaces the package-level default client.
func NewDefault(cfg Config) { defaultClient = New(cfg) }

// Default returns the package-level client.
func Default() *Client { InitDefault(); return defaultClient }

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan map[string]any, 64),
		closed: make(chan struct{}),
		counts: make(map[string]int64),
	}
	go c.loop()
	return c
}

// Enabled reports whether events leave the process.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event counts name locally and, when enabled, queues it for sending.
// props must not contain personal data.
func (c *Client) Event(name string, props map[string]any) {
	if c == nil || name == "" {
		return
	}
	c.mu.Lock()
	c.counts[name]++
	c.mu.Unlock()
	if !c.Enabled() {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
		// queue full
	}
}

// Event on the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Counts returns a copy of the per-event counters.
func (c *Client) Counts() map[string]int64 {
	out := map[string]int64{}
	if c == nil {
		return out
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Summary renders the counters as "name=n" pairs in name order.
func (c *Client) Summary() string {
	counts := c.Counts()
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + strconv.FormatInt(counts[k], 10)
	}
	return strings.Join(parts, " ")
}

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the background sender.
func (c *Client) Close() {
	if c != nil {
		c.once.Do(func() { close(c.closed) })
	}
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
		}
	}
}

func (c *Client) send(item map[string]any) {
	buf, err := json.Marshal(item)
	if err != nil {
		return
	}
	c.post(c.cfg.EventsURL, "application/json", buf, "telemetry event")
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a serialized crash report when opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", append([]byte(nil), report...), "crash upload")
}

// UploadCrash on the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
