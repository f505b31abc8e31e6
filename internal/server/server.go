/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server is the read-only HTTP viewer: it lists layouts and serves
// rendered maps and share links.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nexusmap/internal/domain"
	"nexusmap/internal/editor"
	applog "nexusmap/internal/log"
	"nexusmap/internal/render"
	"nexusmap/internal/store"
	"nexusmap/internal/version"
)

// Config configures the viewer.
type Config struct {
	Addr string
	// ShareKey verifies signed /view links; empty accepts unsigned links.
	ShareKey   string
	FocusScale float64
	// Timeout bounds each store call made for a request.
	Timeout time.Duration
}

// Server is safe for concurrent use.
type Server struct {
	cfg   Config
	store store.DocumentStore
	log   *slog.Logger
	mux   *http.ServeMux
}

func New(s store.DocumentStore, cfg Config) *Server {
	if cfg.FocusScale <= 0 {
		cfg.FocusScale = 2.5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	srv := &Server{cfg: cfg, store: s, log: applog.WithComponent("server"), mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	// Health endpoints
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})
	s.mux.HandleFunc("GET /layouts", s.handleList)
	s.mux.HandleFunc("GET /layouts/{id}/map.svg", s.handleMap("svg"))
	s.mux.HandleFunc("GET /layouts/{id}/map.png", s.handleMap("png"))
	s.mux.HandleFunc("GET /view/{id}", s.handleView)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	p, ok := s.store.(store.Pinger)
	if ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	list, err := s.store.ListLayouts(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []domain.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMap(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fo := render.FrameOptions{
			FocusID:    q.Get("plot"),
			FocusScale: s.cfg.FocusScale,
			ShowPrice:  q.Get("price") == "1",
		}
		var err error
		if fo.Width, err = dimension(q.Get("w")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if fo.Height, err = dimension(q.Get("h")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.serveMap(w, r, r.PathValue("id"), format, fo)
	}
}

// handleView serves a share link as a focused SVG.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	link, err := editor.ParseShareLink(r.URL.RequestURI())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := link.Verify(s.cfg.ShareKey); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	s.serveMap(w, r, link.LayoutID, "svg", render.FrameOptions{
		FocusID:    link.FocusID,
		FocusScale: s.cfg.FocusScale,
		ShowPrice:  link.ShowPrice,
	})
}

func (s *Server) serveMap(w http.ResponseWriter, r *http.Request, id, format string, fo render.FrameOptions) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	l, err := s.store.ReadLayout(ctx, id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	scene := render.Frame(l, fo)
	var buf bytes.Buffer
	switch format {
	case "png":
		err = render.WritePNG(&buf, scene, render.RasterOptions{})
		w.Header().Set("Content-Type", "image/png")
	default:
		err = render.WriteSVG(&buf, scene)
		w.Header().Set("Content-Type", "image/svg+xml")
	}
	if err != nil {
		w.Header().Del("Content-Type")
		s.log.Error("render failed", slog.String("layout", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.log.Error("store error", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, errors.New("store unavailable"))
	}
}

func dimension(v string) (float64, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > render.MaxFrameSide {
		return 0, fmt.Errorf("bad dimension %q", v)
	}
	return float64(n), nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	s.log.Info("viewer listening", slog.String("addr", s.cfg.Addr))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
