/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui hosts the map editor in a Fyne desktop window. The window is
// only compiled with the "fyne" build tag; other builds get a stub Run.
package ui

import (
	"nexusmap/internal/editor"
	"nexusmap/internal/store"
)

// Options configure the desktop host.
type Options struct {
	Store    store.DocumentStore
	LayoutID string
	Editor   editor.Options
	// ShareBaseURL prefixes copied share links; empty copies the bare path.
	ShareBaseURL string
	ShareKey     string
	// CrashDir receives crash reports and autosaves.
	CrashDir string
}

// wheelStep converts a Fyne scroll delta (positive when scrolling up) to the
// editor's wheel delta (positive zooms out).
func wheelStep(dy float32) float64 { return -float64(dy) * 10 }
