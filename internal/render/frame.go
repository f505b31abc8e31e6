/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"nexusmap/internal/domain"
	"nexusmap/internal/vector"
	"nexusmap/internal/viewport"
)

// MaxFrameSide caps static renders.
const MaxFrameSide = 8192

// FrameOptions select what a static map image shows.
type FrameOptions struct {
	// Width and Height of the image in px; zero uses the blueprint size.
	Width, Height float64
	// FocusID centers and highlights one element at FocusScale.
	FocusID    string
	FocusScale float64
	ShowPrice  bool
	Options    Options
}

// Frame renders l without an interactive viewport: the whole blueprint, or
// the focus element when it has geometry.
func Frame(l domain.Layout, fo FrameOptions) Scene {
	img := l.ImageSize()
	w, h := fo.Width, fo.Height
	sized := w > 0 && h > 0
	if !sized {
		w, h = img.W, img.H
	}
	w, h = min(w, MaxFrameSide), min(h, MaxFrameSide)

	vp := viewport.New(viewport.DefaultLimits())
	if sized {
		vp.Fit(vector.R(0, 0, img.W, img.H), w, h, 10)
	}
	selected := ""
	if el, ok := l.Element(fo.FocusID); ok && fo.FocusID != "" {
		selected = el.ID
		if poly, ok := el.Points.Polygon(); ok && fo.FocusScale > 0 {
			vp.FocusOnPolygon(poly, fo.FocusScale, w, h)
		}
	}
	return Render(Input{
		Layout:     l,
		View:       vp.State(),
		Size:       vector.Size{W: w, H: h},
		SelectedID: selected,
		ShowPrice:  fo.ShowPrice,
		Options:    fo.Options,
	})
}
