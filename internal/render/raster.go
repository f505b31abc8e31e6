/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"nexusmap/internal/vector"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"
)

// RasterOptions control PNG output.
type RasterOptions struct {
	Background color.Color
	// LoadImage resolves background references; defaults to inline data URIs only.
	LoadImage func(href string) (image.Image, error)
}

// Rasterize paints the scene into an RGBA image the size of the scene.
func Rasterize(s Scene, opt RasterOptions) *image.RGBA {
	w := int(math.Ceil(s.Size.W))
	h := int(math.Ceil(s.Size.H))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if opt.Background == nil {
		opt.Background = color.White
	}
	if opt.LoadImage == nil {
		opt.LoadImage = LoadInlineImage
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(opt.Background), image.Point{}, xdraw.Src)
	r := &raster{dst: img, z: xvector.NewRasterizer(w, h), opt: opt}
	if s.Root != nil {
		r.node(s.Root)
	}
	return img
}

// WritePNG rasterizes the scene and encodes it as PNG.
func WritePNG(w io.Writer, s Scene, opt RasterOptions) error {
	if err := png.Encode(w, Rasterize(s, opt)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type raster struct {
	dst *image.RGBA
	z   *xvector.Rasterizer
	opt RasterOptions
}

func (r *raster) node(n vector.Node) {
	switch v := n.(type) {
	case *vector.Group:
		for _, c := range v.Children {
			r.node(c)
		}
	case *vector.ImageNode:
		r.image(v)
	case *vector.RectNode:
		pts := vector.AxisRect(v.Rect.Min(), v.Rect.Max())
		if v.Fill.Enabled {
			r.fill(pts, v.Fill.Color)
		}
		r.stroke(pts, true, v.Stroke)
	case *vector.PolygonNode:
		if v.Fill.Enabled {
			r.fill(v.Poly, v.Fill.Color)
		}
		r.stroke(v.Poly, true, v.Stroke)
	case *vector.PolylineNode:
		r.stroke(v.Pts, false, v.Stroke)
	case *vector.TextNode:
		d := font.Drawer{
			Dst:  r.dst,
			Src:  image.NewUniform(v.Color.RGBA()),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(int(math.Round(v.At.X)), int(math.Round(v.At.Y))),
		}
		d.DrawString(v.Text)
	}
}

func (r *raster) image(v *vector.ImageNode) {
	src, err := r.opt.LoadImage(v.Href)
	target := image.Rect(
		int(math.Round(v.Rect.X)), int(math.Round(v.Rect.Y)),
		int(math.Round(v.Rect.X+v.Rect.W)), int(math.Round(v.Rect.Y+v.Rect.H)),
	)
	if err != nil || src == nil {
		// unresolvable reference: draw a neutral placeholder
		r.fill(vector.AxisRect(v.Rect.Min(), v.Rect.Max()), vector.Color{R: 0xf3, G: 0xf4, B: 0xf6, A: 0xff})
		return
	}
	xdraw.ApproxBiLinear.Scale(r.dst, target, src, src.Bounds(), xdraw.Over, nil)
}

func (r *raster) fill(pts []vector.Pt, c vector.Color) {
	if len(pts) < 3 || c.A == 0 || !drawable(pts) {
		return
	}
	b := r.dst.Bounds()
	r.z.Reset(b.Dx(), b.Dy())
	r.z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		r.z.LineTo(float32(p.X), float32(p.Y))
	}
	r.z.ClosePath()
	r.z.Draw(r.dst, b, image.NewUniform(c.RGBA()), image.Point{})
}

// drawable reports whether every coordinate is finite and fits the
// rasterizer's float32 path.
func drawable(pts []vector.Pt) bool {
	const limit = 1e9
	for _, p := range pts {
		if !(math.Abs(p.X) <= limit && math.Abs(p.Y) <= limit) {
			return false
		}
	}
	return true
}

func (r *raster) stroke(pts []vector.Pt, closed bool, st vector.Stroke) {
	if !st.Enabled || st.Width <= 0 || len(pts) < 2 {
		return
	}
	for _, seg := range strokeSegments(pts, closed, st.Dash) {
		r.fill(segmentQuad(seg[0], seg[1], st.Width), st.Color)
	}
}

// segmentQuad outlines a line segment of the given width.
func segmentQuad(a, b vector.Pt, width float64) []vector.Pt {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	return []vector.Pt{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}
}

// strokeSegments splits a path into the visible pieces of its dash pattern.
// A nil pattern yields the path edges unchanged.
func strokeSegments(pts []vector.Pt, closed bool, dash []float64) [][2]vector.Pt {
	var edges [][2]vector.Pt
	for i := 0; i+1 < len(pts); i++ {
		edges = append(edges, [2]vector.Pt{pts[i], pts[i+1]})
	}
	if closed && len(pts) > 2 {
		edges = append(edges, [2]vector.Pt{pts[len(pts)-1], pts[0]})
	}
	total := 0.0
	for _, d := range dash {
		total += d
	}
	if len(dash) == 0 || total <= 0 {
		return edges
	}
	var out [][2]vector.Pt
	di, left, on := 0, dash[0], true
	for _, e := range edges {
		a, b := e[0], e[1]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		pos := 0.0
		for pos < l {
			step := math.Min(left, l-pos)
			if on && step > 0 {
				t0, t1 := pos/l, (pos+step)/l
				out = append(out, [2]vector.Pt{
					{X: a.X + (b.X-a.X)*t0, Y: a.Y + (b.Y-a.Y)*t0},
					{X: a.X + (b.X-a.X)*t1, Y: a.Y + (b.Y-a.Y)*t1},
				})
			}
			pos += step
			left -= step
			if left <= 0 {
				di = (di + 1) % len(dash)
				left = dash[di]
				on = !on
			}
		}
	}
	return out
}
