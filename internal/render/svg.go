/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nexusmap/internal/vector"
)

// WriteSVG writes the scene as a standalone SVG document sized to the scene.
// Element polygons carry their id in a data-id attribute.
func WriteSVG(w io.Writer, s Scene) error {
	bw := bufio.NewWriter(w)
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bw, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%s\" height=\"%s\" viewBox=\"0 0 %s %s\">\n",
		num(s.Size.W), num(s.Size.H), num(s.Size.W), num(s.Size.H))
	wf("  <rect x=\"0\" y=\"0\" width=\"%s\" height=\"%s\" fill=\"#ffffff\"/>\n", num(s.Size.W), num(s.Size.H))
	if s.Root != nil {
		writeSVGNode(wf, s.Root, 1)
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func writeSVGNode(wf func(string, ...any), n vector.Node, depth int) {
	ind := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *vector.Group:
		wf("%s<g id=\"%s\">\n", ind, esc(v.Name))
		for _, c := range v.Children {
			writeSVGNode(wf, c, depth+1)
		}
		wf("%s</g>\n", ind)
	case *vector.ImageNode:
		wf("%s<image x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" preserveAspectRatio=\"none\" href=\"%s\" xlink:href=\"%s\"/>\n",
			ind, num(v.Rect.X), num(v.Rect.Y), num(v.Rect.W), num(v.Rect.H), esc(v.Href), esc(v.Href))
	case *vector.RectNode:
		wf("%s<rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\"%s%s/>\n",
			ind, num(v.Rect.X), num(v.Rect.Y), num(v.Rect.W), num(v.Rect.H), fillAttrs(v.Fill), strokeAttrs(v.Stroke))
	case *vector.PolygonNode:
		id := ""
		if v.ID != "" {
			id = " data-id=\"" + esc(v.ID) + "\""
		}
		wf("%s<polygon%s points=\"%s\"%s%s/>\n", ind, id, svgPoints(v.Poly), fillAttrs(v.Fill), strokeAttrs(v.Stroke))
	case *vector.PolylineNode:
		wf("%s<polyline points=\"%s\" fill=\"none\"%s/>\n", ind, svgPoints(v.Pts), strokeAttrs(v.Stroke))
	case *vector.TextNode:
		weight := ""
		if v.Bold {
			weight = " font-weight=\"bold\""
		}
		wf("%s<text x=\"%s\" y=\"%s\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"%s\"%s fill=\"%s\">%s</text>\n",
			ind, num(v.At.X), num(v.At.Y), num(v.Size), weight, v.Color.Hex(), esc(v.Text))
	}
}

func fillAttrs(f vector.Fill) string {
	if !f.Enabled {
		return " fill=\"none\""
	}
	s := " fill=\"" + f.Color.Hex() + "\""
	if f.Color.A != 255 {
		s += " fill-opacity=\"" + num(f.Color.Opacity()) + "\""
	}
	return s
}

func strokeAttrs(st vector.Stroke) string {
	if !st.Enabled || st.Width <= 0 {
		return ""
	}
	s := " stroke=\"" + st.Color.Hex() + "\" stroke-width=\"" + num(st.Width) + "\""
	if st.Color.A != 255 {
		s += " stroke-opacity=\"" + num(st.Color.Opacity()) + "\""
	}
	if st.Dashed() {
		parts := make([]string, len(st.Dash))
		for i, d := range st.Dash {
			parts[i] = num(d)
		}
		s += " stroke-dasharray=\"" + strings.Join(parts, " ") + "\""
	}
	return s
}

func svgPoints(pts []vector.Pt) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(num(p.X))
		b.WriteByte(',')
		b.WriteString(num(p.Y))
	}
	return b.String()
}

// num prints screen coordinates with at most two decimals.
func num(v float64) string {
	v = vector.FloatRound(v, 2)
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
