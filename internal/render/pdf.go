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
	"fmt"
	"io"
	"strings"

	"nexusmap/internal/vector"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions control the printable map sheet.
type PDFOptions struct {
	Title   string
	Caption string // printed along the bottom edge, e.g. layout stats
}

// WritePDF writes the scene as a single-page PDF; one scene pixel is one point.
func WritePDF(w io.Writer, s Scene, opt PDFOptions) error {
	pw, ph := s.Size.W, s.Size.H
	captionH := 0.0
	if opt.Caption != "" {
		captionH = 24
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph + captionH},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("nexusmap", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	if s.Root != nil {
		imgN := 0
		pdfNode(pdf, s.Root, &imgN)
	}
	if opt.Caption != "" {
		pdf.SetAlpha(1, "Normal")
		pdf.SetDashPattern(nil, 0)
		pdf.SetTextColor(0x37, 0x41, 0x51)
		pdf.SetFont("Helvetica", "", 9)
		pdf.Text(8, ph+16, opt.Caption)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfNode(pdf *gofpdf.Fpdf, n vector.Node, imgN *int) {
	switch v := n.(type) {
	case *vector.Group:
		for _, c := range v.Children {
			pdfNode(pdf, c, imgN)
		}
	case *vector.ImageNode:
		if !pdfImage(pdf, v, imgN) {
			pdfShape(pdf, vector.AxisRect(v.Rect.Min(), v.Rect.Max()), true,
				vector.Fill{Color: vector.Color{R: 0xf3, G: 0xf4, B: 0xf6, A: 0xff}, Enabled: true}, vector.Stroke{})
		}
	case *vector.RectNode:
		pdfShape(pdf, vector.AxisRect(v.Rect.Min(), v.Rect.Max()), true, v.Fill, v.Stroke)
	case *vector.PolygonNode:
		pdfShape(pdf, v.Poly, true, v.Fill, v.Stroke)
	case *vector.PolylineNode:
		pdfShape(pdf, v.Pts, false, vector.Fill{}, v.Stroke)
	case *vector.TextNode:
		style := ""
		if v.Bold {
			style = "B"
		}
		pdf.SetAlpha(v.Color.Opacity(), "Normal")
		pdf.SetTextColor(int(v.Color.R), int(v.Color.G), int(v.Color.B))
		pdf.SetFont("Helvetica", style, v.Size)
		pdf.Text(v.At.X, v.At.Y, v.Text)
	}
}

func pdfShape(pdf *gofpdf.Fpdf, pts []vector.Pt, closed bool, f vector.Fill, st vector.Stroke) {
	if len(pts) < 2 {
		return
	}
	stroke := st.Enabled && st.Width > 0
	if closed && f.Enabled && f.Color.A > 0 && len(pts) >= 3 {
		pdf.SetAlpha(f.Color.Opacity(), "Normal")
		pdf.SetFillColor(int(f.Color.R), int(f.Color.G), int(f.Color.B))
		pdf.Polygon(pdfPoints(pts), "F")
	}
	if !stroke {
		return
	}
	pdf.SetAlpha(st.Color.Opacity(), "Normal")
	pdf.SetDrawColor(int(st.Color.R), int(st.Color.G), int(st.Color.B))
	pdf.SetLineWidth(st.Width)
	pdf.SetDashPattern(st.Dash, 0)
	if closed {
		pdf.Polygon(pdfPoints(pts), "D")
	} else {
		pdf.MoveTo(pts[0].X, pts[0].Y)
		for _, p := range pts[1:] {
			pdf.LineTo(p.X, p.Y)
		}
		pdf.DrawPath("D")
	}
	pdf.SetDashPattern(nil, 0)
}

func pdfPoints(pts []vector.Pt) []gofpdf.PointType {
	out := make([]gofpdf.PointType, len(pts))
	for i, p := range pts {
		out[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	return out
}

// pdfImage embeds inline PNG/JPEG backgrounds; remote references are not fetched.
func pdfImage(pdf *gofpdf.Fpdf, v *vector.ImageNode, imgN *int) bool {
	mime, data, err := DecodeDataURI(v.Href)
	if err != nil {
		return false
	}
	var typ string
	switch strings.ToLower(mime) {
	case "image/png":
		typ = "PNG"
	case "image/jpeg", "image/jpg":
		typ = "JPG"
	default:
		return false
	}
	*imgN++
	name := fmt.Sprintf("bg%d", *imgN)
	opts := gofpdf.ImageOptions{ImageType: typ}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Error() != nil {
		pdf.ClearError()
		return false
	}
	pdf.SetAlpha(1, "Normal")
	pdf.ImageOptions(name, v.Rect.X, v.Rect.Y, v.Rect.W, v.Rect.H, false, opts, 0, "")
	return true
}
