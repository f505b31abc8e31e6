/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"nexusmap/internal/telemetry"
)

var (
	ErrBadShareLink = errors.New("malformed share link")
	ErrBadSignature = errors.New("share link signature mismatch")
)

// ShareLinkPrefix is the path prefix of viewer links.
const ShareLinkPrefix = "/view/"

// ShareLink opens a layout in the viewer, optionally focused on one element.
type ShareLink struct {
	LayoutID  string
	FocusID   string
	Public    bool
	ShowPrice bool
	Sig       string
}

// Path encodes the link as /view/{layout}?plot=ID&public=1&price=1&sig=...
// Parameters keep that order and are left out when unset.
func (s ShareLink) Path() string {
	p := s.unsigned()
	if s.Sig != "" {
		p += sep(p) + "sig=" + url.QueryEscape(s.Sig)
	}
	return p
}

// URL prefixes Path with base, e.g. https://maps.example.com.
func (s ShareLink) URL(base string) string {
	return strings.TrimRight(base, "/") + s.Path()
}

func (s ShareLink) unsigned() string {
	var b strings.Builder
	b.WriteString(ShareLinkPrefix)
	b.WriteString(url.PathEscape(s.LayoutID))
	q := ""
	if s.FocusID != "" {
		q += "&plot=" + url.QueryEscape(s.FocusID)
	}
	if s.Public {
		q += "&public=1"
	}
	if s.ShowPrice {
		q += "&price=1"
	}
	if q != "" {
		b.WriteString("?")
		b.WriteString(q[1:])
	}
	return b.String()
}

func sep(p string) string {
	if strings.Contains(p, "?") {
		return "&"
	}
	return "?"
}

// ParseShareLink decodes a link produced by Path or URL.
func ParseShareLink(raw string) (ShareLink, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ShareLink{}, fmt.Errorf("%w: %w", ErrBadShareLink, err)
	}
	rest, ok := strings.CutPrefix(u.Path, ShareLinkPrefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ShareLink{}, fmt.Errorf("%w: %q", ErrBadShareLink, raw)
	}
	q := u.Query()
	return ShareLink{
		LayoutID:  rest,
		FocusID:   q.Get("plot"),
		Public:    flag(q.Get("public")),
		ShowPrice: flag(q.Get("price")),
		Sig:       q.Get("sig"),
	}, nil
}

func flag(v string) bool { return v == "1" || strings.EqualFold(v, "true") }

// Sign returns the link with an HMAC-SHA256 signature over its unsigned path.
func (s ShareLink) Sign(secret string) ShareLink {
	s.Sig = signature(secret, s.unsigned())
	return s
}

// Verify checks the signature. An empty secret accepts every link.
func (s ShareLink) Verify(secret string) error {
	if secret == "" {
		return nil
	}
	got, err := base64.RawURLEncoding.DecodeString(s.Sig)
	if err != nil || s.Sig == "" {
		return ErrBadSignature
	}
	want, _ := base64.RawURLEncoding.DecodeString(signature(secret, s.unsigned()))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	return nil
}

func signature(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ShareLink builds a link to the open layout focused on the selection.
func (e *Editor) ShareLink(public bool) (ShareLink, bool) {
	if !e.open {
		return ShareLink{}, false
	}
	return ShareLink{LayoutID: e.layout.ID, FocusID: e.selected, Public: public, ShowPrice: e.showPrice}, true
}

// OpenShared opens the linked layout in view mode, selects the focus
// element and centers it. A focus id that is missing or undrawn leaves the
// whole layout framed.
func (e *Editor) OpenShared(ctx context.Context, link ShareLink) error {
	if err := e.SetMode(ModeView); err != nil {
		return err
	}
	if err := e.Open(ctx, link.LayoutID); err != nil {
		return err
	}
	e.showPrice = link.ShowPrice
	if link.FocusID != "" && e.Select(link.FocusID) {
		e.FocusSelected()
	}
	e.emit(telemetry.EventShareOpened, map[string]any{"public": link.Public})
	return nil
}
