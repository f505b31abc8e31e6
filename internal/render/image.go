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
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg" // blueprint uploads are PNG or JPEG
	_ "image/png"
	"net/url"
	"strings"
)

// ErrNotInline is returned for image references that are not data URIs.
var ErrNotInline = errors.New("image is not an inline data uri")

// DecodeDataURI splits "data:<mime>[;base64],<payload>".
func DecodeDataURI(href string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(href, "data:")
	if !ok {
		return "", nil, ErrNotInline
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data uri: missing payload")
	}
	mime, isB64 := strings.CutSuffix(meta, ";base64")
	if isB64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, err
		}
		return mime, data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, []byte(s), nil
}

// LoadInlineImage decodes a data URI background.
func LoadInlineImage(href string) (image.Image, error) {
	_, data, err := DecodeDataURI(href)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
