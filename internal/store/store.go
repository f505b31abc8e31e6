/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store defines the layout document store contract and an in-memory
// implementation. Durable backends live in the file, sqlite and postgres
// subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nexusmap/internal/domain"
)

var (
	ErrNotFound     = errors.New("layout not found")
	ErrConflict     = errors.New("layout version conflict")
	ErrExists       = errors.New("layout already exists")
	ErrUnknownField = errors.New("unknown layout field")
	ErrInvalidID    = errors.New("invalid layout id")
)

// AnyVersion disables the compare-and-swap check on writes.
const AnyVersion int64 = -1

// Scalar layout fields addressable through ReadLayoutField/WriteLayoutField.
const (
	FieldName            = "name"
	FieldAddress         = "address"
	FieldMapLink         = "mapLink"
	FieldBackgroundImage = "backgroundImage"
	FieldImageWidth      = "imageWidth"
	FieldImageHeight     = "imageHeight"
)

// Fields lists the writable scalar fields in display order.
var Fields = []string{FieldName, FieldAddress, FieldMapLink, FieldBackgroundImage, FieldImageWidth, FieldImageHeight}

// DocumentStore persists layout documents. Implementations are safe for
// concurrent use. Every successful write bumps the layout version.
type DocumentStore interface {
	ReadLayout(ctx context.Context, id string) (domain.Layout, error)
	// WriteLayoutElements replaces the element collection. With expectVersion
	// >= 0 the write only succeeds when the stored version still matches,
	// otherwise ErrConflict is returned.
	WriteLayoutElements(ctx context.Context, id string, elements []domain.Element, expectVersion int64) (int64, error)
	ReadLayoutField(ctx context.Context, id, field string) (string, error)
	WriteLayoutField(ctx context.Context, id, field, value string) error
	CreateLayout(ctx context.Context, l domain.Layout) (domain.Layout, error)
	DeleteLayout(ctx context.Context, id string) error
	ListLayouts(ctx context.Context) ([]domain.Summary, error)
	Close() error
}

// Pinger is implemented by stores backed by a remote database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetField returns a scalar field of l as a string.
func GetField(l domain.Layout, field string) (string, error) {
	switch field {
	case FieldName:
		return l.Name, nil
	case FieldAddress:
		return l.Address, nil
	case FieldMapLink:
		return l.MapLink, nil
	case FieldBackgroundImage:
		return l.BackgroundImage, nil
	case FieldImageWidth:
		return strconv.Itoa(l.ImageWidth), nil
	case FieldImageHeight:
		return strconv.Itoa(l.ImageHeight), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// SetField parses value into the scalar field of l.
func SetField(l *domain.Layout, field, value string) error {
	switch field {
	case FieldName:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: name", domain.ErrInvalid)
		}
		l.Name = value
	case FieldAddress:
		l.Address = value
	case FieldMapLink:
		l.MapLink = value
	case FieldBackgroundImage:
		l.BackgroundImage = value
	case FieldImageWidth, FieldImageHeight:
		n, err := parseDimension(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalid, field, err)
		}
		if field == FieldImageWidth {
			l.ImageWidth = n
		} else {
			l.ImageHeight = n
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func parseDimension(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

// CheckID rejects ids that cannot be used as a file name or URL segment.
func CheckID(id string) error {
	if id == "" || len(id) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	if id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// PrepareNew checks a layout before it is created and fills defaults.
// Element payloads are not validated so legacy documents import as-is.
func PrepareNew(l domain.Layout) (domain.Layout, error) {
	if err := CheckID(l.ID); err != nil {
		return domain.Layout{}, err
	}
	if strings.TrimSpace(l.Name) == "" {
		l.Name = l.ID
	}
	seen := make(map[string]bool, len(l.Elements))
	for _, e := range l.Elements {
		if seen[e.ID] {
			return domain.Layout{}, fmt.Errorf("element %q: %w", e.ID, domain.FieldError("id", "unique"))
		}
		seen[e.ID] = true
	}
	l = l.Clone()
	if l.Elements == nil {
		l.Elements = []domain.Element{}
	}
	return l, nil
}

// CheckVersion returns ErrConflict when expect is set and differs from have.
func CheckVersion(id string, have, expect int64) error {
	if expect >= 0 && have != expect {
		return fmt.Errorf("%w: %s at version %d, expected %d", ErrConflict, id, have, expect)
	}
	return nil
}
