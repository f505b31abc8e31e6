/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every ValidationError.
var ErrInvalid = errors.New("invalid")

// ValidationError maps json field names to the failed rule.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// FieldError builds a single-field ValidationError.
func FieldError(field, rule string) error {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator; field names are reported by json tag.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ProcessValidationErrors maps validator errors to field -> tag.
func ProcessValidationErrors(err error) map[string]string {
	out := make(map[string]string)
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out["_"] = err.Error()
		return out
	}
	for _, ve := range ves {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// ValidateStruct runs the shared validator and converts failures.
func ValidateStruct(v any) error {
	if err := Validator().Struct(v); err != nil {
		return &ValidationError{Fields: ProcessValidationErrors(err)}
	}
	return nil
}

// ValidateElement checks tag, id and the payload of the matching variant.
// Geometry is not required here; unassigned plots are legitimate.
func ValidateElement(e Element) error {
	if err := ValidateElementData(e); err != nil {
		return err
	}
	if e.Points.Malformed() {
		return FieldError("points", "format")
	}
	return nil
}

// ValidateElementData checks the id, the kind and the payload fields but not
// the stored geometry.
func ValidateElementData(e Element) error {
	if strings.TrimSpace(e.ID) == "" {
		return FieldError("id", "required")
	}
	switch e.Type {
	case TypePlot:
		if e.Plot == nil {
			return FieldError("type", "payload")
		}
		if err := ValidateStruct(e.Plot); err != nil {
			return err
		}
		if e.Plot.Price != nil && e.Plot.Price.IsNegative() {
			return FieldError("price", "gte")
		}
		if e.Plot.BookingAmount.IsNegative() {
			return FieldError("bookingAmount", "gte")
		}
	case TypeInfra:
		if e.Infra == nil {
			return FieldError("type", "payload")
		}
		if err := ValidateStruct(e.Infra); err != nil {
			return err
		}
	default:
		return FieldError("type", "oneof")
	}
	return nil
}

// ValidateLayout checks every element and id uniqueness.
func ValidateLayout(l Layout) error {
	seen := make(map[string]bool, len(l.Elements))
	for i, e := range l.Elements {
		if err := ValidateElement(e); err != nil {
			return fmt.Errorf("element %d (%q): %w", i, e.ID, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("element %d: %w", i, FieldError("id", "unique"))
		}
		seen[e.ID] = true
	}
	return nil
}
