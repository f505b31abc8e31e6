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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"nexusmap/internal/domain"
	"nexusmap/internal/reconcile"
	"nexusmap/internal/render"
	"nexusmap/internal/store"
	"nexusmap/internal/telemetry"

	"github.com/shopspring/decimal"
)

// ErrUnknownField is returned for a field name the inspector does not edit.
var ErrUnknownField = errors.New("unknown field")

// Inspector field names.
const (
	FieldID              = "id"
	FieldStatus          = "status"
	FieldSize            = "size"
	FieldFacing          = "facing"
	FieldPrice           = "price"
	FieldBookingAmount   = "bookingAmount"
	FieldCustomerName    = "customerName"
	FieldCustomerPhone   = "customerPhone"
	FieldCustomerEmail   = "customerEmail"
	FieldCustomerAddress = "customerAddress"
	FieldPaid            = "paid"
	FieldArea            = "area"
	FieldName            = "name"
	FieldCategory        = "category"
)

type FieldKind int

const (
	KindText FieldKind = iota
	KindEnum
	KindMoney
	KindReadOnly
)

// Field is one row of the inspector panel.
type Field struct {
	Name    string
	Label   string
	Value   string
	Kind    FieldKind
	Options []string
}

// Editable reports whether CommitField accepts the field.
func (f Field) Editable() bool { return f.Kind != KindReadOnly }

// Fields lists the inspector rows for the selected element. Unknown
// elements only show their id.
func (e *Editor) Fields() []Field {
	el, ok := e.Selected()
	if !ok {
		return nil
	}
	out := []Field{{Name: FieldID, Label: "ID", Value: el.ID, Kind: KindReadOnly}}
	switch {
	case el.IsPlot():
		p := el.Plot
		price := ""
		if p.Price != nil {
			price = p.Price.String()
		}
		facings := []string{""}
		for _, f := range domain.Facings {
			facings = append(facings, string(f))
		}
		out = append(out,
			Field{Name: FieldStatus, Label: "Status", Value: string(p.Status), Kind: KindEnum,
				Options: []string{string(domain.StatusOpen), string(domain.StatusBooked), string(domain.StatusSold)}},
			Field{Name: FieldPrice, Label: "Price", Value: price, Kind: KindMoney},
			Field{Name: FieldSize, Label: "Size", Value: p.Size},
			Field{Name: FieldFacing, Label: "Facing", Value: string(p.Facing), Kind: KindEnum, Options: facings},
			Field{Name: FieldBookingAmount, Label: "Booking amount", Value: p.BookingAmount.String(), Kind: KindMoney},
			Field{Name: FieldCustomerName, Label: "Customer", Value: p.CustomerName},
			Field{Name: FieldCustomerPhone, Label: "Phone", Value: p.CustomerPhone},
			Field{Name: FieldCustomerEmail, Label: "Email", Value: p.CustomerEmail},
			Field{Name: FieldCustomerAddress, Label: "Address", Value: p.CustomerAddress},
			Field{Name: FieldPaid, Label: "Paid", Value: p.Paid().String(), Kind: KindReadOnly},
		)
	case el.IsInfra():
		out = append(out,
			Field{Name: FieldName, Label: "Name", Value: el.Infra.Name},
			Field{Name: FieldCategory, Label: "Category", Value: string(el.Infra.Category), Kind: KindEnum,
				Options: []string{string(domain.CategoryRoad), string(domain.CategoryPark), string(domain.CategoryAmenity)}},
		)
	default:
		return out
	}
	if area := el.Points.Area(); area > 0 {
		out = append(out, Field{Name: FieldArea, Label: "Area", Value: render.FormatArea(area, e.cfg.UnitsPerFoot), Kind: KindReadOnly})
	}
	return out
}

// BeginEdit marks a field of the selected element as being edited.
func (e *Editor) BeginEdit(field string) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	if e.selected == "" {
		return ErrNoSelection
	}
	for _, f := range e.Fields() {
		if f.Name == field && f.Editable() {
			e.field = field
			e.state = EditingField
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// EditingField returns the field being edited, if any.
func (e *Editor) EditingField() string { return e.field }

// CancelEdit leaves field editing without writing.
func (e *Editor) CancelEdit() {
	e.field = ""
	if e.state == EditingField {
		e.state = Viewing
	}
}

// CommitField parses value into a field of the selected element and writes
// it through the reconciler.
func (e *Editor) CommitField(ctx context.Context, field, value string) error {
	return e.updateSelected(ctx, "edit", func(el *domain.Element) error {
		return setField(el, field, value)
	})
}

// AddInstallment records a payment against the selected plot.
func (e *Editor) AddInstallment(ctx context.Context, in domain.Installment) error {
	if in.Amount.IsNegative() || in.Amount.IsZero() {
		return e.fail("add_installment", fmt.Errorf("%w: %w", reconcile.ErrValidation, domain.FieldError("amount", "gt")))
	}
	return e.updateSelected(ctx, "installment", func(el *domain.Element) error {
		if !el.IsPlot() {
			return domain.FieldError("installments", "plot")
		}
		el.Plot.Installments = append(el.Plot.Installments, in)
		return nil
	})
}

// RemoveInstallment deletes the i-th installment of the selected plot.
func (e *Editor) RemoveInstallment(ctx context.Context, i int) error {
	return e.updateSelected(ctx, "installment", func(el *domain.Element) error {
		if !el.IsPlot() || i < 0 || i >= len(el.Plot.Installments) {
			return domain.FieldError("installments", "index")
		}
		el.Plot.Installments = append(el.Plot.Installments[:i], el.Plot.Installments[i+1:]...)
		return nil
	})
}

// AddDocument attaches a document reference to the selected plot.
func (e *Editor) AddDocument(ctx context.Context, d domain.Document) error {
	return e.updateSelected(ctx, "document", func(el *domain.Element) error {
		if !el.IsPlot() {
			return domain.FieldError("documents", "plot")
		}
		el.Plot.Documents = append(el.Plot.Documents, d)
		return nil
	})
}

// RemoveDocument deletes the i-th document of the selected plot.
func (e *Editor) RemoveDocument(ctx context.Context, i int) error {
	return e.updateSelected(ctx, "document", func(el *domain.Element) error {
		if !el.IsPlot() || i < 0 || i >= len(el.Plot.Documents) {
			return domain.FieldError("documents", "index")
		}
		el.Plot.Documents = append(el.Plot.Documents[:i], el.Plot.Documents[i+1:]...)
		return nil
	})
}

func (e *Editor) updateSelected(ctx context.Context, op string, mutate func(*domain.Element) error) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	if e.selected == "" {
		return ErrNoSelection
	}
	res, err := e.rec.UpdateElement(ctx, e.layout.ID, e.selected, mutate)
	if err != nil {
		return e.fail(op, err)
	}
	e.field = ""
	if e.state == EditingField {
		e.state = Viewing
	}
	e.record(ctx, op, res)
	e.emit(telemetry.EventElementEdited, map[string]any{"op": op})
	return nil
}

// Delete removes an element. It refuses unless the user confirmed.
func (e *Editor) Delete(ctx context.Context, id string, confirmed bool) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	if !confirmed {
		return ErrNotConfirmed
	}
	res, err := e.rec.DeleteElement(ctx, e.layout.ID, id)
	if err != nil {
		return e.fail("delete", err)
	}
	if e.selected == id {
		e.selected, e.field = "", ""
	}
	e.record(ctx, "delete", res)
	e.log.Info("element deleted", slog.String("layout", res.LayoutID), slog.String("element", id))
	e.emit(telemetry.EventElementDelete, nil)
	return nil
}

// LayoutFields returns the editable project-level fields.
func (e *Editor) LayoutFields() []Field {
	if !e.open {
		return nil
	}
	out := make([]Field, 0, len(store.Fields))
	for _, name := range store.Fields {
		v, err := store.GetField(e.layout, name)
		if err != nil {
			continue
		}
		out = append(out, Field{Name: name, Label: name, Value: v})
	}
	return out
}

// CommitLayoutField writes one project-level field. These edits are not
// part of element undo.
func (e *Editor) CommitLayoutField(ctx context.Context, field, value string) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	if err := e.store.WriteLayoutField(ctx, e.layout.ID, field, value); err != nil {
		return e.fail("layout_field", err)
	}
	e.lastErr = nil
	return e.Refresh(ctx)
}

// setField applies a textual value to one element field.
func setField(el *domain.Element, field, value string) error {
	value = strings.TrimSpace(value)
	if el.IsInfra() {
		switch field {
		case FieldName:
			if value == "" {
				return domain.FieldError(field, "required")
			}
			el.Infra.Name = value
		case FieldCategory:
			c := domain.Category(value)
			if !c.Valid() {
				return domain.FieldError(field, "oneof")
			}
			el.Infra.Category = c
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		return nil
	}
	if !el.IsPlot() {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	p := el.Plot
	switch field {
	case FieldStatus:
		s := domain.Status(value)
		if !s.Valid() {
			return domain.FieldError(field, "oneof")
		}
		p.Status = s
	case FieldSize:
		p.Size = value
	case FieldFacing:
		f := domain.Facing(strings.ToUpper(value))
		if !f.Valid() {
			return domain.FieldError(field, "oneof")
		}
		p.Facing = f
	case FieldPrice:
		if value == "" {
			p.Price = nil
			return nil
		}
		d, err := parseMoney(field, value)
		if err != nil {
			return err
		}
		p.Price = &d
	case FieldBookingAmount:
		if value == "" {
			p.BookingAmount = decimal.Zero
			return nil
		}
		d, err := parseMoney(field, value)
		if err != nil {
			return err
		}
		p.BookingAmount = d
	case FieldCustomerName:
		p.CustomerName = value
	case FieldCustomerPhone:
		p.CustomerPhone = value
	case FieldCustomerEmail:
		p.CustomerEmail = value
	case FieldCustomerAddress:
		p.CustomerAddress = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// parseMoney accepts "1,250,000.50" style input.
func parseMoney(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return decimal.Decimal{}, domain.FieldError(field, "number")
	}
	if d.IsNegative() {
		return decimal.Decimal{}, domain.FieldError(field, "gte")
	}
	return d, nil
}
