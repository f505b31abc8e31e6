/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package reconcile merges drawn shapes and inspector edits into a layout's
// element collection. Every operation re-reads the layout right before it
// merges, changes only the element it targets (matched by id) and writes the
// whole collection back guarded by the version it read. A version conflict
// triggers a fresh read and merge, up to a bounded number of retries.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"nexusmap/internal/domain"
	"nexusmap/internal/drawing"
	applog "nexusmap/internal/log"
	"nexusmap/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrDuplicateID   = errors.New("element id already exists")
	ErrNotFound      = errors.New("element not found")
	ErrNoCandidates  = errors.New("no unassigned plots to attach to")
	ErrNotUnassigned = errors.New("plot already has geometry")
)

// DefaultRetries bounds re-fetch-and-merge attempts after a version conflict.
const DefaultRetries = 3

// MaxPregenerate caps a single bulk pre-generation.
const MaxPregenerate = 10000

// PlotInput names a plot created from a drawn shape.
type PlotInput struct {
	ID     string           `json:"id" validate:"required,max=64"`
	Size   string           `json:"size" validate:"max=32"`
	Facing domain.Facing    `json:"facing" validate:"omitempty,oneof=N S E W NE NW SE SW"`
	Price  *decimal.Decimal `json:"price"`
}

// InfraInput names an infrastructure element created from a drawn shape.
type InfraInput struct {
	Name     string          `json:"name" validate:"required,max=80"`
	Category domain.Category `json:"category" validate:"omitempty,oneof=Road Park Amenity"`
}

// Result describes one committed mutation. Before is nil when the element
// was created, After is nil when it was removed.
type Result struct {
	LayoutID string
	ID       string
	Before   *domain.Element
	After    *domain.Element
	Version  int64
}

// Created reports whether the mutation added a new element.
func (r Result) Created() bool { return r.Before == nil && r.After != nil }

// Reconciler is safe for concurrent use.
type Reconciler struct {
	store   store.DocumentStore
	retries int
	newID   func() (string, error)
}

type Option func(*Reconciler)

// WithRetries sets the number of retries after ErrConflict.
func WithRetries(n int) Option {
	return func(r *Reconciler) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithIDFunc replaces the infrastructure id generator.
func WithIDFunc(fn func() (string, error)) Option { return func(r *Reconciler) { r.newID = fn } }

func New(s store.DocumentStore, opts ...Option) *Reconciler {
	r := &Reconciler{store: s, retries: DefaultRetries, newID: newInfraID}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Store returns the underlying document store.
func (r *Reconciler) Store() store.DocumentStore { return r.store }

// newInfraID returns a time-ordered UUIDv7.
func newInfraID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func invalid(err error) error { return fmt.Errorf("%w: %w", ErrValidation, err) }

func checkShape(s drawing.Shape) error {
	if !s.Points.Valid() || s.Points.Area() == 0 {
		return invalid(domain.FieldError("points", "min"))
	}
	return nil
}

// mergeFunc edits a private copy of the element collection.
type mergeFunc func(els []domain.Element) ([]domain.Element, Result, error)

// merge runs the read-merge-write cycle for one mutation.
func (r *Reconciler) merge(ctx context.Context, op, layoutID string, fn mergeFunc) (Result, error) {
	ctx = applog.ContextWithLayout(ctx, layoutID)
	l := applog.WithOperation(applog.WithComponent("reconcile"), op)
	for attempt := 0; ; attempt++ {
		lay, err := r.store.ReadLayout(ctx, layoutID)
		if err != nil {
			return Result{}, err
		}
		els, res, err := fn(domain.CloneElements(lay.Elements))
		if err != nil {
			return Result{}, err
		}
		v, err := r.store.WriteLayoutElements(ctx, layoutID, els, lay.Version)
		if errors.Is(err, store.ErrConflict) && attempt < r.retries {
			l.DebugContext(ctx, "version conflict, re-merging", slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			l.ErrorContext(ctx, "write failed", slog.String("element", res.ID), slog.Any("err", err))
			return Result{}, err
		}
		res.LayoutID = layoutID
		res.Version = v
		l.InfoContext(applog.ContextWithElement(ctx, res.ID), "committed", slog.Int64("version", v))
		return res, nil
	}
}

func ptr(e domain.Element) *domain.Element { return &e }

// CreatePlot adds a new open plot with the drawn geometry.
func (r *Reconciler) CreatePlot(ctx context.Context, layoutID string, shape drawing.Shape, in PlotInput) (Result, error) {
	in.ID = strings.TrimSpace(in.ID)
	if err := domain.ValidateStruct(in); err != nil {
		return Result{}, invalid(err)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return Result{}, invalid(domain.FieldError("price", "gte"))
	}
	if err := checkShape(shape); err != nil {
		return Result{}, err
	}
	return r.merge(ctx, "create_plot", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		if indexOf(els, in.ID) >= 0 {
			return nil, Result{}, fmt.Errorf("%w: %s", ErrDuplicateID, in.ID)
		}
		e := domain.NewPlot(in.ID, domain.GeometryOf(shape.Points))
		e.Plot.Size = in.Size
		e.Plot.Facing = in.Facing
		if in.Price != nil {
			p := *in.Price
			e.Plot.Price = &p
		}
		return append(els, e), Result{ID: e.ID, After: ptr(e.Clone())}, nil
	})
}

// AttachToPlot sets the geometry of an existing unassigned plot, keeping
// every other field of the record.
func (r *Reconciler) AttachToPlot(ctx context.Context, layoutID string, shape drawing.Shape, plotID string) (Result, error) {
	if err := checkShape(shape); err != nil {
		return Result{}, err
	}
	return r.merge(ctx, "attach", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		if !hasUnassigned(els) {
			return nil, Result{}, ErrNoCandidates
		}
		if plotID == "" {
			return nil, Result{}, invalid(domain.FieldError("plot", "required"))
		}
		i := indexOf(els, plotID)
		if i < 0 {
			return nil, Result{}, fmt.Errorf("%w: %s", ErrNotFound, plotID)
		}
		if !els[i].IsPlot() {
			return nil, Result{}, invalid(domain.FieldError("plot", "type"))
		}
		if !els[i].Unassigned() {
			return nil, Result{}, fmt.Errorf("%w: %s", ErrNotUnassigned, plotID)
		}
		before := els[i].Clone()
		els[i].Points = domain.GeometryOf(shape.Points)
		return els, Result{ID: plotID, Before: &before, After: ptr(els[i].Clone())}, nil
	})
}

// CreateInfra adds a road, park or amenity with a generated id.
func (r *Reconciler) CreateInfra(ctx context.Context, layoutID string, shape drawing.Shape, in InfraInput) (Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := domain.ValidateStruct(in); err != nil {
		return Result{}, invalid(err)
	}
	if err := checkShape(shape); err != nil {
		return Result{}, err
	}
	id, err := r.newID()
	if err != nil {
		return Result{}, fmt.Errorf("generate id: %w", err)
	}
	return r.merge(ctx, "create_infra", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		if indexOf(els, id) >= 0 {
			return nil, Result{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		e := domain.NewInfra(id, in.Name, in.Category, domain.GeometryOf(shape.Points))
		return append(els, e), Result{ID: id, After: ptr(e.Clone())}, nil
	})
}

// UnassignedPlots lists plots without usable geometry in collection order.
func (r *Reconciler) UnassignedPlots(ctx context.Context, layoutID string) ([]domain.Element, error) {
	lay, err := r.store.ReadLayout(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	return lay.UnassignedPlots(), nil
}

// UpdateElement applies mutate to a copy of the element and writes it back.
// mutate may run more than once when the write has to be retried, and must
// not change the id.
func (r *Reconciler) UpdateElement(ctx context.Context, layoutID, id string, mutate func(*domain.Element) error) (Result, error) {
	return r.merge(ctx, "update", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		i := indexOf(els, id)
		if i < 0 {
			return nil, Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		before := els[i].Clone()
		e := els[i].Clone()
		if err := mutate(&e); err != nil {
			if errors.Is(err, domain.ErrInvalid) {
				return nil, Result{}, invalid(err)
			}
			return nil, Result{}, err
		}
		if e.ID != id {
			return nil, Result{}, invalid(domain.FieldError("id", "readonly"))
		}
		// stored geometry that does not parse is carried over untouched
		validate := domain.ValidateElement
		if e.Points.String() == before.Points.String() {
			validate = domain.ValidateElementData
		}
		if err := validate(e); err != nil {
			return nil, Result{}, invalid(err)
		}
		els[i] = e
		return els, Result{ID: id, Before: &before, After: ptr(e.Clone())}, nil
	})
}

// DeleteElement removes the element with id.
func (r *Reconciler) DeleteElement(ctx context.Context, layoutID, id string) (Result, error) {
	return r.merge(ctx, "delete", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		i := indexOf(els, id)
		if i < 0 {
			return nil, Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		before := els[i].Clone()
		els = append(els[:i], els[i+1:]...)
		return els, Result{ID: id, Before: &before}, nil
	})
}

// Pregenerate registers n blank open plots named prefix+"1" .. prefix+n.
// Nothing is written when any of the ids already exists.
func (r *Reconciler) Pregenerate(ctx context.Context, layoutID string, n int, prefix string) ([]string, int64, error) {
	if n < 1 || n > MaxPregenerate {
		return nil, 0, invalid(domain.FieldError("count", "range"))
	}
	prefix = strings.TrimSpace(prefix)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = prefix + strconv.Itoa(i+1)
	}
	res, err := r.merge(ctx, "pregenerate", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		existing := make(map[string]bool, len(els))
		for _, e := range els {
			existing[e.ID] = true
		}
		for _, id := range ids {
			if existing[id] {
				return nil, Result{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
			}
			els = append(els, domain.NewPlot(id, domain.Geometry{}))
		}
		return els, Result{ID: ids[0]}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return ids, res.Version, nil
}

// Restore puts back a before-image recorded for element id: nil removes the
// element (undo of a create), otherwise the stored record replaces the
// current one or is re-appended when it was deleted.
func (r *Reconciler) Restore(ctx context.Context, layoutID string, before *domain.Element, id string) (Result, error) {
	if before != nil && before.ID != id {
		return Result{}, invalid(domain.FieldError("id", "eqfield"))
	}
	return r.merge(ctx, "restore", layoutID, func(els []domain.Element) ([]domain.Element, Result, error) {
		i := indexOf(els, id)
		var cur *domain.Element
		if i >= 0 {
			cur = ptr(els[i].Clone())
		}
		switch {
		case before == nil && i < 0:
			return nil, Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		case before == nil:
			els = append(els[:i], els[i+1:]...)
			return els, Result{ID: id, Before: cur}, nil
		case i < 0:
			els = append(els, before.Clone())
		default:
			els[i] = before.Clone()
		}
		return els, Result{ID: id, Before: cur, After: ptr(before.Clone())}, nil
	})
}

func indexOf(els []domain.Element, id string) int {
	for i := range els {
		if els[i].ID == id {
			return i
		}
	}
	return -1
}

func hasUnassigned(els []domain.Element) bool {
	for _, e := range els {
		if e.Unassigned() {
			return true
		}
	}
	return false
}
