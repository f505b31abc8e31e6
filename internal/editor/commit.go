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
	"log/slog"

	"nexusmap/internal/reconcile"
	"nexusmap/internal/telemetry"
)

// PendingShape returns the committed shape waiting to be resolved.
func (e *Editor) PendingShape() (Pending, bool) {
	if e.pending == nil {
		return Pending{}, false
	}
	p := *e.pending
	p.Shape.Points = p.Shape.Points.Clone()
	return p, true
}

// DiscardPending drops the committed shape without writing anything.
func (e *Editor) DiscardPending() {
	e.pending = nil
	if e.state == Committing {
		e.state = Viewing
	}
}

// ResolveCreatePlot stores the pending shape as a new open plot.
func (e *Editor) ResolveCreatePlot(ctx context.Context, in reconcile.PlotInput) error {
	return e.resolve(ctx, "create_plot", func(p *Pending) (reconcile.Result, error) {
		return e.rec.CreatePlot(ctx, e.layout.ID, p.Shape, in)
	}, telemetry.EventPlotCreated)
}

// ResolveAttach gives the pending shape to an existing unassigned plot.
func (e *Editor) ResolveAttach(ctx context.Context, plotID string) error {
	return e.resolve(ctx, "attach", func(p *Pending) (reconcile.Result, error) {
		return e.rec.AttachToPlot(ctx, e.layout.ID, p.Shape, plotID)
	}, telemetry.EventPlotAttached)
}

// ResolveCreateInfra stores the pending shape as a road, park or amenity.
func (e *Editor) ResolveCreateInfra(ctx context.Context, in reconcile.InfraInput) error {
	return e.resolve(ctx, "create_infra", func(p *Pending) (reconcile.Result, error) {
		return e.rec.CreateInfra(ctx, e.layout.ID, p.Shape, in)
	}, telemetry.EventInfraCreated)
}

// resolve runs one reconciler commit. On failure the pending shape is kept
// so the host can correct the input and retry.
func (e *Editor) resolve(ctx context.Context, op string, fn func(*Pending) (reconcile.Result, error), event string) error {
	if err := e.requireEdit(); err != nil {
		return err
	}
	if e.pending == nil {
		return ErrNoPending
	}
	res, err := fn(e.pending)
	if err != nil {
		return e.fail(op, err)
	}
	e.pending = nil
	e.state = Viewing
	e.record(ctx, op, res)
	e.selected = res.ID
	e.log.Info("shape saved", slog.String("op", op), slog.String("layout", res.LayoutID),
		slog.String("element", res.ID), slog.Int64("version", res.Version))
	e.emit(event, nil)
	return nil
}
