/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package sqlstore implements DocumentStore over database/sql. Each layout is
// one row holding the JSON document and an integer version used for
// compare-and-swap writes. The sqlite and postgres packages open the
// database, run their migrations and hand the handle to New.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nexusmap/internal/domain"
	"nexusmap/internal/store"
)

// Dialect captures the few differences between SQL backends.
type Dialect struct {
	Name string
	// Numbered switches "?" placeholders to $1, $2, ...
	Numbered bool
	// LockRow is appended to the row read inside write transactions.
	LockRow string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true, LockRow: " FOR UPDATE"}
)

// Store is a DocumentStore on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps db. The layouts table must already exist.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: time.Now}
}

// DB exposes the handle for maintenance tasks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) q(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) read(ctx context.Context, qr queryer, id, suffix string) (domain.Layout, error) {
	var doc string
	var version int64
	err := qr.QueryRowContext(ctx, s.q(`SELECT doc, version FROM layouts WHERE id=?`+suffix), id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Layout{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return domain.Layout{}, fmt.Errorf("read layout %s: %w", id, err)
	}
	var l domain.Layout
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		return domain.Layout{}, fmt.Errorf("decode layout %s: %w", id, err)
	}
	l.ID = id
	l.Version = version
	if l.Elements == nil {
		l.Elements = []domain.Element{}
	}
	return l, nil
}

func (s *Store) ReadLayout(ctx context.Context, id string) (domain.Layout, error) {
	return s.read(ctx, s.db, id, "")
}

func (s *Store) WriteLayoutElements(ctx context.Context, id string, elements []domain.Element, expectVersion int64) (int64, error) {
	var version int64
	err := s.update(ctx, id, func(l *domain.Layout) error {
		if err := store.CheckVersion(id, l.Version, expectVersion); err != nil {
			return err
		}
		l.Elements = domain.CloneElements(elements)
		if l.Elements == nil {
			l.Elements = []domain.Element{}
		}
		return nil
	}, &version)
	return version, err
}

func (s *Store) ReadLayoutField(ctx context.Context, id, field string) (string, error) {
	l, err := s.ReadLayout(ctx, id)
	if err != nil {
		return "", err
	}
	return store.GetField(l, field)
}

func (s *Store) WriteLayoutField(ctx context.Context, id, field, value string) error {
	return s.update(ctx, id, func(l *domain.Layout) error { return store.SetField(l, field, value) }, nil)
}

// update reads the row inside a transaction, applies mutate and writes the
// document back guarded by the version it read.
func (s *Store) update(ctx context.Context, id string, mutate func(*domain.Layout) error, newVersion *int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	l, err := s.read(ctx, tx, id, s.dialect.LockRow)
	if err != nil {
		return err
	}
	have := l.Version
	if err = mutate(&l); err != nil {
		return err
	}
	l.Version = have + 1
	l.UpdatedAt = s.now().UTC()
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode layout %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.q(`UPDATE layouts SET name=?, doc=?, version=? WHERE id=? AND version=?`),
		l.Name, string(doc), l.Version, id, have)
	if err != nil {
		return fmt.Errorf("update layout %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s changed during write", store.ErrConflict, id)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit layout %s: %w", id, err)
	}
	if newVersion != nil {
		*newVersion = l.Version
	}
	return nil
}

func (s *Store) CreateLayout(ctx context.Context, l domain.Layout) (_ domain.Layout, err error) {
	l, err = store.PrepareNew(l)
	if err != nil {
		return domain.Layout{}, err
	}
	l.Version = 1
	l.UpdatedAt = s.now().UTC()
	doc, err := json.Marshal(l)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("encode layout %s: %w", l.ID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var one int
	switch err = tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM layouts WHERE id=?`), l.ID).Scan(&one); {
	case err == nil:
		return domain.Layout{}, fmt.Errorf("%w: %s", store.ErrExists, l.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Layout{}, fmt.Errorf("check layout %s: %w", l.ID, err)
	}
	if _, err = tx.ExecContext(ctx, s.q(`INSERT INTO layouts(id, name, doc, version) VALUES(?, ?, ?, ?)`),
		l.ID, l.Name, string(doc), l.Version); err != nil {
		return domain.Layout{}, fmt.Errorf("insert layout %s: %w", l.ID, err)
	}
	if err = tx.Commit(); err != nil {
		return domain.Layout{}, fmt.Errorf("commit layout %s: %w", l.ID, err)
	}
	return l, nil
}

func (s *Store) DeleteLayout(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM layouts WHERE id=?`), id)
	if err != nil {
		return fmt.Errorf("delete layout %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// summaryDoc decodes only what a listing needs.
type summaryDoc struct {
	Elements  []json.RawMessage `json:"elements"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (s *Store) ListLayouts(ctx context.Context) (_ []domain.Summary, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, version, doc FROM layouts`)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
	}()
	out := []domain.Summary{}
	for rows.Next() {
		var sum domain.Summary
		var doc string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Version, &doc); err != nil {
			return nil, err
		}
		var sd summaryDoc
		if err := json.Unmarshal([]byte(doc), &sd); err != nil {
			return nil, fmt.Errorf("decode layout %s: %w", sum.ID, err)
		}
		sum.Elements = len(sd.Elements)
		sum.UpdatedAt = sd.UpdatedAt
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortSummaries(out)
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
