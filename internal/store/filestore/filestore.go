/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package filestore keeps one human-readable JSON document per layout in a
// directory. Writes go to a temp file that is renamed over the target, and
// the previous document is copied to a timestamped backup first. A document
// that fails to parse or to match the layout schema is recovered from its
// newest backup.
package filestore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"nexusmap/internal/domain"
	applog "nexusmap/internal/log"
	"nexusmap/internal/store"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

const (
	BackupsDirName = "backups"
	docExt         = ".json"
	stampLayout    = "20060102-150405.000000000"
	// DefaultKeepBackups bounds the number of backups kept per layout.
	DefaultKeepBackups = 10
)

//go:embed layout.schema.json
var schemaJSON []byte

// Store is a directory of layout documents.
type Store struct {
	root        string
	keepBackups int
	schema      *gojsonschema.Schema
	now         func() time.Time

	mu sync.RWMutex
}

// Option customises a Store.
type Option func(*Store)

// WithKeepBackups sets how many backups are kept per layout; n <= 0 keeps all.
func WithKeepBackups(n int) Option { return func(s *Store) { s.keepBackups = n } }

// Open prepares root (creating it if needed) and compiles the layout schema.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("filestore: empty root")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: ensure dirs: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("filestore: compile schema: %w", err)
	}
	s := &Store{root: root, keepBackups: DefaultKeepBackups, schema: schema, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Root returns the directory holding the documents.
func (s *Store) Root() string { return s.root }

func (s *Store) docPath(id string) string { return filepath.Join(s.root, id+docExt) }

func (s *Store) ReadLayout(ctx context.Context, id string) (domain.Layout, error) {
	if err := ctx.Err(); err != nil {
		return domain.Layout{}, err
	}
	if err := store.CheckID(id); err != nil {
		return domain.Layout{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
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
		version = l.Version + 1
		return nil
	})
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
	return s.update(ctx, id, func(l *domain.Layout) error { return store.SetField(l, field, value) })
}

func (s *Store) CreateLayout(ctx context.Context, l domain.Layout) (domain.Layout, error) {
	if err := ctx.Err(); err != nil {
		return domain.Layout{}, err
	}
	l, err := store.PrepareNew(l)
	if err != nil {
		return domain.Layout{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.docPath(l.ID)); err == nil {
		return domain.Layout{}, fmt.Errorf("%w: %s", store.ErrExists, l.ID)
	}
	l.Version = 1
	l.UpdatedAt = s.now().UTC()
	if err := s.save(l); err != nil {
		return domain.Layout{}, err
	}
	return l.Clone(), nil
}

// DeleteLayout removes the document. Backups are kept so a deleted layout
// can be restored by hand.
func (s *Store) DeleteLayout(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.CheckID(id); err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.docPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return fmt.Errorf("delete layout %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListLayouts(ctx context.Context) ([]domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	l := applog.WithOperation(applog.WithComponent("store"), "list")
	out := []domain.Summary{}
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".") {
			continue
		}
		lay, err := s.load(strings.TrimSuffix(name, docExt))
		if err != nil {
			l.Warn("skipping unreadable layout", slog.String("file", name), slog.Any("err", err))
			continue
		}
		out = append(out, lay.Summary())
	}
	store.SortSummaries(out)
	return out, nil
}

func (s *Store) Close() error { return nil }

// update runs a read-modify-write cycle under the write lock.
func (s *Store) update(ctx context.Context, id string, mutate func(*domain.Layout) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.CheckID(id); err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.load(id)
	if err != nil {
		return err
	}
	if err := mutate(&l); err != nil {
		return err
	}
	l.Version++
	l.UpdatedAt = s.now().UTC()
	return s.save(l)
}

// load reads a document, falling back to the newest backup when the current
// file is damaged. A missing document is ErrNotFound.
func (s *Store) load(id string) (domain.Layout, error) {
	path := s.docPath(id)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Layout{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return domain.Layout{}, fmt.Errorf("read layout %s: %w", id, err)
	}
	l, derr := s.decode(b)
	if derr == nil {
		return l, nil
	}
	log := applog.WithOperation(applog.WithComponent("store"), "load")
	log.Warn("layout document damaged, trying backup", slog.String("layout", id), slog.Any("err", derr))
	l, berr := s.openFromLatestBackup(id)
	if berr != nil {
		return domain.Layout{}, fmt.Errorf("parse layout %s: %w; backup attempt: %v", id, derr, berr)
	}
	return l, nil
}

func (s *Store) decode(b []byte) (domain.Layout, error) {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return domain.Layout{}, err
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.Layout{}, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}
	var l domain.Layout
	if err := json.Unmarshal(b, &l); err != nil {
		return domain.Layout{}, err
	}
	if l.Elements == nil {
		l.Elements = []domain.Element{}
	}
	return l, nil
}

// save backs up the current document, then replaces it atomically.
func (s *Store) save(l domain.Layout) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal layout %s: %w", l.ID, err)
	}
	data = append(data, '\n')

	path := s.docPath(l.ID)
	if _, statErr := os.Stat(path); statErr == nil {
		bname := fmt.Sprintf("%s%s.%s.bak", l.ID, docExt, s.now().UTC().Format(stampLayout))
		if cerr := copyFile(path, filepath.Join(s.root, BackupsDirName, bname)); cerr != nil {
			return fmt.Errorf("backup layout %s: %w", l.ID, cerr)
		}
		s.pruneBackups(l.ID)
	}

	temp := filepath.Join(s.root, fmt.Sprintf(".%s%s.tmp-%d-%d", l.ID, docExt, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp layout %s: %w", l.ID, werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace layout %s: %w", l.ID, rerr)
	}
	return nil
}

// backups lists the backup files for id, oldest first.
func (s *Store) backups(id string) ([]string, error) {
	bdir := filepath.Join(s.root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := id + docExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // fixed-width timestamps sort chronologically
	return out, nil
}

// Backups returns the backup file paths for a layout, oldest first.
func (s *Store) Backups(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backups(id)
}

func (s *Store) pruneBackups(id string) {
	if s.keepBackups <= 0 {
		return
	}
	list, err := s.backups(id)
	if err != nil || len(list) <= s.keepBackups {
		return
	}
	for _, p := range list[:len(list)-s.keepBackups] {
		if err := os.Remove(p); err != nil {
			applog.WithComponent("store").Warn("prune backup failed", slog.String("path", p), slog.Any("err", err))
		}
	}
}

func (s *Store) openFromLatestBackup(id string) (domain.Layout, error) {
	list, err := s.backups(id)
	if err != nil {
		return domain.Layout{}, err
	}
	if len(list) == 0 {
		return domain.Layout{}, errors.New("no backups found")
	}
	latest := list[len(list)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("read latest backup: %w", err)
	}
	l, err := s.decode(b)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("parse latest backup: %w", err)
	}
	return l, nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
