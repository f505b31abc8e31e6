/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backends picks a DocumentStore implementation from configuration.
package backends

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"nexusmap/internal/config"
	applog "nexusmap/internal/log"
	"nexusmap/internal/store"
	"nexusmap/internal/store/filestore"
	"nexusmap/internal/store/postgres"
	"nexusmap/internal/store/sqlite"
)

// Open returns the store selected by cfg. Demo data mode always uses a
// memory store seeded with the demo layout so live data is never touched.
func Open(ctx context.Context, cfg config.AppConfig, sec config.Secrets) (store.DocumentStore, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "open")
	if cfg.General.Demo() {
		l.Info("demo data mode, using seeded memory store")
		return store.NewDemo(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout())
	defer cancel()

	driver := cfg.Store.Driver
	l = l.With(slog.String("driver", driver))
	switch driver {
	case "memory":
		return store.NewMemory(), nil
	case "file", "":
		dir, err := pathOrDefault(cfg.Store.Path, "layouts")
		if err != nil {
			return nil, err
		}
		l.Debug("opening file store", slog.String("dir", dir))
		fs, err := filestore.Open(dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "sqlite":
		p, err := pathOrDefault(cfg.Store.Path, "layouts.db")
		if err != nil {
			return nil, err
		}
		db, err := sqlite.Open(ctx, p)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Store.DSN, sec.StorePassword)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

func pathOrDefault(p, name string) (string, error) {
	if p != "" {
		return p, nil
	}
	dir, err := config.DataDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(dir, name), nil
}
