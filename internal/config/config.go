/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
// Secrets (database password, share link signing key) never go into the file;
// they live in the OS keychain.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	DataMode       string `yaml:"data_mode"` // "live" | "demo"
	ReadOnly       bool   `yaml:"read_only"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"` // "file" | "sqlite" | "postgres" | "memory"
	Path       string `yaml:"path"`   // directory for file, db file for sqlite
	DSN        string `yaml:"dsn"`    // postgres; password comes from the keyring
	TimeoutMs  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"` // compare-and-swap retries on conflict
}

type EditorConfig struct {
	MinScale       float64 `yaml:"min_scale"`
	MaxScale       float64 `yaml:"max_scale"`
	WheelFactor    float64 `yaml:"wheel_factor"`
	MinBoxPx       float64 `yaml:"min_box_px"`
	LabelScale     float64 `yaml:"label_scale"`
	UnitsPerFoot   float64 `yaml:"units_per_foot"`
	SnapPx         float64 `yaml:"snap_px"` // 0 disables vertex snapping
	ViewportWidth  int     `yaml:"viewport_width"`
	ViewportHeight int     `yaml:"viewport_height"`
	FocusScale     float64 `yaml:"focus_scale"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Store         StoreConfig   `yaml:"store"`
	Editor        EditorConfig  `yaml:"editor"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Secrets are resolved from the keyring (or env) and handed to the components
// that need them. They are never written to the YAML file.
type Secrets struct {
	StorePassword string
	ShareKey      string
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{DataMode: "live"},
		Store:         StoreConfig{Driver: "file", TimeoutMs: 15000, MaxRetries: 3},
		Editor: EditorConfig{
			MinScale: 0.1, MaxScale: 10, WheelFactor: 0.001,
			MinBoxPx: 5, LabelScale: 0.5, UnitsPerFoot: 1,
			ViewportWidth: 1280, ViewportHeight: 800, FocusScale: 2.5,
		},
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvDataMode       = "NXM_DATA_MODE"
	EnvReadOnly       = "NXM_READ_ONLY"
	EnvTelemetryOptIn = "NXM_TELEMETRY_OPT_IN"
	EnvStoreDriver    = "NXM_STORE_DRIVER"
	EnvStorePath      = "NXM_STORE_PATH"
	EnvStoreDSN       = "NXM_STORE_DSN"
	EnvStorePassword  = "NXM_STORE_PASSWORD"
	EnvShareKey       = "NXM_SHARE_KEY"
	EnvServerAddr     = "NXM_SERVER_ADDR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "NXM_LOG_LEVEL"
	EnvLogFormat = "NXM_LOG_FORMAT"
	EnvLogSource = "NXM_LOG_SOURCE"
	EnvLogFile   = "NXM_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "NexusMap")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "NexusMap")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "nexusmap")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "nexusmap")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the default directory for layout documents and databases,
// next to the config file.
func DataDir() (string, error) {
	p, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(p), "data"), nil
}

// Load reads the user config file at ConfigPath.
func Load() (AppConfig, Secrets, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), Secrets{}, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path (if present), applies defaults and
// environment overrides, then resolves secrets. A missing file is not an error;
// a file that does not parse is.
func LoadFrom(path string) (AppConfig, Secrets, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, Secrets{}, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, Secrets{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, loadSecrets(), nil
}

func loadSecrets() Secrets {
	var s Secrets
	s.StorePassword = strings.TrimSpace(os.Getenv(EnvStorePassword))
	if s.StorePassword == "" {
		s.StorePassword, _ = tokenStore.Get(keyringService, keyringStorePassword)
	}
	s.ShareKey = strings.TrimSpace(os.Getenv(EnvShareKey))
	if s.ShareKey == "" {
		s.ShareKey, _ = tokenStore.Get(keyringService, keyringShareKey)
	}
	return s
}

// Save writes the user config YAML to ConfigPath and persists non-empty secrets.
func Save(cfg AppConfig, sec Secrets) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg, sec)
}

// SaveTo writes cfg to path and non-empty secrets into the keyring.
func SaveTo(path string, cfg AppConfig, sec Secrets) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if sec.StorePassword != "" {
		if err := tokenStore.Set(keyringService, keyringStorePassword, sec.StorePassword); err != nil {
			return fmt.Errorf("store password: %w", err)
		}
	}
	if sec.ShareKey != "" {
		if err := tokenStore.Set(keyringService, keyringShareKey, sec.ShareKey); err != nil {
			return fmt.Errorf("share key: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.ReadOnly = src.General.ReadOnly
	setString(&dst.General.DataMode, strings.ToLower(src.General.DataMode))

	setString(&dst.Store.Driver, strings.ToLower(src.Store.Driver))
	setString(&dst.Store.Path, src.Store.Path)
	setString(&dst.Store.DSN, src.Store.DSN)
	setInt(&dst.Store.TimeoutMs, src.Store.TimeoutMs)
	setInt(&dst.Store.MaxRetries, src.Store.MaxRetries)

	e, s := &dst.Editor, src.Editor
	setFloat(&e.MinScale, s.MinScale)
	setFloat(&e.MaxScale, s.MaxScale)
	setFloat(&e.WheelFactor, s.WheelFactor)
	setFloat(&e.MinBoxPx, s.MinBoxPx)
	setFloat(&e.LabelScale, s.LabelScale)
	setFloat(&e.UnitsPerFoot, s.UnitsPerFoot)
	setFloat(&e.FocusScale, s.FocusScale)
	e.SnapPx = s.SnapPx
	setInt(&e.ViewportWidth, s.ViewportWidth)
	setInt(&e.ViewportHeight, s.ViewportHeight)

	setString(&dst.Server.Addr, src.Server.Addr)
	setString(&dst.Server.PublicBaseURL, src.Server.PublicBaseURL)

	setString(&dst.Logging.Level, strings.ToLower(src.Logging.Level))
	setString(&dst.Logging.Format, strings.ToLower(src.Logging.Format))
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return false, false
	}
	return v == "1" || v == "true" || v == "on" || v == "yes", true
}

func applyEnvOverrides(cfg *AppConfig) {
	setString(&cfg.General.DataMode, strings.ToLower(os.Getenv(EnvDataMode)))
	if b, ok := envBool(EnvReadOnly); ok {
		cfg.General.ReadOnly = b
	}
	if b, ok := envBool(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = b
	}
	setString(&cfg.Store.Driver, strings.ToLower(os.Getenv(EnvStoreDriver)))
	setString(&cfg.Store.Path, os.Getenv(EnvStorePath))
	setString(&cfg.Store.DSN, os.Getenv(EnvStoreDSN))
	setString(&cfg.Server.Addr, os.Getenv(EnvServerAddr))
	// logging overrides
	setString(&cfg.Logging.Level, strings.ToLower(os.Getenv(EnvLogLevel)))
	setString(&cfg.Logging.Format, strings.ToLower(os.Getenv(EnvLogFormat)))
	if b, ok := envBool(EnvLogSource); ok {
		cfg.Logging.Source = b
	}
	setString(&cfg.Logging.File, os.Getenv(EnvLogFile))
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.data_mode":        EnvDataMode,
		"general.read_only":        EnvReadOnly,
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"store.driver":             EnvStoreDriver,
		"store.path":               EnvStorePath,
		"store.dsn":                EnvStoreDSN,
		"server.addr":              EnvServerAddr,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the store call timeout.
func (s StoreConfig) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return time.Duration(Defaults().Store.TimeoutMs) * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Demo reports whether the session runs against seeded demo data.
func (g GeneralConfig) Demo() bool { return g.DataMode == "demo" }

// Validate reports the first inconsistent editor or store setting.
func (c AppConfig) Validate() error {
	e := c.Editor
	if e.MinScale <= 0 || e.MaxScale < e.MinScale {
		return fmt.Errorf("editor scale range [%v, %v] is invalid", e.MinScale, e.MaxScale)
	}
	if e.UnitsPerFoot <= 0 {
		return fmt.Errorf("editor.units_per_foot must be positive, got %v", e.UnitsPerFoot)
	}
	switch c.Store.Driver {
	case "file", "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.General.DataMode {
	case "live", "demo":
	default:
		return fmt.Errorf("unknown data mode %q", c.General.DataMode)
	}
	return nil
}

// String renders a short human summary used by the CLI.
func (c AppConfig) String() string {
	return "store=" + c.Store.Driver + " mode=" + c.General.DataMode + " read_only=" + strconv.FormatBool(c.General.ReadOnly)
}
