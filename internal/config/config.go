/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: built-in defaults, then the
// YAML file in the user config directory, then LKP_* environment overrides.
// Secrets are never written to the YAML file; they live in the OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is written to config_version. Bump on incompatible layout changes.
const CurrentVersion = 1

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	TelemetryURL   string `yaml:"telemetry_url"`
	// Workspace holds the draft project, imported assets, exports and history.
	Workspace string `yaml:"workspace"`
	// OpenCommand is run with the exported PDF path to hand it to the host print dialog.
	// Empty disables the hand-off.
	OpenCommand string `yaml:"open_command"`
	Author      string `yaml:"author"`
}

type EditorConfig struct {
	DisplayMax float64 `yaml:"display_max"`
	WheelStep  float64 `yaml:"wheel_step"`
	RotateStep float64 `yaml:"rotate_step"`
	// SliderZoomMax is the upper end of the zoom slider track. Wheel and model allow more.
	SliderZoomMax float64 `yaml:"slider_zoom_max"`
}

type SheetConfig struct {
	WidthMm         float64 `yaml:"width_mm"`
	HeightMm        float64 `yaml:"height_mm"`
	MarginMm        float64 `yaml:"margin_mm"`
	GapMm           float64 `yaml:"gap_mm"`
	CalibrationMm   float64 `yaml:"calibration_mm"`
	ShowCalibration bool    `yaml:"show_calibration"`
	Captions        bool    `yaml:"captions"`
}

type HistoryConfig struct {
	Backend    string `yaml:"backend"` // memory | file | sqlite | postgres
	Capacity   int    `yaml:"capacity"`
	QuotaBytes int64  `yaml:"quota_bytes"` // 0 = unlimited; not applied to postgres
	// PostgresDSN must not carry the password; it is read from the keychain.
	PostgresDSN string `yaml:"postgres_dsn"`
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
	Editor        EditorConfig  `yaml:"editor"`
	Sheet         SheetConfig   `yaml:"sheet"`
	History       HistoryConfig `yaml:"history"`
	Logging       LoggingConfig `yaml:"logging"`
}

// History backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Defaults returns the application defaults. Sheet values describe an A4 page in millimetres.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Workspace: defaultWorkspace()},
		Editor:        EditorConfig{DisplayMax: 450, WheelStep: 0.02, RotateStep: 90, SliderZoomMax: 5},
		Sheet: SheetConfig{
			WidthMm: 210, HeightMm: 297, MarginMm: 15, GapMm: 15,
			CalibrationMm: 50, ShowCalibration: true, Captions: true,
		},
		History: HistoryConfig{Backend: BackendFile, Capacity: 10},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile      = "LKP_CONFIG"
	EnvWorkspace       = "LKP_WORKSPACE"
	EnvOpenCommand     = "LKP_OPEN_COMMAND"
	EnvTelemetryOptIn  = "LKP_TELEMETRY_OPT_IN"
	EnvTelemetryURL    = "LKP_TELEMETRY_URL"
	EnvHistoryBackend  = "LKP_HISTORY_BACKEND"
	EnvHistoryCapacity = "LKP_HISTORY_CAPACITY"
	EnvPostgresDSN     = "LKP_PG_DSN"
	EnvShowCalibration = "LKP_SHOW_CALIBRATION"
	EnvLogLevel        = "LKP_LOG_LEVEL"
	EnvLogFormat       = "LKP_LOG_FORMAT"
	EnvLogSource       = "LKP_LOG_SOURCE"
	EnvLogFile         = "LKP_LOG_FILE"
)

// ConfigPath returns the per-user config file path. LKP_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	base := userDir("config")
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

func defaultWorkspace() string {
	base := userDir("data")
	if base == "" {
		return "locketprint"
	}
	return base
}

func userDir(kind string) string {
	home := os.Getenv("HOME")
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "LocketPrint")
	case "darwin":
		if home == "" {
			return ""
		}
		return filepath.Join(home, "Library", "Application Support", "LocketPrint")
	default:
		if home == "" {
			return ""
		}
		if kind == "data" {
			return filepath.Join(home, ".local", "share", "locketprint")
		}
		return filepath.Join(home, ".config", "locketprint")
	}
}

// Load reads the user config file (if present) over the defaults and applies
// environment overrides. The returned secret is the history database password
// from the keychain, empty when none is stored.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, "", err
	}
	applyEnvOverrides(&cfg)
	secret, _ := tokenStore.Get(keyringService, keyringPostgres)
	return cfg, secret, nil
}

// LoadFile decodes path over the defaults. A missing file yields the defaults.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fileCfg AppConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	// Decode a second time over the defaults so fields absent from the file keep their default.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("parse config %s: %w", path, err)
	}
	mergeInto(&cfg, &fileCfg)
	return cfg, nil
}

// Save writes the user config YAML and stores secret in the keychain when non-empty.
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringPostgres, secret); err != nil {
			return fmt.Errorf("store secret: %w", err)
		}
	}
	return nil
}

// mergeInto normalizes values decoded from src into dst, falling back to the
// defaults for out-of-range numbers and unknown enum values.
func mergeInto(dst *AppConfig, src *AppConfig) {
	def := Defaults()
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.Workspace = strings.TrimSpace(dst.General.Workspace)
	if dst.General.Workspace == "" {
		dst.General.Workspace = def.General.Workspace
	}

	positive(&dst.Editor.DisplayMax, def.Editor.DisplayMax)
	positive(&dst.Editor.WheelStep, def.Editor.WheelStep)
	positive(&dst.Editor.SliderZoomMax, def.Editor.SliderZoomMax)
	if dst.Editor.RotateStep == 0 {
		dst.Editor.RotateStep = def.Editor.RotateStep
	}

	positive(&dst.Sheet.WidthMm, def.Sheet.WidthMm)
	positive(&dst.Sheet.HeightMm, def.Sheet.HeightMm)
	positive(&dst.Sheet.CalibrationMm, def.Sheet.CalibrationMm)
	if dst.Sheet.MarginMm < 0 || 2*dst.Sheet.MarginMm >= dst.Sheet.WidthMm {
		dst.Sheet.MarginMm = def.Sheet.MarginMm
	}
	if dst.Sheet.GapMm < 0 {
		dst.Sheet.GapMm = def.Sheet.GapMm
	}

	dst.History.Backend = strings.ToLower(strings.TrimSpace(dst.History.Backend))
	switch dst.History.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendPostgres:
	default:
		dst.History.Backend = def.History.Backend
	}
	if dst.History.Capacity <= 0 {
		dst.History.Capacity = def.History.Capacity
	}
	if dst.History.QuotaBytes < 0 {
		dst.History.QuotaBytes = 0
	}

	if s := strings.ToLower(strings.TrimSpace(src.Logging.Level)); s != "" {
		dst.Logging.Level = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Logging.Format)); s != "" {
		dst.Logging.Format = s
	}
	dst.Logging.File = strings.TrimSpace(dst.Logging.File)
}

func positive(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.General.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOpenCommand)); v != "" {
		cfg.General.OpenCommand = v
	}
	if v := os.Getenv(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.General.TelemetryURL = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvHistoryBackend))); v != "" {
		switch v {
		case BackendMemory, BackendFile, BackendSQLite, BackendPostgres:
			cfg.History.Backend = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryCapacity)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.Capacity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.History.PostgresDSN = v
	}
	if v := os.Getenv(EnvShowCalibration); v != "" {
		cfg.Sheet.ShowCalibration = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogSource); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"general.workspace":        EnvWorkspace,
	"general.open_command":     EnvOpenCommand,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.telemetry_url":    EnvTelemetryURL,
	"history.backend":          EnvHistoryBackend,
	"history.capacity":         EnvHistoryCapacity,
	"history.postgres_dsn":     EnvPostgresDSN,
	"sheet.show_calibration":   EnvShowCalibration,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the dotted key is currently overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Path helpers below resolve locations inside the workspace.

func (g GeneralConfig) ExportsDir() string { return filepath.Join(g.Workspace, "exports") }

func (g GeneralConfig) HistoryFile() string { return filepath.Join(g.Workspace, "history.json") }

func (g GeneralConfig) HistoryDB() string { return filepath.Join(g.Workspace, "history.sqlite") }
