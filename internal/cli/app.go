/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli wires configuration, logging, the workspace, print history and
// the project session behind the locketprint cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"locketprint/internal/config"
	"locketprint/internal/crash"
	"locketprint/internal/domain"
	"locketprint/internal/export"
	"locketprint/internal/history"
	"locketprint/internal/layout"
	applog "locketprint/internal/log"
	"locketprint/internal/project"
	"locketprint/internal/storage"
	"locketprint/internal/telemetry"
)

// App holds the state shared by all commands of one invocation.
type App struct {
	cfg    config.AppConfig
	secret string
	loaded bool

	ws      *storage.Workspace
	hist    *history.Log
	session *project.Session
}

func New() *App { return &App{} }

// load reads .env, the user config and the environment, then sets up logging
// and telemetry. It is idempotent.
func (a *App) load() error {
	if a.loaded {
		return nil
	}
	_ = godotenv.Load()
	cfg, secret, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg, a.secret = cfg, secret
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	telemetry.SetDefault(telemetry.New(telemetry.FromConfig(cfg.General)))
	a.loaded = true
	return nil
}

// open prepares the workspace, history and session. The draft left by the
// previous run becomes the initial state.
func (a *App) open(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	if err := a.load(); err != nil {
		return err
	}
	l := applog.WithOperation(applog.WithComponent("cli"), "open")
	ws, err := storage.OpenWorkspace(a.cfg.General.Workspace)
	if err != nil {
		return err
	}
	hist, err := history.Open(ctx, a.cfg.General, a.cfg.History, a.secret, history.WithReporter(reportHistoryFailure))
	if err != nil {
		return err
	}
	state, err := ws.LoadDraft()
	if err != nil {
		l.Warn("draft unreadable, starting empty", slog.Any("err", err))
		state = domain.EmptyState()
	}
	printer := export.NewPDFPrinter(ws.Assets, ws.ExportsDir(), a.cfg.General.OpenCommand, a.cfg.General.Author)
	sess, err := project.NewSession(state,
		project.WithAssets(ws.Assets),
		project.WithHistory(hist),
		project.WithPrinter(printer),
		project.WithSheet(layout.FromConfig(a.cfg.Sheet)),
		project.WithAutosave(ws),
	)
	if err != nil {
		_ = hist.Close()
		return err
	}
	a.ws, a.hist, a.session = ws, hist, sess
	l.Debug("workspace ready", slog.String("root", ws.Root), slog.String("history", a.cfg.History.Backend),
		slog.Int("photos", len(state.Items)))
	return nil
}

// Close releases the history medium and drains pending telemetry.
func (a *App) Close() {
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			applog.WithComponent("cli").Warn("close history", slog.Any("err", err))
		}
		a.hist = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	telemetry.Default().Flush(ctx)
	telemetry.Default().Close()
}

// withSession opens the session before fn runs and turns a panic inside fn
// into a crash report plus draft autosave.
func (a *App) withSession(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(cmd.Context()); err != nil {
			return err
		}
		defer crash.Recover(a.ws, a.session.State)
		return fn(cmd, args)
	}
}

func reportHistoryFailure(_ context.Context, err error) {
	quota := errors.Is(err, history.ErrQuotaExceeded)
	applog.WithOperation(applog.WithComponent("history"), "save").
		Warn("print job not recorded", slog.Any("err", err), slog.Bool("quota", quota))
	telemetry.Default().Failure("history_save", quota)
}
