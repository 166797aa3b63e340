/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli is the artdao command line. Every command drives the same
// app.Controller the interactive client uses.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"artdao/internal/app"
	"artdao/internal/backend"
	"artdao/internal/config"
	"artdao/internal/crash"
	"artdao/internal/dashboard"
	"artdao/internal/localstore"
	applog "artdao/internal/log"
	"artdao/internal/proposals"
	"artdao/internal/session"
	"artdao/internal/studio"
	"artdao/internal/telemetry"
	"artdao/internal/view"
	"artdao/internal/wallet"
)

// App is the per-invocation state shared by the commands.
type App struct {
	backendURL string
	plain      bool

	cfg    config.AppConfig
	client *backend.Client
	cache  *localstore.Cache
	ctrl   *app.Controller
	log    *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &App{}
	cmd := &cobra.Command{
		Use:          "artdao",
		Short:        "ArtDAO governance client",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Log in with the configured wallet and show the dashboard
  artdao connect
  artdao dashboard

  # Draft a proposal in the studio and submit it
  artdao studio "a mural of the harbour at dawn" --submit

  # Run the reference backend locally
  artdao serve --fail rewards`),
	}
	cmd.PersistentFlags().StringVar(&a.backendURL, "backend", "", "backend base URL (overrides config)")
	cmd.PersistentFlags().BoolVar(&a.plain, "plain", false, "render output without terminal styling")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup(cmd)
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a.shutdown()
	}

	cmd.AddCommand(
		newConnectCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newDashboardCmd(a),
		newProposalsCmd(a),
		newStudioCmd(a),
		newGalleryCmd(a),
		newChatCmd(a),
		newAgentCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newDoctorCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func (a *App) setup(cmd *cobra.Command) error {
	cfg, cfgErr := config.Load()
	if u := strings.TrimSpace(a.backendURL); u != "" {
		cfg.Backend.BaseURL = strings.TrimRight(u, "/")
	}
	a.cfg = cfg
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   cmd.ErrOrStderr(),
	})
	a.log = applog.WithComponent("cli")
	if cfgErr != nil {
		a.log.Warn("config problem; using defaults where needed", slog.Any("err", cfgErr))
	}

	tc := telemetry.FromEnv()
	tc.OptIn = tc.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tc)
	crash.Note("command", cmd.CommandPath())
	return nil
}

func (a *App) shutdown() {
	if a.ctrl != nil {
		a.ctrl.Wait()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("close cache", slog.Any("err", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	telemetry.Default().Flush(ctx)
}

// controller wires the components on first use and restores the session.
func (a *App) controller(ctx context.Context) (*app.Controller, error) {
	if a.ctrl != nil {
		return a.ctrl, nil
	}
	policy, err := studio.ParseImagePolicy(a.cfg.Studio.ImagePolicy)
	if err != nil {
		return nil, err
	}
	a.client = backend.NewClient(backend.Options{BaseURL: a.cfg.Backend.BaseURL, Timeout: a.cfg.Backend.Timeout()})

	var cache proposals.Cache
	if path, err := a.cfg.CachePath(); err != nil {
		a.log.Warn("no cache location", slog.Any("err", err))
	} else if c, err := localstore.Open(ctx, path); err != nil {
		a.log.Warn("proposal cache disabled", slog.String("path", path), slog.Any("err", err))
	} else {
		a.cache, cache = c, c
	}

	mgr := session.NewManager(wallet.Static{Address: a.cfg.Wallet.Address}, a.client, config.NewSessionStore(nil), session.Options{})
	a.ctrl = app.New(app.Deps{
		Session:   mgr,
		Dashboard: dashboard.New(a.client, dashboard.Config{}),
		Studio:    studio.New(a.client, studio.Config{ImagePolicy: policy, RequestsPerMinute: a.cfg.Studio.RequestsPerMinute}),
		Proposals: proposals.New(a.client, mgr, proposals.Options{Admins: a.cfg.Admin.AllowList, Cache: cache}),
		Router:    view.New(),
		Gallery:   a.client,
		Events:    telemetry.Default(),
	})
	if _, err := a.ctrl.Start(ctx); err != nil {
		a.log.Warn("session not restored", slog.Any("err", err))
	}
	return a.ctrl, nil
}

var errNotConnected = errors.New("not connected; run `artdao connect` first")

// connected returns the controller of a connected session.
func (a *App) connected(ctx context.Context) (*app.Controller, error) {
	c, err := a.controller(ctx)
	if err != nil {
		return nil, err
	}
	if !c.Session().Connected {
		return nil, errNotConnected
	}
	return c, nil
}
