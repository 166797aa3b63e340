/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"artdao/internal/backend"
	"artdao/internal/devserver"
	"artdao/internal/version"
)

func newServeCmd(a *App) *cobra.Command {
	var (
		addr   string
		fail   []string
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference backend",
		Long: `Serves the backend API with deterministic stand-ins for the AI agents
and the ledger. Proposals are kept in PostgreSQL when ARTDAO_DATABASE_URL is
set, in memory otherwise. --fail makes the named dashboard resources answer
503.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc := a.cfg.Server
			if addr != "" {
				sc.Addr = addr
			}
			var repo devserver.Repository = devserver.NewMemoryRepo()
			if sc.DatabaseURL != "" && !memory {
				pg, closeDB, err := devserver.OpenPostgres(ctx, sc.DatabaseURL)
				if err != nil {
					return err
				}
				defer func() {
					if err := closeDB(); err != nil {
						a.log.Warn("close db", slog.Any("err", err))
					}
				}()
				repo = pg
			}
			srv := devserver.New(repo, devserver.Config{
				Addr:      sc.Addr,
				JWTSecret: sc.JWTSecret,
				Admins:    sc.Admins,
				Fail:      fail,
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	cmd.Flags().StringSliceVar(&fail, "fail", nil, "dashboard resources that answer 503 (balance, rewards, ...)")
	cmd.Flags().BoolVar(&memory, "memory", false, "keep data in memory even when a database is configured")
	return cmd
}

func newDoctorCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check backend compatibility and local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client:   %s\n", version.String())
			fmt.Fprintf(out, "backend:  %s\n", a.cfg.Backend.BaseURL)
			raw, cerr := a.client.CheckCompatibility(cmd.Context())
			switch {
			case cerr != nil && raw == "":
				fmt.Fprintf(out, "server:   unreachable (%v)\n", cerr)
			case cerr != nil:
				fmt.Fprintf(out, "server:   %s INCOMPATIBLE (%v)\n", raw, cerr)
			default:
				fmt.Fprintf(out, "server:   %s ok (supported %s)\n", raw, backend.SupportedServers)
			}
			if a.cache != nil {
				v, err := a.cache.SchemaVersion(cmd.Context())
				if err != nil {
					fmt.Fprintf(out, "cache:    %s (schema unreadable: %v)\n", a.cache.Path(), err)
				} else {
					fmt.Fprintf(out, "cache:    %s (schema v%d)\n", a.cache.Path(), v)
				}
			} else {
				fmt.Fprintln(out, "cache:    disabled")
			}
			if s := c.Session(); s.Connected {
				fmt.Fprintf(out, "session:  %s (%s)\n", s.Address, s.Trust)
			} else {
				fmt.Fprintln(out, "session:  not connected")
			}
			return cerr
		},
	}
}

func newVersionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "artdao %s\nsupported servers: %s\n", version.String(), backend.SupportedServers)
			return err
		},
	}
}
