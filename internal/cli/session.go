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

	"github.com/spf13/cobra"

	"artdao/internal/view"
)

func newConnectCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Log in with the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			s, err := c.Connect(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connected as %s (%s)\n", s.Address, s.Trust)
			return err
		},
	}
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			c.Logout(cmd.Context())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		},
	}
}

func newWhoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			s := c.Session()
			if !s.Connected {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Not connected")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.Address, s.Trust)
			return err
		},
	}
}

func newDashboardCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show balance, membership, rewards and activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.connected(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Navigate(cmd.Context(), view.Profile); err != nil {
				return err
			}
			return a.render(cmd, dashboardMarkdown(c.Dashboard()))
		},
	}
}
