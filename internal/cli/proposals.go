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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"artdao/internal/domain"
	"artdao/internal/view"
)

func newProposalsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "proposals",
		Aliases: []string{"p"},
		Short:   "List, show, create, delete and search proposals",
	}
	cmd.AddCommand(
		newProposalsListCmd(a),
		newProposalsShowCmd(a),
		newProposalsCreateCmd(a),
		newProposalsDeleteCmd(a),
		newProposalsSearchCmd(a),
	)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q", s)
	}
	return id, nil
}

func newProposalsListCmd(a *App) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			c.Router().Navigate(view.ProposalList)
			list, err := c.ListProposals(cmd.Context(), domain.ParseStatus(status))
			if err != nil {
				return err
			}
			return a.render(cmd, proposalTable(list))
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only proposals with this status (OPEN, CLOSED, ...)")
	return cmd
}

func newProposalsShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Navigate(cmd.Context(), view.ProposalList); err != nil {
				return err
			}
			if err := c.OpenProposal(id); err != nil {
				return err
			}
			return a.render(cmd, proposalDetail(*c.Router().State().Modal, c.CanDelete()))
		},
	}
}

func newProposalsCreateCmd(a *App) *cobra.Command {
	var d domain.ProposalDraft
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new proposal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			c.Router().Navigate(view.ProposalCreate)
			c.Router().SetDraft(d)
			p, err := c.SubmitDraft(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created proposal #%d %q\n", p.ID, p.Title)
			return err
		},
	}
	cmd.Flags().StringVar(&d.Title, "title", "", "proposal title (required)")
	cmd.Flags().StringVar(&d.Description, "description", "", "proposal description")
	cmd.Flags().StringVar(&d.Style, "style", domain.StyleGeneral, "art style")
	cmd.Flags().StringVar(&d.ImageURL, "image", "", "reference image URL")
	return cmd
}

func newProposalsDeleteCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a proposal (administrators only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.DeleteProposal(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted proposal #%d\n", id)
			return err
		},
	}
}

func newProposalsSearchCmd(a *App) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the locally cached proposals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			if refresh {
				if _, err := c.ListProposals(cmd.Context(), ""); err != nil {
					return err
				}
			}
			list, err := c.SearchProposals(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.render(cmd, proposalTable(list))
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-list from the backend before searching")
	return cmd
}
