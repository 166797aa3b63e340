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

	"artdao/internal/view"
)

func newGalleryCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Browse the exhibition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			c.Router().Navigate(view.Gallery)
			items, err := c.GalleryItems(cmd.Context())
			if err != nil {
				return err
			}
			var b strings.Builder
			b.WriteString("# Gallery\n\n")
			for _, it := range items {
				fmt.Fprintf(&b, "%d. **%s** by `%s`: %s\n", it.ID, it.Title, shortAddr(it.ArtistAddress), it.Description)
			}
			return a.render(cmd, b.String())
		},
	}

	narrate := &cobra.Command{
		Use:   "narrate <item-id>",
		Short: "Hear the docent on one work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			n, err := c.Narrate(cmd.Context(), id)
			if err != nil {
				return err
			}
			md := n.Text + "\n"
			if n.AudioURL != "" {
				md += "\n_Audio:_ " + n.AudioURL + "\n"
			}
			return a.render(cmd, md)
		},
	}

	feedback := &cobra.Command{
		Use:   "feedback <item-id> <message>",
		Short: "Leave a comment on a work",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			c, err := a.connected(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.SubmitFeedback(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Thanks for your feedback")
			return err
		},
	}
	cmd.AddCommand(narrate, feedback)
	return cmd
}

func newChatCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the DAO assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			c.Router().Navigate(view.Chat)
			reply, err := c.Chat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.render(cmd, reply)
		},
	}
}

func newAgentCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the critic, marketing and auction agents",
	}
	run := func(cmd *cobra.Command, call func() (string, error)) error {
		c, err := a.controller(cmd.Context())
		if err != nil {
			return err
		}
		c.Router().Navigate(view.AgentCenter)
		text, err := call()
		if err != nil {
			return err
		}
		return a.render(cmd, text)
	}

	critique := &cobra.Command{
		Use:   "critique <art-info>",
		Short: "Critique a work",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func() (string, error) {
				return a.ctrl.Critique(cmd.Context(), strings.Join(args, " "))
			})
		},
	}

	var audience string
	promote := &cobra.Command{
		Use:   "promote <title>",
		Short: "Write announcement copy for a work",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func() (string, error) {
				return a.ctrl.Promotion(cmd.Context(), strings.Join(args, " "), audience)
			})
		},
	}
	promote.Flags().StringVar(&audience, "audience", "", "target audience")

	var review string
	auction := &cobra.Command{
		Use:   "auction <art-info>",
		Short: "Write an auction report; without --review the critic runs first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := strings.Join(args, " ")
			return run(cmd, func() (string, error) {
				r := review
				if r == "" {
					var err error
					if r, err = a.ctrl.Critique(cmd.Context(), info); err != nil {
						return "", err
					}
				}
				return a.ctrl.AuctionReport(cmd.Context(), info, r)
			})
		},
	}
	auction.Flags().StringVar(&review, "review", "", "critic review to base the report on")

	cmd.AddCommand(critique, promote, auction)
	return cmd
}
