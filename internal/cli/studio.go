/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"artdao/internal/domain"
	"artdao/internal/settle"
	"artdao/internal/studio"
	"artdao/internal/view"
)

func newStudioCmd(a *App) *cobra.Command {
	var submit bool
	cmd := &cobra.Command{
		Use:   "studio <intent>",
		Short: "Generate a draft, an image and a similarity check for an idea",
		Long: `Runs the three studio stages for the intent. With the "draft" image
policy the image stage waits for the draft text. --submit hands the result
to the proposal form and submits it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := strings.Join(args, " ")
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Navigate(cmd.Context(), view.Studio); err != nil {
				return err
			}
			p := c.Studio()
			p.SetIntent(intent)

			var g settle.Group
			ctx := cmd.Context()
			draft := settle.Go(&g, ctx, "", func(ctx context.Context) (string, error) {
				text, err := p.GenerateDraft(ctx, intent)
				if err != nil || p.Policy() != studio.ImageFromDraft {
					return text, err
				}
				// the image stage needs the draft text under this policy
				_, ierr := p.GenerateImage(ctx, intent)
				return text, ierr
			})
			var image *settle.Outcome[string]
			if p.Policy() == studio.ImageFromIntent {
				image = settle.Go(&g, ctx, "", func(ctx context.Context) (string, error) { return p.GenerateImage(ctx, intent) })
			}
			sim := settle.Go(&g, ctx, domain.Similarity{}, func(ctx context.Context) (domain.Similarity, error) {
				return p.CheckSimilarity(ctx, intent)
			})
			g.Wait()

			var problems []string
			for _, o := range []*settle.Outcome[string]{draft, image} {
				if o != nil && !o.OK() {
					problems = append(problems, o.Err.Error())
				}
			}
			if !sim.OK() {
				problems = append(problems, sim.Err.Error())
			}
			if err := a.render(cmd, studioMarkdown(p.Draft(), studio.NearDuplicates(intent, c.Proposals().Titles()), problems)); err != nil {
				return err
			}
			if !submit {
				return nil
			}
			if !p.Eligible() {
				return fmt.Errorf("the draft needs text and an image before it can be submitted")
			}
			c.Handoff()
			created, err := c.SubmitDraft(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created proposal #%d %q\n", created.ID, created.Title)
			return err
		},
	}
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the result as a proposal")
	return cmd
}

func studioMarkdown(d studio.Draft, near []studio.Match, problems []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Intent)
	if d.DraftText != "" {
		fmt.Fprintf(&b, "%s\n\n", d.DraftText)
	}
	if d.ImageURL != "" {
		fmt.Fprintf(&b, "**Image:** %s\n\n", d.ImageURL)
	}
	if d.Similarity != nil {
		fmt.Fprintf(&b, "**Similarity:** %.0f%% %s\n\n", d.Similarity.Score, d.Similarity.Message)
	}
	for _, m := range near {
		fmt.Fprintf(&b, "- close to cached proposal _%s_\n", m.Title)
	}
	for _, p := range problems {
		fmt.Fprintf(&b, "\n> %s\n", p)
	}
	if d.Eligible() {
		b.WriteString("\n_Ready to submit._\n")
	}
	return b.String()
}
