/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"artdao/internal/export"
)

func newExportCmd(a *App) *cobra.Command {
	var noImage bool
	cmd := &cobra.Command{
		Use:   "export <id> <out.pdf>",
		Short: "Export a proposal brief as PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			p, ok := c.Proposals().Find(id)
			if !ok {
				if _, err := c.ListProposals(cmd.Context(), ""); err != nil {
					return err
				}
				if p, ok = c.Proposals().Find(id); !ok {
					return fmt.Errorf("proposal #%d not found", id)
				}
			}
			opt := export.BriefOptions{}
			if p.ImageURL != "" && !noImage {
				img, err := export.FetchImage(cmd.Context(), nil, p.ImageURL)
				if err != nil {
					a.log.Warn("exporting without image", slog.String("url", p.ImageURL), slog.Any("err", err))
				} else {
					opt.Image = img
				}
			}
			out, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			err = export.ProposalBrief(p, out, opt)
			if errors.Is(err, export.ErrUnsupportedImage) {
				a.log.Warn("image not embeddable; exporting without it", slog.Any("err", err))
				opt.Image = nil
				err = export.ProposalBrief(p, out, opt)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", out)
			return err
		},
	}
	cmd.Flags().BoolVar(&noImage, "no-image", false, "do not download and embed the proposal image")
	return cmd
}
