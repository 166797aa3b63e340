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
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"artdao/internal/dashboard"
	"artdao/internal/domain"
	applog "artdao/internal/log"
)

// render writes markdown to the command output, styled for the terminal
// unless --plain is set.
func (a *App) render(cmd *cobra.Command, md string) error {
	style := glamour.WithAutoStyle()
	if a.plain {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

func cell(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func proposalTable(list []domain.Proposal) string {
	if len(list) == 0 {
		return "_No proposals._\n"
	}
	var b strings.Builder
	b.WriteString("| ID | Title | Status | Style | Author |\n|---|---|---|---|---|\n")
	for _, p := range list {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", p.ID, cell(p.Title), p.Status, cell(p.Style), shortAddr(p.WalletAddress))
	}
	return b.String()
}

func proposalDetail(p domain.Proposal, canDelete bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	fmt.Fprintf(&b, "- **ID:** %d\n- **Status:** %s\n- **Style:** %s\n- **Author:** `%s`\n", p.ID, p.Status, p.Style, p.WalletAddress)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Created:** %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
	}
	if p.ImageURL != "" {
		fmt.Fprintf(&b, "- **Image:** %s\n", p.ImageURL)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Description)
	}
	if canDelete {
		fmt.Fprintf(&b, "\n_Delete with `artdao proposals delete %d`._\n", p.ID)
	}
	return b.String()
}

func dashboardMarkdown(s dashboard.Snapshot) string {
	failed := func(f dashboard.Field) string {
		if s.Failed(f) {
			return " _(unavailable)_"
		}
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Dashboard `%s`\n\n", shortAddr(s.Address))
	fmt.Fprintf(&b, "- **Balance:** %.2f%s\n", s.Balance, failed(dashboard.FieldBalance))
	fmt.Fprintf(&b, "- **Membership:** %s%s\n", orDash(s.Membership), failed(dashboard.FieldMembership))
	fmt.Fprintf(&b, "- **Rewards:** %.2f%s\n", s.Rewards, failed(dashboard.FieldRewards))
	if s.Delegation.To != "" {
		fmt.Fprintf(&b, "- **Delegation:** %.2f to `%s`\n", s.Delegation.Amount, shortAddr(s.Delegation.To))
	} else {
		fmt.Fprintf(&b, "- **Delegation:** none%s\n", failed(dashboard.FieldDelegation))
	}
	if len(s.Referral) > 0 {
		keys := make([]string, 0, len(s.Referral))
		for k := range s.Referral {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, s.Referral[k]))
		}
		fmt.Fprintf(&b, "- **Referral:** %s\n", strings.Join(parts, ", "))
	} else {
		fmt.Fprintf(&b, "- **Referral:** -%s\n", failed(dashboard.FieldReferral))
	}
	if s.Recommendation != nil {
		fmt.Fprintf(&b, "\n## Recommended\n\n**%s**: %s\n", s.Recommendation.Title, s.Recommendation.Reason)
	} else {
		b.WriteString("\n## Recommended\n\n_Pending analysis._\n")
	}
	fmt.Fprintf(&b, "\n## Your proposals%s\n\n%s", failed(dashboard.FieldAuthoredProposals), proposalTable(s.AuthoredProposals))
	fmt.Fprintf(&b, "\n## Activity%s\n\n", failed(dashboard.FieldActivity))
	if len(s.Activity) == 0 {
		b.WriteString("_Nothing yet._\n")
	}
	for _, act := range s.Activity {
		fmt.Fprintf(&b, "- %s %s\n", act.Date, act.Type)
	}
	if s.Degraded() {
		fmt.Fprintf(&b, "\n> Some figures could not be loaded: %s\n", joinFields(s.PartialFailures))
	}
	return b.String()
}

func joinFields(fs []dashboard.Field) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func shortAddr(a string) string { return applog.Addr(a).Value.String() }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
