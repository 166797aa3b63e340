/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package devserver

import (
	"fmt"
	"hash/fnv"
	"strings"

	"artdao/internal/domain"
)

// The reference backend fakes the account ledger and the AI agents with
// deterministic values derived from the input, so every client flow can run
// without external services.

func seed(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(s))))
	return h.Sum32()
}

var tiers = []string{"Bronze", "Silver", "Gold"}

func mockBalance(addr string) float64   { return float64(500 + seed(addr)%9500) }
func mockRewards(addr string) float64   { return float64(seed("rewards:"+addr)%2000) / 10 }
func mockMembership(addr string) string { return tiers[seed("tier:"+addr)%uint32(len(tiers))] }

func mockReferral(addr string) map[string]any {
	return map[string]any{
		"code":    fmt.Sprintf("ART%04d", seed("ref:"+addr)%10000),
		"invited": int(seed("inv:"+addr) % 12),
	}
}

func mockDelegation(addr string) domain.Delegation {
	if seed("del:"+addr)%2 == 0 {
		return domain.Delegation{}
	}
	return domain.Delegation{To: "0x5aeda56215b167893e80b4fe645ba6d5bab767de", Amount: float64(seed("amt:"+addr) % 500)}
}

func mockActivity(addr string, authored []domain.Proposal) []domain.Activity {
	out := []domain.Activity{}
	for _, p := range authored {
		out = append(out, domain.Activity{Date: p.CreatedAt.Format("2006-01-02"), Type: "proposal: " + p.Title})
	}
	if seed("act:"+addr)%2 == 1 {
		out = append(out, domain.Activity{Date: "2024-11-02", Type: "vote"})
	}
	return out
}

func mockDraft(intent string) string {
	return fmt.Sprintf("%s. This proposal commissions a public work exploring %q, "+
		"created with the community over four weeks and exhibited in the online gallery.",
		strings.TrimSpace(intent), strings.ToLower(strings.TrimSpace(intent)))
}

func mockImageURL(keywords string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%08x/1024/1024", seed(keywords))
}

func mockCritique(artInfo string) string {
	return fmt.Sprintf("Critic: %q shows a confident composition; the palette could commit further.", artInfo)
}

func mockPromotion(title, audience string) string {
	if audience == "" {
		audience = "the community"
	}
	return fmt.Sprintf("Announcing %q: a new work for %s. Join the vote in the DAO.", title, audience)
}

func mockAuctionReport(artInfo, review string) string {
	est := 0.5 + float64(seed(artInfo+review)%450)/100
	return fmt.Sprintf("Auction report for %q. Review: %s Estimated hammer price: %.2f ETH.", artInfo, review, est)
}

func mockNarration(item domain.GalleryItem) domain.Narration {
	return domain.Narration{
		Text:     fmt.Sprintf("Welcome to %q. %s", item.Title, item.Description),
		AudioURL: fmt.Sprintf("https://audio.example/docent/%d.mp3", item.ID),
	}
}

func mockReply(message string) string {
	return "I am the DAO assistant. You said: " + strings.TrimSpace(message)
}
