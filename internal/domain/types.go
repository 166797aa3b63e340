/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the data shapes shared by the orchestration packages and
// the backend client. JSON tags follow the backend wire names.

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a proposal as reported by the backend.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosed  Status = "CLOSED"
	StatusWaiting Status = "WAITING"
	StatusVoting  Status = "VOTING"
	StatusPassed  Status = "PASSED"
)

// ParseStatus normalizes user input; an empty string means "any status".
func ParseStatus(s string) Status { return Status(strings.ToUpper(strings.TrimSpace(s))) }

// Proposal is a governance proposal. The backend assigns ID.
// The backend calls the title "topic".
type Proposal struct {
	ID            int64     `json:"id"`
	Title         string    `json:"topic"`
	Description   string    `json:"description"`
	Style         string    `json:"style"`
	ImageURL      string    `json:"image_url"`
	WalletAddress string    `json:"wallet_address"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Default and handoff styles for a proposal draft.
const (
	StyleGeneral     = "General"
	StyleAIGenerated = "AI Generated"
)

// ProposalDraft is the proposal-authoring form.
type ProposalDraft struct {
	Title       string `json:"topic"`
	Description string `json:"description"`
	Style       string `json:"style"`
	ImageURL    string `json:"image_url"`
}

// NewProposalDraft returns an empty form with the default style.
func NewProposalDraft() ProposalDraft { return ProposalDraft{Style: StyleGeneral} }

// Delegation is the voting-power delegation of an account.
type Delegation struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// Activity is one entry of an account's activity feed.
type Activity struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// Recommendation is the backend's suggested next action for an account.
type Recommendation struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Similarity is the originality check result for an intent.
type Similarity struct {
	Score   float64 `json:"similarity_score"`
	Message string  `json:"message"`
}

// GalleryItem is a finished artwork shown in the online exhibition.
type GalleryItem struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	ArtistAddress string `json:"artist_address"`
	ImageURL      string `json:"image_url"`
	Description   string `json:"description"`
}

// Narration is the docent commentary for a gallery item.
type Narration struct {
	Text     string `json:"text_script"`
	AudioURL string `json:"audio_url"`
}
