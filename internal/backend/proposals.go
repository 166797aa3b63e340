/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"artdao/internal/domain"
)

// CreateProposalRequest is the body of POST /api/proposals.
type CreateProposalRequest struct {
	WalletAddress string `json:"wallet_address"`
	domain.ProposalDraft
}

// ListProposals returns every proposal, or those with the given status when
// status is non-empty.
func (c *Client) ListProposals(ctx context.Context, status domain.Status) ([]domain.Proposal, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {string(status)}}
	}
	data, _, err := c.call(ctx, http.MethodGet, "/api/proposals", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeProposalList(data)
}

// CreateProposal submits a proposal and returns the stored record.
func (c *Client) CreateProposal(ctx context.Context, req CreateProposalRequest) (domain.Proposal, error) {
	data, _, err := c.call(ctx, http.MethodPost, "/api/proposals", nil, req)
	if err != nil {
		return domain.Proposal{}, err
	}
	if err := validate(proposalSchema, data); err != nil {
		return domain.Proposal{}, err
	}
	var p domain.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Proposal{}, fmt.Errorf("decode created proposal: %w", err)
	}
	return p, nil
}

// DeleteProposal removes a proposal. The backend decides who may do this.
func (c *Client) DeleteProposal(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/proposals/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func decodeProposalList(data []byte) ([]domain.Proposal, error) {
	if err := validate(proposalListSchema, data); err != nil {
		return nil, err
	}
	list := []domain.Proposal{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode proposals: %w", err)
	}
	return list, nil
}
