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
	"errors"
	"net/http"

	"artdao/internal/domain"
)

// Balance returns the governance token balance of address.
func (c *Client) Balance(ctx context.Context, address string) (float64, error) {
	var res struct {
		Balance float64 `json:"balance"`
	}
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "balance"), nil, nil, &res)
	return res.Balance, err
}

// Membership returns the membership tier of address.
func (c *Client) Membership(ctx context.Context, address string) (string, error) {
	var res struct {
		Membership string `json:"membership"`
	}
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "membership"), nil, nil, &res)
	return res.Membership, err
}

// Rewards returns the unclaimed rewards of address.
func (c *Client) Rewards(ctx context.Context, address string) (float64, error) {
	var res struct {
		Rewards float64 `json:"rewards"`
	}
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "rewards"), nil, nil, &res)
	return res.Rewards, err
}

// Delegation returns where address delegated its voting power.
func (c *Client) Delegation(ctx context.Context, address string) (domain.Delegation, error) {
	var res domain.Delegation
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "delegation"), nil, nil, &res)
	return res, err
}

// Activity returns the activity feed of address, newest first.
func (c *Client) Activity(ctx context.Context, address string) ([]domain.Activity, error) {
	var res []domain.Activity
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "activity"), nil, nil, &res)
	return res, err
}

// Referral returns the referral record of address as an opaque object.
func (c *Client) Referral(ctx context.Context, address string) (map[string]any, error) {
	var res map[string]any
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "referral"), nil, nil, &res)
	return res, err
}

// AuthoredProposals returns the proposals submitted by address.
func (c *Client) AuthoredProposals(ctx context.Context, address string) ([]domain.Proposal, error) {
	data, _, err := c.call(ctx, http.MethodGet, userPath(address, "proposals"), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeProposalList(data)
}

// Recommendation returns the suggested next action for address. A backend
// that has nothing to suggest yields (nil, nil).
func (c *Client) Recommendation(ctx context.Context, address string) (*domain.Recommendation, error) {
	var res domain.Recommendation
	err := c.doJSON(ctx, http.MethodGet, userPath(address, "recommendation"), nil, nil, &res)
	if errors.Is(err, ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}
