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
	"net/http"
	"net/url"
	"strconv"

	"artdao/internal/domain"
)

// GalleryItems lists the online exhibition.
func (c *Client) GalleryItems(ctx context.Context) ([]domain.GalleryItem, error) {
	items := []domain.GalleryItem{}
	err := c.doJSON(ctx, http.MethodGet, "/api/gallery/items", nil, nil, &items)
	return items, err
}

// Narrate returns the docent commentary for one gallery item.
func (c *Client) Narrate(ctx context.Context, itemID int64) (domain.Narration, error) {
	var res domain.Narration
	q := url.Values{"item_id": {strconv.FormatInt(itemID, 10)}}
	err := c.doJSON(ctx, http.MethodPost, "/api/gallery/docent", q, nil, &res)
	return res, err
}

// SubmitFeedback sends a visitor comment about a gallery item.
func (c *Client) SubmitFeedback(ctx context.Context, itemID int64, address, message string) error {
	body := map[string]any{"item_id": itemID, "wallet_address": address, "message": message}
	return c.doJSON(ctx, http.MethodPost, "/api/gallery/feedback", nil, body, nil)
}

// Chat sends one conversational turn and returns the reply.
func (c *Client) Chat(ctx context.Context, message, address string) (string, error) {
	var res struct {
		Reply string `json:"reply"`
	}
	body := map[string]string{"message": message, "wallet_address": address}
	err := c.doJSON(ctx, http.MethodPost, "/api/chat", nil, body, &res)
	return res.Reply, err
}

type agentText struct {
	Text string `json:"text"`
}

// Critique asks the critic agent to review an artwork description.
func (c *Client) Critique(ctx context.Context, artInfo string) (string, error) {
	var res agentText
	err := c.doJSON(ctx, http.MethodPost, "/api/agents/critique", nil, map[string]string{"art_info": artInfo}, &res)
	return res.Text, err
}

// Promotion asks the community agent for an announcement aimed at audience.
func (c *Client) Promotion(ctx context.Context, title, audience string) (string, error) {
	var res agentText
	body := map[string]string{"title": title, "audience": audience}
	err := c.doJSON(ctx, http.MethodPost, "/api/agents/promotion", nil, body, &res)
	return res.Text, err
}

// AuctionReport asks for an auction summary of an artwork and its review.
func (c *Client) AuctionReport(ctx context.Context, artInfo, review string) (string, error) {
	var res agentText
	body := map[string]string{"art_info": artInfo, "review": review}
	err := c.doJSON(ctx, http.MethodPost, "/api/agents/auction-report", nil, body, &res)
	return res.Text, err
}
