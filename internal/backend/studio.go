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

	"artdao/internal/domain"
)

// GenerateDraft asks the backend to write a proposal draft for intent.
func (c *Client) GenerateDraft(ctx context.Context, intent string) (string, error) {
	var res struct {
		DraftText string `json:"draft_text"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/studio/draft", nil, map[string]string{"intent": intent}, &res)
	return res.DraftText, err
}

// GenerateImage asks the backend to render a poster for keywords and returns
// its URL.
func (c *Client) GenerateImage(ctx context.Context, keywords string) (string, error) {
	var res struct {
		ImageURL string `json:"image_url"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/studio/image", nil, map[string]string{"keywords": keywords}, &res)
	return res.ImageURL, err
}

// CheckSimilarity scores how close topic is to existing work.
func (c *Client) CheckSimilarity(ctx context.Context, topic string) (domain.Similarity, error) {
	var res domain.Similarity
	err := c.doJSON(ctx, http.MethodGet, "/api/studio/check", url.Values{"topic": {topic}}, nil, &res)
	return res, err
}
