/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artdao/internal/backend"
	"artdao/internal/domain"
)

const (
	admin  = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	member = "0x1234567890abcdef1234567890abcdef12345678"
)

func newTestServer(t *testing.T, cfg Config) (*MemoryRepo, *httptest.Server) {
	t.Helper()
	repo := NewMemoryRepo()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	srv := httptest.NewServer(New(repo, cfg).Handler())
	t.Cleanup(srv.Close)
	return repo, srv
}

func login(t *testing.T, base, address string) *backend.Client {
	t.Helper()
	c := backend.NewClient(backend.Options{BaseURL: base, Timeout: 5 * time.Second})
	res, err := c.Login(context.Background(), address, "sig")
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	sub, exp, err := backend.TokenClaims(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, address, sub)
	assert.True(t, exp.After(time.Now()))
	c.SetToken(res.AccessToken)
	return c
}

func TestLoginRejectsMalformedAddress(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	c := backend.NewClient(backend.Options{BaseURL: srv.URL})
	_, err := c.Login(context.Background(), "not-an-address", "sig")
	assert.True(t, backend.IsStatus(err, http.StatusUnprocessableEntity), "got %v", err)
}

func TestProposalLifecycle(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, Config{Admins: []string{strings.ToLower(admin)}})
	alice := login(t, srv.URL, member)

	created, err := alice.CreateProposal(ctx, backend.CreateProposalRequest{
		WalletAddress: member,
		ProposalDraft: domain.ProposalDraft{Title: "Rainy neon city", Description: "A cyberpunk skyline", Style: domain.StyleAIGenerated},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.NotZero(t, created.ID)

	list, err := alice.ListProposals(ctx, domain.StatusOpen)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rainy neon city", list[0].Title)

	closed, err := alice.ListProposals(ctx, domain.StatusClosed)
	require.NoError(t, err)
	assert.Empty(t, closed)

	mine, err := alice.AuthoredProposals(ctx, member)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	// not an admin: the server refuses
	err = alice.DeleteProposal(ctx, created.ID)
	assert.True(t, backend.IsStatus(err, http.StatusForbidden), "got %v", err)

	root := login(t, srv.URL, admin)
	require.NoError(t, root.DeleteProposal(ctx, created.ID))
	err = root.DeleteProposal(ctx, created.ID)
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))
}

func TestCreateRequiresMatchingToken(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, Config{})

	anon := backend.NewClient(backend.Options{BaseURL: srv.URL})
	_, err := anon.CreateProposal(ctx, backend.CreateProposalRequest{WalletAddress: member, ProposalDraft: domain.ProposalDraft{Title: "x"}})
	assert.True(t, backend.IsStatus(err, http.StatusUnauthorized))

	c := login(t, srv.URL, member)
	_, err = c.CreateProposal(ctx, backend.CreateProposalRequest{WalletAddress: admin, ProposalDraft: domain.ProposalDraft{Title: "x"}})
	assert.True(t, backend.IsStatus(err, http.StatusForbidden))

	_, err = c.CreateProposal(ctx, backend.CreateProposalRequest{WalletAddress: member})
	assert.True(t, backend.IsStatus(err, http.StatusUnprocessableEntity))

	c.SetToken("garbage")
	_, err = c.CreateProposal(ctx, backend.CreateProposalRequest{WalletAddress: member, ProposalDraft: domain.ProposalDraft{Title: "x"}})
	assert.True(t, backend.IsStatus(err, http.StatusUnauthorized))
}

func TestExpiredTokenIsRefused(t *testing.T) {
	var skew atomic.Int64
	now := func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	_, srv := newTestServer(t, Config{TokenTTL: time.Minute, Now: now})
	c := login(t, srv.URL, member)
	skew.Store(int64(2 * time.Minute))
	_, err := c.CreateProposal(context.Background(), backend.CreateProposalRequest{ProposalDraft: domain.ProposalDraft{Title: "late"}})
	assert.True(t, backend.IsStatus(err, http.StatusUnauthorized))
}

func TestUserResourcesAndFailureInjection(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, Config{Fail: []string{"Rewards"}})
	c := backend.NewClient(backend.Options{BaseURL: srv.URL})

	bal, err := c.Balance(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, mockBalance(member), bal)

	tier, err := c.Membership(ctx, member)
	require.NoError(t, err)
	assert.Contains(t, tiers, tier)

	_, err = c.Rewards(ctx, member)
	assert.True(t, backend.IsStatus(err, http.StatusServiceUnavailable))

	ref, err := c.Referral(ctx, member)
	require.NoError(t, err)
	assert.Contains(t, ref, "code")

	act, err := c.Activity(ctx, member)
	require.NoError(t, err)
	assert.NotNil(t, act)

	_, err = c.Delegation(ctx, member)
	require.NoError(t, err)

	_, err = c.Balance(ctx, "nope")
	assert.True(t, backend.IsStatus(err, http.StatusUnprocessableEntity))
}

func TestRecommendation(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, Config{})
	c := backend.NewClient(backend.Options{BaseURL: srv.URL})

	rec, err := c.Recommendation(ctx, member)
	require.NoError(t, err)
	assert.Nil(t, rec, "nothing to recommend yet")

	author := login(t, srv.URL, admin)
	_, err = author.CreateProposal(ctx, backend.CreateProposalRequest{ProposalDraft: domain.ProposalDraft{Title: "Harbour mural"}})
	require.NoError(t, err)

	rec, err = c.Recommendation(ctx, member)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Vote on Harbour mural", rec.Title)

	own, err := c.Recommendation(ctx, admin)
	require.NoError(t, err)
	assert.Nil(t, own, "own proposals are not recommended")
}

func TestStudioEndpoints(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, Config{})
	c := login(t, srv.URL, member)

	text, err := c.GenerateDraft(ctx, "Rainy neon city")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Rainy neon city."))

	url, err := c.GenerateImage(ctx, "rainy neon city")
	require.NoError(t, err)
	assert.Equal(t, mockImageURL("rainy neon city"), url)

	sim, err := c.CheckSimilarity(ctx, "rainy neon city")
	require.NoError(t, err)
	assert.Zero(t, sim.Score)

	_, err = c.CreateProposal(ctx, backend.CreateProposalRequest{ProposalDraft: domain.ProposalDraft{Title: "Rainy Neon City"}})
	require.NoError(t, err)
	sim, err = c.CheckSimilarity(ctx, "rainy neon cities")
	require.NoError(t, err)
	assert.Greater(t, sim.Score, 50.0)
	assert.Contains(t, sim.Message, "Rainy Neon City")

	_, err = c.GenerateDraft(ctx, " ")
	assert.True(t, backend.IsStatus(err, http.StatusUnprocessableEntity))
}

func TestGalleryChatAndAgents(t *testing.T) {
	ctx := context.Background()
	repo, srv := newTestServer(t, Config{})
	c := backend.NewClient(backend.Options{BaseURL: srv.URL})

	items, err := c.GalleryItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)

	n, err := c.Narrate(ctx, items[1].ID)
	require.NoError(t, err)
	assert.Contains(t, n.Text, "Neon Rain")
	assert.NotEmpty(t, n.AudioURL)

	_, err = c.Narrate(ctx, 99)
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))

	require.NoError(t, c.SubmitFeedback(ctx, items[0].ID, member, "Lovely texture"))
	assert.Equal(t, []string{member + ": Lovely texture"}, repo.Feedback(items[0].ID))
	err = c.SubmitFeedback(ctx, 99, member, "lost")
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))

	reply, err := c.Chat(ctx, "hello", member)
	require.NoError(t, err)
	assert.Contains(t, reply, "hello")

	crit, err := c.Critique(ctx, "Neon Rain")
	require.NoError(t, err)
	assert.Contains(t, crit, "Neon Rain")
	promo, err := c.Promotion(ctx, "Neon Rain", "collectors")
	require.NoError(t, err)
	assert.Contains(t, promo, "collectors")
	report, err := c.AuctionReport(ctx, "Neon Rain", crit)
	require.NoError(t, err)
	assert.Contains(t, report, "ETH")
}

func TestVersionIsCompatibleWithClient(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	c := backend.NewClient(backend.Options{BaseURL: srv.URL})
	raw, err := c.CheckCompatibility(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "artdao-server/"+APIVersion))
}

func TestHealthAndRequestID(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	for _, p := range []string{"/healthz", "/readyz"} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+p, nil)
		req.Header.Set(backend.RequestIDHeader, "rid-123")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.NotEmpty(t, body)
		assert.Equal(t, "rid-123", resp.Header.Get(backend.RequestIDHeader))
	}
}
