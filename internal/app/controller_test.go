/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package app

import (
	"context"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"artdao/internal/backend"
	"artdao/internal/config"
	"artdao/internal/dashboard"
	"artdao/internal/devserver"
	"artdao/internal/domain"
	"artdao/internal/proposals"
	"artdao/internal/session"
	"artdao/internal/studio"
	"artdao/internal/view"
	"artdao/internal/wallet"
)

const (
	admin  = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	member = "0x1234567890abcdef1234567890abcdef12345678"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Event(name string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recorder) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.events, name)
}

func newBackend(t *testing.T, fail ...string) string {
	t.Helper()
	keyring.MockInit()
	srv := httptest.NewServer(devserver.New(devserver.NewMemoryRepo(), devserver.Config{
		JWTSecret: "test-secret",
		Admins:    []string{admin},
		Fail:      fail,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func newController(t *testing.T, base, address string) (*Controller, *recorder) {
	t.Helper()
	client := backend.NewClient(backend.Options{BaseURL: base})
	mgr := session.NewManager(wallet.Static{Address: address}, client, config.NewSessionStore(nil), session.Options{})
	rec := &recorder{}
	c := New(Deps{
		Session:   mgr,
		Dashboard: dashboard.New(client, dashboard.Config{}),
		Studio:    studio.New(client, studio.Config{}),
		Proposals: proposals.New(client, mgr, proposals.Options{Admins: []string{admin}}),
		Router:    view.New(),
		Gallery:   client,
		Events:    rec,
	})
	return c, rec
}

func TestConnectRefreshesDashboard(t *testing.T) {
	base := newBackend(t, "rewards")
	c, rec := newController(t, base, member)

	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Verified, s.Trust)
	c.Wait()

	snap := c.Dashboard()
	assert.Equal(t, member, snap.Address)
	assert.Positive(t, snap.Balance)
	assert.Equal(t, []dashboard.Field{dashboard.FieldRewards}, snap.PartialFailures)
	assert.True(t, rec.has("session_connected"))
	assert.True(t, rec.has("dashboard_refreshed"))
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	base := newBackend(t)
	c, rec := newController(t, base, "")

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, wallet.ErrProviderUnavailable)
	assert.False(t, c.Session().Connected)
	assert.False(t, rec.has("session_connected"))
	assert.Equal(t, dashboard.Empty(), c.Dashboard())
}

func TestRestoredSessionSubmitsStudioDraft(t *testing.T) {
	ctx := context.Background()
	base := newBackend(t)
	require.NoError(t, config.NewSessionStore(nil).Save(member))
	c, rec := newController(t, base, member)

	s, err := c.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Optimistic, s.Trust)
	c.Wait()
	assert.Equal(t, member, c.Dashboard().Address)

	_, err = c.Studio().GenerateDraft(ctx, "Rainy neon city")
	require.NoError(t, err)
	_, err = c.Studio().GenerateImage(ctx, "Rainy neon city")
	require.NoError(t, err)
	require.True(t, c.Studio().Eligible())

	form := c.Handoff()
	assert.Equal(t, "Rainy neon city", form.Title)
	assert.Equal(t, domain.StyleAIGenerated, form.Style)
	assert.Equal(t, view.ProposalCreate, c.Router().Active())

	p, err := c.SubmitDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Rainy neon city", p.Title)
	assert.Equal(t, session.Verified, c.Session().Trust, "submission re-verifies an optimistic session")
	assert.Equal(t, view.ProposalList, c.Router().Active())
	assert.Equal(t, domain.NewProposalDraft(), c.Router().Draft())
	require.Len(t, c.Proposals().Proposals(), 1)
	assert.Len(t, c.Dashboard().AuthoredProposals, 1)
	assert.True(t, rec.has("proposal_submitted"))

	// the studio keeps its draft after handoff
	assert.Equal(t, "Rainy neon city", c.Studio().Draft().Intent)
}

func TestSubmitWithoutSessionChangesNothing(t *testing.T) {
	base := newBackend(t)
	c, _ := newController(t, base, member)
	c.Router().SetDraft(domain.ProposalDraft{Title: "Orphan", Style: domain.StyleGeneral})
	c.Router().Navigate(view.ProposalCreate)

	_, err := c.SubmitDraft(context.Background())
	var se *proposals.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, session.ErrNotConnected)
	assert.Equal(t, "Orphan", c.Router().Draft().Title)
	assert.Equal(t, view.ProposalCreate, c.Router().Active())
}

func TestDeleteIsDecidedByBackend(t *testing.T) {
	ctx := context.Background()
	base := newBackend(t)

	alice, _ := newController(t, base, member)
	_, err := alice.Connect(ctx)
	require.NoError(t, err)
	alice.Router().SetDraft(domain.ProposalDraft{Title: "Harbour mural"})
	p, err := alice.SubmitDraft(ctx)
	require.NoError(t, err)

	assert.False(t, alice.CanDelete())
	require.NoError(t, alice.OpenProposal(p.ID))
	err = alice.DeleteProposal(ctx, p.ID)
	assert.ErrorIs(t, err, proposals.ErrDeleteRejected)
	assert.NotNil(t, alice.Router().State().Modal)
	assert.Len(t, alice.Proposals().Proposals(), 1)

	root, _ := newController(t, base, admin)
	_, err = root.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, root.CanDelete())
	require.NoError(t, root.Navigate(ctx, view.ProposalList))
	require.NoError(t, root.OpenProposal(p.ID))
	require.NoError(t, root.DeleteProposal(ctx, p.ID))
	assert.Nil(t, root.Router().State().Modal)
	assert.Empty(t, root.Proposals().Proposals())

	assert.ErrorIs(t, root.OpenProposal(p.ID), ErrUnknownProposal)
}

func TestLogoutResetsViewAndDashboard(t *testing.T) {
	ctx := context.Background()
	base := newBackend(t)
	c, rec := newController(t, base, member)
	_, err := c.Connect(ctx)
	require.NoError(t, err)
	c.Wait()

	require.NoError(t, c.Navigate(ctx, view.Studio))
	_, err = c.Studio().GenerateDraft(ctx, "Quiet forest")
	require.NoError(t, err)
	c.Router().OpenDetail(domain.Proposal{ID: 9, Title: "x"})

	c.Logout(ctx)
	assert.False(t, c.Session().Connected)
	assert.Equal(t, view.Home, c.Router().Active())
	assert.Nil(t, c.Router().State().Modal)
	assert.Equal(t, "", c.Dashboard().Address)
	assert.Equal(t, studio.Draft{}, c.Studio().Draft())
	assert.True(t, rec.has("session_logout"))

	_, ok, err := config.NewSessionStore(nil).Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNavigateTriggers(t *testing.T) {
	ctx := context.Background()
	base := newBackend(t)
	c, _ := newController(t, base, member)

	// no session: profile shows the empty dashboard
	require.NoError(t, c.Navigate(ctx, view.Profile))
	assert.Equal(t, view.Profile, c.Router().Active())
	assert.Zero(t, c.Dashboard().Generation)

	_, err := c.Connect(ctx)
	require.NoError(t, err)
	c.Wait()
	before := c.Dashboard().Generation
	require.NoError(t, c.Navigate(ctx, view.Profile))
	assert.Greater(t, c.Dashboard().Generation, before)

	require.NoError(t, c.Navigate(ctx, view.ProposalList))
	assert.Equal(t, domain.Status(""), c.Proposals().Filter())
	list, err := c.ListProposals(ctx, domain.StatusOpen)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, domain.StatusOpen, c.Proposals().Filter())
}

func TestGalleryAndAgents(t *testing.T) {
	ctx := context.Background()
	base := newBackend(t)
	c, _ := newController(t, base, member)

	items, err := c.GalleryItems(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	n, err := c.Narrate(ctx, items[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, n.Text)

	assert.ErrorIs(t, c.SubmitFeedback(ctx, items[0].ID, "hi"), session.ErrNotConnected)
	_, err = c.Connect(ctx)
	require.NoError(t, err)
	assert.NoError(t, c.SubmitFeedback(ctx, items[0].ID, "hi"))

	reply, err := c.Chat(ctx, "what is on show?")
	require.NoError(t, err)
	assert.Contains(t, reply, "what is on show?")

	crit, err := c.Critique(ctx, items[0].Title)
	require.NoError(t, err)
	_, err = c.Promotion(ctx, items[0].Title, "collectors")
	require.NoError(t, err)
	report, err := c.AuctionReport(ctx, items[0].Title, crit)
	require.NoError(t, err)
	assert.Contains(t, report, items[0].Title)
}
