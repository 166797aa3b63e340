/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package app is the view controller. It routes user intents to the session,
// dashboard, studio and proposal components and keeps the navigation state
// consistent with what they report.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"artdao/internal/dashboard"
	"artdao/internal/domain"
	applog "artdao/internal/log"
	"artdao/internal/proposals"
	"artdao/internal/session"
	"artdao/internal/studio"
	"artdao/internal/view"
)

// Gallery is the exhibition, chat and agent API. *backend.Client implements it.
type Gallery interface {
	GalleryItems(ctx context.Context) ([]domain.GalleryItem, error)
	Narrate(ctx context.Context, itemID int64) (domain.Narration, error)
	SubmitFeedback(ctx context.Context, itemID int64, address, message string) error
	Chat(ctx context.Context, message, address string) (string, error)
	Critique(ctx context.Context, artInfo string) (string, error)
	Promotion(ctx context.Context, title, audience string) (string, error)
	AuctionReport(ctx context.Context, artInfo, review string) (string, error)
}

// Events receives usage events. *telemetry.Client implements it.
type Events interface {
	Event(name string, props map[string]any)
}

type noEvents struct{}

func (noEvents) Event(string, map[string]any) {}

// Deps are the components a Controller drives. Events is optional.
type Deps struct {
	Session   *session.Manager
	Dashboard *dashboard.Aggregator
	Studio    *studio.Pipeline
	Proposals *proposals.Store
	Router    *view.Router
	Gallery   Gallery
	Events    Events
}

// ErrUnknownProposal is returned when an id is not in the local list.
var ErrUnknownProposal = errors.New("app: proposal not in the current list")

// Controller reacts to user intents.
type Controller struct {
	sess   *session.Manager
	dash   *dashboard.Aggregator
	studio *studio.Pipeline
	props  *proposals.Store
	router *view.Router

	gallery Gallery
	events  Events
	log     *slog.Logger

	mu   sync.Mutex
	base context.Context
	bg   sync.WaitGroup
}

// New wires the components. Session transitions are observed from here on.
func New(d Deps) *Controller {
	c := &Controller{
		sess:    d.Session,
		dash:    d.Dashboard,
		studio:  d.Studio,
		props:   d.Proposals,
		router:  d.Router,
		gallery: d.Gallery,
		events:  d.Events,
		log:     applog.WithComponent("app"),
		base:    context.Background(),
	}
	if c.events == nil {
		c.events = noEvents{}
	}
	c.sess.OnChange(c.sessionChanged)
	return c
}

func (c *Controller) sessionChanged(ch session.Change) {
	switch {
	case ch.Connected():
		c.mu.Lock()
		ctx := c.base
		c.mu.Unlock()
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			c.RefreshDashboard(ctx)
		}()
	case ch.Disconnected():
		c.dash.Reset()
		c.studio.Reset()
		c.router.CloseDetail()
		c.router.Navigate(view.Home)
	}
}

// Start restores the cached proposal list and the durable session. A restored
// session triggers a background dashboard refresh bound to ctx.
func (c *Controller) Start(ctx context.Context) (session.Session, error) {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()
	if err := c.props.Restore(ctx); err != nil {
		c.log.Warn("proposal cache unavailable", slog.Any("err", err))
	}
	s, _, err := c.sess.RestoreSession()
	return s, err
}

// Wait blocks until background refreshes have finished.
func (c *Controller) Wait() { c.bg.Wait() }

// Navigate activates v. Entering the proposal list re-lists with the current
// filter; entering the profile refreshes the dashboard.
func (c *Controller) Navigate(ctx context.Context, v view.View) error {
	c.router.Navigate(v)
	switch v {
	case view.ProposalList:
		if _, err := c.props.List(ctx, c.props.Filter()); err != nil {
			return err
		}
	case view.Profile:
		c.RefreshDashboard(ctx)
	}
	return nil
}

// ListProposals re-lists with a new status filter.
func (c *Controller) ListProposals(ctx context.Context, status domain.Status) ([]domain.Proposal, error) {
	return c.props.List(ctx, status)
}

// Connect runs the wallet login.
func (c *Controller) Connect(ctx context.Context) (session.Session, error) {
	s, err := c.sess.Connect(ctx)
	if err != nil {
		return s, err
	}
	c.events.Event("session_connected", nil)
	return s, nil
}

// Logout ends the session; the dashboard and studio are reset.
func (c *Controller) Logout(ctx context.Context) {
	c.sess.Logout(ctx)
	c.events.Event("session_logout", nil)
}

// RefreshDashboard aggregates the dashboard of the connected account. Without
// a session it returns the current snapshot unchanged.
func (c *Controller) RefreshDashboard(ctx context.Context) (dashboard.Snapshot, bool) {
	cur := c.sess.Current()
	if !cur.Connected {
		return c.dash.Snapshot(), false
	}
	snap, applied := c.dash.Refresh(ctx, cur.Address)
	if applied {
		c.events.Event("dashboard_refreshed", map[string]any{"partial_failures": len(snap.PartialFailures)})
	}
	return snap, applied
}

// Dashboard returns the last committed snapshot.
func (c *Controller) Dashboard() dashboard.Snapshot { return c.dash.Snapshot() }

// Handoff copies the studio draft into the proposal form and opens it.
func (c *Controller) Handoff() domain.ProposalDraft {
	return c.router.HandoffToCreate(c.studio.Draft())
}

// SubmitDraft creates a proposal from the authoring draft. On success the
// draft is cleared, the proposal list is shown and the dashboard refreshed.
// On failure nothing changes.
func (c *Controller) SubmitDraft(ctx context.Context) (domain.Proposal, error) {
	p, err := c.props.Create(ctx, c.router.Draft())
	if err != nil {
		return domain.Proposal{}, err
	}
	c.router.ResetDraft()
	c.router.Navigate(view.ProposalList)
	c.RefreshDashboard(ctx)
	c.events.Event("proposal_submitted", map[string]any{"style": p.Style})
	return p, nil
}

// OpenProposal shows the detail of a listed proposal.
func (c *Controller) OpenProposal(id int64) error {
	p, ok := c.props.Find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownProposal, id)
	}
	c.router.OpenDetail(p)
	return nil
}

// CloseProposal hides the detail overlay.
func (c *Controller) CloseProposal() { c.router.CloseDetail() }

// CanDelete reports whether delete controls are shown for the current
// account. The backend still decides.
func (c *Controller) CanDelete() bool {
	cur := c.sess.Current()
	return cur.Connected && c.props.CanOfferDelete(cur.Address)
}

// DeleteProposal deletes through the backend. On success the detail overlay
// closes and the dashboard is refreshed.
func (c *Controller) DeleteProposal(ctx context.Context, id int64) error {
	if err := c.props.Delete(ctx, id); err != nil {
		return err
	}
	if m := c.router.State().Modal; m != nil && m.ID == id {
		c.router.CloseDetail()
	}
	c.RefreshDashboard(ctx)
	return nil
}

// SearchProposals matches the cached list.
func (c *Controller) SearchProposals(ctx context.Context, query string) ([]domain.Proposal, error) {
	return c.props.Search(ctx, query)
}

// GalleryItems lists the exhibition.
func (c *Controller) GalleryItems(ctx context.Context) ([]domain.GalleryItem, error) {
	return c.gallery.GalleryItems(ctx)
}

// Narrate fetches the docent narration of an item.
func (c *Controller) Narrate(ctx context.Context, itemID int64) (domain.Narration, error) {
	return c.gallery.Narrate(ctx, itemID)
}

// SubmitFeedback leaves a comment on an item as the connected account.
func (c *Controller) SubmitFeedback(ctx context.Context, itemID int64, message string) error {
	cur := c.sess.Current()
	if !cur.Connected {
		return session.ErrNotConnected
	}
	return c.gallery.SubmitFeedback(ctx, itemID, cur.Address, message)
}

// Chat sends one message; the address is empty when disconnected.
func (c *Controller) Chat(ctx context.Context, message string) (string, error) {
	return c.gallery.Chat(ctx, message, c.sess.Current().Address)
}

// Critique asks the critic agent about a work.
func (c *Controller) Critique(ctx context.Context, artInfo string) (string, error) {
	return c.gallery.Critique(ctx, artInfo)
}

// Promotion asks the marketing agent for announcement copy.
func (c *Controller) Promotion(ctx context.Context, title, audience string) (string, error) {
	return c.gallery.Promotion(ctx, title, audience)
}

// AuctionReport asks the auction agent for a report based on a review.
func (c *Controller) AuctionReport(ctx context.Context, artInfo, review string) (string, error) {
	return c.gallery.AuctionReport(ctx, artInfo, review)
}

func (c *Controller) Session() session.Session   { return c.sess.Current() }
func (c *Controller) Studio() *studio.Pipeline    { return c.studio }
func (c *Controller) Proposals() *proposals.Store { return c.props }
func (c *Controller) Router() *view.Router        { return c.router }
