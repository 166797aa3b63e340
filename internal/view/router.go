/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package view is the client's navigation state: which view is active, which
// proposal detail overlays it, and the proposal-authoring draft.
package view

import (
	"fmt"
	"strings"
	"sync"

	"artdao/internal/domain"
	"artdao/internal/studio"
)

// View is a top-level screen.
type View int

const (
	Home View = iota
	ProposalList
	ProposalCreate
	Studio
	AgentCenter
	Gallery
	Chat
	Profile
)

var viewNames = [...]string{"home", "proposals", "create", "studio", "agents", "gallery", "chat", "profile"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return fmt.Sprintf("view(%d)", int(v))
	}
	return viewNames[v]
}

// Views lists every view in menu order.
func Views() []View {
	return []View{Home, ProposalList, ProposalCreate, Studio, AgentCenter, Gallery, Chat, Profile}
}

// ParseView resolves a view by name.
func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range viewNames {
		if n == s {
			return View(i), nil
		}
	}
	return Home, fmt.Errorf("unknown view %q", s)
}

// State is a snapshot of the router.
type State struct {
	Active View
	// Modal is the proposal whose detail overlays Active, if any.
	Modal *domain.Proposal
}

// Router holds the navigation state. The zero value is not usable; use New.
type Router struct {
	mu     sync.Mutex
	active View
	modal  *domain.Proposal
	draft  domain.ProposalDraft
}

// New returns a router on Home with an empty draft.
func New() *Router {
	return &Router{active: Home, draft: domain.NewProposalDraft()}
}

// State returns a copy of the navigation state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := State{Active: r.active}
	if r.modal != nil {
		m := *r.modal
		s.Modal = &m
	}
	return s
}

// Active returns the active view.
func (r *Router) Active() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Navigate makes v active. An open detail stays open.
func (r *Router) Navigate(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = v
}

// OpenDetail overlays the detail of p on the active view.
func (r *Router) OpenDetail(p domain.Proposal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modal = &p
}

// CloseDetail removes the overlay; the active view is unchanged.
func (r *Router) CloseDetail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modal = nil
}

// Draft returns the proposal-authoring draft.
func (r *Router) Draft() domain.ProposalDraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

// SetDraft replaces the proposal-authoring draft.
func (r *Router) SetDraft(d domain.ProposalDraft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = d
}

// ResetDraft restores the empty draft with the default style.
func (r *Router) ResetDraft() { r.SetDraft(domain.NewProposalDraft()) }

// HandoffToCreate copies a creative draft into the proposal-authoring draft
// and opens ProposalCreate. Empty fields are copied as they are.
func (r *Router) HandoffToCreate(d studio.Draft) domain.ProposalDraft {
	pd := domain.ProposalDraft{
		Title:       d.Intent,
		Description: d.DraftText,
		ImageURL:    d.ImageURL,
		Style:       domain.StyleAIGenerated,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = pd
	r.active = ProposalCreate
	return pd
}
