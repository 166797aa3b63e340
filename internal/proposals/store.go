/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package proposals holds the client's copy of the proposal list and the
// create/delete mutations that keep it consistent with the backend.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"artdao/internal/backend"
	"artdao/internal/domain"
	applog "artdao/internal/log"
	"artdao/internal/wallet"
)

// Backend is the proposal API. *backend.Client implements it.
type Backend interface {
	ListProposals(ctx context.Context, status domain.Status) ([]domain.Proposal, error)
	CreateProposal(ctx context.Context, req backend.CreateProposalRequest) (domain.Proposal, error)
	DeleteProposal(ctx context.Context, id int64) error
}

// Gate authorizes state-changing calls. It returns the freshly verified
// address of the acting account.
type Gate interface {
	RequireVerified(ctx context.Context) (string, error)
}

// Cache persists the last fetched list. *localstore.Cache implements it.
type Cache interface {
	ReplaceProposals(ctx context.Context, status domain.Status, list []domain.Proposal) error
	LoadProposals(ctx context.Context) (domain.Status, []domain.Proposal, error)
}

// Searcher is implemented by caches that support full-text search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Proposal, error)
}

var (
	// ErrDeleteRejected means the backend refused a delete. The local list
	// is unchanged.
	ErrDeleteRejected = errors.New("proposals: delete rejected by backend")
	// ErrTitleRequired is returned for a draft without a title.
	ErrTitleRequired = errors.New("proposals: title is required")
)

// SubmissionError is a failed create. Nothing local changed; the user has to
// submit again.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submit proposal: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }

// Options configures a Store.
type Options struct {
	// Admins is the client-held allow-list used by CanOfferDelete.
	Admins []string
	// Cache is optional.
	Cache Cache
}

// Store is the proposal list. Every successful list replaces it wholesale.
type Store struct {
	api    Backend
	gate   Gate
	cache  Cache
	admins []string
	log    *slog.Logger

	mu        sync.Mutex
	list      []domain.Proposal
	filter    domain.Status
	issued    uint64
	committed uint64
}

// New returns an empty store.
func New(api Backend, gate Gate, opts Options) *Store {
	return &Store{
		api:    api,
		gate:   gate,
		cache:  opts.Cache,
		admins: slices.Clone(opts.Admins),
		log:    applog.WithComponent("proposals"),
		list:   []domain.Proposal{},
	}
}

// Restore loads the list persisted by the last successful List. It is a
// no-op without a cache.
func (s *Store) Restore(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	status, list, err := s.cache.LoadProposals(ctx)
	if err != nil {
		return fmt.Errorf("restore proposals: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed == 0 {
		s.list, s.filter = list, status
	}
	return nil
}

// List fetches proposals with the given status ("" for all) and replaces the
// local list. A List that completes after a newer one is dropped.
func (s *Store) List(ctx context.Context, status domain.Status) ([]domain.Proposal, error) {
	l := applog.WithOperation(s.log, "list").With(slog.String("status", string(status)))
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	list, err := s.api.ListProposals(ctx, status)
	if err != nil {
		l.Warn("list failed", slog.Any("err", err))
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	if list == nil {
		list = []domain.Proposal{}
	}

	s.mu.Lock()
	if gen < s.committed {
		s.mu.Unlock()
		l.Debug("dropping stale list", slog.Uint64("gen", gen))
		return slices.Clone(list), nil
	}
	s.committed = gen
	s.list, s.filter = list, status
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceProposals(ctx, status, list); err != nil {
			l.Warn("cache write failed", slog.Any("err", err))
		}
	}
	l.Debug("list replaced", slog.Int("count", len(list)))
	return slices.Clone(list), nil
}

// Create submits draft on behalf of the verified account, then re-lists with
// the current filter. There is no optimistic insert: until that list
// returns, Proposals still shows the previous set. A failed re-list is
// logged and does not fail the create.
func (s *Store) Create(ctx context.Context, draft domain.ProposalDraft) (domain.Proposal, error) {
	l := applog.WithOperation(s.log, "create")
	if strings.TrimSpace(draft.Title) == "" {
		return domain.Proposal{}, &SubmissionError{Err: ErrTitleRequired}
	}
	address, err := s.gate.RequireVerified(ctx)
	if err != nil {
		return domain.Proposal{}, &SubmissionError{Err: err}
	}
	if draft.Style == "" {
		draft.Style = domain.StyleGeneral
	}
	created, err := s.api.CreateProposal(ctx, backend.CreateProposalRequest{WalletAddress: address, ProposalDraft: draft})
	if err != nil {
		l.Warn("create failed", applog.Addr(address), slog.Any("err", err))
		return domain.Proposal{}, &SubmissionError{Err: err}
	}
	l.Info("proposal created", slog.Int64("id", created.ID), applog.Addr(address))

	if _, err := s.List(ctx, s.Filter()); err != nil {
		l.Warn("refresh after create failed", slog.Any("err", err))
	}
	return created, nil
}

// Delete asks the backend to remove id and re-lists on success. The server
// round trip always happens; the allow-list is not consulted here. A backend
// refusal yields ErrDeleteRejected and leaves the local list untouched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	l := applog.WithOperation(s.log, "delete").With(slog.Int64("id", id))
	address, err := s.gate.RequireVerified(ctx)
	if err != nil {
		return fmt.Errorf("delete proposal %d: %w", id, err)
	}
	if err := s.api.DeleteProposal(ctx, id); err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			l.Warn("delete rejected", applog.Addr(address), slog.Int("code", se.Code))
			return fmt.Errorf("%w: %w", ErrDeleteRejected, err)
		}
		l.Warn("delete failed", slog.Any("err", err))
		return fmt.Errorf("delete proposal %d: %w", id, err)
	}
	l.Info("proposal deleted", applog.Addr(address))
	if _, err := s.List(ctx, s.Filter()); err != nil {
		l.Warn("refresh after delete failed", slog.Any("err", err))
	}
	return nil
}

// CanOfferDelete reports whether the UI should offer deletion to address.
// This is an affordance only; the backend enforces authorization.
func (s *Store) CanOfferDelete(address string) bool {
	if address == "" {
		return false
	}
	for _, a := range s.admins {
		if wallet.SameAddress(a, address) {
			return true
		}
	}
	return false
}

// Proposals returns a copy of the current list.
func (s *Store) Proposals() []domain.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.list)
}

// Filter returns the status filter of the current list.
func (s *Store) Filter() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Titles returns the titles of the current list.
func (s *Store) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.list))
	for _, p := range s.list {
		out = append(out, p.Title)
	}
	return out
}

// Find returns the proposal with id from the current list.
func (s *Store) Find(id int64) (domain.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.list {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Proposal{}, false
}

// Search matches query against the cached titles and descriptions, using
// the cache's full-text index when it has one.
func (s *Store) Search(ctx context.Context, query string) ([]domain.Proposal, error) {
	if sr, ok := s.cache.(Searcher); ok {
		return sr.Search(ctx, query)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.Proposal{}
	if q == "" {
		return out, nil
	}
	for _, p := range s.Proposals() {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out, nil
}
