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
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"artdao/internal/domain"
	"artdao/internal/wallet"
)

// ErrNotFound is returned for a missing proposal or gallery item.
var ErrNotFound = errors.New("not found")

// Repository stores what the reference backend persists.
type Repository interface {
	ListProposals(ctx context.Context, status domain.Status) ([]domain.Proposal, error)
	ProposalsBy(ctx context.Context, address string) ([]domain.Proposal, error)
	CreateProposal(ctx context.Context, p domain.Proposal) (domain.Proposal, error)
	DeleteProposal(ctx context.Context, id int64) error
	GalleryItems(ctx context.Context) ([]domain.GalleryItem, error)
	AddFeedback(ctx context.Context, itemID int64, address, message string) error
	Ping(ctx context.Context) error
}

// MemoryRepo is a Repository held in process memory.
type MemoryRepo struct {
	mu        sync.Mutex
	proposals []domain.Proposal
	gallery   []domain.GalleryItem
	feedback  map[int64][]string
	nextID    int64
	now       func() time.Time
}

// NewMemoryRepo returns a repository seeded with the demo exhibition.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		gallery:  slices.Clone(demoGallery),
		feedback: map[int64][]string{},
		nextID:   1,
		now:      time.Now,
	}
}

var demoGallery = []domain.GalleryItem{
	{ID: 1, Title: "Tidal Memory", ArtistAddress: "0x5aeda56215b167893e80b4fe645ba6d5bab767de",
		ImageURL: "https://picsum.photos/seed/tidal/800/600", Description: "Ink and salt on recycled sailcloth."},
	{ID: 2, Title: "Neon Rain", ArtistAddress: "0x6330a553fc93768f612722bb8c2ec78ac90b3bbc",
		ImageURL: "https://picsum.photos/seed/neon/800/600", Description: "Generative study of a city at night."},
	{ID: 3, Title: "Quiet Forest", ArtistAddress: "0x5aeda56215b167893e80b4fe645ba6d5bab767de",
		ImageURL: "https://picsum.photos/seed/forest/800/600", Description: "Oil on linen, painted over one winter."},
}

func (m *MemoryRepo) ListProposals(_ context.Context, status domain.Status) ([]domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Proposal{}
	for i := len(m.proposals) - 1; i >= 0; i-- {
		p := m.proposals[i]
		if status == "" || strings.EqualFold(string(p.Status), string(status)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryRepo) ProposalsBy(_ context.Context, address string) ([]domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Proposal{}
	for i := len(m.proposals) - 1; i >= 0; i-- {
		if wallet.SameAddress(m.proposals[i].WalletAddress, address) {
			out = append(out, m.proposals[i])
		}
	}
	return out, nil
}

func (m *MemoryRepo) CreateProposal(_ context.Context, p domain.Proposal) (domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = m.now().UTC()
	m.proposals = append(m.proposals, p)
	return p, nil
}

func (m *MemoryRepo) DeleteProposal(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.proposals, func(p domain.Proposal) bool { return p.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.proposals = slices.Delete(m.proposals, i, i+1)
	return nil
}

func (m *MemoryRepo) GalleryItems(context.Context) ([]domain.GalleryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.gallery), nil
}

func (m *MemoryRepo) AddFeedback(_ context.Context, itemID int64, address, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.ContainsFunc(m.gallery, func(g domain.GalleryItem) bool { return g.ID == itemID }) {
		return ErrNotFound
	}
	m.feedback[itemID] = append(m.feedback[itemID], address+": "+message)
	return nil
}

// Feedback returns the comments recorded for itemID.
func (m *MemoryRepo) Feedback(itemID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.feedback[itemID])
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }
