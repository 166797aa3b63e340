/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dashboard aggregates the connected account's dashboard from eight
// independent backend resources. A failing resource never blanks the others:
// it falls back to a default and is listed in Snapshot.PartialFailures.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"artdao/internal/domain"
	applog "artdao/internal/log"
	"artdao/internal/settle"
)

// Source fetches the per-account resources. *backend.Client implements it.
type Source interface {
	Balance(ctx context.Context, address string) (float64, error)
	Membership(ctx context.Context, address string) (string, error)
	Rewards(ctx context.Context, address string) (float64, error)
	Delegation(ctx context.Context, address string) (domain.Delegation, error)
	Activity(ctx context.Context, address string) ([]domain.Activity, error)
	Referral(ctx context.Context, address string) (map[string]any, error)
	AuthoredProposals(ctx context.Context, address string) ([]domain.Proposal, error)
	Recommendation(ctx context.Context, address string) (*domain.Recommendation, error)
}

// ResourceFetchError describes one failed branch of a refresh.
type ResourceFetchError struct {
	Field Field
	Err   error
}

func (e *ResourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Field, e.Err)
}

func (e *ResourceFetchError) Unwrap() error { return e.Err }

// Config tunes the aggregator.
type Config struct {
	// ApplyInCompletionOrder commits every refresh when it settles, so an
	// older refresh resolving last overwrites a newer one. Only useful to
	// reproduce that ordering in tests; the default commits the latest
	// issued refresh only.
	ApplyInCompletionOrder bool
	// OnFailure, if set, is called once per failed required branch.
	OnFailure func(*ResourceFetchError)
	// Now overrides the clock used for Snapshot.RefreshedAt.
	Now func() time.Time
}

// Aggregator owns the current dashboard snapshot.
type Aggregator struct {
	src Source
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	snap      Snapshot
	issued    uint64
	abandoned uint64 // generations <= abandoned never commit
	cancels   map[uint64]context.CancelFunc
}

// New returns an aggregator holding the empty snapshot.
func New(src Source, cfg Config) *Aggregator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{
		src:     src,
		cfg:     cfg,
		log:     applog.WithComponent("dashboard"),
		snap:    Empty(),
		cancels: map[uint64]context.CancelFunc{},
	}
}

// Refresh fetches all resources for address concurrently and waits for every
// branch. It never fails: the returned snapshot is always total. The bool
// reports whether the snapshot became the current one; a refresh superseded
// by a later call or abandoned by Reset/Abandon is discarded.
func (a *Aggregator) Refresh(ctx context.Context, address string) (Snapshot, bool) {
	a.mu.Lock()
	a.issued++
	gen := a.issued
	cctx, cancel := context.WithCancel(ctx)
	a.cancels[gen] = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.cancels, gen)
		a.mu.Unlock()
		cancel()
	}()

	l := applog.WithOperation(a.log, "refresh").With(applog.Addr(address), slog.Uint64("gen", gen))
	start := a.cfg.Now()
	snap := a.collect(cctx, address)
	snap.Generation = gen
	snap.RefreshedAt = a.cfg.Now()

	for _, f := range snap.PartialFailures {
		l.Warn("dashboard resource unavailable", slog.String("field", string(f)))
	}

	applied := a.commit(snap)
	l.Debug("refresh settled",
		slog.Int("failures", len(snap.PartialFailures)),
		slog.Bool("applied", applied),
		slog.Duration("took", snap.RefreshedAt.Sub(start)))
	return snap.Clone(), applied
}

func (a *Aggregator) collect(ctx context.Context, address string) Snapshot {
	var g settle.Group
	balance := settle.Go(&g, ctx, 0.0, func(ctx context.Context) (float64, error) { return a.src.Balance(ctx, address) })
	membership := settle.Go(&g, ctx, "", func(ctx context.Context) (string, error) { return a.src.Membership(ctx, address) })
	rewards := settle.Go(&g, ctx, 0.0, func(ctx context.Context) (float64, error) { return a.src.Rewards(ctx, address) })
	delegation := settle.Go(&g, ctx, domain.Delegation{}, func(ctx context.Context) (domain.Delegation, error) {
		return a.src.Delegation(ctx, address)
	})
	activity := settle.Go(&g, ctx, []domain.Activity{}, func(ctx context.Context) ([]domain.Activity, error) {
		return a.src.Activity(ctx, address)
	})
	referral := settle.Go(&g, ctx, map[string]any{}, func(ctx context.Context) (map[string]any, error) {
		return a.src.Referral(ctx, address)
	})
	authored := settle.Go(&g, ctx, []domain.Proposal{}, func(ctx context.Context) ([]domain.Proposal, error) {
		return a.src.AuthoredProposals(ctx, address)
	})
	recommendation := settle.Go(&g, ctx, (*domain.Recommendation)(nil), func(ctx context.Context) (*domain.Recommendation, error) {
		return a.src.Recommendation(ctx, address)
	})
	g.Wait()

	snap := Empty()
	snap.Address = address
	snap.Balance = balance.Value
	snap.Membership = membership.Value
	snap.Rewards = rewards.Value
	snap.Delegation = delegation.Value
	if activity.Value != nil {
		snap.Activity = activity.Value
	}
	if referral.Value != nil {
		snap.Referral = referral.Value
	}
	if authored.Value != nil {
		snap.AuthoredProposals = authored.Value
	}
	snap.Recommendation = recommendation.Value
	if recommendation.Err != nil {
		a.log.Debug("no recommendation", slog.String("err", recommendation.Err.Error()))
	}

	errs := map[Field]error{
		FieldBalance:           balance.Err,
		FieldMembership:        membership.Err,
		FieldRewards:           rewards.Err,
		FieldDelegation:        delegation.Err,
		FieldActivity:          activity.Err,
		FieldReferral:          referral.Err,
		FieldAuthoredProposals: authored.Err,
	}
	for _, f := range RequiredFields {
		if err := errs[f]; err != nil {
			snap.PartialFailures = append(snap.PartialFailures, f)
			if a.cfg.OnFailure != nil {
				a.cfg.OnFailure(&ResourceFetchError{Field: f, Err: err})
			}
		}
	}
	slices.Sort(snap.PartialFailures)
	return snap
}

func (a *Aggregator) commit(snap Snapshot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if snap.Generation <= a.abandoned {
		return false
	}
	if !a.cfg.ApplyInCompletionOrder && snap.Generation != a.issued {
		return false
	}
	a.snap = snap
	return true
}

// Snapshot returns a copy of the current snapshot.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap.Clone()
}

// Abandon cancels every in-flight refresh. Their results are discarded.
func (a *Aggregator) Abandon() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandonLocked()
}

func (a *Aggregator) abandonLocked() {
	a.abandoned = a.issued
	for gen, cancel := range a.cancels {
		cancel()
		delete(a.cancels, gen)
	}
}

// Reset abandons in-flight refreshes and restores the empty snapshot.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandonLocked()
	a.snap = Empty()
}
