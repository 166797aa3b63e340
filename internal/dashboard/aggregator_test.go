/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artdao/internal/domain"
)

type callKey struct{}

func withCall(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, callKey{}, id)
}

// bit i of fail fails RequiredFields[i]; bit 7 fails the recommendation.
type fakeSource struct {
	fail uint8

	balance        float64
	balances       map[int]float64
	membership     string
	rewards        float64
	delegation     domain.Delegation
	activity       []domain.Activity
	referral       map[string]any
	authored       []domain.Proposal
	recommendation *domain.Recommendation

	// gates block the balance branch of the call with the given id.
	gates   map[int]chan struct{}
	arrived chan int
}

var errBoom = errors.New("boom")

func newFake() *fakeSource {
	return &fakeSource{
		balance:        1250,
		membership:     "Gold",
		rewards:        12.5,
		delegation:     domain.Delegation{To: "0x00000000000000000000000000000000000000aa", Amount: 3},
		activity:       []domain.Activity{{Date: "2024-05-01", Type: "vote"}},
		referral:       map[string]any{"code": "ART42", "invited": 4.0},
		authored:       []domain.Proposal{{ID: 7, Title: "Harbour mural", Status: domain.StatusOpen}},
		recommendation: &domain.Recommendation{Title: "Vote on the harbour mural", Reason: "matches your history"},
		arrived:        make(chan int, 16),
	}
}

func (f *fakeSource) check(bit int) error {
	if f.fail&(1<<bit) != 0 {
		return errBoom
	}
	return nil
}

func (f *fakeSource) Balance(ctx context.Context, _ string) (float64, error) {
	id, _ := ctx.Value(callKey{}).(int)
	if g, ok := f.gates[id]; ok {
		f.arrived <- id
		select {
		case <-g:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := f.check(0); err != nil {
		return 0, err
	}
	if v, ok := f.balances[id]; ok {
		return v, nil
	}
	return f.balance, nil
}

func (f *fakeSource) Membership(context.Context, string) (string, error) {
	return f.membership, f.check(1)
}

func (f *fakeSource) Rewards(context.Context, string) (float64, error) {
	return f.rewards, f.check(2)
}

func (f *fakeSource) Delegation(context.Context, string) (domain.Delegation, error) {
	return f.delegation, f.check(3)
}

func (f *fakeSource) Activity(context.Context, string) ([]domain.Activity, error) {
	if err := f.check(4); err != nil {
		return nil, err
	}
	return f.activity, nil
}

func (f *fakeSource) Referral(context.Context, string) (map[string]any, error) {
	if err := f.check(5); err != nil {
		return nil, err
	}
	return f.referral, nil
}

func (f *fakeSource) AuthoredProposals(context.Context, string) ([]domain.Proposal, error) {
	if err := f.check(6); err != nil {
		return nil, err
	}
	return f.authored, nil
}

func (f *fakeSource) Recommendation(context.Context, string) (*domain.Recommendation, error) {
	if err := f.check(7); err != nil {
		return nil, err
	}
	return f.recommendation, nil
}

const addr = "0x1234567890abcdef1234567890abcdef12345678"

// checkSnapshot asserts the settle-all contract for one failure mask.
func checkSnapshot(t *testing.T, f *fakeSource, snap Snapshot) {
	t.Helper()
	failed := func(bit int) bool { return f.fail&(1<<bit) != 0 }

	want := map[Field]bool{}
	for i, field := range RequiredFields {
		if failed(i) {
			want[field] = true
		}
	}
	got := map[Field]bool{}
	for _, field := range snap.PartialFailures {
		got[field] = true
	}
	assert.Equal(t, want, got, "partial failures for mask %08b", f.fail)
	assert.NotContains(t, snap.PartialFailures, FieldRecommendation)

	if failed(0) {
		assert.Zero(t, snap.Balance)
	} else {
		assert.Equal(t, f.balance, snap.Balance)
	}
	if failed(1) {
		assert.Empty(t, snap.Membership)
	} else {
		assert.Equal(t, f.membership, snap.Membership)
	}
	if failed(2) {
		assert.Zero(t, snap.Rewards)
	} else {
		assert.Equal(t, f.rewards, snap.Rewards)
	}
	if failed(3) {
		assert.Equal(t, domain.Delegation{}, snap.Delegation)
	} else {
		assert.Equal(t, f.delegation, snap.Delegation)
	}
	require.NotNil(t, snap.Activity)
	if failed(4) {
		assert.Empty(t, snap.Activity)
	} else {
		assert.Equal(t, f.activity, snap.Activity)
	}
	require.NotNil(t, snap.Referral)
	if failed(5) {
		assert.Empty(t, snap.Referral)
	} else {
		assert.Equal(t, f.referral, snap.Referral)
	}
	require.NotNil(t, snap.AuthoredProposals)
	if failed(6) {
		assert.Empty(t, snap.AuthoredProposals)
	} else {
		assert.Equal(t, f.authored, snap.AuthoredProposals)
	}
	if failed(7) {
		assert.Nil(t, snap.Recommendation)
	} else {
		assert.Equal(t, f.recommendation, snap.Recommendation)
	}
}

func TestRefreshEveryFailureSubset(t *testing.T) {
	for mask := 0; mask < 256; mask++ {
		f := newFake()
		f.fail = uint8(mask)
		agg := New(f, Config{})

		snap, applied := agg.Refresh(context.Background(), addr)
		require.True(t, applied)
		checkSnapshot(t, f, snap)
		assert.Equal(t, len(snap.PartialFailures) > 0, snap.Degraded())
		assert.Equal(t, snap.PartialFailures, agg.Snapshot().PartialFailures)
	}
}

func TestRefreshProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("failed branches default, others keep their value", prop.ForAll(
		func(mask uint8, balance float64, membership string) bool {
			f := newFake()
			f.fail = mask
			f.balance = balance
			f.membership = membership
			snap, _ := New(f, Config{}).Refresh(context.Background(), addr)

			ok := snap.Activity != nil && snap.Referral != nil && snap.AuthoredProposals != nil
			ok = ok && snap.Failed(FieldBalance) == (mask&1 != 0)
			if mask&1 == 0 {
				ok = ok && snap.Balance == balance
			} else {
				ok = ok && snap.Balance == 0
			}
			if mask&2 == 0 {
				ok = ok && snap.Membership == membership
			} else {
				ok = ok && snap.Membership == ""
			}
			return ok && (snap.Recommendation == nil) == (mask&0x80 != 0)
		},
		gen.UInt8(),
		gen.Float64Range(0, 1e9),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestRefreshAllFailedStillTotal(t *testing.T) {
	f := newFake()
	f.fail = 0xff
	var reported []Field
	var mu sync.Mutex
	agg := New(f, Config{OnFailure: func(e *ResourceFetchError) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, e.Field)
		assert.ErrorIs(t, e, errBoom)
	}})

	snap, applied := agg.Refresh(context.Background(), addr)
	assert.True(t, applied)
	assert.Len(t, snap.PartialFailures, len(RequiredFields))
	assert.ElementsMatch(t, RequiredFields, reported)
	assert.Nil(t, snap.Recommendation)
	assert.Equal(t, addr, snap.Address)
}

func TestRecommendationAbsentIsNotAFailure(t *testing.T) {
	f := newFake()
	f.recommendation = nil
	snap, _ := New(f, Config{}).Refresh(context.Background(), addr)
	assert.Nil(t, snap.Recommendation)
	assert.Empty(t, snap.PartialFailures)
}

// overlap starts refresh 0 with its balance branch held, completes refresh 1,
// then releases refresh 0 so it settles last.
func overlap(t *testing.T, cfg Config) (agg *Aggregator, first, second bool) {
	t.Helper()
	f := newFake()
	f.balances = map[int]float64{0: 100, 1: 200}
	f.gates = map[int]chan struct{}{0: make(chan struct{})}
	agg = New(f, cfg)

	done := make(chan bool)
	go func() {
		_, applied := agg.Refresh(withCall(context.Background(), 0), addr)
		done <- applied
	}()
	select {
	case <-f.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh never started")
	}

	_, second = agg.Refresh(withCall(context.Background(), 1), addr)
	close(f.gates[0])
	first = <-done
	return agg, first, second
}

func TestOverlappingRefreshLatestWins(t *testing.T) {
	agg, first, second := overlap(t, Config{})
	assert.False(t, first, "stale refresh must be discarded")
	assert.True(t, second)
	snap := agg.Snapshot()
	assert.Equal(t, 200.0, snap.Balance)
	assert.Equal(t, uint64(2), snap.Generation)
}

func TestOverlappingRefreshCompletionOrder(t *testing.T) {
	agg, first, second := overlap(t, Config{ApplyInCompletionOrder: true})
	assert.True(t, first)
	assert.True(t, second)
	// the older refresh resolved last and overwrote the newer one
	assert.Equal(t, 100.0, agg.Snapshot().Balance)
}

func TestResetDiscardsInFlight(t *testing.T) {
	f := newFake()
	f.gates = map[int]chan struct{}{0: make(chan struct{})}
	agg := New(f, Config{})

	done := make(chan bool)
	go func() {
		_, applied := agg.Refresh(withCall(context.Background(), 0), addr)
		done <- applied
	}()
	<-f.arrived
	agg.Reset()

	select {
	case applied := <-done:
		assert.False(t, applied)
	case <-time.After(2 * time.Second):
		t.Fatal("reset did not cancel the in-flight refresh")
	}
	snap := agg.Snapshot()
	assert.Empty(t, snap.Address)
	assert.Zero(t, snap.Balance)
	assert.NotNil(t, snap.Activity)
}

func TestSnapshotIsACopy(t *testing.T) {
	agg := New(newFake(), Config{})
	agg.Refresh(context.Background(), addr)

	snap := agg.Snapshot()
	snap.Referral["code"] = "mutated"
	snap.Activity[0].Type = "mutated"
	snap.Recommendation.Title = "mutated"

	again := agg.Snapshot()
	assert.Equal(t, "ART42", again.Referral["code"])
	assert.Equal(t, "vote", again.Activity[0].Type)
	assert.Equal(t, "Vote on the harbour mural", again.Recommendation.Title)
}
