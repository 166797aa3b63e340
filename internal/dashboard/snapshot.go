/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dashboard

import (
	"maps"
	"slices"
	"time"

	"artdao/internal/domain"
)

// Field names one dashboard resource.
type Field string

const (
	FieldBalance           Field = "balance"
	FieldMembership        Field = "membership"
	FieldRewards           Field = "rewards"
	FieldDelegation        Field = "delegation"
	FieldActivity          Field = "activity"
	FieldReferral          Field = "referral"
	FieldAuthoredProposals Field = "authoredProposals"
	FieldRecommendation    Field = "recommendation"
)

// RequiredFields are the resources whose failure is recorded in
// Snapshot.PartialFailures. Recommendation is optional and never recorded.
var RequiredFields = []Field{
	FieldBalance,
	FieldMembership,
	FieldRewards,
	FieldDelegation,
	FieldActivity,
	FieldReferral,
	FieldAuthoredProposals,
}

// Snapshot is the aggregated dashboard read-model. Every field is always
// populated: slices and maps are non-nil, and failed resources hold their
// zero defaults.
type Snapshot struct {
	Address           string
	Balance           float64
	Membership        string
	Rewards           float64
	Delegation        domain.Delegation
	Activity          []domain.Activity
	Referral          map[string]any
	AuthoredProposals []domain.Proposal
	// Recommendation is nil while the backend has nothing to suggest
	// ("pending analysis").
	Recommendation *domain.Recommendation
	// PartialFailures lists, sorted, the required fields that fell back to
	// their defaults.
	PartialFailures []Field
	Generation      uint64
	RefreshedAt     time.Time
}

// Empty returns the default snapshot shown when no account is connected.
func Empty() Snapshot {
	return Snapshot{
		Activity:          []domain.Activity{},
		Referral:          map[string]any{},
		AuthoredProposals: []domain.Proposal{},
		PartialFailures:   []Field{},
	}
}

// Failed reports whether f fell back to its default.
func (s Snapshot) Failed(f Field) bool { return slices.Contains(s.PartialFailures, f) }

// Degraded reports whether any required field failed.
func (s Snapshot) Degraded() bool { return len(s.PartialFailures) > 0 }

// Clone returns a copy that shares no mutable state with s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Activity = slices.Clone(s.Activity)
	if c.Activity == nil {
		c.Activity = []domain.Activity{}
	}
	c.Referral = maps.Clone(s.Referral)
	if c.Referral == nil {
		c.Referral = map[string]any{}
	}
	c.AuthoredProposals = slices.Clone(s.AuthoredProposals)
	if c.AuthoredProposals == nil {
		c.AuthoredProposals = []domain.Proposal{}
	}
	c.PartialFailures = slices.Clone(s.PartialFailures)
	if c.PartialFailures == nil {
		c.PartialFailures = []Field{}
	}
	if s.Recommendation != nil {
		r := *s.Recommendation
		c.Recommendation = &r
	}
	return c
}
