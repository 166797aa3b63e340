/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package wallet is the seam to the external wallet that owns the user's
// identity. The client never verifies signatures; it only asks a Provider for
// an account and forwards what it gets to the backend.
package wallet

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrProviderUnavailable means no wallet provider is installed or reachable.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrAuthRejected means the user declined to disclose an address.
	ErrAuthRejected = errors.New("wallet authorization rejected")
)

// Account is what a provider discloses after the user approves.
type Account struct {
	Address   string
	Signature string
}

// Provider acquires the user's wallet account.
type Provider interface {
	RequestAccount(ctx context.Context) (Account, error)
}

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s looks like a 20-byte hex account address.
func ValidAddress(s string) bool { return hexAddress.MatchString(strings.TrimSpace(s)) }

// SameAddress compares two addresses ignoring case and surrounding space.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Static is a Provider that always discloses a fixed account. It stands in for
// a browser or hardware wallet in the CLI and in tests. An empty Address
// behaves like a missing provider.
type Static struct {
	Address   string
	Signature string
	// Decline simulates the user refusing the disclosure prompt.
	Decline bool
}

// RequestAccount implements Provider.
func (s Static) RequestAccount(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	addr := strings.TrimSpace(s.Address)
	if addr == "" {
		return Account{}, ErrProviderUnavailable
	}
	if s.Decline {
		return Account{}, ErrAuthRejected
	}
	if !ValidAddress(addr) {
		return Account{}, ErrAuthRejected
	}
	sig := s.Signature
	if sig == "" {
		sig = "unsigned"
	}
	return Account{Address: addr, Signature: sig}, nil
}
