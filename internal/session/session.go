/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session owns the wallet-backed login state of the client.
//
// A session is Verified when it was established in this process through the
// wallet and a backend login, and Optimistic when it was restored from the
// durable record at startup. State-changing operations go through
// RequireVerified, which promotes an optimistic session by repeating the
// wallet and login exchange.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"artdao/internal/backend"
	applog "artdao/internal/log"
	"artdao/internal/wallet"
)

// TrustLevel says how the current address was established.
type TrustLevel int

const (
	Optimistic TrustLevel = iota
	Verified
)

func (t TrustLevel) String() string {
	if t == Verified {
		return "verified"
	}
	return "optimistic"
}

// Session is a value snapshot of the login state. Address is non-empty
// exactly when Connected is true.
type Session struct {
	Address   string
	Connected bool
	Trust     TrustLevel
	// ExpiresAt is the access token expiry when the backend issued a JWT.
	ExpiresAt time.Time
}

// Change is delivered to listeners after every transition.
type Change struct {
	Previous Session
	Current  Session
}

// Connected reports a transition into the connected state.
func (c Change) Connected() bool { return !c.Previous.Connected && c.Current.Connected }

// Disconnected reports a transition out of the connected state.
func (c Change) Disconnected() bool { return c.Previous.Connected && !c.Current.Connected }

// Auth is the backend login API. *backend.Client implements it.
type Auth interface {
	Login(ctx context.Context, address, signature string) (backend.LoginResult, error)
	Logout(ctx context.Context, address string) error
	SetToken(token string)
}

// Store is the durable address record. *config.SessionStore implements it.
type Store interface {
	Load() (address string, ok bool, err error)
	Save(address string) error
	Clear() error
}

var (
	// ErrNotConnected is returned by RequireVerified without a session.
	ErrNotConnected = errors.New("session: not connected")
	// ErrAddressMismatch means re-verification produced a different account
	// than the one the session belongs to.
	ErrAddressMismatch = errors.New("session: wallet address does not match session")
)

// AuthBackendError is a failed backend login. No session was created.
type AuthBackendError struct {
	Err error
}

func (e *AuthBackendError) Error() string { return "backend login: " + e.Err.Error() }
func (e *AuthBackendError) Unwrap() error { return e.Err }

// Options tunes a Manager.
type Options struct {
	// LogoutTimeout bounds the best-effort backend logout. Default 5s.
	LogoutTimeout time.Duration
	Now           func() time.Time
}

// Manager owns the session. It is safe for concurrent use.
type Manager struct {
	wallet wallet.Provider
	auth   Auth
	store  Store
	opts   Options
	log    *slog.Logger

	mu        sync.Mutex
	cur       Session
	listeners []func(Change)
}

// NewManager returns a disconnected manager.
func NewManager(w wallet.Provider, auth Auth, store Store, opts Options) *Manager {
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{wallet: w, auth: auth, store: store, opts: opts, log: applog.WithComponent("session")}
}

// OnChange registers fn to run synchronously after every transition.
func (m *Manager) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Current returns the current session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// set replaces the session and notifies listeners outside the lock.
func (m *Manager) set(next Session) {
	m.mu.Lock()
	prev := m.cur
	m.cur = next
	ls := append([]func(Change){}, m.listeners...)
	m.mu.Unlock()
	if prev == next {
		return
	}
	for _, fn := range ls {
		fn(Change{Previous: prev, Current: next})
	}
}

// login runs the wallet disclosure and the backend exchange and installs the
// token. It does not touch the session.
func (m *Manager) login(ctx context.Context) (wallet.Account, time.Time, error) {
	acct, err := m.wallet.RequestAccount(ctx)
	if err != nil {
		return wallet.Account{}, time.Time{}, err
	}
	res, err := m.auth.Login(ctx, acct.Address, acct.Signature)
	if err != nil {
		return wallet.Account{}, time.Time{}, &AuthBackendError{Err: err}
	}
	var expires time.Time
	if sub, exp, err := backend.TokenClaims(res.AccessToken); err == nil {
		expires = exp
		if sub != "" && !wallet.SameAddress(sub, acct.Address) {
			return wallet.Account{}, time.Time{}, &AuthBackendError{Err: fmt.Errorf("token issued for %s", sub)}
		}
	}
	m.auth.SetToken(res.AccessToken)
	return acct, expires, nil
}

// Connect acquires the wallet account and logs in. On success the session is
// Connected and Verified and the address is recorded durably. On failure
// the session is left as it was.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	l := applog.WithOperation(m.log, "connect")
	acct, expires, err := m.login(ctx)
	if err != nil {
		l.Warn("connect failed", slog.Any("err", err))
		return m.Current(), err
	}
	if err := m.store.Save(acct.Address); err != nil {
		l.Warn("persist session failed", slog.Any("err", err))
	}
	next := Session{Address: acct.Address, Connected: true, Trust: Verified, ExpiresAt: expires}
	m.set(next)
	l.Info("connected", applog.Addr(acct.Address))
	return next, nil
}

// RestoreSession reads the durable record and, if present, marks the session
// Connected and Optimistic. It makes no network call. The bool reports
// whether a session was restored.
func (m *Manager) RestoreSession() (Session, bool, error) {
	l := applog.WithOperation(m.log, "restore")
	addr, ok, err := m.store.Load()
	if err != nil {
		l.Warn("read session record failed", slog.Any("err", err))
		return m.Current(), false, fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return m.Current(), false, nil
	}
	if !wallet.ValidAddress(addr) {
		l.Warn("discarding malformed session record")
		_ = m.store.Clear()
		return m.Current(), false, nil
	}
	next := Session{Address: addr, Connected: true, Trust: Optimistic}
	m.set(next)
	l.Info("session restored", applog.Addr(addr))
	return next, true, nil
}

// Logout invalidates the backend session on a best-effort basis, clears the
// durable record and resets the session. It always ends disconnected.
func (m *Manager) Logout(ctx context.Context) {
	l := applog.WithOperation(m.log, "logout")
	cur := m.Current()
	if cur.Address != "" {
		lctx, cancel := context.WithTimeout(ctx, m.opts.LogoutTimeout)
		if err := m.auth.Logout(lctx, cur.Address); err != nil {
			l.Debug("backend logout ignored", slog.Any("err", err))
		}
		cancel()
	}
	m.auth.SetToken("")
	if err := m.store.Clear(); err != nil {
		l.Warn("clear session record failed", slog.Any("err", err))
	}
	m.set(Session{})
	l.Info("logged out", applog.Addr(cur.Address))
}

// RequireVerified returns the session address when the session is Verified
// with an unexpired token. An optimistic or expired session is re-verified
// through the wallet and a fresh login first.
func (m *Manager) RequireVerified(ctx context.Context) (string, error) {
	cur := m.Current()
	if !cur.Connected {
		return "", ErrNotConnected
	}
	if cur.Trust == Verified && (cur.ExpiresAt.IsZero() || m.opts.Now().Before(cur.ExpiresAt)) {
		return cur.Address, nil
	}

	l := applog.WithOperation(m.log, "reverify").With(applog.Addr(cur.Address))
	acct, expires, err := m.login(ctx)
	if err != nil {
		l.Warn("re-verification failed", slog.Any("err", err))
		return "", err
	}
	if !wallet.SameAddress(acct.Address, cur.Address) {
		m.auth.SetToken("")
		got := applog.Addr(acct.Address)
		got.Key = "wallet"
		l.Warn("wallet switched accounts", got)
		return "", ErrAddressMismatch
	}

	m.mu.Lock()
	still := m.cur.Connected && wallet.SameAddress(m.cur.Address, cur.Address)
	m.mu.Unlock()
	if !still {
		m.auth.SetToken("")
		return "", ErrNotConnected
	}
	next := Session{Address: cur.Address, Connected: true, Trust: Verified, ExpiresAt: expires}
	m.set(next)
	l.Info("session verified")
	return next.Address, nil
}
