/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// Keychain service and item names.
const (
	keychainService = "artdao"
	keychainSession = "session_address"
)

// SecretStore abstracts the OS keychain so tests can swap it out.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// ErrSecretNotFound is returned by SecretStore.Get for a missing item.
var ErrSecretNotFound = keyring.ErrNotFound

// OSKeychain implements SecretStore with github.com/zalando/go-keyring.
type OSKeychain struct{}

func (OSKeychain) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (OSKeychain) Set(service, key, value string) error   { return keyring.Set(service, key, value) }
func (OSKeychain) Delete(service, key string) error       { return keyring.Delete(service, key) }

// SessionStore keeps the connected wallet address in the keychain so the
// next launch can restore the session.
type SessionStore struct {
	secrets SecretStore
}

// NewSessionStore returns a store over secrets; nil means the OS keychain.
func NewSessionStore(secrets SecretStore) *SessionStore {
	if secrets == nil {
		secrets = OSKeychain{}
	}
	return &SessionStore{secrets: secrets}
}

// Load returns the stored address. ok is false when nothing is stored.
func (s *SessionStore) Load() (address string, ok bool, err error) {
	v, err := s.secrets.Get(keychainService, keychainSession)
	if errors.Is(err, ErrSecretNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	v = strings.TrimSpace(v)
	return v, v != "", nil
}

// Save records address.
func (s *SessionStore) Save(address string) error {
	return s.secrets.Set(keychainService, keychainSession, address)
}

// Clear removes the record; clearing an absent record succeeds.
func (s *SessionStore) Clear() error {
	err := s.secrets.Delete(keychainService, keychainSession)
	if errors.Is(err, ErrSecretNotFound) {
		return nil
	}
	return err
}
