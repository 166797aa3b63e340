/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginResult is the backend's answer to a wallet login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges a wallet address and signature for an access token.
func (c *Client) Login(ctx context.Context, address, signature string) (LoginResult, error) {
	req := map[string]string{"wallet_address": address, "signature": signature}
	var res LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/wallet-login", nil, req, &res); err != nil {
		return LoginResult{}, err
	}
	if res.AccessToken == "" {
		return LoginResult{}, errors.New("login response carried no access token")
	}
	return res, nil
}

// Logout invalidates the server-side session for address.
func (c *Client) Logout(ctx context.Context, address string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, map[string]string{"wallet_address": address}, nil)
}

// TokenClaims reads the subject and expiry of a JWT access token without
// verifying its signature; only the backend can do that. Opaque tokens return
// an error and callers should treat them as valid until the backend says
// otherwise.
func TokenClaims(token string) (subject string, expires time.Time, err error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", time.Time{}, err
	}
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return claims.Subject, expires, nil
}
