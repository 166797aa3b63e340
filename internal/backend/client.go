/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend is the HTTP client for the DAO art backend. Each method maps
// one endpoint to one Go value; the package holds no application state beyond
// the bearer token installed after login.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "artdao/internal/log"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrNoContent is returned when the backend answers 204 or a JSON null where
// a value was expected.
var ErrNoContent = errors.New("backend returned no content")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("backend %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client talks JSON to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. baseURL may carry a trailing slash.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		log:     applog.WithComponent("backend"),
	}
}

// SetToken installs the bearer token sent with every request; "" clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// call performs one request and returns the raw body of a 2xx response.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	rid := uuid.NewString()
	req.Header.Set(RequestIDHeader, rid)
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", slog.String("method", method), slog.String("path", path), slog.String("rid", rid), slog.Any("err", err))
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("request done",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("rid", rid),
		slog.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: errorText(data)}
	}
	return data, resp.StatusCode, nil
}

// doJSON performs a request and decodes a JSON response into dest (which may
// be nil to discard the body).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	data, code, err := c.call(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(data)
	if code == http.StatusNoContent || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrNoContent
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorText extracts a short message from an error body such as
// {"error":"..."} or {"detail":"..."}.
func errorText(data []byte) string {
	var m struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if json.Unmarshal(data, &m) == nil {
		if m.Error != "" {
			return m.Error
		}
		if s, ok := m.Detail.(string); ok {
			return s
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func userPath(address, resource string) string {
	return "/api/users/" + url.PathEscape(address) + "/" + resource
}
