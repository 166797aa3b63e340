/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Events never carry wallet addresses, tokens or signatures: props with such
// keys are dropped before queueing.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	applog "artdao/internal/log"
	"artdao/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
// Everything is disabled unless OptIn is set and a URL is configured.
//
// Environment variables (read by FromEnv):
//   - ARTDAO_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable
//   - ARTDAO_TELEMETRY_URL: endpoint that receives JSON events
//   - ARTDAO_CRASH_UPLOAD_URL: endpoint that receives crash reports
//   - ARTDAO_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - ARTDAO_TELEMETRY_DEBUG: log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

type envConfig struct {
	OptIn     string `env:"ARTDAO_TELEMETRY_OPT_IN"`
	EventsURL string `env:"ARTDAO_TELEMETRY_URL"`
	CrashURL  string `env:"ARTDAO_CRASH_UPLOAD_URL"`
	TimeoutMs int    `env:"ARTDAO_TELEMETRY_TIMEOUT_MS" envDefault:"1500"`
	Debug     string `env:"ARTDAO_TELEMETRY_DEBUG"`
}

// FromEnv reads Config from the environment. Malformed values fall back to
// defaults.
func FromEnv() Config {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		raw.TimeoutMs = 1500
	}
	cfg := Config{
		OptIn:        parseBool(raw.OptIn),
		EventsURL:    strings.TrimSpace(raw.EventsURL),
		CrashURL:     strings.TrimSpace(raw.CrashURL),
		Timeout:      time.Duration(raw.TimeoutMs) * time.Millisecond,
		DebugLogging: raw.Debug != "",
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client is an async sender; it drops events silently on errors and never
// blocks the caller. The queue is bounded.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan any
	once   sync.Once
	closed chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault initializes the package-level client from env on first use.
func InitDefault() {
	defaultOnce.Do(func() {
		if defaultClient == nil {
			NewDefault(FromEnv())
		}
	})
}

// NewDefault installs a default client built from cfg.
func NewDefault(cfg Config) {
	defaultClient = New(cfg)
}

// Default returns the package-level client.
func Default() *Client {
	InitDefault()
	return defaultClient
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client sends events.
func Enabled() bool { return Default().Enabled() }

// piiKeys are prop key fragments that never leave the machine.
var piiKeys = []string{"addr", "wallet", "token", "signature", "email"}

func allowedProp(key string, v any) bool {
	k := strings.ToLower(key)
	for _, p := range piiKeys {
		if strings.Contains(k, p) {
			return false
		}
	}
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return true
	}
	return false
}

// Event queues a small JSON event if enabled. Safe to call from anywhere.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		if _, reserved := payload[k]; reserved || !allowedProp(k, v) {
			continue
		}
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
		// queue full
	}
}

// Event sends through the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if len(c.q) == 0 || time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the sender.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
		}
	}
}

func (c *Client) send(item any) {
	buf, _ := json.Marshal(item)
	req, err := http.NewRequest(http.MethodPost, c.cfg.EventsURL, bytes.NewReader(buf))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent")
	}
}

// UploadCrash posts a serialized crash report if opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go func(b []byte) {
		req, err := http.NewRequest(http.MethodPost, c.cfg.CrashURL, bytes.NewReader(b))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp, err := c.cli.Do(req)
		if err != nil {
			if c.cfg.DebugLogging {
				c.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		_ = resp.Body.Close()
		if c.cfg.DebugLogging {
			c.log.Debug("crash report uploaded")
		}
	}(append([]byte(nil), report...))
}

// UploadCrash uploads through the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
