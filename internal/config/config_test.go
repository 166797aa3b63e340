/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func useConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if body != "" {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	t.Setenv(EnvConfigPath, path)
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	useConfigFile(t, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Fatalf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Studio.ImagePolicy != "intent" {
		t.Fatalf("Studio.ImagePolicy = %q", cfg.Studio.ImagePolicy)
	}
}

func TestLoadMergesFile(t *testing.T) {
	useConfigFile(t, `
backend:
  base_url: https://dao.example/
  timeout_ms: 2500
studio:
  image_policy: Draft
admin:
  allow_list: ["0xAdmin1", " 0xAdmin2 "]
wallet:
  address: " 0x1234567890abcdef1234567890abcdef12345678 "
logging:
  format: JSON
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://dao.example"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if got := cfg.Backend.Timeout(); got != 2500*time.Millisecond {
		t.Fatalf("Timeout() = %v", got)
	}
	if cfg.Studio.ImagePolicy != "draft" || cfg.Logging.Format != "json" {
		t.Fatalf("normalization failed: %+v %+v", cfg.Studio, cfg.Logging)
	}
	if len(cfg.Admin.AllowList) != 2 || cfg.Admin.AllowList[1] != "0xAdmin2" {
		t.Fatalf("AllowList = %#v", cfg.Admin.AllowList)
	}
	if cfg.Wallet.Address != "0x1234567890abcdef1234567890abcdef12345678" {
		t.Fatalf("Wallet.Address = %q", cfg.Wallet.Address)
	}
	// untouched sections keep defaults
	if cfg.Studio.RequestsPerMinute != 20 {
		t.Fatalf("RequestsPerMinute = %d", cfg.Studio.RequestsPerMinute)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	useConfigFile(t, "backend:\n  base_url: https://file.example\n")
	t.Setenv("ARTDAO_BACKEND_URL", "https://env.example:8443")
	t.Setenv("ARTDAO_ADMIN_ALLOW_LIST", "0xA,0xB")
	t.Setenv("ARTDAO_TELEMETRY_OPT_IN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://env.example:8443" {
		t.Fatalf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if len(cfg.Admin.AllowList) != 2 {
		t.Fatalf("AllowList = %#v", cfg.Admin.AllowList)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("TelemetryOptIn not overridden")
	}
}

func TestLoadReportsMalformedFile(t *testing.T) {
	useConfigFile(t, "backend: [not, a, map")
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Backend.BaseURL == "" {
		t.Fatalf("defaults should still be returned")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := useConfigFile(t, "")
	cfg := Defaults()
	cfg.Backend.BaseURL = "https://saved.example"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.BaseURL != "https://saved.example" {
		t.Fatalf("Backend.BaseURL = %q", got.Backend.BaseURL)
	}
}

func TestSessionStoreKeychain(t *testing.T) {
	keyring.MockInit()
	s := NewSessionStore(nil)

	if _, ok, err := s.Load(); err != nil || ok {
		t.Fatalf("empty Load() = ok %v err %v", ok, err)
	}
	if err := s.Save("0xabc"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	addr, ok, err := s.Load()
	if err != nil || !ok || addr != "0xabc" {
		t.Fatalf("Load() = %q %v %v", addr, ok, err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear should be a no-op: %v", err)
	}
	if _, ok, _ := s.Load(); ok {
		t.Fatalf("record survived Clear")
	}
}
