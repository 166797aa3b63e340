/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the per-user client configuration.
//
// Values come from three layers, later layers winning: built-in defaults, the
// YAML file at Path(), and ARTDAO_* environment variables. Secrets never touch
// the YAML file; they live in the OS keychain behind SecretStore.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "ARTDAO_CONFIG"

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in" env:"ARTDAO_TELEMETRY_OPT_IN"`
}

type BackendConfig struct {
	BaseURL   string `yaml:"base_url" env:"ARTDAO_BACKEND_URL"`
	TimeoutMs int    `yaml:"timeout_ms" env:"ARTDAO_BACKEND_TIMEOUT_MS"`
}

// StudioConfig tunes the creative pipeline.
// ImagePolicy is "intent" (image stage is independent) or "draft" (image
// stage needs a generated draft and uses its text as keywords).
type StudioConfig struct {
	ImagePolicy       string `yaml:"image_policy" env:"ARTDAO_IMAGE_POLICY"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"ARTDAO_STUDIO_RPM"`
}

// WalletConfig names the account the CLI's stand-in wallet discloses.
type WalletConfig struct {
	Address string `yaml:"address" env:"ARTDAO_WALLET_ADDRESS"`
}

// AdminConfig holds the addresses for which the client shows delete controls.
// It grants nothing; the backend decides.
type AdminConfig struct {
	AllowList []string `yaml:"allow_list" env:"ARTDAO_ADMIN_ALLOW_LIST" envSeparator:","`
}

type CacheConfig struct {
	Path string `yaml:"path" env:"ARTDAO_CACHE_PATH"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"ARTDAO_LOG_LEVEL"`
	Format string `yaml:"format" env:"ARTDAO_LOG_FORMAT"`
	Source bool   `yaml:"source" env:"ARTDAO_LOG_SOURCE"`
	File   string `yaml:"file" env:"ARTDAO_LOG_FILE"`
}

// ServerConfig configures the bundled reference backend (artdao serve).
type ServerConfig struct {
	Addr        string   `yaml:"addr" env:"ARTDAO_SERVER_ADDR"`
	DatabaseURL string   `yaml:"-" env:"ARTDAO_DATABASE_URL"`
	JWTSecret   string   `yaml:"-" env:"ARTDAO_JWT_SECRET"`
	Admins      []string `yaml:"admins" env:"ARTDAO_SERVER_ADMINS" envSeparator:","`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Studio        StudioConfig  `yaml:"studio"`
	Wallet        WalletConfig  `yaml:"wallet"`
	Admin         AdminConfig   `yaml:"admin"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
	Server        ServerConfig  `yaml:"server"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Backend:       BackendConfig{BaseURL: "http://localhost:8000", TimeoutMs: 15000},
		Studio:        StudioConfig{ImagePolicy: "intent", RequestsPerMinute: 20},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Server:        ServerConfig{Addr: ":8000"},
	}
}

// Path returns the per-user config file path.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "artdao", "config.yaml"), nil
}

// StateDir returns the directory for caches and crash reports.
func StateDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "artdao"), nil
}

// Load reads the config file if present, merges it over the defaults and
// applies environment overrides. A missing file is not an error; a malformed
// one is reported but the defaults are still returned.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

// Save writes cfg as YAML to Path().
func Save(cfg AppConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if s := strings.TrimSpace(src.Backend.BaseURL); s != "" {
		dst.Backend.BaseURL = s
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if s := strings.TrimSpace(src.Studio.ImagePolicy); s != "" {
		dst.Studio.ImagePolicy = s
	}
	if src.Studio.RequestsPerMinute != 0 {
		dst.Studio.RequestsPerMinute = src.Studio.RequestsPerMinute
	}
	if s := strings.TrimSpace(src.Wallet.Address); s != "" {
		dst.Wallet.Address = s
	}
	if len(src.Admin.AllowList) > 0 {
		dst.Admin.AllowList = append([]string(nil), src.Admin.AllowList...)
	}
	if s := strings.TrimSpace(src.Cache.Path); s != "" {
		dst.Cache.Path = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = s
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = s
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if len(src.Server.Admins) > 0 {
		dst.Server.Admins = append([]string(nil), src.Server.Admins...)
	}
}

func normalize(cfg *AppConfig) {
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	cfg.Studio.ImagePolicy = strings.ToLower(strings.TrimSpace(cfg.Studio.ImagePolicy))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.Wallet.Address = strings.TrimSpace(cfg.Wallet.Address)
	cfg.Admin.AllowList = trimAll(cfg.Admin.AllowList)
	cfg.Server.Admins = trimAll(cfg.Server.Admins)
}

func trimAll(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Timeout returns the HTTP timeout for backend calls.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// CachePath returns the sqlite cache location, defaulting into StateDir.
func (c AppConfig) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.sqlite"), nil
}
