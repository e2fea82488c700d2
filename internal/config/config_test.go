// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns the defaults plus the required backend settings.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Backend.URL = "https://project.supabase.co"
	cfg.Backend.AnonKey = "anon-key"
	return cfg
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want development", cfg.Server.Environment)
	}
	if cfg.Features.ShowcaseEnabled || cfg.Features.CaptchaEnabled || cfg.Features.AnalyticsEnabled {
		t.Errorf("feature flags should default to off, got %+v", cfg.Features)
	}
	if cfg.Flow.TTL != 30*time.Minute {
		t.Errorf("Flow.TTL = %v, want 30m", cfg.Flow.TTL)
	}
	if cfg.Flow.CookieName != "tenpo_flow" {
		t.Errorf("Flow.CookieName = %q, want tenpo_flow", cfg.Flow.CookieName)
	}
	if cfg.Flow.Store != "memory" {
		t.Errorf("Flow.Store = %q, want memory", cfg.Flow.Store)
	}
	if cfg.Session.RefreshLeeway != time.Minute {
		t.Errorf("Session.RefreshLeeway = %v, want 1m", cfg.Session.RefreshLeeway)
	}
	if cfg.Captcha.VerifyURL != "https://challenges.cloudflare.com/turnstile/v0/siteverify" {
		t.Errorf("Captcha.VerifyURL = %q", cfg.Captcha.VerifyURL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"SUPABASE_URL", "backend.url"},
		{"SUPABASE_ANON_KEY", "backend.anon_key"},
		{"ENABLE_SHOWCASE", "features.showcase"},
		{"ENABLE_CAPTCHA", "features.captcha"},
		{"HTTP_PORT", "server.port"},
		{"FLOW_STORE", "flow.store"},
		{"REDIS_URL", "cache.redis_url"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanfFromEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("ENABLE_SHOWCASE", "true")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("FLOW_TTL", "10m")
	t.Setenv("CORS_ORIGINS", "https://tenpo.app, https://www.tenpo.app")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Backend.URL != "https://project.supabase.co" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if !cfg.Features.ShowcaseEnabled {
		t.Error("Features.ShowcaseEnabled should be true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Flow.TTL != 10*time.Minute {
		t.Errorf("Flow.TTL = %v, want 10m", cfg.Flow.TTL)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://www.tenpo.app" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
backend:
  url: https://file.supabase.co
  anon_key: from-file
features:
  captcha: true
captcha:
  site_key: site
  secret_key: secret
flow:
  store: badger
  store_path: /tmp/flows
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SUPABASE_ANON_KEY", "from-env")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Backend.URL != "https://file.supabase.co" {
		t.Errorf("Backend.URL = %q, want file value", cfg.Backend.URL)
	}
	if cfg.Backend.AnonKey != "from-env" {
		t.Errorf("Backend.AnonKey = %q, env should override file", cfg.Backend.AnonKey)
	}
	if !cfg.Features.CaptchaEnabled {
		t.Error("Features.CaptchaEnabled should be true")
	}
	if cfg.Flow.Store != "badger" {
		t.Errorf("Flow.Store = %q, want badger", cfg.Flow.Store)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"missing backend url", func(c *Config) { c.Backend.URL = "" }, "SUPABASE_URL is required"},
		{"backend url with path", func(c *Config) { c.Backend.URL = "https://x.co/rest" }, "remove path"},
		{"missing anon key", func(c *Config) { c.Backend.AnonKey = "" }, "SUPABASE_ANON_KEY"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad environment", func(c *Config) { c.Server.Environment = "staging" }, "ENVIRONMENT"},
		{"bad flow store", func(c *Config) { c.Flow.Store = "sqlite" }, "FLOW_STORE"},
		{"badger without path", func(c *Config) { c.Flow.Store = "badger"; c.Flow.StorePath = "" }, "FLOW_STORE_PATH"},
		{"captcha without secret", func(c *Config) { c.Features.CaptchaEnabled = true }, "TURNSTILE_SECRET_KEY"},
		{"captcha without site key", func(c *Config) {
			c.Features.CaptchaEnabled = true
			c.Captcha.SecretKey = "secret"
		}, ""},
		{"short encryption key", func(c *Config) { c.Session.EncryptionKey = "short" }, "SESSION_ENCRYPTION_KEY"},
		{"production insecure cookie", func(c *Config) { c.Server.Environment = "production" }, "SESSION_COOKIE_SECURE"},
		{"production valid", func(c *Config) {
			c.Server.Environment = "production"
			c.Session.Secure = true
			c.Session.EncryptionKey = strings.Repeat("k", 32)
		}, ""},
		{"bad redis scheme", func(c *Config) { c.Cache.RedisURL = "http://cache:6379" }, "REDIS_URL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
