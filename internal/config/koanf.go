// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tenpo/config.yaml",
	"/etc/tenpo/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
			UpstreamURL:     "http://127.0.0.1:3000",
			PublicURL:       "http://localhost:8080",
		},
		Features: Features{
			CaptchaEnabled:   false,
			AnalyticsEnabled: false,
			ShowcaseEnabled:  false, // showcase pages 404 unless opted in
		},
		Backend: BackendConfig{
			Timeout:            10 * time.Second,
			RateLimit:          0,
			RateBurst:          20,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
			OAuthProviders:     []string{"google"},
		},
		Session: SessionConfig{
			AccessCookie:  "tenpo-access-token",
			RefreshCookie: "tenpo-refresh-token",
			Secure:        false,
			MaxAge:        7 * 24 * time.Hour,
			RefreshLeeway: 60 * time.Second,
		},
		Flow: FlowConfig{
			CookieName:      "tenpo_flow",
			TTL:             30 * time.Minute,
			Store:           "memory",
			StorePath:       "/data/flows",
			CleanupInterval: 5 * time.Minute,
		},
		Captcha: CaptchaConfig{
			VerifyURL: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
			Timeout:   5 * time.Second,
		},
		Cache: CacheConfig{
			RolesTTL: 60 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			AuthRateLimitReqs: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SUPABASE_URL -> backend.url, ENABLE_SHOWCASE -> features.showcase
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"backend.oauth_providers",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings; YAML lists are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		trimmed := make([]string, 0)
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"idle_timeout":     "server.idle_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",
	"upstream_url":     "server.upstream_url",
	"public_url":       "server.public_url",

	// Feature flags
	"enable_captcha":   "features.captcha",
	"enable_analytics": "features.analytics",
	"enable_showcase":  "features.showcase",

	// Backend
	"supabase_url":             "backend.url",
	"supabase_anon_key":        "backend.anon_key",
	"supabase_jwt_secret":      "backend.jwt_secret",
	"backend_timeout":          "backend.timeout",
	"backend_rate_limit":       "backend.rate_limit",
	"backend_rate_burst":       "backend.rate_burst",
	"backend_breaker_failures": "backend.breaker_max_failures",
	"backend_breaker_timeout":  "backend.breaker_timeout",
	"oauth_providers":          "backend.oauth_providers",

	// Session cookies
	"session_access_cookie":  "session.access_cookie",
	"session_refresh_cookie": "session.refresh_cookie",
	"session_cookie_secure":  "session.secure",
	"session_cookie_domain":  "session.domain",
	"session_max_age":        "session.max_age",
	"session_refresh_leeway": "session.refresh_leeway",
	"session_encryption_key": "session.encryption_key",

	// Auth flow state
	"flow_cookie_name":      "flow.cookie_name",
	"flow_ttl":              "flow.ttl",
	"flow_store":            "flow.store",
	"flow_store_path":       "flow.store_path",
	"flow_cleanup_interval": "flow.cleanup_interval",

	// Turnstile
	"turnstile_site_key":   "captcha.site_key",
	"turnstile_secret_key": "captcha.secret_key",
	"turnstile_verify_url": "captcha.verify_url",
	"turnstile_timeout":    "captcha.timeout",

	// Role cache
	"role_cache_ttl": "cache.roles_ttl",
	"redis_url":      "cache.redis_url",

	// Security
	"cors_origins":             "security.cors_origins",
	"rate_limit_requests":      "security.rate_limit_reqs",
	"rate_limit_window":        "security.rate_limit_window",
	"auth_rate_limit_requests": "security.auth_rate_limit_reqs",
	"disable_rate_limit":       "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - SUPABASE_URL -> backend.url
//   - ENABLE_CAPTCHA -> features.captcha
//   - HTTP_PORT -> server.port
//
// Unmapped variables return "" and are skipped so unrelated environment
// does not leak into the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
