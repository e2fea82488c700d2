// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package config loads the Tenpo edge service configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then an optional
// YAML file, then environment variables. See LoadWithKoanf.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Features Features       `koanf:"features"`
	Backend  BackendConfig  `koanf:"backend"`
	Session  SessionConfig  `koanf:"session"`
	Flow     FlowConfig     `koanf:"flow"`
	Captcha  CaptchaConfig  `koanf:"captcha"`
	Cache    CacheConfig    `koanf:"cache"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development" or "production". Production enforces
	// secure cookies and a session encryption key.
	Environment string `koanf:"environment"`

	// UpstreamURL is the page renderer allowed requests are proxied to.
	UpstreamURL string `koanf:"upstream_url"`

	// PublicURL is the externally visible origin, used for OAuth and
	// email-link redirect targets.
	PublicURL string `koanf:"public_url"`
}

// Features are the deployment feature flags. The value is built once at
// startup and passed to the guard, the flow service and the captcha widget.
type Features struct {
	CaptchaEnabled   bool `koanf:"captcha"`
	AnalyticsEnabled bool `koanf:"analytics"`
	ShowcaseEnabled  bool `koanf:"showcase"`
}

// BackendConfig configures the managed auth/database backend client.
type BackendConfig struct {
	URL       string        `koanf:"url"`
	AnonKey   string        `koanf:"anon_key"`
	JWTSecret string        `koanf:"jwt_secret"`
	Timeout   time.Duration `koanf:"timeout"`

	// RateLimit caps outbound requests per second. Zero disables the limiter.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`

	OAuthProviders []string `koanf:"oauth_providers"`
}

// SessionConfig configures the backend session cookies.
type SessionConfig struct {
	AccessCookie  string        `koanf:"access_cookie"`
	RefreshCookie string        `koanf:"refresh_cookie"`
	Secure        bool          `koanf:"secure"`
	Domain        string        `koanf:"domain"`
	MaxAge        time.Duration `koanf:"max_age"`
	RefreshLeeway time.Duration `koanf:"refresh_leeway"`

	// EncryptionKey encrypts the refresh token cookie. Empty stores it in plaintext.
	EncryptionKey string `koanf:"encryption_key"`
}

// FlowConfig configures auth flow state storage.
type FlowConfig struct {
	CookieName      string        `koanf:"cookie_name"`
	TTL             time.Duration `koanf:"ttl"`
	Store           string        `koanf:"store"` // memory or badger
	StorePath       string        `koanf:"store_path"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// CaptchaConfig configures Cloudflare Turnstile.
type CaptchaConfig struct {
	SiteKey   string        `koanf:"site_key"`
	SecretKey string        `koanf:"secret_key"`
	VerifyURL string        `koanf:"verify_url"`
	Timeout   time.Duration `koanf:"timeout"`
}

// CacheConfig configures the role cache. An empty RedisURL selects the
// in-process cache.
type CacheConfig struct {
	RolesTTL time.Duration `koanf:"roles_ttl"`
	RedisURL string        `koanf:"redis_url"`
}

// SecurityConfig holds CORS and inbound rate limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	AuthRateLimitReqs int           `koanf:"auth_rate_limit_reqs"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
