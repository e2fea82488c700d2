// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// minEncryptionKeyLength is the minimum length of session.encryption_key.
const minEncryptionKeyLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateFlow(); err != nil {
		return err
	}
	if err := c.validateCaptcha(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production', got: %s", c.Server.Environment)
	}
	if err := validateHTTPURL(c.Server.UpstreamURL, "UPSTREAM_URL"); err != nil {
		return err
	}
	return validateHTTPURL(c.Server.PublicURL, "PUBLIC_URL")
}

func (c *Config) validateBackend() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if err := validateHTTPURL(c.Backend.URL, "SUPABASE_URL"); err != nil {
		return err
	}
	if c.Backend.AnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive, got: %v", c.Backend.Timeout)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("BACKEND_RATE_LIMIT must not be negative, got: %v", c.Backend.RateLimit)
	}
	if c.Backend.RateLimit > 0 && c.Backend.RateBurst < 1 {
		return fmt.Errorf("BACKEND_RATE_BURST must be at least 1 when BACKEND_RATE_LIMIT is set")
	}
	if c.Backend.BreakerMaxFailures == 0 {
		return fmt.Errorf("BACKEND_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.AccessCookie == "" || c.Session.RefreshCookie == "" {
		return fmt.Errorf("session cookie names must not be empty")
	}
	if c.Session.AccessCookie == c.Session.RefreshCookie {
		return fmt.Errorf("SESSION_ACCESS_COOKIE and SESSION_REFRESH_COOKIE must differ")
	}
	if c.Session.EncryptionKey != "" && len(c.Session.EncryptionKey) < minEncryptionKeyLength {
		return fmt.Errorf("SESSION_ENCRYPTION_KEY must be at least %d characters", minEncryptionKeyLength)
	}
	if c.IsProduction() {
		if !c.Session.Secure {
			return fmt.Errorf("SESSION_COOKIE_SECURE must be true in production")
		}
		if c.Session.EncryptionKey == "" {
			return fmt.Errorf("SESSION_ENCRYPTION_KEY is required in production")
		}
	}
	return nil
}

func (c *Config) validateFlow() error {
	if c.Flow.CookieName == "" {
		return fmt.Errorf("FLOW_COOKIE_NAME must not be empty")
	}
	if c.Flow.TTL <= 0 {
		return fmt.Errorf("FLOW_TTL must be positive, got: %v", c.Flow.TTL)
	}
	switch c.Flow.Store {
	case "memory":
	case "badger":
		if c.Flow.StorePath == "" {
			return fmt.Errorf("FLOW_STORE_PATH is required when FLOW_STORE=badger")
		}
	default:
		return fmt.Errorf("FLOW_STORE must be 'memory' or 'badger', got: %s", c.Flow.Store)
	}
	if c.Flow.CleanupInterval <= 0 {
		return fmt.Errorf("FLOW_CLEANUP_INTERVAL must be positive, got: %v", c.Flow.CleanupInterval)
	}
	return nil
}

// validateCaptcha requires the secret when captcha is on. A missing site key
// is not fatal: the widget config reports it to the browser instead.
func (c *Config) validateCaptcha() error {
	if !c.Features.CaptchaEnabled {
		return nil
	}
	if c.Captcha.SecretKey == "" {
		return fmt.Errorf("TURNSTILE_SECRET_KEY is required when ENABLE_CAPTCHA=true")
	}
	if _, err := url.ParseRequestURI(c.Captcha.VerifyURL); err != nil {
		return fmt.Errorf("TURNSTILE_VERIFY_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.RolesTTL < 0 {
		return fmt.Errorf("ROLE_CACHE_TTL must not be negative, got: %v", c.Cache.RolesTTL)
	}
	if c.Cache.RedisURL != "" {
		u, err := url.Parse(c.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("REDIS_URL scheme must be redis or rediss, got: %s", u.Scheme)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL is invalid: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got: %s", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that rawURL is an absolute http(s) base URL.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
