// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package captcha verifies Cloudflare Turnstile tokens for signup.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
)

var (
	// ErrMissingSiteKey means captcha is enabled but the widget cannot render.
	ErrMissingSiteKey = errors.New("captcha site key is not configured")

	// ErrTokenRequired is returned for an empty token while captcha is enabled.
	ErrTokenRequired = errors.New("captcha token required")

	// ErrVerificationFailed means Turnstile rejected the token.
	ErrVerificationFailed = errors.New("captcha verification failed")
)

// missingSiteKeyMessage is shown in place of the widget.
const missingSiteKeyMessage = "Security check is unavailable. Please contact support."

// Config configures the verifier.
type Config struct {
	Enabled    bool
	SiteKey    string
	SecretKey  string
	VerifyURL  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Widget is the client-side widget configuration.
type Widget struct {
	Enabled bool   `json:"enabled"`
	SiteKey string `json:"site_key,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Verifier checks tokens against the Turnstile siteverify endpoint.
type Verifier struct {
	cfg    Config
	client *http.Client
}

// NewVerifier creates a verifier.
func NewVerifier(cfg *Config) *Verifier {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Verifier{cfg: *cfg, client: client}
}

// Enabled reports whether tokens are checked.
func (v *Verifier) Enabled() bool {
	return v.cfg.Enabled
}

// Widget returns the widget configuration. An enabled widget without a site
// key carries an error so the client can block submission visibly.
func (v *Verifier) Widget() Widget {
	if !v.Enabled() {
		return Widget{}
	}
	if v.cfg.SiteKey == "" {
		return Widget{Enabled: true, Error: missingSiteKeyMessage}
	}
	return Widget{Enabled: true, SiteKey: v.cfg.SiteKey}
}

// CheckConfig returns ErrMissingSiteKey when the widget cannot render.
func (v *Verifier) CheckConfig() error {
	if v.Enabled() && v.cfg.SiteKey == "" {
		return ErrMissingSiteKey
	}
	return nil
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// Verify checks token. Disabled verifiers accept everything.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		metrics.CaptchaVerificationsTotal.WithLabelValues("missing").Inc()
		return ErrTokenRequired
	}

	form := url.Values{}
	form.Set("secret", v.cfg.SecretKey)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		metrics.CaptchaVerificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		metrics.CaptchaVerificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("read siteverify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.CaptchaVerificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("siteverify: unexpected status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		metrics.CaptchaVerificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("decode siteverify response: %w", err)
	}
	if !out.Success {
		metrics.CaptchaVerificationsTotal.WithLabelValues("rejected").Inc()
		logging.Ctx(ctx).Info().Strs("error_codes", out.ErrorCodes).Msg("Captcha token rejected")
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(out.ErrorCodes, ","))
	}

	metrics.CaptchaVerificationsTotal.WithLabelValues("ok").Inc()
	return nil
}
