// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/tenpo/internal/authflow"
	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/captcha"
	"github.com/tomtom215/tenpo/internal/config"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/session"
)

// Sessions reads and writes the session cookies.
type Sessions interface {
	Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (session.Result, error)
	ForwardCookies(r *http.Request, s *session.Session)
	SetSession(w http.ResponseWriter, s *backend.Session) error
	Clear(w http.ResponseWriter)
	AccessToken(r *http.Request) string
}

// Backend is the part of the backend client used directly by handlers.
type Backend interface {
	ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*backend.Session, error)
	OAuthURL(provider, redirectTo, codeChallenge string) string
	SignOut(ctx context.Context, accessToken string) error
	Ready() bool
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Flows    *authflow.Service
	Resolver *authflow.Resolver
	Sessions Sessions
	Backend  Backend
	Captcha  *captcha.Verifier
	Features config.Features

	OAuthProviders []string

	// PublicURL is the external origin used for OAuth redirect targets.
	PublicURL string

	FlowCookie   string
	FlowTTL      time.Duration
	SecureCookie bool
}

// Handler serves the auth API.
type Handler struct {
	cfg       HandlerConfig
	providers map[string]bool
	startTime time.Time
}

// NewHandler creates a handler.
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg.Flows == nil || cfg.Resolver == nil || cfg.Sessions == nil || cfg.Backend == nil {
		return nil, errors.New("api: flows, resolver, sessions and backend are required")
	}
	c := *cfg
	if c.FlowCookie == "" {
		c.FlowCookie = "tenpo_flow"
	}
	if c.FlowTTL <= 0 {
		c.FlowTTL = authflow.DefaultTTL
	}

	providers := make(map[string]bool, len(c.OAuthProviders))
	for _, p := range c.OAuthProviders {
		providers[p] = true
	}

	return &Handler{cfg: c, providers: providers, startTime: time.Now()}, nil
}

// caller resolves who is issuing a flow command. A session outage makes the
// caller anonymous rather than failing the command.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) authflow.Caller {
	c := authflow.Caller{RemoteIP: remoteIP(r)}
	res, err := h.cfg.Sessions.Resolve(r.Context(), w, r)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Session lookup failed, treating caller as anonymous")
		return c
	}
	if res.Session != nil {
		c.AccessToken = res.Session.AccessToken
		c.UserID = res.Session.UserID()
	}
	return c
}
