// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenpo/internal/authflow"
	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/captcha"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/routes"
)

const (
	pkceCookie     = "tenpo_pkce"
	pkceCookieAge  = 600
	callbackPath   = "/auth/callback"
	nextQueryParam = "next"
)

// AuthConfig is the widget bootstrap configuration.
type AuthConfig struct {
	Captcha        captcha.Widget `json:"captcha"`
	Analytics      bool           `json:"analytics"`
	OAuthProviders []string       `json:"oauth_providers"`
}

// Config returns the widget configuration.
//
// GET /api/auth/config
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	out := AuthConfig{
		Analytics:      h.cfg.Features.AnalyticsEnabled,
		OAuthProviders: h.cfg.OAuthProviders,
	}
	if h.cfg.Captcha != nil {
		out.Captcha = h.cfg.Captcha.Widget()
	}
	if out.OAuthProviders == nil {
		out.OAuthProviders = []string{}
	}
	NewResponseWriter(w, r).Success(out)
}

// OAuthStart redirects to the backend authorize URL for a provider. The PKCE
// verifier is kept in a short-lived cookie scoped to the callback.
//
// GET /api/auth/oauth/{provider}?returnTo=/camps
func (h *Handler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !h.providers[provider] {
		NewResponseWriter(w, r).NotFound("Unknown sign-in provider")
		return
	}

	pkce, err := GeneratePKCE()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("PKCE generation failed")
		NewResponseWriter(w, r).InternalError("Could not start sign-in")
		return
	}

	redirectTo := strings.TrimRight(h.cfg.PublicURL, "/") + callbackPath
	if next := r.URL.Query().Get("returnTo"); next != "" && routes.SafeReturnPath(next) {
		redirectTo += "?" + nextQueryParam + "=" + url.QueryEscape(next)
	}

	http.SetCookie(w, h.pkceCookie(pkce.CodeVerifier, pkceCookieAge))
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.cfg.Backend.OAuthURL(provider, redirectTo, pkce.CodeChallenge), http.StatusFound)
}

// AuthCallback completes an OAuth or email-link sign-in by exchanging the
// code for a session, then sends the browser to its landing route.
//
// GET /auth/callback?code=...&next=/camps
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	w.Header().Set("Cache-Control", "no-store")

	if providerErr := q.Get("error"); providerErr != "" {
		logging.Ctx(ctx).Info().
			Str("error", sanitizeLogValue(providerErr)).
			Str("description", sanitizeLogValue(q.Get("error_description"))).
			Msg("Provider returned an error to the auth callback")
		http.Redirect(w, r, routes.LoginWithError(routes.ErrorAuth), http.StatusFound)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Redirect(w, r, routes.LoginWithError(routes.ErrorNoCode), http.StatusFound)
		return
	}

	var verifier string
	if c, err := r.Cookie(pkceCookie); err == nil {
		verifier = c.Value
	}
	http.SetCookie(w, h.pkceCookie("", -1))

	sess, err := h.cfg.Backend.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		logging.Ctx(ctx).Warn().Str("code", string(backend.CodeOf(err))).Err(err).Msg("Auth code exchange failed")
		http.Redirect(w, r, routes.LoginWithError(routes.ErrorAuth), http.StatusFound)
		return
	}
	if err := h.cfg.Sessions.SetSession(w, sess); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to set session cookies after code exchange")
		http.Redirect(w, r, routes.LoginWithError(routes.ErrorAuth), http.StatusFound)
		return
	}

	out := h.cfg.Resolver.Resolve(ctx, authflow.Options{ReturnTo: q.Get(nextQueryParam)}, sess.AccessToken)
	location := out.Location
	if location == "" {
		location = "/"
	}
	http.Redirect(w, r, location, http.StatusFound)
}

// SignOut revokes the session and clears the cookies.
//
// POST /auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := h.cfg.Sessions.AccessToken(r); token != "" {
		if err := h.cfg.Backend.SignOut(r.Context(), token); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Backend sign-out failed, clearing cookies anyway")
		}
	}
	h.cfg.Sessions.Clear(w)
	http.SetCookie(w, h.flowCookie("", -1))
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, routes.LoginPath, http.StatusSeeOther)
}

func (h *Handler) pkceCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     pkceCookie,
		Value:    value,
		Path:     callbackPath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
