// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package session reads, refreshes and writes the backend session cookies.
//
// The access token cookie holds the backend JWT; the refresh token cookie
// holds the refresh token, optionally AES-GCM encrypted. On each guarded
// request the Manager checks the access token's expiry locally, refreshes
// through the backend when it is about to expire, and re-sets both cookies.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
)

// Backend is the subset of the backend client the manager needs.
type Backend interface {
	RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error)
	GetUser(ctx context.Context, accessToken string) (*backend.User, error)
}

// Config configures cookie handling.
type Config struct {
	AccessCookie  string
	RefreshCookie string
	Secure        bool
	Domain        string
	MaxAge        time.Duration

	// RefreshLeeway refreshes tokens this long before they expire.
	RefreshLeeway time.Duration

	// JWTSecret verifies HS256 access tokens locally. Empty skips signature
	// checks; the backend still validates the token in GetUser.
	JWTSecret string

	// EncryptionKey encrypts the refresh cookie. Empty disables encryption.
	EncryptionKey string
}

// Session is the resolved session of a request.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *backend.User
}

// UserID returns the signed-in user's ID.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// EmailConfirmed reports whether the user confirmed their email.
func (s *Session) EmailConfirmed() bool {
	return s != nil && s.User.EmailConfirmed()
}

// Result is the outcome of Resolve.
type Result struct {
	// Session is nil when nobody is signed in.
	Session *Session

	// Expired is set when cookies were present but the refresh token was
	// rejected. The cookies have been cleared.
	Expired bool
}

// Manager resolves sessions from cookies.
type Manager struct {
	cfg       Config
	backend   Backend
	encryptor *Encryptor
	now       func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg *Config, b Backend) (*Manager, error) {
	enc, err := NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("session encryptor: %w", err)
	}
	return &Manager{cfg: *cfg, backend: b, encryptor: enc, now: time.Now}, nil
}

// SetClock overrides the time source. Used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Resolve reads the session cookies of r, refreshing the session through the
// backend when the access token is missing or about to expire. Renewed
// cookies are written to w. A backend outage returns an error; callers treat
// that as signed out.
func (m *Manager) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (Result, error) {
	access, refresh := m.readCookies(r)
	if access == "" && refresh == "" {
		return Result{}, nil
	}

	if access != "" {
		if exp, ok := m.tokenExpiry(access); ok && m.now().Add(m.cfg.RefreshLeeway).Before(exp) {
			user, err := m.backend.GetUser(ctx, access)
			if err == nil {
				return Result{Session: &Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: user}}, nil
			}
			if backend.IsCode(err, backend.CodeUnavailable) {
				return Result{}, err
			}
			// Revoked or rejected token; fall through to refresh.
			logging.Ctx(ctx).Debug().Err(err).Msg("Access token rejected, refreshing")
		}
	}

	if refresh == "" {
		m.Clear(w)
		metrics.SessionRefreshTotal.WithLabelValues("expired").Inc()
		return Result{Expired: true}, nil
	}

	s, err := m.backend.RefreshSession(ctx, refresh)
	if err != nil {
		if backend.IsCode(err, backend.CodeUnavailable) || backend.IsCode(err, backend.CodeRateLimited) {
			metrics.SessionRefreshTotal.WithLabelValues("error").Inc()
			return Result{}, err
		}
		logging.Ctx(ctx).Info().Str("code", string(backend.CodeOf(err))).Msg("Session refresh rejected, clearing cookies")
		m.Clear(w)
		metrics.SessionRefreshTotal.WithLabelValues("expired").Inc()
		return Result{Expired: true}, nil
	}

	if s.User == nil {
		user, err := m.backend.GetUser(ctx, s.AccessToken)
		if err != nil {
			return Result{}, fmt.Errorf("load user after refresh: %w", err)
		}
		s.User = user
	}

	if err := m.SetSession(w, s); err != nil {
		return Result{}, err
	}
	metrics.SessionRefreshTotal.WithLabelValues("refreshed").Inc()

	exp, _ := m.tokenExpiry(s.AccessToken)
	return Result{Session: &Session{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: exp, User: s.User}}, nil
}

// tokenExpiry returns the exp claim of an access token. With a JWT secret
// configured the HS256 signature is verified too.
func (m *Manager) tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims

	if m.cfg.JWTSecret != "" {
		_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(m.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
		if err != nil {
			return time.Time{}, false
		}
	} else if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (m *Manager) readCookies(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(m.cfg.AccessCookie); err == nil {
		access = c.Value
	}
	if c, err := r.Cookie(m.cfg.RefreshCookie); err == nil {
		plain, err := m.encryptor.Decrypt(c.Value)
		if err != nil {
			logging.Debug().Err(err).Msg("Discarding undecryptable refresh cookie")
		} else {
			refresh = plain
		}
	}
	return access, refresh
}

// ErrNoSession is returned by SetSession for a session without tokens.
var ErrNoSession = errors.New("session has no tokens")

// SetSession writes both session cookies.
func (m *Manager) SetSession(w http.ResponseWriter, s *backend.Session) error {
	if s == nil || s.AccessToken == "" {
		return ErrNoSession
	}
	sealed, err := m.encryptor.Encrypt(s.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	http.SetCookie(w, m.cookie(m.cfg.AccessCookie, s.AccessToken, int(m.cfg.MaxAge.Seconds())))
	http.SetCookie(w, m.cookie(m.cfg.RefreshCookie, sealed, int(m.cfg.MaxAge.Seconds())))
	return nil
}

// Clear expires both session cookies.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(m.cfg.AccessCookie, "", -1))
	http.SetCookie(w, m.cookie(m.cfg.RefreshCookie, "", -1))
}

// AccessToken returns the raw access token cookie of r, if any.
func (m *Manager) AccessToken(r *http.Request) string {
	access, _ := m.readCookies(r)
	return access
}

// ForwardCookies rewrites the Cookie header of an outgoing upstream request
// so that it carries the current access token instead of a stale or cleared
// one. The refresh cookie is stripped; only this service uses it.
func (m *Manager) ForwardCookies(r *http.Request, s *Session) {
	kept := make([]string, 0, len(r.Cookies())+1)
	for _, c := range r.Cookies() {
		if c.Name == m.cfg.AccessCookie || c.Name == m.cfg.RefreshCookie {
			continue
		}
		kept = append(kept, c.String())
	}
	if s != nil && s.AccessToken != "" {
		kept = append(kept, (&http.Cookie{Name: m.cfg.AccessCookie, Value: s.AccessToken}).String())
	}

	r.Header.Del("Cookie")
	if len(kept) > 0 {
		r.Header.Set("Cookie", strings.Join(kept, "; "))
	}
}

func (m *Manager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
