// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package guard

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
	"github.com/tomtom215/tenpo/internal/routes"
	"github.com/tomtom215/tenpo/internal/session"
)

// SessionResolver resolves and forwards the session cookies of a request.
type SessionResolver interface {
	Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (session.Result, error)
	ForwardCookies(r *http.Request, s *session.Session)
}

// RoleFetcher loads the role names of a user.
type RoleFetcher interface {
	FetchRoles(ctx context.Context, accessToken, userID string) ([]string, error)
}

// skipPrefixes are never guarded.
var skipPrefixes = []string{"/api/", "/_next/", "/static/"}

// skipExact are never guarded either.
var skipExact = map[string]bool{
	"/metrics": true,
	"/healthz": true,
	"/readyz":  true,
}

var staticExtensions = map[string]bool{
	".js": true, ".mjs": true, ".css": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true, ".webp": true, ".avif": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".txt": true, ".xml": true, ".webmanifest": true,
}

// ShouldSkip reports whether p bypasses the guard: API routes, build output,
// static assets and operational endpoints.
func ShouldSkip(p string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	if skipExact[p] {
		return true
	}
	return staticExtensions[strings.ToLower(path.Ext(path.Base(p)))]
}

// Guard applies a Policy to page requests.
type Guard struct {
	policy   Policy
	table    *routes.Table
	sessions SessionResolver
	roles    RoleFetcher
	notFound http.Handler
}

// New creates a guard. table is the route table policy was built over and
// labels decision logs. notFound serves the rewritten 404; nil falls back to
// a plain 404.
func New(policy Policy, table *routes.Table, sessions SessionResolver, roleFetcher RoleFetcher, notFound http.Handler) *Guard {
	if notFound == nil {
		notFound = http.HandlerFunc(http.NotFound)
	}
	return &Guard{policy: policy, table: table, sessions: sessions, roles: roleFetcher, notFound: notFound}
}

// Middleware guards every request that ShouldSkip does not exempt.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ShouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		req := g.newRequest(w, r)
		decision, clause := g.policy.Evaluate(ctx, req)

		metrics.RecordGuardDecision(clause, string(decision.Kind))
		if ev := logging.Ctx(ctx).Debug(); ev.Enabled() {
			ev.Str("path", r.URL.Path).
				Strs("categories", g.categories(r.URL.Path)).
				Str("clause", clause).
				Str("decision", string(decision.Kind)).
				Str("location", decision.Location).
				Str("reason", decision.Reason).
				Msg("Guard decision")
		}

		switch decision.Kind {
		case KindRedirect:
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, decision.Location, http.StatusTemporaryRedirect)
		case KindNotFound:
			g.notFound.ServeHTTP(w, r)
		default:
			s := req.Session(ctx)
			if g.sessions != nil {
				g.sessions.ForwardCookies(r, s)
			}
			next.ServeHTTP(w, r)
		}
	})
}

func (g *Guard) categories(p string) []string {
	if g.table == nil {
		return nil
	}
	cats := g.table.Categories(p)
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

func (g *Guard) newRequest(w http.ResponseWriter, r *http.Request) *Request {
	var loadSession SessionLoader
	if g.sessions != nil {
		loadSession = func(ctx context.Context) (session.Result, error) {
			return g.sessions.Resolve(ctx, w, r)
		}
	}
	var loadRoles RoleLoader
	if g.roles != nil {
		loadRoles = func(ctx context.Context, s *session.Session) ([]string, error) {
			return g.roles.FetchRoles(ctx, s.AccessToken, s.UserID())
		}
	}
	return NewRequest(r.URL.Path, loadSession, loadRoles)
}
