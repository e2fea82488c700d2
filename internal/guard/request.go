// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package guard decides, for every page request, whether it may proceed,
// must be redirected, or should look like it does not exist.
//
// The decision is an ordered table of clauses (Policy). Each clause either
// decides or passes; the first clause that decides wins and a request no
// clause decides on is allowed. Session and roles are loaded lazily and at
// most once per request, so public pages never pay for a role lookup.
package guard

import (
	"context"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/roles"
	"github.com/tomtom215/tenpo/internal/session"
)

// Kind is the outcome type of a decision.
type Kind string

const (
	KindAllow    Kind = "allow"
	KindRedirect Kind = "redirect"
	KindNotFound Kind = "not_found"
)

// Decision is the result of evaluating a policy.
type Decision struct {
	Kind     Kind
	Location string
	Reason   string
}

// Allow lets the request through.
func Allow(reason string) Decision {
	return Decision{Kind: KindAllow, Reason: reason}
}

// Redirect sends the browser to location.
func Redirect(location, reason string) Decision {
	return Decision{Kind: KindRedirect, Location: location, Reason: reason}
}

// NotFound answers as if the page did not exist.
func NotFound(reason string) Decision {
	return Decision{Kind: KindNotFound, Reason: reason}
}

// SessionLoader resolves the session of the current request.
type SessionLoader func(ctx context.Context) (session.Result, error)

// RoleLoader fetches the role names of a signed-in user.
type RoleLoader func(ctx context.Context, s *session.Session) ([]string, error)

// Request is the per-request input to a policy. Session and roles are
// memoized; loader errors are logged and downgraded to "no user" and
// "no roles" respectively.
type Request struct {
	Path string

	loadSession SessionLoader
	loadRoles   RoleLoader

	sessionLoaded bool
	result        session.Result

	rolesLoaded bool
	roleNames   []string
	flags       roles.Flags
}

// NewRequest creates a policy input for path. Either loader may be nil.
func NewRequest(path string, sessions SessionLoader, roleLoader RoleLoader) *Request {
	return &Request{Path: path, loadSession: sessions, loadRoles: roleLoader}
}

func (r *Request) resolve(ctx context.Context) {
	if r.sessionLoaded {
		return
	}
	r.sessionLoaded = true
	if r.loadSession == nil {
		return
	}
	res, err := r.loadSession(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("path", r.Path).Msg("Session resolution failed, treating as signed out")
		return
	}
	r.result = res
}

// Session returns the signed-in session, or nil.
func (r *Request) Session(ctx context.Context) *session.Session {
	r.resolve(ctx)
	return r.result.Session
}

// SessionExpired reports whether the request carried a session that could not
// be renewed.
func (r *Request) SessionExpired(ctx context.Context) bool {
	r.resolve(ctx)
	return r.result.Expired
}

// Roles returns the role names of the signed-in user.
func (r *Request) Roles(ctx context.Context) []string {
	if r.rolesLoaded {
		return r.roleNames
	}
	r.rolesLoaded = true

	s := r.Session(ctx)
	if s == nil || r.loadRoles == nil {
		return nil
	}
	names, err := r.loadRoles(ctx, s)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", s.UserID()).Msg("Role lookup failed, treating as no roles")
		return nil
	}
	r.roleNames = names
	r.flags = roles.FlagsFor(names)
	return names
}

// Flags returns the role flags of the signed-in user.
func (r *Request) Flags(ctx context.Context) roles.Flags {
	r.Roles(ctx)
	return r.flags
}
