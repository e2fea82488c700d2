// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import (
	"context"

	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/roles"
	"github.com/tomtom215/tenpo/internal/routes"
)

// UserFetcher loads the user behind an access token.
type UserFetcher interface {
	GetUser(ctx context.Context, accessToken string) (*backend.User, error)
}

// RoleFetcher loads a user's role names.
type RoleFetcher interface {
	FetchRoles(ctx context.Context, accessToken, userID string) ([]string, error)
}

// Outcome is where a finished flow sends the browser.
type Outcome struct {
	// Handled means the embedding page navigates on its own.
	Handled  bool
	Location string
}

// Resolver computes the landing route after a successful sign-in.
type Resolver struct {
	users UserFetcher
	roles RoleFetcher
}

// NewResolver creates a resolver.
func NewResolver(users UserFetcher, roleFetcher RoleFetcher) *Resolver {
	return &Resolver{users: users, roles: roleFetcher}
}

// Resolve picks the landing route, in order: embedded pages handle it
// themselves, a safe return path wins, then the user's roles decide.
func (r *Resolver) Resolve(ctx context.Context, opts Options, accessToken string) Outcome {
	if opts.Embedded {
		return Outcome{Handled: true}
	}
	if opts.ReturnTo != "" {
		if routes.SafeReturnPath(opts.ReturnTo) {
			return Outcome{Location: opts.ReturnTo}
		}
		logging.Ctx(ctx).Warn().Str("return_to", opts.ReturnTo).Msg("Ignoring unsafe return path")
	}

	if accessToken == "" {
		return Outcome{Location: routes.LoginWithError(routes.ErrorNoUser)}
	}
	user, err := r.users.GetUser(ctx, accessToken)
	if err != nil || user == nil {
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("No user after sign-in")
		}
		return Outcome{Location: routes.LoginWithError(routes.ErrorNoUser)}
	}

	names, err := r.roles.FetchRoles(ctx, accessToken, user.ID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("Role lookup failed after sign-in")
		names = nil
	}
	return Outcome{Location: roles.DefaultRedirect(roles.FlagsFor(names))}
}
