// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package guard

import (
	"context"

	"github.com/tomtom215/tenpo/internal/config"
	"github.com/tomtom215/tenpo/internal/roles"
	"github.com/tomtom215/tenpo/internal/routes"
)

// Clause is one row of a policy. Decide returns false to pass.
type Clause struct {
	Name   string
	Decide func(ctx context.Context, req *Request) (Decision, bool)
}

// Policy is an ordered list of clauses.
type Policy []Clause

// defaultClause names the implicit allow at the end of every policy.
const defaultClause = "default"

// Evaluate runs the clauses in order and returns the first decision along
// with the name of the clause that made it.
func (p Policy) Evaluate(ctx context.Context, req *Request) (Decision, string) {
	for _, c := range p {
		if d, ok := c.Decide(ctx, req); ok {
			return d, c.Name
		}
	}
	return Allow("no clause matched"), defaultClause
}

// Names lists the clause names in evaluation order.
func (p Policy) Names() []string {
	names := make([]string, len(p))
	for i, c := range p {
		names[i] = c.Name
	}
	return names
}

// DefaultPolicy builds the page access policy over table.
func DefaultPolicy(table *routes.Table, features config.Features) Policy {
	return Policy{
		{
			Name: "showcase-hidden",
			Decide: func(_ context.Context, req *Request) (Decision, bool) {
				if !features.ShowcaseEnabled && table.Is(routes.Showcase, req.Path) {
					return NotFound("showcase disabled"), true
				}
				return Decision{}, false
			},
		},
		{
			// Always touches the session so expiring cookies are renewed on
			// every page view, public ones included.
			Name: "refresh-session",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				req.Session(ctx)
				return Decision{}, false
			},
		},
		{
			Name: "public",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				if !table.Is(routes.Public, req.Path) {
					return Decision{}, false
				}
				if table.Is(routes.AuthOnly, req.Path) && req.Session(ctx) != nil {
					flags := req.Flags(ctx)
					if !flags.HasRoles {
						// Let role-less users reach /login to switch accounts.
						return Allow("signed in without roles"), true
					}
					return Redirect(roles.DefaultRedirect(flags), "already signed in"), true
				}
				return Allow("public route"), true
			},
		},
		{
			Name: "require-session",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				if req.Session(ctx) != nil {
					return Decision{}, false
				}
				if req.SessionExpired(ctx) {
					return Redirect(routes.LoginWithRedirectMessage(req.Path, routes.MessageSessionExpired), "session expired"), true
				}
				return Redirect(routes.LoginWithRedirect(req.Path), "not signed in"), true
			},
		},
		{
			Name: "require-confirmation",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				if table.Is(routes.ConfirmationRequired, req.Path) && !req.Session(ctx).EmailConfirmed() {
					return Redirect(routes.ConfirmEmailPath, "email not confirmed"), true
				}
				return Decision{}, false
			},
		},
		{
			Name: "require-role",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				if !req.Flags(ctx).HasRoles {
					return Redirect(routes.LoginWithError(routes.ErrorNoRole), "no roles"), true
				}
				return Decision{}, false
			},
		},
		{
			Name: "super-admin-only",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				flags := req.Flags(ctx)
				if table.Is(routes.SuperAdmin, req.Path) && !flags.IsSuperAdmin {
					return Redirect(roles.UnauthorizedRedirect(flags), "super admin required"), true
				}
				return Decision{}, false
			},
		},
		{
			Name: "admin-only",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				flags := req.Flags(ctx)
				if table.Is(routes.Admin, req.Path) && !flags.IsAcademyAdmin && !flags.IsSuperAdmin {
					return Redirect(roles.DashboardHome, "academy admin required"), true
				}
				return Decision{}, false
			},
		},
		{
			Name: "parent-only",
			Decide: func(ctx context.Context, req *Request) (Decision, bool) {
				flags := req.Flags(ctx)
				if table.Is(routes.Parent, req.Path) && !flags.IsParent && !flags.IsSuperAdmin {
					return Redirect(roles.OrganizerHome, "parent required"), true
				}
				return Decision{}, false
			},
		},
	}
}
