// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package routes classifies request paths against the static route tables
// used by the access guard.
//
// Matching is prefix based on a path-segment boundary: "/admin" matches
// "/admin" and "/admin/users" but not "/adminx". Adding a route means
// extending a table in DefaultTable; there is no dynamic registration.
package routes

import "strings"

// Category names one route table.
type Category string

const (
	Public               Category = "public"
	AuthOnly             Category = "auth-only"
	ConfirmationRequired Category = "confirmation-required"
	Admin                Category = "admin"
	SuperAdmin           Category = "super-admin"
	Parent               Category = "parent"
	Showcase             Category = "showcase"
)

// allCategories lists every category in table order.
var allCategories = []Category{Public, AuthOnly, ConfirmationRequired, Admin, SuperAdmin, Parent, Showcase}

// Table holds one route list per category. Categories overlap: /login is
// both public and auth-only, /organizer is both admin and
// confirmation-required.
type Table struct {
	Public               []string
	AuthOnly             []string
	ConfirmationRequired []string
	Admin                []string
	SuperAdmin           []string
	Parent               []string
	Showcase             []string
}

// DefaultTable returns the compiled-in route tables.
func DefaultTable() *Table {
	return &Table{
		Public: []string{
			"/",
			"/login",
			"/signup",
			"/forgot-password",
			"/reset-password",
			"/confirm-email",
			"/auth/callback",
			"/auth/confirm",
			"/invite",
			"/camps",
			"/academies",
			"/about",
			"/pricing",
			"/contact",
			"/terms",
			"/privacy",
		},
		AuthOnly:             []string{"/login", "/signup"},
		ConfirmationRequired: []string{"/dashboard", "/organizer", "/admin", "/checkout", "/account"},
		Admin:                []string{"/organizer"},
		SuperAdmin:           []string{"/admin"},
		Parent:               []string{"/dashboard", "/checkout"},
		Showcase:             []string{"/design-system", "/showcase"},
	}
}

// MatchesRoute reports whether pathname equals a route or lies beneath it.
// The root route "/" only matches itself.
func MatchesRoute(pathname string, routes []string) bool {
	for _, r := range routes {
		if pathname == r {
			return true
		}
		if r != "/" && strings.HasPrefix(pathname, r+"/") {
			return true
		}
	}
	return false
}

func (t *Table) list(c Category) []string {
	switch c {
	case Public:
		return t.Public
	case AuthOnly:
		return t.AuthOnly
	case ConfirmationRequired:
		return t.ConfirmationRequired
	case Admin:
		return t.Admin
	case SuperAdmin:
		return t.SuperAdmin
	case Parent:
		return t.Parent
	case Showcase:
		return t.Showcase
	}
	return nil
}

// Is reports whether path belongs to category c.
func (t *Table) Is(c Category, path string) bool {
	return MatchesRoute(path, t.list(c))
}

// Categories returns every category path belongs to, in table order.
func (t *Table) Categories(path string) []Category {
	var out []Category
	for _, c := range allCategories {
		if t.Is(c, path) {
			out = append(out, c)
		}
	}
	return out
}
