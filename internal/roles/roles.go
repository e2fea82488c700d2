// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package roles derives role flags and landing routes from a user's role
// assignments.
//
// A user may hold zero, one or several roles. Zero roles is a valid state
// (an invited user who has not finished onboarding) and never implies a
// protected landing page.
package roles

// Role is one of the fixed role names stored in the user_roles table.
type Role string

const (
	Parent       Role = "PARENT"
	Athlete      Role = "ATHLETE"
	Coach        Role = "COACH"
	AcademyAdmin Role = "ACADEMY_ADMIN"
	SuperAdmin   Role = "SUPER_ADMIN"
	Staff        Role = "STAFF"
)

// All lists every known role.
var All = []Role{Parent, Athlete, Coach, AcademyAdmin, SuperAdmin, Staff}

// Landing routes.
const (
	AdminHome     = "/admin"
	OrganizerHome = "/organizer"
	DashboardHome = "/dashboard"
)

// Flags summarizes a role list.
type Flags struct {
	IsSuperAdmin   bool
	IsAcademyAdmin bool
	IsParent       bool
	HasRoles       bool
}

// FlagsFor computes flags by membership test. Unrecognized role strings
// still count toward HasRoles but set no specific flag.
func FlagsFor(roleNames []string) Flags {
	var f Flags
	for _, name := range roleNames {
		f.HasRoles = true
		switch Role(name) {
		case SuperAdmin:
			f.IsSuperAdmin = true
		case AcademyAdmin:
			f.IsAcademyAdmin = true
		case Parent:
			f.IsParent = true
		}
	}
	return f
}

// DefaultRedirect returns the landing route after sign-in.
// Super admin wins over academy admin; everyone else lands on the dashboard.
func DefaultRedirect(f Flags) string {
	switch {
	case f.IsSuperAdmin:
		return AdminHome
	case f.IsAcademyAdmin:
		return OrganizerHome
	default:
		return DashboardHome
	}
}

// UnauthorizedRedirect returns where a signed-in user goes when a role check
// for the requested page fails. It never sends the user back to login.
func UnauthorizedRedirect(f Flags) string {
	if f.IsAcademyAdmin {
		return OrganizerHome
	}
	return DashboardHome
}
