// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package routes

import (
	"net/url"
	"strings"
)

// Query parameter names used on redirects to the login page.
const (
	ParamRedirectTo = "redirectTo"
	ParamError      = "error"
	ParamMessage    = "message"
)

// ErrorKey is a value of the "error" query parameter.
type ErrorKey string

const (
	ErrorNoRole ErrorKey = "no_role"
	ErrorAuth   ErrorKey = "auth"
	ErrorNoUser ErrorKey = "no_user"
	ErrorNoCode ErrorKey = "no_code"
)

// MessageKey is a value of the "message" query parameter.
type MessageKey string

const (
	MessageSignInForInvite MessageKey = "signin_for_invite"
	MessagePasswordReset   MessageKey = "password_reset"
	MessageSessionExpired  MessageKey = "session_expired"
)

// Fixed page paths.
const (
	LoginPath        = "/login"
	ConfirmEmailPath = "/confirm-email"
)

// LoginWithRedirect builds /login?redirectTo=<path>, so the user resumes at
// path after signing in.
//
//	LoginWithRedirect("/dashboard") == "/login?redirectTo=%2Fdashboard"
func LoginWithRedirect(path string) string {
	return LoginPath + "?" + ParamRedirectTo + "=" + url.QueryEscape(path)
}

// LoginWithRedirectMessage is LoginWithRedirect plus a message key.
func LoginWithRedirectMessage(path string, key MessageKey) string {
	return LoginWithRedirect(path) + "&" + ParamMessage + "=" + url.QueryEscape(string(key))
}

// LoginWithError builds /login?error=<key>.
func LoginWithError(key ErrorKey) string {
	return LoginPath + "?" + ParamError + "=" + url.QueryEscape(string(key))
}

// LoginWithMessage builds /login?message=<key>.
func LoginWithMessage(key MessageKey) string {
	return LoginPath + "?" + ParamMessage + "=" + url.QueryEscape(string(key))
}

// SafeReturnPath reports whether p is a same-origin relative path that may be
// used as a post-login destination. Absolute and protocol-relative URLs are
// rejected to prevent open redirects.
func SafeReturnPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	if strings.ContainsAny(p, "\r\n") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
