// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a typed backend error code. Handlers and the auth flow branch on
// Code, never on backend message text.
type Code string

const (
	CodeUnknown            Code = "unknown"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeEmailNotConfirmed  Code = "email_not_confirmed"
	CodeAlreadyRegistered  Code = "already_registered"
	CodeRateLimited        Code = "rate_limited"
	CodeWeakPassword       Code = "weak_password"
	CodeSamePassword       Code = "same_password"
	CodeInvalidEmail       Code = "invalid_email"
	CodeOTPInvalid         Code = "otp_invalid"
	CodeSessionMissing     Code = "session_missing"
	CodeInviteInvalid      Code = "invite_invalid"
	CodeCaptchaRequired    Code = "captcha_required"
	CodeCaptchaFailed      Code = "captcha_failed"
	CodePasswordMismatch   Code = "password_mismatch"
	CodeUnavailable        Code = "unavailable"
)

// SupportEmail is shown alongside errors the user cannot fix alone.
const SupportEmail = "support@tenpo.app"

// Error is a failed backend call.
type Error struct {
	Op      string // backend operation, e.g. "sign_in"
	Status  int    // HTTP status, 0 for transport failures
	Code    Code
	Message string // backend message, for logs only
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s: %s (status %d): %s", e.Op, e.Code, e.Status, e.Message)
}

// CodeOf extracts the Code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeUnknown
}

// IsCode reports whether err is a backend error with the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// knownErrorCodes maps the machine-readable error_code field newer auth
// servers send.
var knownErrorCodes = map[string]Code{
	"invalid_credentials":        CodeInvalidCredentials,
	"email_not_confirmed":        CodeEmailNotConfirmed,
	"user_already_exists":        CodeAlreadyRegistered,
	"email_exists":               CodeAlreadyRegistered,
	"over_request_rate_limit":    CodeRateLimited,
	"over_email_send_rate_limit": CodeRateLimited,
	"over_sms_send_rate_limit":   CodeRateLimited,
	"weak_password":              CodeWeakPassword,
	"same_password":              CodeSamePassword,
	"email_address_invalid":      CodeInvalidEmail,
	"validation_failed":          CodeInvalidEmail,
	"otp_expired":                CodeOTPInvalid,
	"refresh_token_not_found":    CodeSessionMissing,
	"refresh_token_already_used": CodeSessionMissing,
	"session_not_found":          CodeSessionMissing,
	"session_expired":            CodeSessionMissing,
	"captcha_failed":             CodeCaptchaFailed,
}

// messageRule maps a lowercase substring of a free-text backend message.
type messageRule struct {
	substr string
	code   Code
}

// messageRules is the only place that couples to backend wording. Order
// matters: the first matching substring wins.
var messageRules = []messageRule{
	{"invalid login credentials", CodeInvalidCredentials},
	{"email not confirmed", CodeEmailNotConfirmed},
	{"already registered", CodeAlreadyRegistered},
	{"already been registered", CodeAlreadyRegistered},
	{"already exists", CodeAlreadyRegistered},
	{"has an account", CodeAlreadyRegistered},
	{"rate limit", CodeRateLimited},
	{"too many requests", CodeRateLimited},
	{"should be different from the old password", CodeSamePassword},
	{"password should be", CodeWeakPassword},
	{"weak password", CodeWeakPassword},
	{"token has expired or is invalid", CodeOTPInvalid},
	{"otp has expired", CodeOTPInvalid},
	{"invalid otp", CodeOTPInvalid},
	{"unable to validate email", CodeInvalidEmail},
	{"invalid email", CodeInvalidEmail},
	{"invalid refresh token", CodeSessionMissing},
	{"refresh token not found", CodeSessionMissing},
	{"auth session missing", CodeSessionMissing},
	{"captcha", CodeCaptchaFailed},
	{"invite not found", CodeInviteInvalid},
	{"invite has expired", CodeInviteInvalid},
	{"invite expired", CodeInviteInvalid},
	{"invalid invite", CodeInviteInvalid},
}

// classify turns a backend failure into a Code: the machine-readable
// error_code first, then the message substring table, then the status.
func classify(status int, errorCode, message string) Code {
	if code, ok := knownErrorCodes[errorCode]; ok {
		return code
	}

	msg := strings.ToLower(message)
	for _, rule := range messageRules {
		if strings.Contains(msg, rule.substr) {
			return rule.code
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == 0 || status >= http.StatusInternalServerError:
		return CodeUnavailable
	default:
		return CodeUnknown
	}
}

// userMessages holds the copy shown in the auth widget per code.
var userMessages = map[Code]string{
	CodeInvalidCredentials: "Invalid email or password",
	CodeEmailNotConfirmed:  "Please confirm your email. We sent you a new code.",
	CodeAlreadyRegistered:  "An account with this email already exists. Please sign in.",
	CodeRateLimited:        "Too many attempts. Please wait a few minutes and try again.",
	CodeWeakPassword:       "Password must be at least 8 characters.",
	CodeSamePassword:       "Your new password must be different from your current password.",
	CodeInvalidEmail:       "Please enter a valid email address.",
	CodeOTPInvalid:         "That code is invalid or has expired. Request a new code.",
	CodeSessionMissing:     "Your session has expired. Please sign in again.",
	CodeInviteInvalid:      "This invite link is invalid or has expired. Contact " + SupportEmail + " for help.",
	CodeCaptchaRequired:    "Please complete the security check.",
	CodeCaptchaFailed:      "Security check failed. Please try again.",
	CodePasswordMismatch:   "Passwords do not match.",
	CodeUnavailable:        "Service temporarily unavailable. Please try again shortly.",
}

// genericMessage is the fallback for unmatched errors.
const genericMessage = "Something went wrong. Please try again."

// UserMessage maps a code to the copy shown to the user.
func UserMessage(code Code) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return genericMessage
}
