// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import "github.com/tomtom215/tenpo/internal/backend"

// EventKind identifies an event.
type EventKind string

const (
	// Form results.
	EventLoginSucceeded       EventKind = "login_succeeded"
	EventLoginFailed          EventKind = "login_failed"
	EventSignupSucceeded      EventKind = "signup_succeeded"
	EventSignupFailed         EventKind = "signup_failed"
	EventInviteAccepted       EventKind = "invite_accepted"
	EventInviteFailed         EventKind = "invite_failed"
	EventResetRequested       EventKind = "reset_requested"
	EventOTPSubmitted         EventKind = "otp_submitted"
	EventOTPVerified          EventKind = "otp_verified"
	EventOTPFailed            EventKind = "otp_failed"
	EventOTPResent            EventKind = "otp_resent"
	EventPasswordUpdated      EventKind = "password_updated"
	EventPasswordUpdateFailed EventKind = "password_update_failed"

	// Navigation.
	EventForgotPasswordClicked EventKind = "forgot_password_clicked"
	EventSignUpClicked         EventKind = "sign_up_clicked"
	EventSignInClicked         EventKind = "sign_in_clicked"
	EventReturnToSignIn        EventKind = "return_to_sign_in"

	// Captcha widget callbacks.
	EventCaptchaVerified EventKind = "captcha_verified"
	EventCaptchaExpired  EventKind = "captcha_expired"
	EventCaptchaErrored  EventKind = "captcha_errored"

	EventSubmitStarted  EventKind = "submit_started"
	EventSubmitFinished EventKind = "submit_finished"
	EventTick           EventKind = "tick"
)

// Event is an input to Transition. Only the fields relevant to Kind are read.
type Event struct {
	Kind EventKind

	// Email is the address a result refers to.
	Email string

	// Code classifies a failure; Message overrides its user copy.
	Code    backend.Code
	Message string

	// Token is the captcha token or the typed OTP code.
	Token string

	// Reason describes a captcha render failure.
	Reason string

	// Pending links an invite to the signup it started.
	Pending *PendingInvite
}

func (e Event) message() string {
	if e.Message != "" {
		return e.Message
	}
	return backend.UserMessage(e.Code)
}

func isCaptchaCode(c backend.Code) bool {
	return c == backend.CodeCaptchaRequired || c == backend.CodeCaptchaFailed
}

// Convenience constructors used by the service and tests.

// Failed builds a failure event from err.
func Failed(kind EventKind, email string, err error) Event {
	return Event{Kind: kind, Email: email, Code: backend.CodeOf(err)}
}

// Simple builds an event without payload.
func Simple(kind EventKind) Event {
	return Event{Kind: kind}
}
