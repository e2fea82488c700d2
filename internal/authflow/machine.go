// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import (
	"errors"
	"fmt"

	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/routes"
)

// ErrInvalidTransition is returned for an event the current mode does not accept.
var ErrInvalidTransition = errors.New("invalid transition")

const (
	captchaExpiredMessage = "Security check expired. Please complete it again."
	captchaErrorMessage   = "Security check could not load. Please refresh the page."
)

// Transition applies e to s. It is pure: s is never modified and the
// returned state shares no pointers with it. On error s is returned as is.
func Transition(s State, e Event) (State, error) {
	if s.Terminal != nil {
		switch e.Kind {
		case EventReturnToSignIn:
			return s.enter(ModeLogin), nil
		case EventSubmitFinished:
			next := s.clone()
			next.Submitting = false
			return next, nil
		}
		return s, invalid(s, e)
	}

	// Events every mode accepts.
	switch e.Kind {
	case EventReturnToSignIn:
		return s.enter(ModeLogin), nil
	case EventSubmitStarted:
		next := s.clone()
		next.Submitting = true
		next.Error = ""
		next.Notice = ""
		return next, nil
	case EventSubmitFinished:
		next := s.clone()
		next.Submitting = false
		if next.OTP != nil {
			next.OTP.Verifying = false
		}
		return next, nil
	}

	var reduce func(State, Event) (State, bool)
	switch s.Mode {
	case ModeLogin:
		reduce = reduceLogin
	case ModeSignup:
		reduce = reduceSignup
	case ModeInvite:
		reduce = reduceInvite
	case ModeResetRequest:
		reduce = reduceResetRequest
	case ModeVerifyOTP:
		reduce = reduceVerifyOTP
	case ModeResetPassword:
		reduce = reduceResetPassword
	default:
		return s, fmt.Errorf("%w: unknown mode %q", ErrInvalidTransition, s.Mode)
	}

	next, ok := reduce(s.clone(), e)
	if !ok {
		return s, invalid(s, e)
	}
	return next, nil
}

func invalid(s State, e Event) error {
	return fmt.Errorf("%w: %s in %s mode", ErrInvalidTransition, e.Kind, s.Mode)
}

func terminalRedirect(s State) State {
	s.Submitting = false
	s.Error = ""
	s.Terminal = &Terminal{Kind: TerminalRedirect}
	return s
}

func toVerifyOTP(s State, email string, purpose Purpose, pending *PendingInvite) State {
	if email == "" {
		email = s.Email
	}
	next := s.enter(ModeVerifyOTP)
	next.Email = email
	next.OTP = &OTPState{Email: email, Purpose: purpose}
	if pending != nil {
		cp := *pending
		next.OTP.Invite = &cp
	}
	return next
}

func reduceLogin(s State, e Event) (State, bool) {
	switch e.Kind {
	case EventLoginSucceeded:
		return terminalRedirect(s), true
	case EventLoginFailed:
		if e.Email != "" {
			s.Email = e.Email
		}
		if e.Code == backend.CodeEmailNotConfirmed {
			return toVerifyOTP(s, e.Email, PurposeSignup, nil), true
		}
		s.Error = e.message()
		return s, true
	case EventForgotPasswordClicked:
		return s.enter(ModeResetRequest), true
	case EventSignUpClicked:
		return s.enter(ModeSignup), true
	}
	return s, false
}

func reduceSignup(s State, e Event) (State, bool) {
	switch e.Kind {
	case EventSignupSucceeded:
		return toVerifyOTP(s, e.Email, PurposeSignup, nil), true
	case EventSignupFailed:
		if e.Email != "" {
			s.Email = e.Email
		}
		// Turnstile tokens are single use.
		s.Captcha = CaptchaState{}
		if isCaptchaCode(e.Code) {
			s.Captcha.Error = e.message()
		} else {
			s.Error = e.message()
		}
		return s, true
	case EventSignInClicked:
		return s.enter(ModeLogin), true
	}
	return reduceCaptcha(s, e)
}

func reduceInvite(s State, e Event) (State, bool) {
	switch e.Kind {
	case EventInviteAccepted:
		return terminalRedirect(s), true
	case EventSignupSucceeded:
		// The invitee signed up but must confirm the email first.
		return toVerifyOTP(s, e.Email, PurposeSignup, e.Pending), true
	case EventInviteFailed:
		switch {
		case e.Code == backend.CodeAlreadyRegistered:
			next := s.enter(ModeLogin)
			if s.Invite != nil && s.Invite.Email != "" {
				next.Email = s.Invite.Email
			}
			next.Notice = string(routes.MessageSignInForInvite)
			return next, true
		case e.Code == backend.CodeInviteInvalid:
			if s.Invite == nil {
				s.Invite = &InviteContext{}
			}
			s.Invite.Error = e.message()
			s.Invite.SupportEmail = backend.SupportEmail
		case isCaptchaCode(e.Code):
			s.Captcha = CaptchaState{Error: e.message()}
		default:
			s.Captcha = CaptchaState{}
			s.Error = e.message()
		}
		return s, true
	}
	return reduceCaptcha(s, e)
}

func reduceCaptcha(s State, e Event) (State, bool) {
	switch e.Kind {
	case EventCaptchaVerified:
		if e.Token == "" {
			return s, false
		}
		s.Captcha = CaptchaState{Token: e.Token, Ready: true}
		return s, true
	case EventCaptchaExpired:
		s.Captcha = CaptchaState{Error: captchaExpiredMessage}
		return s, true
	case EventCaptchaErrored:
		msg := e.Reason
		if msg == "" {
			msg = captchaErrorMessage
		}
		s.Captcha = CaptchaState{Error: msg}
		return s, true
	}
	return s, false
}

func reduceResetRequest(s State, e Event) (State, bool) {
	if e.Kind == EventResetRequested {
		return toVerifyOTP(s, e.Email, PurposeRecovery, nil), true
	}
	return s, false
}

func reduceVerifyOTP(s State, e Event) (State, bool) {
	if s.OTP == nil {
		return s, false
	}
	switch e.Kind {
	case EventOTPSubmitted:
		s.OTP.Code = e.Token
		s.OTP.Error = ""
		s.OTP.Verifying = true
		return s, true
	case EventOTPVerified:
		if s.OTP.Purpose == PurposeRecovery {
			return s.enter(ModeResetPassword), true
		}
		return terminalRedirect(s), true
	case EventOTPFailed:
		s.OTP.Error = e.message()
		s.OTP.Verifying = false
		return s, true
	case EventOTPResent:
		s.OTP.ResendCooldown = ResendCooldownSeconds
		s.OTP.Error = ""
		return s, true
	case EventTick:
		if s.OTP.ResendCooldown > 0 {
			s.OTP.ResendCooldown--
		}
		return s, true
	}
	return s, false
}

func reduceResetPassword(s State, e Event) (State, bool) {
	switch e.Kind {
	case EventPasswordUpdated:
		s.Submitting = false
		s.Error = ""
		s.Terminal = &Terminal{
			Kind:     TerminalSignedOut,
			SignOut:  true,
			Location: routes.LoginWithMessage(routes.MessagePasswordReset),
		}
		return s, true
	case EventPasswordUpdateFailed:
		s.Error = e.message()
		return s, true
	}
	return s, false
}
