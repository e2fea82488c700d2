// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package authflow runs the sign-in widget server-side.
//
// The browser posts user events; the Service applies them to a State through
// the pure Transition reducer, calls the auth backend, persists the result in
// a Store keyed by the flow cookie and, once the flow reaches a terminal
// state, computes where the user lands with the Resolver.
//
// # Modes
//
//	login ──forgot──> reset-request ──submit──> verify-otp(recovery) ──ok──> reset-password ──ok──> /login?message=password_reset
//	  │                                                    ▲
//	  ├─email not confirmed─> verify-otp(signup) ──ok──> landing route
//	  └─sign up─> signup ──ok──┘
//	invite ──accepted──> landing route
//	invite ──already registered──> login (message=signin_for_invite)
package authflow

// Mode is the widget mode.
type Mode string

const (
	ModeLogin         Mode = "login"
	ModeSignup        Mode = "signup"
	ModeVerifyOTP     Mode = "verify-otp"
	ModeResetRequest  Mode = "reset-request"
	ModeResetPassword Mode = "reset-password"
	ModeInvite        Mode = "invite"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeLogin, ModeSignup, ModeVerifyOTP, ModeResetRequest, ModeResetPassword, ModeInvite:
		return true
	}
	return false
}

// Purpose is why an OTP was sent.
type Purpose string

const (
	PurposeSignup   Purpose = "signup"
	PurposeRecovery Purpose = "recovery"
)

// ResendCooldownSeconds is the wait between OTP resends.
const ResendCooldownSeconds = 60

// OTPState is present only in verify-otp mode.
type OTPState struct {
	Email          string  `json:"email"`
	Purpose        Purpose `json:"purpose"`
	Code           string  `json:"code,omitempty"`
	Error          string  `json:"error,omitempty"`
	Verifying      bool    `json:"verifying"`
	ResendCooldown int     `json:"resend_cooldown"`

	// Invite is carried when the code confirms an invite signup, so the
	// invite can be accepted once the email is verified.
	Invite *PendingInvite `json:"pending_invite,omitempty"`
}

// PendingInvite is an invite waiting for its invitee to confirm their email.
type PendingInvite struct {
	Token              string `json:"token"`
	AcademyName        string `json:"academy_name"`
	AcademyDescription string `json:"academy_description,omitempty"`
}

// CanResend reports whether a new code may be requested.
func (o *OTPState) CanResend() bool {
	return o != nil && o.ResendCooldown == 0
}

// CaptchaState holds the widget token between the captcha callback and the
// signup submit.
type CaptchaState struct {
	Token string `json:"token,omitempty"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// InviteContext is present only in invite mode.
type InviteContext struct {
	Token       string `json:"token,omitempty"`
	Email       string `json:"email,omitempty"`
	InviterName string `json:"inviter_name,omitempty"`
	AcademyName string `json:"academy_name,omitempty"`
	HasAccount  bool   `json:"has_account"`

	// Error replaces the form with a full-page error and support contact.
	Error        string `json:"error,omitempty"`
	SupportEmail string `json:"support_email,omitempty"`
}

// TerminalKind is how a finished flow ends.
type TerminalKind string

const (
	TerminalRedirect  TerminalKind = "redirect"
	TerminalSignedOut TerminalKind = "signed_out"
)

// Terminal is set once the flow has finished.
type Terminal struct {
	Kind TerminalKind `json:"kind"`

	// SignOut clears the session cookies before navigating.
	SignOut bool `json:"sign_out"`

	// Location is filled by the service; empty with Handled means the
	// embedding page navigates itself.
	Location string `json:"location,omitempty"`
	Handled  bool   `json:"handled,omitempty"`
}

// State is the complete widget state.
type State struct {
	Mode       Mode           `json:"mode"`
	Email      string         `json:"email,omitempty"`
	Submitting bool           `json:"submitting"`
	Error      string         `json:"error,omitempty"`
	Notice     string         `json:"notice,omitempty"`
	OTP        *OTPState      `json:"otp,omitempty"`
	Captcha    CaptchaState   `json:"captcha"`
	Invite     *InviteContext `json:"invite,omitempty"`
	Terminal   *Terminal      `json:"terminal,omitempty"`

	ReturnTo string `json:"return_to,omitempty"`
	Embedded bool   `json:"embedded,omitempty"`
}

// Options are the resolver options captured when a flow starts.
type Options struct {
	ReturnTo string
	Embedded bool
}

// NewState returns the initial login state.
func NewState(opts Options) State {
	return State{Mode: ModeLogin, ReturnTo: opts.ReturnTo, Embedded: opts.Embedded}
}

// Done reports whether the flow has finished.
func (s *State) Done() bool {
	return s.Terminal != nil
}

// options returns the resolver options of s.
func (s *State) options() Options {
	return Options{ReturnTo: s.ReturnTo, Embedded: s.Embedded}
}

// enter returns a fresh state in mode m that keeps only the fields that
// survive every mode change.
func (s State) enter(m Mode) State {
	return State{
		Mode:     m,
		Email:    s.Email,
		Captcha:  CaptchaState{},
		ReturnTo: s.ReturnTo,
		Embedded: s.Embedded,
	}
}

// Public returns a copy of s safe to send to the browser: tokens and the
// typed code stay server-side.
func (s State) Public() State {
	p := s.clone()
	p.Captcha.Token = ""
	if p.OTP != nil {
		p.OTP.Code = ""
		p.OTP.Invite = nil
	}
	if p.Invite != nil {
		p.Invite.Token = ""
	}
	return p
}

// clone deep-copies the optional sub-states so reducers never share them.
func (s State) clone() State {
	if s.OTP != nil {
		otp := *s.OTP
		if otp.Invite != nil {
			pending := *otp.Invite
			otp.Invite = &pending
		}
		s.OTP = &otp
	}
	if s.Invite != nil {
		inv := *s.Invite
		s.Invite = &inv
	}
	if s.Terminal != nil {
		term := *s.Terminal
		s.Terminal = &term
	}
	return s
}
