// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/captcha"
	"github.com/tomtom215/tenpo/internal/events"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
	"github.com/tomtom215/tenpo/internal/routes"
	"github.com/tomtom215/tenpo/internal/validation"
)

// Command errors.
var (
	ErrResendCooldown = errors.New("resend is cooling down")
	ErrFlowFinished   = errors.New("flow already finished")
)

// MinPasswordLength is the shortest password accepted on reset and signup.
const MinPasswordLength = 8

// DefaultTTL is how long an idle flow is kept.
const DefaultTTL = 30 * time.Minute

// Backend is the subset of the backend client the flow needs.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*backend.SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	ResendOTP(ctx context.Context, otpType backend.OTPType, email string) error
	VerifyOTP(ctx context.Context, email, token string, otpType backend.OTPType) (*backend.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) (*backend.User, error)
	LookupInvite(ctx context.Context, token string) (*backend.Invite, error)
	AcceptInvite(ctx context.Context, accessToken, token, academyName, academyDescription string) error
}

// CaptchaVerifier checks captcha tokens.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Publisher receives analytics events.
type Publisher interface {
	Publish(ctx context.Context, ev events.AuthEvent) error
}

// RoleInvalidator drops cached roles after they change.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Caller describes who issued a command.
type Caller struct {
	AccessToken string
	UserID      string
	RemoteIP    string
}

// Result is the outcome of a command.
type Result struct {
	FlowID string
	State  State

	// Session, when set, must be written to the session cookies.
	Session *backend.Session

	// ClearSession asks the caller to expire the session cookies.
	ClearSession bool
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Backend  Backend
	Store    Store
	Resolver *Resolver

	// Optional collaborators.
	Captcha   CaptchaVerifier
	Publisher Publisher
	Roles     RoleInvalidator
	Clock     Clock

	CaptchaEnabled bool
	TTL            time.Duration

	// ResetRedirectURL is the absolute URL the recovery email links to.
	ResetRedirectURL string
}

// Service runs auth flow commands.
type Service struct {
	cfg      ServiceConfig
	security *logging.SecurityLogger
	locks    *flowLocks
}

// NewService creates a service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg.Backend == nil || cfg.Store == nil || cfg.Resolver == nil {
		return nil, errors.New("authflow: backend, store and resolver are required")
	}
	c := *cfg
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.CaptchaEnabled && c.Captcha == nil {
		return nil, errors.New("authflow: captcha enabled without a verifier")
	}
	return &Service{cfg: c, security: logging.NewSecurityLogger(), locks: newFlowLocks()}, nil
}

// Input forms. Field names follow the JSON the widget posts.

// LoginInput is the login form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// SignupInput is the signup form.
type SignupInput struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	FullName     string `json:"full_name" validate:"omitempty,max=100"`
	CaptchaToken string `json:"captcha_token" validate:"omitempty,max=2048"`
}

// ResetRequestInput is the forgot-password form.
type ResetRequestInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// VerifyInput is the OTP form.
type VerifyInput struct {
	Code string `json:"code" validate:"required,otp"`
}

// ResetPasswordInput is the new-password form. Length and match are checked
// by the service so the widget can show them inline.
type ResetPasswordInput struct {
	Password string `json:"password" validate:"required,max=72"`
	Confirm  string `json:"confirm" validate:"required,max=72"`
}

// InviteInput is the invite acceptance form. Password is only needed when
// the invitee has no session yet.
type InviteInput struct {
	Password           string `json:"password" validate:"omitempty,max=72"`
	AcademyName        string `json:"academy_name" validate:"required,max=120"`
	AcademyDescription string `json:"academy_description" validate:"omitempty,max=1000"`
	CaptchaToken       string `json:"captcha_token" validate:"omitempty,max=2048"`
}

// NavigateInput is a pure UI navigation event.
type NavigateInput struct {
	Event string `json:"event" validate:"required,oneof=forgot_password sign_up sign_in return_to_sign_in"`
}

// CaptchaInput is a captcha widget callback.
type CaptchaInput struct {
	Event  string `json:"event" validate:"required,oneof=verified expired error"`
	Token  string `json:"token" validate:"omitempty,max=2048"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

func validate(in interface{}) error {
	if verr := validation.ValidateStruct(in); verr != nil {
		return verr
	}
	return nil
}

// Start creates a new flow in login mode.
func (s *Service) Start(ctx context.Context, opts Options) (*Result, error) {
	f := s.newFlow(NewState(opts))
	if err := s.save(ctx, f); err != nil {
		return nil, err
	}
	return s.result(f), nil
}

// Current returns the flow with id for a widget mount. A new flow starts when
// the stored one is unknown, expired or finished, or was opened with other
// options than the mount asks for.
func (s *Service) Current(ctx context.Context, id string, opts Options) (*Result, error) {
	if id != "" {
		unlock := s.locks.lock(id)
		defer unlock()

		f, err := s.cfg.Store.Get(ctx, id)
		switch {
		case err == nil && !f.State.Done() && f.State.options() == opts:
			s.catchUp(f)
			if err := s.save(ctx, f); err != nil {
				return nil, err
			}
			return s.result(f), nil
		case err == nil:
			if err := s.cfg.Store.Delete(ctx, id); err != nil {
				return nil, fmt.Errorf("replace flow: %w", err)
			}
		case !errors.Is(err, ErrFlowNotFound):
			return nil, err
		}
	}
	return s.Start(ctx, opts)
}

// StartRecovery creates a flow for a recovery email link. The link's code
// was already exchanged for a session; without one the link has expired
// and the user lands in login with an error.
func (s *Service) StartRecovery(ctx context.Context, caller Caller, opts Options) (*Result, error) {
	st := NewState(opts)
	if caller.AccessToken == "" {
		st.Error = backend.UserMessage(backend.CodeSessionMissing)
	} else {
		st = st.enter(ModeResetPassword)
	}

	f := s.newFlow(st)
	if err := s.save(ctx, f); err != nil {
		return nil, err
	}
	return s.result(f), nil
}

// StartInvite creates a flow for an invite link. An invalid token yields an
// invite state carrying the error. Invitees who already have an account but
// are not signed in are sent to login and brought back to the invite after.
func (s *Service) StartInvite(ctx context.Context, token string, caller Caller, opts Options) (*Result, error) {
	st := NewState(opts)
	st.Mode = ModeInvite

	inv, err := s.cfg.Backend.LookupInvite(ctx, token)
	switch {
	case err != nil:
		logging.Ctx(ctx).Info().Str("code", string(backend.CodeOf(err))).Msg("Invite lookup failed")
		code := backend.CodeOf(err)
		if code == backend.CodeUnknown {
			code = backend.CodeInviteInvalid
		}
		st.Invite = &InviteContext{
			Token:        token,
			Error:        backend.UserMessage(code),
			SupportEmail: backend.SupportEmail,
		}
	case inv.HasAccount && caller.AccessToken == "":
		st = st.enter(ModeLogin)
		st.Email = inv.Email
		st.Notice = string(routes.MessageSignInForInvite)
		if st.ReturnTo == "" {
			st.ReturnTo = "/invite?token=" + url.QueryEscape(token)
		}
	default:
		st.Email = inv.Email
		st.Invite = &InviteContext{
			Token:       token,
			Email:       inv.Email,
			InviterName: inv.InviterName,
			AcademyName: inv.AcademyName,
			HasAccount:  inv.HasAccount || caller.AccessToken != "",
		}
	}

	f := s.newFlow(st)
	if err := s.save(ctx, f); err != nil {
		return nil, err
	}
	return s.result(f), nil
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, id string, caller Caller, in LoginInput) (*Result, error) {
	return s.run(ctx, "login", id, in, ModeLogin, func(f *Flow, res *Result) {
		sess, err := s.cfg.Backend.SignInWithPassword(ctx, in.Email, in.Password)
		s.audit("login", in.Email, caller, sessionUserID(sess), err)
		if err != nil {
			if backend.IsCode(err, backend.CodeEmailNotConfirmed) {
				// Best effort; the user can resend from the code screen.
				if rerr := s.cfg.Backend.ResendOTP(ctx, backend.OTPSignup, in.Email); rerr != nil {
					logging.Ctx(ctx).Warn().Err(rerr).Msg("Signup code resend after login failed")
				}
			}
			s.apply(ctx, f, Failed(EventLoginFailed, in.Email, err))
			return
		}

		res.Session = sess
		s.apply(ctx, f, Event{Kind: EventLoginSucceeded, Email: in.Email})
		s.finish(ctx, f, sess.AccessToken)
		s.publish(ctx, events.TopicLogin, sessionUserID(sess), in.Email, nil)
	})
}

// Signup creates an account. With captcha enabled a verified token is
// required before the backend is called.
func (s *Service) Signup(ctx context.Context, id string, caller Caller, in SignupInput) (*Result, error) {
	return s.run(ctx, "signup", id, in, ModeSignup, func(f *Flow, res *Result) {
		if err := s.checkCaptcha(ctx, f, in.CaptchaToken, caller.RemoteIP); err != nil {
			s.apply(ctx, f, Failed(EventSignupFailed, in.Email, err))
			return
		}

		metadata := map[string]interface{}{}
		if in.FullName != "" {
			metadata["full_name"] = in.FullName
		}
		out, err := s.cfg.Backend.SignUp(ctx, in.Email, in.Password, metadata)
		s.audit("signup", in.Email, caller, signupUserID(out), err)
		if err != nil {
			s.apply(ctx, f, Failed(EventSignupFailed, in.Email, err))
			return
		}

		s.apply(ctx, f, Event{Kind: EventSignupSucceeded, Email: in.Email})
		s.publish(ctx, events.TopicSignup, signupUserID(out), in.Email, nil)
	})
}

// RequestReset sends a recovery code. The outcome is identical whether or
// not the address exists.
func (s *Service) RequestReset(ctx context.Context, id string, caller Caller, in ResetRequestInput) (*Result, error) {
	return s.run(ctx, "reset_request", id, in, ModeResetRequest, func(f *Flow, _ *Result) {
		if err := s.cfg.Backend.ResetPasswordForEmail(ctx, in.Email, s.cfg.ResetRedirectURL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("email", logging.MaskEmail(in.Email)).Msg("Password reset request failed")
		}
		s.audit("reset_request", in.Email, caller, "", nil)
		s.apply(ctx, f, Event{Kind: EventResetRequested, Email: in.Email})
	})
}

// VerifyOTP checks the emailed code. Signup codes finish the flow; recovery
// codes move on to choosing a new password.
func (s *Service) VerifyOTP(ctx context.Context, id string, caller Caller, in VerifyInput) (*Result, error) {
	return s.run(ctx, "verify_otp", id, in, ModeVerifyOTP, func(f *Flow, res *Result) {
		s.apply(ctx, f, Event{Kind: EventOTPSubmitted, Token: in.Code})
		otp := *f.State.OTP

		otpType := backend.OTPSignup
		if otp.Purpose == PurposeRecovery {
			otpType = backend.OTPRecovery
		}
		sess, err := s.cfg.Backend.VerifyOTP(ctx, otp.Email, in.Code, otpType)
		s.audit("otp_verify", otp.Email, caller, sessionUserID(sess), err)
		if err != nil {
			s.apply(ctx, f, Failed(EventOTPFailed, otp.Email, err))
			return
		}

		res.Session = sess
		if otp.Invite != nil {
			s.acceptPending(ctx, sess, otp.Invite)
		}
		s.apply(ctx, f, Event{Kind: EventOTPVerified, Email: otp.Email})
		s.publish(ctx, events.TopicOTPVerified, sessionUserID(sess), otp.Email, map[string]string{"purpose": string(otp.Purpose)})
		if f.State.Done() {
			s.finish(ctx, f, sess.AccessToken)
		}
	})
}

func (s *Service) acceptPending(ctx context.Context, sess *backend.Session, p *PendingInvite) {
	if err := s.cfg.Backend.AcceptInvite(ctx, sess.AccessToken, p.Token, p.AcademyName, p.AcademyDescription); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Accepting invite after email confirmation failed")
		return
	}
	s.invalidateRoles(ctx, sessionUserID(sess))
	s.publish(ctx, events.TopicInviteAccepted, sessionUserID(sess), "", nil)
}

// ResendOTP requests a new code. It fails with ErrResendCooldown while the
// previous one is still cooling down.
func (s *Service) ResendOTP(ctx context.Context, id string, caller Caller) (*Result, error) {
	return s.runErr(ctx, "resend_otp", id, struct{}{}, ModeVerifyOTP, func(f *Flow, _ *Result) error {
		otp := f.State.OTP
		if !otp.CanResend() {
			return ErrResendCooldown
		}

		var err error
		if otp.Purpose == PurposeRecovery {
			err = s.cfg.Backend.ResetPasswordForEmail(ctx, otp.Email, s.cfg.ResetRedirectURL)
		} else {
			err = s.cfg.Backend.ResendOTP(ctx, backend.OTPSignup, otp.Email)
		}
		s.audit("otp_resend", otp.Email, caller, "", err)
		if err != nil {
			s.apply(ctx, f, Failed(EventOTPFailed, otp.Email, err))
			return nil
		}

		s.apply(ctx, f, Simple(EventOTPResent))
		f.TickedAt = s.cfg.Clock.Now()
		return nil
	})
}

// ResetPassword sets a new password for the recovery session, then signs the
// user out so they sign in again with it.
func (s *Service) ResetPassword(ctx context.Context, id string, caller Caller, in ResetPasswordInput) (*Result, error) {
	return s.run(ctx, "reset_password", id, in, ModeResetPassword, func(f *Flow, res *Result) {
		switch {
		case in.Password != in.Confirm:
			s.apply(ctx, f, Event{Kind: EventPasswordUpdateFailed, Code: backend.CodePasswordMismatch})
			return
		case len(in.Password) < MinPasswordLength:
			s.apply(ctx, f, Event{Kind: EventPasswordUpdateFailed, Code: backend.CodeWeakPassword})
			return
		case caller.AccessToken == "":
			s.apply(ctx, f, Event{Kind: EventPasswordUpdateFailed, Code: backend.CodeSessionMissing})
			return
		}

		_, err := s.cfg.Backend.UpdatePassword(ctx, caller.AccessToken, in.Password)
		s.audit("password_reset", f.State.Email, caller, caller.UserID, err)
		if err != nil {
			s.apply(ctx, f, Failed(EventPasswordUpdateFailed, f.State.Email, err))
			return
		}

		if err := s.cfg.Backend.SignOut(ctx, caller.AccessToken); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Sign out after password reset failed")
		}
		res.ClearSession = true
		s.apply(ctx, f, Simple(EventPasswordUpdated))
		s.publish(ctx, events.TopicPasswordReset, caller.UserID, f.State.Email, nil)
	})
}

// AcceptInvite accepts the invite of the flow. A signed-in caller accepts
// directly; otherwise an account is created for the invited address first.
func (s *Service) AcceptInvite(ctx context.Context, id string, caller Caller, in InviteInput) (*Result, error) {
	return s.runErr(ctx, "accept_invite", id, in, ModeInvite, func(f *Flow, res *Result) error {
		inv := f.State.Invite
		if inv == nil || inv.Token == "" || inv.Error != "" {
			return fmt.Errorf("%w: no valid invite", ErrInvalidTransition)
		}

		if caller.AccessToken != "" {
			err := s.cfg.Backend.AcceptInvite(ctx, caller.AccessToken, inv.Token, in.AcademyName, in.AcademyDescription)
			s.audit("invite_accept", inv.Email, caller, caller.UserID, err)
			if err != nil {
				s.apply(ctx, f, Failed(EventInviteFailed, inv.Email, err))
				return nil
			}
			s.invalidateRoles(ctx, caller.UserID)
			s.apply(ctx, f, Simple(EventInviteAccepted))
			s.finish(ctx, f, caller.AccessToken)
			s.publish(ctx, events.TopicInviteAccepted, caller.UserID, inv.Email, nil)
			return nil
		}

		if len(in.Password) < MinPasswordLength {
			s.apply(ctx, f, Event{Kind: EventInviteFailed, Code: backend.CodeWeakPassword})
			return nil
		}
		if err := s.checkCaptcha(ctx, f, in.CaptchaToken, caller.RemoteIP); err != nil {
			s.apply(ctx, f, Failed(EventInviteFailed, inv.Email, err))
			return nil
		}

		out, err := s.cfg.Backend.SignUp(ctx, inv.Email, in.Password, map[string]interface{}{"invite_token": inv.Token})
		s.audit("invite_signup", inv.Email, caller, signupUserID(out), err)
		if err != nil {
			s.apply(ctx, f, Failed(EventInviteFailed, inv.Email, err))
			return nil
		}
		pending := &PendingInvite{Token: inv.Token, AcademyName: in.AcademyName, AcademyDescription: in.AcademyDescription}

		if out.Session == nil {
			s.apply(ctx, f, Event{Kind: EventSignupSucceeded, Email: inv.Email, Pending: pending})
			s.publish(ctx, events.TopicSignup, signupUserID(out), inv.Email, map[string]string{"source": "invite"})
			return nil
		}

		// Auto-confirmed backends return a session right away.
		res.Session = out.Session
		if err := s.cfg.Backend.AcceptInvite(ctx, out.Session.AccessToken, inv.Token, in.AcademyName, in.AcademyDescription); err != nil {
			s.apply(ctx, f, Failed(EventInviteFailed, inv.Email, err))
			return nil
		}
		userID := sessionUserID(out.Session)
		s.invalidateRoles(ctx, userID)
		s.apply(ctx, f, Simple(EventInviteAccepted))
		s.finish(ctx, f, out.Session.AccessToken)
		s.publish(ctx, events.TopicInviteAccepted, userID, inv.Email, nil)
		return nil
	})
}

// navigateEvents maps widget navigation names to events.
var navigateEvents = map[string]EventKind{
	"forgot_password":   EventForgotPasswordClicked,
	"sign_up":           EventSignUpClicked,
	"sign_in":           EventSignInClicked,
	"return_to_sign_in": EventReturnToSignIn,
}

// Navigate applies a pure UI navigation event.
func (s *Service) Navigate(ctx context.Context, id string, in NavigateInput) (*Result, error) {
	return s.runErr(ctx, "navigate", id, in, "", func(f *Flow, _ *Result) error {
		return s.applyStrict(ctx, f, Simple(navigateEvents[in.Event]))
	})
}

// Captcha applies a captcha widget callback.
func (s *Service) Captcha(ctx context.Context, id string, in CaptchaInput) (*Result, error) {
	return s.runErr(ctx, "captcha", id, in, "", func(f *Flow, _ *Result) error {
		var e Event
		switch in.Event {
		case "verified":
			e = Event{Kind: EventCaptchaVerified, Token: in.Token}
		case "expired":
			e = Simple(EventCaptchaExpired)
		default:
			e = Event{Kind: EventCaptchaErrored, Reason: in.Reason}
		}
		return s.applyStrict(ctx, f, e)
	})
}

// checkCaptcha enforces the captcha gate. The token posted with the form
// wins over one recorded from the widget callback.
func (s *Service) checkCaptcha(ctx context.Context, f *Flow, token, remoteIP string) error {
	if !s.cfg.CaptchaEnabled {
		return nil
	}
	if token == "" {
		token = f.State.Captcha.Token
	}
	if token == "" {
		return &backend.Error{Op: "captcha", Code: backend.CodeCaptchaRequired}
	}
	if err := s.cfg.Captcha.Verify(ctx, token, remoteIP); err != nil {
		code := backend.CodeCaptchaFailed
		if errors.Is(err, captcha.ErrTokenRequired) {
			code = backend.CodeCaptchaRequired
		}
		return &backend.Error{Op: "captcha", Code: code, Message: err.Error()}
	}
	return nil
}

// run loads the flow, checks the mode, validates in, brackets body with the
// submit events and saves the flow.
func (s *Service) run(ctx context.Context, command, id string, in interface{}, mode Mode, body func(*Flow, *Result)) (*Result, error) {
	return s.runErr(ctx, command, id, in, mode, func(f *Flow, res *Result) error {
		s.apply(ctx, f, Simple(EventSubmitStarted))
		body(f, res)
		s.apply(ctx, f, Simple(EventSubmitFinished))
		return nil
	})
}

func (s *Service) runErr(ctx context.Context, command, id string, in interface{}, mode Mode, body func(*Flow, *Result) error) (*Result, error) {
	res, err := s.execute(ctx, id, in, mode, body)
	switch {
	case err == nil && res.State.Error == "" && res.State.Captcha.Error == "" && (res.State.OTP == nil || res.State.OTP.Error == ""):
		metrics.RecordFlowCommand(command, "ok")
	case err == nil:
		metrics.RecordFlowCommand(command, "failed")
	default:
		metrics.RecordFlowCommand(command, "rejected")
		logging.Ctx(ctx).Debug().Err(err).Str("command", command).Msg("Flow command rejected")
	}
	return res, err
}

func (s *Service) execute(ctx context.Context, id string, in interface{}, mode Mode, body func(*Flow, *Result) error) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	f, err := s.cfg.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.State.Done() && mode != "" {
		return nil, ErrFlowFinished
	}
	if mode != "" && f.State.Mode != mode {
		return nil, fmt.Errorf("%w: command needs %s mode, flow is in %s", ErrInvalidTransition, mode, f.State.Mode)
	}

	s.catchUp(f)

	res := &Result{}
	if err := body(f, res); err != nil {
		// Persist ticks applied by catchUp even when the command is refused.
		if serr := s.save(ctx, f); serr != nil {
			return nil, serr
		}
		return nil, err
	}
	if err := s.save(ctx, f); err != nil {
		return nil, err
	}

	out := s.result(f)
	out.Session = res.Session
	out.ClearSession = res.ClearSession
	return out, nil
}

// apply runs a transition that the command already made legal. A rejection
// here is a programming error and is logged, not returned.
func (s *Service) apply(ctx context.Context, f *Flow, e Event) {
	if err := s.applyStrict(ctx, f, e); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("flow_id", f.ID).Msg("Unexpected flow transition")
	}
}

func (s *Service) applyStrict(ctx context.Context, f *Flow, e Event) error {
	next, err := Transition(f.State, e)
	if err != nil {
		return err
	}
	if next.Mode != f.State.Mode {
		metrics.RecordFlowTransition(string(f.State.Mode), string(next.Mode))
		logging.Ctx(ctx).Debug().
			Str("flow_id", f.ID).
			Str("from", string(f.State.Mode)).
			Str("to", string(next.Mode)).
			Str("event", string(e.Kind)).
			Msg("Flow mode changed")
	}
	f.State = next
	return nil
}

// catchUp applies one Tick per whole second elapsed since the last one.
func (s *Service) catchUp(f *Flow) {
	now := s.cfg.Clock.Now()
	if f.State.OTP == nil || f.State.Done() {
		f.TickedAt = now
		return
	}

	elapsed := int(now.Sub(f.TickedAt) / time.Second)
	if elapsed <= 0 {
		return
	}
	ticks := elapsed
	if ticks > f.State.OTP.ResendCooldown {
		ticks = f.State.OTP.ResendCooldown
	}
	for i := 0; i < ticks; i++ {
		next, err := Transition(f.State, Simple(EventTick))
		if err != nil {
			break
		}
		f.State = next
	}
	f.TickedAt = f.TickedAt.Add(time.Duration(elapsed) * time.Second)
}

// finish fills in the landing route of a terminal redirect.
func (s *Service) finish(ctx context.Context, f *Flow, accessToken string) {
	if f.State.Terminal == nil || f.State.Terminal.Kind != TerminalRedirect {
		return
	}
	out := s.cfg.Resolver.Resolve(ctx, f.State.options(), accessToken)
	f.State.Terminal.Location = out.Location
	f.State.Terminal.Handled = out.Handled
}

func (s *Service) newFlow(st State) *Flow {
	now := s.cfg.Clock.Now()
	return &Flow{ID: uuid.NewString(), State: st, TickedAt: now, CreatedAt: now}
}

func (s *Service) save(ctx context.Context, f *Flow) error {
	f.ExpiresAt = s.cfg.Clock.Now().Add(s.cfg.TTL)
	if err := s.cfg.Store.Put(ctx, f); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

func (s *Service) result(f *Flow) *Result {
	return &Result{FlowID: f.ID, State: f.State.Public()}
}

func (s *Service) publish(ctx context.Context, topic, userID, email string, attrs map[string]string) {
	if s.cfg.Publisher == nil {
		return
	}
	ev := events.AuthEvent{Topic: topic, UserID: userID, Email: email, Attributes: attrs}
	if err := s.cfg.Publisher.Publish(ctx, ev); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Publishing auth event failed")
	}
}

func (s *Service) invalidateRoles(ctx context.Context, userID string) {
	if s.cfg.Roles != nil && userID != "" {
		s.cfg.Roles.Invalidate(ctx, userID)
	}
}

func (s *Service) audit(event, email string, caller Caller, userID string, err error) {
	ev := &logging.AuthEvent{
		Event:     event,
		UserID:    userID,
		Email:     email,
		IPAddress: caller.RemoteIP,
		Success:   err == nil,
	}
	if err != nil {
		ev.Code = string(backend.CodeOf(err))
	}
	s.security.LogEvent(ev)
}

func sessionUserID(sess *backend.Session) string {
	if sess == nil || sess.User == nil {
		return ""
	}
	return sess.User.ID
}

func signupUserID(out *backend.SignUpResult) string {
	if out == nil || out.User == nil {
		return ""
	}
	return out.User.ID
}
