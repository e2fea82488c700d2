// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/captcha"
	"github.com/tomtom215/tenpo/internal/events"
	"github.com/tomtom215/tenpo/internal/validation"
)

// fakeBackend records calls and returns configured results.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	signInErr   error
	signUpErr   error
	signUpSess  *backend.Session
	resendErr   error
	resendWait  time.Duration
	verifyErr   error
	resetErr    error
	updateErr   error
	inviteErr   error
	acceptErr   error
	invite      *backend.Invite
	user        *backend.User
	roles       []string
	lastOTPType backend.OTPType
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:  make(map[string]int),
		user:   &backend.User{ID: "u1", Email: "pat@example.com"},
		roles:  []string{"PARENT"},
		invite: &backend.Invite{Email: "inv@example.com", InviterName: "Sam", AcademyName: "Riverside FC"},
	}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) session() *backend.Session {
	return &backend.Session{AccessToken: "access", RefreshToken: "refresh", User: f.user}
}

func (f *fakeBackend) SignInWithPassword(context.Context, string, string) (*backend.Session, error) {
	f.record("sign_in")
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.session(), nil
}

func (f *fakeBackend) SignUp(context.Context, string, string, map[string]interface{}) (*backend.SignUpResult, error) {
	f.record("sign_up")
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &backend.SignUpResult{User: f.user, Session: f.signUpSess}, nil
}

func (f *fakeBackend) SignOut(context.Context, string) error {
	f.record("sign_out")
	return nil
}

func (f *fakeBackend) ResendOTP(_ context.Context, t backend.OTPType, _ string) error {
	f.record("resend")
	time.Sleep(f.resendWait)
	f.mu.Lock()
	f.lastOTPType = t
	f.mu.Unlock()
	return f.resendErr
}

func (f *fakeBackend) VerifyOTP(_ context.Context, _, _ string, t backend.OTPType) (*backend.Session, error) {
	f.record("verify")
	f.lastOTPType = t
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.session(), nil
}

func (f *fakeBackend) ResetPasswordForEmail(context.Context, string, string) error {
	f.record("reset")
	return f.resetErr
}

func (f *fakeBackend) UpdatePassword(context.Context, string, string) (*backend.User, error) {
	f.record("update_password")
	return f.user, f.updateErr
}

func (f *fakeBackend) LookupInvite(context.Context, string) (*backend.Invite, error) {
	f.record("lookup_invite")
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return f.invite, nil
}

func (f *fakeBackend) AcceptInvite(context.Context, string, string, string, string) error {
	f.record("accept_invite")
	return f.acceptErr
}

func (f *fakeBackend) GetUser(context.Context, string) (*backend.User, error) {
	f.record("get_user")
	return f.user, nil
}

func (f *fakeBackend) FetchRoles(context.Context, string, string) ([]string, error) {
	f.record("fetch_roles")
	return f.roles, nil
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type fakeCaptcha struct {
	err   error
	calls int
}

func (c *fakeCaptcha) Verify(_ context.Context, token, _ string) error {
	c.calls++
	if token == "" {
		return captcha.ErrTokenRequired
	}
	return c.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.AuthEvent) error {
	p.mu.Lock()
	p.topics = append(p.topics, ev.Topic)
	p.mu.Unlock()
	return nil
}

type recordingInvalidator struct{ users []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

type harness struct {
	svc     *Service
	backend *fakeBackend
	clock   *testClock
	captcha *fakeCaptcha
	pub     *recordingPublisher
	roles   *recordingInvalidator
	store   *MemoryStore
}

func newHarness(t *testing.T, captchaEnabled bool) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		clock:   &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
		captcha: &fakeCaptcha{},
		pub:     &recordingPublisher{},
		roles:   &recordingInvalidator{},
		store:   NewMemoryStore(),
	}
	h.store.now = h.clock.Now
	svc, err := NewService(&ServiceConfig{
		Backend:          h.backend,
		Store:            h.store,
		Resolver:         NewResolver(h.backend, h.backend),
		Captcha:          h.captcha,
		Publisher:        h.pub,
		Roles:            h.roles,
		Clock:            h.clock,
		CaptchaEnabled:   captchaEnabled,
		ResetRedirectURL: "https://tenpo.test/reset-password",
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) start(t *testing.T, opts Options) string {
	t.Helper()
	res, err := h.svc.Start(context.Background(), opts)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return res.FlowID
}

func (h *harness) navigate(t *testing.T, id, event string) *Result {
	t.Helper()
	res, err := h.svc.Navigate(context.Background(), id, NavigateInput{Event: event})
	if err != nil {
		t.Fatalf("Navigate(%s) error = %v", event, err)
	}
	return res
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(&ServiceConfig{}); err == nil {
		t.Error("expected error without backend/store/resolver")
	}
	b := newFakeBackend()
	if _, err := NewService(&ServiceConfig{Backend: b, Store: NewMemoryStore(), Resolver: NewResolver(b, b), CaptchaEnabled: true}); err == nil {
		t.Error("expected error for captcha without verifier")
	}
}

func TestServiceLoginSuccess(t *testing.T) {
	h := newHarness(t, false)
	id := h.start(t, Options{})

	res, err := h.svc.Login(context.Background(), id, Caller{RemoteIP: "203.0.113.1"}, LoginInput{Email: "pat@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Session == nil || res.Session.AccessToken != "access" {
		t.Error("session not returned")
	}
	if !res.State.Done() || res.State.Terminal.Location != "/dashboard" {
		t.Errorf("Terminal = %+v, want redirect to /dashboard", res.State.Terminal)
	}
	if res.State.Submitting {
		t.Error("Submitting should be cleared")
	}
	if len(h.pub.topics) != 1 || h.pub.topics[0] != events.TopicLogin {
		t.Errorf("published %v", h.pub.topics)
	}
}

func TestServiceLoginResolverOptions(t *testing.T) {
	h := newHarness(t, false)

	id := h.start(t, Options{ReturnTo: "/camps/42"})
	res, err := h.svc.Login(context.Background(), id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Terminal.Location != "/camps/42" {
		t.Errorf("Location = %q, want return path", res.State.Terminal.Location)
	}

	id = h.start(t, Options{Embedded: true})
	res, err = h.svc.Login(context.Background(), id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.State.Terminal.Handled || res.State.Terminal.Location != "" {
		t.Errorf("Terminal = %+v, want handled by embedding page", res.State.Terminal)
	}
}

func TestServiceLoginEmailNotConfirmed(t *testing.T) {
	h := newHarness(t, false)
	h.backend.signInErr = &backend.Error{Op: "sign_in", Status: 400, Code: backend.CodeEmailNotConfirmed}
	id := h.start(t, Options{})

	res, err := h.svc.Login(context.Background(), id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.State.Mode != ModeVerifyOTP || res.State.OTP.Purpose != PurposeSignup || res.State.OTP.Email != "pat@example.com" {
		t.Errorf("state = %+v otp = %+v", res.State, res.State.OTP)
	}
	if h.backend.count("resend") != 1 || h.backend.lastOTPType != backend.OTPSignup {
		t.Error("signup code should be resent")
	}
}

func TestServiceLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, false)
	h.backend.signInErr = &backend.Error{Code: backend.CodeInvalidCredentials}
	id := h.start(t, Options{})

	res, err := h.svc.Login(context.Background(), id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeLogin || res.State.Error != backend.UserMessage(backend.CodeInvalidCredentials) {
		t.Errorf("state = %+v", res.State)
	}
}

func TestServiceValidation(t *testing.T) {
	h := newHarness(t, false)
	id := h.start(t, Options{})

	_, err := h.svc.Login(context.Background(), id, Caller{}, LoginInput{Email: "not-an-email", Password: "pw"})
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if h.backend.count("sign_in") != 0 {
		t.Error("backend called despite invalid input")
	}
}

func TestServiceWrongMode(t *testing.T) {
	h := newHarness(t, false)
	id := h.start(t, Options{})

	_, err := h.svc.VerifyOTP(context.Background(), id, Caller{}, VerifyInput{Code: "123456"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
	if h.backend.count("verify") != 0 {
		t.Error("backend called in wrong mode")
	}
}

func TestServiceUnknownFlow(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.Login(context.Background(), "missing", Caller{}, LoginInput{Email: "a@b.co", Password: "x"})
	if !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("error = %v, want ErrFlowNotFound", err)
	}

	res, err := h.svc.Current(context.Background(), "missing", Options{ReturnTo: "/camps"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FlowID == "" || res.FlowID == "missing" || res.State.Mode != ModeLogin || res.State.ReturnTo != "/camps" {
		t.Errorf("Current() = %+v", res)
	}
}

func TestServiceSignupCaptchaGate(t *testing.T) {
	h := newHarness(t, true)
	id := h.start(t, Options{})
	h.navigate(t, id, "sign_up")

	in := SignupInput{Email: "new@example.com", Password: "longenough"}
	res, err := h.svc.Signup(context.Background(), id, Caller{}, in)
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if res.State.Mode != ModeSignup || res.State.Captcha.Error != backend.UserMessage(backend.CodeCaptchaRequired) {
		t.Errorf("state = %+v", res.State)
	}
	if h.backend.count("sign_up") != 0 || h.captcha.calls != 0 {
		t.Error("no captcha token must mean no backend or siteverify call")
	}

	if _, err := h.svc.Captcha(context.Background(), id, CaptchaInput{Event: "verified", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	res, err = h.svc.Signup(context.Background(), id, Caller{}, in)
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeVerifyOTP || res.State.OTP.Purpose != PurposeSignup {
		t.Errorf("state = %+v", res.State)
	}
	if h.captcha.calls != 1 || h.backend.count("sign_up") != 1 {
		t.Errorf("captcha calls = %d, sign ups = %d", h.captcha.calls, h.backend.count("sign_up"))
	}
}

func TestServiceSignupCaptchaRejected(t *testing.T) {
	h := newHarness(t, true)
	h.captcha.err = captcha.ErrVerificationFailed
	id := h.start(t, Options{})
	h.navigate(t, id, "sign_up")

	res, err := h.svc.Signup(context.Background(), id, Caller{}, SignupInput{Email: "new@example.com", Password: "longenough", CaptchaToken: "bad"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Captcha.Error != backend.UserMessage(backend.CodeCaptchaFailed) {
		t.Errorf("Captcha = %+v", res.State.Captcha)
	}
	if h.backend.count("sign_up") != 0 {
		t.Error("signup must not run after a rejected captcha")
	}
}

func TestServiceResetRequestIgnoresBackendErrors(t *testing.T) {
	for _, resetErr := range []error{nil, &backend.Error{Code: backend.CodeUnavailable}} {
		h := newHarness(t, false)
		h.backend.resetErr = resetErr
		id := h.start(t, Options{})
		h.navigate(t, id, "forgot_password")

		res, err := h.svc.RequestReset(context.Background(), id, Caller{}, ResetRequestInput{Email: "who@example.com"})
		if err != nil {
			t.Fatalf("RequestReset() error = %v", err)
		}
		if res.State.Mode != ModeVerifyOTP || res.State.OTP.Purpose != PurposeRecovery || res.State.Error != "" {
			t.Errorf("backend err %v: state = %+v", resetErr, res.State)
		}
	}
}

func TestServiceRecoveryFlow(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	id := h.start(t, Options{})
	h.navigate(t, id, "forgot_password")
	if _, err := h.svc.RequestReset(ctx, id, Caller{}, ResetRequestInput{Email: "pat@example.com"}); err != nil {
		t.Fatal(err)
	}

	res, err := h.svc.VerifyOTP(ctx, id, Caller{}, VerifyInput{Code: "123456"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeResetPassword || res.Session == nil || h.backend.lastOTPType != backend.OTPRecovery {
		t.Fatalf("state = %+v, session = %v", res.State, res.Session)
	}

	caller := Caller{AccessToken: "access", UserID: "u1"}
	res, err = h.svc.ResetPassword(ctx, id, caller, ResetPasswordInput{Password: "newpassword", Confirm: "different"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Error != backend.UserMessage(backend.CodePasswordMismatch) {
		t.Errorf("Error = %q, want mismatch", res.State.Error)
	}

	res, err = h.svc.ResetPassword(ctx, id, caller, ResetPasswordInput{Password: "short", Confirm: "short"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Error != backend.UserMessage(backend.CodeWeakPassword) {
		t.Errorf("Error = %q, want weak password", res.State.Error)
	}
	if h.backend.count("update_password") != 0 {
		t.Error("backend called for locally invalid passwords")
	}

	res, err = h.svc.ResetPassword(ctx, id, caller, ResetPasswordInput{Password: "newpassword", Confirm: "newpassword"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.ClearSession || h.backend.count("sign_out") != 1 {
		t.Error("reset should sign out and clear the session")
	}
	if res.State.Terminal == nil || res.State.Terminal.Location != "/login?message=password_reset" {
		t.Errorf("Terminal = %+v", res.State.Terminal)
	}
}

func TestServiceResendCooldown(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.backend.signInErr = &backend.Error{Code: backend.CodeEmailNotConfirmed}
	id := h.start(t, Options{})
	if _, err := h.svc.Login(ctx, id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	res, err := h.svc.ResendOTP(ctx, id, Caller{})
	if err != nil {
		t.Fatalf("ResendOTP() error = %v", err)
	}
	if res.State.OTP.ResendCooldown != ResendCooldownSeconds {
		t.Errorf("cooldown = %d, want 60", res.State.OTP.ResendCooldown)
	}
	resends := h.backend.count("resend")

	h.clock.now = h.clock.now.Add(20 * time.Second)
	if _, err := h.svc.ResendOTP(ctx, id, Caller{}); !errors.Is(err, ErrResendCooldown) {
		t.Fatalf("ResendOTP() during cooldown = %v, want ErrResendCooldown", err)
	}
	if h.backend.count("resend") != resends {
		t.Error("backend called during cooldown")
	}

	cur, err := h.svc.Current(ctx, id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cur.State.OTP.ResendCooldown != 40 {
		t.Errorf("cooldown after 20s = %d, want 40", cur.State.OTP.ResendCooldown)
	}

	h.clock.now = h.clock.now.Add(45 * time.Second)
	if _, err := h.svc.ResendOTP(ctx, id, Caller{}); err != nil {
		t.Errorf("ResendOTP() after cooldown error = %v", err)
	}
}

func TestServiceInviteNewAccount(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	res, err := h.svc.StartInvite(ctx, "tok", Caller{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeInvite || res.State.Invite.Email != "inv@example.com" || res.State.Invite.Token != "" {
		t.Fatalf("state = %+v invite = %+v", res.State, res.State.Invite)
	}

	res, err = h.svc.AcceptInvite(ctx, res.FlowID, Caller{}, InviteInput{Password: "longenough", AcademyName: "Riverside FC"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeVerifyOTP || res.State.OTP.Email != "inv@example.com" {
		t.Fatalf("state = %+v", res.State)
	}
	if h.backend.count("accept_invite") != 0 {
		t.Error("invite accepted before email confirmation")
	}

	res, err = h.svc.VerifyOTP(ctx, res.FlowID, Caller{}, VerifyInput{Code: "654321"})
	if err != nil {
		t.Fatal(err)
	}
	if h.backend.count("accept_invite") != 1 {
		t.Error("pending invite not accepted after confirmation")
	}
	if !res.State.Done() || len(h.roles.users) != 1 {
		t.Errorf("done = %v, invalidated = %v", res.State.Done(), h.roles.users)
	}
}

func TestServiceInviteSignedIn(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.backend.roles = []string{"ACADEMY_ADMIN"}
	caller := Caller{AccessToken: "access", UserID: "u1"}

	res, err := h.svc.StartInvite(ctx, "tok", caller, Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err = h.svc.AcceptInvite(ctx, res.FlowID, caller, InviteInput{AcademyName: "Riverside FC"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.State.Done() || res.State.Terminal.Location != "/organizer" {
		t.Errorf("Terminal = %+v", res.State.Terminal)
	}
	if h.backend.count("sign_up") != 0 {
		t.Error("signed-in invitee should not sign up")
	}
	if len(h.roles.users) != 1 || h.roles.users[0] != "u1" {
		t.Errorf("invalidated = %v", h.roles.users)
	}
}

func TestServiceInviteAlreadyRegistered(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.backend.signUpErr = &backend.Error{Code: backend.CodeAlreadyRegistered}

	res, err := h.svc.StartInvite(ctx, "tok", Caller{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err = h.svc.AcceptInvite(ctx, res.FlowID, Caller{}, InviteInput{Password: "longenough", AcademyName: "Riverside FC"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeLogin || res.State.Notice != "signin_for_invite" || res.State.Email != "inv@example.com" {
		t.Errorf("state = %+v", res.State)
	}
}

func TestServiceInviteExistingAccountSignedOut(t *testing.T) {
	h := newHarness(t, false)
	h.backend.invite.HasAccount = true

	res, err := h.svc.StartInvite(context.Background(), "a b", Caller{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Mode != ModeLogin || res.State.Notice != "signin_for_invite" {
		t.Errorf("state = %+v", res.State)
	}
	if res.State.ReturnTo != "/invite?token=a+b" {
		t.Errorf("ReturnTo = %q", res.State.ReturnTo)
	}
}

func TestServiceInviteInvalidToken(t *testing.T) {
	h := newHarness(t, false)
	h.backend.inviteErr = &backend.Error{Code: backend.CodeInviteInvalid}

	res, err := h.svc.StartInvite(context.Background(), "expired", Caller{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Invite == nil || res.State.Invite.Error == "" || res.State.Invite.SupportEmail == "" {
		t.Fatalf("Invite = %+v", res.State.Invite)
	}

	_, err = h.svc.AcceptInvite(context.Background(), res.FlowID, Caller{}, InviteInput{Password: "longenough", AcademyName: "X"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("AcceptInvite() on invalid invite = %v", err)
	}
}

func TestServiceFinishedFlowRejectsCommands(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	id := h.start(t, Options{})
	if _, err := h.svc.Login(ctx, id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Login(ctx, id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"}); !errors.Is(err, ErrFlowFinished) {
		t.Errorf("second Login() = %v, want ErrFlowFinished", err)
	}

	res := h.navigate(t, id, "return_to_sign_in")
	if res.State.Done() || res.State.Mode != ModeLogin {
		t.Errorf("state after return = %+v", res.State)
	}
}

func TestServiceFlowExpires(t *testing.T) {
	h := newHarness(t, false)
	id := h.start(t, Options{})

	h.clock.now = h.clock.now.Add(DefaultTTL + time.Second)
	if _, err := h.svc.Login(context.Background(), id, Caller{}, LoginInput{Email: "a@b.co", Password: "x"}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Login() on expired flow = %v, want ErrFlowNotFound", err)
	}
}

func TestServiceStartRecovery(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	res, err := h.svc.StartRecovery(ctx, Caller{}, Options{})
	if err != nil {
		t.Fatalf("StartRecovery() error = %v", err)
	}
	if res.State.Mode != ModeLogin || res.State.Error != backend.UserMessage(backend.CodeSessionMissing) {
		t.Errorf("without session: state = %+v, want login with session error", res.State)
	}

	caller := Caller{AccessToken: "access", UserID: "u1"}
	res, err = h.svc.StartRecovery(ctx, caller, Options{})
	if err != nil {
		t.Fatalf("StartRecovery() error = %v", err)
	}
	if res.State.Mode != ModeResetPassword {
		t.Fatalf("Mode = %s, want reset-password", res.State.Mode)
	}

	res, err = h.svc.ResetPassword(ctx, res.FlowID, caller, ResetPasswordInput{Password: "newpassword", Confirm: "newpassword"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.ClearSession || res.State.Terminal == nil {
		t.Errorf("reset from a recovery link should finish the flow, got %+v", res.State)
	}
}

func TestServiceCurrentReplacesFinishedFlow(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	id := h.start(t, Options{})
	if _, err := h.svc.Login(ctx, id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	opts := Options{ReturnTo: "/camps", Embedded: true}
	res, err := h.svc.Current(ctx, id, opts)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if res.FlowID == id {
		t.Error("finished flow was handed back to a new mount")
	}
	if res.State.Done() || res.State.Mode != ModeLogin {
		t.Errorf("state = %+v, want a fresh login state", res.State)
	}
	if res.State.ReturnTo != "/camps" || !res.State.Embedded {
		t.Errorf("options = %+v, want the mount's options", res.State)
	}
	if _, err := h.store.Get(ctx, id); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("old flow Get() = %v, want ErrFlowNotFound", err)
	}

	res, err = h.svc.Login(ctx, res.FlowID, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() on replacement flow error = %v", err)
	}
	if res.State.Terminal == nil || !res.State.Terminal.Handled {
		t.Errorf("Terminal = %+v, want handled by the embedding page", res.State.Terminal)
	}
}

func TestServiceCurrentOptions(t *testing.T) {
	tests := []struct {
		name     string
		mount    Options
		wantSame bool
	}{
		{"same options keep the flow", Options{ReturnTo: "/camps"}, true},
		{"embedded mount starts over", Options{ReturnTo: "/camps", Embedded: true}, false},
		{"other return path starts over", Options{ReturnTo: "/dashboard"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			ctx := context.Background()
			id := h.start(t, Options{ReturnTo: "/camps"})
			h.navigate(t, id, "sign_up")

			res, err := h.svc.Current(ctx, id, tt.mount)
			if err != nil {
				t.Fatalf("Current() error = %v", err)
			}
			if got := res.FlowID == id; got != tt.wantSame {
				t.Errorf("kept flow = %v, want %v", got, tt.wantSame)
			}
			wantMode := ModeLogin
			if tt.wantSame {
				wantMode = ModeSignup
			}
			if res.State.Mode != wantMode {
				t.Errorf("Mode = %s, want %s", res.State.Mode, wantMode)
			}
		})
	}
}

func TestServiceConcurrentResend(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.backend.signInErr = &backend.Error{Code: backend.CodeEmailNotConfirmed}
	id := h.start(t, Options{})
	if _, err := h.svc.Login(ctx, id, Caller{}, LoginInput{Email: "pat@example.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	before := h.backend.count("resend")
	h.backend.resendWait = 20 * time.Millisecond

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.ResendOTP(ctx, id, Caller{})
		}(i)
	}
	wg.Wait()

	if got := h.backend.count("resend") - before; got != 1 {
		t.Errorf("backend resends = %d, want 1", got)
	}
	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrResendCooldown):
			t.Errorf("ResendOTP() error = %v, want nil or ErrResendCooldown", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful resends = %d, want 1", ok)
	}
	if n := len(h.svc.locks.locks); n != 0 {
		t.Errorf("flow locks left = %d, want 0", n)
	}
}

func TestFlowLocksSerializeSameID(t *testing.T) {
	l := newFlowLocks()
	unlock := l.lock("a")

	other := l.lock("b")
	other()

	acquired := make(chan struct{})
	go func() {
		release := l.lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a locked flow")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released flow")
	}
}
