// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// OTPType is the purpose of a one-time code.
type OTPType string

const (
	OTPSignup   OTPType = "signup"
	OTPRecovery OTPType = "recovery"
)

// User is the auth server's user record.
type User struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	ConfirmedAt      *time.Time             `json:"confirmed_at,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
}

// EmailConfirmed reports whether the user confirmed their email address.
func (u *User) EmailConfirmed() bool {
	return u != nil && (u.EmailConfirmedAt != nil || u.ConfirmedAt != nil)
}

// Session is an issued token pair.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user,omitempty"`
}

// SignUpResult is the outcome of SignUp. Session is nil when the account
// still needs email confirmation.
type SignUpResult struct {
	User    *User
	Session *Session
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, &request{
		op:     "sign_in",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SignUp registers a new account. metadata lands in the user's user_metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*SignUpResult, error) {
	body := map[string]interface{}{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	// The server answers with a bare user while confirmation is pending and
	// with a session when auto-confirm is on.
	var raw struct {
		Session
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	err := c.do(ctx, &request{op: "sign_up", method: http.MethodPost, path: "/auth/v1/signup", body: body}, &raw)
	if err != nil {
		return nil, err
	}

	if raw.AccessToken != "" {
		s := raw.Session
		return &SignUpResult{User: s.User, Session: &s}, nil
	}
	return &SignUpResult{User: &User{ID: raw.ID, Email: raw.Email}}, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, &request{op: "sign_out", method: http.MethodPost, path: "/auth/v1/logout", token: accessToken}, nil)
}

// ResendOTP sends a fresh one-time code.
func (c *Client) ResendOTP(ctx context.Context, otpType OTPType, email string) error {
	return c.do(ctx, &request{
		op:     "resend_otp",
		method: http.MethodPost,
		path:   "/auth/v1/resend",
		body:   map[string]string{"type": string(otpType), "email": email},
	}, nil)
}

// VerifyOTP checks a one-time code and returns the resulting session.
func (c *Client) VerifyOTP(ctx context.Context, email, token string, otpType OTPType) (*Session, error) {
	var s Session
	err := c.do(ctx, &request{
		op:     "verify_otp",
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body:   map[string]string{"type": string(otpType), "email": email, "token": token},
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ResetPasswordForEmail emails a recovery code. redirectTo may be empty.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	req := &request{
		op:     "reset_password",
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		body:   map[string]string{"email": email},
	}
	if redirectTo != "" {
		req.query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, req, nil)
}

// UpdatePassword sets a new password for the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) (*User, error) {
	var u User
	err := c.do(ctx, &request{
		op:     "update_password",
		method: http.MethodPut,
		path:   "/auth/v1/user",
		token:  accessToken,
		body:   map[string]string{"password": password},
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	err := c.do(ctx, &request{
		op:     "refresh_session",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUser returns the user behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, &request{op: "get_user", method: http.MethodGet, path: "/auth/v1/user", token: accessToken}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ExchangeCodeForSession completes an OAuth or email-link PKCE flow.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*Session, error) {
	var s Session
	err := c.do(ctx, &request{
		op:     "exchange_code",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"pkce"}},
		body:   map[string]string{"auth_code": code, "code_verifier": codeVerifier},
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// OAuthURL returns the authorize URL that starts a provider sign-in.
// codeChallenge is the S256 PKCE challenge.
func (c *Client) OAuthURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "s256")
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}
