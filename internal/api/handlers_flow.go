// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenpo/internal/authflow"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/validation"
)

// flowCookiePath scopes the flow cookie to the flow endpoints.
const flowCookiePath = "/api/auth/flow"

// FlowResponse is the data payload of every flow endpoint.
type FlowResponse struct {
	State authflow.State `json:"state"`

	// Redirect is where the browser goes next once the flow has finished.
	Redirect string `json:"redirect,omitempty"`

	// Handled means the embedding page navigates itself.
	Handled bool `json:"handled,omitempty"`
}

// flowQuery holds the mount options a widget sends on the query string.
type flowQuery struct {
	ReturnTo string `json:"returnTo" validate:"omitempty,max=2048,returnpath"`
	Embedded bool   `json:"embedded"`
}

type commandFunc func(ctx context.Context, id string, caller authflow.Caller) (*authflow.Result, error)

// FlowState returns the current flow for a widget mount. A new flow starts
// when the cookie is missing, the stored flow expired or finished, or the
// mount options changed. mode=reset-password always starts a fresh recovery
// flow for the reset page.
//
// GET /api/auth/flow?returnTo=/camps&embedded=1
func (h *Handler) FlowState(w http.ResponseWriter, r *http.Request) {
	opts, err := flowOptions(r)
	if err != nil {
		respondFlowError(w, r, err)
		return
	}

	var res *authflow.Result
	if authflow.Mode(r.URL.Query().Get("mode")) == authflow.ModeResetPassword {
		res, err = h.cfg.Flows.StartRecovery(r.Context(), h.caller(w, r), opts)
	} else {
		res, err = h.cfg.Flows.Current(r.Context(), h.flowID(r), opts)
	}
	if err != nil {
		respondFlowError(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// FlowInvite starts a flow for an invite link.
//
// GET /api/auth/flow/invite/{token}
func (h *Handler) FlowInvite(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" || len(token) > 256 {
		NewResponseWriter(w, r).BadRequest("Invalid invite token")
		return
	}
	opts, err := flowOptions(r)
	if err != nil {
		respondFlowError(w, r, err)
		return
	}
	res, err := h.cfg.Flows.StartInvite(r.Context(), token, h.caller(w, r), opts)
	if err != nil {
		respondFlowError(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// FlowLogin handles POST /api/auth/flow/login.
func (h *Handler) FlowLogin(w http.ResponseWriter, r *http.Request) {
	var in authflow.LoginInput
	h.command(w, r, &in, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.Login(ctx, id, c, in)
	})
}

// FlowSignup handles POST /api/auth/flow/signup.
func (h *Handler) FlowSignup(w http.ResponseWriter, r *http.Request) {
	var in authflow.SignupInput
	h.command(w, r, &in, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.Signup(ctx, id, c, in)
	})
}

// FlowResetRequest handles POST /api/auth/flow/reset-request.
func (h *Handler) FlowResetRequest(w http.ResponseWriter, r *http.Request) {
	var in authflow.ResetRequestInput
	h.command(w, r, &in, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.RequestReset(ctx, id, c, in)
	})
}

// FlowVerify handles POST /api/auth/flow/verify.
func (h *Handler) FlowVerify(w http.ResponseWriter, r *http.Request) {
	var in authflow.VerifyInput
	h.command(w, r, &in, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.VerifyOTP(ctx, id, c, in)
	})
}

// FlowResend handles POST /api/auth/flow/resend. It takes no body.
func (h *Handler) FlowResend(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, nil, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.ResendOTP(ctx, id, c)
	})
}

// FlowResetPassword handles POST /api/auth/flow/reset-password.
func (h *Handler) FlowResetPassword(w http.ResponseWriter, r *http.Request) {
	var in authflow.ResetPasswordInput
	h.command(w, r, &in, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.ResetPassword(ctx, id, c, in)
	})
}

// FlowAcceptInvite handles POST /api/auth/flow/invite.
func (h *Handler) FlowAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var in authflow.InviteInput
	h.command(w, r, &in, func(ctx context.Context, id string, c authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.AcceptInvite(ctx, id, c, in)
	})
}

// FlowNavigate handles POST /api/auth/flow/navigate.
func (h *Handler) FlowNavigate(w http.ResponseWriter, r *http.Request) {
	var in authflow.NavigateInput
	h.command(w, r, &in, func(ctx context.Context, id string, _ authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.Navigate(ctx, id, in)
	})
}

// FlowCaptcha handles POST /api/auth/flow/captcha, the widget callbacks.
func (h *Handler) FlowCaptcha(w http.ResponseWriter, r *http.Request) {
	var in authflow.CaptchaInput
	h.command(w, r, &in, func(ctx context.Context, id string, _ authflow.Caller) (*authflow.Result, error) {
		return h.cfg.Flows.Captcha(ctx, id, in)
	})
}

// command decodes the body into in (when non-nil), resolves the flow and
// the caller, runs fn and writes the result.
func (h *Handler) command(w http.ResponseWriter, r *http.Request, in interface{}, fn commandFunc) {
	if in != nil {
		if err := decodeJSON(w, r, in); err != nil {
			respondFlowError(w, r, err)
			return
		}
	}

	id := h.flowID(r)
	if id == "" {
		respondFlowError(w, r, ErrNoFlow)
		return
	}

	res, err := fn(r.Context(), id, h.caller(w, r))
	if err != nil {
		respondFlowError(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// writeResult applies cookie side effects and writes the flow payload.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res *authflow.Result) {
	http.SetCookie(w, h.flowCookie(res.FlowID, int(h.cfg.FlowTTL.Seconds())))

	if res.ClearSession {
		h.cfg.Sessions.Clear(w)
	} else if res.Session != nil {
		if err := h.cfg.Sessions.SetSession(w, res.Session); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to set session cookies")
		}
	}

	out := FlowResponse{State: res.State}
	if t := res.State.Terminal; t != nil {
		out.Redirect = t.Location
		out.Handled = t.Handled
	}
	NewResponseWriter(w, r).Success(out)
}

// flowOptions reads the mount options, rejecting a returnTo that is not a
// same-origin path.
func flowOptions(r *http.Request) (authflow.Options, error) {
	q := flowQuery{
		ReturnTo: r.URL.Query().Get("returnTo"),
		Embedded: boolParam(r, "embedded"),
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		return authflow.Options{}, verr
	}
	return authflow.Options{ReturnTo: q.ReturnTo, Embedded: q.Embedded}, nil
}

func (h *Handler) flowID(r *http.Request) string {
	c, err := r.Cookie(h.cfg.FlowCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) flowCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.FlowCookie,
		Value:    value,
		Path:     flowCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
