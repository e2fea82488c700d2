// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/tenpo/internal/authflow"
)

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line\\x0abreak"},
		{"tab\there", "tab\\x09here"},
		{"del\x7f", "del\\x7f"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name      string
		payload   string
		wantEmail string
		check     func(error) bool
	}{
		{"valid", `{"email":"a@b.co"}`, "a@b.co", func(err error) bool { return err == nil }},
		{"empty", ``, "", func(err error) bool { return errors.Is(err, errEmptyBody) }},
		{"malformed", `{"email":`, "", isDecodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			w := httptest.NewRecorder()
			var got body
			err := decodeJSON(w, r, &got)
			if !tt.check(err) {
				t.Fatalf("decodeJSON() error = %v", err)
			}
			if got.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", got.Email, tt.wantEmail)
			}
		})
	}
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"203.0.113.7:5000", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.addr
		if got := remoteIP(r); got != tt.want {
			t.Errorf("remoteIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestBoolParam(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"embedded=1", true},
		{"embedded=true", true},
		{"embedded=YES", true},
		{"embedded=0", false},
		{"embedded=", false},
		{"", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := boolParam(r, "embedded"); got != tt.want {
			t.Errorf("boolParam(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestRespondFlowError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no flow", ErrNoFlow, http.StatusNotFound, ErrCodeFlowNotFound},
		{"flow missing", fmt.Errorf("load: %w", authflow.ErrFlowNotFound), http.StatusNotFound, ErrCodeFlowNotFound},
		{"wrong mode", authflow.ErrInvalidTransition, http.StatusConflict, ErrCodeConflict},
		{"finished", authflow.ErrFlowFinished, http.StatusConflict, ErrCodeConflict},
		{"cooldown", authflow.ErrResendCooldown, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"empty body", errEmptyBody, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad json", &decodeError{err: errors.New("unexpected end")}, http.StatusBadRequest, ErrCodeBadRequest},
		{"too large", &decodeError{err: &http.MaxBytesError{Limit: maxBodyBytes}}, http.StatusRequestEntityTooLarge, ErrCodeBadRequest},
		{"unknown", errors.New("store down"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/auth/flow/login", nil)
			respondFlowError(w, r, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeEnvelope(t, w)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}
