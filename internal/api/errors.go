// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/tenpo/internal/authflow"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/validation"
)

// ErrNoFlow is returned for flow commands without a flow cookie.
var ErrNoFlow = errors.New("no auth flow in progress")

// respondFlowError maps service errors to HTTP responses.
func respondFlowError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details)
	case errors.Is(err, errEmptyBody):
		rw.BadRequest(err.Error())
	case errors.Is(err, ErrNoFlow), errors.Is(err, authflow.ErrFlowNotFound):
		rw.Error(http.StatusNotFound, ErrCodeFlowNotFound, "Your sign-in session expired. Please start again.")
	case errors.Is(err, authflow.ErrInvalidTransition), errors.Is(err, authflow.ErrFlowFinished):
		rw.Conflict(err.Error())
	case errors.Is(err, authflow.ErrResendCooldown):
		rw.TooManyRequests("Please wait before requesting another code")
	default:
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return
		}
		if isDecodeError(err) {
			rw.BadRequest("Invalid JSON body")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Auth flow command failed")
		rw.InternalError("Something went wrong. Please try again.")
	}
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}
