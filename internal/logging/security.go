// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// AuthEvent is a security-relevant auth flow event for audit logging.
type AuthEvent struct {
	// Event is the event type (e.g., "login", "signup", "otp_verify", "password_reset").
	Event string
	// UserID is the backend user identifier, if known.
	UserID string
	// Email is masked before it is written.
	Email string
	// IPAddress is the client's IP address.
	IPAddress string
	// Success indicates if the operation succeeded.
	Success bool
	// Code is the typed backend error code on failure.
	Code string
}

// SecurityLogger writes auth audit events with sensitive values masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on top of the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("auth")}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// LogEvent logs an auth event.
func (l *SecurityLogger) LogEvent(event *AuthEvent) {
	e := l.logger.Info().Str("event", event.Event)
	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Email != "" {
		e = e.Str("email", MaskEmail(event.Email))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Code != "" && !event.Success {
		e = e.Str("code", event.Code)
	}
	e.Msg("auth event")
}

// MaskEmail keeps the first character of the local part and the domain.
//
//	MaskEmail("jordan@example.com") == "j***@example.com"
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
