// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// PKCEChallenge contains the code verifier and challenge for a PKCE flow.
type PKCEChallenge struct {
	CodeVerifier  string
	CodeChallenge string // Base64URL(SHA256(code_verifier))
}

// GeneratePKCE generates a verifier from 32 random bytes (43 characters,
// the RFC 7636 minimum) and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	return &PKCEChallenge{
		CodeVerifier:  verifier,
		CodeChallenge: oidc.NewSHACodeChallenge(verifier),
	}, nil
}
