// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// Invite is an academy invite looked up by token.
type Invite struct {
	Email       string `json:"email"`
	InviterName string `json:"inviter_name"`
	AcademyName string `json:"academy_name"`
	HasAccount  bool   `json:"has_account"`
}

// FetchRoles returns the role names assigned to userID.
func (c *Client) FetchRoles(ctx context.Context, accessToken, userID string) ([]string, error) {
	var rows []struct {
		Role string `json:"role"`
	}
	err := c.do(ctx, &request{
		op:     "fetch_roles",
		method: http.MethodGet,
		path:   "/rest/v1/user_roles",
		query:  url.Values{"select": {"role"}, "user_id": {"eq." + userID}},
		token:  accessToken,
	}, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Role)
	}
	return out, nil
}

// LookupInvite resolves an invite token. An unknown or expired token is
// reported as CodeInviteInvalid.
func (c *Client) LookupInvite(ctx context.Context, token string) (*Invite, error) {
	var raw json.RawMessage
	err := c.do(ctx, &request{
		op:     "lookup_invite",
		method: http.MethodPost,
		path:   "/rest/v1/rpc/get_invite_by_token",
		body:   map[string]string{"p_token": token},
	}, &raw)
	if err != nil {
		return nil, err
	}

	inv, err := decodeInvite(raw)
	if err != nil {
		return nil, &Error{Op: "lookup_invite", Status: http.StatusOK, Code: CodeUnknown, Message: err.Error()}
	}
	if inv == nil || inv.Email == "" {
		return nil, &Error{Op: "lookup_invite", Status: http.StatusNotFound, Code: CodeInviteInvalid, Message: "invite not found"}
	}
	return inv, nil
}

// decodeInvite accepts either a single row or a set-returning function's
// array; an empty array or null means no invite.
func decodeInvite(raw json.RawMessage) (*Invite, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var rows []Invite
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return &rows[0], nil
	}
	var inv Invite
	if err := json.Unmarshal(trimmed, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// AcceptInvite accepts an academy invite as the signed-in user, creating the
// academy with the given name and description.
func (c *Client) AcceptInvite(ctx context.Context, accessToken, token, academyName, academyDescription string) error {
	return c.do(ctx, &request{
		op:     "accept_invite",
		method: http.MethodPost,
		path:   "/rest/v1/rpc/accept_academy_invite",
		token:  accessToken,
		body: map[string]string{
			"p_token":               token,
			"p_academy_name":        academyName,
			"p_academy_description": academyDescription,
		},
	}, nil)
}
