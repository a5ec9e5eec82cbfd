package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ListUsers returns every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/admin/users", auth: authAccess, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// PendingOfficers returns officer applications awaiting review. The server
// wraps the list as {"pending_officers": [...]}; a bare array is accepted too.
func (c *Client) PendingOfficers(ctx context.Context) ([]User, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{method: http.MethodGet, path: "/admin/pending-officers", auth: authAccess, out: &raw})
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var out []User
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode pending officers: %w", err)
		}
		return out, nil
	}
	var wrapped struct {
		PendingOfficers []User `json:"pending_officers"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode pending officers: %w", err)
	}
	return wrapped.PendingOfficers, nil
}

type decisionBody struct {
	UserID ID       `json:"user_id"`
	Action Decision `json:"action"`
}

// ProcessOfficer approves or rejects an officer application.
func (c *Client) ProcessOfficer(ctx context.Context, userID ID, d Decision) (*MessageResponse, error) {
	return c.postMessage(ctx, "/admin/process-officer", decisionBody{userID, d}, authAccess, "")
}

// ProcessAdmin approves or rejects an admin registration by its secret user id.
func (c *Client) ProcessAdmin(ctx context.Context, userID ID, d Decision) (*MessageResponse, error) {
	return c.postMessage(ctx, "/admin/process-admin", decisionBody{userID, d}, authAccess, "")
}

// BanUser applies or lifts a ban.
func (c *Client) BanUser(ctx context.Context, userID ID, d BanDuration) (*MessageResponse, error) {
	return c.postMessage(ctx, "/admin/users/"+segment(userID)+"/ban",
		map[string]BanDuration{"duration": d}, authAccess, "")
}

// DeleteUser permanently removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID ID) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/admin/users/" + segment(userID),
		auth:     authAccess,
		fallback: "Failed to delete",
	})
}
