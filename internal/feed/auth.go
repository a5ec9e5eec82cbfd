package feed

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/login",
		json:   map[string]string{"username": username, "password": password},
		auth:   authNone,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a plain user account.
func (c *Client) Register(ctx context.Context, r Registration) (*MessageResponse, error) {
	body := struct {
		Registration
		Role Role `json:"role"`
	}{r, RoleUser}
	return c.postMessage(ctx, "/register", body, authNone, "")
}

// ApplyOfficer submits an officer application for admin review.
func (c *Client) ApplyOfficer(ctx context.Context, a OfficerApplication) (*MessageResponse, error) {
	return c.postMessage(ctx, "/apply-officer", a, authNone, "")
}

// RegisterAdmin requests an admin account with an invite code.
func (c *Client) RegisterAdmin(ctx context.Context, a AdminRegistration) (*MessageResponse, error) {
	return c.postMessage(ctx, "/register-admin", a, authNone, "")
}

// Logout revokes the current access token server side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/logout", auth: authAccess})
}

// Refresh trades the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) (*RefreshResponse, error) {
	var out RefreshResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/refresh", auth: authRefresh, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/profile", auth: authAccess, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postMessage(ctx context.Context, path string, body any, auth authMode, fallback string) (*MessageResponse, error) {
	var out MessageResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     path,
		json:     body,
		auth:     auth,
		fallback: fallback,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
