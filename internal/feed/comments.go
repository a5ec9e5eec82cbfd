package feed

import (
	"context"
	"net/http"
)

// ListComments returns an incident's thread in server order.
func (c *Client) ListComments(ctx context.Context, incidentID ID) ([]Comment, error) {
	var out []Comment
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/accidents/" + segment(incidentID) + "/comments",
		auth:   authAccess,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddComment posts a comment to an incident thread.
func (c *Client) AddComment(ctx context.Context, incidentID ID, content string) (*Comment, error) {
	var out Comment
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/accidents/" + segment(incidentID) + "/comments",
		json:   map[string]string{"content": content},
		auth:   authAccess,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, commentID ID) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/comments/" + segment(commentID),
		auth:     authAccess,
		fallback: "Failed to delete comment",
	})
}

// VoteComment upvotes a comment.
func (c *Client) VoteComment(ctx context.Context, commentID ID) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/comments/" + segment(commentID) + "/vote",
		auth:     authAccess,
		fallback: "Failed to vote",
	})
}

// Leaderboard returns the ranked top contributors. It is public.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	if err := c.do(ctx, call{method: http.MethodGet, path: "/leaderboard", auth: authNone, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCheckins returns the caller's check-ins.
func (c *Client) ListCheckins(ctx context.Context) ([]Checkin, error) {
	var out []Checkin
	if err := c.do(ctx, call{method: http.MethodGet, path: "/checkins", auth: authAccess, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCheckin records a check-in.
func (c *Client) CreateCheckin(ctx context.Context, r CheckinRequest) (*Checkin, error) {
	var out Checkin
	err := c.do(ctx, call{method: http.MethodPost, path: "/checkins", json: r, auth: authAccess, out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
