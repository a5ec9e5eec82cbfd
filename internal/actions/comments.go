package actions

import (
	"context"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
)

// AddComment posts a trimmed comment of 1 to 500 characters.
func (c *Coordinator) AddComment(ctx context.Context, incidentID feed.ID, content string) (*feed.Comment, error) {
	const name = "add_comment"
	if !c.session.Capabilities().CanComment {
		return nil, c.reject(name, ErrNotPermitted)
	}
	content, err := forms.ValidateComment(content)
	if err != nil {
		c.metrics.record(name, "rejected")
		return nil, err
	}

	var out *feed.Comment
	err = c.run(ctx, op{
		name:   name,
		target: "compose:" + string(incidentID),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.CommentsKey(incidentID)},
		call: func(ctx context.Context) (string, error) {
			cm, err := c.api.AddComment(ctx, incidentID, content)
			out = cm
			return "", err
		},
	})
	return out, err
}

// Vote upvotes a comment once per session. The local record is a courtesy;
// the server decides whether the vote counts.
func (c *Coordinator) Vote(ctx context.Context, incidentID, commentID feed.ID) error {
	const name = "vote"
	if !c.session.Capabilities().CanVote {
		return c.reject(name, ErrNotPermitted)
	}
	if c.store.HasVoted(commentID) {
		return c.reject(name, ErrAlreadyVoted)
	}
	return c.run(ctx, op{
		name:   name,
		target: store.CommentTarget(commentID),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.CommentsKey(incidentID)},
		call: func(ctx context.Context) (string, error) {
			if err := c.api.VoteComment(ctx, commentID); err != nil {
				return "", err
			}
			c.store.MarkVoted(commentID)
			return "", nil
		},
	})
}

// DeleteComment removes a comment after confirmation. Authors and admins may
// delete; when the thread is not loaded only admins pass the local check.
func (c *Coordinator) DeleteComment(ctx context.Context, incidentID, commentID feed.ID) error {
	const name = "delete_comment"
	var author feed.ID
	for _, cm := range c.store.Snapshot().Comments[incidentID] {
		if cm.ID == commentID {
			author = cm.AuthorID
			break
		}
	}
	if !c.session.Capabilities().CanModerateComments && !c.isOwner(author) {
		return c.reject(name, ErrNotPermitted)
	}
	if err := c.confirm(ctx, name, "Are you sure you want to delete this comment? This action cannot be undone."); err != nil {
		return err
	}
	return c.run(ctx, op{
		name:   name,
		target: store.CommentTarget(commentID),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.CommentsKey(incidentID)},
		call: func(ctx context.Context) (string, error) {
			return "", c.api.DeleteComment(ctx, commentID)
		},
	})
}
