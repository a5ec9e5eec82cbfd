package actions

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
)

func (c *Coordinator) user(id feed.ID) (feed.User, bool) {
	for _, u := range c.store.Snapshot().Users {
		if u.ID == id {
			return u, true
		}
	}
	return feed.User{}, false
}

// Ban bans a user for a fixed duration, or lifts a ban. Lifting applies
// only to users currently BANNED. The row keeps its old status until the
// refreshed user list says otherwise.
func (c *Coordinator) Ban(ctx context.Context, userID feed.ID, d feed.BanDuration) error {
	const name = "ban"
	if !c.session.Capabilities().CanModerateUsers {
		return c.reject(name, ErrNotPermitted)
	}
	if !d.Valid() {
		c.metrics.record(name, "rejected")
		return forms.Invalid("duration", "Ban duration must be one of 1day, 1week, permanent or unban.")
	}
	u, ok := c.user(userID)
	if !ok {
		return c.reject(name, ErrNotFound)
	}
	if d == feed.BanLift && u.Status != feed.AccountBanned {
		return c.reject(name, ErrInvalidTransition)
	}
	return c.run(ctx, op{
		name:   name,
		target: store.UserTarget(userID),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.KeyUsers},
		call: func(ctx context.Context) (string, error) {
			resp, err := c.api.BanUser(ctx, userID, d)
			return messageOf(resp), err
		},
	})
}

// DeleteUser removes an account after confirmation.
func (c *Coordinator) DeleteUser(ctx context.Context, userID feed.ID) error {
	const name = "delete_user"
	if !c.session.Capabilities().CanModerateUsers {
		return c.reject(name, ErrNotPermitted)
	}
	if err := c.confirm(ctx, name, "Are you sure you want to delete this user? This action cannot be undone."); err != nil {
		return err
	}
	return c.run(ctx, op{
		name:   name,
		target: store.UserTarget(userID),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.KeyUsers},
		call: func(ctx context.Context) (string, error) {
			return "", c.api.DeleteUser(ctx, userID)
		},
	})
}

// ProcessOfficer approves or rejects an officer application.
func (c *Coordinator) ProcessOfficer(ctx context.Context, userID feed.ID, d feed.Decision) (string, error) {
	const name = "process_officer"
	if !c.session.Capabilities().CanModerateUsers {
		return "", c.reject(name, ErrNotPermitted)
	}
	if !d.Valid() {
		return "", c.reject(name, ErrInvalidTransition)
	}
	var msg string
	err := c.run(ctx, op{
		name:   name,
		target: store.UserTarget(userID),
		window: c.applicationWindow,
		keys:   []scheduler.Key{scheduler.KeyPendingOfficers, scheduler.KeyUsers},
		call: func(ctx context.Context) (string, error) {
			resp, err := c.api.ProcessOfficer(ctx, userID, d)
			msg = messageOf(resp)
			return msg, err
		},
	})
	return msg, err
}

// ProcessAdmin approves or rejects a pending admin by the secret id sent to
// the super admin.
func (c *Coordinator) ProcessAdmin(ctx context.Context, secretID string, d feed.Decision) (string, error) {
	const name = "process_admin"
	if !c.session.Capabilities().CanManageAdmins {
		return "", c.reject(name, ErrNotPermitted)
	}
	if err := forms.ValidateSecretID(secretID); err != nil {
		c.metrics.record(name, "rejected")
		return "", err
	}
	if !d.Valid() {
		return "", c.reject(name, ErrInvalidTransition)
	}
	id := feed.ID(strings.TrimSpace(secretID))
	msg := ""
	err := c.run(ctx, op{
		name:   name,
		target: store.UserTarget(id),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.KeyUsers},
		call: func(ctx context.Context) (string, error) {
			resp, err := c.api.ProcessAdmin(ctx, id, d)
			msg = messageOf(resp)
			if err == nil && msg == "" {
				msg = defaultAdminMessage(d)
			}
			return msg, err
		},
	})
	return msg, err
}

func defaultAdminMessage(d feed.Decision) string {
	if d == feed.DecisionApprove {
		return "Admin approved successfully!"
	}
	return "Admin rejected successfully!"
}

func messageOf(resp *feed.MessageResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Message
}
