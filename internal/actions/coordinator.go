// Package actions runs user mutations against the remote API.
//
// Each action marks its target in the store as pending, performs exactly one
// remote call, then marks the target succeeded or failed for a short
// feedback window. Local data is never edited ahead of the server: on
// success the affected resource keys are revalidated and the fresh snapshot
// carries the change.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/session"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"go.uber.org/zap"
)

// API is the set of remote mutations the coordinator issues.
type API interface {
	UpdateIncidentStatus(ctx context.Context, id feed.ID, status feed.IncidentStatus) error
	DeleteIncident(ctx context.Context, id feed.ID) error
	SubmitIncident(ctx context.Context, r feed.IncidentReport) (*feed.Incident, error)
	AddComment(ctx context.Context, incidentID feed.ID, content string) (*feed.Comment, error)
	DeleteComment(ctx context.Context, commentID feed.ID) error
	VoteComment(ctx context.Context, commentID feed.ID) error
	BanUser(ctx context.Context, userID feed.ID, d feed.BanDuration) (*feed.MessageResponse, error)
	DeleteUser(ctx context.Context, userID feed.ID) error
	ProcessOfficer(ctx context.Context, userID feed.ID, d feed.Decision) (*feed.MessageResponse, error)
	ProcessAdmin(ctx context.Context, userID feed.ID, d feed.Decision) (*feed.MessageResponse, error)
	CreateCheckin(ctx context.Context, r feed.CheckinRequest) (*feed.Checkin, error)
}

// Session is the user context actions are checked against.
type Session interface {
	User() *feed.User
	Capabilities() session.Capabilities
	RefreshUser(ctx context.Context) error
}

// Revalidator refetches resource keys after a mutation.
type Revalidator interface {
	Revalidate(ctx context.Context, key scheduler.Key) error
}

// Config tunes a Coordinator.
type Config struct {
	// ActionFeedback is how long succeeded/failed markers stay visible.
	ActionFeedback time.Duration

	// ApplicationFeedback is the shorter window used for officer
	// applications.
	ApplicationFeedback time.Duration

	Confirmer Confirmer
	Logger    *zap.Logger
	Metrics   *Metrics
}

// Coordinator performs user actions.
type Coordinator struct {
	api       API
	store     *store.Store
	session   Session
	revalid   Revalidator
	confirmer Confirmer
	logger    *zap.Logger
	metrics   *Metrics

	actionWindow      time.Duration
	applicationWindow time.Duration
}

// New creates a coordinator. A nil revalidator skips post-mutation refresh;
// a nil confirmer declines every destructive action.
func New(api API, st *store.Store, sess Session, rv Revalidator, cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	confirmer := cfg.Confirmer
	if confirmer == nil {
		confirmer = NeverConfirm
	}
	if cfg.ActionFeedback <= 0 {
		cfg.ActionFeedback = 2 * time.Second
	}
	if cfg.ApplicationFeedback <= 0 {
		cfg.ApplicationFeedback = 800 * time.Millisecond
	}
	return &Coordinator{
		api:               api,
		store:             st,
		session:           sess,
		revalid:           rv,
		confirmer:         confirmer,
		logger:            logger.Named("actions"),
		metrics:           cfg.Metrics,
		actionWindow:      cfg.ActionFeedback,
		applicationWindow: cfg.ApplicationFeedback,
	}
}

// op describes one guarded remote call.
type op struct {
	name   string
	target string
	window time.Duration
	keys   []scheduler.Key
	call   func(ctx context.Context) (string, error)
}

// run marks, calls, marks again and revalidates.
func (c *Coordinator) run(ctx context.Context, o op) error {
	token, ok := c.store.BeginAction(o.target)
	if !ok {
		c.metrics.record(o.name, "rejected")
		return fmt.Errorf("%s: %w", o.name, ErrInFlight)
	}

	msg, err := o.call(ctx)
	if err != nil {
		c.metrics.record(o.name, "failed")
		c.logger.Info("action failed",
			zap.String("action", o.name),
			zap.String("target", o.target),
			zap.Int("status", feed.StatusOf(err)),
			zap.Error(err))
		token = c.store.SetMarker(o.target, store.MarkerFailed, forms.ActionMessage(err))
		c.clearAfter(o.target, token, o.window)
		return err
	}

	c.metrics.record(o.name, "succeeded")
	c.logger.Debug("action succeeded", zap.String("action", o.name), zap.String("target", o.target))
	token = c.store.SetMarker(o.target, store.MarkerSucceeded, msg)
	c.clearAfter(o.target, token, o.window)
	c.revalidate(ctx, o.keys...)
	return nil
}

func (c *Coordinator) clearAfter(target string, token uint64, window time.Duration) {
	time.AfterFunc(window, func() { c.store.ClearMarker(target, token) })
}

func (c *Coordinator) revalidate(ctx context.Context, keys ...scheduler.Key) {
	if c.revalid == nil {
		return
	}
	for _, k := range keys {
		if err := c.revalid.Revalidate(ctx, k); err != nil && !errors.Is(err, scheduler.ErrNotLive) {
			c.logger.Debug("post-action revalidation failed", zap.String("resource.key", k.String()), zap.Error(err))
		}
	}
}

// reject counts a locally refused action and returns err.
func (c *Coordinator) reject(name string, err error) error {
	c.metrics.record(name, "rejected")
	return fmt.Errorf("%s: %w", name, err)
}

func (c *Coordinator) confirm(ctx context.Context, name, prompt string) error {
	ok, err := c.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%s: confirm: %w", name, err)
	}
	if !ok {
		return c.reject(name, ErrNotConfirmed)
	}
	return nil
}

// isOwner reports whether the current user is ownerID.
func (c *Coordinator) isOwner(ownerID feed.ID) bool {
	u := c.session.User()
	return u != nil && ownerID != "" && u.ID == ownerID
}
