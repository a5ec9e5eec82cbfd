package actions

import (
	"context"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"go.uber.org/zap"
)

// Verify confirms or rejects a pending incident. Only officers and admins
// may verify, and only incidents still pending verification. On success the
// selection is closed.
func (c *Coordinator) Verify(ctx context.Context, id feed.ID, status feed.IncidentStatus) error {
	const name = "verify"
	if !c.session.Capabilities().CanVerifyIncidents {
		return c.reject(name, ErrNotPermitted)
	}
	if status != feed.StatusConfirmed && status != feed.StatusFalseReport {
		return c.reject(name, ErrInvalidTransition)
	}
	inc, ok := c.store.Snapshot().Incident(id)
	if !ok {
		return c.reject(name, ErrNotFound)
	}
	if inc.Status != feed.StatusPendingVerification {
		return c.reject(name, ErrInvalidTransition)
	}

	err := c.run(ctx, op{
		name:   name,
		target: store.IncidentTarget(id),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.KeyIncidents},
		call: func(ctx context.Context) (string, error) {
			return "", c.api.UpdateIncidentStatus(ctx, id, status)
		},
	})
	if err == nil && c.store.Snapshot().View.Selected == id {
		c.store.ClearSelection()
	}
	return err
}

// DeleteIncident removes an incident after confirmation. The reporter and
// admins may delete.
func (c *Coordinator) DeleteIncident(ctx context.Context, id feed.ID) error {
	const name = "delete_incident"
	inc, ok := c.store.Snapshot().Incident(id)
	if !ok {
		return c.reject(name, ErrNotFound)
	}
	if !c.session.Capabilities().CanModerateIncidents && !c.isOwner(inc.ReporterID) {
		return c.reject(name, ErrNotPermitted)
	}
	if err := c.confirm(ctx, name, "Are you sure you want to delete this report? This action cannot be undone."); err != nil {
		return err
	}
	return c.run(ctx, op{
		name:   name,
		target: store.IncidentTarget(id),
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.KeyIncidents},
		call: func(ctx context.Context) (string, error) {
			return "", c.api.DeleteIncident(ctx, id)
		},
	})
}

// ReportResult is a submitted incident and the points the reporter earned.
type ReportResult struct {
	Incident     *feed.Incident `json:"incident"`
	PointsEarned int            `json:"points_earned"`
}

const reportTarget = "report"

// SubmitReport validates and submits a new incident. Validation failures
// return before any request. After success the user's profile is refreshed
// so their points are current.
func (c *Coordinator) SubmitReport(ctx context.Context, loc forms.Location, r feed.IncidentReport) (*ReportResult, error) {
	const name = "report"
	if !c.session.Capabilities().CanReport {
		return nil, c.reject(name, ErrNotPermitted)
	}
	r.Latitude, r.Longitude = loc.Latitude, loc.Longitude
	if err := forms.ValidateReport(loc, r); err != nil {
		c.metrics.record(name, "rejected")
		return nil, err
	}

	var created *feed.Incident
	err := c.run(ctx, op{
		name:   name,
		target: reportTarget,
		window: c.actionWindow,
		keys:   []scheduler.Key{scheduler.KeyIncidents, scheduler.KeyLeaderboard},
		call: func(ctx context.Context) (string, error) {
			inc, err := c.api.SubmitIncident(ctx, r)
			created = inc
			return "", err
		},
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.session.RefreshUser(ctx); err != nil {
		c.logger.Warn("refreshing profile after report", zap.Error(err))
	}
	return &ReportResult{Incident: created, PointsEarned: PointsFor(r.Severity)}, nil
}

// PointsFor is the reward shown for a report of the given severity.
func PointsFor(severity int) int {
	if severity == 5 {
		return 100
	}
	return 10
}

// CheckIn records a visited location.
func (c *Coordinator) CheckIn(ctx context.Context, r feed.CheckinRequest) (*feed.Checkin, error) {
	const name = "checkin"
	if !c.session.Capabilities().CanCheckIn {
		return nil, c.reject(name, ErrNotPermitted)
	}
	var out *feed.Checkin
	err := c.run(ctx, op{
		name:   name,
		target: "checkin",
		window: c.actionWindow,
		call: func(ctx context.Context) (string, error) {
			ck, err := c.api.CreateCheckin(ctx, r)
			out = ck
			return "", err
		},
	})
	return out, err
}
