package actions

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/session"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string
	err   error
	block chan struct{}
}

func (f *fakeAPI) hit(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	block, err := f.block, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) UpdateIncidentStatus(_ context.Context, id feed.ID, s feed.IncidentStatus) error {
	return f.hit("status:" + string(id) + ":" + string(s))
}
func (f *fakeAPI) DeleteIncident(_ context.Context, id feed.ID) error {
	return f.hit("delete_incident:" + string(id))
}
func (f *fakeAPI) SubmitIncident(_ context.Context, r feed.IncidentReport) (*feed.Incident, error) {
	if err := f.hit("submit"); err != nil {
		return nil, err
	}
	return &feed.Incident{ID: "new", Severity: r.Severity, Latitude: r.Latitude}, nil
}
func (f *fakeAPI) AddComment(_ context.Context, id feed.ID, content string) (*feed.Comment, error) {
	if err := f.hit("comment:" + content); err != nil {
		return nil, err
	}
	return &feed.Comment{ID: "c-new", Content: content}, nil
}
func (f *fakeAPI) DeleteComment(_ context.Context, id feed.ID) error {
	return f.hit("delete_comment:" + string(id))
}
func (f *fakeAPI) VoteComment(_ context.Context, id feed.ID) error {
	return f.hit("vote:" + string(id))
}
func (f *fakeAPI) BanUser(_ context.Context, id feed.ID, d feed.BanDuration) (*feed.MessageResponse, error) {
	if err := f.hit("ban:" + string(id) + ":" + string(d)); err != nil {
		return nil, err
	}
	return &feed.MessageResponse{Message: "User banned"}, nil
}
func (f *fakeAPI) DeleteUser(_ context.Context, id feed.ID) error {
	return f.hit("delete_user:" + string(id))
}
func (f *fakeAPI) ProcessOfficer(_ context.Context, id feed.ID, d feed.Decision) (*feed.MessageResponse, error) {
	if err := f.hit("officer:" + string(id) + ":" + string(d)); err != nil {
		return nil, err
	}
	return &feed.MessageResponse{Message: "Officer approved"}, nil
}
func (f *fakeAPI) ProcessAdmin(_ context.Context, id feed.ID, d feed.Decision) (*feed.MessageResponse, error) {
	if err := f.hit("admin:" + string(id) + ":" + string(d)); err != nil {
		return nil, err
	}
	return &feed.MessageResponse{}, nil
}
func (f *fakeAPI) CreateCheckin(_ context.Context, r feed.CheckinRequest) (*feed.Checkin, error) {
	if err := f.hit("checkin"); err != nil {
		return nil, err
	}
	return &feed.Checkin{ID: "k1", LocationName: r.LocationName}, nil
}

type fakeSession struct {
	user      *feed.User
	refreshes int
}

func (s *fakeSession) User() *feed.User { return s.user }

func (s *fakeSession) Capabilities() session.Capabilities { return session.CapabilitiesFor(s.user) }

func (s *fakeSession) RefreshUser(context.Context) error { s.refreshes++; return nil }

type recordingRevalidator struct {
	mu   sync.Mutex
	keys []scheduler.Key
}

func (r *recordingRevalidator) Revalidate(_ context.Context, key scheduler.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

type harness struct {
	api   *fakeAPI
	store *store.Store
	sess  *fakeSession
	rv    *recordingRevalidator
	c     *Coordinator
}

var (
	admin   = &feed.User{ID: "1", Username: "root", Role: feed.RoleAdmin}
	officer = &feed.User{ID: "2", Username: "cop", Role: feed.RoleOfficer}
	citizen = &feed.User{ID: "3", Username: "joe", Role: feed.RoleUser}
)

func newHarness(t *testing.T, user *feed.User, confirmer Confirmer) *harness {
	t.Helper()
	h := &harness{
		api:   &fakeAPI{},
		store: store.New(nil),
		sess:  &fakeSession{user: user},
		rv:    &recordingRevalidator{},
	}
	h.c = New(h.api, h.store, h.sess, h.rv, Config{
		ActionFeedback:      40 * time.Millisecond,
		ApplicationFeedback: 20 * time.Millisecond,
		Confirmer:           confirmer,
	})
	h.store.ReconcileIncidents([]feed.Incident{
		{ID: "p1", Status: feed.StatusPendingVerification, Severity: 3, ReporterID: "3"},
		{ID: "c1", Status: feed.StatusConfirmed, Severity: 5, ReporterID: "9"},
	})
	h.store.ReconcileUsers([]feed.User{
		{ID: "10", Username: "ok", Status: feed.AccountApproved},
		{ID: "11", Username: "bad", Status: feed.AccountBanned},
	})
	return h
}

func TestVerify(t *testing.T) {
	t.Run("citizen not permitted", func(t *testing.T) {
		h := newHarness(t, citizen, nil)
		assert.ErrorIs(t, h.c.Verify(context.Background(), "p1", feed.StatusConfirmed), ErrNotPermitted)
		assert.Zero(t, h.api.callCount())
	})
	t.Run("already verified", func(t *testing.T) {
		h := newHarness(t, officer, nil)
		assert.ErrorIs(t, h.c.Verify(context.Background(), "c1", feed.StatusFalseReport), ErrInvalidTransition)
	})
	t.Run("bad target status", func(t *testing.T) {
		h := newHarness(t, officer, nil)
		assert.ErrorIs(t, h.c.Verify(context.Background(), "p1", feed.StatusPendingVerification), ErrInvalidTransition)
	})
	t.Run("unknown incident", func(t *testing.T) {
		h := newHarness(t, officer, nil)
		assert.ErrorIs(t, h.c.Verify(context.Background(), "zz", feed.StatusConfirmed), ErrNotFound)
	})
	t.Run("officer confirms", func(t *testing.T) {
		h := newHarness(t, officer, nil)
		require.True(t, h.store.Select("p1"))

		require.NoError(t, h.c.Verify(context.Background(), "p1", feed.StatusConfirmed))
		assert.Equal(t, []string{"status:p1:confirmed"}, h.api.calls)
		assert.Equal(t, []scheduler.Key{scheduler.KeyIncidents}, h.rv.keys)

		snap := h.store.Snapshot()
		assert.Equal(t, feed.ID(""), snap.View.Selected)
		inc, _ := snap.Incident("p1")
		assert.Equal(t, feed.StatusPendingVerification, inc.Status, "no local mutation before the server snapshot")
		m, ok := snap.Marker(store.IncidentTarget("p1"))
		require.True(t, ok)
		assert.Equal(t, store.MarkerSucceeded, m.State)
	})
}

func TestVote_OncePerSession(t *testing.T) {
	h := newHarness(t, citizen, nil)
	ctx := context.Background()

	require.NoError(t, h.c.Vote(ctx, "c1", "cm1"))
	assert.ErrorIs(t, h.c.Vote(ctx, "c1", "cm1"), ErrAlreadyVoted)
	assert.Equal(t, 1, h.api.callCount())
	assert.Equal(t, []scheduler.Key{scheduler.CommentsKey("c1")}, h.rv.keys)
}

func TestVote_FailureDoesNotMarkVoted(t *testing.T) {
	h := newHarness(t, citizen, nil)
	h.api.err = &feed.APIError{Status: http.StatusInternalServerError, Message: "Error processing upvote."}

	err := h.c.Vote(context.Background(), "c1", "cm1")
	assert.Equal(t, http.StatusInternalServerError, feed.StatusOf(err))
	assert.False(t, h.store.HasVoted("cm1"))
	assert.Empty(t, h.rv.keys)

	m, ok := h.store.Snapshot().Marker(store.CommentTarget("cm1"))
	require.True(t, ok)
	assert.Equal(t, store.MarkerFailed, m.State)
	assert.Equal(t, "Error processing upvote.", m.Message)
}

func TestVote_ConcurrentSameTarget(t *testing.T) {
	h := newHarness(t, citizen, nil)
	h.api.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.c.Vote(context.Background(), "c1", "cm1") }()
	require.Eventually(t, func() bool { return h.api.callCount() == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, h.c.Vote(context.Background(), "c1", "cm1"), ErrInFlight)
	close(h.api.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.api.callCount())
}

func TestBan(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, officer, nil)
	assert.ErrorIs(t, h.c.Ban(ctx, "10", feed.BanOneWeek), ErrNotPermitted)

	h = newHarness(t, admin, nil)
	assert.ErrorIs(t, h.c.Ban(ctx, "10", feed.BanLift), ErrInvalidTransition, "unban applies to banned users only")
	assert.ErrorIs(t, h.c.Ban(ctx, "404", feed.BanOneDay), ErrNotFound)

	var ve *forms.ValidationError
	assert.ErrorAs(t, h.c.Ban(ctx, "10", "1year"), &ve)
	assert.Zero(t, h.api.callCount())

	require.NoError(t, h.c.Ban(ctx, "10", feed.BanOneWeek))
	m, ok := h.store.Snapshot().Marker(store.UserTarget("10"))
	require.True(t, ok)
	assert.Equal(t, "User banned", m.Message)

	require.NoError(t, h.c.Ban(ctx, "11", feed.BanLift))
	assert.Equal(t, []string{"ban:10:1week", "ban:11:unban"}, h.api.calls)

	u, _ := h.c.user("10")
	assert.Equal(t, feed.AccountApproved, u.Status, "status changes only via the refreshed list")

	assert.Eventually(t, func() bool {
		_, ok := h.store.Snapshot().Marker(store.UserTarget("10"))
		return !ok
	}, time.Second, 5*time.Millisecond, "feedback clears after the window")
}

func TestDestructiveActionsNeedConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, admin, NeverConfirm)

	assert.ErrorIs(t, h.c.DeleteUser(ctx, "10"), ErrNotConfirmed)
	assert.ErrorIs(t, h.c.DeleteIncident(ctx, "c1"), ErrNotConfirmed)
	assert.ErrorIs(t, h.c.DeleteComment(ctx, "c1", "cm1"), ErrNotConfirmed)
	assert.Zero(t, h.api.callCount())

	var prompts []string
	h = newHarness(t, admin, ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompts = append(prompts, p)
		return true, nil
	}))
	require.NoError(t, h.c.DeleteUser(ctx, "10"))
	assert.Equal(t, []string{"Are you sure you want to delete this user? This action cannot be undone."}, prompts)
	assert.Equal(t, []string{"delete_user:10"}, h.api.calls)
}

func TestDeleteIncident_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, citizen, AlwaysConfirm)

	assert.ErrorIs(t, h.c.DeleteIncident(ctx, "c1"), ErrNotPermitted)
	require.NoError(t, h.c.DeleteIncident(ctx, "p1"))
	assert.Equal(t, []string{"delete_incident:p1"}, h.api.calls)
}

func TestDeleteComment_Author(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, citizen, AlwaysConfirm)
	require.True(t, h.store.Expand("c1"))
	h.store.ReconcileComments("c1", []feed.Comment{
		{ID: "mine", AuthorID: "3"},
		{ID: "theirs", AuthorID: "8"},
	})

	assert.ErrorIs(t, h.c.DeleteComment(ctx, "c1", "theirs"), ErrNotPermitted)
	require.NoError(t, h.c.DeleteComment(ctx, "c1", "mine"))
	assert.Equal(t, []scheduler.Key{scheduler.CommentsKey("c1")}, h.rv.keys)
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	_, err := h.c.AddComment(ctx, "c1", "hello")
	assert.ErrorIs(t, err, ErrNotPermitted)

	h = newHarness(t, citizen, nil)
	_, err = h.c.AddComment(ctx, "c1", "   ")
	var ve *forms.ValidationError
	assert.ErrorAs(t, err, &ve)

	cm, err := h.c.AddComment(ctx, "c1", "  lane two blocked  ")
	require.NoError(t, err)
	assert.Equal(t, "lane two blocked", cm.Content)
	assert.Equal(t, []string{"comment:lane two blocked"}, h.api.calls)
}

func TestSubmitReport(t *testing.T) {
	ctx := context.Background()
	here := forms.Location{Latitude: 14.5995, Longitude: 120.9842, Set: true}

	t.Run("fatalities with low severity rejected before the network", func(t *testing.T) {
		h := newHarness(t, citizen, nil)
		_, err := h.c.SubmitReport(ctx, here, feed.IncidentReport{Description: "Truck overturned", Severity: 2, CasualtiesDead: 1})
		assert.EqualError(t, err, "If there are fatalities, severity must be 4 or 5.")
		assert.Zero(t, h.api.callCount())
	})

	t.Run("rate limited", func(t *testing.T) {
		h := newHarness(t, citizen, nil)
		h.api.err = &feed.APIError{Status: http.StatusTooManyRequests, Message: "Please wait 2 minutes before reporting again."}
		_, err := h.c.SubmitReport(ctx, here, feed.IncidentReport{Description: "Truck overturned", Severity: 3})
		require.Error(t, err)
		assert.Equal(t, "Please wait 2 minutes between reports.", forms.ReportMessage(err))
		assert.Zero(t, h.sess.refreshes)
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t, citizen, nil)
		res, err := h.c.SubmitReport(ctx, here, feed.IncidentReport{Description: "Truck overturned", Severity: 5})
		require.NoError(t, err)
		assert.Equal(t, 100, res.PointsEarned)
		assert.Equal(t, 14.5995, res.Incident.Latitude)
		assert.Equal(t, 1, h.sess.refreshes)
		assert.Equal(t, []scheduler.Key{scheduler.KeyIncidents, scheduler.KeyLeaderboard}, h.rv.keys)
	})
}

func TestProcessApplications(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, admin, nil)
	msg, err := h.c.ProcessOfficer(ctx, "20", feed.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, "Officer approved", msg)
	assert.Equal(t, []scheduler.Key{scheduler.KeyPendingOfficers, scheduler.KeyUsers}, h.rv.keys)
	assert.Eventually(t, func() bool {
		_, ok := h.store.Snapshot().Marker(store.UserTarget("20"))
		return !ok
	}, time.Second, 2*time.Millisecond)

	_, err = h.c.ProcessAdmin(ctx, "   ", feed.DecisionApprove)
	assert.EqualError(t, err, "Please enter the Secret User ID from the email")

	msg, err = h.c.ProcessAdmin(ctx, " abc-123 ", feed.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, "Admin rejected successfully!", msg)
	assert.Contains(t, h.api.calls, "admin:abc-123:reject")

	h = newHarness(t, officer, nil)
	_, err = h.c.ProcessAdmin(ctx, "abc", feed.DecisionApprove)
	assert.ErrorIs(t, err, ErrNotPermitted)
}

func TestCheckIn(t *testing.T) {
	h := newHarness(t, citizen, nil)
	ck, err := h.c.CheckIn(context.Background(), feed.CheckinRequest{Latitude: 1, Longitude: 2, LocationName: "EDSA"})
	require.NoError(t, err)
	assert.Equal(t, "EDSA", ck.LocationName)
}

func TestPointsFor(t *testing.T) {
	assert.Equal(t, 100, PointsFor(5))
	assert.Equal(t, 10, PointsFor(4))
}
