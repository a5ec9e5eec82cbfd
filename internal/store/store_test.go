package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func incident(id string, status feed.IncidentStatus) feed.Incident {
	return feed.Incident{ID: feed.ID(id), Severity: 3, Status: status, Description: "crash " + id}
}

func TestStore_SelectionClearsWhenIncidentDisappears(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("x", feed.StatusConfirmed), incident("y", feed.StatusConfirmed)})

	require.True(t, s.Select("x"))
	inc, ok := s.Snapshot().SelectedIncident()
	require.True(t, ok)
	assert.Equal(t, feed.ID("x"), inc.ID)

	s.ReconcileIncidents([]feed.Incident{incident("y", feed.StatusConfirmed)})
	snap := s.Snapshot()
	assert.Equal(t, feed.ID(""), snap.View.Selected)
	_, ok = snap.SelectedIncident()
	assert.False(t, ok)
}

func TestStore_SelectionSurvivesWhenPresent(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("x", feed.StatusPendingVerification)})
	require.True(t, s.Select("x"))

	s.ReconcileIncidents([]feed.Incident{incident("x", feed.StatusConfirmed), incident("z", feed.StatusConfirmed)})
	inc, ok := s.Snapshot().SelectedIncident()
	require.True(t, ok)
	assert.Equal(t, feed.StatusConfirmed, inc.Status, "selected entity resolves to the fresh copy")
}

func TestStore_SelectUnknown(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("x", feed.StatusConfirmed)})
	require.True(t, s.Select("x"))

	assert.False(t, s.Select("missing"))
	assert.Equal(t, feed.ID(""), s.Snapshot().View.Selected)
}

func TestStore_ChangesAgainstPreviousSnapshot(t *testing.T) {
	s := New(nil)

	first := s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusPendingVerification), incident("b", feed.StatusConfirmed)})
	assert.Empty(t, first, "first load is a baseline")

	changes := s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed), incident("c", feed.StatusPendingVerification)})
	require.Len(t, changes, 3)
	assert.Equal(t, ChangeStatusChanged, changes[0].Kind)
	assert.Equal(t, feed.StatusPendingVerification, changes[0].PreviousStatus)
	assert.Equal(t, ChangeAdded, changes[1].Kind)
	assert.Equal(t, feed.ID("c"), changes[1].Incident.ID)
	assert.Equal(t, ChangeRemoved, changes[2].Kind)
	assert.Equal(t, feed.ID("b"), changes[2].Incident.ID)

	assert.Empty(t, s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed), incident("c", feed.StatusPendingVerification)}))
}

func TestStore_ServerOrderPreserved(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("9", feed.StatusConfirmed), incident("1", feed.StatusConfirmed), incident("5", feed.StatusConfirmed)})

	var ids []feed.ID
	for _, inc := range s.Snapshot().Incidents {
		ids = append(ids, inc.ID)
	}
	assert.Equal(t, []feed.ID{"9", "1", "5"}, ids)
}

func TestStore_CommentThreads(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed), incident("b", feed.StatusConfirmed)})

	assert.False(t, s.ReconcileComments("a", []feed.Comment{{ID: "c1"}}), "collapsed threads are discarded")
	assert.Empty(t, s.Snapshot().Comments)

	assert.False(t, s.Expand("unknown"))
	require.True(t, s.Expand("a"))
	require.True(t, s.Expand("b"))
	assert.True(t, s.ReconcileComments("a", []feed.Comment{{ID: "c2"}, {ID: "c1"}}))
	assert.Equal(t, []feed.Comment{{ID: "c2"}, {ID: "c1"}}, s.Snapshot().Comments["a"])
	assert.True(t, s.Snapshot().Status(scheduler.CommentsKey("a")).Loaded)

	s.ReconcileIncidents([]feed.Incident{incident("b", feed.StatusConfirmed)})
	snap := s.Snapshot()
	assert.False(t, snap.View.Expanded["a"], "expansion of a vanished incident is dropped")
	assert.NotContains(t, snap.Comments, feed.ID("a"))
	assert.True(t, snap.View.Expanded["b"])

	s.Collapse("b")
	assert.Empty(t, s.Snapshot().View.Expanded)
}

func TestStore_VanishedIncidentLeavesNoStaleState(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed), incident("b", feed.StatusConfirmed)})
	require.True(t, s.Expand("a"))
	require.True(t, s.Expand("b"))
	require.True(t, s.ReconcileComments("a", []feed.Comment{{ID: "c1"}}))
	require.True(t, s.ReconcileComments("b", []feed.Comment{{ID: "c2"}}))
	s.SetMarker(IncidentTarget("a"), MarkerSucceeded, "")
	s.SetMarker(CommentTarget("c1"), MarkerFailed, "Failed to vote")
	s.SetMarker(IncidentTarget("b"), MarkerSucceeded, "")
	s.SetMarker(CommentTarget("c2"), MarkerSucceeded, "")

	s.ReconcileIncidents([]feed.Incident{incident("b", feed.StatusConfirmed)})
	snap := s.Snapshot()

	assert.NotContains(t, snap.Resources, scheduler.CommentsKey("a"))
	assert.Contains(t, snap.Resources, scheduler.CommentsKey("b"))
	_, ok := snap.Marker(IncidentTarget("a"))
	assert.False(t, ok)
	_, ok = snap.Marker(CommentTarget("c1"))
	assert.False(t, ok)
	_, ok = snap.Marker(IncidentTarget("b"))
	assert.True(t, ok)
	_, ok = snap.Marker(CommentTarget("c2"))
	assert.True(t, ok)
}

func TestStore_VanishedIncidentKeepsPendingMarker(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed)})
	token, ok := s.BeginAction(IncidentTarget("a"))
	require.True(t, ok)

	s.ReconcileIncidents(nil)
	m, ok := s.Snapshot().Marker(IncidentTarget("a"))
	require.True(t, ok, "the running action still owns its marker")
	assert.Equal(t, MarkerPending, m.State)
	assert.True(t, s.ClearMarker(IncidentTarget("a"), token))
}

func TestStore_FailureKeepsStaleData(t *testing.T) {
	s := New(nil)
	s.ReconcileLeaderboard([]feed.LeaderboardEntry{{Rank: 1, Username: "alice", Points: 500}})

	boom := errors.New("timeout")
	s.Fail(scheduler.KeyLeaderboard, boom)
	snap := s.Snapshot()
	require.Len(t, snap.Leaderboard, 1)
	st := snap.Status(scheduler.KeyLeaderboard)
	assert.True(t, st.Loaded)
	assert.ErrorIs(t, st.Err, boom)

	s.ReconcileLeaderboard(nil)
	assert.NoError(t, s.Snapshot().Status(scheduler.KeyLeaderboard).Err)
}

func TestStore_DeliverRoutesByKey(t *testing.T) {
	s := New(nil)
	s.Deliver(scheduler.KeyIncidents, []feed.Incident{incident("a", feed.StatusConfirmed)})
	s.Deliver(scheduler.KeyUsers, []feed.User{{ID: "1", Username: "u"}})
	s.Deliver(scheduler.KeyPendingOfficers, []feed.User{{ID: "2", Username: "o"}})
	s.Deliver(scheduler.KeyLeaderboard, []feed.LeaderboardEntry{{Rank: 1}})
	require.True(t, s.Expand("a"))
	s.Deliver(scheduler.CommentsKey("a"), []feed.Comment{{ID: "c"}})

	snap := s.Snapshot()
	assert.Len(t, snap.Incidents, 1)
	assert.Equal(t, "u", snap.Users[0].Username)
	assert.Equal(t, "o", snap.PendingOfficers[0].Username)
	assert.Len(t, snap.Leaderboard, 1)
	assert.Len(t, snap.Comments["a"], 1)

	s.Deliver(scheduler.KeyIncidents, "garbage")
	assert.Error(t, s.Snapshot().Status(scheduler.KeyIncidents).Err)
	assert.Len(t, s.Snapshot().Incidents, 1)
}

func TestStore_SnapshotsAreImmutable(t *testing.T) {
	s := New(nil)
	s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed)})
	before := s.Snapshot()

	require.True(t, s.Expand("a"))
	s.MarkVoted("c1")
	s.SetMarker(UserTarget("1"), MarkerSucceeded, "")

	assert.Empty(t, before.View.Expanded)
	assert.Empty(t, before.View.Voted)
	assert.Empty(t, before.View.Markers)
	assert.Greater(t, s.Snapshot().Version, before.Version)
}

func TestStore_Votes(t *testing.T) {
	s := New(nil)
	assert.True(t, s.MarkVoted("c1"))
	assert.False(t, s.MarkVoted("c1"))
	assert.True(t, s.HasVoted("c1"))

	s.ResetVotes()
	assert.False(t, s.HasVoted("c1"))
}

func TestStore_Markers(t *testing.T) {
	s := New(nil)
	target := UserTarget("7")

	first, ok := s.BeginAction(target)
	require.True(t, ok)
	_, ok = s.BeginAction(target)
	assert.False(t, ok, "a pending action blocks another on the same target")

	second := s.SetMarker(target, MarkerSucceeded, "done")
	assert.False(t, s.ClearMarker(target, first), "stale token does not clear newer feedback")
	m, ok := s.Snapshot().Marker(target)
	require.True(t, ok)
	assert.Equal(t, MarkerSucceeded, m.State)

	assert.True(t, s.ClearMarker(target, second))
	_, ok = s.Snapshot().Marker(target)
	assert.False(t, ok)
}

func TestStore_ViewSettings(t *testing.T) {
	s := New(nil)
	assert.Equal(t, LayerTraffic, s.Snapshot().View.Layer)
	require.NoError(t, s.SetLayer(LayerHeatmap))
	assert.Error(t, s.SetLayer("terrain"))
	assert.Equal(t, LayerHeatmap, s.Snapshot().View.Layer)
	assert.Equal(t, LayerSatellite, LayerHeatmap.Next())
	assert.Equal(t, LayerTraffic, LayerSatellite.Next())

	s.SetSearch("EDSA")
	assert.Equal(t, "EDSA", s.Snapshot().View.Search)
}

func TestStore_ListenersSeeOrderedSnapshots(t *testing.T) {
	s := New(nil)

	var mu sync.Mutex
	var versions []uint64
	var got []Change
	s.OnChange(func(st *State, changes []Change) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, st.Version)
		got = append(got, changes...)
	})

	s.ReconcileIncidents([]feed.Incident{incident("a", feed.StatusConfirmed)})
	s.ReconcileIncidents(nil)
	s.ClearSelection()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, versions, "no-op mutations do not notify")
	require.Len(t, got, 1)
	assert.Equal(t, ChangeRemoved, got[0].Kind)
}
