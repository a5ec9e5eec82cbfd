package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRefresher struct {
	keys    []scheduler.Key
	focused int
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context, key scheduler.Key) error {
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakeRefresher) Focus(ctx context.Context) error {
	f.focused++
	return f.err
}

type staticIdentity struct{ user *feed.User }

func (s staticIdentity) User() *feed.User { return s.user }

var testNow = time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*Server, *store.Store, *fakeRefresher) {
	t.Helper()
	st := store.New(nil)
	rf := &fakeRefresher{}
	server, err := NewServer(st, rf, staticIdentity{&feed.User{Username: "bo"}}, zap.NewNop(), nil)
	require.NoError(t, err)
	server.now = func() time.Time { return testNow }
	return server, st, rf
}

func do(t *testing.T, s *Server, method, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func seedIncidents(st *store.Store) {
	st.ReconcileIncidents([]feed.Incident{
		{
			ID: "1", Description: "Truck overturned on Ring Road", Severity: 5,
			Status: feed.StatusConfirmed, Latitude: 6.5244, Longitude: 3.3792,
			CreatedAt: feed.Timestamp{Time: testNow.Add(-2 * time.Hour)},
		},
		{
			ID: "2", Description: "Minor fender bender", Severity: 2,
			Status: feed.StatusPendingVerification,
			CreatedAt: feed.Timestamp{Time: testNow.Add(-2 * time.Minute)},
		},
	})
}

func TestNewServer(t *testing.T) {
	st := store.New(nil)
	rf := &fakeRefresher{}

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(st, rf, nil, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9191, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(st, rf, nil, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewServer(nil, rf, nil, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "store cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)

	var resp HealthResponse
	rec := do(t, server, http.MethodGet, "/health", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint64(1), resp.Version)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleIncidents(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)

	t.Run("lists all in server order", func(t *testing.T) {
		var resp IncidentsResponse
		do(t, server, http.MethodGet, "/api/v1/incidents", &resp)
		require.Len(t, resp.Incidents, 2)
		assert.Equal(t, projection.CategorySevere, resp.Incidents[0].Category)
		assert.Equal(t, "6.5244, 3.3792", resp.Incidents[0].Location)
		assert.Equal(t, projection.CategoryPending, resp.Incidents[1].Category)
		assert.Equal(t, "2 mins ago", resp.Incidents[1].Time)
		assert.Equal(t, store.LayerTraffic, resp.Layer)
	})

	t.Run("search", func(t *testing.T) {
		var resp IncidentsResponse
		do(t, server, http.MethodGet, "/api/v1/incidents?q=RING", &resp)
		require.Len(t, resp.Incidents, 1)
		assert.Equal(t, feed.ID("1"), resp.Incidents[0].ID)
	})

	t.Run("category", func(t *testing.T) {
		var resp IncidentsResponse
		do(t, server, http.MethodGet, "/api/v1/incidents?category=pending", &resp)
		require.Len(t, resp.Incidents, 1)
		assert.Equal(t, feed.ID("2"), resp.Incidents[0].ID)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/incidents?category=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleIncident(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)
	require.True(t, st.Expand("1"))
	st.ReconcileComments("1", []feed.Comment{
		{ID: "c1", Content: "Avoid the flyover", CreatedAt: feed.Timestamp{Time: testNow.Add(-3 * time.Hour)}},
	})

	var resp IncidentResponse
	do(t, server, http.MethodGet, "/api/v1/incidents/1", &resp)
	assert.Equal(t, "Truck overturned on Ring Road", resp.Incident.Title)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, "3h ago", resp.Comments[0].Time)
	assert.False(t, resp.Selected)

	rec := do(t, server, http.MethodGet, "/api/v1/incidents/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelection(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)

	var sel SelectionResponse
	rec := do(t, server, http.MethodPut, "/api/v1/selection/2", &sel)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, feed.ID("2"), sel.Selected)
	assert.Equal(t, feed.ID("2"), st.Snapshot().View.Selected)

	rec = do(t, server, http.MethodPut, "/api/v1/selection/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, st.Snapshot().View.Selected)

	require.True(t, st.Select("1"))
	rec = do(t, server, http.MethodDelete, "/api/v1/selection", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, st.Snapshot().View.Selected)
}

func TestHandleRefresh(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
		key    scheduler.Key
	}{
		{"plain key", "/api/v1/refresh/accidents", nil, http.StatusNoContent, scheduler.KeyIncidents},
		{"key with slash", "/api/v1/refresh/admin/users", nil, http.StatusNoContent, scheduler.KeyUsers},
		{"not watched", "/api/v1/refresh/leaderboard", scheduler.ErrNotLive, http.StatusNotFound, scheduler.KeyLeaderboard},
		{"closed", "/api/v1/refresh/accidents", scheduler.ErrClosed, http.StatusServiceUnavailable, scheduler.KeyIncidents},
		{"remote failure", "/api/v1/refresh/accidents", &feed.APIError{Status: 403, Message: "Forbidden"}, http.StatusForbidden, scheduler.KeyIncidents},
		{"transport failure", "/api/v1/refresh/accidents", feed.ErrTransport, http.StatusBadGateway, scheduler.KeyIncidents},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, rf := setupTestServer(t)
			rf.err = tt.err
			rec := do(t, server, http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, []scheduler.Key{tt.key}, rf.keys)
		})
	}

	t.Run("missing key", func(t *testing.T) {
		server, _, rf := setupTestServer(t)
		rec := do(t, server, http.MethodPost, "/api/v1/refresh/", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rf.keys)
	})
}

func TestHandleFocus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"revalidated", nil, http.StatusNoContent},
		{"closed", scheduler.ErrClosed, http.StatusServiceUnavailable},
		{"remote failure", &feed.APIError{Status: 401, Message: "Token has expired"}, http.StatusUnauthorized},
		{"transport failure", feed.ErrTransport, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, rf := setupTestServer(t)
			rf.err = tt.err
			rec := do(t, server, http.MethodPost, "/api/v1/focus", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, 1, rf.focused)
			assert.Empty(t, rf.keys)
		})
	}
}

func TestHandleLeaderboard(t *testing.T) {
	server, st, _ := setupTestServer(t)
	st.ReconcileLeaderboard([]feed.LeaderboardEntry{
		{Rank: 2, Username: "bo", Points: 150},
		{Rank: 1, Username: "ana", Points: 600},
	})

	var resp LeaderboardResponse
	do(t, server, http.MethodGet, "/api/v1/leaderboard", &resp)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "ana", resp.Rows[0].Username)
	assert.Equal(t, projection.TierGold, resp.Rows[0].Tier)
	assert.True(t, resp.Rows[1].CurrentUser)
}

func TestHandleLogs(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)

	var all LogsResponse
	do(t, server, http.MethodGet, "/api/v1/logs", &all)
	assert.Len(t, all.Logs, 2)

	var confirmed LogsResponse
	do(t, server, http.MethodGet, "/api/v1/logs?level=success", &confirmed)
	require.Len(t, confirmed.Logs, 1)
	assert.Equal(t, "Incident confirmed: Truck overturned on Ring Road", confirmed.Logs[0].Message)

	rec := do(t, server, http.MethodGet, "/api/v1/logs?level=loud", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)
	st.ReconcileUsers([]feed.User{{ID: "u1", Role: feed.RoleOfficer, Status: feed.AccountApproved}})

	var stats projection.Stats
	do(t, server, http.MethodGet, "/api/v1/stats", &stats)
	assert.Equal(t, 2, stats.TotalIncidents)
	assert.Equal(t, 1, stats.TotalUsers)
	assert.Len(t, stats.Weekly, 7)
	assert.Len(t, stats.Hourly, 6)
}

func TestHandleResources(t *testing.T) {
	server, st, _ := setupTestServer(t)
	seedIncidents(st)
	st.Fail(scheduler.KeyLeaderboard, errors.New("boom"))

	var resp ResourcesResponse
	do(t, server, http.MethodGet, "/api/v1/resources", &resp)
	require.Len(t, resp.Resources, 2)
	assert.Equal(t, "accidents", resp.Resources[0].Key)
	assert.True(t, resp.Resources[0].Loaded)
	assert.Equal(t, "leaderboard", resp.Resources[1].Key)
	assert.False(t, resp.Resources[1].Loaded)
	assert.Equal(t, "boom", resp.Resources[1].Error)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)
	rec := do(t, server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
