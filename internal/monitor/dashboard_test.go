package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
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

var testNow = time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, incidents ...feed.Incident) (Model, *store.Store, *fakeRefresher) {
	t.Helper()
	st := store.New(nil)
	if incidents != nil {
		st.ReconcileIncidents(incidents)
	}
	rf := &fakeRefresher{}
	m := NewModel(st, rf, 5*time.Second)
	m.now = func() time.Time { return testNow }
	return m.reload(), st, rf
}

func sampleIncidents() []feed.Incident {
	return []feed.Incident{
		{ID: "1", Description: "Fender bender near the market", Severity: 2, Status: feed.StatusConfirmed,
			CreatedAt: feed.Timestamp{Time: testNow.Add(-3 * time.Hour)}},
		{ID: "2", Description: "Tanker fire on Ring Road", Severity: 5, Status: feed.StatusConfirmed,
			CreatedAt: feed.Timestamp{Time: testNow.Add(-30 * time.Minute)}, ReporterUsername: "ana"},
		{ID: "3", Description: "Stalled bus", Severity: 3, Status: feed.StatusPendingVerification,
			CreatedAt: feed.Timestamp{Time: testNow.Add(-2 * time.Minute)}},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestNewModel(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Equal(t, 5*time.Second, m.interval)
	assert.False(t, m.quitting)
	assert.NotNil(t, m.Init())

	view := m.View()
	assert.Contains(t, view, "roadwatch")
	assert.Contains(t, view, "loading…")
	assert.Contains(t, view, "updated never")
}

func TestModel_RowsGroupedByCategory(t *testing.T) {
	m, _, _ := newTestModel(t, sampleIncidents()...)

	require.Len(t, m.rows, 3)
	assert.Equal(t, feed.ID("2"), m.rows[0].ID, "severe first")
	assert.Equal(t, feed.ID("1"), m.rows[1].ID)
	assert.Equal(t, feed.ID("3"), m.rows[2].ID)

	view := m.View()
	assert.Contains(t, view, "SEVERE")
	assert.Contains(t, view, "PENDING")
	assert.Contains(t, view, "Tanker fire on Ring Road")
	assert.Contains(t, view, "2 mins ago")
}

func TestModel_NavigateAndSelect(t *testing.T) {
	m, st, _ := newTestModel(t, sampleIncidents()...)

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	assert.Equal(t, 2, m.cursor, "cursor stops at the last row")
	m, _ = update(t, m, runes("k"))
	assert.Equal(t, 1, m.cursor)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, feed.ID("1"), st.Snapshot().View.Selected)
	assert.Contains(t, m.View(), "Selected")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, st.Snapshot().View.Selected)
	assert.NotContains(t, m.View(), "┃ Selected")
}

func TestModel_Search(t *testing.T) {
	m, st, _ := newTestModel(t, sampleIncidents()...)

	m, cmd := update(t, m, runes("/"))
	assert.True(t, m.searching)
	assert.NotNil(t, cmd)

	m, _ = update(t, m, runes("ring"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.searching)
	assert.Equal(t, "ring", st.Snapshot().View.Search)
	require.Len(t, m.rows, 1)
	assert.Equal(t, feed.ID("2"), m.rows[0].ID)

	t.Run("escape keeps the previous search", func(t *testing.T) {
		m, _ := update(t, m, runes("/"))
		m, _ = update(t, m, runes("x"))
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		assert.False(t, m.searching)
		assert.Equal(t, "ring", st.Snapshot().View.Search)
		assert.Equal(t, "ring", m.search.Value())
	})
}

func TestModel_SearchKeysDoNotNavigate(t *testing.T) {
	m, _, _ := newTestModel(t, sampleIncidents()...)
	m, _ = update(t, m, runes("/"))
	m, _ = update(t, m, runes("q"))
	assert.False(t, m.quitting)
	assert.Equal(t, "q", m.search.Value())
}

func TestModel_LayerCycle(t *testing.T) {
	m, st, _ := newTestModel(t)
	m, _ = update(t, m, runes("l"))
	assert.Equal(t, store.LayerHeatmap, st.Snapshot().View.Layer)
	m, _ = update(t, m, runes("l"))
	m, _ = update(t, m, runes("l"))
	assert.Equal(t, store.LayerTraffic, st.Snapshot().View.Layer)
	assert.Contains(t, m.View(), "traffic")
}

func TestModel_Refresh(t *testing.T) {
	m, _, rf := newTestModel(t, sampleIncidents()...)
	rf.err = errors.New("connection refused")

	m, cmd := update(t, m, runes("r"))
	require.NotNil(t, cmd)
	assert.True(t, m.refreshing)
	assert.Contains(t, m.View(), "refreshing…")

	_, again := update(t, m, runes("r"))
	assert.Nil(t, again, "no second refresh while one is running")

	m, _ = update(t, m, cmd())
	assert.False(t, m.refreshing)
	assert.Equal(t, []scheduler.Key{scheduler.KeyIncidents}, rf.keys)
	assert.Contains(t, m.View(), "connection refused")
}

func TestModel_FocusRevalidates(t *testing.T) {
	m, st, rf := newTestModel(t)

	m, cmd := update(t, m, tea.FocusMsg{})
	require.NotNil(t, cmd)
	assert.Zero(t, rf.focused, "revalidation runs in the command")

	st.ReconcileIncidents(sampleIncidents())
	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, rf.focused)
	assert.Empty(t, rf.keys)
	assert.Len(t, m.rows, 3)
	assert.NoError(t, m.err)

	_, cmd = update(t, m, tea.BlurMsg{})
	assert.Nil(t, cmd)

	rf.err = errors.New("connection refused")
	m, cmd = update(t, m, tea.FocusMsg{})
	m, _ = update(t, m, cmd())
	assert.Equal(t, 2, rf.focused)
	assert.Contains(t, m.View(), "connection refused")
}

func TestModel_TickReloads(t *testing.T) {
	m, st, _ := newTestModel(t, sampleIncidents()...)
	st.ReconcileIncidents(sampleIncidents()[:1])

	assert.Len(t, m.rows, 3, "model holds its snapshot until the next tick")
	m, cmd := update(t, m, tickMsg(testNow))
	assert.NotNil(t, cmd)
	assert.Len(t, m.rows, 1)
}

func TestModel_FetchErrorShown(t *testing.T) {
	m, st, _ := newTestModel(t, sampleIncidents()...)
	st.Fail(scheduler.KeyIncidents, errors.New("api error 500: boom"))
	m, _ = update(t, m, tickMsg(testNow))

	view := m.View()
	assert.Contains(t, view, "boom")
	assert.Contains(t, view, "Tanker fire", "stale data stays visible")
}

func TestModel_Leaderboard(t *testing.T) {
	m, st, _ := newTestModel(t)
	st.ReconcileLeaderboard([]feed.LeaderboardEntry{
		{Rank: 2, Username: "bo", Points: 150},
		{Rank: 1, Username: "ana", Points: 12500},
	})
	m, _ = update(t, m, tickMsg(testNow))

	view := m.View()
	assert.Contains(t, view, "Leaderboard")
	assert.Contains(t, view, "12.5k pts")
	assert.Contains(t, view, "150 pts")
}

func TestModel_HelpAndQuit(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = update(t, m, runes("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "clear selection")

	m, cmd := update(t, m, runes("q"))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestCreateSparkline(t *testing.T) {
	assert.Contains(t, createSparkline(make([]float64, historyDays)), "no data")
	assert.NotContains(t, createSparkline([]float64{0, 1, 3, 2}), "no data")
}
