package http

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.store.Snapshot().Version})
}

// handleIncidents lists markers, optionally narrowed by search text and
// category.
func (s *Server) handleIncidents(c echo.Context) error {
	snap := s.store.Snapshot()

	search := c.QueryParam("q")
	if search == "" {
		search = snap.View.Search
	}
	markers := projection.Markers(snap.Incidents, search, s.now())

	if raw := c.QueryParam("category"); raw != "" {
		cat := projection.Category(strings.ToLower(raw))
		if !validCategory(cat) {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
		}
		markers = projection.FilterCategory(markers, cat)
	}
	if markers == nil {
		markers = []projection.Marker{}
	}

	return c.JSON(http.StatusOK, IncidentsResponse{
		Incidents: markers,
		Selected:  snap.View.Selected,
		Layer:     snap.View.Layer,
		Version:   snap.Version,
	})
}

func validCategory(c projection.Category) bool {
	for _, known := range projection.Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (s *Server) handleIncident(c echo.Context) error {
	snap := s.store.Snapshot()
	id := feed.ID(c.Param("id"))
	inc, ok := snap.Incident(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "incident not found")
	}

	now := s.now()
	resp := IncidentResponse{
		Incident: projection.MarkerFor(inc, now),
		Selected: snap.View.Selected == id,
	}
	for _, cm := range snap.Comments[id] {
		resp.Comments = append(resp.Comments, CommentView{
			Comment: cm,
			Time:    projection.ShortTimeAgo(cm.CreatedAt.Time, now),
			Voted:   snap.View.Voted[cm.ID],
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSelect(c echo.Context) error {
	id := feed.ID(c.Param("id"))
	if !s.store.Select(id) {
		return echo.NewHTTPError(http.StatusNotFound, "incident not found")
	}
	return c.JSON(http.StatusOK, SelectionResponse{Selected: id})
}

func (s *Server) handleClearSelection(c echo.Context) error {
	s.store.ClearSelection()
	return c.JSON(http.StatusOK, SelectionResponse{})
}

// handleRefresh forces a revalidation and waits for it.
func (s *Server) handleRefresh(c echo.Context) error {
	key := scheduler.Key(strings.Trim(c.Param("*"), "/"))
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resource key is required")
	}

	err := s.refresher.Refresh(c.Request().Context(), key)
	if errors.Is(err, scheduler.ErrNotLive) {
		return echo.NewHTTPError(http.StatusNotFound, "resource is not watched")
	}
	if err != nil {
		s.logger.Warn("refresh failed", zap.String("resource.key", key.String()), zap.Error(err))
	}
	return revalidated(c, err)
}

// handleFocus revalidates every watched resource that refreshes on focus,
// as a client regaining focus would.
func (s *Server) handleFocus(c echo.Context) error {
	err := s.refresher.Focus(c.Request().Context())
	if err != nil {
		s.logger.Warn("focus revalidation failed", zap.Error(err))
	}
	return revalidated(c, err)
}

func revalidated(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, scheduler.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
	}
	status := feed.StatusOf(err)
	if status == 0 {
		status = http.StatusBadGateway
	}
	return echo.NewHTTPError(status, forms.ActionMessage(err))
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	var current string
	if s.identity != nil {
		if u := s.identity.User(); u != nil {
			current = u.Username
		}
	}
	rows := projection.LeaderboardRows(s.store.Snapshot().Leaderboard, current)
	if rows == nil {
		rows = []projection.LeaderboardRow{}
	}
	return c.JSON(http.StatusOK, LeaderboardResponse{Rows: rows})
}

func (s *Server) handleLogs(c echo.Context) error {
	logs := projection.SystemLogs(s.store.Snapshot().Incidents)
	if raw := c.QueryParam("level"); raw != "" && raw != "all" {
		level := projection.LogLevel(raw)
		if !level.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown log level")
		}
		logs = projection.FilterLogs(logs, level)
	}
	if logs == nil {
		logs = []projection.LogEntry{}
	}
	return c.JSON(http.StatusOK, LogsResponse{Logs: logs})
}

func (s *Server) handleStats(c echo.Context) error {
	snap := s.store.Snapshot()
	return c.JSON(http.StatusOK, projection.Analytics(snap.Incidents, snap.Users, s.now()))
}

func (s *Server) handleResources(c echo.Context) error {
	snap := s.store.Snapshot()
	out := make([]ResourceView, 0, len(snap.Resources))
	for key, st := range snap.Resources {
		v := ResourceView{Key: key.String(), Loaded: st.Loaded, UpdatedAt: st.UpdatedAt}
		if st.Err != nil {
			v.Error = st.Err.Error()
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return c.JSON(http.StatusOK, ResourcesResponse{Resources: out})
}
