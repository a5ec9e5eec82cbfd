package http

import (
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version uint64 `json:"version"`
}

// IncidentsResponse is the response body for GET /api/v1/incidents.
type IncidentsResponse struct {
	Incidents []projection.Marker `json:"incidents"`
	Selected  feed.ID             `json:"selected,omitempty"`
	Layer     store.Layer         `json:"layer"`
	Version   uint64              `json:"version"`
}

// IncidentResponse is the response body for GET /api/v1/incidents/:id.
type IncidentResponse struct {
	Incident projection.Marker `json:"incident"`
	Selected bool              `json:"selected"`
	Comments []CommentView     `json:"comments,omitempty"`
}

// CommentView is a comment with its display time.
type CommentView struct {
	feed.Comment
	Time  string `json:"time"`
	Voted bool   `json:"voted"`
}

// SelectionResponse is the response body for the selection endpoints.
type SelectionResponse struct {
	Selected feed.ID `json:"selected,omitempty"`
}

// LeaderboardResponse is the response body for GET /api/v1/leaderboard.
type LeaderboardResponse struct {
	Rows []projection.LeaderboardRow `json:"rows"`
}

// LogsResponse is the response body for GET /api/v1/logs.
type LogsResponse struct {
	Logs []projection.LogEntry `json:"logs"`
}

// ResourceView is the fetch status of one resource.
type ResourceView struct {
	Key       string    `json:"key"`
	Loaded    bool      `json:"loaded"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ResourcesResponse is the response body for GET /api/v1/resources.
type ResourcesResponse struct {
	Resources []ResourceView `json:"resources"`
}
