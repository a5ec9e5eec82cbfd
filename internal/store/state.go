package store

import (
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
)

// Layer is the active map layer.
type Layer string

const (
	LayerTraffic   Layer = "traffic"
	LayerHeatmap   Layer = "heatmap"
	LayerSatellite Layer = "satellite"
)

var layers = []Layer{LayerTraffic, LayerHeatmap, LayerSatellite}

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	for _, v := range layers {
		if v == l {
			return true
		}
	}
	return false
}

// Next cycles through the layers in display order.
func (l Layer) Next() Layer {
	for i, v := range layers {
		if v == l {
			return layers[(i+1)%len(layers)]
		}
	}
	return LayerTraffic
}

// MarkerState is the transient feedback shown on an item after an action.
type MarkerState string

const (
	MarkerPending   MarkerState = "pending"
	MarkerSucceeded MarkerState = "succeeded"
	MarkerFailed    MarkerState = "failed"
)

// Marker is per-item action feedback. Token identifies the action that set it.
type Marker struct {
	State   MarkerState `json:"state"`
	Message string      `json:"message,omitempty"`
	Token   uint64      `json:"-"`
	SetAt   time.Time   `json:"set_at"`
}

// ResourceStatus tracks the last fetch outcome for a key. Err is the most
// recent failure and is cleared by the next successful delivery; the data
// from earlier deliveries is kept either way.
type ResourceStatus struct {
	Loaded    bool
	Err       error
	UpdatedAt time.Time
}

// ViewState is local UI state that never leaves the process. Maps are
// replaced, never edited in place.
type ViewState struct {
	Layer    Layer
	Search   string
	Selected feed.ID
	Expanded map[feed.ID]bool
	Voted    map[feed.ID]bool
	Markers  map[string]Marker
}

// State is one immutable snapshot of everything the views render.
type State struct {
	Version         uint64
	Incidents       []feed.Incident
	Comments        map[feed.ID][]feed.Comment
	Leaderboard     []feed.LeaderboardEntry
	Users           []feed.User
	PendingOfficers []feed.User
	Resources       map[scheduler.Key]ResourceStatus
	View            ViewState
}

// Incident looks up an incident by id.
func (s *State) Incident(id feed.ID) (feed.Incident, bool) {
	for _, inc := range s.Incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return feed.Incident{}, false
}

// SelectedIncident resolves the current selection.
func (s *State) SelectedIncident() (feed.Incident, bool) {
	if s.View.Selected == "" {
		return feed.Incident{}, false
	}
	return s.Incident(s.View.Selected)
}

// Status returns the fetch status of key.
func (s *State) Status(key scheduler.Key) ResourceStatus {
	return s.Resources[key]
}

// Marker returns the feedback marker on target, if any.
func (s *State) Marker(target string) (Marker, bool) {
	m, ok := s.View.Markers[target]
	return m, ok
}

func emptyState() *State {
	return &State{
		Comments:  map[feed.ID][]feed.Comment{},
		Resources: map[scheduler.Key]ResourceStatus{},
		View: ViewState{
			Layer:    LayerTraffic,
			Expanded: map[feed.ID]bool{},
			Voted:    map[feed.ID]bool{},
			Markers:  map[string]Marker{},
		},
	}
}

// ChangeKind classifies an incident difference between two snapshots.
type ChangeKind string

const (
	ChangeAdded         ChangeKind = "added"
	ChangeStatusChanged ChangeKind = "status_changed"
	ChangeRemoved       ChangeKind = "removed"
)

// Change is one incident difference produced by a reconcile.
type Change struct {
	Kind           ChangeKind          `json:"kind"`
	Incident       feed.Incident       `json:"incident"`
	PreviousStatus feed.IncidentStatus `json:"previous_status,omitempty"`
}

// diffIncidents compares two full snapshots by id.
func diffIncidents(prev, next []feed.Incident) []Change {
	before := make(map[feed.ID]feed.Incident, len(prev))
	for _, inc := range prev {
		before[inc.ID] = inc
	}

	var changes []Change
	seen := make(map[feed.ID]bool, len(next))
	for _, inc := range next {
		seen[inc.ID] = true
		old, ok := before[inc.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, Incident: inc})
		case old.Status != inc.Status:
			changes = append(changes, Change{Kind: ChangeStatusChanged, Incident: inc, PreviousStatus: old.Status})
		}
	}
	for _, inc := range prev {
		if !seen[inc.ID] {
			changes = append(changes, Change{Kind: ChangeRemoved, Incident: inc})
		}
	}
	return changes
}
