package store

import (
	"fmt"
	"maps"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
)

// Select selects id if it resolves to a known incident. An unknown id
// leaves no selection and returns false.
func (s *Store) Select(id feed.ID) bool {
	found := false
	s.update(func(next *State) ([]Change, bool) {
		if _, found = next.Incident(id); !found {
			if next.View.Selected == "" {
				return nil, false
			}
			next.View.Selected = ""
			return nil, true
		}
		if next.View.Selected == id {
			return nil, false
		}
		next.View.Selected = id
		return nil, true
	})
	return found
}

// ClearSelection closes the detail panel.
func (s *Store) ClearSelection() {
	s.update(func(next *State) ([]Change, bool) {
		if next.View.Selected == "" {
			return nil, false
		}
		next.View.Selected = ""
		return nil, true
	})
}

// SetSearch sets the free-text filter.
func (s *Store) SetSearch(q string) {
	s.update(func(next *State) ([]Change, bool) {
		if next.View.Search == q {
			return nil, false
		}
		next.View.Search = q
		return nil, true
	})
}

// SetLayer switches the map layer.
func (s *Store) SetLayer(l Layer) error {
	if !l.Valid() {
		return fmt.Errorf("unknown layer %q", l)
	}
	s.update(func(next *State) ([]Change, bool) {
		if next.View.Layer == l {
			return nil, false
		}
		next.View.Layer = l
		return nil, true
	})
	return nil
}

// Expand opens the comment thread of a known incident. Threads load lazily;
// see feedsync.
func (s *Store) Expand(id feed.ID) bool {
	found := false
	s.update(func(next *State) ([]Change, bool) {
		if _, found = next.Incident(id); !found || next.View.Expanded[id] {
			return nil, false
		}
		next.View.Expanded = maps.Clone(next.View.Expanded)
		next.View.Expanded[id] = true
		return nil, true
	})
	return found
}

// Collapse closes a thread and drops its comments.
func (s *Store) Collapse(id feed.ID) {
	s.update(func(next *State) ([]Change, bool) {
		if !next.View.Expanded[id] {
			return nil, false
		}
		next.View.Expanded = maps.Clone(next.View.Expanded)
		delete(next.View.Expanded, id)
		next.Comments = maps.Clone(next.Comments)
		delete(next.Comments, id)
		next.Resources = maps.Clone(next.Resources)
		delete(next.Resources, scheduler.CommentsKey(id))
		return nil, true
	})
}

// MarkVoted records a vote on a comment for this session. It returns false
// if the comment was already marked.
func (s *Store) MarkVoted(commentID feed.ID) bool {
	return s.update(func(next *State) ([]Change, bool) {
		if next.View.Voted[commentID] {
			return nil, false
		}
		next.View.Voted = maps.Clone(next.View.Voted)
		next.View.Voted[commentID] = true
		return nil, true
	})
}

// HasVoted reports whether this session voted on commentID.
func (s *Store) HasVoted(commentID feed.ID) bool {
	return s.Snapshot().View.Voted[commentID]
}

// ResetVotes forgets session votes, e.g. after the user changes.
func (s *Store) ResetVotes() {
	s.update(func(next *State) ([]Change, bool) {
		if len(next.View.Voted) == 0 {
			return nil, false
		}
		next.View.Voted = map[feed.ID]bool{}
		return nil, true
	})
}

// SetMarker sets feedback on target and returns a token for ClearMarker.
func (s *Store) SetMarker(target string, state MarkerState, message string) uint64 {
	token := s.tokens.Add(1)
	s.update(func(next *State) ([]Change, bool) {
		next.View.Markers = maps.Clone(next.View.Markers)
		next.View.Markers[target] = Marker{State: state, Message: message, Token: token, SetAt: s.now()}
		return nil, true
	})
	return token
}

// BeginAction sets a pending marker on target unless one is already there.
// The check and the set are one mutation, so two concurrent actions on the
// same target cannot both begin.
func (s *Store) BeginAction(target string) (uint64, bool) {
	token := s.tokens.Add(1)
	ok := s.update(func(next *State) ([]Change, bool) {
		if m, busy := next.View.Markers[target]; busy && m.State == MarkerPending {
			return nil, false
		}
		next.View.Markers = maps.Clone(next.View.Markers)
		next.View.Markers[target] = Marker{State: MarkerPending, Token: token, SetAt: s.now()}
		return nil, true
	})
	return token, ok
}

// ClearMarker removes the marker on target only if it still carries token,
// so a newer action's feedback is never cleared by an older timer.
func (s *Store) ClearMarker(target string, token uint64) bool {
	return s.update(func(next *State) ([]Change, bool) {
		m, ok := next.View.Markers[target]
		if !ok || m.Token != token {
			return nil, false
		}
		next.View.Markers = maps.Clone(next.View.Markers)
		delete(next.View.Markers, target)
		return nil, true
	})
}

// IncidentTarget names the marker target for an incident.
func IncidentTarget(id feed.ID) string { return "incident:" + string(id) }

// CommentTarget names the marker target for a comment.
func CommentTarget(id feed.ID) string { return "comment:" + string(id) }

// UserTarget names the marker target for a user row.
func UserTarget(id feed.ID) string { return "user:" + string(id) }
