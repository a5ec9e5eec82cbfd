// Package store holds the reconciled local view of the remote feed.
//
// Every mutation builds a new State from the current one and swaps it in
// whole, so readers holding a snapshot never see a partial update. Remote
// collections are replaced by identity: the newest delivery for a key wins,
// in arrival order. UI-only state (selection, expansion, votes, markers) is
// carried across replacements and pruned when it stops referring to
// anything.
package store

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"go.uber.org/zap"
)

// Listener receives every new snapshot and the incident changes it carries.
// Listeners run in order of mutation and must not mutate the store
// synchronously.
type Listener func(state *State, changes []Change)

// Store is the single writer of State.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	notifyMu  sync.Mutex
	state     atomic.Pointer[State]
	listeners []Listener
	tokens    atomic.Uint64
}

// New returns an empty store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger.Named("store"), now: time.Now}
	s.state.Store(emptyState())
	return s
}

// Snapshot returns the current state. Callers must treat it as read-only.
func (s *Store) Snapshot() *State {
	return s.state.Load()
}

// OnChange registers fn for every later snapshot.
func (s *Store) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// update applies fn to a shallow copy of the current state. fn returns
// false to leave the state untouched.
func (s *Store) update(fn func(next *State) ([]Change, bool)) bool {
	s.mu.Lock()
	cur := s.state.Load()
	next := *cur
	changes, ok := fn(&next)
	if !ok {
		s.mu.Unlock()
		return false
	}
	next.Version = cur.Version + 1
	s.state.Store(&next)
	listeners := s.listeners

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range listeners {
		fn(&next, changes)
	}
	return true
}

func (s *Store) markLoaded(next *State, key scheduler.Key) {
	next.Resources = maps.Clone(next.Resources)
	next.Resources[key] = ResourceStatus{Loaded: true, UpdatedAt: s.now()}
}

// ReconcileIncidents replaces the incident collection. A selection that no
// longer resolves is cleared. Vanished incidents lose their expansion,
// thread, thread status and settled feedback markers; pending markers stay
// until their action settles. The first load establishes a baseline and
// reports no changes.
func (s *Store) ReconcileIncidents(incidents []feed.Incident) []Change {
	var out []Change
	s.update(func(next *State) ([]Change, bool) {
		fresh := append([]feed.Incident(nil), incidents...)
		prev := next.Incidents
		if next.Status(scheduler.KeyIncidents).Loaded {
			out = diffIncidents(next.Incidents, fresh)
		}
		next.Incidents = fresh
		s.markLoaded(next, scheduler.KeyIncidents)

		present := make(map[feed.ID]bool, len(fresh))
		for _, inc := range fresh {
			present[inc.ID] = true
		}
		if next.View.Selected != "" && !present[next.View.Selected] {
			s.logger.Debug("selected incident disappeared", zap.String("incident.id", next.View.Selected.String()))
			next.View.Selected = ""
		}
		expanded := make(map[feed.ID]bool, len(next.View.Expanded))
		comments := make(map[feed.ID][]feed.Comment, len(next.Comments))
		for id := range next.View.Expanded {
			if present[id] {
				expanded[id] = true
				if thread, ok := next.Comments[id]; ok {
					comments[id] = thread
				}
			}
		}
		pruneVanished(next, prev, present)
		next.View.Expanded = expanded
		next.Comments = comments
		return out, true
	})
	return out
}

// pruneVanished drops thread statuses and settled markers that belong to
// incidents of prev missing from present. It runs before next.Comments is
// replaced so the old threads still name their comments.
func pruneVanished(next *State, prev []feed.Incident, present map[feed.ID]bool) {
	var stale []scheduler.Key
	for key := range next.Resources {
		if id, ok := key.IncidentOf(); ok && !present[id] {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		next.Resources = maps.Clone(next.Resources)
		for _, key := range stale {
			delete(next.Resources, key)
		}
	}

	var targets []string
	for id, thread := range next.Comments {
		if present[id] {
			continue
		}
		for _, c := range thread {
			targets = append(targets, CommentTarget(c.ID))
		}
	}
	for _, inc := range prev {
		if !present[inc.ID] {
			targets = append(targets, IncidentTarget(inc.ID))
		}
	}
	cloned := false
	for _, target := range targets {
		m, ok := next.View.Markers[target]
		if !ok || m.State == MarkerPending {
			continue
		}
		if !cloned {
			next.View.Markers = maps.Clone(next.View.Markers)
			cloned = true
		}
		delete(next.View.Markers, target)
	}
}

// ReconcileComments replaces one thread. Threads that are not expanded are
// discarded and false is returned.
func (s *Store) ReconcileComments(incidentID feed.ID, comments []feed.Comment) bool {
	return s.update(func(next *State) ([]Change, bool) {
		if !next.View.Expanded[incidentID] {
			return nil, false
		}
		next.Comments = maps.Clone(next.Comments)
		next.Comments[incidentID] = append([]feed.Comment(nil), comments...)
		s.markLoaded(next, scheduler.CommentsKey(incidentID))
		return nil, true
	})
}

// ReconcileLeaderboard replaces the leaderboard.
func (s *Store) ReconcileLeaderboard(entries []feed.LeaderboardEntry) {
	s.update(func(next *State) ([]Change, bool) {
		next.Leaderboard = append([]feed.LeaderboardEntry(nil), entries...)
		s.markLoaded(next, scheduler.KeyLeaderboard)
		return nil, true
	})
}

// ReconcileUsers replaces the admin user list.
func (s *Store) ReconcileUsers(users []feed.User) {
	s.update(func(next *State) ([]Change, bool) {
		next.Users = append([]feed.User(nil), users...)
		s.markLoaded(next, scheduler.KeyUsers)
		return nil, true
	})
}

// ReconcilePendingOfficers replaces the officer application queue.
func (s *Store) ReconcilePendingOfficers(users []feed.User) {
	s.update(func(next *State) ([]Change, bool) {
		next.PendingOfficers = append([]feed.User(nil), users...)
		s.markLoaded(next, scheduler.KeyPendingOfficers)
		return nil, true
	})
}

// Deliver routes a fetched collection to its reconcile method. It
// implements scheduler.Sink.
func (s *Store) Deliver(key scheduler.Key, data any) {
	var err error
	switch v := data.(type) {
	case []feed.Incident:
		if key != scheduler.KeyIncidents {
			err = fmt.Errorf("incidents delivered for %s", key)
			break
		}
		s.ReconcileIncidents(v)
	case []feed.LeaderboardEntry:
		s.ReconcileLeaderboard(v)
	case []feed.User:
		switch key {
		case scheduler.KeyUsers:
			s.ReconcileUsers(v)
		case scheduler.KeyPendingOfficers:
			s.ReconcilePendingOfficers(v)
		default:
			err = fmt.Errorf("users delivered for %s", key)
		}
	case []feed.Comment:
		id, ok := key.IncidentOf()
		if !ok {
			err = fmt.Errorf("comments delivered for %s", key)
			break
		}
		s.ReconcileComments(id, v)
	default:
		err = fmt.Errorf("unexpected %T delivered for %s", data, key)
	}
	if err != nil {
		s.logger.Warn("dropping delivery", zap.String("resource.key", key.String()), zap.Error(err))
		s.Fail(key, err)
	}
}

// Fail records a fetch failure for key. Previously delivered data stays.
// It implements scheduler.Sink.
func (s *Store) Fail(key scheduler.Key, err error) {
	s.update(func(next *State) ([]Change, bool) {
		if id, ok := key.IncidentOf(); ok && !next.View.Expanded[id] {
			return nil, false
		}
		next.Resources = maps.Clone(next.Resources)
		st := next.Resources[key]
		st.Err = err
		next.Resources[key] = st
		return nil, true
	})
}
