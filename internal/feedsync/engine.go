// Package feedsync binds what the views are interested in to scheduler
// subscriptions, and forwards reconciled incident changes to a publisher.
package feedsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/events"
	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"go.uber.org/zap"
)

// ErrUnknownIncident is returned when expanding a thread of an incident that
// is not in the current snapshot.
var ErrUnknownIncident = errors.New("unknown incident")

// API is the read side of the remote client.
type API interface {
	ListIncidents(ctx context.Context) ([]feed.Incident, error)
	Leaderboard(ctx context.Context) ([]feed.LeaderboardEntry, error)
	ListUsers(ctx context.Context) ([]feed.User, error)
	PendingOfficers(ctx context.Context) ([]feed.User, error)
	ListComments(ctx context.Context, incidentID feed.ID) ([]feed.Comment, error)
}

// Intervals are the polling periods per resource. Zero means fetch on
// subscribe and on demand only.
type Intervals struct {
	Incidents       time.Duration
	Leaderboard     time.Duration
	Users           time.Duration
	PendingOfficers time.Duration
	Comments        time.Duration
}

// Config tunes an Engine.
type Config struct {
	Intervals Intervals
	Publisher events.Publisher
	Logger    *zap.Logger
}

// Engine owns the view interest of one process.
type Engine struct {
	api       API
	store     *store.Store
	sched     *scheduler.Scheduler
	intervals Intervals
	publisher events.Publisher
	logger    *zap.Logger

	mu      sync.Mutex
	threads map[feed.ID]func()
}

// New wires an engine. Incident changes from every reconcile are published.
func New(api API, st *store.Store, sched *scheduler.Scheduler, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	e := &Engine{
		api:       api,
		store:     st,
		sched:     sched,
		intervals: cfg.Intervals,
		publisher: pub,
		logger:    logger.Named("feedsync"),
		threads:   make(map[feed.ID]func()),
	}
	st.OnChange(e.onChange)
	return e
}

func (e *Engine) onChange(state *store.State, changes []store.Change) {
	if len(changes) > 0 {
		if err := e.publisher.Publish(context.Background(), changes); err != nil {
			e.logger.Warn("publishing incident changes", zap.Error(err))
		}
	}

	// Threads whose incident vanished were collapsed by the reconcile; stop
	// polling them too.
	var stale []func()
	e.mu.Lock()
	for id, unsub := range e.threads {
		if !state.View.Expanded[id] {
			stale = append(stale, unsub)
			delete(e.threads, id)
		}
	}
	e.mu.Unlock()
	for _, unsub := range stale {
		unsub()
	}
}

func fetcher[T any](fn func(context.Context) ([]T, error)) scheduler.FetchFunc {
	return func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// WatchIncidents keeps the incident list fresh, including on focus.
func (e *Engine) WatchIncidents() (func(), error) {
	return e.sched.Subscribe(scheduler.Resource{
		Key:               scheduler.KeyIncidents,
		Interval:          e.intervals.Incidents,
		RevalidateOnFocus: true,
		Fetch:             fetcher(e.api.ListIncidents),
	})
}

// WatchLeaderboard keeps the leaderboard fresh.
func (e *Engine) WatchLeaderboard() (func(), error) {
	return e.sched.Subscribe(scheduler.Resource{
		Key:      scheduler.KeyLeaderboard,
		Interval: e.intervals.Leaderboard,
		Fetch:    fetcher(e.api.Leaderboard),
	})
}

// WatchUsers keeps the admin user list fresh.
func (e *Engine) WatchUsers() (func(), error) {
	return e.sched.Subscribe(scheduler.Resource{
		Key:               scheduler.KeyUsers,
		Interval:          e.intervals.Users,
		RevalidateOnFocus: true,
		Fetch:             fetcher(e.api.ListUsers),
	})
}

// WatchPendingOfficers keeps the officer application queue fresh.
func (e *Engine) WatchPendingOfficers() (func(), error) {
	return e.sched.Subscribe(scheduler.Resource{
		Key:               scheduler.KeyPendingOfficers,
		Interval:          e.intervals.PendingOfficers,
		RevalidateOnFocus: true,
		Fetch:             fetcher(e.api.PendingOfficers),
	})
}

// ExpandComments opens a thread and starts loading it. Expanding an open
// thread is a no-op.
func (e *Engine) ExpandComments(id feed.ID) error {
	if !e.store.Expand(id) {
		return fmt.Errorf("expand %s: %w", id, ErrUnknownIncident)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.threads[id]; ok {
		return nil
	}
	unsub, err := e.sched.Subscribe(scheduler.Resource{
		Key:      scheduler.CommentsKey(id),
		Interval: e.intervals.Comments,
		Fetch: fetcher(func(ctx context.Context) ([]feed.Comment, error) {
			return e.api.ListComments(ctx, id)
		}),
	})
	if err != nil {
		return fmt.Errorf("subscribe comments %s: %w", id, err)
	}
	if !e.store.Snapshot().View.Expanded[id] {
		// The incident vanished while subscribing.
		unsub()
		return fmt.Errorf("expand %s: %w", id, ErrUnknownIncident)
	}
	e.threads[id] = unsub
	return nil
}

// CollapseComments closes a thread and stops polling it. A fetch already in
// flight completes and is discarded.
func (e *Engine) CollapseComments(id feed.ID) {
	e.mu.Lock()
	unsub, ok := e.threads[id]
	delete(e.threads, id)
	e.mu.Unlock()

	if ok {
		unsub()
	}
	e.store.Collapse(id)
}

// Refresh revalidates key now.
func (e *Engine) Refresh(ctx context.Context, key scheduler.Key) error {
	return e.sched.Revalidate(ctx, key)
}

// Focus revalidates everything that refreshes on focus.
func (e *Engine) Focus(ctx context.Context) error {
	return e.sched.Focus(ctx)
}

// Close releases every open thread.
func (e *Engine) Close() {
	e.mu.Lock()
	threads := e.threads
	e.threads = make(map[feed.ID]func())
	e.mu.Unlock()
	for _, unsub := range threads {
		unsub()
	}
}
