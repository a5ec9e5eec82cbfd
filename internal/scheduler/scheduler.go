// Package scheduler keeps subscribed remote collections fresh.
//
// Each live key has one polling loop. Revalidations of the same key that
// overlap in time share one fetch. Results go to a Sink; results for keys
// that lost their last subscriber while the fetch was in flight are dropped.
// A failed fetch is reported to the sink and retried on the next tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("roadwatch/scheduler")

var (
	// ErrNotLive is returned when revalidating a key nobody subscribes to.
	ErrNotLive = errors.New("resource not subscribed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("scheduler closed")
)

// FetchFunc loads the full collection for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Resource describes how to keep one key fresh.
type Resource struct {
	Key Key

	// Interval between polls. Zero disables polling; the key is then only
	// fetched on subscribe and on explicit revalidation.
	Interval time.Duration

	// RevalidateOnFocus includes the key in Focus.
	RevalidateOnFocus bool

	Fetch FetchFunc
}

// Sink receives fetch outcomes for live keys.
type Sink interface {
	Deliver(key Key, data any)
	Fail(key Key, err error)
}

// Config tunes a Scheduler.
type Config struct {
	// FetchTimeout bounds each fetch. Zero means no timeout.
	FetchTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *Metrics
}

type entry struct {
	res  Resource
	refs int
	stop chan struct{}
}

// Scheduler polls and revalidates subscribed resources.
type Scheduler struct {
	sink         Sink
	fetchTimeout time.Duration
	logger       *zap.Logger
	metrics      *Metrics

	base   context.Context
	cancel context.CancelFunc
	group  singleflight.Group
	wg     sync.WaitGroup

	mu       sync.Mutex
	entries  map[Key]*entry
	inflight map[Key]bool
	closed   bool
}

// New creates a scheduler delivering to sink.
func New(sink Sink, cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sink:         sink,
		fetchTimeout: cfg.FetchTimeout,
		logger:       logger.Named("scheduler"),
		metrics:      cfg.Metrics,
		base:         base,
		cancel:       cancel,
		entries:      make(map[Key]*entry),
		inflight:     make(map[Key]bool),
	}
}

// Subscribe registers interest in res.Key and returns the function that
// drops it. The first subscriber triggers an immediate fetch and starts the
// polling loop; later subscribers share it. The loop stops when the last
// subscriber unsubscribes.
func (s *Scheduler) Subscribe(res Resource) (func(), error) {
	if res.Key == "" || res.Fetch == nil {
		return nil, fmt.Errorf("subscribe: resource needs a key and a fetch function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.entries[res.Key]
	if ok {
		e.refs++
		return s.unsubscriber(res.Key, e), nil
	}

	e = &entry{res: res, refs: 1, stop: make(chan struct{})}
	s.entries[res.Key] = e
	s.metrics.setLive(len(s.entries))
	s.wg.Add(1)
	go s.poll(e)

	s.logger.Debug("resource subscribed",
		zap.String("key", res.Key.String()),
		zap.Duration("interval", res.Interval))
	return s.unsubscriber(res.Key, e), nil
}

func (s *Scheduler) unsubscriber(key Key, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			e.refs--
			if e.refs > 0 || s.entries[key] != e {
				return
			}
			delete(s.entries, key)
			close(e.stop)
			s.metrics.setLive(len(s.entries))
			s.logger.Debug("resource released", zap.String("key", key.String()))
		})
	}
}

func (s *Scheduler) poll(e *entry) {
	defer s.wg.Done()

	key := e.res.Key
	s.revalidateInBackground(key)
	if e.res.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(e.res.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-s.base.Done():
			return
		case <-ticker.C:
			s.revalidateInBackground(key)
		}
	}
}

// revalidateInBackground swallows failures; the sink has already been told.
func (s *Scheduler) revalidateInBackground(key Key) {
	if err := s.Revalidate(s.base, key); err != nil && !errors.Is(err, ErrNotLive) && !errors.Is(err, ErrClosed) {
		s.logger.Debug("background revalidation failed",
			zap.String("key", key.String()),
			zap.Error(err))
	}
}

// Revalidate fetches key now, or joins a fetch already in flight for it.
// Cancelling ctx returns early but does not abort the shared fetch.
func (s *Scheduler) Revalidate(ctx context.Context, key Key) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("revalidate %s: %w", key, ErrNotLive)
	}
	fetch := e.res.Fetch
	if s.inflight[key] {
		s.metrics.recordCoalesced(key)
	}
	s.mu.Unlock()

	ch := s.group.DoChan(string(key), func() (any, error) {
		return nil, s.fetch(key, fetch)
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fetch(key Key, fetch FetchFunc) error {
	s.setInflight(key, true)
	defer s.setInflight(key, false)

	ctx := s.base
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "scheduler.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("resource.key", key.String()))

	start := time.Now()
	data, err := fetch(ctx)
	elapsed := time.Since(start).Seconds()

	if !s.Live(key) {
		s.metrics.recordFetch(key, "discarded", elapsed)
		s.logger.Debug("discarding result for released resource", zap.String("key", key.String()))
		return err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.recordFetch(key, "error", elapsed)
		s.sink.Fail(key, err)
		return err
	}
	s.metrics.recordFetch(key, "ok", elapsed)
	s.sink.Deliver(key, data)
	return nil
}

func (s *Scheduler) setInflight(key Key, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.inflight[key] = true
	} else {
		delete(s.inflight, key)
	}
}

// Focus revalidates every live key that asked for it. It waits for all of
// them and returns the first error.
func (s *Scheduler) Focus(ctx context.Context) error {
	s.mu.Lock()
	var keys []Key
	for k, e := range s.entries {
		if e.res.RevalidateOnFocus {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, k := range keys {
		g.Go(func() error { return s.Revalidate(ctx, k) })
	}
	return g.Wait()
}

// Live reports whether key has a subscriber.
func (s *Scheduler) Live(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Keys returns the live keys in sorted order.
func (s *Scheduler) Keys() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Close stops every polling loop and waits for them. In-flight fetches are
// cancelled.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for k, e := range s.entries {
		close(e.stop)
		delete(s.entries, k)
	}
	s.metrics.setLive(0)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}
