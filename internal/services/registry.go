package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/roadwatch/internal/actions"
	"github.com/fyrsmithlabs/roadwatch/internal/config"
	"github.com/fyrsmithlabs/roadwatch/internal/events"
	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/feedsync"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/session"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"go.uber.org/zap"
)

// Registry provides access to all roadwatch components.
type Registry interface {
	Config() *config.Config
	Client() *feed.Client
	Credentials() *session.Credentials
	Session() *session.Session
	Store() *store.Store
	Scheduler() *scheduler.Scheduler
	Engine() *feedsync.Engine
	Actions() *actions.Coordinator
	Publisher() events.Publisher
	Close() error
}

// Options configures the registry.
type Options struct {
	Config *config.Config
	Logger *zap.Logger

	// TokenStore overrides the file store at Config.Session.TokenFile.
	TokenStore session.TokenStore

	// Publisher receives incident changes; nil disables events.
	Publisher events.Publisher

	// Confirmer answers destructive action prompts; nil declines them.
	Confirmer actions.Confirmer
}

// registry is the concrete implementation of Registry.
type registry struct {
	config      *config.Config
	client      *feed.Client
	credentials *session.Credentials
	session     *session.Session
	store       *store.Store
	scheduler   *scheduler.Scheduler
	engine      *feedsync.Engine
	actions     *actions.Coordinator
	publisher   events.Publisher
	logger      *zap.Logger
}

// New builds every component from opts.Config.
func New(opts Options) (Registry, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens := opts.TokenStore
	if tokens == nil {
		tokens = session.NewFileStore(config.ExpandHome(cfg.Session.TokenFile))
	}
	creds, err := session.NewCredentials(tokens)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	client, err := feed.NewClient(feed.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		UserAgent: cfg.API.UserAgent,
	}, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	pub := opts.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}

	sess := session.New(client, creds, logger)
	st := store.New(logger)
	sched := scheduler.New(st, scheduler.Config{
		FetchTimeout: cfg.Polling.FetchTimeout,
		Logger:       logger,
		Metrics:      scheduler.NewMetrics(),
	})
	engine := feedsync.New(client, st, sched, feedsync.Config{
		Intervals: feedsync.Intervals{
			Incidents:       cfg.Polling.Incidents,
			Leaderboard:     cfg.Polling.Leaderboard,
			Users:           cfg.Polling.Users,
			PendingOfficers: cfg.Polling.PendingOfficers,
			Comments:        cfg.Polling.Comments,
		},
		Publisher: pub,
		Logger:    logger,
	})
	coord := actions.New(client, st, sess, sched, actions.Config{
		ActionFeedback:      cfg.Feedback.Action.Duration(),
		ApplicationFeedback: cfg.Feedback.Application.Duration(),
		Confirmer:           opts.Confirmer,
		Logger:              logger,
		Metrics:             actions.NewMetrics(),
	})

	// Votes are a per-user guard; a different user starts clean.
	var (
		mu       sync.Mutex
		lastUser feed.ID
	)
	sess.OnChange(func(u *feed.User) {
		var id feed.ID
		if u != nil {
			id = u.ID
		}
		mu.Lock()
		changed := id != lastUser
		lastUser = id
		mu.Unlock()
		if changed {
			st.ResetVotes()
		}
	})

	return &registry{
		config:      cfg,
		client:      client,
		credentials: creds,
		session:     sess,
		store:       st,
		scheduler:   sched,
		engine:      engine,
		actions:     coord,
		publisher:   pub,
		logger:      logger,
	}, nil
}

func (r *registry) Config() *config.Config            { return r.config }
func (r *registry) Client() *feed.Client              { return r.client }
func (r *registry) Credentials() *session.Credentials { return r.credentials }
func (r *registry) Session() *session.Session         { return r.session }
func (r *registry) Store() *store.Store               { return r.store }
func (r *registry) Scheduler() *scheduler.Scheduler   { return r.scheduler }
func (r *registry) Engine() *feedsync.Engine          { return r.engine }
func (r *registry) Actions() *actions.Coordinator     { return r.actions }
func (r *registry) Publisher() events.Publisher       { return r.publisher }

// Close stops polling and flushes the publisher.
func (r *registry) Close() error {
	r.engine.Close()
	return errors.Join(r.scheduler.Close(), r.publisher.Close())
}
