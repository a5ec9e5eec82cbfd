// Roadwatchd keeps a live, reconciled copy of the road incident feed.
//
// The daemon polls the remote incident API on the configured intervals,
// publishes incident changes to NATS when configured, and serves the
// reconciled view over a local read API.
//
// Configuration is loaded from ~/.config/roadwatch/config.yaml and
// ROADWATCH_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	roadwatchd
//
//	# Point at a different API and publish changes
//	ROADWATCH_API_BASE_URL=https://traffic.example.com \
//	ROADWATCH_EVENTS_NATS_URL=nats://localhost:4222 roadwatchd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/roadwatch/internal/config"
	"github.com/fyrsmithlabs/roadwatch/internal/events"
	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/feedsync"
	"github.com/fyrsmithlabs/roadwatch/internal/http"
	"github.com/fyrsmithlabs/roadwatch/internal/logging"
	"github.com/fyrsmithlabs/roadwatch/internal/services"
	"github.com/fyrsmithlabs/roadwatch/internal/session"
	"github.com/fyrsmithlabs/roadwatch/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/roadwatch/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  roadwatchd           Start the roadwatch daemon\n")
			fmt.Fprintf(os.Stderr, "  roadwatchd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("roadwatchd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
// Startup order:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Connects to NATS when an events URL is configured
//  4. Wires the feed client, session, store, scheduler and sync engine
//  5. Hydrates the session and starts polling
//  6. Watches the token file for logins from the CLI
//  7. Serves the read API until ctx is cancelled, then shuts down gracefully
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.FromSettings(cfg.Logging), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	zl.Info("Starting roadwatchd",
		zap.String("api", cfg.API.BaseURL),
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("incidents_interval", cfg.Polling.Incidents),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			zl.Warn("telemetry shutdown", zap.Error(err))
		}
	}()
	if err := tel.Degraded(); err != nil {
		zl.Warn("Telemetry degraded", zap.Error(err))
	}

	deps, err := initDependencies(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	reg, err := services.New(services.Options{
		Config:    cfg,
		Logger:    zl,
		Publisher: deps.publisher,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			zl.Warn("closing services", zap.Error(err))
		}
	}()

	admin := &adminWatches{engine: reg.Engine(), logger: zl}
	defer admin.stop()
	reg.Session().OnChange(func(u *feed.User) {
		admin.sync(session.CapabilitiesFor(u))
	})

	ctx = logging.WithSessionID(ctx, reg.Session().ID())
	if err := reg.Session().Init(ctx); err != nil {
		logger.Warn(ctx, "Session not restored", zap.Error(err))
	}

	stop, err := watchFeed(reg.Engine())
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	defer stop()

	if cfg.Session.Watch {
		w, err := watchTokens(ctx, config.ExpandHome(cfg.Session.TokenFile), reg.Session(), zl)
		if err != nil {
			logger.Warn(ctx, "Token file not watched", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv, err := http.NewServer(reg.Store(), reg.Engine(), reg.Session(), zl, &http.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	zl.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", cfg.Server.Addr())),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("events", deps.natsConn != nil))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// dependencies holds infrastructure outside the feed itself.
type dependencies struct {
	natsConn  *nats.Conn
	publisher events.Publisher
	logger    *zap.Logger
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.logger != nil {
		_ = d.logger.Sync()
	}
}

// initDependencies connects to NATS when configured. Without a URL changes
// are dropped.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{publisher: events.NopPublisher{}, logger: logger}
	if cfg.Events.NATSURL == "" {
		return deps, nil
	}

	nc, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Token.Value(), "roadwatchd", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Events.NATSURL, err)
	}
	logger.Info("Connected to NATS",
		zap.String("url", cfg.Events.NATSURL),
		zap.String("subject_prefix", cfg.Events.SubjectPrefix))

	deps.natsConn = nc
	deps.publisher = events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix, logger)
	return deps, nil
}

// watchFeed subscribes the public resources every client sees.
func watchFeed(engine *feedsync.Engine) (func(), error) {
	stopIncidents, err := engine.WatchIncidents()
	if err != nil {
		return nil, err
	}
	stopLeaderboard, err := engine.WatchLeaderboard()
	if err != nil {
		stopIncidents()
		return nil, err
	}
	return func() {
		stopLeaderboard()
		stopIncidents()
	}, nil
}

// adminWatches keeps the admin-only resources subscribed while the session
// user may moderate accounts.
type adminWatches struct {
	engine *feedsync.Engine
	logger *zap.Logger

	mu    sync.Mutex
	stops []func()
}

func (a *adminWatches) sync(caps session.Capabilities) {
	a.mu.Lock()
	defer a.mu.Unlock()

	watching := len(a.stops) > 0
	switch {
	case caps.CanModerateUsers && !watching:
		for _, watch := range []func() (func(), error){a.engine.WatchUsers, a.engine.WatchPendingOfficers} {
			stop, err := watch()
			if err != nil {
				a.logger.Warn("admin resource not watched", zap.Error(err))
				continue
			}
			a.stops = append(a.stops, stop)
		}
	case !caps.CanModerateUsers && watching:
		a.releaseLocked()
	}
}

func (a *adminWatches) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
}

func (a *adminWatches) releaseLocked() {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
}

// watchTokens reloads the session whenever another process rewrites the
// token file.
func watchTokens(ctx context.Context, path string, sess *session.Session, logger *zap.Logger) (*session.Watcher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	w, err := session.NewWatcher(path, func() {
		if err := sess.Reload(ctx); err != nil {
			logger.Warn("session reload failed", zap.Error(err))
			return
		}
		if u := sess.User(); u != nil {
			logger.Info("session reloaded", zap.String("username", u.Username))
		} else {
			logger.Info("session reloaded", zap.Bool("anonymous", true))
		}
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}
