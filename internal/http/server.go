// Package http serves the local read API of roadwatchd.
package http

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Refresher forces a revalidation of a watched resource, or of every
// resource that refreshes on focus.
type Refresher interface {
	Refresh(ctx context.Context, key scheduler.Key) error
	Focus(ctx context.Context) error
}

// Identity reports the signed-in user, or nil.
type Identity interface {
	User() *feed.User
}

// Server exposes store snapshots over HTTP.
type Server struct {
	echo      *echo.Echo
	store     *store.Store
	refresher Refresher
	identity  Identity
	logger    *zap.Logger
	config    *Config
	now       func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. identity may be nil.
func NewServer(st *store.Store, rf Refresher, identity Identity, logger *zap.Logger, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if rf == nil {
		return nil, fmt.Errorf("refresher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		store:     st,
		refresher: rf,
		identity:  identity,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/incidents", s.handleIncidents)
	v1.GET("/incidents/:id", s.handleIncident)
	v1.PUT("/selection/:id", s.handleSelect)
	v1.DELETE("/selection", s.handleClearSelection)
	// Keys may contain a slash (admin/users).
	v1.POST("/refresh/*", s.handleRefresh)
	v1.POST("/focus", s.handleFocus)
	v1.GET("/leaderboard", s.handleLeaderboard)
	v1.GET("/logs", s.handleLogs)
	v1.GET("/stats", s.handleStats)
	v1.GET("/resources", s.handleResources)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
