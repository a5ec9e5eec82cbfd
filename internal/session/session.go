// Package session holds the authenticated user context: persisted tokens,
// the hydrated profile and the capabilities derived from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// API is the subset of the remote client the session needs.
type API interface {
	Login(ctx context.Context, username, password string) (*feed.LoginResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*feed.RefreshResponse, error)
	Profile(ctx context.Context) (*feed.User, error)
}

// Session is the explicitly scoped user context. Create one per process and
// pass it to whatever needs the current user.
type Session struct {
	api    API
	creds  *Credentials
	logger *zap.Logger
	now    func() time.Time
	id     string

	mu        sync.RWMutex
	user      *feed.User
	caps      Capabilities
	listeners []func(*feed.User)
}

// New creates an anonymous session. Call Init to hydrate it.
func New(api API, creds *Credentials, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		api:    api,
		creds:  creds,
		logger: logger.Named("session"),
		now:    time.Now,
		id:     uuid.NewString(),
	}
}

// ID identifies this session in logs.
func (s *Session) ID() string { return s.id }

// User returns a copy of the current user, or nil when anonymous.
func (s *Session) User() *feed.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Capabilities returns what the current user may do.
func (s *Session) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// Authenticated reports whether a profile is loaded.
func (s *Session) Authenticated() bool {
	return s.Capabilities().Authenticated
}

// OnChange registers fn to run whenever the user changes, including logout.
func (s *Session) OnChange(fn func(*feed.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) setUser(u *feed.User) {
	s.mu.Lock()
	s.user = u
	s.caps = CapabilitiesFor(u)
	listeners := append([]func(*feed.User){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s.User())
	}
}

// Init hydrates the session from persisted tokens. Without an access token
// the session stays anonymous and no request is made.
func (s *Session) Init(ctx context.Context) error {
	if s.creds.AccessToken() == "" {
		s.setUser(nil)
		return nil
	}
	return s.RefreshUser(ctx)
}

// Reload re-reads the token store and hydrates again. Used when another
// process changes the token file.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.creds.Reload(); err != nil {
		return fmt.Errorf("reload tokens: %w", err)
	}
	return s.Init(ctx)
}

// RefreshUser fetches the profile. If the server rejects the access token it
// refreshes once and retries; if that fails too, tokens are cleared and the
// session becomes anonymous. Transport failures leave tokens untouched.
func (s *Session) RefreshUser(ctx context.Context) error {
	if !accessExpired(s.creds.AccessToken(), s.now()) {
		user, err := s.api.Profile(ctx)
		if err == nil {
			s.setUser(user)
			return nil
		}
		if stop := s.keepTokens(ctx, err); stop != nil {
			return stop
		}
		s.logger.Debug("profile rejected, refreshing access token", zap.Int("status", feed.StatusOf(err)))
	}

	if s.creds.RefreshToken() == "" {
		return s.teardown(errors.New("no refresh token"))
	}
	resp, err := s.api.Refresh(ctx)
	if err != nil {
		if stop := s.keepTokens(ctx, err); stop != nil {
			return stop
		}
		return s.teardown(fmt.Errorf("refresh token: %w", err))
	}
	if err := s.creds.SetAccess(resp.AccessToken); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	user, err := s.api.Profile(ctx)
	if err != nil {
		if stop := s.keepTokens(ctx, err); stop != nil {
			return stop
		}
		return s.teardown(fmt.Errorf("profile after refresh: %w", err))
	}
	s.setUser(user)
	return nil
}

// keepTokens returns a non-nil error when hydration should stop without
// touching tokens: the caller was cancelled or the API was unreachable.
func (s *Session) keepTokens(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if feed.IsTransport(err) {
		return fmt.Errorf("hydrate session: %w", err)
	}
	return nil
}

// ErrSessionExpired is returned when stored credentials were rejected.
var ErrSessionExpired = errors.New("session expired")

func (s *Session) teardown(cause error) error {
	s.logger.Info("clearing rejected credentials", zap.Error(cause))
	clearErr := s.creds.Clear()
	s.setUser(nil)
	return errors.Join(fmt.Errorf("%w: %w", ErrSessionExpired, cause), clearErr)
}

// Login authenticates, persists both tokens, then loads the profile.
func (s *Session) Login(ctx context.Context, username, password string) error {
	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := s.creds.Set(Tokens{Access: resp.AccessToken, Refresh: resp.RefreshToken}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.RefreshUser(ctx)
}

// Logout revokes the token server side when possible and always clears local
// credentials.
func (s *Session) Logout(ctx context.Context) error {
	if s.creds.AccessToken() != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn("remote logout failed", zap.Error(err))
		}
	}
	err := s.creds.Clear()
	s.setUser(nil)
	return err
}
