package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI scripts responses per method and records calls in order.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	profiles []profileResult
	refresh  *feed.RefreshResponse
	refErr   error
	login    *feed.LoginResponse
	loginErr error
	logout   error
	tokens   *Credentials
	seen     []string // access token seen by each Profile call
}

type profileResult struct {
	user *feed.User
	err  error
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAPI) Login(ctx context.Context, u, p string) (*feed.LoginResponse, error) {
	f.record("login")
	return f.login, f.loginErr
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.record("logout")
	return f.logout
}

func (f *fakeAPI) Refresh(ctx context.Context) (*feed.RefreshResponse, error) {
	f.record("refresh")
	return f.refresh, f.refErr
}

func (f *fakeAPI) Profile(ctx context.Context) (*feed.User, error) {
	f.record("profile")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens != nil {
		f.seen = append(f.seen, f.tokens.AccessToken())
	}
	if len(f.profiles) == 0 {
		return nil, &feed.APIError{Status: http.StatusUnauthorized, Message: "no profile"}
	}
	r := f.profiles[0]
	f.profiles = f.profiles[1:]
	return r.user, r.err
}

func newTestSession(t *testing.T, tokens Tokens, api *fakeAPI) (*Session, *Credentials, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(tokens)
	creds, err := NewCredentials(store)
	require.NoError(t, err)
	api.tokens = creds
	return New(api, creds, nil), creds, store
}

var (
	officer      = &feed.User{ID: "2", Username: "officer1", Role: feed.RoleOfficer, Status: feed.AccountApproved}
	unauthorized = &feed.APIError{Status: http.StatusUnauthorized, Message: "Token has expired"}
)

func TestSession_InitWithoutTokenStaysAnonymous(t *testing.T) {
	api := &fakeAPI{}
	s, _, _ := newTestSession(t, Tokens{}, api)

	require.NoError(t, s.Init(context.Background()))
	assert.Nil(t, s.User())
	assert.False(t, s.Authenticated())
	assert.Empty(t, api.calls)
}

func TestSession_InitLoadsProfile(t *testing.T) {
	api := &fakeAPI{profiles: []profileResult{{user: officer}}}
	s, _, _ := newTestSession(t, Tokens{Access: "acc", Refresh: "ref"}, api)

	require.NoError(t, s.Init(context.Background()))
	require.NotNil(t, s.User())
	assert.Equal(t, "officer1", s.User().Username)
	assert.True(t, s.Capabilities().CanVerifyIncidents)
	assert.False(t, s.Capabilities().CanModerateUsers)
	assert.Equal(t, []string{"profile"}, api.calls)
}

func TestSession_InitFallsBackToRefresh(t *testing.T) {
	api := &fakeAPI{
		profiles: []profileResult{{err: unauthorized}, {user: officer}},
		refresh:  &feed.RefreshResponse{AccessToken: "acc-2"},
	}
	s, creds, store := newTestSession(t, Tokens{Access: "acc-1", Refresh: "ref"}, api)

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, []string{"profile", "refresh", "profile"}, api.calls)
	assert.Equal(t, []string{"acc-1", "acc-2"}, api.seen)
	assert.Equal(t, "acc-2", creds.AccessToken())

	persisted, _ := store.Load()
	assert.Equal(t, Tokens{Access: "acc-2", Refresh: "ref"}, persisted)
	assert.True(t, s.Authenticated())
}

func TestSession_RefreshFailureClearsTokens(t *testing.T) {
	api := &fakeAPI{
		profiles: []profileResult{{err: unauthorized}},
		refErr:   unauthorized,
	}
	s, creds, store := newTestSession(t, Tokens{Access: "acc", Refresh: "ref"}, api)

	var notified []*feed.User
	s.OnChange(func(u *feed.User) { notified = append(notified, u) })

	err := s.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, creds.AccessToken())
	assert.Empty(t, creds.RefreshToken())
	persisted, _ := store.Load()
	assert.Equal(t, Tokens{}, persisted)
	assert.Nil(t, s.User())
	require.Len(t, notified, 1)
	assert.Nil(t, notified[0])
}

func TestSession_TransportFailureKeepsTokens(t *testing.T) {
	api := &fakeAPI{profiles: []profileResult{{err: feed.ErrTransport}}}
	s, creds, _ := newTestSession(t, Tokens{Access: "acc", Refresh: "ref"}, api)

	err := s.Init(context.Background())
	require.Error(t, err)
	assert.True(t, feed.IsTransport(err))
	assert.Equal(t, "acc", creds.AccessToken())
	assert.Equal(t, []string{"profile"}, api.calls)
}

func TestSession_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{profiles: []profileResult{{err: unauthorized}}}
	api.refresh = &feed.RefreshResponse{AccessToken: "acc-2"}
	s, creds, _ := newTestSession(t, Tokens{Access: "acc", Refresh: "ref"}, api)
	cancel()

	err := s.Init(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "acc", creds.AccessToken())
	assert.Equal(t, []string{"profile"}, api.calls)
}

func TestSession_ExpiredJWTSkipsProfile(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "2",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	api := &fakeAPI{
		profiles: []profileResult{{user: officer}},
		refresh:  &feed.RefreshResponse{AccessToken: "acc-2"},
	}
	s, _, _ := newTestSession(t, Tokens{Access: expired, Refresh: "ref"}, api)

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, []string{"refresh", "profile"}, api.calls)
}

func TestAccessExpired(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}
	assert.True(t, accessExpired(sign(now.Add(-time.Minute)), now))
	assert.False(t, accessExpired(sign(now.Add(time.Minute)), now))
	assert.False(t, accessExpired("opaque-token", now))
	assert.False(t, accessExpired("", now))
}

func TestSession_LoginStoresTokensThenProfile(t *testing.T) {
	api := &fakeAPI{
		login:    &feed.LoginResponse{AccessToken: "acc", RefreshToken: "ref", Role: feed.RoleAdmin, Username: "root"},
		profiles: []profileResult{{user: &feed.User{ID: "1", Username: "root", Role: feed.RoleAdmin}}},
	}
	s, creds, _ := newTestSession(t, Tokens{}, api)

	require.NoError(t, s.Login(context.Background(), "root", "Secret1!x"))
	assert.Equal(t, []string{"login", "profile"}, api.calls)
	assert.Equal(t, []string{"acc"}, api.seen)
	assert.Equal(t, "ref", creds.RefreshToken())
	caps := s.Capabilities()
	assert.True(t, caps.CanModerateUsers)
	assert.True(t, caps.CanManageAdmins)
	assert.True(t, caps.CanModerateComments)
}

func TestSession_LoginFailureKeepsAnonymous(t *testing.T) {
	api := &fakeAPI{loginErr: &feed.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	s, creds, _ := newTestSession(t, Tokens{}, api)

	err := s.Login(context.Background(), "x", "y")
	assert.True(t, feed.IsUnauthorized(err))
	assert.Empty(t, creds.AccessToken())
	assert.False(t, s.Authenticated())
}

func TestSession_LogoutAlwaysClears(t *testing.T) {
	api := &fakeAPI{
		profiles: []profileResult{{user: officer}},
		logout:   errors.New("boom"),
	}
	s, creds, _ := newTestSession(t, Tokens{Access: "acc", Refresh: "ref"}, api)
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, s.Logout(context.Background()))
	assert.Contains(t, api.calls, "logout")
	assert.Empty(t, creds.AccessToken())
	assert.Nil(t, s.User())
	assert.Equal(t, Capabilities{}, s.Capabilities())
}

func TestCapabilitiesFor(t *testing.T) {
	assert.Equal(t, Capabilities{}, CapabilitiesFor(nil))

	user := CapabilitiesFor(&feed.User{Role: feed.RoleUser})
	assert.True(t, user.CanReport)
	assert.True(t, user.CanVote)
	assert.False(t, user.CanVerifyIncidents)
	assert.False(t, user.CanModerateComments)

	off := CapabilitiesFor(&feed.User{Role: feed.RoleOfficer})
	assert.True(t, off.CanVerifyIncidents)
	assert.False(t, off.CanModerateUsers)
}
