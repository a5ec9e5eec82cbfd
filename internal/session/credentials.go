package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials holds the live token pair and writes every change through to
// its store. It satisfies feed.TokenSource.
type Credentials struct {
	mu     sync.RWMutex
	tokens Tokens
	store  TokenStore
}

// NewCredentials loads tokens from store.
func NewCredentials(store TokenStore) (*Credentials, error) {
	c := &Credentials{store: store}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// AccessToken returns the current access token.
func (c *Credentials) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.Access
}

// RefreshToken returns the current refresh token.
func (c *Credentials) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.Refresh
}

// Set replaces both tokens.
func (c *Credentials) Set(t Tokens) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(t); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	c.tokens = t
	return nil
}

// SetAccess replaces the access token and keeps the refresh token.
func (c *Credentials) SetAccess(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := Tokens{Access: token, Refresh: c.tokens.Refresh}
	if err := c.store.Save(next); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	c.tokens = next
	return nil
}

// Clear forgets both tokens. Memory is cleared even if the store fails.
func (c *Credentials) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = Tokens{}
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// Reload re-reads tokens from the store.
func (c *Credentials) Reload() error {
	t, err := c.store.Load()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
	return nil
}

// accessExpired reports whether the access token is a JWT whose exp has
// passed. The signature is not checked; the server remains the authority and
// opaque tokens are never treated as expired.
func accessExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
