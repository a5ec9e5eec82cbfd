// Package feed is the HTTP client for the remote incident API.
//
// Every method performs exactly one round trip and never retries; callers
// decide whether and when to try again.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TokenSource supplies bearer tokens. Empty strings mean no credential.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	Burst     int
	UserAgent string

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the remote incident API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	userAgent  string
	logger     *zap.Logger
}

// NewClient creates a client. tokens and logger may be nil.
func NewClient(cfg Config, tokens TokenSource, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: httpClient,
		tokens:     tokens,
		userAgent:  cfg.UserAgent,
		logger:     logger.Named("feed"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

type authMode int

const (
	authAccess authMode = iota
	authRefresh
	authNone
)

// call describes one request.
type call struct {
	method      string
	path        string
	json        any       // encoded as the JSON body when non-nil
	body        io.Reader // raw body, used with contentType
	contentType string
	auth        authMode
	fallback    string
	out         any
}

func (c *Client) do(ctx context.Context, cl call) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: rate limit wait: %w", cl.method, cl.path, err)
		}
	}

	body := cl.body
	contentType := cl.contentType
	if cl.json != nil {
		buf, err := json.Marshal(cl.json)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", cl.path, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", cl.method, cl.path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if token := c.token(cl.auth); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w: %w", cl.method, cl.path, ErrTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %w", cl.method, cl.path, ErrTransport, err)
	}

	c.logger.Debug("api request",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, payload, cl.fallback)
	}
	if cl.out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, cl.out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", cl.method, cl.path, err)
	}
	return nil
}

func (c *Client) token(mode authMode) string {
	if c.tokens == nil {
		return ""
	}
	switch mode {
	case authAccess:
		return c.tokens.AccessToken()
	case authRefresh:
		return c.tokens.RefreshToken()
	}
	return ""
}

func segment(id ID) string {
	return url.PathEscape(string(id))
}
