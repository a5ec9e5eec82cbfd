// Package config provides configuration loading for roadwatch.
//
// Configuration is read from a YAML file and environment variables with
// defaults applied for anything left unset.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete roadwatch configuration.
type Config struct {
	API           APIConfig           `koanf:"api"`
	Polling       PollingConfig       `koanf:"polling"`
	Feedback      FeedbackConfig      `koanf:"feedback"`
	Session       SessionConfig       `koanf:"session"`
	Server        ServerConfig        `koanf:"server"`
	Events        EventsConfig        `koanf:"events"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// APIConfig configures the remote incident API client.
type APIConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 disables
	Burst     int           `koanf:"burst"`
	UserAgent string        `koanf:"user_agent"`
}

// PollingConfig holds refresh intervals per resource. A zero interval means
// the resource is only fetched on subscription and on explicit revalidation.
type PollingConfig struct {
	Incidents       time.Duration `koanf:"incidents"`
	Leaderboard     time.Duration `koanf:"leaderboard"`
	Users           time.Duration `koanf:"users"`
	PendingOfficers time.Duration `koanf:"pending_officers"`
	Comments        time.Duration `koanf:"comments"`
	FetchTimeout    time.Duration `koanf:"fetch_timeout"`
}

// FeedbackConfig holds how long action result markers stay visible.
type FeedbackConfig struct {
	Action      Duration `koanf:"action"`
	Application Duration `koanf:"application"`
}

// SessionConfig holds token persistence settings.
type SessionConfig struct {
	TokenFile string `koanf:"token_file"`
	Watch     bool   `koanf:"watch"`
}

// ServerConfig holds the local read API server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// EventsConfig holds NATS publishing configuration. An empty URL disables events.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	Token         Secret `koanf:"token"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Addr returns host:port for the read API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an absolute URL: %q", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit cannot be negative"))
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		errs = append(errs, errors.New("api.burst must be at least 1 when rate limiting"))
	}

	for name, d := range map[string]time.Duration{
		"polling.incidents":        c.Polling.Incidents,
		"polling.leaderboard":      c.Polling.Leaderboard,
		"polling.users":            c.Polling.Users,
		"polling.pending_officers": c.Polling.PendingOfficers,
		"polling.comments":         c.Polling.Comments,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}
	if c.Polling.FetchTimeout <= 0 {
		errs = append(errs, errors.New("polling.fetch_timeout must be positive"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.Session.TokenFile == "" {
		errs = append(errs, errors.New("session.token_file is required"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Observability.EnableTelemetry {
		switch c.Observability.OTLPProtocol {
		case "grpc", "http/protobuf":
		default:
			errs = append(errs, fmt.Errorf("observability.otlp_protocol must be grpc or http/protobuf, got %q", c.Observability.OTLPProtocol))
		}
		if c.Observability.OTLPEndpoint == "" {
			errs = append(errs, errors.New("observability.otlp_endpoint is required when telemetry is enabled"))
		}
	}

	return errors.Join(errs...)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
