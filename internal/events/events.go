// Package events publishes incident changes observed by the reconciler.
//
// Events are published to NATS subjects:
//   - {prefix}.incidents.added
//   - {prefix}.incidents.status_changed
//   - {prefix}.incidents.removed
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event is the published payload for one incident change.
type Event struct {
	ID             string              `json:"id"`
	Kind           store.ChangeKind    `json:"kind"`
	Incident       feed.Incident       `json:"incident"`
	PreviousStatus feed.IncidentStatus `json:"previous_status,omitempty"`
	ObservedAt     time.Time           `json:"observed_at"`
}

// Publisher delivers incident changes somewhere.
type Publisher interface {
	Publish(ctx context.Context, changes []store.Change) error
	Close() error
}

// NopPublisher drops every change.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []store.Change) error { return nil }

func (NopPublisher) Close() error { return nil }

// NATSPublisher publishes changes as JSON messages.
type NATSPublisher struct {
	nats   *nats.Conn
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewNATSPublisher publishes on nc under prefix. A nil nc makes every
// Publish a no-op so the daemon runs without a broker.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "roadwatch"
	}
	return &NATSPublisher{nats: nc, prefix: prefix, logger: logger.Named("events"), now: time.Now}
}

// Subject returns the subject for kind.
func (p *NATSPublisher) Subject(kind store.ChangeKind) string {
	return fmt.Sprintf("%s.incidents.%s", p.prefix, kind)
}

// Publish sends one message per change. Every change is attempted; the
// returned error joins all failures.
func (p *NATSPublisher) Publish(ctx context.Context, changes []store.Change) error {
	if p.nats == nil || len(changes) == 0 {
		return nil
	}
	observed := p.now().UTC()
	var errs []error
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(Event{
			ID:             uuid.NewString(),
			Kind:           c.Kind,
			Incident:       c.Incident,
			PreviousStatus: c.PreviousStatus,
			ObservedAt:     observed,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s event: %w", c.Kind, err))
			continue
		}
		if err := p.nats.Publish(p.Subject(c.Kind), data); err != nil {
			errs = append(errs, fmt.Errorf("publish %s event: %w", c.Kind, err))
		}
	}
	if len(errs) > 0 {
		p.logger.Warn("publishing incident changes", zap.Int("failed", len(errs)), zap.Int("total", len(changes)))
	}
	return errors.Join(errs...)
}

// Close flushes pending messages. The connection itself belongs to the
// caller.
func (p *NATSPublisher) Close() error {
	if p.nats == nil || p.nats.IsClosed() {
		return nil
	}
	return p.nats.Flush()
}

// Connect dials the broker with the daemon's reconnect policy.
func Connect(url, token, name string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}
