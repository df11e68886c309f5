// Package natsbus forwards visit events to NATS subjects with trace
// context in the message headers.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/event"
)

// Config holds the NATS connection settings
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
	FlushTimeout  time.Duration
}

// Publisher implements port.EventPublisher on a NATS connection
type Publisher struct {
	nc           *nats.Conn
	owned        bool
	prefix       string
	flushTimeout time.Duration
	logger       *zap.Logger
}

// Connect dials NATS and returns a publisher owning the connection
func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	name := cfg.Name
	if name == "" {
		name = "fieldjob"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	p := NewPublisher(nc, cfg, logger)
	p.owned = true

	logger.Info("NATS event bridge connected",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("subject_prefix", p.prefix))
	return p, nil
}

// NewPublisher wraps an existing connection; Close leaves it open
func NewPublisher(nc *nats.Conn, cfg Config, logger *zap.Logger) *Publisher {
	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = "fieldjob"
	}
	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = 2 * time.Second
	}
	return &Publisher{
		nc:           nc,
		prefix:       prefix,
		flushTimeout: flush,
		logger:       logger,
	}
}

// Subject returns the subject an event type is published to
func (p *Publisher) Subject(t event.Type) string {
	return p.prefix + "." + t.String()
}

// Publish serializes the event as JSON and publishes it.
// Trace context from ctx is injected into the message headers.
func (p *Publisher) Publish(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.Type, err)
	}

	msg := &nats.Msg{
		Subject: p.Subject(evt.Type),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", evt.ID)
	msg.Header.Set("Job-Id", evt.JobID)
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	if err := p.nc.PublishMsg(msg); err != nil {
		p.logger.Error("Failed to publish event to NATS",
			zap.String("subject", msg.Subject),
			zap.String("job_id", evt.JobID),
			zap.Error(err))
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Register forwards every dispatched event to NATS
func (p *Publisher) Register(d dispatcher.Dispatcher) {
	d.OnAll("nats-bridge", p.Publish)
}

// Connected reports whether the connection is currently up
func (p *Publisher) Connected() bool {
	return p.nc.IsConnected()
}

// Close flushes pending messages and closes an owned connection
func (p *Publisher) Close() error {
	if err := p.nc.FlushTimeout(p.flushTimeout); err != nil && p.nc.IsConnected() {
		p.logger.Warn("NATS flush failed", zap.Error(err))
	}
	if p.owned {
		p.nc.Close()
	}
	return nil
}

// Verify interface compliance
var _ port.EventPublisher = (*Publisher)(nil)
