package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

// Config holds NATS connection and subject settings for the publisher.
type Config struct {
	URL                 string `yaml:"url"`
	OccurrenceSubject   string `yaml:"occurrenceSubject,omitempty"`
	StatusChangeSubject string `yaml:"statusChangeSubject,omitempty"`
}

// Subject defaults.
const (
	defaultOccurrenceSubject   = "watchtower.occurrences"
	defaultStatusChangeSubject = "watchtower.status-changes"
)

// Compile-time interface satisfaction check.
var _ Publisher = (*NATSPublisher)(nil)

// NATSPublisher publishes detector results to JetStream subjects, wrapped
// in a circuit breaker so a down event bus fails fast instead of stalling
// evaluation.
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewNATSPublisher connects to NATS and prepares the JetStream context.
func NewNATSPublisher(cfg Config, logger *slog.Logger) (*NATSPublisher, error) {
	if cfg.OccurrenceSubject == "" {
		cfg.OccurrenceSubject = defaultOccurrenceSubject
	}
	if cfg.StatusChangeSubject == "" {
		cfg.StatusChangeSubject = defaultStatusChangeSubject
	}
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "result-publisher",
	})

	return &NATSPublisher{nc: nc, js: js, cfg: cfg, breaker: breaker, logger: logger}, nil
}

// Publish ships one message to the subject matching its payload type.
// The message id header lets JetStream deduplicate redelivered publishes.
func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling result message: %w", err)
	}

	subject := p.cfg.OccurrenceSubject
	if msg.PayloadType == types.PayloadTypeStatusChange {
		subject = p.cfg.StatusChangeSubject
	}

	m := nats.NewMsg(subject)
	m.Data = body
	if id := messageID(msg); id != "" {
		m.Header.Set("Nats-Msg-Id", id)
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return p.js.PublishMsg(m, nats.Context(ctx))
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close closes the publisher connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}

func messageID(msg Message) string {
	switch {
	case msg.Occurrence != nil:
		return msg.Occurrence.ID
	case msg.StatusChange != nil:
		return strings.Join(msg.StatusChange.Fingerprint, ":") + ":" + string(msg.StatusChange.NewStatus)
	}
	return ""
}
