package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// Subjects for navigation events.
const (
	SubjectAdvisoryRaised    = "hazard.advisory.raised"
	SubjectAdvisoryUpdated   = "hazard.advisory.updated"
	SubjectAdvisoryCleared   = "hazard.advisory.cleared"
	SubjectCongestion        = "traffic.congestion.updated"
	SubjectRouteActivated    = "session.route.activated"
	SubjectRestrictionsReady = "session.restrictions.loaded"
	SubjectSessionEnded      = "session.ended"

	defaultStream = "NAVIGATOR"
)

// Event is the envelope for all events published through the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates a new event with a unique ID and current timestamp.
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Publisher is the part of the bus that session code depends on.
type Publisher interface {
	Publish(ctx context.Context, subject string, event *Event) error
}

// Config holds NATS connection settings.
type Config struct {
	URL        string
	Name       string // client connection name
	StreamName string // JetStream stream name (default: "NAVIGATOR")
}

// SessionHeader carries the originating session id on every message, so
// consumers can filter without decoding the payload.
const SessionHeader = "Navigator-Session-ID"

// Bus publishes navigation events to a NATS JetStream stream.
type Bus struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  Config
}

var _ Publisher = (*Bus)(nil)

// New connects to NATS and ensures the JetStream stream exists.
func New(cfg Config) (*Bus, error) {
	if cfg.StreamName == "" {
		cfg.StreamName = defaultStream
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Advisories are transient, so the stream only keeps a short window for
	// late consumers.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{"hazard.>", "traffic.>", "session.>"},
		Storage:   jetstream.MemoryStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    15 * time.Minute,
		Replicas:  1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	logger.Info("NATS event bus connected",
		zap.String("url", cfg.URL),
		zap.String("stream", cfg.StreamName),
	)

	return &Bus{conn: nc, js: js, cfg: cfg}, nil
}

// Publish sends an event to subject. The event id doubles as the JetStream
// message id, so a retried publish is deduplicated by the server.
func (b *Bus) Publish(ctx context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if sessionID := logger.SessionIDFromContext(ctx); sessionID != "" {
		msg.Header.Set(SessionHeader, sessionID)
	}

	if _, err := b.js.PublishMsg(ctx, msg, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	logger.DebugContext(ctx, "event published",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
	)
	return nil
}

// Close flushes pending publishes and closes the NATS connection.
func (b *Bus) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
	logger.Info("NATS event bus closed")
}

// Connected returns true if the NATS connection is active.
func (b *Bus) Connected() bool {
	return b.conn != nil && b.conn.IsConnected()
}
