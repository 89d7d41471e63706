package position

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/session"
	"github.com/richxcame/truckroute/pkg/config"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/validation"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Sink receives decoded positions.
type Sink interface {
	UpdatePosition(sessionID string, p session.Position) error
}

// NewClient connects to the broker. The client reconnects on its own and
// resubscribes through onConnect.
func NewClient(cfg config.MQTTConfig, onConnect func(mqtt.Client)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

type positionMessage struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Heading   float64 `json:"heading" validate:"gte=0,lt=360"`
	SpeedKmh  float64 `json:"speed_kmh" validate:"gte=0"`
	// Timestamp is unix seconds; zero means now.
	Timestamp int64 `json:"timestamp" validate:"gte=0"`
}

// Subscriber feeds vehicles/{sessionID}/position messages into sessions.
type Subscriber struct {
	prefix string
	qos    byte
	sink   Sink
}

// NewSubscriber creates a subscriber for topics under prefix.
func NewSubscriber(prefix string, qos int, sink Sink) *Subscriber {
	if prefix == "" {
		prefix = "vehicles"
	}
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return &Subscriber{prefix: strings.TrimRight(prefix, "/"), qos: byte(qos), sink: sink}
}

// Topic is the wildcard subscription.
func (s *Subscriber) Topic() string {
	return s.prefix + "/+/position"
}

// Subscribe registers the handler on client. Pass it as the client's
// on-connect callback so it survives reconnects.
func (s *Subscriber) Subscribe(client mqtt.Client) {
	token := client.Subscribe(s.Topic(), s.qos, s.handleMessage)
	if !token.WaitTimeout(connectTimeout) {
		logger.Error("mqtt subscribe timed out", zap.String("topic", s.Topic()))
		return
	}
	if err := token.Error(); err != nil {
		logger.Error("mqtt subscribe failed", zap.String("topic", s.Topic()), zap.Error(err))
		return
	}
	logger.Info("subscribed to vehicle positions", zap.String("topic", s.Topic()))
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	sessionID, p, err := s.decode(msg.Topic(), msg.Payload())
	if err != nil {
		logger.Warn("invalid position message", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	if err := s.sink.UpdatePosition(sessionID, p); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionEnded) {
			logger.Debug("position for unknown session dropped", zap.String("session_id", sessionID))
			return
		}
		logger.Warn("failed to record position", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *Subscriber) decode(topic string, payload []byte) (string, session.Position, error) {
	sessionID, err := s.sessionFromTopic(topic)
	if err != nil {
		return "", session.Position{}, err
	}

	var raw positionMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return "", session.Position{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := validation.ValidateStruct(&raw); err != nil {
		return "", session.Position{}, err
	}

	p := session.Position{
		Coordinate: maps.Coordinate{Latitude: raw.Latitude, Longitude: raw.Longitude},
		Heading:    raw.Heading,
		SpeedKmh:   raw.SpeedKmh,
	}
	if raw.Timestamp > 0 {
		p.RecordedAt = time.Unix(raw.Timestamp, 0).UTC()
	}
	return sessionID, p, nil
}

func (s *Subscriber) sessionFromTopic(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/")
	if !ok {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	id, ok := strings.CutSuffix(rest, "/position")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	return id, nil
}
