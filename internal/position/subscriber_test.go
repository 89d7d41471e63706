package position

import (
	"errors"
	"testing"
	"time"

	"github.com/richxcame/truckroute/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== MOCK: MQTT message =====

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// ===== MOCK: Sink =====

type recordingSink struct {
	err   error
	calls []sinkCall
}

type sinkCall struct {
	sessionID string
	position  session.Position
}

func (s *recordingSink) UpdatePosition(sessionID string, p session.Position) error {
	s.calls = append(s.calls, sinkCall{sessionID: sessionID, position: p})
	return s.err
}

func TestSubscriber_Topic(t *testing.T) {
	assert.Equal(t, "vehicles/+/position", NewSubscriber("", 1, nil).Topic())
	assert.Equal(t, "fleet/eu/+/position", NewSubscriber("fleet/eu/", 0, nil).Topic())
}

func TestSubscriber_HandleMessage(t *testing.T) {
	sink := &recordingSink{}
	sub := NewSubscriber("vehicles", 1, sink)

	sub.handleMessage(nil, &fakeMessage{
		topic:   "vehicles/abc-123/position",
		payload: []byte(`{"latitude":48.1,"longitude":11.5,"heading":90,"speed_kmh":62.5,"timestamp":1700000000}`),
	})

	require.Len(t, sink.calls, 1)
	call := sink.calls[0]
	assert.Equal(t, "abc-123", call.sessionID)
	assert.Equal(t, 48.1, call.position.Coordinate.Latitude)
	assert.Equal(t, 11.5, call.position.Coordinate.Longitude)
	assert.Equal(t, 90.0, call.position.Heading)
	assert.Equal(t, 62.5, call.position.SpeedKmh)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), call.position.RecordedAt)
}

func TestSubscriber_MissingTimestampLeftZero(t *testing.T) {
	sink := &recordingSink{}
	sub := NewSubscriber("vehicles", 1, sink)

	sub.handleMessage(nil, &fakeMessage{
		topic:   "vehicles/s1/position",
		payload: []byte(`{"latitude":48.1,"longitude":11.5}`),
	})

	require.Len(t, sink.calls, 1)
	assert.True(t, sink.calls[0].position.RecordedAt.IsZero())
}

func TestSubscriber_RejectsBadMessages(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{name: "wrong prefix", topic: "trucks/s1/position", payload: `{"latitude":1,"longitude":1}`},
		{name: "wrong suffix", topic: "vehicles/s1/speed", payload: `{"latitude":1,"longitude":1}`},
		{name: "empty session", topic: "vehicles//position", payload: `{"latitude":1,"longitude":1}`},
		{name: "nested session", topic: "vehicles/a/b/position", payload: `{"latitude":1,"longitude":1}`},
		{name: "malformed json", topic: "vehicles/s1/position", payload: `{"latitude":`},
		{name: "latitude out of range", topic: "vehicles/s1/position", payload: `{"latitude":91,"longitude":1}`},
		{name: "longitude out of range", topic: "vehicles/s1/position", payload: `{"latitude":1,"longitude":-181}`},
		{name: "heading out of range", topic: "vehicles/s1/position", payload: `{"latitude":1,"longitude":1,"heading":360}`},
		{name: "negative speed", topic: "vehicles/s1/position", payload: `{"latitude":1,"longitude":1,"speed_kmh":-3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			sub := NewSubscriber("vehicles", 1, sink)

			sub.handleMessage(nil, &fakeMessage{topic: tt.topic, payload: []byte(tt.payload)})

			assert.Empty(t, sink.calls)
		})
	}
}

func TestSubscriber_SinkErrorsAreSwallowed(t *testing.T) {
	for _, err := range []error{session.ErrSessionNotFound, session.ErrSessionEnded, errors.New("boom")} {
		sink := &recordingSink{err: err}
		sub := NewSubscriber("vehicles", 1, sink)

		assert.NotPanics(t, func() {
			sub.handleMessage(nil, &fakeMessage{
				topic:   "vehicles/s1/position",
				payload: []byte(`{"latitude":1,"longitude":1}`),
			})
		})
		assert.Len(t, sink.calls, 1)
	}
}
