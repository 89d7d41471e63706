package eventbus

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewEvent
// ---------------------------------------------------------------------------

func TestNewEvent_Success(t *testing.T) {
	data := map[string]string{"session_id": "abc"}

	event, err := NewEvent(SubjectAdvisoryRaised, "navigator", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectAdvisoryRaised, event.Type)
	assert.Equal(t, "navigator", event.Source)
	assert.False(t, event.Timestamp.IsZero())

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, "abc", decoded["session_id"])
}

func TestNewEvent_NilData(t *testing.T) {
	event, err := NewEvent("test.event", "test-source", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEvent_AdvisoryPayload(t *testing.T) {
	data := AdvisoryData{
		SessionID:       "s-1",
		RouteID:         "r-1",
		RestrictionID:   "way/42:maxheight",
		RestrictionType: "max_height",
		RoadName:        "Low Bridge Rd",
		Limit:           3.9,
		Exceedance:      0.2,
		Severity:        "severe",
		DistanceAhead:   850,
		Latitude:        40.7128,
		Longitude:       -74.0060,
		OccurredAt:      time.Now().UTC(),
	}

	event, err := NewEvent(SubjectAdvisoryRaised, "navigator", data)
	require.NoError(t, err)

	var decoded AdvisoryData
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, data.RestrictionID, decoded.RestrictionID)
	assert.Equal(t, data.Limit, decoded.Limit)
	assert.Equal(t, data.Exceedance, decoded.Exceedance)
	assert.Equal(t, data.Severity, decoded.Severity)
	assert.Equal(t, data.DistanceAhead, decoded.DistanceAhead)
	assert.True(t, data.OccurredAt.Equal(decoded.OccurredAt))
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	event, err := NewEvent("test", "src", make(chan int))
	assert.Error(t, err)
	assert.Nil(t, event)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		event, err := NewEvent("test", "src", nil)
		require.NoError(t, err)
		assert.False(t, ids[event.ID], "duplicate event ID generated")
		ids[event.ID] = true
	}
}

func TestNewEvent_TimestampIsUTC(t *testing.T) {
	event, err := NewEvent("test", "src", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

// ---------------------------------------------------------------------------
// Subjects
// ---------------------------------------------------------------------------

func TestSubjects_CoveredByStreamWildcards(t *testing.T) {
	subjects := []string{
		SubjectAdvisoryRaised,
		SubjectAdvisoryUpdated,
		SubjectAdvisoryCleared,
		SubjectCongestion,
		SubjectRouteActivated,
		SubjectRestrictionsReady,
		SubjectSessionEnded,
	}

	for _, subject := range subjects {
		t.Run(subject, func(t *testing.T) {
			prefix := strings.SplitN(subject, ".", 2)[0]
			assert.Contains(t, []string{"hazard", "traffic", "session"}, prefix)
		})
	}
}
