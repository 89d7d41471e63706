package session

import (
	"context"
	"time"

	"github.com/richxcame/truckroute/internal/hazard"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/pkg/eventbus"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/websocket"
	"go.uber.org/zap"
)

const (
	eventSource    = "navigator"
	eventsBuffer   = 64
	publishTimeout = 5 * time.Second
)

// Event is one session notification. Type is the bus subject it is
// published on; Payload is the matching eventbus data struct.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload"`
}

func advisorySubject(t hazard.EventType) string {
	switch t {
	case hazard.EventRaised:
		return eventbus.SubjectAdvisoryRaised
	case hazard.EventUpdated:
		return eventbus.SubjectAdvisoryUpdated
	default:
		return eventbus.SubjectAdvisoryCleared
	}
}

func (s *Session) advisoryEvent(e hazard.Event) Event {
	a := e.Advisory
	r := a.Restriction
	return Event{
		Type:      advisorySubject(e.Type),
		SessionID: s.ID,
		At:        e.At,
		Payload: eventbus.AdvisoryData{
			SessionID:       s.ID,
			RouteID:         e.RouteID,
			AdvisoryID:      a.ID,
			RestrictionID:   r.ID,
			RestrictionType: string(r.Type),
			RoadName:        r.RoadName,
			Limit:           r.Limit,
			VehicleValue:    a.VehicleValue,
			Exceedance:      a.Exceedance,
			Severity:        string(a.Severity),
			DistanceAhead:   a.DistanceAhead,
			Message:         a.Message,
			Dismissed:       a.Dismissed,
			Latitude:        r.Location.Latitude,
			Longitude:       r.Location.Longitude,
			OccurredAt:      e.At,
		},
	}
}

func (s *Session) congestionEvent(c traffic.CongestionSample) Event {
	return Event{
		Type:      eventbus.SubjectCongestion,
		SessionID: s.ID,
		At:        c.SampledAt,
		Payload: eventbus.CongestionData{
			SessionID:     s.ID,
			Provider:      string(c.Provider),
			Level:         c.Level,
			CurrentSpeed:  c.CurrentSpeed,
			FreeFlowSpeed: c.FreeFlowSpeed,
			LowConfidence: c.LowConfidence,
			Latitude:      c.Location.Latitude,
			Longitude:     c.Location.Longitude,
			SampledAt:     c.SampledAt,
		},
	}
}

func (s *Session) routeEvent(r *ActiveRoute) Event {
	return Event{
		Type:      eventbus.SubjectRouteActivated,
		SessionID: s.ID,
		At:        r.ActivatedAt,
		Payload: eventbus.RouteActivatedData{
			SessionID:       s.ID,
			RouteID:         r.Route.ID,
			Provider:        string(r.Route.Provider),
			DistanceMeters:  r.Route.DistanceMeters,
			DurationSeconds: r.Route.DurationSeconds,
			Matched:         !r.Path.Degraded,
			ActivatedAt:     r.ActivatedAt,
		},
	}
}

func (s *Session) restrictionsEvent(set *restrictions.RestrictionSet) Event {
	return Event{
		Type:      eventbus.SubjectRestrictionsReady,
		SessionID: s.ID,
		At:        set.LoadedAt,
		Payload: eventbus.RestrictionsLoadedData{
			SessionID: s.ID,
			RouteID:   set.RouteID,
			Count:     set.Len(),
			Degraded:  set.Degraded,
			LoadedAt:  set.LoadedAt,
		},
	}
}

func (s *Session) endedEvent(reason string, at time.Time) Event {
	return Event{
		Type:      eventbus.SubjectSessionEnded,
		SessionID: s.ID,
		At:        at,
		Payload:   eventbus.SessionEndedData{SessionID: s.ID, Reason: reason, EndedAt: at},
	}
}

// emit queues e for dispatch. It never blocks; a full outbox drops the event.
func (s *Session) emit(e Event) {
	select {
	case s.outbox <- e:
	default:
		eventsDropped.Inc()
		logger.WarnContext(s.ctx, "session outbox full, dropping event", zap.String("type", e.Type))
	}
}

// dispatchLoop fans queued events out until the session ends.
func (s *Session) dispatchLoop(ctx context.Context) {
	for {
		select {
		case e := <-s.outbox:
			s.dispatch(e)
		case <-ctx.Done():
			return
		}
	}
}

// dispatch delivers e in process, to WebSocket clients and to the bus.
func (s *Session) dispatch(e Event) {
	select {
	case s.events <- e:
	default:
		eventsDropped.Inc()
	}

	if s.deps.Notifier != nil {
		msg, err := websocket.NewMessage(e.Type, s.ID, e.Payload)
		if err != nil {
			logger.Warn("failed to encode websocket message", zap.String("type", e.Type), zap.Error(err))
		} else {
			s.deps.Notifier.SendToSession(s.ID, msg)
		}
	}

	if s.deps.Publisher != nil {
		busEvent, err := eventbus.NewEvent(e.Type, eventSource, e.Payload)
		if err != nil {
			logger.Warn("failed to encode bus event", zap.String("type", e.Type), zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(logger.ContextWithSessionID(context.Background(), s.ID), publishTimeout)
		defer cancel()
		if err := s.deps.Publisher.Publish(ctx, e.Type, busEvent); err != nil {
			logger.WarnContext(ctx, "failed to publish session event",
				zap.String("subject", e.Type),
				zap.Error(err),
			)
		}
	}
}
