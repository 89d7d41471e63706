package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/truckroute/internal/hazard"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/common"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/middleware"
	"github.com/richxcame/truckroute/pkg/validation"
	"github.com/richxcame/truckroute/pkg/websocket"
	"go.uber.org/zap"
)

// Handler serves the session REST API and WebSocket endpoint.
type Handler struct {
	manager *Manager
	hub     *websocket.Hub
}

// NewHandler creates a session handler. A nil hub disables /ws.
func NewHandler(manager *Manager, hub *websocket.Hub) *Handler {
	return &Handler{manager: manager, hub: hub}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/sessions")
	{
		api.POST("", h.CreateSession)

		scoped := api.Group("/:id", middleware.SessionScope("id"))
		scoped.GET("", h.GetSession)
		scoped.DELETE("", h.EndSession)
		scoped.POST("/route", h.ActivateRoute)
		scoped.PUT("/profile", h.UpdateProfile)
		scoped.POST("/position", h.ReportPosition)
		scoped.POST("/advisories/:advisory_id/dismiss", h.DismissAdvisory)
		scoped.GET("/restrictions", h.GetRestrictions)
		scoped.GET("/restrictions.kml", h.GetRestrictionsKML)
		scoped.GET("/traffic", h.GetTraffic)
	}

	if h.hub != nil {
		r.GET("/ws/sessions/:id", middleware.SessionScope("id"), h.Connect)
	}
}

// CreateSessionRequest opens a session.
type CreateSessionRequest struct {
	Profile vehicle.Profile `json:"profile"`
}

// ActivateRouteRequest asks for a new route.
type ActivateRouteRequest struct {
	Origin      maps.Coordinate  `json:"origin"`
	Destination maps.Coordinate  `json:"destination"`
	Preferences maps.Preferences `json:"preferences"`
}

// PositionRequest reports a vehicle fix.
type PositionRequest struct {
	Latitude   float64    `json:"latitude" validate:"latitude"`
	Longitude  float64    `json:"longitude" validate:"longitude"`
	Heading    float64    `json:"heading" validate:"gte=0,lt=360"`
	SpeedKmh   float64    `json:"speed_kmh" validate:"gte=0"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// View is the JSON form of a session.
type View struct {
	ID         string                    `json:"id"`
	CreatedAt  time.Time                 `json:"created_at"`
	LastSeen   time.Time                 `json:"last_seen"`
	Profile    vehicle.Profile           `json:"profile"`
	Route      *ActiveRoute              `json:"route,omitempty"`
	Position   *Position                 `json:"position,omitempty"`
	Advisory   *hazard.Advisory          `json:"advisory,omitempty"`
	Congestion *traffic.CongestionSample `json:"congestion,omitempty"`
}

// ViewOf builds the JSON view of s.
func ViewOf(s *Session) View {
	v := View{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		LastSeen:  s.LastSeen().UTC(),
		Profile:   s.Profile(),
	}
	if r, ok := s.Route(); ok {
		v.Route = r
	}
	if p, ok := s.Position(); ok {
		v.Position = &p
	}
	if a, ok := s.Advisory(); ok {
		v.Advisory = &a
	}
	if c, ok := s.Congestion(); ok {
		v.Congestion = &c
	}
	return v
}

// CreateSession opens a navigation session.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	s, err := h.manager.Create(req.Profile)
	if common.HandleServiceError(c, mapError(err), "failed to create session") {
		return
	}
	common.CreatedResponse(c, ViewOf(s))
}

// GetSession returns the session snapshot.
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, ViewOf(s))
}

// EndSession ends the session.
func (h *Handler) EndSession(c *gin.Context) {
	err := h.manager.End(c.Param("id"), ReasonClient)
	if common.HandleServiceError(c, mapError(err), "failed to end session") {
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateRoute computes and activates a route.
func (h *Handler) ActivateRoute(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req ActivateRouteRequest
	if !common.BindJSON(c, &req) {
		return
	}

	active, err := s.ActivateRoute(c.Request.Context(), Destination{
		Origin:      req.Origin,
		Destination: req.Destination,
		Preferences: req.Preferences,
	})
	if common.HandleServiceError(c, mapError(err), "failed to activate route") {
		return
	}
	common.SuccessResponse(c, active)
}

// UpdateProfile replaces the vehicle profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var profile vehicle.Profile
	if !common.BindJSON(c, &profile) {
		return
	}

	if common.HandleServiceError(c, mapError(s.UpdateProfile(profile)), "failed to update profile") {
		return
	}
	common.SuccessResponse(c, ViewOf(s))
}

// ReportPosition records a vehicle fix.
func (h *Handler) ReportPosition(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req PositionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	p := Position{
		Coordinate: maps.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		Heading:    req.Heading,
		SpeedKmh:   req.SpeedKmh,
	}
	if req.RecordedAt != nil {
		p.RecordedAt = req.RecordedAt.UTC()
	}
	if common.HandleServiceError(c, mapError(s.UpdatePosition(p)), "failed to record position") {
		return
	}
	c.Status(http.StatusAccepted)
}

// DismissAdvisory dismisses the active advisory.
func (h *Handler) DismissAdvisory(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if common.HandleServiceError(c, mapError(s.Dismiss(c.Param("advisory_id"))), "failed to dismiss advisory") {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRestrictions returns the restriction set of the active route.
func (h *Handler) GetRestrictions(c *gin.Context) {
	s, set, ok := h.restrictionSet(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, gin.H{
		"route_id":     set.RouteID,
		"degraded":     set.Degraded,
		"loaded_at":    set.LoadedAt,
		"restrictions": set.Restrictions,
		"relevant":     set.FilterForProfile(s.Profile()),
	})
}

// GetRestrictionsKML returns the restrictions relevant to the vehicle as a
// KML document.
func (h *Handler) GetRestrictionsKML(c *gin.Context) {
	s, set, ok := h.restrictionSet(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/vnd.google-earth.kml+xml")
	c.Status(http.StatusOK)
	if err := restrictions.WriteKML(c.Writer, set.RouteID, set.FilterForProfile(s.Profile())); err != nil {
		logger.ErrorContext(c.Request.Context(), "failed to write KML", zap.Error(err))
	}
}

// GetTraffic returns the latest congestion sample.
func (h *Handler) GetTraffic(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	sample, ok := s.Congestion()
	if !ok {
		common.ErrorResponse(c, http.StatusNotFound, "no traffic sample yet")
		return
	}
	common.SuccessResponse(c, sample)
}

// Connect upgrades to a WebSocket that receives the session's events.
func (h *Handler) Connect(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	websocket.ServeSession(c, h.hub, s.ID)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if common.HandleServiceError(c, mapError(err), "failed to load session") {
		return nil, false
	}
	return s, true
}

func (h *Handler) restrictionSet(c *gin.Context) (*Session, *restrictions.RestrictionSet, bool) {
	s, ok := h.session(c)
	if !ok {
		return nil, nil, false
	}
	active, ok := s.Route()
	if !ok {
		common.AppErrorResponse(c, mapError(ErrNoActiveRoute).(*common.AppError))
		return nil, nil, false
	}
	return s, active.Restrictions, true
}

// mapError converts domain errors to API errors. Unknown errors pass
// through and become a 500.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		return common.NewValidationError(vErr.Error())
	case errors.Is(err, ErrSessionNotFound):
		return common.NewNotFoundError("session not found", err)
	case errors.Is(err, ErrAdvisoryNotFound):
		return common.NewNotFoundError("advisory not found", err)
	case errors.Is(err, ErrNoActiveRoute):
		return common.NewAppError(http.StatusConflict, "no_active_route", "session has no active route", err)
	case errors.Is(err, ErrSessionEnded):
		return common.NewAppError(http.StatusGone, "session_ended", "session has ended", err)
	case errors.Is(err, maps.ErrProviderExhausted) && errors.Is(err, maps.ErrNoRouteFound):
		return common.NewAppError(http.StatusUnprocessableEntity, "no_route", "no legal route for this vehicle", err)
	case errors.Is(err, maps.ErrProviderExhausted):
		return common.NewUpstreamError("providers_unavailable", "routing providers unavailable", err)
	case errors.Is(err, context.Canceled):
		return common.NewAppError(http.StatusConflict, "superseded", "request superseded by a newer one", err)
	}
	return err
}
