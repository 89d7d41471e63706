package maps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

var testCoords = [][]float64{
	{40.712800, -74.006000},
	{40.720000, -74.000000},
	{40.758000, -73.985500},
}

func testRequest() *RouteRequest {
	return &RouteRequest{
		Origin:      Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		Destination: Coordinate{Latitude: 40.7580, Longitude: -73.9855},
		Profile:     vehicle.Profile{HeightMeters: 4.1, WidthMeters: 2.6, WeightTonnes: 36, AxleCount: 5},
		Preferences: Preferences{AvoidTolls: true, AvoidFerries: true},
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// ===== Mapbox Directions =====

func TestMapboxRoute_Success(t *testing.T) {
	encoded := string(polyline6.EncodeCoords(nil, testCoords))

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/directions/v5/mapbox/driving-traffic/")
		q := r.URL.Query()
		assert.Equal(t, "tok", q.Get("access_token"))
		assert.Equal(t, "polyline6", q.Get("geometries"))
		assert.Equal(t, "4.10", q.Get("max_height"))
		assert.Equal(t, "2.60", q.Get("max_width"))
		assert.Equal(t, "36.00", q.Get("max_weight"))
		assert.Equal(t, "toll,ferry", q.Get("exclude"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "Ok",
			"routes": []map[string]interface{}{{
				"geometry": encoded,
				"distance": 6400.5,
				"duration": 900.0,
				"legs":     []map[string]interface{}{{"distance": 6400.5, "duration": 900.0, "summary": "Broadway"}},
			}},
		})
	})

	p := NewMapboxProvider(ProviderConfig{APIKey: "tok", BaseURL: srv.URL, Timeout: time.Second})
	result, err := p.Route(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, ProviderMapbox, result.Provider)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, 6400.5, result.DistanceMeters)
	assert.Equal(t, 900.0, result.DurationSeconds)
	require.Len(t, result.Geometry, 3)
	assert.InDelta(t, 40.7128, result.Geometry[0].Latitude, 1e-6)
	assert.InDelta(t, -73.9855, result.Geometry[2].Longitude, 1e-6)
	require.Len(t, result.Legs, 1)
	assert.Equal(t, "Broadway", result.Legs[0].Summary)
}

func TestMapboxRoute_NoRoute(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"No route found","routes":[]}`))
	})

	p := NewMapboxProvider(ProviderConfig{APIKey: "tok", BaseURL: srv.URL})
	_, err := p.Route(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoRouteFound)
}

func TestMapboxRoute_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		target  error
		asTyped bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"message":"boom"}`, target: ErrNetwork, asTyped: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"message":"slow down"}`, target: ErrNetwork, asTyped: true},
		{name: "malformed json", status: http.StatusOK, body: `{"code":`, target: ErrDecode},
		{name: "bad polyline", status: http.StatusOK, body: `{"code":"Ok","routes":[{"geometry":"___"}]}`, target: ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			p := NewMapboxProvider(ProviderConfig{APIKey: "tok", BaseURL: srv.URL})
			_, err := p.Route(context.Background(), testRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			if tt.asTyped {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.status, statusErr.StatusCode)
				assert.Equal(t, ProviderMapbox, statusErr.Provider)
			}
		})
	}
}

func TestMapboxRoute_Timeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	p := NewMapboxProvider(ProviderConfig{APIKey: "tok", BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Route(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ===== Mapbox Map Matching =====

func TestMapboxMatch_Success(t *testing.T) {
	encoded := string(polyline6.EncodeCoords(nil, testCoords))

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/matching/v5/mapbox/driving/")
		assert.Equal(t, "true", r.URL.Query().Get("steps"))
		_, _ = w.Write([]byte(`{"code":"Ok","matchings":[{"confidence":0.87,"geometry":"` + encoded + `",
			"legs":[{"steps":[{"name":"Broadway","distance":120.5,
			"maneuver":{"type":"turn","modifier":"left","instruction":"Turn left onto Broadway","location":[-74.006,40.7128]}}]}]}]}`))
	})

	p := NewMapboxProvider(ProviderConfig{APIKey: "tok", BaseURL: srv.URL})
	trace := []Coordinate{{40.7128, -74.006}, {40.758, -73.9855}}
	matchings, err := p.Match(context.Background(), trace)
	require.NoError(t, err)
	require.Len(t, matchings, 1)

	m := matchings[0]
	assert.Equal(t, 0.87, m.Confidence)
	assert.Len(t, m.Geometry, 3)
	require.Len(t, m.Maneuvers, 1)
	assert.Equal(t, "turn", m.Maneuvers[0].Type)
	assert.Equal(t, "left", m.Maneuvers[0].Modifier)
	assert.Equal(t, "Broadway", m.Maneuvers[0].RoadName)
	assert.InDelta(t, 40.7128, m.Maneuvers[0].Location.Latitude, 1e-9)
}

func TestMapboxMatch_NoMatch(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoMatch","message":"Could not match the trace."}`))
	})

	p := NewMapboxProvider(ProviderConfig{APIKey: "tok", BaseURL: srv.URL})
	matchings, err := p.Match(context.Background(), []Coordinate{{1, 1}, {2, 2}})
	require.NoError(t, err)
	assert.Empty(t, matchings)
}

// ===== OpenRouteService =====

func TestORSRoute_Success(t *testing.T) {
	encoded := string(polyline.EncodeCoords(testCoords))

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-hgv", r.URL.Path)
		assert.Equal(t, "ors-key", r.Header.Get("Authorization"))

		var body orsDirectionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Coordinates, 2)
		assert.Equal(t, -74.006, body.Coordinates[0][0])
		assert.Equal(t, "hgv", body.Options.VehicleType)
		assert.ElementsMatch(t, []string{"tollways", "ferries"}, body.Options.AvoidFeatures)
		assert.Equal(t, 4.1, body.Options.ProfileParams.Restrictions.Height)
		assert.InDelta(t, 7.2, body.Options.ProfileParams.Restrictions.AxleLoad, 1e-9)

		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":6500,"duration":950},
			"segments":[{"distance":6500,"duration":950}],"geometry":"` + encoded + `"}]}`))
	})

	p := NewORSProvider(ProviderConfig{APIKey: "ors-key", BaseURL: srv.URL})
	result, err := p.Route(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, ProviderORS, result.Provider)
	assert.Equal(t, 6500.0, result.DistanceMeters)
	require.Len(t, result.Geometry, 3)
	assert.InDelta(t, 40.72, result.Geometry[1].Latitude, 1e-5)
}

func TestORSRoute_NotFoundIsNoRoute(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":2009,"message":"Route could not be found"}}`))
	})

	p := NewORSProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Route(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoRouteFound)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestORSRoute_OtherNotFoundIsStatusError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not here`))
	})

	p := NewORSProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Route(context.Background(), testRequest())
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
}

// ===== HERE flow =====

func TestHEREFlow(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantCurrent  float64
		wantFreeFlow float64
		wantJam      *float64
		wantClosed   bool
		wantMissing  bool
	}{
		{
			name:         "speeds in m/s are converted",
			body:         `{"results":[{"currentFlow":{"speed":10,"freeFlow":20,"jamFactor":4.5}}]}`,
			wantCurrent:  36,
			wantFreeFlow: 72,
			wantJam:      ptr(4.5),
		},
		{
			name:        "jam factor only",
			body:        `{"results":[{"currentFlow":{"jamFactor":7}}]}`,
			wantJam:     ptr(7),
			wantMissing: true,
		},
		{
			name:         "closed road",
			body:         `{"results":[{"currentFlow":{"speed":0,"freeFlow":20,"traversability":"closed"}}]}`,
			wantFreeFlow: 72,
			wantClosed:   true,
		},
		{
			name:        "no segment nearby",
			body:        `{"results":[]}`,
			wantMissing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v7/flow", r.URL.Path)
				assert.Equal(t, "here-key", r.URL.Query().Get("apiKey"))
				assert.Contains(t, r.URL.Query().Get("in"), "circle:40.712800,-74.006000;r=50")
				_, _ = w.Write([]byte(tt.body))
			})

			p := NewHEREProvider(ProviderConfig{APIKey: "here-key", BaseURL: srv.URL})
			reading, err := p.Flow(context.Background(), Coordinate{40.7128, -74.006})
			require.NoError(t, err)

			assert.Equal(t, ProviderHERE, reading.Provider)
			assert.InDelta(t, tt.wantCurrent, reading.CurrentSpeed, 1e-9)
			assert.InDelta(t, tt.wantFreeFlow, reading.FreeFlowSpeed, 1e-9)
			assert.Equal(t, tt.wantJam, reading.JamFactor)
			assert.Equal(t, tt.wantClosed, reading.Closed)
			assert.Equal(t, tt.wantMissing, reading.SpeedMissing)
		})
	}
}

// ===== TomTom flow =====

func TestTomTomFlow(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/traffic/services/4/flowSegmentData/absolute/10/json", r.URL.Path)
		assert.Equal(t, "40.712800,-74.006000", r.URL.Query().Get("point"))
		assert.Equal(t, "KMPH", r.URL.Query().Get("unit"))
		_, _ = w.Write([]byte(`{"flowSegmentData":{"currentSpeed":42,"freeFlowSpeed":60,"confidence":0.9,"roadClosure":false}}`))
	})

	p := NewTomTomProvider(ProviderConfig{APIKey: "tt", BaseURL: srv.URL})
	reading, err := p.Flow(context.Background(), Coordinate{40.7128, -74.006})
	require.NoError(t, err)
	assert.Equal(t, ProviderTomTom, reading.Provider)
	assert.Equal(t, 42.0, reading.CurrentSpeed)
	assert.Equal(t, 60.0, reading.FreeFlowSpeed)
	assert.Nil(t, reading.JamFactor)
	assert.False(t, reading.SpeedMissing)
}

func TestTomTomFlow_Standstill(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"flowSegmentData":{"currentSpeed":0,"freeFlowSpeed":60,"confidence":1,"roadClosure":false}}`))
	})

	p := NewTomTomProvider(ProviderConfig{APIKey: "tt", BaseURL: srv.URL})
	reading, err := p.Flow(context.Background(), Coordinate{40.7128, -74.006})
	require.NoError(t, err)
	assert.Equal(t, 0.0, reading.CurrentSpeed)
	assert.Equal(t, 60.0, reading.FreeFlowSpeed)
	assert.False(t, reading.SpeedMissing)
}

func TestTomTomFlow_ServerError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	p := NewTomTomProvider(ProviderConfig{APIKey: "tt", BaseURL: srv.URL})
	_, err := p.Flow(context.Background(), Coordinate{1, 1})
	assert.ErrorIs(t, err, ErrNetwork)
}

// ===== Models =====

func TestRouteRequestFingerprint(t *testing.T) {
	a := testRequest()
	b := testRequest()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Preferences.AvoidTunnels = true
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := testRequest()
	c.Profile.HeightMeters = 4.3
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestCoordinatePointRoundTrip(t *testing.T) {
	c := Coordinate{Latitude: 51.5, Longitude: -0.12}
	p := c.Point()
	assert.Equal(t, -0.12, p.Lon())
	assert.Equal(t, c, CoordinateFromPoint(p))
}

func ptr(v float64) *float64 { return &v }
