package traffic

import (
	"time"

	"github.com/richxcame/truckroute/internal/maps"
)

// Congestion levels, from free flow to standstill.
const (
	LevelFree   = 0
	LevelSlow   = 1
	LevelHeavy  = 2
	LevelJammed = 3
)

// maxJamFactor is the top of HERE's jam factor scale.
const maxJamFactor = 10.0

// CongestionSample is one classified traffic reading.
type CongestionSample struct {
	Provider      maps.Provider   `json:"provider"`
	CurrentSpeed  float64         `json:"current_speed_kmh"`
	FreeFlowSpeed float64         `json:"free_flow_speed_kmh"`
	Level         int             `json:"level"`
	LowConfidence bool            `json:"low_confidence"`
	Location      maps.Coordinate `json:"location"`
	SampledAt     time.Time       `json:"sampled_at"`
}

// LevelFromRatio maps current/free-flow speed onto a congestion level.
func LevelFromRatio(ratio float64) int {
	switch {
	case ratio >= 0.75:
		return LevelFree
	case ratio >= 0.5:
		return LevelSlow
	case ratio >= 0.25:
		return LevelHeavy
	default:
		return LevelJammed
	}
}

// LevelFromJamFactor maps a 0-10 jam factor onto the same scale as the
// speed ratio.
func LevelFromJamFactor(jf float64) int {
	if jf < 0 {
		jf = 0
	}
	if jf > maxJamFactor {
		jf = maxJamFactor
	}
	return LevelFromRatio(1 - jf/maxJamFactor)
}

// Classify turns a flow reading into a sample. Speeds win over the jam
// factor; a reading with neither is level 0 with low confidence. A current
// speed of zero against a known free-flow speed is a standstill.
func Classify(r *maps.FlowReading, at maps.Coordinate, now time.Time) CongestionSample {
	s := CongestionSample{Location: at, SampledAt: now}
	if r == nil {
		s.LowConfidence = true
		return s
	}

	s.Provider = r.Provider
	s.CurrentSpeed = r.CurrentSpeed
	s.FreeFlowSpeed = r.FreeFlowSpeed

	switch {
	case r.Closed:
		s.Level = LevelJammed
	case r.FreeFlowSpeed > 0 && !r.SpeedMissing:
		s.Level = LevelFromRatio(r.CurrentSpeed / r.FreeFlowSpeed)
	case r.JamFactor != nil:
		s.Level = LevelFromJamFactor(*r.JamFactor)
	default:
		s.Level = LevelFree
		s.LowConfidence = true
	}
	return s
}
