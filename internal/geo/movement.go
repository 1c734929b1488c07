package geo

import (
	"time"

	"github.com/fieldsentry/backend/internal/models"
)

// MovementParams holds the idle-detection thresholds. Zero values fall back
// to the reference thresholds (10 minutes, 50 meters).
type MovementParams struct {
	IdleAfter   time.Duration
	IdleRadiusM float64
}

const (
	defaultIdleAfter   = 10 * time.Minute
	defaultIdleRadiusM = 50.0
)

func (p MovementParams) normalized() MovementParams {
	if p.IdleAfter <= 0 {
		p.IdleAfter = defaultIdleAfter
	}
	if p.IdleRadiusM <= 0 {
		p.IdleRadiusM = defaultIdleRadiusM
	}
	return p
}

// IsIdle classifies the new observation as idle when the elapsed time since
// the prior record exceeds the idle threshold AND the displacement stayed
// below the idle radius. Both sides must hold: a stationary reading inside
// the window is just GPS jitter, and a long gap with real movement is normal
// patrol. With no prior record there is not enough history to call idle.
func IsIdle(prev *models.TelemetryRecord, lat, lon float64, at time.Time, p MovementParams) bool {
	if prev == nil {
		return false
	}
	p = p.normalized()
	if at.Sub(prev.Timestamp) <= p.IdleAfter {
		return false
	}
	return DistanceMeters(lat, lon, prev.Lat, prev.Lon) < p.IdleRadiusM
}
