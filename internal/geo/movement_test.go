package geo

import (
	"testing"
	"time"

	"github.com/fieldsentry/backend/internal/models"
)

func TestIsIdle_NoHistory(t *testing.T) {
	if IsIdle(nil, 28.6139, 77.2090, time.Now(), MovementParams{}) {
		t.Fatalf("expected no prior record to never be idle")
	}
}

func TestIsIdle_LongGapSmallDisplacement(t *testing.T) {
	now := time.Now()
	prev := &models.TelemetryRecord{Lat: 28.6139, Lon: 77.2090, Timestamp: now.Add(-12 * time.Minute)}
	// ~10m north
	if !IsIdle(prev, 28.61399, 77.2090, now, MovementParams{}) {
		t.Fatalf("expected 12min/10m to classify idle")
	}
}

func TestIsIdle_WithinWindowNeverIdle(t *testing.T) {
	now := time.Now()
	prev := &models.TelemetryRecord{Lat: 28.6139, Lon: 77.2090, Timestamp: now.Add(-10 * time.Minute)}
	// zero displacement but elapsed == threshold
	if IsIdle(prev, 28.6139, 77.2090, now, MovementParams{}) {
		t.Fatalf("expected elapsed <= threshold to never be idle")
	}
}

func TestIsIdle_LongGapRealMovement(t *testing.T) {
	now := time.Now()
	prev := &models.TelemetryRecord{Lat: 28.6139, Lon: 77.2090, Timestamp: now.Add(-15 * time.Minute)}
	// ~550m north
	if IsIdle(prev, 28.6189, 77.2090, now, MovementParams{}) {
		t.Fatalf("expected real displacement to not be idle")
	}
}

func TestIsIdle_CustomThresholds(t *testing.T) {
	now := time.Now()
	prev := &models.TelemetryRecord{Lat: 28.6139, Lon: 77.2090, Timestamp: now.Add(-3 * time.Minute)}
	p := MovementParams{IdleAfter: 2 * time.Minute, IdleRadiusM: 20}
	if !IsIdle(prev, 28.6139, 77.2090, now, p) {
		t.Fatalf("expected idle under tightened thresholds")
	}
}
