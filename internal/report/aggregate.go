package report

import (
	"math"
	"sort"
	"time"

	"github.com/fieldsentry/backend/internal/models"
)

// Each idle-status record stands in for roughly one detection window. The
// total is a coarse estimate, not wall-clock idle time.
const idleMinutesPerAlert = 10

const (
	absencePenalty   = 50
	idlePenalty      = 5
	violationPenalty = 10
	longDutyBonus    = 5
	longDutyMinutes  = 4 * 60
)

// ComputeStats derives the event-level statistics from the roster and the
// full telemetry history.
func ComputeStats(ev models.Event, recs []models.TelemetryRecord) models.EventStats {
	stats := models.EventStats{TotalOfficers: len(ev.Roster)}

	attended := 0
	responseSum := 0.0
	for _, entry := range ev.Roster {
		if entry.CheckInTime == nil {
			continue
		}
		attended++
		resp := entry.CheckInTime.Sub(ev.StartsAt).Minutes()
		if resp < 0 {
			resp = 0
		}
		responseSum += resp
	}
	if stats.TotalOfficers > 0 {
		stats.AttendanceRatePct = int(math.Round(float64(attended) / float64(stats.TotalOfficers) * 100))
	}
	if attended > 0 {
		stats.AvgResponseMinutes = int(math.Round(responseSum / float64(attended)))
	}

	idleAlerts := 0
	for _, rec := range recs {
		for _, alert := range rec.Alerts {
			switch alert.Type {
			case models.AlertIdle:
				idleAlerts++
			case models.AlertOutOfZone:
				stats.ZoneViolations++
			case models.AlertEmergency:
				stats.EmergencyAlerts++
			}
		}
	}
	stats.TotalIdleMinutes = idleAlerts * idleMinutesPerAlert
	return stats
}

// ScoreOfficers computes per-officer performance entries, ranked descending
// by score.
func ScoreOfficers(ev models.Event, recs []models.TelemetryRecord, now time.Time) []models.OfficerPerformance {
	byOfficer := map[string][]models.TelemetryRecord{}
	for _, rec := range recs {
		byOfficer[rec.OfficerID] = append(byOfficer[rec.OfficerID], rec)
	}

	out := make([]models.OfficerPerformance, 0, len(ev.Roster))
	for _, entry := range ev.Roster {
		perf := models.OfficerPerformance{
			OfficerID:    entry.OfficerID,
			Name:         entry.Name,
			Badge:        entry.Badge,
			Attendance:   entry.CheckInTime != nil,
			CheckInTime:  entry.CheckInTime,
			CheckOutTime: entry.CheckOutTime,
		}
		for _, rec := range byOfficer[entry.OfficerID] {
			for _, alert := range rec.Alerts {
				switch alert.Type {
				case models.AlertIdle:
					perf.IdleAlerts++
				case models.AlertOutOfZone:
					perf.ZoneViolations++
				}
			}
		}
		if entry.CheckInTime != nil {
			end := now
			if entry.CheckOutTime != nil {
				end = *entry.CheckOutTime
			}
			minutes := end.Sub(*entry.CheckInTime).Minutes()
			if minutes < 0 {
				minutes = 0
			}
			perf.DutyMinutes = int(math.Round(minutes))
		}
		perf.Score = score(perf)
		out = append(out, perf)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func score(perf models.OfficerPerformance) int {
	s := 100
	if !perf.Attendance {
		s -= absencePenalty
	}
	s -= perf.IdleAlerts * idlePenalty
	s -= perf.ZoneViolations * violationPenalty
	if perf.DutyMinutes > longDutyMinutes {
		s += longDutyBonus
	}
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return s
}
