package summary

import (
	"context"
	"fmt"

	"github.com/fieldsentry/backend/internal/models"
)

// MockAdapter produces a deterministic narrative from the statistics alone.
// Used when no summary service is configured.
type MockAdapter struct{}

func (m MockAdapter) Summarize(_ context.Context, ev models.Event, stats models.EventStats, officers []models.OfficerPerformance) (Result, error) {
	top := "n/a"
	if len(officers) > 0 {
		top = fmt.Sprintf("%s (%d)", officers[0].Name, officers[0].Score)
	}
	res := Result{
		Summary: fmt.Sprintf(
			"%d of %d assigned officers attended %q (%d%% attendance, avg response %d min). Recorded %d zone violations, %d emergency alerts and roughly %d idle minutes. Top performer: %s.",
			attended(officers), stats.TotalOfficers, ev.Name, stats.AttendanceRatePct,
			stats.AvgResponseMinutes, stats.ZoneViolations, stats.EmergencyAlerts,
			stats.TotalIdleMinutes, top),
	}

	if stats.AttendanceRatePct < 80 {
		res.Recommendations = append(res.Recommendations, "Attendance was below 80%; confirm assignments with officers the day before deployment.")
	}
	if stats.ZoneViolations > 0 {
		res.Recommendations = append(res.Recommendations, "Zone violations occurred; review the geofence briefing and boundary markings with the roster.")
	}
	if stats.TotalIdleMinutes > 0 {
		res.Recommendations = append(res.Recommendations, "Idle periods were detected; consider shorter patrol sectors or rotation.")
	}
	if stats.EmergencyAlerts > 0 {
		res.Recommendations = append(res.Recommendations, "Emergency alerts were raised; schedule a debrief with the officers involved.")
	}
	if len(res.Recommendations) == 0 {
		res.Recommendations = []string{"No corrective actions required; keep the current deployment pattern."}
	}
	return res, nil
}

func attended(officers []models.OfficerPerformance) int {
	n := 0
	for _, o := range officers {
		if o.Attendance {
			n++
		}
	}
	return n
}
