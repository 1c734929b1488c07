package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldsentry/backend/internal/models"
	"github.com/fieldsentry/backend/internal/notify"
)

// Policy maps newly triggered alert conditions onto notification tasks. It is
// episode-debounced: a condition notifies when it first appears, not on every
// 30-second ping while it persists. A persistent zone violation escalates to
// a voice call once the prior record was also out-of-zone and the configured
// window has elapsed. Emergencies bypass all debouncing.
//
// Enqueue failures are logged and swallowed: notification dispatch never
// fails the state transition or the persisted record.
type Policy struct {
	Queue           Queue
	SupervisorPhone string
	EscalateAfter   time.Duration
	LowBatteryPct   int
	Logger          zerolog.Logger
}

func (p *Policy) HandleAlerts(ctx context.Context, ev models.Event, entry models.RosterEntry, prev *models.TelemetryRecord, rec models.TelemetryRecord) {
	escalateAfter := p.EscalateAfter
	if escalateAfter <= 0 {
		escalateAfter = 5 * time.Minute
	}
	lowBattery := p.LowBatteryPct
	if lowBattery <= 0 {
		lowBattery = 20
	}

	for _, alert := range rec.Alerts {
		switch alert.Type {
		case models.AlertIdle:
			// the status field masks idle behind out-of-zone, so episode
			// continuity is read off the prior record's alert conditions
			if !hasAlert(prev, models.AlertIdle) {
				p.enqueue(ctx, Task{
					Channel: "message", To: entry.Phone, Text: notify.IdleText(ev),
					Kind: string(models.AlertIdle), EventID: ev.ID, OfficerID: entry.OfficerID,
				})
			}
		case models.AlertOutOfZone:
			switch {
			case prev == nil || prev.Status != models.PresenceOutOfZone:
				p.enqueue(ctx, Task{
					Channel: "message", To: entry.Phone, Text: notify.ZoneViolationText(ev),
					Kind: string(models.AlertOutOfZone), EventID: ev.ID, OfficerID: entry.OfficerID,
				})
			case rec.Timestamp.Sub(prev.Timestamp) >= escalateAfter:
				p.enqueue(ctx, Task{
					Channel: "message", To: entry.Phone, Text: notify.ZoneViolationText(ev),
					Kind: string(models.AlertOutOfZone), EventID: ev.ID, OfficerID: entry.OfficerID,
				})
				p.enqueue(ctx, Task{
					Channel: "call", To: entry.Phone, Text: notify.ZoneViolationCallText(ev),
					Kind: string(models.AlertOutOfZone), EventID: ev.ID, OfficerID: entry.OfficerID,
				})
			}
		case models.AlertLowBattery:
			if prev == nil || prev.BatteryLevel == nil || *prev.BatteryLevel >= lowBattery {
				p.enqueue(ctx, Task{
					Channel: "message", To: entry.Phone, Text: notify.LowBatteryText(ev),
					Kind: string(models.AlertLowBattery), EventID: ev.ID, OfficerID: entry.OfficerID,
				})
			}
		}
	}
}

// HandleEmergency calls the supervising party and messages every on-duty
// peer on the same event. Unconditional: no debouncing, no escalation state.
func (p *Policy) HandleEmergency(ctx context.Context, ev models.Event, entry models.RosterEntry, rec models.TelemetryRecord, message string) {
	text := notify.EmergencyText(entry, ev, rec.Address)
	if p.SupervisorPhone != "" {
		p.enqueue(ctx, Task{
			Channel: "call", To: p.SupervisorPhone, Text: text,
			Kind: string(models.AlertEmergency), EventID: ev.ID, OfficerID: entry.OfficerID,
		})
	}
	for _, peer := range ev.Roster {
		if peer.OfficerID == entry.OfficerID || !peer.Status.OnDuty() {
			continue
		}
		p.enqueue(ctx, Task{
			Channel: "message", To: peer.Phone, Text: text,
			Kind: string(models.AlertEmergency), EventID: ev.ID, OfficerID: entry.OfficerID,
		})
	}
}

func hasAlert(rec *models.TelemetryRecord, t models.AlertType) bool {
	if rec == nil {
		return false
	}
	for _, a := range rec.Alerts {
		if a.Type == t {
			return true
		}
	}
	return false
}

func (p *Policy) enqueue(ctx context.Context, task Task) {
	if p.Queue == nil {
		return
	}
	if err := p.Queue.Enqueue(ctx, task); err != nil {
		p.Logger.Error().Err(err).
			Str("kind", task.Kind).
			Str("channel", task.Channel).
			Str("officer_id", task.OfficerID).
			Msg("failed to enqueue notification")
	}
}
