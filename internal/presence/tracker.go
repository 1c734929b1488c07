package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldsentry/backend/internal/geo"
	"github.com/fieldsentry/backend/internal/models"
)

// Store is the narrow persistence surface the tracker needs. The telemetry
// history is append-only; roster entries are mutated only through here.
type Store interface {
	FindEvent(ctx context.Context, id string) (models.Event, error)
	FindLastTelemetry(ctx context.Context, officerID, eventID string) (*models.TelemetryRecord, error)
	AppendTelemetry(ctx context.Context, rec models.TelemetryRecord) error
	UpdateRosterEntry(ctx context.Context, eventID, officerID string, status models.PresenceStatus, checkIn, checkOut *time.Time) error
}

// Update is the payload fanned out to observers on every state or alert
// change.
type Update struct {
	Kind         string                  `json:"kind"`
	EventID      string                  `json:"event_id"`
	OfficerID    string                  `json:"officer_id"`
	Name         string                  `json:"name"`
	Badge        string                  `json:"badge"`
	Lat          float64                 `json:"lat"`
	Lon          float64                 `json:"lon"`
	Status       models.PresenceStatus   `json:"status"`
	BatteryLevel *int                    `json:"battery_level,omitempty"`
	Alerts       []models.AlertCondition `json:"alerts,omitempty"`
	Address      string                  `json:"address,omitempty"`
	Message      string                  `json:"message,omitempty"`
	Timestamp    time.Time               `json:"timestamp"`
}

// Publisher delivers updates to observers. Implementations must not block
// the caller on slow observers.
type Publisher interface {
	PublishEvent(eventID string, upd Update)
	PublishSupervisors(upd Update)
}

// Escalator turns triggered alert conditions into notification actions.
// Implementations are fire-and-forget relative to the ping path: failures
// are logged, never surfaced to the caller.
type Escalator interface {
	HandleAlerts(ctx context.Context, ev models.Event, entry models.RosterEntry, prev *models.TelemetryRecord, rec models.TelemetryRecord)
	HandleEmergency(ctx context.Context, ev models.Event, entry models.RosterEntry, rec models.TelemetryRecord, message string)
}

// Geocoder resolves a human-readable label for a coordinate. Best effort.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

type Options struct {
	Movement      geo.MovementParams
	LowBatteryPct int
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Tracker is the per-(officer,event) presence state machine. Each key gets a
// serialized processing lane (striped locks), so the read-prior / classify /
// append sequence is atomic per officer while distinct officers proceed in
// parallel.
type Tracker struct {
	store    Store
	esc      Escalator
	pub      Publisher
	geocoder Geocoder

	movement      geo.MovementParams
	lowBatteryPct int
	logger        zerolog.Logger
	now           func() time.Time

	lanes keyedMutex
}

func NewTracker(store Store, esc Escalator, pub Publisher, geocoder Geocoder, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LowBatteryPct <= 0 {
		opts.LowBatteryPct = 20
	}
	return &Tracker{
		store:         store,
		esc:           esc,
		pub:           pub,
		geocoder:      geocoder,
		movement:      opts.Movement,
		lowBatteryPct: opts.LowBatteryPct,
		logger:        opts.Logger,
		now:           opts.Now,
	}
}

type CheckInResult struct {
	Status models.PresenceStatus `json:"status"`
	InZone bool                  `json:"in_zone"`
}

type PingResult struct {
	Status models.PresenceStatus   `json:"status"`
	InZone bool                    `json:"in_zone"`
	Alerts []models.AlertCondition `json:"alerts,omitempty"`
}

// CheckIn moves an assigned officer to checked-in. Allowed exactly once per
// assignment; a repeated attempt is rejected without mutating state.
func (t *Tracker) CheckIn(ctx context.Context, officerID, eventID string, lat, lon, accuracy float64) (CheckInResult, error) {
	if err := validateObservation(lat, lon, accuracy, nil); err != nil {
		return CheckInResult{}, err
	}

	unlock := t.lanes.lock(officerID + "|" + eventID)
	defer unlock()

	ev, err := t.store.FindEvent(ctx, eventID)
	if err != nil {
		return CheckInResult{}, err
	}
	entry, ok := findRosterEntry(ev, officerID)
	if !ok {
		return CheckInResult{}, ErrNotAssigned
	}
	if entry.Status != models.PresenceAssigned {
		return CheckInResult{}, ErrAlreadyCheckedIn
	}

	inZone, err := geo.WithinGeofence(lat, lon, ev.Geofence)
	if err != nil {
		return CheckInResult{}, err
	}

	now := t.now().UTC()
	rec := models.TelemetryRecord{
		ID:        uuid.NewString(),
		OfficerID: officerID,
		EventID:   eventID,
		Timestamp: now,
		Lat:       lat,
		Lon:       lon,
		AccuracyM: accuracy,
		Status:    models.PresenceCheckedIn,
	}
	if err := t.store.AppendTelemetry(ctx, rec); err != nil {
		return CheckInResult{}, err
	}
	if err := t.store.UpdateRosterEntry(ctx, eventID, officerID, models.PresenceCheckedIn, &now, nil); err != nil {
		return CheckInResult{}, err
	}

	t.publish(ev.ID, Update{
		Kind:      "check-in",
		EventID:   eventID,
		OfficerID: officerID,
		Name:      entry.Name,
		Badge:     entry.Badge,
		Lat:       lat,
		Lon:       lon,
		Status:    models.PresenceCheckedIn,
		Timestamp: now,
	})
	return CheckInResult{Status: models.PresenceCheckedIn, InZone: inZone}, nil
}

type CheckOutResult struct {
	Status       models.PresenceStatus `json:"status"`
	CheckOutTime time.Time             `json:"check_out_time"`
}

// CheckOut ends an officer's duty. Repeating it is a no-op; checking out
// without ever checking in is rejected.
func (t *Tracker) CheckOut(ctx context.Context, officerID, eventID string, lat, lon, accuracy float64) (CheckOutResult, error) {
	if err := validateObservation(lat, lon, accuracy, nil); err != nil {
		return CheckOutResult{}, err
	}

	unlock := t.lanes.lock(officerID + "|" + eventID)
	defer unlock()

	ev, err := t.store.FindEvent(ctx, eventID)
	if err != nil {
		return CheckOutResult{}, err
	}
	entry, ok := findRosterEntry(ev, officerID)
	if !ok {
		return CheckOutResult{}, ErrNotAssigned
	}
	if entry.Status == models.PresenceAssigned {
		return CheckOutResult{}, fmt.Errorf("%w: check-out before check-in", ErrInvalidTransition)
	}
	if entry.Status.Terminal() {
		out := t.now().UTC()
		if entry.CheckOutTime != nil {
			out = *entry.CheckOutTime
		}
		return CheckOutResult{Status: entry.Status, CheckOutTime: out}, nil
	}

	now := t.now().UTC()
	rec := models.TelemetryRecord{
		ID:        uuid.NewString(),
		OfficerID: officerID,
		EventID:   eventID,
		Timestamp: now,
		Lat:       lat,
		Lon:       lon,
		AccuracyM: accuracy,
		Status:    models.PresenceCheckedOut,
	}
	if err := t.store.AppendTelemetry(ctx, rec); err != nil {
		return CheckOutResult{}, err
	}
	if err := t.store.UpdateRosterEntry(ctx, eventID, officerID, models.PresenceCheckedOut, nil, &now); err != nil {
		return CheckOutResult{}, err
	}

	t.publish(ev.ID, Update{
		Kind:      "check-out",
		EventID:   eventID,
		OfficerID: officerID,
		Name:      entry.Name,
		Badge:     entry.Badge,
		Lat:       lat,
		Lon:       lon,
		Status:    models.PresenceCheckedOut,
		Timestamp: now,
	})
	return CheckOutResult{Status: models.PresenceCheckedOut, CheckOutTime: now}, nil
}

// SubmitPing re-evaluates geofence containment and idleness for a checked-in
// officer and appends the observation. Zone containment wins over idle, idle
// over active. Pings arriving after checkout (or after the event closed) are
// kept as telemetry history but mutate nothing and trigger nothing.
func (t *Tracker) SubmitPing(ctx context.Context, officerID, eventID string, lat, lon, accuracy float64, battery *int) (PingResult, error) {
	if err := validateObservation(lat, lon, accuracy, battery); err != nil {
		return PingResult{}, err
	}

	unlock := t.lanes.lock(officerID + "|" + eventID)
	defer unlock()

	ev, err := t.store.FindEvent(ctx, eventID)
	if err != nil {
		return PingResult{}, err
	}
	entry, ok := findRosterEntry(ev, officerID)
	if !ok {
		return PingResult{}, ErrNotAssigned
	}
	if entry.Status == models.PresenceAssigned {
		return PingResult{}, fmt.Errorf("%w: ping before check-in", ErrInvalidTransition)
	}

	now := t.now().UTC()
	if entry.Status.Terminal() || ev.Status == models.EventCompleted || ev.Status == models.EventCancelled {
		return t.recordLatePing(ctx, officerID, eventID, lat, lon, accuracy, battery, now)
	}

	inZone, err := geo.WithinGeofence(lat, lon, ev.Geofence)
	if err != nil {
		return PingResult{}, err
	}
	prev, err := t.store.FindLastTelemetry(ctx, officerID, eventID)
	if err != nil {
		return PingResult{}, err
	}

	status := models.PresenceActive
	var alerts []models.AlertCondition
	if geo.IsIdle(prev, lat, lon, now, t.movement) {
		status = models.PresenceIdle
		alerts = append(alerts, models.AlertCondition{Type: models.AlertIdle, Timestamp: now})
	}
	if !inZone {
		// zone containment is the safety signal; it must not be masked by idle
		status = models.PresenceOutOfZone
		alerts = append(alerts, models.AlertCondition{Type: models.AlertOutOfZone, Timestamp: now})
	}
	if battery != nil && *battery < t.lowBatteryPct {
		alerts = append(alerts, models.AlertCondition{Type: models.AlertLowBattery, Timestamp: now})
	}

	rec := models.TelemetryRecord{
		ID:           uuid.NewString(),
		OfficerID:    officerID,
		EventID:      eventID,
		Timestamp:    now,
		Lat:          lat,
		Lon:          lon,
		AccuracyM:    accuracy,
		BatteryLevel: battery,
		Status:       status,
		Alerts:       alerts,
	}
	if err := t.store.AppendTelemetry(ctx, rec); err != nil {
		return PingResult{}, err
	}
	if err := t.store.UpdateRosterEntry(ctx, eventID, officerID, status, entry.CheckInTime, nil); err != nil {
		return PingResult{}, err
	}

	if t.esc != nil && len(alerts) > 0 {
		t.esc.HandleAlerts(ctx, ev, entry, prev, rec)
	}
	t.publish(ev.ID, Update{
		Kind:         "location",
		EventID:      eventID,
		OfficerID:    officerID,
		Name:         entry.Name,
		Badge:        entry.Badge,
		Lat:          lat,
		Lon:          lon,
		Status:       status,
		BatteryLevel: battery,
		Alerts:       alerts,
		Timestamp:    now,
	})
	return PingResult{Status: status, InZone: inZone, Alerts: alerts}, nil
}

// TriggerEmergency appends an emergency observation and raises the
// unconditional side-channel notifications and the supervisor-wide broadcast.
// It never debounces and never mutates roster status.
func (t *Tracker) TriggerEmergency(ctx context.Context, officerID, eventID string, lat, lon float64, message string) error {
	if err := geo.Validate(lat, lon); err != nil {
		return err
	}

	unlock := t.lanes.lock(officerID + "|" + eventID)
	defer unlock()

	ev, err := t.store.FindEvent(ctx, eventID)
	if err != nil {
		return err
	}
	entry, ok := findRosterEntry(ev, officerID)
	if !ok {
		return ErrNotAssigned
	}

	now := t.now().UTC()
	address := t.reverse(ctx, lat, lon)

	status := entry.Status
	if !status.OnDuty() {
		status = models.PresenceActive
	}
	note := message
	if note == "" {
		note = "Emergency alert triggered"
	}
	rec := models.TelemetryRecord{
		ID:        uuid.NewString(),
		OfficerID: officerID,
		EventID:   eventID,
		Timestamp: now,
		Lat:       lat,
		Lon:       lon,
		Address:   address,
		Note:      note,
		Status:    status,
		Alerts:    []models.AlertCondition{{Type: models.AlertEmergency, Timestamp: now}},
	}
	if err := t.store.AppendTelemetry(ctx, rec); err != nil {
		return err
	}

	if t.esc != nil {
		t.esc.HandleEmergency(ctx, ev, entry, rec, note)
	}
	upd := Update{
		Kind:      "emergency",
		EventID:   eventID,
		OfficerID: officerID,
		Name:      entry.Name,
		Badge:     entry.Badge,
		Lat:       lat,
		Lon:       lon,
		Status:    status,
		Alerts:    rec.Alerts,
		Address:   address,
		Message:   note,
		Timestamp: now,
	}
	if t.pub != nil {
		t.pub.PublishEvent(ev.ID, upd)
		t.pub.PublishSupervisors(upd)
	}
	return nil
}

func (t *Tracker) recordLatePing(ctx context.Context, officerID, eventID string, lat, lon, accuracy float64, battery *int, now time.Time) (PingResult, error) {
	rec := models.TelemetryRecord{
		ID:           uuid.NewString(),
		OfficerID:    officerID,
		EventID:      eventID,
		Timestamp:    now,
		Lat:          lat,
		Lon:          lon,
		AccuracyM:    accuracy,
		BatteryLevel: battery,
		Status:       models.PresenceCheckedOut,
	}
	if err := t.store.AppendTelemetry(ctx, rec); err != nil {
		return PingResult{}, err
	}
	return PingResult{Status: models.PresenceCheckedOut}, nil
}

func (t *Tracker) publish(eventID string, upd Update) {
	if t.pub == nil {
		return
	}
	t.pub.PublishEvent(eventID, upd)
}

func (t *Tracker) reverse(ctx context.Context, lat, lon float64) string {
	if t.geocoder != nil {
		if addr, err := t.geocoder.Reverse(ctx, lat, lon); err == nil && addr != "" {
			return addr
		} else if err != nil {
			t.logger.Warn().Err(err).Msg("reverse geocode failed")
		}
	}
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

func validateObservation(lat, lon, accuracy float64, battery *int) error {
	if err := geo.Validate(lat, lon); err != nil {
		return err
	}
	if accuracy < 0 || accuracy > 10000 {
		return fmt.Errorf("%w: accuracy out of range", geo.ErrMalformedCoordinate)
	}
	if battery != nil && (*battery < 0 || *battery > 100) {
		return fmt.Errorf("%w: battery out of range", geo.ErrMalformedCoordinate)
	}
	return nil
}

func findRosterEntry(ev models.Event, officerID string) (models.RosterEntry, bool) {
	for _, e := range ev.Roster {
		if e.OfficerID == officerID {
			return e, true
		}
	}
	return models.RosterEntry{}, false
}
