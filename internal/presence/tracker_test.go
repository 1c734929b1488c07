package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldsentry/backend/internal/geo"
	"github.com/fieldsentry/backend/internal/models"
)

var errFakeNotFound = errors.New("not found")

type fakeStore struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	telemetry map[string][]models.TelemetryRecord
}

func newFakeStore(events ...*models.Event) *fakeStore {
	s := &fakeStore{
		events:    map[string]*models.Event{},
		telemetry: map[string][]models.TelemetryRecord{},
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	return s
}

func (s *fakeStore) FindEvent(_ context.Context, id string) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return models.Event{}, errFakeNotFound
	}
	out := *ev
	out.Roster = append([]models.RosterEntry(nil), ev.Roster...)
	return out, nil
}

func (s *fakeStore) FindLastTelemetry(_ context.Context, officerID, eventID string) (*models.TelemetryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.telemetry[officerID+"|"+eventID]
	if len(recs) == 0 {
		return nil, nil
	}
	last := recs[len(recs)-1]
	return &last, nil
}

func (s *fakeStore) AppendTelemetry(_ context.Context, rec models.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.OfficerID + "|" + rec.EventID
	s.telemetry[key] = append(s.telemetry[key], rec)
	return nil
}

func (s *fakeStore) UpdateRosterEntry(_ context.Context, eventID, officerID string, status models.PresenceStatus, checkIn, checkOut *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return errFakeNotFound
	}
	for i := range ev.Roster {
		if ev.Roster[i].OfficerID == officerID {
			// checked-out entries are terminal, same as the SQL guard
			if ev.Roster[i].Status.Terminal() {
				return nil
			}
			ev.Roster[i].Status = status
			if checkIn != nil {
				ev.Roster[i].CheckInTime = checkIn
			}
			if checkOut != nil {
				ev.Roster[i].CheckOutTime = checkOut
			}
			return nil
		}
	}
	return errFakeNotFound
}

func (s *fakeStore) records(officerID, eventID string) []models.TelemetryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TelemetryRecord(nil), s.telemetry[officerID+"|"+eventID]...)
}

type fakePublisher struct {
	mu          sync.Mutex
	event       []Update
	supervisors []Update
}

func (p *fakePublisher) PublishEvent(_ string, upd Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.event = append(p.event, upd)
}

func (p *fakePublisher) PublishSupervisors(upd Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supervisors = append(p.supervisors, upd)
}

type fakeEscalator struct {
	mu          sync.Mutex
	alertCalls  int
	emergencies int
}

func (e *fakeEscalator) HandleAlerts(context.Context, models.Event, models.RosterEntry, *models.TelemetryRecord, models.TelemetryRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alertCalls++
}

func (e *fakeEscalator) HandleEmergency(context.Context, models.Event, models.RosterEntry, models.TelemetryRecord, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencies++
}

func testEvent(status models.PresenceStatus) *models.Event {
	entry := models.RosterEntry{
		EventID:   "ev1",
		OfficerID: "off1",
		Name:      "A. Kumar",
		Badge:     "B-101",
		Phone:     "+911234500001",
		Status:    status,
	}
	if status.OnDuty() {
		checkedIn := time.Now().Add(-time.Hour).UTC()
		entry.CheckInTime = &checkedIn
	}
	return &models.Event{
		ID:       "ev1",
		Name:     "Market patrol",
		Status:   models.EventActive,
		Geofence: models.Geofence{Lat: 28.6139, Lon: 77.2090, RadiusM: 100},
		Roster:   []models.RosterEntry{entry},
	}
}

func newTestTracker(store Store, esc Escalator, pub Publisher, now func() time.Time) *Tracker {
	return NewTracker(store, esc, pub, nil, Options{
		Movement: geo.MovementParams{IdleAfter: 10 * time.Minute, IdleRadiusM: 50},
		Now:      now,
	})
}

func TestCheckIn_InsideZone(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceAssigned))
	pub := &fakePublisher{}
	tr := newTestTracker(store, nil, pub, nil)

	res, err := tr.CheckIn(context.Background(), "off1", "ev1", 28.6140, 77.2095, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.InZone {
		t.Fatalf("expected in-zone check-in")
	}
	if res.Status != models.PresenceCheckedIn {
		t.Fatalf("expected checked-in status, got %s", res.Status)
	}
	ev, _ := store.FindEvent(context.Background(), "ev1")
	if ev.Roster[0].Status != models.PresenceCheckedIn || ev.Roster[0].CheckInTime == nil {
		t.Fatalf("expected roster entry updated, got %+v", ev.Roster[0])
	}
	if len(pub.event) != 1 || pub.event[0].Kind != "check-in" {
		t.Fatalf("expected one check-in broadcast, got %+v", pub.event)
	}
}

func TestCheckIn_RepeatedRejected(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceAssigned))
	tr := newTestTracker(store, nil, nil, nil)
	ctx := context.Background()

	if _, err := tr.CheckIn(ctx, "off1", "ev1", 28.6140, 77.2095, 5); err != nil {
		t.Fatalf("first check-in failed: %v", err)
	}
	if _, err := tr.CheckIn(ctx, "off1", "ev1", 28.6140, 77.2095, 5); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}
	if recs := store.records("off1", "ev1"); len(recs) != 1 {
		t.Fatalf("rejected check-in must not append telemetry, got %d records", len(recs))
	}
}

func TestCheckIn_NotAssigned(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceAssigned))
	tr := newTestTracker(store, nil, nil, nil)
	if _, err := tr.CheckIn(context.Background(), "stranger", "ev1", 28.6140, 77.2095, 5); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
}

func TestCheckIn_MalformedCoordinate(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceAssigned))
	tr := newTestTracker(store, nil, nil, nil)
	if _, err := tr.CheckIn(context.Background(), "off1", "ev1", 400, 77.2095, 5); !errors.Is(err, geo.ErrMalformedCoordinate) {
		t.Fatalf("expected ErrMalformedCoordinate, got %v", err)
	}
}

func TestCheckOut_EndsDutyOnce(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceActive))
	pub := &fakePublisher{}
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	tr := newTestTracker(store, nil, pub, func() time.Time { return base })
	ctx := context.Background()

	res, err := tr.CheckOut(ctx, "off1", "ev1", 28.6140, 77.2095, 5)
	if err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if res.Status != models.PresenceCheckedOut || !res.CheckOutTime.Equal(base) {
		t.Fatalf("unexpected result: %+v", res)
	}
	ev, _ := store.FindEvent(ctx, "ev1")
	if ev.Roster[0].Status != models.PresenceCheckedOut || ev.Roster[0].CheckOutTime == nil {
		t.Fatalf("expected roster entry checked out, got %+v", ev.Roster[0])
	}
	if len(pub.event) != 1 || pub.event[0].Kind != "check-out" {
		t.Fatalf("expected one check-out broadcast, got %+v", pub.event)
	}

	// idempotent: second call keeps the original checkout time, appends nothing
	again, err := tr.CheckOut(ctx, "off1", "ev1", 28.6140, 77.2095, 5)
	if err != nil {
		t.Fatalf("repeated check-out failed: %v", err)
	}
	if !again.CheckOutTime.Equal(base) {
		t.Fatalf("repeated check-out must not move the time: %+v", again)
	}
	if recs := store.records("off1", "ev1"); len(recs) != 1 {
		t.Fatalf("expected a single telemetry record, got %d", len(recs))
	}
}

func TestCheckOut_BeforeCheckInRejected(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceAssigned))
	tr := newTestTracker(store, nil, nil, nil)
	if _, err := tr.CheckOut(context.Background(), "off1", "ev1", 28.6140, 77.2095, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSubmitPing_IdleAfterLongStationaryGap(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceActive))
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	tr := newTestTracker(store, nil, nil, func() time.Time { return clock })
	ctx := context.Background()

	if _, err := tr.SubmitPing(ctx, "off1", "ev1", 28.6140, 77.2095, 5, nil); err != nil {
		t.Fatalf("first ping failed: %v", err)
	}
	clock = base.Add(12 * time.Minute)
	// ~10m displacement
	res, err := tr.SubmitPing(ctx, "off1", "ev1", 28.61409, 77.2095, 5, nil)
	if err != nil {
		t.Fatalf("second ping failed: %v", err)
	}
	if res.Status != models.PresenceIdle {
		t.Fatalf("expected idle status, got %s", res.Status)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Type != models.AlertIdle {
		t.Fatalf("expected exactly one idle alert, got %+v", res.Alerts)
	}
}

func TestSubmitPing_OutOfZoneTakesPrecedenceOverIdle(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceActive))
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	tr := newTestTracker(store, nil, nil, func() time.Time { return clock })
	ctx := context.Background()

	// stationary but outside the fence (~1.1km north of center)
	if _, err := tr.SubmitPing(ctx, "off1", "ev1", 28.6239, 77.2090, 5, nil); err != nil {
		t.Fatalf("first ping failed: %v", err)
	}
	clock = base.Add(12 * time.Minute)
	res, err := tr.SubmitPing(ctx, "off1", "ev1", 28.6239, 77.2090, 5, nil)
	if err != nil {
		t.Fatalf("second ping failed: %v", err)
	}
	if res.Status != models.PresenceOutOfZone {
		t.Fatalf("expected out-of-zone to mask idle, got %s", res.Status)
	}
	if len(res.Alerts) != 2 {
		t.Fatalf("expected idle and out-of-zone alerts, got %+v", res.Alerts)
	}
	if res.Alerts[0].Type != models.AlertIdle || res.Alerts[1].Type != models.AlertOutOfZone {
		t.Fatalf("unexpected alert order: %+v", res.Alerts)
	}
}

func TestSubmitPing_LowBattery(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceActive))
	tr := newTestTracker(store, nil, nil, nil)
	battery := 15
	res, err := tr.SubmitPing(context.Background(), "off1", "ev1", 28.6140, 77.2095, 5, &battery)
	if err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if res.Status != models.PresenceActive {
		t.Fatalf("expected active status, got %s", res.Status)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Type != models.AlertLowBattery {
		t.Fatalf("expected low-battery alert, got %+v", res.Alerts)
	}
}

func TestSubmitPing_BeforeCheckInRejected(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceAssigned))
	tr := newTestTracker(store, nil, nil, nil)
	if _, err := tr.SubmitPing(context.Background(), "off1", "ev1", 28.6140, 77.2095, 5, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSubmitPing_NotAssigned(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceActive))
	tr := newTestTracker(store, nil, nil, nil)
	if _, err := tr.SubmitPing(context.Background(), "stranger", "ev1", 28.6140, 77.2095, 5, nil); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
}

func TestSubmitPing_AfterCheckoutKeepsHistoryOnly(t *testing.T) {
	ev := testEvent(models.PresenceCheckedOut)
	out := time.Now().UTC()
	ev.Roster[0].CheckOutTime = &out
	store := newFakeStore(ev)
	pub := &fakePublisher{}
	esc := &fakeEscalator{}
	tr := newTestTracker(store, esc, pub, nil)

	res, err := tr.SubmitPing(context.Background(), "off1", "ev1", 28.6239, 77.2090, 5, nil)
	if err != nil {
		t.Fatalf("late ping should be accepted, got %v", err)
	}
	if res.Status != models.PresenceCheckedOut || len(res.Alerts) != 0 {
		t.Fatalf("late ping must not advance status or raise alerts, got %+v", res)
	}
	if recs := store.records("off1", "ev1"); len(recs) != 1 || recs[0].Status != models.PresenceCheckedOut {
		t.Fatalf("expected one checked-out telemetry record, got %+v", recs)
	}
	got, _ := store.FindEvent(context.Background(), "ev1")
	if got.Roster[0].Status != models.PresenceCheckedOut {
		t.Fatalf("roster must stay checked-out")
	}
	if len(pub.event) != 0 || esc.alertCalls != 0 {
		t.Fatalf("late ping must not broadcast or escalate")
	}
}

// sweepingStore completes the event and sweeps the roster between the ping's
// event snapshot and its roster write, like a lifecycle transition committing
// on another connection mid-ping.
type sweepingStore struct {
	*fakeStore
	once    sync.Once
	sweepAt time.Time
}

func (s *sweepingStore) AppendTelemetry(ctx context.Context, rec models.TelemetryRecord) error {
	s.once.Do(func() {
		s.fakeStore.mu.Lock()
		defer s.fakeStore.mu.Unlock()
		ev := s.fakeStore.events[rec.EventID]
		ev.Status = models.EventCompleted
		for i := range ev.Roster {
			if !ev.Roster[i].Status.Terminal() {
				ev.Roster[i].Status = models.PresenceCheckedOut
				if ev.Roster[i].CheckOutTime == nil {
					out := s.sweepAt
					ev.Roster[i].CheckOutTime = &out
				}
			}
		}
	})
	return s.fakeStore.AppendTelemetry(ctx, rec)
}

func TestSubmitPing_RacingCompletionSweepDoesNotResurrectEntry(t *testing.T) {
	sweepAt := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	store := &sweepingStore{fakeStore: newFakeStore(testEvent(models.PresenceActive)), sweepAt: sweepAt}
	tr := newTestTracker(store, nil, nil, nil)

	if _, err := tr.SubmitPing(context.Background(), "off1", "ev1", 28.6140, 77.2095, 5, nil); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	ev, _ := store.FindEvent(context.Background(), "ev1")
	if ev.Roster[0].Status != models.PresenceCheckedOut {
		t.Fatalf("swept entry must stay checked-out, got %s", ev.Roster[0].Status)
	}
	if ev.Roster[0].CheckOutTime == nil || !ev.Roster[0].CheckOutTime.Equal(sweepAt) {
		t.Fatalf("sweep checkout time must survive, got %v", ev.Roster[0].CheckOutTime)
	}
}

func TestTriggerEmergency_FanOut(t *testing.T) {
	store := newFakeStore(testEvent(models.PresenceActive))
	pub := &fakePublisher{}
	esc := &fakeEscalator{}
	tr := newTestTracker(store, esc, pub, nil)

	if err := tr.TriggerEmergency(context.Background(), "off1", "ev1", 28.6141, 77.2092, "officer down"); err != nil {
		t.Fatalf("emergency failed: %v", err)
	}
	recs := store.records("off1", "ev1")
	if len(recs) != 1 || len(recs[0].Alerts) != 1 || recs[0].Alerts[0].Type != models.AlertEmergency {
		t.Fatalf("expected one emergency telemetry record, got %+v", recs)
	}
	if recs[0].Address == "" {
		t.Fatalf("expected fallback address label")
	}
	if esc.emergencies != 1 {
		t.Fatalf("expected escalator to see the emergency")
	}
	if len(pub.event) != 1 || len(pub.supervisors) != 1 {
		t.Fatalf("expected event and supervisor broadcasts, got %d/%d", len(pub.event), len(pub.supervisors))
	}
	if pub.supervisors[0].Message != "officer down" {
		t.Fatalf("expected emergency message in broadcast, got %q", pub.supervisors[0].Message)
	}
}

func TestSubmitPing_ParallelOfficersDoNotCorrupt(t *testing.T) {
	ev := testEvent(models.PresenceActive)
	second := ev.Roster[0]
	second.OfficerID = "off2"
	second.Badge = "B-102"
	ev.Roster = append(ev.Roster, second)
	store := newFakeStore(ev)
	tr := newTestTracker(store, nil, nil, nil)

	var wg sync.WaitGroup
	for _, officer := range []string{"off1", "off2"} {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := tr.SubmitPing(context.Background(), id, "ev1", 28.6140, 77.2095, 5, nil)
				if err != nil {
					t.Errorf("ping failed for %s: %v", id, err)
				}
			}(officer)
		}
	}
	wg.Wait()

	if got := len(store.records("off1", "ev1")); got != 20 {
		t.Fatalf("expected 20 records for off1, got %d", got)
	}
	if got := len(store.records("off2", "ev1")); got != 20 {
		t.Fatalf("expected 20 records for off2, got %d", got)
	}
}
