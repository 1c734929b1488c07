package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsentry/backend/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func TestTransitionEventCompletionSweep(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ev := models.Event{
		ID:           uuid.NewString(),
		Name:         "Night patrol",
		LocationName: "Sector 17",
		StartsAt:     now,
		EndsAt:       now.Add(4 * time.Hour),
		Geofence:     models.Geofence{Lat: 28.6139, Lon: 77.2090, RadiusM: 100},
		SupervisorID: "sup-1",
		Status:       models.EventUpcoming,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.Pool.Exec(ctx, `DELETE FROM roster_entries WHERE event_id = $1`, ev.ID)
		_, _ = store.Pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, ev.ID)
	})

	entries := []models.RosterEntry{
		{OfficerID: "off-1", Name: "A. Kumar", Badge: "B-101", Phone: "+911234500001"},
		{OfficerID: "off-2", Name: "R. Singh", Badge: "B-102", Phone: "+911234500002"},
	}
	if _, err := store.AddRosterEntries(ctx, ev.ID, entries); err != nil {
		t.Fatalf("add roster: %v", err)
	}

	if _, err := store.TransitionEvent(ctx, ev.ID, models.EventActive, now.Add(time.Minute)); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// off-1 checks in then checks out before the event completes
	checkIn := now.Add(2 * time.Minute)
	if err := store.UpdateRosterEntry(ctx, ev.ID, "off-1", models.PresenceCheckedIn, &checkIn, nil); err != nil {
		t.Fatalf("check in off-1: %v", err)
	}
	earlyOut := now.Add(time.Hour)
	if err := store.UpdateRosterEntry(ctx, ev.ID, "off-1", models.PresenceCheckedOut, nil, &earlyOut); err != nil {
		t.Fatalf("check out off-1: %v", err)
	}

	sweepAt := now.Add(4 * time.Hour)
	got, err := store.TransitionEvent(ctx, ev.ID, models.EventCompleted, sweepAt)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != models.EventCompleted {
		t.Fatalf("expected completed event, got %s", got.Status)
	}
	for _, entry := range got.Roster {
		if entry.Status != models.PresenceCheckedOut {
			t.Fatalf("expected %s swept to checked-out, got %s", entry.OfficerID, entry.Status)
		}
		if entry.CheckOutTime == nil {
			t.Fatalf("expected %s to have a checkout time", entry.OfficerID)
		}
		switch entry.OfficerID {
		case "off-1":
			// sweeping an already-checked-out entry must not move its time
			if !entry.CheckOutTime.Equal(earlyOut) {
				t.Fatalf("off-1 checkout time moved: %v", entry.CheckOutTime)
			}
		case "off-2":
			if !entry.CheckOutTime.Equal(sweepAt) {
				t.Fatalf("off-2 expected sweep time, got %v", entry.CheckOutTime)
			}
		}
	}

	// the lifecycle is one-directional, a second completion is rejected
	if _, err := store.TransitionEvent(ctx, ev.ID, models.EventCompleted, sweepAt.Add(time.Minute)); !errors.Is(err, ErrLifecycle) {
		t.Fatalf("expected ErrLifecycle on repeated completion, got %v", err)
	}

	// a late presence write cannot resurrect a swept entry
	if err := store.UpdateRosterEntry(ctx, ev.ID, "off-2", models.PresenceActive, nil, nil); err != nil {
		t.Fatalf("late update should be a no-op, got %v", err)
	}
	after, err := store.FindEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	for _, entry := range after.Roster {
		if entry.OfficerID == "off-2" && entry.Status != models.PresenceCheckedOut {
			t.Fatalf("swept entry resurrected to %s", entry.Status)
		}
	}
}
