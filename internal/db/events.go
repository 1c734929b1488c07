package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fieldsentry/backend/internal/models"
)

func (s *Store) CreateEvent(ctx context.Context, ev models.Event) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO events (id, name, description, location_name, starts_at, ends_at, geo_lat, geo_lon, geo_radius_m, supervisor_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, ev.ID, ev.Name, ev.Description, ev.LocationName, ev.StartsAt, ev.EndsAt,
		ev.Geofence.Lat, ev.Geofence.Lon, ev.Geofence.RadiusM,
		ev.SupervisorID, ev.Status, ev.CreatedAt, ev.UpdatedAt)
	return err
}

func (s *Store) FindEvent(ctx context.Context, id string) (models.Event, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, name, description, location_name, starts_at, ends_at, geo_lat, geo_lon, geo_radius_m, supervisor_id, status, created_at, updated_at
		FROM events WHERE id = $1
	`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return models.Event{}, err
	}

	roster, err := s.listRoster(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	ev.Roster = roster
	return ev, nil
}

// ListEvents filters by supervisor or roster membership, optionally by
// status, newest first.
func (s *Store) ListEvents(ctx context.Context, supervisorID, officerID string, status models.EventStatus, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, name, description, location_name, starts_at, ends_at, geo_lat, geo_lon, geo_radius_m, supervisor_id, status, created_at, updated_at FROM events`
	var args []any
	var wheres []string
	if supervisorID != "" {
		args = append(args, supervisorID)
		wheres = append(wheres, fmt.Sprintf("supervisor_id = $%d", len(args)))
	}
	if officerID != "" {
		args = append(args, officerID)
		wheres = append(wheres, fmt.Sprintf("EXISTS (SELECT 1 FROM roster_entries r WHERE r.event_id = events.id AND r.officer_id = $%d)", len(args)))
	}
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY starts_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// TransitionEvent applies a lifecycle change. Completion or cancellation
// sweeps every open roster entry to checked-out inside the same transaction,
// so by the time the transition is visible no entry is left non-terminal.
func (s *Store) TransitionEvent(ctx context.Context, id string, next models.EventStatus, at time.Time) (models.Event, error) {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var current models.EventStatus
		err := tx.QueryRow(ctx, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("event %s: %w", id, ErrNotFound)
			}
			return err
		}
		if !current.CanTransition(next) {
			return fmt.Errorf("%s -> %s: %w", current, next, ErrLifecycle)
		}
		if _, err := tx.Exec(ctx, `UPDATE events SET status = $1, updated_at = $2 WHERE id = $3`, next, at, id); err != nil {
			return err
		}
		if next == models.EventCompleted || next == models.EventCancelled {
			_, err := tx.Exec(ctx, `
				UPDATE roster_entries
				SET status = $1, check_out_time = COALESCE(check_out_time, $2)
				WHERE event_id = $3 AND status <> $1
			`, models.PresenceCheckedOut, at, id)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	return s.FindEvent(ctx, id)
}

func (s *Store) AddRosterEntries(ctx context.Context, eventID string, entries []models.RosterEntry) (int64, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		status := e.Status
		if status == "" {
			status = models.PresenceAssigned
		}
		rows = append(rows, []any{eventID, e.OfficerID, e.Name, e.Badge, e.Phone, e.Email, status})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"roster_entries"},
		[]string{"event_id", "officer_id", "name", "badge", "phone", "email", "status"},
		pgx.CopyFromRows(rows))
}

// UpdateRosterEntry applies a presence transition. Checked-out entries are
// never touched: a ping racing the completion sweep must not resurrect a
// swept entry, so writing to a terminal entry is a silent no-op.
func (s *Store) UpdateRosterEntry(ctx context.Context, eventID, officerID string, status models.PresenceStatus, checkIn, checkOut *time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE roster_entries
		SET status = $1,
			check_in_time = COALESCE($2, check_in_time),
			check_out_time = COALESCE($3, check_out_time)
		WHERE event_id = $4 AND officer_id = $5 AND status <> $6
	`, status, checkIn, checkOut, eventID, officerID, models.PresenceCheckedOut)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var existing models.PresenceStatus
		err := s.Pool.QueryRow(ctx, `
			SELECT status FROM roster_entries WHERE event_id = $1 AND officer_id = $2
		`, eventID, officerID).Scan(&existing)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("roster entry %s/%s: %w", eventID, officerID, ErrNotFound)
		}
		return err
	}
	return nil
}

// FindCurrentAssignment returns the officer's next upcoming or active event
// together with their roster entry.
func (s *Store) FindCurrentAssignment(ctx context.Context, officerID string) (models.Event, models.RosterEntry, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT e.id
		FROM events e
		JOIN roster_entries r ON r.event_id = e.id
		WHERE r.officer_id = $1 AND e.status IN ($2, $3)
		ORDER BY e.starts_at ASC
		LIMIT 1
	`, officerID, models.EventUpcoming, models.EventActive)

	var eventID string
	if err := row.Scan(&eventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Event{}, models.RosterEntry{}, fmt.Errorf("assignment for %s: %w", officerID, ErrNotFound)
		}
		return models.Event{}, models.RosterEntry{}, err
	}

	ev, err := s.FindEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, models.RosterEntry{}, err
	}
	for _, entry := range ev.Roster {
		if entry.OfficerID == officerID {
			return ev, entry, nil
		}
	}
	return models.Event{}, models.RosterEntry{}, fmt.Errorf("roster entry %s/%s: %w", eventID, officerID, ErrNotFound)
}

func (s *Store) listRoster(ctx context.Context, eventID string) ([]models.RosterEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT event_id, officer_id, name, badge, phone, email, status, check_in_time, check_out_time
		FROM roster_entries WHERE event_id = $1 ORDER BY officer_id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RosterEntry
	for rows.Next() {
		var e models.RosterEntry
		if err := rows.Scan(&e.EventID, &e.OfficerID, &e.Name, &e.Badge, &e.Phone, &e.Email, &e.Status, &e.CheckInTime, &e.CheckOutTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var ev models.Event
	err := row.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.LocationName, &ev.StartsAt, &ev.EndsAt,
		&ev.Geofence.Lat, &ev.Geofence.Lon, &ev.Geofence.RadiusM,
		&ev.SupervisorID, &ev.Status, &ev.CreatedAt, &ev.UpdatedAt)
	return ev, err
}
