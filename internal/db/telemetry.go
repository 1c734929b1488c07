package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/fieldsentry/backend/internal/models"
)

func (s *Store) AppendTelemetry(ctx context.Context, rec models.TelemetryRecord) error {
	alerts, err := json.Marshal(rec.Alerts)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO telemetry (id, officer_id, event_id, ts, lat, lon, accuracy_m, battery_level, address, note, status, alerts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, rec.ID, rec.OfficerID, rec.EventID, rec.Timestamp, rec.Lat, rec.Lon,
		rec.AccuracyM, rec.BatteryLevel, rec.Address, rec.Note, rec.Status, alerts)
	return err
}

// FindLastTelemetry returns the most recent record for the officer within the
// event, or nil when the officer has not reported yet.
func (s *Store) FindLastTelemetry(ctx context.Context, officerID, eventID string) (*models.TelemetryRecord, error) {
	rows, err := s.Pool.Query(ctx, telemetrySelect+`
		WHERE event_id = $1 AND officer_id = $2
		ORDER BY ts DESC LIMIT 1
	`, eventID, officerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs, err := collectTelemetry(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (s *Store) ListEventTelemetry(ctx context.Context, eventID string) ([]models.TelemetryRecord, error) {
	rows, err := s.Pool.Query(ctx, telemetrySelect+`
		WHERE event_id = $1 ORDER BY ts ASC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTelemetry(rows)
}

// ListOfficerTelemetry returns an officer's track within an event, newest
// first, capped at limit.
func (s *Store) ListOfficerTelemetry(ctx context.Context, eventID, officerID string, limit int) ([]models.TelemetryRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, telemetrySelect+`
		WHERE event_id = $1 AND officer_id = $2
		ORDER BY ts DESC LIMIT $3
	`, eventID, officerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTelemetry(rows)
}

const telemetrySelect = `
	SELECT id, officer_id, event_id, ts, lat, lon, accuracy_m, battery_level, address, note, status, alerts
	FROM telemetry`

func collectTelemetry(rows pgx.Rows) ([]models.TelemetryRecord, error) {
	var out []models.TelemetryRecord
	for rows.Next() {
		var rec models.TelemetryRecord
		var alerts []byte
		err := rows.Scan(&rec.ID, &rec.OfficerID, &rec.EventID, &rec.Timestamp, &rec.Lat, &rec.Lon,
			&rec.AccuracyM, &rec.BatteryLevel, &rec.Address, &rec.Note, &rec.Status, &alerts)
		if err != nil {
			return nil, err
		}
		if len(alerts) > 0 {
			if err := json.Unmarshal(alerts, &rec.Alerts); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
