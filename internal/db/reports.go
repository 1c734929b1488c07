package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fieldsentry/backend/internal/models"
)

// SavePerformanceRecord is first-writer-wins: a concurrent generation for the
// same event leaves the existing record untouched.
func (s *Store) SavePerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error {
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return err
	}
	officers, err := json.Marshal(rec.Officers)
	if err != nil {
		return err
	}
	recs, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO performance_records (id, event_id, generated_by, generated_at, summary, stats, officers, recommendations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (event_id) DO NOTHING
	`, rec.ID, rec.EventID, rec.GeneratedBy, rec.GeneratedAt, rec.Summary, stats, officers, recs)
	return err
}

func (s *Store) FindPerformanceRecord(ctx context.Context, eventID string) (*models.PerformanceRecord, error) {
	row := s.Pool.QueryRow(ctx, performanceSelect+` WHERE event_id = $1`, eventID)
	rec, err := scanPerformance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListPerformanceRecords(ctx context.Context, generatedBy string, limit int) ([]models.PerformanceRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := performanceSelect
	args := []any{limit}
	if generatedBy != "" {
		query += ` WHERE generated_by = $2`
		args = append(args, generatedBy)
	}
	query += ` ORDER BY generated_at DESC LIMIT $1`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PerformanceRecord
	for rows.Next() {
		rec, err := scanPerformance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const performanceSelect = `
	SELECT id, event_id, generated_by, generated_at, summary, stats, officers, recommendations
	FROM performance_records`

func scanPerformance(row pgx.Row) (models.PerformanceRecord, error) {
	var rec models.PerformanceRecord
	var stats, officers, recs []byte
	err := row.Scan(&rec.ID, &rec.EventID, &rec.GeneratedBy, &rec.GeneratedAt, &rec.Summary, &stats, &officers, &recs)
	if err != nil {
		return models.PerformanceRecord{}, err
	}
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return models.PerformanceRecord{}, err
	}
	if len(officers) > 0 {
		if err := json.Unmarshal(officers, &rec.Officers); err != nil {
			return models.PerformanceRecord{}, err
		}
	}
	if len(recs) > 0 {
		if err := json.Unmarshal(recs, &rec.Recommendations); err != nil {
			return models.PerformanceRecord{}, err
		}
	}
	return rec, nil
}
