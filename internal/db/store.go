package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrLifecycle rejects an event status change the one-directional
	// lifecycle does not allow.
	ErrLifecycle = errors.New("invalid event status transition")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// EnsureSchema creates the tables on startup when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			location_name TEXT NOT NULL DEFAULT '',
			starts_at     TIMESTAMPTZ NOT NULL,
			ends_at       TIMESTAMPTZ NOT NULL,
			geo_lat       DOUBLE PRECISION NOT NULL,
			geo_lon       DOUBLE PRECISION NOT NULL,
			geo_radius_m  DOUBLE PRECISION NOT NULL CHECK (geo_radius_m > 0),
			supervisor_id TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'upcoming',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_events_supervisor ON events (supervisor_id);
		CREATE INDEX IF NOT EXISTS idx_events_status ON events (status);

		CREATE TABLE IF NOT EXISTS roster_entries (
			event_id       TEXT NOT NULL REFERENCES events (id),
			officer_id     TEXT NOT NULL,
			name           TEXT NOT NULL DEFAULT '',
			badge          TEXT NOT NULL DEFAULT '',
			phone          TEXT NOT NULL DEFAULT '',
			email          TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'assigned',
			check_in_time  TIMESTAMPTZ,
			check_out_time TIMESTAMPTZ,
			PRIMARY KEY (event_id, officer_id)
		);
		CREATE INDEX IF NOT EXISTS idx_roster_officer ON roster_entries (officer_id);

		CREATE TABLE IF NOT EXISTS telemetry (
			id            TEXT PRIMARY KEY,
			officer_id    TEXT NOT NULL,
			event_id      TEXT NOT NULL,
			ts            TIMESTAMPTZ NOT NULL,
			lat           DOUBLE PRECISION NOT NULL,
			lon           DOUBLE PRECISION NOT NULL,
			accuracy_m    DOUBLE PRECISION NOT NULL DEFAULT 0,
			battery_level INT,
			address       TEXT NOT NULL DEFAULT '',
			note          TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			alerts        JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_telemetry_officer_event ON telemetry (officer_id, event_id, ts);
		CREATE INDEX IF NOT EXISTS idx_telemetry_event ON telemetry (event_id, ts);

		CREATE TABLE IF NOT EXISTS performance_records (
			id              TEXT PRIMARY KEY,
			event_id        TEXT NOT NULL UNIQUE REFERENCES events (id),
			generated_by    TEXT NOT NULL,
			summary         TEXT NOT NULL DEFAULT '',
			recommendations JSONB NOT NULL DEFAULT '[]',
			stats           JSONB NOT NULL DEFAULT '{}',
			officers        JSONB NOT NULL DEFAULT '[]',
			generated_at    TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}
