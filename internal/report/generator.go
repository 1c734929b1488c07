package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldsentry/backend/internal/models"
	"github.com/fieldsentry/backend/internal/summary"
)

// Store is the persistence surface the generator needs.
type Store interface {
	FindEvent(ctx context.Context, id string) (models.Event, error)
	ListEventTelemetry(ctx context.Context, eventID string) ([]models.TelemetryRecord, error)
	FindPerformanceRecord(ctx context.Context, eventID string) (*models.PerformanceRecord, error)
	SavePerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error
}

type Generator struct {
	Store      Store
	Summarizer summary.Adapter
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Generate runs the aggregation once per event. A report that already exists
// is returned as-is, so regenerating is idempotent and the stats never drift
// after the fact.
func (g *Generator) Generate(ctx context.Context, eventID, generatedBy string) (models.PerformanceRecord, error) {
	if existing, err := g.Store.FindPerformanceRecord(ctx, eventID); err != nil {
		return models.PerformanceRecord{}, err
	} else if existing != nil {
		return *existing, nil
	}

	ev, err := g.Store.FindEvent(ctx, eventID)
	if err != nil {
		return models.PerformanceRecord{}, err
	}
	recs, err := g.Store.ListEventTelemetry(ctx, eventID)
	if err != nil {
		return models.PerformanceRecord{}, err
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	generatedAt := now().UTC()

	stats := ComputeStats(ev, recs)
	officers := ScoreOfficers(ev, recs, generatedAt)

	narrative := g.summarize(ctx, ev, stats, officers)

	rec := models.PerformanceRecord{
		ID:              uuid.NewString(),
		EventID:         eventID,
		GeneratedBy:     generatedBy,
		Summary:         narrative.Summary,
		Recommendations: narrative.Recommendations,
		Stats:           stats,
		Officers:        officers,
		GeneratedAt:     generatedAt,
	}
	if err := g.Store.SavePerformanceRecord(ctx, rec); err != nil {
		return models.PerformanceRecord{}, err
	}
	return rec, nil
}

func (g *Generator) summarize(ctx context.Context, ev models.Event, stats models.EventStats, officers []models.OfficerPerformance) summary.Result {
	adapter := g.Summarizer
	if adapter == nil {
		adapter = summary.MockAdapter{}
	}
	res, err := adapter.Summarize(ctx, ev, stats, officers)
	if err != nil {
		// narrative is best effort; the numbers are the report
		g.Logger.Warn().Err(err).Str("event_id", ev.ID).Msg("summary service failed, using fallback")
		res, _ = summary.MockAdapter{}.Summarize(ctx, ev, stats, officers)
	}
	return res
}
