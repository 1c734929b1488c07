package summary

import (
	"context"

	"github.com/fieldsentry/backend/internal/models"
)

// Result is the narrative part of a performance report.
type Result struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

type Adapter interface {
	Summarize(ctx context.Context, ev models.Event, stats models.EventStats, officers []models.OfficerPerformance) (Result, error)
}
