package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fieldsentry/backend/internal/models"
)

// HTTPAdapter delegates narrative generation to an external service.
type HTTPAdapter struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	EventID   string                      `json:"event_id"`
	EventName string                      `json:"event_name"`
	Stats     models.EventStats           `json:"stats"`
	Officers  []models.OfficerPerformance `json:"officers"`
}

func (h HTTPAdapter) Summarize(ctx context.Context, ev models.Event, stats models.EventStats, officers []models.OfficerPerformance) (Result, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := requestBody{
		EventID:   ev.ID,
		EventName: ev.Name,
		Stats:     stats,
		Officers:  officers,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/summarize", bytes.NewBuffer(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, errors.New("summary service error")
	}

	var r Result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{}, err
	}
	return r, nil
}
