package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var ErrNotFound = errors.New("geocode not found")

// NominatimReverser resolves a human-readable address for a coordinate.
// Best effort only: callers degrade to a raw "lat, lon" label when it fails.
// Results are cached and requests rate limited per Nominatim usage policy.
type NominatimReverser struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]string
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

func (g *NominatimReverser) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if g.UserAgent == "" {
		g.UserAgent = "fieldsentry-backend"
	}
	if g.MinInterval <= 0 {
		g.MinInterval = time.Second
	}

	// ~11m cells; emergencies in the same spot share a lookup
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	g.mu.Lock()
	if g.cache == nil {
		g.cache = map[string]string{}
	}
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	sleepFor := time.Until(g.lastReqAt.Add(g.MinInterval))
	if sleepFor > 0 {
		g.mu.Unlock()
		time.Sleep(sleepFor)
		g.mu.Lock()
	}
	g.lastReqAt = time.Now()
	g.mu.Unlock()

	endpoint := fmt.Sprintf("%s/reverse?lat=%.6f&lon=%.6f&format=json", g.BaseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.DisplayName == "" {
		return "", ErrNotFound
	}

	g.mu.Lock()
	g.cache[key] = body.DisplayName
	g.mu.Unlock()

	return body.DisplayName, nil
}
