// Package places looks up nearby food venues for a craving. Lookups are
// strictly best-effort: every failure path returns an empty list, never an
// error, because the craving flow works fine without venue suggestions.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/cravequest/backend/pkg/logger"
)

// Place describes one nearby venue.
type Place struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	PlaceID string  `json:"place_id"`
	Rating  float64 `json:"rating"`
}

// Searcher finds venues near a coordinate matching a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string, lat, lng float64) []Place
}

const (
	defaultRadiusMeters = 5000
	defaultTimeout      = 5 * time.Second
	maxResults          = 10
)

// Config holds Google Places connection options. An empty APIKey disables
// lookups entirely.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GoogleSearcher queries the Google Places nearby-search API.
type GoogleSearcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewGoogleSearcher builds a searcher; it is usable even without an API key,
// in which case every search returns no places.
func NewGoogleSearcher(cfg Config) *GoogleSearcher {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &GoogleSearcher{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     logger.WithModule("places"),
	}
}

type nearbyResponse struct {
	Results []struct {
		Name     string  `json:"name"`
		Vicinity string  `json:"vicinity"`
		PlaceID  string  `json:"place_id"`
		Rating   float64 `json:"rating"`
	} `json:"results"`
}

// Search returns up to ten venues matching the keyword around (lat, lng).
func (s *GoogleSearcher) Search(ctx context.Context, keyword string, lat, lng float64) []Place {
	if s == nil || s.apiKey == "" {
		return nil
	}

	query := url.Values{}
	query.Set("key", s.apiKey)
	query.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	query.Set("radius", fmt.Sprintf("%d", defaultRadiusMeters))
	query.Set("keyword", keyword)
	query.Set("type", "food")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("nearby search failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("nearby search returned non-200", zap.Int("status", resp.StatusCode))
		return nil
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.log.Warn("nearby search decode failed", zap.Error(err))
		return nil
	}

	results := make([]Place, 0, maxResults)
	for _, r := range body.Results {
		results = append(results, Place{
			Name:    r.Name,
			Address: r.Vicinity,
			PlaceID: r.PlaceID,
			Rating:  r.Rating,
		})
		if len(results) == maxResults {
			break
		}
	}
	return results
}
