package geocode

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
)

// DefaultBaseURL is the Google Geocoding JSON endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// response is the subset of the Google Geocoding API payload we read.
type response struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client resolves free-text addresses through the Google Geocoding API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient returns a Client. metrics may be nil.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Resolve looks up a single address. Every failure mode (transport, non-200,
// undecodable body, non-OK status, no results) is logged and reported as
// unresolved; none of them is returned as an error.
func (c *Client) Resolve(ctx context.Context, address string) (models.Coordinates, bool) {
	logCtx := c.logger.With("address", address)

	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		logCtx.Error("Failed to build geocoding request", "error", err)
		c.observe("http_error")
		return models.Coordinates{}, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logCtx.Error("Geocoding request failed", "error", err)
		c.observe("http_error")
		return models.Coordinates{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logCtx.Error("Geocoding API returned an error status", "status_code", resp.StatusCode)
		c.observe("http_error")
		return models.Coordinates{}, false
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logCtx.Error("Failed to decode geocoding response", "error", err)
		c.observe("http_error")
		return models.Coordinates{}, false
	}

	if body.Status != "OK" {
		logCtx.Warn("Geocoding failed", "status", body.Status, "error_message", body.ErrorMessage)
		c.observe("status")
		return models.Coordinates{}, false
	}
	if len(body.Results) == 0 {
		logCtx.Warn("Geocoding returned no results")
		c.observe("empty")
		return models.Coordinates{}, false
	}

	loc := body.Results[0].Geometry.Location
	c.observe("ok")
	return models.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, true
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.GeocodeCalls.WithLabelValues(outcome).Inc()
	}
}
