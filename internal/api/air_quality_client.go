package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const DefaultBaseURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

// AirQualityClient is a client for the Open-Meteo air-quality API
type AirQualityClient struct {
	client  *http.Client
	baseURL string
}

type Option func(*AirQualityClient)

// WithBaseURL points the client at another endpoint, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *AirQualityClient) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *AirQualityClient) { c.client = hc }
}

type QueryParams struct {
	Latitude      float64
	Longitude     float64
	CurrentFields []string
	HourlyFields  []string
	Timezone      string
	PastDays      int // how many days of history to include
	ForecastDays  int // -1 leaves the API default
}

// NewAirQualityClient creates a new Open-Meteo air-quality client
func NewAirQualityClient(opts ...Option) *AirQualityClient {
	c := &AirQualityClient{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch runs one air-quality query.
func (c *AirQualityClient) Fetch(ctx context.Context, params QueryParams) (*AirQualityResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(params), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch air quality: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var out AirQualityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &out, nil
}

// BuildURL builds the request URL for params
func (c *AirQualityClient) BuildURL(params QueryParams) string {
	if params.Timezone == "" {
		params.Timezone = "auto"
	}

	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&timezone=%s",
		c.baseURL, params.Latitude, params.Longitude, params.Timezone)

	if params.PastDays > 0 {
		url += fmt.Sprintf("&past_days=%d", params.PastDays)
	}

	if params.ForecastDays >= 0 {
		url += fmt.Sprintf("&forecast_days=%d", params.ForecastDays)
	}

	if len(params.CurrentFields) > 0 {
		url += "&current=" + strings.Join(params.CurrentFields, ",")
	}

	if len(params.HourlyFields) > 0 {
		url += "&hourly=" + strings.Join(params.HourlyFields, ",")
	}

	return url
}

// GetCurrent fetches the latest values of fields.
func (c *AirQualityClient) GetCurrent(ctx context.Context, lat, long float64, fields []string) (*AirQualityResponse, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("GetCurrent: no air quality fields provided")
	}

	return c.Fetch(ctx, QueryParams{
		Latitude:      lat,
		Longitude:     long,
		CurrentFields: fields,
	})
}

// GetHourly fetches hourly history for the past pastDays days, without forecast hours.
func (c *AirQualityClient) GetHourly(ctx context.Context, lat, long float64, fields []string, pastDays int) (*AirQualityResponse, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("GetHourly: no air quality fields provided")
	}

	return c.Fetch(ctx, QueryParams{
		Latitude:     lat,
		Longitude:    long,
		HourlyFields: fields,
		PastDays:     pastDays,
		ForecastDays: 0,
	})
}
