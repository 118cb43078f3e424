package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atmosfera/internal/models"
)

func TestNewAirQualityClient(t *testing.T) {
	client := NewAirQualityClient()
	if client == nil {
		t.Fatal("NewAirQualityClient() returned nil")
	}

	if client.client == nil {
		t.Error("AirQualityClient.client should not be nil")
	}

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %v, want %v", client.baseURL, DefaultBaseURL)
	}
}

func TestBuildURL(t *testing.T) {
	client := NewAirQualityClient()

	tests := []struct {
		name   string
		params QueryParams
		want   string
	}{
		{
			name: "current fields",
			params: QueryParams{
				Latitude:      -6.1950,
				Longitude:     106.8230,
				CurrentFields: []string{"pm2_5", "pm10"},
			},
			want: DefaultBaseURL + "?latitude=-6.1950&longitude=106.8230&timezone=auto&forecast_days=0&current=pm2_5,pm10",
		},
		{
			name: "hourly with past days",
			params: QueryParams{
				Latitude:     -6.1950,
				Longitude:    106.8230,
				HourlyFields: []string{"pm2_5"},
				PastDays:     7,
			},
			want: DefaultBaseURL + "?latitude=-6.1950&longitude=106.8230&timezone=auto&past_days=7&forecast_days=0&hourly=pm2_5",
		},
		{
			name: "explicit timezone, api default forecast",
			params: QueryParams{
				Latitude:      -6.3,
				Longitude:     106.9,
				CurrentFields: []string{"ozone"},
				Timezone:      "Asia/Jakarta",
				ForecastDays:  -1,
			},
			want: DefaultBaseURL + "?latitude=-6.3000&longitude=106.9000&timezone=Asia/Jakarta&current=ozone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.BuildURL(tt.params)
			if got != tt.want {
				t.Errorf("BuildURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCurrent_NoFields(t *testing.T) {
	client := NewAirQualityClient()

	_, err := client.GetCurrent(context.Background(), -6.2, 106.8, nil)
	if err == nil || err.Error() != "GetCurrent: no air quality fields provided" {
		t.Errorf("GetCurrent() error = %v", err)
	}

	_, err = client.GetHourly(context.Background(), -6.2, 106.8, nil, 3)
	if err == nil || err.Error() != "GetHourly: no air quality fields provided" {
		t.Errorf("GetHourly() error = %v", err)
	}
}

const hourlyBody = `{
  "latitude": -6.2,
  "longitude": 106.8,
  "timezone": "Asia/Jakarta",
  "utc_offset_seconds": 25200,
  "hourly": {
    "time": ["2024-06-01T00:00", "2024-06-01T01:00", "2024-06-01T02:00"],
    "pm2_5": [12.5, null, 70.1],
    "pm10": [20.0, 22.0, null],
    "dust": [1, 2, 3]
  }
}`

func TestGetHourly(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(hourlyBody))
	}))
	defer srv.Close()

	client := NewAirQualityClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := client.GetHourly(context.Background(), -6.2, 106.8, []string{"pm2_5", "pm10"}, 2)
	if err != nil {
		t.Fatalf("GetHourly() error = %v", err)
	}
	if !strings.Contains(gotQuery, "hourly=pm2_5,pm10") || !strings.Contains(gotQuery, "past_days=2") {
		t.Errorf("query = %v", gotQuery)
	}

	ms, err := ToMeasurements(resp, "DKI1 Bunderan HI", nil)
	if err != nil {
		t.Fatalf("ToMeasurements() error = %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("ToMeasurements() returned %d rows, want 2 (null pm2_5 skipped)", len(ms))
	}

	first, last := ms[0], ms[1]
	if first.StationKey != "dki1-bunderan-hi" {
		t.Errorf("StationKey = %v", first.StationKey)
	}
	if first.Category != models.CategoryHealthy || last.Category != models.CategoryUnhealthy {
		t.Errorf("categories = %v, %v", first.Category, last.Category)
	}
	if first.Features["pm10"] != 20 || first.Features[models.FeaturePM25] != 12.5 {
		t.Errorf("features = %v", first.Features)
	}
	if _, ok := first.Features["dust"]; ok {
		t.Error("unmapped fields should not become features")
	}
	if _, ok := last.Features["pm10"]; ok {
		t.Error("null values should stay missing")
	}
	want := time.Date(2024, 5, 31, 17, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", first.Timestamp.UTC(), want)
	}
}

func TestGetCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timezone":"GMT","utc_offset_seconds":0,"current":{"time":"2024-06-01T10:00","interval":3600,"pm2_5":30.0,"ozone":null}}`))
	}))
	defer srv.Close()

	client := NewAirQualityClient(WithBaseURL(srv.URL))
	resp, err := client.GetCurrent(context.Background(), 0, 0, []string{"pm2_5", "ozone"})
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}

	ms, err := ToMeasurements(resp, "Site", map[string]string{"pm2_5": "pm25", "ozone": "o3"})
	if err != nil {
		t.Fatalf("ToMeasurements() error = %v", err)
	}
	if len(ms) != 1 || ms[0].PM25 != 30 || ms[0].Category != models.CategoryModerate {
		t.Errorf("ToMeasurements() = %+v", ms)
	}
	if _, ok := ms[0].Features["o3"]; ok {
		t.Error("null current value should be absent")
	}
}

func TestFetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":true,"reason":"bad latitude"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewAirQualityClient(WithBaseURL(srv.URL))
	_, err := client.GetCurrent(context.Background(), 999, 0, []string{"pm2_5"})
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("GetCurrent() error = %v, want status 400", err)
	}
}

func TestToMeasurements_NoPM25(t *testing.T) {
	resp := &AirQualityResponse{Hourly: &HourlyData{
		Time:   []string{"2024-06-01T00:00"},
		Values: map[string][]*float64{"pm10": {nil}},
	}}
	if _, err := ToMeasurements(resp, "Site", nil); !errors.Is(err, ErrNoPM25) {
		t.Errorf("ToMeasurements() error = %v, want ErrNoPM25", err)
	}
	if _, err := ToMeasurements(resp, " ", nil); err == nil {
		t.Error("ToMeasurements() expected error for empty station")
	}
}
