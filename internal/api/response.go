package api

import (
	"errors"
	"fmt"
	"sort"
	"time"
	_ "time/tzdata"

	"atmosfera/internal/models"
	"atmosfera/internal/station"

	"github.com/goccy/go-json"
)

// apiTimeLayout is the ISO8601 format Open-Meteo uses for local timestamps.
const apiTimeLayout = "2006-01-02T15:04"

// FieldPM25 is the Open-Meteo name for PM2.5.
const FieldPM25 = "pm2_5"

// ErrNoPM25 is returned when a response carries no usable PM2.5 values.
var ErrNoPM25 = errors.New("response has no pm2_5 values")

// DefaultFeatureMap maps Open-Meteo field names to dataset feature names.
var DefaultFeatureMap = map[string]string{
	FieldPM25:          models.FeaturePM25,
	"pm10":             "pm10",
	"carbon_monoxide":  "co",
	"nitrogen_dioxide": "no2",
	"ozone":            "o3",
	"sulphur_dioxide":  "so2",
}

type AirQualityResponse struct {
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	Timezone         string      `json:"timezone"`
	UTCOffsetSeconds int         `json:"utc_offset_seconds"`
	Current          *Current    `json:"current,omitempty"`
	Hourly           *HourlyData `json:"hourly,omitempty"`
}

// Current holds one reading per requested field. Null values are absent.
type Current struct {
	Time   string
	Values map[string]float64
}

func (c *Current) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Values = make(map[string]float64)
	for k, v := range raw {
		switch k {
		case "time":
			if err := json.Unmarshal(v, &c.Time); err != nil {
				return fmt.Errorf("current.time: %w", err)
			}
		case "interval":
		default:
			var f *float64
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("current.%s: %w", k, err)
			}
			if f != nil {
				c.Values[k] = *f
			}
		}
	}
	return nil
}

// HourlyData holds parallel arrays keyed by field. Null entries are nil.
type HourlyData struct {
	Time   []string
	Values map[string][]*float64
}

func (h *HourlyData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Values = make(map[string][]*float64)
	for k, v := range raw {
		if k == "time" {
			if err := json.Unmarshal(v, &h.Time); err != nil {
				return fmt.Errorf("hourly.time: %w", err)
			}
			continue
		}
		var values []*float64
		if err := json.Unmarshal(v, &values); err != nil {
			return fmt.Errorf("hourly.%s: %w", k, err)
		}
		h.Values[k] = values
	}
	return nil
}

func (r *AirQualityResponse) location() *time.Location {
	if r.Timezone != "" {
		if loc, err := time.LoadLocation(r.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone("", r.UTCOffsetSeconds)
}

// ToMeasurements converts a response into measurements for stationName.
// featureMap renames API fields to feature names; nil uses DefaultFeatureMap.
// Time points without PM2.5 are skipped, and the category is derived from PM2.5.
func ToMeasurements(resp *AirQualityResponse, stationName string, featureMap map[string]string) ([]models.Measurement, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}
	key, err := station.Normalize(stationName)
	if err != nil {
		return nil, err
	}
	if featureMap == nil {
		featureMap = DefaultFeatureMap
	}
	loc := resp.location()

	var out []models.Measurement
	if resp.Hourly != nil {
		pm := resp.Hourly.Values[FieldPM25]
		for i, ts := range resp.Hourly.Time {
			if i >= len(pm) || pm[i] == nil {
				continue
			}
			t, err := time.ParseInLocation(apiTimeLayout, ts, loc)
			if err != nil {
				return nil, fmt.Errorf("failed to parse timestamp %s: %w", ts, err)
			}
			values := make(map[string]float64)
			for field, series := range resp.Hourly.Values {
				if i < len(series) && series[i] != nil {
					values[field] = *series[i]
				}
			}
			out = append(out, measurement(t, stationName, key, values, featureMap))
		}
	}

	if resp.Current != nil {
		if _, ok := resp.Current.Values[FieldPM25]; ok {
			t, err := time.ParseInLocation(apiTimeLayout, resp.Current.Time, loc)
			if err != nil {
				return nil, fmt.Errorf("failed to parse timestamp %s: %w", resp.Current.Time, err)
			}
			out = append(out, measurement(t, stationName, key, resp.Current.Values, featureMap))
		}
	}

	if len(out) == 0 {
		return nil, ErrNoPM25
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func measurement(t time.Time, raw string, key station.Key, values map[string]float64, featureMap map[string]string) models.Measurement {
	pm25 := values[FieldPM25]
	features := make(map[string]float64, len(values))
	for field, v := range values {
		if name, ok := featureMap[field]; ok {
			features[name] = v
		}
	}
	return models.Measurement{
		Timestamp:  t,
		StationRaw: raw,
		StationKey: string(key),
		PM25:       pm25,
		Category:   models.CategoryFromPM25(pm25),
		Features:   features,
	}
}
