// Package report exports the recommendation log, predictions and KPI trend
// for download.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"atmosfera/internal/annotator"
	"atmosfera/internal/models"
)

// ErrNoData is returned when there is nothing to render.
var ErrNoData = errors.New("no data to export")

const timeLayout = "2006-01-02 15:04"

var historyHeader = []string{
	"timestamp", "station", "station_key", "category", "category_raw", "pm25",
	"public_tier", "public_action", "public_text",
	"policy_tier", "policy_action", "policy_text",
}

func historyRecord(a annotator.Annotation) []string {
	return []string{
		a.Timestamp.Format(timeLayout),
		a.StationRaw,
		a.StationKey,
		a.Category.Label(),
		a.CategoryRaw,
		formatFloat(a.PM25),
		string(a.Public.Tier),
		string(a.Public.Action),
		a.Public.Text,
		string(a.Policy.Tier),
		string(a.Policy.Action),
		a.Policy.Text,
	}
}

// WriteHistoryCSV writes one row per annotation under a fixed header.
func WriteHistoryCSV(w io.Writer, annotations []annotator.Annotation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, a := range annotations {
		if err := cw.Write(historyRecord(a)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", a.MeasurementID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictionCSV writes a single prediction as field,value pairs.
func WritePredictionCSV(w io.Writer, p models.HybridPrediction) error {
	rows := [][]string{
		{"field", "value"},
		{"station", p.StationKey},
		{"observed_at", p.ObservedAt.Format(time.RFC3339)},
		{"current_category", p.CurrentCategory.Label()},
		{"prediction_available", strconv.FormatBool(p.Available)},
	}
	if p.Available {
		rows = append(rows,
			[]string{"predicted_category", p.PredictedCategory.Label()},
			[]string{"unhealthy_probability_pct", fmt.Sprintf("%.1f", p.ProbabilityPercent())},
			[]string{"forecast", p.Forecast.Text},
		)
	} else {
		rows = append(rows, []string{"unavailable_reason", p.UnavailableReason})
	}
	rows = append(rows,
		[]string{"public_tier", string(p.Public.Tier)},
		[]string{"public", p.Public.Text},
		[]string{"policy_tier", string(p.Policy.Tier)},
		[]string{"policy", p.Policy.Text},
		[]string{"situation_tier", string(p.Situation.Tier)},
		[]string{"situation", p.Situation.Text},
	)

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write prediction: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
