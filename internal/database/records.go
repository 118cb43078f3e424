package database

import (
	"fmt"
	"time"

	"atmosfera/internal/annotator"
	"atmosfera/internal/metrics"
	"atmosfera/internal/models"

	"github.com/goccy/go-json"
)

// PredictionRecord is a stored prediction with its request metadata.
type PredictionRecord struct {
	ID         int64                   `json:"id"`
	RequestID  string                  `json:"request_id"`
	CreatedAt  time.Time               `json:"created_at"`
	Prediction models.HybridPrediction `json:"prediction"`
}

// StoreAnnotations batch-inserts annotated rows in one transaction.
func (db *DB) StoreAnnotations(anns []annotator.Annotation) error {
	if len(anns) == 0 {
		return nil
	}
	defer db.recordStats()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO annotations (measurement_id, station_key, timestamp, category, pm25,
		public_tier, public_action, public_text, policy_tier, policy_action, policy_text, highlight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	queryStart := time.Now()
	for _, a := range anns {
		_, err = stmt.Exec(a.MeasurementID, a.StationKey, a.Timestamp, string(a.Category), a.PM25,
			string(a.Public.Tier), a.Public.Action, a.Public.Text,
			string(a.Policy.Tier), a.Policy.Action, a.Policy.Text, string(a.Highlight))
		if err != nil {
			metrics.RecordDBQuery("INSERT", "annotations", time.Since(queryStart), err)
			return fmt.Errorf("failed to insert annotation for %s at %s: %w", a.StationKey, a.Timestamp, err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("INSERT", "annotations", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// StorePrediction persists one prediction keyed by its request ID.
func (db *DB) StorePrediction(requestID string, p models.HybridPrediction) error {
	defer db.recordStats()

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}

	query := `INSERT INTO predictions (request_id, station_key, observed_at, created_at, current_category, predicted_category,
		unhealthy_probability, available, unavailable_reason, public_tier, policy_tier, situation_tier, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	queryStart := time.Now()
	_, err = db.conn.Exec(query, requestID, p.StationKey, p.ObservedAt, time.Now().UTC(),
		string(p.CurrentCategory), string(p.PredictedCategory), p.UnhealthyProbability, p.Available,
		truncate(p.UnavailableReason, 255), string(p.Public.Tier), string(p.Policy.Tier), string(p.Situation.Tier), string(payload))
	metrics.RecordDBQuery("INSERT", "predictions", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to store prediction %s: %w", requestID, err)
	}
	return nil
}

// GetPredictions returns the latest stored predictions for a station, newest first.
func (db *DB) GetPredictions(stationKey string, limit int) ([]PredictionRecord, error) {
	query := `SELECT id, request_id, created_at, payload FROM predictions WHERE station_key = ? ORDER BY created_at DESC LIMIT ?`
	queryStart := time.Now()
	rows, err := db.conn.Query(query, stationKey, limit)
	metrics.RecordDBQuery("SELECT", "predictions", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []PredictionRecord
	for rows.Next() {
		var (
			r       PredictionRecord
			payload []byte
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.CreatedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if err := json.Unmarshal(payload, &r.Prediction); err != nil {
			return nil, fmt.Errorf("prediction %s: invalid payload: %w", r.RequestID, err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
