package models

import "time"

// Feature name under which PM2.5 is always available to the classifier.
const FeaturePM25 = "pm25"

// Measurement is one historical row for a monitoring station.
// Rows are read-only once loaded; derived values live in separate records.
type Measurement struct {
	ID          int64              `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	StationRaw  string             `json:"station"`
	StationKey  string             `json:"station_key"`
	PM25        float64            `json:"pm25"`
	Category    Category           `json:"category"`
	CategoryRaw string             `json:"category_raw"`
	Features    map[string]float64 `json:"features,omitempty"`
}

// Feature returns a named feature value. pm25 falls back to the PM25 field.
func (m Measurement) Feature(name string) (float64, bool) {
	if v, ok := m.Features[name]; ok {
		return v, true
	}
	if name == FeaturePM25 {
		return m.PM25, true
	}
	return 0, false
}

// Recommendation is a derived action for a scope, tagged with a tier for styling.
type Recommendation struct {
	Scope  Scope  `json:"scope"`
	Tier   Tier   `json:"tier"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

// Peer is a similar station considered for the situational warning
type Peer struct {
	StationKey string   `json:"station_key"`
	Similarity float64  `json:"similarity"`
	Category   Category `json:"category"`
	Known      bool     `json:"known"`
	// Stale marks a peer whose latest reading is too old to compare against.
	Stale bool `json:"stale,omitempty"`
}

// Situation is the advisory collaborative signal; it never alters the probability.
type Situation struct {
	Tier  Tier   `json:"tier"`
	Text  string `json:"text"`
	Peers []Peer `json:"peers,omitempty"`
}

// HybridPrediction is the result of one recommendation request.
type HybridPrediction struct {
	StationKey           string         `json:"station_key"`
	ObservedAt           time.Time      `json:"observed_at"`
	CurrentCategory      Category       `json:"current_category"`
	PredictedCategory    Category       `json:"predicted_category,omitempty"`
	UnhealthyProbability float64        `json:"unhealthy_probability"`
	Available            bool           `json:"prediction_available"`
	UnavailableReason    string         `json:"unavailable_reason,omitempty"`
	Public               Recommendation `json:"public"`
	Forecast             Recommendation `json:"forecast"`
	Policy               Recommendation `json:"policy"`
	Situation            Situation      `json:"situation"`
}

// ProbabilityPercent returns the unhealthy probability on a 0-100 scale.
func (p HybridPrediction) ProbabilityPercent() float64 {
	return p.UnhealthyProbability * 100
}

// Station is a monitoring station with its coordinates.
type Station struct {
	ID        int64   `json:"id"`
	Key       string  `json:"key"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
