package annotator

import (
	"sort"
	"time"

	"atmosfera/internal/metrics"
	"atmosfera/internal/models"
	"atmosfera/internal/rules"
)

// DefaultLogLimit is the number of rows shown in the recommendation log.
const DefaultLogLimit = 100

// Annotation is a historical row with its derived recommendations.
type Annotation struct {
	MeasurementID int64                 `json:"measurement_id"`
	Timestamp     time.Time             `json:"timestamp"`
	StationKey    string                `json:"station_key"`
	StationRaw    string                `json:"station"`
	Category      models.Category       `json:"category"`
	CategoryRaw   string                `json:"category_raw,omitempty"`
	PM25          float64               `json:"pm25"`
	Public        models.Recommendation `json:"public"`
	Policy        models.Recommendation `json:"policy"`
	// Highlight is the tier used to style the row: the worse of the two recommendations.
	Highlight models.Tier `json:"highlight"`
}

type Annotator struct {
	rules *rules.Engine
}

func New(engine *rules.Engine) *Annotator {
	if engine == nil {
		engine = rules.Default()
	}
	return &Annotator{rules: engine}
}

// AnnotateRow derives both recommendations from one row and nothing else.
func (a *Annotator) AnnotateRow(m models.Measurement) Annotation {
	category := m.Category
	if category == "" {
		category = models.CategoryUnknown
	}
	public := a.rules.PublicAction(category)
	policy := a.rules.PolicyActionHistorical(m)

	return Annotation{
		MeasurementID: m.ID,
		Timestamp:     m.Timestamp,
		StationKey:    m.StationKey,
		StationRaw:    m.StationRaw,
		Category:      category,
		CategoryRaw:   m.CategoryRaw,
		PM25:          m.PM25,
		Public:        public,
		Policy:        policy,
		Highlight:     models.MaxTier(public.Tier, policy.Tier),
	}
}

// Annotate annotates rows in input order.
func (a *Annotator) Annotate(rows []models.Measurement) []Annotation {
	out := make([]Annotation, len(rows))
	for i, m := range rows {
		out[i] = a.AnnotateRow(m)
	}
	metrics.AnnotatedRowsTotal.Add(float64(len(out)))
	return out
}

// Log annotates the latest limit rows, newest first. limit <= 0 uses DefaultLogLimit.
func (a *Annotator) Log(rows []models.Measurement, limit int) []Annotation {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	latest := make([]models.Measurement, len(rows))
	copy(latest, rows)
	sort.SliceStable(latest, func(i, j int) bool {
		return latest[i].Timestamp.After(latest[j].Timestamp)
	})
	if len(latest) > limit {
		latest = latest[:limit]
	}
	return a.Annotate(latest)
}
