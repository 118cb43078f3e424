package dataset

import (
	"sort"

	"atmosfera/internal/models"
	"atmosfera/internal/station"

	"github.com/google/uuid"
)

const DefaultTrendWindow = 24

// trendBand is the relative change treated as stable.
const trendBand = 0.10

// Snapshot is an immutable, time-ordered set of measurements indexed by station.
// Measurements returned from it share feature maps with the snapshot and
// must not be modified.
type Snapshot struct {
	id        string
	rows      []models.Measurement
	byStation map[station.Key][]int
	keys      []station.Key
}

// NewSnapshot copies rows and orders them by timestamp.
func NewSnapshot(rows []models.Measurement) *Snapshot {
	sorted := make([]models.Measurement, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	s := &Snapshot{
		id:        uuid.NewString(),
		rows:      sorted,
		byStation: make(map[station.Key][]int),
	}
	for i, r := range sorted {
		k := station.Key(r.StationKey)
		if _, ok := s.byStation[k]; !ok {
			s.keys = append(s.keys, k)
		}
		s.byStation[k] = append(s.byStation[k], i)
	}
	sort.Slice(s.keys, func(i, j int) bool { return s.keys[i] < s.keys[j] })
	return s
}

// ID identifies this build of the snapshot.
func (s *Snapshot) ID() string { return s.id }

func (s *Snapshot) Len() int { return len(s.rows) }

// Rows returns every measurement in time order.
func (s *Snapshot) Rows() []models.Measurement {
	out := make([]models.Measurement, len(s.rows))
	copy(out, s.rows)
	return out
}

// Stations returns station keys in ascending order.
func (s *Snapshot) Stations() []station.Key {
	out := make([]station.Key, len(s.keys))
	copy(out, s.keys)
	return out
}

// Has reports whether the snapshot holds rows for the station.
func (s *Snapshot) Has(key station.Key) bool {
	_, ok := s.byStation[key]
	return ok
}

// Latest returns the station's most recent measurement.
func (s *Snapshot) Latest(key station.Key) (models.Measurement, bool) {
	idx := s.byStation[key]
	if len(idx) == 0 {
		return models.Measurement{}, false
	}
	return s.rows[idx[len(idx)-1]], true
}

// History returns the station's measurements, oldest first.
func (s *Snapshot) History(key station.Key) []models.Measurement {
	idx := s.byStation[key]
	out := make([]models.Measurement, len(idx))
	for i, j := range idx {
		out[i] = s.rows[j]
	}
	return out
}

// Trend compares the mean PM2.5 of the newer half of the last window readings
// against the older half. Fewer than four readings is TrendUnknown.
func (s *Snapshot) Trend(key station.Key, window int) models.Trend {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	idx := s.byStation[key]
	if len(idx) > window {
		idx = idx[len(idx)-window:]
	}
	if len(idx) < 4 {
		return models.TrendUnknown
	}

	half := len(idx) / 2
	var older, newer float64
	for _, j := range idx[:half] {
		older += s.rows[j].PM25
	}
	for _, j := range idx[len(idx)-half:] {
		newer += s.rows[j].PM25
	}
	older /= float64(half)
	newer /= float64(half)

	if older == 0 {
		if newer > 0 {
			return models.TrendRising
		}
		return models.TrendStable
	}

	change := (newer - older) / older
	switch {
	case change > trendBand:
		return models.TrendRising
	case change < -trendBand:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// Years returns the distinct calendar years present, ascending.
func (s *Snapshot) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, r := range s.rows {
		y := r.Timestamp.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// FilterYears returns a new snapshot restricted to the given years.
// An empty list returns s unchanged.
func (s *Snapshot) FilterYears(years []int) *Snapshot {
	if len(years) == 0 {
		return s
	}
	keep := make(map[int]bool, len(years))
	for _, y := range years {
		keep[y] = true
	}
	var rows []models.Measurement
	for _, r := range s.rows {
		if keep[r.Timestamp.Year()] {
			rows = append(rows, r)
		}
	}
	return NewSnapshot(rows)
}
