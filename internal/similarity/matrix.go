package similarity

import (
	"sort"

	"atmosfera/internal/models"
	"atmosfera/internal/station"
)

const (
	MaxScore = 1.0
	MinScore = -1.0

	// NoOverlapScore is assigned to pairs that share too few timestamps.
	NoOverlapScore = 0.0

	DefaultMinOverlap = 2
)

// Options controls matrix construction
type Options struct {
	// MinOverlap is the minimum number of shared timestamps for a pair to be scored.
	MinOverlap int
}

func (o Options) withDefaults() Options {
	if o.MinOverlap < 1 {
		o.MinOverlap = DefaultMinOverlap
	}
	return o
}

// Neighbor is one entry of a station's similarity row.
type Neighbor struct {
	Key     station.Key `json:"station_key"`
	Score   float64     `json:"score"`
	Overlap int         `json:"overlap"`
}

// Matrix is a symmetric station-by-station similarity table.
// It is never modified after Build returns.
type Matrix struct {
	keys    []station.Key
	index   map[station.Key]int
	scores  [][]float64
	overlap [][]int
}

// series maps unix-nano timestamps to the mean PM2.5 observed at that instant.
type series map[int64]float64

// Build computes the similarity matrix over per-station PM2.5 series.
// Input rows are only read.
func Build(rows []models.Measurement, opts Options) *Matrix {
	opts = opts.withDefaults()

	bySt := groupSeries(rows)

	keys := make([]station.Key, 0, len(bySt))
	for k := range bySt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	n := len(keys)
	m := &Matrix{
		keys:    keys,
		index:   make(map[station.Key]int, n),
		scores:  make([][]float64, n),
		overlap: make([][]int, n),
	}
	for i, k := range keys {
		m.index[k] = i
		m.scores[i] = make([]float64, n)
		m.overlap[i] = make([]int, n)
	}

	for i := 0; i < n; i++ {
		m.scores[i][i] = MaxScore
		m.overlap[i][i] = len(bySt[keys[i]])

		for j := i + 1; j < n; j++ {
			a, b := align(bySt[keys[i]], bySt[keys[j]])
			score := NoOverlapScore
			if len(a) >= opts.MinOverlap {
				score = Pearson(a, b)
			}
			m.scores[i][j], m.scores[j][i] = score, score
			m.overlap[i][j], m.overlap[j][i] = len(a), len(a)
		}
	}

	return m
}

func groupSeries(rows []models.Measurement) map[station.Key]series {
	type acc struct {
		sum   float64
		count int
	}
	grouped := make(map[station.Key]map[int64]*acc)
	for _, r := range rows {
		if r.StationKey == "" {
			continue
		}
		k := station.Key(r.StationKey)
		if grouped[k] == nil {
			grouped[k] = make(map[int64]*acc)
		}
		ts := r.Timestamp.UnixNano()
		a := grouped[k][ts]
		if a == nil {
			a = &acc{}
			grouped[k][ts] = a
		}
		a.sum += r.PM25
		a.count++
	}

	out := make(map[station.Key]series, len(grouped))
	for k, byTS := range grouped {
		s := make(series, len(byTS))
		for ts, a := range byTS {
			s[ts] = a.sum / float64(a.count)
		}
		out[k] = s
	}
	return out
}

// align returns the values of a and b at their shared timestamps, in time order.
func align(a, b series) ([]float64, []float64) {
	if len(b) < len(a) {
		vb, va := align(b, a)
		return va, vb
	}
	shared := make([]int64, 0, len(a))
	for ts := range a {
		if _, ok := b[ts]; ok {
			shared = append(shared, ts)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })

	va := make([]float64, len(shared))
	vb := make([]float64, len(shared))
	for i, ts := range shared {
		va[i] = a[ts]
		vb[i] = b[ts]
	}
	return va, vb
}

// Keys returns the stations in the matrix in ascending order.
func (m *Matrix) Keys() []station.Key {
	if m == nil {
		return nil
	}
	out := make([]station.Key, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Has reports whether the station is part of the matrix.
func (m *Matrix) Has(k station.Key) bool {
	if m == nil {
		return false
	}
	_, ok := m.index[k]
	return ok
}

// Similarity returns sim(a, b); false if either station is unknown.
func (m *Matrix) Similarity(a, b station.Key) (float64, bool) {
	if m == nil {
		return 0, false
	}
	i, ok := m.index[a]
	if !ok {
		return 0, false
	}
	j, ok := m.index[b]
	if !ok {
		return 0, false
	}
	return m.scores[i][j], true
}

// Overlap returns the number of shared timestamps between two stations.
func (m *Matrix) Overlap(a, b station.Key) int {
	if m == nil {
		return 0
	}
	i, ok := m.index[a]
	if !ok {
		return 0
	}
	j, ok := m.index[b]
	if !ok {
		return 0
	}
	return m.overlap[i][j]
}

// Row returns a copy of a station's similarity row, self included.
func (m *Matrix) Row(k station.Key) map[station.Key]float64 {
	if m == nil {
		return nil
	}
	i, ok := m.index[k]
	if !ok {
		return nil
	}
	row := make(map[station.Key]float64, len(m.keys))
	for j, other := range m.keys {
		row[other] = m.scores[i][j]
	}
	return row
}

// MostSimilar returns up to k other stations scoring at or above floor,
// highest score first, ties broken by key. k <= 0 means no limit.
func (m *Matrix) MostSimilar(key station.Key, floor float64, k int) []Neighbor {
	if m == nil {
		return nil
	}
	i, ok := m.index[key]
	if !ok {
		return nil
	}

	var out []Neighbor
	for j, other := range m.keys {
		if j == i {
			continue
		}
		if s := m.scores[i][j]; s >= floor {
			out = append(out, Neighbor{Key: other, Score: s, Overlap: m.overlap[i][j]})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Key < out[b].Key
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
