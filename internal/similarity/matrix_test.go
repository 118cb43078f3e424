package similarity

import (
	"math"
	"testing"
	"time"

	"atmosfera/internal/models"
	"atmosfera/internal/station"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rowsFor(key string, values ...float64) []models.Measurement {
	out := make([]models.Measurement, len(values))
	for i, v := range values {
		out[i] = models.Measurement{
			Timestamp:  t0.Add(time.Duration(i) * time.Hour),
			StationRaw: key,
			StationKey: key,
			PM25:       v,
		}
	}
	return out
}

func join(parts ...[]models.Measurement) []models.Measurement {
	var out []models.Measurement
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestBuild_Empty(t *testing.T) {
	m := Build(nil, Options{})
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Keys())
	assert.Nil(t, m.MostSimilar("a", 0, 0))
}

func TestBuild_IdenticalSeriesScoreMax(t *testing.T) {
	series := []float64{12, 30, 45, 22, 18}
	m := Build(join(rowsFor("a", series...), rowsFor("b", series...)), Options{})

	s, ok := m.Similarity("a", "b")
	require.True(t, ok)
	assert.Equal(t, MaxScore, s)
}

func TestBuild_IdenticalConstantSeriesScoreMax(t *testing.T) {
	m := Build(join(rowsFor("a", 20, 20, 20), rowsFor("b", 20, 20, 20)), Options{})

	s, _ := m.Similarity("a", "b")
	assert.Equal(t, MaxScore, s)
}

func TestBuild_ConstantAgainstVaryingIsZero(t *testing.T) {
	m := Build(join(rowsFor("a", 20, 20, 20), rowsFor("b", 10, 20, 30)), Options{})

	s, _ := m.Similarity("a", "b")
	assert.Equal(t, 0.0, s)
}

func TestBuild_AntiCorrelated(t *testing.T) {
	m := Build(join(rowsFor("a", 1, 2, 3, 4), rowsFor("b", 4, 3, 2, 1)), Options{})

	s, _ := m.Similarity("a", "b")
	assert.InDelta(t, -1.0, s, 1e-12)
}

func TestBuild_SymmetricWithMaxSelf(t *testing.T) {
	rows := join(
		rowsFor("a", 10, 20, 35, 50, 41),
		rowsFor("b", 12, 25, 30, 48, 40),
		rowsFor("c", 60, 10, 5, 30, 22),
		rowsFor("d", 7),
	)
	m := Build(rows, Options{})
	require.Equal(t, 4, m.Len())

	for _, a := range m.Keys() {
		self, ok := m.Similarity(a, a)
		require.True(t, ok)
		assert.Equal(t, MaxScore, self, "self similarity for %s", a)

		for _, b := range m.Keys() {
			ab, _ := m.Similarity(a, b)
			ba, _ := m.Similarity(b, a)
			assert.Equal(t, ab, ba, "sim(%s,%s) != sim(%s,%s)", a, b, b, a)
			assert.GreaterOrEqual(t, ab, MinScore)
			assert.LessOrEqual(t, ab, MaxScore)
		}
	}
}

func TestBuild_NoOverlapSentinel(t *testing.T) {
	late := rowsFor("b", 10, 20, 30)
	for i := range late {
		late[i].Timestamp = late[i].Timestamp.Add(1000 * time.Hour)
	}
	m := Build(join(rowsFor("a", 10, 20, 30), late), Options{})

	s, ok := m.Similarity("a", "b")
	require.True(t, ok)
	assert.Equal(t, NoOverlapScore, s)
	assert.Equal(t, 0, m.Overlap("a", "b"))
}

func TestBuild_OverlapBelowMinimum(t *testing.T) {
	m := Build(join(rowsFor("a", 10, 20, 30), rowsFor("b", 10, 20, 30)), Options{MinOverlap: 5})

	s, _ := m.Similarity("a", "b")
	assert.Equal(t, NoOverlapScore, s)
	assert.Equal(t, 3, m.Overlap("a", "b"))
}

func TestBuild_DuplicateTimestampsAveraged(t *testing.T) {
	a := rowsFor("a", 10, 20, 30)
	dup := a[1]
	dup.PM25 = 40 // averages with 20 to 30
	b := rowsFor("b", 10, 30, 30)
	m := Build(join(a, []models.Measurement{dup}, b), Options{})

	s, _ := m.Similarity("a", "b")
	assert.Equal(t, MaxScore, s)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	rows := join(rowsFor("a", 1, 2, 3), rowsFor("b", 3, 1, 2))
	before := make([]models.Measurement, len(rows))
	copy(before, rows)

	Build(rows, Options{})
	assert.Equal(t, before, rows)
}

func TestMostSimilar_Ordering(t *testing.T) {
	rows := join(
		rowsFor("target", 10, 20, 30, 40),
		rowsFor("twin-b", 10, 20, 30, 40),
		rowsFor("twin-a", 10, 20, 30, 40),
		rowsFor("close", 12, 19, 33, 41),
		rowsFor("inverse", 40, 30, 20, 10),
	)
	m := Build(rows, Options{})

	got := m.MostSimilar("target", 0.5, 0)
	keys := make([]station.Key, len(got))
	for i, n := range got {
		keys[i] = n.Key
	}
	assert.Equal(t, []station.Key{"twin-a", "twin-b", "close"}, keys)

	top := m.MostSimilar("target", -1, 1)
	require.Len(t, top, 1)
	assert.Equal(t, station.Key("twin-a"), top[0].Key)
	assert.Equal(t, 4, top[0].Overlap)
}

func TestMostSimilar_UnknownStation(t *testing.T) {
	m := Build(rowsFor("a", 1, 2), Options{})
	assert.Nil(t, m.MostSimilar("missing", 0, 3))
	_, ok := m.Similarity("a", "missing")
	assert.False(t, ok)
	assert.Nil(t, m.Row("missing"))
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"empty", nil, nil, 0},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0},
		{"perfect", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"inverse", []float64{1, 2, 3}, []float64{3, 2, 1}, -1},
		{"single identical point", []float64{5}, []float64{5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pearson(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Pearson() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{2, 4, 4, 4, 5, 5, 7, 9}); got != 5 {
		t.Errorf("Mean() = %v, want 5", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
}
