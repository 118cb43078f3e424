package dataset

import (
	"errors"
	"strings"
	"testing"
	"time"

	"atmosfera/internal/models"
	"atmosfera/internal/station"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `tanggal_lengkap,stasiun,pm25,pm10,kategori,critical
2023-01-01 07:00:00,DKI1 Bunderan HI,12.0,30,SEHAT,PM10
2023-01-01 07:00:00,DKI2 Kelapa Gading,40.5,61,SEDANG,PM25
2023-01-02 07:00:00,DKI1 Bunderan HI,70.2,,TIDAK SEHAT,PM25
2023-01-02 07:00:00,dki2 kelapa gading,35,55,waspada,PM25
2023-01-03 07:00:00,  ,20,40,SEHAT,PM10
2023-01-03 07:00:00,DKI3 Jagakarsa,not-a-number,40,SEHAT,PM10
2023-13-45 07:00:00,DKI3 Jagakarsa,20,40,SEHAT,PM10
2023-01-03 07:00:00,DKI3 Jagakarsa,-5,40,SEHAT,PM10
2023-01-04 07:00:00,DKI3 Jagakarsa,22,41,???,PM10
2024-02-01 07:00:00,DKI3 Jagakarsa,14,30,,PM10
`

func TestLoadCSV(t *testing.T) {
	snap, report, err := LoadCSV(strings.NewReader(sampleCSV), CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 6, report.Accepted)
	assert.Equal(t, 1, report.Rejected[RejectEmptyStation])
	assert.Equal(t, 2, report.Rejected[RejectBadPM25])
	assert.Equal(t, 1, report.Rejected[RejectBadTimestamp])
	assert.Equal(t, 1, report.UnknownCategories)
	assert.Equal(t, []string{"???"}, report.UnknownSamples)

	assert.Equal(t, 6, snap.Len())
	assert.Equal(t, []station.Key{"dki1-bunderan-hi", "dki2-kelapa-gading", "dki3-jagakarsa"}, snap.Stations())

	gading := snap.History("dki2-kelapa-gading")
	require.Len(t, gading, 2)
	assert.Equal(t, models.CategoryModerate, gading[1].Category)
	assert.Equal(t, "waspada", gading[1].CategoryRaw)
	assert.Equal(t, 55.0, gading[1].Features["pm10"])
	_, hasCritical := gading[1].Features["critical"]
	assert.False(t, hasCritical, "non-numeric columns are not features")

	hi := snap.History("dki1-bunderan-hi")
	require.Len(t, hi, 2)
	_, hasPM10 := hi[1].Features["pm10"]
	assert.False(t, hasPM10, "blank cells stay missing")

	unknown, ok := snap.Latest("dki3-jagakarsa")
	require.True(t, ok)
	assert.Equal(t, models.CategoryHealthy, unknown.Category, "blank category derives from pm25")

	rows := snap.History("dki3-jagakarsa")
	require.Len(t, rows, 2)
	assert.Equal(t, models.CategoryUnknown, rows[0].Category)
}

func TestLoadCSV_NoHeader(t *testing.T) {
	_, _, err := LoadCSV(strings.NewReader(""), CSVOptions{})
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	_, _, err := LoadCSV(strings.NewReader("tanggal,stasiun\n2023-01-01,A\n"), CSVOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "pm25")
}

func TestLoadCSV_ExplicitColumns(t *testing.T) {
	body := "when;where;fine;coarse;hum\n01/02/2023;Site A;10,5;20;80\n"
	snap, report, err := LoadCSV(strings.NewReader(body), CSVOptions{
		TimestampColumn: "when",
		StationColumn:   "where",
		PM25Column:      "fine",
		FeatureColumns:  []string{"coarse"},
		Comma:           ';',
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)

	m, ok := snap.Latest("site-a")
	require.True(t, ok)
	assert.Equal(t, 10.5, m.PM25)
	assert.Equal(t, models.CategoryHealthy, m.Category)
	assert.Equal(t, map[string]float64{"coarse": 20}, m.Features)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), m.Timestamp)
}

func hourly(key string, values ...float64) []models.Measurement {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Measurement, len(values))
	for i, v := range values {
		out[i] = models.Measurement{Timestamp: start.Add(time.Duration(i) * time.Hour), StationKey: key, PM25: v}
	}
	return out
}

func TestSnapshot_Trend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   models.Trend
	}{
		{"too short", []float64{10, 20, 30}, models.TrendUnknown},
		{"rising", []float64{10, 10, 20, 20}, models.TrendRising},
		{"falling", []float64{30, 30, 10, 10}, models.TrendFalling},
		{"stable within band", []float64{20, 20, 21, 21}, models.TrendStable},
		{"from zero", []float64{0, 0, 5, 5}, models.TrendRising},
		{"flat zero", []float64{0, 0, 0, 0}, models.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot(hourly("a", tt.values...))
			if got := snap.Trend("a", 0); got != tt.want {
				t.Errorf("Trend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_TrendWindow(t *testing.T) {
	// old history falls, the last four readings rise
	snap := NewSnapshot(hourly("a", 90, 80, 70, 60, 10, 10, 20, 20))
	assert.Equal(t, models.TrendRising, snap.Trend("a", 4))
	assert.Equal(t, models.TrendFalling, snap.Trend("a", 8))
}

func TestSnapshot_OrderingAndCopies(t *testing.T) {
	rows := hourly("a", 1, 2, 3)
	rows[0], rows[2] = rows[2], rows[0]
	snap := NewSnapshot(rows)

	latest, ok := snap.Latest("a")
	require.True(t, ok)
	assert.Equal(t, 3.0, latest.PM25)

	got := snap.Rows()
	got[0].PM25 = 999
	assert.Equal(t, 1.0, snap.Rows()[0].PM25, "Rows must return a copy")

	_, ok = snap.Latest("missing")
	assert.False(t, ok)
	assert.Empty(t, snap.History("missing"))
	assert.NotEmpty(t, snap.ID())
}

func TestSnapshot_FilterYears(t *testing.T) {
	rows := []models.Measurement{
		{Timestamp: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), StationKey: "a", PM25: 1},
		{Timestamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), StationKey: "b", PM25: 2},
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), StationKey: "a", PM25: 3},
	}
	snap := NewSnapshot(rows)
	assert.Equal(t, []int{2022, 2023, 2024}, snap.Years())

	filtered := snap.FilterYears([]int{2022, 2024})
	assert.Equal(t, 2, filtered.Len())
	assert.Equal(t, []station.Key{"a"}, filtered.Stations())
	assert.NotEqual(t, snap.ID(), filtered.ID())

	assert.Same(t, snap, snap.FilterYears(nil))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{"1,234.5", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
