package recommender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atmosfera/internal/assets"
	"atmosfera/internal/dataset"
	"atmosfera/internal/models"
	"atmosfera/internal/predictor"
	"atmosfera/internal/station"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(key string, cats []models.Category, values ...float64) []models.Measurement {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Measurement, len(values))
	for i, v := range values {
		out[i] = models.Measurement{
			ID:         int64(i + 1),
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			StationRaw: key,
			StationKey: key,
			PM25:       v,
			Category:   cats[i],
		}
	}
	return out
}

func testSnapshot() *dataset.Snapshot {
	h, m, u := models.CategoryHealthy, models.CategoryModerate, models.CategoryUnhealthy
	var rows []models.Measurement
	rows = append(rows, series("ancol", []models.Category{h, h, h, h, h, h}, 2, 4, 9, 13, 7, 14)...)
	rows = append(rows, series("bambu", []models.Category{h, m, m, u, m, u}, 10, 18, 40, 60, 30, 70)...)
	rows = append(rows, series("cempaka", []models.Category{u, u, m, m, u, h}, 90, 80, 40, 30, 60, 10)...)
	return dataset.NewSnapshot(rows)
}

func testAssets(t *testing.T) *assets.Assets {
	t.Helper()
	a, err := assets.FromFile(assets.File{
		Version:  "test",
		Features: []string{"pm25"},
		Scaler:   assets.ScalerSpec{Mean: []float64{0}, Scale: []float64{1}},
		Classifier: assets.ClassifierSpec{
			Classes:   []string{"SEHAT", "TIDAK SEHAT"},
			Coef:      [][]float64{{0.1}},
			Intercept: []float64{-4},
		},
	})
	require.NoError(t, err)
	return a
}

func testConfig() Config {
	return Config{Predictor: predictor.DefaultOptions()}
}

func TestBuild(t *testing.T) {
	s, err := Build(testSnapshot(), testAssets(t), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, s.Matrix().Len())
	assert.Equal(t, "test", s.ModelVersion())
	assert.NotNil(t, s.Rules())
	assert.False(t, s.BuiltAt().IsZero())

	_, err = Build(nil, nil, testConfig())
	assert.Error(t, err)
}

func TestRecommend(t *testing.T) {
	s, err := Build(testSnapshot(), testAssets(t), testConfig())
	require.NoError(t, err)

	res, err := s.Recommend("bambu")
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, models.CategoryUnhealthy, res.CurrentCategory)
	assert.Equal(t, models.CategoryUnhealthy, res.PredictedCategory)
	assert.Greater(t, res.UnhealthyProbability, 0.9)
	assert.Equal(t, models.TierBad, res.Public.Tier)
	assert.Equal(t, models.TierBad, res.Policy.Tier)

	res, err = s.Recommend("ancol")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryHealthy, res.PredictedCategory)
	assert.Equal(t, models.TierWarn, res.Situation.Tier, "ancol tracks bambu, which is worse")
	require.NotEmpty(t, res.Situation.Peers)
	assert.Equal(t, "bambu", res.Situation.Peers[0].StationKey)

	_, err = s.Recommend("missing")
	assert.True(t, errors.Is(err, ErrUnknownStation))
}

func TestRecommend_WithoutAssets(t *testing.T) {
	s, err := Build(testSnapshot(), nil, testConfig())
	require.NoError(t, err)
	assert.Empty(t, s.ModelVersion())

	res, err := s.Recommend("bambu")
	assert.True(t, errors.Is(err, predictor.ErrModelUnavailable))
	assert.False(t, res.Available)
	assert.Equal(t, models.TierBad, res.Policy.Tier)
	assert.NotEmpty(t, res.Public.Text)
}

func TestResolve(t *testing.T) {
	s, err := Build(testSnapshot(), nil, testConfig())
	require.NoError(t, err)

	key, err := s.Resolve("  Bambu ")
	require.NoError(t, err)
	assert.Equal(t, station.Key("bambu"), key)

	_, err = s.Resolve("nowhere")
	assert.True(t, errors.Is(err, ErrUnknownStation))

	_, err = s.Resolve("")
	assert.True(t, errors.Is(err, station.ErrEmptyStation))
}

func TestSimilar(t *testing.T) {
	s, err := Build(testSnapshot(), nil, testConfig())
	require.NoError(t, err)

	got, err := s.Similar("ancol", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, station.Key("bambu"), got[0].Key)

	_, err = s.Similar("missing", 1)
	assert.True(t, errors.Is(err, ErrUnknownStation))
}

func TestHistoryAndKPI(t *testing.T) {
	s, err := Build(testSnapshot(), nil, testConfig())
	require.NoError(t, err)

	log := s.History(2)
	require.Len(t, log, 2)
	assert.False(t, log[0].Timestamp.Before(log[1].Timestamp))

	assert.Len(t, s.Annotations(""), 18)
	assert.Len(t, s.Annotations("cempaka"), 6)

	kpi := s.KPI(nil)
	assert.Equal(t, 18, kpi.Rows)
	assert.Equal(t, "cempaka", kpi.CriticalStation)
	assert.Zero(t, s.KPI([]int{1999}).Rows)
}

func TestStations(t *testing.T) {
	s, err := Build(testSnapshot(), nil, testConfig())
	require.NoError(t, err)

	got := s.Stations()
	require.Len(t, got, 3)
	assert.Equal(t, "ancol", got[0].Key)
	assert.Equal(t, 6, got[1].Rows)
	assert.Equal(t, models.CategoryUnhealthy, got[1].Category)
	assert.Equal(t, 70.0, got[1].PM25)
}

func TestHolder(t *testing.T) {
	first, err := Build(testSnapshot(), nil, testConfig())
	require.NoError(t, err)
	h := NewHolder(first)
	assert.Same(t, first, h.Load())

	next, err := h.Reload(context.Background(), func(context.Context) (*State, error) {
		return Build(testSnapshot(), nil, testConfig())
	})
	require.NoError(t, err)
	assert.Same(t, next, h.Load())
	assert.NotEqual(t, first.Snapshot().ID(), h.Load().Snapshot().ID())

	_, err = h.Reload(context.Background(), func(context.Context) (*State, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Same(t, next, h.Load(), "failed reload keeps the current state")
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	first, err := Build(testSnapshot(), testAssets(t), testConfig())
	require.NoError(t, err)
	h := NewHolder(first)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res, err := h.Load().Recommend("bambu")
				if err != nil || !res.Available {
					t.Errorf("Recommend() = %v, %v", res, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		next, err := Build(testSnapshot(), testAssets(t), testConfig())
		require.NoError(t, err)
		h.Swap(next)
	}
	wg.Wait()
}
