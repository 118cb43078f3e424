// Package recommender holds the engine state built once per dataset load and
// the entry points every surface (HTTP, CLI, batch jobs) calls into.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"atmosfera/internal/annotator"
	"atmosfera/internal/assets"
	"atmosfera/internal/dataset"
	"atmosfera/internal/logging"
	"atmosfera/internal/metrics"
	"atmosfera/internal/models"
	"atmosfera/internal/predictor"
	"atmosfera/internal/rules"
	"atmosfera/internal/similarity"
	"atmosfera/internal/station"
)

// ErrUnknownStation is returned for stations absent from the snapshot.
var ErrUnknownStation = errors.New("unknown station")

type Config struct {
	Similarity  similarity.Options
	Predictor   predictor.Options
	TrendWindow int
	Rules       *rules.Engine
}

// State is everything a recommendation request reads. It is fully built
// before Build returns and never modified afterwards.
type State struct {
	snapshot  *dataset.Snapshot
	matrix    *similarity.Matrix
	assets    *assets.Assets
	rules     *rules.Engine
	predictor *predictor.Predictor
	annotator *annotator.Annotator
	cfg       Config
	builtAt   time.Time
}

// Build constructs the similarity matrix and wires the engine around snap.
// A nil asset bundle is allowed; predictions then degrade to rule-only output.
func Build(snap *dataset.Snapshot, a *assets.Assets, cfg Config) (*State, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	if cfg.Rules == nil {
		cfg.Rules = rules.Default()
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = dataset.DefaultTrendWindow
	}

	start := time.Now()
	matrix := similarity.Build(snap.Rows(), cfg.Similarity)
	elapsed := time.Since(start)
	metrics.RecordSimilarityBuild(matrix.Len(), elapsed)

	ev := logging.Info().Str("snapshot", snap.ID()).Int("rows", snap.Len()).
		Int("stations", matrix.Len()).Dur("similarity_build", elapsed)
	if a != nil {
		ev = ev.Str("model_version", a.Version).Strs("features", a.Features)
	} else {
		logging.Warn().Msg("model assets not loaded, predictions will be unavailable")
	}
	ev.Msg("engine state built")

	return &State{
		snapshot:  snap,
		matrix:    matrix,
		assets:    a,
		rules:     cfg.Rules,
		predictor: predictor.New(cfg.Rules, cfg.Predictor),
		annotator: annotator.New(cfg.Rules),
		cfg:       cfg,
		builtAt:   time.Now(),
	}, nil
}

func (s *State) Snapshot() *dataset.Snapshot { return s.snapshot }

func (s *State) Matrix() *similarity.Matrix { return s.matrix }

func (s *State) Rules() *rules.Engine { return s.rules }

func (s *State) Annotator() *annotator.Annotator { return s.annotator }

func (s *State) BuiltAt() time.Time { return s.builtAt }

// ModelVersion is empty when no assets are loaded.
func (s *State) ModelVersion() string {
	if s.assets == nil {
		return ""
	}
	return s.assets.Version
}

// Resolve normalizes raw station text and checks it exists.
func (s *State) Resolve(raw string) (station.Key, error) {
	key, err := station.Normalize(raw)
	if err != nil {
		return "", err
	}
	if !s.snapshot.Has(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownStation, raw)
	}
	return key, nil
}

// Recommend runs the hybrid prediction for a station's latest measurement.
// predictor.ErrMissingFeature and predictor.ErrModelUnavailable come back
// alongside a degraded but usable prediction.
func (s *State) Recommend(key station.Key) (models.HybridPrediction, error) {
	latest, ok := s.snapshot.Latest(key)
	if !ok {
		return models.HybridPrediction{}, fmt.Errorf("%w: %s", ErrUnknownStation, key)
	}

	in := predictor.Input{
		Latest:     latest,
		StationKey: key,
		Matrix:     s.matrix,
		Peers:      s.snapshot,
		Trend:      s.Trend(key),
	}
	if s.assets != nil {
		in.Scaler = s.assets.Scaler
		in.Classifier = s.assets.Classifier
		in.Features = s.assets.Features
	}

	res, err := s.predictor.Predict(in)
	outcome := "ok"
	switch {
	case errors.Is(err, predictor.ErrMissingFeature):
		outcome = "missing_feature"
	case errors.Is(err, predictor.ErrModelUnavailable):
		outcome = "model_unavailable"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordPrediction(outcome)
	metrics.RecordRecommendation(string(res.Public.Scope), string(res.Public.Tier))
	metrics.RecordRecommendation(string(res.Policy.Scope), string(res.Policy.Tier))

	if err != nil {
		logging.Warn().Err(err).Str("station", string(key)).Msg("prediction degraded to rule-only output")
	}
	return res, err
}

// Similar returns up to k stations at or above the similarity floor.
func (s *State) Similar(key station.Key, k int) ([]similarity.Neighbor, error) {
	if !s.matrix.Has(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, key)
	}
	if k <= 0 {
		k = s.cfg.Predictor.MaxPeers
	}
	return s.matrix.MostSimilar(key, s.cfg.Predictor.SimilarityFloor, k), nil
}

// History returns the annotated recommendation log, newest first.
func (s *State) History(limit int) []annotator.Annotation {
	return s.annotator.Log(s.snapshot.Rows(), limit)
}

// Annotations annotates every row, optionally for one station only.
func (s *State) Annotations(key station.Key) []annotator.Annotation {
	if key == "" {
		return s.annotator.Annotate(s.snapshot.Rows())
	}
	return s.annotator.Annotate(s.snapshot.History(key))
}

// KPI summarizes the snapshot, restricted to years when given.
func (s *State) KPI(years []int) annotator.KPI {
	return annotator.Summarize(s.snapshot.FilterYears(years).Rows())
}

// Trend is the station's PM2.5 direction over the configured window.
func (s *State) Trend(key station.Key) models.Trend {
	return s.snapshot.Trend(key, s.cfg.TrendWindow)
}

// StationSummary is a station with its most recent reading.
type StationSummary struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	ObservedAt time.Time       `json:"observed_at"`
	PM25       float64         `json:"pm25"`
	Category   models.Category `json:"category"`
	Trend      models.Trend    `json:"trend"`
	Rows       int             `json:"rows"`
}

func (s *State) Stations() []StationSummary {
	keys := s.snapshot.Stations()
	out := make([]StationSummary, 0, len(keys))
	for _, k := range keys {
		latest, _ := s.snapshot.Latest(k)
		out = append(out, StationSummary{
			Key:        string(k),
			Name:       latest.StationRaw,
			ObservedAt: latest.Timestamp,
			PM25:       latest.PM25,
			Category:   latest.Category,
			Trend:      s.Trend(k),
			Rows:       len(s.snapshot.History(k)),
		})
	}
	return out
}

// Loader rebuilds a complete State, typically from a fresh dataset.
type Loader func(ctx context.Context) (*State, error)

// Holder publishes the current State. Readers always see a fully built
// state; a dataset change is a full rebuild followed by Swap.
type Holder struct {
	current atomic.Pointer[State]
}

func NewHolder(s *State) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

// Load returns the current state, or nil if none was stored.
func (h *Holder) Load() *State {
	return h.current.Load()
}

// Swap publishes next and returns the previous state.
func (h *Holder) Swap(next *State) *State {
	return h.current.Swap(next)
}

// Reload runs loader and swaps the result in on success.
func (h *Holder) Reload(ctx context.Context, loader Loader) (*State, error) {
	next, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload failed: %w", err)
	}
	h.Swap(next)
	logging.Info().Str("snapshot", next.Snapshot().ID()).Msg("engine state swapped")
	return next, nil
}
