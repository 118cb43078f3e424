package predictor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"atmosfera/internal/models"
	"atmosfera/internal/rules"
	"atmosfera/internal/similarity"
	"atmosfera/internal/station"
)

var (
	// ErrMissingFeature means the latest measurement lacks a model input.
	ErrMissingFeature = errors.New("missing feature")
	// ErrModelUnavailable means the scaler or classifier is absent or failed.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Scaler applies pretrained feature scaling.
type Scaler interface {
	Transform(x []float64) ([]float64, error)
}

// Classifier scores a scaled vector into per-class probabilities, in Classes order.
type Classifier interface {
	Classes() []string
	PredictProba(x []float64) ([]float64, error)
}

// PeerLookup resolves a station's latest measurement.
type PeerLookup interface {
	Latest(key station.Key) (models.Measurement, bool)
}

// Input is everything one prediction depends on.
type Input struct {
	Latest     models.Measurement
	StationKey station.Key
	Matrix     *similarity.Matrix
	Peers      PeerLookup
	Scaler     Scaler
	Classifier Classifier
	Features   []string
	Trend      models.Trend
}

type Options struct {
	// SimilarityFloor is the minimum score for a station to count as similar.
	SimilarityFloor float64 `yaml:"floor" validate:"gte=-1,lte=1"`
	// MaxPeers caps how many similar stations are inspected.
	MaxPeers int `yaml:"max_peers" validate:"gte=0"`
	// MaxPeerAge drops peer readings older than this relative to the target's
	// observation. Zero accepts any age.
	MaxPeerAge time.Duration `yaml:"max_peer_age" validate:"gte=0"`
}

func DefaultOptions() Options {
	return Options{SimilarityFloor: 0.7, MaxPeers: 3, MaxPeerAge: 72 * time.Hour}
}

// Predictor combines classifier scoring with the station-similarity signal.
// It keeps no state between calls.
type Predictor struct {
	rules *rules.Engine
	opts  Options
}

func New(engine *rules.Engine, opts Options) *Predictor {
	if engine == nil {
		engine = rules.Default()
	}
	return &Predictor{rules: engine, opts: opts}
}

// Predict scores the latest measurement for the next 24 hours.
//
// On ErrMissingFeature or ErrModelUnavailable the returned prediction is still
// usable: Available is false, the public and situational fields are filled and
// the policy recommendation comes from the current category alone.
func (p *Predictor) Predict(in Input) (models.HybridPrediction, error) {
	current := in.Latest.Category
	if current == "" {
		current = models.CategoryUnknown
	}

	res := models.HybridPrediction{
		StationKey:      string(in.StationKey),
		ObservedAt:      in.Latest.Timestamp,
		CurrentCategory: current,
		Public:          p.rules.PublicAction(current),
		Situation:       p.situation(in, current),
	}

	proba, classes, err := p.score(in)
	if err != nil {
		res.UnavailableReason = err.Error()
		res.Policy = p.rules.PolicyActionCategory(current)
		return res, err
	}

	unhealthy, ok := unhealthyProbability(classes, proba)
	if !ok {
		err := fmt.Errorf("%w: classifier has no unhealthy class in %v", ErrModelUnavailable, classes)
		res.UnavailableReason = err.Error()
		res.Policy = p.rules.PolicyActionCategory(current)
		return res, err
	}

	predicted := argmaxCategory(classes, proba)

	res.Available = true
	res.PredictedCategory = predicted
	res.UnhealthyProbability = unhealthy
	res.Forecast = p.rules.ForecastAction(predicted)
	res.Policy = p.rules.PolicyAction(predicted, unhealthy, in.Trend)
	return res, nil
}

func (p *Predictor) score(in Input) ([]float64, []string, error) {
	if in.Scaler == nil || in.Classifier == nil {
		return nil, nil, fmt.Errorf("%w: scaler or classifier not loaded", ErrModelUnavailable)
	}
	if len(in.Features) == 0 {
		return nil, nil, fmt.Errorf("%w: empty feature list", ErrModelUnavailable)
	}

	x, err := ExtractFeatures(in.Latest, in.Features)
	if err != nil {
		return nil, nil, err
	}

	scaled, err := in.Scaler.Transform(x)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: scaler: %v", ErrModelUnavailable, err)
	}

	proba, err := in.Classifier.PredictProba(scaled)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: classifier: %v", ErrModelUnavailable, err)
	}

	classes := in.Classifier.Classes()
	if len(proba) == 0 || len(proba) != len(classes) {
		return nil, nil, fmt.Errorf("%w: classifier returned %d probabilities for %d classes", ErrModelUnavailable, len(proba), len(classes))
	}
	for _, v := range proba {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, nil, fmt.Errorf("%w: classifier returned invalid probability %v", ErrModelUnavailable, v)
		}
	}
	return proba, classes, nil
}

// ExtractFeatures builds the model input vector in feature order.
// Missing values are an error, never zero-filled.
func ExtractFeatures(m models.Measurement, features []string) ([]float64, error) {
	x := make([]float64, len(features))
	for i, name := range features {
		v, ok := m.Feature(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s is NaN", ErrMissingFeature, name)
		}
		x[i] = v
	}
	return x, nil
}

// unhealthyProbability sums the probability of every class labelled unhealthy.
func unhealthyProbability(classes []string, proba []float64) (float64, bool) {
	sum, found := 0.0, false
	for i, label := range classes {
		if c, ok := models.ParseCategory(label); ok && c == models.CategoryUnhealthy {
			sum += proba[i]
			found = true
		}
	}
	return math.Min(1, sum), found
}

// argmaxCategory picks the most likely class; the first maximum wins.
func argmaxCategory(classes []string, proba []float64) models.Category {
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	c, _ := models.ParseCategory(classes[best])
	return c
}

func (p *Predictor) situation(in Input, current models.Category) models.Situation {
	cat := p.rules.Catalog()

	if in.Matrix == nil || !in.Matrix.Has(in.StationKey) || in.Matrix.Len() < 2 {
		return models.Situation{Tier: models.TierOK, Text: cat.NoComparable}
	}

	neighbors := in.Matrix.MostSimilar(in.StationKey, p.opts.SimilarityFloor, p.opts.MaxPeers)
	if len(neighbors) == 0 {
		return models.Situation{Tier: models.TierOK, Text: fmt.Sprintf(cat.NoneAboveFloor, p.opts.SimilarityFloor)}
	}

	peers := make([]models.Peer, len(neighbors))
	worst := -1
	for i, n := range neighbors {
		peers[i] = models.Peer{StationKey: string(n.Key), Similarity: n.Score, Category: models.CategoryUnknown}
		if in.Peers == nil {
			continue
		}
		if m, ok := in.Peers.Latest(n.Key); ok {
			peers[i].Category = m.Category
			if p.stale(in.Latest.Timestamp, m.Timestamp) {
				peers[i].Stale = true
				continue
			}
			peers[i].Known = true
			// neighbors are ordered by similarity, so the first worse peer is the most similar one
			if worst < 0 && m.Category.Severity() > current.Severity() {
				worst = i
			}
		}
	}

	if worst < 0 {
		return models.Situation{
			Tier:  models.TierOK,
			Text:  fmt.Sprintf(cat.PeersSameOrBetter, len(peers)),
			Peers: peers,
		}
	}

	w := peers[worst]
	return models.Situation{
		Tier:  models.TierWarn,
		Text:  fmt.Sprintf(cat.PeerWorse, w.StationKey, w.Category.Label(), w.Similarity, current.Label()),
		Peers: peers,
	}
}

// stale reports whether a peer reading is too old to describe current conditions.
func (p *Predictor) stale(observed, peer time.Time) bool {
	if p.opts.MaxPeerAge <= 0 || observed.IsZero() {
		return false
	}
	return observed.Sub(peer) > p.opts.MaxPeerAge
}
