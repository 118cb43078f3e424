// Package assets loads the pretrained scaler and classifier the predictor consumes.
// Fitting either model happens elsewhere; this package only applies them.
package assets

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/goccy/go-json"
)

// ErrInvalidAssets marks an asset file whose shapes do not line up.
var ErrInvalidAssets = errors.New("invalid model assets")

// File is the on-disk asset layout.
type File struct {
	Version    string          `json:"version"`
	Features   []string        `json:"features"`
	Scaler     ScalerSpec      `json:"scaler"`
	Classifier ClassifierSpec  `json:"classifier"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

type ScalerSpec struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type ClassifierSpec struct {
	Classes   []string    `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// Assets is a validated, ready-to-use model bundle. Read-only after Load.
type Assets struct {
	Version    string
	Features   []string
	Scaler     *StandardScaler
	Classifier *LogisticRegression
}

// Load reads and validates an asset file.
func Load(path string) (*Assets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model assets %s: %w", path, err)
	}
	defer f.Close()

	a, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Decode parses and validates assets from r.
func Decode(r io.Reader) (*Assets, error) {
	var file File
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssets, err)
	}
	return FromFile(file)
}

// FromFile validates an already-decoded asset layout.
func FromFile(file File) (*Assets, error) {
	n := len(file.Features)
	if n == 0 {
		return nil, fmt.Errorf("%w: feature list is empty", ErrInvalidAssets)
	}

	scaler, err := NewStandardScaler(file.Scaler.Mean, file.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	if scaler.Dim() != n {
		return nil, fmt.Errorf("%w: scaler has %d dims, features has %d", ErrInvalidAssets, scaler.Dim(), n)
	}

	clf, err := NewLogisticRegression(file.Classifier.Classes, file.Classifier.Coef, file.Classifier.Intercept)
	if err != nil {
		return nil, err
	}
	if clf.Dim() != n {
		return nil, fmt.Errorf("%w: classifier has %d dims, features has %d", ErrInvalidAssets, clf.Dim(), n)
	}

	features := make([]string, n)
	copy(features, file.Features)

	return &Assets{
		Version:    file.Version,
		Features:   features,
		Scaler:     scaler,
		Classifier: clf,
	}, nil
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
