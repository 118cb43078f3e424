package assets

import (
	"fmt"
	"math"
)

// LogisticRegression scores a scaled feature vector.
// One coefficient row is a binary model over classes[0], classes[1];
// k rows are a multinomial model over k classes.
type LogisticRegression struct {
	classes   []string
	coef      [][]float64
	intercept []float64
}

func NewLogisticRegression(classes []string, coef [][]float64, intercept []float64) (*LogisticRegression, error) {
	if len(coef) == 0 || len(coef) != len(intercept) {
		return nil, fmt.Errorf("%w: classifier has %d coefficient rows and %d intercepts", ErrInvalidAssets, len(coef), len(intercept))
	}

	switch {
	case len(coef) == 1 && len(classes) != 2:
		return nil, fmt.Errorf("%w: binary classifier needs 2 classes, got %d", ErrInvalidAssets, len(classes))
	case len(coef) > 1 && len(classes) != len(coef):
		return nil, fmt.Errorf("%w: %d classes for %d coefficient rows", ErrInvalidAssets, len(classes), len(coef))
	}

	dim := len(coef[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: classifier has no coefficients", ErrInvalidAssets)
	}
	rows := make([][]float64, len(coef))
	for i, row := range coef {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: coefficient row %d has %d values, want %d", ErrInvalidAssets, i, len(row), dim)
		}
		if !finite(row) {
			return nil, fmt.Errorf("%w: coefficient row %d is not finite", ErrInvalidAssets, i)
		}
		rows[i] = append([]float64(nil), row...)
	}
	if !finite(intercept) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrInvalidAssets)
	}

	return &LogisticRegression{
		classes:   append([]string(nil), classes...),
		coef:      rows,
		intercept: append([]float64(nil), intercept...),
	}, nil
}

func (l *LogisticRegression) Dim() int { return len(l.coef[0]) }

// Classes returns class labels in probability order.
func (l *LogisticRegression) Classes() []string {
	return append([]string(nil), l.classes...)
}

// PredictProba returns one probability per class, summing to 1.
func (l *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	if len(x) != l.Dim() {
		return nil, fmt.Errorf("classifier expects %d features, got %d", l.Dim(), len(x))
	}

	logits := make([]float64, len(l.coef))
	for k, row := range l.coef {
		z := l.intercept[k]
		for i, w := range row {
			z += w * x[i]
		}
		logits[k] = z
	}

	if len(logits) == 1 {
		p := sigmoid(logits[0])
		return []float64{1 - p, p}, nil
	}
	return softmax(logits), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(z []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range z {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
