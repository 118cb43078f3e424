package similarity

import "math"

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Pearson correlates two aligned series. Pointwise identical series score 1
// even when constant; any other zero-variance pair scores 0.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	if identical(a, b) {
		return 1
	}

	meanA, meanB := Mean(a), Mean(b)

	var num, denA, denB float64
	for i := 0; i < n; i++ {
		diffA := a[i] - meanA
		diffB := b[i] - meanB
		num += diffA * diffB
		denA += diffA * diffA
		denB += diffB * diffB
	}

	if denA == 0 || denB == 0 {
		return 0
	}

	return clamp(num / (math.Sqrt(denA) * math.Sqrt(denB)))
}

func identical(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > MaxScore:
		return MaxScore
	case v < MinScore:
		return MinScore
	default:
		return v
	}
}
