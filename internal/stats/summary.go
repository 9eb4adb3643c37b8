package stats

import (
	"math"
	"sort"
)

// SpeedSummary describes the speeds seen over a run, in km/h
type SpeedSummary struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"meanKmh"`
	Median  float64 `json:"medianKmh"`
	P90     float64 `json:"p90Kmh"`
	Max     float64 `json:"maxKmh"`
}

// Summarize reduces speed samples; nil when there are none
func Summarize(samples []float64) *SpeedSummary {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return &SpeedSummary{
		Samples: len(sorted),
		Mean:    round2(Mean(sorted)),
		Median:  round2(quantile(sorted, 0.5)),
		P90:     round2(quantile(sorted, 0.9)),
		Max:     round2(sorted[len(sorted)-1]),
	}
}

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile returns the p-th percentile (0-100) with linear interpolation
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantile(sorted, p/100)
}

// quantile expects sorted input
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
