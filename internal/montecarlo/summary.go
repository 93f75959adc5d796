package montecarlo

import (
	"math"
	"sort"

	"github.com/verte-zerg/adamsim/internal/model"
)

// Summarize aggregates the results of one policy.
func Summarize(policy model.Policy, results []model.TrialResult) model.Summary {
	s := model.Summary{Policy: policy, Count: len(results)}
	if len(results) == 0 {
		return s
	}
	elapsed := make([]float64, len(results))
	fatigue := make([]float64, len(results))
	accuracy := make([]float64, len(results))
	harm := make([]float64, len(results))
	score := make([]float64, len(results))
	for i, r := range results {
		elapsed[i] = float64(r.ElapsedSec)
		fatigue[i] = r.FinalFatigue
		accuracy[i] = r.AvgAccuracy
		harm[i] = r.Harm
		score[i] = r.Score
		if r.Incomplete {
			s.Incomplete++
		}
	}
	s.ElapsedSec = Describe(elapsed)
	s.Fatigue = Describe(fatigue)
	s.Accuracy = Describe(accuracy)
	s.Harm = Describe(harm)
	s.Score = Describe(score)
	return s
}

// Describe returns the mean, p50 and p90 of values. values is not modified.
func Describe(values []float64) model.MetricSummary {
	if len(values) == 0 {
		return model.MetricSummary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return model.MetricSummary{
		Mean: sum / float64(len(sorted)),
		P50:  Percentile(sorted, 0.5),
		P90:  Percentile(sorted, 0.9),
	}
}

// Percentile returns the nearest-rank value at index floor(q*(n-1)) of an
// ascending sample. It does not interpolate.
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(q * float64(len(sorted)-1)))
	idx = min(max(idx, 0), len(sorted)-1)
	return sorted[idx]
}
