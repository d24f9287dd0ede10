package scoring

import (
	"math"

	"github.com/bobmcallan/tally/internal/models"
)

// breakpoint maps one input value to one score on a piecewise-linear
// normalization curve. Curves must be ordered by ascending input value.
type breakpoint struct {
	at    float64
	score float64
}

// interpolate evaluates a piecewise-linear curve at value, clamping to
// the end scores outside the curve's range. NaN and Inf inputs score the
// neutral midpoint rather than poisoning a composite.
func interpolate(value float64, points []breakpoint) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 50
	}
	if value <= points[0].at {
		return points[0].score
	}
	last := points[len(points)-1]
	if value >= last.at {
		return last.score
	}
	for i := 0; i < len(points)-1; i++ {
		p1, p2 := points[i], points[i+1]
		if value >= p1.at && value <= p2.at {
			if p2.at == p1.at {
				return p1.score
			}
			t := (value - p1.at) / (p2.at - p1.at)
			return round1(p1.score + t*(p2.score-p1.score))
		}
	}
	return 50
}

// missingMetric records a data gap and returns the neutral placeholder
// used for absent inputs: no value, midpoint score, grade C. The caller
// excludes it from composite weighting.
func missingMetric(gaps *[]string, key, desc string) models.MetricScore {
	*gaps = append(*gaps, key)
	return models.MetricScore{Score: 50, Grade: "C", Description: desc}
}

// scoredMetric builds a MetricScore carrying the raw value alongside its
// normalized score and derived grade.
func scoredMetric(value, score float64, desc string) models.MetricScore {
	v := round2(value)
	return models.MetricScore{
		Value:       &v,
		Score:       round1(score),
		Grade:       Grade(score),
		Description: desc,
	}
}

// unvaluedMetric builds a MetricScore with a real score but no raw value,
// for conditions like a loss-to-profit turnaround where no single ratio
// describes the transition.
func unvaluedMetric(score float64, desc string) models.MetricScore {
	return models.MetricScore{
		Score:       round1(score),
		Grade:       Grade(score),
		Description: desc,
	}
}

// weighted pairs one available metric score with its in-block weight.
type weighted struct {
	score  float64
	weight float64
}

// weightedAverage renormalizes weights over the supplied entries. Missing
// metrics are simply not supplied by the caller, so absent data never
// drags a composite toward zero.
func weightedAverage(items []weighted) float64 {
	var total float64
	for _, it := range items {
		total += it.weight
	}
	if total == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.score * (it.weight / total)
	}
	return sum
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
