// Package scoring implements the analysis engine: metric normalization,
// quarterly de-accumulation, fundamental and technical scoring, and the
// composite scorecard.
package scoring

import "github.com/bobmcallan/tally/internal/models"

// Grade maps a 0-100 score onto the five letter grades. Boundaries are
// shared by every scorer so grades stay comparable across artifacts.
func Grade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 65:
		return "B"
	case score >= 50:
		return "C"
	case score >= 30:
		return "D"
	default:
		return "F"
	}
}

// SignalFor maps a 0-100 score onto the five-tier trading signal. The
// bands partition [0,100] contiguously.
func SignalFor(score float64) string {
	switch {
	case score >= 80:
		return models.SignalStrongBuy
	case score >= 65:
		return models.SignalBuy
	case score >= 45:
		return models.SignalHold
	case score >= 30:
		return models.SignalSell
	default:
		return models.SignalStrongSell
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
