package scoring

import (
	"math"

	"github.com/bobmcallan/tally/internal/models"
)

// CalculatePEG computes the PEG ratio from the trailing PE and the best
// available earnings growth rate, since upstream PEG fields are
// unreliable. Returns the ratio and the growth method used:
// "analyst_estimate", "trailing_3yr", or "unavailable".
func CalculatePEG(f *models.RawFundamentals) (*float64, string) {
	if f.PERatio == nil || *f.PERatio <= 0 {
		return nil, "unavailable"
	}

	if f.EarningsGrowth != nil && *f.EarningsGrowth > 0 {
		peg := round2(*f.PERatio / (*f.EarningsGrowth * 100))
		return &peg, "analyst_estimate"
	}

	if cagr := trailingEarningsCAGR(f.AnnualIncome); cagr != nil && *cagr > 0 {
		peg := round2(*f.PERatio / (*cagr * 100))
		return &peg, "trailing_3yr"
	}

	return nil, "unavailable"
}

// trailingEarningsCAGR computes the net income CAGR over up to three
// years of annual statements, newest first.
func trailingEarningsCAGR(annual []models.AnnualFigures) *float64 {
	if len(annual) < 2 {
		return nil
	}

	oldestIdx := len(annual) - 1
	if oldestIdx > 3 {
		oldestIdx = 3
	}

	recent := annual[0].NetIncome
	oldest := annual[oldestIdx].NetIncome
	if recent == nil || oldest == nil || *recent <= 0 || *oldest <= 0 {
		return nil
	}

	years := float64(oldestIdx)
	cagr := math.Pow(*recent / *oldest, 1/years) - 1
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		return nil
	}
	return &cagr
}
