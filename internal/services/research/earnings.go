package research

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/cache"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// maxEarningsQuarters caps the earnings table at the most recent quarters.
const maxEarningsQuarters = 8

// yoyTolerance is how far a quarter's period end may drift from exactly
// one year earlier and still count as the year-ago comparison quarter.
const yoyTolerance = 40 * 24 * time.Hour

// GetEarnings returns up to eight de-accumulated quarters, newest first,
// each enriched with QoQ and YoY changes and the operating margin.
func (s *Service) GetEarnings(ctx context.Context, ticker string) (*models.EarningsSummary, error) {
	ticker = normalizeTicker(ticker)
	return cache.Typed[*models.EarningsSummary](s.cache.GetOrCompute(ctx, "earnings:"+ticker, common.FreshnessAnalysis, 0, func(ctx context.Context) (any, error) {
		filings, err := s.provider.GetFilings(ctx, ticker)
		if err != nil {
			return nil, err
		}

		quarters := s.deaccumulator.Deaccumulate(filings)
		return &models.EarningsSummary{
			Ticker:      ticker,
			Quarters:    enrichQuarters(quarters),
			GeneratedAt: time.Now().UTC(),
		}, nil
	}))
}

// enrichQuarters derives growth and margin figures from the standalone
// quarters, then reverses to newest-first and applies the table cap.
// Input is chronological, oldest first.
func enrichQuarters(quarters []models.QuarterlyEarnings) []models.EarningsQuarter {
	if len(quarters) == 0 {
		return []models.EarningsQuarter{}
	}

	enriched := make([]models.EarningsQuarter, len(quarters))
	for i, q := range quarters {
		e := models.EarningsQuarter{QuarterlyEarnings: q}

		if i > 0 {
			prev := quarters[i-1]
			e.RevenueQoQ = pctChange(q.Revenue, prev.Revenue)
			e.NetIncomeQoQ = pctChange(q.NetIncome, prev.NetIncome)
		}
		if yearAgo := findYearAgo(quarters[:i], q.PeriodEnd); yearAgo != nil {
			e.RevenueYoY = pctChange(q.Revenue, yearAgo.Revenue)
			e.NetIncomeYoY = pctChange(q.NetIncome, yearAgo.NetIncome)
		}
		if q.OperatingIncome != nil && q.Revenue != nil && *q.Revenue != 0 {
			margin := *q.OperatingIncome / *q.Revenue * 100
			e.OperatingMargin = &margin
		}

		enriched[i] = e
	}

	// Newest first for presentation.
	out := make([]models.EarningsQuarter, 0, maxEarningsQuarters)
	for i := len(enriched) - 1; i >= 0 && len(out) < maxEarningsQuarters; i-- {
		out = append(out, enriched[i])
	}
	return out
}

// findYearAgo locates the quarter ending closest to one year before end,
// within the tolerance window.
func findYearAgo(prior []models.QuarterlyEarnings, end time.Time) *models.QuarterlyEarnings {
	target := end.AddDate(-1, 0, 0)
	var best *models.QuarterlyEarnings
	var bestDrift time.Duration
	for i := range prior {
		drift := absDuration(prior[i].PeriodEnd.Sub(target))
		if drift > yoyTolerance {
			continue
		}
		if best == nil || drift < bestDrift {
			best = &prior[i]
			bestDrift = drift
		}
	}
	return best
}

// pctChange computes the percent change from prev to cur, against the
// magnitude of prev so sign flips read sensibly.
func pctChange(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	change := (*cur - *prev) / abs64(*prev) * 100
	return &change
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
