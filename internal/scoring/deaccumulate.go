package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// cumulativeSpanDays: a reporting period longer than this is treated as
// cumulative year-to-date rather than a standalone quarter.
const cumulativeSpanDays = 120

// Deaccumulator corrects cumulative year-to-date filing figures into
// standalone quarterly figures by subtracting the running fiscal-year
// total per metric.
type Deaccumulator struct {
	fiscalYearStartMonth int
}

// NewDeaccumulator builds a de-accumulator for companies whose fiscal
// year begins in the given month (1-12).
func NewDeaccumulator(fiscalYearStartMonth int) *Deaccumulator {
	if fiscalYearStartMonth < 1 || fiscalYearStartMonth > 12 {
		fiscalYearStartMonth = 1
	}
	return &Deaccumulator{fiscalYearStartMonth: fiscalYearStartMonth}
}

// runningTotal tracks the fiscal-year-to-date sum of one metric. The
// total goes invalid when a quarter's figure was missing, since the sum
// no longer reflects the year.
type runningTotal struct {
	sum   float64
	valid bool
}

func (r *runningTotal) reset() {
	r.sum = 0
	r.valid = true
}

// Deaccumulate converts raw filings into standalone quarters, oldest
// first. Quarters reported year-to-date are corrected by subtracting the
// already-seen quarters of the same fiscal year; corrected figures
// replace the raw cumulative value. When a prior quarter's figure is
// missing the dependent quarter keeps the raw figure and carries a data
// gap instead of a guess.
func (d *Deaccumulator) Deaccumulate(filings []models.RawFiling) []models.QuarterlyEarnings {
	if len(filings) == 0 {
		return nil
	}

	ordered := make([]models.RawFiling, len(filings))
	copy(ordered, filings)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PeriodEnd.Before(ordered[j].PeriodEnd)
	})

	// A metric the company never reports is not a data gap; only track
	// gaps for metrics present somewhere in the filing set.
	var hasRevenue, hasNetIncome, hasOpIncome, hasEPS bool
	for _, filing := range ordered {
		hasRevenue = hasRevenue || filing.Revenue != nil
		hasNetIncome = hasNetIncome || filing.NetIncome != nil
		hasOpIncome = hasOpIncome || filing.OperatingIncome != nil
		hasEPS = hasEPS || filing.EPS != nil
	}

	var revenue, netIncome, opIncome, eps runningTotal
	currentFY := -1

	out := make([]models.QuarterlyEarnings, 0, len(ordered))
	for _, filing := range ordered {
		fy := d.fiscalYear(filing.PeriodEnd)
		if fy != currentFY {
			revenue.reset()
			netIncome.reset()
			opIncome.reset()
			eps.reset()
			currentFY = fy
		}

		quarter := d.fiscalQuarter(filing.PeriodEnd)
		span := filing.PeriodEnd.Sub(filing.PeriodStart).Hours() / 24
		// First fiscal quarters are standalone by definition.
		cumulative := span > cumulativeSpanDays && quarter > 1

		q := models.QuarterlyEarnings{
			Label:         fmt.Sprintf("Q%d %d", quarter, filing.PeriodEnd.Year()),
			PeriodStart:   filing.PeriodStart,
			PeriodEnd:     filing.PeriodEnd,
			WasCumulative: cumulative,
			FilingURL:     filing.URL,
		}

		q.Revenue = correctFigure(&q, "revenue", filing.Revenue, &revenue, cumulative, hasRevenue)
		q.NetIncome = correctFigure(&q, "net income", filing.NetIncome, &netIncome, cumulative, hasNetIncome)
		q.OperatingIncome = correctFigure(&q, "operating income", filing.OperatingIncome, &opIncome, cumulative, hasOpIncome)
		q.EPS = correctFigure(&q, "eps", filing.EPS, &eps, cumulative, hasEPS)

		out = append(out, q)
	}
	return out
}

// correctFigure resolves one metric of one quarter, updating the running
// fiscal-year total as a side effect. reported says whether the metric
// appears anywhere in the filing set.
func correctFigure(q *models.QuarterlyEarnings, name string, raw *float64, total *runningTotal, cumulative, reported bool) *float64 {
	if raw == nil {
		if reported {
			q.DataGaps = append(q.DataGaps, name+" missing")
			total.valid = false
		}
		return nil
	}

	if !cumulative {
		if total.valid {
			total.sum += *raw
		}
		v := *raw
		return &v
	}

	if !total.valid {
		// Re-anchor on the reported year-to-date figure so later
		// quarters in the same year can still be corrected.
		q.DataGaps = append(q.DataGaps, name+" left cumulative, prior quarter missing")
		total.sum = *raw
		total.valid = true
		v := *raw
		return &v
	}

	standalone := *raw - total.sum
	total.sum = *raw
	return &standalone
}

func (d *Deaccumulator) fiscalYear(t time.Time) int {
	if int(t.Month()) >= d.fiscalYearStartMonth {
		return t.Year()
	}
	return t.Year() - 1
}

func (d *Deaccumulator) fiscalQuarter(t time.Time) int {
	return ((int(t.Month())-d.fiscalYearStartMonth+12)%12)/3 + 1
}
