package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// Each of the four blocks carries equal weight; blocks with no scored
// metrics are excluded and the rest renormalize.
const fundamentalBlockWeight = 0.25

// fundamentalMetricCount is the confidence denominator: the number of
// metrics a fully populated record would score.
const fundamentalMetricCount = 15.0

// baselineEarningsGrowth is the market-average earnings growth used to
// growth-adjust PE benchmarks.
const baselineEarningsGrowth = 0.08

// FundamentalScorer scores valuation, growth, financial health, and
// profitability. Banks swap the cash-flow health metrics for ROE, ROA,
// and payout ratio. Missing metrics become data gaps and never drag a
// composite down.
type FundamentalScorer struct{}

// NewFundamentalScorer creates a fundamental scorer.
func NewFundamentalScorer() *FundamentalScorer {
	return &FundamentalScorer{}
}

// Score builds the full fundamental analysis for one company. The caller
// handles ETFs; this assumes an equity.
func (s *FundamentalScorer) Score(profile *models.CompanyProfile, f *models.RawFundamentals) *models.FundamentalAnalysis {
	classification := models.ClassificationNonFinancial
	sector := ""
	if profile != nil {
		classification = profile.Classify()
		sector = profile.Sector
	}

	var gaps []string
	bench := ResolveBenchmarks(sector, f.Peers)
	sectorBench := BenchmarkFor(sector)

	valuation := s.scoreValuation(f, bench, &gaps)
	growth := s.scoreGrowth(f, sectorBench, &gaps)
	var health *models.CompositeBlock
	if classification == models.ClassificationBank {
		health = s.scoreBankHealth(f, &gaps)
	} else {
		health = s.scoreStandardHealth(f, &gaps)
	}
	profitability := s.scoreProfitability(f, sectorBench, &gaps)

	var blocks []weighted
	for _, b := range []*models.CompositeBlock{valuation, growth, health, profitability} {
		if b.CompositeScore > 0 {
			blocks = append(blocks, weighted{score: b.CompositeScore, weight: fundamentalBlockWeight})
		}
	}
	overall := weightedAverage(blocks)

	confidence := (fundamentalMetricCount - float64(len(gaps))) / fundamentalMetricCount
	if confidence < 0 {
		confidence = 0
	}

	return &models.FundamentalAnalysis{
		Ticker:         f.Ticker,
		Classification: classification,
		Valuation:      valuation,
		Growth:         growth,
		Health:         health,
		Profitability:  profitability,
		OverallScore:   round1(overall),
		Grade:          Grade(overall),
		Confidence:     round2(confidence),
		DataGaps:       gaps,
		GeneratedAt:    time.Now().UTC(),
	}
}

// blockBuilder accumulates one composite block, tracking which metrics
// actually carry data so missing ones stay out of the weighted mean.
type blockBuilder struct {
	metrics map[string]models.MetricScore
	items   []weighted
}

func newBlockBuilder() *blockBuilder {
	return &blockBuilder{metrics: make(map[string]models.MetricScore)}
}

func (b *blockBuilder) add(key string, m models.MetricScore, weight float64, available bool) {
	b.metrics[key] = m
	if available {
		b.items = append(b.items, weighted{score: m.Score, weight: weight})
	}
}

func (b *blockBuilder) build() *models.CompositeBlock {
	composite := weightedAverage(b.items)
	return &models.CompositeBlock{
		Metrics:        b.metrics,
		CompositeScore: round1(composite),
		Grade:          Grade(composite),
	}
}

// ── Valuation ───────────────────────────────────────────────────────

func (s *FundamentalScorer) scoreValuation(f *models.RawFundamentals, bench Benchmarks, gaps *[]string) *models.CompositeBlock {
	growthRate := earningsGrowthRate(f)

	b := newBlockBuilder()
	fpe, ok := s.scoreMultiple(f.ForwardPE, bench.ForwardPE, bench.Source, growthRate, "Fwd PE", "Forward PE", "Negative forward earnings", gaps)
	b.add("forward_pe", fpe, 0.30, ok)
	peg, ok := s.scorePEG(f, bench, gaps)
	b.add("peg_ratio", peg, 0.25, ok)
	ps, ok := s.scoreMultiple(f.PriceToSales, bench.PS, bench.Source, nil, "P/S", "P/S Ratio", "", gaps)
	b.add("ps_ratio", ps, 0.20, ok)
	pb, ok := s.scoreMultiple(f.PriceToBook, bench.PB, bench.Source, nil, "P/B", "P/B Ratio", "", gaps)
	b.add("pb_ratio", pb, 0.15, ok)
	pe, ok := s.scoreMultiple(f.PERatio, bench.PE, bench.Source, growthRate, "PE", "PE Ratio", "Negative earnings", gaps)
	b.add("pe_ratio", pe, 0.10, ok)
	return b.build()
}

// earningsGrowthRate returns the best available earnings growth rate as
// a decimal: the analyst YoY estimate when positive, else the trailing
// three year net income CAGR.
func earningsGrowthRate(f *models.RawFundamentals) *float64 {
	if f.EarningsGrowth != nil && *f.EarningsGrowth > 0 {
		return f.EarningsGrowth
	}
	if cagr := trailingEarningsCAGR(f.AnnualIncome); cagr != nil && *cagr > 0 {
		return cagr
	}
	return nil
}

// growthAdjustedBenchmark raises a PE benchmark for companies growing
// faster than the market average. Square-root dampening: 4x average
// growth doubles the allowed multiple. Never lowers the benchmark, and
// caps the boost at 2x.
func growthAdjustedBenchmark(benchmark float64, growthRate *float64) float64 {
	if growthRate == nil || *growthRate <= 0 || benchmark <= 0 {
		return benchmark
	}
	adjustment := clamp(math.Sqrt(*growthRate/baselineEarningsGrowth), 1.0, 2.0)
	return benchmark * adjustment
}

// scoreMultiple scores one lower-is-better price multiple against its
// peer or sector benchmark. negativeDesc, when set, flags that negative
// values get a floor score instead of a gap.
func (s *FundamentalScorer) scoreMultiple(value *float64, benchmark float64, source string, growthRate *float64, label, gapKey, negativeDesc string, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, gapKey, "Not available"), false
	}
	if *value < 0 && negativeDesc != "" {
		return scoredMetric(*value, 10, negativeDesc), true
	}

	adjusted := growthAdjustedBenchmark(benchmark, growthRate)
	score := scoreRelative(*value, adjusted)
	ratio := 1.0
	if adjusted > 0 {
		ratio = *value / adjusted
	}

	var context string
	switch {
	case ratio < 0.8:
		context = "undervalued vs peers"
	case ratio < 1.1:
		context = "in line with peers"
	case ratio < 1.5:
		context = "premium to peers"
	default:
		context = "expensive vs peers"
	}

	growthNote := ""
	if growthRate != nil && adjusted > benchmark*1.05 {
		growthNote = fmt.Sprintf(" (growth-adj %.0f)", adjusted)
	}
	desc := fmt.Sprintf("%s %.1f vs %s median %.1f%s, %s", label, *value, source, benchmark, growthNote, context)
	return scoredMetric(*value, score, desc), true
}

func (s *FundamentalScorer) scorePEG(f *models.RawFundamentals, bench Benchmarks, gaps *[]string) (models.MetricScore, bool) {
	peg, method := CalculatePEG(f)
	if peg == nil {
		return missingMetric(gaps, "PEG Ratio", "Cannot calculate PEG"), false
	}
	if *peg < 0 {
		return scoredMetric(*peg, 10, fmt.Sprintf("Negative PEG (%s)", method)), true
	}

	score := scoreRelative(*peg, bench.PEG)
	ratio := 1.0
	if bench.PEG > 0 {
		ratio = *peg / bench.PEG
	}
	var context string
	switch {
	case ratio < 0.7:
		context = "undervalued for growth"
	case ratio < 1.0:
		context = "good value for growth"
	case ratio < 1.3:
		context = "fairly valued for growth"
	default:
		context = "expensive for growth"
	}
	desc := fmt.Sprintf("PEG %.2f (%s) vs %s median %.2f, %s", *peg, method, bench.Source, bench.PEG, context)
	return scoredMetric(*peg, score, desc), true
}

// ── Growth ──────────────────────────────────────────────────────────

func (s *FundamentalScorer) scoreGrowth(f *models.RawFundamentals, bench SectorBenchmark, gaps *[]string) *models.CompositeBlock {
	b := newBlockBuilder()
	revYoY, ok := s.scoreYoY(f.RevenueGrowth, annualGrowth(f.AnnualIncome, pickRevenue), bench.RevenueGrowth, "Revenue YoY", gaps)
	b.add("revenue_yoy", revYoY, 0.25, ok)
	earnYoY, ok := s.scoreYoY(f.EarningsGrowth, annualGrowth(f.AnnualIncome, pickNetIncome), bench.EarningsGrowth, "Earnings YoY", gaps)
	b.add("earnings_yoy", earnYoY, 0.25, ok)
	revQoQ, ok := s.scoreRevenueQoQ(f.Quarterly, gaps)
	b.add("revenue_qoq", revQoQ, 0.125, ok)
	earnQoQ, ok := s.scoreEarningsQoQ(f.Quarterly, gaps)
	b.add("earnings_qoq", earnQoQ, 0.125, ok)
	analyst, ok := s.scoreAnalystGrowth(f, bench, gaps)
	b.add("analyst_growth", analyst, 0.25, ok)
	return b.build()
}

// growthRateCurve scores absolute growth percentages with granular
// handling of declines.
func growthRateScore(pct float64) float64 {
	switch {
	case pct > 50:
		return 95
	case pct > 25:
		return 85
	case pct > 15:
		return 70
	case pct > 5:
		return 55
	case pct > 0:
		return 45
	case pct > -5:
		return 35
	case pct > -10:
		return 25
	case pct > -20:
		return 15
	case pct > -30:
		return 10
	case pct > -50:
		return 5
	default:
		return 1
	}
}

// blendedGrowthScore averages the absolute growth curve with the
// sector-relative curve, so 10% growth reads differently in utilities
// than in software.
func blendedGrowthScore(pct, benchmark float64) float64 {
	absolute := growthRateScore(pct)
	if benchmark <= 0 {
		return absolute
	}
	relative := interpolate(pct/benchmark, relativeStrengthCurve)
	return round1((absolute + relative) / 2)
}

func (s *FundamentalScorer) scoreYoY(direct, derived *float64, benchmark float64, gapKey string, gaps *[]string) (models.MetricScore, bool) {
	growth := direct
	if growth == nil {
		growth = derived
	}
	if growth == nil {
		return missingMetric(gaps, gapKey, "Not available"), false
	}
	pct := *growth * 100
	score := blendedGrowthScore(pct, benchmark)
	desc := fmt.Sprintf("%+.1f%% YoY (sector avg %.0f%%)", pct, benchmark)
	return scoredMetric(pct, score, desc), true
}

var revenueQoQCurve = []breakpoint{
	{-15, 5}, {-10, 15}, {-5, 28}, {-2, 40}, {0, 50},
	{2, 60}, {5, 72}, {8, 80}, {12, 88}, {20, 95},
}

func (s *FundamentalScorer) scoreRevenueQoQ(quarters []models.QuarterlyFigures, gaps *[]string) (models.MetricScore, bool) {
	revenues := collectQuarterly(quarters, pickQuarterRevenue)
	if len(revenues) < 2 {
		return missingMetric(gaps, "Revenue QoQ", "Insufficient quarterly data"), false
	}
	if revenues[1] == 0 {
		return missingMetric(gaps, "Revenue QoQ", "Prior quarter revenue is zero"), false
	}

	qoq := (revenues[0] - revenues[1]) / abs64(revenues[1]) * 100
	score := interpolate(qoq, revenueQoQCurve)

	momentum := ""
	if len(revenues) >= 3 && revenues[2] != 0 {
		priorQoQ := (revenues[1] - revenues[2]) / abs64(revenues[2]) * 100
		switch {
		case qoq > priorQoQ+1:
			score = clamp(score+10, 1, 99)
			momentum = " (accelerating)"
		case qoq < priorQoQ-1:
			score = clamp(score-10, 1, 99)
			momentum = " (decelerating)"
		default:
			momentum = " (stable)"
		}
	}

	desc := fmt.Sprintf("%+.1f%% QoQ%s", qoq, momentum)
	return scoredMetric(qoq, score, desc), true
}

var earningsQoQCurve = []breakpoint{
	{-25, 5}, {-15, 18}, {-8, 32}, {-3, 42}, {0, 50},
	{3, 58}, {8, 70}, {15, 82}, {25, 90}, {40, 95},
}

func (s *FundamentalScorer) scoreEarningsQoQ(quarters []models.QuarterlyFigures, gaps *[]string) (models.MetricScore, bool) {
	earnings := collectQuarterly(quarters, pickQuarterNetIncome)
	if len(earnings) < 2 {
		return missingMetric(gaps, "Earnings QoQ", "Insufficient quarterly data"), false
	}

	current, prior := earnings[0], earnings[1]
	switch {
	case prior < 0 && current > 0:
		return unvaluedMetric(85, fmt.Sprintf("Turnaround: loss to profit ($%.0fM)", current/1e6)), true
	case prior > 0 && current < 0:
		return unvaluedMetric(10, fmt.Sprintf("Turned to loss ($%.0fM)", current/1e6)), true
	case prior == 0:
		return missingMetric(gaps, "Earnings QoQ", "Prior quarter earnings is zero"), false
	}

	qoq := (current - prior) / abs64(prior) * 100
	score := interpolate(qoq, earningsQoQCurve)

	momentum := ""
	if len(earnings) >= 3 && earnings[2] != 0 {
		sameSign := (earnings[2] > 0 && prior > 0) || (earnings[2] < 0 && prior < 0)
		if sameSign {
			priorQoQ := (prior - earnings[2]) / abs64(earnings[2]) * 100
			switch {
			case qoq > priorQoQ+2:
				score = clamp(score+10, 1, 99)
				momentum = " (accelerating)"
			case qoq < priorQoQ-2:
				score = clamp(score-10, 1, 99)
				momentum = " (decelerating)"
			default:
				momentum = " (stable)"
			}
		}
	}

	desc := fmt.Sprintf("%+.1f%% QoQ%s", qoq, momentum)
	return scoredMetric(qoq, score, desc), true
}

func (s *FundamentalScorer) scoreAnalystGrowth(f *models.RawFundamentals, bench SectorBenchmark, gaps *[]string) (models.MetricScore, bool) {
	if f.EarningsGrowth != nil && *f.EarningsGrowth != 0 {
		pct := *f.EarningsGrowth * 100
		score := blendedGrowthScore(pct, bench.EarningsGrowth)
		desc := fmt.Sprintf("Analyst est. %+.1f%% (sector avg %.0f%%)", pct, bench.EarningsGrowth)
		return scoredMetric(pct, score, desc), true
	}

	if f.TargetMeanPrice != nil && f.CurrentPrice != nil && *f.CurrentPrice > 0 {
		upside := (*f.TargetMeanPrice - *f.CurrentPrice) / *f.CurrentPrice * 100
		score := clamp(50+upside, 0, 100)
		desc := fmt.Sprintf("Analyst target %+.1f%% upside", upside)
		return scoredMetric(upside, score, desc), true
	}

	return missingMetric(gaps, "Analyst Growth Est.", "Not available"), false
}

// ── Financial Health ────────────────────────────────────────────────

var debtToEquityCurve = []breakpoint{
	{0.0, 92}, {0.3, 85}, {0.5, 78}, {0.8, 68},
	{1.0, 60}, {1.5, 50}, {2.0, 40}, {3.0, 28}, {5.0, 15},
}

var currentRatioCurve = []breakpoint{
	{0.0, 5}, {0.3, 15}, {0.5, 30}, {0.7, 42}, {0.9, 53},
	{1.0, 58}, {1.3, 68}, {1.5, 75}, {2.0, 85}, {3.0, 88},
}

var interestCoverageCurve = []breakpoint{
	{0, 5}, {1, 15}, {2, 30}, {3, 40}, {5, 55},
	{8, 65}, {12, 75}, {20, 85}, {50, 92}, {100, 95},
}

var fcfYieldCurve = []breakpoint{
	{-5, 5}, {0, 20}, {1, 38}, {2, 50}, {3, 60},
	{4, 67}, {5, 73}, {7, 82}, {10, 90}, {15, 95},
}

func (s *FundamentalScorer) scoreStandardHealth(f *models.RawFundamentals, gaps *[]string) *models.CompositeBlock {
	b := newBlockBuilder()
	fcf, ok := s.scoreFCFYield(f, gaps)
	b.add("fcf_yield", fcf, 0.30, ok)
	ocf, ok := s.scoreOCFTrend(f.CashFlow, gaps)
	b.add("ocf_trend", ocf, 0.25, ok)
	ic, ok := s.scoreInterestCoverage(f.InterestCoverage, gaps)
	b.add("interest_coverage", ic, 0.20, ok)
	de, ok := s.scoreDebtToEquity(f.DebtToEquity, debtToEquityCurve, gaps)
	b.add("debt_to_equity", de, 0.15, ok)
	cr, ok := s.scoreCurrentRatio(f.CurrentRatio, gaps)
	b.add("current_ratio", cr, 0.10, ok)
	return b.build()
}

func (s *FundamentalScorer) scoreDebtToEquity(value *float64, curve []breakpoint, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Debt/Equity", "Not available"), false
	}
	// Some sources report D/E as a percent; values above 10 are assumed
	// to be percentages.
	ratio := *value
	if ratio > 10 {
		ratio /= 100
	}
	score := interpolate(ratio, curve)

	var context string
	switch {
	case ratio < 0.5:
		context = "very low leverage"
	case ratio < 1.0:
		context = "moderate leverage"
	case ratio < 2.0:
		context = "elevated leverage"
	default:
		context = "high leverage"
	}
	return scoredMetric(ratio, score, fmt.Sprintf("D/E %.2f, %s", ratio, context)), true
}

func (s *FundamentalScorer) scoreCurrentRatio(value *float64, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Current Ratio", "Not available"), false
	}
	score := interpolate(*value, currentRatioCurve)

	var context string
	switch {
	case *value >= 2.0:
		context = "strong liquidity"
	case *value >= 1.0:
		context = "adequate liquidity"
	case *value >= 0.7:
		context = "tight liquidity"
	default:
		context = "weak liquidity"
	}
	return scoredMetric(*value, score, fmt.Sprintf("Current ratio %.2f, %s", *value, context)), true
}

func (s *FundamentalScorer) scoreInterestCoverage(value *float64, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Interest Coverage", "Not available"), false
	}
	score := interpolate(*value, interestCoverageCurve)

	var context string
	switch {
	case *value >= 20:
		context = "excellent debt serviceability"
	case *value >= 8:
		context = "comfortable"
	case *value >= 3:
		context = "adequate"
	case *value >= 1:
		context = "tight"
	default:
		context = "cannot cover interest"
	}
	return scoredMetric(*value, score, fmt.Sprintf("Interest coverage %.1fx, %s", *value, context)), true
}

func (s *FundamentalScorer) scoreFCFYield(f *models.RawFundamentals, gaps *[]string) (models.MetricScore, bool) {
	var fcfYield *float64

	if f.FreeCashflow != nil && f.MarketCap != nil && *f.MarketCap > 0 {
		y := *f.FreeCashflow / *f.MarketCap * 100
		fcfYield = &y
	} else if len(f.CashFlow) > 0 && f.CashFlow[0].FreeCashFlow != nil && f.MarketCap != nil && *f.MarketCap > 0 {
		y := *f.CashFlow[0].FreeCashFlow / *f.MarketCap * 100
		fcfYield = &y
	} else if f.EVFCFRatio != nil && *f.EVFCFRatio > 0 {
		// Approximate from the enterprise-value multiple.
		y := 100 / *f.EVFCFRatio
		fcfYield = &y
	}

	if fcfYield == nil {
		return missingMetric(gaps, "FCF Yield", "Not available"), false
	}
	score := interpolate(*fcfYield, fcfYieldCurve)

	var context string
	switch {
	case *fcfYield > 8:
		context = "excellent cash generation"
	case *fcfYield > 4:
		context = "good cash generation"
	case *fcfYield > 1:
		context = "moderate cash generation"
	case *fcfYield > 0:
		context = "low but positive"
	default:
		context = "negative free cash flow"
	}
	return scoredMetric(*fcfYield, score, fmt.Sprintf("FCF yield %.1f%%, %s", *fcfYield, context)), true
}

var ocfPositiveCurve = []breakpoint{
	{-50, 25}, {-20, 35}, {-5, 48}, {0, 55},
	{5, 63}, {10, 70}, {20, 80}, {50, 90},
}

var ocfNegativeCurve = []breakpoint{
	{-50, 5}, {-20, 12}, {0, 20}, {50, 30},
}

func (s *FundamentalScorer) scoreOCFTrend(cashFlow []models.CashFlowFigures, gaps *[]string) (models.MetricScore, bool) {
	var ocfs []float64
	for _, cf := range cashFlow {
		if cf.OperatingCashFlow != nil {
			ocfs = append(ocfs, *cf.OperatingCashFlow)
		}
		if len(ocfs) == 3 {
			break
		}
	}
	if len(ocfs) < 2 {
		return missingMetric(gaps, "OCF Trend", "Limited OCF data"), false
	}

	var growthPct float64
	if ocfs[1] != 0 {
		growthPct = (ocfs[0] - ocfs[1]) / abs64(ocfs[1]) * 100
	} else if ocfs[0] > 0 {
		growthPct = 100
	} else {
		growthPct = -100
	}

	var score float64
	var desc string
	if ocfs[0] > 0 {
		score = interpolate(growthPct, ocfPositiveCurve)
		switch {
		case growthPct > 10:
			desc = fmt.Sprintf("OCF growing %+.0f%%, strong and improving", growthPct)
		case growthPct > 0:
			desc = fmt.Sprintf("OCF growing %+.0f%%, positive and stable", growthPct)
		default:
			desc = fmt.Sprintf("OCF declining %+.0f%%, positive but weakening", growthPct)
		}
	} else {
		score = interpolate(growthPct, ocfNegativeCurve)
		desc = "Negative operating cash flow"
	}

	return scoredMetric(ocfs[0], score, desc), true
}

// ── Bank Health ─────────────────────────────────────────────────────
// Banks run on leverage; the standard cash-flow health metrics read as
// distress on a healthy bank, so ROE, ROA, and payout take their place.

var bankDebtToEquityCurve = []breakpoint{
	{0.0, 92}, {1.5, 85}, {3.0, 68}, {4.0, 55}, {6.0, 38}, {10.0, 18},
}

var roeCurve = []breakpoint{
	{0, 5}, {3, 20}, {7, 42}, {10, 60}, {13, 72}, {15, 80}, {20, 90}, {25, 95},
}

var roaCurve = []breakpoint{
	{0, 10}, {0.3, 25}, {0.5, 38}, {0.8, 55},
	{1.0, 65}, {1.3, 76}, {1.5, 82}, {2.0, 92}, {2.5, 95},
}

var payoutRatioCurve = []breakpoint{
	{0, 78}, {10, 82}, {25, 85}, {40, 72},
	{50, 62}, {60, 50}, {75, 33}, {90, 18}, {100, 5},
}

func (s *FundamentalScorer) scoreBankHealth(f *models.RawFundamentals, gaps *[]string) *models.CompositeBlock {
	b := newBlockBuilder()
	roe, ok := s.scoreROE(f.ROE, gaps)
	b.add("roe", roe, 0.35, ok)
	roa, ok := s.scoreROA(f.ROA, gaps)
	b.add("roa", roa, 0.25, ok)
	de, ok := s.scoreBankDebtToEquity(f.DebtToEquity, gaps)
	b.add("debt_to_equity", de, 0.20, ok)
	pr, ok := s.scorePayoutRatio(f.PayoutRatio, gaps)
	b.add("payout_ratio", pr, 0.20, ok)
	return b.build()
}

func (s *FundamentalScorer) scoreBankDebtToEquity(value *float64, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Debt/Equity", "Not available"), false
	}
	ratio := *value
	if ratio > 10 {
		ratio /= 100
	}
	score := interpolate(ratio, bankDebtToEquityCurve)

	var context string
	switch {
	case ratio < 2:
		context = "low leverage for a bank"
	case ratio < 4:
		context = "normal bank leverage"
	case ratio < 6:
		context = "elevated for a bank"
	default:
		context = "high leverage even for a bank"
	}
	return scoredMetric(ratio, score, fmt.Sprintf("D/E %.2f, %s", ratio, context)), true
}

func (s *FundamentalScorer) scoreROE(value *float64, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Return on Equity", "Not available"), false
	}
	score := interpolate(*value, roeCurve)

	var context string
	switch {
	case *value >= 15:
		context = "excellent return on equity"
	case *value >= 10:
		context = "good return on equity"
	case *value >= 5:
		context = "moderate return on equity"
	default:
		context = "weak return on equity"
	}
	return scoredMetric(*value, score, fmt.Sprintf("ROE %.1f%%, %s", *value, context)), true
}

func (s *FundamentalScorer) scoreROA(value *float64, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Return on Assets", "Not available"), false
	}
	score := interpolate(*value, roaCurve)

	var context string
	switch {
	case *value >= 1.5:
		context = "excellent asset efficiency"
	case *value >= 1.0:
		context = "good asset efficiency"
	case *value >= 0.5:
		context = "moderate asset efficiency"
	default:
		context = "weak asset efficiency"
	}
	return scoredMetric(*value, score, fmt.Sprintf("ROA %.2f%%, %s", *value, context)), true
}

func (s *FundamentalScorer) scorePayoutRatio(value *float64, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, "Payout Ratio", "Not available"), false
	}
	score := interpolate(*value, payoutRatioCurve)

	var context string
	switch {
	case *value < 30:
		context = "conservative, retaining most earnings"
	case *value < 50:
		context = "balanced returns and retention"
	case *value < 70:
		context = "elevated payout"
	default:
		context = "high payout, limited retained earnings"
	}
	return scoredMetric(*value, score, fmt.Sprintf("Payout %.0f%%, %s", *value, context)), true
}

// ── Profitability ───────────────────────────────────────────────────

func (s *FundamentalScorer) scoreProfitability(f *models.RawFundamentals, bench SectorBenchmark, gaps *[]string) *models.CompositeBlock {
	b := newBlockBuilder()
	om, ok := s.scoreMargin(f.OperatingMargins, bench.OperatingMargin, "Operating margin", "Operating Margin", gaps)
	b.add("operating_margin", om, 0.30, ok)
	nm, ok := s.scoreMargin(f.ProfitMargins, bench.NetMargin, "Net margin", "Net Margin", gaps)
	b.add("net_margin", nm, 0.25, ok)
	mt, ok := s.scoreMarginTrend(f.Quarterly, gaps)
	b.add("margin_trend", mt, 0.25, ok)
	gm, ok := s.scoreMargin(f.GrossMargins, bench.GrossMargin, "Gross margin", "Gross Margin", gaps)
	b.add("gross_margin", gm, 0.20, ok)
	return b.build()
}

func (s *FundamentalScorer) scoreMargin(value *float64, benchmark float64, label, gapKey string, gaps *[]string) (models.MetricScore, bool) {
	if value == nil {
		return missingMetric(gaps, gapKey, "Not available"), false
	}
	pct := *value * 100
	var score float64
	if benchmark > 0 {
		score = interpolate(pct/benchmark, relativeStrengthCurve)
	} else {
		score = growthRateScore(pct)
	}
	desc := fmt.Sprintf("%s %.1f%% (sector avg %.0f%%)", label, pct, benchmark)
	return scoredMetric(pct, score, desc), true
}

func (s *FundamentalScorer) scoreMarginTrend(quarters []models.QuarterlyFigures, gaps *[]string) (models.MetricScore, bool) {
	if len(quarters) < 5 {
		return missingMetric(gaps, "Margin Trend", "Insufficient quarterly data"), false
	}

	current := operatingMargin(quarters[0])
	yearAgo := operatingMargin(quarters[4])
	if current == nil || yearAgo == nil {
		return missingMetric(gaps, "Margin Trend", "Cannot determine margin trend"), false
	}

	improvement := (*current - *yearAgo) * 100
	var score float64
	var desc string
	switch {
	case improvement > 3:
		score = 85
		desc = fmt.Sprintf("Margins expanding (%+.1fpp)", improvement)
	case improvement > 0:
		score = 65
		desc = fmt.Sprintf("Margins stable to improving (%+.1fpp)", improvement)
	case improvement > -3:
		score = 45
		desc = fmt.Sprintf("Margins slightly contracting (%+.1fpp)", improvement)
	default:
		score = 20
		desc = fmt.Sprintf("Margins contracting (%+.1fpp)", improvement)
	}
	return scoredMetric(improvement, score, desc), true
}

func operatingMargin(q models.QuarterlyFigures) *float64 {
	if q.Revenue == nil || q.OperatingIncome == nil || *q.Revenue == 0 {
		return nil
	}
	m := *q.OperatingIncome / *q.Revenue
	return &m
}

// ── Helpers ─────────────────────────────────────────────────────────

func pickRevenue(a models.AnnualFigures) *float64      { return a.Revenue }
func pickNetIncome(a models.AnnualFigures) *float64    { return a.NetIncome }
func pickQuarterRevenue(q models.QuarterlyFigures) *float64   { return q.Revenue }
func pickQuarterNetIncome(q models.QuarterlyFigures) *float64 { return q.NetIncome }

// annualGrowth derives a YoY growth decimal from the two most recent
// annual statements.
func annualGrowth(annual []models.AnnualFigures, pick func(models.AnnualFigures) *float64) *float64 {
	if len(annual) < 2 {
		return nil
	}
	recent := pick(annual[0])
	prior := pick(annual[1])
	if recent == nil || prior == nil || *prior == 0 {
		return nil
	}
	g := (*recent - *prior) / abs64(*prior)
	return &g
}

// collectQuarterly extracts up to four non-nil figures from the most
// recent quarters, newest first.
func collectQuarterly(quarters []models.QuarterlyFigures, pick func(models.QuarterlyFigures) *float64) []float64 {
	var out []float64
	for i, q := range quarters {
		if i == 4 {
			break
		}
		if v := pick(q); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
