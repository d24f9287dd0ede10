package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/tally/internal/models"
)

// SectorBenchmark holds median valuation and profitability figures for
// one GICS sector, approximated from S&P 500 constituents. Used as the
// fallback when live peer data is unavailable. Margins and growth rates
// are percentages.
type SectorBenchmark struct {
	PE              float64
	ForwardPE       float64
	PB              float64
	PS              float64
	PEG             float64
	GrossMargin     float64
	OperatingMargin float64
	NetMargin       float64
	RevenueGrowth   float64
	EarningsGrowth  float64
}

var sectorBenchmarks = map[string]SectorBenchmark{
	"Technology":             {PE: 28, ForwardPE: 24, PB: 7, PS: 6, PEG: 1.5, GrossMargin: 65, OperatingMargin: 25, NetMargin: 20, RevenueGrowth: 15, EarningsGrowth: 18},
	"Communication Services": {PE: 22, ForwardPE: 19, PB: 3.5, PS: 3.5, PEG: 1.8, GrossMargin: 55, OperatingMargin: 20, NetMargin: 15, RevenueGrowth: 8, EarningsGrowth: 10},
	"Consumer Cyclical":      {PE: 22, ForwardPE: 19, PB: 5, PS: 1.5, PEG: 1.4, GrossMargin: 35, OperatingMargin: 8, NetMargin: 5, RevenueGrowth: 8, EarningsGrowth: 10},
	"Consumer Defensive":     {PE: 22, ForwardPE: 20, PB: 5, PS: 1.8, PEG: 2.5, GrossMargin: 30, OperatingMargin: 10, NetMargin: 6, RevenueGrowth: 3, EarningsGrowth: 5},
	"Healthcare":             {PE: 25, ForwardPE: 20, PB: 4, PS: 4, PEG: 1.8, GrossMargin: 65, OperatingMargin: 18, NetMargin: 12, RevenueGrowth: 10, EarningsGrowth: 12},
	"Financial Services":     {PE: 13, ForwardPE: 12, PB: 1.3, PS: 3, PEG: 1.5, GrossMargin: 70, OperatingMargin: 30, NetMargin: 22, RevenueGrowth: 5, EarningsGrowth: 8},
	"Industrials":            {PE: 20, ForwardPE: 18, PB: 4, PS: 2, PEG: 1.7, GrossMargin: 25, OperatingMargin: 10, NetMargin: 6, RevenueGrowth: 5, EarningsGrowth: 8},
	"Energy":                 {PE: 12, ForwardPE: 11, PB: 1.8, PS: 1.2, PEG: 1.0, GrossMargin: 20, OperatingMargin: 8, NetMargin: 5, RevenueGrowth: 5, EarningsGrowth: 8},
	"Basic Materials":        {PE: 15, ForwardPE: 13, PB: 2, PS: 1.5, PEG: 1.5, GrossMargin: 20, OperatingMargin: 12, NetMargin: 8, RevenueGrowth: 4, EarningsGrowth: 6},
	"Utilities":              {PE: 17, ForwardPE: 16, PB: 1.8, PS: 2.5, PEG: 3.0, GrossMargin: 35, OperatingMargin: 18, NetMargin: 12, RevenueGrowth: 3, EarningsGrowth: 4},
	"Real Estate":            {PE: 35, ForwardPE: 30, PB: 2, PS: 8, PEG: 2.5, GrossMargin: 45, OperatingMargin: 25, NetMargin: 15, RevenueGrowth: 5, EarningsGrowth: 6},
}

var defaultBenchmark = SectorBenchmark{PE: 20, ForwardPE: 17, PB: 3, PS: 3, PEG: 1.5, GrossMargin: 40, OperatingMargin: 15, NetMargin: 10, RevenueGrowth: 8, EarningsGrowth: 10}

// sectorAliases map alternate sector names from different data sources
// onto canonical GICS names.
var sectorAliases = map[string]string{
	"technology":             "Technology",
	"tech":                   "Technology",
	"information technology": "Technology",
	"communication services": "Communication Services",
	"communication":          "Communication Services",
	"media":                  "Communication Services",
	"consumer cyclical":      "Consumer Cyclical",
	"consumer discretionary": "Consumer Cyclical",
	"consumer defensive":     "Consumer Defensive",
	"consumer staples":       "Consumer Defensive",
	"healthcare":             "Healthcare",
	"health care":            "Healthcare",
	"financial services":     "Financial Services",
	"financials":             "Financial Services",
	"financial":              "Financial Services",
	"industrials":            "Industrials",
	"industrial":             "Industrials",
	"energy":                 "Energy",
	"basic materials":        "Basic Materials",
	"materials":              "Basic Materials",
	"utilities":              "Utilities",
	"real estate":            "Real Estate",
}

// BenchmarkFor returns the benchmark medians for the given sector name,
// with alias and substring matching for names from looser data sources.
func BenchmarkFor(sector string) SectorBenchmark {
	if sector == "" {
		return defaultBenchmark
	}
	if b, ok := sectorBenchmarks[sector]; ok {
		return b
	}
	lower := strings.TrimSpace(strings.ToLower(sector))
	if canonical, ok := sectorAliases[lower]; ok {
		return sectorBenchmarks[canonical]
	}
	for alias, canonical := range sectorAliases {
		if strings.Contains(lower, alias) || strings.Contains(alias, lower) {
			return sectorBenchmarks[canonical]
		}
	}
	return defaultBenchmark
}

// relativeValueCurve scores a lower-is-better valuation ratio against its
// benchmark: ratio 1.0 means priced at the benchmark median.
var relativeValueCurve = []breakpoint{
	{0.0, 98}, {0.4, 95}, {0.6, 85}, {0.8, 72}, {1.0, 60},
	{1.2, 50}, {1.5, 38}, {2.0, 25}, {3.0, 10},
}

// relativeStrengthCurve scores a higher-is-better figure (margins, growth
// rates) against its benchmark: meeting the sector median scores 65.
var relativeStrengthCurve = []breakpoint{
	{0.0, 5}, {0.3, 15}, {0.5, 30}, {0.7, 45}, {0.9, 55},
	{1.0, 65}, {1.2, 80}, {1.5, 90}, {2.0, 95},
}

// scoreRelative scores a lower-is-better metric against its benchmark.
func scoreRelative(value, benchmark float64) float64 {
	if benchmark <= 0 {
		return 50
	}
	return interpolate(value/benchmark, relativeValueCurve)
}

// Benchmarks are the medians resolved for one company: live peer medians
// when at least three peers report a trailing PE, sector medians
// otherwise. Source records which it was, for metric descriptions.
type Benchmarks struct {
	SectorBenchmark
	Source string
}

// ResolveBenchmarks builds peer-median benchmarks from the stored peer
// metrics, falling back to the sector table where peer coverage is thin.
// PEG, margin and growth medians always come from the sector table since
// peers rarely carry them.
func ResolveBenchmarks(sector string, peers []models.PeerMetrics) Benchmarks {
	sectorBench := BenchmarkFor(sector)

	var peVals, fpeVals, pbVals, psVals []float64
	for _, p := range peers {
		if p.PERatio != nil && *p.PERatio > 0 {
			peVals = append(peVals, *p.PERatio)
		}
		if p.ForwardPE != nil && *p.ForwardPE > 0 {
			fpeVals = append(fpeVals, *p.ForwardPE)
		}
		if p.PriceToBook != nil && *p.PriceToBook > 0 {
			pbVals = append(pbVals, *p.PriceToBook)
		}
		if p.PriceToSales != nil && *p.PriceToSales > 0 {
			psVals = append(psVals, *p.PriceToSales)
		}
	}

	if len(peVals) < 3 {
		source := "default"
		if sector != "" {
			source = fmt.Sprintf("sector (%s)", sector)
		}
		return Benchmarks{SectorBenchmark: sectorBench, Source: source}
	}

	bench := sectorBench
	bench.PE = round2(median(peVals))
	if len(fpeVals) >= 3 {
		bench.ForwardPE = round2(median(fpeVals))
	} else {
		bench.ForwardPE = round2(bench.PE * 0.85)
	}
	if len(pbVals) >= 3 {
		bench.PB = round2(median(pbVals))
	}
	if len(psVals) >= 3 {
		bench.PS = round2(median(psVals))
	}
	return Benchmarks{SectorBenchmark: bench, Source: "peers"}
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
