// Package models defines data structures for Tally
package models

import (
	"strings"
	"time"
)

// Timeframe identifies the bar interval of a price series
type Timeframe string

const (
	TimeframeHourly Timeframe = "hourly"
	TimeframeDaily  Timeframe = "daily"
	TimeframeWeekly Timeframe = "weekly"
)

// Valid reports whether the timeframe is one of the supported intervals
func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeHourly, TimeframeDaily, TimeframeWeekly:
		return true
	}
	return false
}

// Classification determines which metric set the scorers apply
type Classification string

const (
	ClassificationNonFinancial Classification = "non_financial"
	ClassificationBank         Classification = "bank"
	ClassificationETF          Classification = "etf"
)

// CompanyProfile holds quote-level company identity and pricing data.
// Nullable fields stay nil when the upstream record omitted them.
type CompanyProfile struct {
	Ticker      string    `json:"ticker"`
	Name        string    `json:"name"`
	Exchange    string    `json:"exchange,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Description string    `json:"description,omitempty"`
	IsETF       bool      `json:"is_etf"`
	Price       *float64  `json:"price,omitempty"`
	ChangePct   *float64  `json:"change_pct,omitempty"`
	Volume      *int64    `json:"volume,omitempty"`
	MarketCap   *float64  `json:"market_cap,omitempty"`
	PERatio     *float64  `json:"pe_ratio,omitempty"`
	Beta        *float64  `json:"beta,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// financialSectorKeywords mark a company as bank-like for metric branching
var financialSectorKeywords = []string{"financial", "banking", "insurance", "bank"}

// Classify maps the profile onto a closed classification: ETF, bank, or
// non-financial. Scorers branch exhaustively on the result instead of
// probing for field presence.
func (p *CompanyProfile) Classify() Classification {
	if p == nil {
		return ClassificationNonFinancial
	}
	if p.IsETF {
		return ClassificationETF
	}
	sector := strings.ToLower(p.Sector)
	for _, kw := range financialSectorKeywords {
		if strings.Contains(sector, kw) {
			return ClassificationBank
		}
	}
	return ClassificationNonFinancial
}

// PeerMetrics carries the valuation ratios of one peer company, used to
// build peer-median benchmarks.
type PeerMetrics struct {
	Ticker       string   `json:"ticker"`
	PERatio      *float64 `json:"pe_ratio,omitempty"`
	ForwardPE    *float64 `json:"forward_pe,omitempty"`
	PriceToBook  *float64 `json:"price_to_book,omitempty"`
	PriceToSales *float64 `json:"price_to_sales,omitempty"`
}

// AnnualFigures holds one fiscal year of income statement data
type AnnualFigures struct {
	PeriodEnd       time.Time `json:"period_end"`
	Revenue         *float64  `json:"revenue,omitempty"`
	NetIncome       *float64  `json:"net_income,omitempty"`
	OperatingIncome *float64  `json:"operating_income,omitempty"`
}

// QuarterlyFigures holds one standalone (de-accumulated) quarter of
// income statement data, newest first in any slice carrying them.
type QuarterlyFigures struct {
	PeriodEnd       time.Time `json:"period_end"`
	Revenue         *float64  `json:"revenue,omitempty"`
	NetIncome       *float64  `json:"net_income,omitempty"`
	OperatingIncome *float64  `json:"operating_income,omitempty"`
}

// CashFlowFigures holds one fiscal year of cash flow statement data
type CashFlowFigures struct {
	PeriodEnd         time.Time `json:"period_end"`
	OperatingCashFlow *float64  `json:"operating_cash_flow,omitempty"`
	FreeCashFlow      *float64  `json:"free_cash_flow,omitempty"`
}

// RawFundamentals is the merged per-ticker record the fundamental scorer
// consumes. The engine is agnostic to which upstream source satisfied a
// field; absence (nil) is what drives data-gap tracking.
type RawFundamentals struct {
	Ticker string `json:"ticker"`

	// Valuation
	PERatio      *float64 `json:"pe_ratio,omitempty"`
	ForwardPE    *float64 `json:"forward_pe,omitempty"`
	PriceToBook  *float64 `json:"price_to_book,omitempty"`
	PriceToSales *float64 `json:"price_to_sales,omitempty"`

	// Growth inputs
	RevenueGrowth  *float64 `json:"revenue_growth,omitempty"`  // decimal, e.g. 0.12 = +12% YoY
	EarningsGrowth *float64 `json:"earnings_growth,omitempty"` // decimal
	TargetMeanPrice *float64 `json:"target_mean_price,omitempty"`
	CurrentPrice    *float64 `json:"current_price,omitempty"`

	// Health
	DebtToEquity     *float64 `json:"debt_to_equity,omitempty"` // ratio, or percent when > 10
	CurrentRatio     *float64 `json:"current_ratio,omitempty"`
	InterestCoverage *float64 `json:"interest_coverage,omitempty"`
	FreeCashflow     *float64 `json:"free_cashflow,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	EVFCFRatio       *float64 `json:"ev_fcf_ratio,omitempty"`
	ROE              *float64 `json:"roe,omitempty"` // percent
	ROA              *float64 `json:"roa,omitempty"` // percent
	PayoutRatio      *float64 `json:"payout_ratio,omitempty"` // percent

	// Profitability
	GrossMargins     *float64 `json:"gross_margins,omitempty"`     // decimal
	OperatingMargins *float64 `json:"operating_margins,omitempty"` // decimal
	ProfitMargins    *float64 `json:"profit_margins,omitempty"`    // decimal

	// Statements, newest first
	AnnualIncome []AnnualFigures    `json:"annual_income,omitempty"`
	Quarterly    []QuarterlyFigures `json:"quarterly,omitempty"`
	CashFlow     []CashFlowFigures  `json:"cash_flow,omitempty"`

	Peers []PeerMetrics `json:"peers,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CompanyRecord is the stored unit of ingested data for one ticker.
// External pipelines push these in; all analysis reads from them.
type CompanyRecord struct {
	Ticker       string               `json:"ticker" badgerhold:"key"`
	Profile      *CompanyProfile      `json:"profile,omitempty"`
	Fundamentals *RawFundamentals     `json:"fundamentals,omitempty"`
	Filings      []RawFiling          `json:"filings,omitempty"`
	Bars         map[Timeframe][]Bar  `json:"bars,omitempty"`
	News         []NewsItem           `json:"news,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Merge folds the non-empty sections of other into the record, so partial
// ingests (bars only, news only) never wipe previously loaded sections.
func (r *CompanyRecord) Merge(other *CompanyRecord) {
	if other == nil {
		return
	}
	if other.Profile != nil {
		r.Profile = other.Profile
	}
	if other.Fundamentals != nil {
		r.Fundamentals = other.Fundamentals
	}
	if len(other.Filings) > 0 {
		r.Filings = other.Filings
	}
	if len(other.Bars) > 0 {
		if r.Bars == nil {
			r.Bars = make(map[Timeframe][]Bar, len(other.Bars))
		}
		for tf, bars := range other.Bars {
			r.Bars[tf] = bars
		}
	}
	if len(other.News) > 0 {
		r.News = other.News
	}
	r.UpdatedAt = time.Now().UTC()
}

// CompanyOverview is the profile plus headline analysis state for one ticker
type CompanyOverview struct {
	Profile       *CompanyProfile    `json:"profile"`
	KeyMetrics    map[string]float64 `json:"key_metrics,omitempty"`
	LatestSnap    *ScorecardSnapshot `json:"latest_scorecard,omitempty"`
	FilingCount   int                `json:"filing_count"`
	NewsCount     int                `json:"news_count"`
	BarCounts     map[Timeframe]int  `json:"bar_counts,omitempty"`
	LastIngestion time.Time          `json:"last_ingestion"`
	// FundamentalsFresh flags whether the stored record is recent enough
	// to score from without re-ingesting.
	FundamentalsFresh bool `json:"fundamentals_fresh"`
}
