package models

import "time"

// RawFiling is one quarterly filing as reported, before de-accumulation.
// Figures may be standalone or cumulative year-to-date; the reporting
// period span is what distinguishes them.
type RawFiling struct {
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	FiledAt         time.Time `json:"filed_at,omitempty"`
	URL             string    `json:"url,omitempty"`
	Revenue         *float64  `json:"revenue,omitempty"`
	NetIncome       *float64  `json:"net_income,omitempty"`
	OperatingIncome *float64  `json:"operating_income,omitempty"`
	EPS             *float64  `json:"eps,omitempty"`
}

// QuarterlyEarnings is one standalone quarter after de-accumulation.
// WasCumulative records that the source filing reported year-to-date
// figures which were corrected by subtracting prior quarters.
type QuarterlyEarnings struct {
	Label           string    `json:"label"` // e.g. "Q3 2025"
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Revenue         *float64  `json:"revenue,omitempty"`
	NetIncome       *float64  `json:"net_income,omitempty"`
	OperatingIncome *float64  `json:"operating_income,omitempty"`
	EPS             *float64  `json:"eps,omitempty"`
	WasCumulative   bool      `json:"was_cumulative"`
	DataGaps        []string  `json:"data_gaps,omitempty"`
	FilingURL       string    `json:"filing_url,omitempty"`
}

// EarningsQuarter enriches a standalone quarter with derived growth and
// margin figures for presentation.
type EarningsQuarter struct {
	QuarterlyEarnings
	RevenueQoQ      *float64 `json:"revenue_qoq,omitempty"` // percent
	RevenueYoY      *float64 `json:"revenue_yoy,omitempty"`
	NetIncomeQoQ    *float64 `json:"net_income_qoq,omitempty"`
	NetIncomeYoY    *float64 `json:"net_income_yoy,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"` // percent
}

// EarningsSummary is the de-accumulated quarterly view for one ticker,
// newest quarter first.
type EarningsSummary struct {
	Ticker      string            `json:"ticker"`
	Quarters    []EarningsQuarter `json:"quarters"`
	GeneratedAt time.Time         `json:"generated_at"`
}
