package models

import "time"

// Signal values, strongest to weakest
const (
	SignalStrongBuy  = "STRONG BUY"
	SignalBuy        = "BUY"
	SignalHold       = "HOLD"
	SignalSell       = "SELL"
	SignalStrongSell = "STRONG SELL"
)

// MetricScore is the normalized form of one raw metric. A nil Value means
// the metric was unavailable; Score then holds the neutral midpoint (50)
// and Grade "C" rather than an error.
type MetricScore struct {
	Value       *float64 `json:"value"`
	Score       float64  `json:"score"`
	Grade       string   `json:"grade"`
	Description string   `json:"description,omitempty"`
}

// CompositeBlock groups related MetricScores under one weighted composite
type CompositeBlock struct {
	Metrics        map[string]MetricScore `json:"metrics"`
	CompositeScore float64                `json:"composite_score"`
	Grade          string                 `json:"grade"`
}

// FundamentalAnalysis is the full fundamental scoring result for a ticker
type FundamentalAnalysis struct {
	Ticker         string          `json:"ticker"`
	Classification Classification  `json:"classification"`
	Valuation      *CompositeBlock `json:"valuation,omitempty"`
	Growth         *CompositeBlock `json:"growth,omitempty"`
	Health         *CompositeBlock `json:"health,omitempty"`
	Profitability  *CompositeBlock `json:"profitability,omitempty"`
	OverallScore   float64         `json:"overall_score"`
	Grade          string          `json:"grade"`
	Confidence     float64         `json:"confidence"` // 0..1, falls with data gaps
	DataGaps       []string        `json:"data_gaps,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// ScoreBreakdown shows how the overall scorecard score was blended.
// FundamentalWeight + TechnicalWeight always sum to 1.0; for ETFs the
// fundamental weight is zero. Nil component scores mean that input was
// unavailable and its weight was redistributed.
type ScoreBreakdown struct {
	FundamentalScore     *float64 `json:"fundamental_score,omitempty"`
	FundamentalWeight    float64  `json:"fundamental_weight"`
	TechnicalDailyScore  *float64 `json:"technical_daily_score,omitempty"`
	TechnicalWeeklyScore *float64 `json:"technical_weekly_score,omitempty"`
	TechnicalHourlyScore *float64 `json:"technical_hourly_score,omitempty"`
	TechnicalConsensus   *float64 `json:"technical_consensus,omitempty"`
	TechnicalWeight      float64  `json:"technical_weight"`
}

// SwingTradeAssessment derives entry/exit levels from daily support and
// resistance. Reasoning is an ordered list of short factor strings.
type SwingTradeAssessment struct {
	OpportunityRating string    `json:"opportunity_rating,omitempty"` // Strong, Moderate, Weak, None
	EntryZone         []float64 `json:"entry_zone,omitempty"`         // [low, high]
	StopLoss          *float64  `json:"stop_loss,omitempty"`
	TargetPrice       *float64  `json:"target_price,omitempty"`
	RiskRewardRatio   *float64  `json:"risk_reward_ratio,omitempty"`
	Reasoning         []string  `json:"reasoning,omitempty"`
}

// Scorecard is the composite analysis artifact for one ticker
type Scorecard struct {
	Ticker          string                `json:"ticker"`
	OverallScore    float64               `json:"overall_score"`
	Grade           string                `json:"grade"`
	Signal          string                `json:"signal"`
	ScoreBreakdown  ScoreBreakdown        `json:"score_breakdown"`
	Fundamental     *FundamentalAnalysis  `json:"fundamental,omitempty"`
	TechnicalDaily  *TechnicalAnalysis    `json:"technical_daily,omitempty"`
	SwingTrade      *SwingTradeAssessment `json:"swing_trade,omitempty"`
	Confidence      float64               `json:"confidence"`
	OverrideApplied bool                  `json:"override_applied"`
	OverrideReason  string                `json:"override_reason,omitempty"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// ScorecardSnapshot is the persisted headline of one generated scorecard,
// kept as a history trail per ticker.
type ScorecardSnapshot struct {
	ID              string    `json:"id" badgerhold:"key"`
	Ticker          string    `json:"ticker" badgerhold:"index"`
	OverallScore    float64   `json:"overall_score"`
	Grade           string    `json:"grade"`
	Signal          string    `json:"signal"`
	Confidence      float64   `json:"confidence"`
	OverrideApplied bool      `json:"override_applied"`
	CreatedAt       time.Time `json:"created_at"`
}
