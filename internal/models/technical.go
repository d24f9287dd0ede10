package models

import "time"

// Component states shared by the technical indicator scores
const (
	StateBullish = "bullish"
	StateBearish = "bearish"
	StateNeutral = "neutral"
)

// MovingAverageScore scores price position against SMA/EMA ladders.
// A nil Score means too little history for even the fastest average.
type MovingAverageScore struct {
	Score  *float64           `json:"score"`
	Values map[string]float64 `json:"values,omitempty"` // e.g. "sma20": 101.25
	Cross  string             `json:"cross,omitempty"`  // "golden" or "death" when a recent cross fired
}

// MACDScore scores trend momentum from the MACD line and its signal line
type MACDScore struct {
	Score      *float64 `json:"score"`
	Line       *float64 `json:"line,omitempty"`
	SignalLine *float64 `json:"signal_line,omitempty"`
	Histogram  *float64 `json:"histogram,omitempty"`
	Crossover  string   `json:"crossover,omitempty"` // "bullish"/"bearish" when crossed within the lookback window
	State      string   `json:"state,omitempty"`     // bullish, bearish, neutral
}

// RSIScore scores momentum exhaustion. Band thresholds: oversold below 30,
// overbought above 70.
type RSIScore struct {
	Score *float64 `json:"score"`
	Value *float64 `json:"value,omitempty"`
	Band  string   `json:"band,omitempty"` // oversold, neutral, overbought
}

// SupportResistance holds clustered price levels around the current price
type SupportResistance struct {
	Score             *float64  `json:"score"`
	Supports          []float64 `json:"supports,omitempty"`    // below price, nearest first
	Resistances       []float64 `json:"resistances,omitempty"` // above price, nearest first
	NearestSupport    *float64  `json:"nearest_support,omitempty"`
	NearestResistance *float64  `json:"nearest_resistance,omitempty"`
}

// VolumeScore scores participation and price/volume confirmation
type VolumeScore struct {
	Score          *float64 `json:"score"`
	RelativeVolume *float64 `json:"relative_volume,omitempty"` // current vs 20-bar average
	Trend          string   `json:"trend,omitempty"`           // increasing, decreasing, stable
	OBVTrend       string   `json:"obv_trend,omitempty"`       // rising, falling, flat
	Confirmation   string   `json:"confirmation,omitempty"`    // bullish, bearish, weak_bullish, weak_bearish, neutral
}

// DetectedPattern is one recognized chart or candlestick pattern with its
// directional bias in [-1, 1].
type DetectedPattern struct {
	Name string  `json:"name"`
	Bias float64 `json:"bias"`
}

// PatternScore aggregates detected patterns into one score
type PatternScore struct {
	Score    *float64          `json:"score"`
	Patterns []DetectedPattern `json:"patterns,omitempty"`
}

// TechnicalAnalysis is the technical scoring result for one timeframe.
// Component scores with insufficient history are nil and excluded from
// the overall blend, with their weights renormalized over the rest.
type TechnicalAnalysis struct {
	Ticker            string             `json:"ticker"`
	Timeframe         Timeframe          `json:"timeframe"`
	CurrentPrice      float64            `json:"current_price"`
	BarCount          int                `json:"bar_count"`
	MovingAverages    MovingAverageScore `json:"moving_averages"`
	MACD              MACDScore          `json:"macd"`
	RSI               RSIScore           `json:"rsi"`
	SupportResistance SupportResistance  `json:"support_resistance"`
	Volume            VolumeScore        `json:"volume"`
	Patterns          PatternScore       `json:"patterns"`
	OverallScore      float64            `json:"overall_score"`
	Grade             string             `json:"grade"`
	Signal            string             `json:"signal"`
	DataGaps          []string           `json:"data_gaps,omitempty"`
	GeneratedAt       time.Time          `json:"generated_at"`
}
