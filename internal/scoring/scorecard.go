package scoring

import (
	"fmt"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// Swing trade entry/exit placement around the nearest support level.
const (
	entryLowFactor  = 0.995
	entryHighFactor = 1.02
	stopLossFactor  = 0.98
)

// Engine blends fundamental and technical analyses into the final
// scorecard. All weights and override thresholds come from configuration.
type Engine struct {
	cfg common.ScoringConfig
}

// NewEngine creates a scorecard engine with the given scoring config.
func NewEngine(cfg common.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Build produces the scorecard for one ticker. Fundamental is nil for
// ETFs and index funds; any of the technical timeframes may be nil when
// price history is too thin. With neither side present there is nothing
// to score and Build returns an error instead of a fabricated card.
func (e *Engine) Build(ticker string, fundamental *models.FundamentalAnalysis, daily, weekly, hourly *models.TechnicalAnalysis) (*models.Scorecard, error) {
	consensus := CombineTimeframes(daily, weekly, hourly)
	if fundamental == nil && consensus == nil {
		return nil, fmt.Errorf("%w: no scorable data for %s", models.ErrInsufficientHistory, ticker)
	}

	breakdown := models.ScoreBreakdown{
		FundamentalWeight:  e.cfg.FundamentalWeight,
		TechnicalWeight:    e.cfg.TechnicalWeight,
		TechnicalConsensus: consensus,
	}
	if fundamental != nil {
		fs := fundamental.OverallScore
		breakdown.FundamentalScore = &fs
	}
	if daily != nil {
		ds := daily.OverallScore
		breakdown.TechnicalDailyScore = &ds
	}
	if weekly != nil {
		ws := weekly.OverallScore
		breakdown.TechnicalWeeklyScore = &ws
	}
	if hourly != nil {
		hs := hourly.OverallScore
		breakdown.TechnicalHourlyScore = &hs
	}

	// Degrade to single-sided scoring when one side is unavailable.
	switch {
	case fundamental == nil:
		breakdown.FundamentalWeight = 0
		breakdown.TechnicalWeight = 1
	case consensus == nil:
		breakdown.FundamentalWeight = 1
		breakdown.TechnicalWeight = 0
	}

	var overall float64
	if fundamental != nil {
		overall += breakdown.FundamentalWeight * fundamental.OverallScore
	}
	if consensus != nil {
		overall += breakdown.TechnicalWeight * *consensus
	}

	// The override keys on the technical consensus itself, not on the
	// composite signal: a bullish technical picture over weak fundamentals
	// is capped at HOLD no matter where the weighted blend lands.
	signal := SignalFor(overall)
	overrideApplied := false
	overrideReason := ""
	if fundamental != nil && consensus != nil &&
		fundamental.OverallScore < e.cfg.OverrideFundamentalBelow &&
		*consensus >= e.cfg.OverrideTechnicalAbove {
		overrideApplied = true
		overrideReason = "Weak fundamentals override bullish technicals"
		if signal == models.SignalBuy || signal == models.SignalStrongBuy {
			signal = models.SignalHold
		}
	}

	confidence := e.cfg.TechnicalOnlyConfidence
	if fundamental != nil {
		confidence = fundamental.Confidence
	}

	return &models.Scorecard{
		Ticker:          ticker,
		OverallScore:    round1(overall),
		Grade:           Grade(overall),
		Signal:          signal,
		ScoreBreakdown:  breakdown,
		Fundamental:     fundamental,
		TechnicalDaily:  daily,
		SwingTrade:      e.assessSwingTrade(fundamental, daily),
		Confidence:      confidence,
		OverrideApplied: overrideApplied,
		OverrideReason:  overrideReason,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// assessSwingTrade derives entry, stop, and target levels from the daily
// support/resistance structure, then qualifies the setup with RSI and
// fundamental context.
func (e *Engine) assessSwingTrade(fundamental *models.FundamentalAnalysis, daily *models.TechnicalAnalysis) *models.SwingTradeAssessment {
	if daily == nil {
		return nil
	}
	sr := daily.SupportResistance
	if sr.NearestSupport == nil || sr.NearestResistance == nil || daily.CurrentPrice <= 0 {
		return &models.SwingTradeAssessment{
			OpportunityRating: "None",
			Reasoning:         []string{"Insufficient support/resistance data"},
		}
	}

	support := *sr.NearestSupport
	resistance := *sr.NearestResistance
	price := daily.CurrentPrice

	entryLow := support * entryLowFactor
	entryHigh := support * entryHighFactor
	stopLoss := support * stopLossFactor
	target := resistance

	risk := price - stopLoss
	if risk <= 0 {
		return &models.SwingTradeAssessment{
			OpportunityRating: "None",
			Reasoning:         []string{"Price below stop loss level"},
		}
	}
	reward := target - price
	rr := reward / risk

	var rating string
	var reasoning []string
	switch {
	case rr >= 3:
		rating = "Strong"
		reasoning = append(reasoning, fmt.Sprintf("Excellent risk/reward ratio of %.1f:1", rr))
	case rr >= 2:
		rating = "Strong"
		reasoning = append(reasoning, fmt.Sprintf("Good risk/reward ratio of %.1f:1", rr))
	case rr >= 1.5:
		rating = "Moderate"
		reasoning = append(reasoning, fmt.Sprintf("Acceptable risk/reward ratio of %.1f:1", rr))
	case rr >= 1:
		rating = "Weak"
		reasoning = append(reasoning, fmt.Sprintf("Marginal risk/reward ratio of %.1f:1", rr))
	default:
		rating = "None"
		reasoning = append(reasoning, fmt.Sprintf("Poor risk/reward ratio of %.1f:1", rr))
	}

	if daily.RSI.Value != nil {
		switch {
		case *daily.RSI.Value < 35:
			reasoning = append(reasoning, "RSI indicates oversold - favorable entry")
		case *daily.RSI.Value > 65:
			reasoning = append(reasoning, "RSI elevated - wait for pullback")
			if rating == "Strong" {
				rating = "Moderate"
			}
		}
	}

	if fundamental != nil {
		switch {
		case fundamental.OverallScore >= 70:
			reasoning = append(reasoning, "Strong fundamental backing")
		case fundamental.OverallScore < 40:
			reasoning = append(reasoning, "Weak fundamentals add risk")
			if rating == "Strong" {
				rating = "Moderate"
			}
		}
	}

	stop := round2(stopLoss)
	tgt := round2(target)
	ratio := round2(rr)
	return &models.SwingTradeAssessment{
		OpportunityRating: rating,
		EntryZone:         []float64{round2(entryLow), round2(entryHigh)},
		StopLoss:          &stop,
		TargetPrice:       &tgt,
		RiskRewardRatio:   &ratio,
		Reasoning:         reasoning,
	}
}
