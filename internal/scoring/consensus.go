package scoring

import "github.com/bobmcallan/tally/internal/models"

// Timeframe weights for the technical consensus. Daily dominates, weekly
// confirms the larger trend, hourly fine-tunes timing.
const (
	consensusDailyWeight  = 0.50
	consensusWeeklyWeight = 0.35
	consensusHourlyWeight = 0.15
)

// CombineTimeframes blends per-timeframe technical scores into one
// consensus. Missing timeframes have their weight redistributed
// proportionally over the present ones; the result is nil only when all
// three are missing.
func CombineTimeframes(daily, weekly, hourly *models.TechnicalAnalysis) *float64 {
	var items []weighted
	if daily != nil {
		items = append(items, weighted{score: daily.OverallScore, weight: consensusDailyWeight})
	}
	if weekly != nil {
		items = append(items, weighted{score: weekly.OverallScore, weight: consensusWeeklyWeight})
	}
	if hourly != nil {
		items = append(items, weighted{score: hourly.OverallScore, weight: consensusHourlyWeight})
	}
	if len(items) == 0 {
		return nil
	}
	consensus := round1(weightedAverage(items))
	return &consensus
}
