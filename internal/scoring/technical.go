package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// Minimum bars for any technical scoring on a timeframe.
const minTechnicalBars = 20

// Component weights for the technical blend. Components without enough
// history are excluded and the remaining weights renormalize.
const (
	weightMovingAverages    = 0.25
	weightMACD              = 0.20
	weightRSI               = 0.15
	weightSupportResistance = 0.15
	weightVolume            = 0.15
	weightPatterns          = 0.10
)

// TechnicalScorer scores one timeframe of price history. It holds no
// state; Score is a pure function of its inputs.
type TechnicalScorer struct{}

// NewTechnicalScorer creates a technical scorer.
func NewTechnicalScorer() *TechnicalScorer {
	return &TechnicalScorer{}
}

// Score computes the component indicator scores and their weighted blend
// for the given bars, oldest first.
func (s *TechnicalScorer) Score(ticker string, bars []models.Bar, timeframe models.Timeframe) (*models.TechnicalAnalysis, error) {
	if len(bars) < minTechnicalBars {
		return nil, models.ErrInsufficientHistory
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	opens := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		opens[i] = b.Open
		volumes[i] = float64(b.Volume)
	}
	price := closes[n-1]

	ta := &models.TechnicalAnalysis{
		Ticker:            ticker,
		Timeframe:         timeframe,
		CurrentPrice:      round2(price),
		BarCount:          n,
		MovingAverages:    scoreMovingAverages(closes, price, timeframe),
		MACD:              scoreMACD(closes),
		RSI:               scoreRSI(closes),
		SupportResistance: scoreSupportResistance(highs, lows, price),
		Volume:            scoreVolume(closes, volumes),
		Patterns:          scorePatterns(opens, highs, lows, closes),
		GeneratedAt:       time.Now().UTC(),
	}

	var items []weighted
	include := func(score *float64, weight float64, gap string) {
		if score == nil {
			ta.DataGaps = append(ta.DataGaps, gap)
			return
		}
		items = append(items, weighted{score: *score, weight: weight})
	}
	include(ta.MovingAverages.Score, weightMovingAverages, "Moving Averages")
	include(ta.MACD.Score, weightMACD, "MACD")
	include(ta.RSI.Score, weightRSI, "RSI")
	include(ta.SupportResistance.Score, weightSupportResistance, "Support/Resistance")
	include(ta.Volume.Score, weightVolume, "Volume")
	include(ta.Patterns.Score, weightPatterns, "Patterns")

	overall := weightedAverage(items)
	ta.OverallScore = round1(overall)
	ta.Grade = Grade(overall)
	ta.Signal = SignalFor(overall)
	return ta, nil
}

// maDistanceCurve scores the percent distance between price and an
// average: at the average scores 50, far above scores higher.
var maDistanceCurve = []breakpoint{
	{-15, 10}, {-8, 25}, {-3, 40}, {0, 50}, {3, 60}, {8, 75}, {15, 90},
}

func scoreMovingAverages(closes []float64, price float64, timeframe models.Timeframe) models.MovingAverageScore {
	var smaPeriods, emaPeriods []int
	switch timeframe {
	case models.TimeframeHourly:
		smaPeriods = []int{20, 50, 120, 200}
		emaPeriods = []int{12, 26}
	case models.TimeframeWeekly:
		smaPeriods = []int{10, 20, 50, 120, 200}
		emaPeriods = []int{12, 26}
	default:
		smaPeriods = []int{20, 50, 100, 120, 200}
		emaPeriods = []int{12, 26, 50}
	}

	values := make(map[string]float64)
	var scores []float64
	for _, period := range smaPeriods {
		if len(closes) < period {
			continue
		}
		v := sma(closes, period)
		values[fmt.Sprintf("sma%d", period)] = round2(v)
		if v != 0 {
			scores = append(scores, interpolate((price-v)/v*100, maDistanceCurve))
		}
	}
	for _, period := range emaPeriods {
		if len(closes) < period {
			continue
		}
		v := emaFinal(closes, period)
		values[fmt.Sprintf("ema%d", period)] = round2(v)
		if v != 0 {
			scores = append(scores, interpolate((price-v)/v*100, maDistanceCurve))
		}
	}

	cross := ""
	if n := len(closes); n >= 200 {
		sma50 := sma(closes, 50)
		sma200 := sma(closes, 200)
		prev50 := mean(closes[maxInt(0, n-55) : n-5])
		prev200 := mean(closes[maxInt(0, n-205) : n-5])
		if sma50 > sma200 {
			if prev50 <= prev200 {
				scores = append(scores, 90)
				cross = "golden"
			} else {
				scores = append(scores, 75)
			}
		} else {
			if prev50 >= prev200 {
				scores = append(scores, 10)
				cross = "death"
			} else {
				scores = append(scores, 25)
			}
		}
	}

	if len(scores) == 0 {
		return models.MovingAverageScore{Values: values}
	}
	score := round1(mean(scores))
	return models.MovingAverageScore{Score: &score, Values: values, Cross: cross}
}

func scoreMACD(closes []float64) models.MACDScore {
	if len(closes) < 35 {
		return models.MACDScore{}
	}

	line, signal := macdSeries(closes)
	n := len(line)
	curLine := line[n-1]
	curSignal := signal[n-1]
	curHist := curLine - curSignal

	score := 50.0
	if curLine > curSignal {
		score += 15
	} else {
		score -= 15
	}

	prevHist := line[n-2] - signal[n-2]
	if math.Abs(curHist) > math.Abs(prevHist) {
		if curHist > 0 {
			score += 10
		} else {
			score -= 10
		}
	} else {
		if curHist > 0 {
			score += 5
		} else {
			score -= 5
		}
	}

	if curLine > 0 {
		score += 10
	} else {
		score -= 10
	}

	crossover := ""
	prevDiff := line[n-2] - signal[n-2]
	currDiff := curLine - curSignal
	if prevDiff <= 0 && currDiff > 0 {
		score += 15
		crossover = "bullish"
	} else if prevDiff >= 0 && currDiff < 0 {
		score -= 15
		crossover = "bearish"
	}

	score = clamp(score, 0, 100)
	state := models.StateNeutral
	if score > 55 {
		state = models.StateBullish
	} else if score < 45 {
		state = models.StateBearish
	}

	s := round1(score)
	l := round4(curLine)
	sig := round4(curSignal)
	h := round4(curHist)
	return models.MACDScore{
		Score:      &s,
		Line:       &l,
		SignalLine: &sig,
		Histogram:  &h,
		Crossover:  crossover,
		State:      state,
	}
}

func scoreRSI(closes []float64) models.RSIScore {
	const period = 14
	if len(closes) < period+1 {
		return models.RSIScore{}
	}

	value := wilderRSI(closes, period)

	// Trend context changes how exhaustion reads: a dip in an uptrend is
	// an entry, the same RSI in a downtrend is a falling knife.
	uptrend := false
	if len(closes) >= 50 {
		uptrend = closes[len(closes)-1] > sma(closes, 50)
	}

	pick := func(up, down float64) float64 {
		if uptrend {
			return up
		}
		return down
	}

	var score float64
	switch {
	case value < 30:
		score = pick(85, 80)
	case value < 40:
		score = pick(70, 60)
	case value < 60:
		score = pick(55, 45)
	case value < 70:
		score = pick(45, 30)
	case value < 80:
		score = pick(35, 15)
	default:
		score = pick(20, 5)
	}

	band := "neutral"
	if value < 30 {
		band = "oversold"
	} else if value > 70 {
		band = "overbought"
	}

	s := round1(score)
	v := round1(value)
	return models.RSIScore{Score: &s, Value: &v, Band: band}
}

func scoreSupportResistance(highs, lows []float64, price float64) models.SupportResistance {
	const pivotWindow = 5
	const clusterThreshold = 0.015

	var supportLevels, resistanceLevels []float64
	for _, p := range pivotPoints(lows, pivotWindow, false) {
		supportLevels = append(supportLevels, p.value)
	}
	for _, p := range pivotPoints(highs, pivotWindow, true) {
		resistanceLevels = append(resistanceLevels, p.value)
	}
	supportLevels = clusterLevels(supportLevels, price, clusterThreshold)
	resistanceLevels = clusterLevels(resistanceLevels, price, clusterThreshold)

	var supports, resistances []float64
	for _, s := range supportLevels {
		if s < price {
			supports = append(supports, s)
		}
	}
	for _, r := range resistanceLevels {
		if r > price {
			resistances = append(resistances, r)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(supports)))
	sort.Float64s(resistances)
	if len(supports) > 3 {
		supports = supports[:3]
	}
	if len(resistances) > 3 {
		resistances = resistances[:3]
	}

	var nearestSupport, nearestResistance *float64
	if len(supports) > 0 {
		nearestSupport = &supports[0]
	}
	if len(resistances) > 0 {
		nearestResistance = &resistances[0]
	}

	score := 50.0
	switch {
	case nearestSupport != nil && nearestResistance != nil:
		rangeSize := *nearestResistance - *nearestSupport
		if rangeSize > 0 {
			position := (price - *nearestSupport) / rangeSize
			if position < 0.3 {
				score = 75
			} else if position > 0.7 {
				score = 30
			}
		}
	case nearestSupport != nil:
		score = 60
	case nearestResistance != nil:
		score = 35
	}

	s := round1(score)
	return models.SupportResistance{
		Score:             &s,
		Supports:          supports,
		Resistances:       resistances,
		NearestSupport:    nearestSupport,
		NearestResistance: nearestResistance,
	}
}

func scoreVolume(closes, volumes []float64) models.VolumeScore {
	if len(volumes) < 20 {
		return models.VolumeScore{}
	}
	var total float64
	for _, v := range volumes {
		total += v
	}
	if total == 0 {
		return models.VolumeScore{}
	}

	n := len(volumes)
	currentVol := volumes[n-1]
	avgVol20 := mean(volumes[n-20:])
	avgVol5 := mean(volumes[n-5:])

	relVol := 1.0
	if avgVol20 > 0 {
		relVol = currentVol / avgVol20
	}

	trend := "stable"
	if avgVol5 > avgVol20*1.1 {
		trend = "increasing"
	} else if avgVol5 < avgVol20*0.9 {
		trend = "decreasing"
	}

	var priceChange5 float64
	if len(closes) >= 6 {
		priceChange5 = (closes[len(closes)-1] - closes[len(closes)-6]) / closes[len(closes)-6]
	}

	confirm := "neutral"
	switch {
	case priceChange5 > 0.01 && avgVol5 > avgVol20:
		confirm = "bullish"
	case priceChange5 < -0.01 && avgVol5 > avgVol20:
		confirm = "bearish"
	case priceChange5 > 0.01 && avgVol5 < avgVol20:
		confirm = "weak_bullish"
	case priceChange5 < -0.01 && avgVol5 < avgVol20:
		confirm = "weak_bearish"
	}

	obv := obvSeries(closes, volumes)
	obvRecent := obv[len(obv)-20:]
	denom := math.Abs(obvRecent[0])
	if denom < 1 {
		denom = 1
	}
	obvSlope := (obvRecent[len(obvRecent)-1] - obvRecent[0]) / denom
	obvTrend := "flat"
	if obvSlope > 0.05 {
		obvTrend = "rising"
	} else if obvSlope < -0.05 {
		obvTrend = "falling"
	}

	score := 50.0
	switch {
	case relVol > 1.5 && priceChange5 > 0:
		score += 15
	case relVol > 1.5 && priceChange5 < 0:
		score -= 15
	case relVol > 1.1 && priceChange5 > 0:
		score += 8
	case relVol > 1.1 && priceChange5 < 0:
		score -= 8
	}

	switch confirm {
	case "bullish":
		score += 12
	case "bearish":
		score -= 12
	case "weak_bullish":
		score += 3
	case "weak_bearish":
		// Selling on drying volume reads as exhaustion, mildly positive.
		score += 5
	}

	switch obvTrend {
	case "rising":
		score += 8
	case "falling":
		score -= 8
	}

	s := round1(clamp(score, 0, 100))
	rv := round2(relVol)
	return models.VolumeScore{
		Score:          &s,
		RelativeVolume: &rv,
		Trend:          trend,
		OBVTrend:       obvTrend,
		Confirmation:   confirm,
	}
}

func scorePatterns(opens, highs, lows, closes []float64) models.PatternScore {
	var patterns []models.DetectedPattern

	if len(closes) >= 30 {
		detectDoubleTopBottom(highs, lows, closes, &patterns)
	}
	if len(closes) >= 40 {
		detectHeadAndShoulders(highs, lows, closes, &patterns)
	}
	if len(closes) >= 20 {
		detectTriangles(highs, lows, &patterns)
	}
	if len(closes) >= 3 {
		detectCandlesticks(opens, highs, lows, closes, &patterns)
	}

	score := 50.0
	if len(patterns) > 0 {
		var biasSum float64
		for _, p := range patterns {
			biasSum += p.Bias
		}
		score = clamp(50+biasSum/float64(len(patterns))*30, 0, 100)
	}
	s := round1(score)
	return models.PatternScore{Score: &s, Patterns: patterns}
}

func detectDoubleTopBottom(highs, lows, closes []float64, patterns *[]models.DetectedPattern) {
	n := minInt(len(highs), 60)
	h := highs[len(highs)-n:]
	l := lows[len(lows)-n:]
	price := closes[len(closes)-1]

	pivotHighs := pivotPoints(h, 5, true)
	pivotLows := pivotPoints(l, 5, false)

	for i := 0; i < len(pivotHighs); i++ {
		for j := i + 1; j < len(pivotHighs); j++ {
			a, b := pivotHighs[i], pivotHighs[j]
			if absInt(b.index-a.index) < 8 {
				continue
			}
			avgPeak := (a.value + b.value) / 2
			if avgPeak == 0 {
				continue
			}
			if math.Abs(a.value-b.value)/avgPeak < 0.03 && price < avgPeak*0.97 {
				*patterns = append(*patterns, models.DetectedPattern{Name: "Double Top", Bias: -0.6})
				return
			}
		}
	}

	for i := 0; i < len(pivotLows); i++ {
		for j := i + 1; j < len(pivotLows); j++ {
			a, b := pivotLows[i], pivotLows[j]
			if absInt(b.index-a.index) < 8 {
				continue
			}
			avgTrough := (a.value + b.value) / 2
			if avgTrough == 0 {
				continue
			}
			if math.Abs(a.value-b.value)/avgTrough < 0.03 && price > avgTrough*1.03 {
				*patterns = append(*patterns, models.DetectedPattern{Name: "Double Bottom", Bias: 0.6})
				return
			}
		}
	}
}

func detectHeadAndShoulders(highs, lows, closes []float64, patterns *[]models.DetectedPattern) {
	n := minInt(len(highs), 80)
	h := highs[len(highs)-n:]
	l := lows[len(lows)-n:]
	price := closes[len(closes)-1]

	pivotHighs := pivotPoints(h, 5, true)
	for i := 0; i+2 < len(pivotHighs); i++ {
		left := pivotHighs[i].value
		head := pivotHighs[i+1].value
		right := pivotHighs[i+2].value
		if head == 0 || left == 0 {
			continue
		}
		if head > left && head > right {
			avgShoulder := (left + right) / 2
			if avgShoulder > 0 && math.Abs(left-right)/avgShoulder < 0.05 && price < avgShoulder {
				*patterns = append(*patterns, models.DetectedPattern{Name: "Head & Shoulders", Bias: -0.7})
				break
			}
		}
	}

	pivotLows := pivotPoints(l, 5, false)
	for i := 0; i+2 < len(pivotLows); i++ {
		left := pivotLows[i].value
		head := pivotLows[i+1].value
		right := pivotLows[i+2].value
		if head == 0 || left == 0 {
			continue
		}
		if head < left && head < right {
			avgShoulder := (left + right) / 2
			if avgShoulder > 0 && math.Abs(left-right)/avgShoulder < 0.05 && price > avgShoulder {
				*patterns = append(*patterns, models.DetectedPattern{Name: "Inverse Head & Shoulders", Bias: 0.7})
				break
			}
		}
	}
}

func detectTriangles(highs, lows []float64, patterns *[]models.DetectedPattern) {
	n := minInt(len(highs), 40)
	if n < 10 {
		return
	}
	h := highs[len(highs)-n:]
	l := lows[len(lows)-n:]

	highSlope := linearSlope(h)
	lowSlope := linearSlope(l)
	highScale := mean(h) / float64(n)
	lowScale := mean(l) / float64(n)

	switch {
	case math.Abs(highSlope) < 0.05*highScale && lowSlope > 0.02*lowScale:
		*patterns = append(*patterns, models.DetectedPattern{Name: "Ascending Triangle", Bias: 0.5})
	case math.Abs(lowSlope) < 0.05*lowScale && highSlope < -0.02*highScale:
		*patterns = append(*patterns, models.DetectedPattern{Name: "Descending Triangle", Bias: -0.5})
	case highSlope < -0.01*highScale && lowSlope > 0.01*lowScale:
		*patterns = append(*patterns, models.DetectedPattern{Name: "Symmetrical Triangle", Bias: 0})
	}
}

func detectCandlesticks(opens, highs, lows, closes []float64, patterns *[]models.DetectedPattern) {
	n := len(closes)
	o1, c1 := opens[n-2], closes[n-2]
	o2, h2, l2, c2 := opens[n-1], highs[n-1], lows[n-1], closes[n-1]
	body1 := math.Abs(c1 - o1)
	body2 := math.Abs(c2 - o2)

	avgBody := body1
	if n >= 20 {
		var sum float64
		for i := n - 20; i < n; i++ {
			sum += math.Abs(closes[i] - opens[i])
		}
		avgBody = sum / 20
	}
	if avgBody == 0 {
		return
	}

	if c1 < o1 && c2 > o2 && body2 > body1*1.2 && o2 <= c1 && c2 >= o1 {
		*patterns = append(*patterns, models.DetectedPattern{Name: "Bullish Engulfing", Bias: 0.5})
	} else if c1 > o1 && c2 < o2 && body2 > body1*1.2 && o2 >= c1 && c2 <= o1 {
		*patterns = append(*patterns, models.DetectedPattern{Name: "Bearish Engulfing", Bias: -0.5})
	}

	lowerShadow := math.Min(o2, c2) - l2
	upperShadow := h2 - math.Max(o2, c2)
	if body2 > 0 && lowerShadow > body2*2 && upperShadow < body2*0.5 {
		if n >= 10 && c2 < mean(closes[n-10:]) {
			*patterns = append(*patterns, models.DetectedPattern{Name: "Hammer", Bias: 0.4})
		}
	}
	if body2 > 0 && upperShadow > body2*2 && lowerShadow < body2*0.5 {
		if n >= 10 && c2 > mean(closes[n-10:]) {
			*patterns = append(*patterns, models.DetectedPattern{Name: "Shooting Star", Bias: -0.4})
		}
	}

	if body2 < avgBody*0.1 && (h2-l2) > avgBody*0.5 {
		*patterns = append(*patterns, models.DetectedPattern{Name: "Doji", Bias: 0})
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
