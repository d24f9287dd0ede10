package scoring

// Indicator primitives shared by the technical scorer. All operate on
// slices ordered oldest first and assume the caller has checked lengths.

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sma is the simple moving average of the last period values.
func sma(vals []float64, period int) float64 {
	return mean(vals[len(vals)-period:])
}

// emaFinal returns the last value of the exponential moving average.
func emaFinal(vals []float64, period int) float64 {
	if len(vals) < period {
		return mean(vals)
	}
	mult := 2.0 / float64(period+1)
	ema := mean(vals[:period])
	for i := period; i < len(vals); i++ {
		ema = (vals[i]-ema)*mult + ema
	}
	return ema
}

// emaSeries returns the full exponential moving average series, seeded
// with the simple average of the first period values. Entries before the
// seed index repeat the seed and should not be read.
func emaSeries(vals []float64, period int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) < period {
		copy(out, vals)
		return out
	}
	seed := mean(vals[:period])
	for i := 0; i < period; i++ {
		out[i] = seed
	}
	mult := 2.0 / float64(period+1)
	for i := period; i < len(vals); i++ {
		out[i] = (vals[i]-out[i-1])*mult + out[i-1]
	}
	return out
}

// macdSeries returns the MACD line (EMA12 - EMA26) and its EMA9 signal
// line, both aligned to the MACD line's start. Requires at least 35 bars
// for the last entries to be meaningful.
func macdSeries(closes []float64) (line, signal []float64) {
	e12 := emaSeries(closes, 12)
	e26 := emaSeries(closes, 26)
	line = make([]float64, 0, len(closes)-25)
	for i := 25; i < len(closes); i++ {
		line = append(line, e12[i]-e26[i])
	}
	signal = emaSeries(line, 9)
	return line, signal
}

// wilderRSI computes the relative strength index with Wilder smoothing.
// Requires len(closes) > period.
func wilderRSI(closes []float64, period int) float64 {
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain := mean(gains[:period])
	avgLoss := mean(losses[:period])
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// obvSeries computes on-balance volume over the full series.
func obvSeries(closes, volumes []float64) []float64 {
	obv := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv[i] = obv[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			obv[i] = obv[i-1] - volumes[i]
		default:
			obv[i] = obv[i-1]
		}
	}
	return obv
}

// pivot is one local extremum in a price series.
type pivot struct {
	index int
	value float64
}

// pivotPoints finds local maxima (high=true) or minima over a symmetric
// window.
func pivotPoints(vals []float64, window int, high bool) []pivot {
	var out []pivot
	for i := window; i < len(vals)-window; i++ {
		extremum := true
		for j := i - window; j <= i+window; j++ {
			if high && vals[j] > vals[i] {
				extremum = false
				break
			}
			if !high && vals[j] < vals[i] {
				extremum = false
				break
			}
		}
		if extremum {
			out = append(out, pivot{index: i, value: vals[i]})
		}
	}
	return out
}

// clusterLevels merges nearby price levels into their averages. Two
// levels belong to one cluster when they sit within threshold of the
// reference price of each other.
func clusterLevels(levels []float64, reference, threshold float64) []float64 {
	if len(levels) == 0 || reference <= 0 {
		return nil
	}
	sorted := make([]float64, len(levels))
	copy(sorted, levels)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var clusters []float64
	cluster := []float64{sorted[0]}
	for _, lv := range sorted[1:] {
		if (lv-cluster[len(cluster)-1])/reference < threshold {
			cluster = append(cluster, lv)
		} else {
			clusters = append(clusters, round2(mean(cluster)))
			cluster = []float64{lv}
		}
	}
	clusters = append(clusters, round2(mean(cluster)))
	return clusters
}

// linearSlope fits a least-squares line over vals with x = 0..n-1 and
// returns its slope.
func linearSlope(vals []float64) float64 {
	n := float64(len(vals))
	if n < 2 {
		return 0
	}
	xMean := (n - 1) / 2
	yMean := mean(vals)
	var num, den float64
	for i, v := range vals {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
