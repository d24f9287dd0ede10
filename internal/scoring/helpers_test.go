package scoring

import (
	"math"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

func fp(v float64) *float64 { return &v }

// generateBars builds n daily bars walking from start by step per bar,
// with a small deterministic oscillation so indicators see both up and
// down moves.
func generateBars(n int, start, step float64) []models.Bar {
	bars := make([]models.Bar, n)
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		wiggle := math.Sin(float64(i)*0.7) * start * 0.004
		open := price
		close := price + step + wiggle
		high := math.Max(open, close) * 1.005
		low := math.Min(open, close) * 0.995
		bars[i] = models.Bar{
			Time:   t.AddDate(0, 0, i),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1_000_000 + int64(i%7)*50_000,
		}
		price = close
	}
	return bars
}

// flatBars builds n bars that trade sideways around price.
func flatBars(n int, price float64) []models.Bar {
	return generateBars(n, price, 0)
}
