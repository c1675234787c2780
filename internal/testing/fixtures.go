package testing

import (
	"math"
	"math/rand"
	"time"

	"github.com/aristath/riskparity/internal/domain"
)

// NewPriceSeriesFixture builds a series with one close per calendar day from start.
// It panics on invalid closes; fixtures are expected to be well formed.
func NewPriceSeriesFixture(symbol string, start time.Time, closes []float64) domain.PriceSeries {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Date: domain.TruncateToDay(start).AddDate(0, 0, i), Close: c}
	}
	s, err := domain.NewPriceSeries(symbol, points)
	if err != nil {
		panic(err)
	}
	return s
}

// NewRandomWalkFixture builds a deterministic geometric random walk of n
// daily closes ending on end. dailyVol is the stddev of daily log returns.
func NewRandomWalkFixture(symbol string, end time.Time, n int, dailyVol float64, seed int64) domain.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= math.Exp(dailyVol * rng.NormFloat64())
		closes[i] = price
	}
	start := domain.TruncateToDay(end).AddDate(0, 0, -(n - 1))
	return NewPriceSeriesFixture(symbol, start, closes)
}

// UPROFixture is a 21-day series ending 2020-02-15 with annualized
// volatility 0.114866 and 20-day performance -0.033816.
func UPROFixture() domain.PriceSeries {
	return NewPriceSeriesFixture("UPRO", time.Date(2020, 1, 26, 0, 0, 0, 0, time.UTC), []float64{
		103.5, 103.2, 102.8, 103.0, 102.5, 101.9, 102.2, 101.8, 102.0, 101.5,
		100.8, 101.2, 100.5, 99.8, 100.2, 99.5, 98.1, 97.8, 99.2, 98.5, 100.0,
	})
}
