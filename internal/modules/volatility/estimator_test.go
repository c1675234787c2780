package volatility

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/allocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenPrices runs oldest to newest, 2020-01-26 through 2020-02-15
var goldenPrices = []float64{
	103.5, 103.2, 102.8, 103.0, 102.5, 101.9, 102.2, 101.8, 102.0, 101.5,
	100.8, 101.2, 100.5, 99.8, 100.2, 99.5, 98.1, 97.8, 99.2, 98.5, 100.0,
}

var goldenStart = time.Date(2020, 1, 26, 0, 0, 0, 0, time.UTC)

func buildSeries(t *testing.T, symbol string, start time.Time, closes []float64) domain.PriceSeries {
	t.Helper()
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	s, err := domain.NewPriceSeries(symbol, points)
	require.NoError(t, err)
	return s
}

func TestEstimate_GoldenSeries(t *testing.T) {
	series := buildSeries(t, "UPRO", goldenStart, goldenPrices)
	ref := time.Date(2020, 2, 15, 16, 30, 0, 0, time.UTC)

	report, err := Estimate(series, ref, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, "UPRO", report.Symbol)
	assert.InDelta(t, 0.114866, report.AnnualizedVolatility, 1e-6)
	assert.InDelta(t, -0.033816, report.TrailingPerformance, 1e-6)
	assert.Equal(t, time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC), report.AsOf)
}

func TestEstimate_PerformanceIsExactRatio(t *testing.T) {
	series := buildSeries(t, "X", goldenStart, goldenPrices)
	ref := goldenStart.AddDate(0, 0, 20)

	report, err := Estimate(series, ref, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 100.0/103.5-1, report.TrailingPerformance)
}

func TestEstimate_UsesOnlyTheMostRecentWindow(t *testing.T) {
	longer := append([]float64{500, 10, 900}, goldenPrices...)
	series := buildSeries(t, "X", goldenStart.AddDate(0, 0, -3), longer)
	ref := goldenStart.AddDate(0, 0, 20)

	report, err := Estimate(series, ref, DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 0.114866, report.AnnualizedVolatility, 1e-6)
}

func TestEstimate_InsufficientData(t *testing.T) {
	series := buildSeries(t, "UPRO", goldenStart, goldenPrices[:10])

	_, err := Estimate(series, goldenStart.AddDate(0, 0, 9), DefaultParams())

	var target *domain.InsufficientDataError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "UPRO", target.Symbol)
	assert.Equal(t, 10, target.Have)
	assert.Equal(t, 21, target.Need)
}

func TestEstimate_InsufficientCheckedBeforeStaleness(t *testing.T) {
	series := buildSeries(t, "UPRO", goldenStart, goldenPrices[:10])

	_, err := Estimate(series, goldenStart.AddDate(1, 0, 0), DefaultParams())

	var target *domain.InsufficientDataError
	assert.True(t, errors.As(err, &target))
}

func TestEstimate_Staleness(t *testing.T) {
	series := buildSeries(t, "TMF", goldenStart, goldenPrices)
	last := goldenStart.AddDate(0, 0, 20)

	tests := []struct {
		name      string
		reference time.Time
		stale     bool
	}{
		{"same day", last, false},
		{"four days later", last.AddDate(0, 0, 4), false},
		{"four days later late evening", last.AddDate(0, 0, 4).Add(23 * time.Hour), false},
		{"five days later", last.AddDate(0, 0, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Estimate(series, tt.reference, DefaultParams())
			if !tt.stale {
				assert.NoError(t, err)
				return
			}
			var target *domain.StaleDataError
			require.True(t, errors.As(err, &target))
			assert.Equal(t, 5, target.AgeDays)
			assert.Equal(t, 4, target.MaxAgeDays)
		})
	}
}

func TestEstimate_ConstantGrowthHasZeroVolatility(t *testing.T) {
	closes := make([]float64, 21)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.01
	}
	series := buildSeries(t, "FLAT", goldenStart, closes)

	report, err := Estimate(series, goldenStart.AddDate(0, 0, 20), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.AnnualizedVolatility)
	assert.InDelta(t, math.Pow(1.01, 20)-1, report.TrailingPerformance, 1e-12)

	_, err = allocation.InverseVolatility(allocation.FromReports([]domain.VolatilityReport{report}))
	var invalid *domain.InvalidVolatilityError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "FLAT", invalid.Symbol)
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 34, p.LookbackDays())

	start, end := p.FetchRange(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, end.AddDate(0, 0, -34), start)

	bad := []Params{
		{WindowSize: 1, TradingDaysPerYear: 252},
		{WindowSize: 20, TradingDaysPerYear: 0},
		{WindowSize: 20, TradingDaysPerYear: 252, MaxStalenessDays: -1},
	}
	for _, b := range bad {
		assert.Error(t, b.Validate())
	}
}
