package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewPriceSeries_SortsAscending(t *testing.T) {
	s, err := NewPriceSeries("SPY", []PricePoint{
		{Date: day("2024-01-03"), Close: 102},
		{Date: day("2024-01-01"), Close: 100},
		{Date: day("2024-01-02"), Close: 101},
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 101, 102}, s.Closes())
	assert.Equal(t, []float64{102, 101, 100}, s.NewestFirst())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, day("2024-01-03"), latest.Date)
}

func TestNewPriceSeries_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		points []PricePoint
	}{
		{
			name:   "zero price",
			points: []PricePoint{{Date: day("2024-01-01"), Close: 0}},
		},
		{
			name:   "negative price",
			points: []PricePoint{{Date: day("2024-01-01"), Close: -5}},
		},
		{
			name: "duplicate date",
			points: []PricePoint{
				{Date: day("2024-01-01"), Close: 1},
				{Date: day("2024-01-01"), Close: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPriceSeries("X", tt.points)
			var target *InvalidSeriesError
			require.True(t, errors.As(err, &target))
			assert.Equal(t, "X", target.Symbol)
		})
	}
}

func TestPriceSeries_Between(t *testing.T) {
	s, err := NewPriceSeries("X", []PricePoint{
		{Date: day("2024-01-01"), Close: 1},
		{Date: day("2024-01-02"), Close: 2},
		{Date: day("2024-01-03"), Close: 3},
	})
	require.NoError(t, err)

	sub := s.Between(day("2024-01-02"), day("2024-01-03"))
	assert.Equal(t, []float64{2, 3}, sub.Closes())
}

func TestWeightVector(t *testing.T) {
	w := WeightVector{Symbols: []string{"A", "B"}, Weights: []float64{0.25, 0.75}}

	v, ok := w.Get("B")
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)

	_, ok = w.Get("C")
	assert.False(t, ok)

	assert.Equal(t, map[string]float64{"A": 0.25, "B": 0.75}, w.Map())
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.Equal(t, 2, w.Len())
}

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"UPRO", "TMF"}, ParseSymbols(" upro, tmf ,,UPRO", nil))
	assert.Equal(t, DefaultInverseVolatilitySymbols, ParseSymbols("", DefaultInverseVolatilitySymbols))
}

func TestStaticProvider(t *testing.T) {
	s, err := NewPriceSeries("X", []PricePoint{
		{Date: day("2024-01-01"), Close: 1},
		{Date: day("2024-01-05"), Close: 2},
	})
	require.NoError(t, err)

	p := NewStaticProvider(s)
	got, err := p.Fetch(context.Background(), "X", day("2024-01-02"), day("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, got.Closes())

	_, err = p.Fetch(context.Background(), "Y", day("2024-01-01"), day("2024-01-10"))
	assert.Error(t, err)
}

func TestErrorMessages(t *testing.T) {
	err := &InsufficientDataError{Symbol: "UPRO", Have: 10, Need: 21}
	assert.Equal(t, "insufficient data for UPRO: have 10, need 21", err.Error())

	stale := &StaleDataError{
		Symbol:     "TMF",
		MostRecent: day("2024-01-01"),
		Reference:  day("2024-01-10"),
		AgeDays:    9,
		MaxAgeDays: 4,
	}
	assert.Contains(t, stale.Error(), "9 days before 2024-01-10")

	cov := &InvalidCovarianceError{Dimension: 3, Reason: "not symmetric"}
	assert.Equal(t, "invalid covariance matrix (n=3): not symmetric", cov.Error())
}
