// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePoint is a single closing price observation
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ordered price history for one symbol.
// Points are kept ascending by date; use NewestFirst for the
// most-recent-first view the estimators consume.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// NewPriceSeries validates and builds a series.
// Points may arrive in any order; they are sorted ascending by date.
// Duplicate dates and non-positive or non-finite closes are rejected.
func NewPriceSeries(symbol string, points []PricePoint) (PriceSeries, error) {
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i, p := range sorted {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return PriceSeries{}, &InvalidSeriesError{
				Symbol: symbol,
				Reason: fmt.Sprintf("price %v on %s is not a positive finite number", p.Close, p.Date.Format(DateLayout)),
			}
		}
		if i > 0 && !p.Date.After(sorted[i-1].Date) {
			return PriceSeries{}, &InvalidSeriesError{
				Symbol: symbol,
				Reason: fmt.Sprintf("duplicate date %s", p.Date.Format(DateLayout)),
			}
		}
	}

	return PriceSeries{Symbol: symbol, Points: sorted}, nil
}

// Len returns the number of observations
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Latest returns the most recent observation
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// NewestFirst returns the closes with index 0 being the most recent
func (s PriceSeries) NewestFirst() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[len(s.Points)-1-i] = p.Close
	}
	return out
}

// Closes returns the closes in ascending date order
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Between returns the sub-series with start <= date <= end
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	out := PriceSeries{Symbol: s.Symbol}
	for _, p := range s.Points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// VolatilityReport holds the per-asset statistics of one estimation run
type VolatilityReport struct {
	Symbol               string    `json:"symbol"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	TrailingPerformance  float64   `json:"trailing_performance"`
	AsOf                 time.Time `json:"as_of"`
}

// WeightVector is an allocation over symbols.
// Weights are non-negative and sum to 1.
type WeightVector struct {
	Symbols []string  `json:"symbols"`
	Weights []float64 `json:"weights"`
}

// Len returns the number of assets
func (w WeightVector) Len() int {
	return len(w.Weights)
}

// Get returns the weight for a symbol
func (w WeightVector) Get(symbol string) (float64, bool) {
	for i, s := range w.Symbols {
		if s == symbol {
			return w.Weights[i], true
		}
	}
	return 0, false
}

// Map returns the weights keyed by symbol
func (w WeightVector) Map() map[string]float64 {
	out := make(map[string]float64, len(w.Symbols))
	for i, s := range w.Symbols {
		out[s] = w.Weights[i]
	}
	return out
}

// Sum returns the total of all weights
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, v := range w.Weights {
		total += v
	}
	return total
}

// DateLayout is the calendar date format used across reports and the API
const DateLayout = "2006-01-02"

// TruncateToDay returns t at UTC midnight of its calendar date
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
