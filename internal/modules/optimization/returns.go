package optimization

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/pkg/formulas"
)

// AlignedReturns holds simple returns for several assets on a shared calendar.
// Rows[t][i] is the return of Symbols[i] from Dates[t-1] to Dates[t]; Dates
// has one entry per row and names the end of each period.
type AlignedReturns struct {
	Symbols []string
	Dates   []time.Time
	Rows    [][]float64
}

// Observations returns the number of aligned return rows
func (a AlignedReturns) Observations() int {
	return len(a.Rows)
}

// Columns returns one return series per asset, in symbol order
func (a AlignedReturns) Columns() [][]float64 {
	cols := make([][]float64, len(a.Symbols))
	for i := range cols {
		cols[i] = make([]float64, len(a.Rows))
		for t, row := range a.Rows {
			cols[i][t] = row[i]
		}
	}
	return cols
}

// AlignReturns puts every series on the union of their dates, forward-fills
// gaps, drops the leading dates where any asset has no price yet, and
// converts the resulting closes to simple returns.
func AlignReturns(series []domain.PriceSeries) (AlignedReturns, error) {
	if len(series) == 0 {
		return AlignedReturns{}, &domain.InsufficientDataError{Have: 0, Need: 1, Reason: "no price series provided"}
	}

	dateSet := make(map[int64]time.Time)
	for _, s := range series {
		for _, p := range s.Points {
			d := domain.TruncateToDay(p.Date)
			dateSet[d.Unix()] = d
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[int64]int, len(dates))
	for i, d := range dates {
		index[d.Unix()] = i
	}

	symbols := make([]string, len(series))
	prices := make([][]float64, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
		col := make([]float64, len(dates))
		for t := range col {
			col[t] = math.NaN()
		}
		for _, p := range s.Points {
			col[index[domain.TruncateToDay(p.Date).Unix()]] = p.Close
		}
		prices[i] = forwardFill(col)
	}

	// First date at which every asset has a price
	first := 0
	for _, col := range prices {
		for first < len(col) && math.IsNaN(col[first]) {
			first++
		}
	}

	usable := len(dates) - first
	if usable < 3 {
		return AlignedReturns{}, &domain.InsufficientDataError{
			Have:   max(usable-1, 0),
			Need:   2,
			Reason: "not enough overlapping history to estimate covariance",
		}
	}

	aligned := AlignedReturns{
		Symbols: symbols,
		Dates:   dates[first+1:],
		Rows:    make([][]float64, usable-1),
	}
	for t := range aligned.Rows {
		aligned.Rows[t] = make([]float64, len(series))
	}
	for i, col := range prices {
		rets := formulas.CalculateReturns(col[first:])
		for t, r := range rets {
			aligned.Rows[t][i] = r
		}
	}
	return aligned, nil
}

// forwardFill replaces NaN entries with the last valid value. Leading NaNs stay.
func forwardFill(prices []float64) []float64 {
	filled := make([]float64, len(prices))
	copy(filled, prices)

	last := math.NaN()
	for i, v := range filled {
		if math.IsNaN(v) {
			filled[i] = last
			continue
		}
		last = v
	}
	return filled
}

// Benchmark names used for cumulative return curves
const (
	RiskParitySeriesName    = "Risk Parity"
	EqualWeightedSeriesName = "Equal Weighted"
)

// CumulativeComparison compounds the weighted portfolio and an equal-weighted
// benchmark over the aligned returns.
func CumulativeComparison(aligned AlignedReturns, weights []float64) []domain.CumulativeSeries {
	n := len(aligned.Symbols)
	equal := make([]float64, n)
	for i := range equal {
		equal[i] = 1 / float64(n)
	}

	return []domain.CumulativeSeries{
		{
			Name:   RiskParitySeriesName,
			Dates:  aligned.Dates,
			Values: formulas.CumulativeReturns(formulas.WeightedReturns(aligned.Rows, weights)),
		},
		{
			Name:   EqualWeightedSeriesName,
			Dates:  aligned.Dates,
			Values: formulas.CumulativeReturns(formulas.WeightedReturns(aligned.Rows, equal)),
		},
	}
}
