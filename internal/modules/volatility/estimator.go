// Package volatility estimates annualized volatility and trailing performance
// from daily closing prices.
package volatility

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/pkg/formulas"
)

// Params configures a single estimation
type Params struct {
	WindowSize         int     // number of returns in the window (W)
	TradingDaysPerYear float64 // annualization factor (K)
	MaxStalenessDays   int     // max calendar days between last close and reference date
}

// DefaultParams returns W=20, K=252, staleness 4 days
func DefaultParams() Params {
	return Params{
		WindowSize:         20,
		TradingDaysPerYear: formulas.TradingDaysPerYear,
		MaxStalenessDays:   4,
	}
}

// Validate checks the parameters are usable
func (p Params) Validate() error {
	if p.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", p.WindowSize)
	}
	if p.TradingDaysPerYear <= 0 || math.IsNaN(p.TradingDaysPerYear) || math.IsInf(p.TradingDaysPerYear, 0) {
		return fmt.Errorf("trading days per year must be positive, got %v", p.TradingDaysPerYear)
	}
	if p.MaxStalenessDays < 0 {
		return errors.New("max staleness days must not be negative")
	}
	return nil
}

// LookbackDays is the calendar span to request so that W+1 trading-day
// closes are available: ceil(1.4*(W+1) + 4).
func (p Params) LookbackDays() int {
	return int(math.Ceil(1.4*float64(p.WindowSize+1) + 4))
}

// FetchRange returns the [start, end] window to request for a reference date
func (p Params) FetchRange(reference time.Time) (time.Time, time.Time) {
	end := domain.TruncateToDay(reference)
	return end.AddDate(0, 0, -p.LookbackDays()), end
}

// Estimate computes annualized volatility and trailing performance over the
// most recent WindowSize returns of the series.
//
// With p[0] the most recent close, returns are r_i = ln(p[i]/p[i+1]) for
// i in [0, W), volatility is their sample standard deviation times sqrt(K),
// and performance is p[0]/p[W] - 1.
func Estimate(series domain.PriceSeries, reference time.Time, params Params) (domain.VolatilityReport, error) {
	if err := params.Validate(); err != nil {
		return domain.VolatilityReport{}, err
	}

	need := params.WindowSize + 1
	if series.Len() < need {
		return domain.VolatilityReport{}, &domain.InsufficientDataError{
			Symbol: series.Symbol,
			Have:   series.Len(),
			Need:   need,
			Reason: "not enough price points for the window",
		}
	}

	latest, _ := series.Latest()
	if err := checkStaleness(series.Symbol, latest.Date, reference, params.MaxStalenessDays); err != nil {
		return domain.VolatilityReport{}, err
	}

	prices := series.NewestFirst()[:need]
	returns := formulas.CalculateLogReturns(prices)

	return domain.VolatilityReport{
		Symbol:               series.Symbol,
		AnnualizedVolatility: formulas.AnnualizedVolatility(returns, params.TradingDaysPerYear),
		TrailingPerformance:  prices[0]/prices[params.WindowSize] - 1,
		AsOf:                 latest.Date,
	}, nil
}

func checkStaleness(symbol string, mostRecent, reference time.Time, maxDays int) error {
	last := domain.TruncateToDay(mostRecent)
	ref := domain.TruncateToDay(reference)
	age := int(ref.Sub(last).Hours() / 24)
	if age > maxDays {
		return &domain.StaleDataError{
			Symbol:     symbol,
			MostRecent: last,
			Reference:  ref,
			AgeDays:    age,
			MaxAgeDays: maxDays,
		}
	}
	return nil
}
