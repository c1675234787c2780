package domain

import (
	"fmt"
	"time"
)

// InsufficientDataError is returned when a series or sample is too short
type InsufficientDataError struct {
	Symbol string
	Have   int
	Need   int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	subject := e.Symbol
	if subject == "" {
		subject = "input"
	}
	msg := fmt.Sprintf("insufficient data for %s: have %d, need %d", subject, e.Have, e.Need)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// StaleDataError is returned when the most recent observation is too old
type StaleDataError struct {
	Symbol     string
	MostRecent time.Time
	Reference  time.Time
	AgeDays    int
	MaxAgeDays int
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale data for %s: most recent %s is %d days before %s (max %d)",
		e.Symbol,
		e.MostRecent.Format(DateLayout),
		e.AgeDays,
		e.Reference.Format(DateLayout),
		e.MaxAgeDays)
}

// InvalidVolatilityError is returned for a volatility that cannot be inverted
type InvalidVolatilityError struct {
	Symbol     string
	Volatility float64
}

func (e *InvalidVolatilityError) Error() string {
	return fmt.Sprintf("invalid volatility for %s: %v (must be positive and finite)", e.Symbol, e.Volatility)
}

// InvalidCovarianceError is returned for a malformed or degenerate covariance matrix
type InvalidCovarianceError struct {
	Dimension int
	Reason    string
}

func (e *InvalidCovarianceError) Error() string {
	return fmt.Sprintf("invalid covariance matrix (n=%d): %s", e.Dimension, e.Reason)
}

// InvalidSeriesError is returned when a price series violates ordering or positivity
type InvalidSeriesError struct {
	Symbol string
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("invalid price series for %s: %s", e.Symbol, e.Reason)
}
