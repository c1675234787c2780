package domain

import (
	"context"
	"time"
)

// PriceProvider supplies daily closing prices for a symbol.
// The returned series is ascending by date and covers [start, end]
// as far as the upstream source has data.
type PriceProvider interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error)
}

// ReportSink consumes finished allocation results
type ReportSink interface {
	WriteInverseVolatility(ctx context.Context, report InverseVolatilityReport) error
	WriteRiskParity(ctx context.Context, report RiskParityReport) error
}

// AllocationRow is one line of an inverse-volatility report, in percent
type AllocationRow struct {
	Symbol         string  `json:"symbol"`
	AllocationPct  float64 `json:"allocation_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`
	PerformancePct float64 `json:"performance_pct"`
}

// InverseVolatilityReport is the output of an inverse-volatility run
type InverseVolatilityReport struct {
	RunID      string             `json:"run_id"`
	AsOf       time.Time          `json:"as_of"`
	WindowSize int                `json:"window_size"`
	Rows       []AllocationRow    `json:"rows"`
	Weights    WeightVector       `json:"weights"`
	Reports    []VolatilityReport `json:"reports"`
}

// CumulativeSeries is a growth-of-one curve for a named portfolio
type CumulativeSeries struct {
	Name   string      `json:"name"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// CorrelationPair flags two assets whose returns move together
type CorrelationPair struct {
	Left        string  `json:"left"`
	Right       string  `json:"right"`
	Correlation float64 `json:"correlation"`
}

// RiskParityReport is the output of a risk-parity run
type RiskParityReport struct {
	RunID             string             `json:"run_id"`
	Start             time.Time          `json:"start"`
	End               time.Time          `json:"end"`
	Observations      int                `json:"observations"`
	Weights           WeightVector       `json:"weights"`
	Converged         bool               `json:"converged"`
	Iterations        int                `json:"iterations"`
	Objective         float64            `json:"objective"`
	RiskContributions []float64          `json:"risk_contributions"`
	Covariance        [][]float64        `json:"covariance,omitempty"`
	Correlations      []CorrelationPair  `json:"high_correlations,omitempty"`
	CumulativeReturns []CumulativeSeries `json:"cumulative_returns,omitempty"`
}
