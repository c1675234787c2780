package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/optimization"
	"github.com/aristath/riskparity/internal/modules/volatility"
	testingutil "github.com/aristath/riskparity/internal/testing"
	"github.com/aristath/riskparity/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu         sync.Mutex
	invVol     []domain.InverseVolatilityReport
	riskParity []domain.RiskParityReport
}

func (s *recordingSink) WriteInverseVolatility(_ context.Context, r domain.InverseVolatilityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invVol = append(s.invVol, r)
	return nil
}

func (s *recordingSink) WriteRiskParity(_ context.Context, r domain.RiskParityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskParity = append(s.riskParity, r)
	return nil
}

var refDate = time.Date(2020, 2, 15, 18, 0, 0, 0, time.UTC)

func newInvVolService(sink domain.ReportSink) *AllocationService {
	provider := domain.NewStaticProvider(
		testingutil.UPROFixture(),
		testingutil.NewRandomWalkFixture("TMF", refDate, 40, 0.02, 7),
	)
	return NewAllocationService(provider, nil, sink, 2, logger.Nop())
}

func TestInverseVolatility_Golden(t *testing.T) {
	sink := &recordingSink{}
	svc := newInvVolService(sink)

	report, err := svc.InverseVolatility(context.Background(), []string{"UPRO", "TMF"}, refDate, volatility.DefaultParams())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 20, report.WindowSize)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "UPRO", report.Rows[0].Symbol)
	assert.Equal(t, "TMF", report.Rows[1].Symbol)
	assert.InDelta(t, 11.4866, report.Rows[0].VolatilityPct, 1e-3)
	assert.InDelta(t, -3.3816, report.Rows[0].PerformancePct, 1e-3)
	assert.InDelta(t, 1.0, report.Weights.Sum(), 1e-9)
	assert.InDelta(t, 100.0, report.Rows[0].AllocationPct+report.Rows[1].AllocationPct, 1e-7)

	require.Len(t, sink.invVol, 1)
	assert.Equal(t, report.RunID, sink.invVol[0].RunID)
}

func TestInverseVolatility_StaleData(t *testing.T) {
	svc := newInvVolService(nil)

	_, err := svc.InverseVolatility(context.Background(), []string{"UPRO"}, refDate.AddDate(0, 0, 10), volatility.DefaultParams())

	var target *domain.StaleDataError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "UPRO", target.Symbol)
}

func TestInverseVolatility_UnknownSymbol(t *testing.T) {
	svc := newInvVolService(nil)

	_, err := svc.InverseVolatility(context.Background(), []string{"UPRO", "NOPE"}, refDate, volatility.DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch NOPE")
}

func TestInverseVolatility_NoSymbols(t *testing.T) {
	svc := newInvVolService(nil)

	_, err := svc.InverseVolatility(context.Background(), nil, refDate, volatility.DefaultParams())
	var target *domain.InsufficientDataError
	assert.True(t, errors.As(err, &target))
}

func newRiskParityService(sink domain.ReportSink) *AllocationService {
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	provider := domain.NewStaticProvider(
		testingutil.NewRandomWalkFixture("VTV", end, 300, 0.010, 1),
		testingutil.NewRandomWalkFixture("BRK-B", end, 300, 0.015, 2),
		testingutil.NewRandomWalkFixture("ARKK", end, 300, 0.035, 3),
	)
	return NewAllocationService(provider, optimization.NewRiskParitySolver(nil), sink, 3, logger.Nop())
}

func TestRiskParity_EndToEnd(t *testing.T) {
	sink := &recordingSink{}
	svc := newRiskParityService(sink)

	settings := optimization.DefaultSolverSettings()
	settings.Tolerance = 1e-8

	report, err := svc.RiskParity(context.Background(), RiskParityRequest{
		Symbols:           []string{"VTV", "BRK-B", "ARKK"},
		Start:             time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Settings:          settings,
		IncludeCumulative: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 299, report.Observations)
	assert.Equal(t, []string{"VTV", "BRK-B", "ARKK"}, report.Weights.Symbols)
	assert.InDelta(t, 1.0, report.Weights.Sum(), 1e-9)
	assert.True(t, report.Converged)

	vtv, _ := report.Weights.Get("VTV")
	arkk, _ := report.Weights.Get("ARKK")
	assert.Greater(t, vtv, arkk, "the calmest asset should carry the most weight")

	require.Len(t, report.CumulativeReturns, 2)
	assert.Equal(t, optimization.RiskParitySeriesName, report.CumulativeReturns[0].Name)
	assert.Len(t, report.CumulativeReturns[0].Values, 299)
	assert.Len(t, report.Covariance, 3)

	require.Len(t, sink.riskParity, 1)
}

func TestRiskParity_InvalidRange(t *testing.T) {
	svc := newRiskParityService(nil)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.RiskParity(context.Background(), RiskParityRequest{
		Symbols: []string{"VTV"},
		Start:   day,
		End:     day,
	})
	assert.Error(t, err)
}

func TestRiskParity_InsufficientOverlap(t *testing.T) {
	svc := newRiskParityService(nil)

	_, err := svc.RiskParity(context.Background(), RiskParityRequest{
		Symbols: []string{"VTV", "ARKK"},
		Start:   time.Date(2024, 6, 29, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	var target *domain.InsufficientDataError
	assert.True(t, errors.As(err, &target))
}
