// Package handlers provides HTTP handlers for the allocation schemes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/charts"
	"github.com/aristath/riskparity/internal/modules/optimization"
	"github.com/aristath/riskparity/internal/modules/volatility"
	"github.com/aristath/riskparity/internal/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AllocationRunner is the subset of services.AllocationService the handlers use
type AllocationRunner interface {
	InverseVolatility(ctx context.Context, symbols []string, asOf time.Time, params volatility.Params) (domain.InverseVolatilityReport, error)
	RiskParity(ctx context.Context, req services.RiskParityRequest) (domain.RiskParityReport, error)
}

// Handler handles allocation HTTP requests
type Handler struct {
	service          AllocationRunner
	solver           *optimization.RiskParitySolver
	volatilityParams volatility.Params
	solverSettings   optimization.SolverSettings
	now              func() time.Time
	log              zerolog.Logger
}

// NewHandler creates a new allocation handler. The params and settings are
// the defaults for query parameters the caller leaves out.
func NewHandler(
	service AllocationRunner,
	solver *optimization.RiskParitySolver,
	volatilityParams volatility.Params,
	solverSettings optimization.SolverSettings,
	log zerolog.Logger,
) *Handler {
	if solver == nil {
		solver = optimization.NewRiskParitySolver(nil)
	}
	return &Handler{
		service:          service,
		solver:           solver,
		volatilityParams: volatilityParams,
		solverSettings:   solverSettings,
		now:              time.Now,
		log:              log.With().Str("handler", "allocation").Logger(),
	}
}

// paramError marks a malformed request parameter
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.name, e.msg)
}

// HandleInverseVolatility computes an inverse-volatility allocation
// GET /api/allocation/inverse-volatility?symbols=UPRO,TMF&as_of=2024-06-14&window=20
func (h *Handler) HandleInverseVolatility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbols := domain.ParseSymbols(q.Get("symbols"), domain.DefaultInverseVolatilitySymbols)

	asOf, err := parseDate(q.Get("as_of"), "as_of", domain.TruncateToDay(h.now()))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := h.volatilityParams
	if params.WindowSize, err = parseInt(q.Get("window"), "window", params.WindowSize); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.InverseVolatility(r.Context(), symbols, asOf, params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report.RunID, report))
}

// HandleRiskParity computes a risk-parity allocation from historical prices
// GET /api/allocation/risk-parity?symbols=VTV,BRK-B&start=2015-05-22&end=2025-06-12
func (h *Handler) HandleRiskParity(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRiskParityRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.IncludeCumulative = true

	report, err := h.service.RiskParity(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report.RunID, report))
}

// HandleRiskParityChart renders the risk-parity weights as a PNG pie chart
// GET /api/allocation/risk-parity/chart?symbols=...
func (h *Handler) HandleRiskParityChart(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRiskParityRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.RiskParity(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	title := fmt.Sprintf("Risk Parity %s to %s",
		report.Start.Format(domain.DateLayout), report.End.Format(domain.DateLayout))
	png, err := charts.WeightsPie(report.Weights, title)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render chart")
		h.writeError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Run-ID", report.RunID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

// SolveRequest is the body of a direct solver call
type SolveRequest struct {
	Symbols        []string    `json:"symbols"`
	Covariance     [][]float64 `json:"covariance"`
	Tolerance      *float64    `json:"tolerance,omitempty"`
	MaxIterations  *int        `json:"max_iterations,omitempty"`
	InitialWeights []float64   `json:"initial_weights,omitempty"`
}

// HandleSolve runs the risk-parity solver on a caller-supplied covariance matrix
// POST /api/allocation/risk-parity/solve
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Covariance) == 0 {
		h.writeError(w, http.StatusBadRequest, "covariance is required")
		return
	}
	if req.Symbols != nil && len(req.Symbols) != len(req.Covariance) {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("got %d symbols for a %d-asset covariance matrix", len(req.Symbols), len(req.Covariance)))
		return
	}

	settings := h.solverSettings
	settings.InitialWeights = req.InitialWeights
	if req.Tolerance != nil {
		settings.Tolerance = *req.Tolerance
	}
	if req.MaxIterations != nil {
		settings.MaxIterations = *req.MaxIterations
	}
	if settings.Tolerance <= 0 || settings.MaxIterations < 1 {
		h.writeError(w, http.StatusBadRequest, "tolerance must be positive and max_iterations at least 1")
		return
	}

	result, err := h.solver.Solve(req.Covariance, req.Symbols, settings)
	if err != nil {
		if isDomainError(err) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(uuid.NewString(), result))
}

func (h *Handler) parseRiskParityRequest(r *http.Request) (services.RiskParityRequest, error) {
	q := r.URL.Query()
	req := services.RiskParityRequest{
		Symbols:  domain.ParseSymbols(q.Get("symbols"), domain.DefaultRiskParitySymbols),
		Settings: h.solverSettings,
	}

	var err error
	if req.Start, err = parseDate(q.Get("start"), "start", domain.DefaultRiskParityStart); err != nil {
		return req, err
	}
	if req.End, err = parseDate(q.Get("end"), "end", domain.DefaultRiskParityEnd); err != nil {
		return req, err
	}
	if !req.End.After(req.Start) {
		return req, &paramError{name: "end", msg: "must be after start"}
	}
	if req.Settings.Tolerance, err = parseFloat(q.Get("tolerance"), "tolerance", req.Settings.Tolerance); err != nil {
		return req, err
	}
	if req.Settings.Tolerance <= 0 {
		return req, &paramError{name: "tolerance", msg: "must be positive"}
	}
	if req.Settings.MaxIterations, err = parseInt(q.Get("max_iterations"), "max_iterations", req.Settings.MaxIterations); err != nil {
		return req, err
	}
	if req.Settings.MaxIterations < 1 {
		return req, &paramError{name: "max_iterations", msg: "must be at least 1"}
	}
	return req, nil
}

func parseDate(raw, name string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, &paramError{name: name, msg: "expected YYYY-MM-DD"}
	}
	return t, nil
}

func parseInt(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name: name, msg: "expected an integer"}
	}
	return v, nil
}

func parseFloat(raw, name string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &paramError{name: name, msg: "expected a number"}
	}
	return v, nil
}

// isDomainError reports whether err is a data problem rather than a transport failure
func isDomainError(err error) bool {
	var (
		insufficient *domain.InsufficientDataError
		stale        *domain.StaleDataError
		badVol       *domain.InvalidVolatilityError
		badCov       *domain.InvalidCovarianceError
		badSeries    *domain.InvalidSeriesError
	)
	return errors.As(err, &insufficient) ||
		errors.As(err, &stale) ||
		errors.As(err, &badVol) ||
		errors.As(err, &badCov) ||
		errors.As(err, &badSeries)
}

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	var pe *paramError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest
	case isDomainError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Int("status", status).Msg("Allocation request failed")
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg("Allocation request rejected")
	}
	h.writeError(w, status, err.Error())
}

func envelope(runID string, data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"run_id":    runID,
		},
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
