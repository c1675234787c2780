// Package charts renders allocation results as PNG charts.
package charts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/rs/zerolog"
	gocharts "github.com/vicanso/go-charts/v2"
)

// Renderer is a domain.ReportSink that writes PNG files into a directory
type Renderer struct {
	dir string
	log zerolog.Logger
}

// NewRenderer creates a renderer writing into dir
func NewRenderer(dir string, log zerolog.Logger) *Renderer {
	return &Renderer{
		dir: dir,
		log: log.With().Str("component", "chart_renderer").Logger(),
	}
}

// WeightsPie renders a pie chart of the allocation
func WeightsPie(weights domain.WeightVector, title string) ([]byte, error) {
	if weights.Len() == 0 {
		return nil, errors.New("no weights to chart")
	}

	labels := make([]string, weights.Len())
	for i, sym := range weights.Symbols {
		labels[i] = fmt.Sprintf("%s (%.2f%%)", sym, weights.Weights[i]*100)
	}

	p, err := gocharts.PieRender(
		weights.Weights,
		gocharts.TitleTextOptionFunc(title),
		gocharts.LegendOptionFunc(gocharts.LegendOption{
			Data: labels,
			Top:  gocharts.PositionTop,
		}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(800),
		gocharts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// CumulativeLine renders growth-of-one curves sharing one date axis
func CumulativeLine(series []domain.CumulativeSeries, title string) ([]byte, error) {
	if len(series) == 0 || len(series[0].Values) == 0 {
		return nil, errors.New("no cumulative returns to chart")
	}

	xLabels := make([]string, len(series[0].Dates))
	for i, d := range series[0].Dates {
		xLabels[i] = d.Format(domain.DateLayout)
	}

	values := make([][]float64, len(series))
	names := make([]string, len(series))
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, s := range series {
		values[i] = s.Values
		names[i] = s.Name
		for _, v := range s.Values {
			yMin = math.Min(yMin, v)
			yMax = math.Max(yMax, v)
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 0.05
	}
	yMin, yMax = yMin-pad, yMax+pad

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = max(len(xLabels)/3, 3)
	}

	p, err := gocharts.LineRender(
		values,
		gocharts.TitleTextOptionFunc(title),
		gocharts.XAxisOptionFunc(gocharts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: gocharts.FalseFlag(),
		}),
		gocharts.YAxisOptionFunc(gocharts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		gocharts.LegendOptionFunc(gocharts.LegendOption{
			Data: names,
			Top:  gocharts.PositionTop,
		}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(1000),
		gocharts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// WriteInverseVolatility implements domain.ReportSink
func (r *Renderer) WriteInverseVolatility(_ context.Context, report domain.InverseVolatilityReport) error {
	title := fmt.Sprintf("Inverse Volatility • %s", report.AsOf.Format(domain.DateLayout))
	png, err := WeightsPie(report.Weights, title)
	if err != nil {
		return err
	}
	return r.write("inverse_volatility_weights.png", png)
}

// WriteRiskParity implements domain.ReportSink
func (r *Renderer) WriteRiskParity(_ context.Context, report domain.RiskParityReport) error {
	period := report.Start.Format(domain.DateLayout) + " to " + report.End.Format(domain.DateLayout)

	png, err := WeightsPie(report.Weights, "Risk Parity Weights • "+period)
	if err != nil {
		return err
	}
	if err := r.write("risk_parity_weights.png", png); err != nil {
		return err
	}

	if len(report.CumulativeReturns) == 0 {
		return nil
	}
	png, err = CumulativeLine(report.CumulativeReturns, "Cumulative Returns • "+period)
	if err != nil {
		return err
	}
	return r.write("risk_parity_cumulative.png", png)
}

func (r *Renderer) write(name string, data []byte) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write chart %s: %w", path, err)
	}
	r.log.Info().Str("path", path).Int("bytes", len(data)).Msg("Chart written")
	return nil
}
