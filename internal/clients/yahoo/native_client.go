// Package yahoo provides daily price history from Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// historyFunc fetches daily bars for a Yahoo symbol over a named period
type historyFunc func(symbol, period string) ([]models.Bar, error)

// NativeClient implements domain.PriceProvider using the go-yfinance library
type NativeClient struct {
	history    historyFunc
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewNativeClient creates a new native Yahoo Finance client
func NewNativeClient(log zerolog.Logger) *NativeClient {
	return &NativeClient{
		history:    fetchHistory,
		maxRetries: 3,
		backoff:    time.Second,
		now:        time.Now,
		log:        log.With().Str("client", "yahoo-native").Logger(),
	}
}

func fetchHistory(symbol, period string) ([]models.Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	bars, err := t.History(models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}
	return bars, nil
}

// periods are the Yahoo history periods, smallest first
var periods = []struct {
	name string
	days int
}{
	{"1mo", 31},
	{"3mo", 92},
	{"6mo", 183},
	{"1y", 366},
	{"2y", 731},
	{"5y", 1827},
	{"10y", 3653},
}

// periodFor returns the smallest period reaching back to start from now
func periodFor(start, now time.Time) string {
	need := int(now.Sub(start).Hours()/24) + 1
	for _, p := range periods {
		if need <= p.days {
			return p.name
		}
	}
	return "max"
}

// Fetch implements domain.PriceProvider. Bars outside [start, end] and bars
// without a positive close are dropped.
func (c *NativeClient) Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	period := periodFor(start, c.now())

	var bars []models.Bar
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.PriceSeries{}, err
		}

		bars, lastErr = c.history(symbol, period)
		if lastErr == nil {
			break
		}
		if attempt < c.maxRetries-1 {
			wait := c.backoff * time.Duration(1<<uint(attempt))
			c.log.Warn().Err(lastErr).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying")
			select {
			case <-ctx.Done():
				return domain.PriceSeries{}, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if lastErr != nil {
		return domain.PriceSeries{}, fmt.Errorf("yahoo history for %s: %w", symbol, lastErr)
	}

	first := domain.TruncateToDay(start)
	last := domain.TruncateToDay(end)
	points := make([]domain.PricePoint, 0, len(bars))
	seen := make(map[int64]bool, len(bars))
	for _, bar := range bars {
		day := domain.TruncateToDay(bar.Date)
		if day.Before(first) || day.After(last) || !(bar.Close > 0) || seen[day.Unix()] {
			continue
		}
		seen[day.Unix()] = true
		points = append(points, domain.PricePoint{Date: day, Close: bar.Close})
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("period", period).
		Int("bars", len(bars)).
		Int("kept", len(points)).
		Msg("Fetched price history")

	return domain.NewPriceSeries(symbol, points)
}
