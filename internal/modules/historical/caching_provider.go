package historical

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/rs/zerolog"
)

// CachingProvider serves prices from HistoryDB when the cached range covers
// the request, and falls through to the upstream provider otherwise.
type CachingProvider struct {
	upstream domain.PriceProvider
	history  *HistoryDB
	maxAge   time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewCachingProvider wraps upstream with a SQLite cache. Ranges ending on or
// after the sync day are refetched once older than maxAge.
func NewCachingProvider(upstream domain.PriceProvider, history *HistoryDB, maxAge time.Duration, log zerolog.Logger) *CachingProvider {
	return &CachingProvider{
		upstream: upstream,
		history:  history,
		maxAge:   maxAge,
		now:      time.Now,
		log:      log.With().Str("component", "price_cache").Logger(),
	}
}

// Fetch implements domain.PriceProvider
func (c *CachingProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	state, found, err := c.history.GetSyncState(ctx, symbol)
	if err != nil {
		return domain.PriceSeries{}, err
	}

	if found && c.fresh(state, start, end) {
		c.log.Debug().Str("symbol", symbol).Msg("Price cache hit")
		return c.history.GetDailyPrices(ctx, symbol, start, end)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("start", start.Format(domain.DateLayout)).
		Str("end", end.Format(domain.DateLayout)).
		Msg("Price cache miss, fetching upstream")

	series, err := c.upstream.Fetch(ctx, symbol, start, end)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("upstream fetch for %s: %w", symbol, err)
	}

	if err := c.history.SyncHistoricalPrices(ctx, series, start, end, c.now()); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache prices")
		return series, nil
	}
	return c.history.GetDailyPrices(ctx, symbol, start, end)
}

// Refresh refetches [start, end] for symbol regardless of cache state
func (c *CachingProvider) Refresh(ctx context.Context, symbol string, start, end time.Time) error {
	series, err := c.upstream.Fetch(ctx, symbol, start, end)
	if err != nil {
		return fmt.Errorf("upstream fetch for %s: %w", symbol, err)
	}
	return c.history.SyncHistoricalPrices(ctx, series, start, end, c.now())
}

// fresh reports whether the cached range can answer the request. Data for
// days strictly before the sync day is final; later days expire after maxAge.
func (c *CachingProvider) fresh(state SyncState, start, end time.Time) bool {
	if !state.Covers(start, end) {
		return false
	}
	if domain.TruncateToDay(end).Before(domain.TruncateToDay(state.SyncedAt)) {
		return true
	}
	return c.now().Sub(state.SyncedAt) < c.maxAge
}
