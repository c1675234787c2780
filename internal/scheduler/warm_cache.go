package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/rs/zerolog"
)

// CacheRefresher refetches a date range into the price cache
type CacheRefresher interface {
	Refresh(ctx context.Context, symbol string, start, end time.Time) error
}

// WarmCacheJob refreshes the most recent prices of a fixed symbol list so
// that the first allocation request of the day is served from the cache
type WarmCacheJob struct {
	refresher    CacheRefresher
	symbols      []string
	lookbackDays int
	timeout      time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// NewWarmCacheJob creates a cache warming job covering the last lookbackDays days
func NewWarmCacheJob(refresher CacheRefresher, symbols []string, lookbackDays int) *WarmCacheJob {
	return &WarmCacheJob{
		refresher:    refresher,
		symbols:      symbols,
		lookbackDays: lookbackDays,
		timeout:      5 * time.Minute,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *WarmCacheJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *WarmCacheJob) Name() string {
	return "warm_price_cache"
}

// Run refreshes every symbol. A failing symbol does not stop the others;
// all failures are returned joined.
func (j *WarmCacheJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	end := domain.TruncateToDay(j.now())
	start := end.AddDate(0, 0, -j.lookbackDays)

	var errs []error
	refreshed := 0
	for _, symbol := range j.symbols {
		if err := j.refresher.Refresh(ctx, symbol, start, end); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to warm price cache")
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		refreshed++
	}

	j.log.Info().
		Int("refreshed", refreshed).
		Int("failed", len(errs)).
		Str("start", start.Format(domain.DateLayout)).
		Str("end", end.Format(domain.DateLayout)).
		Msg("Price cache warm completed")

	return errors.Join(errs...)
}
