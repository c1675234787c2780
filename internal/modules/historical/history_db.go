// Package historical caches daily closing prices in SQLite in front of an
// upstream price provider.
package historical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/riskparity/internal/database"
	"github.com/aristath/riskparity/internal/domain"
	"github.com/rs/zerolog"
)

// HistoryDB provides access to cached daily prices
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// SyncState records which date range of a symbol has been fetched upstream
type SyncState struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	SyncedAt time.Time
}

// Covers reports whether the synced range contains [start, end]
func (s SyncState) Covers(start, end time.Time) bool {
	return !domain.TruncateToDay(start).Before(s.Start) && !domain.TruncateToDay(end).After(s.End)
}

// GetDailyPrices returns the cached closes for symbol within [start, end], ascending
func (h *HistoryDB) GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT date, close
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, domain.TruncateToDay(start).Unix(), domain.TruncateToDay(end).Unix())
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var dateUnix int64
		var p domain.PricePoint
		if err := rows.Scan(&dateUnix, &p.Close); err != nil {
			return domain.PriceSeries{}, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return domain.NewPriceSeries(symbol, points)
}

// SyncHistoricalPrices upserts a series and widens the symbol's synced range
// to include [start, end]. Both happen in one transaction.
func (h *HistoryDB) SyncHistoricalPrices(ctx context.Context, series domain.PriceSeries, start, end, syncedAt time.Time) error {
	start, end = domain.TruncateToDay(start), domain.TruncateToDay(end)

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (symbol, date, close)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range series.Points {
			day := domain.TruncateToDay(p.Date)
			if _, err := stmt.ExecContext(ctx, series.Symbol, day.Unix(), p.Close); err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", day.Format(domain.DateLayout), err)
			}
		}

		prev, found, err := syncState(ctx, tx, series.Symbol)
		if err != nil {
			return err
		}
		if found {
			start, end = mergeRange(prev, start, end, syncedAt)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sync_state (symbol, range_start, range_end, synced_at)
			VALUES (?, ?, ?, ?)
		`, series.Symbol, start.Unix(), end.Unix(), syncedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to update sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Debug().
		Str("symbol", series.Symbol).
		Int("points", series.Len()).
		Msg("Synced historical prices")
	return nil
}

// GetSyncState returns the synced range for a symbol, if any
func (h *HistoryDB) GetSyncState(ctx context.Context, symbol string) (SyncState, bool, error) {
	return syncState(ctx, h.db, symbol)
}

// LastSynced returns when symbol was last fetched upstream; zero time if never
func (h *HistoryDB) LastSynced(ctx context.Context, symbol string) (time.Time, error) {
	state, found, err := h.GetSyncState(ctx, symbol)
	if err != nil || !found {
		return time.Time{}, err
	}
	return state.SyncedAt, nil
}

// settledThrough returns the last day of the range whose close was final at
// sync time. Days on or after the sync day may have been fetched intraday.
func (s SyncState) settledThrough() time.Time {
	settled := domain.TruncateToDay(s.SyncedAt).AddDate(0, 0, -1)
	if s.End.Before(settled) {
		return s.End
	}
	return settled
}

// mergeRange widens [start, end] with the previous synced range when the two
// touch. A later sync day would make the previous range's intraday tail look
// final, so that tail is dropped before merging and gets refetched on demand.
func mergeRange(prev SyncState, start, end, syncedAt time.Time) (time.Time, time.Time) {
	prevEnd := prev.End
	if domain.TruncateToDay(syncedAt).After(domain.TruncateToDay(prev.SyncedAt)) {
		prevEnd = prev.settledThrough()
	}
	if prevEnd.Before(prev.Start) {
		return start, end
	}

	// Only merge ranges that touch, otherwise the gap would look fetched
	if start.After(prevEnd.AddDate(0, 0, 1)) || end.Before(prev.Start.AddDate(0, 0, -1)) {
		return start, end
	}
	if prev.Start.Before(start) {
		start = prev.Start
	}
	if prevEnd.After(end) {
		end = prevEnd
	}
	return start, end
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func syncState(ctx context.Context, q queryer, symbol string) (SyncState, bool, error) {
	var start, end, synced int64
	err := q.QueryRowContext(ctx, `
		SELECT range_start, range_end, synced_at
		FROM sync_state
		WHERE symbol = ?
	`, symbol).Scan(&start, &end, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{}, false, nil
	}
	if err != nil {
		return SyncState{}, false, fmt.Errorf("failed to query sync state: %w", err)
	}
	return SyncState{
		Symbol:   symbol,
		Start:    time.Unix(start, 0).UTC(),
		End:      time.Unix(end, 0).UTC(),
		SyncedAt: time.Unix(synced, 0).UTC(),
	}, true, nil
}
