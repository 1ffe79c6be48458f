package clickhouse

import (
	"context"
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk archives candles for a symbol and interval. Rows whose
// (symbol, interval, open_time) already exist are skipped, since the
// archive is filled opportunistically and windows overlap between
// resolutions. MergeTree does not enforce uniqueness, so existing open
// times are checked explicitly before the batch.
func (s *CandleStore) InsertBulk(ctx context.Context, symbol string, interval domain.Interval, candles []domain.Candle) error {
	if symbol == "" || !interval.IsValid() {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	minTime, maxTime := candles[0].OpenTime, candles[0].OpenTime
	for _, c := range candles[1:] {
		if c.OpenTime.Before(minTime) {
			minTime = c.OpenTime
		}
		if c.OpenTime.After(maxTime) {
			maxTime = c.OpenTime
		}
	}

	existing, err := s.existingOpenTimes(ctx, symbol, interval, minTime, maxTime)
	if err != nil {
		return fmt.Errorf("check existing candles: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval, open_time, open, high, low, close
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	appended := 0
	seen := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		ts := c.OpenTime.UnixMilli()
		if _, dup := existing[ts]; dup {
			continue
		}
		if _, dup := seen[ts]; dup {
			continue
		}
		seen[ts] = struct{}{}

		err = batch.Append(
			symbol, interval.String(), c.OpenTime.UTC(),
			c.Open, c.High, c.Low, c.Close,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
		appended++
	}

	if appended == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves archived candles with open time in [start, end),
// ordered by open time ASC.
func (s *CandleStore) GetRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]domain.Candle, error) {
	query := `
		SELECT open_time, open, high, low, close
		FROM candles
		WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time < ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval.String(), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query candle range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// existingOpenTimes returns the archived open times (unix ms) for a
// symbol and interval within [min, max].
func (s *CandleStore) existingOpenTimes(ctx context.Context, symbol string, interval domain.Interval, minTime, maxTime time.Time) (map[int64]struct{}, error) {
	query := `
		SELECT open_time
		FROM candles
		WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval.String(), minTime.UTC(), maxTime.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[int64]struct{})
	for rows.Next() {
		var openTime time.Time
		if err := rows.Scan(&openTime); err != nil {
			return nil, fmt.Errorf("scan open time: %w", err)
		}
		existing[openTime.UnixMilli()] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open times: %w", err)
	}
	return existing, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var openTime time.Time

		if err := rows.Scan(&openTime, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.OpenTime = openTime.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
