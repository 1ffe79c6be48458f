// Package storage defines persistence interfaces for the backtest lab.
package storage

import (
	"context"
	"time"

	"signal-backtest-lab/internal/domain"
)

// TradeStore provides access to the closed-trade ledger.
type TradeStore interface {
	// Insert appends a closed position. Returns ErrDuplicateKey if the
	// position id already exists.
	Insert(ctx context.Context, p *domain.ClosedPosition) error

	// InsertBulk appends multiple closed positions atomically. Fails the
	// entire batch on any duplicate.
	InsertBulk(ctx context.Context, positions []*domain.ClosedPosition) error

	// GetByID retrieves a closed position by its position id. Returns
	// ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.ClosedPosition, error)

	// GetByCoin retrieves all closed positions for a coin, ordered by
	// close time ASC.
	GetByCoin(ctx context.Context, coin string) ([]*domain.ClosedPosition, error)

	// GetAll retrieves the full ledger, ordered by close time ASC.
	GetAll(ctx context.Context) ([]*domain.ClosedPosition, error)
}

// CandleStore provides access to the OHLC candle archive.
type CandleStore interface {
	// InsertBulk archives candles for a symbol and interval. Duplicate
	// (symbol, interval, open_time) rows are skipped, not errors: the
	// archive is filled opportunistically during resolution and the same
	// window is often fetched more than once.
	InsertBulk(ctx context.Context, symbol string, interval domain.Interval, candles []domain.Candle) error

	// GetRange retrieves archived candles for a symbol and interval with
	// open time in [start, end), ordered by open time ASC.
	GetRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]domain.Candle, error)
}
