package pricehistory

import (
	"context"
	"log"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// ArchivingProvider wraps another Provider and tees every fetched candle
// batch into a candle archive. Archive write failures are logged, not
// propagated: losing an archive row must not fail a resolution.
type ArchivingProvider struct {
	inner  Provider
	store  storage.CandleStore
	logger *log.Logger
}

// NewArchivingProvider creates an archiving wrapper around inner.
func NewArchivingProvider(inner Provider, store storage.CandleStore, logger *log.Logger) *ArchivingProvider {
	if logger == nil {
		logger = log.New(log.Writer(), "[archive] ", log.LstdFlags)
	}
	return &ArchivingProvider{inner: inner, store: store, logger: logger}
}

// GetCandles fetches from the wrapped provider and archives the result.
// Implements Provider.
func (a *ArchivingProvider) GetCandles(ctx context.Context, symbol string, start time.Time, interval domain.Interval, limit int) ([]domain.Candle, error) {
	candles, err := a.inner.GetCandles(ctx, symbol, start, interval, limit)
	if err != nil {
		return nil, err
	}

	if len(candles) > 0 {
		if aerr := a.store.InsertBulk(ctx, symbol, interval, candles); aerr != nil {
			a.logger.Printf("archive %d candles for %s %s failed: %v", len(candles), symbol, interval, aerr)
		}
	}

	return candles, nil
}

// StoreProvider serves candles from a candle archive, enabling offline
// replays of previously archived runs. Symbols absent from the archive
// yield no data rather than ErrUnknownSymbol: the archive cannot tell an
// unlisted pair from one that was never fetched.
type StoreProvider struct {
	store storage.CandleStore
}

// NewStoreProvider creates an archive-backed provider.
func NewStoreProvider(store storage.CandleStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// GetCandles reads archived candles for the window implied by start,
// interval and limit. Implements Provider.
func (s *StoreProvider) GetCandles(ctx context.Context, symbol string, start time.Time, interval domain.Interval, limit int) ([]domain.Candle, error) {
	end := start.Add(interval.Duration() * time.Duration(limit))
	candles, err := s.store.GetRange(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

var (
	_ Provider = (*ArchivingProvider)(nil)
	_ Provider = (*StoreProvider)(nil)
)
