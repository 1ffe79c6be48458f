package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

type candleKey struct {
	symbol   string
	interval domain.Interval
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[candleKey]map[int64]domain.Candle // inner map keyed by open time (unix ms)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[candleKey]map[int64]domain.Candle),
	}
}

// InsertBulk archives candles for a symbol and interval. Duplicates are
// silently skipped.
func (s *CandleStore) InsertBulk(_ context.Context, symbol string, interval domain.Interval, candles []domain.Candle) error {
	if symbol == "" || !interval.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candleKey{symbol, interval}
	if s.data[key] == nil {
		s.data[key] = make(map[int64]domain.Candle)
	}
	for _, c := range candles {
		ts := c.OpenTime.UnixMilli()
		if _, exists := s.data[key][ts]; exists {
			continue
		}
		s.data[key][ts] = c
	}

	return nil
}

// GetRange retrieves archived candles with open time in [start, end),
// ordered by open time ASC.
func (s *CandleStore) GetRange(_ context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for _, c := range s.data[candleKey{symbol, interval}] {
		if c.OpenTime.Before(start) || !c.OpenTime.Before(end) {
			continue
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})

	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
