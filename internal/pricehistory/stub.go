package pricehistory

import (
	"context"
	"sort"
	"sync"
	"time"

	"signal-backtest-lab/internal/domain"
)

// StubProvider serves scripted candles from memory. Intended for tests
// and dry runs; candles are keyed by symbol and interval.
type StubProvider struct {
	mu      sync.RWMutex
	candles map[string]map[domain.Interval][]domain.Candle
	unknown map[string]bool
	calls   int
}

// NewStubProvider creates an empty stub provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{
		candles: make(map[string]map[domain.Interval][]domain.Candle),
		unknown: make(map[string]bool),
	}
}

// SetCandles installs scripted candles for a symbol and interval,
// replacing any previous script. Candles are sorted by open time.
func (s *StubProvider) SetCandles(symbol string, interval domain.Interval, candles []domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OpenTime.Before(sorted[j].OpenTime)
	})

	if s.candles[symbol] == nil {
		s.candles[symbol] = make(map[domain.Interval][]domain.Candle)
	}
	s.candles[symbol][interval] = sorted
}

// SetUnknown marks a symbol as unlisted; GetCandles returns
// ErrUnknownSymbol for it.
func (s *StubProvider) SetUnknown(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unknown[symbol] = true
}

// Calls returns the number of GetCandles invocations seen.
func (s *StubProvider) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// GetCandles returns scripted candles at or after start. Implements
// Provider.
func (s *StubProvider) GetCandles(_ context.Context, symbol string, start time.Time, interval domain.Interval, limit int) ([]domain.Candle, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unknown[symbol] {
		return nil, ErrUnknownSymbol
	}

	var result []domain.Candle
	for _, c := range s.candles[symbol][interval] {
		if c.OpenTime.Before(start) {
			continue
		}
		result = append(result, c)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

var _ Provider = (*StubProvider)(nil)
