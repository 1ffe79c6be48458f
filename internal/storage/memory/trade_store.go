// Package memory provides in-memory storage implementations.
package memory

import (
	"context"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClosedPosition // keyed by position id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.ClosedPosition),
	}
}

// Insert appends a closed position. Returns ErrDuplicateKey if the
// position id already exists.
func (s *TradeStore) Insert(_ context.Context, p *domain.ClosedPosition) error {
	if p == nil || p.Position.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.Position.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *p
	s.data[p.Position.PositionID] = &cp
	return nil
}

// InsertBulk appends multiple closed positions atomically. Fails the
// entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, positions []*domain.ClosedPosition) error {
	if len(positions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p == nil || p.Position.PositionID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.Position.PositionID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[p.Position.PositionID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[p.Position.PositionID] = struct{}{}
	}

	for _, p := range positions {
		cp := *p
		s.data[p.Position.PositionID] = &cp
	}

	return nil
}

// GetByID retrieves a closed position by its position id. Returns
// ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, positionID string) (*domain.ClosedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *p
	return &cp, nil
}

// GetByCoin retrieves all closed positions for a coin, ordered by close
// time ASC.
func (s *TradeStore) GetByCoin(_ context.Context, coin string) ([]*domain.ClosedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClosedPosition
	for _, p := range s.data {
		if p.Position.Signal.Coin == coin {
			cp := *p
			result = append(result, &cp)
		}
	}

	sortByCloseTime(result)
	return result, nil
}

// GetAll retrieves the full ledger, ordered by close time ASC.
func (s *TradeStore) GetAll(_ context.Context) ([]*domain.ClosedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ClosedPosition, 0, len(s.data))
	for _, p := range s.data {
		cp := *p
		result = append(result, &cp)
	}

	sortByCloseTime(result)
	return result, nil
}

func sortByCloseTime(positions []*domain.ClosedPosition) {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CloseTime.Before(positions[j].CloseTime)
	})
}

var _ storage.TradeStore = (*TradeStore)(nil)
