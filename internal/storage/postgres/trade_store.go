package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO closed_trades (
		position_id, coin, signal_time, signal_price,
		fill_time, fill_price, position_size, risk_amount,
		stop_loss_price, take_profit_price, sl_moved_to_entry,
		close_time, close_reason, pnl, hours_held
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11,
		$12, $13, $14, $15
	)
`

const selectTradeColumns = `
	position_id, coin, signal_time, signal_price,
	fill_time, fill_price, position_size, risk_amount,
	stop_loss_price, take_profit_price, sl_moved_to_entry,
	close_time, close_reason, pnl, hours_held
`

// Insert appends a closed position. Returns ErrDuplicateKey if the
// position id already exists.
func (s *TradeStore) Insert(ctx context.Context, p *domain.ClosedPosition) error {
	if p == nil || p.Position.PositionID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeQuery, insertTradeArgs(p)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert closed trade: %w", err)
	}
	return nil
}

// InsertBulk appends multiple closed positions atomically. Fails the
// entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, positions []*domain.ClosedPosition) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range positions {
		if p == nil || p.Position.PositionID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeQuery, insertTradeArgs(p)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert closed trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a closed position by its position id. Returns
// ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, positionID string) (*domain.ClosedPosition, error) {
	query := `SELECT ` + selectTradeColumns + ` FROM closed_trades WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanClosedPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get closed trade by id: %w", err)
	}
	return p, nil
}

// GetByCoin retrieves all closed positions for a coin, ordered by close
// time ASC.
func (s *TradeStore) GetByCoin(ctx context.Context, coin string) ([]*domain.ClosedPosition, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM closed_trades
		WHERE coin = $1
		ORDER BY close_time ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, coin)
	if err != nil {
		return nil, fmt.Errorf("get closed trades by coin: %w", err)
	}
	defer rows.Close()

	return scanClosedPositions(rows)
}

// GetAll retrieves the full ledger, ordered by close time ASC.
func (s *TradeStore) GetAll(ctx context.Context) ([]*domain.ClosedPosition, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM closed_trades
		ORDER BY close_time ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all closed trades: %w", err)
	}
	defer rows.Close()

	return scanClosedPositions(rows)
}

func insertTradeArgs(p *domain.ClosedPosition) []any {
	return []any{
		p.Position.PositionID, p.Position.Signal.Coin, p.Position.Signal.Timestamp, p.Position.Signal.EntryPrice,
		p.Position.EntryFillTime, p.Position.EntryFillPrice, p.Position.PositionSize, p.Position.RiskAmount,
		p.Position.StopLossPrice, p.Position.TakeProfitPrice, p.Position.SLMovedToEntry,
		p.CloseTime, p.CloseReason, p.PnL, p.HoursHeld,
	}
}

// scanClosedPosition scans a single row into a ClosedPosition.
func scanClosedPosition(row pgx.Row) (*domain.ClosedPosition, error) {
	var p domain.ClosedPosition

	err := row.Scan(
		&p.Position.PositionID, &p.Position.Signal.Coin, &p.Position.Signal.Timestamp, &p.Position.Signal.EntryPrice,
		&p.Position.EntryFillTime, &p.Position.EntryFillPrice, &p.Position.PositionSize, &p.Position.RiskAmount,
		&p.Position.StopLossPrice, &p.Position.TakeProfitPrice, &p.Position.SLMovedToEntry,
		&p.CloseTime, &p.CloseReason, &p.PnL, &p.HoursHeld,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// scanClosedPositions scans multiple rows into a slice of ClosedPosition.
func scanClosedPositions(rows pgx.Rows) ([]*domain.ClosedPosition, error) {
	var positions []*domain.ClosedPosition

	for rows.Next() {
		p, err := scanClosedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closed trade row: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed trade rows: %w", err)
	}

	return positions, nil
}
