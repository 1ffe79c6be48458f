package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

var candleBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testCandle(offset int, close float64) domain.Candle {
	return domain.Candle{
		OpenTime: candleBase.Add(time.Duration(offset) * time.Minute),
		Open:     close,
		High:     close + 1,
		Low:      close - 1,
		Close:    close,
	}
}

func TestCandleStore_InsertAndGetRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := []domain.Candle{testCandle(0, 100), testCandle(1, 101), testCandle(2, 102)}
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1m, candles))

	got, err := store.GetRange(ctx, "BTCUSDT", domain.Interval1m, candleBase, candleBase.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].OpenTime.After(got[i-1].OpenTime), "not ordered by open time ASC")
	}
	assert.True(t, got[0].OpenTime.Equal(candleBase))
	assert.InDelta(t, 100.0, got[0].Close, 0.0001)
	assert.InDelta(t, 99.0, got[0].Low, 0.0001)
	assert.InDelta(t, 101.0, got[0].High, 0.0001)
}

func TestCandleStore_GetRangeExcludesEnd(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := []domain.Candle{testCandle(0, 100), testCandle(1, 101), testCandle(2, 102)}
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1m, candles))

	got, err := store.GetRange(ctx, "BTCUSDT", domain.Interval1m, candleBase, candleBase.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 101.0, got[len(got)-1].Close, 0.0001)
}

func TestCandleStore_SkipsDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1m, []domain.Candle{testCandle(0, 100)}))

	// Re-archiving an overlapping window must not create duplicate rows.
	replay := []domain.Candle{testCandle(0, 999), testCandle(1, 101)}
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1m, replay))

	got, err := store.GetRange(ctx, "BTCUSDT", domain.Interval1m, candleBase, candleBase.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 100.0, got[0].Close, 0.0001, "original row must survive the replay")
}

func TestCandleStore_SymbolAndIntervalIsolation(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1m, []domain.Candle{testCandle(0, 100)}))
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval5m, []domain.Candle{testCandle(0, 200)}))

	got, err := store.GetRange(ctx, "BTCUSDT", domain.Interval1m, candleBase, candleBase.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 100.0, got[0].Close, 0.0001)

	got, err = store.GetRange(ctx, "ETHUSDT", domain.Interval1m, candleBase, candleBase.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCandleStore_InsertInvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	err := store.InsertBulk(ctx, "", domain.Interval1m, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(ctx, "BTCUSDT", domain.Interval("7m"), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
