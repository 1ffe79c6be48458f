// Package pricehistory provides access to historical OHLC candle data.
package pricehistory

import (
	"context"
	"errors"
	"time"

	"signal-backtest-lab/internal/domain"
)

// Provider errors.
var (
	// ErrUnknownSymbol indicates the exchange does not list the requested
	// trading pair. Callers may cache this and stop querying the symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Provider returns historical candles for a trading pair, starting at a
// given instant and moving forward in time.
//
// Implementations must return ErrUnknownSymbol for unlisted pairs so
// callers can distinguish permanent skips from transient failures, which
// are reported as ordinary errors after the retry policy is exhausted.
type Provider interface {
	// GetCandles fetches up to limit candles of the given interval whose
	// open time is at or after start, in chronological order. An empty
	// slice with a nil error means no data is available for the window.
	GetCandles(ctx context.Context, symbol string, start time.Time, interval domain.Interval, limit int) ([]domain.Candle, error)
}

// RetryPolicy bounds retries of transient fetch failures. Decoupled from
// the caller's control flow so the same policy can be shared across
// provider implementations.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the provider defaults: three attempts with a
// fixed pause between them.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Delay:       1500 * time.Millisecond,
}

// wait sleeps for the policy delay or returns early on context cancel.
func (p RetryPolicy) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Delay):
		return nil
	}
}
