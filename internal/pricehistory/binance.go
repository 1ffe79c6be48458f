package pricehistory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"signal-backtest-lab/internal/domain"
)

// Binance API error code for an unlisted trading pair.
const binanceCodeInvalidSymbol = -1121

// BinanceProvider implements Provider against Binance USDT-margined
// futures klines. Requests are rate limited client-side and retried per
// the configured RetryPolicy.
type BinanceProvider struct {
	client  *futures.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	logger  *log.Logger
}

// BinanceOption configures BinanceProvider.
type BinanceOption func(*BinanceProvider)

// WithRetryPolicy sets the transient-failure retry policy.
func WithRetryPolicy(p RetryPolicy) BinanceOption {
	return func(b *BinanceProvider) {
		b.retry = p
	}
}

// WithRateLimit sets the client-side request rate (requests per second).
func WithRateLimit(perSecond float64) BinanceOption {
	return func(b *BinanceProvider) {
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger *log.Logger) BinanceOption {
	return func(b *BinanceProvider) {
		b.logger = logger
	}
}

// NewBinanceProvider creates a Binance futures candle provider. API
// credentials may be empty; klines are a public endpoint.
func NewBinanceProvider(apiKey, apiSecret string, opts ...BinanceOption) *BinanceProvider {
	client := futures.NewClient(apiKey, apiSecret)
	client.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	b := &BinanceProvider{
		client: client,
		// One request per 200ms keeps a long batch run well inside the
		// exchange request weight limits.
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   DefaultRetryPolicy,
		logger:  log.New(log.Writer(), "[pricehistory] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetCandles fetches klines with retry and rate limiting. Implements
// Provider.
func (b *BinanceProvider) GetCandles(ctx context.Context, symbol string, start time.Time, interval domain.Interval, limit int) ([]domain.Candle, error) {
	if !interval.IsValid() {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	var lastErr error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval.String()).
			StartTime(start.UTC().UnixMilli()).
			Limit(limit).
			Do(ctx)
		if err == nil {
			return convertKlines(klines)
		}

		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == binanceCodeInvalidSymbol {
			return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
		}

		lastErr = err
		b.logger.Printf("fetch %s %s attempt %d/%d failed: %v", symbol, interval, attempt, b.retry.MaxAttempts, err)

		if attempt < b.retry.MaxAttempts {
			if werr := b.retry.wait(ctx); werr != nil {
				return nil, werr
			}
		}
	}

	return nil, fmt.Errorf("fetch %s %s: %w", symbol, interval, lastErr)
}

// convertKlines maps exchange klines to domain candles.
func convertKlines(klines []*futures.Kline) ([]domain.Candle, error) {
	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		open, err := strconv.ParseFloat(k.Open, 64)
		if err != nil {
			return nil, fmt.Errorf("parse open price %q: %w", k.Open, err)
		}
		high, err := strconv.ParseFloat(k.High, 64)
		if err != nil {
			return nil, fmt.Errorf("parse high price %q: %w", k.High, err)
		}
		low, err := strconv.ParseFloat(k.Low, 64)
		if err != nil {
			return nil, fmt.Errorf("parse low price %q: %w", k.Low, err)
		}
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parse close price %q: %w", k.Close, err)
		}

		candles = append(candles, domain.Candle{
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
		})
	}
	return candles, nil
}

var _ Provider = (*BinanceProvider)(nil)
