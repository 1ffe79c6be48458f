// Package resolver determines the outcome of a trading signal by walking
// progressively coarser candle intervals forward in time.
package resolver

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/pricehistory"
	"signal-backtest-lab/internal/symbols"
)

// DefaultTimeBudget is the maximum simulated lookahead from a signal's
// anchor time, clamped to "now" at resolution time.
const DefaultTimeBudget = 365 * 24 * time.Hour

// extraCandles is fetched on top of each step's scan size so boundary
// alignment never starves the step of data.
const extraCandles = 5

// Resolver resolves signals against historical candles. Safe for use
// from a single goroutine per instance; the permanent-skip cache is
// shared and internally synchronized so a resolver may also be shared
// across concurrent resolutions if the caller wants to parallelize.
type Resolver struct {
	provider pricehistory.Provider
	mapper   *symbols.Mapper
	steps    []domain.TimeframeStep
	now      func() time.Time
	logger   *log.Logger

	mu      sync.RWMutex
	skipped map[string]bool // permanently unresolvable symbols
	known   map[string]bool // symbols that served data at least once
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSteps overrides the progressive timeframe steps (finest first).
func WithSteps(steps []domain.TimeframeStep) Option {
	return func(r *Resolver) {
		r.steps = steps
	}
}

// WithClock injects the "now" function used to clamp the time budget.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver over the given candle provider and symbol
// mapper.
func New(provider pricehistory.Provider, mapper *symbols.Mapper, opts ...Option) *Resolver {
	r := &Resolver{
		provider: provider,
		mapper:   mapper,
		steps:    domain.DefaultTimeframeSteps,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.New(log.Writer(), "[resolver] ", log.LstdFlags),
		skipped:  make(map[string]bool),
		known:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines when the signal's buy limit fills and which target
// level is touched first afterwards.
//
// A long entry fills the instant a candle's low reaches the limit price;
// the fill price is the limit price itself, and targets are not evaluated
// on the fill candle. After the fill, the profit target is checked before
// the loss target on every candle, so a candle spanning both levels
// always resolves to PROFIT. lossPct must be negative.
//
// Domain-level failures never surface as errors: unknown symbols resolve
// to SKIP (and are cached so the symbol is not queried again), exhausted
// transient failures are treated as missing data for that step. The
// returned error is non-nil only for context cancellation.
func (r *Resolver) Resolve(ctx context.Context, sig domain.Signal, profitPct, lossPct float64, budget time.Duration) (domain.TargetOutcome, error) {
	if !sig.IsValid() || profitPct <= 0 || lossPct >= 0 {
		return domain.TargetOutcome{Result: domain.OutcomeError}, nil
	}
	if budget <= 0 {
		budget = DefaultTimeBudget
	}

	symbol := r.mapper.Map(sig.Coin)
	if r.isSkipped(symbol) {
		return domain.TargetOutcome{Result: domain.OutcomeSkip}, nil
	}

	anchor := sig.Timestamp.UTC()
	limitPrice := sig.EntryPrice
	profitTarget := limitPrice * (1 + profitPct/100)
	lossTarget := limitPrice * (1 + lossPct/100)

	maxEnd := anchor.Add(budget)
	if now := r.now(); now.Before(maxEnd) {
		maxEnd = now
	}

	cursor := anchor
	filled := false
	var fillTime time.Time

	for i, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return domain.TargetOutcome{}, err
		}
		if !cursor.Before(maxEnd) {
			break
		}

		d := step.Interval.Duration()
		aligned := cursor.Truncate(d)
		if i == 0 && aligned.After(cursor) {
			aligned = aligned.Add(-d)
		}

		candles, err := r.provider.GetCandles(ctx, symbol, aligned, step.Interval, step.MaxCandles+extraCandles)
		switch {
		case errors.Is(err, pricehistory.ErrUnknownSymbol):
			r.markSkipped(symbol)
			r.logger.Printf("unknown symbol %s, caching permanent skip", symbol)
			return domain.TargetOutcome{Result: domain.OutcomeSkip}, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.TargetOutcome{}, err
		case err != nil:
			// Retries are exhausted inside the provider. Missing data for
			// one step is not fatal to the resolution.
			r.logger.Printf("no data for %s %s after retries: %v", symbol, step.Interval, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		r.markKnown(symbol)

		scan := discardBefore(candles, cursor)
		if len(scan) == 0 {
			cursor = aligned.Add(d * time.Duration(step.MaxCandles))
			continue
		}
		if len(scan) > step.MaxCandles {
			scan = scan[:step.MaxCandles]
		}

		for _, c := range scan {
			if !filled {
				if c.Low <= limitPrice {
					filled = true
					fillTime = c.OpenTime
				}
				// Targets are never evaluated on the fill candle.
				continue
			}

			if c.High >= profitTarget {
				return hitOutcome(domain.OutcomeProfit, anchor, fillTime, limitPrice, c.OpenTime), nil
			}
			if c.Low <= lossTarget {
				return hitOutcome(domain.OutcomeLoss, anchor, fillTime, limitPrice, c.OpenTime), nil
			}
		}

		cursor = scan[len(scan)-1].OpenTime.Add(d)
	}

	elapsed := roundHours(cursor.Sub(anchor))
	if !filled {
		return domain.TargetOutcome{Result: domain.OutcomeNoFill, ElapsedHours: elapsed}, nil
	}
	return domain.TargetOutcome{
		Result:       domain.OutcomeNeither,
		FillTime:     fillTime,
		FillPrice:    limitPrice,
		ElapsedHours: elapsed,
	}, nil
}

// SkippedSymbols returns the symbols cached as permanently unresolvable,
// sorted for stable output.
func (r *Resolver) SkippedSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.skipped))
	for s := range r.skipped {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// KnownSymbols returns the symbols that served candle data at least once.
func (r *Resolver) KnownSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.known))
	for s := range r.known {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

func (r *Resolver) isSkipped(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skipped[symbol]
}

func (r *Resolver) markSkipped(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[symbol] = true
}

func (r *Resolver) markKnown(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[symbol] = true
}

// hitOutcome builds a PROFIT or LOSS outcome. Elapsed hours run from the
// anchor through the fill to the hit candle, so pre-fill waiting time is
// included.
func hitOutcome(result domain.Outcome, anchor, fillTime time.Time, fillPrice float64, hitTime time.Time) domain.TargetOutcome {
	return domain.TargetOutcome{
		Result:       result,
		FillTime:     fillTime,
		FillPrice:    fillPrice,
		HitTime:      hitTime,
		ElapsedHours: roundHours(hitTime.Sub(anchor)),
	}
}

// discardBefore drops candles with open time strictly before cursor.
func discardBefore(candles []domain.Candle, cursor time.Time) []domain.Candle {
	for i, c := range candles {
		if !c.OpenTime.Before(cursor) {
			return candles[i:]
		}
	}
	return nil
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}
