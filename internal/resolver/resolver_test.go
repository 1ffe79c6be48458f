package resolver

import (
	"context"
	"testing"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/pricehistory"
	"signal-backtest-lab/internal/symbols"
)

var anchor = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestResolver(stub *pricehistory.StubProvider) *Resolver {
	return New(stub, symbols.NewMapper(nil, ""),
		WithClock(func() time.Time { return anchor.Add(30 * 24 * time.Hour) }))
}

func candle(open time.Time, o, h, l, c float64) domain.Candle {
	return domain.Candle{OpenTime: open, Open: o, High: h, Low: l, Close: c}
}

func testSignal(coin string, price float64) domain.Signal {
	return domain.Signal{Timestamp: anchor, Coin: coin, EntryPrice: price}
}

func TestResolveProfitAfterFill(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	stub.SetCandles("BTCUSDT", domain.Interval1m, []domain.Candle{
		candle(anchor, 105, 106, 101, 105),
		candle(anchor.Add(1*time.Minute), 101, 120, 99, 101),
		candle(anchor.Add(2*time.Minute), 101, 116, 95, 110),
	})

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if out.Result != domain.OutcomeProfit {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeProfit)
	}
	if !out.FillTime.Equal(anchor.Add(1 * time.Minute)) {
		t.Errorf("FillTime = %v, want %v", out.FillTime, anchor.Add(1*time.Minute))
	}
	if out.FillPrice != 100 {
		t.Errorf("FillPrice = %v, want limit price 100", out.FillPrice)
	}
	if !out.HitTime.Equal(anchor.Add(2 * time.Minute)) {
		t.Errorf("HitTime = %v, want %v", out.HitTime, anchor.Add(2*time.Minute))
	}
	if out.ElapsedHours != 0.03 {
		t.Errorf("ElapsedHours = %v, want 0.03", out.ElapsedHours)
	}
}

func TestResolveNoTargetCheckOnFillCandle(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	// The fill candle spans the profit target; it must not count as a hit.
	stub.SetCandles("BTCUSDT", domain.Interval1m, []domain.Candle{
		candle(anchor, 105, 130, 100, 105),
		candle(anchor.Add(1*time.Minute), 105, 106, 104, 105),
	})

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 2*time.Minute)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Result != domain.OutcomeNeither {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeNeither)
	}
}

func TestResolveProfitWinsWhenBothTargetsTouched(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	stub.SetCandles("BTCUSDT", domain.Interval1m, []domain.Candle{
		candle(anchor, 105, 106, 100, 105),
		candle(anchor.Add(1*time.Minute), 105, 120, 80, 90),
	})

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Result != domain.OutcomeProfit {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeProfit)
	}
}

func TestResolveNoFill(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	var candles []domain.Candle
	for i := 0; i < 5; i++ {
		open := anchor.Add(time.Duration(i) * time.Minute)
		candles = append(candles, candle(open, 105, 106, 101, 105))
	}
	stub.SetCandles("BTCUSDT", domain.Interval1m, candles)

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if out.Result != domain.OutcomeNoFill {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeNoFill)
	}
	if out.Filled() {
		t.Error("Filled() = true, want false")
	}
	// Cursor stops after the five 1m candles; coarser steps have no data.
	if out.ElapsedHours != 0.08 {
		t.Errorf("ElapsedHours = %v, want 0.08", out.ElapsedHours)
	}
}

func TestResolveNeitherTarget(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	candles := []domain.Candle{candle(anchor, 101, 102, 100, 101)}
	for i := 1; i < 5; i++ {
		open := anchor.Add(time.Duration(i) * time.Minute)
		candles = append(candles, candle(open, 101, 103, 99, 101))
	}
	stub.SetCandles("BTCUSDT", domain.Interval1m, candles)

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if out.Result != domain.OutcomeNeither {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeNeither)
	}
	if !out.FillTime.Equal(anchor) {
		t.Errorf("FillTime = %v, want %v", out.FillTime, anchor)
	}
	if out.FillPrice != 100 {
		t.Errorf("FillPrice = %v, want 100", out.FillPrice)
	}
}

func TestResolveEscalatesToCoarserInterval(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	// Nothing at 1m forces the walk onto the 5m step.
	stub.SetCandles("BTCUSDT", domain.Interval5m, []domain.Candle{
		candle(anchor, 101, 102, 100, 101),
		candle(anchor.Add(5*time.Minute), 110, 120, 105, 118),
	})

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if out.Result != domain.OutcomeProfit {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeProfit)
	}
	if !out.HitTime.Equal(anchor.Add(5 * time.Minute)) {
		t.Errorf("HitTime = %v, want %v", out.HitTime, anchor.Add(5*time.Minute))
	}
	if out.ElapsedHours != 0.08 {
		t.Errorf("ElapsedHours = %v, want 0.08", out.ElapsedHours)
	}
}

func TestResolveUnknownSymbolCachedAsSkip(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	stub.SetUnknown("FOOUSDT")

	r := newTestResolver(stub)
	out, err := r.Resolve(context.Background(), testSignal("FOO", 1), 16, -8, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Result != domain.OutcomeSkip {
		t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeSkip)
	}
	if stub.Calls() != 1 {
		t.Fatalf("provider calls = %d, want 1", stub.Calls())
	}

	out, err = r.Resolve(context.Background(), testSignal("FOO", 1), 16, -8, 0)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if out.Result != domain.OutcomeSkip {
		t.Fatalf("second Result = %s, want %s", out.Result, domain.OutcomeSkip)
	}
	if stub.Calls() != 1 {
		t.Errorf("provider calls after cached skip = %d, want 1", stub.Calls())
	}

	skipped := r.SkippedSymbols()
	if len(skipped) != 1 || skipped[0] != "FOOUSDT" {
		t.Errorf("SkippedSymbols() = %v, want [FOOUSDT]", skipped)
	}
}

func TestResolveTracksKnownSymbols(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	stub.SetCandles("BTCUSDT", domain.Interval1m, []domain.Candle{
		candle(anchor, 105, 106, 101, 105),
		candle(anchor.Add(1*time.Minute), 101, 120, 99, 101),
		candle(anchor.Add(2*time.Minute), 101, 116, 95, 110),
	})
	stub.SetUnknown("FOOUSDT")

	r := newTestResolver(stub)
	if known := r.KnownSymbols(); len(known) != 0 {
		t.Fatalf("KnownSymbols() before resolving = %v, want empty", known)
	}

	if _, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := r.Resolve(context.Background(), testSignal("FOO", 1), 16, -8, 0); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	known := r.KnownSymbols()
	if len(known) != 1 || known[0] != "BTCUSDT" {
		t.Errorf("KnownSymbols() = %v, want [BTCUSDT]", known)
	}
}

func TestResolveInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		sig       domain.Signal
		profitPct float64
		lossPct   float64
	}{
		{"zero entry price", testSignal("BTC", 0), 16, -8},
		{"empty coin", domain.Signal{Timestamp: anchor, EntryPrice: 100}, 16, -8},
		{"non-negative loss pct", testSignal("BTC", 100), 16, 8},
		{"non-positive profit pct", testSignal("BTC", 100), 0, -8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := pricehistory.NewStubProvider()
			r := newTestResolver(stub)

			out, err := r.Resolve(context.Background(), tc.sig, tc.profitPct, tc.lossPct, 0)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if out.Result != domain.OutcomeError {
				t.Fatalf("Result = %s, want %s", out.Result, domain.OutcomeError)
			}
			if stub.Calls() != 0 {
				t.Errorf("provider calls = %d, want 0", stub.Calls())
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	stub := pricehistory.NewStubProvider()
	stub.SetCandles("BTCUSDT", domain.Interval1m, []domain.Candle{
		candle(anchor, 101, 102, 100, 101),
		candle(anchor.Add(1*time.Minute), 110, 120, 105, 118),
	})

	r := newTestResolver(stub)
	first, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	second, err := r.Resolve(context.Background(), testSignal("BTC", 100), 16, -8, 0)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if first != second {
		t.Errorf("outcomes differ: first %+v, second %+v", first, second)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestResolver(pricehistory.NewStubProvider())
	_, err := r.Resolve(ctx, testSignal("BTC", 100), 16, -8, 0)
	if err == nil {
		t.Fatal("Resolve() error = nil, want context error")
	}
}
