package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/portfolio"
	"signal-backtest-lab/internal/pricehistory"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/resolver"
	"signal-backtest-lab/internal/signals"
	"signal-backtest-lab/internal/storage"
	chstore "signal-backtest-lab/internal/storage/clickhouse"
	"signal-backtest-lab/internal/storage/memory"
	"signal-backtest-lab/internal/storage/migrations"
	pgstore "signal-backtest-lab/internal/storage/postgres"
	"signal-backtest-lab/internal/symbols"
)

func main() {
	// Parse flags
	signalsPath := flag.String("signals", "", "Path to signals CSV (required)")
	configPath := flag.String("config", "", "Path to YAML config file")
	fromDate := flag.String("from", "", "Only simulate signals from this date (YYYY-MM-DD, UTC)")
	toDate := flag.String("to", "", "Only simulate signals before this date (YYYY-MM-DD, UTC)")

	// Storage
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage even when DSNs are configured")
	persist := flag.Bool("persist", false, "Persist closed trades to the trade store")
	archiveCandles := flag.Bool("archive-candles", false, "Archive fetched candles to the candle store")

	// Output
	ledgerCSV := flag.String("ledger-csv", "", "Write the closed-trade ledger CSV to this path")
	eventsCSV := flag.String("events-csv", "", "Write the simulation event CSV to this path")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *signalsPath == "" {
		logger.Fatal("--signals is required")
	}

	// .env is optional; environment wins over the config file either way
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Load signals
	loaded, err := signals.NewLoader(logger).LoadFile(*signalsPath)
	if err != nil {
		logger.Fatalf("load signals: %v", err)
	}
	from, to, err := parseDateRange(*fromDate, *toDate)
	if err != nil {
		logger.Fatalf("parse date range: %v", err)
	}
	filtered := signals.FilterByDate(loaded, from, to)
	logger.Printf("loaded %d signals (%d after date filter)", len(loaded), len(filtered))

	// Create stores
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var candleStore storage.CandleStore = memory.NewCandleStore()

	if !*useMemory && cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewTradeStore(pool)
	}
	if !*useMemory && cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		candleStore = chstore.NewCandleStore(conn)
	}

	// Candle provider
	var provider pricehistory.Provider = pricehistory.NewBinanceProvider(
		cfg.Binance.APIKey, cfg.Binance.APISecret,
		pricehistory.WithRateLimit(cfg.Binance.RequestsPerSecond),
		pricehistory.WithRetryPolicy(pricehistory.RetryPolicy{
			MaxAttempts: cfg.Binance.MaxRetries,
			Delay:       cfg.RetryDelay(),
		}),
		pricehistory.WithLogger(logger),
	)
	if *archiveCandles {
		provider = pricehistory.NewArchivingProvider(provider, candleStore, logger)
	}

	// Resolver and simulator
	mapper := symbols.NewMapper(cfg.Symbols.Overrides, cfg.Symbols.QuoteSuffix)
	res := resolver.New(provider, mapper,
		resolver.WithSteps(cfg.TimeframeSteps()),
		resolver.WithLogger(logger),
	)

	settings := portfolio.Settings{
		InitialCapital: cfg.Strategy.InitialCapital,
		RiskPct:        cfg.Strategy.RiskPct,
		StopLossPct:    cfg.Strategy.StopLossPct,
		RiskReward:     cfg.Strategy.RiskReward,
		TrailMovePct:   cfg.Strategy.TrailMovePct,
	}
	opts := []portfolio.SimulatorOption{
		portfolio.WithTimeBudget(cfg.TimeBudget()),
		portfolio.WithSimulatorLogger(logger),
	}
	if cfg.Strategy.FixedSizing {
		opts = append(opts, portfolio.WithSizer(portfolio.FixedSizer{RiskPct: settings.RiskPct}))
	}
	if *persist {
		opts = append(opts, portfolio.WithTradeStore(tradeStore))
	}

	sim, err := portfolio.NewSimulator(res, settings, opts...)
	if err != nil {
		logger.Fatalf("create simulator: %v", err)
	}

	result, err := sim.Run(ctx, filtered)
	if err != nil {
		if result == nil {
			logger.Fatalf("run simulation: %v", err)
		}
		// An aborted run still carries every fully-applied signal.
		logger.Printf("simulation aborted, reporting partial results: %v", err)
	}

	fmt.Print(reporting.RenderSummary(result.Summary))
	if known := res.KnownSymbols(); len(known) > 0 {
		logger.Printf("resolved symbols: %v", known)
	}
	if skipped := res.SkippedSymbols(); len(skipped) > 0 {
		logger.Printf("skipped symbols: %v", skipped)
	}

	if *ledgerCSV != "" {
		if err := writeFile(*ledgerCSV, reporting.RenderLedgerCSV(toPointers(result.Closed))); err != nil {
			logger.Fatalf("write ledger csv: %v", err)
		}
		logger.Printf("wrote ledger to %s", *ledgerCSV)
	}
	if *eventsCSV != "" {
		if err := writeFile(*eventsCSV, reporting.RenderEventsCSV(result.Events)); err != nil {
			logger.Fatalf("write events csv: %v", err)
		}
		logger.Printf("wrote events to %s", *eventsCSV)
	}
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.ParseInLocation("2006-01-02", fromStr, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
		}
	}
	if toStr != "" {
		to, err = time.ParseInLocation("2006-01-02", toStr, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
		}
	}
	return from, to, nil
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func toPointers(trades []domain.ClosedPosition) []*domain.ClosedPosition {
	result := make([]*domain.ClosedPosition, len(trades))
	for i := range trades {
		result[i] = &trades[i]
	}
	return result
}
