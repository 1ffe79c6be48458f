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
	"signal-backtest-lab/internal/symbols"
)

func main() {
	// Batch mode
	signalsPath := flag.String("signals", "", "Path to signals CSV for batch resolution")

	// Single-signal mode
	coin := flag.String("coin", "", "Coin to resolve a single signal for")
	entry := flag.Float64("entry", 0, "Limit entry price for the single signal")
	signalTime := flag.String("time", "", "Signal timestamp (YYYY-MM-DD HH:MM:SS, UTC)")

	configPath := flag.String("config", "", "Path to YAML config file")
	offline := flag.Bool("offline", false, "Resolve from the candle archive instead of the exchange")
	archiveCandles := flag.Bool("archive-candles", false, "Archive fetched candles to the candle store")
	analysisCSV := flag.String("analysis-csv", "", "Write per-signal analysis CSV to this path")

	flag.Parse()

	logger := log.New(os.Stderr, "[resolve] ", log.LstdFlags)

	if *signalsPath == "" && *coin == "" {
		logger.Fatal("either --signals or --coin is required")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Candle archive, used for --offline and --archive-candles
	var candleStore storage.CandleStore = memory.NewCandleStore()
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		candleStore = chstore.NewCandleStore(conn)
	}

	var provider pricehistory.Provider
	if *offline {
		provider = pricehistory.NewStoreProvider(candleStore)
	} else {
		provider = pricehistory.NewBinanceProvider(
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
	}

	mapper := symbols.NewMapper(cfg.Symbols.Overrides, cfg.Symbols.QuoteSuffix)
	res := resolver.New(provider, mapper,
		resolver.WithSteps(cfg.TimeframeSteps()),
		resolver.WithLogger(logger),
	)

	var batch []domain.Signal
	if *signalsPath != "" {
		batch, err = signals.NewLoader(logger).LoadFile(*signalsPath)
		if err != nil {
			logger.Fatalf("load signals: %v", err)
		}
	} else {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", *signalTime, time.UTC)
		if err != nil {
			logger.Fatalf("parse --time: %v", err)
		}
		batch = []domain.Signal{{Timestamp: ts, Coin: *coin, EntryPrice: *entry}}
	}

	settings := portfolio.Settings{
		InitialCapital: cfg.Strategy.InitialCapital,
		RiskPct:        cfg.Strategy.RiskPct,
		StopLossPct:    cfg.Strategy.StopLossPct,
		RiskReward:     cfg.Strategy.RiskReward,
		TrailMovePct:   cfg.Strategy.TrailMovePct,
	}

	rows := make([]reporting.AnalysisRow, 0, len(batch))
	outcomes := make([]domain.TargetOutcome, 0, len(batch))
	for _, sig := range batch {
		outcome, err := res.Resolve(ctx, sig, settings.ProfitPct(), settings.LossPct(), cfg.TimeBudget())
		if err != nil {
			logger.Fatalf("resolve %s: %v", sig.Coin, err)
		}
		logger.Printf("%s @ %s: %s (%.2fh)",
			sig.Coin, sig.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			outcome.Result, outcome.ElapsedHours)
		rows = append(rows, reporting.AnalysisRow{Signal: sig, Outcome: outcome})
		outcomes = append(outcomes, outcome)
	}

	calc, err := portfolio.NewCalculator(settings)
	if err != nil {
		logger.Fatalf("create calculator: %v", err)
	}
	fmt.Print(reporting.RenderCalcReport(calc.Project(outcomes), res.SkippedSymbols()))

	if *analysisCSV != "" {
		if err := os.WriteFile(*analysisCSV, []byte(reporting.RenderAnalysisCSV(rows)), 0o644); err != nil {
			logger.Fatalf("write analysis csv: %v", err)
		}
		logger.Printf("wrote analysis to %s", *analysisCSV)
	}
}
