package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// Event types emitted by the simulator.
const (
	EventEntry = "ENTRY"
	EventExit  = "EXIT"
)

// Event records one capital-affecting transition during a simulation.
type Event struct {
	Type       string
	Time       time.Time
	PositionID string
	Coin       string
	Price      float64
	PnL        float64
}

// OutcomeResolver resolves the market outcome of a single signal.
type OutcomeResolver interface {
	Resolve(ctx context.Context, sig domain.Signal, profitPct, lossPct float64, budget time.Duration) (domain.TargetOutcome, error)
}

// Summary aggregates one simulation run. The settings used are echoed so
// reports are self-describing.
type Summary struct {
	Settings Settings

	TotalSignals int
	Wins         int
	Losses       int
	Breakevens   int
	Neithers     int
	NoFills      int
	Skips        int
	Errors       int
	CapitalSkips int

	InitialCapital   float64
	FinalCapital     float64
	AvailableCapital float64
	AllocatedCapital float64
	TotalPnL         float64
	TotalReturnPct   float64
	WinRatePct       float64
	OpenPositions    int

	SimulationStart time.Time
	SimulationEnd   time.Time
}

// TradesTaken returns the number of signals that became positions.
func (s Summary) TradesTaken() int {
	return s.Wins + s.Losses + s.Breakevens + s.Neithers
}

// Result is the full output of a simulation run.
type Result struct {
	Summary Summary
	Closed  []domain.ClosedPosition
	Events  []Event
}

// Simulator replays a signal stream against resolved market outcomes,
// managing portfolio capital over the whole run. Signals are processed
// in timestamp order; each tradeable outcome opens a position and
// settles it at the resolved hit.
type Simulator struct {
	resolver OutcomeResolver
	settings Settings
	sizer    Sizer
	trades   storage.TradeStore // optional persistence for the closed ledger
	budget   time.Duration
	logger   *log.Logger
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSizer overrides the position sizing strategy.
func WithSizer(sizer Sizer) SimulatorOption {
	return func(s *Simulator) { s.sizer = sizer }
}

// WithTradeStore persists every closed position to the given store.
func WithTradeStore(store storage.TradeStore) SimulatorOption {
	return func(s *Simulator) { s.trades = store }
}

// WithTimeBudget caps the per-signal resolution lookahead.
func WithTimeBudget(budget time.Duration) SimulatorOption {
	return func(s *Simulator) { s.budget = budget }
}

// WithSimulatorLogger sets the simulator logger.
func WithSimulatorLogger(logger *log.Logger) SimulatorOption {
	return func(s *Simulator) { s.logger = logger }
}

// NewSimulator creates a Simulator for the given resolver and settings.
func NewSimulator(resolver OutcomeResolver, settings Settings, opts ...SimulatorOption) (*Simulator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		resolver: resolver,
		settings: settings,
		logger:   log.New(os.Stderr, "[simulator] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run simulates the portfolio over the given signals.
//
// Steps:
//  1. Sort signals by timestamp, preserving input order for ties.
//  2. Resolve each signal's outcome; SKIP, ERROR and NO_FILL never
//     touch capital.
//  3. Open a position at the resolved fill and settle it at the hit,
//     recording an ENTRY event and, when a target was actually struck,
//     an EXIT event.
//  4. Persist closed positions when a trade store is configured.
//
// On cancellation or a resolver failure mid-run the error is returned
// together with the partial result: fully-applied signals keep their
// closed positions, events and capital effects, and the closed ledger
// is still flushed to the trade store.
func (s *Simulator) Run(ctx context.Context, signals []domain.Signal) (*Result, error) {
	sorted := make([]domain.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	manager, err := NewPositionManager(s.settings, s.sizer)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Summary: Summary{
			Settings:       s.settings,
			TotalSignals:   len(sorted),
			InitialCapital: s.settings.InitialCapital,
		},
	}
	if len(sorted) > 0 {
		result.Summary.SimulationStart = sorted[0].Timestamp
		result.Summary.SimulationEnd = sorted[len(sorted)-1].Timestamp
	}

	for _, sig := range sorted {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, result, manager, err)
		}

		outcome, err := s.resolver.Resolve(ctx, sig, s.settings.ProfitPct(), s.settings.LossPct(), s.budget)
		if err != nil {
			return s.finish(ctx, result, manager,
				fmt.Errorf("resolve %s @ %s: %w", sig.Coin, sig.Timestamp.Format(time.RFC3339), err))
		}

		switch outcome.Result {
		case domain.OutcomeSkip:
			result.Summary.Skips++
			continue
		case domain.OutcomeError:
			result.Summary.Errors++
			continue
		case domain.OutcomeNoFill:
			result.Summary.NoFills++
			continue
		}

		pos, err := manager.Open(sig, outcome.FillTime, outcome.FillPrice)
		if errors.Is(err, ErrInsufficientCapital) {
			s.logger.Printf("skipping %s @ %s: %v", sig.Coin, sig.Timestamp.Format(time.RFC3339), err)
			result.Summary.CapitalSkips++
			continue
		}
		if err != nil {
			return s.finish(ctx, result, manager, fmt.Errorf("open position for %s: %w", sig.Coin, err))
		}
		result.Events = append(result.Events, Event{
			Type:       EventEntry,
			Time:       pos.EntryFillTime,
			PositionID: pos.PositionID,
			Coin:       sig.Coin,
			Price:      pos.EntryFillPrice,
		})

		closed, err := manager.Close(pos, closeTime(sig, outcome), closeReason(outcome.Result))
		if err != nil {
			return s.finish(ctx, result, manager, fmt.Errorf("close position %s: %w", pos.PositionID, err))
		}
		// NEITHER settles flat without a target being struck, so there
		// is no exit to record.
		if closed.CloseReason != domain.CloseReasonNeither {
			result.Events = append(result.Events, Event{
				Type:       EventExit,
				Time:       closed.CloseTime,
				PositionID: closed.Position.PositionID,
				Coin:       sig.Coin,
				Price:      closed.Position.EntryFillPrice,
				PnL:        closed.PnL,
			})
		}
		result.Closed = append(result.Closed, closed)

		switch closed.CloseReason {
		case domain.CloseReasonProfit:
			result.Summary.Wins++
		case domain.CloseReasonLoss:
			result.Summary.Losses++
		case domain.CloseReasonBreakeven:
			result.Summary.Breakevens++
		case domain.CloseReasonNeither:
			result.Summary.Neithers++
		}
	}

	return s.finish(ctx, result, manager, nil)
}

// finish seals the summary off the manager's ledger and flushes closed
// positions to the trade store. It runs on aborted runs too, so runErr
// always travels back with whatever partial result accumulated.
func (s *Simulator) finish(ctx context.Context, result *Result, manager *PositionManager, runErr error) (*Result, error) {
	result.Summary.FinalCapital = manager.CurrentCapital()
	result.Summary.AvailableCapital = manager.AvailableCapital()
	result.Summary.AllocatedCapital = manager.AllocatedCapital()
	result.Summary.OpenPositions = manager.OpenCount()
	result.Summary.TotalPnL = result.Summary.FinalCapital - s.settings.InitialCapital
	if s.settings.InitialCapital > 0 {
		result.Summary.TotalReturnPct = result.Summary.TotalPnL / s.settings.InitialCapital * 100
	}
	if taken := result.Summary.TradesTaken(); taken > 0 {
		result.Summary.WinRatePct = float64(result.Summary.Wins) / float64(taken) * 100
	}

	if s.trades != nil && len(result.Closed) > 0 {
		batch := make([]*domain.ClosedPosition, len(result.Closed))
		for i := range result.Closed {
			batch[i] = &result.Closed[i]
		}
		// Cancellation must not lose the trades that already settled.
		if err := s.trades.InsertBulk(context.WithoutCancel(ctx), batch); err != nil {
			if runErr != nil {
				s.logger.Printf("persisting partial ledger: %v", err)
				return result, runErr
			}
			return result, fmt.Errorf("persist closed trades: %w", err)
		}
	}
	return result, runErr
}

// closeTime picks the settlement timestamp for an outcome. NEITHER has
// no hit candle, so the scan horizon stands in.
func closeTime(sig domain.Signal, outcome domain.TargetOutcome) time.Time {
	if !outcome.HitTime.IsZero() {
		return outcome.HitTime
	}
	return sig.Timestamp.Add(time.Duration(outcome.ElapsedHours * float64(time.Hour)))
}

func closeReason(result domain.Outcome) string {
	switch result {
	case domain.OutcomeProfit:
		return domain.CloseReasonProfit
	case domain.OutcomeLoss:
		return domain.CloseReasonLoss
	default:
		return domain.CloseReasonNeither
	}
}
