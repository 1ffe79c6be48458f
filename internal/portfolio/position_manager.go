// Package portfolio tracks simulated capital across opened and closed
// positions and runs signal-driven portfolio simulations.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"signal-backtest-lab/internal/domain"
)

// ErrInsufficientCapital is returned when available capital cannot cover
// the computed risk for a new position.
var ErrInsufficientCapital = errors.New("portfolio: insufficient available capital")

// Settings are the immutable strategy parameters for one simulation run.
type Settings struct {
	InitialCapital float64
	RiskPct        float64 // percent of capital risked per trade
	StopLossPct    float64 // percent below fill price, positive
	RiskReward     float64 // take profit distance as a multiple of stop distance
	TrailMovePct   float64 // unrealized gain percent that moves the stop to entry
}

// Validate checks that the settings describe a runnable strategy.
func (s Settings) Validate() error {
	if s.InitialCapital <= 0 {
		return fmt.Errorf("portfolio: initial capital must be positive, got %v", s.InitialCapital)
	}
	if s.RiskPct <= 0 || s.RiskPct > 100 {
		return fmt.Errorf("portfolio: risk pct must be in (0, 100], got %v", s.RiskPct)
	}
	if s.StopLossPct <= 0 {
		return fmt.Errorf("portfolio: stop loss pct must be positive, got %v", s.StopLossPct)
	}
	if s.RiskReward <= 0 {
		return fmt.Errorf("portfolio: risk reward must be positive, got %v", s.RiskReward)
	}
	if s.TrailMovePct < 0 {
		return fmt.Errorf("portfolio: trail move pct must not be negative, got %v", s.TrailMovePct)
	}
	return nil
}

// ProfitPct returns the profit target distance in percent.
func (s Settings) ProfitPct() float64 {
	return s.StopLossPct * s.RiskReward
}

// LossPct returns the loss target distance in percent, negative.
func (s Settings) LossPct() float64 {
	return -s.StopLossPct
}

// PositionManager owns the capital ledger for a single simulation run.
// It is not safe for concurrent use; the simulator drives it from one
// goroutine.
//
// The ledger invariant is current == available + allocated at all times:
// opening a position moves the risk amount from available to allocated,
// closing releases the risk back and applies the realized PnL to both
// current and available.
type PositionManager struct {
	settings Settings
	sizer    Sizer

	current   float64
	available float64
	allocated float64

	open map[string]*domain.OpenPosition
}

// NewPositionManager creates a manager with the full initial capital
// available. A nil sizer defaults to compounding sizing off available
// capital.
func NewPositionManager(settings Settings, sizer Sizer) (*PositionManager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if sizer == nil {
		sizer = CompoundingSizer{RiskPct: settings.RiskPct}
	}
	return &PositionManager{
		settings:  settings,
		sizer:     sizer,
		current:   settings.InitialCapital,
		available: settings.InitialCapital,
		open:      make(map[string]*domain.OpenPosition),
	}, nil
}

// Open allocates capital for a filled signal and returns the new
// position. The fill price sets the stop and take profit levels; the
// position size is chosen so that a stop-out loses exactly the risk
// amount.
func (m *PositionManager) Open(sig domain.Signal, fillTime time.Time, fillPrice float64) (*domain.OpenPosition, error) {
	if fillPrice <= 0 {
		return nil, fmt.Errorf("portfolio: fill price must be positive, got %v", fillPrice)
	}

	risk := m.sizer.RiskAmount(m.settings.InitialCapital, m.available)
	if risk <= 0 || risk > m.available {
		return nil, fmt.Errorf("%w: risk %.2f, available %.2f", ErrInsufficientCapital, risk, m.available)
	}

	stopDistance := fillPrice * m.settings.StopLossPct / 100
	pos := &domain.OpenPosition{
		PositionID:      domain.NewPositionID(sig.Coin, sig.Timestamp, fillTime),
		Signal:          sig,
		EntryFillTime:   fillTime,
		EntryFillPrice:  fillPrice,
		PositionSize:    risk / stopDistance,
		RiskAmount:      risk,
		StopLossPrice:   fillPrice - stopDistance,
		TakeProfitPrice: fillPrice + stopDistance*m.settings.RiskReward,
	}

	m.available -= risk
	m.allocated += risk
	m.open[pos.PositionID] = pos
	return pos, nil
}

// MaybeTrailStop moves the stop loss to the entry price once the traded
// price has gained TrailMovePct over the fill. The move is one-way; a
// later retrace never moves the stop back down.
func (m *PositionManager) MaybeTrailStop(pos *domain.OpenPosition, price float64) bool {
	if pos.SLMovedToEntry || m.settings.TrailMovePct <= 0 {
		return false
	}
	gainPct := (price - pos.EntryFillPrice) / pos.EntryFillPrice * 100
	if gainPct < m.settings.TrailMovePct {
		return false
	}
	pos.StopLossPrice = pos.EntryFillPrice
	pos.SLMovedToEntry = true
	return true
}

// Close settles the position and releases its capital. A LOSS close on a
// position whose stop was trailed to entry realizes zero PnL and is
// recorded as BREAKEVEN.
func (m *PositionManager) Close(pos *domain.OpenPosition, closeTime time.Time, reason string) (domain.ClosedPosition, error) {
	if _, ok := m.open[pos.PositionID]; !ok {
		return domain.ClosedPosition{}, fmt.Errorf("portfolio: position %s is not open", pos.PositionID)
	}

	var pnl float64
	switch reason {
	case domain.CloseReasonProfit:
		pnl = pos.RiskAmount * m.settings.RiskReward
	case domain.CloseReasonLoss:
		if pos.SLMovedToEntry {
			reason = domain.CloseReasonBreakeven
		} else {
			pnl = -pos.RiskAmount
		}
	case domain.CloseReasonNeither, domain.CloseReasonBreakeven:
		// settles flat
	default:
		return domain.ClosedPosition{}, fmt.Errorf("portfolio: unknown close reason %q", reason)
	}

	m.current += pnl
	m.available += pos.RiskAmount + pnl
	m.allocated -= pos.RiskAmount
	delete(m.open, pos.PositionID)

	return domain.ClosedPosition{
		Position:    *pos,
		CloseTime:   closeTime,
		CloseReason: reason,
		PnL:         pnl,
		HoursHeld:   roundHours(closeTime.Sub(pos.EntryFillTime)),
	}, nil
}

// CurrentCapital returns realized capital including open allocations.
func (m *PositionManager) CurrentCapital() float64 { return m.current }

// AvailableCapital returns capital free to risk on new positions.
func (m *PositionManager) AvailableCapital() float64 { return m.available }

// AllocatedCapital returns capital locked in open positions.
func (m *PositionManager) AllocatedCapital() float64 { return m.allocated }

// OpenCount returns the number of positions currently open.
func (m *PositionManager) OpenCount() int { return len(m.open) }

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}
