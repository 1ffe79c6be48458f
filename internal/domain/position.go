package domain

import (
	"fmt"
	"time"
)

// Close reason codes.
const (
	CloseReasonProfit    = "PROFIT"
	CloseReasonLoss      = "LOSS"
	CloseReasonBreakeven = "BREAKEVEN" // trailed stop at entry was touched
	CloseReasonNeither   = "NEITHER"   // no target hit within the time budget
)

// OpenPosition represents a filled trade that has not yet been closed.
// It is owned exclusively by the position manager while open. The only
// in-place mutation allowed is the one-way trailing-stop ratchet and the
// transition to closed.
type OpenPosition struct {
	PositionID      string
	Signal          Signal
	EntryFillTime   time.Time
	EntryFillPrice  float64
	PositionSize    float64 // base units
	RiskAmount      float64 // capital at risk, debited from available on open
	StopLossPrice   float64
	TakeProfitPrice float64
	SLMovedToEntry  bool // true once the stop has been trailed to breakeven
}

// NewPositionID builds the ledger key for a position.
func NewPositionID(coin string, signalTime, fillTime time.Time) string {
	return fmt.Sprintf("%s_%d_%d", coin, signalTime.UnixMilli(), fillTime.UnixMilli())
}

// ClosedPosition represents a position after its terminal transition.
// Created exactly once per position and appended to an append-only ledger.
type ClosedPosition struct {
	Position    OpenPosition
	CloseTime   time.Time
	CloseReason string
	PnL         float64
	HoursHeld   float64
}
