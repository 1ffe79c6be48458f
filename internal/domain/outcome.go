package domain

import "time"

// Outcome classifies the result of resolving one signal.
type Outcome string

// Outcome codes.
const (
	OutcomeProfit  Outcome = "PROFIT"  // take-profit level touched first
	OutcomeLoss    Outcome = "LOSS"    // stop-loss level touched first
	OutcomeNoFill  Outcome = "NO_FILL" // limit order never filled within budget
	OutcomeNeither Outcome = "NEITHER" // filled, but no target hit within budget
	OutcomeSkip    Outcome = "SKIP"    // resolution not attempted (unknown symbol)
	OutcomeError   Outcome = "ERROR"   // resolution could not run (bad input)
)

// IsTradeable reports whether the outcome corresponds to a filled position
// that the portfolio should account for.
func (o Outcome) IsTradeable() bool {
	return o == OutcomeProfit || o == OutcomeLoss || o == OutcomeNeither
}

// TargetOutcome is the immutable result of resolving one signal against
// historical price data.
type TargetOutcome struct {
	Result       Outcome
	FillTime     time.Time // zero if the limit never filled
	FillPrice    float64   // always the limit price when filled, 0 otherwise
	HitTime      time.Time // zero unless Result is PROFIT or LOSS
	ElapsedHours float64   // anchor → hit candle for hits, anchor → cursor otherwise
}

// Filled reports whether the limit entry filled during resolution.
func (t TargetOutcome) Filled() bool {
	return !t.FillTime.IsZero()
}
