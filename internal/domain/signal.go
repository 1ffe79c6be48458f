package domain

import "time"

// Signal represents one candidate trade parsed from a signal source.
// Signals are read-only input to the simulation and are never mutated.
type Signal struct {
	Timestamp  time.Time // UTC instant the signal was issued
	Coin       string    // normalized (uppercased) asset identifier
	EntryPrice float64   // resting buy-limit price
}

// IsValid checks structural validity of a signal.
func (s Signal) IsValid() bool {
	return !s.Timestamp.IsZero() && s.Coin != "" && s.EntryPrice > 0
}
