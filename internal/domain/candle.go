package domain

import "time"

// Candle represents one OHLC bar for a single interval.
type Candle struct {
	OpenTime time.Time // bar open, UTC
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// Interval identifies a candle interval supported by the price source.
type Interval string

// Supported candle intervals. Values match exchange kline interval codes.
const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the wall-clock length of one candle at this interval.
// Returns 0 for unknown intervals.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// IsValid checks if the interval is a supported value.
func (i Interval) IsValid() bool {
	return i.Duration() > 0
}

// String returns the exchange interval code.
func (i Interval) String() string {
	return string(i)
}
