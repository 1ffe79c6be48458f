package domain

// TimeframeStep configures one step of the progressive timeframe scan:
// how many candles of a given interval to inspect before moving to the
// next, coarser step.
type TimeframeStep struct {
	Interval   Interval
	MaxCandles int
}

// DefaultTimeframeSteps is the standard scanning policy, finest interval
// first. The step sizes bound the number of data points fetched over long
// lookahead windows.
var DefaultTimeframeSteps = []TimeframeStep{
	{Interval: Interval1m, MaxCandles: 5},
	{Interval: Interval5m, MaxCandles: 3},
	{Interval: Interval15m, MaxCandles: 4},
	{Interval: Interval1h, MaxCandles: 24},
	{Interval: Interval4h, MaxCandles: 18},
	{Interval: Interval1d, MaxCandles: 30},
}
