package portfolio

// Sizer computes the capital put at risk for the next trade.
type Sizer interface {
	// RiskAmount returns the risk for a new position given the account's
	// initial and currently available capital.
	RiskAmount(initial, available float64) float64
}

// CompoundingSizer risks a percentage of the capital still available,
// so position risk shrinks while capital is locked up and grows with
// realized profits.
type CompoundingSizer struct {
	RiskPct float64
}

// RiskAmount implements Sizer.
func (s CompoundingSizer) RiskAmount(_, available float64) float64 {
	return available * s.RiskPct / 100
}

// FixedSizer risks a constant percentage of the initial capital on
// every trade regardless of performance.
type FixedSizer struct {
	RiskPct float64
}

// RiskAmount implements Sizer.
func (s FixedSizer) RiskAmount(initial, _ float64) float64 {
	return initial * s.RiskPct / 100
}

var (
	_ Sizer = CompoundingSizer{}
	_ Sizer = FixedSizer{}
)
