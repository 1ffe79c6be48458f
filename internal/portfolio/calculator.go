package portfolio

import (
	"signal-backtest-lab/internal/domain"
)

// CalcReport summarizes a sequential capital projection over resolved
// outcomes.
type CalcReport struct {
	InitialCapital float64
	FinalCapital   float64
	TotalPnL       float64

	Wins           int
	Losses         int
	Neithers       int
	NoFills        int
	InvalidSymbols int
	Errors         int

	AvgWin       float64
	AvgLoss      float64
	ProfitFactor float64 // gross profit over gross loss; 0 when no losses
}

// Calculator projects capital over a sequence of resolved outcomes
// without position bookkeeping. Each trade risks a percentage of the
// running capital, so results compound in resolution order. It is the
// quick sanity check next to the full simulator.
type Calculator struct {
	settings Settings
}

// NewCalculator creates a Calculator.
func NewCalculator(settings Settings) (*Calculator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{settings: settings}, nil
}

// Project runs the capital projection over outcomes in their given order.
func (c *Calculator) Project(outcomes []domain.TargetOutcome) CalcReport {
	report := CalcReport{
		InitialCapital: c.settings.InitialCapital,
	}

	capital := c.settings.InitialCapital
	var grossProfit, grossLoss float64

	for _, out := range outcomes {
		switch out.Result {
		case domain.OutcomeSkip:
			report.InvalidSymbols++
			continue
		case domain.OutcomeError:
			report.Errors++
			continue
		case domain.OutcomeNoFill:
			report.NoFills++
			continue
		case domain.OutcomeNeither:
			report.Neithers++
			continue
		}

		risk := capital * c.settings.RiskPct / 100
		switch out.Result {
		case domain.OutcomeProfit:
			win := risk * c.settings.RiskReward
			capital += win
			grossProfit += win
			report.Wins++
		case domain.OutcomeLoss:
			capital -= risk
			grossLoss += risk
			report.Losses++
		}
	}

	report.FinalCapital = capital
	report.TotalPnL = capital - c.settings.InitialCapital
	if report.Wins > 0 {
		report.AvgWin = grossProfit / float64(report.Wins)
	}
	if report.Losses > 0 {
		report.AvgLoss = grossLoss / float64(report.Losses)
	}
	if grossLoss > 0 {
		report.ProfitFactor = grossProfit / grossLoss
	}
	return report
}
