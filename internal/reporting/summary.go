package reporting

import (
	"fmt"
	"strings"
	"time"

	"signal-backtest-lab/internal/portfolio"
)

// RenderSummary renders a simulation summary as human-readable text.
func RenderSummary(s portfolio.Summary) string {
	var sb strings.Builder

	sb.WriteString("=== Portfolio Simulation ===\n")
	sb.WriteString(fmt.Sprintf("period:           %s .. %s\n",
		formatTime(s.SimulationStart), formatTime(s.SimulationEnd)))
	sb.WriteString(fmt.Sprintf("settings:         risk %.2f%%, stop %.2f%%, reward %.1fR, trail %.2f%%\n",
		s.Settings.RiskPct, s.Settings.StopLossPct, s.Settings.RiskReward, s.Settings.TrailMovePct))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("signals:          %d total, %d traded\n", s.TotalSignals, s.TradesTaken()))
	sb.WriteString(fmt.Sprintf("outcomes:         %d wins, %d losses, %d breakeven, %d unresolved\n",
		s.Wins, s.Losses, s.Breakevens, s.Neithers))
	sb.WriteString(fmt.Sprintf("not traded:       %d no fill, %d skipped, %d errors, %d out of capital\n",
		s.NoFills, s.Skips, s.Errors, s.CapitalSkips))
	if s.TradesTaken() > 0 {
		sb.WriteString(fmt.Sprintf("win rate:         %.1f%%\n", s.WinRatePct))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("initial capital:  %.2f\n", s.InitialCapital))
	sb.WriteString(fmt.Sprintf("final capital:    %.2f\n", s.FinalCapital))
	sb.WriteString(fmt.Sprintf("total pnl:        %+.2f (%.2f%%)\n", s.TotalPnL, s.TotalReturnPct))

	return sb.String()
}

// RenderCalcReport renders the sequential capital projection as text.
func RenderCalcReport(r portfolio.CalcReport, skippedSymbols []string) string {
	var sb strings.Builder

	sb.WriteString("=== Capital Projection ===\n")
	sb.WriteString(fmt.Sprintf("outcomes:         %d wins, %d losses, %d unresolved\n",
		r.Wins, r.Losses, r.Neithers))
	sb.WriteString(fmt.Sprintf("not traded:       %d no fill, %d invalid symbols, %d errors\n",
		r.NoFills, r.InvalidSymbols, r.Errors))
	sb.WriteString(fmt.Sprintf("avg win:          %.2f\n", r.AvgWin))
	sb.WriteString(fmt.Sprintf("avg loss:         %.2f\n", r.AvgLoss))
	sb.WriteString(fmt.Sprintf("profit factor:    %.2f\n", r.ProfitFactor))
	sb.WriteString(fmt.Sprintf("initial capital:  %.2f\n", r.InitialCapital))
	sb.WriteString(fmt.Sprintf("final capital:    %.2f\n", r.FinalCapital))
	sb.WriteString(fmt.Sprintf("total pnl:        %+.2f\n", r.TotalPnL))

	if len(skippedSymbols) > 0 {
		sb.WriteString(fmt.Sprintf("skipped symbols:  %s\n", strings.Join(skippedSymbols, ", ")))
	}

	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}
