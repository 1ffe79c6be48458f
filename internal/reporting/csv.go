// Package reporting renders simulation results as CSV and text.
package reporting

import (
	"fmt"
	"strings"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/portfolio"
)

const timeLayout = "2006-01-02 15:04:05"

// RenderLedgerCSV renders the closed-trade ledger as CSV string.
func RenderLedgerCSV(trades []*domain.ClosedPosition) string {
	var sb strings.Builder

	// Header
	sb.WriteString("position_id,coin,signal_time,signal_price,fill_time,fill_price,")
	sb.WriteString("position_size,risk_amount,stop_loss_price,take_profit_price,")
	sb.WriteString("close_time,close_reason,pnl,hours_held\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.8f,%s,%.8f,%.8f,%.2f,%.8f,%.8f,%s,%s,%.2f,%.2f\n",
			t.Position.PositionID,
			t.Position.Signal.Coin,
			t.Position.Signal.Timestamp.UTC().Format(timeLayout),
			t.Position.Signal.EntryPrice,
			t.Position.EntryFillTime.UTC().Format(timeLayout),
			t.Position.EntryFillPrice,
			t.Position.PositionSize,
			t.Position.RiskAmount,
			t.Position.StopLossPrice,
			t.Position.TakeProfitPrice,
			t.CloseTime.UTC().Format(timeLayout),
			t.CloseReason,
			t.PnL,
			t.HoursHeld,
		))
	}

	return sb.String()
}

// AnalysisRow pairs a signal with its resolved outcome for export.
type AnalysisRow struct {
	Signal  domain.Signal
	Outcome domain.TargetOutcome
}

// RenderAnalysisCSV renders per-signal resolution results as CSV string.
// Unfilled and skipped signals keep their row with the fill columns
// empty.
func RenderAnalysisCSV(rows []AnalysisRow) string {
	var sb strings.Builder

	sb.WriteString("date,time,coin,entry_price,entry_fill_time,entry_fill_price,hit_time,hours_to_hit,result\n")

	for _, r := range rows {
		ts := r.Signal.Timestamp.UTC()

		fillTime, fillPrice := "", ""
		if r.Outcome.Filled() {
			fillTime = r.Outcome.FillTime.UTC().Format(timeLayout)
			fillPrice = fmt.Sprintf("%.8f", r.Outcome.FillPrice)
		}
		hitTime := ""
		if !r.Outcome.HitTime.IsZero() {
			hitTime = r.Outcome.HitTime.UTC().Format(timeLayout)
		}

		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.8f,%s,%s,%s,%.2f,%s\n",
			ts.Format("2006-01-02"),
			ts.Format("15:04:05"),
			r.Signal.Coin,
			r.Signal.EntryPrice,
			fillTime,
			fillPrice,
			hitTime,
			r.Outcome.ElapsedHours,
			r.Outcome.Result,
		))
	}

	return sb.String()
}

// RenderEventsCSV renders the simulation event stream as CSV string.
func RenderEventsCSV(events []portfolio.Event) string {
	var sb strings.Builder

	sb.WriteString("type,time,position_id,coin,price,pnl\n")

	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.8f,%.2f\n",
			e.Type,
			e.Time.UTC().Format(timeLayout),
			e.PositionID,
			e.Coin,
			e.Price,
			e.PnL,
		))
	}

	return sb.String()
}
