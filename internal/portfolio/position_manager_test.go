package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"signal-backtest-lab/internal/domain"
)

var testSettings = Settings{
	InitialCapital: 1000,
	RiskPct:        2,
	StopLossPct:    5,
	RiskReward:     2,
	TrailMovePct:   3,
}

var fillTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) *PositionManager {
	t.Helper()
	m, err := NewPositionManager(testSettings, nil)
	if err != nil {
		t.Fatalf("NewPositionManager() error = %v", err)
	}
	return m
}

func mgrSignal() domain.Signal {
	return domain.Signal{
		Timestamp:  fillTime.Add(-time.Hour),
		Coin:       "BTC",
		EntryPrice: 100,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero capital", func(s *Settings) { s.InitialCapital = 0 }},
		{"zero risk pct", func(s *Settings) { s.RiskPct = 0 }},
		{"risk pct above 100", func(s *Settings) { s.RiskPct = 101 }},
		{"zero stop loss", func(s *Settings) { s.StopLossPct = 0 }},
		{"zero risk reward", func(s *Settings) { s.RiskReward = 0 }},
		{"negative trail move", func(s *Settings) { s.TrailMovePct = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testSettings
			tc.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	if err := testSettings.Validate(); err != nil {
		t.Errorf("Validate() on good settings = %v", err)
	}
}

func TestOpenSizesPositionFromRisk(t *testing.T) {
	m := newTestManager(t)

	pos, err := m.Open(mgrSignal(), fillTime, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// 2% of 1000 available = 20 at risk; 5% stop on a 100 fill is a
	// distance of 5, so 4 units lose exactly 20 at the stop.
	if !approxEqual(pos.RiskAmount, 20) {
		t.Errorf("RiskAmount = %v, want 20", pos.RiskAmount)
	}
	if !approxEqual(pos.PositionSize, 4) {
		t.Errorf("PositionSize = %v, want 4", pos.PositionSize)
	}
	if !approxEqual(pos.StopLossPrice, 95) {
		t.Errorf("StopLossPrice = %v, want 95", pos.StopLossPrice)
	}
	if !approxEqual(pos.TakeProfitPrice, 110) {
		t.Errorf("TakeProfitPrice = %v, want 110", pos.TakeProfitPrice)
	}

	if !approxEqual(m.AvailableCapital(), 980) {
		t.Errorf("AvailableCapital = %v, want 980", m.AvailableCapital())
	}
	if !approxEqual(m.AllocatedCapital(), 20) {
		t.Errorf("AllocatedCapital = %v, want 20", m.AllocatedCapital())
	}
	if !approxEqual(m.CurrentCapital(), 1000) {
		t.Errorf("CurrentCapital = %v, want 1000 while open", m.CurrentCapital())
	}
	if m.OpenCount() != 1 {
		t.Errorf("OpenCount = %d, want 1", m.OpenCount())
	}
}

func TestCloseProfitReturnsRiskTimesReward(t *testing.T) {
	m := newTestManager(t)
	pos, err := m.Open(mgrSignal(), fillTime, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	closed, err := m.Close(pos, fillTime.Add(90*time.Minute), domain.CloseReasonProfit)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Risk of 20 with a 2R target returns 20*3 to available and adds
	// 20*2 to current capital.
	if !approxEqual(closed.PnL, 40) {
		t.Errorf("PnL = %v, want 40", closed.PnL)
	}
	if !approxEqual(m.CurrentCapital(), 1040) {
		t.Errorf("CurrentCapital = %v, want 1040", m.CurrentCapital())
	}
	if !approxEqual(m.AvailableCapital(), 1040) {
		t.Errorf("AvailableCapital = %v, want 1040", m.AvailableCapital())
	}
	if !approxEqual(m.AllocatedCapital(), 0) {
		t.Errorf("AllocatedCapital = %v, want 0", m.AllocatedCapital())
	}
	if closed.HoursHeld != 1.5 {
		t.Errorf("HoursHeld = %v, want 1.5", closed.HoursHeld)
	}
}

func TestCloseLossForfeitsRisk(t *testing.T) {
	m := newTestManager(t)
	pos, err := m.Open(mgrSignal(), fillTime, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	closed, err := m.Close(pos, fillTime.Add(time.Hour), domain.CloseReasonLoss)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !approxEqual(closed.PnL, -20) {
		t.Errorf("PnL = %v, want -20", closed.PnL)
	}
	if !approxEqual(m.CurrentCapital(), 980) {
		t.Errorf("CurrentCapital = %v, want 980", m.CurrentCapital())
	}
	if !approxEqual(m.AvailableCapital(), 980) {
		t.Errorf("AvailableCapital = %v, want 980", m.AvailableCapital())
	}
}

func TestTrailedStopClosesBreakeven(t *testing.T) {
	m := newTestManager(t)
	pos, err := m.Open(mgrSignal(), fillTime, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if moved := m.MaybeTrailStop(pos, 103); !moved {
		t.Fatal("MaybeTrailStop(103) = false, want true at 3% gain")
	}
	if !approxEqual(pos.StopLossPrice, 100) {
		t.Errorf("StopLossPrice after trail = %v, want entry 100", pos.StopLossPrice)
	}

	closed, err := m.Close(pos, fillTime.Add(time.Hour), domain.CloseReasonLoss)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if closed.CloseReason != domain.CloseReasonBreakeven {
		t.Errorf("CloseReason = %s, want %s", closed.CloseReason, domain.CloseReasonBreakeven)
	}
	if !approxEqual(closed.PnL, 0) {
		t.Errorf("PnL = %v, want 0", closed.PnL)
	}
	if !approxEqual(m.CurrentCapital(), 1000) {
		t.Errorf("CurrentCapital = %v, want 1000", m.CurrentCapital())
	}
}

func TestTrailStopIsOneWay(t *testing.T) {
	m := newTestManager(t)
	pos, err := m.Open(mgrSignal(), fillTime, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if m.MaybeTrailStop(pos, 101) {
		t.Error("MaybeTrailStop(101) = true, want false below threshold")
	}
	if !m.MaybeTrailStop(pos, 105) {
		t.Fatal("MaybeTrailStop(105) = false, want true")
	}
	// A retrace never moves the stop back down.
	if m.MaybeTrailStop(pos, 90) {
		t.Error("MaybeTrailStop after move = true, want false")
	}
	if !approxEqual(pos.StopLossPrice, 100) {
		t.Errorf("StopLossPrice = %v, want to stay at 100", pos.StopLossPrice)
	}
}

func TestOpenFailsWithoutCapital(t *testing.T) {
	settings := testSettings
	settings.RiskPct = 100
	m, err := NewPositionManager(settings, FixedSizer{RiskPct: 100})
	if err != nil {
		t.Fatalf("NewPositionManager() error = %v", err)
	}

	if _, err := m.Open(mgrSignal(), fillTime, 100); err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	_, err = m.Open(mgrSignal(), fillTime.Add(time.Minute), 100)
	if !errors.Is(err, ErrInsufficientCapital) {
		t.Fatalf("second Open() error = %v, want ErrInsufficientCapital", err)
	}
}

func TestCapitalConservedAcrossMixedCloses(t *testing.T) {
	m := newTestManager(t)

	reasons := []string{
		domain.CloseReasonProfit,
		domain.CloseReasonLoss,
		domain.CloseReasonNeither,
		domain.CloseReasonProfit,
	}
	for i, reason := range reasons {
		pos, err := m.Open(mgrSignal(), fillTime.Add(time.Duration(i)*time.Minute), 100)
		if err != nil {
			t.Fatalf("Open() %d error = %v", i, err)
		}
		if _, err := m.Close(pos, fillTime.Add(time.Hour), reason); err != nil {
			t.Fatalf("Close() %d error = %v", i, err)
		}

		if !approxEqual(m.AvailableCapital()+m.AllocatedCapital(), m.CurrentCapital()) {
			t.Fatalf("available+allocated = %v, current = %v after close %d",
				m.AvailableCapital()+m.AllocatedCapital(), m.CurrentCapital(), i)
		}
	}
	if m.OpenCount() != 0 {
		t.Errorf("OpenCount = %d, want 0", m.OpenCount())
	}
}

func TestCloseUnknownPosition(t *testing.T) {
	m := newTestManager(t)
	pos := &domain.OpenPosition{PositionID: "GHOST_1_2", RiskAmount: 10}
	if _, err := m.Close(pos, fillTime, domain.CloseReasonLoss); err == nil {
		t.Fatal("Close() on unknown position = nil, want error")
	}
}
