package paper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTryEnterPositionLimits(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxOpenPositions; i++ {
		marketID := "market-" + string(rune('A'+i))
		pos := e.TryEnter(marketID, "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 85, "whale trade", nil, now)
		if pos == nil {
			t.Fatalf("expected position %d to open, got nil", i)
		}
	}

	if pos := e.TryEnter("market-overflow", "Will Y happen?", DirectionYes, decimal.NewFromFloat(0.40), 85, "whale trade", nil, now); pos != nil {
		t.Fatalf("expected 4th position to be rejected at MaxOpenPositions, got %+v", pos)
	}
}

func TestTryEnterNoReentry(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	pos := e.TryEnter("market-A", "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 85, "whale trade", nil, now)
	if pos == nil {
		t.Fatal("expected initial entry to succeed")
	}

	trade := e.CheckAndClose("market-A", decimal.NewFromFloat(0.60), nil, now.Add(time.Hour))
	if trade == nil {
		t.Fatal("expected take-profit close")
	}
	if trade.Reason != ReasonTakeProfit {
		t.Fatalf("expected take-profit reason, got %s", trade.Reason)
	}

	if pos := e.TryEnter("market-A", "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 85, "whale trade", nil, now.Add(2*time.Hour)); pos != nil {
		t.Fatalf("expected re-entry on a traded marketId to be rejected, got %+v", pos)
	}
}

func TestCheckAndCloseStopLoss(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e.TryEnter("market-A", "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 60, "catalyst", nil, now)

	trade := e.CheckAndClose("market-A", decimal.NewFromFloat(0.20), nil, now.Add(time.Hour))
	if trade == nil {
		t.Fatal("expected stop-loss close")
	}
	if trade.Reason != ReasonStopLoss {
		t.Fatalf("expected stop-loss reason, got %s", trade.Reason)
	}
	if trade.PnLPercent > stopLossPercent {
		t.Fatalf("expected pnl percent <= %.2f, got %.4f", stopLossPercent, trade.PnLPercent)
	}
}

func TestCheckAndCloseNoTrigger(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e.TryEnter("market-A", "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 60, "catalyst", nil, now)

	if trade := e.CheckAndClose("market-A", decimal.NewFromFloat(0.42), nil, now.Add(time.Hour)); trade != nil {
		t.Fatalf("expected no close within stop-loss/take-profit band, got %+v", trade)
	}
}

func TestCloseAtResolution(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e.TryEnter("market-A", "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 60, "catalyst", nil, now)

	trade := e.CloseAtResolution("market-A", true, now.Add(time.Hour))
	if trade == nil {
		t.Fatal("expected resolution close")
	}
	if trade.Reason != ReasonResolution {
		t.Fatalf("expected resolution reason, got %s", trade.Reason)
	}
	if !trade.ExitPrice.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected exit price 1.0 on a win, got %s", trade.ExitPrice)
	}
}

func TestLossStreakTriggersPause(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxLossStreak; i++ {
		marketID := "market-" + string(rune('A'+i))
		e.TryEnter(marketID, "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 60, "catalyst", nil, now)
		e.CheckAndClose(marketID, decimal.NewFromFloat(0.20), nil, now.Add(time.Hour))
		now = now.Add(2 * time.Hour)
	}

	if pos := e.TryEnter("market-final", "Will Z happen?", DirectionYes, decimal.NewFromFloat(0.40), 60, "catalyst", nil, now); pos != nil {
		t.Fatalf("expected entry to be rejected after %d-loss streak, got %+v", MaxLossStreak, pos)
	}
	if !e.state.Paused {
		t.Fatal("expected engine to be paused after hitting max loss streak")
	}
}

func TestDailyReportAggregation(t *testing.T) {
	e := NewEngine("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e.TryEnter("market-A", "Will X happen?", DirectionYes, decimal.NewFromFloat(0.40), 85, "catalyst", nil, now)
	e.CheckAndClose("market-A", decimal.NewFromFloat(0.60), nil, now.Add(time.Hour))

	report := e.GetDailyReport(now.Add(2 * time.Hour))
	if len(report.TodayTrades) != 1 {
		t.Fatalf("expected 1 trade in today's report, got %d", len(report.TodayTrades))
	}
	if report.TodayWinCount != 1 {
		t.Fatalf("expected 1 win, got %d", report.TodayWinCount)
	}
	if report.TodayWinRate != 1.0 {
		t.Fatalf("expected win rate 1.0, got %.2f", report.TodayWinRate)
	}
}
