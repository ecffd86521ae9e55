package paper

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

// All ledger tests run in memory-only mode (nil Redis client).
func memoryLedger(balance float64) *Ledger {
	return NewLedger(nil, balance, zerolog.Nop())
}

func TestLedger_DefaultBalance(t *testing.T) {
	l := memoryLedger(0)
	if got := l.GetAccount().Balance; got != 50000 {
		t.Errorf("Expected default balance 50000, got %v", got)
	}
}

func TestLedger_OpenClosePositionLong(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	pos, err := l.OpenPosition(ctx, "BTCUSDT", SideLong, 100, 95, 110, 2)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}
	if pos.ID == "" {
		t.Error("Position must get an id")
	}
	if got := l.OpenPositions(); len(got) != 1 {
		t.Fatalf("Expected 1 open position, got %d", len(got))
	}

	trade, err := l.ClosePosition(ctx, pos.ID, 110)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if math.Abs(trade.PnL-20) > 1e-9 {
		t.Errorf("Expected PnL +20 for long 2 @ 100 -> 110, got %v", trade.PnL)
	}
	if got := l.GetAccount().Balance; math.Abs(got-50020) > 1e-9 {
		t.Errorf("Expected balance 50020 after close, got %v", got)
	}
	if got := l.OpenPositions(); len(got) != 0 {
		t.Errorf("Closed position must leave the open set, got %d", len(got))
	}
	if got := l.History(0); len(got) != 1 || got[0].ID != pos.ID {
		t.Errorf("Closed trade must appear in history, got %+v", got)
	}
}

func TestLedger_OpenClosePositionShort(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	pos, err := l.OpenPosition(ctx, "ETHUSDT", SideShort, 100, 105, 90, 1)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	trade, err := l.ClosePosition(ctx, pos.ID, 90)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if math.Abs(trade.PnL-10) > 1e-9 {
		t.Errorf("Expected PnL +10 for short 1 @ 100 -> 90, got %v", trade.PnL)
	}
}

func TestLedger_OpenPositionValidation(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	tests := []struct {
		name   string
		symbol string
		side   Side
		entry  float64
		size   float64
	}{
		{"missing symbol", "", SideLong, 100, 1},
		{"invalid side", "BTCUSDT", Side("sideways"), 100, 1},
		{"zero entry", "BTCUSDT", SideLong, 0, 1},
		{"zero size", "BTCUSDT", SideLong, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.OpenPosition(ctx, tt.symbol, tt.side, tt.entry, 0, 0, tt.size); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLedger_CloseErrors(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	if _, err := l.ClosePosition(ctx, "no-such-id", 100); err == nil {
		t.Error("Closing an unknown position must fail")
	}

	pos, _ := l.OpenPosition(ctx, "BTCUSDT", SideLong, 100, 0, 0, 1)
	if _, err := l.ClosePosition(ctx, pos.ID, 0); err == nil {
		t.Error("Non-positive exit price must fail")
	}
	if got := l.OpenPositions(); len(got) != 1 {
		t.Errorf("Failed close must not consume the position, got %d open", len(got))
	}
}

func TestLedger_SetBalance(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	if err := l.SetBalance(ctx, 75000); err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}
	if got := l.GetAccount().Balance; got != 75000 {
		t.Errorf("Expected balance 75000, got %v", got)
	}
	if err := l.SetBalance(ctx, -1); err == nil {
		t.Error("Negative balance must be rejected")
	}
}

func TestLedger_Reset(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	pos, _ := l.OpenPosition(ctx, "BTCUSDT", SideLong, 100, 0, 0, 1)
	l.ClosePosition(ctx, pos.ID, 120)
	l.OpenPosition(ctx, "BTCUSDT", SideLong, 100, 0, 0, 1)

	l.Reset(ctx)
	if got := l.GetAccount().Balance; got != 50000 {
		t.Errorf("Reset must restore the initial balance, got %v", got)
	}
	if len(l.OpenPositions()) != 0 || len(l.History(0)) != 0 {
		t.Error("Reset must clear positions and history")
	}
}

func TestLedger_HistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := memoryLedger(50000)

	exits := []float64{101, 102, 103}
	for _, exit := range exits {
		pos, _ := l.OpenPosition(ctx, "BTCUSDT", SideLong, 100, 0, 0, 1)
		if _, err := l.ClosePosition(ctx, pos.ID, exit); err != nil {
			t.Fatalf("ClosePosition failed: %v", err)
		}
	}

	got := l.History(2)
	if len(got) != 2 {
		t.Fatalf("Expected history limited to 2 entries, got %d", len(got))
	}
	if got[0].ExitPrice != 103 || got[1].ExitPrice != 102 {
		t.Errorf("History must be newest first, got exits %v, %v", got[0].ExitPrice, got[1].ExitPrice)
	}
}
