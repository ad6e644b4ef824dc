package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-trading-agent/internal/types"
)

func record(id, asset, side string, qty, price float64, executed bool) types.TradeRecord {
	return types.TradeRecord{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Asset:     asset,
		Decision:  types.Recommendation{Action: side, PositionSizing: 10},
		Outcome: types.ExecutionOutcome{
			Executed: executed,
			Side:     side,
			Qty:      qty,
			Price:    price,
		},
	}
}

func TestAppendAndCount(t *testing.T) {
	led := New(t.TempDir())

	for i := 0; i < 3; i++ {
		if err := led.Append(record("r", "BTC/USD", types.ActionHold, 0, 0, false)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	n, err := led.Count("BTC/USD")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 records, got %d", n)
	}
}

func TestCountMissingFile(t *testing.T) {
	led := New(t.TempDir())
	n, err := led.Count("ETH/USD")
	if err != nil {
		t.Fatalf("Expected no error for missing ledger, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 records, got %d", n)
	}
}

func TestRecentOrder(t *testing.T) {
	led := New(t.TempDir())
	led.Append(record("a", "BTC/USD", types.ActionBuy, 1, 100, true))
	led.Append(record("b", "BTC/USD", types.ActionSell, 1, 110, true))
	led.Append(record("c", "BTC/USD", types.ActionHold, 0, 0, false))

	recs, err := led.Recent("BTC/USD", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "b" || recs[1].ID != "c" {
		t.Errorf("Expected most-recent-last order b,c, got %s,%s", recs[0].ID, recs[1].ID)
	}
}

func TestCanonicalFileName(t *testing.T) {
	dir := t.TempDir()
	led := New(dir)

	if err := led.Append(record("a", "btc_usd", types.ActionHold, 0, 0, false)); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "BTC-USD_trades.jsonl")); err != nil {
		t.Errorf("Expected canonical file name: %v", err)
	}

	// The same asset spelled differently reads the same file.
	n, err := led.Count("BTC/USD")
	if err != nil || n != 1 {
		t.Errorf("Expected 1 record via canonical lookup, got %d (%v)", n, err)
	}
}

func TestSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	led := New(dir)
	led.Append(record("a", "BTC/USD", types.ActionBuy, 1, 100, true))

	f, err := os.OpenFile(filepath.Join(dir, "BTC-USD_trades.jsonl"), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n")
	f.Close()

	led.Append(record("b", "BTC/USD", types.ActionSell, 1, 110, true))

	n, err := led.Count("BTC/USD")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Expected corrupt line to be skipped, got %d records", n)
	}
}

func TestStats(t *testing.T) {
	led := New(t.TempDir())
	led.Append(record("buy", "BTC/USD", types.ActionBuy, 1, 100, true))   // -100
	led.Append(record("sell", "BTC/USD", types.ActionSell, 1, 150, true)) // +150
	led.Append(record("hold", "BTC/USD", types.ActionHold, 0, 0, false))  // 0

	stats, err := led.Stats("BTC/USD")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalTrades != 3 {
		t.Errorf("Expected 3 total trades, got %d", stats.TotalTrades)
	}
	if stats.NetPnL != 50 {
		t.Errorf("Expected net P&L 50, got %f", stats.NetPnL)
	}
	if stats.WinRate != 1.0/3.0 {
		t.Errorf("Expected win rate 1/3, got %f", stats.WinRate)
	}
	if stats.AverageWin != 150 {
		t.Errorf("Expected average win 150, got %f", stats.AverageWin)
	}
	if stats.AverageLoss != -100 {
		t.Errorf("Expected average loss -100, got %f", stats.AverageLoss)
	}
	if stats.BestTrade == nil || stats.BestTrade.ID != "sell" {
		t.Error("Expected best trade to be the sell")
	}
	if stats.WorstTrade == nil || stats.WorstTrade.ID != "buy" {
		t.Error("Expected worst trade to be the buy")
	}
}

func TestStatsEmpty(t *testing.T) {
	led := New(t.TempDir())
	stats, err := led.Stats("BTC/USD")
	if err != nil {
		t.Fatalf("Expected no error for empty ledger, got %v", err)
	}
	if stats.TotalTrades != 0 || stats.BestTrade != nil || stats.WorstTrade != nil {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}
