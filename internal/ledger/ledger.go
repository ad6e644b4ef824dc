// Package ledger is the durable, append-only record of cycle outcomes.
// One JSONL file per asset; append order is preserved and every completed
// cycle writes exactly one line.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ai-trading-agent/internal/symbols"
	"ai-trading-agent/internal/types"
)

type Ledger struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Ledger {
	return &Ledger{dir: dir}
}

func (l *Ledger) path(asset string) string {
	return filepath.Join(l.dir, symbols.FileSafe(asset)+"_trades.jsonl")
}

// Append writes one record to the asset's ledger file.
func (l *Ledger) Append(rec types.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.path(rec.Asset)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// load reads every record for the asset in append order. A missing file is
// an empty ledger, not an error. Unparsable lines are skipped so one bad
// write can never poison the whole history.
func (l *Ledger) load(asset string) ([]types.TradeRecord, error) {
	f, err := os.Open(l.path(asset))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var recs []types.TradeRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.TradeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}

// Recent returns up to n records for the asset, most-recent-last.
func (l *Ledger) Recent(asset string, n int) ([]types.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs, err := l.load(asset)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}

// Count returns the number of records for the asset.
func (l *Ledger) Count(asset string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs, err := l.load(asset)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// pnl is the signed contribution of one record: executed SELLs add
// qty*price, executed BUYs subtract it, everything else contributes zero.
func pnl(rec types.TradeRecord) float64 {
	if !rec.Outcome.Executed {
		return 0
	}
	v := rec.Outcome.Qty * rec.Outcome.Price
	if rec.Outcome.Side == types.ActionBuy {
		return -v
	}
	return v
}

// Stats aggregates the asset's ledger. An empty or missing ledger yields
// the zero stats value, never an error.
func (l *Ledger) Stats(asset string) (types.PerformanceStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs, err := l.load(asset)
	if err != nil {
		return types.PerformanceStats{}, err
	}
	if len(recs) == 0 {
		return types.PerformanceStats{}, nil
	}

	stats := types.PerformanceStats{TotalTrades: len(recs)}
	var winSum, lossSum float64
	var wins, losses int
	var best, worst types.TradeRecord
	var bestPnL, worstPnL float64

	for _, rec := range recs {
		p := pnl(rec)
		stats.NetPnL += p
		if p > 0 {
			if wins == 0 || p > bestPnL {
				best, bestPnL = rec, p
			}
			wins++
			winSum += p
		} else if p < 0 {
			if losses == 0 || p < worstPnL {
				worst, worstPnL = rec, p
			}
			losses++
			lossSum += p
		}
	}

	stats.WinRate = float64(wins) / float64(len(recs))
	if wins > 0 {
		stats.AverageWin = winSum / float64(wins)
		b := best
		stats.BestTrade = &b
	}
	if losses > 0 {
		stats.AverageLoss = lossSum / float64(losses)
		w := worst
		stats.WorstTrade = &w
	}
	return stats, nil
}
