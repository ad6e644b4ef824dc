// Package reflection builds the periodic self-critique prompt over recent
// ledger history and persists the model's responses, append-only, one
// JSONL file per asset.
package reflection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai-trading-agent/internal/symbols"
	"ai-trading-agent/internal/types"
)

// BuildPrompt combines the outcomes of the given records, the aggregate
// stats, and the model's own past reasonings into one self-critique
// request. Pure; the caller supplies the bounded record window.
func BuildPrompt(asset string, recs []types.TradeRecord, stats types.PerformanceStats) string {
	if len(recs) == 0 {
		return "No trades yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d trades summary for %s:\n", len(recs), asset)
	fmt.Fprintf(&b, "Net P&L: %.2f\n", stats.NetPnL)
	fmt.Fprintf(&b, "Average Win: %.2f\n", stats.AverageWin)
	fmt.Fprintf(&b, "Average Loss: %.2f\n", stats.AverageLoss)
	fmt.Fprintf(&b, "Win Rate: %.1f%%\n", stats.WinRate*100)
	fmt.Fprintf(&b, "Best trade: %s\n", describeTrade(stats.BestTrade))
	fmt.Fprintf(&b, "Worst trade: %s\n", describeTrade(stats.WorstTrade))

	reasonings := make([]string, 0, len(recs))
	for _, rec := range recs {
		if r := strings.TrimSpace(rec.Decision.Reasoning); r != "" {
			reasonings = append(reasonings, r)
		}
	}

	fmt.Fprintf(&b,
		"\nAnalyze the trading style based on the above and these AI reasonings: %s. "+
			"What works best, what doesn't, and how can this strategy be improved? "+
			"Be concise. Respond in JSON with keys: 'reflection', 'improvements', 'stat_summary'.",
		strings.Join(reasonings, "; "))
	return b.String()
}

func describeTrade(rec *types.TradeRecord) string {
	if rec == nil {
		return "none"
	}
	return fmt.Sprintf("%s %s qty=%.6f price=%.2f", rec.Outcome.Side, rec.Asset, rec.Outcome.Qty, rec.Outcome.Price)
}

// Parse coerces a raw reflection response into a ReflectionRecord. The
// model is asked for JSON but is not trusted to produce it; anything
// unparsable lands whole in the Reflection field with the raw payload
// preserved.
func Parse(asset, raw string) types.ReflectionRecord {
	rec := types.ReflectionRecord{
		Timestamp: time.Now().UTC(),
		Asset:     asset,
		Raw:       raw,
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		rec.Reflection = strings.TrimSpace(raw)
		return rec
	}

	var body struct {
		Reflection   string `json:"reflection"`
		Improvements string `json:"improvements"`
		StatSummary  string `json:"stat_summary"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &body); err != nil {
		rec.Reflection = strings.TrimSpace(raw)
		return rec
	}
	rec.Reflection = body.Reflection
	rec.Improvements = body.Improvements
	rec.StatSummary = body.StatSummary
	return rec
}

// Store is the append-only reflection log.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(asset string) string {
	return filepath.Join(s.dir, symbols.FileSafe(asset)+"_reflections.jsonl")
}

// Append persists one reflection record.
func (s *Store) Append(rec types.ReflectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(rec.Asset)
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

// Last returns the most recently appended reflection for the asset, or
// nil when none exists.
func (s *Store) Last(asset string) (*types.ReflectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(asset))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		var rec types.ReflectionRecord
		if err := json.Unmarshal([]byte(lines[i]), &rec); err != nil {
			continue
		}
		return &rec, nil
	}
	return nil, nil
}
