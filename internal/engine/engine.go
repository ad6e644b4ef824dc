package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/ledger"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/marketdata"
	"ai-trading-agent/internal/reflection"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/symbols"
	"ai-trading-agent/internal/ta"
	"ai-trading-agent/internal/types"
)

// Engine drives one trading cycle per Step call: fetch position and bars,
// compute indicators, ask the decider, reconcile against the open
// position, execute, log exactly one TradeRecord, and trigger reflection
// on schedule. It keeps no market state between cycles; positions are
// always re-fetched because they can change out-of-band.
type Engine struct {
	cfg    *store.Config
	md     interfaces.MarketData
	brk    interfaces.Broker
	llm    interfaces.Decider
	ledger *ledger.Ledger
	refl   *reflection.Store
	taCfg  ta.Config
}

var _ interfaces.Engine = (*Engine)(nil)

func New(cfg *store.Config, md interfaces.MarketData, brk interfaces.Broker, llm interfaces.Decider, led *ledger.Ledger, refl *reflection.Store) *Engine {
	taCfg := ta.Config{
		ShortWindow:  cfg.Indicators.ShortWindow,
		LongWindow:   cfg.Indicators.LongWindow,
		RSIPeriod:    cfg.Indicators.RSIPeriod,
		MACDFast:     cfg.Indicators.MACDFast,
		MACDSlow:     cfg.Indicators.MACDSlow,
		MACDSignal:   cfg.Indicators.MACDSignal,
		BBWindow:     cfg.Indicators.BBWindow,
		BBStdDev:     cfg.Indicators.BBStdDev,
		VolumeWindow: cfg.Indicators.VolumeWindow,
	}
	return &Engine{cfg: cfg, md: md, brk: brk, llm: llm, ledger: led, refl: refl, taCfg: taCfg}
}

// Step runs one full cycle for the asset. A nil error means a TradeRecord
// was appended; an error means the cycle aborted before any record was
// written (no data, not enough history). Decision and execution failures
// never abort the cycle: they complete it with the error on the record.
func (e *Engine) Step(ctx context.Context, asset string) (*types.TradeRecord, error) {
	pos := e.openPosition(ctx, asset)

	bars, err := e.md.Bars(ctx, asset, e.cfg.LookbackDays, e.cfg.BarSize)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", asset, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty series for %s", marketdata.ErrDataUnavailable, asset)
	}
	logger.Debug(ctx, "Bars fetched", "asset", asset, "count", len(bars))

	points, err := ta.Compute(bars, e.taCfg)
	if err != nil {
		return nil, fmt.Errorf("compute indicators for %s: %w", asset, err)
	}
	summary, err := ta.Summarize(points, e.cfg.SummaryBars)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", asset, err)
	}
	lastClose := points[len(points)-1].Bar.Close
	logger.Debug(ctx, "Market state ready", "asset", asset, "aligned_bars", len(points), "last_close", lastClose)

	rec, err := e.llm.Recommend(ctx, asset, summary, pos)
	if err != nil {
		logger.ErrorWithErr(ctx, "Decision request failed - holding", err, "asset", asset)
		rec = types.Hold(err.Error())
	}
	rec = e.clampSizing(ctx, asset, rec)
	logger.Info(ctx, "Trading decision", "asset", asset, "action", rec.Action, "sizing_pct", rec.PositionSizing, "reason", rec.Reasoning)

	outcome := e.reconcile(ctx, asset, pos, rec, lastClose)

	record := types.TradeRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Asset:     symbols.Canonical(asset),
		Decision:  rec,
		Outcome:   outcome,
	}
	if err := e.ledger.Append(record); err != nil {
		// The trade (if any) already happened; surface the gap loudly but
		// return the record so the scheduler keeps its picture.
		logger.ErrorWithErr(ctx, "Ledger append failed", err, "asset", asset, "record_id", record.ID)
	}

	e.maybeReflect(ctx, asset)

	return &record, nil
}

// openPosition fetches positions fresh and picks the one matching the
// asset after canonicalization. Lookup failure is treated as flat: the
// cycle proceeds and can only end up more conservative.
func (e *Engine) openPosition(ctx context.Context, asset string) *types.Position {
	positions, err := e.brk.Positions(ctx)
	if err != nil {
		logger.Warn(ctx, "Position lookup failed - treating as flat", "asset", asset, "error", err)
		return nil
	}

	var match *types.Position
	matches := 0
	for i := range positions {
		if symbols.Equal(positions[i].Symbol, asset) {
			matches++
			if match == nil {
				match = &positions[i]
			}
		}
	}
	if matches > 1 {
		// Which entry should win is genuinely ambiguous; first in venue
		// order is used, but the duplication is worth an operator's eyes.
		logger.Warn(ctx, "Multiple positions match asset after normalization - using first",
			"asset", asset, "matches", matches)
	}
	if match != nil {
		logger.Debug(ctx, "Open position found", "asset", asset, "side", match.Side, "qty", match.Qty, "avg_entry", match.AvgEntryPrice)
	}
	return match
}

// clampSizing bounds the sizing percentage to [0,100]. The decision port
// already normalizes payloads, but the core does not trust the bound.
func (e *Engine) clampSizing(ctx context.Context, asset string, rec types.Recommendation) types.Recommendation {
	if rec.PositionSizing < 0 {
		logger.Warn(ctx, "Negative position sizing clamped to 0", "asset", asset, "sizing_pct", rec.PositionSizing)
		rec.PositionSizing = 0
	} else if rec.PositionSizing > 100 {
		logger.Warn(ctx, "Position sizing above 100 clamped", "asset", asset, "sizing_pct", rec.PositionSizing)
		rec.PositionSizing = 100
	}
	return rec
}

// reconcile applies the position policy: with an open position the only
// automatic action is a full close on the opposing signal; with no
// position, BUY/SELL with sizing > 0 opens one sized from equity.
func (e *Engine) reconcile(ctx context.Context, asset string, pos *types.Position, rec types.Recommendation, lastClose float64) types.ExecutionOutcome {
	if pos != nil {
		switch {
		case pos.Side == types.SideLong && rec.Action == types.ActionSell:
			logger.Info(ctx, "Closing long position", "asset", asset, "qty", pos.Qty)
			return e.submit(ctx, asset, pos.Qty, types.ActionSell, lastClose)
		case pos.Side == types.SideShort && rec.Action == types.ActionBuy:
			logger.Info(ctx, "Closing short position", "asset", asset, "qty", pos.Qty)
			return e.submit(ctx, asset, pos.Qty, types.ActionBuy, lastClose)
		default:
			return types.ExecutionOutcome{Info: "open position held, no automatic adjustment"}
		}
	}

	if (rec.Action == types.ActionBuy || rec.Action == types.ActionSell) && rec.PositionSizing > 0 {
		acct, err := e.brk.Account(ctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "Account lookup failed - trade skipped", err, "asset", asset)
			return types.ExecutionOutcome{Error: "account lookup failed: " + err.Error()}
		}
		qty := sizeQty(acct.Equity, rec.PositionSizing, lastClose)
		if qty <= 0 {
			return types.ExecutionOutcome{Info: "computed quantity is zero"}
		}
		logger.Info(ctx, "Opening position", "asset", asset, "side", rec.Action,
			"qty", qty, "equity", acct.Equity, "sizing_pct", rec.PositionSizing, "price", lastClose)
		return e.submit(ctx, asset, qty, rec.Action, lastClose)
	}

	return types.ExecutionOutcome{Info: "no trade triggered"}
}

// sizeQty converts a sizing percentage into a base-asset quantity,
// rounded to 6 decimal places: equity * pct / 100 / price.
func sizeQty(equity, sizingPct, price float64) float64 {
	if price <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(equity).
		Mul(decimal.NewFromFloat(sizingPct)).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromFloat(price)).
		Round(6)
	f, _ := q.Float64()
	return f
}

func (e *Engine) submit(ctx context.Context, asset string, qty float64, side string, refPrice float64) types.ExecutionOutcome {
	res, err := e.brk.SubmitMarketOrder(ctx, asset, qty, side)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order submission failed", err, "asset", asset, "side", side, "qty", qty)
		return types.ExecutionOutcome{Side: side, Qty: qty, Error: err.Error()}
	}

	filledQty := res.FilledQty
	if filledQty == 0 {
		filledQty = qty
	}
	filledPrice := res.FilledPrice
	if filledPrice == 0 {
		filledPrice = refPrice
	}
	logger.Info(ctx, "Trade executed", "asset", asset, "side", side, "qty", filledQty,
		"price", filledPrice, "order_id", res.OrderID, "status", res.Status)
	return types.ExecutionOutcome{
		Executed: true,
		Side:     side,
		Qty:      filledQty,
		Price:    filledPrice,
		Status:   res.Status,
		OrderID:  res.OrderID,
	}
}

// maybeReflect triggers a self-critique when the total record count hits a
// multiple of the reflection interval. Reflection can never fail a cycle.
func (e *Engine) maybeReflect(ctx context.Context, asset string) {
	n := e.cfg.ReflectionInterval
	count, err := e.ledger.Count(asset)
	if err != nil {
		logger.Warn(ctx, "Reflection skipped - ledger count failed", "asset", asset, "error", err)
		return
	}
	if count == 0 || count%n != 0 {
		return
	}

	recs, err := e.ledger.Recent(asset, n)
	if err != nil {
		logger.Warn(ctx, "Reflection skipped - ledger read failed", "asset", asset, "error", err)
		return
	}
	stats, err := e.ledger.Stats(asset)
	if err != nil {
		logger.Warn(ctx, "Reflection skipped - stats failed", "asset", asset, "error", err)
		return
	}

	prompt := reflection.BuildPrompt(asset, recs, stats)
	raw, err := e.llm.Reflect(ctx, asset, prompt)
	if err != nil {
		logger.Warn(ctx, "Reflection request failed", "asset", asset, "error", err)
		return
	}

	rec := reflection.Parse(asset, raw)
	if err := e.refl.Append(rec); err != nil {
		logger.Warn(ctx, "Reflection append failed", "asset", asset, "error", err)
		return
	}
	logger.Info(ctx, "Reflection recorded", "asset", asset, "trade_count", count)
}
