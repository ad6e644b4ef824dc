package types

import "time"

// Bar is one OHLCV sample for an asset at a fixed granularity.
type Bar struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IndicatorSet holds the derived values for a single bar. Bars whose
// warmup window is incomplete never get an IndicatorSet.
type IndicatorSet struct {
	SMAFast    float64
	SMASlow    float64
	EMAFast    float64
	EMASlow    float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	VolSMA     float64
}

// MarketSummary is the bounded, rounded projection of recent market state.
// It is the only market representation the decision port ever sees, so
// every field is trimmed for prompt compactness.
type MarketSummary struct {
	Close      []float64 `json:"close"`
	RSI        []float64 `json:"rsi"`
	MACD       []float64 `json:"macd"`
	MACDSignal []float64 `json:"macd_signal"`
	BBUpper    []float64 `json:"bb_upper"`
	BBLower    []float64 `json:"bb_lower"`
	SMAFast    []float64 `json:"sma_fast"`
	SMASlow    []float64 `json:"sma_slow"`
	EMAFast    []float64 `json:"ema_fast"`
	EMASlow    []float64 `json:"ema_slow"`
	Volume     []int64   `json:"volume"`
	Timestamp  []string  `json:"timestamp"`
}

// Recommendation actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Recommendation is a normalized decision-port response. A malformed or
// errored response is represented as HOLD with sizing 0 and Error set;
// the orchestrator never sees a raw model payload.
type Recommendation struct {
	Action           string   `json:"recommendation"`
	PositionSizing   float64  `json:"position_sizing"`
	StopLoss         *float64 `json:"stop_loss,omitempty"`
	TakeProfit       *float64 `json:"take_profit,omitempty"`
	NextCycleSeconds int      `json:"next_cycle_seconds,omitempty"`
	Reasoning        string   `json:"reasoning"`
	Error            string   `json:"error,omitempty"`
}

// Hold returns the HOLD-0 recommendation used when a decision cannot be
// obtained or parsed.
func Hold(detail string) Recommendation {
	return Recommendation{Action: ActionHold, PositionSizing: 0, Reasoning: "normalized to HOLD", Error: detail}
}

// Position sides.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Position is the canonical open-position shape. Broker adapters translate
// whatever the venue returns into this exactly once; Qty is always the
// absolute quantity.
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// Account holds the equity snapshot used for position sizing.
type Account struct {
	Equity float64 `json:"equity"`
}

// OrderResult is the venue's answer to a submitted market order.
type OrderResult struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	FilledQty   float64 `json:"filled_qty"`
	FilledPrice float64 `json:"filled_price"`
}

// ExecutionOutcome records what the cycle actually did: a fill, a skip, or
// an execution error.
type ExecutionOutcome struct {
	Executed bool    `json:"executed"`
	Side     string  `json:"side,omitempty"`
	Qty      float64 `json:"qty,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Status   string  `json:"status,omitempty"`
	OrderID  string  `json:"order_id,omitempty"`
	Info     string  `json:"info,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// TradeRecord is the durable, append-only outcome of one completed cycle.
type TradeRecord struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Asset     string           `json:"asset"`
	Decision  Recommendation   `json:"ai_decision"`
	Outcome   ExecutionOutcome `json:"executed"`
}

// ReflectionRecord is one persisted self-critique response.
type ReflectionRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Asset        string    `json:"asset"`
	Reflection   string    `json:"reflection"`
	Improvements string    `json:"improvements"`
	StatSummary  string    `json:"stat_summary"`
	Raw          string    `json:"raw,omitempty"`
}

// PerformanceStats aggregates a ledger. The zero value is the answer for
// an asset with no history.
type PerformanceStats struct {
	TotalTrades int          `json:"total_trades"`
	NetPnL      float64      `json:"net_pnl"`
	WinRate     float64      `json:"win_rate"`
	AverageWin  float64      `json:"average_win"`
	AverageLoss float64      `json:"average_loss"`
	BestTrade   *TradeRecord `json:"best_trade,omitempty"`
	WorstTrade  *TradeRecord `json:"worst_trade,omitempty"`
}
