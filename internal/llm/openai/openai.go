// Package openai implements the decision port against the OpenAI chat
// completions API. The model is treated as an opaque oracle: its output
// is scanned for a JSON object, and anything that cannot be coerced into
// a well-formed recommendation normalizes to HOLD with sizing 0.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/types"
)

const endpoint = "https://api.openai.com/v1/chat/completions"

type Decider struct {
	cfg *store.Config
}

var _ interfaces.Decider = (*Decider)(nil)

func NewDecider(cfg *store.Config) *Decider {
	return &Decider{cfg: cfg}
}

const systemPrompt = `You are an advanced AI trading assistant specializing in ICT (Inner Circle Trader), Smart Money Concepts (SMC), and institutional order flow strategies.
When analyzing a trading opportunity, consider the following concepts:
- Market structure (BOS, CHoCH)
- Liquidity grabs and inducements
- Fair value gaps (FVG)
- Order blocks (OB)
- Premium/discount zones
- Imbalance
- Session timing (e.g. London/NY killzones)
- Relative equal highs/lows (liquidity pools)
- Classic indicators (RSI, moving averages) only as confluence, not as a primary driver`

func buildPrompt(asset string, summary types.MarketSummary, pos *types.Position) string {
	sb, _ := json.Marshal(summary)

	positionCtx := "No open position."
	if pos != nil {
		pb, _ := json.Marshal(pos)
		positionCtx = "Current open position: " + string(pb)
	}

	return fmt.Sprintf(`Given the following technical summary for %s, make a recommendation using ICT and SMC principles.
Clearly explain which concepts informed your analysis.
%s

Output a valid JSON object with these fields:
- recommendation: "BUY", "SELL", or "HOLD"
- reasoning: A concise but actionable rationale referencing ICT/SMC concepts used (e.g. "Liquidity sweep below Asian low, FVG fill, bullish OB in NY session")
- position_sizing: Percent of account equity to use (0-100; 0 means HOLD)
- stop_loss: Suggested stop loss percentage (can be null)
- take_profit: Suggested take profit percentage (can be null)
- next_cycle_seconds: (optional) If you think the bot should check again sooner than usual, set this to the number of seconds until the next check. Otherwise, set null or omit.

Summary to analyze:
%s`, asset, positionCtx, string(sb))
}

// Recommend asks the model for a decision. Transport failures return an
// error; any payload that reaches us is normalized, never rejected.
func (d *Decider) Recommend(ctx context.Context, asset string, summary types.MarketSummary, pos *types.Position) (types.Recommendation, error) {
	raw, err := d.complete(ctx, buildPrompt(asset, summary, pos))
	if err != nil {
		return types.Recommendation{}, err
	}
	return Normalize(raw), nil
}

// Reflect sends a free-form self-critique prompt and returns the raw
// response text.
func (d *Decider) Reflect(ctx context.Context, asset, prompt string) (string, error) {
	return d.complete(ctx, prompt)
}

func (d *Decider) complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai.complete")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}

	body := map[string]any{
		"model": d.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": d.cfg.LLM.Temperature,
		"max_tokens":  d.cfg.LLM.MaxTokens,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}

// Normalize coerces a raw model response into a valid Recommendation.
// The JSON object is located by brace scan so surrounding prose is
// tolerated; a missing or unparsable object yields HOLD-0 with the
// failure detail attached.
func Normalize(raw string) types.Recommendation {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return types.Hold("model returned no JSON object")
	}

	var body struct {
		Recommendation   string   `json:"recommendation"`
		Reasoning        string   `json:"reasoning"`
		PositionSizing   *float64 `json:"position_sizing"`
		StopLoss         *float64 `json:"stop_loss"`
		TakeProfit       *float64 `json:"take_profit"`
		NextCycleSeconds *int     `json:"next_cycle_seconds"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &body); err != nil {
		return types.Hold("model JSON parse error: " + err.Error())
	}

	rec := types.Recommendation{
		Action:     strings.ToUpper(strings.TrimSpace(body.Recommendation)),
		Reasoning:  body.Reasoning,
		StopLoss:   body.StopLoss,
		TakeProfit: body.TakeProfit,
	}
	switch rec.Action {
	case types.ActionBuy, types.ActionSell, types.ActionHold:
	default:
		rec.Action = types.ActionHold
	}
	if body.PositionSizing != nil {
		rec.PositionSizing = *body.PositionSizing
	}
	if rec.PositionSizing < 0 {
		rec.PositionSizing = 0
	} else if rec.PositionSizing > 100 {
		rec.PositionSizing = 100
	}
	if body.NextCycleSeconds != nil && *body.NextCycleSeconds > 0 {
		rec.NextCycleSeconds = *body.NextCycleSeconds
	}
	if rec.Reasoning == "" {
		rec.Reasoning = "No reasoning returned."
	}
	return rec
}
