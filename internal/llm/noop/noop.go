// Package noop is the decider used when no LLM provider is configured:
// it always holds and reflects with an empty critique.
package noop

import (
	"context"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/types"
)

type Decider struct{}

var _ interfaces.Decider = (*Decider)(nil)

func NewDecider() *Decider {
	return &Decider{}
}

func (d *Decider) Recommend(ctx context.Context, asset string, summary types.MarketSummary, pos *types.Position) (types.Recommendation, error) {
	return types.Recommendation{
		Action:         types.ActionHold,
		PositionSizing: 0,
		Reasoning:      "noop decider - no provider configured",
	}, nil
}

func (d *Decider) Reflect(ctx context.Context, asset, prompt string) (string, error) {
	return `{"reflection":"noop decider - no provider configured","improvements":"","stat_summary":""}`, nil
}
