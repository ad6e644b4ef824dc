package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

// Decider turns a market summary (plus the open position, if any) into a
// trade recommendation, and answers free-form reflection prompts.
//
// Implementations must normalize non-conforming model output themselves:
// Recommend returns an error only for transport-level failures, never for
// a payload it could coerce into a Recommendation.
type Decider interface {
	Recommend(ctx context.Context, asset string, summary types.MarketSummary, pos *types.Position) (types.Recommendation, error)
	Reflect(ctx context.Context, asset, prompt string) (string, error)
}
