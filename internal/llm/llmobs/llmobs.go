package llmobs

import (
	"context"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{decider: decider}
}

func (od *observableDecider) Recommend(ctx context.Context, asset string, summary types.MarketSummary, pos *types.Position) (types.Recommendation, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Recommend")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting trading decision",
		"asset", asset,
		"summary_bars", len(summary.Close),
		"has_position", pos != nil,
	)

	rec, err := od.decider.Recommend(ctx, asset, summary, pos)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get trading decision", err, "asset", asset)
		return types.Recommendation{}, err
	}

	logger.InfoSkip(ctx, 1, "Trading decision received",
		"asset", asset,
		"action", rec.Action,
		"sizing_pct", rec.PositionSizing,
		"reason", rec.Reasoning,
	)
	return rec, nil
}

func (od *observableDecider) Reflect(ctx context.Context, asset, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Reflect")
	defer span.End()

	raw, err := od.decider.Reflect(ctx, asset, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Reflection request failed", err, "asset", asset)
		return "", err
	}
	logger.InfoSkip(ctx, 1, "Reflection received", "asset", asset, "chars", len(raw))
	return raw, nil
}
