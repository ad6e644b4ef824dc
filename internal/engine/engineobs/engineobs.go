package engineobs

import (
	"context"
	"time"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap wraps an engine with logging and tracing middleware.
func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{engine: eng}
}

func (oe *observableEngine) Step(ctx context.Context, asset string) (*types.TradeRecord, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting trading cycle", "asset", asset)

	record, err := oe.engine.Step(ctx, asset)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"asset", asset,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Trading cycle completed",
		"asset", asset,
		"action", record.Decision.Action,
		"executed", record.Outcome.Executed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return record, nil
}
