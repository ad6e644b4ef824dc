package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

// Engine runs one full trading cycle for one asset.
type Engine interface {
	Step(ctx context.Context, asset string) (*types.TradeRecord, error)
}
