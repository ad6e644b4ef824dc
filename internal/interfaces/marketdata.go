package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

// MarketData supplies historical OHLCV bars for an asset.
type MarketData interface {
	Bars(ctx context.Context, symbol string, lookbackDays int, barSize string) ([]types.Bar, error)
}
