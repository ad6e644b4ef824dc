package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

// Broker is the execution venue: account state, open positions, and
// market-order submission.
type Broker interface {
	Account(ctx context.Context) (types.Account, error)
	Positions(ctx context.Context) ([]types.Position, error)
	SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side string) (types.OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (types.OrderResult, error)
}
