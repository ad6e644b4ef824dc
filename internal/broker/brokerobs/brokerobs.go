package brokerobs

import (
	"context"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/types"
)

// observableBroker wraps a Broker with logging & tracing middleware.
type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

func Wrap(brk interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: brk}
}

func (ob *observableBroker) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	acct, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Account lookup failed", err)
		return types.Account{}, err
	}
	logger.DebugSkip(ctx, 1, "Account fetched", "equity", acct.Equity)
	return acct, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	positions, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Positions lookup failed", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side string) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitMarketOrder")
	defer span.End()

	res, err := ob.broker.SubmitMarketOrder(ctx, symbol, qty, side)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Order submission failed", err,
			"symbol", symbol, "side", side, "qty", qty)
		return types.OrderResult{}, err
	}
	logger.InfoSkip(ctx, 1, "Order submitted",
		"symbol", symbol, "side", side, "qty", qty,
		"order_id", res.OrderID, "status", res.Status)
	return res, nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, symbol string) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	res, err := ob.broker.ClosePosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Close position failed", err, "symbol", symbol)
		return types.OrderResult{}, err
	}
	logger.InfoSkip(ctx, 1, "Position closed", "symbol", symbol, "order_id", res.OrderID)
	return res, nil
}
