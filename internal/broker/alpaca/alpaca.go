// Package alpaca implements the execution port against the Alpaca trading
// API. Whatever shape the venue returns is translated into the canonical
// Position/OrderResult types here, exactly once; the core never sees raw
// venue payloads. DRY_RUN mode simulates fills locally.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/types"
)

const defaultBaseURL = "https://paper-api.alpaca.markets"

type Params struct {
	Mode    string // DRY_RUN or LIVE
	KeyID   string
	Secret  string
	BaseURL string
}

type Client struct {
	p    Params
	http *resty.Client
}

var _ interfaces.Broker = (*Client)(nil)

func New(p Params) *Client {
	if p.BaseURL == "" {
		p.BaseURL = defaultBaseURL
	}
	http := resty.New().
		SetBaseURL(p.BaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("APCA-API-KEY-ID", p.KeyID).
		SetHeader("APCA-API-SECRET-KEY", p.Secret)
	return &Client{p: p, http: http}
}

func (c *Client) dryRun() bool {
	return c.p.Mode == "DRY_RUN"
}

type accountPayload struct {
	Equity string `json:"equity"`
}

func (c *Client) Account(ctx context.Context) (types.Account, error) {
	if c.dryRun() {
		return types.Account{Equity: 100000}, nil
	}

	var body accountPayload
	resp, err := c.http.R().SetContext(ctx).SetResult(&body).Get("/v2/account")
	if err != nil {
		return types.Account{}, fmt.Errorf("get account: %w", err)
	}
	if resp.IsError() {
		return types.Account{}, fmt.Errorf("get account: http %d", resp.StatusCode())
	}
	return types.Account{Equity: parseFloat(body.Equity)}, nil
}

type positionPayload struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
}

func (c *Client) Positions(ctx context.Context) ([]types.Position, error) {
	if c.dryRun() {
		return nil, nil
	}

	var body []positionPayload
	resp, err := c.http.R().SetContext(ctx).SetResult(&body).Get("/v2/positions")
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get positions: http %d", resp.StatusCode())
	}

	positions := make([]types.Position, 0, len(body))
	for _, p := range body {
		qty := parseFloat(p.Qty)
		if qty < 0 {
			qty = -qty
		}
		side := strings.ToLower(p.Side)
		if side != types.SideShort {
			side = types.SideLong
		}
		positions = append(positions, types.Position{
			Symbol:        p.Symbol,
			Side:          side,
			Qty:           qty,
			AvgEntryPrice: parseFloat(p.AvgEntryPrice),
		})
	}
	return positions, nil
}

type orderPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side string) (types.OrderResult, error) {
	if qty <= 0 {
		return types.OrderResult{}, errors.New("quantity must be positive")
	}
	if side != types.ActionBuy && side != types.ActionSell {
		return types.OrderResult{}, fmt.Errorf("invalid order side %q", side)
	}

	if c.dryRun() {
		return types.OrderResult{
			OrderID:   "SIM-" + uuid.NewString(),
			Status:    "SIMULATED",
			FilledQty: qty,
		}, nil
	}

	var body orderPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"symbol":        symbol,
			"qty":           strconv.FormatFloat(qty, 'f', -1, 64),
			"side":          strings.ToLower(side),
			"type":          "market",
			"time_in_force": "gtc",
		}).
		SetResult(&body).
		Post("/v2/orders")
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("submit order: %w", err)
	}
	if resp.IsError() {
		return types.OrderResult{}, fmt.Errorf("submit order: http %d: %s", resp.StatusCode(), resp.String())
	}

	return types.OrderResult{
		OrderID:     body.ID,
		Status:      body.Status,
		FilledQty:   parseFloat(body.FilledQty),
		FilledPrice: parseFloat(body.FilledAvgPrice),
	}, nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string) (types.OrderResult, error) {
	if c.dryRun() {
		return types.OrderResult{
			OrderID: "SIM-" + uuid.NewString(),
			Status:  "SIMULATED",
		}, nil
	}

	var body orderPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Delete("/v2/positions/" + strings.ReplaceAll(symbol, "/", ""))
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("close position: %w", err)
	}
	if resp.IsError() {
		return types.OrderResult{}, fmt.Errorf("close position: http %d", resp.StatusCode())
	}
	return types.OrderResult{
		OrderID:     body.ID,
		Status:      body.Status,
		FilledQty:   parseFloat(body.FilledQty),
		FilledPrice: parseFloat(body.FilledAvgPrice),
	}, nil
}

// parseFloat tolerates the venue's numbers-as-strings encoding.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
