package main

import (
	"context"
	"fmt"
	"os"

	"ai-trading-agent/internal/broker/alpaca"
	"ai-trading-agent/internal/broker/brokerobs"
	"ai-trading-agent/internal/engine"
	"ai-trading-agent/internal/engine/engineobs"
	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/ledger"
	"ai-trading-agent/internal/llm/llmobs"
	"ai-trading-agent/internal/llm/noop"
	"ai-trading-agent/internal/llm/openai"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/marketdata"
	"ai-trading-agent/internal/reflection"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger, and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// initializeMarketData initializes the market data adapter
func initializeMarketData(ctx context.Context, cfg *store.Config) interfaces.MarketData {
	md := marketdata.NewAlpaca(marketdata.Params{
		Source: cfg.DataSource,
		KeyID:  os.Getenv("ALPACA_API_KEY"),
		Secret: os.Getenv("ALPACA_SECRET_KEY"),
	})

	if cfg.DataSource == "LIVE" {
		logger.Info(ctx, "Using LIVE bar data from Alpaca")
	} else {
		logger.Info(ctx, "Using STATIC synthetic bar data for testing")
	}
	return md
}

// initializeBroker initializes and returns the broker instance with observability
func initializeBroker(ctx context.Context, cfg *store.Config) interfaces.Broker {
	brk := alpaca.New(alpaca.Params{
		Mode:   cfg.Mode,
		KeyID:  os.Getenv("ALPACA_API_KEY"),
		Secret: os.Getenv("ALPACA_SECRET_KEY"),
	})

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	return brokerobs.Wrap(brk)
}

// initializeDecider initializes and returns the LLM decider with observability
func initializeDecider(ctx context.Context, cfg *store.Config) interfaces.Decider {
	var decider interfaces.Decider

	switch cfg.LLM.Provider {
	case "OPENAI":
		decider = openai.NewDecider(cfg)
	default:
		decider = noop.NewDecider()
		logger.Warn(ctx, "No LLM provider configured - using Noop decider (always HOLD)")
	}

	return llmobs.Wrap(decider)
}

// initializeEngine initializes and returns the trading engine with observability
func initializeEngine(cfg *store.Config, md interfaces.MarketData, brk interfaces.Broker, decider interfaces.Decider, led *ledger.Ledger, refl *reflection.Store) interfaces.Engine {
	eng := engine.New(cfg, md, brk, decider, led, refl)
	return engineobs.Wrap(eng)
}
