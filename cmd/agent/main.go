package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ai-trading-agent/internal/hub"
	"ai-trading-agent/internal/intervals"
	"ai-trading-agent/internal/ledger"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/reflection"
	"ai-trading-agent/internal/runner"
	"ai-trading-agent/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer trace.Shutdown(context.Background())

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info(ctx, "Shutting down...")
		cancel()
	}()

	led := ledger.New(cfg.LogsDir)
	refl := reflection.NewStore(cfg.LogsDir)
	iv := intervals.NewStore(cfg.IntervalsFile)

	md := initializeMarketData(ctx, cfg)
	brk := initializeBroker(ctx, cfg)
	decider := initializeDecider(ctx, cfg)
	eng := initializeEngine(cfg, md, brk, decider, led, refl)

	var pub runner.Publisher
	var h *hub.Hub
	if cfg.Hub.Enabled {
		h = hub.New()
		pub = h
	}

	r := runner.New(cfg, eng, iv, led, refl, pub)

	if h != nil {
		h.Bind(r)
		go func() {
			if err := h.Serve(ctx, cfg.Hub.Addr); err != nil {
				logger.ErrorWithErr(ctx, "Control hub stopped", err)
			}
		}()
	}

	logger.Info(ctx, "Agent started", "mode", cfg.Mode, "assets", cfg.Assets)
	if err := r.Run(ctx); err != nil && err != context.Canceled {
		logger.ErrorWithErr(ctx, "Scheduler exited", err)
		os.Exit(1)
	}
}
