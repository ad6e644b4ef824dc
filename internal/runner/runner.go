// Package runner schedules trading cycles across the configured assets.
// Sequential mode steps every asset on one shared tick; concurrent mode
// gives each asset its own goroutine and interval. Control commands
// (pause, resume, set_interval) arrive over a channel, typically fed by
// the websocket hub.
package runner

import (
	"context"
	"sync"
	"time"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/intervals"
	"ai-trading-agent/internal/ledger"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/reflection"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/symbols"
	"ai-trading-agent/internal/types"
)

// Command is a control message for the scheduler.
type Command struct {
	Action   string `json:"action"` // pause, resume, set_interval
	Asset    string `json:"asset,omitempty"`
	Interval int    `json:"interval,omitempty"`
}

// AssetState is the per-asset slice of a state snapshot.
type AssetState struct {
	Asset          string                  `json:"asset"`
	Paused         bool                    `json:"paused"`
	IntervalSecs   int                     `json:"interval_seconds"`
	TradeCount     int                     `json:"trade_count"`
	LastRecord     *types.TradeRecord      `json:"last_record,omitempty"`
	LastReflection *types.ReflectionRecord `json:"last_reflection,omitempty"`
	LastError      string                  `json:"last_error,omitempty"`
}

// State is published after every round so observers can render the
// agent without querying it.
type State struct {
	Mode       string       `json:"mode"`
	DataSource string       `json:"data_source"`
	Concurrent bool         `json:"concurrent"`
	Timestamp  time.Time    `json:"timestamp"`
	Assets     []AssetState `json:"assets"`
}

// Publisher receives state snapshots. A nil publisher is allowed.
type Publisher interface {
	Publish(State)
}

type Runner struct {
	cfg       *store.Config
	eng       interfaces.Engine
	intervals *intervals.Store
	ledger    *ledger.Ledger
	refl      *reflection.Store
	pub       Publisher

	cmds chan Command

	mu        sync.Mutex
	paused    map[string]bool
	lastError map[string]string
}

func New(cfg *store.Config, eng interfaces.Engine, iv *intervals.Store, led *ledger.Ledger, refl *reflection.Store, pub Publisher) *Runner {
	return &Runner{
		cfg:       cfg,
		eng:       eng,
		intervals: iv,
		ledger:    led,
		refl:      refl,
		pub:       pub,
		cmds:      make(chan Command, 16),
		paused:    make(map[string]bool),
		lastError: make(map[string]string),
	}
}

// Commands returns the channel control messages are sent on.
func (r *Runner) Commands() chan<- Command {
	return r.cmds
}

// Run blocks until ctx is cancelled. An in-flight cycle always
// completes; no new cycle starts after cancellation.
func (r *Runner) Run(ctx context.Context) error {
	logger.Info(ctx, "Scheduler starting",
		"assets", r.cfg.Assets,
		"concurrent", r.cfg.Concurrent,
		"poll_seconds", r.cfg.PollSeconds,
	)
	if r.cfg.Concurrent {
		return r.runConcurrent(ctx)
	}
	return r.runSequential(ctx)
}

func (r *Runner) runSequential(ctx context.Context) error {
	for {
		r.drainCommands(ctx)

		override := 0
		for _, asset := range r.cfg.Assets {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if r.isPaused(asset) {
				logger.Debug(ctx, "Asset paused, skipping cycle", "asset", asset)
				continue
			}
			rec := r.step(ctx, asset)
			if rec != nil && rec.Decision.NextCycleSeconds > 0 {
				if override == 0 || rec.Decision.NextCycleSeconds < override {
					override = rec.Decision.NextCycleSeconds
				}
			}
		}

		r.publish()

		sleep := r.clampOverride(override, r.cfg.PollSeconds)
		if err := r.wait(ctx, sleep); err != nil {
			return err
		}
	}
}

func (r *Runner) runConcurrent(ctx context.Context) error {
	done := make(chan string, len(r.cfg.Assets))
	for _, asset := range r.cfg.Assets {
		go func(asset string) {
			defer func() { done <- asset }()
			r.runAsset(ctx, asset)
		}(asset)
	}

	// Commands are applied centrally while the asset goroutines run.
	for running := len(r.cfg.Assets); running > 0; {
		select {
		case cmd := <-r.cmds:
			r.apply(ctx, cmd)
		case <-done:
			running--
		}
	}
	return ctx.Err()
}

func (r *Runner) runAsset(ctx context.Context, asset string) {
	for {
		if ctx.Err() != nil {
			return
		}

		interval := r.intervals.Get(asset, r.cfg.PollSeconds)
		override := 0
		if !r.isPaused(asset) {
			if rec := r.step(ctx, asset); rec != nil {
				override = rec.Decision.NextCycleSeconds
			}
			r.publish()
		}

		sleep := r.clampOverride(override, interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(sleep) * time.Second):
		}
	}
}

// step runs one engine cycle and records the outcome for snapshots.
// Cycle failures are logged, never fatal; the scheduler keeps ticking.
func (r *Runner) step(ctx context.Context, asset string) *types.TradeRecord {
	rec, err := r.eng.Step(ctx, asset)
	key := symbols.Canonical(asset)
	r.mu.Lock()
	if err != nil {
		r.lastError[key] = err.Error()
	} else {
		r.lastError[key] = ""
	}
	r.mu.Unlock()
	if err != nil {
		logger.ErrorWithErr(ctx, "Trading cycle failed", err, "asset", asset)
		return nil
	}
	return rec
}

// clampOverride applies a NextCycleSeconds hint: honored only when it
// falls inside [min_cycle_seconds, interval), otherwise the regular
// interval stands.
func (r *Runner) clampOverride(override, interval int) int {
	if override >= r.cfg.MinCycleSeconds && override < interval {
		return override
	}
	return interval
}

// wait sleeps for the given seconds while still servicing control
// commands and cancellation.
func (r *Runner) wait(ctx context.Context, seconds int) error {
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.cmds:
			r.apply(ctx, cmd)
		case <-timer.C:
			return nil
		}
	}
}

func (r *Runner) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-r.cmds:
			r.apply(ctx, cmd)
		default:
			return
		}
	}
}

func (r *Runner) apply(ctx context.Context, cmd Command) {
	switch cmd.Action {
	case "pause":
		r.setPaused(cmd.Asset, true)
		logger.Info(ctx, "Paused", "asset", cmd.Asset)
	case "resume":
		r.setPaused(cmd.Asset, false)
		logger.Info(ctx, "Resumed", "asset", cmd.Asset)
	case "set_interval":
		if !r.intervalAllowed(cmd.Interval) {
			logger.Warn(ctx, "Rejected interval outside allow-list",
				"asset", cmd.Asset, "interval", cmd.Interval,
				"allowed", r.cfg.AllowedIntervals)
			return
		}
		if err := r.intervals.Set(cmd.Asset, cmd.Interval); err != nil {
			logger.ErrorWithErr(ctx, "Failed to persist interval", err, "asset", cmd.Asset)
			return
		}
		logger.Info(ctx, "Interval updated", "asset", cmd.Asset, "interval", cmd.Interval)
	default:
		logger.Warn(ctx, "Unknown control command", "action", cmd.Action)
	}
	r.publish()
}

func (r *Runner) intervalAllowed(seconds int) bool {
	for _, v := range r.cfg.AllowedIntervals {
		if v == seconds {
			return true
		}
	}
	return false
}

func (r *Runner) isPaused(asset string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused[symbols.Canonical(asset)]
}

// setPaused flips the pause flag; an empty asset applies to all.
func (r *Runner) setPaused(asset string, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if asset == "" {
		for _, a := range r.cfg.Assets {
			r.paused[symbols.Canonical(a)] = v
		}
		return
	}
	r.paused[symbols.Canonical(asset)] = v
}

// Snapshot assembles the current state from the durable stores.
func (r *Runner) Snapshot() State {
	st := State{
		Mode:       r.cfg.Mode,
		DataSource: r.cfg.DataSource,
		Concurrent: r.cfg.Concurrent,
		Timestamp:  time.Now().UTC(),
	}
	for _, asset := range r.cfg.Assets {
		key := symbols.Canonical(asset)
		r.mu.Lock()
		paused, lastErr := r.paused[key], r.lastError[key]
		r.mu.Unlock()
		as := AssetState{
			Asset:        key,
			Paused:       paused,
			IntervalSecs: r.intervals.Get(asset, r.cfg.PollSeconds),
			LastError:    lastErr,
		}
		if n, err := r.ledger.Count(asset); err == nil {
			as.TradeCount = n
		}
		if recent, err := r.ledger.Recent(asset, 1); err == nil && len(recent) > 0 {
			rec := recent[len(recent)-1]
			as.LastRecord = &rec
		}
		if refl, err := r.refl.Last(asset); err == nil {
			as.LastReflection = refl
		}
		st.Assets = append(st.Assets, as)
	}
	return st
}

func (r *Runner) publish() {
	if r.pub == nil {
		return
	}
	r.pub.Publish(r.Snapshot())
}
