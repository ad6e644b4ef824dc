package runner

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ai-trading-agent/internal/intervals"
	"ai-trading-agent/internal/ledger"
	"ai-trading-agent/internal/reflection"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/types"
)

type fakeEngine struct {
	mu      sync.Mutex
	stepped []string
	rec     *types.TradeRecord
	err     error
	onStep  func(asset string)
}

func (f *fakeEngine) Step(ctx context.Context, asset string) (*types.TradeRecord, error) {
	f.mu.Lock()
	f.stepped = append(f.stepped, asset)
	f.mu.Unlock()
	if f.onStep != nil {
		f.onStep(asset)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.rec != nil {
		return f.rec, nil
	}
	return &types.TradeRecord{Asset: asset}, nil
}

func (f *fakeEngine) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.stepped))
	copy(out, f.stepped)
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	states []State
}

func (f *fakePublisher) Publish(st State) {
	f.mu.Lock()
	f.states = append(f.states, st)
	f.mu.Unlock()
}

func testRunner(t *testing.T, eng *fakeEngine, cfg *store.Config) (*Runner, *fakePublisher) {
	t.Helper()
	dir := t.TempDir()
	pub := &fakePublisher{}
	r := New(cfg, eng,
		intervals.NewStore(filepath.Join(dir, "intervals.json")),
		ledger.New(dir),
		reflection.NewStore(dir),
		pub)
	return r, pub
}

func testRunnerConfig() *store.Config {
	return &store.Config{
		Mode:             "DRY_RUN",
		DataSource:       "STATIC",
		Assets:           []string{"BTC/USD", "ETH/USD"},
		PollSeconds:      300,
		MinCycleSeconds:  5,
		AllowedIntervals: []int{60, 300},
	}
}

func TestClampOverride(t *testing.T) {
	r, _ := testRunner(t, &fakeEngine{}, testRunnerConfig())

	cases := []struct {
		override, interval, want int
	}{
		{60, 300, 60},    // inside [min, interval)
		{5, 300, 5},      // exactly the minimum
		{3, 300, 300},    // below the minimum
		{300, 300, 300},  // not shorter than the interval
		{9999, 300, 300}, // above the interval
		{0, 300, 300},    // no override
	}
	for _, c := range cases {
		if got := r.clampOverride(c.override, c.interval); got != c.want {
			t.Errorf("clampOverride(%d, %d) = %d, want %d", c.override, c.interval, got, c.want)
		}
	}
}

func TestSetIntervalValidation(t *testing.T) {
	r, _ := testRunner(t, &fakeEngine{}, testRunnerConfig())
	ctx := context.Background()

	r.apply(ctx, Command{Action: "set_interval", Asset: "BTC/USD", Interval: 120})
	if got := r.intervals.Get("BTC/USD", 300); got != 300 {
		t.Errorf("Expected interval outside the allow-list to be rejected, got %d", got)
	}

	r.apply(ctx, Command{Action: "set_interval", Asset: "BTC/USD", Interval: 60})
	if got := r.intervals.Get("BTC/USD", 300); got != 60 {
		t.Errorf("Expected allowed interval to persist, got %d", got)
	}
}

func TestPauseResume(t *testing.T) {
	r, _ := testRunner(t, &fakeEngine{}, testRunnerConfig())
	ctx := context.Background()

	r.apply(ctx, Command{Action: "pause", Asset: "btc-usd"})
	if !r.isPaused("BTC/USD") {
		t.Error("Expected BTC/USD paused regardless of spelling")
	}
	if r.isPaused("ETH/USD") {
		t.Error("Expected ETH/USD untouched")
	}

	r.apply(ctx, Command{Action: "resume", Asset: "BTC/USD"})
	if r.isPaused("BTC/USD") {
		t.Error("Expected BTC/USD resumed")
	}

	// Empty asset applies to everything.
	r.apply(ctx, Command{Action: "pause"})
	if !r.isPaused("BTC/USD") || !r.isPaused("ETH/USD") {
		t.Error("Expected all assets paused")
	}
}

func TestSnapshot(t *testing.T) {
	r, _ := testRunner(t, &fakeEngine{}, testRunnerConfig())

	r.intervals.Set("BTC/USD", 60)
	r.setPaused("ETH/USD", true)
	r.ledger.Append(types.TradeRecord{ID: "a", Asset: "BTC/USD", Decision: types.Recommendation{Action: types.ActionHold}})

	st := r.Snapshot()
	if st.Mode != "DRY_RUN" || len(st.Assets) != 2 {
		t.Fatalf("Unexpected snapshot: %+v", st)
	}

	btc, eth := st.Assets[0], st.Assets[1]
	if btc.Asset != "BTC/USD" || btc.IntervalSecs != 60 || btc.TradeCount != 1 {
		t.Errorf("Unexpected BTC state: %+v", btc)
	}
	if btc.LastRecord == nil || btc.LastRecord.ID != "a" {
		t.Error("Expected last record in snapshot")
	}
	if !eth.Paused || eth.IntervalSecs != 300 {
		t.Errorf("Unexpected ETH state: %+v", eth)
	}
}

func TestRunReturnsWhenCancelled(t *testing.T) {
	eng := &fakeEngine{}
	r, _ := testRunner(t, eng, testRunnerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Run(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(eng.steps()) != 0 {
		t.Errorf("Expected no cycles after cancellation, got %v", eng.steps())
	}
}

func TestSequentialStepsEveryAsset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := &fakeEngine{}
	eng.onStep = func(asset string) {
		// Stop after the first full round.
		if asset == "ETH/USD" {
			cancel()
		}
	}
	r, pub := testRunner(t, eng, testRunnerConfig())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Runner did not stop after cancellation")
	}

	steps := eng.steps()
	if len(steps) != 2 || steps[0] != "BTC/USD" || steps[1] != "ETH/USD" {
		t.Errorf("Expected one cycle per asset in order, got %v", steps)
	}

	pub.mu.Lock()
	published := len(pub.states)
	pub.mu.Unlock()
	if published == 0 {
		t.Error("Expected at least one published snapshot")
	}
}

func TestPausedAssetSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := &fakeEngine{}
	eng.onStep = func(asset string) { cancel() }
	r, _ := testRunner(t, eng, testRunnerConfig())
	r.setPaused("BTC/USD", true)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Runner did not stop")
	}

	for _, s := range eng.steps() {
		if s == "BTC/USD" {
			t.Error("Expected paused asset to be skipped")
		}
	}
}
