package ta

import (
	"errors"
	"math"
	"testing"
	"time"

	"ai-trading-agent/internal/types"
)

func genBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price := 100.0 + 10.0*math.Sin(float64(i)/7.0) + float64(i)*0.1
		bars[i] = types.Bar{
			Ts:     t0.Add(time.Duration(i) * time.Hour),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000 + float64(i%50)*10,
		}
	}
	return bars
}

func TestComputeAlignment(t *testing.T) {
	cfg := DefaultConfig()
	bars := genBars(120)

	points, err := Compute(bars, cfg)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	want := 120 - cfg.warmup()
	if len(points) != want {
		t.Errorf("Expected %d aligned points, got %d", want, len(points))
	}

	// Aligned output is a suffix of the input.
	last := points[len(points)-1]
	if !last.Bar.Ts.Equal(bars[119].Ts) {
		t.Errorf("Last point timestamp %v does not match last bar %v", last.Bar.Ts, bars[119].Ts)
	}
	for _, p := range points {
		if hasNaN(p.Ind) {
			t.Fatalf("NaN indicator survived alignment at %v", p.Bar.Ts)
		}
	}
}

func TestComputeInsufficientHistory(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinBars() != 50 {
		t.Fatalf("Expected MinBars 50 for the default windows, got %d", cfg.MinBars())
	}

	_, err := Compute(genBars(35), cfg)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory for 35 bars, got %v", err)
	}

	_, err = Compute(genBars(49), cfg)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory for 49 bars, got %v", err)
	}

	if _, err := Compute(genBars(50), cfg); err != nil {
		t.Errorf("Expected 50 bars to be enough, got %v", err)
	}
}

func TestComputeDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	bars := genBars(80)

	a, err := Compute(bars, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(bars, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("Lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Ind != b[i].Ind {
			t.Fatalf("Indicator mismatch at index %d", i)
		}
	}
}

func TestSMASeries(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	out := smaSeries(vals, 3)

	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Error("Expected NaN warmup prefix of length 2")
	}
	if out[2] != 2 || out[3] != 3 || out[4] != 4 {
		t.Errorf("Unexpected SMA values: %v", out)
	}
}

func TestEMASeriesSeed(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	out := emaSeries(vals, 3)

	// Seeded with the SMA of the first window.
	if out[2] != 2 {
		t.Errorf("Expected EMA seed 2, got %f", out[2])
	}
	// k = 2/(3+1) = 0.5: ema[3] = (4-2)*0.5 + 2 = 3
	if out[3] != 3 {
		t.Errorf("Expected EMA 3, got %f", out[3])
	}
}

func TestRSIAllGains(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6}
	out := rsiSeries(vals, 3)
	if out[3] != 100 {
		t.Errorf("Expected RSI 100 with no losses, got %f", out[3])
	}
}

func TestSummarize(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Bar: types.Bar{Ts: ts, Close: 100.456, Volume: 1234.6}, Ind: types.IndicatorSet{RSI: 55.555}},
		{Bar: types.Bar{Ts: ts.Add(time.Hour), Close: 101.234, Volume: 2000}, Ind: types.IndicatorSet{RSI: 60.001}},
		{Bar: types.Bar{Ts: ts.Add(2 * time.Hour), Close: 102, Volume: 1500}, Ind: types.IndicatorSet{RSI: 48.9}},
	}

	s, err := Summarize(points, 2)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(s.Close) != 2 {
		t.Fatalf("Expected window of 2, got %d", len(s.Close))
	}
	if s.Close[0] != 101.23 || s.Close[1] != 102 {
		t.Errorf("Unexpected rounded closes: %v", s.Close)
	}
	if s.RSI[0] != 60 {
		t.Errorf("Expected RSI rounded to 60, got %f", s.RSI[0])
	}
	if s.Volume[0] != 2000 || s.Volume[1] != 1500 {
		t.Errorf("Unexpected volumes: %v", s.Volume)
	}
	if s.Timestamp[1] != "2025-03-01T14:00:00Z" {
		t.Errorf("Unexpected timestamp: %s", s.Timestamp[1])
	}
}

func TestSummarizeTooFewPoints(t *testing.T) {
	points := []Point{{Bar: types.Bar{Close: 100}}}
	_, err := Summarize(points, 5)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}
