// Package ta computes technical indicator series aligned to a bar
// sequence. Every series carries a NaN warmup prefix; Compute drops the
// rows where any configured indicator is still warming up, so the aligned
// output is always a suffix of the input bars.
package ta

import (
	"errors"
	"fmt"
	"math"
	"time"

	"ai-trading-agent/internal/types"
)

// ErrInsufficientHistory is returned when the bar sequence is too short
// for the configured indicator windows.
var ErrInsufficientHistory = errors.New("insufficient history")

// Config holds the indicator window lengths.
type Config struct {
	ShortWindow  int
	LongWindow   int
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	BBWindow     int
	BBStdDev     float64
	VolumeWindow int
}

// DefaultConfig mirrors the common 20/50 MA, RSI-14, MACD 12-26-9,
// Bollinger 20/2 setup.
func DefaultConfig() Config {
	return Config{
		ShortWindow:  20,
		LongWindow:   50,
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBWindow:     20,
		BBStdDev:     2.0,
		VolumeWindow: 20,
	}
}

// warmup is the first index (0-based) at which every configured indicator
// has a value.
func (c Config) warmup() int {
	w := c.LongWindow - 1
	if v := c.ShortWindow - 1; v > w {
		w = v
	}
	if v := c.MACDSlow + c.MACDSignal - 2; v > w {
		w = v
	}
	if v := c.RSIPeriod; v > w {
		w = v
	}
	if v := c.BBWindow - 1; v > w {
		w = v
	}
	if v := c.VolumeWindow - 1; v > w {
		w = v
	}
	return w
}

// MinBars is the minimum number of bars Compute needs to produce any
// aligned output.
func (c Config) MinBars() int {
	return c.warmup() + 1
}

// Point pairs a bar with the indicators derived at that bar.
type Point struct {
	Bar types.Bar
	Ind types.IndicatorSet
}

// Compute derives the aligned (Bar, IndicatorSet) sequence. Pure and
// deterministic; fails with ErrInsufficientHistory when fewer than
// MinBars bars are supplied.
func Compute(bars []types.Bar, cfg Config) ([]Point, error) {
	if len(bars) < cfg.MinBars() {
		return nil, fmt.Errorf("%w: got %d bars, need %d", ErrInsufficientHistory, len(bars), cfg.MinBars())
	}

	closes := make([]float64, len(bars))
	vols := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		vols[i] = b.Volume
	}

	smaFast := smaSeries(closes, cfg.ShortWindow)
	smaSlow := smaSeries(closes, cfg.LongWindow)
	emaFast := emaSeries(closes, cfg.ShortWindow)
	emaSlow := emaSeries(closes, cfg.LongWindow)
	rsi := rsiSeries(closes, cfg.RSIPeriod)
	macd, macdSig, macdHist := macdSeries(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	bbUp, bbMid, bbLow := bollingerSeries(closes, cfg.BBWindow, cfg.BBStdDev)
	volSMA := smaSeries(vols, cfg.VolumeWindow)

	out := make([]Point, 0, len(bars)-cfg.warmup())
	for i := cfg.warmup(); i < len(bars); i++ {
		ind := types.IndicatorSet{
			SMAFast:    smaFast[i],
			SMASlow:    smaSlow[i],
			EMAFast:    emaFast[i],
			EMASlow:    emaSlow[i],
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: macdSig[i],
			MACDHist:   macdHist[i],
			BBUpper:    bbUp[i],
			BBMiddle:   bbMid[i],
			BBLower:    bbLow[i],
			VolSMA:     volSMA[i],
		}
		if hasNaN(ind) {
			continue
		}
		out = append(out, Point{Bar: bars[i], Ind: ind})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no bar has a complete indicator window", ErrInsufficientHistory)
	}
	return out, nil
}

// Summarize projects the last window aligned points into the rounded,
// bounded summary sent to the decision port. Rounding exists only to keep
// the payload small: 2 decimals for prices and indicators, integers for
// volume.
func Summarize(points []Point, window int) (types.MarketSummary, error) {
	if len(points) < window {
		return types.MarketSummary{}, fmt.Errorf("%w: got %d aligned bars, need %d", ErrInsufficientHistory, len(points), window)
	}
	last := points[len(points)-window:]

	s := types.MarketSummary{
		Close:      make([]float64, 0, window),
		RSI:        make([]float64, 0, window),
		MACD:       make([]float64, 0, window),
		MACDSignal: make([]float64, 0, window),
		BBUpper:    make([]float64, 0, window),
		BBLower:    make([]float64, 0, window),
		SMAFast:    make([]float64, 0, window),
		SMASlow:    make([]float64, 0, window),
		EMAFast:    make([]float64, 0, window),
		EMASlow:    make([]float64, 0, window),
		Volume:     make([]int64, 0, window),
		Timestamp:  make([]string, 0, window),
	}
	for _, p := range last {
		s.Close = append(s.Close, round2(p.Bar.Close))
		s.RSI = append(s.RSI, round2(p.Ind.RSI))
		s.MACD = append(s.MACD, round2(p.Ind.MACD))
		s.MACDSignal = append(s.MACDSignal, round2(p.Ind.MACDSignal))
		s.BBUpper = append(s.BBUpper, round2(p.Ind.BBUpper))
		s.BBLower = append(s.BBLower, round2(p.Ind.BBLower))
		s.SMAFast = append(s.SMAFast, round2(p.Ind.SMAFast))
		s.SMASlow = append(s.SMASlow, round2(p.Ind.SMASlow))
		s.EMAFast = append(s.EMAFast, round2(p.Ind.EMAFast))
		s.EMASlow = append(s.EMASlow, round2(p.Ind.EMASlow))
		s.Volume = append(s.Volume, int64(math.Round(p.Bar.Volume)))
		s.Timestamp = append(s.Timestamp, p.Bar.Ts.UTC().Format(time.RFC3339))
	}
	return s, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func hasNaN(ind types.IndicatorSet) bool {
	for _, v := range []float64{
		ind.SMAFast, ind.SMASlow, ind.EMAFast, ind.EMASlow, ind.RSI,
		ind.MACD, ind.MACDSignal, ind.MACDHist,
		ind.BBUpper, ind.BBMiddle, ind.BBLower, ind.VolSMA,
	} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// smaSeries returns the rolling mean with a NaN prefix of length n-1.
func smaSeries(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 || len(vals) < n {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= n {
			sum -= vals[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// emaSeries returns the exponential moving average seeded with the simple
// mean of the first full window. Tolerates a NaN prefix in the input so it
// can run over derived series (MACD signal line).
func emaSeries(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 {
		return out
	}
	start := 0
	for start < len(vals) && math.IsNaN(vals[start]) {
		start++
	}
	if len(vals)-start < n {
		return out
	}

	sum := 0.0
	for i := start; i < start+n; i++ {
		sum += vals[i]
	}
	seed := start + n - 1
	out[seed] = sum / float64(n)

	k := 2.0 / (float64(n) + 1.0)
	for i := seed + 1; i < len(vals); i++ {
		out[i] = (vals[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// rsiSeries computes Wilder-smoothed RSI; first value at index period.
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		gain, loss := 0.0, 0.0
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// macdSeries computes the MACD line, signal line, and histogram.
func macdSeries(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	emaF := emaSeries(closes, fast)
	emaS := emaSeries(closes, slow)

	macd = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(emaF[i]) && !math.IsNaN(emaS[i]) {
			macd[i] = emaF[i] - emaS[i]
		}
	}
	sig = emaSeries(macd, signal)

	hist = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(macd[i]) && !math.IsNaN(sig[i]) {
			hist[i] = macd[i] - sig[i]
		}
	}
	return macd, sig, hist
}

// bollingerSeries computes the upper/middle/lower bands with population
// standard deviation over the window.
func bollingerSeries(closes []float64, n int, k float64) (upper, middle, lower []float64) {
	middle = smaSeries(closes, n)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return upper, middle, lower
	}
	for i := n - 1; i < len(closes); i++ {
		m := middle[i]
		var ss float64
		for j := i - n + 1; j <= i; j++ {
			d := closes[j] - m
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(n))
		upper[i] = m + k*sd
		lower[i] = m - k*sd
	}
	return upper, middle, lower
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
