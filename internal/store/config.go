package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string   `yaml:"mode"`        // DRY_RUN or LIVE
	DataSource  string   `yaml:"data_source"` // STATIC or LIVE
	Assets      []string `yaml:"assets"`
	PollSeconds int      `yaml:"poll_seconds"`
	Concurrent  bool     `yaml:"concurrent"`

	MinCycleSeconds  int   `yaml:"min_cycle_seconds"`
	AllowedIntervals []int `yaml:"allowed_intervals"`
	IntervalsFile    string `yaml:"intervals_file"`

	LookbackDays       int    `yaml:"lookback_days"`
	BarSize            string `yaml:"bar_size"`
	SummaryBars        int    `yaml:"summary_bars"`
	ReflectionInterval int    `yaml:"reflection_interval"`

	LogsDir string `yaml:"logs_dir"`

	Indicators struct {
		ShortWindow  int     `yaml:"short_window"`
		LongWindow   int     `yaml:"long_window"`
		RSIPeriod    int     `yaml:"rsi_period"`
		MACDFast     int     `yaml:"macd_fast"`
		MACDSlow     int     `yaml:"macd_slow"`
		MACDSignal   int     `yaml:"macd_signal"`
		BBWindow     int     `yaml:"bb_window"`
		BBStdDev     float64 `yaml:"bb_stddev"`
		VolumeWindow int     `yaml:"volume_window"`
	} `yaml:"indicators"`

	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"llm"`

	Hub struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"hub"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.DataSource != "STATIC" && c.DataSource != "LIVE" {
		return fmt.Errorf("invalid data_source '%s': must be 'STATIC' or 'LIVE'", c.DataSource)
	}
	if len(c.Assets) == 0 {
		return errors.New("assets cannot be empty")
	}
	if c.PollSeconds < c.MinCycleSeconds {
		return fmt.Errorf("poll_seconds must be >= min_cycle_seconds (%d), got %d", c.MinCycleSeconds, c.PollSeconds)
	}
	if c.ReflectionInterval <= 0 {
		return fmt.Errorf("reflection_interval must be positive, got %d", c.ReflectionInterval)
	}
	if c.SummaryBars <= 0 {
		return fmt.Errorf("summary_bars must be positive, got %d", c.SummaryBars)
	}
	for _, v := range c.AllowedIntervals {
		if v < c.MinCycleSeconds {
			return fmt.Errorf("allowed interval %d below min_cycle_seconds %d", v, c.MinCycleSeconds)
		}
	}
	if c.Indicators.ShortWindow >= c.Indicators.LongWindow {
		return fmt.Errorf("indicators.short_window (%d) must be below long_window (%d)",
			c.Indicators.ShortWindow, c.Indicators.LongWindow)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.DataSource == "" {
		c.DataSource = "STATIC"
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 300
	}
	if c.MinCycleSeconds == 0 {
		c.MinCycleSeconds = 5
	}
	if len(c.AllowedIntervals) == 0 {
		c.AllowedIntervals = []int{60, 300, 900, 1800, 3600}
	}
	if c.IntervalsFile == "" {
		c.IntervalsFile = "interval_settings.json"
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = 30
	}
	if c.BarSize == "" {
		c.BarSize = "1h"
	}
	if c.SummaryBars == 0 {
		c.SummaryBars = 30
	}
	if c.ReflectionInterval == 0 {
		c.ReflectionInterval = 10
	}
	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}
	ind := &c.Indicators
	if ind.ShortWindow == 0 {
		ind.ShortWindow = 20
	}
	if ind.LongWindow == 0 {
		ind.LongWindow = 50
	}
	if ind.RSIPeriod == 0 {
		ind.RSIPeriod = 14
	}
	if ind.MACDFast == 0 {
		ind.MACDFast = 12
	}
	if ind.MACDSlow == 0 {
		ind.MACDSlow = 26
	}
	if ind.MACDSignal == 0 {
		ind.MACDSignal = 9
	}
	if ind.BBWindow == 0 {
		ind.BBWindow = 20
	}
	if ind.BBStdDev == 0 {
		ind.BBStdDev = 2.0
	}
	if ind.VolumeWindow == 0 {
		ind.VolumeWindow = 20
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 400
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.Hub.Addr == "" {
		c.Hub.Addr = ":8090"
	}
}
