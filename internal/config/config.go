// Package config exposes strongly typed application configuration structs
// loaded from YAML, with secrets overlaid from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes the market data source and ingest tuning.
type Feed struct {
	Provider      string   `yaml:"provider" validate:"oneof=stub dnse"`
	URL           string   `yaml:"url"`
	Symbols       []string `yaml:"symbols" validate:"min=1"`
	QueueSize     int      `yaml:"queue_size"`
	DedupWindowMs int      `yaml:"dedup_window_ms"`
	MaxReconnects int      `yaml:"max_reconnects"`
}

// Series bounds the rolling per-symbol history.
type Series struct {
	TickCapacity   int `yaml:"tick_capacity"`
	CandleCapacity int `yaml:"candle_capacity"`
	CandleSecs     int `yaml:"candle_secs"`
}

// StrategyParams groups the tunable knobs shared by the strategy set.
type StrategyParams struct {
	BreakoutVolumeMult float64 `yaml:"breakout_volume_mult"`
	MAShort            int     `yaml:"ma_short"`
	MALong             int     `yaml:"ma_long"`
	RSIPeriod          int     `yaml:"rsi_period"`
	RSIOversold        float64 `yaml:"rsi_oversold"`
	RSIOverbought      float64 `yaml:"rsi_overbought"`
	RSIHysteresis      float64 `yaml:"rsi_hysteresis"`
	SurgeVolumeMult    float64 `yaml:"surge_volume_mult"`
	BBPeriod           int     `yaml:"bb_period"`
	BBStdDev           float64 `yaml:"bb_std_dev"`
	ZScoreEntry        float64 `yaml:"z_score_entry"`
}

// Strategy selects which evaluators run and how signal bursts are damped.
type Strategy struct {
	Enabled        []string       `yaml:"enabled" validate:"min=1"`
	WindowCandles  int            `yaml:"window_candles"`
	CooldownSecs   int            `yaml:"cooldown_secs"`
	CooldownPolicy string         `yaml:"cooldown_policy" validate:"omitempty,oneof=suppress_newer replace_older"`
	Params         StrategyParams `yaml:"params"`
}

// Risk encodes sizing and the guard-rails around entries and exits.
type Risk struct {
	InitialCapital  float64 `yaml:"initial_capital" validate:"gt=0"`
	RiskPerTrade    float64 `yaml:"risk_per_trade" validate:"gt=0,lte=1"`
	MaxPositions    int     `yaml:"max_positions" validate:"gt=0"`
	MaxPositionSize float64 `yaml:"max_position_size"`
	StopLossPct     float64 `yaml:"stop_loss_pct" validate:"gt=0,lt=1"`
	TrailActivation float64 `yaml:"trail_activation"`
	TrailPct        float64 `yaml:"trail_pct"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`
	LotSize         float64 `yaml:"lot_size"`
	StopPollSecs    int     `yaml:"stop_poll_secs"`
}

// DCA schedules periodic fixed-notional accumulation buys.
type DCA struct {
	Enabled      bool     `yaml:"enabled"`
	Symbols      []string `yaml:"symbols"`
	Amount       float64  `yaml:"amount"`
	IntervalMins int      `yaml:"interval_mins"`
}

// Execution selects the venue backend and bounds submission retries.
type Execution struct {
	Mode          string `yaml:"mode" validate:"oneof=paper live"`
	RetryMax      int    `yaml:"retry_max"`
	RetryBaseMs   int    `yaml:"retry_base_ms"`
	SubmitTimeout int    `yaml:"submit_timeout_secs"`
}

// Paper captures the simulated account settings.
type Paper struct {
	StartingCash    float64 `yaml:"starting_cash"`
	SlippageBps     float64 `yaml:"slippage_bps"`
	PartialFillProb float64 `yaml:"partial_fill_probability"`
	FillsPath       string  `yaml:"fills_path"`
}

// Broker holds the brokerage API connection settings. Credentials never
// live in YAML; they are overlaid from the environment.
type Broker struct {
	BaseURL   string `yaml:"base_url"`
	AccountID string `yaml:"account_id"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	Token     string `yaml:"-"`
}

// Portfolio controls the periodic portfolio summary log line.
type Portfolio struct {
	SummaryMins int `yaml:"summary_mins"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Feed      Feed      `yaml:"feed" validate:"required"`
	Series    Series    `yaml:"series"`
	Strategy  Strategy  `yaml:"strategy" validate:"required"`
	Risk      Risk      `yaml:"risk" validate:"required"`
	DCA       DCA       `yaml:"dca"`
	Execution Execution `yaml:"execution" validate:"required"`
	Paper     Paper     `yaml:"paper"`
	Broker    Broker    `yaml:"broker"`
	Portfolio Portfolio `yaml:"portfolio"`
}

// Load reads a YAML file, overlays environment secrets, and validates the
// result. Live mode fails fast on missing brokerage credentials rather
// than discovering them at the first order.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	config.Broker.APIKey = os.Getenv("DNSE_API_KEY")
	config.Broker.APISecret = os.Getenv("DNSE_API_SECRET")
	config.Broker.Token = os.Getenv("DNSE_TOKEN")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate enforces structural constraints and the live-mode credential
// requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Feed.Provider == "dnse" && c.Feed.URL == "" {
		return fmt.Errorf("validate config: feed.url is required for the dnse provider")
	}
	if c.Execution.Mode == "live" {
		if c.Broker.BaseURL == "" || c.Broker.AccountID == "" {
			return fmt.Errorf("validate config: broker.base_url and broker.account_id are required in live mode")
		}
		if c.Broker.APIKey == "" || c.Broker.APISecret == "" {
			return fmt.Errorf("validate config: DNSE_API_KEY and DNSE_API_SECRET must be set in live mode")
		}
	}
	if c.DCA.Enabled && (c.DCA.Amount <= 0 || c.DCA.IntervalMins <= 0 || len(c.DCA.Symbols) == 0) {
		return fmt.Errorf("validate config: dca requires symbols, amount and interval")
	}
	return nil
}

// Durations with sane defaults for zero-valued knobs.

func (f Feed) DedupWindow() time.Duration {
	if f.DedupWindowMs <= 0 {
		return time.Second
	}
	return time.Duration(f.DedupWindowMs) * time.Millisecond
}

func (s Strategy) Cooldown() time.Duration {
	if s.CooldownSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.CooldownSecs) * time.Second
}

func (r Risk) StopPoll() time.Duration {
	if r.StopPollSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.StopPollSecs) * time.Second
}

func (d DCA) Interval() time.Duration {
	return time.Duration(d.IntervalMins) * time.Minute
}

func (p Portfolio) SummaryInterval() time.Duration {
	if p.SummaryMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.SummaryMins) * time.Minute
}

func (e Execution) RetryBase() time.Duration {
	if e.RetryBaseMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(e.RetryBaseMs) * time.Millisecond
}

func (e Execution) Timeout() time.Duration {
	if e.SubmitTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.SubmitTimeout) * time.Second
}

func (s Series) CandleInterval() time.Duration {
	if s.CandleSecs <= 0 {
		return time.Minute
	}
	return time.Duration(s.CandleSecs) * time.Second
}
