package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	envcfg "sentiment_trader/internal/config"
	"sentiment_trader/internal/helper"

	"gopkg.in/yaml.v2"
)

const (
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
)

type InstrumentConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"` // имя монеты для сентимента
}

type ExchangeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	WSURL          string        `yaml:"ws_url"`
	APIKey         string        `yaml:"-"`
	APISecret      string        `yaml:"-"`
	RecvWindow     int           `yaml:"recv_window"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	PriceMaxAge    time.Duration `yaml:"price_max_age"` // старше — берём цену через REST
}

type TradingConfig struct {
	Live              bool          `yaml:"live"`
	QuoteAsset        string        `yaml:"quote_asset"`
	Interval          string        `yaml:"interval"`
	TrailingStopPct   float64       `yaml:"trailing_stop_pct"`
	TradePct          float64       `yaml:"trade_pct"`
	SlippagePct       float64       `yaml:"slippage_pct"`
	LoopInterval      time.Duration `yaml:"loop_interval"`
	FillTimeout       time.Duration `yaml:"fill_timeout"`
	FillPollInterval  time.Duration `yaml:"fill_poll_interval"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	PaperQuoteBalance float64       `yaml:"paper_quote_balance"`
}

type IndicatorConfig struct {
	WarmupCandles  int `yaml:"warmup_candles"`
	MaxHistory     int `yaml:"max_history"`
	EMAPeriod      int `yaml:"ema_period"`
	MACDFast       int `yaml:"macd_fast"`
	MACDSlow       int `yaml:"macd_slow"`
	MACDSignal     int `yaml:"macd_signal"`
	OBVSlopePeriod int `yaml:"obv_slope_period"`
	ATRPeriod      int `yaml:"atr_period"`
	ATRMeanPeriod  int `yaml:"atr_mean_period"`
}

type SentimentConfig struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"-"`
	Timeout     time.Duration `yaml:"timeout"`
	WindowStart int           `yaml:"window_start_minute"`
	WindowEnd   int           `yaml:"window_end_minute"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timezone    string        `yaml:"timezone"`
}

// Config ...
type Config struct {
	Service struct {
		Name       string `yaml:"name"`
		HealthAddr string `yaml:"health_addr"`
		LogLevel   string `yaml:"log_level"`
	} `yaml:"service"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	Exchange    ExchangeConfig     `yaml:"exchange"`
	Trading     TradingConfig      `yaml:"trading"`
	Indicators  IndicatorConfig    `yaml:"indicators"`
	Sentiment   SentimentConfig    `yaml:"sentiment"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// Default — значения как у live-стратегии.
func Default() Config {
	var c Config
	c.Service.Name = "sentiment_trader"
	c.Service.HealthAddr = getenvDefault("HEALTH_ADDR", ":8080")
	c.Service.LogLevel = "info"

	c.Exchange = ExchangeConfig{
		BaseURL:        getenvDefault("BINANCE_BASE_URL", "https://api.binance.com"),
		WSURL:          getenvDefault("BINANCE_WS_URL", "wss://stream.binance.com:9443/stream"),
		RecvWindow:     intFromEnv("BINANCE_RECV_WINDOW", 5000),
		RequestTimeout: durationFromEnv("REQUEST_TIMEOUT", "10s"),
		MaxRetries:     intFromEnv("MAX_RETRIES", 3),
		RetryBackoff:   durationFromEnv("RETRY_BACKOFF", "500ms"),
		PriceMaxAge:    durationFromEnv("PRICE_MAX_AGE", "30s"),
	}
	c.Trading = TradingConfig{
		Live:              boolFromEnv("TRADING_LIVE", false),
		QuoteAsset:        "USDT",
		Interval:          getenvDefault("INTERVAL", "1h"),
		TrailingStopPct:   floatFromEnv("TRAILING_STOP_PCT", 0.05),
		TradePct:          floatFromEnv("TRADE_PCT", 0.2),
		SlippagePct:       floatFromEnv("SLIPPAGE_PCT", 0.01),
		LoopInterval:      durationFromEnv("LOOP_INTERVAL", "1m"),
		FillTimeout:       durationFromEnv("FILL_TIMEOUT", "15s"),
		FillPollInterval:  durationFromEnv("FILL_POLL_INTERVAL", "1s"),
		OperationTimeout:  durationFromEnv("OPERATION_TIMEOUT", "2m"),
		PaperQuoteBalance: floatFromEnv("PAPER_QUOTE_BALANCE", 1000),
	}
	c.Indicators = IndicatorConfig{
		WarmupCandles:  intFromEnv("WARMUP_CANDLES", 100),
		MaxHistory:     intFromEnv("MAX_HISTORY", 500),
		EMAPeriod:      50,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		OBVSlopePeriod: 14,
		ATRPeriod:      14,
		ATRMeanPeriod:  50,
	}
	c.Sentiment = SentimentConfig{
		Timeout:     durationFromEnv("SENTIMENT_TIMEOUT", "2m"),
		WindowStart: 17,
		WindowEnd:   33,
		MinInterval: 40 * time.Minute,
		Timezone:    getenvDefault("SENTIMENT_TZ", "Australia/Adelaide"),
	}
	c.Instruments = []InstrumentConfig{
		{Symbol: "DOGEUSDT", Name: "dogecoin"},
		{Symbol: "TRUMPUSDT", Name: "trump"},
		{Symbol: "BTCUSDT", Name: "bitcoin"},
		{Symbol: "ADAUSDT", Name: "cardano"},
		{Symbol: "XRPUSDT", Name: "ripple"},
	}
	return c
}

func NewConfig(env *envcfg.Env) (*Config, error) {
	config := Default()

	configFileName := env.ConfigFile
	if configFileName == "" {
		configFileName = defaultConfigFile
	}
	if err := decodeFile(filepath.Join(configDir, configFileName), &config, env.ConfigFile != ""); err != nil {
		return nil, err
	}

	applyEnv(&config, env)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// decodeFile: явно заданный файл обязан существовать, дефолтный — нет.
func decodeFile(path string, config *Config, required bool) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(config *Config, env *envcfg.Env) {
	config.Exchange.APIKey = env.BinanceAPIKey
	config.Exchange.APISecret = env.BinanceAPISecret
	config.Sentiment.APIKey = env.SentimentAPIKey

	if env.TelegramToken != "" {
		config.Telegram.Token = env.TelegramToken
	}
	if env.TelegramChatID != 0 {
		config.Telegram.ChatID = env.TelegramChatID
	}
	if env.DatabaseDSN != "" {
		config.DB = env.DatabaseDSN
	}
	if env.SentimentURL != "" {
		config.Sentiment.URL = env.SentimentURL
	}
	if env.LogLevel != "" {
		config.Service.LogLevel = env.LogLevel
	}
	if env.Live != nil {
		config.Trading.Live = *env.Live
	}
}

func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("config: no instruments")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for _, in := range c.Instruments {
		if in.Symbol == "" {
			return fmt.Errorf("config: instrument without symbol")
		}
		if _, ok := seen[in.Symbol]; ok {
			return fmt.Errorf("config: duplicate instrument %s", in.Symbol)
		}
		seen[in.Symbol] = struct{}{}
	}
	t := c.Trading
	if t.TradePct <= 0 || t.TradePct > 1 {
		return fmt.Errorf("config: trade_pct must be in (0,1], got %v", t.TradePct)
	}
	if t.TrailingStopPct <= 0 || t.TrailingStopPct >= 1 {
		return fmt.Errorf("config: trailing_stop_pct must be in (0,1), got %v", t.TrailingStopPct)
	}
	if t.SlippagePct < 0 || t.SlippagePct >= 0.5 {
		return fmt.Errorf("config: slippage_pct must be in [0,0.5), got %v", t.SlippagePct)
	}
	if _, err := helper.IntervalDuration(t.Interval); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if t.LoopInterval <= 0 {
		return fmt.Errorf("config: loop_interval must be positive")
	}
	s := c.Sentiment
	if s.WindowStart < 0 || s.WindowEnd > 59 || s.WindowStart > s.WindowEnd {
		return fmt.Errorf("config: sentiment window %d..%d is invalid", s.WindowStart, s.WindowEnd)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("config: sentiment timezone: %w", err)
	}
	if t.Live && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("config: BINANCE_API_KEY and BINANCE_API_SECRET are required in live mode")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
