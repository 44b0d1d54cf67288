package config

import (
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Env — секреты и оверрайды из окружения (.env подхватывается, если есть).
type Env struct {
	ConfigFile string

	BinanceAPIKey    string
	BinanceAPISecret string

	TelegramToken  string
	TelegramChatID int64

	DatabaseDSN string

	// Live задан только если TRADING_LIVE есть в окружении
	Live *bool

	SentimentURL    string
	SentimentAPIKey string

	LogLevel string
}

var envBindings = map[string]string{
	"config_file":        "CONFIG_FILE",
	"binance.api_key":    "BINANCE_API_KEY",
	"binance.api_secret": "BINANCE_API_SECRET",
	"telegram.token":     "TELEGRAM_TOKEN",
	"telegram.chat_id":   "TELEGRAM_CHAT_ID",
	"database.dsn":       "DATABASE_DSN",
	"trading.live":       "TRADING_LIVE",
	"sentiment.url":      "SENTIMENT_URL",
	"sentiment.api_key":  "SENTIMENT_API_KEY",
	"log.level":          "LOG_LEVEL",
}

func Load() (*Env, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	e := &Env{
		ConfigFile:       v.GetString("config_file"),
		BinanceAPIKey:    strings.TrimSpace(v.GetString("binance.api_key")),
		BinanceAPISecret: strings.TrimSpace(v.GetString("binance.api_secret")),
		TelegramToken:    v.GetString("telegram.token"),
		DatabaseDSN:      v.GetString("database.dsn"),
		SentimentURL:     v.GetString("sentiment.url"),
		SentimentAPIKey:  v.GetString("sentiment.api_key"),
		LogLevel:         v.GetString("log.level"),
	}
	if raw := v.GetString("telegram.chat_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			e.TelegramChatID = id
		}
	}
	if v.IsSet("trading.live") && v.GetString("trading.live") != "" {
		live := v.GetBool("trading.live")
		e.Live = &live
	}
	return e, nil
}
