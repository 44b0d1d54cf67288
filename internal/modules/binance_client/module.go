package binance_client

import (
	"sentiment_trader/internal/modules/binance_client/service"
	"sentiment_trader/internal/modules/config"
	"sentiment_trader/internal/runner/lifecycle"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module: REST-клиент Binance + исполнение (live или paper по trading.live).
func Module() fx.Option {
	return fx.Module("binance_client",
		fx.Provide(
			service.NewClient,
			NewExchange,
		),
	)
}

func NewExchange(cfg *config.Config, c *service.Client, log *zap.Logger) lifecycle.Exchange {
	if cfg.Trading.Live {
		log.Warn("LIVE trading enabled, orders go to the exchange")
		return c
	}
	log.Info("dry-run: orders are filled on the paper ledger",
		zap.String("quote", cfg.Trading.QuoteAsset), zap.Float64("balance", cfg.Trading.PaperQuoteBalance),
		zap.Bool("order_test", c.HasCredentials()))
	return service.NewPaper(c, cfg.Trading.QuoteAsset, cfg.Trading.PaperQuoteBalance)
}
