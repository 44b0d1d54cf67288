package bootstrap

import (
	binance "sentiment_trader/internal/modules/binance_client/service"
	bootstrap "sentiment_trader/internal/modules/bootstrap/service"

	"go.uber.org/fx"
)

// Module — прогрев запускает планировщик в своём OnStart, до первого цикла.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(c *binance.Client) bootstrap.MarketData { return c },
			bootstrap.NewWarmuper,
		),
	)
}
