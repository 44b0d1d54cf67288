package indicators

import (
	"sentiment_trader/internal/modules/indicators/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("indicators",
		fx.Provide(service.NewParams),
	)
}
