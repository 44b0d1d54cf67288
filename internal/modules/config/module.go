package config

import (
	envcfg "sentiment_trader/internal/config"

	"go.uber.org/fx"
)

// Module: окружение -> YAML -> валидация. Ошибка валидации роняет старт приложения.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			envcfg.Load,
			NewConfig,
		),
	)
}
