package sentiment

import (
	"sentiment_trader/internal/modules/config"
	"sentiment_trader/internal/modules/sentiment/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module("sentiment",
		fx.Provide(
			service.NewBook,
			NewSource,
			func(cfg *config.Config) (service.Window, error) {
				s := cfg.Sentiment
				return service.NewWindow(s.WindowStart, s.WindowEnd, s.MinInterval, s.Timezone)
			},
		),
	)
}

// NewSource: без sentiment.url все оценки нейтральные, входы по сентименту не откроются.
func NewSource(cfg *config.Config, log *zap.Logger) service.Source {
	if cfg.Sentiment.URL == "" {
		log.Warn("sentiment url not configured, scores stay neutral")
		return service.Static{}
	}
	return service.NewHTTPSource(cfg.Sentiment.URL, cfg.Sentiment.APIKey, cfg.Sentiment.Timeout, log)
}
