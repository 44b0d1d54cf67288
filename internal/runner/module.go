package runner

import (
	binance "sentiment_trader/internal/modules/binance_client/service"
	bootstrap "sentiment_trader/internal/modules/bootstrap/service"
	"sentiment_trader/internal/modules/config"
	health "sentiment_trader/internal/modules/health/service"
	strategy "sentiment_trader/internal/modules/strategy/service"
	"sentiment_trader/internal/notify"
	"sentiment_trader/internal/runner/lifecycle"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewLifecycleManager,
			func(m *lifecycle.Manager) Lifecycle { return m },
			func(c *binance.Client) CandleSource { return c },
			func(e *strategy.Engine) Decider { return e },
			func(s *health.State) Health { return s },
			func(w *bootstrap.Warmuper) Warmer { return w },
			NewScheduler, // *Scheduler
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Scheduler, n notify.Notifier) {
			if t, ok := n.(interface{ SetSource(notify.StatusSource) }); ok {
				t.SetSource(s)
			}
			lc.Append(fx.Hook{
				OnStart: s.Start,
				OnStop:  s.Stop,
			})
		}),
	)
}

func NewLifecycleManager(ex lifecycle.Exchange, prices lifecycle.PriceSource, cfg *config.Config, log *zap.Logger) *lifecycle.Manager {
	t := cfg.Trading
	return lifecycle.NewManager(ex, prices, lifecycle.Config{
		TradePct:         t.TradePct,
		SlippagePct:      t.SlippagePct,
		FillTimeout:      t.FillTimeout,
		FillPollInterval: t.FillPollInterval,
	}, log)
}
