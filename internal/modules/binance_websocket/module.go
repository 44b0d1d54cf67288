package binance_websocket

import (
	"context"
	"sync"

	binance "sentiment_trader/internal/modules/binance_client/service"
	"sentiment_trader/internal/modules/binance_websocket/service"
	"sentiment_trader/internal/modules/config"
	health "sentiment_trader/internal/modules/health/service"
	"sentiment_trader/internal/runner/lifecycle"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module поднимает поток цен miniTicker и отдаёт lifecycle.PriceSource (кэш + REST).
func Module() fx.Option {
	return fx.Module("binance_websocket",
		fx.Provide(
			service.NewPriceCache,
			func(cfg *config.Config, cache *service.PriceCache, log *zap.Logger) *service.Stream {
				syms := make([]string, 0, len(cfg.Instruments))
				for _, in := range cfg.Instruments {
					syms = append(syms, in.Symbol)
				}
				return service.NewStream(cfg.Exchange.WSURL, syms, cache, log)
			},
			fx.Annotate(
				func(cfg *config.Config, cache *service.PriceCache, c *binance.Client, log *zap.Logger) *service.PriceFeed {
					return service.NewPriceFeed(cache, c, cfg.Exchange.PriceMaxAge, log)
				},
				fx.As(new(lifecycle.PriceSource)),
			),
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Stream, state *health.State) {
			s.OnConnState(state.SetWSConnected)
			var (
				cancel context.CancelFunc
				wg     sync.WaitGroup
			)
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					var ctx context.Context
					ctx, cancel = context.WithCancel(context.Background())
					wg.Add(1)
					go func() {
						defer wg.Done()
						s.Run(ctx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					done := make(chan struct{})
					go func() { wg.Wait(); close(done) }()
					select {
					case <-done:
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}
