package telegram

import (
	"context"

	"sentiment_trader/internal/modules/config"
	"sentiment_trader/internal/notify"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module — уведомления оператору: Telegram при наличии токена, иначе лог.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(newNotifier),
	)
}

func newNotifier(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Warn("telegram not configured, notifications go to the log")
		return notify.NewStdout(log)
	}
	t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if err != nil {
		// без Telegram торговля продолжается, алерты в лог
		log.Error("telegram init failed, notifications go to the log", zap.Error(err))
		return notify.NewStdout(log)
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			return t.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			t.Stop()
			return nil
		},
	})
	return t
}
