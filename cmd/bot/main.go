package main

import (
	"context"
	"log"
	"time"

	binance "sentiment_trader/internal/modules/binance_client"
	"sentiment_trader/internal/modules/binance_websocket"
	"sentiment_trader/internal/modules/bootstrap"
	"sentiment_trader/internal/modules/config"
	"sentiment_trader/internal/modules/health"
	"sentiment_trader/internal/modules/indicators"
	"sentiment_trader/internal/modules/postgres"
	"sentiment_trader/internal/modules/sentiment"
	"sentiment_trader/internal/modules/strategy"
	telegram "sentiment_trader/internal/modules/telegram_bot"
	"sentiment_trader/internal/runner"
	"sentiment_trader/pkg/logger"
	"sentiment_trader/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	// прогрев тянет историю по всем символам
	startTimeout = 3 * time.Minute
	// должно покрывать operation_timeout текущей операции
	stopTimeout = 3 * time.Minute
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	return logger.New(cfg.Service.LogLevel)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	tc := tracing.Config{Host: cfg.Tracing.Host, Port: cfg.Tracing.Port}
	if !tc.Enabled() {
		return nil
	}
	_, closer, err := tracing.InitTracer(tc)
	if err != nil {
		return err
	}
	log.Info("tracing enabled", zap.String("agent", cfg.Tracing.Host), zap.Int("port", cfg.Tracing.Port))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

func main() {
	app := fx.New(
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(newLogger),
		fx.Invoke(initTracing),
		config.Module(),
		postgres.Module(),
		binance.Module(),
		binance_websocket.Module(),
		indicators.Module(),
		strategy.Module(),
		sentiment.Module(),
		bootstrap.Module(),
		health.Module(),
		telegram.Module(),
		runner.Module(),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	sig := <-app.Done()
	logger.Info("received %s, shutting down", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
}
