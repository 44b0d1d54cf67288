package service

import (
	"sentiment_trader/internal/metrics"
	"sentiment_trader/internal/models"

	"go.uber.org/zap"
)

// Engine — Decide + лог и счётчик решений.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log.Named("strategy")}
}

func (e *Engine) Decide(symbol string, in Input) models.Decision {
	d := Decide(in)
	metrics.Decisions.WithLabelValues(symbol, string(d)).Inc()

	ind := in.Indicators
	lvl := zap.DebugLevel
	if d != models.DecisionHold {
		lvl = zap.InfoLevel
	}
	if ce := e.log.Check(lvl, "decision"); ce != nil {
		ce.Write(
			zap.String("symbol", symbol),
			zap.String("decision", string(d)),
			zap.String("direction", string(in.Direction)),
			zap.Float64("sentiment", in.Sentiment),
			zap.Bool("ready", ind.Ready),
			zap.Float64("close", ind.Close),
			zap.Float64("ema", ind.EMA),
			zap.Float64("macd", ind.MACD),
			zap.Float64("macd_signal", ind.MACDSignal),
			zap.Float64("obv_slope", ind.OBVSlope),
			zap.Float64("atr", ind.ATR),
			zap.Float64("atr_mean", ind.ATRMean),
		)
	}
	return d
}
