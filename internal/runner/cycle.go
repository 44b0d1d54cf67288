package runner

import (
	"context"
	"fmt"
	"time"

	"sentiment_trader/internal/metrics"
	"sentiment_trader/internal/models"
	indicators "sentiment_trader/internal/modules/indicators/service"
	strategy "sentiment_trader/internal/modules/strategy/service"
	"sentiment_trader/internal/runner/lifecycle"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const storeTimeout = 10 * time.Second

type opFunc func(ctx context.Context, inst models.Instrument, pos models.PositionState) (lifecycle.Result, error)

// processInstrument: новая закрытая свеча -> индикаторы -> решение -> операция.
// Ошибка или паника по одному символу не мешает остальным.
func (s *Scheduler) processInstrument(ctx context.Context, st *InstrumentState) {
	sym := st.Instrument.Symbol
	defer func() {
		if r := recover(); r != nil {
			metrics.Skips.WithLabelValues(sym, "panic").Inc()
			s.log.Error("instrument cycle panicked", zap.String("symbol", sym), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if st.Halted != "" {
		metrics.Skips.WithLabelValues(sym, "halted").Inc()
		return
	}

	candle, err := s.candles.LatestClosedCandle(ctx, sym, s.cfg.Trading.Interval)
	if err != nil {
		metrics.Skips.WithLabelValues(sym, "market_data").Inc()
		s.log.Warn("latest candle fetch failed", zap.String("symbol", sym), zap.Error(err))
		return
	}
	if !candle.CloseTime.After(st.Pipeline.LastCloseTime()) {
		return
	}

	set, err := st.Pipeline.OnNewCandle(candle)
	if err != nil {
		if errors.Is(err, indicators.ErrStaleCandle) {
			return
		}
		metrics.Skips.WithLabelValues(sym, "indicators").Inc()
		s.log.Warn("candle rejected", zap.String("symbol", sym), zap.Error(err))
		return
	}
	if !set.Ready {
		metrics.Skips.WithLabelValues(sym, "warmup").Inc()
		s.log.Debug("indicators warming up", zap.String("symbol", sym), zap.Int("candles", st.Pipeline.Len()))
		return
	}

	score := s.book.Score(sym)
	decision := s.decider.Decide(sym, strategy.Input{
		Sentiment:  score,
		Indicators: set,
		Direction:  st.Position.Direction,
	})
	s.dispatch(ctx, st, decision)
}

// dispatch: входы только из flat, выходы только из своего направления.
// Разворота одним решением нет.
func (s *Scheduler) dispatch(ctx context.Context, st *InstrumentState, d models.Decision) {
	dir := st.Position.Direction
	switch {
	case d == models.DecisionBuy && dir == models.DirectionNone:
		s.runOp(ctx, st, "open_long", s.lm.OpenLong)
	case d == models.DecisionSell && dir == models.DirectionNone:
		s.runOp(ctx, st, "open_short", s.lm.OpenShort)
	case d == models.DecisionCloseLong && dir == models.DirectionLong:
		s.runOp(ctx, st, "close_long", s.lm.CloseLong)
	case d == models.DecisionCloseShort && dir == models.DirectionShort:
		s.runOp(ctx, st, "close_short", s.lm.CloseShort)
	case d != models.DecisionHold:
		s.log.Debug("decision ignored for current position",
			zap.String("symbol", st.Instrument.Symbol), zap.String("decision", string(d)), zap.String("direction", string(dir)))
	}
}

// runTrailing: по открытой позиции двигаем экстремум и закрываем, если стоп пробит.
func (s *Scheduler) runTrailing(ctx context.Context, st *InstrumentState) {
	sym := st.Instrument.Symbol
	defer func() {
		if r := recover(); r != nil {
			metrics.Skips.WithLabelValues(sym, "panic").Inc()
			s.log.Error("trailing check panicked", zap.String("symbol", sym), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if st.Halted != "" || !st.Position.IsOpen() {
		return
	}

	price, err := s.prices.Price(ctx, sym)
	if err != nil {
		metrics.Skips.WithLabelValues(sym, "price").Inc()
		s.log.Warn("price unavailable for trailing stop", zap.String("symbol", sym), zap.Error(err))
		return
	}

	next, tr := s.trail.Update(st.Position, price)
	if tr.Moved {
		next.UpdatedAt = s.now().UTC()
		s.setPosition(ctx, st, next)
	}
	if !tr.Fire {
		return
	}

	dir := st.Position.Direction
	metrics.TrailingStops.WithLabelValues(sym, string(dir)).Inc()
	s.log.Info("trailing stop triggered",
		zap.String("symbol", sym),
		zap.String("direction", string(dir)),
		zap.Float64("price", price),
		zap.Float64("extremum", tr.Extremum),
		zap.Float64("stop", tr.Stop))
	s.notifier.Sendf("🛑 %s trailing stop %s: price %.6g, extremum %.6g, stop %.6g", sym, dir, price, tr.Extremum, tr.Stop)

	switch dir {
	case models.DirectionLong:
		s.runOp(ctx, st, "trailing_close_long", s.lm.CloseLong)
	case models.DirectionShort:
		s.runOp(ctx, st, "trailing_close_short", s.lm.CloseShort)
	}
}

// runOp: операция живёт в своём контексте с operation_timeout и не
// прерывается отменой цикла, иначе маржинальная цепочка рвётся посередине.
func (s *Scheduler) runOp(ctx context.Context, st *InstrumentState, op string, fn opFunc) {
	sym := st.Instrument.Symbol
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Trading.OperationTimeout)
	defer cancel()

	s.inflight.Store(&inflightOp{Symbol: sym, Op: op, Started: s.now()})
	defer s.inflight.Store(nil)

	res, err := fn(opCtx, st.Instrument, st.Position)
	if err != nil {
		s.onOpError(ctx, st, op, err)
		return
	}

	switch res.Outcome {
	case lifecycle.OutcomeSkipped:
		metrics.Skips.WithLabelValues(sym, "below_minimum").Inc()
		s.log.Info("order size below exchange minimum", zap.String("symbol", sym), zap.String("op", op))
		return
	case lifecycle.OutcomeNoPosition, lifecycle.OutcomeAlreadyOpen:
		return
	}

	s.setPosition(ctx, st, res.Position)
	s.notifier.Send(describeResult(sym, op, res))
}

func (s *Scheduler) onOpError(ctx context.Context, st *InstrumentState, op string, err error) {
	sym := st.Instrument.Symbol

	if pm, ok := lifecycle.IsPartialMargin(err); ok {
		reason := fmt.Sprintf("%s failed at %s", pm.Operation, pm.Step)
		s.halt(st, reason)
		metrics.PartialMargin.WithLabelValues(sym, pm.Step).Inc()
		s.log.Error("partial margin operation, instrument halted",
			zap.String("symbol", sym),
			zap.String("operation", pm.Operation),
			zap.String("step", pm.Step),
			zap.Strings("done", pm.Done),
			zap.Error(pm.Err))

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		inc := models.MarginIncident{
			Symbol:    sym,
			Operation: pm.Operation,
			Step:      pm.Step,
			Detail:    pm.Error(),
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.RecordIncident(sctx, inc); err != nil {
			s.log.Error("failed to record margin incident", zap.String("symbol", sym), zap.Error(err))
		}
		s.notifier.Sendf("🚨 %s\nTrading on %s is halted until manual reconciliation and restart.", pm.Error(), sym)
		return
	}

	if errors.Is(err, lifecycle.ErrNotFilled) {
		metrics.Skips.WithLabelValues(sym, "not_filled").Inc()
		s.log.Warn("order not filled", zap.String("symbol", sym), zap.String("op", op))
		return
	}

	metrics.Skips.WithLabelValues(sym, "order_error").Inc()
	s.log.Warn("operation failed", zap.String("symbol", sym), zap.String("op", op), zap.Error(err))
	s.notifier.Sendf("⚠️ %s %s failed: %v", sym, op, err)
}

func (s *Scheduler) halt(st *InstrumentState, reason string) {
	s.mu.Lock()
	st.Halted = reason
	s.mu.Unlock()
	s.health.SetHalted(st.Instrument.Symbol, reason)
}

// setPosition меняет позицию в памяти и пишет её в хранилище.
// Ошибка записи не откатывает память: биржа уже исполнила.
func (s *Scheduler) setPosition(ctx context.Context, st *InstrumentState, pos models.PositionState) {
	s.mu.Lock()
	st.Position = pos
	s.mu.Unlock()
	setDirectionGauge(pos)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := s.store.Save(sctx, pos); err != nil {
		s.log.Error("failed to persist position", zap.String("symbol", pos.Symbol), zap.Error(err))
	}
}

func describeResult(sym, op string, res lifecycle.Result) string {
	msg := fmt.Sprintf("✅ %s %s: qty %s @ %.6g", sym, op, res.Order.ExecutedQty, res.Order.AvgPrice)
	if res.Outcome == lifecycle.OutcomePartial {
		msg += " (partially filled)"
	}
	if res.Outcome == lifecycle.OutcomeNothingToSell {
		msg = fmt.Sprintf("ℹ️ %s %s: nothing to sell, position marked flat", sym, op)
	}
	return msg
}
