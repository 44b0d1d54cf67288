package lifecycle

import (
	"context"
	"fmt"

	"sentiment_trader/internal/helper"
	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OpenLong — спот, одна лимитная покупка по current*(1+slippage).
func (m *Manager) OpenLong(ctx context.Context, inst models.Instrument, pos models.PositionState) (Result, error) {
	if pos.IsOpen() {
		return Result{Outcome: OutcomeAlreadyOpen, Position: pos}, nil
	}
	log := m.log.With(zap.String("symbol", inst.Symbol), zap.String("op", "open_long"))

	price, err := m.prices.Price(ctx, inst.Symbol)
	if err != nil {
		return Result{}, errors.Wrap(err, "price")
	}
	limit := LimitPrice(price, m.cfg.SlippagePct, inst, models.SideBuy)

	quote, err := m.ex.FreeBalance(ctx, inst.QuoteAsset)
	if err != nil {
		return Result{}, errors.Wrapf(err, "%s balance", inst.QuoteAsset)
	}
	qty, ok := CalcQuantity(quote, m.cfg.TradePct, limit, inst)
	if !ok {
		log.Info("quantity below minimum, skipping",
			zap.Stringer("qty", qty), zap.Stringer("minQty", inst.MinQty), zap.Stringer("quote", quote))
		return Result{Outcome: OutcomeSkipped, Position: pos, Quantity: qty, Price: limit}, nil
	}

	order, err := m.execute(ctx, m.intent(inst, models.SideBuy, qty, limit, false))
	if err != nil {
		return Result{}, err
	}
	if !order.Filled() {
		return Result{}, errors.Wrapf(ErrNotFilled, "buy %s %s @ %s", inst.Symbol, qty, limit)
	}

	now := m.now().UTC()
	next := models.PositionState{
		Symbol:     inst.Symbol,
		Direction:  models.DirectionLong,
		Quantity:   order.ExecutedQty,
		EntryPrice: order.AvgPrice,
		Extremum:   order.AvgPrice,
		OpenedAt:   now,
		UpdatedAt:  now,
	}
	log.Info("long opened", zap.Stringer("qty", order.ExecutedQty), zap.Float64("entry", order.AvgPrice))
	return Result{Outcome: outcomeOf(order), Position: next, Order: order, Quantity: qty, Price: limit}, nil
}

// CloseLong — продаём фактический свободный остаток базового актива с биржи.
func (m *Manager) CloseLong(ctx context.Context, inst models.Instrument, pos models.PositionState) (Result, error) {
	if pos.Direction != models.DirectionLong {
		return Result{Outcome: OutcomeNoPosition, Position: pos}, nil
	}
	log := m.log.With(zap.String("symbol", inst.Symbol), zap.String("op", "close_long"))

	free, err := m.ex.FreeBalance(ctx, inst.BaseAsset)
	if err != nil {
		return Result{}, errors.Wrapf(err, "%s balance", inst.BaseAsset)
	}
	qty := helper.FloorToStep(free, inst.StepSize)
	if qty.LessThan(inst.MinQty) || !qty.IsPositive() {
		// на бирже продавать нечего — локальная позиция больше не соответствует счёту
		log.Warn("free base balance below minimum, dropping local long",
			zap.Stringer("free", free), zap.Stringer("minQty", inst.MinQty))
		return Result{Outcome: OutcomeNothingToSell, Position: models.FlatPosition(inst.Symbol), Quantity: qty}, nil
	}

	price, err := m.prices.Price(ctx, inst.Symbol)
	if err != nil {
		return Result{}, errors.Wrap(err, "price")
	}
	limit := LimitPrice(price, m.cfg.SlippagePct, inst, models.SideSell)

	order, err := m.execute(ctx, m.intent(inst, models.SideSell, qty, limit, false))
	if err != nil {
		return Result{}, err
	}
	if !order.Filled() {
		return Result{}, errors.Wrapf(ErrNotFilled, "sell %s %s @ %s", inst.Symbol, qty, limit)
	}

	res := Result{Outcome: outcomeOf(order), Order: order, Quantity: qty, Price: limit}
	if order.ExecutedQty.LessThan(qty) {
		next := pos
		next.Quantity = qty.Sub(order.ExecutedQty)
		next.UpdatedAt = m.now().UTC()
		res.Position = next
		log.Warn("long partially closed", zap.Stringer("sold", order.ExecutedQty), zap.Stringer("left", next.Quantity))
		return res, nil
	}
	res.Position = models.FlatPosition(inst.Symbol)
	log.Info("long closed", zap.Stringer("qty", order.ExecutedQty), zap.Float64("price", order.AvgPrice),
		zap.String("pnl_pct", pnlPct(pos.EntryPrice, order.AvgPrice, false)))
	return res, nil
}

func outcomeOf(order models.OrderResult) Outcome {
	if order.Status == models.OrderFilled {
		return OutcomeFilled
	}
	return OutcomePartial
}

func pnlPct(entry, exit float64, short bool) string {
	if entry <= 0 {
		return "n/a"
	}
	p := (exit - entry) / entry * 100
	if short {
		p = -p
	}
	return fmt.Sprintf("%.2f", p)
}
