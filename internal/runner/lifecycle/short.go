package lifecycle

import (
	"context"

	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const quotePrecision = 8

// OpenShort: залог в изолированную маржу -> займ базового актива -> лимитная продажа.
// Шаги 2 и 3 после успешного 1 не откатываются, ошибка — *PartialMarginError.
func (m *Manager) OpenShort(ctx context.Context, inst models.Instrument, pos models.PositionState) (Result, error) {
	if pos.IsOpen() {
		return Result{Outcome: OutcomeAlreadyOpen, Position: pos}, nil
	}
	log := m.log.With(zap.String("symbol", inst.Symbol), zap.String("op", "open_short"))

	price, err := m.prices.Price(ctx, inst.Symbol)
	if err != nil {
		return Result{}, errors.Wrap(err, "price")
	}
	limit := LimitPrice(price, m.cfg.SlippagePct, inst, models.SideSell)

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

	collateral := qty.Mul(decimal.NewFromFloat(price)).Round(quotePrecision)
	if collateral.GreaterThan(quote) {
		collateral = quote
	}

	// 1) залог
	if err := m.ex.TransferToIsolated(ctx, inst.Symbol, inst.QuoteAsset, collateral); err != nil {
		return Result{}, errors.Wrap(err, "transfer collateral")
	}
	done := []string{StepTransferIn}
	log.Info("collateral transferred", zap.Stringer("amount", collateral))

	partial := func(step string, err error) (Result, error) {
		return Result{}, &PartialMarginError{
			Symbol:    inst.Symbol,
			Operation: "open_short",
			Step:      step,
			Done:      append([]string(nil), done...),
			Err:       err,
		}
	}

	// 2) займ
	if err := m.ex.Borrow(ctx, inst.Symbol, inst.BaseAsset, qty); err != nil {
		return partial(StepBorrow, err)
	}
	done = append(done, StepBorrow)
	borrowedAt := m.now().UTC()

	// 3) продажа занятого
	order, err := m.execute(ctx, m.intent(inst, models.SideSell, qty, limit, true))
	if err != nil {
		return partial(StepMarginSell, err)
	}
	if !order.Filled() {
		return partial(StepMarginSell, errors.Wrapf(ErrNotFilled, "margin sell %s %s @ %s", inst.Symbol, qty, limit))
	}

	next := models.PositionState{
		Symbol:     inst.Symbol,
		Direction:  models.DirectionShort,
		Quantity:   order.ExecutedQty,
		EntryPrice: order.AvgPrice,
		Extremum:   order.AvgPrice,
		OpenedAt:   borrowedAt,
		UpdatedAt:  m.now().UTC(),
		Loan: &models.MarginLoan{
			Asset:      inst.BaseAsset,
			Principal:  qty,
			BorrowedAt: borrowedAt,
		},
	}
	log.Info("short opened", zap.Stringer("qty", order.ExecutedQty), zap.Float64("entry", order.AvgPrice),
		zap.Stringer("collateral", collateral))
	return Result{Outcome: outcomeOf(order), Position: next, Order: order, Quantity: qty, Price: limit}, nil
}

// CloseShort: долг+проценты с биржи -> покупка ceil_to_step -> погашение ровно долга
// -> возврат остатков quote и base на спот.
func (m *Manager) CloseShort(ctx context.Context, inst models.Instrument, pos models.PositionState) (Result, error) {
	if pos.Direction != models.DirectionShort {
		return Result{Outcome: OutcomeNoPosition, Position: pos}, nil
	}
	log := m.log.With(zap.String("symbol", inst.Symbol), zap.String("op", "close_short"))

	acct, err := m.ex.IsolatedAccount(ctx, inst.Symbol)
	if err != nil {
		return Result{}, errors.Wrap(err, "isolated account")
	}
	owed := acct.Base.Owed()

	var done []string
	partial := func(step string, err error) (Result, error) {
		return Result{}, &PartialMarginError{
			Symbol:    inst.Symbol,
			Operation: "close_short",
			Step:      step,
			Done:      append([]string(nil), done...),
			Err:       err,
		}
	}

	res := Result{Outcome: OutcomeFilled}
	if owed.IsPositive() {
		buyQty := RepayQuantity(owed, inst)
		price, err := m.prices.Price(ctx, inst.Symbol)
		if err != nil {
			return Result{}, errors.Wrap(err, "price")
		}
		limit := LimitPrice(price, m.cfg.SlippagePct, inst, models.SideBuy)
		log.Info("buying back loan", zap.Stringer("borrowed", acct.Base.Borrowed),
			zap.Stringer("interest", acct.Base.Interest), zap.Stringer("qty", buyQty), zap.Stringer("limit", limit))

		order, err := m.execute(ctx, m.intent(inst, models.SideBuy, buyQty, limit, true))
		if err != nil {
			return Result{}, errors.Wrap(err, "margin buy")
		}
		if !order.Filled() {
			return Result{}, errors.Wrapf(ErrNotFilled, "margin buy %s %s @ %s", inst.Symbol, buyQty, limit)
		}
		done = append(done, StepMarginBuy)
		if order.ExecutedQty.LessThan(owed) {
			return partial(StepRepay, errors.Errorf("bought %s of %s owed", order.ExecutedQty, owed))
		}

		if err := m.ex.Repay(ctx, inst.Symbol, inst.BaseAsset, owed); err != nil {
			return partial(StepRepay, err)
		}
		done = append(done, StepRepay)
		res.Order, res.Quantity, res.Price = order, buyQty, limit
		log.Info("loan repaid", zap.Stringer("amount", owed), zap.Float64("price", order.AvgPrice),
			zap.String("pnl_pct", pnlPct(pos.EntryPrice, order.AvgPrice, true)))
	} else {
		log.Warn("no outstanding loan on exchange, only returning balances")
	}

	after, err := m.ex.IsolatedAccount(ctx, inst.Symbol)
	if err != nil {
		return partial(StepTransferOut, errors.Wrap(err, "isolated account"))
	}
	for _, a := range []models.IsolatedAsset{after.Quote, after.Base} {
		if !a.Free.IsPositive() {
			continue
		}
		if err := m.ex.TransferFromIsolated(ctx, inst.Symbol, a.Asset, a.Free); err != nil {
			return partial(StepTransferOut, errors.Wrapf(err, "transfer %s", a.Asset))
		}
	}

	res.Position = models.FlatPosition(inst.Symbol)
	log.Info("short closed")
	return res, nil
}
