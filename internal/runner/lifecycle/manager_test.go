package lifecycle

import (
	"context"
	"testing"
	"time"

	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func xrp() models.Instrument {
	return models.Instrument{
		Symbol:     "XRPUSDT",
		Name:       "ripple",
		BaseAsset:  "XRP",
		QuoteAsset: "USDT",
		StepSize:   dec("0.1"),
		TickSize:   dec("0.0001"),
		MinQty:     dec("1"),
	}
}

func newTestManager(ex Exchange, price float64) *Manager {
	m := NewManager(ex, fixedPrice(price), Config{
		TradePct:         0.2,
		SlippagePct:      0.01,
		FillTimeout:      5 * time.Second,
		FillPollInterval: time.Second,
	}, zap.NewNop())
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m.sleep = func(_ context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}
	return m
}

func TestCalcQuantityReferenceScenario(t *testing.T) {
	qty, ok := CalcQuantity(dec("1000"), 0.2, dec("2.0"), xrp())
	require.True(t, ok)
	assert.True(t, qty.Equal(dec("100.0")), "qty=%s", qty)
}

func TestCalcQuantityBelowMinimum(t *testing.T) {
	qty, ok := CalcQuantity(dec("5"), 0.2, dec("2.0"), xrp())
	assert.False(t, ok)
	assert.True(t, qty.LessThan(xrp().MinQty))
}

func TestLimitPriceRoundsTowardExecution(t *testing.T) {
	inst := xrp()
	assert.True(t, LimitPrice(2.0, 0.01, inst, models.SideBuy).Equal(dec("2.02")))
	assert.True(t, LimitPrice(2.0, 0.01, inst, models.SideSell).Equal(dec("1.98")))
	// 1.23456 * 1.01 = 1.2469056 -> вверх
	assert.True(t, LimitPrice(1.23456, 0.01, inst, models.SideBuy).Equal(dec("1.247")))
	// 1.23456 * 0.99 = 1.2222144 -> вниз
	assert.True(t, LimitPrice(1.23456, 0.01, inst, models.SideSell).Equal(dec("1.2222")))
}

func TestRepayQuantityRoundsUp(t *testing.T) {
	inst := xrp()
	inst.StepSize = dec("0.01")
	inst.MinQty = dec("0.01")
	assert.True(t, RepayQuantity(dec("50.234").Add(dec("0.012")), inst).Equal(dec("50.25")))
	assert.True(t, RepayQuantity(dec("50.234").Add(dec("0.12")), inst).Equal(dec("50.36")))

	inst.MinQty = dec("1")
	assert.True(t, RepayQuantity(dec("0.3"), inst).Equal(dec("1")))
}

func TestLongRoundTrip(t *testing.T) {
	ctx := context.Background()
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	m := newTestManager(ex, 2.0)

	pos := models.FlatPosition(inst.Symbol)
	res, err := m.OpenLong(ctx, inst, pos)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, res.Outcome)
	pos = res.Position
	require.NoError(t, pos.Validate())
	assert.Equal(t, models.DirectionLong, pos.Direction)
	assert.True(t, pos.Quantity.Equal(dec("99")), "qty=%s", pos.Quantity)
	assert.Equal(t, 2.02, pos.EntryPrice)
	assert.Equal(t, pos.EntryPrice, pos.Extremum)
	assert.Nil(t, pos.Loan)

	res, err = m.CloseLong(ctx, inst, pos)
	require.NoError(t, err)
	pos = res.Position
	assert.Equal(t, models.DirectionNone, pos.Direction)
	assert.Nil(t, pos.Loan)

	require.Len(t, ex.intents, 2)
	assert.Equal(t, models.SideSell, ex.intents[1].Side)
	assert.True(t, ex.intents[1].Price.Equal(dec("1.98")))
	assert.NotContains(t, ex.calls, "borrow")
}

func TestCloseLongSellsExchangeBalance(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "0")
	ex.spot["XRP"] = dec("57.36")
	m := newTestManager(ex, 2.0)

	pos := models.PositionState{Symbol: inst.Symbol, Direction: models.DirectionLong, Quantity: dec("40"), EntryPrice: 1.5, Extremum: 2.1}
	res, err := m.CloseLong(context.Background(), inst, pos)
	require.NoError(t, err)
	require.Len(t, ex.intents, 1)
	assert.True(t, ex.intents[0].Quantity.Equal(dec("57.3")), "sold %s", ex.intents[0].Quantity)
	assert.Equal(t, models.DirectionNone, res.Position.Direction)
}

func TestCloseOnFlatIsNoop(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	m := newTestManager(ex, 2.0)
	flat := models.FlatPosition(inst.Symbol)

	res, err := m.CloseLong(context.Background(), inst, flat)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoPosition, res.Outcome)

	res, err = m.CloseShort(context.Background(), inst, flat)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoPosition, res.Outcome)
	assert.Empty(t, ex.calls)
}

func TestOpenSkippedBelowMinimum(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "4")
	m := newTestManager(ex, 2.0)

	res, err := m.OpenLong(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, models.DirectionNone, res.Position.Direction)
	assert.Empty(t, ex.intents)

	res, err = m.OpenShort(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.NotContains(t, ex.calls, "transfer_in:USDT")
}

func TestOpenAlreadyOpen(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	m := newTestManager(ex, 2.0)
	pos := models.PositionState{Symbol: inst.Symbol, Direction: models.DirectionLong, Quantity: dec("10")}

	res, err := m.OpenShort(context.Background(), inst, pos)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyOpen, res.Outcome)
	assert.Empty(t, ex.calls)
}

func TestRejectedOrderCreatesNoPosition(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	ex.failOn["order:BUY"] = errors.New("code=-1013 msg=Filter failure: PRICE_FILTER")
	m := newTestManager(ex, 2.0)

	_, err := m.OpenLong(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.Error(t, err)
	_, partial := IsPartialMargin(err)
	assert.False(t, partial)
}

func TestUnfilledOrderIsCancelled(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	ex.fill = fillNone
	m := newTestManager(ex, 2.0)

	_, err := m.OpenLong(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.ErrorIs(t, err, ErrNotFilled)
	assert.Contains(t, ex.calls, "get_order")
	assert.Equal(t, "cancel", ex.calls[len(ex.calls)-1])
}

func TestPartialFillUsesExecutedQuantity(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	ex.fill = fillHalf
	m := newTestManager(ex, 2.0)

	res, err := m.OpenLong(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.True(t, res.Position.Quantity.Equal(dec("49.5")), "qty=%s", res.Position.Quantity)
}

func TestOpenShortSequence(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	m := newTestManager(ex, 2.0)

	res, err := m.OpenShort(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.NoError(t, err)
	pos := res.Position
	require.NoError(t, pos.Validate())
	assert.Equal(t, models.DirectionShort, pos.Direction)
	assert.True(t, pos.Quantity.Equal(dec("101")))
	require.NotNil(t, pos.Loan)
	assert.Equal(t, "XRP", pos.Loan.Asset)
	assert.True(t, pos.Loan.Principal.Equal(dec("101")))

	assert.Equal(t, []string{"balance:USDT", "transfer_in:USDT", "borrow", "margin_order:SELL"}, ex.calls)
	assert.True(t, ex.iso.Quote.Free.GreaterThanOrEqual(dec("202")))
	assert.True(t, ex.intents[0].Margin)
}

func TestOpenShortBorrowFailureIsPartialWithoutUnwind(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	ex.failOn["borrow"] = errors.New("borrow rejected")
	m := newTestManager(ex, 2.0)

	_, err := m.OpenShort(context.Background(), inst, models.FlatPosition(inst.Symbol))
	pm, ok := IsPartialMargin(err)
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, StepBorrow, pm.Step)
	assert.Equal(t, []string{StepTransferIn}, pm.Done)
	assert.Contains(t, pm.Error(), "PARTIAL MARGIN OPERATION")
	// залог остаётся в изолированной марже, обратного перевода нет
	assert.NotContains(t, ex.calls, "transfer_out:USDT")
	assert.True(t, ex.iso.Quote.Free.IsPositive())
}

func TestOpenShortSellFailureIsPartial(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	ex.failOn["margin_order:SELL"] = errors.New("insufficient")
	m := newTestManager(ex, 2.0)

	_, err := m.OpenShort(context.Background(), inst, models.FlatPosition(inst.Symbol))
	pm, ok := IsPartialMargin(err)
	require.True(t, ok)
	assert.Equal(t, StepMarginSell, pm.Step)
	assert.Equal(t, []string{StepTransferIn, StepBorrow}, pm.Done)
	assert.Equal(t, 1, countCalls(ex.calls, "borrow"))
}

func TestOpenShortCollateralFailureIsPlainError(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	ex.failOn["transfer_in:USDT"] = errors.New("timeout")
	m := newTestManager(ex, 2.0)

	_, err := m.OpenShort(context.Background(), inst, models.FlatPosition(inst.Symbol))
	require.Error(t, err)
	_, ok := IsPartialMargin(err)
	assert.False(t, ok)
	assert.NotContains(t, ex.calls, "borrow")
}

func TestCloseShortRepaysExactOwedAfterRoundedUpBuy(t *testing.T) {
	for _, tc := range []struct {
		interest, wantBuy, wantRepay string
	}{
		{"0.012", "50.25", "50.246"},
		{"0.12", "50.36", "50.354"},
	} {
		t.Run(tc.interest, func(t *testing.T) {
			inst := xrp()
			inst.StepSize = dec("0.01")
			inst.MinQty = dec("0.01")
			ex := newFakeExchange(t, inst, "0")
			ex.iso.Base.Borrowed = dec("50.234")
			ex.iso.Base.Interest = dec(tc.interest)
			ex.iso.Quote.Free = dec("300")
			m := newTestManager(ex, 2.0)

			pos := models.PositionState{
				Symbol: inst.Symbol, Direction: models.DirectionShort, Quantity: dec("50.23"),
				EntryPrice: 2.2, Extremum: 1.95,
				Loan: &models.MarginLoan{Asset: "XRP", Principal: dec("50.234")},
			}
			res, err := m.CloseShort(context.Background(), inst, pos)
			require.NoError(t, err)

			require.Len(t, ex.intents, 1)
			buy := ex.intents[0]
			assert.True(t, buy.Margin)
			assert.Equal(t, models.SideBuy, buy.Side)
			assert.True(t, buy.Quantity.Equal(dec(tc.wantBuy)), "buy=%s", buy.Quantity)
			assert.True(t, buy.Quantity.GreaterThanOrEqual(dec("50.234").Add(dec(tc.interest))))

			require.Len(t, ex.repaid, 1)
			assert.True(t, ex.repaid[0].Equal(dec(tc.wantRepay)), "repaid=%s", ex.repaid[0])

			assert.True(t, ex.iso.Base.Borrowed.IsZero())
			assert.True(t, ex.iso.Quote.Free.IsZero())
			assert.True(t, ex.iso.Base.Free.IsZero())
			assert.Contains(t, ex.calls, "transfer_out:USDT")
			assert.Contains(t, ex.calls, "transfer_out:XRP")

			assert.Equal(t, models.DirectionNone, res.Position.Direction)
			assert.Nil(t, res.Position.Loan)
		})
	}
}

func TestCloseShortRepayFailureIsPartial(t *testing.T) {
	inst := xrp()
	ex := newFakeExchange(t, inst, "0")
	ex.iso.Base.Borrowed = dec("10")
	ex.iso.Quote.Free = dec("100")
	ex.failOn["repay"] = errors.New("repay failed")
	m := newTestManager(ex, 2.0)

	pos := models.PositionState{Symbol: inst.Symbol, Direction: models.DirectionShort, Quantity: dec("10"),
		Loan: &models.MarginLoan{Asset: "XRP", Principal: dec("10")}}
	_, err := m.CloseShort(context.Background(), inst, pos)
	pm, ok := IsPartialMargin(err)
	require.True(t, ok)
	assert.Equal(t, StepRepay, pm.Step)
	assert.Equal(t, []string{StepMarginBuy}, pm.Done)
	assert.Equal(t, 1, countCalls(ex.calls, "repay"))
}

func TestShortRoundTripKeepsLoanInvariant(t *testing.T) {
	ctx := context.Background()
	inst := xrp()
	ex := newFakeExchange(t, inst, "1000")
	m := newTestManager(ex, 2.0)

	res, err := m.OpenShort(ctx, inst, models.FlatPosition(inst.Symbol))
	require.NoError(t, err)
	require.NoError(t, res.Position.Validate())

	ex.iso.Base.Interest = dec("0.05")
	res, err = m.CloseShort(ctx, inst, res.Position)
	require.NoError(t, err)
	require.NoError(t, res.Position.Validate())
	assert.Equal(t, models.DirectionNone, res.Position.Direction)
	// 101.05 -> 101.1
	assert.True(t, ex.intents[1].Quantity.Equal(dec("101.1")))
	assert.True(t, ex.iso.Base.Owed().IsZero())
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}
