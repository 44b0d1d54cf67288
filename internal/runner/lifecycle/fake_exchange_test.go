package lifecycle

import (
	"context"
	"fmt"
	"testing"

	"sentiment_trader/internal/helper"
	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type fillMode int

const (
	fillFull fillMode = iota
	fillNone
	fillHalf
)

// fakeExchange — спот + одна изолированная пара, эффекты ордеров применяются к балансам.
type fakeExchange struct {
	t    *testing.T
	inst models.Instrument

	spot map[string]decimal.Decimal
	iso  models.IsolatedAccount

	fill   fillMode
	failOn map[string]error

	calls   []string
	intents []models.OrderIntent
	orders  map[int64]models.OrderResult
	nextID  int64

	repaid []decimal.Decimal
}

func newFakeExchange(t *testing.T, inst models.Instrument, quote string) *fakeExchange {
	return &fakeExchange{
		t:    t,
		inst: inst,
		spot: map[string]decimal.Decimal{inst.QuoteAsset: decimal.RequireFromString(quote)},
		iso: models.IsolatedAccount{
			Symbol: inst.Symbol,
			Base:   models.IsolatedAsset{Asset: inst.BaseAsset},
			Quote:  models.IsolatedAsset{Asset: inst.QuoteAsset},
		},
		failOn: map[string]error{},
		orders: map[int64]models.OrderResult{},
	}
}

func (f *fakeExchange) hit(name string) error {
	f.calls = append(f.calls, name)
	return f.failOn[name]
}

func (f *fakeExchange) FreeBalance(_ context.Context, asset string) (decimal.Decimal, error) {
	if err := f.hit("balance:" + asset); err != nil {
		return decimal.Zero, err
	}
	return f.spot[asset], nil
}

func (f *fakeExchange) PlaceOrder(_ context.Context, in models.OrderIntent) (models.OrderResult, error) {
	name := "order:" + string(in.Side)
	if in.Margin {
		name = "margin_" + name
	}
	if err := f.hit(name); err != nil {
		return models.OrderResult{}, err
	}
	f.intents = append(f.intents, in)

	// каждое отправленное количество кратно шагу и не меньше минимума
	if !helper.IsMultipleOf(in.Quantity, f.inst.StepSize) || in.Quantity.LessThan(f.inst.MinQty) {
		f.t.Errorf("submitted qty %s violates step %s / min %s", in.Quantity, f.inst.StepSize, f.inst.MinQty)
	}
	if !helper.IsMultipleOf(in.Price, f.inst.TickSize) {
		f.t.Errorf("submitted price %s violates tick %s", in.Price, f.inst.TickSize)
	}

	f.nextID++
	res := models.OrderResult{Symbol: in.Symbol, OrderID: f.nextID, ClientOrderID: in.ClientOrderID, Status: models.OrderNew, ExecutedQty: decimal.Zero}
	switch f.fill {
	case fillFull:
		res.Status = models.OrderFilled
		res.ExecutedQty = in.Quantity
	case fillHalf:
		res.Status = models.OrderPartiallyFilled
		res.ExecutedQty = helper.FloorToStep(in.Quantity.Div(decimal.NewFromInt(2)), f.inst.StepSize)
	}
	if res.ExecutedQty.IsPositive() {
		res.AvgPrice = in.Price.InexactFloat64()
		f.apply(in, res.ExecutedQty)
	}
	f.orders[res.OrderID] = res
	return res, nil
}

func (f *fakeExchange) apply(in models.OrderIntent, qty decimal.Decimal) {
	notional := qty.Mul(in.Price)
	base, quote := f.inst.BaseAsset, f.inst.QuoteAsset
	switch {
	case !in.Margin && in.Side == models.SideBuy:
		f.spot[quote] = f.spot[quote].Sub(notional)
		f.spot[base] = f.spot[base].Add(qty)
	case !in.Margin && in.Side == models.SideSell:
		f.spot[base] = f.spot[base].Sub(qty)
		f.spot[quote] = f.spot[quote].Add(notional)
	case in.Margin && in.Side == models.SideSell:
		f.iso.Base.Free = f.iso.Base.Free.Sub(qty)
		f.iso.Quote.Free = f.iso.Quote.Free.Add(notional)
	case in.Margin && in.Side == models.SideBuy:
		f.iso.Quote.Free = f.iso.Quote.Free.Sub(notional)
		f.iso.Base.Free = f.iso.Base.Free.Add(qty)
	}
}

func (f *fakeExchange) GetOrder(_ context.Context, _ string, id int64, _ bool) (models.OrderResult, error) {
	if err := f.hit("get_order"); err != nil {
		return models.OrderResult{}, err
	}
	return f.orders[id], nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, _ string, id int64, _ bool) (models.OrderResult, error) {
	if err := f.hit("cancel"); err != nil {
		return models.OrderResult{}, err
	}
	o := f.orders[id]
	o.Status = models.OrderCanceled
	f.orders[id] = o
	return o, nil
}

func (f *fakeExchange) TransferToIsolated(_ context.Context, _, asset string, amount decimal.Decimal) error {
	if err := f.hit("transfer_in:" + asset); err != nil {
		return err
	}
	f.spot[asset] = f.spot[asset].Sub(amount)
	f.isoAsset(asset).Free = f.isoAsset(asset).Free.Add(amount)
	return nil
}

func (f *fakeExchange) TransferFromIsolated(_ context.Context, _, asset string, amount decimal.Decimal) error {
	if err := f.hit("transfer_out:" + asset); err != nil {
		return err
	}
	a := f.isoAsset(asset)
	if amount.GreaterThan(a.Free) {
		return errors.Errorf("transfer %s %s exceeds free %s", amount, asset, a.Free)
	}
	a.Free = a.Free.Sub(amount)
	f.spot[asset] = f.spot[asset].Add(amount)
	return nil
}

func (f *fakeExchange) Borrow(_ context.Context, _, asset string, amount decimal.Decimal) error {
	if err := f.hit("borrow"); err != nil {
		return err
	}
	a := f.isoAsset(asset)
	a.Borrowed = a.Borrowed.Add(amount)
	a.Free = a.Free.Add(amount)
	return nil
}

func (f *fakeExchange) Repay(_ context.Context, _, asset string, amount decimal.Decimal) error {
	if err := f.hit("repay"); err != nil {
		return err
	}
	a := f.isoAsset(asset)
	if amount.GreaterThan(a.Free) {
		return errors.Errorf("repay %s exceeds free %s", amount, a.Free)
	}
	f.repaid = append(f.repaid, amount)
	a.Free = a.Free.Sub(amount)
	// сначала проценты, потом тело
	fromInterest := decimal.Min(amount, a.Interest)
	a.Interest = a.Interest.Sub(fromInterest)
	a.Borrowed = a.Borrowed.Sub(amount.Sub(fromInterest))
	return nil
}

func (f *fakeExchange) IsolatedAccount(context.Context, string) (models.IsolatedAccount, error) {
	if err := f.hit("isolated_account"); err != nil {
		return models.IsolatedAccount{}, err
	}
	return f.iso, nil
}

func (f *fakeExchange) isoAsset(asset string) *models.IsolatedAsset {
	switch asset {
	case f.iso.Base.Asset:
		return &f.iso.Base
	case f.iso.Quote.Asset:
		return &f.iso.Quote
	}
	panic(fmt.Sprintf("unknown isolated asset %s", asset))
}

type fixedPrice float64

func (p fixedPrice) Price(context.Context, string) (float64, error) { return float64(p), nil }
