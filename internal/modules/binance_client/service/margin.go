package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	isolatedTransferPath = "/sapi/v1/margin/isolated/transfer"
	borrowRepayPath      = "/sapi/v1/margin/borrow-repay"
	isolatedAccountPath  = "/sapi/v1/margin/isolated/account"
)

// Все изменяющие маржинальные вызовы — без повторов: повтор займа = двойной долг.

func (c *Client) TransferToIsolated(ctx context.Context, symbol, asset string, amount decimal.Decimal) error {
	return c.isolatedTransfer(ctx, symbol, asset, amount, "SPOT", "ISOLATED_MARGIN")
}

func (c *Client) TransferFromIsolated(ctx context.Context, symbol, asset string, amount decimal.Decimal) error {
	return c.isolatedTransfer(ctx, symbol, asset, amount, "ISOLATED_MARGIN", "SPOT")
}

func (c *Client) isolatedTransfer(ctx context.Context, symbol, asset string, amount decimal.Decimal, from, to string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer %s %s: amount must be positive, got %s", symbol, asset, amount)
	}
	var r tranIDResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   isolatedTransferPath,
		params: url.Values{
			"asset":     {asset},
			"symbol":    {symbol},
			"transFrom": {from},
			"transTo":   {to},
			"amount":    {amount.String()},
		},
		signed: true,
		once:   true,
	}, &r)
	if err != nil {
		return errors.Wrapf(err, "transfer %s %s %s->%s", amount, asset, from, to)
	}
	c.log.Info("isolated transfer",
		zap.String("symbol", symbol), zap.String("asset", asset), zap.Stringer("amount", amount),
		zap.String("from", from), zap.String("to", to), zap.Int64("tranId", r.TranID))
	return nil
}

func (c *Client) Borrow(ctx context.Context, symbol, asset string, amount decimal.Decimal) error {
	return c.borrowRepay(ctx, symbol, asset, amount, "BORROW")
}

func (c *Client) Repay(ctx context.Context, symbol, asset string, amount decimal.Decimal) error {
	return c.borrowRepay(ctx, symbol, asset, amount, "REPAY")
}

func (c *Client) borrowRepay(ctx context.Context, symbol, asset string, amount decimal.Decimal, kind string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%s %s %s: amount must be positive, got %s", kind, symbol, asset, amount)
	}
	var r tranIDResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   borrowRepayPath,
		params: url.Values{
			"asset":      {asset},
			"isIsolated": {"TRUE"},
			"symbol":     {symbol},
			"amount":     {amount.String()},
			"type":       {kind},
		},
		signed: true,
		once:   true,
	}, &r)
	if err != nil {
		return errors.Wrapf(err, "%s %s %s", kind, amount, asset)
	}
	c.log.Info("margin "+kind,
		zap.String("symbol", symbol), zap.String("asset", asset), zap.Stringer("amount", amount), zap.Int64("tranId", r.TranID))
	return nil
}

// IsolatedAccount — долг, проценты и остатки изолированной пары (истина для закрытия шорта).
func (c *Client) IsolatedAccount(ctx context.Context, symbol string) (models.IsolatedAccount, error) {
	var r isolatedAccountResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   isolatedAccountPath,
		params: url.Values{"symbols": {symbol}},
		signed: true,
	}, &r)
	if err != nil {
		return models.IsolatedAccount{}, err
	}
	for _, a := range r.Assets {
		if a.Symbol != symbol {
			continue
		}
		base, err := a.BaseAsset.toModel()
		if err != nil {
			return models.IsolatedAccount{}, errors.Wrapf(err, "isolated %s base", symbol)
		}
		quote, err := a.QuoteAsset.toModel()
		if err != nil {
			return models.IsolatedAccount{}, errors.Wrapf(err, "isolated %s quote", symbol)
		}
		return models.IsolatedAccount{Symbol: symbol, Base: base, Quote: quote}, nil
	}
	return models.IsolatedAccount{}, fmt.Errorf("isolated account %s not found", symbol)
}

func (a isolatedAsset) toModel() (models.IsolatedAsset, error) {
	out := models.IsolatedAsset{Asset: a.Asset}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"free", a.Free, &out.Free},
		{"borrowed", a.Borrowed, &out.Borrowed},
		{"interest", a.Interest, &out.Interest},
		{"netAsset", a.NetAsset, &out.NetAsset},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(orDefault(f.raw, "0"))
		if err != nil {
			return models.IsolatedAsset{}, fmt.Errorf("%s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return out, nil
}
