package service

import (
	"context"
	"fmt"
	"sync"

	"sentiment_trader/internal/helper"
	"sentiment_trader/internal/metrics"
	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Paper — dry-run: рыночные данные живые, ордера и маржа на локальном балансе.
// Лимитка исполняется сразу целиком по своей цене.
type Paper struct {
	*Client

	quote string

	mu     sync.Mutex
	spot   map[string]decimal.Decimal
	iso    map[string]*models.IsolatedAccount
	orders map[int64]models.OrderResult
	nextID int64
}

func NewPaper(c *Client, quoteAsset string, quoteBalance float64) *Paper {
	return &Paper{
		Client: c,
		quote:  quoteAsset,
		spot:   map[string]decimal.Decimal{quoteAsset: decimal.NewFromFloat(quoteBalance)},
		iso:    map[string]*models.IsolatedAccount{},
		orders: map[int64]models.OrderResult{},
	}
}

func (p *Paper) FreeBalance(_ context.Context, asset string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spot[asset], nil
}

func (p *Paper) PlaceOrder(ctx context.Context, in models.OrderIntent) (models.OrderResult, error) {
	if in.ClientOrderID == "" {
		in.ClientOrderID = NewClientOrderID()
	}
	// фильтры биржи проверяем, если есть ключи; маржинального test-эндпоинта нет
	if !in.Margin && p.HasCredentials() {
		if err := p.TestOrder(ctx, in); err != nil {
			metrics.Orders.WithLabelValues("paper", string(in.Side), "error").Inc()
			return models.OrderResult{}, errors.Wrapf(err, "paper %s %s rejected by order/test", in.Side, in.Symbol)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.apply(in); err != nil {
		metrics.Orders.WithLabelValues("paper", string(in.Side), "error").Inc()
		return models.OrderResult{}, err
	}
	p.nextID++
	res := models.OrderResult{
		Symbol:        in.Symbol,
		OrderID:       p.nextID,
		ClientOrderID: in.ClientOrderID,
		Status:        models.OrderFilled,
		ExecutedQty:   in.Quantity,
		AvgPrice:      in.Price.InexactFloat64(),
		UpdatedAt:     p.now().UTC(),
	}
	p.orders[res.OrderID] = res
	metrics.Orders.WithLabelValues("paper", string(in.Side), "placed").Inc()
	p.log.Info("paper order filled",
		zap.String("symbol", in.Symbol), zap.String("side", string(in.Side)), zap.Bool("margin", in.Margin),
		zap.Stringer("qty", in.Quantity), zap.Stringer("price", in.Price))
	return res, nil
}

func (p *Paper) apply(in models.OrderIntent) error {
	base := helper.TickerFromSymbol(in.Symbol, p.quote)
	notional := in.Quantity.Mul(in.Price)

	if in.Margin {
		acct := p.account(in.Symbol)
		switch in.Side {
		case models.SideSell:
			if in.Quantity.GreaterThan(acct.Base.Free) {
				return fmt.Errorf("paper margin sell %s: qty %s > free %s", in.Symbol, in.Quantity, acct.Base.Free)
			}
			acct.Base.Free = acct.Base.Free.Sub(in.Quantity)
			acct.Quote.Free = acct.Quote.Free.Add(notional)
		case models.SideBuy:
			if notional.GreaterThan(acct.Quote.Free) {
				return fmt.Errorf("paper margin buy %s: cost %s > free %s", in.Symbol, notional, acct.Quote.Free)
			}
			acct.Quote.Free = acct.Quote.Free.Sub(notional)
			acct.Base.Free = acct.Base.Free.Add(in.Quantity)
		}
		return nil
	}

	switch in.Side {
	case models.SideBuy:
		if notional.GreaterThan(p.spot[p.quote]) {
			return fmt.Errorf("paper buy %s: cost %s > free %s", in.Symbol, notional, p.spot[p.quote])
		}
		p.spot[p.quote] = p.spot[p.quote].Sub(notional)
		p.spot[base] = p.spot[base].Add(in.Quantity)
	case models.SideSell:
		if in.Quantity.GreaterThan(p.spot[base]) {
			return fmt.Errorf("paper sell %s: qty %s > free %s", in.Symbol, in.Quantity, p.spot[base])
		}
		p.spot[base] = p.spot[base].Sub(in.Quantity)
		p.spot[p.quote] = p.spot[p.quote].Add(notional)
	}
	return nil
}

func (p *Paper) GetOrder(_ context.Context, symbol string, orderID int64, _ bool) (models.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return models.OrderResult{}, &APIError{Status: 400, Code: -2013, Msg: fmt.Sprintf("paper order %s/%d does not exist", symbol, orderID)}
	}
	return o, nil
}

// CancelOrder: всё исполнено при размещении, отменять нечего.
func (p *Paper) CancelOrder(ctx context.Context, symbol string, orderID int64, margin bool) (models.OrderResult, error) {
	return p.GetOrder(ctx, symbol, orderID, margin)
}

func (p *Paper) TransferToIsolated(_ context.Context, symbol, asset string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount.GreaterThan(p.spot[asset]) {
		return fmt.Errorf("paper transfer %s %s: spot free %s", amount, asset, p.spot[asset])
	}
	a, err := p.isoAsset(symbol, asset)
	if err != nil {
		return err
	}
	p.spot[asset] = p.spot[asset].Sub(amount)
	a.Free = a.Free.Add(amount)
	return nil
}

func (p *Paper) TransferFromIsolated(_ context.Context, symbol, asset string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := p.isoAsset(symbol, asset)
	if err != nil {
		return err
	}
	if amount.GreaterThan(a.Free) {
		return fmt.Errorf("paper transfer back %s %s: isolated free %s", amount, asset, a.Free)
	}
	a.Free = a.Free.Sub(amount)
	p.spot[asset] = p.spot[asset].Add(amount)
	return nil
}

func (p *Paper) Borrow(_ context.Context, symbol, asset string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := p.isoAsset(symbol, asset)
	if err != nil {
		return err
	}
	a.Borrowed = a.Borrowed.Add(amount)
	a.Free = a.Free.Add(amount)
	p.log.Info("paper borrow", zap.String("symbol", symbol), zap.String("asset", asset), zap.Stringer("amount", amount))
	return nil
}

// Repay гасит сначала проценты, потом тело.
func (p *Paper) Repay(_ context.Context, symbol, asset string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := p.isoAsset(symbol, asset)
	if err != nil {
		return err
	}
	if amount.GreaterThan(a.Free) {
		return fmt.Errorf("paper repay %s %s: isolated free %s", amount, asset, a.Free)
	}
	if amount.GreaterThan(a.Borrowed.Add(a.Interest)) {
		return fmt.Errorf("paper repay %s %s: owed %s", amount, asset, a.Borrowed.Add(a.Interest))
	}
	a.Free = a.Free.Sub(amount)
	fromInterest := decimal.Min(amount, a.Interest)
	a.Interest = a.Interest.Sub(fromInterest)
	a.Borrowed = a.Borrowed.Sub(amount.Sub(fromInterest))
	p.log.Info("paper repay", zap.String("symbol", symbol), zap.String("asset", asset), zap.Stringer("amount", amount))
	return nil
}

func (p *Paper) IsolatedAccount(_ context.Context, symbol string) (models.IsolatedAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct := *p.account(symbol)
	acct.Base.NetAsset = acct.Base.Free.Sub(acct.Base.Owed())
	acct.Quote.NetAsset = acct.Quote.Free.Sub(acct.Quote.Owed())
	return acct, nil
}

func (p *Paper) account(symbol string) *models.IsolatedAccount {
	acct, ok := p.iso[symbol]
	if !ok {
		acct = &models.IsolatedAccount{
			Symbol: symbol,
			Base:   models.IsolatedAsset{Asset: helper.TickerFromSymbol(symbol, p.quote)},
			Quote:  models.IsolatedAsset{Asset: p.quote},
		}
		p.iso[symbol] = acct
	}
	return acct
}

func (p *Paper) isoAsset(symbol, asset string) (*models.IsolatedAsset, error) {
	acct := p.account(symbol)
	switch asset {
	case acct.Base.Asset:
		return &acct.Base, nil
	case acct.Quote.Asset:
		return &acct.Quote, nil
	}
	return nil, fmt.Errorf("paper: asset %s is not part of isolated pair %s", asset, symbol)
}
