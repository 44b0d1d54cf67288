package lifecycle

import (
	"context"
	"time"

	"sentiment_trader/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Exchange — то, что нужно менеджеру от биржи (live-клиент или paper).
type Exchange interface {
	FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, in models.OrderIntent) (models.OrderResult, error)
	GetOrder(ctx context.Context, symbol string, orderID int64, margin bool) (models.OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64, margin bool) (models.OrderResult, error)

	TransferToIsolated(ctx context.Context, symbol, asset string, amount decimal.Decimal) error
	TransferFromIsolated(ctx context.Context, symbol, asset string, amount decimal.Decimal) error
	Borrow(ctx context.Context, symbol, asset string, amount decimal.Decimal) error
	Repay(ctx context.Context, symbol, asset string, amount decimal.Decimal) error
	IsolatedAccount(ctx context.Context, symbol string) (models.IsolatedAccount, error)
}

type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

type Config struct {
	TradePct         float64
	SlippagePct      float64
	FillTimeout      time.Duration
	FillPollInterval time.Duration
}

type Outcome string

const (
	OutcomeFilled        Outcome = "filled"
	OutcomePartial       Outcome = "partially_filled"
	OutcomeSkipped       Outcome = "skipped_below_minimum"
	OutcomeNoPosition    Outcome = "no_position"
	OutcomeAlreadyOpen   Outcome = "already_open"
	OutcomeNothingToSell Outcome = "nothing_to_sell"
)

// Result — итог операции. Position — состояние после неё (при ошибке не используется).
type Result struct {
	Outcome  Outcome
	Position models.PositionState
	Order    models.OrderResult
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

type Manager struct {
	ex     Exchange
	prices PriceSource
	cfg    Config
	log    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewManager(ex Exchange, prices PriceSource, cfg Config, log *zap.Logger) *Manager {
	if cfg.FillPollInterval <= 0 {
		cfg.FillPollInterval = time.Second
	}
	return &Manager{
		ex:     ex,
		prices: prices,
		cfg:    cfg,
		log:    log.Named("lifecycle"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// execute: лимитка -> ждём исполнения до FillTimeout -> снимаем остаток.
// Дальше в позицию идёт только фактически исполненное количество.
func (m *Manager) execute(ctx context.Context, in models.OrderIntent) (models.OrderResult, error) {
	res, err := m.ex.PlaceOrder(ctx, in)
	if err != nil {
		return models.OrderResult{}, err
	}

	deadline := m.now().Add(m.cfg.FillTimeout)
	for !res.Status.Final() && m.now().Before(deadline) {
		if err := m.sleep(ctx, m.cfg.FillPollInterval); err != nil {
			break
		}
		r, err := m.ex.GetOrder(ctx, in.Symbol, res.OrderID, in.Margin)
		if err != nil {
			m.log.Warn("order status poll failed", zap.String("symbol", in.Symbol), zap.Int64("orderId", res.OrderID), zap.Error(err))
			continue
		}
		res = r
	}

	if !res.Status.Final() {
		r, err := m.ex.CancelOrder(ctx, in.Symbol, res.OrderID, in.Margin)
		if err != nil {
			// ордер может остаться в стакане — громко, но исполненное не теряем
			m.log.Error("cancel of unfilled remainder failed, order may still rest on the book",
				zap.String("symbol", in.Symbol), zap.Int64("orderId", res.OrderID), zap.Error(err))
		} else {
			res = r
		}
	}
	return res, nil
}

func (m *Manager) intent(inst models.Instrument, side models.Side, qty, px decimal.Decimal, margin bool) models.OrderIntent {
	return models.OrderIntent{
		Symbol:   inst.Symbol,
		Side:     side,
		Quantity: qty,
		Price:    px,
		Margin:   margin,
	}
}
