package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sentiment_trader/internal/metrics"
	"sentiment_trader/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	spotOrderPath   = "/api/v3/order"
	spotTestPath    = "/api/v3/order/test"
	marginOrderPath = "/sapi/v1/margin/order"
)

// NewClientOrderID — id для безопасного повтора размещения.
func NewClientOrderID() string {
	return "st-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func orderParams(in models.OrderIntent) url.Values {
	p := url.Values{
		"symbol":           {in.Symbol},
		"side":             {string(in.Side)},
		"type":             {"LIMIT"},
		"timeInForce":      {"GTC"},
		"quantity":         {in.Quantity.String()},
		"price":            {in.Price.String()},
		"newClientOrderId": {in.ClientOrderID},
		"newOrderRespType": {"FULL"},
	}
	if in.Margin {
		p.Set("isIsolated", "TRUE")
		p.Set("sideEffectType", "NO_SIDE_EFFECT")
	}
	return p
}

// PlaceOrder — LIMIT GTC. Спот повторяется с тем же clientOrderId,
// маржинальный ордер отправляется один раз.
func (c *Client) PlaceOrder(ctx context.Context, in models.OrderIntent) (models.OrderResult, error) {
	if in.ClientOrderID == "" {
		in.ClientOrderID = NewClientOrderID()
	}
	path := spotOrderPath
	if in.Margin {
		path = marginOrderPath
	}

	var r orderResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		params: orderParams(in),
		signed: true,
		once:   in.Margin,
	}, &r)
	if err != nil && !in.Margin && isDuplicateOrder(err) {
		// первый запрос дошёл, ответ потерялся
		c.log.Warn("duplicate clientOrderId, fetching existing order",
			zap.String("symbol", in.Symbol), zap.String("clientOrderId", in.ClientOrderID))
		return c.getOrder(ctx, in.Symbol, url.Values{"origClientOrderId": {in.ClientOrderID}}, false)
	}
	if err != nil {
		metrics.Orders.WithLabelValues("live", string(in.Side), "error").Inc()
		return models.OrderResult{}, errors.Wrapf(err, "place %s %s qty=%s px=%s", in.Side, in.Symbol, in.Quantity, in.Price)
	}
	metrics.Orders.WithLabelValues("live", string(in.Side), "placed").Inc()

	res, err := r.toResult()
	if err != nil {
		return models.OrderResult{}, err
	}
	c.log.Info("order placed",
		zap.String("symbol", in.Symbol), zap.String("side", string(in.Side)), zap.Bool("margin", in.Margin),
		zap.Stringer("qty", in.Quantity), zap.Stringer("price", in.Price),
		zap.String("status", string(res.Status)), zap.Stringer("executed", res.ExecutedQty))
	return res, nil
}

// TestOrder — валидация ордера фильтрами биржи без исполнения (dry-run).
func (c *Client) TestOrder(ctx context.Context, in models.OrderIntent) error {
	p := orderParams(in)
	p.Del("newOrderRespType")
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   spotTestPath,
		params: p,
		signed: true,
	}, nil)
}

func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64, margin bool) (models.OrderResult, error) {
	return c.getOrder(ctx, symbol, url.Values{"orderId": {strconv.FormatInt(orderID, 10)}}, margin)
}

func (c *Client) getOrder(ctx context.Context, symbol string, ref url.Values, margin bool) (models.OrderResult, error) {
	params := url.Values{"symbol": {symbol}}
	for k, v := range ref {
		params[k] = v
	}
	path := spotOrderPath
	if margin {
		path = marginOrderPath
		params.Set("isIsolated", "TRUE")
	}
	var r orderResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: path, params: params, signed: true}, &r); err != nil {
		return models.OrderResult{}, err
	}
	return r.toResult()
}

// CancelOrder — отмена остатка лимитки. Уже исполненный ордер (-2011) не ошибка.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64, margin bool) (models.OrderResult, error) {
	params := url.Values{
		"symbol":  {symbol},
		"orderId": {strconv.FormatInt(orderID, 10)},
	}
	path := spotOrderPath
	if margin {
		path = marginOrderPath
		params.Set("isIsolated", "TRUE")
	}
	var r orderResponse
	err := c.do(ctx, request{method: http.MethodDelete, path: path, params: params, signed: true}, &r)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == -2011 {
			return c.GetOrder(ctx, symbol, orderID, margin)
		}
		return models.OrderResult{}, err
	}
	return r.toResult()
}

func isDuplicateOrder(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == -2010 && strings.Contains(strings.ToLower(apiErr.Msg), "duplicate")
}

func (r orderResponse) toResult() (models.OrderResult, error) {
	executed, err := decimal.NewFromString(orDefault(r.ExecutedQty, "0"))
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("order %d executedQty %q: %w", r.OrderID, r.ExecutedQty, err)
	}
	quote, _ := decimal.NewFromString(orDefault(r.CummulativeQuoteQty, "0"))

	var avg float64
	if executed.IsPositive() && quote.IsPositive() {
		avg = quote.Div(executed).InexactFloat64()
	} else if len(r.Fills) > 0 {
		avg, _ = strconv.ParseFloat(r.Fills[0].Price, 64)
	}
	if avg == 0 && executed.IsPositive() {
		avg, _ = strconv.ParseFloat(r.Price, 64)
	}

	ts := r.UpdateTime
	if ts == 0 {
		ts = r.TransactTime
	}
	return models.OrderResult{
		Symbol:        r.Symbol,
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Status:        models.OrderStatus(r.Status),
		ExecutedQty:   executed,
		AvgPrice:      avg,
		UpdatedAt:     time.UnixMilli(ts).UTC(),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
