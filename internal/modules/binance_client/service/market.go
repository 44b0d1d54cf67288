package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sentiment_trader/internal/helper"
	"sentiment_trader/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ExchangeInfo — шаг количества, тик цены и минимальный объём символа.
func (c *Client) ExchangeInfo(ctx context.Context, symbol string) (models.Instrument, error) {
	var payload exchangeInfoResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v3/exchangeInfo",
		params: url.Values{"symbol": {symbol}},
	}, &payload)
	if err != nil {
		return models.Instrument{}, err
	}
	if len(payload.Symbols) == 0 {
		return models.Instrument{}, fmt.Errorf("instrument %s not found", symbol)
	}

	s := payload.Symbols[0]
	if s.Status != "" && s.Status != "TRADING" {
		return models.Instrument{}, fmt.Errorf("instrument %s not trading: status=%s", symbol, s.Status)
	}

	parsePos := func(name, v string) (decimal.Decimal, error) {
		if v == "" {
			return decimal.Zero, fmt.Errorf("%s %s empty", symbol, name)
		}
		d, err := decimal.NewFromString(v)
		if err != nil || !d.IsPositive() {
			return decimal.Zero, fmt.Errorf("%s %s parse: %v (%q)", symbol, name, err, v)
		}
		return d, nil
	}

	inst := models.Instrument{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			if inst.TickSize, err = parsePos("tickSize", f.TickSize); err != nil {
				return models.Instrument{}, err
			}
		case "LOT_SIZE":
			if inst.StepSize, err = parsePos("stepSize", f.StepSize); err != nil {
				return models.Instrument{}, err
			}
			if inst.MinQty, err = parsePos("minQty", f.MinQty); err != nil {
				return models.Instrument{}, err
			}
		}
	}
	if inst.StepSize.IsZero() || inst.TickSize.IsZero() {
		return models.Instrument{}, fmt.Errorf("instrument %s: LOT_SIZE/PRICE_FILTER missing", symbol)
	}
	return inst, nil
}

// Klines — закрытые и текущая свечи, oldest-first как отдаёт Binance.
// Row: [openTime, o, h, l, c, v, closeTime, ...]
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows [][]any
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v3/klines",
		params: url.Values{
			"symbol":   {symbol},
			"interval": {helper.NormInterval(interval)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		cd, err := parseKline(symbol, row)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, nil
}

// LatestClosedCandle — предпоследняя свеча (последняя ещё формируется).
func (c *Client) LatestClosedCandle(ctx context.Context, symbol, interval string) (models.Candle, error) {
	candles, err := c.Klines(ctx, symbol, interval, 2)
	if err != nil {
		return models.Candle{}, err
	}
	if len(candles) < 2 {
		return models.Candle{}, fmt.Errorf("klines %s: want 2 rows, got %d", symbol, len(candles))
	}
	return candles[len(candles)-2], nil
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	var r tickerPriceResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v3/ticker/price",
		params: url.Values{"symbol": {symbol}},
	}, &r)
	if err != nil {
		return 0, err
	}
	px, err := strconv.ParseFloat(r.Price, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("ticker %s: bad price %q", symbol, r.Price)
	}
	return px, nil
}

func parseKline(symbol string, row []any) (models.Candle, error) {
	if len(row) < 7 {
		return models.Candle{}, fmt.Errorf("kline %s: short row (%d)", symbol, len(row))
	}
	num := func(i int) (float64, error) {
		switch v := row[i].(type) {
		case float64:
			return v, nil
		case string:
			return strconv.ParseFloat(v, 64)
		case numberLike:
			return v.Float64()
		}
		return 0, fmt.Errorf("kline %s: field %d has type %T", symbol, i, row[i])
	}

	var vals [7]float64
	for i := range vals {
		v, err := num(i)
		if err != nil {
			return models.Candle{}, errors.Wrapf(err, "kline %s", symbol)
		}
		vals[i] = v
	}
	return models.Candle{
		Symbol:    symbol,
		OpenTime:  time.UnixMilli(int64(vals[0])).UTC(),
		Open:      vals[1],
		High:      vals[2],
		Low:       vals[3],
		Close:     vals[4],
		Volume:    vals[5],
		CloseTime: time.UnixMilli(int64(vals[6])).UTC(),
	}, nil
}

// json.Number и похожие
type numberLike interface{ Float64() (float64, error) }

// FreeBalance — свободный остаток актива на спот-счёте.
func (c *Client) FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	var r accountResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v3/account",
		params: url.Values{"omitZeroBalances": {"true"}},
		signed: true,
	}, &r)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range r.Balances {
		if strings.EqualFold(b.Asset, asset) {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return decimal.Zero, fmt.Errorf("balance %s: %w", asset, err)
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}
